package framegraph

import (
	"errors"
	"strings"
)

// Sentinel errors. Errors returned by the Builder wrap one of these and can
// be matched with errors.Is.
var (
	// ErrGraphAlreadyExecuted is returned by any mutating call after Execute.
	ErrGraphAlreadyExecuted = errors.New("framegraph: graph already executed")

	// ErrGraphReleased is returned by any call on a released Builder.
	ErrGraphReleased = errors.New("framegraph: graph released")

	// ErrNotExecuted is returned by physical accessors before a successful Execute.
	ErrNotExecuted = errors.New("framegraph: graph not executed")

	// ErrMultipleWriters is returned when two passes write the same resource.
	ErrMultipleWriters = errors.New("framegraph: resource has multiple writers")

	// ErrCulledResourceReference is returned when a surviving pass references
	// a resource the compiler culled. ForceUsed keeps such a resource alive.
	ErrCulledResourceReference = errors.New("framegraph: surviving pass references culled resource")

	// ErrReadBeforeWrite is returned when a pass reads a graph-owned resource
	// before (or without) the pass that writes it.
	ErrReadBeforeWrite = errors.New("framegraph: resource read before it is written")

	// ErrMissingSyncPoint is returned when a resource is shared across queues
	// inside one batch in a way that needs a sync point between the accesses.
	ErrMissingSyncPoint = errors.New("framegraph: cross-queue dependency without sync point")

	// ErrForeignHandle is returned when a handle from another Builder is used.
	ErrForeignHandle = errors.New("framegraph: handle belongs to another graph")

	// ErrInvalidHandle is returned for zero-value, out-of-range or mistyped handles.
	ErrInvalidHandle = errors.New("framegraph: invalid handle")

	// ErrInvalidDescriptor is returned when a descriptor fails validation.
	ErrInvalidDescriptor = errors.New("framegraph: invalid descriptor")

	// ErrResourceCulled is returned by physical accessors for culled references.
	ErrResourceCulled = errors.New("framegraph: resource was culled")

	// ErrResourceExhausted is returned when a pool cannot allocate a physical object.
	ErrResourceExhausted = errors.New("framegraph: resource allocation failed")

	// ErrSubmitFailed is returned when a queue rejects a submission or present.
	ErrSubmitFailed = errors.New("framegraph: queue submission failed")
)

// GraphError carries the context of a failed Builder operation.
// It unwraps to the underlying sentinel or device error.
type GraphError struct {
	// Op is the Builder operation that failed, e.g. "compile".
	Op string
	// Pass is the name of the pass involved, if any.
	Pass string
	// Resource is the label of the resource involved, if any.
	Resource string
	// Err is the underlying error.
	Err error
}

func (e *GraphError) Error() string {
	var sb strings.Builder
	sb.WriteString("framegraph: ")
	sb.WriteString(e.Op)
	if e.Pass != "" {
		sb.WriteString(": pass ")
		sb.WriteString(quote(e.Pass))
	}
	if e.Resource != "" {
		sb.WriteString(": resource ")
		sb.WriteString(quote(e.Resource))
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(strings.TrimPrefix(e.Err.Error(), "framegraph: "))
	}
	return sb.String()
}

func (e *GraphError) Unwrap() error {
	return e.Err
}

func quote(s string) string {
	return `"` + s + `"`
}
