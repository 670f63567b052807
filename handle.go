package framegraph

import (
	"fmt"
	"sync/atomic"
)

// graphIDs hands out Builder identities. Zero is never used so zero-value
// handles are always invalid.
var graphIDs atomic.Uint64

// ref is an arena index into builder-owned storage, tagged with the
// identity of the owning Builder.
type ref struct {
	graph uint64
	index uint32
}

// IsValid reports whether the handle was returned by a Builder.
func (r ref) IsValid() bool {
	return r.graph != 0
}

// Buffer is a handle to a virtual buffer. It is valid only for the Builder
// that created it.
type Buffer struct{ ref }

// Texture is a handle to a virtual texture.
type Texture struct{ ref }

// BufferView is a handle to a range of a virtual buffer.
type BufferView struct{ ref }

// TextureView is a handle to a sub-resource range of a virtual texture.
type TextureView struct{ ref }

// BindGroup is a handle to a bind group descriptor.
type BindGroup struct{ ref }

// Resource is a Buffer or a Texture.
type Resource interface {
	resourceRef() ref
	resourceKind() ResourceKind
}

func (h Buffer) resourceRef() ref           { return h.ref }
func (h Buffer) resourceKind() ResourceKind { return ResourceKindBuffer }

func (h Texture) resourceRef() ref           { return h.ref }
func (h Texture) resourceKind() ResourceKind { return ResourceKindTexture }

func (h Buffer) String() string      { return fmt.Sprintf("Buffer(%d)", h.index) }
func (h Texture) String() string     { return fmt.Sprintf("Texture(%d)", h.index) }
func (h BufferView) String() string  { return fmt.Sprintf("BufferView(%d)", h.index) }
func (h TextureView) String() string { return fmt.Sprintf("TextureView(%d)", h.index) }
func (h BindGroup) String() string   { return fmt.Sprintf("BindGroup(%d)", h.index) }

// checkRef validates that r belongs to this builder and is within n entries.
func (b *Builder) checkRef(r ref, n int) error {
	switch {
	case r.graph == 0:
		return ErrInvalidHandle
	case r.graph != b.id:
		return ErrForeignHandle
	case int(r.index) >= n:
		return ErrInvalidHandle
	}
	return nil
}

func (b *Builder) lookupResource(r ref, kind ResourceKind) (*resource, error) {
	if err := b.checkRef(r, len(b.resources)); err != nil {
		return nil, err
	}
	res := &b.resources[r.index]
	if res.kind != kind {
		return nil, ErrInvalidHandle
	}
	return res, nil
}

func (b *Builder) lookupView(r ref, kind ResourceKind) (*view, error) {
	if err := b.checkRef(r, len(b.views)); err != nil {
		return nil, err
	}
	v := &b.views[r.index]
	if v.kind != kind {
		return nil, ErrInvalidHandle
	}
	return v, nil
}

func (b *Builder) lookupBindGroup(r ref) (*bindGroup, error) {
	if err := b.checkRef(r, len(b.bindGroups)); err != nil {
		return nil, err
	}
	return &b.bindGroups[r.index], nil
}
