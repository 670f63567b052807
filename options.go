package framegraph

import "log/slog"

// Option configures a Builder during creation.
//
// Example:
//
//	b := framegraph.New(device, pools,
//	    framegraph.WithLabel("frame"),
//	    framegraph.WithAsyncCompute(false),
//	)
type Option func(*options)

// options holds optional configuration for Builder creation.
type options struct {
	logger       *slog.Logger
	label        string
	asyncCompute bool
}

// defaultOptions returns the default builder options.
func defaultOptions() options {
	return options{
		label:        "frame",
		asyncCompute: true,
	}
}

// WithLogger sets the logger for one Builder, overriding the package logger.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLabel sets the label used for command recorders, semaphores and the
// compiled plan.
func WithLabel(label string) Option {
	return func(o *options) {
		if label != "" {
			o.label = label
		}
	}
}

// WithAsyncCompute controls whether compute passes flagged Async may run on
// the async compute queue. When disabled, or when the device has a single
// compute-capable queue, every pass is recorded on the main queue.
func WithAsyncCompute(enabled bool) Option {
	return func(o *options) {
		o.asyncCompute = enabled
	}
}
