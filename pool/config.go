package pool

// Default cache limits.
const (
	DefaultViewCacheLimit      = 512
	DefaultBindGroupCacheLimit = 512
	DefaultPipelineCacheLimit  = 64
)

// Config controls cache sizes. Limits are soft: caches only shrink at
// Forfeit, when no cached object is referenced by unsubmitted work.
type Config struct {
	// ViewCacheLimit bounds each of the buffer and texture view caches.
	// Default: DefaultViewCacheLimit.
	ViewCacheLimit int

	// BindGroupCacheLimit bounds the bind group cache.
	// Default: DefaultBindGroupCacheLimit.
	BindGroupCacheLimit int

	// PipelineCacheLimit bounds the compute pipeline cache.
	// Default: DefaultPipelineCacheLimit.
	PipelineCacheLimit int

	// ShaderDebug emits debug info when compiling WGSL.
	ShaderDebug bool
}

// withDefaults returns a copy with zero limits replaced by defaults.
// Negative limits mean unlimited.
func (c Config) withDefaults() Config {
	if c.ViewCacheLimit == 0 {
		c.ViewCacheLimit = DefaultViewCacheLimit
	}
	if c.BindGroupCacheLimit == 0 {
		c.BindGroupCacheLimit = DefaultBindGroupCacheLimit
	}
	if c.PipelineCacheLimit == 0 {
		c.PipelineCacheLimit = DefaultPipelineCacheLimit
	}
	c.ViewCacheLimit = max(c.ViewCacheLimit, 0)
	c.BindGroupCacheLimit = max(c.BindGroupCacheLimit, 0)
	c.PipelineCacheLimit = max(c.PipelineCacheLimit, 0)
	return c
}

// Option configures Pools during creation.
type Option func(*Pools)

// WithMetrics reports pool activity to m.
func WithMetrics(m *Metrics) Option {
	return func(p *Pools) {
		p.metrics = m
	}
}
