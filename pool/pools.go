package pool

import (
	"github.com/gogpu/framegraph/rhi"
)

// Pools groups every pool and cache for one device.
//
// Pools may be shared by builders on several goroutines. Forfeit and
// Invalidate must only be called when no recorded work references pooled
// objects, typically after waiting on the frame fence.
type Pools struct {
	device  rhi.Device
	cfg     Config
	metrics *Metrics

	Buffers    *Pool[rhi.BufferDesc]
	Textures   *Pool[rhi.TextureDesc]
	Views      *ViewCache
	BindGroups *BindGroupCache
	Layouts    *LayoutCache
	Pipelines  *PipelineCache
}

// New creates the pools for device.
func New(device rhi.Device, cfg Config, opts ...Option) *Pools {
	p := &Pools{device: device, cfg: cfg.withDefaults()}
	for _, opt := range opts {
		opt(p)
	}
	m := p.metrics

	p.Buffers = newPool(poolBuffers,
		func(d *rhi.BufferDesc) (rhi.Object, error) { return device.CreateBuffer(d) },
		device.DestroyBuffer,
		func(d rhi.BufferDesc) rhi.BufferDesc { d.Label = ""; return d },
		m)
	p.Textures = newPool(poolTextures,
		func(d *rhi.TextureDesc) (rhi.Object, error) { return device.CreateTexture(d) },
		device.DestroyTexture,
		func(d rhi.TextureDesc) rhi.TextureDesc { d.Label = ""; return d },
		m)
	p.Views = newViewCache(device, p.cfg.ViewCacheLimit, m)
	p.BindGroups = newBindGroupCache(device, p.cfg.BindGroupCacheLimit, m)
	p.Layouts = newLayoutCache(device, m)
	p.Pipelines = newPipelineCache(device, p.Layouts, p.cfg, m)

	p.Views.onTextureEvict = func(v rhi.TextureView) {
		p.BindGroups.purgeTextureView(v)
	}
	return p
}

// Config returns the effective configuration.
func (p *Pools) Config() Config {
	return p.cfg
}

// Forfeit returns every acquired buffer and texture to the free lists and
// trims the caches to their limits.
func (p *Pools) Forfeit() {
	buffers := p.Buffers.Forfeit()
	textures := p.Textures.Forfeit()
	groups := p.BindGroups.trim()
	views := p.Views.trim()
	pipelines := p.Pipelines.trim()

	slogger().Debug("pool: forfeit",
		"buffers", buffers, "textures", textures,
		"evicted_bind_groups", groups, "evicted_views", views, "evicted_pipelines", pipelines)
}

// Invalidate destroys every object owned by the pools. Dependent objects
// are destroyed before the objects they reference.
func (p *Pools) Invalidate() {
	p.BindGroups.clear()
	p.Views.clear()
	p.Pipelines.clear()
	p.Layouts.clear()
	p.Buffers.Invalidate()
	p.Textures.Invalidate()

	slogger().Debug("pool: invalidated")
}
