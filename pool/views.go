package pool

import (
	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/rhi"
)

type bufferViewKey struct {
	buffer rhi.Buffer
	desc   rhi.BufferViewDesc
}

type textureViewKey struct {
	texture rhi.Texture
	desc    rhi.TextureViewDesc
}

// ViewCache caches views by (physical resource, descriptor). Labels are not
// part of the key.
type ViewCache struct {
	device   rhi.Device
	buffers  *cache.Cache[bufferViewKey, rhi.BufferView]
	textures *cache.Cache[textureViewKey, rhi.TextureView]
	metrics  *Metrics

	// onTextureEvict runs before an evicted texture view is destroyed.
	onTextureEvict func(rhi.TextureView)
}

func newViewCache(device rhi.Device, limit int, m *Metrics) *ViewCache {
	c := &ViewCache{device: device, metrics: m}
	c.buffers = cache.New(limit, func(_ bufferViewKey, v rhi.BufferView) {
		device.DestroyBufferView(v)
		m.destroy(poolBufferViews, 1)
	})
	c.textures = cache.New(limit, func(_ textureViewKey, v rhi.TextureView) {
		if c.onTextureEvict != nil {
			c.onTextureEvict(v)
		}
		device.DestroyTextureView(v)
		m.destroy(poolTextureViews, 1)
	})
	return c
}

// Buffer returns a view of buf described by desc.
func (c *ViewCache) Buffer(buf rhi.Buffer, desc rhi.BufferViewDesc) (rhi.BufferView, error) {
	k := desc
	k.Label = ""
	v, hit, err := c.buffers.GetOrCreate(bufferViewKey{buf, k}, func() (rhi.BufferView, error) {
		return c.device.CreateBufferView(buf, &desc)
	})
	c.record(poolBufferViews, hit, err)
	return v, err
}

// Texture returns a view of tex described by desc.
func (c *ViewCache) Texture(tex rhi.Texture, desc rhi.TextureViewDesc) (rhi.TextureView, error) {
	k := desc
	k.Label = ""
	v, hit, err := c.textures.GetOrCreate(textureViewKey{tex, k}, func() (rhi.TextureView, error) {
		return c.device.CreateTextureView(tex, &desc)
	})
	c.record(poolTextureViews, hit, err)
	return v, err
}

func (c *ViewCache) record(pool string, hit bool, err error) {
	switch {
	case hit:
		c.metrics.hit(pool)
	case err == nil:
		c.metrics.miss(pool)
		c.metrics.allocated(pool)
	default:
		c.metrics.miss(pool)
	}
}

// Len returns the number of cached buffer and texture views.
func (c *ViewCache) Len() int {
	return c.buffers.Len() + c.textures.Len()
}

// trim evicts least recently used views beyond the limit.
func (c *ViewCache) trim() int {
	return c.buffers.Trim() + c.textures.Trim()
}

// clear destroys every cached view.
func (c *ViewCache) clear() {
	c.buffers.Clear()
	c.textures.Clear()
}
