package pool

import (
	"hash/maphash"
	"slices"
	"sync"

	"github.com/gogpu/framegraph/rhi"
)

type cachedLayout struct {
	entries []rhi.BindGroupLayoutEntry
	layout  rhi.BindGroupLayout
}

// LayoutCache deduplicates bind group layouts by their entries. Layouts
// live until Invalidate.
type LayoutCache struct {
	device  rhi.Device
	seed    maphash.Seed
	metrics *Metrics

	mu      sync.Mutex
	layouts map[uint64][]cachedLayout
}

func newLayoutCache(device rhi.Device, m *Metrics) *LayoutCache {
	return &LayoutCache{
		device:  device,
		seed:    maphash.MakeSeed(),
		metrics: m,
		layouts: make(map[uint64][]cachedLayout),
	}
}

// GetOrCreate returns a layout with the entries of desc.
func (c *LayoutCache) GetOrCreate(desc *rhi.BindGroupLayoutDesc) (rhi.BindGroupLayout, error) {
	var h maphash.Hash
	h.SetSeed(c.seed)
	for i := range desc.Entries {
		maphash.WriteComparable(&h, desc.Entries[i])
	}
	key := h.Sum64()

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, l := range c.layouts[key] {
		if slices.Equal(l.entries, desc.Entries) {
			c.metrics.hit(poolLayouts)
			return l.layout, nil
		}
	}
	c.metrics.miss(poolLayouts)
	layout, err := c.device.CreateBindGroupLayout(desc)
	if err != nil {
		return nil, err
	}
	c.metrics.allocated(poolLayouts)
	c.layouts[key] = append(c.layouts[key], cachedLayout{
		entries: slices.Clone(desc.Entries),
		layout:  layout,
	})
	return layout, nil
}

// Len returns the number of distinct layouts.
func (c *LayoutCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := 0
	for _, list := range c.layouts {
		n += len(list)
	}
	return n
}

func (c *LayoutCache) clear() {
	c.mu.Lock()
	layouts := c.layouts
	c.layouts = make(map[uint64][]cachedLayout)
	c.mu.Unlock()

	n := 0
	for _, list := range layouts {
		for _, l := range list {
			c.device.DestroyBindGroupLayout(l.layout)
			n++
		}
	}
	c.metrics.destroy(poolLayouts, n)
}
