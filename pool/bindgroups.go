package pool

import (
	"hash/maphash"
	"slices"
	"sync"

	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/rhi"
)

type bindGroupKey struct {
	layout rhi.BindGroupLayout
	hash   uint64
}

type cachedBindGroup struct {
	entries []rhi.BindGroupEntry
	group   rhi.BindGroup
}

// BindGroupCache caches bind groups by layout and resolved entries.
//
// Entries are hashed; a hit is confirmed by comparing entries. On a hash
// collision the group is created uncached and destroyed at the next Forfeit.
type BindGroupCache struct {
	device  rhi.Device
	seed    maphash.Seed
	groups  *cache.Cache[bindGroupKey, *cachedBindGroup]
	metrics *Metrics
	hash    func([]rhi.BindGroupEntry) uint64

	mu       sync.Mutex
	overflow []rhi.BindGroup
}

func newBindGroupCache(device rhi.Device, limit int, m *Metrics) *BindGroupCache {
	c := &BindGroupCache{
		device: device,
		seed:   maphash.MakeSeed(),
		groups: cache.New(limit, func(_ bindGroupKey, g *cachedBindGroup) {
			device.DestroyBindGroup(g.group)
			m.destroy(poolBindGroups, 1)
		}),
		metrics: m,
	}
	c.hash = c.hashEntries
	return c
}

func (c *BindGroupCache) hashEntries(entries []rhi.BindGroupEntry) uint64 {
	var h maphash.Hash
	h.SetSeed(c.seed)
	for i := range entries {
		maphash.WriteComparable(&h, entries[i])
	}
	return h.Sum64()
}

// GetOrCreate returns a bind group matching desc. The label is not part of
// the match.
func (c *BindGroupCache) GetOrCreate(desc *rhi.BindGroupDesc) (rhi.BindGroup, error) {
	key := bindGroupKey{layout: desc.Layout, hash: c.hash(desc.Entries)}
	cached, hit, err := c.groups.GetOrCreate(key, func() (*cachedBindGroup, error) {
		g, err := c.device.CreateBindGroup(desc)
		if err != nil {
			return nil, err
		}
		return &cachedBindGroup{entries: slices.Clone(desc.Entries), group: g}, nil
	})
	if err != nil {
		c.metrics.miss(poolBindGroups)
		return nil, err
	}
	if !hit {
		c.metrics.miss(poolBindGroups)
		c.metrics.allocated(poolBindGroups)
		return cached.group, nil
	}
	if slices.Equal(cached.entries, desc.Entries) {
		c.metrics.hit(poolBindGroups)
		return cached.group, nil
	}

	slogger().Debug("pool: bind group hash collision", "label", desc.Label)
	c.metrics.miss(poolBindGroups)
	g, err := c.device.CreateBindGroup(desc)
	if err != nil {
		return nil, err
	}
	c.metrics.allocated(poolBindGroups)
	c.mu.Lock()
	c.overflow = append(c.overflow, g)
	c.mu.Unlock()
	return g, nil
}

// Len returns the number of cached bind groups, excluding overflow groups.
func (c *BindGroupCache) Len() int {
	return c.groups.Len()
}

// purgeTextureView destroys every cached group that binds v.
func (c *BindGroupCache) purgeTextureView(v rhi.TextureView) int {
	return c.groups.DeleteFunc(func(_ bindGroupKey, g *cachedBindGroup) bool {
		return slices.ContainsFunc(g.entries, func(e rhi.BindGroupEntry) bool {
			return e.TextureView == v
		})
	})
}

// trim destroys overflow groups and evicts beyond the limit.
func (c *BindGroupCache) trim() int {
	return c.dropOverflow() + c.groups.Trim()
}

// clear destroys every group.
func (c *BindGroupCache) clear() {
	c.dropOverflow()
	c.groups.Clear()
}

func (c *BindGroupCache) dropOverflow() int {
	c.mu.Lock()
	groups := c.overflow
	c.overflow = nil
	c.mu.Unlock()

	for _, g := range groups {
		c.device.DestroyBindGroup(g)
	}
	c.metrics.destroy(poolBindGroups, len(groups))
	return len(groups)
}
