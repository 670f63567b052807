package pool

import (
	"sync"

	"github.com/gogpu/framegraph/rhi"
)

// Pool recycles physical resources of one kind by descriptor.
//
// Requests are matched on the descriptor with its label cleared. An object is
// exclusive between GetOrCreate and the Release of its Lease (or Forfeit):
// two holders never share it. Objects are destroyed only by Invalidate.
//
// Pool is safe for concurrent use.
type Pool[D comparable] struct {
	mu       sync.Mutex
	name     string
	create   func(*D) (rhi.Object, error)
	destroy  func(rhi.Object)
	key      func(D) D
	free     map[D][]rhi.Object
	acquired map[rhi.Object]held[D]
	nextID   uint64
	metrics  *Metrics
}

// Lease is one acquisition of a pooled object. Releasing a lease that
// Forfeit already reclaimed is a no-op, even if the object has since been
// handed to another holder.
type Lease struct {
	Object rhi.Object
	id     uint64
}

type held[D comparable] struct {
	key D
	id  uint64
}

// PoolStats reports the contents of a Pool.
type PoolStats struct {
	// Free is the number of objects available for reuse.
	Free int

	// Acquired is the number of objects handed out and not yet returned.
	Acquired int
}

func newPool[D comparable](name string, create func(*D) (rhi.Object, error), destroy func(rhi.Object), key func(D) D, m *Metrics) *Pool[D] {
	return &Pool[D]{
		name:     name,
		create:   create,
		destroy:  destroy,
		key:      key,
		free:     make(map[D][]rhi.Object),
		acquired: make(map[rhi.Object]held[D]),
		metrics:  m,
	}
}

// GetOrCreate returns a lease on a free object matching desc, or on a new
// one. The object stays acquired until the lease is released or Forfeit.
func (p *Pool[D]) GetOrCreate(desc D) (Lease, error) {
	k := p.key(desc)

	p.mu.Lock()
	if list := p.free[k]; len(list) > 0 {
		obj := list[len(list)-1]
		list[len(list)-1] = nil
		if len(list) == 1 {
			delete(p.free, k)
		} else {
			p.free[k] = list[:len(list)-1]
		}
		l := p.hold(obj, k)
		p.mu.Unlock()
		p.metrics.hit(p.name)
		return l, nil
	}
	p.mu.Unlock()

	p.metrics.miss(p.name)
	obj, err := p.create(&desc)
	if err != nil {
		return Lease{}, err
	}
	p.metrics.allocated(p.name)

	p.mu.Lock()
	l := p.hold(obj, k)
	p.mu.Unlock()
	return l, nil
}

// hold records obj as acquired under a fresh lease id. p.mu must be held.
func (p *Pool[D]) hold(obj rhi.Object, k D) Lease {
	p.nextID++
	p.acquired[obj] = held[D]{key: k, id: p.nextID}
	return Lease{Object: obj, id: p.nextID}
}

// Release returns the leased object to the free list. Leases the pool did
// not hand out, and leases reclaimed by Forfeit, are ignored.
func (p *Pool[D]) Release(l Lease) {
	if l.Object == nil {
		return
	}
	p.mu.Lock()
	h, acquired := p.acquired[l.Object]
	ok := acquired && h.id == l.id
	if ok {
		delete(p.acquired, l.Object)
		p.free[h.key] = append(p.free[h.key], l.Object)
	}
	p.mu.Unlock()

	switch {
	case ok:
		p.metrics.released(p.name, 1)
	case acquired || l.id != 0:
		slogger().Debug("pool: stale lease ignored", "pool", p.name, "label", l.Object.Label())
	default:
		slogger().Warn("pool: release of unknown object", "pool", p.name, "label", l.Object.Label())
	}
}

// Forfeit returns every acquired object to the free list.
// Returns the number of objects returned.
func (p *Pool[D]) Forfeit() int {
	p.mu.Lock()
	n := len(p.acquired)
	for obj, h := range p.acquired {
		p.free[h.key] = append(p.free[h.key], obj)
	}
	clear(p.acquired)
	p.mu.Unlock()

	p.metrics.released(p.name, n)
	return n
}

// Invalidate destroys every object, including acquired ones.
func (p *Pool[D]) Invalidate() {
	p.mu.Lock()
	var objs []rhi.Object
	for _, list := range p.free {
		objs = append(objs, list...)
	}
	outstanding := len(p.acquired)
	for obj := range p.acquired {
		objs = append(objs, obj)
	}
	clear(p.free)
	clear(p.acquired)
	p.mu.Unlock()

	if outstanding > 0 {
		slogger().Warn("pool: destroying acquired objects", "pool", p.name, "count", outstanding)
	}
	for _, obj := range objs {
		p.destroy(obj)
	}
	p.metrics.destroy(p.name, len(objs))
}

// Stats returns the current pool contents.
func (p *Pool[D]) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	s := PoolStats{Acquired: len(p.acquired)}
	for _, list := range p.free {
		s.Free += len(list)
	}
	return s
}
