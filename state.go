package framegraph

import (
	"fmt"

	"github.com/gogpu/framegraph/rhi"
)

// Required states per use:
//
//	sampled texture          ShaderRead
//	uniform buffer           unchanged, or ShaderRead after a write state
//	storage buffer/texture   UnorderedAccess
//	color/resolve attachment RenderTarget
//	depth-stencil attachment DepthStencilWrite
//	copy source/destination  CopySrc/CopyDst
//
// Graph-owned resources start every frame in StateUndefined; imported ones
// start in the state the caller asserted.

// scheduleBarriers simulates resource states in declaration order.
//
// A resource used from both queues in one batch cannot be transitioned
// between its users in that batch. Its transition is recorded after the
// previous user, which is ordered before both queues by the sync point
// protocol. An imported resource with no previous user is transitioned in
// the batch's async stream, and the batch's main submission waits on it.
func (c *compiler) scheduleBarriers() error {
	plan := c.plan
	state := make([]rhi.ResourceState, len(plan.Resources))
	last := make([]int, len(plan.Resources))
	for i := range plan.Resources {
		if plan.Resources[i].Imported {
			state[i] = c.b.resources[i].initialState
		}
		last[i] = -1
	}
	shared := c.sharedAcrossQueues()

	for pi := range plan.Passes {
		pp := &plan.Passes[pi]
		if pp.Culled {
			continue
		}
		for _, a := range c.accesses[pi] {
			r := int(a.res)
			want := a.state
			if a.uniform && !state[r].IsWrite() {
				continue
			}
			if state[r] == want {
				continue
			}
			t := Transition{Resource: r, Before: state[r], After: want}
			switch {
			case !shared[batchRes{pp.Batch, r}]:
				pp.Barriers = append(pp.Barriers, t)
			case last[r] >= 0 && plan.Passes[last[r]].Batch < pp.Batch:
				prev := &plan.Passes[last[r]]
				prev.Handoff = append(prev.Handoff, t)
			case last[r] < 0 && c.firstAsyncUser(pi, r) != nil:
				ap := c.firstAsyncUser(pi, r)
				ap.Barriers = append(ap.Barriers, t)
				if c.joined == nil {
					c.joined = make(map[int]bool)
				}
				c.joined[pp.Batch] = true
			default:
				return &GraphError{Op: "compile", Pass: pp.Name, Resource: plan.Resources[r].Label,
					Err: fmt.Errorf("%w (%v needed on both queues)", ErrMissingSyncPoint, want)}
			}
			state[r] = want
		}
		for _, a := range c.accesses[pi] {
			last[a.res] = pi
		}
	}

	for i := range plan.Resources {
		plan.Resources[i].EndState = state[i]
	}
	return nil
}

// firstAsyncUser returns the first surviving async pass at or after pass
// from, in the same batch, that touches resource r.
func (c *compiler) firstAsyncUser(from, r int) *PassPlan {
	batch := c.plan.Passes[from].Batch
	for pi := from; pi < len(c.plan.Passes); pi++ {
		pp := &c.plan.Passes[pi]
		if pp.Culled || pp.Batch != batch || pp.Queue != rhi.QueueAsyncCompute {
			continue
		}
		for _, a := range c.accesses[pi] {
			if int(a.res) == r {
				return pp
			}
		}
	}
	return nil
}

type batchRes struct {
	batch, res int
}

// sharedAcrossQueues reports, per batch, which resources surviving passes
// on both queues touch.
func (c *compiler) sharedAcrossQueues() map[batchRes]bool {
	if !c.plan.AsyncCompute {
		return nil
	}
	seen := make(map[batchRes]rhi.QueueType)
	shared := make(map[batchRes]bool)
	for pi := range c.plan.Passes {
		pp := &c.plan.Passes[pi]
		if pp.Culled {
			continue
		}
		for _, a := range c.accesses[pi] {
			k := batchRes{pp.Batch, int(a.res)}
			if q, ok := seen[k]; ok && q != pp.Queue {
				shared[k] = true
			}
			seen[k] = pp.Queue
		}
	}
	return shared
}
