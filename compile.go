package framegraph

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/gogpu/framegraph/rhi"
)

// Plan is the result of compiling a graph: the cull set, the queue and
// batch of every pass, the barriers each pass needs and the submission
// schedule. A Plan is read-only.
type Plan struct {
	Label        string
	Passes       []PassPlan
	Resources    []ResourcePlan
	Submissions  []SubmissionPlan
	Batches      int
	AsyncCompute bool
}

// PassPlan is the compiled form of one pass.
type PassPlan struct {
	Name   string
	Kind   PassKind
	Batch  int
	Queue  rhi.QueueType
	Culled bool

	// Reads and Writes are indices into Plan.Resources, sorted. A resource
	// the pass both reads and writes is listed in both.
	Reads  []int
	Writes []int

	// Barriers are recorded before the pass.
	Barriers []Transition
	// Handoff barriers are recorded after the pass. They move a resource into
	// the state its consumers on both queues need in a later batch.
	Handoff []Transition
}

// ResourcePlan is the compiled form of one resource.
type ResourcePlan struct {
	Label     string
	Kind      ResourceKind
	Imported  bool
	ForceUsed bool
	Culled    bool

	// Readers is the number of surviving passes that read the resource.
	Readers int
	// Writer is the index of the pass that writes the resource, or -1.
	Writer int

	// EndState is the state the last pass leaves the resource in.
	EndState rhi.ResourceState
	// FinalState is the state an imported resource must be returned in.
	FinalState rhi.ResourceState
}

// Transition is a state change of one resource.
type Transition struct {
	Resource int
	Before   rhi.ResourceState
	After    rhi.ResourceState
}

// SubmissionPlan is one command stream: the surviving passes of one batch
// on one queue.
type SubmissionPlan struct {
	Batch  int
	Queue  rhi.QueueType
	Passes []int

	// Waits lists earlier submissions, on the other queue, this one waits on.
	Waits []int
	// Signal is set when a later submission waits on this one.
	Signal bool
	// Final marks the closing main-queue submission. It carries the
	// caller's signal semaphores and fence.
	Final bool
}

// LivePasses returns the indices of passes that survived culling.
func (p *Plan) LivePasses() []int {
	var live []int
	for i := range p.Passes {
		if !p.Passes[i].Culled {
			live = append(live, i)
		}
	}
	return live
}

// compile runs every analysis phase. It writes culled flags back to the
// resources only on success.
func (b *Builder) compile() (*Plan, error) {
	c := &compiler{b: b}
	if err := c.run(); err != nil {
		return nil, err
	}
	for i := range b.resources {
		b.resources[i].culled = c.plan.Resources[i].Culled
	}
	b.logPlan(c.plan)
	return c.plan, nil
}

type compiler struct {
	b        *Builder
	plan     *Plan
	accesses [][]access

	// joined marks batches whose main submission waits on the async
	// submission of the same batch.
	joined map[int]bool
}

func (c *compiler) run() error {
	b := c.b
	c.plan = &Plan{
		Label:        b.opts.label,
		Passes:       make([]PassPlan, len(b.passes)),
		Resources:    make([]ResourcePlan, len(b.resources)),
		Batches:      b.batch + 1,
		AsyncCompute: c.asyncAvailable(),
	}
	for i := range b.resources {
		r := &b.resources[i]
		c.plan.Resources[i] = ResourcePlan{
			Label:      resourceLabel(r, i),
			Kind:       r.kind,
			Imported:   r.isImported(),
			ForceUsed:  r.forced,
			Writer:     -1,
			FinalState: r.finalState,
		}
	}

	c.deriveReadsWrites()
	if err := c.assignWriters(); err != nil {
		return err
	}
	c.cull()
	if err := c.checkCulledReferences(); err != nil {
		return err
	}
	if err := c.checkReadBeforeWrite(); err != nil {
		return err
	}
	c.assignQueues()
	if err := c.checkCrossQueueHazards(); err != nil {
		return err
	}
	if err := c.scheduleBarriers(); err != nil {
		return err
	}
	c.scheduleSubmissions()
	return nil
}

func resourceLabel(r *resource, i int) string {
	if r.label != "" {
		return r.label
	}
	return r.kind.String() + "#" + strconv.Itoa(i)
}

func (c *compiler) asyncAvailable() bool {
	b := c.b
	return b.opts.asyncCompute &&
		b.device.Capabilities().ComputeQueueCount >= 2 &&
		b.device.Queue(rhi.QueueAsyncCompute) != nil
}

// deriveReadsWrites resolves every pass's bindings, attachments and copy
// lists to owning resources.
func (c *compiler) deriveReadsWrites() {
	b := c.b
	c.accesses = make([][]access, len(b.passes))
	for i := range b.passes {
		p := &b.passes[i]
		acc := b.accesses(p)
		c.accesses[i] = acc

		pp := &c.plan.Passes[i]
		pp.Name = p.name
		pp.Kind = p.kind
		pp.Batch = p.batch
		pp.Queue = rhi.QueueMain
		for _, a := range acc {
			if a.state.IsWrite() {
				pp.Writes = append(pp.Writes, int(a.res))
			}
			if a.read {
				pp.Reads = append(pp.Reads, int(a.res))
			}
		}
		slices.Sort(pp.Reads)
		slices.Sort(pp.Writes)
	}
}

// assignWriters records the single writer of every resource. Every pass
// counts, including ones that will be culled.
func (c *compiler) assignWriters() error {
	for pi := range c.plan.Passes {
		for _, r := range c.plan.Passes[pi].Writes {
			rp := &c.plan.Resources[r]
			if rp.Writer >= 0 {
				return &GraphError{
					Op:       "compile",
					Pass:     c.plan.Passes[pi].Name,
					Resource: rp.Label,
					Err:      fmt.Errorf("%w (first written by pass %q)", ErrMultipleWriters, c.plan.Passes[rp.Writer].Name),
				}
			}
			rp.Writer = pi
		}
	}
	return nil
}

// cull iterates to a fixed point: resources without surviving readers are
// culled unless imported or forced, and a pass whose writes are all culled
// is culled, which may in turn leave its inputs without readers. A pass
// reading a resource it also writes is not a reader of it.
func (c *compiler) cull() {
	passes := c.plan.Passes
	res := c.plan.Resources
	for {
		for i := range res {
			res[i].Readers = 0
		}
		for pi := range passes {
			if passes[pi].Culled {
				continue
			}
			for _, r := range passes[pi].Reads {
				if !slices.Contains(passes[pi].Writes, r) {
					res[r].Readers++
				}
			}
		}
		for i := range res {
			res[i].Culled = res[i].Readers == 0 && !res[i].Imported && !res[i].ForceUsed
		}

		changed := false
		for pi := range passes {
			pp := &passes[pi]
			if pp.Culled || len(pp.Writes) == 0 {
				continue
			}
			allCulled := true
			for _, r := range pp.Writes {
				if !res[r].Culled {
					allCulled = false
					break
				}
			}
			if allCulled {
				pp.Culled = true
				changed = true
			}
		}
		if !changed {
			return
		}
	}
}

// checkCulledReferences rejects a surviving pass that touches a culled
// resource. Only writes can trip this; a surviving read keeps its resource.
func (c *compiler) checkCulledReferences() error {
	for pi := range c.plan.Passes {
		pp := &c.plan.Passes[pi]
		if pp.Culled {
			continue
		}
		for _, r := range pp.Writes {
			if c.plan.Resources[r].Culled {
				return &GraphError{Op: "compile", Pass: pp.Name, Resource: c.plan.Resources[r].Label,
					Err: ErrCulledResourceReference}
			}
		}
	}
	return nil
}

// checkReadBeforeWrite rejects reads of graph-owned contents that nothing
// has written yet in declaration order.
func (c *compiler) checkReadBeforeWrite() error {
	for pi := range c.plan.Passes {
		pp := &c.plan.Passes[pi]
		if pp.Culled {
			continue
		}
		for _, r := range pp.Reads {
			rp := &c.plan.Resources[r]
			if rp.Imported {
				continue
			}
			if rp.Writer < 0 || rp.Writer > pi {
				return &GraphError{Op: "compile", Pass: pp.Name, Resource: rp.Label, Err: ErrReadBeforeWrite}
			}
		}
	}
	return nil
}

func (c *compiler) assignQueues() {
	if !c.plan.AsyncCompute {
		return
	}
	for pi := range c.b.passes {
		p := &c.b.passes[pi]
		if p.kind == PassKindCompute && p.compute.Async && !c.plan.Passes[pi].Culled {
			c.plan.Passes[pi].Queue = rhi.QueueAsyncCompute
		}
	}
}

// checkCrossQueueHazards rejects a writer and another user of the same
// resource on different queues inside one batch.
func (c *compiler) checkCrossQueueHazards() error {
	for pi := range c.plan.Passes {
		pp := &c.plan.Passes[pi]
		if pp.Culled {
			continue
		}
		for _, r := range pp.Reads {
			w := c.plan.Resources[r].Writer
			if w < 0 || w == pi {
				continue
			}
			wp := &c.plan.Passes[w]
			if wp.Batch == pp.Batch && wp.Queue != pp.Queue {
				return &GraphError{Op: "compile", Pass: pp.Name, Resource: c.plan.Resources[r].Label,
					Err: fmt.Errorf("%w (written by pass %q on %v)", ErrMissingSyncPoint, wp.Name, wp.Queue)}
			}
		}
	}
	return nil
}

// scheduleSubmissions groups surviving passes into one submission per
// (batch, queue) and derives the semaphore waits.
//
// Within a batch the async submission goes first. A submission waits on
// every earlier-batch submission of the other queue its queue has not
// already waited on. The final main submission also joins async work of
// its own batch, so the caller's fence covers the whole frame, and so does
// the main submission of a batch whose async stream carries transitions
// for both queues.
func (c *compiler) scheduleSubmissions() {
	plan := c.plan
	var subs []SubmissionPlan
	for batch := 0; batch < plan.Batches; batch++ {
		for _, q := range [...]rhi.QueueType{rhi.QueueAsyncCompute, rhi.QueueMain} {
			var passes []int
			for pi := range plan.Passes {
				pp := &plan.Passes[pi]
				if !pp.Culled && pp.Batch == batch && pp.Queue == q {
					passes = append(passes, pi)
				}
			}
			if len(passes) > 0 {
				subs = append(subs, SubmissionPlan{Batch: batch, Queue: q, Passes: passes})
			}
		}
	}
	if len(subs) == 0 || subs[len(subs)-1].Queue != rhi.QueueMain {
		subs = append(subs, SubmissionPlan{Batch: plan.Batches - 1, Queue: rhi.QueueMain})
	}
	subs[len(subs)-1].Final = true

	waited := map[rhi.QueueType][]bool{
		rhi.QueueMain:         make([]bool, len(subs)),
		rhi.QueueAsyncCompute: make([]bool, len(subs)),
	}
	for i := range subs {
		s := &subs[i]
		for j := 0; j < i; j++ {
			prev := &subs[j]
			if prev.Queue == s.Queue || waited[s.Queue][j] {
				continue
			}
			sameBatch := prev.Batch == s.Batch && s.Queue == rhi.QueueMain && c.joined[s.Batch]
			if prev.Batch < s.Batch || s.Final || sameBatch {
				s.Waits = append(s.Waits, j)
				waited[s.Queue][j] = true
				prev.Signal = true
			}
		}
	}
	plan.Submissions = subs
}

func (b *Builder) logPlan(plan *Plan) {
	for i := range plan.Resources {
		if plan.Resources[i].Culled {
			b.log.Debug("framegraph: resource culled", "resource", plan.Resources[i].Label)
		}
	}
	for i := range plan.Passes {
		if plan.Passes[i].Culled {
			b.log.Debug("framegraph: pass culled", "pass", plan.Passes[i].Name)
		}
	}
}
