package framegraph

import (
	"fmt"

	"github.com/gogpu/framegraph/rhi"
)

// ExecuteInfo carries the caller's synchronization for one frame.
type ExecuteInfo struct {
	// WaitSemaphores are waited on by the first main-queue submission.
	WaitSemaphores []rhi.Semaphore

	// SignalSemaphores are signaled by the final main-queue submission.
	SignalSemaphores []rhi.Semaphore

	// Fence, when set, is signaled with FenceValue by the final main-queue
	// submission, which waits for all async work of the frame.
	Fence      rhi.Fence
	FenceValue uint64

	// Present, when set, is presented after submission. It must be an
	// imported texture; it is returned in StatePresent.
	Present *Texture
}

// frameObjects are per-frame device objects freed by Release.
type frameObjects struct {
	devirtualized  bool
	commandBuffers []rhi.CommandBuffer
	semaphores     []rhi.Semaphore
}

func (f *frameObjects) free(device rhi.Device) {
	for _, cb := range f.commandBuffers {
		device.FreeCommandBuffer(cb)
	}
	for _, s := range f.semaphores {
		device.DestroySemaphore(s)
	}
	f.commandBuffers = nil
	f.semaphores = nil
}

// stream is the live recording state of one planned submission.
type stream struct {
	plan   *SubmissionPlan
	rec    rhi.CommandRecorder
	cb     rhi.CommandBuffer
	signal rhi.Semaphore
}

// Execute compiles, devirtualizes, records and submits the graph. It is
// terminal: the builder cannot be mutated afterwards, even if Execute fails.
//
// Pass callbacks run in declaration order. Any callback, recorder or queue
// error abandons the frame and is returned; nothing is retried.
func (b *Builder) Execute(info ExecuteInfo) error {
	if err := b.checkMutable("execute"); err != nil {
		return err
	}
	b.executed = true

	present := -1
	if info.Present != nil {
		r, err := b.lookupResource(info.Present.ref, ResourceKindTexture)
		if err != nil {
			return &GraphError{Op: "execute", Err: err}
		}
		if !r.isImported() {
			return &GraphError{Op: "execute", Resource: r.label,
				Err: fmt.Errorf("%w: present texture must be imported", ErrInvalidDescriptor)}
		}
		present = int(info.Present.index)
	}

	plan, err := b.Compile()
	if err != nil {
		return err
	}
	if err := b.devirtualize(); err != nil {
		return err
	}
	return b.run(plan, &info, present)
}

func (b *Builder) run(plan *Plan, info *ExecuteInfo, present int) (err error) {
	streams := make([]stream, len(plan.Submissions))
	streamOf := make([]int, len(plan.Passes))
	for si := range plan.Submissions {
		for _, pi := range plan.Submissions[si].Passes {
			streamOf[pi] = si
		}
	}
	defer func() {
		if err == nil {
			return
		}
		for i := range streams {
			if streams[i].rec != nil && streams[i].cb == nil {
				streams[i].rec.Discard()
			}
		}
	}()

	for si := range streams {
		sp := &plan.Submissions[si]
		label := fmt.Sprintf("%s/batch%d/%v", plan.Label, sp.Batch, sp.Queue)
		rec, err := b.device.CreateCommandRecorder(label, sp.Queue)
		if err != nil {
			return &GraphError{Op: "execute", Err: fmt.Errorf("create command recorder: %w", err)}
		}
		streams[si] = stream{plan: sp, rec: rec}
		if err := rec.Begin(); err != nil {
			return &GraphError{Op: "execute", Err: fmt.Errorf("begin %s: %w", label, err)}
		}
	}

	for pi := range plan.Passes {
		pp := &plan.Passes[pi]
		if pp.Culled {
			continue
		}
		rec := streams[streamOf[pi]].rec
		b.recordBarriers(rec, pp.Barriers)
		if err := b.recordPass(rec, pi, pp); err != nil {
			return err
		}
		b.recordBarriers(rec, pp.Handoff)
	}
	b.recordBarriers(streams[len(streams)-1].rec, closingTransitions(plan, present))

	for i := range streams {
		cb, err := streams[i].rec.End()
		if err != nil {
			return &GraphError{Op: "execute", Err: fmt.Errorf("end command recorder: %w", err)}
		}
		streams[i].cb = cb
		b.frame.commandBuffers = append(b.frame.commandBuffers, cb)
	}

	for i := range streams {
		if !streams[i].plan.Signal {
			continue
		}
		s, err := b.newSemaphore(fmt.Sprintf("%s/signal%d", plan.Label, i))
		if err != nil {
			return err
		}
		streams[i].signal = s
	}
	var presentSem rhi.Semaphore
	if present >= 0 {
		if presentSem, err = b.newSemaphore(plan.Label + "/present"); err != nil {
			return err
		}
	}

	firstMain := true
	for i := range streams {
		s := &streams[i]
		sp := s.plan
		submit := &rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{s.cb}}
		if sp.Queue == rhi.QueueMain && firstMain {
			submit.Wait = append(submit.Wait, info.WaitSemaphores...)
			firstMain = false
		}
		for _, w := range sp.Waits {
			submit.Wait = append(submit.Wait, streams[w].signal)
		}
		if s.signal != nil {
			submit.Signal = append(submit.Signal, s.signal)
		}
		if sp.Final {
			submit.Signal = append(submit.Signal, info.SignalSemaphores...)
			if presentSem != nil {
				submit.Signal = append(submit.Signal, presentSem)
			}
			submit.Fence = info.Fence
			submit.FenceValue = info.FenceValue
		}

		if err := b.device.Queue(sp.Queue).Submit(submit); err != nil {
			return &GraphError{Op: "execute",
				Err: fmt.Errorf("%w: %v batch %d: %w", ErrSubmitFailed, sp.Queue, sp.Batch, err)}
		}
		b.log.Debug("framegraph: submitted",
			"queue", sp.Queue, "batch", sp.Batch, "passes", len(sp.Passes),
			"waits", len(submit.Wait), "signals", len(submit.Signal))
	}

	if present >= 0 {
		err := b.device.Queue(rhi.QueueMain).Present(&rhi.PresentInfo{
			Texture: b.resources[present].physical,
			Wait:    []rhi.Semaphore{presentSem},
		})
		if err != nil {
			return &GraphError{Op: "present", Resource: b.resources[present].label,
				Err: fmt.Errorf("%w: %w", ErrSubmitFailed, err)}
		}
	}
	return nil
}

func (b *Builder) newSemaphore(label string) (rhi.Semaphore, error) {
	s, err := b.device.CreateSemaphore(label)
	if err != nil {
		return nil, &GraphError{Op: "execute", Err: fmt.Errorf("create semaphore: %w", err)}
	}
	b.frame.semaphores = append(b.frame.semaphores, s)
	return s, nil
}

// closingTransitions returns imported resources to their final state. The
// presented texture always ends in StatePresent.
func closingTransitions(plan *Plan, present int) []Transition {
	var out []Transition
	for i := range plan.Resources {
		rp := &plan.Resources[i]
		if !rp.Imported {
			continue
		}
		target := rp.FinalState
		if i == present {
			target = rhi.StatePresent
		}
		if rp.EndState != target {
			out = append(out, Transition{Resource: i, Before: rp.EndState, After: target})
		}
	}
	return out
}

func (b *Builder) recordBarriers(rec rhi.CommandRecorder, ts []Transition) {
	if len(ts) == 0 {
		return
	}
	var (
		bufs []rhi.BufferBarrier
		texs []rhi.TextureBarrier
	)
	for _, t := range ts {
		r := &b.resources[t.Resource]
		b.log.Debug("framegraph: barrier", "resource", resourceLabel(r, t.Resource),
			"before", t.Before, "after", t.After)
		switch r.kind {
		case ResourceKindBuffer:
			bufs = append(bufs, rhi.BufferBarrier{Buffer: r.physical, Before: t.Before, After: t.After})
		case ResourceKindTexture:
			texs = append(texs, rhi.TextureBarrier{Texture: r.physical, Before: t.Before, After: t.After})
		}
	}
	rec.Barriers(bufs, texs)
}

// recordPass opens the pass encoder, binds the declared bind groups, runs
// the callback and closes the encoder.
func (b *Builder) recordPass(rec rhi.CommandRecorder, pi int, pp *PassPlan) error {
	p := &b.passes[pi]
	ctx := &PassContext{b: b, name: p.name, kind: p.kind, queue: pp.Queue}

	var err error
	switch p.kind {
	case PassKindCopy:
		enc := rec.BeginCopyPass(p.name)
		ctx.copyEnc = enc
		err = ctx.run(p.fn)
		enc.End()
	case PassKindCompute:
		enc := rec.BeginComputePass(p.name)
		for i, g := range p.compute.BindGroups {
			enc.SetBindGroup(uint32(i), b.bindGroups[g.index].physical)
		}
		ctx.computeEnc = enc
		err = ctx.run(p.fn)
		enc.End()
	case PassKindRaster:
		enc := rec.BeginRasterPass(b.rasterPassDesc(p))
		for i, g := range p.raster.BindGroups {
			enc.SetBindGroup(uint32(i), b.bindGroups[g.index].physical)
		}
		ctx.rasterEnc = enc
		err = ctx.run(p.fn)
		enc.End()
	}
	if err != nil {
		return &GraphError{Op: "execute", Pass: p.name, Err: err}
	}
	return nil
}

func (b *Builder) rasterPassDesc(p *pass) *rhi.RasterPassDesc {
	desc := &rhi.RasterPassDesc{
		Label:            p.name,
		ColorAttachments: make([]rhi.ColorAttachment, len(p.raster.ColorAttachments)),
	}
	for i, ca := range p.raster.ColorAttachments {
		out := rhi.ColorAttachment{
			View:       b.views[ca.View.index].physical,
			LoadOp:     ca.LoadOp,
			StoreOp:    ca.StoreOp,
			ClearValue: ca.ClearValue,
		}
		if ca.ResolveTarget.IsValid() {
			out.ResolveTarget = b.views[ca.ResolveTarget.index].physical
		}
		desc.ColorAttachments[i] = out
	}
	if ds := p.raster.DepthStencil; ds != nil {
		desc.DepthStencil = &rhi.DepthStencilAttachment{
			View:              b.views[ds.View.index].physical,
			DepthLoadOp:       ds.DepthLoadOp,
			DepthStoreOp:      ds.DepthStoreOp,
			DepthClearValue:   ds.DepthClearValue,
			StencilLoadOp:     ds.StencilLoadOp,
			StencilStoreOp:    ds.StencilStoreOp,
			StencilClearValue: ds.StencilClearValue,
		}
	}
	return desc
}
