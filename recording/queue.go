package recording

import (
	"fmt"

	"github.com/gogpu/framegraph/rhi"
)

// Submission is one recorded queue submission.
type Submission struct {
	Queue          rhi.QueueType
	CommandBuffers []*CommandBuffer
	Wait           []rhi.Semaphore
	Signal         []rhi.Semaphore
	Fence          rhi.Fence
	FenceValue     uint64
}

// Present is one recorded present operation.
type Present struct {
	Texture rhi.Texture
	Wait    []rhi.Semaphore
}

// Queue implements rhi.Queue for a Device.
type Queue struct {
	device *Device
	typ    rhi.QueueType
}

// Type implements rhi.Queue.
func (q *Queue) Type() rhi.QueueType { return q.typ }

// Submit implements rhi.Queue. Barriers in the command buffers are applied
// to the device's tracked resource states in order.
func (q *Queue) Submit(info *rhi.SubmitInfo) error {
	d := q.device
	if err := d.fault(OpSubmit); err != nil {
		return err
	}

	sub := &Submission{
		Queue:      q.typ,
		Wait:       append([]rhi.Semaphore(nil), info.Wait...),
		Signal:     append([]rhi.Semaphore(nil), info.Signal...),
		Fence:      info.Fence,
		FenceValue: info.FenceValue,
	}
	for i, c := range info.CommandBuffers {
		cb, ok := c.(*CommandBuffer)
		if !ok || cb == nil {
			return fmt.Errorf("recording: submit: command buffer %d is %T", i, c)
		}
		if cb.Destroyed() {
			return fmt.Errorf("recording: submit: %v was freed", cb.Object)
		}
		if cb.Queue != q.typ {
			return fmt.Errorf("recording: submit: %v recorded for %v, submitted to %v", cb.Object, cb.Queue, q.typ)
		}
		sub.CommandBuffers = append(sub.CommandBuffers, cb)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	for _, s := range info.Wait {
		o, _ := s.(*Object)
		if o == nil || !d.signaled[o] {
			d.violations = append(d.violations, fmt.Sprintf("%v submission waits on unsignaled %v", q.typ, s))
			continue
		}
		// Binary semaphores are consumed by the wait.
		delete(d.signaled, o)
	}
	for _, cb := range sub.CommandBuffers {
		for _, cmd := range cb.Commands {
			if b, ok := cmd.(BarriersCommand); ok {
				d.applyBarriers(cb, b)
			}
		}
	}
	for _, s := range info.Signal {
		if o, ok := s.(*Object); ok {
			d.signaled[o] = true
		}
	}
	d.submissions = append(d.submissions, sub)
	return nil
}

// applyBarriers updates tracked states. Must be called with d.mu held.
func (d *Device) applyBarriers(cb *CommandBuffer, b BarriersCommand) {
	apply := func(obj rhi.Object, before, after rhi.ResourceState) {
		o, ok := obj.(*Object)
		if !ok {
			return
		}
		// Any state may be discarded by a transition from undefined.
		if cur, known := d.states[o]; known && before != rhi.StateUndefined && cur != before {
			d.violations = append(d.violations,
				fmt.Sprintf("%s: barrier on %v expects %v, resource is %v", cb.Label(), o, before, cur))
		}
		d.states[o] = after
	}
	for _, bb := range b.Buffers {
		apply(bb.Buffer, bb.Before, bb.After)
	}
	for _, tb := range b.Textures {
		apply(tb.Texture, tb.Before, tb.After)
	}
}

// Present implements rhi.Queue.
func (q *Queue) Present(info *rhi.PresentInfo) error {
	d := q.device
	if err := d.fault(OpPresent); err != nil {
		return err
	}
	if q.typ != rhi.QueueMain {
		return fmt.Errorf("recording: present on %v queue", q.typ)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if o, ok := info.Texture.(*Object); ok {
		if s, known := d.states[o]; !known || s != rhi.StatePresent {
			d.violations = append(d.violations, fmt.Sprintf("present of %v in state %v", o, s))
		}
	}
	for _, s := range info.Wait {
		o, _ := s.(*Object)
		if o == nil || !d.signaled[o] {
			d.violations = append(d.violations, fmt.Sprintf("present waits on unsignaled %v", s))
			continue
		}
		delete(d.signaled, o)
	}
	d.presents = append(d.presents, Present{
		Texture: info.Texture,
		Wait:    append([]rhi.Semaphore(nil), info.Wait...),
	})
	return nil
}
