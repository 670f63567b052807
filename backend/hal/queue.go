//go:build !nogpu

package hal

import (
	"fmt"

	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/rhi"
)

// queue implements rhi.Queue over the single HAL queue.
type queue struct {
	dev *Device
	raw hal.Queue
}

func (q *queue) Type() rhi.QueueType { return rhi.QueueMain }

// Submit implements rhi.Queue. Wait and signal semaphores need no device
// work: everything runs on one queue in submission order.
func (q *queue) Submit(info *rhi.SubmitInfo) error {
	cmds := make([]hal.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		c, ok := cb.(*commandBuffer)
		if !ok {
			return fmt.Errorf("%w: command buffer %d", ErrForeignObject, i)
		}
		cmds[i] = c.raw
	}

	var (
		f     hal.Fence
		value uint64
	)
	if info.Fence != nil {
		fc, ok := info.Fence.(*fence)
		if !ok {
			return fmt.Errorf("%w: fence", ErrForeignObject)
		}
		f, value = fc.raw, info.FenceValue
	} else {
		var err error
		if f, value, err = q.dev.nextSubmitFence(); err != nil {
			return err
		}
	}

	if err := q.raw.Submit(cmds, f, value); err != nil {
		return fmt.Errorf("hal: submit: %w", err)
	}
	slogger().Debug("hal: submitted",
		"command_buffers", len(cmds),
		"waits", len(info.Wait),
		"signals", len(info.Signal),
		"fence_value", value)
	return nil
}

// Present implements rhi.Queue. The surface that owns the texture presents
// it; this only checks that the texture is a HAL texture.
func (q *queue) Present(info *rhi.PresentInfo) error {
	tex, ok := info.Texture.(*texture)
	if !ok {
		return fmt.Errorf("%w: present texture", ErrForeignObject)
	}
	slogger().Debug("hal: present ready", "texture", tex.label, "waits", len(info.Wait))
	return nil
}
