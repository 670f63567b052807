package recording

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/rhi"
	"github.com/gogpu/gputypes"
)

// ErrRecorderState is returned by End when the recorder was used out of order.
var ErrRecorderState = errors.New("recording: invalid recorder state")

type recorderState uint8

const (
	stateIdle recorderState = iota
	stateRecording
	stateInPass
	stateEnded
)

// CommandBuffer is a finished list of commands for one queue.
type CommandBuffer struct {
	*Object

	// Queue is the queue the buffer was recorded for.
	Queue rhi.QueueType

	// Commands are the recorded commands in order.
	Commands []Command
}

// CommandRecorder implements rhi.CommandRecorder by appending typed commands.
type CommandRecorder struct {
	device   *Device
	label    string
	queue    rhi.QueueType
	state    recorderState
	pass     CommandType
	commands []Command
	err      error
}

// Begin implements rhi.CommandRecorder.
func (r *CommandRecorder) Begin() error {
	if r.state != stateIdle {
		return fmt.Errorf("%w: Begin on %q", ErrRecorderState, r.label)
	}
	r.state = stateRecording
	return nil
}

func (r *CommandRecorder) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %s", ErrRecorderState, r.label, fmt.Sprintf(format, args...))
	}
}

// Barriers implements rhi.CommandRecorder.
func (r *CommandRecorder) Barriers(buffers []rhi.BufferBarrier, textures []rhi.TextureBarrier) {
	if r.state != stateRecording {
		r.fail("Barriers outside of recording")
		return
	}
	if len(buffers) == 0 && len(textures) == 0 {
		return
	}
	r.commands = append(r.commands, BarriersCommand{
		Buffers:  append([]rhi.BufferBarrier(nil), buffers...),
		Textures: append([]rhi.TextureBarrier(nil), textures...),
	})
}

func (r *CommandRecorder) beginPass(cmd Command) *passEncoder {
	if r.state != stateRecording {
		r.fail("%v outside of recording", cmd.Type())
	}
	r.state = stateInPass
	r.pass = cmd.Type()
	r.commands = append(r.commands, cmd)
	return &passEncoder{rec: r}
}

// BeginCopyPass implements rhi.CommandRecorder.
func (r *CommandRecorder) BeginCopyPass(label string) rhi.CopyPassEncoder {
	return r.beginPass(BeginCopyPassCommand{Label: label})
}

// BeginComputePass implements rhi.CommandRecorder.
func (r *CommandRecorder) BeginComputePass(label string) rhi.ComputePassEncoder {
	if r.queue != rhi.QueueMain && r.queue != rhi.QueueAsyncCompute {
		r.fail("compute pass on %v queue", r.queue)
	}
	return r.beginPass(BeginComputePassCommand{Label: label})
}

// BeginRasterPass implements rhi.CommandRecorder.
func (r *CommandRecorder) BeginRasterPass(desc *rhi.RasterPassDesc) rhi.RasterPassEncoder {
	if r.queue != rhi.QueueMain {
		r.fail("raster pass %q on %v queue", desc.Label, r.queue)
	}
	d := *desc
	d.ColorAttachments = append([]rhi.ColorAttachment(nil), desc.ColorAttachments...)
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		d.DepthStencil = &ds
	}
	return r.beginPass(BeginRasterPassCommand{Desc: d})
}

// End implements rhi.CommandRecorder.
func (r *CommandRecorder) End() (rhi.CommandBuffer, error) {
	if r.state != stateRecording {
		r.fail("End in state %d", r.state)
	}
	r.state = stateEnded
	if r.err != nil {
		return nil, r.err
	}
	o, err := r.device.newObject(OpEnd, KindCommandBuffer, r.label, nil, nil)
	if err != nil {
		return nil, err
	}
	return &CommandBuffer{Object: o, Queue: r.queue, Commands: r.commands}, nil
}

// Discard implements rhi.CommandRecorder.
func (r *CommandRecorder) Discard() {
	r.state = stateEnded
	r.commands = nil
}

// passEncoder implements the copy, compute and raster pass encoders.
type passEncoder struct {
	rec   *CommandRecorder
	ended bool
}

func (e *passEncoder) push(cmd Command, allowed ...CommandType) {
	r := e.rec
	if e.ended || r.state != stateInPass {
		r.fail("%v outside of a pass", cmd.Type())
		return
	}
	if len(allowed) > 0 && !containsType(allowed, r.pass) {
		r.fail("%v in %v", cmd.Type(), r.pass)
		return
	}
	r.commands = append(r.commands, cmd)
}

func containsType(list []CommandType, t CommandType) bool {
	for _, x := range list {
		if x == t {
			return true
		}
	}
	return false
}

func (e *passEncoder) CopyBufferToBuffer(src rhi.Buffer, srcOffset uint64, dst rhi.Buffer, dstOffset uint64, size uint64) {
	e.push(CopyBufferToBufferCommand{Src: src, SrcOffset: srcOffset, Dst: dst, DstOffset: dstOffset, Size: size}, CmdBeginCopyPass)
}

func (e *passEncoder) CopyBufferToTexture(src rhi.Buffer, dst rhi.Texture, region rhi.BufferTextureCopy) {
	e.push(CopyBufferToTextureCommand{Src: src, Dst: dst, Region: region}, CmdBeginCopyPass)
}

func (e *passEncoder) CopyTextureToBuffer(src rhi.Texture, dst rhi.Buffer, region rhi.BufferTextureCopy) {
	e.push(CopyTextureToBufferCommand{Src: src, Dst: dst, Region: region}, CmdBeginCopyPass)
}

func (e *passEncoder) SetPipeline(p rhi.Object) {
	e.push(SetPipelineCommand{Pipeline: p}, CmdBeginComputePass, CmdBeginRasterPass)
}

func (e *passEncoder) SetBindGroup(index uint32, g rhi.BindGroup) {
	e.push(SetBindGroupCommand{Index: index, Group: g}, CmdBeginComputePass, CmdBeginRasterPass)
}

func (e *passEncoder) Dispatch(x, y, z uint32) {
	e.push(DispatchCommand{X: x, Y: y, Z: z}, CmdBeginComputePass)
}

func (e *passEncoder) SetVertexBuffer(slot uint32, b rhi.Buffer, offset uint64) {
	e.push(SetVertexBufferCommand{Slot: slot, Buffer: b, Offset: offset}, CmdBeginRasterPass)
}

func (e *passEncoder) SetIndexBuffer(b rhi.Buffer, format gputypes.IndexFormat, offset uint64) {
	e.push(SetIndexBufferCommand{Buffer: b, Format: format, Offset: offset}, CmdBeginRasterPass)
}

func (e *passEncoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	e.push(DrawCommand{
		VertexCount:   vertexCount,
		InstanceCount: instanceCount,
		FirstVertex:   firstVertex,
		FirstInstance: firstInstance,
	}, CmdBeginRasterPass)
}

func (e *passEncoder) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	e.push(DrawIndexedCommand{
		IndexCount:    indexCount,
		InstanceCount: instanceCount,
		FirstIndex:    firstIndex,
		BaseVertex:    baseVertex,
		FirstInstance: firstInstance,
	}, CmdBeginRasterPass)
}

func (e *passEncoder) End() {
	if e.ended {
		e.rec.fail("pass ended twice")
		return
	}
	e.ended = true
	if e.rec.state == stateInPass {
		e.rec.commands = append(e.rec.commands, EndPassCommand{})
		e.rec.state = stateRecording
	}
}
