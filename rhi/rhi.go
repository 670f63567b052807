// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rhi

import "github.com/gogpu/gputypes"

// Object is implemented by every physical object a Device hands out.
type Object interface {
	// Label returns the debug label the object was created with.
	Label() string
}

// Physical object kinds. They are distinct names for documentation; any
// Object satisfies each of them.
type (
	Buffer          = Object
	Texture         = Object
	BufferView      = Object
	TextureView     = Object
	Sampler         = Object
	BindGroupLayout = Object
	BindGroup       = Object
	ShaderModule    = Object
	ComputePipeline = Object
	RenderPipeline  = Object
	CommandBuffer   = Object
	Semaphore       = Object
	Fence           = Object
)

// Device creates physical objects and command recorders.
//
// Resource lifecycle:
//   - Objects are created via Create* methods
//   - Objects must be explicitly destroyed via Destroy* methods
//   - Destroying an object still referenced by in-flight work is undefined
//
// Implementations must be safe for concurrent use; pools shared between
// render threads call into the same device.
type Device interface {
	// Capabilities reports queue availability.
	Capabilities() Capabilities

	// Queue returns the queue of the given type, or nil if the device has none.
	Queue(t QueueType) Queue

	CreateBuffer(desc *BufferDesc) (Buffer, error)
	DestroyBuffer(b Buffer)

	CreateTexture(desc *TextureDesc) (Texture, error)
	DestroyTexture(t Texture)

	CreateBufferView(b Buffer, desc *BufferViewDesc) (BufferView, error)
	DestroyBufferView(v BufferView)

	CreateTextureView(t Texture, desc *TextureViewDesc) (TextureView, error)
	DestroyTextureView(v TextureView)

	CreateSampler(desc *SamplerDesc) (Sampler, error)
	DestroySampler(s Sampler)

	CreateBindGroupLayout(desc *BindGroupLayoutDesc) (BindGroupLayout, error)
	DestroyBindGroupLayout(l BindGroupLayout)

	// CreateBindGroup creates a bind group. Buffer entries carry the physical
	// buffer of a buffer view together with the view's range.
	CreateBindGroup(desc *BindGroupDesc) (BindGroup, error)
	DestroyBindGroup(g BindGroup)

	CreateShaderModule(desc *ShaderModuleDesc) (ShaderModule, error)
	DestroyShaderModule(m ShaderModule)

	CreateComputePipeline(desc *ComputePipelineDesc) (ComputePipeline, error)
	DestroyComputePipeline(p ComputePipeline)

	CreateSemaphore(label string) (Semaphore, error)
	DestroySemaphore(s Semaphore)

	// CreateCommandRecorder returns a recorder whose command buffer may only
	// be submitted to the queue of type q.
	CreateCommandRecorder(label string, q QueueType) (CommandRecorder, error)
	FreeCommandBuffer(cb CommandBuffer)
}

// Queue accepts command buffers for execution.
type Queue interface {
	// Type returns the queue type.
	Type() QueueType

	// Submit executes command buffers after the wait semaphores are signaled,
	// then signals the signal semaphores and the fence.
	Submit(info *SubmitInfo) error

	// Present presents a texture once the wait semaphores are signaled.
	Present(info *PresentInfo) error
}

// CommandRecorder records commands into a single command buffer.
//
// State machine:
//
//	Idle      -> Begin()          -> Recording
//	Recording -> Begin*Pass       -> InPass
//	InPass    -> encoder.End()    -> Recording
//	Recording -> End()            -> Ended
//
// A CommandRecorder is not safe for concurrent use.
type CommandRecorder interface {
	Begin() error

	// Barriers records state transitions. Either slice may be empty.
	Barriers(buffers []BufferBarrier, textures []TextureBarrier)

	BeginCopyPass(label string) CopyPassEncoder
	BeginComputePass(label string) ComputePassEncoder
	BeginRasterPass(desc *RasterPassDesc) RasterPassEncoder

	// End finishes recording and returns the command buffer.
	End() (CommandBuffer, error)

	// Discard abandons recording.
	Discard()
}

// CopyPassEncoder records transfer commands.
type CopyPassEncoder interface {
	CopyBufferToBuffer(src Buffer, srcOffset uint64, dst Buffer, dstOffset uint64, size uint64)
	CopyBufferToTexture(src Buffer, dst Texture, region BufferTextureCopy)
	CopyTextureToBuffer(src Texture, dst Buffer, region BufferTextureCopy)
	End()
}

// ComputePassEncoder records dispatches.
type ComputePassEncoder interface {
	SetPipeline(p ComputePipeline)
	SetBindGroup(index uint32, g BindGroup)
	Dispatch(x, y, z uint32)
	End()
}

// RasterPassEncoder records draws.
type RasterPassEncoder interface {
	SetPipeline(p RenderPipeline)
	SetBindGroup(index uint32, g BindGroup)
	SetVertexBuffer(slot uint32, b Buffer, offset uint64)
	SetIndexBuffer(b Buffer, format gputypes.IndexFormat, offset uint64)
	Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32)
	DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32)
	End()
}
