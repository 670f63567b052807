// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rhi

import (
	"fmt"

	"github.com/gogpu/gputypes"
)

// QueueType identifies a device queue.
type QueueType uint8

const (
	// QueueMain is the graphics queue. Copy and raster work always runs here.
	QueueMain QueueType = iota

	// QueueAsyncCompute is a second compute-capable queue.
	QueueAsyncCompute
)

// String returns the queue name.
func (q QueueType) String() string {
	switch q {
	case QueueMain:
		return "main"
	case QueueAsyncCompute:
		return "async-compute"
	default:
		return fmt.Sprintf("QueueType(%d)", q)
	}
}

// Capabilities describes what a device offers the scheduler.
type Capabilities struct {
	// ComputeQueueCount is the number of compute-capable queues, including
	// the main queue. Async compute needs at least two.
	ComputeQueueCount int
}

// BufferDesc describes a buffer.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage gputypes.BufferUsage
}

// TextureDesc describes a texture.
type TextureDesc struct {
	Label         string
	Size          gputypes.Extent3D
	MipLevelCount uint32
	SampleCount   uint32
	Dimension     gputypes.TextureDimension
	Format        gputypes.TextureFormat
	Usage         gputypes.TextureUsage
}

// BufferViewDesc describes a range of a buffer.
// A Size of 0 means the rest of the buffer after Offset.
type BufferViewDesc struct {
	Label  string
	Offset uint64
	Size   uint64
	Stride uint32
}

// TextureViewDesc describes a sub-resource range of a texture.
type TextureViewDesc struct {
	Label           string
	Format          gputypes.TextureFormat
	Dimension       gputypes.TextureViewDimension
	Aspect          gputypes.TextureAspect
	BaseMipLevel    uint32
	MipLevelCount   uint32
	BaseArrayLayer  uint32
	ArrayLayerCount uint32

	// Usage restricts the view to attachment or binding use.
	Usage gputypes.TextureUsage
}

// SamplerDesc describes a sampler.
type SamplerDesc struct {
	Label        string
	AddressModeU gputypes.AddressMode
	AddressModeV gputypes.AddressMode
	AddressModeW gputypes.AddressMode
	MagFilter    gputypes.FilterMode
	MinFilter    gputypes.FilterMode
	MipmapFilter gputypes.FilterMode
}

// BindingType is the kind of resource bound at a bind group slot.
type BindingType uint8

const (
	// BindingUniformBuffer is a read-only uniform buffer.
	BindingUniformBuffer BindingType = iota

	// BindingStorageBuffer is a read-write storage buffer.
	BindingStorageBuffer

	// BindingTexture is a sampled texture.
	BindingTexture

	// BindingStorageTexture is a read-write storage texture.
	BindingStorageTexture

	// BindingSampler is a sampler.
	BindingSampler
)

// bindingTypeNames maps BindingType values to their string representation.
var bindingTypeNames = [...]string{
	BindingUniformBuffer:  "UniformBuffer",
	BindingStorageBuffer:  "StorageBuffer",
	BindingTexture:        "Texture",
	BindingStorageTexture: "StorageTexture",
	BindingSampler:        "Sampler",
}

// String returns the binding type name.
func (t BindingType) String() string {
	if int(t) < len(bindingTypeNames) {
		return bindingTypeNames[t]
	}
	return fmt.Sprintf("BindingType(%d)", t)
}

// BindGroupLayoutEntry describes one slot of a bind group layout.
type BindGroupLayoutEntry struct {
	Binding    uint32
	Visibility gputypes.ShaderStage
	Type       BindingType

	// ViewDimension applies to texture and storage texture slots.
	ViewDimension gputypes.TextureViewDimension

	// Format applies to storage texture slots.
	Format gputypes.TextureFormat
}

// BindGroupLayoutDesc describes a bind group layout.
type BindGroupLayoutDesc struct {
	Label   string
	Entries []BindGroupLayoutEntry
}

// BindGroupEntry binds one physical object to a slot. Exactly one of
// Buffer, TextureView or Sampler is set, matching Type.
type BindGroupEntry struct {
	Binding     uint32
	Type        BindingType
	Buffer      Buffer
	Offset      uint64
	Size        uint64
	TextureView TextureView
	Sampler     Sampler
}

// BindGroupDesc describes a bind group.
type BindGroupDesc struct {
	Label   string
	Layout  BindGroupLayout
	Entries []BindGroupEntry
}

// ShaderModuleDesc describes a shader module from SPIR-V words.
type ShaderModuleDesc struct {
	Label string
	SPIRV []uint32
}

// ComputePipelineDesc describes a compute pipeline.
type ComputePipelineDesc struct {
	Label      string
	Module     ShaderModule
	EntryPoint string
	Layouts    []BindGroupLayout
}

// BufferTextureCopy describes one buffer/texture copy region.
type BufferTextureCopy struct {
	Offset       uint64
	BytesPerRow  uint32
	RowsPerImage uint32
	MipLevel     uint32
	Origin       gputypes.Origin3D
	Size         gputypes.Extent3D
}

// ColorAttachment is a raster pass color target.
type ColorAttachment struct {
	View          TextureView
	ResolveTarget TextureView
	LoadOp        gputypes.LoadOp
	StoreOp       gputypes.StoreOp
	ClearValue    gputypes.Color
}

// DepthStencilAttachment is a raster pass depth-stencil target.
type DepthStencilAttachment struct {
	View              TextureView
	DepthLoadOp       gputypes.LoadOp
	DepthStoreOp      gputypes.StoreOp
	DepthClearValue   float32
	StencilLoadOp     gputypes.LoadOp
	StencilStoreOp    gputypes.StoreOp
	StencilClearValue uint32
}

// RasterPassDesc describes a raster pass.
type RasterPassDesc struct {
	Label            string
	ColorAttachments []ColorAttachment
	DepthStencil     *DepthStencilAttachment
}

// SubmitInfo describes one queue submission.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	Signal         []Semaphore

	// Fence, when set, is signaled with FenceValue once the submission completes.
	Fence      Fence
	FenceValue uint64
}

// PresentInfo describes a present operation.
type PresentInfo struct {
	Texture Texture
	Wait    []Semaphore
}
