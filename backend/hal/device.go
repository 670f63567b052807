//go:build !nogpu

package hal

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/rhi"
)

var (
	// ErrForeignObject is returned when an object created by another
	// rhi.Device is passed to this one.
	ErrForeignObject = errors.New("hal: object does not belong to a HAL device")

	// ErrUnsupportedBinding is returned for bind group entries HAL cannot
	// express through this backend.
	ErrUnsupportedBinding = errors.New("hal: unsupported binding type")

	// ErrNoQueue is returned when work targets a queue the device lacks.
	ErrNoQueue = errors.New("hal: queue not available")

	// ErrFenceTimeout is returned by WaitFence when the fence does not reach
	// the value in time.
	ErrFenceTimeout = errors.New("hal: fence wait timed out")
)

// Device implements rhi.Device over a HAL device and queue.
//
// Device is safe for concurrent use.
type Device struct {
	device hal.Device
	queue  *queue

	mu         sync.Mutex
	submit     hal.Fence
	submitted  uint64
	destroyed  bool
	surfaceFmt gputypes.TextureFormat
}

// New wraps a HAL device and queue. The caller keeps ownership of both.
func New(device hal.Device, q hal.Queue) *Device {
	d := &Device{device: device}
	d.queue = &queue{dev: d, raw: q}
	return d
}

// HalDevice returns the wrapped HAL device.
func (d *Device) HalDevice() hal.Device { return d.device }

// HalQueue returns the wrapped HAL queue.
func (d *Device) HalQueue() hal.Queue { return d.queue.raw }

// SurfaceFormat returns the surface format reported by the provider the
// device was created from, or TextureFormatUndefined.
func (d *Device) SurfaceFormat() gputypes.TextureFormat { return d.surfaceFmt }

// Destroy releases the internal submission fence. The HAL device itself is
// left to its owner.
func (d *Device) Destroy() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.destroyed {
		return
	}
	d.destroyed = true
	if d.submit != nil {
		d.device.DestroyFence(d.submit)
		d.submit = nil
	}
}

// Capabilities implements rhi.Device. HAL exposes one queue.
func (d *Device) Capabilities() rhi.Capabilities {
	return rhi.Capabilities{ComputeQueueCount: 1}
}

// Queue implements rhi.Device.
func (d *Device) Queue(t rhi.QueueType) rhi.Queue {
	if t != rhi.QueueMain {
		return nil
	}
	return d.queue
}

// CreateBuffer implements rhi.Device.
func (d *Device) CreateBuffer(desc *rhi.BufferDesc) (rhi.Buffer, error) {
	raw, err := d.device.CreateBuffer(&hal.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create buffer %q: %w", desc.Label, err)
	}
	return &buffer{label: desc.Label, raw: raw, size: desc.Size, owned: true}, nil
}

// DestroyBuffer implements rhi.Device.
func (d *Device) DestroyBuffer(b rhi.Buffer) {
	if buf, ok := b.(*buffer); ok && buf.owned {
		d.device.DestroyBuffer(buf.raw)
	}
}

// CreateTexture implements rhi.Device.
func (d *Device) CreateTexture(desc *rhi.TextureDesc) (rhi.Texture, error) {
	raw, err := d.device.CreateTexture(&hal.TextureDescriptor{
		Label: desc.Label,
		Size: hal.Extent3D{
			Width:              desc.Size.Width,
			Height:             desc.Size.Height,
			DepthOrArrayLayers: max(desc.Size.DepthOrArrayLayers, 1),
		},
		MipLevelCount: max(desc.MipLevelCount, 1),
		SampleCount:   max(desc.SampleCount, 1),
		Dimension:     desc.Dimension,
		Format:        desc.Format,
		Usage:         desc.Usage,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create texture %q: %w", desc.Label, err)
	}
	return &texture{label: desc.Label, raw: raw, owned: true}, nil
}

// DestroyTexture implements rhi.Device.
func (d *Device) DestroyTexture(t rhi.Texture) {
	if tex, ok := t.(*texture); ok && tex.owned {
		d.device.DestroyTexture(tex.raw)
	}
}

// CreateBufferView implements rhi.Device.
func (d *Device) CreateBufferView(b rhi.Buffer, desc *rhi.BufferViewDesc) (rhi.BufferView, error) {
	buf, ok := b.(*buffer)
	if !ok {
		return nil, fmt.Errorf("%w: buffer view %q", ErrForeignObject, desc.Label)
	}
	size := desc.Size
	if size == 0 {
		if desc.Offset > buf.size {
			return nil, fmt.Errorf("hal: buffer view %q: offset %d past buffer size %d", desc.Label, desc.Offset, buf.size)
		}
		size = buf.size - desc.Offset
	}
	return &bufferView{label: desc.Label, buf: buf, offset: desc.Offset, size: size}, nil
}

// DestroyBufferView implements rhi.Device.
func (d *Device) DestroyBufferView(rhi.BufferView) {}

// CreateTextureView implements rhi.Device.
func (d *Device) CreateTextureView(t rhi.Texture, desc *rhi.TextureViewDesc) (rhi.TextureView, error) {
	tex, ok := t.(*texture)
	if !ok {
		return nil, fmt.Errorf("%w: texture view %q", ErrForeignObject, desc.Label)
	}
	raw, err := d.device.CreateTextureView(tex.raw, &hal.TextureViewDescriptor{
		Label:           desc.Label,
		Format:          desc.Format,
		Dimension:       desc.Dimension,
		Aspect:          desc.Aspect,
		BaseMipLevel:    desc.BaseMipLevel,
		MipLevelCount:   desc.MipLevelCount,
		BaseArrayLayer:  desc.BaseArrayLayer,
		ArrayLayerCount: desc.ArrayLayerCount,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create texture view %q: %w", desc.Label, err)
	}
	return &textureView{label: desc.Label, raw: raw, owned: true}, nil
}

// DestroyTextureView implements rhi.Device.
func (d *Device) DestroyTextureView(v rhi.TextureView) {
	if view, ok := v.(*textureView); ok && view.owned {
		d.device.DestroyTextureView(view.raw)
	}
}

// CreateSampler implements rhi.Device.
func (d *Device) CreateSampler(desc *rhi.SamplerDesc) (rhi.Sampler, error) {
	raw, err := d.device.CreateSampler(&hal.SamplerDescriptor{
		Label:        desc.Label,
		AddressModeU: desc.AddressModeU,
		AddressModeV: desc.AddressModeV,
		AddressModeW: desc.AddressModeW,
		MagFilter:    desc.MagFilter,
		MinFilter:    desc.MinFilter,
		MipmapFilter: desc.MipmapFilter,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create sampler %q: %w", desc.Label, err)
	}
	return &sampler{label: desc.Label, raw: raw}, nil
}

// DestroySampler implements rhi.Device.
func (d *Device) DestroySampler(s rhi.Sampler) {
	if smp, ok := s.(*sampler); ok {
		d.device.DestroySampler(smp.raw)
	}
}

// CreateBindGroupLayout implements rhi.Device.
func (d *Device) CreateBindGroupLayout(desc *rhi.BindGroupLayoutDesc) (rhi.BindGroupLayout, error) {
	entries := make([]gputypes.BindGroupLayoutEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		entry := gputypes.BindGroupLayoutEntry{
			Binding:    e.Binding,
			Visibility: e.Visibility,
		}
		switch e.Type {
		case rhi.BindingUniformBuffer:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeUniform}
		case rhi.BindingStorageBuffer:
			entry.Buffer = &gputypes.BufferBindingLayout{Type: gputypes.BufferBindingTypeStorage}
		case rhi.BindingTexture:
			dim := e.ViewDimension
			if dim == 0 {
				dim = gputypes.TextureViewDimension2D
			}
			entry.Texture = &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: dim,
			}
		case rhi.BindingSampler:
			entry.Sampler = &gputypes.SamplerBindingLayout{Type: gputypes.SamplerBindingTypeFiltering}
		default:
			return nil, fmt.Errorf("%w: layout %q binding %d: %v", ErrUnsupportedBinding, desc.Label, e.Binding, e.Type)
		}
		entries[i] = entry
	}

	raw, err := d.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   desc.Label,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create bind group layout %q: %w", desc.Label, err)
	}
	return &bindGroupLayout{label: desc.Label, raw: raw}, nil
}

// DestroyBindGroupLayout implements rhi.Device.
func (d *Device) DestroyBindGroupLayout(l rhi.BindGroupLayout) {
	if layout, ok := l.(*bindGroupLayout); ok {
		d.device.DestroyBindGroupLayout(layout.raw)
	}
}

// CreateBindGroup implements rhi.Device.
func (d *Device) CreateBindGroup(desc *rhi.BindGroupDesc) (rhi.BindGroup, error) {
	layout, ok := desc.Layout.(*bindGroupLayout)
	if !ok {
		return nil, fmt.Errorf("%w: bind group %q layout", ErrForeignObject, desc.Label)
	}

	entries := make([]gputypes.BindGroupEntry, len(desc.Entries))
	for i, e := range desc.Entries {
		switch e.Type {
		case rhi.BindingUniformBuffer, rhi.BindingStorageBuffer:
			buf, ok := e.Buffer.(*buffer)
			if !ok {
				return nil, fmt.Errorf("%w: bind group %q binding %d", ErrForeignObject, desc.Label, e.Binding)
			}
			entries[i] = gputypes.BindGroupEntry{
				Binding:  e.Binding,
				Resource: gputypes.BufferBinding{Buffer: buf.raw.NativeHandle(), Offset: e.Offset, Size: e.Size},
			}
		default:
			// TODO: bind texture views and samplers once gputypes exposes
			// native handles for them.
			return nil, fmt.Errorf("%w: bind group %q binding %d: %v", ErrUnsupportedBinding, desc.Label, e.Binding, e.Type)
		}
	}

	raw, err := d.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   desc.Label,
		Layout:  layout.raw,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create bind group %q: %w", desc.Label, err)
	}
	return &bindGroup{label: desc.Label, raw: raw}, nil
}

// DestroyBindGroup implements rhi.Device.
func (d *Device) DestroyBindGroup(g rhi.BindGroup) {
	if group, ok := g.(*bindGroup); ok {
		d.device.DestroyBindGroup(group.raw)
	}
}

// CreateShaderModule implements rhi.Device.
func (d *Device) CreateShaderModule(desc *rhi.ShaderModuleDesc) (rhi.ShaderModule, error) {
	raw, err := d.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  desc.Label,
		Source: hal.ShaderSource{SPIRV: desc.SPIRV},
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create shader module %q: %w", desc.Label, err)
	}
	return &shaderModule{label: desc.Label, raw: raw}, nil
}

// DestroyShaderModule implements rhi.Device.
func (d *Device) DestroyShaderModule(m rhi.ShaderModule) {
	if mod, ok := m.(*shaderModule); ok {
		d.device.DestroyShaderModule(mod.raw)
	}
}

// CreateComputePipeline implements rhi.Device. The pipeline owns a pipeline
// layout built from desc.Layouts.
func (d *Device) CreateComputePipeline(desc *rhi.ComputePipelineDesc) (rhi.ComputePipeline, error) {
	mod, ok := desc.Module.(*shaderModule)
	if !ok {
		return nil, fmt.Errorf("%w: compute pipeline %q module", ErrForeignObject, desc.Label)
	}
	layouts := make([]hal.BindGroupLayout, len(desc.Layouts))
	for i, l := range desc.Layouts {
		layout, ok := l.(*bindGroupLayout)
		if !ok {
			return nil, fmt.Errorf("%w: compute pipeline %q layout %d", ErrForeignObject, desc.Label, i)
		}
		layouts[i] = layout.raw
	}

	pipeLayout, err := d.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            desc.Label + "_layout",
		BindGroupLayouts: layouts,
	})
	if err != nil {
		return nil, fmt.Errorf("hal: create pipeline layout %q: %w", desc.Label, err)
	}
	raw, err := d.device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: pipeLayout,
		Compute: hal.ComputeState{
			Module:     mod.raw,
			EntryPoint: desc.EntryPoint,
		},
	})
	if err != nil {
		d.device.DestroyPipelineLayout(pipeLayout)
		return nil, fmt.Errorf("hal: create compute pipeline %q: %w", desc.Label, err)
	}
	return &computePipeline{label: desc.Label, raw: raw, layout: pipeLayout}, nil
}

// DestroyComputePipeline implements rhi.Device.
func (d *Device) DestroyComputePipeline(p rhi.ComputePipeline) {
	if pipe, ok := p.(*computePipeline); ok {
		d.device.DestroyComputePipeline(pipe.raw)
		d.device.DestroyPipelineLayout(pipe.layout)
	}
}

// CreateSemaphore implements rhi.Device.
func (d *Device) CreateSemaphore(label string) (rhi.Semaphore, error) {
	return &semaphore{label: label}, nil
}

// DestroySemaphore implements rhi.Device.
func (d *Device) DestroySemaphore(rhi.Semaphore) {}

// CreateFence creates a fence for rhi.SubmitInfo.Fence.
func (d *Device) CreateFence(label string) (rhi.Fence, error) {
	raw, err := d.device.CreateFence()
	if err != nil {
		return nil, fmt.Errorf("hal: create fence %q: %w", label, err)
	}
	return &fence{label: label, raw: raw}, nil
}

// DestroyFence destroys a fence created by CreateFence.
func (d *Device) DestroyFence(f rhi.Fence) {
	if fc, ok := f.(*fence); ok {
		d.device.DestroyFence(fc.raw)
	}
}

// WaitFence blocks until f reaches value or timeout elapses.
func (d *Device) WaitFence(f rhi.Fence, value uint64, timeout time.Duration) error {
	fc, ok := f.(*fence)
	if !ok {
		return fmt.Errorf("%w: fence", ErrForeignObject)
	}
	reached, err := d.device.Wait(fc.raw, value, timeout)
	if err != nil {
		return fmt.Errorf("hal: wait fence %q: %w", fc.label, err)
	}
	if !reached {
		return fmt.Errorf("%w: %q value %d after %v", ErrFenceTimeout, fc.label, value, timeout)
	}
	return nil
}

// CreateCommandRecorder implements rhi.Device.
func (d *Device) CreateCommandRecorder(label string, q rhi.QueueType) (rhi.CommandRecorder, error) {
	if q != rhi.QueueMain {
		return nil, fmt.Errorf("%w: %v", ErrNoQueue, q)
	}
	enc, err := d.device.CreateCommandEncoder(&hal.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("hal: create command encoder %q: %w", label, err)
	}
	return &recorder{label: label, enc: enc}, nil
}

// FreeCommandBuffer implements rhi.Device.
func (d *Device) FreeCommandBuffer(cb rhi.CommandBuffer) {
	if c, ok := cb.(*commandBuffer); ok && !c.freed {
		c.freed = true
		d.device.FreeCommandBuffer(c.raw)
	}
}

// nextSubmitFence returns the internal fence and the value the next
// submission without a caller fence signals.
func (d *Device) nextSubmitFence() (hal.Fence, uint64, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.submit == nil {
		f, err := d.device.CreateFence()
		if err != nil {
			return nil, 0, fmt.Errorf("hal: create submit fence: %w", err)
		}
		d.submit = f
	}
	d.submitted++
	return d.submit, d.submitted, nil
}

// textureUsage maps a resource state to the HAL texture usage it implies.
func textureUsage(s rhi.ResourceState) gputypes.TextureUsage {
	switch s {
	case rhi.StateCopySrc:
		return gputypes.TextureUsageCopySrc
	case rhi.StateCopyDst:
		return gputypes.TextureUsageCopyDst
	case rhi.StateShaderRead, rhi.StateUnorderedAccess:
		return gputypes.TextureUsageTextureBinding
	case rhi.StateRenderTarget, rhi.StateDepthStencilWrite, rhi.StatePresent:
		return gputypes.TextureUsageRenderAttachment
	default:
		return 0
	}
}
