//go:build !nogpu

package hal

import (
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/rhi"
)

type buffer struct {
	label string
	raw   hal.Buffer
	size  uint64
	owned bool
}

func (b *buffer) Label() string { return b.label }

type texture struct {
	label string
	raw   hal.Texture
	owned bool
}

func (t *texture) Label() string { return t.label }

// bufferView is a range of a buffer. HAL has no buffer view object; bind
// groups reference the parent buffer with the view's range.
type bufferView struct {
	label  string
	buf    *buffer
	offset uint64
	size   uint64
}

func (v *bufferView) Label() string { return v.label }

type textureView struct {
	label string
	raw   hal.TextureView
	owned bool
}

func (v *textureView) Label() string { return v.label }

type sampler struct {
	label string
	raw   hal.Sampler
}

func (s *sampler) Label() string { return s.label }

type bindGroupLayout struct {
	label string
	raw   hal.BindGroupLayout
}

func (l *bindGroupLayout) Label() string { return l.label }

type bindGroup struct {
	label string
	raw   hal.BindGroup
}

func (g *bindGroup) Label() string { return g.label }

type shaderModule struct {
	label string
	raw   hal.ShaderModule
}

func (m *shaderModule) Label() string { return m.label }

type computePipeline struct {
	label  string
	raw    hal.ComputePipeline
	layout hal.PipelineLayout
}

func (p *computePipeline) Label() string { return p.label }

type renderPipeline struct {
	label string
	raw   hal.RenderPipeline
}

func (p *renderPipeline) Label() string { return p.label }

type commandBuffer struct {
	label string
	raw   hal.CommandBuffer
	freed bool
}

func (c *commandBuffer) Label() string { return c.label }

// semaphore orders submissions. With a single queue, submission order
// already provides the ordering, so it carries nothing but its label.
type semaphore struct {
	label string
}

func (s *semaphore) Label() string { return s.label }

type fence struct {
	label string
	raw   hal.Fence
}

func (f *fence) Label() string { return f.label }

// WrapTexture wraps a texture the caller owns, such as a swapchain image,
// for import into a frame graph. DestroyTexture does not release it.
func WrapTexture(raw hal.Texture, label string) rhi.Texture {
	return &texture{label: label, raw: raw}
}

// WrapTextureView wraps a texture view the caller owns.
func WrapTextureView(raw hal.TextureView, label string) rhi.TextureView {
	return &textureView{label: label, raw: raw}
}

// WrapBuffer wraps a buffer the caller owns, such as a readback staging
// buffer. DestroyBuffer does not release it.
func WrapBuffer(raw hal.Buffer, label string, size uint64) rhi.Buffer {
	return &buffer{label: label, raw: raw, size: size}
}

// WrapRenderPipeline wraps a render pipeline for use in raster pass
// callbacks. Render pipelines are built by the application, not the pools.
func WrapRenderPipeline(raw hal.RenderPipeline, label string) rhi.RenderPipeline {
	return &renderPipeline{label: label, raw: raw}
}

// Unwrap returns the HAL object behind o, or nil if o was not created by
// this package. Semaphores and buffer views have no HAL counterpart.
func Unwrap(o rhi.Object) any {
	switch o := o.(type) {
	case *buffer:
		return o.raw
	case *texture:
		return o.raw
	case *textureView:
		return o.raw
	case *sampler:
		return o.raw
	case *bindGroupLayout:
		return o.raw
	case *bindGroup:
		return o.raw
	case *shaderModule:
		return o.raw
	case *computePipeline:
		return o.raw
	case *renderPipeline:
		return o.raw
	case *commandBuffer:
		return o.raw
	case *fence:
		return o.raw
	default:
		return nil
	}
}
