//go:build !nogpu

package hal

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/framegraph/rhi"
)

// recorder implements rhi.CommandRecorder over a HAL command encoder.
//
// Pass encoders cannot return errors, so a foreign object passed to one is
// remembered and reported by End.
type recorder struct {
	label string
	enc   hal.CommandEncoder
	err   error
}

func (r *recorder) fail(format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *recorder) Begin() error {
	if err := r.enc.BeginEncoding(r.label); err != nil {
		return fmt.Errorf("hal: begin encoding %q: %w", r.label, err)
	}
	return nil
}

// Barriers records texture usage transitions. Buffer transitions are tracked
// by the HAL and only logged.
func (r *recorder) Barriers(buffers []rhi.BufferBarrier, textures []rhi.TextureBarrier) {
	if len(buffers) > 0 {
		slogger().Debug("hal: buffer barriers left to the driver", "recorder", r.label, "count", len(buffers))
	}
	if len(textures) == 0 {
		return
	}
	barriers := make([]hal.TextureBarrier, 0, len(textures))
	for _, b := range textures {
		tex, ok := b.Texture.(*texture)
		if !ok {
			r.fail("%w: barrier texture %q", ErrForeignObject, labelOf(b.Texture))
			continue
		}
		barriers = append(barriers, hal.TextureBarrier{
			Texture: tex.raw,
			Usage: hal.TextureUsageTransition{
				OldUsage: textureUsage(b.Before),
				NewUsage: textureUsage(b.After),
			},
		})
	}
	if len(barriers) > 0 {
		r.enc.TransitionTextures(barriers)
	}
}

func (r *recorder) BeginCopyPass(string) rhi.CopyPassEncoder {
	return &copyPass{r: r}
}

func (r *recorder) BeginComputePass(label string) rhi.ComputePassEncoder {
	return &computePass{r: r, pass: r.enc.BeginComputePass(&hal.ComputePassDescriptor{Label: label})}
}

func (r *recorder) BeginRasterPass(desc *rhi.RasterPassDesc) rhi.RasterPassEncoder {
	halDesc := &hal.RenderPassDescriptor{
		Label:            desc.Label,
		ColorAttachments: make([]hal.RenderPassColorAttachment, 0, len(desc.ColorAttachments)),
	}
	for _, a := range desc.ColorAttachments {
		view, ok := a.View.(*textureView)
		if !ok {
			r.fail("%w: color attachment %q", ErrForeignObject, labelOf(a.View))
			continue
		}
		att := hal.RenderPassColorAttachment{
			View:       view.raw,
			LoadOp:     a.LoadOp,
			StoreOp:    a.StoreOp,
			ClearValue: a.ClearValue,
		}
		if a.ResolveTarget != nil {
			resolve, ok := a.ResolveTarget.(*textureView)
			if !ok {
				r.fail("%w: resolve target %q", ErrForeignObject, labelOf(a.ResolveTarget))
				continue
			}
			att.ResolveTarget = resolve.raw
		}
		halDesc.ColorAttachments = append(halDesc.ColorAttachments, att)
	}
	if ds := desc.DepthStencil; ds != nil {
		if view, ok := ds.View.(*textureView); ok {
			halDesc.DepthStencilAttachment = &hal.RenderPassDepthStencilAttachment{
				View:              view.raw,
				DepthLoadOp:       ds.DepthLoadOp,
				DepthStoreOp:      ds.DepthStoreOp,
				DepthClearValue:   ds.DepthClearValue,
				StencilLoadOp:     ds.StencilLoadOp,
				StencilStoreOp:    ds.StencilStoreOp,
				StencilClearValue: ds.StencilClearValue,
			}
		} else {
			r.fail("%w: depth-stencil attachment %q", ErrForeignObject, labelOf(ds.View))
		}
	}
	return &rasterPass{r: r, pass: r.enc.BeginRenderPass(halDesc)}
}

func (r *recorder) End() (rhi.CommandBuffer, error) {
	if r.err != nil {
		r.enc.DiscardEncoding()
		return nil, r.err
	}
	raw, err := r.enc.EndEncoding()
	if err != nil {
		return nil, fmt.Errorf("hal: end encoding %q: %w", r.label, err)
	}
	return &commandBuffer{label: r.label, raw: raw}, nil
}

func (r *recorder) Discard() {
	r.enc.DiscardEncoding()
}

// copyPass records transfers directly on the command encoder; HAL has no
// copy pass object.
type copyPass struct {
	r *recorder
}

func (p *copyPass) CopyBufferToBuffer(src rhi.Buffer, srcOffset uint64, dst rhi.Buffer, dstOffset uint64, size uint64) {
	s, d := p.r.buffer(src), p.r.buffer(dst)
	if s == nil || d == nil {
		return
	}
	p.r.enc.CopyBufferToBuffer(s, d, []hal.BufferCopy{{
		SrcOffset: srcOffset,
		DstOffset: dstOffset,
		Size:      size,
	}})
}

func (p *copyPass) CopyBufferToTexture(src rhi.Buffer, dst rhi.Texture, region rhi.BufferTextureCopy) {
	b, t := p.r.buffer(src), p.r.texture(dst)
	if b == nil || t == nil {
		return
	}
	p.r.enc.CopyBufferToTexture(b, t, []hal.BufferTextureCopy{bufferTextureCopy(t, region)})
}

func (p *copyPass) CopyTextureToBuffer(src rhi.Texture, dst rhi.Buffer, region rhi.BufferTextureCopy) {
	t, b := p.r.texture(src), p.r.buffer(dst)
	if b == nil || t == nil {
		return
	}
	p.r.enc.CopyTextureToBuffer(t, b, []hal.BufferTextureCopy{bufferTextureCopy(t, region)})
}

func (p *copyPass) End() {}

func bufferTextureCopy(t hal.Texture, region rhi.BufferTextureCopy) hal.BufferTextureCopy {
	return hal.BufferTextureCopy{
		BufferLayout: hal.ImageDataLayout{
			Offset:       region.Offset,
			BytesPerRow:  region.BytesPerRow,
			RowsPerImage: region.RowsPerImage,
		},
		TextureBase: hal.ImageCopyTexture{
			Texture:  t,
			MipLevel: region.MipLevel,
			Origin:   hal.Origin3D{X: region.Origin.X, Y: region.Origin.Y, Z: region.Origin.Z},
		},
		Size: hal.Extent3D{
			Width:              region.Size.Width,
			Height:             region.Size.Height,
			DepthOrArrayLayers: max(region.Size.DepthOrArrayLayers, 1),
		},
	}
}

type computePass struct {
	r    *recorder
	pass hal.ComputePassEncoder
}

func (p *computePass) SetPipeline(pipe rhi.ComputePipeline) {
	cp, ok := pipe.(*computePipeline)
	if !ok {
		p.r.fail("%w: compute pipeline %q", ErrForeignObject, labelOf(pipe))
		return
	}
	p.pass.SetPipeline(cp.raw)
}

func (p *computePass) SetBindGroup(index uint32, g rhi.BindGroup) {
	if raw := p.r.bindGroup(g); raw != nil {
		p.pass.SetBindGroup(index, raw, nil)
	}
}

func (p *computePass) Dispatch(x, y, z uint32) { p.pass.Dispatch(x, y, z) }
func (p *computePass) End()                    { p.pass.End() }

type rasterPass struct {
	r    *recorder
	pass hal.RenderPassEncoder
}

func (p *rasterPass) SetPipeline(pipe rhi.RenderPipeline) {
	rp, ok := pipe.(*renderPipeline)
	if !ok {
		p.r.fail("%w: render pipeline %q", ErrForeignObject, labelOf(pipe))
		return
	}
	p.pass.SetPipeline(rp.raw)
}

func (p *rasterPass) SetBindGroup(index uint32, g rhi.BindGroup) {
	if raw := p.r.bindGroup(g); raw != nil {
		p.pass.SetBindGroup(index, raw, nil)
	}
}

func (p *rasterPass) SetVertexBuffer(slot uint32, b rhi.Buffer, offset uint64) {
	if raw := p.r.buffer(b); raw != nil {
		p.pass.SetVertexBuffer(slot, raw, offset)
	}
}

func (p *rasterPass) SetIndexBuffer(b rhi.Buffer, format gputypes.IndexFormat, offset uint64) {
	if raw := p.r.buffer(b); raw != nil {
		p.pass.SetIndexBuffer(raw, format, offset)
	}
}

func (p *rasterPass) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) {
	p.pass.Draw(vertexCount, instanceCount, firstVertex, firstInstance)
}

func (p *rasterPass) DrawIndexed(indexCount, instanceCount, firstIndex uint32, baseVertex int32, firstInstance uint32) {
	p.pass.DrawIndexed(indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
}

func (p *rasterPass) End() { p.pass.End() }

func (r *recorder) buffer(o rhi.Buffer) hal.Buffer {
	if b, ok := o.(*buffer); ok {
		return b.raw
	}
	r.fail("%w: buffer %q", ErrForeignObject, labelOf(o))
	return nil
}

func (r *recorder) texture(o rhi.Texture) hal.Texture {
	if t, ok := o.(*texture); ok {
		return t.raw
	}
	r.fail("%w: texture %q", ErrForeignObject, labelOf(o))
	return nil
}

func (r *recorder) bindGroup(o rhi.BindGroup) hal.BindGroup {
	if g, ok := o.(*bindGroup); ok {
		return g.raw
	}
	r.fail("%w: bind group %q", ErrForeignObject, labelOf(o))
	return nil
}

func labelOf(o rhi.Object) string {
	if o == nil {
		return "<nil>"
	}
	return o.Label()
}
