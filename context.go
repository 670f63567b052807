package framegraph

import "github.com/gogpu/framegraph/rhi"

// PassContext is handed to a PassFunc while its pass is being recorded.
// It exposes the pass encoder and resolves graph handles to the physical
// objects chosen by devirtualization.
//
// Resolving a handle that is invalid or culled returns nil and fails the
// pass; Execute reports the first such error after the PassFunc returns.
type PassContext struct {
	b     *Builder
	name  string
	kind  PassKind
	queue rhi.QueueType

	copyEnc    rhi.CopyPassEncoder
	computeEnc rhi.ComputePassEncoder
	rasterEnc  rhi.RasterPassEncoder

	err error
}

// Name returns the pass name.
func (c *PassContext) Name() string { return c.name }

// Kind returns the pass kind.
func (c *PassContext) Kind() PassKind { return c.kind }

// Queue returns the queue the pass is recorded for.
func (c *PassContext) Queue() rhi.QueueType { return c.queue }

// Copy returns the encoder of a copy pass, nil for other kinds.
func (c *PassContext) Copy() rhi.CopyPassEncoder { return c.copyEnc }

// Compute returns the encoder of a compute pass, nil for other kinds.
func (c *PassContext) Compute() rhi.ComputePassEncoder { return c.computeEnc }

// Raster returns the encoder of a raster pass, nil for other kinds.
func (c *PassContext) Raster() rhi.RasterPassEncoder { return c.rasterEnc }

// Buffer resolves a buffer handle.
func (c *PassContext) Buffer(h Buffer) rhi.Buffer {
	obj, err := c.b.physicalResource(h.ref, ResourceKindBuffer)
	return c.check(obj, err, h.String())
}

// Texture resolves a texture handle.
func (c *PassContext) Texture(h Texture) rhi.Texture {
	obj, err := c.b.physicalResource(h.ref, ResourceKindTexture)
	return c.check(obj, err, h.String())
}

// BufferView resolves a buffer view handle.
func (c *PassContext) BufferView(h BufferView) rhi.BufferView {
	obj, err := c.b.physicalView(h.ref, ResourceKindBuffer)
	return c.check(obj, err, h.String())
}

// TextureView resolves a texture view handle.
func (c *PassContext) TextureView(h TextureView) rhi.TextureView {
	obj, err := c.b.physicalView(h.ref, ResourceKindTexture)
	return c.check(obj, err, h.String())
}

// BindGroup resolves a bind group handle.
func (c *PassContext) BindGroup(h BindGroup) rhi.BindGroup {
	obj, err := c.b.RHIBindGroup(h)
	return c.check(obj, err, h.String())
}

// Err returns the first resolution error, if any.
func (c *PassContext) Err() error { return c.err }

func (c *PassContext) check(obj rhi.Object, err error, what string) rhi.Object {
	if err != nil {
		if c.err == nil {
			c.err = &GraphError{Op: "resolve", Pass: c.name, Resource: what, Err: err}
		}
		return nil
	}
	return obj
}

// run invokes fn and folds in resolution errors.
func (c *PassContext) run(fn PassFunc) error {
	if fn == nil {
		return nil
	}
	if err := fn(c); err != nil {
		return err
	}
	return c.err
}
