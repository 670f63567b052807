package graphfile

import (
	"errors"
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph"
	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/rhi"
)

// Usages given to the physical resources Build creates for imports.
const (
	importBufferUsage = gputypes.BufferUsageCopySrc | gputypes.BufferUsageCopyDst |
		gputypes.BufferUsageUniform | gputypes.BufferUsageStorage
	importTextureUsage = gputypes.TextureUsageCopySrc | gputypes.TextureUsageCopyDst |
		gputypes.TextureUsageTextureBinding | gputypes.TextureUsageRenderAttachment
)

// stateSetter is implemented by devices that track resource states, such as
// the recording device. Build seeds imported resources with their initial
// state.
type stateSetter interface {
	SetState(obj rhi.Object, s rhi.ResourceState)
}

// Graph holds the handles Build declared.
type Graph struct {
	device rhi.Device

	buffers  map[string]framegraph.Buffer
	textures map[string]framegraph.Texture
	res      map[string]*Resource

	bufferViews  map[string]framegraph.BufferView
	textureViews map[string]framegraph.TextureView

	imports []rhi.Object
	present *framegraph.Texture
	invoked []string
}

// Build declares f on g. Imported resources are created on device; call
// Destroy once the frame has completed to release them. Layouts and
// pipelines come from pools.
func (f *File) Build(g *framegraph.Builder, device rhi.Device, pools *pool.Pools) (*Graph, error) {
	if pools == nil {
		return nil, errors.New("graphfile: build needs pools")
	}
	gr := &Graph{
		device:       device,
		buffers:      make(map[string]framegraph.Buffer),
		textures:     make(map[string]framegraph.Texture),
		res:          make(map[string]*Resource),
		bufferViews:  make(map[string]framegraph.BufferView),
		textureViews: make(map[string]framegraph.TextureView),
	}
	if err := gr.declareResources(g, f.Resources); err != nil {
		gr.Destroy()
		return nil, err
	}
	for i := range f.Passes {
		if err := gr.declarePass(g, pools, &f.Passes[i]); err != nil {
			gr.Destroy()
			return nil, err
		}
	}
	for _, name := range f.ForceUsed {
		if err := g.ForceUsed(gr.resource(name)); err != nil {
			gr.Destroy()
			return nil, fmt.Errorf("graphfile: force_used %q: %w", name, err)
		}
	}
	if f.Present != "" {
		tex := gr.textures[f.Present]
		gr.present = &tex
	}
	return gr, nil
}

func (gr *Graph) declareResources(g *framegraph.Builder, resources []Resource) error {
	for i := range resources {
		r := &resources[i]
		gr.res[r.Name] = r
		format, _ := ParseFormat(r.Format)

		if !r.Import {
			var err error
			switch r.Kind {
			case kindBuffer:
				gr.buffers[r.Name], err = g.CreateBuffer(framegraph.BufferDesc{Label: r.Name, Size: r.Size})
			case kindTexture:
				gr.textures[r.Name], err = g.CreateTexture(framegraph.TextureDesc{
					Label:  r.Name,
					Size:   gputypes.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: 1},
					Format: format,
				})
			}
			if err != nil {
				return fmt.Errorf("graphfile: resource %q: %w", r.Name, err)
			}
			continue
		}

		initial, _ := ParseState(r.InitialState)
		final, _ := ParseState(r.FinalState)
		desc := framegraph.ImportDesc{Label: r.Name, InitialState: initial, FinalState: final}

		var (
			phys rhi.Object
			err  error
		)
		switch r.Kind {
		case kindBuffer:
			phys, err = gr.device.CreateBuffer(&rhi.BufferDesc{Label: r.Name, Size: r.Size, Usage: importBufferUsage})
			if err == nil {
				gr.imports = append(gr.imports, phys)
				gr.buffers[r.Name], err = g.ImportBuffer(phys, desc)
			}
		case kindTexture:
			phys, err = gr.device.CreateTexture(&rhi.TextureDesc{
				Label:         r.Name,
				Size:          gputypes.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: 1},
				MipLevelCount: 1,
				SampleCount:   1,
				Dimension:     gputypes.TextureDimension2D,
				Format:        format,
				Usage:         importTextureUsage,
			})
			if err == nil {
				gr.imports = append(gr.imports, phys)
				gr.textures[r.Name], err = g.ImportTexture(phys, desc)
			}
		}
		if err != nil {
			return fmt.Errorf("graphfile: import %q: %w", r.Name, err)
		}
		if s, ok := gr.device.(stateSetter); ok {
			s.SetState(phys, initial)
		}
	}
	return nil
}

func (gr *Graph) declarePass(g *framegraph.Builder, pools *pool.Pools, p *Pass) error {
	var err error
	switch p.Kind {
	case passSync:
		err = g.AddSyncPoint()
	case passCopy:
		err = gr.declareCopy(g, p)
	case passCompute:
		err = gr.declareCompute(g, pools, p)
	case passRaster:
		err = gr.declareRaster(g, pools, p)
	}
	if err != nil {
		return fmt.Errorf("graphfile: pass %q: %w", p.Name, err)
	}
	return nil
}

func (gr *Graph) declareCopy(g *framegraph.Builder, p *Pass) error {
	desc := framegraph.CopyPassDesc{}
	for _, name := range p.Srcs {
		desc.Srcs = append(desc.Srcs, gr.resource(name))
	}
	for _, name := range p.Dsts {
		desc.Dsts = append(desc.Dsts, gr.resource(name))
	}
	return g.AddCopyPass(p.Name, desc, func(ctx *framegraph.PassContext) error {
		gr.invoked = append(gr.invoked, p.Name)
		if len(p.Srcs) == 0 {
			return nil
		}
		for i, dst := range p.Dsts {
			gr.recordCopy(ctx, p.Srcs[min(i, len(p.Srcs)-1)], dst)
		}
		return nil
	})
}

// recordCopy copies the whole of src into dst, clamped to the smaller side.
func (gr *Graph) recordCopy(ctx *framegraph.PassContext, src, dst string) {
	s, d := gr.res[src], gr.res[dst]
	enc := ctx.Copy()
	switch {
	case s.Kind == kindBuffer && d.Kind == kindBuffer:
		enc.CopyBufferToBuffer(ctx.Buffer(gr.buffers[src]), 0, ctx.Buffer(gr.buffers[dst]), 0, min(s.Size, d.Size))
	case s.Kind == kindBuffer:
		enc.CopyBufferToTexture(ctx.Buffer(gr.buffers[src]), ctx.Texture(gr.textures[dst]), textureRegion(d))
	default:
		enc.CopyTextureToBuffer(ctx.Texture(gr.textures[src]), ctx.Buffer(gr.buffers[dst]), textureRegion(s))
	}
}

// textureRegion covers mip 0 of a 4-byte-per-texel texture with rows padded
// to 256 bytes.
func textureRegion(r *Resource) rhi.BufferTextureCopy {
	const rowAlignment = 256
	bytesPerRow := (r.Width*4 + rowAlignment - 1) / rowAlignment * rowAlignment
	return rhi.BufferTextureCopy{
		BytesPerRow:  bytesPerRow,
		RowsPerImage: r.Height,
		Size:         gputypes.Extent3D{Width: r.Width, Height: r.Height, DepthOrArrayLayers: 1},
	}
}

func (gr *Graph) declareCompute(g *framegraph.Builder, pools *pool.Pools, p *Pass) error {
	layoutDesc, entries, err := gr.bindings(g, p, gputypes.ShaderStageCompute)
	if err != nil {
		return err
	}

	var (
		pipeline rhi.ComputePipeline
		layout   rhi.BindGroupLayout
	)
	if p.Shader != "" {
		prog := &pool.ComputeProgram{Label: p.Name, WGSL: p.Shader}
		if len(entries) > 0 {
			prog.Layouts = []rhi.BindGroupLayoutDesc{layoutDesc}
		}
		cp, err := pools.Pipelines.Compute(prog)
		if err != nil {
			return err
		}
		pipeline = cp.Pipeline
		if len(cp.Layouts) > 0 {
			layout = cp.Layouts[0]
		}
	} else if len(entries) > 0 {
		if layout, err = pools.Layouts.GetOrCreate(&layoutDesc); err != nil {
			return err
		}
	}

	desc := framegraph.ComputePassDesc{Async: p.Async}
	if len(entries) > 0 {
		bg, err := g.AllocateBindGroup(framegraph.BindGroupDesc{Label: p.Name, Layout: layout, Entries: entries})
		if err != nil {
			return err
		}
		desc.BindGroups = []framegraph.BindGroup{bg}
	}

	x, y, z := uint32(1), uint32(1), uint32(1)
	for i, n := range p.Workgroups {
		switch i {
		case 0:
			x = n
		case 1:
			y = n
		case 2:
			z = n
		}
	}
	return g.AddComputePass(p.Name, desc, func(ctx *framegraph.PassContext) error {
		gr.invoked = append(gr.invoked, p.Name)
		if pipeline != nil {
			ctx.Compute().SetPipeline(pipeline)
		}
		ctx.Compute().Dispatch(x, y, z)
		return nil
	})
}

func (gr *Graph) declareRaster(g *framegraph.Builder, pools *pool.Pools, p *Pass) error {
	layoutDesc, entries, err := gr.bindings(g, p, gputypes.ShaderStageFragment)
	if err != nil {
		return err
	}

	desc := framegraph.RasterPassDesc{}
	if len(entries) > 0 {
		layout, err := pools.Layouts.GetOrCreate(&layoutDesc)
		if err != nil {
			return err
		}
		bg, err := g.AllocateBindGroup(framegraph.BindGroupDesc{Label: p.Name, Layout: layout, Entries: entries})
		if err != nil {
			return err
		}
		desc.BindGroups = []framegraph.BindGroup{bg}
	}
	for _, name := range p.Color {
		v, err := gr.textureView(g, name)
		if err != nil {
			return err
		}
		desc.ColorAttachments = append(desc.ColorAttachments, framegraph.ColorAttachment{
			View:    v,
			LoadOp:  gputypes.LoadOpClear,
			StoreOp: gputypes.StoreOpStore,
		})
	}
	if p.Depth != "" {
		v, err := gr.textureView(g, p.Depth)
		if err != nil {
			return err
		}
		desc.DepthStencil = &framegraph.DepthStencilAttachment{
			View:            v,
			DepthLoadOp:     gputypes.LoadOpClear,
			DepthStoreOp:    gputypes.StoreOpStore,
			DepthClearValue: 1,
			StencilLoadOp:   gputypes.LoadOpClear,
			StencilStoreOp:  gputypes.StoreOpDiscard,
		}
	}

	return g.AddRasterPass(p.Name, desc, func(ctx *framegraph.PassContext) error {
		gr.invoked = append(gr.invoked, p.Name)
		if p.Vertices > 0 {
			ctx.Raster().Draw(p.Vertices, 1, 0, 0)
		}
		return nil
	})
}

// bindings returns the layout and entries for a pass's uniform, storage,
// sampled and storage texture lists, numbered from 0 in that order.
func (gr *Graph) bindings(g *framegraph.Builder, p *Pass, stage gputypes.ShaderStage) (rhi.BindGroupLayoutDesc, []framegraph.BindGroupEntry, error) {
	layout := rhi.BindGroupLayoutDesc{Label: p.Name}
	var entries []framegraph.BindGroupEntry

	add := func(typ rhi.BindingType, names []string) error {
		for _, name := range names {
			binding := uint32(len(entries))
			layout.Entries = append(layout.Entries, rhi.BindGroupLayoutEntry{
				Binding:    binding,
				Visibility: stage,
				Type:       typ,
			})
			switch typ {
			case rhi.BindingUniformBuffer, rhi.BindingStorageBuffer:
				v, err := gr.bufferView(g, name)
				if err != nil {
					return err
				}
				entries = append(entries, framegraph.BindGroupEntry{Binding: binding, Type: typ, Buffer: v})
			default:
				v, err := gr.textureView(g, name)
				if err != nil {
					return err
				}
				entries = append(entries, framegraph.BindGroupEntry{Binding: binding, Type: typ, Texture: v})
			}
		}
		return nil
	}
	err := errors.Join(
		add(rhi.BindingUniformBuffer, p.Uniform),
		add(rhi.BindingStorageBuffer, p.Storage),
		add(rhi.BindingTexture, p.Sampled),
		add(rhi.BindingStorageTexture, p.StorageTextures),
	)
	return layout, entries, err
}

func (gr *Graph) bufferView(g *framegraph.Builder, name string) (framegraph.BufferView, error) {
	if v, ok := gr.bufferViews[name]; ok {
		return v, nil
	}
	v, err := g.CreateBufferView(gr.buffers[name], framegraph.BufferViewDesc{Label: name})
	if err != nil {
		return framegraph.BufferView{}, err
	}
	gr.bufferViews[name] = v
	return v, nil
}

func (gr *Graph) textureView(g *framegraph.Builder, name string) (framegraph.TextureView, error) {
	if v, ok := gr.textureViews[name]; ok {
		return v, nil
	}
	v, err := g.CreateTextureView(gr.textures[name], framegraph.TextureViewDesc{Label: name})
	if err != nil {
		return framegraph.TextureView{}, err
	}
	gr.textureViews[name] = v
	return v, nil
}

func (gr *Graph) resource(name string) framegraph.Resource {
	if gr.res[name].Kind == kindBuffer {
		return gr.buffers[name]
	}
	return gr.textures[name]
}

// Buffer returns the handle declared for name.
func (gr *Graph) Buffer(name string) (framegraph.Buffer, bool) {
	b, ok := gr.buffers[name]
	return b, ok
}

// Texture returns the handle declared for name.
func (gr *Graph) Texture(name string) (framegraph.Texture, bool) {
	t, ok := gr.textures[name]
	return t, ok
}

// ExecuteInfo returns execution parameters presenting the file's present
// texture, if any.
func (gr *Graph) ExecuteInfo() framegraph.ExecuteInfo {
	return framegraph.ExecuteInfo{Present: gr.present}
}

// Invoked returns the names of passes whose callbacks ran, in order.
func (gr *Graph) Invoked() []string {
	return gr.invoked
}

// Destroy destroys the physical resources created for imports.
func (gr *Graph) Destroy() {
	for _, obj := range gr.imports {
		if r := gr.res[obj.Label()]; r != nil && r.Kind == kindTexture {
			gr.device.DestroyTexture(obj)
		} else {
			gr.device.DestroyBuffer(obj)
		}
	}
	gr.imports = nil
}
