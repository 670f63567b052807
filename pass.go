package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/rhi"
)

// PassKind is the closed set of pass variants.
type PassKind uint8

const (
	PassKindCopy PassKind = iota
	PassKindCompute
	PassKindRaster
)

// passKindNames maps PassKind values to their string representation.
var passKindNames = [...]string{
	PassKindCopy:    "copy",
	PassKindCompute: "compute",
	PassKindRaster:  "raster",
}

func (k PassKind) String() string {
	if int(k) < len(passKindNames) {
		return passKindNames[k]
	}
	return fmt.Sprintf("PassKind(%d)", k)
}

// PassFunc records a pass. It runs during Execute only if the pass survives
// culling. A nil PassFunc records an empty pass, which is enough for a
// raster pass that only clears its attachments.
type PassFunc func(ctx *PassContext) error

// CopyPassDesc lists the resources a copy pass reads and writes.
type CopyPassDesc struct {
	Srcs []Resource
	Dsts []Resource
}

// ComputePassDesc describes a compute pass. Bind groups are bound at indices
// 0..n-1 before the PassFunc runs.
type ComputePassDesc struct {
	BindGroups []BindGroup

	// Async requests the async compute queue. It is honored only when the
	// device has a second compute-capable queue.
	Async bool
}

// ColorAttachment is a raster pass color target. Attachments are writes of
// the viewed texture regardless of LoadOp.
type ColorAttachment struct {
	View          TextureView
	ResolveTarget TextureView // zero value means none
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

// RasterPassDesc describes a raster pass. Bind groups are bound at indices
// 0..n-1 before the PassFunc runs.
type RasterPassDesc struct {
	BindGroups       []BindGroup
	ColorAttachments []ColorAttachment
	DepthStencil     *DepthStencilAttachment
}

// pass is an immutable record of one added pass.
type pass struct {
	name  string
	kind  PassKind
	batch int

	copy    CopyPassDesc
	compute ComputePassDesc
	raster  RasterPassDesc

	fn PassFunc
}

// access is one use of a resource by a pass.
type access struct {
	res   uint32
	state rhi.ResourceState

	// uniform marks a uniform buffer read, which needs no transition unless
	// the resource was last left in a write state.
	uniform bool

	// read is set when any use of the resource by the pass reads it, even
	// if the merged state is a write.
	read bool
}

// accesses returns the merged uses of every resource the pass touches, in
// first-use order. When a pass uses a resource more than once, a write
// state wins over a read state and the read is kept in the read flag.
func (b *Builder) accesses(p *pass) []access {
	var raw []access
	switch p.kind {
	case PassKindCopy:
		for _, r := range p.copy.Srcs {
			raw = append(raw, access{res: r.resourceRef().index, state: rhi.StateCopySrc})
		}
		for _, r := range p.copy.Dsts {
			raw = append(raw, access{res: r.resourceRef().index, state: rhi.StateCopyDst})
		}
	case PassKindCompute:
		raw = b.bindGroupAccesses(raw, p.compute.BindGroups)
	case PassKindRaster:
		raw = b.bindGroupAccesses(raw, p.raster.BindGroups)
		for i := range p.raster.ColorAttachments {
			ca := &p.raster.ColorAttachments[i]
			raw = append(raw, access{res: b.views[ca.View.index].owner, state: rhi.StateRenderTarget})
			if ca.ResolveTarget.IsValid() {
				raw = append(raw, access{res: b.views[ca.ResolveTarget.index].owner, state: rhi.StateRenderTarget})
			}
		}
		if ds := p.raster.DepthStencil; ds != nil {
			raw = append(raw, access{res: b.views[ds.View.index].owner, state: rhi.StateDepthStencilWrite})
		}
	}
	return mergeAccesses(raw)
}

func (b *Builder) bindGroupAccesses(dst []access, groups []BindGroup) []access {
	for _, g := range groups {
		entries := b.bindGroups[g.index].desc.Entries
		for i := range entries {
			if a, ok := b.entryAccess(&entries[i]); ok {
				dst = append(dst, a)
			}
		}
	}
	return dst
}

func mergeAccesses(raw []access) []access {
	merged := raw[:0:0]
	pos := make(map[uint32]int, len(raw))
	for _, a := range raw {
		a.read = !a.state.IsWrite()
		i, seen := pos[a.res]
		if !seen {
			pos[a.res] = len(merged)
			merged = append(merged, a)
			continue
		}
		cur := &merged[i]
		read := cur.read || a.read
		switch {
		case cur.state.IsWrite():
		case a.state.IsWrite():
			*cur = a
		case cur.uniform && !a.uniform:
			*cur = a
		}
		cur.read = read
	}
	return merged
}

// validatePass checks every handle the pass references.
func (b *Builder) validatePass(p *pass) error {
	switch p.kind {
	case PassKindCopy:
		if len(p.copy.Srcs) == 0 && len(p.copy.Dsts) == 0 {
			return fmt.Errorf("%w: copy pass declares no resources", ErrInvalidDescriptor)
		}
		for _, list := range [][]Resource{p.copy.Srcs, p.copy.Dsts} {
			for _, r := range list {
				if r == nil {
					return ErrInvalidHandle
				}
				if _, err := b.lookupResource(r.resourceRef(), r.resourceKind()); err != nil {
					return err
				}
			}
		}
	case PassKindCompute:
		return b.validateBindGroupRefs(p.compute.BindGroups)
	case PassKindRaster:
		if err := b.validateBindGroupRefs(p.raster.BindGroups); err != nil {
			return err
		}
		if len(p.raster.ColorAttachments) == 0 && p.raster.DepthStencil == nil {
			return fmt.Errorf("%w: raster pass has no attachments", ErrInvalidDescriptor)
		}
		for _, ca := range p.raster.ColorAttachments {
			if _, err := b.lookupView(ca.View.ref, ResourceKindTexture); err != nil {
				return err
			}
			if ca.ResolveTarget.IsValid() {
				if _, err := b.lookupView(ca.ResolveTarget.ref, ResourceKindTexture); err != nil {
					return err
				}
			}
		}
		if ds := p.raster.DepthStencil; ds != nil {
			if _, err := b.lookupView(ds.View.ref, ResourceKindTexture); err != nil {
				return err
			}
		}
	}
	return nil
}

func (b *Builder) validateBindGroupRefs(groups []BindGroup) error {
	for _, g := range groups {
		if _, err := b.lookupBindGroup(g.ref); err != nil {
			return err
		}
	}
	return nil
}
