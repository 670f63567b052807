package framegraph

import (
	"fmt"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/rhi"
)

// acquisition is a pooled object held by this builder until Release.
type acquisition struct {
	kind  ResourceKind
	lease pool.Lease
}

// devirtualize binds every surviving resource, view and bind group to a
// physical object. Graph-owned resources come from the pools, imported ones
// map to their own handle. Views of culled resources and bind groups that
// bind them stay unrealized.
func (b *Builder) devirtualize() error {
	for i := range b.resources {
		r := &b.resources[i]
		if r.culled {
			continue
		}
		if r.isImported() {
			r.physical = r.imported
			continue
		}

		var (
			lease pool.Lease
			err   error
		)
		switch r.kind {
		case ResourceKindBuffer:
			lease, err = b.pools.Buffers.GetOrCreate(r.bufferDesc)
		case ResourceKindTexture:
			lease, err = b.pools.Textures.GetOrCreate(r.textureDesc)
		}
		if err != nil {
			return &GraphError{Op: "devirtualize", Resource: resourceLabel(r, i),
				Err: fmt.Errorf("%w: %w", ErrResourceExhausted, err)}
		}
		r.physical = lease.Object
		b.acquired = append(b.acquired, acquisition{kind: r.kind, lease: lease})
	}

	for i := range b.views {
		v := &b.views[i]
		owner := &b.resources[v.owner]
		if owner.culled {
			continue
		}
		var err error
		switch v.kind {
		case ResourceKindBuffer:
			v.physical, err = b.pools.Views.Buffer(owner.physical, v.bufferDesc)
		case ResourceKindTexture:
			v.physical, err = b.pools.Views.Texture(owner.physical, v.textureDesc)
		}
		if err != nil {
			return &GraphError{Op: "devirtualize", Resource: resourceLabel(owner, int(v.owner)),
				Err: fmt.Errorf("%w: view: %w", ErrResourceExhausted, err)}
		}
	}

	for i := range b.bindGroups {
		g := &b.bindGroups[i]
		desc, ok := b.resolveBindGroup(g)
		if !ok {
			continue
		}
		phys, err := b.pools.BindGroups.GetOrCreate(desc)
		if err != nil {
			return &GraphError{Op: "devirtualize", Resource: g.desc.Label,
				Err: fmt.Errorf("%w: bind group: %w", ErrResourceExhausted, err)}
		}
		g.physical = phys
	}

	b.frame.devirtualized = true
	b.log.Debug("framegraph: devirtualized", "acquired", len(b.acquired))
	return nil
}

// resolveBindGroup maps every entry to physical objects. ok is false if any
// bound view is unrealized.
func (b *Builder) resolveBindGroup(g *bindGroup) (*rhi.BindGroupDesc, bool) {
	desc := &rhi.BindGroupDesc{
		Label:   g.desc.Label,
		Layout:  g.desc.Layout,
		Entries: make([]rhi.BindGroupEntry, 0, len(g.desc.Entries)),
	}
	for _, e := range g.desc.Entries {
		out := rhi.BindGroupEntry{Binding: e.Binding, Type: e.Type}
		switch e.Type {
		case rhi.BindingUniformBuffer, rhi.BindingStorageBuffer:
			v := &b.views[e.Buffer.index]
			if v.physical == nil {
				return nil, false
			}
			out.Buffer = b.resources[v.owner].physical
			out.Offset = v.bufferDesc.Offset
			out.Size = v.bufferDesc.Size
		case rhi.BindingTexture, rhi.BindingStorageTexture:
			v := &b.views[e.Texture.index]
			if v.physical == nil {
				return nil, false
			}
			out.TextureView = v.physical
		case rhi.BindingSampler:
			out.Sampler = e.Sampler
		}
		desc.Entries = append(desc.Entries, out)
	}
	return desc, true
}
