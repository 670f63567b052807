package framegraph

import (
	"fmt"

	"github.com/gogpu/framegraph/rhi"
)

// BindGroupEntry binds one view or sampler to a slot.
//
// Uniform buffer and texture bindings are reads of the owning resource;
// storage buffer and storage texture bindings are writes. Samplers touch no
// resource.
type BindGroupEntry struct {
	Binding uint32
	Type    rhi.BindingType

	// Buffer is set for uniform and storage buffer bindings.
	Buffer BufferView
	// Texture is set for texture and storage texture bindings.
	Texture TextureView
	// Sampler is set for sampler bindings.
	Sampler rhi.Sampler
}

// BindGroupDesc describes a bind group attached to a compute or raster pass.
type BindGroupDesc struct {
	Label   string
	Layout  rhi.BindGroupLayout
	Entries []BindGroupEntry
}

// UniformBuffer returns a uniform buffer entry.
func UniformBuffer(binding uint32, v BufferView) BindGroupEntry {
	return BindGroupEntry{Binding: binding, Type: rhi.BindingUniformBuffer, Buffer: v}
}

// StorageBuffer returns a storage buffer entry.
func StorageBuffer(binding uint32, v BufferView) BindGroupEntry {
	return BindGroupEntry{Binding: binding, Type: rhi.BindingStorageBuffer, Buffer: v}
}

// SampledTexture returns a sampled texture entry.
func SampledTexture(binding uint32, v TextureView) BindGroupEntry {
	return BindGroupEntry{Binding: binding, Type: rhi.BindingTexture, Texture: v}
}

// StorageTexture returns a storage texture entry.
func StorageTexture(binding uint32, v TextureView) BindGroupEntry {
	return BindGroupEntry{Binding: binding, Type: rhi.BindingStorageTexture, Texture: v}
}

// Sampler returns a sampler entry.
func Sampler(binding uint32, s rhi.Sampler) BindGroupEntry {
	return BindGroupEntry{Binding: binding, Type: rhi.BindingSampler, Sampler: s}
}

// bindGroup is the builder-owned record behind a BindGroup handle.
type bindGroup struct {
	desc     BindGroupDesc
	physical rhi.BindGroup
}

// validateBindGroup checks every entry against its binding type.
func (b *Builder) validateBindGroup(desc *BindGroupDesc) error {
	if desc.Layout == nil {
		return fmt.Errorf("%w: bind group has no layout", ErrInvalidDescriptor)
	}
	seen := make(map[uint32]struct{}, len(desc.Entries))
	for _, e := range desc.Entries {
		if _, dup := seen[e.Binding]; dup {
			return fmt.Errorf("%w: duplicate binding %d", ErrInvalidDescriptor, e.Binding)
		}
		seen[e.Binding] = struct{}{}

		var err error
		switch e.Type {
		case rhi.BindingUniformBuffer, rhi.BindingStorageBuffer:
			_, err = b.lookupView(e.Buffer.ref, ResourceKindBuffer)
		case rhi.BindingTexture, rhi.BindingStorageTexture:
			_, err = b.lookupView(e.Texture.ref, ResourceKindTexture)
		case rhi.BindingSampler:
			if e.Sampler == nil {
				err = fmt.Errorf("%w: binding %d has no sampler", ErrInvalidDescriptor, e.Binding)
			}
		default:
			err = fmt.Errorf("%w: binding %d has type %v", ErrInvalidDescriptor, e.Binding, e.Type)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// entryAccess returns the resource touched by a bind group entry and the
// state it needs. ok is false for samplers.
func (b *Builder) entryAccess(e *BindGroupEntry) (a access, ok bool) {
	switch e.Type {
	case rhi.BindingUniformBuffer:
		return access{res: b.views[e.Buffer.index].owner, state: rhi.StateShaderRead, uniform: true}, true
	case rhi.BindingStorageBuffer:
		return access{res: b.views[e.Buffer.index].owner, state: rhi.StateUnorderedAccess}, true
	case rhi.BindingTexture:
		return access{res: b.views[e.Texture.index].owner, state: rhi.StateShaderRead}, true
	case rhi.BindingStorageTexture:
		return access{res: b.views[e.Texture.index].owner, state: rhi.StateUnorderedAccess}, true
	}
	return access{}, false
}
