package framegraph

import (
	"fmt"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/rhi"
)

// ResourceKind distinguishes buffers from textures.
type ResourceKind uint8

const (
	ResourceKindBuffer ResourceKind = iota
	ResourceKindTexture
)

func (k ResourceKind) String() string {
	switch k {
	case ResourceKindBuffer:
		return "buffer"
	case ResourceKindTexture:
		return "texture"
	default:
		return fmt.Sprintf("ResourceKind(%d)", k)
	}
}

// Descriptor types shared with the device layer.
type (
	BufferDesc      = rhi.BufferDesc
	TextureDesc     = rhi.TextureDesc
	BufferViewDesc  = rhi.BufferViewDesc
	TextureViewDesc = rhi.TextureViewDesc
)

// ImportDesc describes a caller-owned physical resource entering the graph.
type ImportDesc struct {
	Label string

	// InitialState is the state the resource is in when the frame starts.
	// The graph trusts it.
	InitialState rhi.ResourceState

	// FinalState is the state the resource is left in when the frame ends.
	// StateUndefined means InitialState.
	FinalState rhi.ResourceState
}

// resource is the builder-owned record behind a Buffer or Texture handle.
// Exactly one of (bufferDesc/textureDesc) or imported is meaningful.
type resource struct {
	kind        ResourceKind
	label       string
	bufferDesc  rhi.BufferDesc
	textureDesc rhi.TextureDesc

	imported     rhi.Object
	initialState rhi.ResourceState
	finalState   rhi.ResourceState

	forced bool
	culled bool

	// physical is set by devirtualization.
	physical rhi.Object
}

func (r *resource) isImported() bool {
	return r.imported != nil
}

// view is the builder-owned record behind a BufferView or TextureView handle.
type view struct {
	kind        ResourceKind
	owner       uint32
	bufferDesc  rhi.BufferViewDesc
	textureDesc rhi.TextureViewDesc

	physical rhi.Object
}

func validateBufferDesc(desc *rhi.BufferDesc) error {
	if desc.Size == 0 {
		return fmt.Errorf("%w: buffer size is zero", ErrInvalidDescriptor)
	}
	return nil
}

// normalizeTextureDesc fills zero counts with 1 and validates the extent.
func normalizeTextureDesc(desc *rhi.TextureDesc) error {
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return fmt.Errorf("%w: texture extent %dx%d", ErrInvalidDescriptor, desc.Size.Width, desc.Size.Height)
	}
	if desc.Size.DepthOrArrayLayers == 0 {
		desc.Size.DepthOrArrayLayers = 1
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = 1
	}
	if desc.SampleCount == 0 {
		desc.SampleCount = 1
	}
	return nil
}

// normalizeBufferViewDesc resolves a zero size against a graph-owned owner
// and checks the range. Imported owners have no known size.
func normalizeBufferViewDesc(owner *resource, desc *rhi.BufferViewDesc) error {
	if owner.isImported() {
		return nil
	}
	size := owner.bufferDesc.Size
	if desc.Offset >= size {
		return fmt.Errorf("%w: view offset %d beyond buffer size %d", ErrInvalidDescriptor, desc.Offset, size)
	}
	if desc.Size == 0 {
		desc.Size = size - desc.Offset
	}
	if desc.Offset+desc.Size > size {
		return fmt.Errorf("%w: view range [%d, %d) beyond buffer size %d",
			ErrInvalidDescriptor, desc.Offset, desc.Offset+desc.Size, size)
	}
	return nil
}

// normalizeTextureViewDesc resolves zero counts and an undefined format
// against a graph-owned owner and checks the sub-resource range.
func normalizeTextureViewDesc(owner *resource, desc *rhi.TextureViewDesc) error {
	if owner.isImported() {
		return nil
	}
	td := &owner.textureDesc
	if desc.Format == gputypes.TextureFormatUndefined {
		desc.Format = td.Format
	}
	if desc.BaseMipLevel >= td.MipLevelCount {
		return fmt.Errorf("%w: base mip %d of %d", ErrInvalidDescriptor, desc.BaseMipLevel, td.MipLevelCount)
	}
	if desc.MipLevelCount == 0 {
		desc.MipLevelCount = td.MipLevelCount - desc.BaseMipLevel
	}
	if desc.BaseMipLevel+desc.MipLevelCount > td.MipLevelCount {
		return fmt.Errorf("%w: mip range exceeds %d levels", ErrInvalidDescriptor, td.MipLevelCount)
	}
	layers := td.Size.DepthOrArrayLayers
	if desc.BaseArrayLayer >= layers {
		return fmt.Errorf("%w: base layer %d of %d", ErrInvalidDescriptor, desc.BaseArrayLayer, layers)
	}
	if desc.ArrayLayerCount == 0 {
		desc.ArrayLayerCount = layers - desc.BaseArrayLayer
	}
	if desc.BaseArrayLayer+desc.ArrayLayerCount > layers {
		return fmt.Errorf("%w: layer range exceeds %d layers", ErrInvalidDescriptor, layers)
	}
	return nil
}
