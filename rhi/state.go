// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package rhi

import "fmt"

// ResourceState is the access state of a buffer or texture.
type ResourceState uint8

const (
	// StateUndefined means the contents are unknown. Graph-owned resources
	// start here every frame.
	StateUndefined ResourceState = iota

	// StateCommon is a general state usable by any queue.
	StateCommon

	// StateCopySrc is the source of a copy.
	StateCopySrc

	// StateCopyDst is the destination of a copy.
	StateCopyDst

	// StateShaderRead is read-only shader access (sampled textures, uniform reads after writes).
	StateShaderRead

	// StateUnorderedAccess is read-write storage access.
	StateUnorderedAccess

	// StateRenderTarget is a color attachment.
	StateRenderTarget

	// StateDepthStencilWrite is a depth-stencil attachment.
	StateDepthStencilWrite

	// StatePresent is the state a swapchain image must be in to be presented.
	StatePresent
)

// resourceStateNames maps ResourceState values to their string representation.
var resourceStateNames = [...]string{
	StateUndefined:         "Undefined",
	StateCommon:            "Common",
	StateCopySrc:           "CopySrc",
	StateCopyDst:           "CopyDst",
	StateShaderRead:        "ShaderRead",
	StateUnorderedAccess:   "UnorderedAccess",
	StateRenderTarget:      "RenderTarget",
	StateDepthStencilWrite: "DepthStencilWrite",
	StatePresent:           "Present",
}

// String returns the state name.
func (s ResourceState) String() string {
	if int(s) < len(resourceStateNames) {
		return resourceStateNames[s]
	}
	return fmt.Sprintf("ResourceState(%d)", s)
}

// IsWrite reports whether the state grants write access.
func (s ResourceState) IsWrite() bool {
	switch s {
	case StateCopyDst, StateUnorderedAccess, StateRenderTarget, StateDepthStencilWrite:
		return true
	default:
		return false
	}
}

// BufferBarrier transitions a buffer between two states.
type BufferBarrier struct {
	Buffer Buffer
	Before ResourceState
	After  ResourceState
}

// TextureBarrier transitions a whole texture between two states.
type TextureBarrier struct {
	Texture Texture
	Before  ResourceState
	After   ResourceState
}
