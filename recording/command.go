package recording

import (
	"fmt"
	"strings"

	"github.com/gogpu/framegraph/rhi"
	"github.com/gogpu/gputypes"
)

// CommandType identifies the type of a recorded command.
type CommandType uint8

const (
	// Synchronization commands
	CmdBarriers CommandType = iota // Resource state transitions

	// Pass commands
	CmdBeginCopyPass    // Open a copy pass
	CmdBeginComputePass // Open a compute pass
	CmdBeginRasterPass  // Open a raster pass
	CmdEndPass          // Close the open pass

	// Copy commands
	CmdCopyBufferToBuffer  // Buffer to buffer copy
	CmdCopyBufferToTexture // Buffer to texture copy
	CmdCopyTextureToBuffer // Texture to buffer copy

	// Binding commands
	CmdSetPipeline     // Bind a compute or render pipeline
	CmdSetBindGroup    // Bind a bind group
	CmdSetVertexBuffer // Bind a vertex buffer
	CmdSetIndexBuffer  // Bind an index buffer

	// Work commands
	CmdDispatch    // Compute dispatch
	CmdDraw        // Non-indexed draw
	CmdDrawIndexed // Indexed draw
)

// commandTypeNames maps CommandType values to their string representation.
var commandTypeNames = [...]string{
	CmdBarriers:            "Barriers",
	CmdBeginCopyPass:       "BeginCopyPass",
	CmdBeginComputePass:    "BeginComputePass",
	CmdBeginRasterPass:     "BeginRasterPass",
	CmdEndPass:             "EndPass",
	CmdCopyBufferToBuffer:  "CopyBufferToBuffer",
	CmdCopyBufferToTexture: "CopyBufferToTexture",
	CmdCopyTextureToBuffer: "CopyTextureToBuffer",
	CmdSetPipeline:         "SetPipeline",
	CmdSetBindGroup:        "SetBindGroup",
	CmdSetVertexBuffer:     "SetVertexBuffer",
	CmdSetIndexBuffer:      "SetIndexBuffer",
	CmdDispatch:            "Dispatch",
	CmdDraw:                "Draw",
	CmdDrawIndexed:         "DrawIndexed",
}

// String returns the string representation of a CommandType.
func (c CommandType) String() string {
	if int(c) < len(commandTypeNames) {
		return commandTypeNames[c]
	}
	return "Unknown"
}

// Command is the interface implemented by all command types.
type Command interface {
	// Type returns the CommandType for this command.
	Type() CommandType
}

// BarriersCommand records state transitions.
type BarriersCommand struct {
	Buffers  []rhi.BufferBarrier
	Textures []rhi.TextureBarrier
}

// Type implements Command.
func (BarriersCommand) Type() CommandType { return CmdBarriers }

// BeginCopyPassCommand opens a copy pass.
type BeginCopyPassCommand struct {
	Label string
}

// Type implements Command.
func (BeginCopyPassCommand) Type() CommandType { return CmdBeginCopyPass }

// BeginComputePassCommand opens a compute pass.
type BeginComputePassCommand struct {
	Label string
}

// Type implements Command.
func (BeginComputePassCommand) Type() CommandType { return CmdBeginComputePass }

// BeginRasterPassCommand opens a raster pass.
type BeginRasterPassCommand struct {
	Desc rhi.RasterPassDesc
}

// Type implements Command.
func (BeginRasterPassCommand) Type() CommandType { return CmdBeginRasterPass }

// EndPassCommand closes the open pass.
type EndPassCommand struct{}

// Type implements Command.
func (EndPassCommand) Type() CommandType { return CmdEndPass }

// CopyBufferToBufferCommand copies a byte range between buffers.
type CopyBufferToBufferCommand struct {
	Src       rhi.Buffer
	SrcOffset uint64
	Dst       rhi.Buffer
	DstOffset uint64
	Size      uint64
}

// Type implements Command.
func (CopyBufferToBufferCommand) Type() CommandType { return CmdCopyBufferToBuffer }

// CopyBufferToTextureCommand uploads buffer data into a texture.
type CopyBufferToTextureCommand struct {
	Src    rhi.Buffer
	Dst    rhi.Texture
	Region rhi.BufferTextureCopy
}

// Type implements Command.
func (CopyBufferToTextureCommand) Type() CommandType { return CmdCopyBufferToTexture }

// CopyTextureToBufferCommand reads texture data back into a buffer.
type CopyTextureToBufferCommand struct {
	Src    rhi.Texture
	Dst    rhi.Buffer
	Region rhi.BufferTextureCopy
}

// Type implements Command.
func (CopyTextureToBufferCommand) Type() CommandType { return CmdCopyTextureToBuffer }

// SetPipelineCommand binds a pipeline.
type SetPipelineCommand struct {
	Pipeline rhi.Object
}

// Type implements Command.
func (SetPipelineCommand) Type() CommandType { return CmdSetPipeline }

// SetBindGroupCommand binds a bind group at an index.
type SetBindGroupCommand struct {
	Index uint32
	Group rhi.BindGroup
}

// Type implements Command.
func (SetBindGroupCommand) Type() CommandType { return CmdSetBindGroup }

// SetVertexBufferCommand binds a vertex buffer to a slot.
type SetVertexBufferCommand struct {
	Slot   uint32
	Buffer rhi.Buffer
	Offset uint64
}

// Type implements Command.
func (SetVertexBufferCommand) Type() CommandType { return CmdSetVertexBuffer }

// SetIndexBufferCommand binds an index buffer.
type SetIndexBufferCommand struct {
	Buffer rhi.Buffer
	Format gputypes.IndexFormat
	Offset uint64
}

// Type implements Command.
func (SetIndexBufferCommand) Type() CommandType { return CmdSetIndexBuffer }

// DispatchCommand dispatches compute workgroups.
type DispatchCommand struct {
	X, Y, Z uint32
}

// Type implements Command.
func (DispatchCommand) Type() CommandType { return CmdDispatch }

// DrawCommand draws non-indexed primitives.
type DrawCommand struct {
	VertexCount   uint32
	InstanceCount uint32
	FirstVertex   uint32
	FirstInstance uint32
}

// Type implements Command.
func (DrawCommand) Type() CommandType { return CmdDraw }

// DrawIndexedCommand draws indexed primitives.
type DrawIndexedCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	BaseVertex    int32
	FirstInstance uint32
}

// Type implements Command.
func (DrawIndexedCommand) Type() CommandType { return CmdDrawIndexed }

// Describe returns a one-line human-readable form of cmd.
func Describe(cmd Command) string {
	switch c := cmd.(type) {
	case BarriersCommand:
		parts := make([]string, 0, len(c.Buffers)+len(c.Textures))
		for _, b := range c.Buffers {
			parts = append(parts, fmt.Sprintf("%s %v->%v", label(b.Buffer), b.Before, b.After))
		}
		for _, t := range c.Textures {
			parts = append(parts, fmt.Sprintf("%s %v->%v", label(t.Texture), t.Before, t.After))
		}
		return "Barriers " + strings.Join(parts, ", ")
	case BeginCopyPassCommand:
		return fmt.Sprintf("BeginCopyPass %q", c.Label)
	case BeginComputePassCommand:
		return fmt.Sprintf("BeginComputePass %q", c.Label)
	case BeginRasterPassCommand:
		return fmt.Sprintf("BeginRasterPass %q colors=%d depth=%t",
			c.Desc.Label, len(c.Desc.ColorAttachments), c.Desc.DepthStencil != nil)
	case CopyBufferToBufferCommand:
		return fmt.Sprintf("CopyBufferToBuffer %s+%d -> %s+%d (%d bytes)",
			label(c.Src), c.SrcOffset, label(c.Dst), c.DstOffset, c.Size)
	case CopyBufferToTextureCommand:
		return fmt.Sprintf("CopyBufferToTexture %s -> %s mip %d", label(c.Src), label(c.Dst), c.Region.MipLevel)
	case CopyTextureToBufferCommand:
		return fmt.Sprintf("CopyTextureToBuffer %s -> %s mip %d", label(c.Src), label(c.Dst), c.Region.MipLevel)
	case SetPipelineCommand:
		return "SetPipeline " + label(c.Pipeline)
	case SetBindGroupCommand:
		return fmt.Sprintf("SetBindGroup %d %s", c.Index, label(c.Group))
	case SetVertexBufferCommand:
		return fmt.Sprintf("SetVertexBuffer %d %s+%d", c.Slot, label(c.Buffer), c.Offset)
	case SetIndexBufferCommand:
		return fmt.Sprintf("SetIndexBuffer %s+%d", label(c.Buffer), c.Offset)
	case DispatchCommand:
		return fmt.Sprintf("Dispatch %dx%dx%d", c.X, c.Y, c.Z)
	case DrawCommand:
		return fmt.Sprintf("Draw %d x%d", c.VertexCount, c.InstanceCount)
	case DrawIndexedCommand:
		return fmt.Sprintf("DrawIndexed %d x%d", c.IndexCount, c.InstanceCount)
	default:
		return cmd.Type().String()
	}
}

func label(o rhi.Object) string {
	if o == nil {
		return "<nil>"
	}
	if l := o.Label(); l != "" {
		return l
	}
	return "<unlabeled>"
}
