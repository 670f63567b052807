// Package framegraph schedules one frame of GPU work as a graph of passes
// over virtual resources.
//
// # Overview
//
// A frame is declared up front: resources (graph-owned or imported), views
// of them, bind groups, and copy, compute and raster passes that read and
// write those resources. Nothing touches the device until Execute, which
// compiles the graph, binds the surviving resources to pooled physical
// objects, records every surviving pass with the barriers it needs and
// submits the command streams.
//
// # Quick Start
//
//	pools := pool.New(device, pool.Config{})
//
//	g := framegraph.New(device, pools, framegraph.WithLabel("frame"))
//	swap, _ := g.ImportTexture(backbuffer, framegraph.ImportDesc{
//		Label:        "swapchain",
//		InitialState: rhi.StatePresent,
//	})
//	view, _ := g.CreateTextureView(swap, framegraph.TextureViewDesc{})
//	g.AddRasterPass("clear", framegraph.RasterPassDesc{
//		ColorAttachments: []framegraph.ColorAttachment{{
//			View:    view,
//			LoadOp:  gputypes.LoadOpClear,
//			StoreOp: gputypes.StoreOpStore,
//		}},
//	}, nil)
//	if err := g.Execute(framegraph.ExecuteInfo{Present: &swap, Fence: fence, FenceValue: n}); err != nil {
//		return err
//	}
//	// after fence reaches n:
//	g.Release()
//	pools.Forfeit()
//
// # Compilation
//
// Compile, which Execute runs itself, performs these steps in order:
//   - derive reads and writes from bind groups, attachments and copy lists
//   - enforce a single writer per resource
//   - cull passes and resources that do not contribute to an imported or
//     ForceUsed resource
//   - reject reads of graph-owned resources before their writer
//   - place async compute passes on the second queue when the device has one
//   - reject cross-queue dependencies inside one batch
//   - schedule the minimal set of state transitions
//   - group passes into submissions and derive semaphore waits
//
// The resulting Plan can be inspected or rendered with Plan.WriteDOT.
//
// # Batches and Queues
//
// AddSyncPoint splits the frame into batches. Within a batch the main and
// async compute queues run concurrently, so a resource produced on one
// queue may only be consumed on the other in a later batch. Copy and raster
// passes always run on the main queue.
//
// # Devices
//
// The scheduler talks to hardware only through the rhi package. The
// recording package provides an in-memory device that captures commands and
// checks barriers, and backend/hal adapts a gogpu/wgpu HAL device.
package framegraph

// Version information
const (
	// Version is the current version of the library
	Version = "0.1.0"

	// VersionMajor is the major version
	VersionMajor = 0

	// VersionMinor is the minor version
	VersionMinor = 1

	// VersionPatch is the patch version
	VersionPatch = 0
)
