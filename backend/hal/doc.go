//go:build !nogpu

// Package hal adapts a gogpu/wgpu HAL device to the rhi contract, so a frame
// graph can run on real hardware.
//
// # Usage
//
// Wrap a device and queue opened through any wgpu HAL backend:
//
//	dev := hal.New(openDev.Device, openDev.Queue)
//	defer dev.Destroy()
//
//	g := framegraph.New(dev, pools)
//
// Or share the device of a gpucontext provider (for example a gogpu window):
//
//	dev, err := hal.NewFromProvider(app.DeviceProvider())
//
// # Limitations
//
// HAL exposes a single queue, so [Device.Capabilities] reports one compute
// queue and the frame graph places async compute passes on the main queue.
// Semaphores are plain objects: submissions on one queue already execute in
// order. Buffer barriers are left to the HAL, which tracks buffer usage
// itself; texture barriers become usage transitions.
//
// Bind groups accept buffer entries only. Presentation is owned by the
// surface that handed out the swapchain texture, so [rhi.Queue.Present]
// validates its arguments and returns.
//
// Build with the nogpu tag to exclude this package.
package hal
