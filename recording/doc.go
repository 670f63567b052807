// Package recording provides an in-memory rhi.Device that records commands
// instead of executing them.
//
// The recording device is used to test frame graphs and to inspect
// schedules offline. Every command buffer keeps its typed commands, every
// queue submission is kept in order, and resource states are simulated from
// the recorded barriers so inconsistent transitions can be detected.
//
// # Architecture
//
//   - Device: creates objects and command recorders, tracks states
//   - CommandRecorder: appends typed commands (BarriersCommand, DispatchCommand, ...)
//   - Queue: validates submissions and applies barriers in submission order
//
// # Basic Usage
//
//	dev := recording.NewDevice(recording.WithComputeQueues(2))
//	g := framegraph.New(dev, nil)
//	// declare passes
//	if err := g.Execute(framegraph.ExecuteInfo{}); err != nil {
//	    return err
//	}
//	for _, sub := range dev.Submissions() {
//	    for _, cb := range sub.CommandBuffers {
//	        for _, cmd := range cb.Commands {
//	            fmt.Println(recording.Describe(cmd))
//	        }
//	    }
//	}
//	if v := dev.Violations(); len(v) > 0 {
//	    // barrier or semaphore misuse
//	}
//
// # Profiles
//
// Named device configurations can be registered and created by name,
// following the database/sql driver pattern:
//
//	dev, err := recording.NewProfileDevice("single-queue")
//
// The "single-queue" and "async-compute" profiles are built in.
//
// # Fault Injection
//
// Device.Fail makes an operation fail until cleared, which exercises error
// paths of callers:
//
//	dev.Fail(recording.OpCreateTexture, errors.New("out of memory"))
package recording
