//go:build !nogpu

package hal

import (
	"errors"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/wgpu/hal"
)

// ErrNoHALProvider is returned when a device provider does not expose HAL
// types.
var ErrNoHALProvider = errors.New("hal: provider does not expose HAL types")

// NewFromProvider shares the device of a gpucontext provider, such as a
// gogpu window. The provider must also implement HalDevice() any and
// HalQueue() any returning hal.Device and hal.Queue. The provider keeps
// ownership of the device.
func NewFromProvider(provider gpucontext.DeviceProvider) (*Device, error) {
	type halProvider interface {
		HalDevice() any
		HalQueue() any
	}
	hp, ok := provider.(halProvider)
	if !ok {
		return nil, ErrNoHALProvider
	}
	device, ok := hp.HalDevice().(hal.Device)
	if !ok || device == nil {
		return nil, errors.New("hal: provider HalDevice is not hal.Device")
	}
	queue, ok := hp.HalQueue().(hal.Queue)
	if !ok || queue == nil {
		return nil, errors.New("hal: provider HalQueue is not hal.Queue")
	}

	d := New(device, queue)
	d.surfaceFmt = provider.SurfaceFormat()
	slogger().Debug("hal: device from provider", "surface_format", d.surfaceFmt)
	return d, nil
}
