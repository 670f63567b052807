//go:build !nogpu

package hal

import (
	"errors"
	"testing"
	"time"

	"github.com/gogpu/gpucontext"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
	"github.com/gogpu/wgpu/hal/noop"

	"github.com/gogpu/framegraph/rhi"
)

// createNoopDevice creates a noop device and queue for testing.
// Returns the device, queue, and a cleanup function.
func createNoopDevice(t *testing.T) (hal.Device, hal.Queue, func()) {
	t.Helper()
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		t.Fatalf("CreateInstance failed: %v", err)
	}
	adapters := instance.EnumerateAdapters(nil)
	openDev, err := adapters[0].Adapter.Open(0, gputypes.DefaultLimits())
	if err != nil {
		instance.Destroy()
		t.Fatalf("Open failed: %v", err)
	}
	cleanup := func() {
		openDev.Device.Destroy()
		instance.Destroy()
	}
	return openDev.Device, openDev.Queue, cleanup
}

func newTestDevice(t *testing.T) *Device {
	t.Helper()
	device, queue, cleanup := createNoopDevice(t)
	d := New(device, queue)
	t.Cleanup(func() {
		d.Destroy()
		cleanup()
	})
	return d
}

// foreign is an rhi.Object from some other device.
type foreign struct{}

func (foreign) Label() string { return "foreign" }

func TestDeviceQueues(t *testing.T) {
	d := newTestDevice(t)

	if got := d.Capabilities().ComputeQueueCount; got != 1 {
		t.Errorf("ComputeQueueCount = %d, want 1", got)
	}
	if q := d.Queue(rhi.QueueMain); q == nil || q.Type() != rhi.QueueMain {
		t.Errorf("Queue(main) = %v", q)
	}
	if q := d.Queue(rhi.QueueAsyncCompute); q != nil {
		t.Errorf("Queue(async) = %v, want nil", q)
	}
	if _, err := d.CreateCommandRecorder("async", rhi.QueueAsyncCompute); !errors.Is(err, ErrNoQueue) {
		t.Errorf("CreateCommandRecorder(async) error = %v, want ErrNoQueue", err)
	}
}

func TestDeviceObjects(t *testing.T) {
	d := newTestDevice(t)

	buf, err := d.CreateBuffer(&rhi.BufferDesc{
		Label: "params",
		Size:  256,
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer d.DestroyBuffer(buf)
	if buf.Label() != "params" {
		t.Errorf("Label() = %q", buf.Label())
	}

	view, err := d.CreateBufferView(buf, &rhi.BufferViewDesc{Label: "tail", Offset: 64})
	if err != nil {
		t.Fatalf("CreateBufferView: %v", err)
	}
	if got := view.(*bufferView).size; got != 192 {
		t.Errorf("view size = %d, want 192", got)
	}
	if _, err := d.CreateBufferView(buf, &rhi.BufferViewDesc{Offset: 512}); err == nil {
		t.Error("CreateBufferView past the end succeeded")
	}

	tex, err := d.CreateTexture(&rhi.TextureDesc{
		Label:     "hdr",
		Size:      gputypes.Extent3D{Width: 64, Height: 64},
		Dimension: gputypes.TextureDimension2D,
		Format:    gputypes.TextureFormatRGBA8Unorm,
		Usage:     gputypes.TextureUsageRenderAttachment | gputypes.TextureUsageTextureBinding,
	})
	if err != nil {
		t.Fatalf("CreateTexture: %v", err)
	}
	defer d.DestroyTexture(tex)

	tv, err := d.CreateTextureView(tex, &rhi.TextureViewDesc{
		Label:     "hdr",
		Dimension: gputypes.TextureViewDimension2D,
		Aspect:    gputypes.TextureAspectAll,
	})
	if err != nil {
		t.Fatalf("CreateTextureView: %v", err)
	}
	defer d.DestroyTextureView(tv)

	smp, err := d.CreateSampler(&rhi.SamplerDesc{Label: "linear"})
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	defer d.DestroySampler(smp)

	layout, err := d.CreateBindGroupLayout(&rhi.BindGroupLayoutDesc{
		Label: "blur",
		Entries: []rhi.BindGroupLayoutEntry{
			{Binding: 0, Visibility: gputypes.ShaderStageCompute, Type: rhi.BindingUniformBuffer},
			{Binding: 1, Visibility: gputypes.ShaderStageCompute, Type: rhi.BindingStorageBuffer},
			{Binding: 2, Visibility: gputypes.ShaderStageCompute, Type: rhi.BindingTexture},
			{Binding: 3, Visibility: gputypes.ShaderStageCompute, Type: rhi.BindingSampler},
		},
	})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}
	defer d.DestroyBindGroupLayout(layout)

	group, err := d.CreateBindGroup(&rhi.BindGroupDesc{
		Label:  "blur",
		Layout: layout,
		Entries: []rhi.BindGroupEntry{
			{Binding: 0, Type: rhi.BindingUniformBuffer, Buffer: buf, Size: 64},
			{Binding: 1, Type: rhi.BindingStorageBuffer, Buffer: buf, Offset: 64, Size: 192},
		},
	})
	if err != nil {
		t.Fatalf("CreateBindGroup: %v", err)
	}
	d.DestroyBindGroup(group)

	if Unwrap(buf) == nil || Unwrap(tex) == nil || Unwrap(view) != nil {
		t.Error("Unwrap returned unexpected values")
	}
}

func TestDeviceUnsupportedBindings(t *testing.T) {
	d := newTestDevice(t)

	_, err := d.CreateBindGroupLayout(&rhi.BindGroupLayoutDesc{
		Entries: []rhi.BindGroupLayoutEntry{{Binding: 0, Type: rhi.BindingStorageTexture}},
	})
	if !errors.Is(err, ErrUnsupportedBinding) {
		t.Errorf("storage texture layout error = %v, want ErrUnsupportedBinding", err)
	}

	layout, err := d.CreateBindGroupLayout(&rhi.BindGroupLayoutDesc{
		Entries: []rhi.BindGroupLayoutEntry{{Binding: 0, Type: rhi.BindingSampler}},
	})
	if err != nil {
		t.Fatalf("CreateBindGroupLayout: %v", err)
	}
	defer d.DestroyBindGroupLayout(layout)
	smp, err := d.CreateSampler(&rhi.SamplerDesc{})
	if err != nil {
		t.Fatalf("CreateSampler: %v", err)
	}
	defer d.DestroySampler(smp)

	_, err = d.CreateBindGroup(&rhi.BindGroupDesc{
		Layout:  layout,
		Entries: []rhi.BindGroupEntry{{Binding: 0, Type: rhi.BindingSampler, Sampler: smp}},
	})
	if !errors.Is(err, ErrUnsupportedBinding) {
		t.Errorf("sampler bind group error = %v, want ErrUnsupportedBinding", err)
	}
}

func TestDeviceForeignObjects(t *testing.T) {
	d := newTestDevice(t)

	tests := []struct {
		name string
		fn   func() error
	}{
		{"buffer view", func() error {
			_, err := d.CreateBufferView(foreign{}, &rhi.BufferViewDesc{})
			return err
		}},
		{"texture view", func() error {
			_, err := d.CreateTextureView(foreign{}, &rhi.TextureViewDesc{})
			return err
		}},
		{"bind group layout", func() error {
			_, err := d.CreateBindGroup(&rhi.BindGroupDesc{Layout: foreign{}})
			return err
		}},
		{"pipeline module", func() error {
			_, err := d.CreateComputePipeline(&rhi.ComputePipelineDesc{Module: foreign{}})
			return err
		}},
		{"submit", func() error {
			return d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{foreign{}}})
		}},
		{"present", func() error {
			return d.Queue(rhi.QueueMain).Present(&rhi.PresentInfo{Texture: foreign{}})
		}},
		{"wait fence", func() error {
			return d.WaitFence(foreign{}, 1, time.Millisecond)
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.fn(); !errors.Is(err, ErrForeignObject) {
				t.Errorf("error = %v, want ErrForeignObject", err)
			}
		})
	}
}

func TestRecorderForeignObjectFailsEnd(t *testing.T) {
	d := newTestDevice(t)

	rec, err := d.CreateCommandRecorder("frame", rhi.QueueMain)
	if err != nil {
		t.Fatalf("CreateCommandRecorder: %v", err)
	}
	if err := rec.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	cp := rec.BeginCopyPass("upload")
	cp.CopyBufferToBuffer(foreign{}, 0, foreign{}, 0, 4)
	cp.End()

	if _, err := rec.End(); !errors.Is(err, ErrForeignObject) {
		t.Errorf("End() error = %v, want ErrForeignObject", err)
	}
}

func TestSubmitAndWait(t *testing.T) {
	d := newTestDevice(t)

	src, err := d.CreateBuffer(&rhi.BufferDesc{Label: "src", Size: 16, Usage: gputypes.BufferUsageCopySrc})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer d.DestroyBuffer(src)
	dst, err := d.CreateBuffer(&rhi.BufferDesc{Label: "dst", Size: 16, Usage: gputypes.BufferUsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	defer d.DestroyBuffer(dst)

	rec, err := d.CreateCommandRecorder("copy", rhi.QueueMain)
	if err != nil {
		t.Fatalf("CreateCommandRecorder: %v", err)
	}
	if err := rec.Begin(); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	rec.Barriers([]rhi.BufferBarrier{{Buffer: dst, Before: rhi.StateUndefined, After: rhi.StateCopyDst}}, nil)
	cp := rec.BeginCopyPass("copy")
	cp.CopyBufferToBuffer(src, 0, dst, 0, 16)
	cp.End()
	cb, err := rec.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	defer d.FreeCommandBuffer(cb)

	f, err := d.CreateFence("frame")
	if err != nil {
		t.Fatalf("CreateFence: %v", err)
	}
	defer d.DestroyFence(f)

	sem, _ := d.CreateSemaphore("done")
	err = d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{
		CommandBuffers: []rhi.CommandBuffer{cb},
		Signal:         []rhi.Semaphore{sem},
		Fence:          f,
		FenceValue:     1,
	})
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := d.WaitFence(f, 1, 5*time.Second); err != nil {
		t.Errorf("WaitFence: %v", err)
	}

	// Without a caller fence the internal fence counts submissions.
	for want := uint64(1); want <= 2; want++ {
		if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
		if d.submitted != want {
			t.Errorf("internal fence value = %d, want %d", d.submitted, want)
		}
	}
}

func TestTextureUsage(t *testing.T) {
	tests := []struct {
		state rhi.ResourceState
		want  gputypes.TextureUsage
	}{
		{rhi.StateUndefined, 0},
		{rhi.StateCommon, 0},
		{rhi.StateCopySrc, gputypes.TextureUsageCopySrc},
		{rhi.StateCopyDst, gputypes.TextureUsageCopyDst},
		{rhi.StateShaderRead, gputypes.TextureUsageTextureBinding},
		{rhi.StateRenderTarget, gputypes.TextureUsageRenderAttachment},
		{rhi.StateDepthStencilWrite, gputypes.TextureUsageRenderAttachment},
		{rhi.StatePresent, gputypes.TextureUsageRenderAttachment},
	}
	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			if got := textureUsage(tt.state); got != tt.want {
				t.Errorf("textureUsage(%v) = %v, want %v", tt.state, got, tt.want)
			}
		})
	}
}

// mockDevice implements gpucontext.Device for testing.
type mockDevice struct{}

func (m *mockDevice) Poll(wait bool) {}
func (m *mockDevice) Destroy()       {}

// mockQueue implements gpucontext.Queue for testing.
type mockQueue struct{}

// mockAdapter implements gpucontext.Adapter for testing.
type mockAdapter struct{}

// mockProvider implements gpucontext.DeviceProvider for testing.
type mockProvider struct{}

func (m *mockProvider) Device() gpucontext.Device             { return &mockDevice{} }
func (m *mockProvider) Queue() gpucontext.Queue               { return &mockQueue{} }
func (m *mockProvider) Adapter() gpucontext.Adapter           { return &mockAdapter{} }
func (m *mockProvider) SurfaceFormat() gputypes.TextureFormat { return gputypes.TextureFormatBGRA8Unorm }

// halMockProvider also exposes HAL objects.
type halMockProvider struct {
	mockProvider
	device any
	queue  any
}

func (m *halMockProvider) HalDevice() any { return m.device }
func (m *halMockProvider) HalQueue() any  { return m.queue }

func TestNewFromProvider(t *testing.T) {
	device, queue, cleanup := createNoopDevice(t)
	defer cleanup()

	tests := []struct {
		name     string
		provider gpucontext.DeviceProvider
		wantErr  bool
	}{
		{"no hal", &mockProvider{}, true},
		{"wrong device", &halMockProvider{device: "gpu", queue: queue}, true},
		{"wrong queue", &halMockProvider{device: device, queue: 7}, true},
		{"shared", &halMockProvider{device: device, queue: queue}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := NewFromProvider(tt.provider)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewFromProvider() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			defer d.Destroy()
			if d.HalDevice() != device {
				t.Error("HalDevice() is not the provider device")
			}
			if d.SurfaceFormat() != gputypes.TextureFormatBGRA8Unorm {
				t.Errorf("SurfaceFormat() = %v", d.SurfaceFormat())
			}
		})
	}

	if _, err := NewFromProvider(&mockProvider{}); !errors.Is(err, ErrNoHALProvider) {
		t.Errorf("error = %v, want ErrNoHALProvider", err)
	}
}
