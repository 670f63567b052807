package recording

import (
	"errors"
	"strings"
	"testing"

	"github.com/gogpu/framegraph/rhi"
)

func endWith(t *testing.T, d *Device, q rhi.QueueType, record func(rec rhi.CommandRecorder)) rhi.CommandBuffer {
	t.Helper()
	rec := newRecorder(t, d, q)
	record(rec)
	cb, err := rec.End()
	if err != nil {
		t.Fatalf("End: %v", err)
	}
	return cb
}

func TestDeviceQueues(t *testing.T) {
	tests := []struct {
		name      string
		queues    int
		wantAsync bool
	}{
		{"default", 0, true},
		{"single", 1, false},
		{"dual", 2, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var opts []Option
			if tt.queues > 0 {
				opts = append(opts, WithComputeQueues(tt.queues))
			}
			d := NewDevice(opts...)
			if d.Queue(rhi.QueueMain) == nil {
				t.Fatal("main queue is nil")
			}
			if got := d.Queue(rhi.QueueAsyncCompute) != nil; got != tt.wantAsync {
				t.Errorf("async queue present = %v, want %v", got, tt.wantAsync)
			}
			if !tt.wantAsync {
				if _, err := d.CreateCommandRecorder("x", rhi.QueueAsyncCompute); err == nil {
					t.Error("CreateCommandRecorder on missing queue succeeded")
				}
			}
		})
	}
}

func TestDeviceLifetime(t *testing.T) {
	d := NewDevice()
	buf, err := d.CreateBuffer(&rhi.BufferDesc{Label: "b", Size: 16})
	if err != nil {
		t.Fatal(err)
	}
	view, _ := d.CreateBufferView(buf, &rhi.BufferViewDesc{Label: "v", Size: 8})
	if got := view.(*Object).Parent; got != buf {
		t.Errorf("view parent = %v, want %v", got, buf)
	}
	if d.Live(KindBuffer) != 1 || d.Live(KindBufferView) != 1 {
		t.Fatalf("live = %d buffers, %d views", d.Live(KindBuffer), d.Live(KindBufferView))
	}

	d.DestroyBufferView(view)
	d.DestroyBuffer(buf)
	if d.Live(KindBuffer) != 0 || d.Created(KindBuffer) != 1 {
		t.Errorf("after destroy: live = %d, created = %d", d.Live(KindBuffer), d.Created(KindBuffer))
	}
	if !buf.(*Object).Destroyed() {
		t.Error("buffer not marked destroyed")
	}

	d.DestroyBuffer(buf)
	if v := d.Violations(); len(v) != 1 || !strings.Contains(v[0], "double destroy") {
		t.Errorf("Violations() = %v", v)
	}
}

func TestDeviceFail(t *testing.T) {
	d := NewDevice()
	d.Fail(OpCreateTexture, errors.New("out of memory"))

	tex, err := d.CreateTexture(&rhi.TextureDesc{Label: "t"})
	if !errors.Is(err, ErrInjected) {
		t.Fatalf("CreateTexture error = %v, want ErrInjected", err)
	}
	if tex != nil {
		t.Errorf("CreateTexture returned %v with error", tex)
	}

	d.Fail(OpCreateTexture, nil)
	if _, err := d.CreateTexture(&rhi.TextureDesc{Label: "t"}); err != nil {
		t.Errorf("CreateTexture after clear: %v", err)
	}

	d.Fail(OpSubmit, errors.New("device lost"))
	cb := endWith(t, d, rhi.QueueMain, func(rhi.CommandRecorder) {})
	if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{cb}}); !errors.Is(err, ErrInjected) {
		t.Errorf("Submit error = %v, want ErrInjected", err)
	}
}

func TestSubmitTracksStates(t *testing.T) {
	d := NewDevice()
	buf, _ := d.CreateBuffer(&rhi.BufferDesc{Label: "b", Size: 16})

	cb := endWith(t, d, rhi.QueueMain, func(rec rhi.CommandRecorder) {
		rec.Barriers([]rhi.BufferBarrier{{Buffer: buf, Before: rhi.StateUndefined, After: rhi.StateCopyDst}}, nil)
		rec.Barriers([]rhi.BufferBarrier{{Buffer: buf, Before: rhi.StateCopyDst, After: rhi.StateShaderRead}}, nil)
	})
	if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{cb}}); err != nil {
		t.Fatal(err)
	}
	if s, ok := d.State(buf); !ok || s != rhi.StateShaderRead {
		t.Errorf("State() = %v, %v; want ShaderRead", s, ok)
	}
	if v := d.Violations(); len(v) != 0 {
		t.Errorf("Violations() = %v", v)
	}

	// A stale before state is reported.
	cb = endWith(t, d, rhi.QueueMain, func(rec rhi.CommandRecorder) {
		rec.Barriers([]rhi.BufferBarrier{{Buffer: buf, Before: rhi.StateCopyDst, After: rhi.StateCopySrc}}, nil)
	})
	if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{cb}}); err != nil {
		t.Fatal(err)
	}
	if v := d.Violations(); len(v) != 1 || !strings.Contains(v[0], "expects CopyDst") {
		t.Errorf("Violations() = %v", v)
	}
}

func TestSubmitRejectsWrongQueue(t *testing.T) {
	d := NewDevice()
	cb := endWith(t, d, rhi.QueueAsyncCompute, func(rhi.CommandRecorder) {})
	if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{cb}}); err == nil {
		t.Error("Submit of async command buffer to main queue succeeded")
	}

	d.FreeCommandBuffer(cb)
	if err := d.Queue(rhi.QueueAsyncCompute).Submit(&rhi.SubmitInfo{CommandBuffers: []rhi.CommandBuffer{cb}}); err == nil {
		t.Error("Submit of freed command buffer succeeded")
	}
}

func TestSemaphores(t *testing.T) {
	d := NewDevice()
	sem, _ := d.CreateSemaphore("handoff")
	async := endWith(t, d, rhi.QueueAsyncCompute, func(rhi.CommandRecorder) {})
	main := endWith(t, d, rhi.QueueMain, func(rhi.CommandRecorder) {})

	if err := d.Queue(rhi.QueueAsyncCompute).Submit(&rhi.SubmitInfo{
		CommandBuffers: []rhi.CommandBuffer{async},
		Signal:         []rhi.Semaphore{sem},
	}); err != nil {
		t.Fatal(err)
	}
	if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{
		CommandBuffers: []rhi.CommandBuffer{main},
		Wait:           []rhi.Semaphore{sem},
	}); err != nil {
		t.Fatal(err)
	}
	if v := d.Violations(); len(v) != 0 {
		t.Fatalf("Violations() = %v", v)
	}

	// The wait consumed the signal.
	again := endWith(t, d, rhi.QueueMain, func(rhi.CommandRecorder) {})
	if err := d.Queue(rhi.QueueMain).Submit(&rhi.SubmitInfo{
		CommandBuffers: []rhi.CommandBuffer{again},
		Wait:           []rhi.Semaphore{sem},
	}); err != nil {
		t.Fatal(err)
	}
	if v := d.Violations(); len(v) != 1 || !strings.Contains(v[0], "unsignaled") {
		t.Errorf("Violations() = %v", v)
	}

	subs := d.Submissions()
	if len(subs) != 3 || subs[0].Queue != rhi.QueueAsyncCompute || subs[1].Queue != rhi.QueueMain {
		t.Errorf("Submissions() order wrong: %d submissions", len(subs))
	}
}

func TestPresent(t *testing.T) {
	d := NewDevice()
	tex, _ := d.CreateTexture(&rhi.TextureDesc{Label: "swapchain"})
	sem, _ := d.CreateSemaphore("present")
	d.Signal(sem)
	d.SetState(tex, rhi.StatePresent)

	if err := d.Queue(rhi.QueueMain).Present(&rhi.PresentInfo{Texture: tex, Wait: []rhi.Semaphore{sem}}); err != nil {
		t.Fatal(err)
	}
	if v := d.Violations(); len(v) != 0 {
		t.Errorf("Violations() = %v", v)
	}
	if p := d.Presents(); len(p) != 1 || p[0].Texture != tex {
		t.Errorf("Presents() = %v", p)
	}

	d.SetState(tex, rhi.StateRenderTarget)
	_ = d.Queue(rhi.QueueMain).Present(&rhi.PresentInfo{Texture: tex})
	if v := d.Violations(); len(v) != 1 || !strings.Contains(v[0], "RenderTarget") {
		t.Errorf("Violations() = %v", v)
	}

	if err := d.Queue(rhi.QueueAsyncCompute).Present(&rhi.PresentInfo{Texture: tex}); err == nil {
		t.Error("Present on async queue succeeded")
	}
}

func TestReset(t *testing.T) {
	d := NewDevice()
	buf, _ := d.CreateBuffer(&rhi.BufferDesc{Label: "b", Size: 4})
	d.SetState(buf, rhi.StateCopySrc)
	d.DestroyBuffer(buf)
	d.DestroyBuffer(buf)
	d.Reset()
	if len(d.Violations()) != 0 || len(d.Submissions()) != 0 {
		t.Error("Reset kept history")
	}
	if _, ok := d.State(buf); ok {
		t.Error("Reset kept states")
	}
}
