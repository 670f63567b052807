package framegraph

import (
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/recording"
	"github.com/gogpu/framegraph/rhi"
)

// fixture bundles a recording device and a builder on it.
type fixture struct {
	t   *testing.T
	dev *recording.Device
	g   *Builder
}

func newFixture(t *testing.T, computeQueues int, opts ...Option) *fixture {
	t.Helper()
	dev := recording.NewDevice(recording.WithComputeQueues(computeQueues))
	g := New(dev, nil, opts...)
	t.Cleanup(g.Release)
	return &fixture{t: t, dev: dev, g: g}
}

func (f *fixture) buffer(label string, size uint64) (Buffer, BufferView) {
	f.t.Helper()
	b, err := f.g.CreateBuffer(BufferDesc{Label: label, Size: size})
	if err != nil {
		f.t.Fatalf("CreateBuffer(%q): %v", label, err)
	}
	v, err := f.g.CreateBufferView(b, BufferViewDesc{Label: label})
	if err != nil {
		f.t.Fatalf("CreateBufferView(%q): %v", label, err)
	}
	return b, v
}

func (f *fixture) texture(label string) (Texture, TextureView) {
	f.t.Helper()
	tex, err := f.g.CreateTexture(TextureDesc{
		Label:  label,
		Size:   gputypes.Extent3D{Width: 128, Height: 128},
		Format: gputypes.TextureFormatRGBA8Unorm,
	})
	if err != nil {
		f.t.Fatalf("CreateTexture(%q): %v", label, err)
	}
	v, err := f.g.CreateTextureView(tex, TextureViewDesc{Label: label})
	if err != nil {
		f.t.Fatalf("CreateTextureView(%q): %v", label, err)
	}
	return tex, v
}

// swapchain imports a device texture in StatePresent.
func (f *fixture) swapchain() (rhi.Texture, Texture, TextureView) {
	f.t.Helper()
	phys, err := f.dev.CreateTexture(&rhi.TextureDesc{Label: "swapchain"})
	if err != nil {
		f.t.Fatal(err)
	}
	f.dev.SetState(phys, rhi.StatePresent)
	tex, err := f.g.ImportTexture(phys, ImportDesc{Label: "swapchain", InitialState: rhi.StatePresent})
	if err != nil {
		f.t.Fatalf("ImportTexture: %v", err)
	}
	v, err := f.g.CreateTextureView(tex, TextureViewDesc{})
	if err != nil {
		f.t.Fatalf("CreateTextureView: %v", err)
	}
	return phys, tex, v
}

func (f *fixture) layout() rhi.BindGroupLayout {
	f.t.Helper()
	l, err := f.dev.CreateBindGroupLayout(&rhi.BindGroupLayoutDesc{Label: "test"})
	if err != nil {
		f.t.Fatal(err)
	}
	return l
}

func (f *fixture) bindGroup(label string, entries ...BindGroupEntry) BindGroup {
	f.t.Helper()
	g, err := f.g.AllocateBindGroup(BindGroupDesc{Label: label, Layout: f.layout(), Entries: entries})
	if err != nil {
		f.t.Fatalf("AllocateBindGroup(%q): %v", label, err)
	}
	return g
}

func (f *fixture) compile() *Plan {
	f.t.Helper()
	plan, err := f.g.Compile()
	if err != nil {
		f.t.Fatalf("Compile: %v", err)
	}
	return plan
}

func (f *fixture) execute(info ExecuteInfo) {
	f.t.Helper()
	if err := f.g.Execute(info); err != nil {
		f.t.Fatalf("Execute: %v", err)
	}
	for _, v := range f.dev.Violations() {
		f.t.Errorf("device violation: %s", v)
	}
}

func colorTarget(v TextureView) RasterPassDesc {
	return RasterPassDesc{ColorAttachments: []ColorAttachment{{
		View:    v,
		LoadOp:  gputypes.LoadOpClear,
		StoreOp: gputypes.StoreOpStore,
	}}}
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}

// passByName returns the plan index of the named pass.
func passByName(t *testing.T, plan *Plan, name string) *PassPlan {
	t.Helper()
	for i := range plan.Passes {
		if plan.Passes[i].Name == name {
			return &plan.Passes[i]
		}
	}
	t.Fatalf("no pass %q in plan", name)
	return nil
}

// recordedBarriers returns every recorded barrier touching obj, in
// submission order.
func recordedBarriers(dev *recording.Device, obj rhi.Object) []Transition {
	var out []Transition
	for _, sub := range dev.Submissions() {
		for _, cb := range sub.CommandBuffers {
			for _, cmd := range cb.Commands {
				bc, ok := cmd.(recording.BarriersCommand)
				if !ok {
					continue
				}
				for _, b := range bc.Buffers {
					if b.Buffer == obj {
						out = append(out, Transition{Resource: -1, Before: b.Before, After: b.After})
					}
				}
				for _, tb := range bc.Textures {
					if tb.Texture == obj {
						out = append(out, Transition{Resource: -1, Before: tb.Before, After: tb.After})
					}
				}
			}
		}
	}
	return out
}

// commandTypes returns the command types of cb, skipping barriers.
func commandTypes(cb *recording.CommandBuffer) []recording.CommandType {
	var out []recording.CommandType
	for _, cmd := range cb.Commands {
		if cmd.Type() != recording.CmdBarriers {
			out = append(out, cmd.Type())
		}
	}
	return out
}
