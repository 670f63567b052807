package framegraph

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/gogpu/framegraph/rhi"
)

func TestCullTransitive(t *testing.T) {
	for _, force := range []bool{false, true} {
		t.Run(fmt.Sprintf("force=%v", force), func(t *testing.T) {
			f := newFixture(t, 1)
			a, _ := f.buffer("a", 64)
			b, _ := f.buffer("b", 64)
			mustNil(t, f.g.AddCopyPass("produce", CopyPassDesc{Dsts: []Resource{a}}, nil))
			mustNil(t, f.g.AddCopyPass("consume", CopyPassDesc{Srcs: []Resource{a}, Dsts: []Resource{b}}, nil))
			if force {
				mustNil(t, f.g.ForceUsed(b))
			}

			plan := f.compile()
			for _, pp := range plan.Passes {
				if pp.Culled == force {
					t.Errorf("pass %q culled = %v, want %v", pp.Name, pp.Culled, !force)
				}
			}
			for _, rp := range plan.Resources {
				if rp.Culled == force {
					t.Errorf("resource %q culled = %v, want %v", rp.Label, rp.Culled, !force)
				}
			}
			if force {
				if plan.Resources[a.index].Readers != 1 || plan.Resources[b.index].Readers != 0 {
					t.Errorf("readers = %d, %d, want 1, 0", plan.Resources[a.index].Readers, plan.Resources[b.index].Readers)
				}
				if len(plan.LivePasses()) != 2 {
					t.Errorf("LivePasses = %v", plan.LivePasses())
				}
			} else if len(plan.LivePasses()) != 0 {
				t.Errorf("LivePasses = %v, want none", plan.LivePasses())
			}
		})
	}
}

func TestImportedNeverCulled(t *testing.T) {
	f := newFixture(t, 1)
	phys, err := f.dev.CreateBuffer(&rhi.BufferDesc{Label: "readback", Size: 64})
	mustNil(t, err)
	rb, err := f.g.ImportBuffer(phys, ImportDesc{Label: "readback", InitialState: rhi.StateCommon})
	mustNil(t, err)
	mustNil(t, f.g.AddCopyPass("copy out", CopyPassDesc{Dsts: []Resource{rb}}, nil))

	plan := f.compile()
	if plan.Passes[0].Culled || plan.Resources[rb.index].Culled {
		t.Error("write to an imported resource was culled")
	}
}

func TestCulledResourceReference(t *testing.T) {
	f := newFixture(t, 1)
	a, _ := f.buffer("a", 64)
	b, _ := f.buffer("b", 64)
	c, _ := f.buffer("c", 64)
	mustNil(t, f.g.AddCopyPass("split", CopyPassDesc{Dsts: []Resource{a, b}}, nil))
	mustNil(t, f.g.AddCopyPass("merge", CopyPassDesc{Srcs: []Resource{a}, Dsts: []Resource{c}}, nil))
	mustNil(t, f.g.ForceUsed(c))

	_, err := f.g.Compile()
	if !errors.Is(err, ErrCulledResourceReference) {
		t.Fatalf("Compile() = %v, want ErrCulledResourceReference", err)
	}
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Pass != "split" || ge.Resource != "b" {
		t.Errorf("error context = %+v, want pass split, resource b", ge)
	}

	mustNil(t, f.g.ForceUsed(b))
	plan := f.compile()
	if len(plan.LivePasses()) != 2 {
		t.Errorf("LivePasses = %v, want both", plan.LivePasses())
	}
}

func TestLoadOpAttachmentIsWrite(t *testing.T) {
	f := newFixture(t, 1)
	_, view := f.texture("accum")
	desc := RasterPassDesc{ColorAttachments: []ColorAttachment{{
		View: view, LoadOp: gputypes.LoadOpLoad, StoreOp: gputypes.StoreOpStore,
	}}}
	mustNil(t, f.g.AddRasterPass("blend", desc, nil))

	plan := f.compile()
	pp := plan.Passes[0]
	if len(pp.Reads) != 0 || len(pp.Writes) != 1 {
		t.Errorf("reads = %v, writes = %v, want a single write", pp.Reads, pp.Writes)
	}
	if !pp.Culled {
		t.Error("pass writing an unread texture survived")
	}
}

func TestMultipleWriters(t *testing.T) {
	f := newFixture(t, 1)
	a, _ := f.buffer("a", 64)
	b, _ := f.buffer("b", 64)
	mustNil(t, f.g.ForceUsed(a))
	mustNil(t, f.g.AddCopyPass("first", CopyPassDesc{Dsts: []Resource{a}}, nil))
	// second would be culled on its own merits; it still counts as a writer.
	mustNil(t, f.g.AddCopyPass("second", CopyPassDesc{Dsts: []Resource{b, a}}, nil))

	_, err := f.g.Compile()
	if !errors.Is(err, ErrMultipleWriters) {
		t.Fatalf("Compile() = %v, want ErrMultipleWriters", err)
	}
	var ge *GraphError
	if errors.As(err, &ge) && (ge.Pass != "second" || ge.Resource != "a") {
		t.Errorf("error context = pass %q resource %q", ge.Pass, ge.Resource)
	}

	if err := f.g.Execute(ExecuteInfo{}); !errors.Is(err, ErrMultipleWriters) {
		t.Errorf("Execute() = %v, want ErrMultipleWriters", err)
	}
	if n := len(f.dev.Submissions()); n != 0 {
		t.Errorf("submissions = %d after failed compile", n)
	}
}

func TestReadBeforeWrite(t *testing.T) {
	tests := []struct {
		name    string
		build   func(f *fixture)
		wantErr error
	}{
		{
			name: "never written",
			build: func(f *fixture) {
				a, _ := f.buffer("a", 64)
				out, _ := f.buffer("out", 64)
				mustNil(f.t, f.g.ForceUsed(out))
				mustNil(f.t, f.g.AddCopyPass("copy", CopyPassDesc{Srcs: []Resource{a}, Dsts: []Resource{out}}, nil))
			},
			wantErr: ErrReadBeforeWrite,
		},
		{
			name: "written later",
			build: func(f *fixture) {
				a, _ := f.buffer("a", 64)
				out, _ := f.buffer("out", 64)
				mustNil(f.t, f.g.ForceUsed(out))
				mustNil(f.t, f.g.AddCopyPass("copy", CopyPassDesc{Srcs: []Resource{a}, Dsts: []Resource{out}}, nil))
				mustNil(f.t, f.g.AddCopyPass("fill", CopyPassDesc{Dsts: []Resource{a}}, nil))
			},
			wantErr: ErrReadBeforeWrite,
		},
		{
			name: "culled reader",
			build: func(f *fixture) {
				a, _ := f.buffer("a", 64)
				out, _ := f.buffer("out", 64)
				mustNil(f.t, f.g.AddCopyPass("copy", CopyPassDesc{Srcs: []Resource{a}, Dsts: []Resource{out}}, nil))
			},
		},
		{
			name: "imported contents",
			build: func(f *fixture) {
				phys, _ := f.dev.CreateBuffer(&rhi.BufferDesc{Size: 64})
				a, _ := f.g.ImportBuffer(phys, ImportDesc{Label: "staging", InitialState: rhi.StateCommon})
				out, _ := f.buffer("out", 64)
				mustNil(f.t, f.g.ForceUsed(out))
				mustNil(f.t, f.g.AddCopyPass("upload", CopyPassDesc{Srcs: []Resource{a}, Dsts: []Resource{out}}, nil))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 1)
			tt.build(f)
			_, err := f.g.Compile()
			if tt.wantErr == nil {
				mustNil(t, err)
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// asyncReadGraph writes params on the main queue and reads it from an async
// compute pass, optionally across a sync point.
func asyncReadGraph(f *fixture, sync bool) {
	params, pv := f.buffer("params", 256)
	out, ov := f.buffer("out", 256)
	mustNil(f.t, f.g.ForceUsed(out))
	mustNil(f.t, f.g.AddCopyPass("upload", CopyPassDesc{Dsts: []Resource{params}}, nil))
	if sync {
		mustNil(f.t, f.g.AddSyncPoint())
	}
	bg := f.bindGroup("sim", UniformBuffer(0, pv), StorageBuffer(1, ov))
	mustNil(f.t, f.g.AddComputePass("simulate", ComputePassDesc{BindGroups: []BindGroup{bg}, Async: true}, nil))
}

func TestMissingSyncPoint(t *testing.T) {
	tests := []struct {
		name    string
		queues  int
		opts    []Option
		sync    bool
		wantErr error
	}{
		{name: "async without sync point", queues: 2, wantErr: ErrMissingSyncPoint},
		{name: "async with sync point", queues: 2, sync: true},
		{name: "single queue", queues: 1},
		{name: "async disabled", queues: 2, opts: []Option{WithAsyncCompute(false)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.queues, tt.opts...)
			asyncReadGraph(f, tt.sync)
			_, err := f.g.Compile()
			if tt.wantErr == nil {
				mustNil(t, err)
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compile() = %v, want %v", err, tt.wantErr)
			}
			var ge *GraphError
			if errors.As(err, &ge) && (ge.Pass != "simulate" || ge.Resource != "params") {
				t.Errorf("error context = pass %q resource %q", ge.Pass, ge.Resource)
			}
		})
	}
}

// sharedImportGraph has an imported texture sampled by an async pass and a
// raster pass in the same batch, then reads the async output back on main
// in a later batch.
func sharedImportGraph(f *fixture, initial rhi.ResourceState) (rhi.Texture, Texture) {
	phys, err := f.dev.CreateTexture(&rhi.TextureDesc{Label: "lut"})
	mustNil(f.t, err)
	f.dev.SetState(phys, initial)
	lut, err := f.g.ImportTexture(phys, ImportDesc{Label: "lut", InitialState: initial})
	mustNil(f.t, err)
	lv, err := f.g.CreateTextureView(lut, TextureViewDesc{})
	mustNil(f.t, err)
	_, _, swap := f.swapchain()
	out, ov := f.buffer("out", 64)
	rbPhys, err := f.dev.CreateBuffer(&rhi.BufferDesc{Label: "readback", Size: 64})
	mustNil(f.t, err)
	rb, err := f.g.ImportBuffer(rbPhys, ImportDesc{Label: "readback", InitialState: rhi.StateCommon})
	mustNil(f.t, err)

	mustNil(f.t, f.g.AddSyncPoint())
	sim := f.bindGroup("sim", SampledTexture(0, lv), StorageBuffer(1, ov))
	mustNil(f.t, f.g.AddComputePass("sim", ComputePassDesc{BindGroups: []BindGroup{sim}, Async: true}, nil))
	draw := colorTarget(swap)
	draw.BindGroups = []BindGroup{f.bindGroup("draw", SampledTexture(0, lv))}
	mustNil(f.t, f.g.AddRasterPass("draw", draw, nil))
	mustNil(f.t, f.g.AddSyncPoint())
	mustNil(f.t, f.g.AddCopyPass("readback", CopyPassDesc{Srcs: []Resource{out}, Dsts: []Resource{rb}}, nil))
	return phys, lut
}

func TestSharedImportTransition(t *testing.T) {
	tests := []struct {
		name     string
		initial  rhi.ResourceState
		wantSync bool
	}{
		{name: "needs transition", initial: rhi.StateCommon, wantSync: true},
		{name: "already readable", initial: rhi.StateShaderRead},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, 2)
			phys, lut := sharedImportGraph(f, tt.initial)

			plan := f.compile()
			var want []Transition
			if tt.wantSync {
				want = []Transition{{Resource: int(lut.index), Before: rhi.StateCommon, After: rhi.StateShaderRead}}
			}
			var got []Transition
			for _, tr := range passByName(t, plan, "sim").Barriers {
				if tr.Resource == int(lut.index) {
					got = append(got, tr)
				}
			}
			if !slices.Equal(got, want) {
				t.Errorf("sim barriers on lut = %+v, want %+v", got, want)
			}
			for _, tr := range passByName(t, plan, "draw").Barriers {
				if tr.Resource == int(lut.index) {
					t.Errorf("draw transitions lut: %+v", tr)
				}
			}

			async, main := -1, -1
			for i, sp := range plan.Submissions {
				if sp.Batch != 1 {
					continue
				}
				if sp.Queue == rhi.QueueAsyncCompute {
					async = i
				} else {
					main = i
				}
			}
			if async < 0 || main < 0 {
				t.Fatalf("batch 1 submissions = %+v", plan.Submissions)
			}
			if plan.Submissions[main].Final {
				t.Fatal("batch 1 main submission is final")
			}
			if waits := slices.Contains(plan.Submissions[main].Waits, async); waits != tt.wantSync {
				t.Errorf("batch 1 main waits on async = %v, want %v", waits, tt.wantSync)
			}

			f.execute(ExecuteInfo{})
			if n := len(recordedBarriers(f.dev, phys)); (n == 1) != tt.wantSync || n > 1 {
				t.Errorf("recorded %d barriers on lut", n)
			}
		})
	}
}

func TestSharedImportConflictingStates(t *testing.T) {
	f := newFixture(t, 2)
	phys, err := f.dev.CreateTexture(&rhi.TextureDesc{Label: "env"})
	mustNil(t, err)
	env, err := f.g.ImportTexture(phys, ImportDesc{Label: "env", InitialState: rhi.StateCommon})
	mustNil(t, err)
	ev, err := f.g.CreateTextureView(env, TextureViewDesc{})
	mustNil(t, err)
	out, ov := f.buffer("out", 64)
	grab, _ := f.buffer("grab", 64)
	mustNil(t, f.g.ForceUsed(out))
	mustNil(t, f.g.ForceUsed(grab))

	sim := f.bindGroup("sim", SampledTexture(0, ev), StorageBuffer(1, ov))
	mustNil(t, f.g.AddComputePass("sim", ComputePassDesc{BindGroups: []BindGroup{sim}, Async: true}, nil))
	mustNil(t, f.g.AddCopyPass("grab", CopyPassDesc{Srcs: []Resource{env}, Dsts: []Resource{grab}}, nil))

	_, err = f.g.Compile()
	if !errors.Is(err, ErrMissingSyncPoint) {
		t.Fatalf("Compile() = %v, want ErrMissingSyncPoint", err)
	}
	var ge *GraphError
	if !errors.As(err, &ge) || ge.Pass != "grab" || ge.Resource != "env" {
		t.Errorf("error context = %+v", ge)
	}
}

func TestReadOwnOutput(t *testing.T) {
	for _, consumed := range []bool{false, true} {
		t.Run(fmt.Sprintf("consumed=%v", consumed), func(t *testing.T) {
			f := newFixture(t, 1)
			x, xv := f.buffer("x", 64)
			bg := f.bindGroup("blur", UniformBuffer(0, xv), StorageBuffer(1, xv))
			mustNil(t, f.g.AddComputePass("blur", ComputePassDesc{BindGroups: []BindGroup{bg}}, nil))
			if consumed {
				mustNil(t, f.g.ForceUsed(x))
			}

			plan := f.compile()
			pp := plan.Passes[0]
			want := []int{int(x.index)}
			if !slices.Equal(pp.Reads, want) || !slices.Equal(pp.Writes, want) {
				t.Errorf("reads = %v, writes = %v, want %v for both", pp.Reads, pp.Writes, want)
			}
			if pp.Culled == consumed {
				t.Errorf("culled = %v, want %v", pp.Culled, !consumed)
			}
			if n := plan.Resources[x.index].Readers; n != 0 {
				t.Errorf("Readers = %d, want 0", n)
			}
		})
	}
}

func TestQueueAssignment(t *testing.T) {
	tests := []struct {
		name      string
		queues    int
		opts      []Option
		async     bool
		wantQueue rhi.QueueType
		wantAsync bool
	}{
		{name: "single queue", queues: 1, async: true, wantQueue: rhi.QueueMain},
		{name: "async requested", queues: 2, async: true, wantQueue: rhi.QueueAsyncCompute, wantAsync: true},
		{name: "async not requested", queues: 2, wantQueue: rhi.QueueMain, wantAsync: true},
		{name: "async disabled", queues: 2, opts: []Option{WithAsyncCompute(false)}, async: true, wantQueue: rhi.QueueMain},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, tt.queues, tt.opts...)
			out, ov := f.buffer("out", 64)
			mustNil(t, f.g.ForceUsed(out))
			bg := f.bindGroup("bg", StorageBuffer(0, ov))
			mustNil(t, f.g.AddComputePass("work", ComputePassDesc{BindGroups: []BindGroup{bg}, Async: tt.async}, nil))

			plan := f.compile()
			if plan.AsyncCompute != tt.wantAsync {
				t.Errorf("AsyncCompute = %v, want %v", plan.AsyncCompute, tt.wantAsync)
			}
			if q := plan.Passes[0].Queue; q != tt.wantQueue {
				t.Errorf("queue = %v, want %v", q, tt.wantQueue)
			}

			f.execute(ExecuteInfo{})
			subs := f.dev.Submissions()
			if len(subs) == 0 || subs[0].Queue != tt.wantQueue {
				t.Fatalf("first submission queue = %v, want %v", subs, tt.wantQueue)
			}
			if got := subs[len(subs)-1].Queue; got != rhi.QueueMain {
				t.Errorf("final submission on %v, want main", got)
			}
		})
	}
}

func TestSubmissionSchedule(t *testing.T) {
	f := newFixture(t, 2)
	a, av := f.buffer("a", 64)
	_, pv := f.buffer("p", 64)
	s, sv := f.buffer("s", 64)
	q, qv := f.buffer("q", 64)
	mustNil(t, f.g.ForceUsed(s))
	mustNil(t, f.g.ForceUsed(q))

	mustNil(t, f.g.AddCopyPass("upload", CopyPassDesc{Dsts: []Resource{a}}, nil))
	prep := f.bindGroup("prep", StorageBuffer(0, pv))
	mustNil(t, f.g.AddComputePass("prep", ComputePassDesc{BindGroups: []BindGroup{prep}, Async: true}, nil))
	mustNil(t, f.g.AddSyncPoint())
	sim := f.bindGroup("sim", UniformBuffer(0, av), StorageBuffer(1, sv))
	mustNil(t, f.g.AddComputePass("sim", ComputePassDesc{BindGroups: []BindGroup{sim}, Async: true}, nil))
	shade := f.bindGroup("shade", UniformBuffer(0, pv), StorageBuffer(1, qv))
	mustNil(t, f.g.AddComputePass("shade", ComputePassDesc{BindGroups: []BindGroup{shade}}, nil))

	plan := f.compile()
	if plan.Batches != 2 {
		t.Errorf("Batches = %d, want 2", plan.Batches)
	}
	want := []SubmissionPlan{
		{Batch: 0, Queue: rhi.QueueAsyncCompute, Passes: []int{1}, Signal: true},
		{Batch: 0, Queue: rhi.QueueMain, Passes: []int{0}, Signal: true},
		{Batch: 1, Queue: rhi.QueueAsyncCompute, Passes: []int{2}, Waits: []int{1}, Signal: true},
		{Batch: 1, Queue: rhi.QueueMain, Passes: []int{3}, Waits: []int{0, 2}, Final: true},
	}
	if len(plan.Submissions) != len(want) {
		t.Fatalf("submissions = %+v", plan.Submissions)
	}
	for i, w := range want {
		got := plan.Submissions[i]
		if got.Batch != w.Batch || got.Queue != w.Queue || got.Signal != w.Signal || got.Final != w.Final ||
			!slices.Equal(got.Passes, w.Passes) || !slices.Equal(got.Waits, w.Waits) {
			t.Errorf("submission %d = %+v, want %+v", i, got, w)
		}
	}

	simPlan := passByName(t, plan, "sim")
	if !slices.Equal(simPlan.Barriers, []Transition{
		{Resource: int(a.index), Before: rhi.StateCopyDst, After: rhi.StateShaderRead},
		{Resource: int(s.index), Before: rhi.StateUndefined, After: rhi.StateUnorderedAccess},
	}) {
		t.Errorf("sim barriers = %+v", simPlan.Barriers)
	}

	f.execute(ExecuteInfo{})
	subs := f.dev.Submissions()
	if len(subs) != 4 {
		t.Fatalf("recorded %d submissions, want 4", len(subs))
	}
	if len(subs[2].Wait) != 1 || subs[2].Wait[0] != subs[1].Signal[0] {
		t.Error("async batch 1 does not wait on main batch 0")
	}
	if len(subs[3].Wait) != 2 || subs[3].Wait[0] != subs[0].Signal[0] || subs[3].Wait[1] != subs[2].Signal[0] {
		t.Error("final main submission does not join both async submissions")
	}
}

func TestBarrierMinimality(t *testing.T) {
	f := newFixture(t, 1)
	tex, tv := f.texture("lut")
	outA, av := f.buffer("outA", 64)
	outB, bv := f.buffer("outB", 64)
	mustNil(t, f.g.ForceUsed(outA))
	mustNil(t, f.g.ForceUsed(outB))
	phys, err := f.dev.CreateBuffer(&rhi.BufferDesc{Label: "constants", Size: 64})
	mustNil(t, err)
	constants, err := f.g.ImportBuffer(phys, ImportDesc{Label: "constants", InitialState: rhi.StateCommon})
	mustNil(t, err)
	cv, err := f.g.CreateBufferView(constants, BufferViewDesc{})
	mustNil(t, err)

	mustNil(t, f.g.AddCopyPass("upload", CopyPassDesc{Dsts: []Resource{tex}}, nil))
	ga := f.bindGroup("a", SampledTexture(0, tv), UniformBuffer(1, cv), StorageBuffer(2, av))
	mustNil(t, f.g.AddComputePass("a", ComputePassDesc{BindGroups: []BindGroup{ga}}, nil))
	gb := f.bindGroup("b", SampledTexture(0, tv), UniformBuffer(1, cv), UniformBuffer(2, av), StorageBuffer(3, bv))
	mustNil(t, f.g.AddComputePass("b", ComputePassDesc{BindGroups: []BindGroup{gb}}, nil))

	plan := f.compile()
	wantBarriers := map[string][]Transition{
		"upload": {{Resource: int(tex.index), Before: rhi.StateUndefined, After: rhi.StateCopyDst}},
		"a": {
			{Resource: int(tex.index), Before: rhi.StateCopyDst, After: rhi.StateShaderRead},
			{Resource: int(outA.index), Before: rhi.StateUndefined, After: rhi.StateUnorderedAccess},
		},
		"b": {
			{Resource: int(outA.index), Before: rhi.StateUnorderedAccess, After: rhi.StateShaderRead},
			{Resource: int(outB.index), Before: rhi.StateUndefined, After: rhi.StateUnorderedAccess},
		},
	}
	for name, want := range wantBarriers {
		if got := passByName(t, plan, name).Barriers; !slices.Equal(got, want) {
			t.Errorf("%s barriers = %+v, want %+v", name, got, want)
		}
	}
	if rp := plan.Resources[constants.index]; rp.EndState != rhi.StateCommon {
		t.Errorf("uniform reads moved constants to %v", rp.EndState)
	}

	f.execute(ExecuteInfo{})
	texPhys, err := f.g.RHITexture(tex)
	mustNil(t, err)
	if got := recordedBarriers(f.dev, texPhys); len(got) != 2 {
		t.Errorf("recorded %d barriers on lut, want 2", len(got))
	}
	if got := recordedBarriers(f.dev, phys); len(got) != 0 {
		t.Errorf("recorded %d barriers on constants, want 0", len(got))
	}
}

// randomGraph builds a chain-shaped graph where pass i writes resource i
// and reads a random subset of earlier resources.
func randomGraph(t *testing.T, rng *rand.Rand) *fixture {
	f := newFixture(t, 1)
	n := 1 + rng.IntN(10)
	bufs := make([]Buffer, n)
	views := make([]BufferView, n)
	for i := range n {
		bufs[i], views[i] = f.buffer(fmt.Sprintf("r%d", i), 64)
		if rng.IntN(4) == 0 {
			mustNil(t, f.g.ForceUsed(bufs[i]))
		}
	}
	for i := range n {
		var reads []int
		for j := 0; j < i; j++ {
			if rng.IntN(3) == 0 {
				reads = append(reads, j)
			}
		}
		name := fmt.Sprintf("p%d", i)
		if rng.IntN(2) == 0 {
			var srcs []Resource
			for _, j := range reads {
				srcs = append(srcs, bufs[j])
			}
			mustNil(t, f.g.AddCopyPass(name, CopyPassDesc{Srcs: srcs, Dsts: []Resource{bufs[i]}}, nil))
		} else {
			entries := []BindGroupEntry{StorageBuffer(0, views[i])}
			for k, j := range reads {
				entries = append(entries, UniformBuffer(uint32(k+1), views[j]))
			}
			bg := f.bindGroup(name, entries...)
			mustNil(t, f.g.AddComputePass(name, ComputePassDesc{BindGroups: []BindGroup{bg}}, nil))
		}
		if rng.IntN(5) == 0 {
			mustNil(t, f.g.AddSyncPoint())
		}
	}
	return f
}

func TestCullProperties(t *testing.T) {
	for seed := range uint64(200) {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			f := randomGraph(t, rand.New(rand.NewPCG(seed, 0)))
			plan := f.compile()

			readers := make([]int, len(plan.Resources))
			for _, pi := range plan.LivePasses() {
				pp := &plan.Passes[pi]
				for _, r := range pp.Reads {
					readers[r]++
				}
				for _, r := range slices.Concat(pp.Reads, pp.Writes) {
					if plan.Resources[r].Culled {
						t.Errorf("live pass %s references culled %s", pp.Name, plan.Resources[r].Label)
					}
				}
			}
			for i, rp := range plan.Resources {
				if rp.Readers != readers[i] {
					t.Errorf("%s: Readers = %d, live readers = %d", rp.Label, rp.Readers, readers[i])
				}
				wantCulled := readers[i] == 0 && !rp.ForceUsed
				if rp.Culled != wantCulled {
					t.Errorf("%s: culled = %v, want %v", rp.Label, rp.Culled, wantCulled)
				}
			}
			for _, pp := range plan.Passes {
				if pp.Culled != plan.Resources[pp.Writes[0]].Culled {
					t.Errorf("pass %s culled = %v, its output culled = %v",
						pp.Name, pp.Culled, plan.Resources[pp.Writes[0]].Culled)
				}
			}
		})
	}
}

func TestBarrierProperties(t *testing.T) {
	for seed := range uint64(200) {
		t.Run(fmt.Sprintf("seed=%d", seed), func(t *testing.T) {
			f := randomGraph(t, rand.New(rand.NewPCG(seed, 1)))
			plan := f.compile()

			state := make([]rhi.ResourceState, len(plan.Resources))
			for _, pi := range plan.LivePasses() {
				pp := &plan.Passes[pi]
				for _, ts := range [][]Transition{pp.Barriers, pp.Handoff} {
					for _, tr := range ts {
						if tr.Before == tr.After {
							t.Errorf("%s: no-op transition %+v", pp.Name, tr)
						}
						if tr.Before != state[tr.Resource] {
							t.Errorf("%s: transition from %v, resource is in %v", pp.Name, tr.Before, state[tr.Resource])
						}
						state[tr.Resource] = tr.After
					}
				}
			}
			for i, rp := range plan.Resources {
				if rp.EndState != state[i] {
					t.Errorf("%s: EndState = %v, simulated %v", rp.Label, rp.EndState, state[i])
				}
			}

			f.execute(ExecuteInfo{})
		})
	}
}
