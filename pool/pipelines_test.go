package pool

import (
	"errors"
	"testing"

	"github.com/gogpu/framegraph/recording"
	"github.com/gogpu/framegraph/rhi"
	"github.com/gogpu/gputypes"
)

const blurWGSL = `
@group(0) @binding(0) var<storage, read_write> data: array<f32>;

@compute @workgroup_size(64)
fn main(@builtin(global_invocation_id) id: vec3<u32>) {
    data[id.x] = data[id.x] * 0.5;
}
`

func fakeCompile(calls *int) compileFunc {
	return func(string, bool) ([]byte, error) {
		*calls++
		return []byte{0x03, 0x02, 0x23, 0x07, 0x00, 0x03, 0x01, 0x00}, nil
	}
}

func storageLayout() rhi.BindGroupLayoutDesc {
	return rhi.BindGroupLayoutDesc{Entries: []rhi.BindGroupLayoutEntry{
		{Binding: 0, Visibility: gputypes.ShaderStageCompute, Type: rhi.BindingStorageBuffer},
	}}
}

func TestPipelineCache(t *testing.T) {
	dev, p := newTestPools(t, Config{})
	var calls int
	p.Pipelines.compile = fakeCompile(&calls)

	prog := &ComputeProgram{Label: "blur", WGSL: blurWGSL, Layouts: []rhi.BindGroupLayoutDesc{storageLayout()}}
	a, err := p.Pipelines.Compute(prog)
	if err != nil {
		t.Fatalf("Compute: %v", err)
	}
	b, err := p.Pipelines.Compute(&ComputeProgram{Label: "blur again", WGSL: blurWGSL, EntryPoint: "main", Layouts: []rhi.BindGroupLayoutDesc{storageLayout()}})
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("identical programs compiled twice")
	}
	if calls != 1 {
		t.Errorf("compile called %d times, want 1", calls)
	}
	if len(a.Layouts) != 1 || p.Layouts.Len() != 1 {
		t.Errorf("layouts = %d, cached = %d", len(a.Layouts), p.Layouts.Len())
	}

	pipeline := a.Pipeline.(*recording.Object)
	desc := pipeline.Desc.(rhi.ComputePipelineDesc)
	if desc.EntryPoint != "main" {
		t.Errorf("EntryPoint = %q, want main", desc.EntryPoint)
	}
	if words := desc.Module.(*recording.Object).Desc.(int); words != 2 {
		t.Errorf("SPIR-V words = %d, want 2", words)
	}

	p.Invalidate()
	for _, kind := range []recording.ObjectKind{recording.KindComputePipeline, recording.KindShaderModule} {
		if got := dev.Live(kind); got != 0 {
			t.Errorf("live %v = %d after Invalidate", kind, got)
		}
	}
	checkNoViolations(t, dev)
}

func TestPipelineCacheEntryPoints(t *testing.T) {
	_, p := newTestPools(t, Config{})
	var calls int
	p.Pipelines.compile = fakeCompile(&calls)

	a, _ := p.Pipelines.Compute(&ComputeProgram{WGSL: blurWGSL, EntryPoint: "horizontal"})
	b, _ := p.Pipelines.Compute(&ComputeProgram{WGSL: blurWGSL, EntryPoint: "vertical"})
	if a == b {
		t.Error("different entry points share a pipeline")
	}
	if p.Pipelines.Len() != 2 {
		t.Errorf("Len() = %d, want 2", p.Pipelines.Len())
	}
}

func TestPipelineCacheErrors(t *testing.T) {
	tests := []struct {
		name    string
		prog    *ComputeProgram
		compile compileFunc
		fail    recording.Op
		wantErr error
	}{
		{
			name:    "too many layouts",
			prog:    &ComputeProgram{WGSL: blurWGSL, Layouts: make([]rhi.BindGroupLayoutDesc, MaxBindGroups+1)},
			wantErr: ErrTooManyBindGroups,
		},
		{
			name: "compile failure",
			prog: &ComputeProgram{WGSL: "fn"},
			compile: func(string, bool) ([]byte, error) {
				return nil, errors.New("parse error")
			},
			wantErr: ErrShaderCompile,
		},
		{
			name: "truncated SPIR-V",
			prog: &ComputeProgram{WGSL: blurWGSL},
			compile: func(string, bool) ([]byte, error) {
				return []byte{1, 2, 3}, nil
			},
			wantErr: ErrShaderCompile,
		},
		{
			name:    "pipeline creation",
			prog:    &ComputeProgram{WGSL: blurWGSL},
			fail:    recording.OpCreateComputePipeline,
			wantErr: recording.ErrInjected,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev, p := newTestPools(t, Config{})
			var calls int
			p.Pipelines.compile = fakeCompile(&calls)
			if tt.compile != nil {
				p.Pipelines.compile = tt.compile
			}
			if tt.fail != 0 {
				dev.Fail(tt.fail, errors.New("boom"))
			}

			_, err := p.Pipelines.Compute(tt.prog)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Compute() error = %v, want %v", err, tt.wantErr)
			}
			if p.Pipelines.Len() != 0 {
				t.Errorf("failed program was cached")
			}
			if got := dev.Live(recording.KindShaderModule); got != 0 {
				t.Errorf("leaked %d shader modules", got)
			}
		})
	}
}

func TestNagaCompile(t *testing.T) {
	spirv, err := nagaCompile(blurWGSL, false)
	if err != nil {
		t.Fatalf("nagaCompile: %v", err)
	}
	if len(spirv) == 0 || len(spirv)%4 != 0 {
		t.Fatalf("SPIR-V length = %d", len(spirv))
	}
	// SPIR-V magic number, little-endian.
	if magic := uint32(spirv[0]) | uint32(spirv[1])<<8 | uint32(spirv[2])<<16 | uint32(spirv[3])<<24; magic != 0x07230203 {
		t.Errorf("magic = %#x", magic)
	}
}
