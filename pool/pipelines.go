package pool

import (
	"errors"
	"fmt"

	"github.com/gogpu/framegraph/internal/cache"
	"github.com/gogpu/framegraph/rhi"
	"github.com/gogpu/naga"
)

// MaxBindGroups is the maximum number of bind group layouts per pipeline.
const MaxBindGroups = 4

// Pipeline errors.
var (
	// ErrTooManyBindGroups is returned for programs with more than
	// MaxBindGroups layouts.
	ErrTooManyBindGroups = errors.New("pool: too many bind group layouts")

	// ErrShaderCompile wraps WGSL compilation failures.
	ErrShaderCompile = errors.New("pool: shader compilation failed")
)

// ComputeProgram describes a compute pipeline built from WGSL source.
type ComputeProgram struct {
	Label string

	// WGSL is the shader source.
	WGSL string

	// EntryPoint defaults to "main".
	EntryPoint string

	// Layouts describe bind groups 0..len-1.
	Layouts []rhi.BindGroupLayoutDesc
}

// ComputePipeline is a compiled program with its bind group layouts.
type ComputePipeline struct {
	Pipeline rhi.ComputePipeline
	Layouts  []rhi.BindGroupLayout

	module rhi.ShaderModule
}

type pipelineKey struct {
	source  string
	entry   string
	layouts [MaxBindGroups]rhi.BindGroupLayout
	count   int
}

// compileFunc turns WGSL into SPIR-V bytes.
type compileFunc func(source string, debug bool) ([]byte, error)

func nagaCompile(source string, debug bool) ([]byte, error) {
	opts := naga.DefaultOptions()
	opts.Debug = debug
	return naga.CompileWithOptions(source, opts)
}

// PipelineCache compiles and caches compute pipelines. Layouts come from
// the shared LayoutCache, so programs with equal layouts share them.
type PipelineCache struct {
	device    rhi.Device
	layouts   *LayoutCache
	pipelines *cache.Cache[pipelineKey, *ComputePipeline]
	compile   compileFunc
	debug     bool
	metrics   *Metrics
}

func newPipelineCache(device rhi.Device, layouts *LayoutCache, cfg Config, m *Metrics) *PipelineCache {
	return &PipelineCache{
		device:  device,
		layouts: layouts,
		pipelines: cache.New(cfg.PipelineCacheLimit, func(_ pipelineKey, p *ComputePipeline) {
			device.DestroyComputePipeline(p.Pipeline)
			device.DestroyShaderModule(p.module)
			m.destroy(poolPipelines, 1)
		}),
		compile: nagaCompile,
		debug:   cfg.ShaderDebug,
		metrics: m,
	}
}

// Compute returns the pipeline for prog, compiling it on first use.
func (c *PipelineCache) Compute(prog *ComputeProgram) (*ComputePipeline, error) {
	if len(prog.Layouts) > MaxBindGroups {
		return nil, fmt.Errorf("%w: %d > %d", ErrTooManyBindGroups, len(prog.Layouts), MaxBindGroups)
	}
	entry := prog.EntryPoint
	if entry == "" {
		entry = "main"
	}

	key := pipelineKey{source: prog.WGSL, entry: entry, count: len(prog.Layouts)}
	for i := range prog.Layouts {
		l, err := c.layouts.GetOrCreate(&prog.Layouts[i])
		if err != nil {
			return nil, fmt.Errorf("pool: %s: bind group layout %d: %w", prog.Label, i, err)
		}
		key.layouts[i] = l
	}

	p, hit, err := c.pipelines.GetOrCreate(key, func() (*ComputePipeline, error) {
		return c.build(prog.Label, entry, &key)
	})
	switch {
	case err != nil:
		c.metrics.miss(poolPipelines)
		return nil, err
	case hit:
		c.metrics.hit(poolPipelines)
	default:
		c.metrics.miss(poolPipelines)
		c.metrics.allocated(poolPipelines)
	}
	return p, nil
}

func (c *PipelineCache) build(label, entry string, key *pipelineKey) (*ComputePipeline, error) {
	spirvBytes, err := c.compile(key.source, c.debug)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrShaderCompile, label, err)
	}
	if len(spirvBytes)%4 != 0 {
		return nil, fmt.Errorf("%w: %s: SPIR-V length %d is not a multiple of 4", ErrShaderCompile, label, len(spirvBytes))
	}

	// SPIR-V is little-endian 32-bit words.
	code := make([]uint32, len(spirvBytes)/4)
	for i := range code {
		code[i] = uint32(spirvBytes[i*4]) |
			uint32(spirvBytes[i*4+1])<<8 |
			uint32(spirvBytes[i*4+2])<<16 |
			uint32(spirvBytes[i*4+3])<<24
	}

	module, err := c.device.CreateShaderModule(&rhi.ShaderModuleDesc{Label: label, SPIRV: code})
	if err != nil {
		return nil, fmt.Errorf("pool: %s: create shader module: %w", label, err)
	}
	layouts := append([]rhi.BindGroupLayout(nil), key.layouts[:key.count]...)
	pipeline, err := c.device.CreateComputePipeline(&rhi.ComputePipelineDesc{
		Label:      label,
		Module:     module,
		EntryPoint: entry,
		Layouts:    layouts,
	})
	if err != nil {
		c.device.DestroyShaderModule(module)
		return nil, fmt.Errorf("pool: %s: create compute pipeline: %w", label, err)
	}
	slogger().Debug("pool: compiled compute pipeline", "label", label, "words", len(code))
	return &ComputePipeline{Pipeline: pipeline, Layouts: layouts, module: module}, nil
}

// Len returns the number of cached pipelines.
func (c *PipelineCache) Len() int {
	return c.pipelines.Len()
}

func (c *PipelineCache) trim() int {
	return c.pipelines.Trim()
}

func (c *PipelineCache) clear() {
	c.pipelines.Clear()
}
