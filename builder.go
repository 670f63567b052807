package framegraph

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/gogpu/framegraph/pool"
	"github.com/gogpu/framegraph/rhi"
)

// Builder accumulates one frame's resources and passes, then compiles and
// executes them exactly once.
//
// Lifecycle:
//
//	New -> Create*/Import*/Add*Pass/AddSyncPoint -> Execute -> RHI* -> Release
//
// A Builder is owned by one goroutine from New through Release and does no
// locking. The Pools it draws from may be shared.
type Builder struct {
	id     uint64
	device rhi.Device
	pools  *pool.Pools
	opts   options
	log    *slog.Logger

	// ownPools is set when New created a private pool set.
	ownPools bool

	resources  []resource
	views      []view
	bindGroups []bindGroup
	passes     []pass
	batch      int

	plan     *Plan
	executed bool
	released bool

	acquired []acquisition
	frame    frameObjects
}

// New creates a Builder for one frame on device. Physical resources are
// drawn from pools; a nil pools gets a private set that Release invalidates.
func New(device rhi.Device, pools *pool.Pools, opts ...Option) *Builder {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	b := &Builder{
		id:     graphIDs.Add(1),
		device: device,
		pools:  pools,
		opts:   o,
	}
	if b.pools == nil {
		b.pools = pool.New(device, pool.Config{})
		b.ownPools = true
	}
	b.log = o.logger
	if b.log == nil {
		b.log = Logger()
	}
	b.log = b.log.With("graph", o.label)
	return b
}

// Label returns the builder label.
func (b *Builder) Label() string {
	return b.opts.label
}

// checkMutable rejects mutation of an executed or released builder.
func (b *Builder) checkMutable(op string) error {
	switch {
	case b.released:
		return &GraphError{Op: op, Err: ErrGraphReleased}
	case b.executed:
		return &GraphError{Op: op, Err: ErrGraphAlreadyExecuted}
	}
	return nil
}

// mutated drops the cached plan.
func (b *Builder) mutated() {
	b.plan = nil
}

// CreateBuffer registers a graph-owned buffer.
func (b *Builder) CreateBuffer(desc BufferDesc) (Buffer, error) {
	if err := b.checkMutable("create buffer"); err != nil {
		return Buffer{}, err
	}
	if err := validateBufferDesc(&desc); err != nil {
		return Buffer{}, &GraphError{Op: "create buffer", Resource: desc.Label, Err: err}
	}
	idx := b.addResource(resource{kind: ResourceKindBuffer, label: desc.Label, bufferDesc: desc})
	return Buffer{ref{graph: b.id, index: idx}}, nil
}

// CreateTexture registers a graph-owned texture. Zero mip, sample and layer
// counts default to 1.
func (b *Builder) CreateTexture(desc TextureDesc) (Texture, error) {
	if err := b.checkMutable("create texture"); err != nil {
		return Texture{}, err
	}
	if err := normalizeTextureDesc(&desc); err != nil {
		return Texture{}, &GraphError{Op: "create texture", Resource: desc.Label, Err: err}
	}
	idx := b.addResource(resource{kind: ResourceKindTexture, label: desc.Label, textureDesc: desc})
	return Texture{ref{graph: b.id, index: idx}}, nil
}

// ImportBuffer registers a caller-owned buffer. The graph never pools,
// culls or destroys it.
func (b *Builder) ImportBuffer(buf rhi.Buffer, desc ImportDesc) (Buffer, error) {
	if err := b.checkMutable("import buffer"); err != nil {
		return Buffer{}, err
	}
	if buf == nil {
		return Buffer{}, &GraphError{Op: "import buffer", Resource: desc.Label,
			Err: fmt.Errorf("%w: nil buffer", ErrInvalidDescriptor)}
	}
	idx := b.addResource(importedResource(ResourceKindBuffer, buf, desc))
	return Buffer{ref{graph: b.id, index: idx}}, nil
}

// ImportTexture registers a caller-owned texture, e.g. a swapchain image.
func (b *Builder) ImportTexture(tex rhi.Texture, desc ImportDesc) (Texture, error) {
	if err := b.checkMutable("import texture"); err != nil {
		return Texture{}, err
	}
	if tex == nil {
		return Texture{}, &GraphError{Op: "import texture", Resource: desc.Label,
			Err: fmt.Errorf("%w: nil texture", ErrInvalidDescriptor)}
	}
	idx := b.addResource(importedResource(ResourceKindTexture, tex, desc))
	return Texture{ref{graph: b.id, index: idx}}, nil
}

func importedResource(kind ResourceKind, obj rhi.Object, desc ImportDesc) resource {
	final := desc.FinalState
	if final == rhi.StateUndefined {
		final = desc.InitialState
	}
	return resource{
		kind:         kind,
		label:        desc.Label,
		imported:     obj,
		initialState: desc.InitialState,
		finalState:   final,
	}
}

func (b *Builder) addResource(r resource) uint32 {
	b.mutated()
	b.resources = append(b.resources, r)
	return uint32(len(b.resources) - 1)
}

// CreateBufferView registers a view of buf. A zero Size covers the rest of
// the buffer.
func (b *Builder) CreateBufferView(buf Buffer, desc BufferViewDesc) (BufferView, error) {
	if err := b.checkMutable("create buffer view"); err != nil {
		return BufferView{}, err
	}
	owner, err := b.lookupResource(buf.ref, ResourceKindBuffer)
	if err == nil {
		err = normalizeBufferViewDesc(owner, &desc)
	}
	if err != nil {
		return BufferView{}, &GraphError{Op: "create buffer view", Resource: desc.Label, Err: err}
	}
	idx := b.addView(view{kind: ResourceKindBuffer, owner: buf.index, bufferDesc: desc})
	return BufferView{ref{graph: b.id, index: idx}}, nil
}

// CreateTextureView registers a view of tex. Zero mip and layer counts cover
// the rest of the texture; an undefined format inherits the texture format.
func (b *Builder) CreateTextureView(tex Texture, desc TextureViewDesc) (TextureView, error) {
	if err := b.checkMutable("create texture view"); err != nil {
		return TextureView{}, err
	}
	owner, err := b.lookupResource(tex.ref, ResourceKindTexture)
	if err == nil {
		err = normalizeTextureViewDesc(owner, &desc)
	}
	if err != nil {
		return TextureView{}, &GraphError{Op: "create texture view", Resource: desc.Label, Err: err}
	}
	idx := b.addView(view{kind: ResourceKindTexture, owner: tex.index, textureDesc: desc})
	return TextureView{ref{graph: b.id, index: idx}}, nil
}

func (b *Builder) addView(v view) uint32 {
	b.mutated()
	b.views = append(b.views, v)
	return uint32(len(b.views) - 1)
}

// ForceUsed pins r against culling even if no pass reads it.
func (b *Builder) ForceUsed(r Resource) error {
	if err := b.checkMutable("force used"); err != nil {
		return err
	}
	if r == nil {
		return &GraphError{Op: "force used", Err: ErrInvalidHandle}
	}
	res, err := b.lookupResource(r.resourceRef(), r.resourceKind())
	if err != nil {
		return &GraphError{Op: "force used", Err: err}
	}
	b.mutated()
	res.forced = true
	return nil
}

// AllocateBindGroup registers a bind group descriptor. The entries are
// copied; the caller may reuse the slice.
func (b *Builder) AllocateBindGroup(desc BindGroupDesc) (BindGroup, error) {
	if err := b.checkMutable("allocate bind group"); err != nil {
		return BindGroup{}, err
	}
	if err := b.validateBindGroup(&desc); err != nil {
		return BindGroup{}, &GraphError{Op: "allocate bind group", Resource: desc.Label, Err: err}
	}
	desc.Entries = slices.Clone(desc.Entries)
	b.mutated()
	b.bindGroups = append(b.bindGroups, bindGroup{desc: desc})
	return BindGroup{ref{graph: b.id, index: uint32(len(b.bindGroups) - 1)}}, nil
}

// AddCopyPass appends a copy pass. Srcs are reads, Dsts are writes.
func (b *Builder) AddCopyPass(name string, desc CopyPassDesc, fn PassFunc) error {
	desc.Srcs = slices.Clone(desc.Srcs)
	desc.Dsts = slices.Clone(desc.Dsts)
	return b.addPass(pass{name: name, kind: PassKindCopy, copy: desc, fn: fn})
}

// AddComputePass appends a compute pass.
func (b *Builder) AddComputePass(name string, desc ComputePassDesc, fn PassFunc) error {
	desc.BindGroups = slices.Clone(desc.BindGroups)
	return b.addPass(pass{name: name, kind: PassKindCompute, compute: desc, fn: fn})
}

// AddRasterPass appends a raster pass.
func (b *Builder) AddRasterPass(name string, desc RasterPassDesc, fn PassFunc) error {
	desc.BindGroups = slices.Clone(desc.BindGroups)
	desc.ColorAttachments = slices.Clone(desc.ColorAttachments)
	if desc.DepthStencil != nil {
		ds := *desc.DepthStencil
		desc.DepthStencil = &ds
	}
	return b.addPass(pass{name: name, kind: PassKindRaster, raster: desc, fn: fn})
}

func (b *Builder) addPass(p pass) error {
	op := "add " + p.kind.String() + " pass"
	if err := b.checkMutable(op); err != nil {
		return err
	}
	if err := b.validatePass(&p); err != nil {
		return &GraphError{Op: op, Pass: p.name, Err: err}
	}
	p.batch = b.batch
	b.mutated()
	b.passes = append(b.passes, p)
	return nil
}

// AddSyncPoint closes the current batch. Passes added afterwards may consume
// resources produced on the other queue before the sync point.
func (b *Builder) AddSyncPoint() error {
	if err := b.checkMutable("add sync point"); err != nil {
		return err
	}
	b.mutated()
	b.batch++
	return nil
}

// Compile analyzes the graph without executing it. The result is cached
// until the next mutation. Execute calls Compile itself.
func (b *Builder) Compile() (*Plan, error) {
	if b.released {
		return nil, &GraphError{Op: "compile", Err: ErrGraphReleased}
	}
	if b.plan != nil {
		return b.plan, nil
	}
	plan, err := b.compile()
	if err != nil {
		return nil, err
	}
	b.plan = plan
	return plan, nil
}

// RHIBuffer returns the physical buffer behind h after Execute.
func (b *Builder) RHIBuffer(h Buffer) (rhi.Buffer, error) {
	return b.physicalResource(h.ref, ResourceKindBuffer)
}

// RHITexture returns the physical texture behind h after Execute.
func (b *Builder) RHITexture(h Texture) (rhi.Texture, error) {
	return b.physicalResource(h.ref, ResourceKindTexture)
}

// RHIBufferView returns the physical buffer view behind h after Execute.
func (b *Builder) RHIBufferView(h BufferView) (rhi.BufferView, error) {
	return b.physicalView(h.ref, ResourceKindBuffer)
}

// RHITextureView returns the physical texture view behind h after Execute.
func (b *Builder) RHITextureView(h TextureView) (rhi.TextureView, error) {
	return b.physicalView(h.ref, ResourceKindTexture)
}

// RHIBindGroup returns the physical bind group behind h after Execute.
// A bind group is realized only if every view it binds survived culling.
func (b *Builder) RHIBindGroup(h BindGroup) (rhi.BindGroup, error) {
	if err := b.checkAccessible(); err != nil {
		return nil, err
	}
	g, err := b.lookupBindGroup(h.ref)
	if err != nil {
		return nil, err
	}
	if g.physical == nil {
		return nil, b.unrealized()
	}
	return g.physical, nil
}

func (b *Builder) physicalResource(r ref, kind ResourceKind) (rhi.Object, error) {
	if err := b.checkAccessible(); err != nil {
		return nil, err
	}
	res, err := b.lookupResource(r, kind)
	if err != nil {
		return nil, err
	}
	if res.culled {
		return nil, ErrResourceCulled
	}
	if res.physical == nil {
		return nil, ErrNotExecuted
	}
	return res.physical, nil
}

func (b *Builder) physicalView(r ref, kind ResourceKind) (rhi.Object, error) {
	if err := b.checkAccessible(); err != nil {
		return nil, err
	}
	v, err := b.lookupView(r, kind)
	if err != nil {
		return nil, err
	}
	if v.physical == nil {
		return nil, b.unrealized()
	}
	return v.physical, nil
}

// unrealized classifies a missing physical object: culled if devirtualization
// ran, otherwise not executed.
func (b *Builder) unrealized() error {
	if b.plan != nil && b.frame.devirtualized {
		return ErrResourceCulled
	}
	return ErrNotExecuted
}

func (b *Builder) checkAccessible() error {
	switch {
	case b.released:
		return ErrGraphReleased
	case !b.executed:
		return ErrNotExecuted
	}
	return nil
}

// Release returns every pooled object acquired by Execute to its pool and
// frees per-frame command buffers and semaphores. Call it once the frame's
// fence has signaled. Release is idempotent.
func (b *Builder) Release() {
	if b.released {
		return
	}
	b.released = true

	for _, a := range b.acquired {
		switch a.kind {
		case ResourceKindBuffer:
			b.pools.Buffers.Release(a.lease)
		case ResourceKindTexture:
			b.pools.Textures.Release(a.lease)
		}
	}
	b.acquired = nil
	b.frame.free(b.device)

	if b.ownPools {
		b.pools.Invalidate()
	}
}
