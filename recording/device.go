package recording

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/framegraph/rhi"
)

// ObjectKind identifies the kind of a recorded device object.
type ObjectKind uint8

const (
	KindBuffer ObjectKind = iota
	KindTexture
	KindBufferView
	KindTextureView
	KindSampler
	KindBindGroupLayout
	KindBindGroup
	KindShaderModule
	KindComputePipeline
	KindRenderPipeline
	KindCommandBuffer
	KindSemaphore
	KindFence
)

var objectKindNames = [...]string{
	KindBuffer:          "Buffer",
	KindTexture:         "Texture",
	KindBufferView:      "BufferView",
	KindTextureView:     "TextureView",
	KindSampler:         "Sampler",
	KindBindGroupLayout: "BindGroupLayout",
	KindBindGroup:       "BindGroup",
	KindShaderModule:    "ShaderModule",
	KindComputePipeline: "ComputePipeline",
	KindRenderPipeline:  "RenderPipeline",
	KindCommandBuffer:   "CommandBuffer",
	KindSemaphore:       "Semaphore",
	KindFence:           "Fence",
}

// String returns the kind name.
func (k ObjectKind) String() string {
	if int(k) < len(objectKindNames) {
		return objectKindNames[k]
	}
	return "Unknown"
}

// Object is a device object. Desc holds a copy of the creation descriptor
// (for example rhi.BufferDesc), and Parent the resource a view was created
// from.
type Object struct {
	Kind   ObjectKind
	ID     uint64
	Desc   any
	Parent *Object

	label     string
	destroyed bool
}

// Label implements rhi.Object.
func (o *Object) Label() string { return o.label }

// Destroyed reports whether the object was destroyed or freed.
func (o *Object) Destroyed() bool { return o.destroyed }

// String returns "Kind#ID(label)".
func (o *Object) String() string {
	return fmt.Sprintf("%v#%d(%s)", o.Kind, o.ID, o.label)
}

// Op names a device operation for fault injection.
type Op uint8

const (
	OpCreateBuffer Op = iota
	OpCreateTexture
	OpCreateBufferView
	OpCreateTextureView
	OpCreateSampler
	OpCreateBindGroupLayout
	OpCreateBindGroup
	OpCreateShaderModule
	OpCreateComputePipeline
	OpCreateSemaphore
	OpCreateCommandRecorder
	OpEnd
	OpSubmit
	OpPresent

	opCount

	// opNone marks objects that cannot fail to create.
	opNone = opCount
)

// ErrInjected is returned by operations failed with Fail.
var ErrInjected = errors.New("recording: injected fault")

// Device is an in-memory rhi.Device. It records everything submitted to its
// queues, simulates resource states across submissions and reports
// inconsistent barriers as violations.
//
// Device is safe for concurrent use.
type Device struct {
	mu            sync.Mutex
	computeQueues int
	nextID        uint64
	live          map[*Object]struct{}
	created       [KindFence + 1]int
	faults        [opCount]error
	queues        [2]*Queue

	submissions []*Submission
	presents    []Present
	states      map[*Object]rhi.ResourceState
	signaled    map[*Object]bool
	violations  []string
}

// Option configures a Device.
type Option func(*Device)

// WithComputeQueues sets the number of compute-capable queues, counting the
// main queue. Values below 2 give a device without an async compute queue.
func WithComputeQueues(n int) Option {
	return func(d *Device) {
		d.computeQueues = n
	}
}

// NewDevice creates a device with a main queue and, by default, an async
// compute queue.
func NewDevice(opts ...Option) *Device {
	d := &Device{
		computeQueues: 2,
		live:          make(map[*Object]struct{}),
		states:        make(map[*Object]rhi.ResourceState),
		signaled:      make(map[*Object]bool),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.queues[rhi.QueueMain] = &Queue{device: d, typ: rhi.QueueMain}
	if d.computeQueues >= 2 {
		d.queues[rhi.QueueAsyncCompute] = &Queue{device: d, typ: rhi.QueueAsyncCompute}
	}
	return d
}

// Fail makes every subsequent op fail with err. A nil err clears the fault.
func (d *Device) Fail(op Op, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if err != nil && !errors.Is(err, ErrInjected) {
		err = fmt.Errorf("%w: %w", ErrInjected, err)
	}
	d.faults[op] = err
}

func (d *Device) fault(op Op) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.faults[op]
}

func (d *Device) newObject(op Op, kind ObjectKind, label string, desc any, parent *Object) (*Object, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if op < opCount && d.faults[op] != nil {
		return nil, d.faults[op]
	}
	d.nextID++
	d.created[kind]++
	o := &Object{Kind: kind, ID: d.nextID, Desc: desc, Parent: parent, label: label}
	d.live[o] = struct{}{}
	return o, nil
}

func (d *Device) destroy(obj rhi.Object, kind ObjectKind) {
	o, ok := obj.(*Object)
	if !ok || o == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if o.Kind != kind {
		d.violations = append(d.violations, fmt.Sprintf("destroy %v as %v", o, kind))
		return
	}
	if o.destroyed {
		d.violations = append(d.violations, fmt.Sprintf("double destroy of %v", o))
		return
	}
	o.destroyed = true
	delete(d.live, o)
	delete(d.states, o)
}

// Capabilities implements rhi.Device.
func (d *Device) Capabilities() rhi.Capabilities {
	return rhi.Capabilities{ComputeQueueCount: d.computeQueues}
}

// Queue implements rhi.Device. It returns nil for a missing async queue.
func (d *Device) Queue(t rhi.QueueType) rhi.Queue {
	if int(t) >= len(d.queues) || d.queues[t] == nil {
		return nil
	}
	return d.queues[t]
}

// CreateBuffer implements rhi.Device.
func (d *Device) CreateBuffer(desc *rhi.BufferDesc) (rhi.Buffer, error) {
	return result(d.newObject(OpCreateBuffer, KindBuffer, desc.Label, *desc, nil))
}

// DestroyBuffer implements rhi.Device.
func (d *Device) DestroyBuffer(b rhi.Buffer) { d.destroy(b, KindBuffer) }

// CreateTexture implements rhi.Device.
func (d *Device) CreateTexture(desc *rhi.TextureDesc) (rhi.Texture, error) {
	return result(d.newObject(OpCreateTexture, KindTexture, desc.Label, *desc, nil))
}

// DestroyTexture implements rhi.Device.
func (d *Device) DestroyTexture(t rhi.Texture) { d.destroy(t, KindTexture) }

// CreateBufferView implements rhi.Device.
func (d *Device) CreateBufferView(b rhi.Buffer, desc *rhi.BufferViewDesc) (rhi.BufferView, error) {
	parent, _ := b.(*Object)
	return result(d.newObject(OpCreateBufferView, KindBufferView, desc.Label, *desc, parent))
}

// DestroyBufferView implements rhi.Device.
func (d *Device) DestroyBufferView(v rhi.BufferView) { d.destroy(v, KindBufferView) }

// CreateTextureView implements rhi.Device.
func (d *Device) CreateTextureView(t rhi.Texture, desc *rhi.TextureViewDesc) (rhi.TextureView, error) {
	parent, _ := t.(*Object)
	return result(d.newObject(OpCreateTextureView, KindTextureView, desc.Label, *desc, parent))
}

// DestroyTextureView implements rhi.Device.
func (d *Device) DestroyTextureView(v rhi.TextureView) { d.destroy(v, KindTextureView) }

// CreateSampler implements rhi.Device.
func (d *Device) CreateSampler(desc *rhi.SamplerDesc) (rhi.Sampler, error) {
	return result(d.newObject(OpCreateSampler, KindSampler, desc.Label, *desc, nil))
}

// DestroySampler implements rhi.Device.
func (d *Device) DestroySampler(s rhi.Sampler) { d.destroy(s, KindSampler) }

// CreateBindGroupLayout implements rhi.Device.
func (d *Device) CreateBindGroupLayout(desc *rhi.BindGroupLayoutDesc) (rhi.BindGroupLayout, error) {
	return result(d.newObject(OpCreateBindGroupLayout, KindBindGroupLayout, desc.Label, cloneLayoutDesc(desc), nil))
}

// DestroyBindGroupLayout implements rhi.Device.
func (d *Device) DestroyBindGroupLayout(l rhi.BindGroupLayout) { d.destroy(l, KindBindGroupLayout) }

// CreateBindGroup implements rhi.Device.
func (d *Device) CreateBindGroup(desc *rhi.BindGroupDesc) (rhi.BindGroup, error) {
	c := *desc
	c.Entries = append([]rhi.BindGroupEntry(nil), desc.Entries...)
	return result(d.newObject(OpCreateBindGroup, KindBindGroup, desc.Label, c, nil))
}

// DestroyBindGroup implements rhi.Device.
func (d *Device) DestroyBindGroup(g rhi.BindGroup) { d.destroy(g, KindBindGroup) }

// CreateShaderModule implements rhi.Device.
func (d *Device) CreateShaderModule(desc *rhi.ShaderModuleDesc) (rhi.ShaderModule, error) {
	return result(d.newObject(OpCreateShaderModule, KindShaderModule, desc.Label, len(desc.SPIRV), nil))
}

// DestroyShaderModule implements rhi.Device.
func (d *Device) DestroyShaderModule(m rhi.ShaderModule) { d.destroy(m, KindShaderModule) }

// CreateComputePipeline implements rhi.Device.
func (d *Device) CreateComputePipeline(desc *rhi.ComputePipelineDesc) (rhi.ComputePipeline, error) {
	c := *desc
	c.Layouts = append([]rhi.BindGroupLayout(nil), desc.Layouts...)
	return result(d.newObject(OpCreateComputePipeline, KindComputePipeline, desc.Label, c, nil))
}

// DestroyComputePipeline implements rhi.Device.
func (d *Device) DestroyComputePipeline(p rhi.ComputePipeline) { d.destroy(p, KindComputePipeline) }

// CreateSemaphore implements rhi.Device.
func (d *Device) CreateSemaphore(label string) (rhi.Semaphore, error) {
	return result(d.newObject(OpCreateSemaphore, KindSemaphore, label, nil, nil))
}

// DestroySemaphore implements rhi.Device.
func (d *Device) DestroySemaphore(s rhi.Semaphore) {
	d.destroy(s, KindSemaphore)
	if o, ok := s.(*Object); ok {
		d.mu.Lock()
		delete(d.signaled, o)
		d.mu.Unlock()
	}
}

// CreateCommandRecorder implements rhi.Device.
func (d *Device) CreateCommandRecorder(label string, q rhi.QueueType) (rhi.CommandRecorder, error) {
	if err := d.fault(OpCreateCommandRecorder); err != nil {
		return nil, err
	}
	if d.Queue(q) == nil {
		return nil, fmt.Errorf("recording: no %v queue", q)
	}
	return &CommandRecorder{device: d, label: label, queue: q}, nil
}

// FreeCommandBuffer implements rhi.Device.
func (d *Device) FreeCommandBuffer(cb rhi.CommandBuffer) {
	c, ok := cb.(*CommandBuffer)
	if !ok || c == nil {
		return
	}
	d.destroy(c.Object, KindCommandBuffer)
}

// NewRenderPipeline creates a render pipeline object for raster passes.
func (d *Device) NewRenderPipeline(label string) rhi.RenderPipeline {
	o, _ := d.newObject(opNone, KindRenderPipeline, label, nil, nil)
	return o
}

// NewFence creates a fence object for submissions.
func (d *Device) NewFence(label string) rhi.Fence {
	o, _ := d.newObject(opNone, KindFence, label, nil, nil)
	return o
}

// Signal marks a semaphore as signaled, as an external producer such as a
// swapchain acquire would.
func (d *Device) Signal(s rhi.Semaphore) {
	if o, ok := s.(*Object); ok {
		d.mu.Lock()
		d.signaled[o] = true
		d.mu.Unlock()
	}
}

// SetState seeds the tracked state of a resource, as if earlier work had
// left it there.
func (d *Device) SetState(obj rhi.Object, s rhi.ResourceState) {
	if o, ok := obj.(*Object); ok {
		d.mu.Lock()
		d.states[o] = s
		d.mu.Unlock()
	}
}

// State returns the tracked state of a resource after all submitted work.
// The second result is false if no barrier has touched the resource.
func (d *Device) State(obj rhi.Object) (rhi.ResourceState, bool) {
	o, ok := obj.(*Object)
	if !ok {
		return rhi.StateUndefined, false
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s, ok := d.states[o]
	return s, ok
}

// Live returns the number of live objects of the given kind.
func (d *Device) Live(kind ObjectKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for o := range d.live {
		if o.Kind == kind {
			n++
		}
	}
	return n
}

// Created returns the number of objects of the given kind created so far.
func (d *Device) Created(kind ObjectKind) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.created[kind]
}

// Submissions returns all submissions in submission order.
func (d *Device) Submissions() []*Submission {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Submission(nil), d.submissions...)
}

// Presents returns all present operations in order.
func (d *Device) Presents() []Present {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]Present(nil), d.presents...)
}

// Violations returns every inconsistency observed so far, such as a barrier
// whose before state does not match the tracked state or a wait on a
// semaphore nothing signaled.
func (d *Device) Violations() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.violations...)
}

// Reset forgets submissions, presents, states and violations. Objects stay.
func (d *Device) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submissions = nil
	d.presents = nil
	d.violations = nil
	clear(d.states)
}

// result keeps a failed creation from producing a non-nil interface.
func result(o *Object, err error) (rhi.Object, error) {
	if err != nil {
		return nil, err
	}
	return o, nil
}

func cloneLayoutDesc(desc *rhi.BindGroupLayoutDesc) rhi.BindGroupLayoutDesc {
	c := *desc
	c.Entries = append([]rhi.BindGroupLayoutEntry(nil), desc.Entries...)
	return c
}
