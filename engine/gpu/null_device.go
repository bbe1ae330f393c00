package gpu

import (
	"errors"
	"fmt"
	"sync"
)

// Op names a recorded command.
type Op string

const (
	OpSetPipelineState       Op = "SetPipelineState"
	OpSetLayout              Op = "SetLayout"
	OpSetTopology            Op = "SetTopology"
	OpSetRootConstantBuffer  Op = "SetRootConstantBuffer"
	OpSetRootShaderResource  Op = "SetRootShaderResource"
	OpSetRootUnorderedAccess Op = "SetRootUnorderedAccess"
	OpSetDescriptorTable     Op = "SetDescriptorTable"
	OpSetVertexBuffer        Op = "SetVertexBuffer"
	OpSetIndexBuffer         Op = "SetIndexBuffer"
	OpDrawInstanced          Op = "DrawInstanced"
	OpDrawIndexedInstanced   Op = "DrawIndexedInstanced"
	OpDispatch               Op = "Dispatch"
)

// DrawArgs are the arguments of a recorded draw or dispatch.
type DrawArgs struct {
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	StartVertex   uint32
	StartIndex    uint32
	BaseVertex    int32
	StartInstance uint32
	GroupsX       uint32
	GroupsY       uint32
	GroupsZ       uint32
}

// Command is one call recorded by a NullCommandList.
type Command struct {
	Op        Op
	Parameter uint32
	Offset    uint32
	// Label is the label of the pipeline, layout or buffer the command refers to.
	Label    string
	Topology Topology
	Resource Resource
	Handle   DescriptorHandle
	Draw     DrawArgs
}

// NullDevice is a headless Device that allocates CPU memory and records every command.
// It is safe for concurrent use.
type NullDevice struct {
	mu          sync.Mutex
	nextAddress uint64
	allocations int
	releases    int
	submitted   []*NullCommandBuffer

	// FailBufferAllocation makes CreateBuffer return an error.
	FailBufferAllocation bool
}

var _ Device = &NullDevice{}

// NewNullDevice creates a headless recording device.
//
// Returns:
//   - *NullDevice: the new device
func NewNullDevice() *NullDevice {
	return &NullDevice{nextAddress: 0x1000}
}

func (d *NullDevice) Backend() BackendType { return BackendTypeNull }

func (d *NullDevice) address() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextAddress += 0x100
	return d.nextAddress
}

func (d *NullDevice) CreateLayout(desc *LayoutDesc) (Layout, error) {
	if desc == nil {
		return nil, errors.New("nil layout description")
	}
	for i, p := range desc.Parameters {
		if p.Type == ParameterTable && len(p.Ranges) == 0 {
			return nil, fmt.Errorf("layout %q: table parameter %d has no ranges", desc.Label, i)
		}
	}
	cp := *desc
	return &nullLayout{desc: &cp}, nil
}

func (d *NullDevice) CreateRenderPipeline(desc *RenderPipelineDesc) (PipelineState, error) {
	if desc == nil || desc.VS == nil {
		return nil, errors.New("render pipeline requires a vertex stage")
	}
	if desc.Layout == nil {
		return nil, errors.New("render pipeline requires a layout")
	}
	return &nullPipeline{label: desc.Label}, nil
}

func (d *NullDevice) CreateComputePipeline(desc *ComputePipelineDesc) (PipelineState, error) {
	if desc == nil || desc.CS == nil {
		return nil, errors.New("compute pipeline requires a compute stage")
	}
	if desc.Layout == nil {
		return nil, errors.New("compute pipeline requires a layout")
	}
	return &nullPipeline{label: desc.Label, compute: true}, nil
}

func (d *NullDevice) CreateBuffer(desc *BufferDesc) (Buffer, error) {
	if d.FailBufferAllocation {
		return nil, errors.New("buffer allocation disabled")
	}
	if desc == nil || desc.Size == 0 {
		return nil, errors.New("buffer size must be non-zero")
	}
	if desc.Usage == BufferUsageStructured && desc.Stride == 0 {
		return nil, errors.New("structured buffer requires a stride")
	}
	addr := d.address()
	d.mu.Lock()
	d.allocations++
	d.mu.Unlock()
	b := &NullBuffer{
		device:  d,
		label:   desc.Label,
		usage:   desc.Usage,
		stride:  desc.Stride,
		address: addr,
		data:    make([]byte, desc.Size),
	}
	if desc.Usage == BufferUsageStructured {
		b.descriptor = &NullDescriptor{ID: addr}
	}
	return b, nil
}

func (d *NullDevice) CreateRenderTarget(desc *RenderTargetDesc) (RenderTarget, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, errors.New("render target size must be non-zero")
	}
	t := &NullRenderTarget{label: desc.Label, width: desc.Width, height: desc.Height}
	if desc.ColorFormat != FormatUnknown {
		t.color = &NullDescriptor{ID: d.address()}
	}
	if desc.DepthFormat != FormatUnknown {
		t.depth = &NullDescriptor{ID: d.address()}
	}
	return t, nil
}

func (d *NullDevice) CreateTexture(desc *TextureDesc, pixels []byte) (DescriptorHandle, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, errors.New("texture size must be non-zero")
	}
	need := int(desc.Width * desc.Height * desc.Format.ByteSize())
	if len(pixels) < need {
		return nil, fmt.Errorf("texture %q: %d bytes of pixel data, need %d", desc.Label, len(pixels), need)
	}
	return &NullDescriptor{ID: d.address()}, nil
}

func (d *NullDevice) CreateSampler(StaticSampler) (DescriptorHandle, error) {
	return &NullDescriptor{ID: d.address()}, nil
}

func (d *NullDevice) Submit(buffers ...CommandBuffer) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, b := range buffers {
		if b == nil {
			continue
		}
		nb, ok := b.(*NullCommandBuffer)
		if !ok {
			return fmt.Errorf("command buffer %q does not belong to the null device", b.Label())
		}
		d.submitted = append(d.submitted, nb)
	}
	return nil
}

func (d *NullDevice) Release() {}

// Allocations returns the number of buffers created so far.
func (d *NullDevice) Allocations() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.allocations
}

// Releases returns the number of buffers released so far.
func (d *NullDevice) Releases() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.releases
}

// Submitted returns every command buffer submitted so far, in order.
func (d *NullDevice) Submitted() []*NullCommandBuffer {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*NullCommandBuffer, len(d.submitted))
	copy(out, d.submitted)
	return out
}

// ResetSubmitted forgets every submitted command buffer.
func (d *NullDevice) ResetSubmitted() {
	d.mu.Lock()
	d.submitted = nil
	d.mu.Unlock()
}

type nullLayout struct {
	desc *LayoutDesc
}

func (l *nullLayout) Label() string     { return l.desc.Label }
func (l *nullLayout) Desc() *LayoutDesc { return l.desc }
func (l *nullLayout) Release()          {}

type nullPipeline struct {
	label   string
	compute bool
}

func (p *nullPipeline) Label() string { return p.label }
func (p *nullPipeline) Compute() bool { return p.compute }
func (p *nullPipeline) Release()      {}

// NullDescriptor is a descriptor handle of the null device.
type NullDescriptor struct {
	ID uint64
}

func (h *NullDescriptor) GPUVisible() bool { return h != nil && h.ID != 0 }

// NullBuffer is a buffer of the null device backed by a byte slice.
type NullBuffer struct {
	device     *NullDevice
	label      string
	usage      BufferUsage
	stride     uint32
	address    uint64
	data       []byte
	descriptor *NullDescriptor
	released   bool

	// Unmaps counts how many times the contents were flushed.
	Unmaps int
}

var _ Buffer = &NullBuffer{}

func (b *NullBuffer) GPUAddress() uint64 {
	if b.released {
		return 0
	}
	return b.address
}

func (b *NullBuffer) Label() string      { return b.label }
func (b *NullBuffer) Size() uint64       { return uint64(len(b.data)) }
func (b *NullBuffer) Usage() BufferUsage { return b.usage }
func (b *NullBuffer) Stride() uint32     { return b.stride }

func (b *NullBuffer) Capacity() uint32 {
	if b.stride == 0 {
		return 1
	}
	return uint32(len(b.data)) / b.stride
}

func (b *NullBuffer) Map() ([]byte, error) {
	if b.released {
		return nil, fmt.Errorf("buffer %q was released", b.label)
	}
	return b.data, nil
}

func (b *NullBuffer) Unmap() { b.Unmaps++ }

func (b *NullBuffer) Descriptor() DescriptorHandle {
	if b.descriptor == nil {
		return nil
	}
	return b.descriptor
}

// Bytes returns the current contents without mapping.
func (b *NullBuffer) Bytes() []byte { return b.data }

// Released reports whether Release was called.
func (b *NullBuffer) Released() bool { return b.released }

func (b *NullBuffer) Release() {
	if b.released {
		return
	}
	b.released = true
	b.device.mu.Lock()
	b.device.releases++
	b.device.mu.Unlock()
}

// NullCommandList records every call it receives.
type NullCommandList struct {
	label    string
	commands []Command
}

var _ CommandList = &NullCommandList{}

// NewNullCommandList creates a standalone recording list.
//
// Parameters:
//   - label: the list label
//
// Returns:
//   - *NullCommandList: the new list
func NewNullCommandList(label string) *NullCommandList {
	return &NullCommandList{label: label}
}

func (c *NullCommandList) Label() string { return c.label }

func (c *NullCommandList) record(cmd Command) { c.commands = append(c.commands, cmd) }

func (c *NullCommandList) SetPipelineState(ps PipelineState) {
	c.record(Command{Op: OpSetPipelineState, Label: ps.Label()})
}

func (c *NullCommandList) SetLayout(l Layout) {
	c.record(Command{Op: OpSetLayout, Label: l.Label()})
}

func (c *NullCommandList) SetTopology(t Topology) {
	c.record(Command{Op: OpSetTopology, Topology: t})
}

func (c *NullCommandList) SetRootConstantBuffer(parameter uint32, r Resource) {
	c.record(Command{Op: OpSetRootConstantBuffer, Parameter: parameter, Resource: r})
}

func (c *NullCommandList) SetRootShaderResource(parameter uint32, r Resource) {
	c.record(Command{Op: OpSetRootShaderResource, Parameter: parameter, Resource: r})
}

func (c *NullCommandList) SetRootUnorderedAccess(parameter uint32, r Resource) {
	c.record(Command{Op: OpSetRootUnorderedAccess, Parameter: parameter, Resource: r})
}

func (c *NullCommandList) SetDescriptorTable(parameter, offset uint32, h DescriptorHandle) {
	c.record(Command{Op: OpSetDescriptorTable, Parameter: parameter, Offset: offset, Handle: h})
}

func (c *NullCommandList) SetVertexBuffer(slot uint32, b Buffer) {
	c.record(Command{Op: OpSetVertexBuffer, Parameter: slot, Label: b.Label(), Resource: b})
}

func (c *NullCommandList) SetIndexBuffer(b Buffer) {
	c.record(Command{Op: OpSetIndexBuffer, Label: b.Label(), Resource: b})
}

func (c *NullCommandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	c.record(Command{Op: OpDrawInstanced, Draw: DrawArgs{
		VertexCount: vertexCount, InstanceCount: instanceCount, StartVertex: startVertex, StartInstance: startInstance,
	}})
}

func (c *NullCommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	c.record(Command{Op: OpDrawIndexedInstanced, Draw: DrawArgs{
		IndexCount: indexCount, InstanceCount: instanceCount, StartIndex: startIndex, BaseVertex: baseVertex, StartInstance: startInstance,
	}})
}

func (c *NullCommandList) Dispatch(x, y, z uint32) {
	c.record(Command{Op: OpDispatch, Draw: DrawArgs{GroupsX: x, GroupsY: y, GroupsZ: z}})
}

// Commands returns every recorded command in order.
func (c *NullCommandList) Commands() []Command { return c.commands }

// Count returns how many commands with the given op were recorded.
func (c *NullCommandList) Count(op Op) int {
	n := 0
	for _, cmd := range c.commands {
		if cmd.Op == op {
			n++
		}
	}
	return n
}

// Draws returns the recorded draw commands of either kind.
func (c *NullCommandList) Draws() []Command {
	var out []Command
	for _, cmd := range c.commands {
		if cmd.Op == OpDrawInstanced || cmd.Op == OpDrawIndexedInstanced {
			out = append(out, cmd)
		}
	}
	return out
}

// Reset drops every recorded command.
func (c *NullCommandList) Reset() { c.commands = nil }

// NullCommandBuffer is a finished NullCommandList.
type NullCommandBuffer struct {
	label    string
	Commands []Command
}

func (b *NullCommandBuffer) Label() string { return b.label }

// NullRenderTarget is a render target of the null device.
type NullRenderTarget struct {
	label  string
	width  uint32
	height uint32
	color  *NullDescriptor
	depth  *NullDescriptor
	list   *NullCommandList

	// Begins counts successful Begin calls.
	Begins int
	// FailBegin makes Begin return an error.
	FailBegin bool
}

var _ RenderTarget = &NullRenderTarget{}

func (t *NullRenderTarget) Label() string  { return t.label }
func (t *NullRenderTarget) Width() uint32  { return t.width }
func (t *NullRenderTarget) Height() uint32 { return t.height }

func (t *NullRenderTarget) Begin(clear bool) (CommandList, error) {
	if t.FailBegin {
		return nil, fmt.Errorf("render target %q: begin disabled", t.label)
	}
	if t.list != nil {
		return nil, fmt.Errorf("render target %q is already recording", t.label)
	}
	t.list = NewNullCommandList(t.label)
	t.Begins++
	return t.list, nil
}

func (t *NullRenderTarget) End() (CommandBuffer, error) {
	if t.list == nil {
		return nil, fmt.Errorf("render target %q is not recording", t.label)
	}
	cb := &NullCommandBuffer{label: t.label, Commands: t.list.commands}
	t.list = nil
	return cb, nil
}

func (t *NullRenderTarget) Recording() bool { return t.list != nil }

// CommandList returns the list being recorded, nil when not recording.
func (t *NullRenderTarget) CommandList() *NullCommandList { return t.list }

func (t *NullRenderTarget) ColorView() DescriptorHandle {
	if t.color == nil {
		return nil
	}
	return t.color
}

func (t *NullRenderTarget) DepthView() DescriptorHandle {
	if t.depth == nil {
		return nil
	}
	return t.depth
}

func (t *NullRenderTarget) Resize(width, height uint32) error {
	if t.list != nil {
		return fmt.Errorf("render target %q: resize while recording", t.label)
	}
	t.width, t.height = width, height
	return nil
}

func (t *NullRenderTarget) Release() {}

// NullSurface is a window swap chain of the null device.
type NullSurface struct {
	label    string
	width    uint32
	height   uint32
	list     *NullCommandList
	clear    [4]float32
	Presents int
}

var _ Surface = &NullSurface{}

// NewNullSurface creates a headless swap chain.
//
// Parameters:
//   - label: the surface label
//
// Returns:
//   - *NullSurface: the new surface
func NewNullSurface(label string) *NullSurface {
	return &NullSurface{label: label}
}

func (s *NullSurface) Configure(width, height uint32) error {
	s.width, s.height = width, height
	return nil
}

func (s *NullSurface) SetClearColor(c [4]float32) { s.clear = c }

// ClearColor returns the color set by SetClearColor.
func (s *NullSurface) ClearColor() [4]float32 { return s.clear }

// Size returns the size of the last Configure.
func (s *NullSurface) Size() (uint32, uint32) { return s.width, s.height }

func (s *NullSurface) Begin() (CommandList, error) {
	if s.list != nil {
		return nil, fmt.Errorf("surface %q: previous frame not ended", s.label)
	}
	s.list = NewNullCommandList(s.label)
	return s.list, nil
}

func (s *NullSurface) CommandList() CommandList {
	if s.list == nil {
		return nil
	}
	return s.list
}

func (s *NullSurface) End() (CommandBuffer, error) {
	if s.list == nil {
		return nil, fmt.Errorf("surface %q is not recording", s.label)
	}
	cb := &NullCommandBuffer{label: s.label, Commands: s.list.commands}
	s.list = nil
	return cb, nil
}

func (s *NullSurface) Present() { s.Presents++ }

func (s *NullSurface) Release() {}
