package gpu

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/cogentcore/webgpu/wgpu"
)

// bindGroupCacheLimit bounds the bind groups cached per layout; the cache is dropped when exceeded.
const bindGroupCacheLimit = 1024

type wgpuDevice struct {
	mu       sync.Mutex
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	nextID   atomic.Uint64
	log      *slog.Logger

	surfaceDesc   *wgpu.SurfaceDescriptor
	forceFallback bool
	presentMode   wgpu.PresentMode
	maxBindGroups uint32
	surfaceFormat wgpu.TextureFormat
}

var _ Device = &wgpuDevice{}

// NewWGPUDevice creates a WebGPU device, and the window surface when WithCompatibleSurface is given.
//
// Parameters:
//   - opts: device options
//
// Returns:
//   - Device: the device
//   - Surface: the surface of the window, nil when created headless
//   - error: error if no adapter or device could be acquired
func NewWGPUDevice(opts ...WGPUDeviceOption) (Device, Surface, error) {
	runtime.LockOSThread()
	d := &wgpuDevice{
		instance:      wgpu.CreateInstance(nil),
		presentMode:   wgpu.PresentModeFifo,
		maxBindGroups: 4,
		surfaceFormat: wgpu.TextureFormatBGRA8Unorm,
		log:           logger.Component("gpu"),
	}
	for _, opt := range opts {
		opt(d)
	}

	var surface *wgpu.Surface
	if d.surfaceDesc != nil {
		surface = d.instance.CreateSurface(d.surfaceDesc)
	}

	a, err := d.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: d.forceFallback,
		CompatibleSurface:    surface,
	})
	if err != nil {
		d.instance.Release()
		return nil, nil, fmt.Errorf("failed to request adapter: %w", err)
	}
	d.adapter = a

	limits := wgpu.DefaultLimits()
	if d.maxBindGroups > limits.MaxBindGroups {
		limits.MaxBindGroups = d.maxBindGroups
	}
	dev, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label:          "Main Device",
		RequiredLimits: &wgpu.RequiredLimits{Limits: limits},
	})
	if err != nil {
		a.Release()
		d.instance.Release()
		return nil, nil, fmt.Errorf("failed to request device: %w", err)
	}
	d.device = dev
	d.queue = dev.GetQueue()

	if surface == nil {
		return d, nil, nil
	}
	caps := surface.GetCapabilities(a)
	if len(caps.Formats) > 0 {
		d.surfaceFormat = caps.Formats[0]
	}
	s := &wgpuSurface{device: d, surface: surface, format: d.surfaceFormat}
	if len(caps.AlphaModes) > 0 {
		s.alphaMode = caps.AlphaModes[0]
	}
	d.log.Info("device created", slog.Any("surface_format", d.surfaceFormat), slog.Any("present_mode", d.presentMode))
	return d, s, nil
}

func (d *wgpuDevice) Backend() BackendType { return BackendTypeWGPU }

func (d *wgpuDevice) id() uint64 { return d.nextID.Add(1) }

type bindSlot struct {
	group   uint32
	binding uint32
}

type wgpuLayout struct {
	device   *wgpuDevice
	desc     *LayoutDesc
	layout   *wgpu.PipelineLayout
	groups   []*wgpu.BindGroupLayout
	bindings [][]uint32
	direct   map[uint32]bindSlot
	tables   map[uint32]map[uint32]bindSlot
	statics  map[bindSlot]*wgpu.Sampler

	cacheMu    sync.Mutex
	bindGroups map[string]*wgpu.BindGroup
}

var _ Layout = &wgpuLayout{}

func (l *wgpuLayout) Label() string     { return l.desc.Label }
func (l *wgpuLayout) Desc() *LayoutDesc { return l.desc }

func (l *wgpuLayout) Release() {
	l.cacheMu.Lock()
	for _, bg := range l.bindGroups {
		bg.Release()
	}
	l.bindGroups = nil
	l.cacheMu.Unlock()
	for _, s := range l.statics {
		s.Release()
	}
	for _, g := range l.groups {
		g.Release()
	}
	if l.layout != nil {
		l.layout.Release()
	}
}

// bindGroup returns the cached bind group for the given entries, creating it on first use.
func (l *wgpuLayout) bindGroup(group uint32, key string, entries []wgpu.BindGroupEntry) (*wgpu.BindGroup, error) {
	l.cacheMu.Lock()
	defer l.cacheMu.Unlock()
	if bg, ok := l.bindGroups[key]; ok {
		return bg, nil
	}
	if len(l.bindGroups) >= bindGroupCacheLimit {
		for _, bg := range l.bindGroups {
			bg.Release()
		}
		l.bindGroups = make(map[string]*wgpu.BindGroup)
	}
	bg, err := l.device.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   fmt.Sprintf("%s Group %d", l.desc.Label, group),
		Layout:  l.groups[group],
		Entries: entries,
	})
	if err != nil {
		return nil, err
	}
	l.bindGroups[key] = bg
	return bg, nil
}

// CreateLayout maps register spaces onto bind groups and registers onto bindings.
// Slots named by more than one parameter are merged with their stage visibility OR-ed.
func (d *wgpuDevice) CreateLayout(desc *LayoutDesc) (Layout, error) {
	if desc == nil {
		return nil, errors.New("nil layout description")
	}
	l := &wgpuLayout{
		device:     d,
		desc:       desc,
		direct:     make(map[uint32]bindSlot),
		tables:     make(map[uint32]map[uint32]bindSlot),
		statics:    make(map[bindSlot]*wgpu.Sampler),
		bindGroups: make(map[string]*wgpu.BindGroup),
	}
	entries := make(map[bindSlot]wgpu.BindGroupLayoutEntry)
	add := func(s bindSlot, e wgpu.BindGroupLayoutEntry) {
		if prev, ok := entries[s]; ok {
			prev.Visibility |= e.Visibility
			entries[s] = prev
			return
		}
		entries[s] = e
	}

	for i, p := range desc.Parameters {
		param := uint32(i)
		switch p.Type {
		case ParameterConstants:
			return nil, fmt.Errorf("layout %q parameter %d: root constants: %w", desc.Label, i, ErrUnsupported)
		case ParameterTable:
			if len(p.Ranges) == 0 {
				return nil, fmt.Errorf("layout %q: table parameter %d has no ranges", desc.Label, i)
			}
			slots := make(map[uint32]bindSlot)
			for _, r := range p.ResolvedRanges() {
				for j := uint32(0); j < r.NumDescriptors; j++ {
					s := bindSlot{group: r.Space, binding: r.BaseRegister + j}
					slots[r.Offset+j] = s
					add(s, layoutEntry(s.binding, p.Visibility, ParameterTable, r.Type, r.Hint))
				}
			}
			l.tables[param] = slots
		default:
			s := bindSlot{group: p.Descriptor.Space, binding: p.Descriptor.Register}
			kind := p.Type
			if p.Descriptor.Hint != HintNone && p.Descriptor.Hint != HintStructuredBuffer && kind == ParameterSRV {
				// A texture addressed directly is laid out like a single-slot table.
				add(s, layoutEntry(s.binding, p.Visibility, ParameterTable, RangeSRV, p.Descriptor.Hint))
			} else {
				add(s, layoutEntry(s.binding, p.Visibility, kind, RangeSRV, p.Descriptor.Hint))
			}
			l.direct[param] = s
		}
	}

	for i, ss := range desc.StaticSamplers {
		s := bindSlot{group: ss.Space, binding: ss.Register}
		hint := HintNone
		if ss.Filter == FilterComparisonLinear || ss.Filter == FilterComparisonPoint {
			hint = HintComparisonSampler
		}
		add(s, layoutEntry(s.binding, ss.Visibility, ParameterTable, RangeSampler, hint))
		sampler, err := d.device.CreateSampler(toWGPUSamplerDescriptor(fmt.Sprintf("%s Static Sampler %d", desc.Label, i), ss))
		if err != nil {
			l.Release()
			return nil, fmt.Errorf("layout %q: failed to create static sampler %d: %w", desc.Label, i, err)
		}
		l.statics[s] = sampler
	}

	groupCount := uint32(0)
	for s := range entries {
		if s.group+1 > groupCount {
			groupCount = s.group + 1
		}
	}
	if groupCount > d.maxBindGroups && groupCount > wgpu.DefaultLimits().MaxBindGroups {
		l.Release()
		return nil, fmt.Errorf("layout %q uses %d register spaces: %w", desc.Label, groupCount, ErrUnsupported)
	}

	grouped := make([][]wgpu.BindGroupLayoutEntry, groupCount)
	l.bindings = make([][]uint32, groupCount)
	for s, e := range entries {
		grouped[s.group] = append(grouped[s.group], e)
	}
	for g := range grouped {
		sort.Slice(grouped[g], func(a, b int) bool { return grouped[g][a].Binding < grouped[g][b].Binding })
		for _, e := range grouped[g] {
			l.bindings[g] = append(l.bindings[g], e.Binding)
		}
		bgl, err := d.device.CreateBindGroupLayout(&wgpu.BindGroupLayoutDescriptor{
			Label:   fmt.Sprintf("%s Group %d", desc.Label, g),
			Entries: grouped[g],
		})
		if err != nil {
			l.Release()
			return nil, fmt.Errorf("layout %q: failed to create bind group layout %d: %w", desc.Label, g, err)
		}
		l.groups = append(l.groups, bgl)
	}

	pl, err := d.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            desc.Label,
		BindGroupLayouts: l.groups,
	})
	if err != nil {
		l.Release()
		return nil, fmt.Errorf("layout %q: failed to create pipeline layout: %w", desc.Label, err)
	}
	l.layout = pl
	return l, nil
}

type wgpuPipeline struct {
	label   string
	render  *wgpu.RenderPipeline
	compute *wgpu.ComputePipeline
	modules []*wgpu.ShaderModule
}

var _ PipelineState = &wgpuPipeline{}

func (p *wgpuPipeline) Label() string { return p.label }
func (p *wgpuPipeline) Compute() bool { return p.compute != nil }

func (p *wgpuPipeline) Release() {
	if p.render != nil {
		p.render.Release()
	}
	if p.compute != nil {
		p.compute.Release()
	}
	for _, m := range p.modules {
		m.Release()
	}
}

func (d *wgpuDevice) shaderModule(prog *ShaderProgram) (*wgpu.ShaderModule, error) {
	if prog.Source == "" {
		return nil, fmt.Errorf("shader %q has no WGSL source: %w", prog.Label, ErrUnsupported)
	}
	return d.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: prog.Label,
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: prog.Source,
		},
	})
}

func (d *wgpuDevice) vertexBuffers(elements []InputElement) ([]wgpu.VertexBufferLayout, error) {
	type slotLayout struct {
		stride uint64
		mode   wgpu.VertexStepMode
		attrs  []wgpu.VertexAttribute
	}
	slots := map[uint32]*slotLayout{}
	maxSlot := int64(-1)
	for _, el := range elements {
		f, err := toWGPUVertexFormat(el.Format)
		if err != nil {
			return nil, fmt.Errorf("input element %s%d: %w", el.SemanticName, el.SemanticIndex, err)
		}
		sl, ok := slots[el.InputSlot]
		if !ok {
			sl = &slotLayout{mode: wgpu.VertexStepModeVertex}
			slots[el.InputSlot] = sl
		}
		if el.Classification == InputPerInstance {
			sl.mode = wgpu.VertexStepModeInstance
		}
		offset := uint64(el.AlignedByteOffset)
		if el.AlignedByteOffset == AppendAligned {
			offset = sl.stride
		}
		sl.attrs = append(sl.attrs, wgpu.VertexAttribute{
			Format:         f,
			Offset:         offset,
			ShaderLocation: el.Location,
		})
		if end := offset + uint64(el.Format.ByteSize()); end > sl.stride {
			sl.stride = end
		}
		if int64(el.InputSlot) > maxSlot {
			maxSlot = int64(el.InputSlot)
		}
	}
	out := make([]wgpu.VertexBufferLayout, maxSlot+1)
	for i := range out {
		sl, ok := slots[uint32(i)]
		if !ok {
			continue
		}
		out[i] = wgpu.VertexBufferLayout{
			ArrayStride: sl.stride,
			StepMode:    sl.mode,
			Attributes:  sl.attrs,
		}
	}
	return out, nil
}

func (d *wgpuDevice) CreateRenderPipeline(desc *RenderPipelineDesc) (PipelineState, error) {
	if desc == nil || desc.VS == nil {
		return nil, errors.New("render pipeline requires a vertex stage")
	}
	layout, ok := desc.Layout.(*wgpuLayout)
	if !ok || layout == nil {
		return nil, fmt.Errorf("render pipeline %q requires a layout created by this device", desc.Label)
	}
	if desc.HS != nil || desc.DS != nil || desc.GS != nil {
		return nil, fmt.Errorf("render pipeline %q: tessellation and geometry stages: %w", desc.Label, ErrUnsupported)
	}
	topology, err := toWGPUPrimitiveTopology(desc.TopologyType)
	if err != nil {
		return nil, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}
	buffers, err := d.vertexBuffers(desc.InputLayout)
	if err != nil {
		return nil, fmt.Errorf("render pipeline %q: %w", desc.Label, err)
	}

	p := &wgpuPipeline{label: desc.Label}
	vs, err := d.shaderModule(desc.VS)
	if err != nil {
		return nil, fmt.Errorf("render pipeline %q: failed to create vertex module: %w", desc.Label, err)
	}
	p.modules = append(p.modules, vs)

	rpd := &wgpu.RenderPipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Vertex: wgpu.VertexState{
			Module:     vs,
			EntryPoint: desc.VS.EntryPoint,
			Buffers:    buffers,
		},
		Primitive: wgpu.PrimitiveState{
			Topology:  topology,
			FrontFace: toWGPUFrontFace(desc.Rasterizer.FrontCounterClockwise),
			CullMode:  toWGPUCullMode(desc.Rasterizer.CullMode),
		},
		Multisample: wgpu.MultisampleState{
			Count: max(desc.SampleCount, 1),
			Mask:  0xFFFFFFFF,
		},
	}
	if desc.SampleMask != 0 {
		rpd.Multisample.Mask = desc.SampleMask
	}

	if desc.PS != nil {
		fs, err := d.shaderModule(desc.PS)
		if err != nil {
			p.Release()
			return nil, fmt.Errorf("render pipeline %q: failed to create fragment module: %w", desc.Label, err)
		}
		p.modules = append(p.modules, fs)
		targets := make([]wgpu.ColorTargetState, 0, desc.NumRenderTargets)
		for i := uint32(0); i < desc.NumRenderTargets && i < MaxRenderTargets; i++ {
			format := d.surfaceFormat
			if desc.RTVFormats[i] != FormatUnknown {
				if format, err = toWGPUTextureFormat(desc.RTVFormats[i]); err != nil {
					p.Release()
					return nil, fmt.Errorf("render pipeline %q target %d: %w", desc.Label, i, err)
				}
			}
			rt := desc.Blend.RenderTargets[0]
			if desc.Blend.IndependentBlendEnable {
				rt = desc.Blend.RenderTargets[i]
			}
			targets = append(targets, wgpu.ColorTargetState{
				Format:    format,
				Blend:     toWGPUBlendState(rt),
				WriteMask: toWGPUWriteMask(rt.WriteMask),
			})
		}
		rpd.Fragment = &wgpu.FragmentState{
			Module:     fs,
			EntryPoint: desc.PS.EntryPoint,
			Targets:    targets,
		}
	}

	depthFormat := wgpu.TextureFormatDepth32Float
	if desc.DSVFormat != FormatUnknown {
		if depthFormat, err = toWGPUTextureFormat(desc.DSVFormat); err != nil {
			p.Release()
			return nil, fmt.Errorf("render pipeline %q depth: %w", desc.Label, err)
		}
	}
	ds := desc.DepthStencil
	compare := wgpu.CompareFunctionAlways
	if ds.DepthEnable {
		compare = toWGPUCompare(ds.DepthFunc)
	}
	rpd.DepthStencil = &wgpu.DepthStencilState{
		Format:              depthFormat,
		DepthWriteEnabled:   ds.DepthEnable && ds.DepthWrite,
		DepthCompare:        compare,
		DepthBias:           desc.Rasterizer.DepthBias,
		DepthBiasSlopeScale: desc.Rasterizer.SlopeScaledDepthBias,
		DepthBiasClamp:      desc.Rasterizer.DepthBiasClamp,
		StencilFront:        toWGPUStencilFace(ds.FrontFace, ds.StencilEnable),
		StencilBack:         toWGPUStencilFace(ds.BackFace, ds.StencilEnable),
		StencilReadMask:     uint32(ds.StencilReadMask),
		StencilWriteMask:    uint32(ds.StencilWriteMask),
	}

	rp, err := d.device.CreateRenderPipeline(rpd)
	if err != nil {
		p.Release()
		return nil, fmt.Errorf("failed to create render pipeline %q: %w", desc.Label, err)
	}
	p.render = rp
	return p, nil
}

func (d *wgpuDevice) CreateComputePipeline(desc *ComputePipelineDesc) (PipelineState, error) {
	if desc == nil || desc.CS == nil {
		return nil, errors.New("compute pipeline requires a compute stage")
	}
	layout, ok := desc.Layout.(*wgpuLayout)
	if !ok || layout == nil {
		return nil, fmt.Errorf("compute pipeline %q requires a layout created by this device", desc.Label)
	}
	cs, err := d.shaderModule(desc.CS)
	if err != nil {
		return nil, fmt.Errorf("compute pipeline %q: failed to create module: %w", desc.Label, err)
	}
	cp, err := d.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  desc.Label,
		Layout: layout.layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     cs,
			EntryPoint: desc.CS.EntryPoint,
		},
	})
	if err != nil {
		cs.Release()
		return nil, fmt.Errorf("failed to create compute pipeline %q: %w", desc.Label, err)
	}
	return &wgpuPipeline{label: desc.Label, compute: cp, modules: []*wgpu.ShaderModule{cs}}, nil
}

func (d *wgpuDevice) CreateBuffer(desc *BufferDesc) (Buffer, error) {
	if desc == nil || desc.Size == 0 {
		return nil, errors.New("buffer size must be non-zero")
	}
	if desc.Usage == BufferUsageStructured && desc.Stride == 0 {
		return nil, errors.New("structured buffer requires a stride")
	}
	var usage wgpu.BufferUsage
	align := uint64(4)
	switch desc.Usage {
	case BufferUsageConstant:
		usage = wgpu.BufferUsageUniform | wgpu.BufferUsageCopyDst
		align = 16
	case BufferUsageStructured:
		usage = wgpu.BufferUsageStorage | wgpu.BufferUsageCopyDst
	case BufferUsageVertex:
		usage = wgpu.BufferUsageVertex | wgpu.BufferUsageCopyDst
	case BufferUsageIndex:
		usage = wgpu.BufferUsageIndex | wgpu.BufferUsageCopyDst
	}
	size := (desc.Size + align - 1) / align * align

	buf, err := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  size,
		Usage: usage,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create buffer %q: %w", desc.Label, err)
	}
	b := &wgpuBuffer{
		device:  d,
		buf:     buf,
		label:   desc.Label,
		usage:   desc.Usage,
		stride:  desc.Stride,
		size:    desc.Size,
		staging: make([]byte, size),
		id:      d.id(),
	}
	if desc.Usage == BufferUsageStructured {
		b.descriptor = &wgpuDescriptor{id: b.id, buffer: buf, size: size}
	}
	return b, nil
}

func (d *wgpuDevice) CreateRenderTarget(desc *RenderTargetDesc) (RenderTarget, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, errors.New("render target size must be non-zero")
	}
	t := &wgpuRenderTarget{device: d, desc: *desc}
	if err := t.create(); err != nil {
		return nil, err
	}
	return t, nil
}

func (d *wgpuDevice) CreateTexture(desc *TextureDesc, pixels []byte) (DescriptorHandle, error) {
	if desc == nil || desc.Width == 0 || desc.Height == 0 {
		return nil, errors.New("texture size must be non-zero")
	}
	bpp := desc.Format.ByteSize()
	need := int(desc.Width * desc.Height * bpp)
	if len(pixels) < need {
		return nil, fmt.Errorf("texture %q: %d bytes of pixel data, need %d", desc.Label, len(pixels), need)
	}
	format, err := toWGPUTextureFormat(desc.Format)
	if err != nil {
		return nil, fmt.Errorf("texture %q: %w", desc.Label, err)
	}
	size := wgpu.Extent3D{Width: desc.Width, Height: desc.Height, DepthOrArrayLayers: 1}
	tex, err := d.device.CreateTexture(&wgpu.TextureDescriptor{
		Label:         desc.Label,
		Size:          size,
		MipLevelCount: 1,
		SampleCount:   1,
		Dimension:     wgpu.TextureDimension2D,
		Format:        format,
		Usage:         wgpu.TextureUsageTextureBinding | wgpu.TextureUsageCopyDst,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create texture %q: %w", desc.Label, err)
	}

	d.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  tex,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		pixels[:need],
		&wgpu.TextureDataLayout{
			Offset:       0,
			BytesPerRow:  desc.Width * bpp,
			RowsPerImage: desc.Height,
		},
		&size,
	)

	view, err := tex.CreateView(nil)
	if err != nil {
		tex.Release()
		return nil, fmt.Errorf("failed to create view of texture %q: %w", desc.Label, err)
	}
	return &wgpuDescriptor{id: d.id(), texture: tex, view: view}, nil
}

func (d *wgpuDevice) CreateSampler(s StaticSampler) (DescriptorHandle, error) {
	sampler, err := d.device.CreateSampler(toWGPUSamplerDescriptor("Sampler", s))
	if err != nil {
		return nil, fmt.Errorf("failed to create sampler: %w", err)
	}
	return &wgpuDescriptor{id: d.id(), sampler: sampler}, nil
}

func (d *wgpuDevice) Submit(buffers ...CommandBuffer) error {
	cbs := make([]*wgpu.CommandBuffer, 0, len(buffers))
	for _, b := range buffers {
		if b == nil {
			continue
		}
		wb, ok := b.(*wgpuCommandBuffer)
		if !ok {
			return fmt.Errorf("command buffer %q does not belong to the WebGPU device", b.Label())
		}
		if wb.cb != nil {
			cbs = append(cbs, wb.cb)
		}
	}
	if len(cbs) == 0 {
		return nil
	}
	d.mu.Lock()
	d.queue.Submit(cbs...)
	d.mu.Unlock()
	for _, cb := range cbs {
		cb.Release()
	}
	for _, b := range buffers {
		if wb, ok := b.(*wgpuCommandBuffer); ok {
			wb.cb = nil
		}
	}
	return nil
}

func (d *wgpuDevice) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.queue != nil {
		d.queue.Release()
		d.queue = nil
	}
	if d.device != nil {
		d.device.Release()
		d.device = nil
	}
	if d.adapter != nil {
		d.adapter.Release()
		d.adapter = nil
	}
	if d.instance != nil {
		d.instance.Release()
		d.instance = nil
	}
}

// wgpuDescriptor is a bindable view, sampler or storage buffer.
type wgpuDescriptor struct {
	id      uint64
	texture *wgpu.Texture
	view    *wgpu.TextureView
	sampler *wgpu.Sampler
	buffer  *wgpu.Buffer
	size    uint64
}

func (h *wgpuDescriptor) GPUVisible() bool {
	return h != nil && (h.view != nil || h.sampler != nil || h.buffer != nil)
}

func (h *wgpuDescriptor) entry(binding uint32) wgpu.BindGroupEntry {
	e := wgpu.BindGroupEntry{Binding: binding}
	switch {
	case h.view != nil:
		e.TextureView = h.view
	case h.sampler != nil:
		e.Sampler = h.sampler
	case h.buffer != nil:
		e.Buffer = h.buffer
		e.Size = wgpu.WholeSize
	}
	return e
}

type wgpuBuffer struct {
	mu         sync.Mutex
	device     *wgpuDevice
	buf        *wgpu.Buffer
	label      string
	usage      BufferUsage
	stride     uint32
	size       uint64
	staging    []byte
	id         uint64
	descriptor *wgpuDescriptor
}

var _ Buffer = &wgpuBuffer{}

func (b *wgpuBuffer) GPUAddress() uint64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf == nil {
		return 0
	}
	return b.id
}

func (b *wgpuBuffer) Label() string      { return b.label }
func (b *wgpuBuffer) Size() uint64       { return b.size }
func (b *wgpuBuffer) Usage() BufferUsage { return b.usage }
func (b *wgpuBuffer) Stride() uint32     { return b.stride }

func (b *wgpuBuffer) Capacity() uint32 {
	if b.stride == 0 {
		return 1
	}
	return uint32(b.size / uint64(b.stride))
}

func (b *wgpuBuffer) Map() ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf == nil {
		return nil, fmt.Errorf("buffer %q has been released", b.label)
	}
	return b.staging[:b.size], nil
}

func (b *wgpuBuffer) Unmap() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf == nil {
		return
	}
	b.device.queue.WriteBuffer(b.buf, 0, b.staging)
}

func (b *wgpuBuffer) Descriptor() DescriptorHandle {
	if b.descriptor == nil {
		return nil
	}
	return b.descriptor
}

func (b *wgpuBuffer) Release() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.buf != nil {
		b.buf.Release()
		b.buf = nil
	}
	if b.descriptor != nil {
		b.descriptor.buffer = nil
	}
}

func (b *wgpuBuffer) entry(binding uint32) wgpu.BindGroupEntry {
	return wgpu.BindGroupEntry{Binding: binding, Buffer: b.buf, Offset: 0, Size: wgpu.WholeSize}
}

type wgpuCommandBuffer struct {
	label string
	cb    *wgpu.CommandBuffer
}

func (c *wgpuCommandBuffer) Label() string { return c.label }
