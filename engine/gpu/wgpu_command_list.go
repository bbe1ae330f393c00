package gpu

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cogentcore/webgpu/wgpu"
)

// bindable is a value bound to one slot of the current layout.
type bindable interface {
	entry(binding uint32) wgpu.BindGroupEntry
}

type boundValue struct {
	id    uint64
	value bindable
}

// wgpuCommandList records into one encoder. Render passes are begun lazily on the first draw,
// compute passes on the first dispatch; switching between them ends the open pass.
type wgpuCommandList struct {
	device *wgpuDevice
	label  string

	encoder     *wgpu.CommandEncoder
	colorView   *wgpu.TextureView
	depthView   *wgpu.TextureView
	clearColor  wgpu.Color
	clearDepth  float32
	clear       bool
	passStarted bool

	render  *wgpu.RenderPassEncoder
	compute *wgpu.ComputePassEncoder

	pipeline      *wgpuPipeline
	layout        *wgpuLayout
	topology      Topology
	bound         map[bindSlot]boundValue
	vertexBuffers map[uint32]*wgpuBuffer
	indexBuffer   *wgpuBuffer

	appliedPipeline *wgpuPipeline
	appliedGroups   map[uint32]string
	err             error
}

var _ CommandList = &wgpuCommandList{}

func newWGPUCommandList(d *wgpuDevice, label string, color, depth *wgpu.TextureView, clear bool, clearColor [4]float32, clearDepth float32) (*wgpuCommandList, error) {
	encoder, err := d.device.CreateCommandEncoder(&wgpu.CommandEncoderDescriptor{Label: label})
	if err != nil {
		return nil, fmt.Errorf("failed to create command encoder for %q: %w", label, err)
	}
	return &wgpuCommandList{
		device:    d,
		label:     label,
		encoder:   encoder,
		colorView: color,
		depthView: depth,
		clear:     clear,
		clearColor: wgpu.Color{
			R: float64(clearColor[0]),
			G: float64(clearColor[1]),
			B: float64(clearColor[2]),
			A: float64(clearColor[3]),
		},
		clearDepth:    clearDepth,
		bound:         make(map[bindSlot]boundValue),
		vertexBuffers: make(map[uint32]*wgpuBuffer),
		appliedGroups: make(map[uint32]string),
	}, nil
}

func (c *wgpuCommandList) Label() string { return c.label }

func (c *wgpuCommandList) SetPipelineState(ps PipelineState) {
	p, ok := ps.(*wgpuPipeline)
	if !ok {
		c.fail(fmt.Errorf("pipeline %T does not belong to the WebGPU device", ps))
		return
	}
	c.pipeline = p
}

func (c *wgpuCommandList) SetLayout(l Layout) {
	wl, ok := l.(*wgpuLayout)
	if !ok {
		c.fail(fmt.Errorf("layout %T does not belong to the WebGPU device", l))
		return
	}
	if c.layout != wl {
		c.layout = wl
		c.bound = make(map[bindSlot]boundValue)
		c.appliedGroups = make(map[uint32]string)
	}
}

// SetTopology is recorded only; WebGPU bakes the topology into the pipeline.
func (c *wgpuCommandList) SetTopology(t Topology) { c.topology = t }

func (c *wgpuCommandList) SetRootConstantBuffer(parameter uint32, r Resource) {
	c.bindDirect(parameter, r)
}

func (c *wgpuCommandList) SetRootShaderResource(parameter uint32, r Resource) {
	c.bindDirect(parameter, r)
}

func (c *wgpuCommandList) SetRootUnorderedAccess(parameter uint32, r Resource) {
	c.bindDirect(parameter, r)
}

func (c *wgpuCommandList) bindDirect(parameter uint32, r Resource) {
	if c.layout == nil {
		c.fail(fmt.Errorf("parameter %d bound before a layout was set", parameter))
		return
	}
	s, ok := c.layout.direct[parameter]
	if !ok {
		c.fail(fmt.Errorf("layout %q has no direct parameter %d", c.layout.desc.Label, parameter))
		return
	}
	b, ok := r.(*wgpuBuffer)
	if !ok || b.buf == nil {
		c.fail(fmt.Errorf("parameter %d: resource %T is not a live WebGPU buffer", parameter, r))
		return
	}
	c.bound[s] = boundValue{id: b.id, value: b}
}

func (c *wgpuCommandList) SetDescriptorTable(parameter, offset uint32, h DescriptorHandle) {
	if c.layout == nil {
		c.fail(fmt.Errorf("table %d bound before a layout was set", parameter))
		return
	}
	slots, ok := c.layout.tables[parameter]
	if !ok {
		c.fail(fmt.Errorf("layout %q has no table parameter %d", c.layout.desc.Label, parameter))
		return
	}
	s, ok := slots[offset]
	if !ok {
		c.fail(fmt.Errorf("table %d of layout %q has no slot at offset %d", parameter, c.layout.desc.Label, offset))
		return
	}
	d, ok := h.(*wgpuDescriptor)
	if !ok || !d.GPUVisible() {
		c.fail(fmt.Errorf("table %d offset %d: descriptor %T is not GPU visible", parameter, offset, h))
		return
	}
	c.bound[s] = boundValue{id: d.id, value: d}
}

func (c *wgpuCommandList) SetVertexBuffer(slot uint32, b Buffer) {
	wb, ok := b.(*wgpuBuffer)
	if !ok {
		c.fail(fmt.Errorf("vertex buffer %T does not belong to the WebGPU device", b))
		return
	}
	c.vertexBuffers[slot] = wb
}

func (c *wgpuCommandList) SetIndexBuffer(b Buffer) {
	wb, ok := b.(*wgpuBuffer)
	if !ok {
		c.fail(fmt.Errorf("index buffer %T does not belong to the WebGPU device", b))
		return
	}
	c.indexBuffer = wb
}

func (c *wgpuCommandList) DrawInstanced(vertexCount, instanceCount, startVertex, startInstance uint32) {
	if !c.prepareDraw() {
		return
	}
	c.render.Draw(vertexCount, instanceCount, startVertex, startInstance)
}

func (c *wgpuCommandList) DrawIndexedInstanced(indexCount, instanceCount, startIndex uint32, baseVertex int32, startInstance uint32) {
	if c.indexBuffer == nil {
		c.fail(fmt.Errorf("indexed draw without an index buffer"))
		return
	}
	if !c.prepareDraw() {
		return
	}
	c.render.SetIndexBuffer(c.indexBuffer.buf, wgpu.IndexFormatUint32, 0, wgpu.WholeSize)
	c.render.DrawIndexed(indexCount, instanceCount, startIndex, baseVertex, startInstance)
}

func (c *wgpuCommandList) Dispatch(x, y, z uint32) {
	if c.pipeline == nil || c.pipeline.compute == nil {
		c.fail(fmt.Errorf("dispatch without a compute pipeline"))
		return
	}
	if c.render != nil {
		c.endRenderPass()
	}
	if c.compute == nil {
		c.compute = c.encoder.BeginComputePass(nil)
		c.appliedPipeline = nil
		c.appliedGroups = make(map[uint32]string)
	}
	if c.appliedPipeline != c.pipeline {
		c.compute.SetPipeline(c.pipeline.compute)
		c.appliedPipeline = c.pipeline
	}
	if !c.applyGroups(func(i uint32, bg *wgpu.BindGroup) { c.compute.SetBindGroup(i, bg, nil) }) {
		return
	}
	c.compute.DispatchWorkgroups(x, y, z)
}

func (c *wgpuCommandList) prepareDraw() bool {
	if c.pipeline == nil || c.pipeline.render == nil {
		c.fail(fmt.Errorf("draw without a render pipeline"))
		return false
	}
	if c.compute != nil {
		c.compute.End()
		c.compute.Release()
		c.compute = nil
	}
	if c.render == nil {
		c.beginRenderPass()
	}
	if c.appliedPipeline != c.pipeline {
		c.render.SetPipeline(c.pipeline.render)
		c.appliedPipeline = c.pipeline
	}
	if !c.applyGroups(func(i uint32, bg *wgpu.BindGroup) { c.render.SetBindGroup(i, bg, nil) }) {
		return false
	}
	for slot, b := range c.vertexBuffers {
		c.render.SetVertexBuffer(slot, b.buf, 0, wgpu.WholeSize)
	}
	return true
}

// applyGroups creates or reuses the bind group of every group of the layout and sets the ones
// that changed since the last draw. A group with an unbound slot fails the draw.
func (c *wgpuCommandList) applyGroups(set func(uint32, *wgpu.BindGroup)) bool {
	if c.layout == nil {
		c.fail(fmt.Errorf("draw without a layout"))
		return false
	}
	for g, bindings := range c.layout.bindings {
		group := uint32(g)
		var key strings.Builder
		entries := make([]wgpu.BindGroupEntry, 0, len(bindings))
		for _, binding := range bindings {
			s := bindSlot{group: group, binding: binding}
			if sampler, ok := c.layout.statics[s]; ok {
				entries = append(entries, wgpu.BindGroupEntry{Binding: binding, Sampler: sampler})
				key.WriteString("s,")
				continue
			}
			v, ok := c.bound[s]
			if !ok {
				c.fail(fmt.Errorf("layout %q: group %d binding %d is not bound", c.layout.desc.Label, group, binding))
				return false
			}
			entries = append(entries, v.value.entry(binding))
			key.WriteString(strconv.FormatUint(v.id, 16))
			key.WriteByte(',')
		}
		k := strconv.Itoa(g) + ":" + key.String()
		if c.appliedGroups[group] == k {
			continue
		}
		bg, err := c.layout.bindGroup(group, k, entries)
		if err != nil {
			c.fail(fmt.Errorf("layout %q: failed to create bind group %d: %w", c.layout.desc.Label, group, err))
			return false
		}
		set(group, bg)
		c.appliedGroups[group] = k
	}
	return true
}

func (c *wgpuCommandList) beginRenderPass() {
	loadOp := wgpu.LoadOpLoad
	if c.clear && !c.passStarted {
		loadOp = wgpu.LoadOpClear
	}
	desc := &wgpu.RenderPassDescriptor{Label: c.label}
	if c.colorView != nil {
		desc.ColorAttachments = []wgpu.RenderPassColorAttachment{{
			View:       c.colorView,
			LoadOp:     loadOp,
			StoreOp:    wgpu.StoreOpStore,
			ClearValue: c.clearColor,
		}}
	}
	if c.depthView != nil {
		desc.DepthStencilAttachment = &wgpu.RenderPassDepthStencilAttachment{
			View:            c.depthView,
			DepthLoadOp:     loadOp,
			DepthStoreOp:    wgpu.StoreOpStore,
			DepthClearValue: c.clearDepth,
		}
	}
	c.render = c.encoder.BeginRenderPass(desc)
	c.passStarted = true
	c.appliedPipeline = nil
	c.appliedGroups = make(map[uint32]string)
}

func (c *wgpuCommandList) endRenderPass() {
	c.render.End()
	c.render.Release()
	c.render = nil
}

func (c *wgpuCommandList) fail(err error) {
	if c.err == nil {
		c.err = err
	}
	c.device.log.Error("command rejected", "list", c.label, "error", err)
}

// finish ends any open pass and returns the recorded command buffer. A cleared target that saw
// no draw still gets an empty pass so its clear happens.
func (c *wgpuCommandList) finish() (*wgpuCommandBuffer, error) {
	if c.compute != nil {
		c.compute.End()
		c.compute.Release()
		c.compute = nil
	}
	if c.render == nil && c.clear && !c.passStarted {
		c.beginRenderPass()
	}
	if c.render != nil {
		c.endRenderPass()
	}
	cb, err := c.encoder.Finish(nil)
	c.encoder.Release()
	c.encoder = nil
	if err != nil {
		return nil, fmt.Errorf("failed to finish %q: %w", c.label, err)
	}
	return &wgpuCommandBuffer{label: c.label, cb: cb}, nil
}
