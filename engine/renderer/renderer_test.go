package renderer

import (
	"encoding/binary"
	"encoding/json"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/profiler"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// quadCompiler serves canned reflections for quad.wgsl.
type quadCompiler struct{}

func (quadCompiler) Compile(info shader.CompileInfo) (shader.Shader, error) {
	var r shader.Reflection
	switch info.EntryPoint {
	case "vs_main":
		r.Resources = []shader.Resource{
			{Name: "camera", Kind: shader.KindConstantBuffer, BindPoint: 0, BindCount: 1, Size: 64},
			{Name: "instances", Kind: shader.KindStructured, BindPoint: 1, BindCount: 1, Size: 16},
		}
		r.Inputs = []shader.Parameter{{SemanticName: "POSITION", Location: 0, UsageMask: 0x7, ComponentType: gpu.ComponentFloat}}
	case "fs_main":
		r.Outputs = []shader.Parameter{{SemanticName: "SV_Target", Location: 0, UsageMask: 0xF}}
	}
	return shader.New(info, "// "+info.FilePath, nil, &r), nil
}

func (c quadCompiler) CompileSource(info shader.CompileInfo, _ string) (shader.Shader, error) {
	return c.Compile(info)
}

const quadDoc = `{
	"Name": "Quad",
	"PipelineType": "Render",
	"Shader": {
		"AutoRootDescriptorFromShader": true,
		"AutoInputLayoutFromVS": true,
		"AutoTopologyFromShaders": true,
		"Vertex": {"Path": "quad.wgsl", "EntryPoint": "vs_main", "TargetProfile": "vs_6_0"},
		"Pixel": {"Path": "quad.wgsl", "EntryPoint": "fs_main", "TargetProfile": "ps_6_0"}
	},
	"RasterizerState": {"CullMode": "D3D12_CULL_MODE_NONE", "FillMode": "D3D12_FILL_MODE_SOLID"},
	"BlendState": {"RenderTargets": [{"BlendEnable": true, "SrcBlend": "D3D12_BLEND_SRC_ALPHA", "DestBlend": "D3D12_BLEND_INV_SRC_ALPHA", "RenderTargetWriteMask": "D3D12_COLOR_WRITE_ENABLE_ALL"}]},
	"DepthStencilState": {"DepthEnable": false, "DepthWriteMask": "D3D12_DEPTH_WRITE_MASK_ZERO", "DepthFunc": "D3D12_COMPARISON_FUNC_LESS_EQUAL"},
	"PipelineState": {"RTVFormats": ["DXGI_FORMAT_R8G8B8A8_UNORM"], "SampleDesc": {"Count": 1, "Quality": 0}}
}`

const (
	cameraVar    = "Vertex:camera"
	instancesVar = "Vertex:instances"
)

func quadSource(t *testing.T) *pipeline.MemorySource {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(quadDoc), &m))
	src := &pipeline.MemorySource{}
	src.AddPipeline(preset.Document(m))
	return src
}

func newTestRenderer(t *testing.T, options ...RendererBuilderOption) (Renderer, *gpu.NullDevice, pipeline.Manager) {
	t.Helper()
	d := gpu.NewNullDevice()
	m := pipeline.NewManager(d, pipeline.WithCompiler(quadCompiler{}))
	require.NoError(t, m.Load(quadSource(t)))
	require.True(t, m.Has("Quad"))
	return NewRenderer(d, m, options...), d, m
}

type fakeWindow struct {
	label     string
	surface   *gpu.NullSurface
	minimized bool
	hidden    bool
	closing   bool
}

func newFakeWindow(label string) *fakeWindow {
	return &fakeWindow{label: label, surface: gpu.NewNullSurface(label)}
}

func (w *fakeWindow) Label() string { return w.label }

func (w *fakeWindow) Surface() gpu.Surface {
	if w.surface == nil {
		return nil
	}
	return w.surface
}

func (w *fakeWindow) IsPendingDestroy() bool { return w.closing }
func (w *fakeWindow) IsMinimized() bool      { return w.minimized }
func (w *fakeWindow) IsVisible() bool        { return !w.hidden }

// beginFrame starts a surface frame and returns the list window passes record into.
func (w *fakeWindow) beginFrame(t *testing.T) *gpu.NullCommandList {
	t.Helper()
	cl, err := w.surface.Begin()
	require.NoError(t, err)
	return cl.(*gpu.NullCommandList)
}

func (w *fakeWindow) endFrame(t *testing.T) {
	t.Helper()
	_, err := w.surface.End()
	require.NoError(t, err)
	w.surface.Present()
}

// passCounter counts callback invocations of the passes it builds.
type passCounter struct {
	updates  int
	batched  int
	submits  int
	commands int
	order    []string

	// failSubmit is the instance index whose submission fails, -1 for none
	failSubmit int
	instances  []int
}

func newPassCounter() *passCounter { return &passCounter{failSubmit: -1} }

func (p *passCounter) sprite(target Target, key uint64) RenderPass {
	return RenderPass{
		Target:          target,
		PipelineName:    "Quad",
		RenderType:      RenderTypeInstancing,
		ObjectType:      ObjectTypeGame,
		Dimension:       Dimension2D,
		BatchKey:        key,
		ConstantBuffers: []ConstantBufferRequirement{{Name: cameraVar, ByteSize: 64}},
		InstanceBuffers: []InstanceBufferRequirement{{Name: instancesVar, ElementStride: 16}},
		UpdateConstantBuffers: func(maps map[string][]byte, instanceCount int) bool {
			p.updates++
			binary.LittleEndian.PutUint32(maps[cameraVar], uint32(instanceCount))
			return true
		},
		SubmitInstance: func(maps map[string][]byte, _ binder.ShaderVariableBinder, index int) bool {
			p.submits++
			p.instances = append(p.instances, index)
			if index == p.failSubmit {
				return false
			}
			binary.LittleEndian.PutUint32(maps[instancesVar][index*16:], uint32(index))
			return true
		},
		BatchedRender: func(_ binder.ShaderVariableBinder, _ int) bool {
			p.batched++
			return true
		},
		RenderCommand: func(pipeline.Binder) *RenderCommand {
			p.commands++
			return &RenderCommand{VertexCount: 6}
		},
	}
}

func (p *passCounter) standard(target Target, name string, obj ObjectType, dim Dimension) RenderPass {
	return RenderPass{
		Target:          target,
		PipelineName:    "Quad",
		RenderType:      RenderTypeStandard,
		ObjectType:      obj,
		Dimension:       dim,
		ConstantBuffers: []ConstantBufferRequirement{{Name: cameraVar, ByteSize: 64}},
		UpdateConstantBuffers: func(map[string][]byte, int) bool {
			p.updates++
			return true
		},
		BatchedRender: func(binder.ShaderVariableBinder, int) bool {
			p.batched++
			return true
		},
		RenderCommand: func(pipeline.Binder) *RenderCommand {
			p.commands++
			p.order = append(p.order, name)
			return &RenderCommand{IndexCount: 6, InstanceCount: 9, StartInstance: 3}
		},
	}
}

func newTarget(t *testing.T, d *gpu.NullDevice, label string, depthOnly bool) *gpu.NullRenderTarget {
	t.Helper()
	desc := &gpu.RenderTargetDesc{Label: label, Width: 4, Height: 4}
	if depthOnly {
		desc.DepthFormat = gpu.FormatD32Float
	} else {
		desc.ColorFormat = gpu.FormatRGBA8Unorm
	}
	rt, err := d.CreateRenderTarget(desc)
	require.NoError(t, err)
	return rt.(*gpu.NullRenderTarget)
}

func submittedLabels(d *gpu.NullDevice) []string {
	var out []string
	for _, cb := range d.Submitted() {
		out = append(out, cb.Label())
	}
	return out
}

func TestRegistrationHandles(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()

	h1 := r.RegisterPersistentRenderPass(p.standard(w, "a", ObjectTypeGame, Dimension3D))
	h2 := r.RegisterPersistentRenderPass(p.standard(w, "b", ObjectTypeGame, Dimension3D))
	assert.Equal(t, PersistentPassHandle(1), h1)
	assert.Equal(t, PersistentPassHandle(2), h2)

	assert.False(t, r.RegisterPersistentRenderPass(RenderPass{PipelineName: "Quad"}).Valid(), "no target")

	sb := NewScreenBuffer(newTarget(t, d, "scene", false))
	assert.False(t, r.RegisterPersistentRenderPass(p.standard(sb, "x", ObjectTypeGame, Dimension3D)).Valid(), "screen buffer is not a window")
	assert.Equal(t, PersistentPassHandle(1), r.RegisterPersistentOffscreenRenderPass(p.standard(sb, "c", ObjectTypeGame, Dimension3D)))
	assert.False(t, r.RegisterPersistentShadowMapRenderPass(p.standard(sb, "y", ObjectTypeGame, Dimension3D)).Valid())
	assert.False(t, r.RegisterPersistentScreenPass(ScreenPass{}).Valid())
	assert.Equal(t, PersistentPassHandle(1), r.RegisterPersistentScreenPass(ScreenPass{Buffer: sb}))

	assert.True(t, r.UnregisterPersistentRenderPass(h1))
	assert.False(t, r.UnregisterPersistentRenderPass(h1))
	assert.False(t, r.UnregisterPersistentRenderPass(0))

	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, []string{"c", "b"}, p.order, "offscreen passes run before window passes")
	require.Len(t, cl.Draws(), 1)
}

func TestStandardPassDrawsOneInstance(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	r.RegisterPersistentRenderPass(p.standard(w, "a", ObjectTypeSystem, Dimension3D))

	cl := w.beginFrame(t)
	r.RenderFrame()

	draws := cl.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, gpu.OpDrawIndexedInstanced, draws[0].Op)
	assert.Equal(t, uint32(6), draws[0].Draw.IndexCount)
	assert.Equal(t, uint32(1), draws[0].Draw.InstanceCount, "standard passes always draw one instance")
	assert.Zero(t, draws[0].Draw.StartInstance)
	assert.Equal(t, 1, cl.Count(gpu.OpSetPipelineState))
	assert.Equal(t, 1, cl.Count(gpu.OpSetRootConstantBuffer))
	assert.Equal(t, 1, p.updates)
	assert.Equal(t, 1, p.batched)
}

func TestBucketOrder(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()

	r.RegisterPersistentRenderPass(p.standard(w, "game2D", ObjectTypeGame, Dimension2D))
	r.RegisterPersistentRenderPass(p.standard(w, "sys2D", ObjectTypeSystem, Dimension2D))
	r.RegisterPersistentRenderPass(p.standard(w, "game3D", ObjectTypeGame, Dimension3D))
	r.RegisterPersistentRenderPass(p.standard(w, "sys3D", ObjectTypeSystem, Dimension3D))
	r.SubmitRenderPass(p.standard(w, "frameSys3D", ObjectTypeSystem, Dimension3D))

	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, []string{"sys3D", "frameSys3D", "game3D", "sys2D", "game2D"}, p.order)
	assert.Len(t, cl.Draws(), 5)
	assert.Equal(t, 1, cl.Count(gpu.OpSetPipelineState), "one pipeline is applied once per frame")
	w.endFrame(t)

	p.order = nil
	w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, []string{"sys3D", "game3D", "sys2D", "game2D"}, p.order, "submitted passes last one frame")
}

func TestInstancedBatchIsOneDraw(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	for range 500 {
		require.True(t, r.RegisterPersistentRenderPass(p.sprite(w, 7)).Valid())
	}

	before := d.Allocations()
	cl := w.beginFrame(t)
	r.RenderFrame()

	draws := cl.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(500), draws[0].Draw.InstanceCount)
	assert.Equal(t, uint32(6), draws[0].Draw.VertexCount)
	assert.Equal(t, 1, p.updates, "the first pass updates constants for the batch")
	assert.Equal(t, 1, p.batched)
	assert.Equal(t, 1, p.commands)
	assert.Equal(t, 500, p.submits)
	assert.Equal(t, 499, p.instances[499])
	assert.Equal(t, 2, d.Allocations()-before, "one constant and one instance buffer")

	cache := r.(*renderer).cache
	require.Len(t, cache.instances, 1)
	for _, e := range cache.instances {
		assert.GreaterOrEqual(t, e.buffer.Capacity(), uint32(500))
		data := e.buffer.(*gpu.NullBuffer).Bytes()
		assert.Equal(t, uint32(499), binary.LittleEndian.Uint32(data[499*16:]))
	}
	for _, e := range cache.constants {
		assert.Equal(t, uint32(500), binary.LittleEndian.Uint32(e.buffer.(*gpu.NullBuffer).Bytes()))
	}
	w.endFrame(t)

	w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, 2, d.Allocations()-before, "buffers are reused across frames")
}

func TestInstancedBatchStartsAtFirstInstance(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	for range 3 {
		pass := p.sprite(w, 4)
		pass.RenderCommand = func(pipeline.Binder) *RenderCommand {
			return &RenderCommand{VertexCount: 6, InstanceCount: 1, StartInstance: 5}
		}
		r.RegisterPersistentRenderPass(pass)
	}

	cl := w.beginFrame(t)
	r.RenderFrame()

	draws := cl.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(3), draws[0].Draw.InstanceCount)
	assert.Zero(t, draws[0].Draw.StartInstance, "the instance buffer holds exactly the batch")
}

func TestBatchesSplitByKey(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	r.RegisterPersistentRenderPass(p.sprite(w, 1))
	r.RegisterPersistentRenderPass(p.sprite(w, 2))
	r.RegisterPersistentRenderPass(p.sprite(w, 1))
	r.SubmitRenderPass(p.sprite(w, 2))
	r.SubmitRenderPass(p.sprite(w, 3))

	cl := w.beginFrame(t)
	r.RenderFrame()
	draws := cl.Draws()
	require.Len(t, draws, 3)
	assert.Equal(t, uint32(2), draws[0].Draw.InstanceCount)
	assert.Equal(t, uint32(2), draws[1].Draw.InstanceCount, "a submitted pass joins the persistent batch")
	assert.Equal(t, uint32(1), draws[2].Draw.InstanceCount)
	w.endFrame(t)

	cl = w.beginFrame(t)
	r.RenderFrame()
	assert.Len(t, cl.Draws(), 2)
}

func TestFailedSubmissionSkipsBatch(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	p.failSubmit = 3
	for range 10 {
		r.RegisterPersistentRenderPass(p.sprite(w, 1))
	}

	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Empty(t, cl.Draws())
	assert.Equal(t, 4, p.submits, "submission stops at the failing instance")
	assert.Zero(t, p.commands)
}

func TestMissingCallbackSkipsPass(t *testing.T) {
	r, _, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()

	noCommand := p.standard(w, "a", ObjectTypeGame, Dimension3D)
	noCommand.RenderCommand = nil
	noUpdate := p.standard(w, "b", ObjectTypeGame, Dimension3D)
	noUpdate.UpdateConstantBuffers = nil
	nilCommand := p.standard(w, "c", ObjectTypeGame, Dimension3D)
	nilCommand.RenderCommand = func(pipeline.Binder) *RenderCommand { return nil }
	unknown := p.standard(w, "d", ObjectTypeGame, Dimension3D)
	unknown.PipelineName = "Missing"
	noSubmit := p.sprite(w, 1)
	noSubmit.SubmitInstance = nil

	for _, pass := range []RenderPass{noCommand, noUpdate, nilCommand, unknown, noSubmit} {
		r.RegisterPersistentRenderPass(pass)
	}
	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Empty(t, cl.Draws())
}

func TestConstantBufferCache(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()

	frame := func(size uint64) {
		pass := p.standard(w, "a", ObjectTypeGame, Dimension3D)
		pass.ConstantBuffers[0].ByteSize = size
		r.SubmitRenderPass(pass)
		w.beginFrame(t)
		r.RenderFrame()
		w.endFrame(t)
	}

	frame(64)
	assert.Equal(t, 1, d.Allocations())
	frame(64)
	frame(64)
	assert.Equal(t, 1, d.Allocations(), "constant size keeps the buffer")
	assert.Zero(t, d.Releases())

	frame(128)
	assert.Equal(t, 2, d.Allocations())
	assert.Equal(t, 1, d.Releases(), "the old buffer is replaced")
	constants, _ := r.CachedBuffers()
	assert.Equal(t, 1, constants)
}

func TestStandardPassesSharingPipelineGetOwnBuffers(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	r.RegisterPersistentRenderPass(p.standard(w, "a", ObjectTypeGame, Dimension3D))
	r.RegisterPersistentRenderPass(p.standard(w, "b", ObjectTypeGame, Dimension3D))

	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, 2, d.Allocations())

	var bound []gpu.Resource
	for _, cmd := range cl.Commands() {
		if cmd.Op == gpu.OpSetRootConstantBuffer {
			bound = append(bound, cmd.Resource)
		}
	}
	require.Len(t, bound, 2)
	assert.NotSame(t, bound[0], bound[1])
	w.endFrame(t)

	w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, 2, d.Allocations())
}

func TestUnclaimedBufferSlotsAreReleased(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()

	frame := func(passes int) {
		for i := range passes {
			r.SubmitRenderPass(p.standard(w, string(rune('a'+i)), ObjectTypeGame, Dimension3D))
		}
		w.beginFrame(t)
		r.RenderFrame()
		w.endFrame(t)
	}

	frame(3)
	constants, _ := r.CachedBuffers()
	assert.Equal(t, 3, constants)

	frame(1)
	constants, _ = r.CachedBuffers()
	assert.Equal(t, 3, constants, "slots survive until a frame leaves them unclaimed")

	for range 4 {
		frame(1)
	}
	constants, _ = r.CachedBuffers()
	assert.Equal(t, 1, constants)
	assert.Equal(t, 2, d.Releases())
	assert.Equal(t, 3, d.Allocations())

	frame(2)
	constants, _ = r.CachedBuffers()
	assert.Equal(t, 2, constants)
	assert.Equal(t, 4, d.Allocations(), "a released slot is allocated again when needed")
}

func TestUnavailableWindowIsSkipped(t *testing.T) {
	tests := []struct {
		name   string
		modify func(w *fakeWindow)
	}{
		{name: "minimized", modify: func(w *fakeWindow) { w.minimized = true }},
		{name: "hidden", modify: func(w *fakeWindow) { w.hidden = true }},
		{name: "closing", modify: func(w *fakeWindow) { w.closing = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, d, _ := newTestRenderer(t)
			w := newFakeWindow("main")
			p := newPassCounter()
			r.RegisterPersistentRenderPass(p.standard(w, "a", ObjectTypeGame, Dimension3D))
			r.RegisterPersistentRenderPass(p.sprite(w, 1))
			tt.modify(w)

			cl := w.beginFrame(t)
			r.RenderFrame()
			assert.Empty(t, cl.Commands())
			assert.Zero(t, p.updates+p.batched+p.submits+p.commands)
			assert.Zero(t, d.Allocations())
		})
	}

	t.Run("no frame in flight", func(t *testing.T) {
		r, _, _ := newTestRenderer(t)
		w := newFakeWindow("main")
		p := newPassCounter()
		r.RegisterPersistentRenderPass(p.standard(w, "a", ObjectTypeGame, Dimension3D))
		r.RenderFrame()
		assert.Zero(t, p.updates+p.commands)
	})
}

func TestUnregisterWindowDropsBuffers(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	other := newFakeWindow("other")
	p := newPassCounter()
	r.RegisterPersistentRenderPass(p.sprite(w, 1))
	r.RegisterPersistentRenderPass(p.sprite(other, 1))

	w.beginFrame(t)
	other.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, 4, d.Allocations())

	assert.True(t, r.UnregisterWindow(w))
	assert.False(t, r.UnregisterWindow(w))
	assert.Equal(t, 2, d.Releases())
	constants, instances := r.CachedBuffers()
	assert.Equal(t, 1, constants)
	assert.Equal(t, 1, instances)
}

func TestOffscreenRecording(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	rt := newTarget(t, d, "scene", false)
	sb := NewScreenBuffer(rt)
	p := newPassCounter()
	r.RegisterPersistentOffscreenRenderPass(p.standard(sb, "a", ObjectTypeGame, Dimension3D))
	r.RegisterPersistentOffscreenRenderPass(p.sprite(sb, 1))

	r.RenderFrame()
	assert.Equal(t, 1, rt.Begins, "recording begins once per frame")
	assert.False(t, rt.Recording())
	require.Equal(t, []string{"scene"}, submittedLabels(d))
	assert.Equal(t, 2, countDraws(d.Submitted()[0].Commands))
	assert.True(t, sb.Presented())

	d.ResetSubmitted()
	failing := p.standard(sb, "broken", ObjectTypeGame, Dimension3D)
	failing.BatchedRender = func(binder.ShaderVariableBinder, int) bool { return false }
	h := r.RegisterPersistentOffscreenRenderPass(failing)
	r.RenderFrame()
	assert.Empty(t, d.Submitted(), "a failed pass discards the recording")
	assert.False(t, sb.Presented())
	assert.False(t, rt.Recording())

	r.UnregisterPersistentOffscreenRenderPass(h)
	r.RenderFrame()
	assert.Equal(t, []string{"scene"}, submittedLabels(d))
	assert.True(t, sb.Presented())
}

func countDraws(cmds []gpu.Command) int {
	n := 0
	for _, c := range cmds {
		if c.Op == gpu.OpDrawInstanced || c.Op == gpu.OpDrawIndexedInstanced {
			n++
		}
	}
	return n
}

func TestOffscreenBeginFailureDiscards(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	rt := newTarget(t, d, "scene", false)
	rt.FailBegin = true
	sb := NewScreenBuffer(rt)
	p := newPassCounter()
	r.RegisterPersistentOffscreenRenderPass(p.standard(sb, "a", ObjectTypeGame, Dimension3D))

	r.RenderFrame()
	assert.Zero(t, p.updates+p.commands)
	assert.Empty(t, d.Submitted())
	assert.False(t, sb.Presented())
}

func TestShadowMapsRunFirst(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	shadowRT := newTarget(t, d, "shadow", true)
	shadow := NewShadowMapBuffer(shadowRT)
	sb := NewScreenBuffer(newTarget(t, d, "scene", false))
	w := newFakeWindow("main")
	p := newPassCounter()

	r.RegisterPersistentRenderPass(p.standard(w, "window", ObjectTypeGame, Dimension3D))
	r.RegisterPersistentOffscreenRenderPass(p.standard(sb, "offscreen", ObjectTypeGame, Dimension3D))
	r.RegisterPersistentShadowMapRenderPass(p.standard(shadow, "shadow", ObjectTypeGame, Dimension3D))

	w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, []string{"shadow", "offscreen", "window"}, p.order)
	assert.Equal(t, []string{"shadow", "scene"}, submittedLabels(d))
	assert.True(t, shadow.Presented())
	assert.False(t, shadow.Recording())
	w.endFrame(t)

	d.ResetSubmitted()
	p.order = nil
	shadowRT.FailBegin = true
	w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, []string{"offscreen", "window"}, p.order, "a shadow map that is not recording is skipped")
	assert.Equal(t, []string{"scene"}, submittedLabels(d))
	assert.False(t, shadow.Presented())
}

func TestPostEffectChain(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	sb := NewScreenBuffer(newTarget(t, d, "scene", false))
	p := newPassCounter()
	r.RegisterPersistentOffscreenRenderPass(p.standard(sb, "scene", ObjectTypeGame, Dimension3D))

	effect := func(name string, out *gpu.NullRenderTarget) PostEffect {
		pass := p.standard(sb, name, ObjectTypeGame, Dimension2D)
		return PostEffect{
			PipelineName:          pass.PipelineName,
			ConstantBuffers:       pass.ConstantBuffers,
			UpdateConstantBuffers: pass.UpdateConstantBuffers,
			BatchedRender:         pass.BatchedRender,
			RenderCommand:         pass.RenderCommand,
			Output:                out,
		}
	}
	bloom := newTarget(t, d, "bloom", false)
	broken := newTarget(t, d, "broken", false)
	tonemap := newTarget(t, d, "tonemap", false)

	failing := effect("broken", broken)
	failing.RenderCommand = func(pipeline.Binder) *RenderCommand { return nil }
	sb.AddPostEffect(effect("bloom", bloom))
	sb.AddPostEffect(failing)
	sb.AddPostEffect(effect("tonemap", tonemap))
	require.True(t, r.RegisterPersistentScreenPass(ScreenPass{Buffer: sb}).Valid())

	r.RenderFrame()
	assert.Equal(t, []string{"scene", "bloom"}, submittedLabels(d))
	assert.Equal(t, 1, broken.Begins)
	assert.False(t, broken.Recording(), "a failed effect still ends its recording")
	assert.Zero(t, tonemap.Begins, "the chain stops at the first failure")

	d.ResetSubmitted()
	sb.ClearPostEffects()
	sb.AddPostEffect(effect("bloom", bloom))
	sb.AddPostEffect(PostEffect{})
	sb.AddPostEffect(effect("tonemap", tonemap))
	r.RenderFrame()
	assert.Equal(t, []string{"scene", "bloom"}, submittedLabels(d), "an empty pipeline name ends the chain")
	assert.Zero(t, tonemap.Begins)
}

func TestPostEffectCustomRecording(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	sb := NewScreenBuffer(newTarget(t, d, "scene", false))
	p := newPassCounter()
	pass := p.standard(sb, "custom", ObjectTypeGame, Dimension2D)

	cl := gpu.NewNullCommandList("custom")
	var ended []bool
	sb.AddPostEffect(PostEffect{
		PipelineName:          "Quad",
		ConstantBuffers:       pass.ConstantBuffers,
		UpdateConstantBuffers: pass.UpdateConstantBuffers,
		BatchedRender:         pass.BatchedRender,
		RenderCommand:         pass.RenderCommand,
		Begin:                 func() (gpu.CommandList, bool) { return cl, true },
		End: func(got gpu.CommandList, ok bool) gpu.CommandBuffer {
			assert.Same(t, cl, got)
			ended = append(ended, ok)
			return nil
		},
	})
	r.RegisterPersistentScreenPass(ScreenPass{Buffer: sb})

	r.RenderFrame()
	assert.Equal(t, []bool{true}, ended)
	assert.Len(t, cl.Draws(), 1)
	assert.Empty(t, d.Submitted(), "a nil command buffer is not submitted")
}

func TestReloadDropsBufferCache(t *testing.T) {
	r, d, m := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	r.RegisterPersistentRenderPass(p.sprite(w, 1))

	w.beginFrame(t)
	r.RenderFrame()
	w.endFrame(t)
	assert.Equal(t, 2, d.Allocations())

	require.NoError(t, m.Reload(quadSource(t)))
	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Equal(t, 2, d.Releases())
	assert.Equal(t, 4, d.Allocations())
	assert.Len(t, cl.Draws(), 1)
	assert.Equal(t, 1, cl.Count(gpu.OpSetPipelineState))
}

func TestReleaseForgetsEverything(t *testing.T) {
	r, d, _ := newTestRenderer(t)
	w := newFakeWindow("main")
	p := newPassCounter()
	h := r.RegisterPersistentRenderPass(p.sprite(w, 1))

	w.beginFrame(t)
	r.RenderFrame()
	w.endFrame(t)

	r.Release()
	constants, instances := r.CachedBuffers()
	assert.Zero(t, constants+instances)
	assert.Equal(t, d.Allocations(), d.Releases())
	assert.False(t, r.UnregisterPersistentRenderPass(h))

	cl := w.beginFrame(t)
	r.RenderFrame()
	assert.Empty(t, cl.Commands())
}

func TestCPUTimerScopes(t *testing.T) {
	timers := profiler.NewCPUTimers(8)
	r, d, _ := newTestRenderer(t, WithCPUTimers(timers))
	assert.Same(t, timers, r.CPUTimers())
	w := newFakeWindow("main")
	p := newPassCounter()
	r.RegisterPersistentRenderPass(p.sprite(w, 1))
	r.RegisterPersistentOffscreenRenderPass(p.standard(NewScreenBuffer(newTarget(t, d, "scene", false)), "a", ObjectTypeGame, Dimension3D))

	w.beginFrame(t)
	r.RenderFrame()
	for _, name := range []string{
		"RenderFrame", "ShadowMap_AllBeginRecord", "Offscreen_Passes", "Offscreen_Execute",
		"Persistent_Passes", "Standard_Total", "Standard_ConstantBuffer_Update",
		"Instancing_Total", "Instancing_SubmitInstances", "Instancing_RenderCommand",
	} {
		_, ok := timers.Average(name)
		assert.True(t, ok, name)
	}
}

func TestIssueRenderCommand(t *testing.T) {
	cl := gpu.NewNullCommandList("draws")
	IssueRenderCommand(cl, RenderCommand{IndexCount: 3, VertexCount: 4, InstanceCount: 2, StartIndex: 1, BaseVertex: -1})
	IssueRenderCommand(cl, RenderCommand{VertexCount: 4, InstanceCount: 1, StartVertex: 2})
	IssueRenderCommand(cl, RenderCommand{InstanceCount: 5})
	IssueRenderCommand(nil, RenderCommand{VertexCount: 4})

	draws := cl.Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, gpu.OpDrawIndexedInstanced, draws[0].Op)
	assert.Equal(t, int32(-1), draws[0].Draw.BaseVertex)
	assert.Equal(t, gpu.OpDrawInstanced, draws[1].Op)
	assert.Equal(t, uint32(2), draws[1].Draw.StartVertex)
}
