package game_object

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type spriteCompiler struct{}

func (spriteCompiler) Compile(info shader.CompileInfo) (shader.Shader, error) {
	var r shader.Reflection
	if info.EntryPoint == "vs_main" {
		r.Resources = []shader.Resource{
			{Name: "camera", Kind: shader.KindConstantBuffer, BindPoint: 0, BindCount: 1, Size: camera.ViewProjectionSize},
			{Name: "instances", Kind: shader.KindStructured, BindPoint: 1, BindCount: 1, Size: InstanceStride},
		}
	} else {
		r.Outputs = []shader.Parameter{{SemanticName: "SV_Target", Location: 0, UsageMask: 0xF}}
	}
	return shader.New(info, "", nil, &r), nil
}

func (c spriteCompiler) CompileSource(info shader.CompileInfo, _ string) (shader.Shader, error) {
	return c.Compile(info)
}

func spriteDoc() preset.Document {
	return preset.Document{
		"Name":         DefaultPipeline,
		"PipelineType": "Render",
		"Shader": map[string]any{
			"AutoRootDescriptorFromShader": true,
			"AutoTopologyFromShaders":      true,
			"Vertex":                       map[string]any{"Path": "sprite.wgsl", "EntryPoint": "vs_main"},
			"Pixel":                        map[string]any{"Path": "sprite.wgsl", "EntryPoint": "fs_main"},
		},
		"RasterizerState": map[string]any{"CullMode": "NONE"},
		"BlendState": map[string]any{"RenderTargets": []any{
			map[string]any{"BlendEnable": true, "SrcBlend": "SRC_ALPHA", "DestBlend": "INV_SRC_ALPHA", "RenderTargetWriteMask": "ALL"},
		}},
		"DepthStencilState": map[string]any{"DepthEnable": false},
		"PipelineState":     map[string]any{"RTVFormats": []any{"R8G8B8A8_UNORM"}, "SampleDesc": map[string]any{"Count": 1}},
	}
}

type testWindow struct{ surface *gpu.NullSurface }

func (w *testWindow) Label() string          { return "main" }
func (w *testWindow) Surface() gpu.Surface   { return w.surface }
func (w *testWindow) IsPendingDestroy() bool { return false }
func (w *testWindow) IsMinimized() bool      { return false }
func (w *testWindow) IsVisible() bool        { return true }

func floatAt(b []byte, i int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
}

func TestUpdateAppliesVelocity(t *testing.T) {
	o := NewGameObject(WithTransform(10, 20, 0, 0, 4, 3), WithVelocity(2, -4, 1))
	o.Update(0.5)
	assert.Equal(t, [3]float32{11, 18, 0}, o.Position())
	assert.InDelta(t, 0.5, o.Rotation(), 1e-6)
	assert.InDelta(t, 2.5, o.Radius(), 1e-6)

	o.SetVelocity(0, 0, 4*math.Pi)
	o.Update(1)
	assert.InDelta(t, 0.5, o.Rotation(), 1e-5, "rotation wraps at a full turn")
}

func TestRenderPassWritesInstanceAndCamera(t *testing.T) {
	cam := camera.NewCamera(camera.WithViewport(2, 2), camera.WithDepthRange(-1, 1))
	o := NewGameObject(WithTransform(5, 6, 0.25, 0, 2, 3), WithColor([4]float32{1, 0.5, 0, 1}), WithBatchKey(9))
	w := &testWindow{}
	pass := o.CreateRenderPass(w, cam)

	assert.Same(t, w, pass.Target.(*testWindow))
	assert.Equal(t, DefaultPipeline, pass.PipelineName)
	assert.Equal(t, renderer.RenderTypeInstancing, pass.RenderType)
	assert.Equal(t, renderer.Dimension2D, pass.Dimension)
	assert.Equal(t, uint64(9), pass.BatchKey)

	maps := map[string][]byte{
		CameraVariable:   make([]byte, camera.ViewProjectionSize),
		InstanceVariable: make([]byte, 2*InstanceStride),
	}
	require.True(t, pass.UpdateConstantBuffers(maps, 2))
	assert.InDelta(t, 1, floatAt(maps[CameraVariable], 0), 1e-6)

	require.True(t, pass.SubmitInstance(maps, nil, 1))
	inst := maps[InstanceVariable][InstanceStride:]
	assert.Equal(t, float32(2), floatAt(inst, 0), "x scale")
	assert.Equal(t, float32(3), floatAt(inst, 5), "y scale")
	assert.Equal(t, float32(5), floatAt(inst, 12))
	assert.Equal(t, float32(6), floatAt(inst, 13))
	assert.Equal(t, float32(0.25), floatAt(inst, 14))
	assert.Equal(t, float32(0.5), floatAt(inst, 17), "color green")
	assert.False(t, pass.SubmitInstance(maps, nil, 2), "past the mapped buffer")

	assert.False(t, o.CreateRenderPass(w, nil).UpdateConstantBuffers(maps, 1), "no camera")
	cmd := pass.RenderCommand(nil)
	require.NotNil(t, cmd)
	assert.Equal(t, uint32(6), cmd.VertexCount)
}

func TestObjectsShareOneInstancedDraw(t *testing.T) {
	d := gpu.NewNullDevice()
	m := pipeline.NewManager(d, pipeline.WithCompiler(spriteCompiler{}))
	src := &pipeline.MemorySource{}
	src.AddPipeline(spriteDoc())
	require.NoError(t, m.Load(src))
	r := renderer.NewRenderer(d, m)

	cam := camera.NewCamera()
	w := &testWindow{surface: gpu.NewNullSurface("main")}
	for i := range 3 {
		o := NewGameObject(WithTransform(float32(i*40), 0, 0, 0, 32, 32))
		require.True(t, r.RegisterPersistentRenderPass(o.CreateRenderPass(w, cam)).Valid())
	}
	loner := NewGameObject(WithStandardRendering())
	require.True(t, r.RegisterPersistentRenderPass(loner.CreateRenderPass(w, cam)).Valid())

	cl, err := w.surface.Begin()
	require.NoError(t, err)
	r.RenderFrame()

	draws := cl.(*gpu.NullCommandList).Draws()
	require.Len(t, draws, 2)
	assert.Equal(t, uint32(1), draws[0].Draw.InstanceCount, "standard passes draw first")
	assert.Equal(t, uint32(3), draws[1].Draw.InstanceCount)
	assert.Equal(t, uint32(6), draws[1].Draw.VertexCount)
}
