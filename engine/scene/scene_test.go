package scene

import (
	"sync"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
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
			{Name: "instances", Kind: shader.KindStructured, BindPoint: 1, BindCount: 1, Size: game_object.InstanceStride},
		}
	} else {
		r.Outputs = []shader.Parameter{{SemanticName: "SV_Target", Location: 0, UsageMask: 0xF}}
	}
	return shader.New(info, "", nil, &r), nil
}

func (c spriteCompiler) CompileSource(info shader.CompileInfo, _ string) (shader.Shader, error) {
	return c.Compile(info)
}

func newRenderer(t *testing.T) renderer.Renderer {
	t.Helper()
	d := gpu.NewNullDevice()
	m := pipeline.NewManager(d, pipeline.WithCompiler(spriteCompiler{}))
	src := &pipeline.MemorySource{}
	src.AddPipeline(preset.Document{
		"Name": game_object.DefaultPipeline,
		"Shader": map[string]any{
			"AutoRootDescriptorFromShader": true,
			"AutoTopologyFromShaders":      true,
			"Vertex":                       map[string]any{"Path": "sprite.wgsl", "EntryPoint": "vs_main"},
			"Pixel":                        map[string]any{"Path": "sprite.wgsl", "EntryPoint": "fs_main"},
		},
		"RasterizerState":   map[string]any{"CullMode": "NONE"},
		"BlendState":        map[string]any{"RenderTargets": []any{map[string]any{"BlendEnable": false}}},
		"DepthStencilState": map[string]any{"DepthEnable": false},
		"PipelineState":     map[string]any{"RTVFormats": []any{"R8G8B8A8_UNORM"}},
	})
	require.NoError(t, m.Load(src))
	return renderer.NewRenderer(d, m)
}

type testWindow struct{ surface *gpu.NullSurface }

func newTestWindow() *testWindow { return &testWindow{surface: gpu.NewNullSurface("main")} }

func (w *testWindow) Label() string          { return "main" }
func (w *testWindow) Surface() gpu.Surface   { return w.surface }
func (w *testWindow) IsPendingDestroy() bool { return false }
func (w *testWindow) IsMinimized() bool      { return false }
func (w *testWindow) IsVisible() bool        { return true }

// frame runs one frame and returns the instance count of every draw.
func frame(t *testing.T, s Scene, r renderer.Renderer, w *testWindow) []uint32 {
	t.Helper()
	cl, err := w.surface.Begin()
	require.NoError(t, err)
	s.SubmitFrame()
	r.RenderFrame()
	_, err = w.surface.End()
	require.NoError(t, err)

	var counts []uint32
	for _, d := range cl.(*gpu.NullCommandList).Draws() {
		counts = append(counts, d.Draw.InstanceCount)
	}
	return counts
}

func TestAddAssignsIDs(t *testing.T) {
	first := game_object.NewGameObject()
	first.SetID(10)
	s := NewScene("ids", camera.NewCamera(), WithObjects(first))
	defer s.Close()

	id := s.Add(game_object.NewGameObject())
	assert.Equal(t, uint64(11), id)
	eph := s.Add(game_object.NewGameObject(game_object.WithEphemeral()))
	assert.Equal(t, uint64(12), eph)
	assert.Equal(t, 2, s.Count())
	assert.Equal(t, 1, s.CountEphemeral())
	assert.NotNil(t, s.Get(eph))

	s.Remove(id)
	assert.Nil(t, s.Get(id))
	s.Clear()
	assert.Zero(t, s.Count()+s.CountEphemeral())
}

func TestUpdateRunsOnEveryEnabledObject(t *testing.T) {
	s := NewScene("update", camera.NewCamera(), WithUpdateWorkers(4), WithUpdateChunkSize(7))
	defer s.Close()

	var objs []game_object.GameObject
	for range 100 {
		o := game_object.NewGameObject(game_object.WithVelocity(10, 0, 0))
		s.Add(o)
		objs = append(objs, o)
	}
	objs[0].SetEnabled(false)

	s.Update(0.5)
	assert.Equal(t, [3]float32{0, 0, 0}, objs[0].Position())
	for _, o := range objs[1:] {
		assert.Equal(t, [3]float32{5, 0, 0}, o.Position())
	}

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.Update(0.25)
		}()
	}
	wg.Wait()
	assert.Equal(t, [3]float32{15, 0, 0}, objs[1].Position())
}

func TestSubmitFrameFollowsTheScene(t *testing.T) {
	r := newRenderer(t)
	w := newTestWindow()
	s := NewScene("main", camera.NewCamera(camera.WithViewport(200, 200)))
	defer s.Close()

	var ids []uint64
	for i := range 3 {
		ids = append(ids, s.Add(game_object.NewGameObject(game_object.WithTransform(float32(i*10), 0, 0, 0, 8, 8))))
	}
	assert.Empty(t, frame(t, s, r, w), "nothing draws before the scene is attached")

	s.AttachToRenderer(r, w)
	assert.Equal(t, []uint32{3}, frame(t, s, r, w))

	s.Get(ids[0]).SetEnabled(false)
	assert.Equal(t, []uint32{2}, frame(t, s, r, w))

	s.Remove(ids[1])
	s.Get(ids[0]).SetEnabled(true)
	assert.Equal(t, []uint32{2}, frame(t, s, r, w))

	s.SetActive(false)
	assert.Empty(t, frame(t, s, r, w))
	s.SetActive(true)
	assert.Equal(t, []uint32{2}, frame(t, s, r, w))

	s.DetachFromRenderer()
	assert.Empty(t, frame(t, s, r, w))
}

func TestEphemeralObjectsAreCulled(t *testing.T) {
	r := newRenderer(t)
	w := newTestWindow()
	s := NewScene("fx", camera.NewCamera(camera.WithViewport(200, 200)))
	defer s.Close()
	s.AttachToRenderer(r, w)

	s.Add(game_object.NewGameObject(game_object.WithEphemeral()))
	s.Add(game_object.NewGameObject(game_object.WithEphemeral(), game_object.WithTransform(50, 50, 0, 0, 8, 8)))
	s.Add(game_object.NewGameObject(game_object.WithEphemeral(), game_object.WithTransform(1000, 0, 0, 0, 8, 8)))

	cl, err := w.surface.Begin()
	require.NoError(t, err)
	assert.Equal(t, 2, s.SubmitFrame())
	r.RenderFrame()
	draws := cl.(*gpu.NullCommandList).Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(2), draws[0].Draw.InstanceCount)
	_, err = w.surface.End()
	require.NoError(t, err)

	assert.Equal(t, []uint32{2}, frame(t, s, r, w), "ephemeral objects are submitted every frame")
	s.Clear()
	assert.Empty(t, frame(t, s, r, w), "frame passes do not persist")
}
