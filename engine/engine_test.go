package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/camera"
	"github.com/Carmen-Shannon/oxy-render/engine/game_object"
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/Carmen-Shannon/oxy-render/engine/scene"
	"github.com/Carmen-Shannon/oxy-render/engine/window"
	"github.com/cogentcore/webgpu/wgpu"
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

// fakeWindow is a headless window.Window.
type fakeWindow struct {
	surface   gpu.Surface
	minimized bool
	closed    bool
	onResize  func(int, int)
}

var _ window.Window = &fakeWindow{}

func (w *fakeWindow) Label() string                                { return "main" }
func (w *fakeWindow) Surface() gpu.Surface                         { return w.surface }
func (w *fakeWindow) SetSurface(s gpu.Surface)                     { w.surface = s }
func (w *fakeWindow) IsPendingDestroy() bool                       { return w.closed }
func (w *fakeWindow) IsMinimized() bool                            { return w.minimized }
func (w *fakeWindow) IsVisible() bool                              { return !w.minimized }
func (w *fakeWindow) SetUpdateCallback(func())                     {}
func (w *fakeWindow) SetResizeCallback(cb func(width, height int)) { w.onResize = cb }
func (w *fakeWindow) SetScrollCallback(func(float32))              {}
func (w *fakeWindow) SetKeyDownCallback(func(window.Key))          {}
func (w *fakeWindow) SetKeyUpCallback(func(window.Key))            {}
func (w *fakeWindow) SetMouseMoveCallback(func(int32, int32))      {}
func (w *fakeWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor   { return nil }
func (w *fakeWindow) IsRunning() bool                              { return !w.closed }
func (w *fakeWindow) Close() error                                 { w.closed = true; return nil }
func (w *fakeWindow) ProcessMessages()                             {}
func (w *fakeWindow) Width() int                                   { return 640 }
func (w *fakeWindow) Height() int                                  { return 480 }

const spritePipeline = `
Name: Sprite
Shader:
  AutoRootDescriptorFromShader: true
  AutoTopologyFromShaders: true
  Vertex: {Path: sprite.wgsl, EntryPoint: vs_main}
  Pixel: {Path: sprite.wgsl, EntryPoint: fs_main}
RasterizerState: {UsePreset: NoCull}
BlendState:
  RenderTargets:
    - BlendEnable: false
DepthStencilState: {DepthEnable: false}
PipelineState:
  RTVFormats: [R8G8B8A8_UNORM]
`

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

type harness struct {
	dir     string
	device  *gpu.NullDevice
	surface *gpu.NullSurface
	window  *fakeWindow
	engine  Engine
}

func newHarness(t *testing.T, options ...EngineBuilderOption) *harness {
	t.Helper()
	h := &harness{
		dir:     t.TempDir(),
		device:  gpu.NewNullDevice(),
		surface: gpu.NewNullSurface("main"),
		window:  &fakeWindow{},
	}
	writeFile(t, filepath.Join(h.dir, "settings.json"), `{
		"PipelineFolder": "pipelines",
		"PresetFolders": {"RasterizerState": "presets/rasterizer"}
	}`)
	writeFile(t, filepath.Join(h.dir, "pipelines", "sprite.yaml"), spritePipeline)
	writeFile(t, filepath.Join(h.dir, "presets", "rasterizer", "nocull.toml"), "Name = \"NoCull\"\nCullMode = \"NONE\"\n")

	opts := append([]EngineBuilderOption{
		WithWindow(h.window),
		WithDevice(h.device, h.surface),
		WithSettingsFile(filepath.Join(h.dir, "settings.json")),
		WithCompiler(spriteCompiler{}),
	}, options...)
	e, err := NewEngine(opts...)
	require.NoError(t, err)
	t.Cleanup(e.Close)
	h.engine = e
	return h
}

// lastDraws returns the instance counts of the draws in the most recent submission.
func (h *harness) lastDraws() []uint32 {
	subs := h.device.Submitted()
	if len(subs) == 0 {
		return nil
	}
	var counts []uint32
	for _, c := range subs[len(subs)-1].Commands {
		if c.Op == gpu.OpDrawInstanced || c.Op == gpu.OpDrawIndexedInstanced {
			counts = append(counts, c.Draw.InstanceCount)
		}
	}
	return counts
}

func spriteScene(n int) scene.Scene {
	objs := make([]game_object.GameObject, n)
	for i := range objs {
		objs[i] = game_object.NewGameObject(game_object.WithTransform(float32(i*40), 0, 0, 0, 32, 32))
	}
	return scene.NewScene("sprites", camera.NewCamera(), scene.WithObjects(objs...), scene.WithUpdateWorkers(1))
}

func TestNewEngineBuildsPipelinesAndConfiguresSurface(t *testing.T) {
	h := newHarness(t)
	assert.Equal(t, []string{"Sprite"}, h.engine.PipelineManager().Names())
	assert.Same(t, h.surface, h.window.Surface())
	w, ht := h.surface.Size()
	assert.Equal(t, uint32(640), w)
	assert.Equal(t, uint32(480), ht)
}

func TestFrameDrawsScenesAndPresents(t *testing.T) {
	h := newHarness(t)
	s := spriteScene(3)
	h.engine.AddScene(0, s)

	var rendered int
	h.engine.SetRenderCallback(func(float32) { rendered++ })

	require.NoError(t, h.engine.Frame(0.016))
	assert.Equal(t, []uint32{3}, h.lastDraws())
	assert.Equal(t, 1, h.surface.Presents)
	assert.Equal(t, 1, rendered)
	assert.Nil(t, h.surface.CommandList())

	require.NoError(t, h.engine.Frame(0.016))
	assert.Equal(t, []uint32{3}, h.lastDraws())
	assert.Equal(t, 2, h.surface.Presents)
}

func TestRemovedSceneStopsDrawing(t *testing.T) {
	h := newHarness(t)
	h.engine.AddScene(1, spriteScene(2))
	require.NoError(t, h.engine.Frame(0.016))
	assert.Equal(t, []uint32{2}, h.lastDraws())

	h.engine.RemoveScene(1)
	assert.Nil(t, h.engine.Scene(1))
	require.NoError(t, h.engine.Frame(0.016))
	assert.Empty(t, h.lastDraws())
}

func TestMinimizedWindowSkipsPresent(t *testing.T) {
	h := newHarness(t)
	h.engine.AddScene(0, spriteScene(1))
	h.window.minimized = true

	require.NoError(t, h.engine.Frame(0.016))
	assert.Equal(t, 0, h.surface.Presents)
	assert.Empty(t, h.device.Submitted())
}

func TestResizeReconfiguresSurface(t *testing.T) {
	h := newHarness(t)
	require.NotNil(t, h.window.onResize)
	h.window.onResize(800, 600)
	h.window.onResize(1024, 768)

	require.NoError(t, h.engine.Frame(0.016))
	w, ht := h.surface.Size()
	assert.Equal(t, uint32(1024), w)
	assert.Equal(t, uint32(768), ht)
}

func TestRequestedReloadRunsBeforeTheNextFrame(t *testing.T) {
	h := newHarness(t)
	h.engine.AddScene(0, spriteScene(2))
	require.NoError(t, h.engine.Frame(0.016))
	gen := h.engine.PipelineManager().Generation()

	h.engine.RequestReload()
	assert.Equal(t, int64(0), h.engine.Reloads())
	require.NoError(t, h.engine.Frame(0.016))
	assert.Equal(t, int64(1), h.engine.Reloads())
	assert.Greater(t, h.engine.PipelineManager().Generation(), gen)
	assert.Equal(t, []uint32{2}, h.lastDraws())
}

func TestFailedReloadKeepsPipelines(t *testing.T) {
	h := newHarness(t)
	writeFile(t, filepath.Join(h.dir, "pipelines", "broken.toml"), "Name = \n")

	err := h.engine.Reload()
	require.Error(t, err)
	assert.ErrorContains(t, err, "broken.toml")
	assert.Equal(t, int64(0), h.engine.Reloads())
	assert.Equal(t, []string{"Sprite"}, h.engine.PipelineManager().Names())
}

func TestEngineWithoutDocuments(t *testing.T) {
	e, err := NewEngine(
		WithWindow(&fakeWindow{}),
		WithDevice(gpu.NewNullDevice(), nil),
	)
	require.NoError(t, err)
	defer e.Close()

	assert.Empty(t, e.PipelineManager().Names())
	assert.ErrorIs(t, e.Reload(), ErrNoLoader)
	assert.NoError(t, e.Frame(0.016))
}

func TestScenesAreCopied(t *testing.T) {
	s := spriteScene(0)
	h := newHarness(t, WithScene(5, s))
	scenes := h.engine.Scenes()
	assert.Equal(t, s, scenes[5])
	delete(scenes, 5)
	assert.Equal(t, s, h.engine.Scene(5))
}
