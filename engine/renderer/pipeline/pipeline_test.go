package pipeline

import (
	"encoding/json"
	"errors"
	"math/rand"
	"testing"
	"testing/fstest"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompiler returns canned reflections keyed by "path:entry" and records every request.
type fakeCompiler struct {
	reflections map[string]*shader.Reflection
	failures    map[string]error
	calls       []shader.CompileInfo
}

func (c *fakeCompiler) Compile(info shader.CompileInfo) (shader.Shader, error) {
	c.calls = append(c.calls, info)
	if err, ok := c.failures[info.FilePath]; ok {
		return nil, err
	}
	return shader.New(info, "// "+info.FilePath, nil, c.reflections[info.FilePath+":"+info.EntryPoint]), nil
}

func (c *fakeCompiler) CompileSource(info shader.CompileInfo, _ string) (shader.Shader, error) {
	return c.Compile(info)
}

func spriteCompiler() *fakeCompiler {
	return &fakeCompiler{reflections: map[string]*shader.Reflection{
		"sprite.wgsl:vs_main": {
			Resources: []shader.Resource{{Name: "gTransform", Kind: shader.KindConstantBuffer, BindPoint: 0, BindCount: 1, Size: 64}},
			Inputs: []shader.Parameter{
				{SemanticName: "TEXCOORD", Location: 1, UsageMask: 0x3, ComponentType: gpu.ComponentFloat},
				{SemanticName: "POSITION", Location: 0, UsageMask: 0x7, ComponentType: gpu.ComponentFloat},
			},
		},
		"sprite.wgsl:fs_main": {
			Resources: []shader.Resource{
				{Name: "gSampler", Kind: shader.KindSampler, BindPoint: 0, BindCount: 1},
				{Name: "gTexture", Kind: shader.KindTexture, BindPoint: 0, BindCount: 1, Hint: gpu.HintTexture2D},
			},
			Outputs: []shader.Parameter{{SemanticName: "SV_Target", Location: 0, UsageMask: 0xF}},
		},
		"particles.wgsl:main": {
			Resources: []shader.Resource{
				{Name: "particles", Kind: shader.KindUAVStructured, BindPoint: 0, BindCount: 1, Size: 32},
				{Name: "params", Kind: shader.KindConstantBuffer, BindPoint: 1, BindCount: 1, Size: 16},
				{Name: "seeds", Kind: shader.KindStructured, BindPoint: 2, BindCount: 1, Size: 4},
			},
			ThreadGroup: [3]uint32{64, 1, 1},
		},
	}}
}

func mustDoc(t *testing.T, src string) preset.Document {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(src), &m))
	return preset.Document(m)
}

const spriteDoc = `{
	"Name": "Sprite",
	"PipelineType": "Render",
	"Shader": {
		"AutoRootDescriptorFromShader": true,
		"AutoInputLayoutFromVS": true,
		"AutoTopologyFromShaders": true,
		"Vertex": {"Path": "sprite.wgsl", "EntryPoint": "vs_main", "TargetProfile": "vs_6_0"},
		"Pixel": {"Path": "sprite.wgsl", "EntryPoint": "fs_main", "TargetProfile": "ps_6_0"}
	},
	"RasterizerState": {"CullMode": "D3D12_CULL_MODE_NONE", "FillMode": "D3D12_FILL_MODE_SOLID"},
	"BlendState": {"RenderTargets": [{"BlendEnable": true, "SrcBlend": "D3D12_BLEND_SRC_ALPHA", "DestBlend": "D3D12_BLEND_INV_SRC_ALPHA", "RenderTargetWriteMask": "D3D12_COLOR_WRITE_ENABLE_ALL"}]},
	"DepthStencilState": {"DepthEnable": false, "DepthWriteMask": "D3D12_DEPTH_WRITE_MASK_ZERO", "DepthFunc": "D3D12_COMPARISON_FUNC_LESS_EQUAL"},
	"PipelineState": {"RTVFormats": ["DXGI_FORMAT_R8G8B8A8_UNORM"], "SampleDesc": {"Count": 1, "Quality": 0}}
}`

func newTestManager(c shader.Compiler) (Manager, *gpu.NullDevice) {
	d := gpu.NewNullDevice()
	return NewManager(d, WithCompiler(c)), d
}

func TestBuildAutoLayoutSprite(t *testing.T) {
	c := spriteCompiler()
	m, _ := newTestManager(c)

	p, err := m.Build(mustDoc(t, spriteDoc))
	require.NoError(t, err)
	assert.Equal(t, "Sprite", p.Name())
	assert.Equal(t, PipelineTypeRender, p.Type())
	assert.Equal(t, gpu.TopologyTypeTriangle, p.TopologyType())
	assert.Equal(t, gpu.TopologyTriangleList, p.Topology())
	assert.Equal(t, uint32(1), p.NumRenderTargets())

	desc := p.LayoutDesc()
	assert.Equal(t, "Sprite", desc.Label)
	assert.Equal(t, gpu.LayoutFlagAllowInputAssembler, desc.Flags)
	require.Len(t, desc.Parameters, 3)
	assert.Equal(t, gpu.ParameterCBV, desc.Parameters[0].Type)
	assert.Equal(t, gpu.VisibilityVertex, desc.Parameters[0].Visibility)
	assert.Equal(t, uint32(0), desc.Parameters[0].Descriptor.Register)
	assert.Equal(t, gpu.ParameterTable, desc.Parameters[1].Type)
	assert.Equal(t, gpu.VisibilityPixel, desc.Parameters[1].Visibility)
	assert.Equal(t, gpu.RangeSRV, desc.Parameters[1].Ranges[0].Type)
	assert.Equal(t, gpu.HintTexture2D, desc.Parameters[1].Ranges[0].Hint)
	assert.Equal(t, gpu.RangeSampler, desc.Parameters[2].Ranges[0].Type)

	elements := p.InputLayout()
	require.Len(t, elements, 2)
	assert.Equal(t, "POSITION", elements[0].SemanticName)
	assert.Equal(t, gpu.FormatRGB32Float, elements[0].Format)
	assert.Equal(t, gpu.FormatRG32Float, elements[1].Format)
	assert.Equal(t, uint32(1), elements[1].Location)
	assert.Equal(t, gpu.AppendAligned, elements[1].AlignedByteOffset)

	b := p.Binder()
	loc, ok := b.Location("Vertex:gTransform")
	require.True(t, ok)
	assert.True(t, loc.RootCBV)
	assert.Equal(t, uint32(0), loc.Parameter)
	loc, ok = b.Location("Pixel:gTexture")
	require.True(t, ok)
	assert.True(t, loc.Table)
	assert.Equal(t, uint32(1), loc.Parameter)
	loc, ok = b.Location("Pixel:gSampler")
	require.True(t, ok)
	assert.Equal(t, uint32(2), loc.Parameter)

	_, ok = m.Store().CompiledShader("Sprite_Vertex")
	assert.True(t, ok)
	_, ok = m.Store().CompiledShader("Sprite_Pixel")
	assert.True(t, ok)
	assert.Equal(t, shader.StageVertex, c.calls[0].Stage)
	assert.Equal(t, []string{"Sprite"}, m.Names())
	svb, ok := m.ShaderVariableBinder("Sprite")
	require.True(t, ok)
	assert.Same(t, b, svb)
}

func TestAutoLayoutIsOrderIndependent(t *testing.T) {
	vsRes := []shader.Resource{
		{Name: "object", Kind: shader.KindConstantBuffer, BindPoint: 1},
		{Name: "scene", Kind: shader.KindConstantBuffer, BindPoint: 0, Space: 1},
		{Name: "instances", Kind: shader.KindStructured, BindPoint: 1},
	}
	psRes := []shader.Resource{
		{Name: "material", Kind: shader.KindConstantBuffer, BindPoint: 0},
		{Name: "albedo", Kind: shader.KindTexture, BindPoint: 0},
		{Name: "linear", Kind: shader.KindSampler, BindPoint: 0},
		{Name: "shadow", Kind: shader.KindTexture, BindPoint: 0, Space: 1},
		{Name: "feedback", Kind: shader.KindUAVTyped, BindPoint: 0},
	}
	build := func(vs, ps []shader.Resource, psFirst bool) gpu.LayoutDesc {
		v := shader.New(shader.CompileInfo{Stage: shader.StageVertex}, "", nil, &shader.Reflection{Resources: vs})
		p := shader.New(shader.CompileInfo{Stage: shader.StagePixel}, "", nil, &shader.Reflection{Resources: ps})
		if psFirst {
			return AutoLayout([]shader.Shader{p, v})
		}
		return AutoLayout([]shader.Shader{v, p})
	}

	want := build(vsRes, psRes, false)
	require.Len(t, want.Parameters, 8)
	direct := want.Parameters[:3]
	assert.Equal(t, gpu.RootDescriptor{Register: 0, Space: 0}, direct[0].Descriptor)
	assert.Equal(t, gpu.VisibilityPixel, direct[0].Visibility)
	assert.Equal(t, gpu.RootDescriptor{Register: 1, Space: 0}, direct[1].Descriptor)
	assert.Equal(t, gpu.RootDescriptor{Register: 0, Space: 1}, direct[2].Descriptor)
	groups := want.Parameters[3:]
	assert.Equal(t, gpu.VisibilityVertex, groups[0].Visibility)
	assert.Equal(t, gpu.RangeSRV, groups[0].Ranges[0].Type)
	assert.Equal(t, gpu.RangeSRV, groups[1].Ranges[0].Type)
	assert.Equal(t, gpu.RangeSampler, groups[2].Ranges[0].Type)
	assert.Equal(t, gpu.RangeUAV, groups[3].Ranges[0].Type)
	assert.Equal(t, uint32(0), groups[3].Ranges[0].Space)
	assert.Equal(t, uint32(1), groups[4].Ranges[0].Space)
	for _, g := range groups {
		require.Len(t, g.Ranges, 1)
		assert.Equal(t, gpu.AppendFromTableStart, g.Ranges[0].Offset)
	}

	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		vs := append([]shader.Resource(nil), vsRes...)
		ps := append([]shader.Resource(nil), psRes...)
		rng.Shuffle(len(vs), func(a, b int) { vs[a], vs[b] = vs[b], vs[a] })
		rng.Shuffle(len(ps), func(a, b int) { ps[a], ps[b] = ps[b], ps[a] })
		assert.Equal(t, want, build(vs, ps, i%2 == 0), "permutation %d", i)
	}
}

func TestBuildIsIdempotent(t *testing.T) {
	c := spriteCompiler()
	m, _ := newTestManager(c)

	first, err := m.Build(mustDoc(t, spriteDoc))
	require.NoError(t, err)
	second, err := m.Build(mustDoc(t, spriteDoc))
	require.NoError(t, err)

	assert.Equal(t, *first.LayoutDesc(), *second.LayoutDesc())
	assert.Len(t, c.calls, 2, "the second build reuses the compiled stages")
	assert.Same(t, first.Shader(shader.StageVertex), second.Shader(shader.StageVertex))
	assert.Equal(t, []string{"Sprite"}, m.Names())
	got, _ := m.Pipeline("Sprite")
	assert.Same(t, second, got)
}

func TestBuildRegistersNothingOnFailure(t *testing.T) {
	c := spriteCompiler()
	syntax := errors.New("syntax error")
	c.failures = map[string]error{"broken.wgsl": syntax}
	m, _ := newTestManager(c)

	noBlend := mustDoc(t, spriteDoc)
	noBlend["Name"] = "NoBlend"
	delete(noBlend, "BlendState")
	_, err := m.Build(noBlend)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSection)
	assert.Contains(t, err.Error(), `"NoBlend"`)
	assert.False(t, m.Has("NoBlend"))
	_, ok := m.Store().CompiledShader("NoBlend_Vertex")
	assert.False(t, ok)

	badPixel := mustDoc(t, spriteDoc)
	badPixel["Name"] = "BadPixel"
	sec, _ := badPixel.Object("Shader")
	sec["Pixel"] = map[string]any{"Path": "broken.wgsl"}
	_, err = m.Build(badPixel)
	assert.ErrorIs(t, err, syntax)
	assert.False(t, m.Has("BadPixel"))
	_, ok = m.Store().CompiledShader("BadPixel_Vertex")
	assert.False(t, ok, "stages compiled for a failed build are not cached")

	noVertex := mustDoc(t, `{"Name": "NoVertex", "Shader": {"Pixel": {"Path": "sprite.wgsl", "EntryPoint": "fs_main"}}}`)
	_, err = m.Build(noVertex)
	assert.ErrorIs(t, err, ErrMissingSection)

	noLayout := mustDoc(t, spriteDoc)
	noLayout["Name"] = "NoLayout"
	sec, _ = noLayout.Object("Shader")
	delete(sec, "AutoRootDescriptorFromShader")
	_, err = m.Build(noLayout)
	assert.ErrorIs(t, err, ErrMissingSection)

	_, err = m.Build(preset.Document{"Shader": map[string]any{}})
	assert.ErrorIs(t, err, ErrMissingSection, "a pipeline needs a name")
	assert.Empty(t, m.Names())
}

func TestBuildFromPresets(t *testing.T) {
	c := spriteCompiler()
	m, _ := newTestManager(c)

	presets := []struct {
		category preset.Category
		doc      string
	}{
		{preset.DescriptorRange, `{"Name": "TextureRange", "Ranges": [{"RangeType": "D3D12_DESCRIPTOR_RANGE_TYPE_SRV", "NumDescriptors": 1, "BaseShaderRegister": 0, "RegisterSpace": 0, "OffsetInDescriptorsFromTableStart": "D3D12_DESCRIPTOR_RANGE_OFFSET_APPEND"}]}`},
		{preset.RootParameter, `{"Name": "SpriteParams", "Parameters": [
			{"ParameterType": "D3D12_ROOT_PARAMETER_TYPE_CBV", "ShaderVisibility": "D3D12_SHADER_VISIBILITY_VERTEX", "Descriptor": {"ShaderRegister": 0, "RegisterSpace": 0}},
			{"ParameterType": "D3D12_ROOT_PARAMETER_TYPE_DESCRIPTOR_TABLE", "ShaderVisibility": "D3D12_SHADER_VISIBILITY_PIXEL", "DescriptorTable": {"UsePreset": "TextureRange"}}
		]}`},
		{preset.Sampler, `{"Name": "LinearWrap", "Samplers": [{"Filter": "D3D12_FILTER_MIN_MAG_MIP_LINEAR", "AddressU": "D3D12_TEXTURE_ADDRESS_MODE_WRAP", "AddressV": "D3D12_TEXTURE_ADDRESS_MODE_CLAMP", "AddressW": "D3D12_TEXTURE_ADDRESS_MODE_WRAP", "ComparisonFunc": "D3D12_COMPARISON_FUNC_NEVER", "MaxLOD": "D3D12_FLOAT32_MAX", "ShaderRegister": 0, "ShaderVisibility": "D3D12_SHADER_VISIBILITY_PIXEL"}]}`},
		{preset.RootSignature, `{"Name": "SpriteRS", "Flags": "D3D12_ROOT_SIGNATURE_FLAG_ALLOW_INPUT_ASSEMBLER_INPUT_LAYOUT", "RootParameter": {"UsePreset": "SpriteParams"}, "Sampler": {"UsePreset": "LinearWrap"}}`},
		{preset.InputLayout, `{"Name": "PosUV", "Elements": [
			{"SemanticName": "POSITION", "SemanticIndex": 0, "Format": "DXGI_FORMAT_R32G32B32_FLOAT", "InputSlot": 0, "AlignedByteOffset": "D3D12_APPEND_ALIGNED_ELEMENT", "InputSlotClass": "D3D12_INPUT_CLASSIFICATION_PER_VERTEX_DATA", "InstanceDataStepRate": 0},
			{"SemanticName": "TEXCOORD", "SemanticIndex": 0, "Format": "DXGI_FORMAT_R32G32_FLOAT", "InputSlot": 0, "AlignedByteOffset": 12, "InputSlotClass": "D3D12_INPUT_CLASSIFICATION_PER_VERTEX_DATA", "InstanceDataStepRate": 0}
		]}`},
		{preset.RasterizerState, `{"Name": "NoCull", "CullMode": "D3D12_CULL_MODE_NONE", "DepthBias": -2}`},
		{preset.BlendState, `{"Name": "Alpha", "RenderTargets": [{"BlendEnable": true, "SrcBlend": "D3D12_BLEND_SRC_ALPHA", "DestBlend": "D3D12_BLEND_INV_SRC_ALPHA", "BlendOp": "D3D12_BLEND_OP_ADD"}]}`},
		{preset.BlendState, `{"Name": "Translucent", "UsePreset": "Alpha"}`},
		{preset.DepthStencilState, `{"Name": "NoDepth", "DepthEnable": false, "FrontFace": {"StencilFunc": "D3D12_COMPARISON_FUNC_EQUAL"}}`},
		{preset.GraphicsPipelineState, `{"Name": "Default", "PrimitiveTopologyType": "D3D12_PRIMITIVE_TOPOLOGY_TYPE_LINE", "NumRenderTargets": 1, "RTVFormats": ["DXGI_FORMAT_R8G8B8A8_UNORM"], "DSVFormat": "DXGI_FORMAT_D32_FLOAT", "SampleMask": "0xFFFFFFFF"}`},
		{preset.Shader, `{"Name": "SpriteShader", "Vertex": {"Path": "sprite.wgsl", "EntryPoint": "vs_main"}, "Pixel": {"Path": "sprite.wgsl", "EntryPoint": "fs_main"}}`},
		{preset.Shader, `{"Name": "SpriteAlias", "UsePreset": "SpriteShader"}`},
	}
	for _, p := range presets {
		require.NoError(t, m.RegisterPreset(p.category, mustDoc(t, p.doc)), p.doc)
	}
	assert.Len(t, c.calls, 2)

	p, err := m.Build(mustDoc(t, `{
		"Name": "SpritePreset",
		"Shader": {"UsePreset": "SpriteAlias"},
		"RootSignature": {"UsePreset": "SpriteRS"},
		"InputLayout": {"UsePreset": "PosUV"},
		"RasterizerState": {"UsePreset": "NoCull"},
		"BlendState": {"UsePreset": "Translucent"},
		"DepthStencilState": {"UsePreset": "NoDepth"},
		"PipelineState": {"UsePreset": "Default"}
	}`))
	require.NoError(t, err)
	assert.Len(t, c.calls, 2, "preset stages are not recompiled")
	assert.Equal(t, "SpriteShader_Pixel", p.Shader(shader.StagePixel).Name())
	assert.Equal(t, gpu.TopologyLineList, p.Topology())

	desc := p.LayoutDesc()
	assert.Equal(t, gpu.LayoutFlagAllowInputAssembler, desc.Flags)
	require.Len(t, desc.Parameters, 2)
	assert.Equal(t, gpu.ParameterCBV, desc.Parameters[0].Type)
	assert.Equal(t, gpu.AppendFromTableStart, desc.Parameters[1].Ranges[0].Offset)
	require.Len(t, desc.StaticSamplers, 1)
	assert.Equal(t, gpu.AddressClamp, desc.StaticSamplers[0].AddressV)
	assert.Equal(t, float32(3.4028234663852886e+38), desc.StaticSamplers[0].MaxLOD)
	assert.Equal(t, gpu.VisibilityPixel, desc.StaticSamplers[0].Visibility)

	elements := p.InputLayout()
	require.Len(t, elements, 2)
	assert.Equal(t, gpu.AppendAligned, elements[0].AlignedByteOffset)
	assert.Equal(t, uint32(12), elements[1].AlignedByteOffset)
	assert.Equal(t, uint32(1), elements[1].Location)

	loc, ok := p.Binder().Location("Pixel:gTexture")
	require.True(t, ok)
	assert.Equal(t, uint32(1), loc.Parameter)

	stored, ok := preset.Lookup[gpu.BlendState](m.Store(), preset.BlendState, "Translucent")
	require.True(t, ok)
	assert.True(t, stored.RenderTargets[7].BlendEnable, "non-independent blend replicates target 0")
	ds, ok := preset.Lookup[gpu.DepthStencilState](m.Store(), preset.DepthStencilState, "NoDepth")
	require.True(t, ok)
	assert.Equal(t, gpu.CompareEqual, ds.FrontFace.Func)
	assert.Equal(t, gpu.CompareAlways, ds.BackFace.Func)
	rs, ok := preset.Lookup[gpu.RasterizerState](m.Store(), preset.RasterizerState, "NoCull")
	require.True(t, ok)
	assert.Equal(t, int32(-2), rs.DepthBias)
	assert.True(t, rs.DepthClipEnable)
}

func TestBuildUnknownPresetReference(t *testing.T) {
	m, _ := newTestManager(spriteCompiler())

	d := mustDoc(t, spriteDoc)
	d["RasterizerState"] = map[string]any{"UsePreset": "Missing"}
	_, err := m.Build(d)
	assert.ErrorIs(t, err, ErrPresetNotFound)

	err = m.RegisterPreset(preset.BlendState, mustDoc(t, `{"Name": "Alias", "UsePreset": "Missing"}`))
	assert.ErrorIs(t, err, ErrPresetNotFound)
	err = m.RegisterPreset(preset.BlendState, mustDoc(t, `{"RenderTargets": []}`))
	assert.ErrorIs(t, err, ErrMissingSection)
}

func TestBuildRejectsInvalidValues(t *testing.T) {
	m, _ := newTestManager(spriteCompiler())

	cases := map[string]func(preset.Document){
		"cull mode":    func(d preset.Document) { d["RasterizerState"] = map[string]any{"CullMode": "SIDEWAYS"} },
		"section type": func(d preset.Document) { d["BlendState"] = "Opaque" },
		"format":       func(d preset.Document) { d["PipelineState"] = map[string]any{"RTVFormats": []any{"R5G6B5"}} },
		"stencil mask": func(d preset.Document) { d["DepthStencilState"] = map[string]any{"StencilReadMask": 512} },
		"type":         func(d preset.Document) { d["PipelineType"] = "Raytracing" },
		"too many targets": func(d preset.Document) {
			d["PipelineState"] = map[string]any{"NumRenderTargets": 9}
		},
	}
	for name, mutate := range cases {
		d := mustDoc(t, spriteDoc)
		mutate(d)
		_, err := m.Build(d)
		assert.ErrorIs(t, err, ErrInvalidValue, name)
	}
	assert.Empty(t, m.Names())
}

func TestInlineLayoutSkipsIncompleteParameters(t *testing.T) {
	m, _ := newTestManager(spriteCompiler())

	d := mustDoc(t, spriteDoc)
	d["RootSignature"] = map[string]any{
		"RootParameter": map[string]any{"Parameters": []any{
			map[string]any{"ParameterType": "CBV", "ShaderVisibility": "VERTEX", "Descriptor": map[string]any{"ShaderRegister": 0}},
			map[string]any{"ParameterType": "SRV", "Descriptor": map[string]any{"ShaderRegister": 1}},
			map[string]any{"ShaderVisibility": "PIXEL"},
		}},
	}
	p, err := m.Build(d)
	require.NoError(t, err)
	require.Len(t, p.LayoutDesc().Parameters, 1)
	assert.Equal(t, gpu.VisibilityVertex, p.LayoutDesc().Parameters[0].Visibility)
}

const particlesDoc = `{
	"Name": "Particles",
	"PipeLineType": "Compute",
	"Shader": {
		"AutoRootDescriptorFromShader": true,
		"Compute": {"Path": "particles.wgsl", "TargetProfile": "cs_6_0"}
	},
	"PipelineState": {"Flags": "D3D12_PIPELINE_STATE_FLAG_NONE"}
}`

func TestBuildComputePipeline(t *testing.T) {
	c := spriteCompiler()
	m, _ := newTestManager(c)

	p, err := m.Build(mustDoc(t, particlesDoc))
	require.NoError(t, err)
	assert.Equal(t, PipelineTypeCompute, p.Type())
	assert.Equal(t, gpu.TopologyUndefined, p.Topology())
	assert.Equal(t, shader.DefaultEntryPoint, c.calls[0].EntryPoint)

	desc := p.LayoutDesc()
	assert.Zero(t, desc.Flags)
	require.Len(t, desc.Parameters, 3)
	assert.Equal(t, gpu.ParameterCBV, desc.Parameters[0].Type)
	assert.Equal(t, gpu.VisibilityCompute, desc.Parameters[0].Visibility)
	assert.Equal(t, gpu.RangeUAV, desc.Parameters[1].Ranges[0].Type)
	assert.Equal(t, gpu.RangeSRV, desc.Parameters[2].Ranges[0].Type)

	loc, ok := p.Binder().Location("Compute:particles")
	require.True(t, ok)
	assert.True(t, loc.Table)
	loc, ok = p.Binder().Location("Compute:params")
	require.True(t, ok)
	assert.True(t, loc.RootCBV)

	cl := gpu.NewNullCommandList("compute")
	require.NoError(t, m.ApplyPipeline(cl, "Particles"))
	assert.Equal(t, 0, cl.Count(gpu.OpSetTopology))
	assert.Equal(t, 1, cl.Count(gpu.OpSetLayout))
	assert.Equal(t, 1, cl.Count(gpu.OpSetPipelineState))

	noState := mustDoc(t, particlesDoc)
	noState["Name"] = "NoState"
	delete(noState, "PipelineState")
	_, err = m.Build(noState)
	assert.ErrorIs(t, err, ErrMissingSection)
}

func TestLoadAndReload(t *testing.T) {
	c := spriteCompiler()
	m, _ := newTestManager(c)

	src := &MemorySource{}
	src.AddPreset("RasterizerState", mustDoc(t, `{"Name": "NoCull", "CullMode": "NONE"}`))
	src.AddPreset("Bogus", mustDoc(t, `{"Name": "Ignored"}`))
	src.AddPreset("BlendState", mustDoc(t, `{"Name": "Broken", "RenderTargets": [{"SrcBlend": "NOPE"}]}`))
	src.AddPipeline(mustDoc(t, spriteDoc))
	src.AddPipeline(mustDoc(t, particlesDoc))
	src.AddPipeline(mustDoc(t, `{"Name": "Incomplete", "Shader": {"Vertex": {"Path": "sprite.wgsl", "EntryPoint": "vs_main"}}}`))

	err := m.Load(src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrMissingSection)
	assert.ErrorIs(t, err, ErrInvalidValue)
	assert.Equal(t, []string{"Particles", "Sprite"}, m.Names())
	assert.True(t, m.Store().Has(preset.RasterizerState, "NoCull"))
	assert.False(t, m.Store().Has(preset.BlendState, "Broken"))
	calls := len(c.calls)

	before, _ := m.Pipeline("Sprite")
	gen := m.Generation()
	err = m.Reload(src)
	require.Error(t, err)
	assert.Equal(t, gen+1, m.Generation())
	assert.Equal(t, []string{"Particles", "Sprite"}, m.Names())
	after, _ := m.Pipeline("Sprite")
	assert.NotSame(t, before, after)
	assert.Equal(t, 2*calls, len(c.calls), "reload recompiles every stage")

	m.Release()
	assert.Empty(t, m.Names())
	assert.ErrorIs(t, m.ApplyPipeline(gpu.NewNullCommandList("x"), "Sprite"), ErrPipelineNotFound)
}

func TestBinderRebindsOnlyWhenNeeded(t *testing.T) {
	m, _ := newTestManager(spriteCompiler())
	_, err := m.Build(mustDoc(t, spriteDoc))
	require.NoError(t, err)
	_, err = m.Build(mustDoc(t, particlesDoc))
	require.NoError(t, err)

	b := NewBinder(m)
	assert.Error(t, b.UsePipeline("Sprite"), "no command list")

	cl := gpu.NewNullCommandList("window")
	b.SetCommandList(cl)
	require.NoError(t, b.UsePipeline("Sprite"))
	assert.Len(t, cl.Commands(), 3)
	assert.Equal(t, gpu.OpSetTopology, cl.Commands()[0].Op)
	assert.Equal(t, gpu.TopologyTriangleList, cl.Commands()[0].Topology)
	assert.Equal(t, "Sprite", b.CurrentPipelineName())
	require.NotNil(t, b.ShaderVariableBinder())
	assert.Same(t, cl, b.ShaderVariableBinder().CommandList())

	require.NoError(t, b.UsePipeline("Sprite"))
	assert.Len(t, cl.Commands(), 3, "same pipeline is not rebound")

	b.Invalidate()
	require.NoError(t, b.UsePipeline("Sprite"))
	assert.Len(t, cl.Commands(), 6)

	require.NoError(t, b.UsePipeline("Particles"))
	assert.Len(t, cl.Commands(), 8)

	err = b.UsePipeline("Missing")
	assert.ErrorIs(t, err, ErrPipelineNotFound)
	assert.Empty(t, b.CurrentPipelineName())
	assert.Nil(t, b.ShaderVariableBinder())

	require.NoError(t, b.UsePipeline("Particles"))
	assert.Len(t, cl.Commands(), 10)
}

const spriteWGSL = `
struct Camera {
    offset: vec4<f32>,
    scale: vec4<f32>,
}

struct Uniforms {
    premultiplied: f32,
    alpha: f32,
}

struct VertexOutput {
    @builtin(position) position: vec4<f32>,
    @location(0) uv: vec2<f32>,
}

@group(0) @binding(0) var<uniform> camera: Camera;
@group(0) @binding(1) var<uniform> uniforms: Uniforms;
@group(0) @binding(2) var tex: texture_2d<f32>;
@group(0) @binding(3) var texSampler: sampler;

@vertex
fn vs_main(@location(0) position: vec3<f32>, @location(1) uv: vec2<f32>) -> VertexOutput {
    var result: VertexOutput;
    result.position = vec4<f32>(position, 1.0) * camera.scale + camera.offset;
    result.uv = uv;
    return result;
}

@fragment
fn fs_main(input: VertexOutput) -> @location(0) vec4<f32> {
    let texColor = textureSample(tex, texSampler, input.uv);
    return texColor * uniforms.alpha;
}
`

func TestBuildFromWGSL(t *testing.T) {
	files := fstest.MapFS{"shaders/sprite.wgsl": {Data: []byte(spriteWGSL)}}
	c := shader.NewCompiler(shader.WithFileSystem(files), shader.WithValidation(false))
	m := NewManager(gpu.NewNullDevice(), WithCompiler(c), WithShaderRoot("shaders"))

	d := mustDoc(t, spriteDoc)
	sec, _ := d.Object("Shader")
	sec["AutoRTCountFromPS"] = true
	d["PipelineState"] = map[string]any{}

	p, err := m.Build(d)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), p.NumRenderTargets())

	params := p.LayoutDesc().Parameters
	require.Len(t, params, 4)
	assert.Equal(t, gpu.ParameterCBV, params[0].Type)
	assert.Equal(t, gpu.VisibilityVertex, params[0].Visibility)
	assert.Equal(t, uint32(0), params[0].Descriptor.Register)
	assert.Equal(t, gpu.ParameterCBV, params[1].Type)
	assert.Equal(t, gpu.VisibilityPixel, params[1].Visibility)
	assert.Equal(t, uint32(1), params[1].Descriptor.Register)
	assert.Equal(t, gpu.RangeSRV, params[2].Ranges[0].Type)
	assert.Equal(t, uint32(2), params[2].Ranges[0].BaseRegister)
	assert.Equal(t, gpu.RangeSampler, params[3].Ranges[0].Type)

	elements := p.InputLayout()
	require.Len(t, elements, 2)
	assert.Equal(t, gpu.FormatRGB32Float, elements[0].Format)
	assert.Equal(t, gpu.FormatRG32Float, elements[1].Format)

	assert.False(t, p.Binder().Bind("Vertex:camera", mustBuffer(t)), "no command list yet")
	cl := gpu.NewNullCommandList("window")
	p.Binder().SetCommandList(cl)
	assert.True(t, p.Binder().Bind("Pixel:uniforms", mustBuffer(t)))
	assert.Equal(t, uint32(1), cl.Commands()[0].Parameter)
}

func mustBuffer(t *testing.T) gpu.Buffer {
	t.Helper()
	b, err := gpu.NewNullDevice().CreateBuffer(&gpu.BufferDesc{Label: "cb", Size: 16, Usage: gpu.BufferUsageConstant})
	require.NoError(t, err)
	return b
}
