package binder

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func spriteShaders() []shader.Shader {
	vs := shader.New(shader.CompileInfo{Name: "vs", Stage: shader.StageVertex}, "", nil, &shader.Reflection{
		Resources: []shader.Resource{
			{Name: "gTransform", Kind: shader.KindConstantBuffer, BindPoint: 0, BindCount: 1},
			{Name: "gInstances", Kind: shader.KindStructured, BindPoint: 1, BindCount: 1},
		},
	})
	ps := shader.New(shader.CompileInfo{Name: "ps", Stage: shader.StagePixel}, "", nil, &shader.Reflection{
		Resources: []shader.Resource{
			{Name: "gTexture", Kind: shader.KindTexture, BindPoint: 0, BindCount: 1},
			{Name: "gSampler", Kind: shader.KindSampler, BindPoint: 0, BindCount: 1},
			{Name: "gTransform", Kind: shader.KindConstantBuffer, BindPoint: 0, BindCount: 1},
		},
	})
	return []shader.Shader{vs, ps}
}

func spriteLayout() *gpu.LayoutDesc {
	return &gpu.LayoutDesc{
		Parameters: []gpu.RootParameter{
			{Type: gpu.ParameterCBV, Visibility: gpu.VisibilityAll, Descriptor: gpu.RootDescriptor{Register: 0}},
			{Type: gpu.ParameterTable, Visibility: gpu.VisibilityVertex, Ranges: []gpu.DescriptorRange{
				{Type: gpu.RangeSRV, NumDescriptors: 1, BaseRegister: 1, Offset: gpu.AppendFromTableStart},
			}},
			{Type: gpu.ParameterTable, Visibility: gpu.VisibilityPixel, Ranges: []gpu.DescriptorRange{
				{Type: gpu.RangeSRV, NumDescriptors: 2, BaseRegister: 0, Offset: gpu.AppendFromTableStart},
			}},
			{Type: gpu.ParameterTable, Visibility: gpu.VisibilityPixel, Ranges: []gpu.DescriptorRange{
				{Type: gpu.RangeSampler, NumDescriptors: 1, BaseRegister: 0, Offset: gpu.AppendFromTableStart},
			}},
		},
	}
}

func TestBuildRegistersLocations(t *testing.T) {
	b := Build(spriteLayout(), spriteShaders())

	assert.Equal(t, []string{"Pixel:gSampler", "Pixel:gTexture", "Pixel:gTransform", "Vertex:gInstances", "Vertex:gTransform"}, b.Names())

	loc, ok := b.Location("Vertex:gTransform")
	require.True(t, ok)
	assert.True(t, loc.RootCBV)
	assert.False(t, loc.Table)
	assert.Equal(t, uint32(0), loc.Parameter)

	loc, ok = b.Location("Pixel:gTransform")
	require.True(t, ok, "VisibilityAll registers under every stage")
	assert.Equal(t, shader.StagePixel, loc.Stage)

	loc, ok = b.Location("Vertex:gInstances")
	require.True(t, ok, "SRV ranges register under every SRV sub-kind")
	assert.True(t, loc.Table)
	assert.Equal(t, uint32(1), loc.Parameter)

	loc, ok = b.Location("Pixel:gTexture")
	require.True(t, ok)
	assert.Equal(t, uint32(2), loc.Parameter)
	assert.Equal(t, uint32(0), loc.Offset)

	loc, ok = b.Location("Pixel:gSampler")
	require.True(t, ok)
	assert.Equal(t, uint32(3), loc.Parameter)

	_, ok = b.Location("Pixel:gMissing")
	assert.False(t, ok)
}

func TestBindIssuesCommands(t *testing.T) {
	d := gpu.NewNullDevice()
	cb, err := d.CreateBuffer(&gpu.BufferDesc{Label: "cb", Size: 64, Usage: gpu.BufferUsageConstant})
	require.NoError(t, err)
	sb, err := d.CreateBuffer(&gpu.BufferDesc{Label: "sb", Size: 64, Usage: gpu.BufferUsageStructured, Stride: 16})
	require.NoError(t, err)

	b := Build(spriteLayout(), spriteShaders())
	assert.False(t, b.Bind("Vertex:gTransform", cb), "no command list")

	cl := gpu.NewNullCommandList("test")
	b.SetCommandList(cl)
	assert.Same(t, cl, b.CommandList())

	assert.True(t, b.Bind("Vertex:gTransform", cb))
	assert.False(t, b.Bind("Vertex:gInstances", sb), "table location needs a descriptor")
	assert.False(t, b.BindDescriptor("Vertex:gTransform", sb.Descriptor()), "direct slot needs a resource")
	assert.True(t, b.BindDescriptor("Vertex:gInstances", sb.Descriptor()))
	assert.False(t, b.Bind("Vertex:nope", cb))
	assert.False(t, b.Bind("Vertex:gTransform", nil))
	assert.False(t, b.BindDescriptor("Pixel:gTexture", nil))
	assert.False(t, b.BindDescriptor("Pixel:gTexture", &gpu.NullDescriptor{}))

	cb.Release()
	assert.False(t, b.Bind("Vertex:gTransform", cb), "released buffer has no GPU address")

	cmds := cl.Commands()
	require.Len(t, cmds, 2)
	assert.Equal(t, gpu.OpSetRootConstantBuffer, cmds[0].Op)
	assert.Equal(t, uint32(0), cmds[0].Parameter)
	assert.Equal(t, gpu.OpSetDescriptorTable, cmds[1].Op)
	assert.Equal(t, uint32(1), cmds[1].Parameter)
	assert.Equal(t, uint32(0), cmds[1].Offset)
}

func TestRootDescriptorFlags(t *testing.T) {
	b := New()
	b.AddStage(shader.StageCompute, &shader.Reflection{Resources: []shader.Resource{
		{Name: "a", Kind: shader.KindStructured, BindPoint: 0},
		{Name: "b", Kind: shader.KindUAVStructured, BindPoint: 0},
		{Name: "c", Kind: shader.KindConstantBuffer, BindPoint: 0},
	}})
	b.RegisterRootDescriptor(shader.KindStructured, 0, 0, 0, shader.StageCompute)
	b.RegisterRootDescriptor(shader.KindUAVStructured, 0, 0, 1, shader.StageCompute)
	b.RegisterRootDescriptor(shader.KindConstantBuffer, 0, 0, 2, shader.StageCompute)

	cl := gpu.NewNullCommandList("compute")
	b.SetCommandList(cl)
	d := gpu.NewNullDevice()
	buf, err := d.CreateBuffer(&gpu.BufferDesc{Label: "x", Size: 16})
	require.NoError(t, err)

	assert.True(t, b.Bind("Compute:a", buf))
	assert.True(t, b.Bind("Compute:b", buf))
	assert.True(t, b.Bind("Compute:c", buf))
	assert.Equal(t, 1, cl.Count(gpu.OpSetRootShaderResource))
	assert.Equal(t, 1, cl.Count(gpu.OpSetRootUnorderedAccess))
	assert.Equal(t, 1, cl.Count(gpu.OpSetRootConstantBuffer))
}

func TestTableRangeOffsets(t *testing.T) {
	b := New()
	b.AddStage(shader.StagePixel, &shader.Reflection{Resources: []shader.Resource{
		{Name: "t2", Kind: shader.KindTexture, BindPoint: 6, Space: 1},
	}})
	b.RegisterDescriptorTableRange(shader.KindTexture, 4, 1, 3, 5, 10, shader.StagePixel)

	loc, ok := b.Location("Pixel:t2")
	require.True(t, ok)
	assert.Equal(t, uint32(5), loc.Parameter)
	assert.Equal(t, uint32(12), loc.Offset)
}

func TestFirstStageOccurrenceWins(t *testing.T) {
	b := New()
	b.AddStage(shader.StagePixel, &shader.Reflection{Resources: []shader.Resource{{Name: "x", Kind: shader.KindTexture, BindPoint: 1}}})
	b.AddStage(shader.StagePixel, &shader.Reflection{Resources: []shader.Resource{{Name: "x", Kind: shader.KindSampler, BindPoint: 2}}})
	b.AddStage(shader.StagePixel, nil)

	got, ok := b.Binding("Pixel:x")
	require.True(t, ok)
	assert.Equal(t, shader.KindTexture, got.Kind)
	assert.Equal(t, uint32(1), got.BindPoint)
}

func TestStageFromNameKey(t *testing.T) {
	cases := map[string]shader.Stage{
		"Vertex:a":   shader.StageVertex,
		"Pixel:b":    shader.StagePixel,
		"Geometry:c": shader.StageGeometry,
		"Hull:d":     shader.StageHull,
		"Domain:e":   shader.StageDomain,
		"Compute:f":  shader.StageCompute,
		"pixel:g":    shader.StageUnknown,
		"noprefix":   shader.StageUnknown,
	}
	for in, want := range cases {
		assert.Equal(t, want, StageFromNameKey(in), in)
	}
	assert.Equal(t, "Pixel:gTexture", NameKey(shader.StagePixel, "gTexture"))
}
