package shader

import (
	"testing"

	"github.com/gogpu/naga/ir"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func locationBinding(loc uint32) *ir.Binding {
	var b ir.Binding = ir.LocationBinding{Location: loc}
	return &b
}

// TestReflectInlineEntryPoint builds the IR by hand: the entry point body is inline and
// reaches one global directly and one through a helper it calls.
func TestReflectInlineEntryPoint(t *testing.T) {
	m := &ir.Module{
		Types: []ir.Type{
			{Name: "vec4f", Inner: ir.VectorType{Size: ir.Vec4, Scalar: ir.ScalarType{Kind: ir.ScalarFloat, Width: 4}}},
		},
		GlobalVariables: []ir.GlobalVariable{
			{Name: "camera", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 0, Binding: 0}, Type: 0},
			{Name: "tint", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 0, Binding: 1}, Type: 0},
			{Name: "unused", Space: ir.SpaceUniform, Binding: &ir.ResourceBinding{Group: 1, Binding: 0}, Type: 0},
		},
		Functions: []ir.Function{
			{
				Name:        "shade",
				Expressions: []ir.Expression{{Kind: ir.ExprGlobalVariable{Variable: 1}}},
			},
		},
	}
	ep := &ir.EntryPoint{
		Name:  "vs_main",
		Stage: ir.StageVertex,
		Function: ir.Function{
			Name:        "vs_main",
			Arguments:   []ir.FunctionArgument{{Name: "color", Type: 0, Binding: locationBinding(2)}},
			Result:      &ir.FunctionResult{Type: 0, Binding: locationBinding(0)},
			Expressions: []ir.Expression{{Kind: ir.ExprGlobalVariable{Variable: 0}}},
			Body:        []ir.Statement{{Kind: ir.StmtCall{Function: 0}}},
		},
	}
	m.EntryPoints = []ir.EntryPoint{*ep}

	r := reflectEntryPoint(m, ep, "")

	require.Len(t, r.Resources, 2)
	assert.Equal(t, "camera", r.Resources[0].Name)
	assert.Equal(t, KindConstantBuffer, r.Resources[0].Kind)
	assert.Equal(t, uint32(16), r.Resources[0].Size)
	assert.Equal(t, "tint", r.Resources[1].Name, "globals reached through a call are collected")
	assert.Equal(t, uint32(1), r.Resources[1].BindPoint)

	require.Len(t, r.Inputs, 1)
	assert.Equal(t, "color", r.Inputs[0].SemanticName)
	assert.Equal(t, uint32(2), r.Inputs[0].Location)
	assert.Equal(t, uint8(0xF), r.Inputs[0].UsageMask)
	require.Len(t, r.Outputs, 1)
	assert.Equal(t, uint32(0), r.Outputs[0].Location)
}
