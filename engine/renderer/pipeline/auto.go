package pipeline

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

type directSlot struct {
	register, space uint32
	stage           shader.Stage
}

type slotGroup struct {
	kind            shader.ResourceKind
	register, space uint32
	stage           shader.Stage
}

// AutoLayout derives a binding layout from the resources the given stages use.
// Constant buffers become direct slots, one per (register, space, stage), sorted by
// space, register and stage. Every other resource becomes a one-range table, one per
// (kind, register, space, stage), in the order stages and their sorted resources are
// walked. Direct slots precede tables. The result does not depend on the order the
// stages or their resources are given in.
//
// Parameters:
//   - shaders: the compiled stages of the pipeline
//
// Returns:
//   - gpu.LayoutDesc: the derived layout, without a label
func AutoLayout(shaders []shader.Shader) gpu.LayoutDesc {
	stages := make([]shader.Shader, 0, len(shaders))
	for _, s := range shaders {
		if s != nil {
			stages = append(stages, s)
		}
	}
	sort.SliceStable(stages, func(i, j int) bool { return stages[i].Stage() < stages[j].Stage() })

	var desc gpu.LayoutDesc
	seenDirect := map[directSlot]bool{}
	seenGroup := map[slotGroup]bool{}
	var direct []directSlot
	var groups []gpu.RootParameter
	for _, s := range stages {
		stage := s.Stage()
		if stage == shader.StageVertex {
			desc.Flags |= gpu.LayoutFlagAllowInputAssembler
		}
		for _, res := range sortedResources(s.Reflection().Resources) {
			if res.Kind == shader.KindConstantBuffer {
				key := directSlot{register: res.BindPoint, space: res.Space, stage: stage}
				if !seenDirect[key] {
					seenDirect[key] = true
					direct = append(direct, key)
				}
				continue
			}
			key := slotGroup{kind: res.Kind, register: res.BindPoint, space: res.Space, stage: stage}
			if seenGroup[key] {
				continue
			}
			seenGroup[key] = true
			groups = append(groups, gpu.RootParameter{
				Type:       gpu.ParameterTable,
				Visibility: stage.Visibility(),
				Ranges: []gpu.DescriptorRange{{
					Type:           rangeTypeOf(res.Kind),
					NumDescriptors: max(res.BindCount, 1),
					BaseRegister:   res.BindPoint,
					Space:          res.Space,
					Offset:         gpu.AppendFromTableStart,
					Hint:           res.Hint,
				}},
			})
		}
	}

	sort.Slice(direct, func(i, j int) bool {
		a, b := direct[i], direct[j]
		if a.space != b.space {
			return a.space < b.space
		}
		if a.register != b.register {
			return a.register < b.register
		}
		return a.stage < b.stage
	})
	desc.Parameters = make([]gpu.RootParameter, 0, len(direct)+len(groups))
	for _, d := range direct {
		desc.Parameters = append(desc.Parameters, gpu.RootParameter{
			Type:       gpu.ParameterCBV,
			Visibility: d.stage.Visibility(),
			Descriptor: gpu.RootDescriptor{Register: d.register, Space: d.space},
		})
	}
	desc.Parameters = append(desc.Parameters, groups...)
	return desc
}

func sortedResources(in []shader.Resource) []shader.Resource {
	out := append([]shader.Resource(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Space != b.Space {
			return a.Space < b.Space
		}
		if a.BindPoint != b.BindPoint {
			return a.BindPoint < b.BindPoint
		}
		if a.Kind != b.Kind {
			return a.Kind < b.Kind
		}
		return a.Name < b.Name
	})
	return out
}

func rangeTypeOf(kind shader.ResourceKind) gpu.RangeType {
	switch {
	case kind == shader.KindSampler:
		return gpu.RangeSampler
	case kind == shader.KindConstantBuffer:
		return gpu.RangeCBV
	case kind.IsUAV():
		return gpu.RangeUAV
	}
	return gpu.RangeSRV
}

// AutoInputLayout derives one per-vertex element per vertex stage input. The format
// takes its component count from the usage mask and its scalar class from the
// component type. Inputs whose format cannot be expressed are left out.
//
// Parameters:
//   - vs: the compiled vertex stage
//
// Returns:
//   - []gpu.InputElement: the elements in input slot 0, appended in location order
func AutoInputLayout(vs shader.Shader) []gpu.InputElement {
	if vs == nil {
		return nil
	}
	inputs := append([]shader.Parameter(nil), vs.Reflection().Inputs...)
	sort.SliceStable(inputs, func(i, j int) bool { return inputs[i].Location < inputs[j].Location })
	out := make([]gpu.InputElement, 0, len(inputs))
	for _, in := range inputs {
		f := gpu.VertexFormat(in.ComponentType, in.Components())
		if f == gpu.FormatUnknown {
			continue
		}
		out = append(out, gpu.InputElement{
			SemanticName:      in.SemanticName,
			SemanticIndex:     in.SemanticIndex,
			Format:            f,
			AlignedByteOffset: gpu.AppendAligned,
			Classification:    gpu.InputPerVertex,
			Location:          in.Location,
		})
	}
	return out
}

// AutoRenderTargetCount returns the number of color outputs of a pixel stage, capped at
// gpu.MaxRenderTargets. A pipeline without a pixel stage writes no color target.
func AutoRenderTargetCount(ps shader.Shader) uint32 {
	if ps == nil {
		return 0
	}
	return min(uint32(len(ps.Reflection().Outputs)), gpu.MaxRenderTargets)
}

// AutoTopologyType picks Patch when both tessellation stages are present, Triangle otherwise.
func AutoTopologyType(stages map[shader.Stage]shader.Shader) gpu.TopologyType {
	if stages[shader.StageHull] != nil && stages[shader.StageDomain] != nil {
		return gpu.TopologyTypePatch
	}
	return gpu.TopologyTypeTriangle
}
