package binder

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// Build creates the binder of a pipeline from its final binding layout and its compiled stages.
// Every location is registered under each stage its parameter is visible to, and SRV and
// UAV slots under each sub-kind a reflection may report for them.
//
// Parameters:
//   - layout: the binding layout the pipeline was created with
//   - shaders: the compiled stages of the pipeline
//
// Returns:
//   - ShaderVariableBinder: the populated binder
func Build(layout *gpu.LayoutDesc, shaders []shader.Shader) ShaderVariableBinder {
	b := New()
	for _, s := range shaders {
		if s != nil {
			b.AddStage(s.Stage(), s.Reflection())
		}
	}
	if layout == nil {
		return b
	}
	for i, p := range layout.Parameters {
		param := uint32(i)
		stages := StagesForVisibility(p.Visibility)
		switch p.Type {
		case gpu.ParameterTable:
			for _, r := range p.ResolvedRanges() {
				for _, kind := range KindsForRange(r.Type) {
					for _, stage := range stages {
						b.RegisterDescriptorTableRange(kind, r.BaseRegister, r.Space, r.NumDescriptors, param, r.Offset, stage)
					}
				}
			}
		case gpu.ParameterCBV, gpu.ParameterSRV, gpu.ParameterUAV:
			for _, kind := range KindsForParameter(p.Type) {
				for _, stage := range stages {
					b.RegisterRootDescriptor(kind, p.Descriptor.Register, p.Descriptor.Space, param, stage)
				}
			}
		}
	}
	return b
}

// StagesForVisibility returns the stages a layout parameter with the given visibility serves.
func StagesForVisibility(v gpu.Visibility) []shader.Stage {
	switch v {
	case gpu.VisibilityVertex:
		return []shader.Stage{shader.StageVertex}
	case gpu.VisibilityPixel:
		return []shader.Stage{shader.StagePixel}
	case gpu.VisibilityGeometry:
		return []shader.Stage{shader.StageGeometry}
	case gpu.VisibilityHull:
		return []shader.Stage{shader.StageHull}
	case gpu.VisibilityDomain:
		return []shader.Stage{shader.StageDomain}
	case gpu.VisibilityCompute:
		return []shader.Stage{shader.StageCompute}
	}
	return shader.Stages
}

// KindsForRange returns the resource kinds a table range of the given type may hold.
func KindsForRange(t gpu.RangeType) []shader.ResourceKind {
	switch t {
	case gpu.RangeSRV:
		return shader.SRVKinds
	case gpu.RangeUAV:
		return shader.UAVKinds
	case gpu.RangeCBV:
		return []shader.ResourceKind{shader.KindConstantBuffer}
	case gpu.RangeSampler:
		return []shader.ResourceKind{shader.KindSampler}
	}
	return nil
}

// KindsForParameter returns the resource kinds a direct slot of the given type may hold.
func KindsForParameter(t gpu.ParameterType) []shader.ResourceKind {
	switch t {
	case gpu.ParameterCBV:
		return []shader.ResourceKind{shader.KindConstantBuffer}
	case gpu.ParameterSRV:
		return shader.SRVKinds
	case gpu.ParameterUAV:
		return shader.UAVKinds
	}
	return nil
}
