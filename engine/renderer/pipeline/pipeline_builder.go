package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// PipelineBuilderOption is a functional option used to configure a Pipeline during construction.
type PipelineBuilderOption func(*pipeline)

// WithShader sets the compiled stage a pipeline was created from. The stage is taken from the shader.
//
// Parameters:
//   - s: the compiled stage; nil is ignored
//
// Returns:
//   - PipelineBuilderOption: a function that records the stage on the pipeline
func WithShader(s shader.Shader) PipelineBuilderOption {
	return func(p *pipeline) {
		if s != nil {
			p.shaders[s.Stage()] = s
		}
	}
}

// WithLayout sets the created binding layout and the description it was created from.
//
// Parameters:
//   - layout: the created layout
//   - desc: the final layout description
//
// Returns:
//   - PipelineBuilderOption: a function that sets the binding layout for this pipeline
func WithLayout(layout gpu.Layout, desc gpu.LayoutDesc) PipelineBuilderOption {
	return func(p *pipeline) {
		p.layout = layout
		p.layoutDesc = desc
	}
}

// WithState sets the created PSO.
//
// Parameters:
//   - state: the PSO handle
//
// Returns:
//   - PipelineBuilderOption: a function that sets the PSO for this pipeline
func WithState(state gpu.PipelineState) PipelineBuilderOption {
	return func(p *pipeline) {
		p.state = state
	}
}

// WithTopologyType sets the primitive class a render pipeline was compiled for.
//
// Parameters:
//   - t: the topology type
//
// Returns:
//   - PipelineBuilderOption: a function that sets the topology type for this pipeline
func WithTopologyType(t gpu.TopologyType) PipelineBuilderOption {
	return func(p *pipeline) {
		p.topologyType = t
	}
}

// WithInputLayout sets the vertex input elements of a render pipeline.
//
// Parameters:
//   - elements: the input elements
//
// Returns:
//   - PipelineBuilderOption: a function that sets the input layout for this pipeline
func WithInputLayout(elements []gpu.InputElement) PipelineBuilderOption {
	return func(p *pipeline) {
		p.inputLayout = append([]gpu.InputElement(nil), elements...)
	}
}

// WithNumRenderTargets sets the number of render targets a render pipeline writes.
//
// Parameters:
//   - n: the render target count
//
// Returns:
//   - PipelineBuilderOption: a function that sets the render target count for this pipeline
func WithNumRenderTargets(n uint32) PipelineBuilderOption {
	return func(p *pipeline) {
		p.numRenderTargets = n
	}
}

// WithBinder overrides the binder built from the layout and the stage reflections.
//
// Parameters:
//   - b: the binder to use
//
// Returns:
//   - PipelineBuilderOption: a function that sets the binder for this pipeline
func WithBinder(b binder.ShaderVariableBinder) PipelineBuilderOption {
	return func(p *pipeline) {
		p.binder = b
	}
}
