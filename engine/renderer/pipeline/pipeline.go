package pipeline

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// PipelineType identifies whether a pipeline is a compute pipeline or a render pipeline.
type PipelineType int

const (
	// PipelineTypeCompute indicates a compute pipeline with a single compute shader entry point.
	PipelineTypeCompute PipelineType = iota

	// PipelineTypeRender indicates a render pipeline with at least a vertex stage.
	PipelineTypeRender
)

func (t PipelineType) String() string {
	if t == PipelineTypeCompute {
		return "Compute"
	}
	return "Render"
}

// ParsePipelineType parses the PipelineType field of a description. An empty value is Render.
//
// Parameters:
//   - s: "Render", "Graphics" or "Compute", case-insensitive
//
// Returns:
//   - PipelineType: the parsed type
//   - bool: false if the value is not a known type
func ParsePipelineType(s string) (PipelineType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "render", "graphics":
		return PipelineTypeRender, true
	case "compute":
		return PipelineTypeCompute, true
	}
	return PipelineTypeRender, false
}

// pipeline is the implementation of the Pipeline interface.
// It holds the created device objects of one named pipeline and the binder built for them.
type pipeline struct {
	// pipelineType indicates the type of pipeline this is; compute or render
	pipelineType PipelineType
	// name is the unique identifier for this pipeline, used for caching and lookups
	name string

	// shaders holds the compiled stages keyed by stage
	shaders map[shader.Stage]shader.Shader

	// layoutDesc is the final binding layout the layout object was created from
	layoutDesc gpu.LayoutDesc
	layout     gpu.Layout
	state      gpu.PipelineState

	// the following are only meaningful for render pipelines

	topologyType     gpu.TopologyType
	inputLayout      []gpu.InputElement
	numRenderTargets uint32

	binder binder.ShaderVariableBinder
}

// Pipeline is one compiled, named pipeline: its binding layout, its PSO, the compiled stages
// it was created from and the binder that resolves its shader variables.
type Pipeline interface {
	// Name returns the unique name this pipeline is registered under.
	Name() string

	// Type returns the type of the pipeline.
	//
	// Returns:
	//   - PipelineType: the type of the pipeline (render or compute)
	Type() PipelineType

	// TopologyType returns the primitive class the PSO was compiled for.
	TopologyType() gpu.TopologyType

	// Topology returns the topology set on a command list before drawing with this pipeline.
	//
	// Returns:
	//   - gpu.Topology: the draw topology, TopologyUndefined for compute pipelines
	Topology() gpu.Topology

	// Layout returns the created binding layout.
	Layout() gpu.Layout

	// LayoutDesc returns the binding layout description the layout was created from.
	LayoutDesc() *gpu.LayoutDesc

	// State returns the opaque PSO handle.
	State() gpu.PipelineState

	// Shader retrieves the compiled stage of the given kind.
	//
	// Parameters:
	//   - stage: the stage to retrieve
	//
	// Returns:
	//   - shader.Shader: the compiled stage, or nil if the pipeline has none
	Shader(stage shader.Stage) shader.Shader

	// Shaders returns every compiled stage in stage order.
	Shaders() []shader.Shader

	// InputLayout returns the vertex input elements of a render pipeline.
	InputLayout() []gpu.InputElement

	// NumRenderTargets returns the number of render targets a render pipeline writes.
	NumRenderTargets() uint32

	// Binder returns the shader variable binder built from the layout and the stage reflections.
	Binder() binder.ShaderVariableBinder

	// Release destroys the PSO and the binding layout.
	Release()
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a pipeline record from already created device objects. A PipelineType
// must be specified and provided upon creation.
//
// Parameters:
//   - name: the unique name for this pipeline
//   - pipelineType: the type of pipeline to create (render or compute)
//   - opts: a variadic list of PipelineBuilderOption functions to configure the pipeline
//
// Returns:
//   - Pipeline: a new Pipeline instance with the specified type and configuration
func NewPipeline(name string, pipelineType PipelineType, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		name:             name,
		pipelineType:     pipelineType,
		shaders:          make(map[shader.Stage]shader.Shader),
		numRenderTargets: 1,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.binder == nil {
		p.binder = binder.Build(&p.layoutDesc, p.Shaders())
	}
	return p
}

func (p *pipeline) Name() string                        { return p.name }
func (p *pipeline) Type() PipelineType                  { return p.pipelineType }
func (p *pipeline) TopologyType() gpu.TopologyType      { return p.topologyType }
func (p *pipeline) Layout() gpu.Layout                  { return p.layout }
func (p *pipeline) LayoutDesc() *gpu.LayoutDesc         { return &p.layoutDesc }
func (p *pipeline) State() gpu.PipelineState            { return p.state }
func (p *pipeline) InputLayout() []gpu.InputElement     { return p.inputLayout }
func (p *pipeline) NumRenderTargets() uint32            { return p.numRenderTargets }
func (p *pipeline) Binder() binder.ShaderVariableBinder { return p.binder }

func (p *pipeline) Topology() gpu.Topology {
	if p.pipelineType == PipelineTypeCompute {
		return gpu.TopologyUndefined
	}
	return gpu.ToTopology(p.topologyType)
}

func (p *pipeline) Shader(stage shader.Stage) shader.Shader {
	return p.shaders[stage]
}

func (p *pipeline) Shaders() []shader.Shader {
	out := make([]shader.Shader, 0, len(p.shaders))
	for _, stage := range shader.Stages {
		if s, ok := p.shaders[stage]; ok {
			out = append(out, s)
		}
	}
	return out
}

func (p *pipeline) Release() {
	if p.state != nil {
		p.state.Release()
		p.state = nil
	}
	if p.layout != nil {
		p.layout.Release()
		p.layout = nil
	}
}
