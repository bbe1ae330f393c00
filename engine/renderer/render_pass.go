package renderer

import (
	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/binder"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
)

// RenderType selects how a pass is drawn.
type RenderType int

const (
	// RenderTypeStandard draws every pass on its own.
	RenderTypeStandard RenderType = iota
	// RenderTypeInstancing merges passes sharing a BatchKey into one instanced draw.
	RenderTypeInstancing
)

// ObjectType orders engine-owned objects before game objects within a target.
type ObjectType int

const (
	ObjectTypeSystem ObjectType = iota
	ObjectTypeGame
)

// Dimension orders 3D passes before 2D passes within a target.
type Dimension int

const (
	Dimension3D Dimension = iota
	Dimension2D
)

// ConstantBufferRequirement names a constant buffer a pass writes before drawing.
type ConstantBufferRequirement struct {
	// Name is the "Stage:name" key of the shader variable.
	Name     string
	ByteSize uint64
}

// InstanceBufferRequirement names a structured buffer holding one element per instance.
type InstanceBufferRequirement struct {
	// Name is the "Stage:name" key of the shader variable.
	Name          string
	ElementStride uint32
}

// UpdateConstantBuffersFunc fills the mapped constant buffers of a pass, keyed by requirement name.
type UpdateConstantBuffersFunc func(maps map[string][]byte, instanceCount int) bool

// SubmitInstanceFunc writes one instance into the mapped instance buffers at the given index.
type SubmitInstanceFunc func(maps map[string][]byte, b binder.ShaderVariableBinder, index int) bool

// BatchedRenderFunc binds the resources shared by every instance of a draw.
type BatchedRenderFunc func(b binder.ShaderVariableBinder, instanceCount int) bool

// RenderCommandFunc produces the draw arguments. A nil command skips the draw.
type RenderCommandFunc func(pb pipeline.Binder) *RenderCommand

// RenderPass is one draw request for one target.
type RenderPass struct {
	// Target is a WindowTarget, a *ScreenBuffer or a *ShadowMapBuffer.
	Target       Target
	PipelineName string
	RenderType   RenderType
	ObjectType   ObjectType
	Dimension    Dimension
	// BatchKey groups instancing passes of the same target and pipeline into one draw.
	BatchKey uint64

	ConstantBuffers []ConstantBufferRequirement
	InstanceBuffers []InstanceBufferRequirement

	UpdateConstantBuffers UpdateConstantBuffersFunc
	SubmitInstance        SubmitInstanceFunc
	BatchedRender         BatchedRenderFunc
	RenderCommand         RenderCommandFunc
}

// RenderCommand holds the arguments of one draw call.
type RenderCommand struct {
	VertexCount   uint32
	IndexCount    uint32
	InstanceCount uint32
	StartVertex   uint32
	StartIndex    uint32
	BaseVertex    int32
	StartInstance uint32
}

// IssueRenderCommand records the draw described by cmd. An indexed draw is issued when
// IndexCount is set, a non-indexed draw when only VertexCount is set, nothing otherwise.
//
// Parameters:
//   - cl: the command list to record into, nil records nothing
//   - cmd: the draw arguments
func IssueRenderCommand(cl gpu.CommandList, cmd RenderCommand) {
	if cl == nil {
		return
	}
	switch {
	case cmd.IndexCount > 0:
		cl.DrawIndexedInstanced(cmd.IndexCount, cmd.InstanceCount, cmd.StartIndex, cmd.BaseVertex, cmd.StartInstance)
	case cmd.VertexCount > 0:
		cl.DrawInstanced(cmd.VertexCount, cmd.InstanceCount, cmd.StartVertex, cmd.StartInstance)
	}
}

// PersistentPassHandle identifies a persistent registration. Handles of each registration
// kind count up from 1; 0 is never issued.
type PersistentPassHandle uint64

// Valid reports whether h was issued by a registration.
func (h PersistentPassHandle) Valid() bool { return h != 0 }

// BatchKey identifies one instanced draw.
type BatchKey struct {
	Target       Target
	PipelineName string
	Key          uint64
}

func (p *RenderPass) batchKey() BatchKey {
	return BatchKey{Target: p.Target, PipelineName: p.PipelineName, Key: p.BatchKey}
}
