// Package binder resolves "Stage:name" shader variables to the binding layout slot they
// occupy and issues the bind against a command list. A binder is built once per compiled
// pipeline and is read-only while frames are recorded.
package binder

import (
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// ShaderVariableBinding is one reflected resource of one compiled stage.
type ShaderVariableBinding struct {
	Name      string
	Kind      shader.ResourceKind
	BindPoint uint32
	BindCount uint32
	Space     uint32
}

// ShaderResourceKey identifies one physical binding a stage can see.
type ShaderResourceKey struct {
	Kind      shader.ResourceKind
	BindPoint uint32
	Space     uint32
	Stage     shader.Stage
}

// BindLocation is where a resource key lives inside the binding layout.
type BindLocation struct {
	// Parameter is the index of the layout parameter.
	Parameter uint32
	// Offset is the slot inside a table parameter.
	Offset uint32
	Table  bool
	// RootCBV, RootSRV and RootUAV select the direct bind issued for a direct slot.
	RootCBV bool
	RootSRV bool
	RootUAV bool
	Stage   shader.Stage
}

// shaderVariableBinder is the implementation of the ShaderVariableBinder interface.
type shaderVariableBinder struct {
	// bindings maps "Stage:name" to the reflected resource; the first stage to report a name wins.
	bindings map[string]ShaderVariableBinding

	// locations maps a resource key to its place in the layout.
	locations map[ShaderResourceKey]BindLocation

	cl gpu.CommandList
}

// ShaderVariableBinder binds named shader variables for one pipeline.
type ShaderVariableBinder interface {
	// AddStage records every resource a stage reflects under "Stage:name".
	//
	// Parameters:
	//   - stage: the stage the reflection belongs to
	//   - r: the reflection of the compiled stage
	AddStage(stage shader.Stage, r *shader.Reflection)

	// RegisterDescriptorTableRange registers count consecutive registers of a table parameter.
	//
	// Parameters:
	//   - kind: the resource kind the registers hold
	//   - baseRegister: the first register of the range
	//   - space: the register space
	//   - count: the number of registers
	//   - parameter: the layout parameter index of the table
	//   - startOffset: the slot of baseRegister inside the table
	//   - stage: the stage that sees the range
	RegisterDescriptorTableRange(kind shader.ResourceKind, baseRegister, space, count, parameter, startOffset uint32, stage shader.Stage)

	// RegisterRootDescriptor registers a direct slot.
	//
	// Parameters:
	//   - kind: the resource kind bound to the slot; it selects the direct bind issued
	//   - register: the register of the slot
	//   - space: the register space
	//   - parameter: the layout parameter index
	//   - stage: the stage that sees the slot
	RegisterRootDescriptor(kind shader.ResourceKind, register, space, parameter uint32, stage shader.Stage)

	// SetCommandList sets the list binds are recorded into.
	SetCommandList(cl gpu.CommandList)

	// CommandList returns the list binds are recorded into, nil if unset.
	CommandList() gpu.CommandList

	// Bind binds a resource to a direct slot.
	//
	// Parameters:
	//   - name: the "Stage:name" key of the variable
	//   - r: the resource to bind
	//
	// Returns:
	//   - bool: false if the name or its location is unknown, the location is a table,
	//     no command list is set, or the resource has no GPU address
	Bind(name string, r gpu.Resource) bool

	// BindDescriptor binds a descriptor to a table slot.
	//
	// Parameters:
	//   - name: the "Stage:name" key of the variable
	//   - h: the GPU-visible descriptor to bind
	//
	// Returns:
	//   - bool: false if the name or its location is unknown, the location is a direct slot,
	//     no command list is set, or the descriptor is not GPU-visible
	BindDescriptor(name string, h gpu.DescriptorHandle) bool

	// Names returns every "Stage:name" key, sorted.
	Names() []string

	// Binding returns the reflected resource behind a name.
	Binding(name string) (ShaderVariableBinding, bool)

	// Location returns the layout location a name resolves to.
	Location(name string) (BindLocation, bool)
}

var _ ShaderVariableBinder = &shaderVariableBinder{}

// New creates an empty binder.
//
// Returns:
//   - ShaderVariableBinder: the new binder
func New() ShaderVariableBinder {
	return &shaderVariableBinder{
		bindings:  make(map[string]ShaderVariableBinding),
		locations: make(map[ShaderResourceKey]BindLocation),
	}
}

// NameKey returns the "Stage:name" key of a variable.
func NameKey(stage shader.Stage, name string) string {
	return stage.String() + ":" + name
}

// StageFromNameKey reads the stage prefix of a "Stage:name" key.
//
// Parameters:
//   - key: the variable key
//
// Returns:
//   - shader.Stage: the stage, StageUnknown if the prefix is missing or not a stage name
func StageFromNameKey(key string) shader.Stage {
	prefix, _, ok := strings.Cut(key, ":")
	if !ok {
		return shader.StageUnknown
	}
	for _, s := range shader.Stages {
		if prefix == s.String() {
			return s
		}
	}
	return shader.StageUnknown
}

func (b *shaderVariableBinder) AddStage(stage shader.Stage, r *shader.Reflection) {
	if r == nil {
		return
	}
	for _, res := range r.Resources {
		key := NameKey(stage, res.Name)
		if _, ok := b.bindings[key]; ok {
			continue
		}
		b.bindings[key] = ShaderVariableBinding{
			Name:      res.Name,
			Kind:      res.Kind,
			BindPoint: res.BindPoint,
			BindCount: res.BindCount,
			Space:     res.Space,
		}
	}
}

func (b *shaderVariableBinder) RegisterDescriptorTableRange(kind shader.ResourceKind, baseRegister, space, count, parameter, startOffset uint32, stage shader.Stage) {
	for i := uint32(0); i < count; i++ {
		b.locations[ShaderResourceKey{Kind: kind, BindPoint: baseRegister + i, Space: space, Stage: stage}] = BindLocation{
			Parameter: parameter,
			Offset:    startOffset + i,
			Table:     true,
			Stage:     stage,
		}
	}
}

func (b *shaderVariableBinder) RegisterRootDescriptor(kind shader.ResourceKind, register, space, parameter uint32, stage shader.Stage) {
	loc := BindLocation{Parameter: parameter, Stage: stage}
	switch {
	case kind == shader.KindConstantBuffer:
		loc.RootCBV = true
	case kind.IsUAV():
		loc.RootUAV = true
	default:
		loc.RootSRV = true
	}
	b.locations[ShaderResourceKey{Kind: kind, BindPoint: register, Space: space, Stage: stage}] = loc
}

func (b *shaderVariableBinder) SetCommandList(cl gpu.CommandList) { b.cl = cl }
func (b *shaderVariableBinder) CommandList() gpu.CommandList      { return b.cl }

func (b *shaderVariableBinder) Bind(name string, r gpu.Resource) bool {
	if b.cl == nil || r == nil || r.GPUAddress() == 0 {
		return false
	}
	loc, ok := b.Location(name)
	if !ok || loc.Table {
		return false
	}
	switch {
	case loc.RootCBV:
		b.cl.SetRootConstantBuffer(loc.Parameter, r)
	case loc.RootSRV:
		b.cl.SetRootShaderResource(loc.Parameter, r)
	case loc.RootUAV:
		b.cl.SetRootUnorderedAccess(loc.Parameter, r)
	default:
		return false
	}
	return true
}

func (b *shaderVariableBinder) BindDescriptor(name string, h gpu.DescriptorHandle) bool {
	if b.cl == nil || h == nil || !h.GPUVisible() {
		return false
	}
	loc, ok := b.Location(name)
	if !ok || !loc.Table {
		return false
	}
	b.cl.SetDescriptorTable(loc.Parameter, loc.Offset, h)
	return true
}

func (b *shaderVariableBinder) Names() []string {
	out := make([]string, 0, len(b.bindings))
	for k := range b.bindings {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func (b *shaderVariableBinder) Binding(name string) (ShaderVariableBinding, bool) {
	v, ok := b.bindings[name]
	return v, ok
}

func (b *shaderVariableBinder) Location(name string) (BindLocation, bool) {
	v, ok := b.bindings[name]
	if !ok {
		return BindLocation{}, false
	}
	loc, ok := b.locations[ShaderResourceKey{Kind: v.Kind, BindPoint: v.BindPoint, Space: v.Space, Stage: StageFromNameKey(name)}]
	return loc, ok
}
