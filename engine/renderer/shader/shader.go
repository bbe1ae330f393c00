// Package shader compiles WGSL stages and reflects the resources, inputs and outputs each
// entry point actually uses. Compiled shaders are immutable and shared by every pipeline
// that names them.
package shader

import (
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
)

// Stage identifies the pipeline stage a shader is compiled for.
type Stage uint8

const (
	StageUnknown Stage = iota
	StageVertex
	StagePixel
	StageGeometry
	StageHull
	StageDomain
	StageCompute
)

// Stages lists every concrete stage in the order pipelines walk them.
var Stages = []Stage{StageVertex, StagePixel, StageGeometry, StageHull, StageDomain, StageCompute}

func (s Stage) String() string {
	switch s {
	case StageVertex:
		return "Vertex"
	case StagePixel:
		return "Pixel"
	case StageGeometry:
		return "Geometry"
	case StageHull:
		return "Hull"
	case StageDomain:
		return "Domain"
	case StageCompute:
		return "Compute"
	}
	return "Unknown"
}

// ParseStage parses a stage name case-insensitively.
//
// Parameters:
//   - name: "Vertex", "Pixel", "Geometry", "Hull", "Domain" or "Compute"
//
// Returns:
//   - Stage: the stage, StageUnknown if the name is not recognised
func ParseStage(name string) Stage {
	for _, s := range Stages {
		if strings.EqualFold(name, s.String()) {
			return s
		}
	}
	return StageUnknown
}

// Visibility returns the layout visibility that exposes a binding to this stage only.
func (s Stage) Visibility() gpu.Visibility {
	switch s {
	case StageVertex:
		return gpu.VisibilityVertex
	case StagePixel:
		return gpu.VisibilityPixel
	case StageGeometry:
		return gpu.VisibilityGeometry
	case StageHull:
		return gpu.VisibilityHull
	case StageDomain:
		return gpu.VisibilityDomain
	case StageCompute:
		return gpu.VisibilityCompute
	}
	return gpu.VisibilityAll
}

// ResourceKind is the class of a bound shader resource.
type ResourceKind uint8

const (
	KindConstantBuffer ResourceKind = iota
	KindTextureBuffer
	KindTexture
	KindSampler
	KindUAVTyped
	KindStructured
	KindUAVStructured
	KindByteAddress
	KindUAVByteAddress
)

func (k ResourceKind) String() string {
	switch k {
	case KindConstantBuffer:
		return "ConstantBuffer"
	case KindTextureBuffer:
		return "TextureBuffer"
	case KindTexture:
		return "Texture"
	case KindSampler:
		return "Sampler"
	case KindUAVTyped:
		return "UAVTyped"
	case KindStructured:
		return "Structured"
	case KindUAVStructured:
		return "UAVStructured"
	case KindByteAddress:
		return "ByteAddress"
	case KindUAVByteAddress:
		return "UAVByteAddress"
	}
	return "Unknown"
}

// IsSRV reports whether the kind is bound as a read-only shader resource.
func (k ResourceKind) IsSRV() bool {
	return k == KindTexture || k == KindTextureBuffer || k == KindStructured || k == KindByteAddress
}

// IsUAV reports whether the kind is bound as a read-write resource.
func (k ResourceKind) IsUAV() bool {
	return k == KindUAVTyped || k == KindUAVStructured || k == KindUAVByteAddress
}

// SRVKinds and UAVKinds list the sub-kinds a generic SRV or UAV slot may hold.
var (
	SRVKinds = []ResourceKind{KindTexture, KindTextureBuffer, KindStructured, KindByteAddress}
	UAVKinds = []ResourceKind{KindUAVTyped, KindUAVStructured, KindUAVByteAddress}
)

// Resource is one bound resource an entry point uses.
type Resource struct {
	Name      string
	Kind      ResourceKind
	BindPoint uint32
	BindCount uint32
	Space     uint32
	// Size is the byte size of a constant buffer, or the element stride of a structured buffer.
	Size uint32
	// Hint is the exact resource shape backends need in their layouts.
	Hint gpu.ResourceHint
}

// Parameter is one stage input or output with a location.
type Parameter struct {
	SemanticName  string
	SemanticIndex uint32
	Location      uint32
	// UsageMask has one bit per used component, 0x1 to 0xF.
	UsageMask     uint8
	ComponentType gpu.ComponentKind
}

// Components returns the number of components set in UsageMask.
func (p Parameter) Components() int {
	n := 0
	for m := p.UsageMask; m != 0; m >>= 1 {
		n += int(m & 1)
	}
	return n
}

// Reflection describes what one compiled entry point binds, reads and writes.
type Reflection struct {
	Resources   []Resource
	Inputs      []Parameter
	Outputs     []Parameter
	ThreadGroup [3]uint32
}

// Macro is a preprocessor definition applied before compilation.
type Macro struct {
	Name  string
	Value string
}

// CompileInfo names one stage to compile.
type CompileInfo struct {
	// Name is the key the compiled shader is cached under.
	Name          string
	FilePath      string
	EntryPoint    string
	TargetProfile string
	Macros        []Macro
	Stage         Stage
}

// Shader is an immutable compiled stage.
type Shader interface {
	// Name returns the cache key the shader was compiled under.
	Name() string

	// Stage returns the pipeline stage of the shader.
	Stage() Stage

	// EntryPoint returns the entry point function name.
	EntryPoint() string

	// Source returns the preprocessed WGSL source.
	Source() string

	// Bytecode returns the SPIR-V binary, nil when the compiler was not asked for it.
	Bytecode() []byte

	// Reflection returns the resources, inputs and outputs of the entry point.
	//
	// Returns:
	//   - *Reflection: the reflection data, never nil
	Reflection() *Reflection

	// Info returns the compile request the shader was built from.
	Info() CompileInfo
}

type shader struct {
	info       CompileInfo
	source     string
	bytecode   []byte
	reflection *Reflection
}

var _ Shader = &shader{}

// New wraps an already compiled stage.
//
// Parameters:
//   - info: the compile request; Name, Stage and EntryPoint are reported back by the shader
//   - source: the preprocessed source
//   - bytecode: the compiled binary, may be nil
//   - reflection: the reflection data, nil is treated as empty
//
// Returns:
//   - Shader: the compiled shader
func New(info CompileInfo, source string, bytecode []byte, reflection *Reflection) Shader {
	if reflection == nil {
		reflection = &Reflection{}
	}
	return &shader{info: info, source: source, bytecode: bytecode, reflection: reflection}
}

func (s *shader) Name() string            { return s.info.Name }
func (s *shader) Stage() Stage            { return s.info.Stage }
func (s *shader) EntryPoint() string      { return s.info.EntryPoint }
func (s *shader) Source() string          { return s.source }
func (s *shader) Bytecode() []byte        { return s.bytecode }
func (s *shader) Reflection() *Reflection { return s.reflection }
func (s *shader) Info() CompileInfo       { return s.info }

// Program returns the device program of a compiled shader.
//
// Parameters:
//   - s: the compiled shader
//
// Returns:
//   - *gpu.ShaderProgram: the program handed to pipeline creation
func Program(s Shader) *gpu.ShaderProgram {
	if s == nil {
		return nil
	}
	return &gpu.ShaderProgram{
		Label:      s.Name(),
		EntryPoint: s.EntryPoint(),
		Source:     s.Source(),
		Bytecode:   s.Bytecode(),
	}
}
