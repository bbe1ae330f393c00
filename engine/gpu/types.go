package gpu

// Visibility selects which shader stages may read a binding layout parameter.
type Visibility uint8

const (
	VisibilityAll Visibility = iota
	VisibilityVertex
	VisibilityHull
	VisibilityDomain
	VisibilityGeometry
	VisibilityPixel
	VisibilityCompute
)

func (v Visibility) String() string {
	switch v {
	case VisibilityAll:
		return "All"
	case VisibilityVertex:
		return "Vertex"
	case VisibilityHull:
		return "Hull"
	case VisibilityDomain:
		return "Domain"
	case VisibilityGeometry:
		return "Geometry"
	case VisibilityPixel:
		return "Pixel"
	case VisibilityCompute:
		return "Compute"
	}
	return "Unknown"
}

// ParameterType is the kind of one binding layout parameter.
type ParameterType uint8

const (
	// ParameterTable is an indirect slot group: a table of descriptor ranges.
	ParameterTable ParameterType = iota
	// ParameterConstants is a block of inline 32-bit constants.
	ParameterConstants
	// ParameterCBV is a direct constant buffer slot.
	ParameterCBV
	// ParameterSRV is a direct read-only resource slot.
	ParameterSRV
	// ParameterUAV is a direct read-write resource slot.
	ParameterUAV
)

// RangeType is the descriptor kind held by one table range.
type RangeType uint8

const (
	RangeSRV RangeType = iota
	RangeUAV
	RangeCBV
	RangeSampler
)

// AppendFromTableStart places a range directly after the previous range of its table.
const AppendFromTableStart = ^uint32(0)

// AppendAligned places an input element directly after the previous element of its slot.
const AppendAligned = ^uint32(0)

// ResourceHint refines the shape of a bound resource for backends whose layouts must
// name it exactly (texture dimension, depth sampling, storage buffer vs texture).
type ResourceHint uint8

const (
	HintNone ResourceHint = iota
	HintTexture2D
	HintTexture2DArray
	HintTextureCube
	HintTexture3D
	HintDepthTexture
	HintStructuredBuffer
	HintStorageTexture
	HintComparisonSampler
)

// DescriptorRange is one contiguous run of registers inside a table parameter.
type DescriptorRange struct {
	Type           RangeType
	NumDescriptors uint32
	BaseRegister   uint32
	Space          uint32
	// Offset is the range's first slot inside the table, or AppendFromTableStart.
	Offset uint32
	Hint   ResourceHint
}

// RootDescriptor addresses a direct slot.
type RootDescriptor struct {
	Register uint32
	Space    uint32
	Hint     ResourceHint
}

// RootConstants addresses an inline constants slot.
type RootConstants struct {
	Register       uint32
	Space          uint32
	Num32BitValues uint32
}

// RootParameter is one slot of a binding layout.
type RootParameter struct {
	Type       ParameterType
	Visibility Visibility
	// Ranges is used by ParameterTable.
	Ranges []DescriptorRange
	// Descriptor is used by ParameterCBV, ParameterSRV and ParameterUAV.
	Descriptor RootDescriptor
	// Constants is used by ParameterConstants.
	Constants RootConstants
}

// ResolvedRanges returns the table ranges with every AppendFromTableStart offset replaced
// by the concrete offset it resolves to.
func (p RootParameter) ResolvedRanges() []DescriptorRange {
	out := make([]DescriptorRange, len(p.Ranges))
	next := uint32(0)
	for i, r := range p.Ranges {
		if r.Offset == AppendFromTableStart {
			r.Offset = next
		}
		next = r.Offset + r.NumDescriptors
		out[i] = r
	}
	return out
}

// Filter is a sampler filtering mode.
type Filter uint8

const (
	FilterLinear Filter = iota
	FilterPoint
	FilterAnisotropic
	FilterComparisonLinear
	FilterComparisonPoint
)

// AddressMode is a sampler addressing mode.
type AddressMode uint8

const (
	AddressWrap AddressMode = iota
	AddressMirror
	AddressClamp
	AddressBorder
)

// StaticSampler is a sampler baked into a binding layout.
type StaticSampler struct {
	Register      uint32
	Space         uint32
	Visibility    Visibility
	Filter        Filter
	AddressU      AddressMode
	AddressV      AddressMode
	AddressW      AddressMode
	MipLODBias    float32
	MaxAnisotropy uint32
	Compare       CompareFunc
	MinLOD        float32
	MaxLOD        float32
}

// LayoutDesc describes a binding layout.
type LayoutDesc struct {
	Label          string
	Flags          uint32
	Parameters     []RootParameter
	StaticSamplers []StaticSampler
}

// LayoutFlagAllowInputAssembler marks a layout that reads vertex input.
const LayoutFlagAllowInputAssembler uint32 = 0x1

// TopologyType is the primitive class a render pipeline is compiled for.
type TopologyType uint8

const (
	TopologyTypeUndefined TopologyType = iota
	TopologyTypePoint
	TopologyTypeLine
	TopologyTypeTriangle
	TopologyTypePatch
)

// Topology is the primitive topology set on a command list.
type Topology uint8

const (
	TopologyUndefined Topology = iota
	TopologyPointList
	TopologyLineList
	TopologyLineStrip
	TopologyTriangleList
	TopologyTriangleStrip
	TopologyPatchList1
)

// ToTopology maps a pipeline topology type onto the list topology drawn with it.
//
// Parameters:
//   - t: the pipeline topology type
//
// Returns:
//   - Topology: the command list topology, TopologyUndefined for TopologyTypeUndefined
func ToTopology(t TopologyType) Topology {
	switch t {
	case TopologyTypePoint:
		return TopologyPointList
	case TopologyTypeLine:
		return TopologyLineList
	case TopologyTypeTriangle:
		return TopologyTriangleList
	case TopologyTypePatch:
		return TopologyPatchList1
	}
	return TopologyUndefined
}

// FillMode is the rasterizer fill mode.
type FillMode uint8

const (
	FillSolid FillMode = iota
	FillWireframe
)

// CullMode is the rasterizer face culling mode.
type CullMode uint8

const (
	CullNone CullMode = iota
	CullFront
	CullBack
)

// CompareFunc is a depth, stencil or sampler comparison function.
type CompareFunc uint8

const (
	CompareNever CompareFunc = iota
	CompareLess
	CompareEqual
	CompareLessEqual
	CompareGreater
	CompareNotEqual
	CompareGreaterEqual
	CompareAlways
)

// Blend is a blend factor.
type Blend uint8

const (
	BlendZero Blend = iota
	BlendOne
	BlendSrcColor
	BlendInvSrcColor
	BlendSrcAlpha
	BlendInvSrcAlpha
	BlendDestAlpha
	BlendInvDestAlpha
	BlendDestColor
	BlendInvDestColor
)

// BlendOp is a blend operation.
type BlendOp uint8

const (
	BlendOpAdd BlendOp = iota
	BlendOpSubtract
	BlendOpRevSubtract
	BlendOpMin
	BlendOpMax
)

// StencilOp is a stencil operation.
type StencilOp uint8

const (
	StencilKeep StencilOp = iota
	StencilZero
	StencilReplace
	StencilIncrSat
	StencilDecrSat
	StencilInvert
	StencilIncr
	StencilDecr
)

// ColorWriteMask selects the color channels written to a render target.
type ColorWriteMask uint8

const (
	ColorWriteRed   ColorWriteMask = 1
	ColorWriteGreen ColorWriteMask = 2
	ColorWriteBlue  ColorWriteMask = 4
	ColorWriteAlpha ColorWriteMask = 8
	ColorWriteAll   ColorWriteMask = ColorWriteRed | ColorWriteGreen | ColorWriteBlue | ColorWriteAlpha
)

// InputClassification selects per-vertex or per-instance stepping for an input element.
type InputClassification uint8

const (
	InputPerVertex InputClassification = iota
	InputPerInstance
)

// InputElement is one vertex input attribute.
type InputElement struct {
	SemanticName      string
	SemanticIndex     uint32
	Format            Format
	InputSlot         uint32
	AlignedByteOffset uint32
	Classification    InputClassification
	InstanceStepRate  uint32
	// Location is the shader input location the element feeds.
	Location uint32
}

// RasterizerState is the fixed-function rasterizer configuration.
type RasterizerState struct {
	FillMode              FillMode
	CullMode              CullMode
	FrontCounterClockwise bool
	DepthBias             int32
	DepthBiasClamp        float32
	SlopeScaledDepthBias  float32
	DepthClipEnable       bool
	MultisampleEnable     bool
	AntialiasedLineEnable bool
	ForcedSampleCount     uint32
	ConservativeRaster    bool
}

// DefaultRasterizerState is solid fill, back-face culling, clockwise front faces, depth clip on.
func DefaultRasterizerState() RasterizerState {
	return RasterizerState{FillMode: FillSolid, CullMode: CullBack, DepthClipEnable: true}
}

// RenderTargetBlend is the blend configuration of one render target.
type RenderTargetBlend struct {
	BlendEnable    bool
	LogicOpEnable  bool
	SrcBlend       Blend
	DestBlend      Blend
	BlendOp        BlendOp
	SrcBlendAlpha  Blend
	DestBlendAlpha Blend
	BlendOpAlpha   BlendOp
	WriteMask      ColorWriteMask
}

// MaxRenderTargets is the number of simultaneous render targets a pipeline may write.
const MaxRenderTargets = 8

// BlendState is the fixed-function blend configuration.
type BlendState struct {
	AlphaToCoverageEnable  bool
	IndependentBlendEnable bool
	RenderTargets          [MaxRenderTargets]RenderTargetBlend
}

// DefaultBlendState has blending off and every channel written on every target.
func DefaultBlendState() BlendState {
	var b BlendState
	for i := range b.RenderTargets {
		b.RenderTargets[i] = RenderTargetBlend{
			SrcBlend: BlendOne, DestBlend: BlendZero, BlendOp: BlendOpAdd,
			SrcBlendAlpha: BlendOne, DestBlendAlpha: BlendZero, BlendOpAlpha: BlendOpAdd,
			WriteMask: ColorWriteAll,
		}
	}
	return b
}

// StencilFace is the stencil configuration of one face.
type StencilFace struct {
	FailOp      StencilOp
	DepthFailOp StencilOp
	PassOp      StencilOp
	Func        CompareFunc
}

// DepthStencilState is the fixed-function depth and stencil configuration.
type DepthStencilState struct {
	DepthEnable      bool
	DepthWrite       bool
	DepthFunc        CompareFunc
	StencilEnable    bool
	StencilReadMask  uint8
	StencilWriteMask uint8
	FrontFace        StencilFace
	BackFace         StencilFace
}

// DefaultDepthStencilState tests and writes depth with CompareLess and leaves stencil off.
func DefaultDepthStencilState() DepthStencilState {
	face := StencilFace{FailOp: StencilKeep, DepthFailOp: StencilKeep, PassOp: StencilKeep, Func: CompareAlways}
	return DepthStencilState{
		DepthEnable: true, DepthWrite: true, DepthFunc: CompareLess,
		StencilReadMask: 0xFF, StencilWriteMask: 0xFF,
		FrontFace: face, BackFace: face,
	}
}

// ShaderProgram is one compiled stage handed to pipeline creation.
type ShaderProgram struct {
	Label      string
	EntryPoint string
	// Source is the preprocessed shader text, used by backends that compile at creation time.
	Source string
	// Bytecode is the compiled stage, used by backends that consume binaries.
	Bytecode []byte
}

// RenderPipelineDesc describes a render PSO.
type RenderPipelineDesc struct {
	Label            string
	Layout           Layout
	VS, PS, GS       *ShaderProgram
	HS, DS           *ShaderProgram
	InputLayout      []InputElement
	Rasterizer       RasterizerState
	Blend            BlendState
	DepthStencil     DepthStencilState
	SampleMask       uint32
	TopologyType     TopologyType
	NumRenderTargets uint32
	RTVFormats       [MaxRenderTargets]Format
	DSVFormat        Format
	SampleCount      uint32
	SampleQuality    uint32
}

// ComputePipelineDesc describes a compute PSO.
type ComputePipelineDesc struct {
	Label  string
	Layout Layout
	CS     *ShaderProgram
}

// BufferUsage selects how a buffer is bound.
type BufferUsage uint8

const (
	// BufferUsageConstant is a CPU-written constant buffer bound as a direct slot.
	BufferUsageConstant BufferUsage = iota
	// BufferUsageStructured is a CPU-written structured buffer bound through a table.
	BufferUsageStructured
	BufferUsageVertex
	BufferUsageIndex
)

// BufferDesc describes a buffer allocation.
type BufferDesc struct {
	Label string
	Size  uint64
	Usage BufferUsage
	// Stride is the element size of a structured buffer.
	Stride uint32
}

// RenderTargetDesc describes an offscreen or shadow-map target.
type RenderTargetDesc struct {
	Label       string
	Width       uint32
	Height      uint32
	ColorFormat Format
	DepthFormat Format
	ClearColor  [4]float32
	ClearDepth  float32
}

// TextureDesc describes a sampled 2D texture uploaded once from CPU memory.
type TextureDesc struct {
	Label  string
	Width  uint32
	Height uint32
	Format Format
}
