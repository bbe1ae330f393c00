package gpu

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"
)

func toWGPUStages(v Visibility) wgpu.ShaderStage {
	switch v {
	case VisibilityVertex:
		return wgpu.ShaderStageVertex
	case VisibilityPixel:
		return wgpu.ShaderStageFragment
	case VisibilityCompute:
		return wgpu.ShaderStageCompute
	case VisibilityAll:
		return wgpu.ShaderStageVertex | wgpu.ShaderStageFragment | wgpu.ShaderStageCompute
	}
	return wgpu.ShaderStageNone
}

func toWGPUTextureFormat(f Format) (wgpu.TextureFormat, error) {
	switch f {
	case FormatRGBA8Unorm:
		return wgpu.TextureFormatRGBA8Unorm, nil
	case FormatRGBA8UnormSrgb:
		return wgpu.TextureFormatRGBA8UnormSrgb, nil
	case FormatBGRA8Unorm:
		return wgpu.TextureFormatBGRA8Unorm, nil
	case FormatBGRA8UnormSrgb:
		return wgpu.TextureFormatBGRA8UnormSrgb, nil
	case FormatRGBA16Float:
		return wgpu.TextureFormatRGBA16Float, nil
	case FormatRGBA32Float:
		return wgpu.TextureFormatRGBA32Float, nil
	case FormatR32Float:
		return wgpu.TextureFormatR32Float, nil
	case FormatRG32Float:
		return wgpu.TextureFormatRG32Float, nil
	case FormatR32Uint:
		return wgpu.TextureFormatR32Uint, nil
	case FormatR32Sint:
		return wgpu.TextureFormatR32Sint, nil
	case FormatD24UnormS8Uint:
		return wgpu.TextureFormatDepth24PlusStencil8, nil
	case FormatD32Float:
		return wgpu.TextureFormatDepth32Float, nil
	}
	return 0, fmt.Errorf("texture format %s: %w", f, ErrUnsupported)
}

func toWGPUVertexFormat(f Format) (wgpu.VertexFormat, error) {
	switch f {
	case FormatR32Float:
		return wgpu.VertexFormatFloat32, nil
	case FormatRG32Float:
		return wgpu.VertexFormatFloat32x2, nil
	case FormatRGB32Float:
		return wgpu.VertexFormatFloat32x3, nil
	case FormatRGBA32Float:
		return wgpu.VertexFormatFloat32x4, nil
	case FormatR32Uint:
		return wgpu.VertexFormatUint32, nil
	case FormatRG32Uint:
		return wgpu.VertexFormatUint32x2, nil
	case FormatRGB32Uint:
		return wgpu.VertexFormatUint32x3, nil
	case FormatRGBA32Uint:
		return wgpu.VertexFormatUint32x4, nil
	case FormatR32Sint:
		return wgpu.VertexFormatSint32, nil
	case FormatRG32Sint:
		return wgpu.VertexFormatSint32x2, nil
	case FormatRGB32Sint:
		return wgpu.VertexFormatSint32x3, nil
	case FormatRGBA32Sint:
		return wgpu.VertexFormatSint32x4, nil
	}
	return 0, fmt.Errorf("vertex format %s: %w", f, ErrUnsupported)
}

func toWGPUPrimitiveTopology(t TopologyType) (wgpu.PrimitiveTopology, error) {
	switch t {
	case TopologyTypePoint:
		return wgpu.PrimitiveTopologyPointList, nil
	case TopologyTypeLine:
		return wgpu.PrimitiveTopologyLineList, nil
	case TopologyTypeTriangle, TopologyTypeUndefined:
		return wgpu.PrimitiveTopologyTriangleList, nil
	}
	return 0, fmt.Errorf("patch topology: %w", ErrUnsupported)
}

func toWGPUCullMode(c CullMode) wgpu.CullMode {
	switch c {
	case CullFront:
		return wgpu.CullModeFront
	case CullBack:
		return wgpu.CullModeBack
	}
	return wgpu.CullModeNone
}

func toWGPUFrontFace(counterClockwise bool) wgpu.FrontFace {
	if counterClockwise {
		return wgpu.FrontFaceCCW
	}
	return wgpu.FrontFaceCW
}

func toWGPUCompare(c CompareFunc) wgpu.CompareFunction {
	switch c {
	case CompareNever:
		return wgpu.CompareFunctionNever
	case CompareLess:
		return wgpu.CompareFunctionLess
	case CompareEqual:
		return wgpu.CompareFunctionEqual
	case CompareLessEqual:
		return wgpu.CompareFunctionLessEqual
	case CompareGreater:
		return wgpu.CompareFunctionGreater
	case CompareNotEqual:
		return wgpu.CompareFunctionNotEqual
	case CompareGreaterEqual:
		return wgpu.CompareFunctionGreaterEqual
	}
	return wgpu.CompareFunctionAlways
}

func toWGPUBlendFactor(b Blend) wgpu.BlendFactor {
	switch b {
	case BlendZero:
		return wgpu.BlendFactorZero
	case BlendSrcColor:
		return wgpu.BlendFactorSrc
	case BlendInvSrcColor:
		return wgpu.BlendFactorOneMinusSrc
	case BlendSrcAlpha:
		return wgpu.BlendFactorSrcAlpha
	case BlendInvSrcAlpha:
		return wgpu.BlendFactorOneMinusSrcAlpha
	case BlendDestAlpha:
		return wgpu.BlendFactorDstAlpha
	case BlendInvDestAlpha:
		return wgpu.BlendFactorOneMinusDstAlpha
	case BlendDestColor:
		return wgpu.BlendFactorDst
	case BlendInvDestColor:
		return wgpu.BlendFactorOneMinusDst
	}
	return wgpu.BlendFactorOne
}

func toWGPUBlendOp(op BlendOp) wgpu.BlendOperation {
	switch op {
	case BlendOpSubtract:
		return wgpu.BlendOperationSubtract
	case BlendOpRevSubtract:
		return wgpu.BlendOperationReverseSubtract
	case BlendOpMin:
		return wgpu.BlendOperationMin
	case BlendOpMax:
		return wgpu.BlendOperationMax
	}
	return wgpu.BlendOperationAdd
}

func toWGPUBlendState(rt RenderTargetBlend) *wgpu.BlendState {
	if !rt.BlendEnable {
		return nil
	}
	return &wgpu.BlendState{
		Color: wgpu.BlendComponent{
			SrcFactor: toWGPUBlendFactor(rt.SrcBlend),
			DstFactor: toWGPUBlendFactor(rt.DestBlend),
			Operation: toWGPUBlendOp(rt.BlendOp),
		},
		Alpha: wgpu.BlendComponent{
			SrcFactor: toWGPUBlendFactor(rt.SrcBlendAlpha),
			DstFactor: toWGPUBlendFactor(rt.DestBlendAlpha),
			Operation: toWGPUBlendOp(rt.BlendOpAlpha),
		},
	}
}

func toWGPUWriteMask(m ColorWriteMask) wgpu.ColorWriteMask {
	var out wgpu.ColorWriteMask
	if m&ColorWriteRed != 0 {
		out |= wgpu.ColorWriteMaskRed
	}
	if m&ColorWriteGreen != 0 {
		out |= wgpu.ColorWriteMaskGreen
	}
	if m&ColorWriteBlue != 0 {
		out |= wgpu.ColorWriteMaskBlue
	}
	if m&ColorWriteAlpha != 0 {
		out |= wgpu.ColorWriteMaskAlpha
	}
	return out
}

func toWGPUStencilOp(op StencilOp) wgpu.StencilOperation {
	switch op {
	case StencilZero:
		return wgpu.StencilOperationZero
	case StencilReplace:
		return wgpu.StencilOperationReplace
	case StencilIncrSat:
		return wgpu.StencilOperationIncrementClamp
	case StencilDecrSat:
		return wgpu.StencilOperationDecrementClamp
	case StencilInvert:
		return wgpu.StencilOperationInvert
	case StencilIncr:
		return wgpu.StencilOperationIncrementWrap
	case StencilDecr:
		return wgpu.StencilOperationDecrementWrap
	}
	return wgpu.StencilOperationKeep
}

func toWGPUStencilFace(f StencilFace, enabled bool) wgpu.StencilFaceState {
	if !enabled {
		return wgpu.StencilFaceState{Compare: wgpu.CompareFunctionAlways}
	}
	return wgpu.StencilFaceState{
		Compare:     toWGPUCompare(f.Func),
		FailOp:      toWGPUStencilOp(f.FailOp),
		DepthFailOp: toWGPUStencilOp(f.DepthFailOp),
		PassOp:      toWGPUStencilOp(f.PassOp),
	}
}

func toWGPUAddressMode(m AddressMode) wgpu.AddressMode {
	switch m {
	case AddressMirror:
		return wgpu.AddressModeMirrorRepeat
	case AddressClamp, AddressBorder:
		return wgpu.AddressModeClampToEdge
	}
	return wgpu.AddressModeRepeat
}

func toWGPUSamplerDescriptor(label string, s StaticSampler) *wgpu.SamplerDescriptor {
	desc := &wgpu.SamplerDescriptor{
		Label:         label,
		AddressModeU:  toWGPUAddressMode(s.AddressU),
		AddressModeV:  toWGPUAddressMode(s.AddressV),
		AddressModeW:  toWGPUAddressMode(s.AddressW),
		MagFilter:     wgpu.FilterModeLinear,
		MinFilter:     wgpu.FilterModeLinear,
		MipmapFilter:  wgpu.MipmapFilterModeLinear,
		LodMinClamp:   s.MinLOD,
		LodMaxClamp:   s.MaxLOD,
		MaxAnisotropy: 1,
	}
	if desc.LodMaxClamp == 0 {
		desc.LodMaxClamp = 32
	}
	switch s.Filter {
	case FilterPoint, FilterComparisonPoint:
		desc.MagFilter = wgpu.FilterModeNearest
		desc.MinFilter = wgpu.FilterModeNearest
		desc.MipmapFilter = wgpu.MipmapFilterModeNearest
	case FilterAnisotropic:
		if s.MaxAnisotropy > 1 {
			desc.MaxAnisotropy = uint16(s.MaxAnisotropy)
		}
	}
	if s.Filter == FilterComparisonLinear || s.Filter == FilterComparisonPoint {
		desc.Compare = toWGPUCompare(s.Compare)
	}
	return desc
}

// layoutEntry builds the bind group layout entry of one binding.
func layoutEntry(binding uint32, vis Visibility, kind ParameterType, rangeType RangeType, hint ResourceHint) wgpu.BindGroupLayoutEntry {
	entry := wgpu.BindGroupLayoutEntry{
		Binding:    binding,
		Visibility: toWGPUStages(vis),
	}

	switch kind {
	case ParameterCBV:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
		return entry
	case ParameterSRV:
		entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		return entry
	case ParameterUAV:
		entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		return entry
	}

	switch rangeType {
	case RangeCBV:
		entry.Buffer.Type = wgpu.BufferBindingTypeUniform
	case RangeSampler:
		entry.Sampler.Type = wgpu.SamplerBindingTypeFiltering
		if hint == HintComparisonSampler {
			entry.Sampler.Type = wgpu.SamplerBindingTypeComparison
		}
	case RangeUAV:
		if hint == HintStorageTexture {
			entry.StorageTexture.Access = wgpu.StorageTextureAccessWriteOnly
			entry.StorageTexture.Format = wgpu.TextureFormatRGBA8Unorm
			entry.StorageTexture.ViewDimension = wgpu.TextureViewDimension2D
		} else {
			entry.Buffer.Type = wgpu.BufferBindingTypeStorage
		}
	case RangeSRV:
		switch hint {
		case HintStructuredBuffer:
			entry.Buffer.Type = wgpu.BufferBindingTypeReadOnlyStorage
		case HintDepthTexture:
			entry.Texture.SampleType = wgpu.TextureSampleTypeDepth
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		case HintTextureCube:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimensionCube
		case HintTexture2DArray:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2DArray
		case HintTexture3D:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension3D
		default:
			entry.Texture.SampleType = wgpu.TextureSampleTypeFloat
			entry.Texture.ViewDimension = wgpu.TextureViewDimension2D
		}
	}
	return entry
}
