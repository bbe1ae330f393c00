package pipeline

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
)

// InputLayoutDesc is a decoded InputLayout section.
type InputLayoutDesc struct {
	Elements []gpu.InputElement
	// Auto derives the elements from the vertex stage inputs when Elements is empty.
	Auto bool
}

// RenderState is a decoded GraphicsPipelineState section.
type RenderState struct {
	SampleMask       uint32
	TopologyType     gpu.TopologyType
	NumRenderTargets uint32
	// HasNumRenderTargets is set when the description names the render target count.
	HasNumRenderTargets bool
	// RTVFormats holds FormatUnknown for targets that take the surface format.
	RTVFormats [gpu.MaxRenderTargets]gpu.Format
	// DSVFormat is FormatUnknown for the default depth format.
	DSVFormat         gpu.Format
	SampleCount       uint32
	SampleQuality     uint32
	AutoRTCountFromPS bool
}

// DefaultRenderState writes one target with every sample enabled.
func DefaultRenderState() RenderState {
	return RenderState{SampleMask: 0xFFFFFFFF, NumRenderTargets: 1, SampleCount: 1}
}

// ComputeState is a decoded ComputePipelineState section.
type ComputeState struct {
	Flags    uint32
	NodeMask uint32
}

// parser decodes description sections, resolving nested UsePreset references against a store.
type parser struct {
	store preset.Store
	log   *slog.Logger
}

// resolveSection returns the preset a section references, or the section parsed inline.
func resolveSection[T any](store preset.Store, category preset.Category, section string, doc preset.Document, parse func(string, preset.Document) (T, error)) (T, error) {
	if ref, ok := doc.UsePreset(); ok {
		v, ok := preset.Lookup[T](store, category, ref)
		if !ok {
			var zero T
			return zero, fmt.Errorf("%s: %w: %s %q", section, ErrPresetNotFound, category, ref)
		}
		return v, nil
	}
	return parse(section, doc)
}

// optionalSection resolves the section at key of a pipeline description.
func optionalSection[T any](store preset.Store, doc preset.Document, key string, category preset.Category, parse func(string, preset.Document) (T, error)) (T, bool, error) {
	var zero T
	if !doc.Has(key) {
		return zero, false, nil
	}
	sec, ok := doc.Object(key)
	if !ok {
		return zero, false, fmt.Errorf("%s: %w: want an object", key, ErrInvalidValue)
	}
	v, err := resolveSection(store, category, key, sec, parse)
	if err != nil {
		return zero, false, err
	}
	return v, true, nil
}

// requiredSection is optionalSection with an absent section reported as ErrMissingSection.
func requiredSection[T any](store preset.Store, doc preset.Document, key string, category preset.Category, parse func(string, preset.Document) (T, error)) (T, error) {
	v, ok, err := optionalSection(store, doc, key, category, parse)
	if err == nil && !ok {
		err = fmt.Errorf("%w: %s", ErrMissingSection, key)
	}
	return v, err
}

func (p *parser) rootDescriptor(section string, doc preset.Document) (gpu.RootDescriptor, error) {
	r := newFieldReader(section, doc)
	d := gpu.RootDescriptor{
		Register: r.uint32("ShaderRegister", 0),
		Space:    r.uint32("RegisterSpace", 0),
	}
	return d, r.err
}

func (p *parser) rootConstants(section string, doc preset.Document) (gpu.RootConstants, error) {
	r := newFieldReader(section, doc)
	c := gpu.RootConstants{
		Register:       r.uint32("ShaderRegister", 0),
		Space:          r.uint32("RegisterSpace", 0),
		Num32BitValues: r.uint32("Num32BitValues", 0),
	}
	return c, r.err
}

func (p *parser) descriptorRanges(section string, doc preset.Document) ([]gpu.DescriptorRange, error) {
	r := newFieldReader(section, doc)
	docs := r.objects("Ranges")
	if r.err != nil {
		return nil, r.err
	}
	out := make([]gpu.DescriptorRange, 0, len(docs))
	for i, rd := range docs {
		rr := newFieldReader(fmt.Sprintf("%s.Ranges[%d]", section, i), rd)
		dr := gpu.DescriptorRange{
			Type:           readEnum(rr, "RangeType", "DESCRIPTOR_RANGE_TYPE_", rangeTypes, gpu.RangeSRV),
			NumDescriptors: rr.uint32("NumDescriptors", 1),
			BaseRegister:   rr.uint32("BaseShaderRegister", 0),
			Space:          rr.uint32("RegisterSpace", 0),
			Offset:         gpu.AppendFromTableStart,
		}
		if s, ok := rd.String("OffsetInDescriptorsFromTableStart"); ok && strings.Contains(strings.ToUpper(s), "APPEND") {
			dr.Offset = gpu.AppendFromTableStart
		} else {
			dr.Offset = rr.uint32("OffsetInDescriptorsFromTableStart", gpu.AppendFromTableStart)
		}
		if rr.err != nil {
			return nil, rr.err
		}
		out = append(out, dr)
	}
	return out, nil
}

func (p *parser) rootParameters(section string, doc preset.Document) ([]gpu.RootParameter, error) {
	r := newFieldReader(section, doc)
	docs := r.objects("Parameters")
	if r.err != nil {
		return nil, r.err
	}
	out := make([]gpu.RootParameter, 0, len(docs))
	for i, pd := range docs {
		name := fmt.Sprintf("%s.Parameters[%d]", section, i)
		if !pd.Has("ParameterType") || !pd.Has("ShaderVisibility") {
			p.log.Warn("root parameter skipped, ParameterType and ShaderVisibility are required", "section", name)
			continue
		}
		pr := newFieldReader(name, pd)
		param := gpu.RootParameter{
			Type:       readEnum(pr, "ParameterType", "ROOT_PARAMETER_TYPE_", parameterTypes, gpu.ParameterTable),
			Visibility: readEnum(pr, "ShaderVisibility", "SHADER_VISIBILITY_", visibilities, gpu.VisibilityAll),
		}
		if pr.err != nil {
			return nil, pr.err
		}
		var err error
		switch param.Type {
		case gpu.ParameterTable:
			t, ok := pr.object("DescriptorTable")
			if !ok {
				return nil, missingOr(pr.err, name+".DescriptorTable")
			}
			param.Ranges, err = resolveSection(p.store, preset.DescriptorRange, name+".DescriptorTable", t, p.descriptorRanges)
			if err == nil && len(param.Ranges) == 0 {
				err = fmt.Errorf("%s.DescriptorTable: %w: no ranges", name, ErrInvalidValue)
			}
		case gpu.ParameterConstants:
			c, ok := pr.object("Constants")
			if !ok {
				return nil, missingOr(pr.err, name+".Constants")
			}
			param.Constants, err = resolveSection(p.store, preset.RootConstants, name+".Constants", c, p.rootConstants)
		default:
			d, ok := pr.object("Descriptor")
			if !ok {
				return nil, missingOr(pr.err, name+".Descriptor")
			}
			param.Descriptor, err = resolveSection(p.store, preset.RootDescriptor, name+".Descriptor", d, p.rootDescriptor)
		}
		if err != nil {
			return nil, err
		}
		out = append(out, param)
	}
	return out, nil
}

func missingOr(err error, section string) error {
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: %s", ErrMissingSection, section)
}

func (p *parser) samplers(section string, doc preset.Document) ([]gpu.StaticSampler, error) {
	r := newFieldReader(section, doc)
	docs := r.objects("Samplers")
	if r.err != nil {
		return nil, r.err
	}
	out := make([]gpu.StaticSampler, 0, len(docs))
	for i, sd := range docs {
		sr := newFieldReader(fmt.Sprintf("%s.Samplers[%d]", section, i), sd)
		s := gpu.StaticSampler{
			Register:      sr.uint32("ShaderRegister", 0),
			Space:         sr.uint32("RegisterSpace", 0),
			Visibility:    readEnum(sr, "ShaderVisibility", "SHADER_VISIBILITY_", visibilities, gpu.VisibilityAll),
			Filter:        readFilter(sr, "Filter", gpu.FilterLinear),
			AddressU:      readEnum(sr, "AddressU", "TEXTURE_ADDRESS_MODE_", addressModes, gpu.AddressWrap),
			AddressV:      readEnum(sr, "AddressV", "TEXTURE_ADDRESS_MODE_", addressModes, gpu.AddressWrap),
			AddressW:      readEnum(sr, "AddressW", "TEXTURE_ADDRESS_MODE_", addressModes, gpu.AddressWrap),
			MipLODBias:    sr.float32("MipLODBias", 0),
			MaxAnisotropy: sr.uint32("MaxAnisotropy", 1),
			Compare:       readEnum(sr, "ComparisonFunc", "COMPARISON_FUNC_", compareFuncs, gpu.CompareNever),
			MinLOD:        sr.float32("MinLOD", 0),
			MaxLOD:        sr.float32("MaxLOD", math.MaxFloat32),
		}
		if sr.err != nil {
			return nil, sr.err
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *parser) rootSignature(section string, doc preset.Document) (gpu.LayoutDesc, error) {
	r := newFieldReader(section, doc)
	desc := gpu.LayoutDesc{
		Label: doc.Name(),
		Flags: readFlags(r, "Flags", "ROOT_SIGNATURE_FLAG_", layoutFlags, 0),
	}
	params, hasParams := r.object("RootParameter")
	samplers, hasSamplers := r.object("Sampler")
	if r.err != nil {
		return gpu.LayoutDesc{}, r.err
	}
	var err error
	if hasParams {
		if desc.Parameters, err = resolveSection(p.store, preset.RootParameter, section+".RootParameter", params, p.rootParameters); err != nil {
			return gpu.LayoutDesc{}, err
		}
	}
	if hasSamplers {
		if desc.StaticSamplers, err = resolveSection(p.store, preset.Sampler, section+".Sampler", samplers, p.samplers); err != nil {
			return gpu.LayoutDesc{}, err
		}
	}
	return desc, nil
}

func (p *parser) inputLayout(section string, doc preset.Document) (InputLayoutDesc, error) {
	r := newFieldReader(section, doc)
	il := InputLayoutDesc{Auto: r.bool("Auto", false)}
	docs := r.objects("Elements")
	if r.err != nil {
		return InputLayoutDesc{}, r.err
	}
	for i, ed := range docs {
		er := newFieldReader(fmt.Sprintf("%s.Elements[%d]", section, i), ed)
		semantic, _ := ed.String("SemanticName")
		el := gpu.InputElement{
			SemanticName:     semantic,
			SemanticIndex:    er.uint32("SemanticIndex", 0),
			Format:           er.format("Format", gpu.FormatUnknown),
			InputSlot:        er.uint32("InputSlot", 0),
			Classification:   readEnum(er, "InputSlotClass", "INPUT_CLASSIFICATION_", inputClassifications, gpu.InputPerVertex),
			InstanceStepRate: er.uint32("InstanceDataStepRate", 0),
			Location:         er.uint32("Location", uint32(i)),
		}
		if s, ok := ed.String("AlignedByteOffset"); ok && strings.Contains(strings.ToUpper(s), "APPEND_ALIGNED") {
			el.AlignedByteOffset = gpu.AppendAligned
		} else {
			el.AlignedByteOffset = er.uint32("AlignedByteOffset", gpu.AppendAligned)
		}
		if el.Format == gpu.FormatUnknown && er.err == nil {
			er.fail("Format", "an input element needs a format")
		}
		if er.err != nil {
			return InputLayoutDesc{}, er.err
		}
		il.Elements = append(il.Elements, el)
	}
	return il, nil
}

func (p *parser) rasterizer(section string, doc preset.Document) (gpu.RasterizerState, error) {
	r := newFieldReader(section, doc)
	d := gpu.DefaultRasterizerState()
	s := gpu.RasterizerState{
		FillMode:              readEnum(r, "FillMode", "FILL_MODE_", fillModes, d.FillMode),
		CullMode:              readEnum(r, "CullMode", "CULL_MODE_", cullModes, d.CullMode),
		FrontCounterClockwise: r.bool("FrontCounterClockwise", d.FrontCounterClockwise),
		DepthBias:             r.int32("DepthBias", d.DepthBias),
		DepthBiasClamp:        r.float32("DepthBiasClamp", d.DepthBiasClamp),
		SlopeScaledDepthBias:  r.float32("SlopeScaledDepthBias", d.SlopeScaledDepthBias),
		DepthClipEnable:       r.bool("DepthClipEnable", d.DepthClipEnable),
		MultisampleEnable:     r.bool("MultisampleEnable", d.MultisampleEnable),
		AntialiasedLineEnable: r.bool("AntialiasedLineEnable", d.AntialiasedLineEnable),
		ForcedSampleCount:     r.uint32("ForcedSampleCount", d.ForcedSampleCount),
		ConservativeRaster:    r.bool("ConservativeRaster", d.ConservativeRaster),
	}
	return s, r.err
}

func (p *parser) blend(section string, doc preset.Document) (gpu.BlendState, error) {
	r := newFieldReader(section, doc)
	b := gpu.DefaultBlendState()
	b.AlphaToCoverageEnable = r.bool("AlphaToCoverageEnable", false)
	b.IndependentBlendEnable = r.bool("IndependentBlendEnable", false)
	targets := r.objects("RenderTargets")
	if len(targets) > gpu.MaxRenderTargets {
		r.fail("RenderTargets", "at most %d render targets, got %d", gpu.MaxRenderTargets, len(targets))
	}
	if r.err != nil {
		return gpu.BlendState{}, r.err
	}
	for i, td := range targets {
		tr := newFieldReader(fmt.Sprintf("%s.RenderTargets[%d]", section, i), td)
		d := b.RenderTargets[i]
		b.RenderTargets[i] = gpu.RenderTargetBlend{
			BlendEnable:    tr.bool("BlendEnable", d.BlendEnable),
			LogicOpEnable:  tr.bool("LogicOpEnable", d.LogicOpEnable),
			SrcBlend:       readEnum(tr, "SrcBlend", "BLEND_", blends, d.SrcBlend),
			DestBlend:      readEnum(tr, "DestBlend", "BLEND_", blends, d.DestBlend),
			BlendOp:        readEnum(tr, "BlendOp", "BLEND_OP_", blendOps, d.BlendOp),
			SrcBlendAlpha:  readEnum(tr, "SrcBlendAlpha", "BLEND_", blends, d.SrcBlendAlpha),
			DestBlendAlpha: readEnum(tr, "DestBlendAlpha", "BLEND_", blends, d.DestBlendAlpha),
			BlendOpAlpha:   readEnum(tr, "BlendOpAlpha", "BLEND_OP_", blendOps, d.BlendOpAlpha),
			WriteMask:      readFlags(tr, "RenderTargetWriteMask", "COLOR_WRITE_ENABLE_", colorWriteMasks, d.WriteMask),
		}
		if tr.err != nil {
			return gpu.BlendState{}, tr.err
		}
	}
	if !b.IndependentBlendEnable {
		for i := 1; i < gpu.MaxRenderTargets; i++ {
			b.RenderTargets[i] = b.RenderTargets[0]
		}
	}
	return b, nil
}

func (p *parser) depthStencil(section string, doc preset.Document) (gpu.DepthStencilState, error) {
	r := newFieldReader(section, doc)
	d := gpu.DefaultDepthStencilState()
	s := gpu.DepthStencilState{
		DepthEnable:   r.bool("DepthEnable", d.DepthEnable),
		DepthWrite:    readEnum(r, "DepthWriteMask", "DEPTH_WRITE_MASK_", depthWriteMasks, d.DepthWrite),
		DepthFunc:     readEnum(r, "DepthFunc", "COMPARISON_FUNC_", compareFuncs, d.DepthFunc),
		StencilEnable: r.bool("StencilEnable", d.StencilEnable),
		FrontFace:     d.FrontFace,
		BackFace:      d.BackFace,
	}
	readMask := r.uint32("StencilReadMask", uint32(d.StencilReadMask))
	writeMask := r.uint32("StencilWriteMask", uint32(d.StencilWriteMask))
	if readMask > 0xFF || writeMask > 0xFF {
		r.fail("StencilReadMask", "stencil masks are 8-bit")
	}
	s.StencilReadMask, s.StencilWriteMask = uint8(readMask), uint8(writeMask)
	if f, ok := r.object("FrontFace"); ok {
		s.FrontFace = stencilFace(newFieldReader(section+".FrontFace", f), d.FrontFace, r)
	}
	if f, ok := r.object("BackFace"); ok {
		s.BackFace = stencilFace(newFieldReader(section+".BackFace", f), d.BackFace, r)
	}
	return s, r.err
}

// stencilFace reads one stencil face and hands its error to the enclosing reader.
func stencilFace(r *fieldReader, d gpu.StencilFace, parent *fieldReader) gpu.StencilFace {
	f := gpu.StencilFace{
		FailOp:      readEnum(r, "StencilFailOp", "STENCIL_OP_", stencilOps, d.FailOp),
		DepthFailOp: readEnum(r, "StencilDepthFailOp", "STENCIL_OP_", stencilOps, d.DepthFailOp),
		PassOp:      readEnum(r, "StencilPassOp", "STENCIL_OP_", stencilOps, d.PassOp),
		Func:        readEnum(r, "StencilFunc", "COMPARISON_FUNC_", compareFuncs, d.Func),
	}
	if parent.err == nil {
		parent.err = r.err
	}
	return f
}

func (p *parser) renderState(section string, doc preset.Document) (RenderState, error) {
	r := newFieldReader(section, doc)
	s := DefaultRenderState()
	s.SampleMask = r.uint32("SampleMask", s.SampleMask)
	s.TopologyType = readEnum(r, "PrimitiveTopologyType", "PRIMITIVE_TOPOLOGY_TYPE_", topologyTypes, gpu.TopologyTypeUndefined)
	s.HasNumRenderTargets = doc.Has("NumRenderTargets")
	s.NumRenderTargets = r.uint32("NumRenderTargets", s.NumRenderTargets)
	if s.NumRenderTargets > gpu.MaxRenderTargets {
		r.fail("NumRenderTargets", "at most %d render targets", gpu.MaxRenderTargets)
	}
	s.DSVFormat = r.format("DSVFormat", gpu.FormatUnknown)
	s.AutoRTCountFromPS = r.bool("AutoRTCountFromPS", false)
	if doc.Has("RTVFormats") {
		formats, ok := doc.Array("RTVFormats")
		switch {
		case !ok:
			r.fail("RTVFormats", "want an array of format names")
		case len(formats) > gpu.MaxRenderTargets:
			r.fail("RTVFormats", "at most %d formats, got %d", gpu.MaxRenderTargets, len(formats))
		}
		for i, v := range formats {
			name, _ := v.(string)
			f, ok := gpu.ParseFormat(name)
			if !ok {
				r.fail("RTVFormats", "unknown format %v", v)
				break
			}
			if i < gpu.MaxRenderTargets {
				s.RTVFormats[i] = f
			}
		}
	}
	if sd, ok := r.object("SampleDesc"); ok {
		sr := newFieldReader(section+".SampleDesc", sd)
		s.SampleCount = sr.uint32("Count", 1)
		s.SampleQuality = sr.uint32("Quality", 0)
		if r.err == nil {
			r.err = sr.err
		}
	}
	return s, r.err
}

func (p *parser) computeState(section string, doc preset.Document) (ComputeState, error) {
	r := newFieldReader(section, doc)
	s := ComputeState{
		Flags:    readFlags(r, "Flags", "PIPELINE_STATE_FLAG_", pipelineStateFlags, 0),
		NodeMask: r.uint32("NodeMask", 0),
	}
	return s, r.err
}
