package pipeline

import (
	"fmt"
	"math"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
)

// fieldReader reads typed fields out of one description section and keeps the first
// error it meets, so a parser can read every field and check once at the end.
type fieldReader struct {
	doc     preset.Document
	section string
	err     error
}

func newFieldReader(section string, doc preset.Document) *fieldReader {
	return &fieldReader{doc: doc, section: section}
}

func (r *fieldReader) fail(key string, format string, args ...any) {
	if r.err == nil {
		r.err = fmt.Errorf("%s.%s: %w: %s", r.section, key, ErrInvalidValue, fmt.Sprintf(format, args...))
	}
}

func (r *fieldReader) uint32(key string, def uint32) uint32 {
	if !r.doc.Has(key) {
		return def
	}
	v, ok := r.doc.Uint(key)
	if !ok {
		r.fail(key, "want a non-negative integer, got %v", r.doc[key])
		return def
	}
	return v
}

func (r *fieldReader) int32(key string, def int32) int32 {
	if !r.doc.Has(key) {
		return def
	}
	v, ok := r.doc.Int(key)
	if !ok || v < math.MinInt32 || v > math.MaxInt32 {
		r.fail(key, "want an integer, got %v", r.doc[key])
		return def
	}
	return int32(v)
}

// float32 accepts numbers and the FLOAT32_MAX spelling of the largest finite float.
func (r *fieldReader) float32(key string, def float32) float32 {
	if !r.doc.Has(key) {
		return def
	}
	if s, ok := r.doc.String(key); ok && strings.HasSuffix(strings.ToUpper(s), "FLOAT32_MAX") {
		return math.MaxFloat32
	}
	v, ok := r.doc.Float(key)
	if !ok {
		r.fail(key, "want a number, got %v", r.doc[key])
		return def
	}
	return float32(v)
}

func (r *fieldReader) bool(key string, def bool) bool {
	if !r.doc.Has(key) {
		return def
	}
	v, ok := r.doc.Bool(key)
	if !ok {
		r.fail(key, "want a boolean, got %v", r.doc[key])
		return def
	}
	return v
}

func (r *fieldReader) format(key string, def gpu.Format) gpu.Format {
	if !r.doc.Has(key) {
		return def
	}
	s, ok := r.doc.String(key)
	if !ok {
		r.fail(key, "want a format name, got %v", r.doc[key])
		return def
	}
	f, ok := gpu.ParseFormat(s)
	if !ok {
		r.fail(key, "unknown format %q", s)
		return def
	}
	return f
}

// object returns the nested object at key; a present non-object is an error.
func (r *fieldReader) object(key string) (preset.Document, bool) {
	if !r.doc.Has(key) {
		return nil, false
	}
	o, ok := r.doc.Object(key)
	if !ok {
		r.fail(key, "want an object, got %v", r.doc[key])
		return nil, false
	}
	return o, true
}

// objects returns the objects of the array at key; a present non-array is an error.
func (r *fieldReader) objects(key string) []preset.Document {
	if !r.doc.Has(key) {
		return nil
	}
	o, ok := r.doc.Objects(key)
	if !ok {
		r.fail(key, "want an array of objects, got %v", r.doc[key])
		return nil
	}
	return o
}

// normalizeEnum upper-cases an enum spelling and strips the native prefixes, so
// "D3D12_CULL_MODE_BACK", "CULL_MODE_BACK" and "back" all read as "BACK".
func normalizeEnum(s, prefix string) string {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimPrefix(s, "D3D12_")
	s = strings.TrimPrefix(s, "D3D_")
	return strings.TrimPrefix(s, prefix)
}

// readEnum reads the enum at key from a table of normalized spellings.
func readEnum[T any](r *fieldReader, key, prefix string, table map[string]T, def T) T {
	if !r.doc.Has(key) {
		return def
	}
	s, ok := r.doc.String(key)
	if !ok {
		r.fail(key, "want a string, got %v", r.doc[key])
		return def
	}
	v, ok := table[normalizeEnum(s, prefix)]
	if !ok {
		r.fail(key, "unknown value %q", s)
		return def
	}
	return v
}

var parameterTypes = map[string]gpu.ParameterType{
	"DESCRIPTOR_TABLE": gpu.ParameterTable,
	"32BIT_CONSTANTS":  gpu.ParameterConstants,
	"CBV":              gpu.ParameterCBV,
	"SRV":              gpu.ParameterSRV,
	"UAV":              gpu.ParameterUAV,
}

var visibilities = map[string]gpu.Visibility{
	"ALL":      gpu.VisibilityAll,
	"VERTEX":   gpu.VisibilityVertex,
	"HULL":     gpu.VisibilityHull,
	"DOMAIN":   gpu.VisibilityDomain,
	"GEOMETRY": gpu.VisibilityGeometry,
	"PIXEL":    gpu.VisibilityPixel,
	"COMPUTE":  gpu.VisibilityCompute,
}

var rangeTypes = map[string]gpu.RangeType{
	"SRV":     gpu.RangeSRV,
	"UAV":     gpu.RangeUAV,
	"CBV":     gpu.RangeCBV,
	"SAMPLER": gpu.RangeSampler,
}

var addressModes = map[string]gpu.AddressMode{
	"WRAP":        gpu.AddressWrap,
	"MIRROR":      gpu.AddressMirror,
	"MIRROR_ONCE": gpu.AddressMirror,
	"CLAMP":       gpu.AddressClamp,
	"BORDER":      gpu.AddressBorder,
}

var compareFuncs = map[string]gpu.CompareFunc{
	"NEVER":         gpu.CompareNever,
	"LESS":          gpu.CompareLess,
	"EQUAL":         gpu.CompareEqual,
	"LESS_EQUAL":    gpu.CompareLessEqual,
	"GREATER":       gpu.CompareGreater,
	"NOT_EQUAL":     gpu.CompareNotEqual,
	"GREATER_EQUAL": gpu.CompareGreaterEqual,
	"ALWAYS":        gpu.CompareAlways,
}

var fillModes = map[string]gpu.FillMode{
	"SOLID":     gpu.FillSolid,
	"WIREFRAME": gpu.FillWireframe,
}

var cullModes = map[string]gpu.CullMode{
	"NONE":  gpu.CullNone,
	"FRONT": gpu.CullFront,
	"BACK":  gpu.CullBack,
}

var blends = map[string]gpu.Blend{
	"ZERO":           gpu.BlendZero,
	"ONE":            gpu.BlendOne,
	"SRC_COLOR":      gpu.BlendSrcColor,
	"INV_SRC_COLOR":  gpu.BlendInvSrcColor,
	"SRC_ALPHA":      gpu.BlendSrcAlpha,
	"INV_SRC_ALPHA":  gpu.BlendInvSrcAlpha,
	"DEST_ALPHA":     gpu.BlendDestAlpha,
	"INV_DEST_ALPHA": gpu.BlendInvDestAlpha,
	"DEST_COLOR":     gpu.BlendDestColor,
	"INV_DEST_COLOR": gpu.BlendInvDestColor,
}

var blendOps = map[string]gpu.BlendOp{
	"ADD":          gpu.BlendOpAdd,
	"SUBTRACT":     gpu.BlendOpSubtract,
	"REV_SUBTRACT": gpu.BlendOpRevSubtract,
	"MIN":          gpu.BlendOpMin,
	"MAX":          gpu.BlendOpMax,
}

var stencilOps = map[string]gpu.StencilOp{
	"KEEP":     gpu.StencilKeep,
	"ZERO":     gpu.StencilZero,
	"REPLACE":  gpu.StencilReplace,
	"INCR_SAT": gpu.StencilIncrSat,
	"DECR_SAT": gpu.StencilDecrSat,
	"INVERT":   gpu.StencilInvert,
	"INCR":     gpu.StencilIncr,
	"DECR":     gpu.StencilDecr,
}

var depthWriteMasks = map[string]bool{
	"ZERO": false,
	"ALL":  true,
}

var topologyTypes = map[string]gpu.TopologyType{
	"UNDEFINED": gpu.TopologyTypeUndefined,
	"POINT":     gpu.TopologyTypePoint,
	"LINE":      gpu.TopologyTypeLine,
	"TRIANGLE":  gpu.TopologyTypeTriangle,
	"PATCH":     gpu.TopologyTypePatch,
}

var inputClassifications = map[string]gpu.InputClassification{
	"PER_VERTEX_DATA":   gpu.InputPerVertex,
	"PER_INSTANCE_DATA": gpu.InputPerInstance,
}

var colorWriteMasks = map[string]gpu.ColorWriteMask{
	"RED":   gpu.ColorWriteRed,
	"GREEN": gpu.ColorWriteGreen,
	"BLUE":  gpu.ColorWriteBlue,
	"ALPHA": gpu.ColorWriteAlpha,
	"ALL":   gpu.ColorWriteAll,
}

var layoutFlags = map[string]uint32{
	"NONE":                               0,
	"ALLOW_INPUT_ASSEMBLER_INPUT_LAYOUT": gpu.LayoutFlagAllowInputAssembler,
}

var pipelineStateFlags = map[string]uint32{
	"NONE":               0,
	"TOOL_DEBUG":         0x1,
	"DYNAMIC_DEPTH_BIAS": 0x4,
}

// readFlags reads a flag set written as a number, a "A | B" string or an array of names.
func readFlags[T ~uint8 | ~uint32](r *fieldReader, key, prefix string, table map[string]T, def T) T {
	if !r.doc.Has(key) {
		return def
	}
	if n, ok := r.doc.Uint(key); ok {
		return T(n)
	}
	var names []string
	switch v := r.doc[key].(type) {
	case string:
		names = strings.Split(v, "|")
	case []any:
		for _, e := range v {
			s, ok := e.(string)
			if !ok {
				r.fail(key, "want flag names, got %v", e)
				return def
			}
			names = append(names, s)
		}
	default:
		r.fail(key, "want flags, got %v", v)
		return def
	}
	var out T
	for _, n := range names {
		f, ok := table[normalizeEnum(n, prefix)]
		if !ok {
			r.fail(key, "unknown flag %q", strings.TrimSpace(n))
			return def
		}
		out |= f
	}
	return out
}

// readFilter maps the native filter spellings onto the filter classes a sampler supports.
func readFilter(r *fieldReader, key string, def gpu.Filter) gpu.Filter {
	if !r.doc.Has(key) {
		return def
	}
	s, ok := r.doc.String(key)
	if !ok {
		r.fail(key, "want a string, got %v", r.doc[key])
		return def
	}
	n := normalizeEnum(s, "FILTER_")
	comparison := strings.HasPrefix(n, "COMPARISON_")
	n = strings.TrimPrefix(n, "COMPARISON_")
	switch {
	case strings.Contains(n, "ANISOTROPIC"):
		return gpu.FilterAnisotropic
	case n == "MIN_MAG_MIP_POINT" || n == "POINT":
		if comparison {
			return gpu.FilterComparisonPoint
		}
		return gpu.FilterPoint
	case strings.HasPrefix(n, "MIN_") || n == "LINEAR":
		if comparison {
			return gpu.FilterComparisonLinear
		}
		return gpu.FilterLinear
	}
	r.fail(key, "unknown filter %q", s)
	return def
}
