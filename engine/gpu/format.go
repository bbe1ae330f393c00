package gpu

import "strings"

// Format is a texel or vertex attribute format.
type Format uint8

const (
	FormatUnknown Format = iota
	FormatR32Float
	FormatRG32Float
	FormatRGB32Float
	FormatRGBA32Float
	FormatR32Uint
	FormatRG32Uint
	FormatRGB32Uint
	FormatRGBA32Uint
	FormatR32Sint
	FormatRG32Sint
	FormatRGB32Sint
	FormatRGBA32Sint
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatBGRA8Unorm
	FormatBGRA8UnormSrgb
	FormatRGBA16Float
	FormatD24UnormS8Uint
	FormatD32Float
)

var formatNames = map[Format]string{
	FormatUnknown:        "UNKNOWN",
	FormatR32Float:       "R32_FLOAT",
	FormatRG32Float:      "R32G32_FLOAT",
	FormatRGB32Float:     "R32G32B32_FLOAT",
	FormatRGBA32Float:    "R32G32B32A32_FLOAT",
	FormatR32Uint:        "R32_UINT",
	FormatRG32Uint:       "R32G32_UINT",
	FormatRGB32Uint:      "R32G32B32_UINT",
	FormatRGBA32Uint:     "R32G32B32A32_UINT",
	FormatR32Sint:        "R32_SINT",
	FormatRG32Sint:       "R32G32_SINT",
	FormatRGB32Sint:      "R32G32B32_SINT",
	FormatRGBA32Sint:     "R32G32B32A32_SINT",
	FormatRGBA8Unorm:     "R8G8B8A8_UNORM",
	FormatRGBA8UnormSrgb: "R8G8B8A8_UNORM_SRGB",
	FormatBGRA8Unorm:     "B8G8R8A8_UNORM",
	FormatBGRA8UnormSrgb: "B8G8R8A8_UNORM_SRGB",
	FormatRGBA16Float:    "R16G16B16A16_FLOAT",
	FormatD24UnormS8Uint: "D24_UNORM_S8_UINT",
	FormatD32Float:       "D32_FLOAT",
}

var formatsByName = func() map[string]Format {
	m := make(map[string]Format, len(formatNames))
	for f, n := range formatNames {
		m[n] = f
	}
	return m
}()

func (f Format) String() string {
	if n, ok := formatNames[f]; ok {
		return n
	}
	return "UNKNOWN"
}

// ParseFormat parses a format name. The "DXGI_FORMAT_" prefix is optional and case is ignored.
//
// Parameters:
//   - s: the format name, e.g. "DXGI_FORMAT_R32G32B32_FLOAT" or "r8g8b8a8_unorm"
//
// Returns:
//   - Format: the parsed format
//   - bool: false if the name is not a known format
func ParseFormat(s string) (Format, bool) {
	n := strings.ToUpper(strings.TrimSpace(s))
	n = strings.TrimPrefix(n, "DXGI_FORMAT_")
	f, ok := formatsByName[n]
	return f, ok
}

// ComponentKind is the scalar class of a vertex format.
type ComponentKind uint8

const (
	ComponentFloat ComponentKind = iota
	ComponentUint
	ComponentSint
)

// VertexFormat returns the 32-bit vertex format with the given component kind and count.
//
// Parameters:
//   - kind: float, uint or sint
//   - components: 1 to 4
//
// Returns:
//   - Format: the format, FormatUnknown if components is out of range
func VertexFormat(kind ComponentKind, components int) Format {
	if components < 1 || components > 4 {
		return FormatUnknown
	}
	var base Format
	switch kind {
	case ComponentFloat:
		base = FormatR32Float
	case ComponentUint:
		base = FormatR32Uint
	case ComponentSint:
		base = FormatR32Sint
	default:
		return FormatUnknown
	}
	return base + Format(components-1)
}

// ByteSize returns the size of one element of the format in bytes, or 0 if unknown.
func (f Format) ByteSize() uint32 {
	switch f {
	case FormatR32Float, FormatR32Uint, FormatR32Sint,
		FormatRGBA8Unorm, FormatRGBA8UnormSrgb, FormatBGRA8Unorm, FormatBGRA8UnormSrgb,
		FormatD24UnormS8Uint, FormatD32Float:
		return 4
	case FormatRG32Float, FormatRG32Uint, FormatRG32Sint, FormatRGBA16Float:
		return 8
	case FormatRGB32Float, FormatRGB32Uint, FormatRGB32Sint:
		return 12
	case FormatRGBA32Float, FormatRGBA32Uint, FormatRGBA32Sint:
		return 16
	}
	return 0
}

// IsDepth reports whether the format is a depth format.
func (f Format) IsDepth() bool {
	return f == FormatD24UnormS8Uint || f == FormatD32Float
}
