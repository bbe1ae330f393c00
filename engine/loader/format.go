package loader

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format selects the decoder of a description document.
type Format int

const (
	// FormatAny accepts every supported extension.
	FormatAny Format = iota
	// FormatJSON reads .json and .jsonc files. Line and block comments are allowed in both.
	FormatJSON
	// FormatYAML reads .yaml and .yml files.
	FormatYAML
	// FormatTOML reads .toml files.
	FormatTOML
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatYAML:
		return "yaml"
	case FormatTOML:
		return "toml"
	}
	return "any"
}

// ParseFormat returns the format with the given name. "jsonc" and "yml" are accepted as aliases.
//
// Parameters:
//   - name: the format name, case-insensitive; empty means FormatAny
//
// Returns:
//   - Format: the format
//   - bool: false if the name is unknown
func ParseFormat(name string) (Format, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "any":
		return FormatAny, true
	case "json", "jsonc":
		return FormatJSON, true
	case "yaml", "yml":
		return FormatYAML, true
	case "toml":
		return FormatTOML, true
	}
	return FormatAny, false
}

// FormatOf returns the format of a file by its extension.
//
// Parameters:
//   - path: the file path
//
// Returns:
//   - Format: the format
//   - bool: false if the extension is not supported
func FormatOf(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return FormatJSON, true
	case ".yaml", ".yml":
		return FormatYAML, true
	case ".toml":
		return FormatTOML, true
	}
	return FormatAny, false
}

// accepts reports whether a file of format g is read under the setting f.
func (f Format) accepts(g Format) bool {
	return f == FormatAny || f == g
}

// Decode parses one description document.
//
// Parameters:
//   - data: the document bytes
//   - f: the format to decode as; FormatAny is treated as FormatJSON
//
// Returns:
//   - preset.Document: the decoded top-level object
//   - error: error if the bytes are malformed or the top level is not an object
func Decode(data []byte, f Format) (preset.Document, error) {
	var m map[string]any
	switch f {
	case FormatYAML:
		if err := yaml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode yaml: %w", err)
		}
	case FormatTOML:
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to decode toml: %w", err)
		}
	default:
		if err := json.Unmarshal(StripComments(data), &m); err != nil {
			return nil, fmt.Errorf("failed to decode json: %w", err)
		}
	}
	if m == nil {
		return nil, fmt.Errorf("document is empty or not an object")
	}
	return preset.Document(m), nil
}

// StripComments blanks // line comments and /* */ block comments outside of strings,
// keeping newlines so decoder offsets still point at the right line.
//
// Parameters:
//   - data: jsonc bytes
//
// Returns:
//   - []byte: plain json bytes of the same length
func StripComments(data []byte) []byte {
	if !bytes.Contains(data, []byte("/")) {
		return data
	}
	out := make([]byte, len(data))
	copy(out, data)

	inString, escaped := false, false
	for i := 0; i < len(out); i++ {
		c := out[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		if c == '"' {
			inString = true
			continue
		}
		if c != '/' || i+1 >= len(out) {
			continue
		}
		switch out[i+1] {
		case '/':
			for ; i < len(out) && out[i] != '\n'; i++ {
				out[i] = ' '
			}
		case '*':
			out[i], out[i+1] = ' ', ' '
			for i += 2; i < len(out); i++ {
				if out[i] == '*' && i+1 < len(out) && out[i+1] == '/' {
					out[i], out[i+1] = ' ', ' '
					i++
					break
				}
				if out[i] != '\n' {
					out[i] = ' '
				}
			}
		}
	}
	return out
}

// isExampleFile reports whether a file is a template that must not be loaded.
func isExampleFile(path string) bool {
	base := filepath.Base(path)
	stem := strings.TrimSuffix(base, filepath.Ext(base))
	return strings.EqualFold(stem, "example")
}

// isExampleDocument reports whether a decoded document is named "example".
func isExampleDocument(doc preset.Document) bool {
	return strings.EqualFold(strings.TrimSpace(doc.Name()), "example")
}
