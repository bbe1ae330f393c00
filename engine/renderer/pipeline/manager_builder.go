package pipeline

import (
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
)

// ManagerBuilderOption is a functional option used to configure a Manager during construction.
type ManagerBuilderOption func(*manager)

// WithStore sets the preset store the manager reads presets from and caches compiled shaders in.
//
// Parameters:
//   - s: the store to use
//
// Returns:
//   - ManagerBuilderOption: a function that sets the store of the manager
func WithStore(s preset.Store) ManagerBuilderOption {
	return func(m *manager) {
		if s != nil {
			m.store = s
		}
	}
}

// WithCompiler sets the shader compiler used for Path entries of Shader sections.
//
// Parameters:
//   - c: the compiler to use
//
// Returns:
//   - ManagerBuilderOption: a function that sets the compiler of the manager
func WithCompiler(c shader.Compiler) ManagerBuilderOption {
	return func(m *manager) {
		if c != nil {
			m.compiler = c
		}
	}
}

// WithShaderRoot sets the folder relative shader paths are resolved against.
//
// Parameters:
//   - dir: the shader root folder
//
// Returns:
//   - ManagerBuilderOption: a function that sets the shader root of the manager
func WithShaderRoot(dir string) ManagerBuilderOption {
	return func(m *manager) {
		m.shaderRoot = dir
	}
}
