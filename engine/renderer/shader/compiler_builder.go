package shader

import "io/fs"

// CompilerBuilderOption is a function that configures a compiler.
type CompilerBuilderOption func(*compiler)

// WithFileSystem reads shader files and includes from fsys instead of the host file system.
//
// Parameters:
//   - fsys: the file system to read from
//
// Returns:
//   - CompilerBuilderOption: a function that applies the file system
func WithFileSystem(fsys fs.FS) CompilerBuilderOption {
	return func(c *compiler) {
		if fsys != nil {
			c.fsys = fsys
		}
	}
}

// WithIncludeDirs adds directories searched by #include after the including file's directory.
//
// Parameters:
//   - dirs: the include directories, in search order
//
// Returns:
//   - CompilerBuilderOption: a function that applies the include directories
func WithIncludeDirs(dirs ...string) CompilerBuilderOption {
	return func(c *compiler) {
		c.includeDirs = append(c.includeDirs, dirs...)
	}
}

// WithSPIRV makes the compiler emit SPIR-V bytecode next to the WGSL source.
//
// Parameters:
//   - enabled: whether to generate bytecode
//   - debug: whether to include debug names in the bytecode
//
// Returns:
//   - CompilerBuilderOption: a function that applies the setting
func WithSPIRV(enabled, debug bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.spirv = enabled
		c.debug = debug
	}
}

// WithValidation enables or disables IR validation. Validation is on by default.
//
// Parameters:
//   - enabled: whether to validate lowered modules
//
// Returns:
//   - CompilerBuilderOption: a function that applies the setting
func WithValidation(enabled bool) CompilerBuilderOption {
	return func(c *compiler) {
		c.validate = enabled
	}
}
