package shader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/gpu"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

// DefaultEntryPoint is used when a compile request names no entry point.
const DefaultEntryPoint = "main"

// Compiler turns WGSL files into compiled, reflected shaders.
type Compiler interface {
	// Compile reads, preprocesses and compiles the file named by info.
	//
	// Parameters:
	//   - info: the file, entry point, stage and macros to compile
	//
	// Returns:
	//   - Shader: the compiled shader
	//   - error: an error if the file cannot be read or the source fails to compile
	Compile(info CompileInfo) (Shader, error)

	// CompileSource compiles source text as if it had been read from info.FilePath.
	//
	// Parameters:
	//   - info: the entry point, stage and macros to compile; FilePath resolves includes
	//   - source: the WGSL source
	//
	// Returns:
	//   - Shader: the compiled shader
	//   - error: an error if the source fails to preprocess, parse, lower or validate, if the
	//     entry point is missing or of another stage, or if the stage is not expressible in WGSL
	CompileSource(info CompileInfo, source string) (Shader, error)
}

type compiler struct {
	fsys        fs.FS
	includeDirs []string
	spirv       bool
	validate    bool
	debug       bool
	log         *slog.Logger
}

var _ Compiler = &compiler{}

// NewCompiler creates a compiler backed by the naga WGSL front end.
// Files are read from the working directory unless WithFileSystem is given.
//
// Parameters:
//   - options: variadic list of CompilerBuilderOption functions to configure the compiler
//
// Returns:
//   - Compiler: the configured compiler
func NewCompiler(options ...CompilerBuilderOption) Compiler {
	c := &compiler{
		fsys:     osFS{},
		validate: true,
		log:      logger.Component("shader"),
	}
	for _, opt := range options {
		opt(c)
	}
	return c
}

func (c *compiler) Compile(info CompileInfo) (Shader, error) {
	if info.FilePath == "" {
		return nil, fmt.Errorf("shader %q: no file path", info.Name)
	}
	data, err := fs.ReadFile(c.fsys, filepath.ToSlash(info.FilePath))
	if err != nil {
		return nil, fmt.Errorf("failed to read shader %q: %w", info.Name, err)
	}
	return c.CompileSource(info, string(data))
}

func (c *compiler) CompileSource(info CompileInfo, source string) (Shader, error) {
	if info.EntryPoint == "" {
		info.EntryPoint = DefaultEntryPoint
	}
	if info.Stage == StageUnknown {
		info.Stage = StageFromProfile(info.TargetProfile)
	}
	switch info.Stage {
	case StageGeometry, StageHull, StageDomain:
		return nil, fmt.Errorf("shader %q: %s stage: %w", info.Name, info.Stage, gpu.ErrUnsupported)
	}

	pp := NewPreProcessor(c.fsys, c.includeDirs...)
	expanded, err := pp.Process(filepath.ToSlash(info.FilePath), source, info.Macros)
	if err != nil {
		return nil, fmt.Errorf("failed to preprocess shader %q: %w", info.Name, err)
	}

	ast, err := naga.Parse(expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to parse shader %q: %w", info.Name, err)
	}
	module, err := naga.LowerWithSource(ast, expanded)
	if err != nil {
		return nil, fmt.Errorf("failed to lower shader %q: %w", info.Name, err)
	}
	if c.validate {
		issues, err := naga.Validate(module)
		if err != nil {
			return nil, fmt.Errorf("failed to validate shader %q: %w", info.Name, err)
		}
		if len(issues) > 0 {
			errs := make([]error, len(issues))
			for i, issue := range issues {
				errs[i] = issue
			}
			return nil, fmt.Errorf("shader %q failed validation: %w", info.Name, errors.Join(errs...))
		}
	}

	ep, err := findEntryPoint(module, info)
	if err != nil {
		return nil, err
	}
	if info.Stage == StageUnknown {
		info.Stage = toStage(ep.Stage)
	}

	var bytecode []byte
	if c.spirv {
		bytecode, err = naga.GenerateSPIRV(module, spirv.Options{
			Version:    spirv.Version1_3,
			Debug:      c.debug,
			Validation: c.validate,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to generate SPIR-V for shader %q: %w", info.Name, err)
		}
	}

	refl := reflectEntryPoint(module, ep, expanded)
	c.log.Debug("compiled shader",
		"name", info.Name,
		"stage", info.Stage.String(),
		"entryPoint", info.EntryPoint,
		"resources", len(refl.Resources),
		"inputs", len(refl.Inputs),
		"includes", len(pp.Includes()),
	)
	return New(info, expanded, bytecode, refl), nil
}

func findEntryPoint(m *ir.Module, info CompileInfo) (*ir.EntryPoint, error) {
	for i := range m.EntryPoints {
		ep := &m.EntryPoints[i]
		if ep.Name != info.EntryPoint {
			continue
		}
		if info.Stage != StageUnknown && toStage(ep.Stage) != info.Stage {
			return nil, fmt.Errorf("shader %q: entry point %q is a %s stage, want %s: %w",
				info.Name, ep.Name, toStage(ep.Stage), info.Stage, ErrStageMismatch)
		}
		return ep, nil
	}
	return nil, fmt.Errorf("shader %q: entry point %q: %w", info.Name, info.EntryPoint, ErrEntryPointNotFound)
}

// StageFromProfile derives a stage from a target profile such as "vs_6_0" or "ps_5_1".
//
// Parameters:
//   - profile: the target profile, case-insensitive
//
// Returns:
//   - Stage: the stage the profile prefix names, StageUnknown otherwise
func StageFromProfile(profile string) Stage {
	prefix, _, _ := strings.Cut(strings.ToLower(profile), "_")
	switch prefix {
	case "vs":
		return StageVertex
	case "ps":
		return StagePixel
	case "gs":
		return StageGeometry
	case "hs":
		return StageHull
	case "ds":
		return StageDomain
	case "cs":
		return StageCompute
	}
	return StageUnknown
}

// osFS opens paths on the host file system as given, relative or absolute.
type osFS struct{}

func (osFS) Open(name string) (fs.File, error) {
	return os.Open(filepath.FromSlash(name))
}
