// Package preset holds the named ingredients pipelines are built from: binding layouts,
// fixed-function state, input layouts and compiled shaders. A Store is an explicitly owned
// object; every pipeline manager works against the store it was given.
package preset

import (
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/shader"
	"github.com/jinzhu/copier"
)

// Category names one kind of preset. Category values double as the folder names preset
// documents are loaded from.
type Category string

const (
	BlendState            Category = "BlendState"
	ComputePipelineState  Category = "ComputePipelineState"
	DepthStencilState     Category = "DepthStencilState"
	DescriptorRange       Category = "DescriptorRange"
	GraphicsPipelineState Category = "GraphicsPipelineState"
	InputLayout           Category = "InputLayout"
	RasterizerState       Category = "RasterizerState"
	RootConstants         Category = "RootConstants"
	RootDescriptor        Category = "RootDescriptor"
	RootParameter         Category = "RootParameter"
	RootSignature         Category = "RootSignature"
	Sampler               Category = "Sampler"
	Shader                Category = "Shader"
)

// Categories lists every category in the order presets are loaded. Leaf ingredients come
// before the presets that may reference them.
var Categories = []Category{
	DescriptorRange,
	RootDescriptor,
	RootConstants,
	RootParameter,
	Sampler,
	RootSignature,
	InputLayout,
	RasterizerState,
	BlendState,
	DepthStencilState,
	GraphicsPipelineState,
	ComputePipelineState,
	Shader,
}

// ParseCategory returns the category with the given name.
//
// Parameters:
//   - name: the category name, e.g. "BlendState"
//
// Returns:
//   - Category: the category
//   - bool: false if the name is not a known category
func ParseCategory(name string) (Category, bool) {
	for _, c := range Categories {
		if string(c) == name {
			return c, true
		}
	}
	return "", false
}

// store is the implementation of the Store interface.
type store struct {
	mu sync.RWMutex

	// presets holds every registered value per category, keyed by name.
	presets map[Category]map[string]any

	// shaders holds compiled shaders by the name they were compiled under.
	shaders map[string]shader.Shader

	// groups holds multi-stage shader groups registered under the Shader category.
	groups map[string][]shader.Shader
}

// Store holds named presets and compiled shaders.
type Store interface {
	// Register stores a preset. A later registration under the same name replaces the earlier one.
	//
	// Parameters:
	//   - category: the preset category
	//   - name: the preset name
	//   - value: the decoded preset value
	Register(category Category, name string, value any)

	// Get returns the stored preset value. Callers that modify the result should use Lookup.
	//
	// Parameters:
	//   - category: the preset category
	//   - name: the preset name
	//
	// Returns:
	//   - any: the stored value
	//   - bool: false if no preset with that name exists
	Get(category Category, name string) (any, bool)

	// Has reports whether a preset exists.
	Has(category Category, name string) bool

	// Names returns the preset names of a category, sorted.
	//
	// Parameters:
	//   - category: the preset category
	//
	// Returns:
	//   - []string: the registered names
	Names(category Category) []string

	// RegisterCompiledShader caches a compiled shader by name.
	//
	// Parameters:
	//   - name: the cache key, usually "<pipeline>_<Stage>" or a shader preset name
	//   - s: the compiled shader
	RegisterCompiledShader(name string, s shader.Shader)

	// CompiledShader returns a cached compiled shader.
	//
	// Parameters:
	//   - name: the cache key
	//
	// Returns:
	//   - shader.Shader: the compiled shader
	//   - bool: false if nothing was compiled under that name
	CompiledShader(name string) (shader.Shader, bool)

	// RegisterShaderGroup stores a set of compiled stages under one name.
	//
	// Parameters:
	//   - name: the group name
	//   - group: the compiled stages, at most one per stage
	RegisterShaderGroup(name string, group []shader.Shader)

	// ShaderGroup returns a registered shader group.
	//
	// Parameters:
	//   - name: the group name
	//
	// Returns:
	//   - []shader.Shader: a copy of the group's stages
	//   - bool: false if no group has that name
	ShaderGroup(name string) ([]shader.Shader, bool)

	// ClearAll drops every preset, shader group and compiled shader.
	ClearAll()
}

var _ Store = &store{}

// NewStore creates an empty store.
//
// Returns:
//   - Store: the new store
func NewStore() Store {
	s := &store{}
	s.reset()
	return s
}

func (s *store) reset() {
	s.presets = make(map[Category]map[string]any)
	s.shaders = make(map[string]shader.Shader)
	s.groups = make(map[string][]shader.Shader)
}

func (s *store) Register(category Category, name string, value any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.presets[category]
	if !ok {
		m = make(map[string]any)
		s.presets[category] = m
	}
	m[name] = value
}

func (s *store) Get(category Category, name string) (any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.presets[category][name]
	return v, ok
}

func (s *store) Has(category Category, name string) bool {
	_, ok := s.Get(category, name)
	return ok
}

func (s *store) Names(category Category) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.presets[category]))
	for name := range s.presets[category] {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func (s *store) RegisterCompiledShader(name string, sh shader.Shader) {
	if sh == nil {
		return
	}
	s.mu.Lock()
	s.shaders[name] = sh
	s.mu.Unlock()
}

func (s *store) CompiledShader(name string) (shader.Shader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sh, ok := s.shaders[name]
	return sh, ok
}

func (s *store) RegisterShaderGroup(name string, group []shader.Shader) {
	cp := make([]shader.Shader, 0, len(group))
	for _, sh := range group {
		if sh != nil {
			cp = append(cp, sh)
		}
	}
	s.mu.Lock()
	s.groups[name] = cp
	s.mu.Unlock()
}

func (s *store) ShaderGroup(name string) ([]shader.Shader, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[name]
	if !ok {
		return nil, false
	}
	return append([]shader.Shader(nil), g...), true
}

func (s *store) ClearAll() {
	s.mu.Lock()
	s.reset()
	s.mu.Unlock()
}

// Lookup returns a deep copy of a preset as T, so the caller may patch it freely.
//
// Parameters:
//   - s: the store to read from
//   - category: the preset category
//   - name: the preset name
//
// Returns:
//   - T: the copied preset
//   - bool: false if the preset is absent, is not a T, or cannot be copied
func Lookup[T any](s Store, category Category, name string) (T, bool) {
	var out T
	v, ok := s.Get(category, name)
	if !ok {
		return out, false
	}
	if d, isDoc := v.(Document); isDoc {
		c, ok := any(d.Clone()).(T)
		return c, ok
	}
	src, ok := v.(T)
	if !ok {
		return out, false
	}
	if err := copier.CopyWithOption(&out, &src, copier.Option{DeepCopy: true}); err != nil {
		return out, false
	}
	return out, true
}
