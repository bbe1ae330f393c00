package pipeline

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
)

// DocumentSource hands decoded description documents to a Manager.
type DocumentSource interface {
	// PresetCategories returns every preset category the source holds documents for,
	// including names that are not known categories.
	PresetCategories() []string

	// Presets returns the preset documents of one category in a deterministic order.
	//
	// Parameters:
	//   - category: the category name
	//
	// Returns:
	//   - []preset.Document: the documents, nil if there are none
	Presets(category string) []preset.Document

	// Pipelines returns the pipeline documents in a deterministic order.
	Pipelines() []preset.Document
}

// MemorySource is a DocumentSource over documents held in memory.
type MemorySource struct {
	PresetDocs   map[string][]preset.Document
	PipelineDocs []preset.Document
}

var _ DocumentSource = &MemorySource{}

// AddPreset appends a preset document to a category.
//
// Parameters:
//   - category: the category name
//   - doc: the preset document
func (s *MemorySource) AddPreset(category string, doc preset.Document) {
	if s.PresetDocs == nil {
		s.PresetDocs = make(map[string][]preset.Document)
	}
	s.PresetDocs[category] = append(s.PresetDocs[category], doc)
}

// AddPipeline appends a pipeline document.
//
// Parameters:
//   - doc: the pipeline document
func (s *MemorySource) AddPipeline(doc preset.Document) {
	s.PipelineDocs = append(s.PipelineDocs, doc)
}

func (s *MemorySource) PresetCategories() []string {
	out := make([]string, 0, len(s.PresetDocs))
	for c := range s.PresetDocs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *MemorySource) Presets(category string) []preset.Document { return s.PresetDocs[category] }
func (s *MemorySource) Pipelines() []preset.Document              { return s.PipelineDocs }
