package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
)

// ErrNoSettings is returned when no settings document can be found.
var ErrNoSettings = errors.New("no pipeline settings")

// settingsNames are the file names FindSettings looks for, in order.
var settingsNames = []string{"settings.json", "settings.jsonc", "settings.yaml", "settings.yml", "settings.toml"}

// Settings names the folders description documents are loaded from.
type Settings struct {
	// PipelineFolder holds one pipeline document per file.
	PipelineFolder string
	// PresetFolders maps a preset category name to the folder of its documents.
	PresetFolders map[string]string
	// Watch enables hot reload of every folder.
	Watch bool
	// Format restricts the extensions that are read. FormatAny reads every supported one.
	Format Format
}

// Folders returns the pipeline folder followed by the preset folders in category load
// order. Categories that are not known preset categories follow, sorted by name.
func (s Settings) Folders() []string {
	var out []string
	seen := map[string]bool{}
	add := func(dir string) {
		if dir != "" && !seen[dir] {
			seen[dir] = true
			out = append(out, dir)
		}
	}
	add(s.PipelineFolder)
	for _, c := range s.categories() {
		add(s.PresetFolders[c])
	}
	return out
}

// categories returns the configured categories, known ones in load order first.
func (s Settings) categories() []string {
	out := make([]string, 0, len(s.PresetFolders))
	for _, c := range preset.Categories {
		if _, ok := s.PresetFolders[string(c)]; ok {
			out = append(out, string(c))
		}
	}
	var unknown []string
	for name := range s.PresetFolders {
		if _, ok := preset.ParseCategory(name); !ok {
			unknown = append(unknown, name)
		}
	}
	sort.Strings(unknown)
	return append(out, unknown...)
}

// FindSettings returns the first settings document present in dir.
//
// Parameters:
//   - dir: the folder to search
//
// Returns:
//   - string: the path of the settings document
//   - error: ErrNoSettings if dir holds none of the supported names
func FindSettings(dir string) (string, error) {
	for _, name := range settingsNames {
		p := filepath.Join(dir, name)
		if st, err := os.Stat(p); err == nil && !st.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w in %s", ErrNoSettings, dir)
}

// LoadSettings reads a settings document. Relative folders are resolved against the
// folder of the document. Keys are matched case-insensitively, so "PipeLineFolder" and
// "PipelineFolder" are the same key.
//
// Parameters:
//   - path: the settings document
//
// Returns:
//   - Settings: the settings
//   - error: ErrNoSettings if the file does not exist, a decode error otherwise
func LoadSettings(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return Settings{}, fmt.Errorf("%w: %s", ErrNoSettings, path)
	}
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings %s: %w", path, err)
	}
	f, ok := FormatOf(path)
	if !ok {
		return Settings{}, fmt.Errorf("settings %s: unsupported extension", path)
	}
	doc, err := Decode(data, f)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to load settings %s: %w", path, err)
	}
	s, err := parseSettings(doc, filepath.Dir(path))
	if err != nil {
		return Settings{}, fmt.Errorf("settings %s: %w", path, err)
	}
	return s, nil
}

func parseSettings(doc preset.Document, base string) (Settings, error) {
	keys := make(map[string]any, len(doc))
	for k, v := range doc {
		keys[strings.ToLower(k)] = v
	}
	resolve := func(dir string) string {
		if dir == "" || filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(base, dir)
	}

	var s Settings
	folder, _ := keys["pipelinefolder"].(string)
	if folder == "" {
		return s, errors.New("PipelineFolder is required")
	}
	s.PipelineFolder = resolve(folder)

	if raw, ok := keys["presetfolders"]; ok {
		folders, ok := preset.AsDocument(raw)
		if !ok {
			return s, errors.New("PresetFolders must be an object")
		}
		s.PresetFolders = make(map[string]string, len(folders))
		for category, v := range folders {
			dir, ok := v.(string)
			if !ok {
				return s, fmt.Errorf("PresetFolders.%s must be a string", category)
			}
			s.PresetFolders[category] = resolve(dir)
		}
	}

	switch w := keys["watch"].(type) {
	case nil:
	case bool:
		s.Watch = w
	default:
		return s, errors.New("Watch must be a boolean")
	}

	if raw, ok := keys["format"]; ok {
		name, _ := raw.(string)
		f, ok := ParseFormat(name)
		if !ok {
			return s, fmt.Errorf("unknown Format %v", raw)
		}
		s.Format = f
	}
	return s, nil
}
