package loader

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-render/engine/renderer/preset"
)

// ErrClosed is returned by Load after Close.
var ErrClosed = errors.New("loader is closed")

// loader is the implementation of the Loader interface.
type loader struct {
	settings Settings

	pool     worker.DynamicWorkerPool
	workers  int
	debounce time.Duration

	closeOnce sync.Once
	closed    atomic.Bool
	log       *slog.Logger
}

// Loader reads the description documents named by Settings. Every file is decoded on a
// worker pool; the results are handed back in a deterministic order.
type Loader interface {
	// Settings returns the settings the loader reads from.
	Settings() Settings

	// Load decodes every pipeline and preset document. Files named "example", documents
	// named "example" and files of an extension Settings.Format excludes are skipped.
	// Files that fail to decode are left out and reported in the joined error; the
	// returned source holds every document that decoded.
	//
	// Parameters:
	//   - ctx: cancels decoding; documents not yet decoded are reported as cancelled
	//
	// Returns:
	//   - *Source: the decoded documents, never nil
	//   - error: the joined decode errors, nil if every file decoded
	Load(ctx context.Context) (*Source, error)

	// Watch starts watching every folder of the settings. onChange runs on the watcher
	// goroutine once file events have been quiet for the debounce interval.
	//
	// Parameters:
	//   - onChange: called after a burst of changes
	//
	// Returns:
	//   - Watcher: the running watcher
	//   - error: error if a folder cannot be watched
	Watch(onChange func()) (Watcher, error)

	// Close stops the worker pool.
	Close()
}

var _ Loader = &loader{}

// NewLoader creates a Loader for the given settings.
//
// Parameters:
//   - settings: the folders to read
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the new loader
func NewLoader(settings Settings, options ...LoaderBuilderOption) Loader {
	l := &loader{
		settings: settings,
		workers:  max(runtime.NumCPU()-1, 1),
		debounce: 200 * time.Millisecond,
		log:      logger.Component("loader"),
	}
	for _, option := range options {
		option(l)
	}
	l.pool = worker.NewDynamicWorkerPool(l.workers, 64, time.Second)
	return l
}

// NewLoaderFromFile reads a settings document and creates a Loader for it.
//
// Parameters:
//   - path: the settings document
//   - options: a variadic list of LoaderBuilderOption functions to configure the Loader
//
// Returns:
//   - Loader: the new loader
//   - error: ErrNoSettings if the file does not exist, a decode error otherwise
func NewLoaderFromFile(path string, options ...LoaderBuilderOption) (Loader, error) {
	s, err := LoadSettings(path)
	if err != nil {
		return nil, err
	}
	return NewLoader(s, options...), nil
}

func (l *loader) Settings() Settings { return l.settings }

func (l *loader) Close() {
	l.closeOnce.Do(func() {
		l.closed.Store(true)
		l.pool.Stop()
	})
}

// decodeJob is one file to decode. category is empty for pipeline documents.
type decodeJob struct {
	path     string
	category string
	format   Format

	doc preset.Document
	err error
}

func (l *loader) Load(ctx context.Context) (*Source, error) {
	if l.closed.Load() {
		return &Source{}, ErrClosed
	}
	var errs []error
	var jobs []*decodeJob

	files, err := l.listFolder(l.settings.PipelineFolder)
	if err != nil {
		errs = append(errs, err)
	}
	for _, f := range files {
		jobs = append(jobs, &decodeJob{path: f.path, format: f.format})
	}
	for _, category := range l.settings.categories() {
		files, err := l.listFolder(l.settings.PresetFolders[category])
		if err != nil {
			errs = append(errs, err)
		}
		for _, f := range files {
			jobs = append(jobs, &decodeJob{path: f.path, category: category, format: f.format})
		}
	}

	var wg sync.WaitGroup
	for i, job := range jobs {
		if err := ctx.Err(); err != nil {
			job.err = err
			continue
		}
		wg.Add(1)
		l.pool.SubmitTask(worker.Task{
			ID:      i,
			Payload: job.path,
			Do: func() (any, error) {
				defer wg.Done()
				if err := ctx.Err(); err != nil {
					job.err = err
					return nil, err
				}
				job.doc, job.err = decodeFile(job.path, job.format)
				return job.doc, job.err
			},
		})
	}
	wg.Wait()

	src := &Source{PresetDocs: make(map[string][]preset.Document)}
	for _, job := range jobs {
		if job.err != nil {
			errs = append(errs, fmt.Errorf("failed to decode %s: %w", job.path, job.err))
			continue
		}
		if isExampleDocument(job.doc) {
			l.log.Debug("example document skipped", "file", job.path)
			continue
		}
		src.Files = append(src.Files, job.path)
		if job.category == "" {
			src.PipelineDocs = append(src.PipelineDocs, job.doc)
			continue
		}
		src.PresetDocs[job.category] = append(src.PresetDocs[job.category], job.doc)
	}
	l.log.Info("documents decoded", "pipelines", len(src.PipelineDocs), "files", len(src.Files), "errors", len(errs))
	return src, errors.Join(errs...)
}

type listedFile struct {
	path   string
	format Format
}

// listFolder returns the supported files directly inside dir, sorted by name.
func (l *loader) listFolder(dir string) ([]listedFile, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", dir, err)
	}
	var out []listedFile
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		path := filepath.Join(dir, e.Name())
		f, ok := FormatOf(path)
		if !ok || !l.settings.Format.accepts(f) {
			continue
		}
		if isExampleFile(path) {
			l.log.Debug("example file skipped", "file", path)
			continue
		}
		out = append(out, listedFile{path: path, format: f})
	}
	return out, nil
}

func decodeFile(path string, f Format) (preset.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Decode(data, f)
}

func (l *loader) Watch(onChange func()) (Watcher, error) {
	return NewWatcher(l.settings.Folders(), onChange, WithDebounce(l.debounce))
}

// Source holds the documents of one Load.
type Source struct {
	PresetDocs   map[string][]preset.Document
	PipelineDocs []preset.Document
	// Files lists every file that produced a document, in load order.
	Files []string
}

var _ pipeline.DocumentSource = &Source{}

func (s *Source) PresetCategories() []string {
	out := make([]string, 0, len(s.PresetDocs))
	for c := range s.PresetDocs {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func (s *Source) Presets(category string) []preset.Document { return s.PresetDocs[category] }
func (s *Source) Pipelines() []preset.Document              { return s.PipelineDocs }
