package loader

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-render/engine/logger"
	"github.com/fsnotify/fsnotify"
)

// watcher is the implementation of the Watcher interface.
type watcher struct {
	fs       *fsnotify.Watcher
	folders  []string
	onChange func()
	debounce time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	pending int
	fired   int

	done chan struct{}
	wg   sync.WaitGroup
	log  *slog.Logger
}

// Watcher reports changes to description documents. A burst of file events inside the
// debounce interval produces one callback.
type Watcher interface {
	// Folders returns the folders being watched.
	Folders() []string

	// Changes returns how many callbacks have run so far.
	Changes() int

	// Close stops watching. A pending callback is dropped.
	//
	// Returns:
	//   - error: error if the underlying watcher fails to close
	Close() error
}

var _ Watcher = &watcher{}

// NewWatcher starts watching the given folders. Only create, write, remove and rename
// events of supported document files are considered.
//
// Parameters:
//   - folders: the folders to watch, not recursively
//   - onChange: called on the watcher goroutine after the events of a burst settle
//   - options: a variadic list of WatcherBuilderOption functions to configure the Watcher
//
// Returns:
//   - Watcher: the running watcher
//   - error: error if the watcher cannot be created or a folder cannot be added
func NewWatcher(folders []string, onChange func(), options ...WatcherBuilderOption) (Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}
	w := &watcher{
		fs:       fw,
		onChange: onChange,
		debounce: 200 * time.Millisecond,
		done:     make(chan struct{}),
		log:      logger.Component("loader"),
	}
	for _, option := range options {
		option(w)
	}
	for _, dir := range folders {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		w.folders = append(w.folders, dir)
	}

	w.wg.Add(1)
	go w.run()
	return w, nil
}

func (w *watcher) Folders() []string { return append([]string(nil), w.folders...) }

func (w *watcher) Changes() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.fired
}

func (w *watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.log.Debug("document changed", "file", event.Name, "op", event.Op.String())
			w.schedule()
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", "error", err)
		}
	}
}

func relevant(event fsnotify.Event) bool {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
		return false
	}
	_, ok := FormatOf(event.Name)
	return ok
}

// schedule restarts the debounce timer.
func (w *watcher) schedule() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending++
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.debounce, w.fire)
}

func (w *watcher) fire() {
	select {
	case <-w.done:
		return
	default:
	}
	w.mu.Lock()
	events := w.pending
	w.pending = 0
	w.fired++
	w.mu.Unlock()

	w.log.Info("documents changed, reload requested", "events", events)
	if w.onChange != nil {
		w.onChange()
	}
}

func (w *watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.mu.Unlock()
	err := w.fs.Close()
	w.wg.Wait()
	return err
}
