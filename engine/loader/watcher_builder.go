package loader

import "time"

// WatcherBuilderOption is a functional option for configuring a Watcher via NewWatcher.
type WatcherBuilderOption func(*watcher)

// WithDebounce sets how long file events must be quiet before the change callback runs.
//
// Parameters:
//   - d: the quiet interval, values below one millisecond are raised to one millisecond
//
// Returns:
//   - WatcherBuilderOption: a function that applies the debounce option to a watcher
func WithDebounce(d time.Duration) WatcherBuilderOption {
	return func(w *watcher) {
		w.debounce = max(d, time.Millisecond)
	}
}
