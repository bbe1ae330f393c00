package loader

import "time"

// LoaderBuilderOption is a functional option for configuring a Loader via NewLoader.
type LoaderBuilderOption func(*loader)

// WithWorkers sets how many documents are decoded in parallel.
//
// Parameters:
//   - n: the worker count, values below 1 are raised to 1
//
// Returns:
//   - LoaderBuilderOption: a function that applies the workers option to a loader
func WithWorkers(n int) LoaderBuilderOption {
	return func(l *loader) {
		l.workers = max(n, 1)
	}
}

// WithWatchDebounce sets the quiet interval of watchers started by Watch.
//
// Parameters:
//   - d: the quiet interval
//
// Returns:
//   - LoaderBuilderOption: a function that applies the debounce option to a loader
func WithWatchDebounce(d time.Duration) LoaderBuilderOption {
	return func(l *loader) {
		l.debounce = d
	}
}
