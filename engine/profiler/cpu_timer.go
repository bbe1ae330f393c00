package profiler

import (
	"sort"
	"sync"
	"time"
)

// TimerStat is a snapshot of one CPU timer scope.
type TimerStat struct {
	Name      string
	AverageMs float64
	LastMs    float64
	Samples   uint64
}

type timerEntry struct {
	avg     float64
	last    float64
	samples uint64
}

// CPUTimers accumulates named scope durations as exponential moving averages.
// The first sample of a scope sets its average; each later sample moves the average by
// alpha*(sample-average) where alpha = 2/(window+1).
//
// The zero value is not usable; create one with NewCPUTimers.
type CPUTimers struct {
	mu      sync.Mutex
	window  int
	alpha   float64
	entries map[string]*timerEntry
	now     func() time.Time
}

// NewCPUTimers creates a timer set averaging over the given window (0 is treated as 1).
//
// Parameters:
//   - window: the number of samples the moving average approximates
//
// Returns:
//   - *CPUTimers: the new timer set
func NewCPUTimers(window int) *CPUTimers {
	t := &CPUTimers{
		entries: make(map[string]*timerEntry),
		now:     time.Now,
	}
	t.SetAverageWindow(window)
	return t
}

// SetAverageWindow changes the averaging window for every scope. 0 is treated as 1.
//
// Parameters:
//   - window: the new window in samples
func (t *CPUTimers) SetAverageWindow(window int) {
	if window <= 0 {
		window = 1
	}
	t.mu.Lock()
	t.window = window
	t.alpha = 2.0 / float64(window+1)
	t.mu.Unlock()
}

// AverageWindow returns the current averaging window.
//
// Returns:
//   - int: the window in samples
func (t *CPUTimers) AverageWindow() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.window
}

// Scope starts timing a named scope and returns the function that ends it.
// A nil receiver returns a no-op, so callers may time unconditionally.
//
//	defer timers.Scope("RenderFrame")()
//
// Parameters:
//   - name: the scope name
//
// Returns:
//   - func(): stops the scope and records the sample
func (t *CPUTimers) Scope(name string) func() {
	if t == nil {
		return func() {}
	}
	start := t.now()
	return func() {
		t.Record(name, t.now().Sub(start))
	}
}

// Record adds one sample to a scope.
//
// Parameters:
//   - name: the scope name
//   - d: the measured duration
func (t *CPUTimers) Record(name string, d time.Duration) {
	if t == nil {
		return
	}
	ms := float64(d) / float64(time.Millisecond)

	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		e = &timerEntry{}
		t.entries[name] = e
	}
	if e.samples == 0 {
		e.avg = ms
	} else {
		e.avg += t.alpha * (ms - e.avg)
	}
	e.last = ms
	e.samples++
}

// Average returns the moving average of a scope in milliseconds.
//
// Parameters:
//   - name: the scope name
//
// Returns:
//   - float64: the average in milliseconds
//   - bool: false if the scope has no samples
func (t *CPUTimers) Average(name string) (float64, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[name]
	if !ok {
		return 0, false
	}
	return e.avg, true
}

// Stats returns a snapshot of every scope sorted by name.
//
// Returns:
//   - []TimerStat: one entry per recorded scope
func (t *CPUTimers) Stats() []TimerStat {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]TimerStat, 0, len(t.entries))
	for name, e := range t.entries {
		out = append(out, TimerStat{Name: name, AverageMs: e.avg, LastMs: e.last, Samples: e.samples})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Reset drops every recorded scope.
func (t *CPUTimers) Reset() {
	t.mu.Lock()
	t.entries = make(map[string]*timerEntry)
	t.mu.Unlock()
}
