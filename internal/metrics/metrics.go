// Package metrics provides named wall-clock timers for a lint run.
package metrics

import (
	"sync"
	"time"
)

// Timer names used by the linter. Kept in one place so reports stay stable.
const (
	Lint               = "reglint_lint"
	LintNativeRules    = "reglint_lint_native"
	LintDeclarative    = "reglint_lint_declarative"
	LintAggregate      = "reglint_lint_aggregate"
	FilterIgnoredFiles = "reglint_filter_ignored_files"
	FilterInputModules = "reglint_filter_input_modules"
	InputParse         = "reglint_input_parse"
	PrepareEvaluation  = "reglint_prepare_evaluation"
)

// Timer measures a single named duration. Start and Stop may be called
// repeatedly; elapsed time accumulates.
type Timer struct {
	mu      sync.Mutex
	started time.Time
	elapsed time.Duration
	running bool
}

// Start begins (or resumes) the timer.
func (t *Timer) Start() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.running {
		t.started = time.Now()
		t.running = true
	}
}

// Stop halts the timer, accumulating the elapsed duration.
func (t *Timer) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.running {
		t.elapsed += time.Since(t.started)
		t.running = false
	}
}

// Elapsed returns the accumulated duration.
func (t *Timer) Elapsed() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.elapsed
}

// Metrics is a collection of named timers, safe for concurrent use.
type Metrics struct {
	mu     sync.Mutex
	timers map[string]*Timer
}

// New creates an empty metrics collector.
func New() *Metrics {
	return &Metrics{timers: make(map[string]*Timer)}
}

// Timer returns the timer registered under name, creating it if needed.
func (m *Metrics) Timer(name string) *Timer {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.timers[name]
	if !ok {
		t = &Timer{}
		m.timers[name] = t
	}

	return t
}

// All returns the elapsed nanoseconds of every timer, keyed by name with a
// "timer_" prefix and "_ns" suffix.
func (m *Metrics) All() map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()

	all := make(map[string]any, len(m.timers))
	for name, t := range m.timers {
		all["timer_"+name+"_ns"] = t.Elapsed().Nanoseconds()
	}

	return all
}
