// Package report defines the data types produced by a lint run.
// This package is at the bottom of the dependency graph and should not import
// any other internal packages.
package report

import "sort"

// Location points at the source of a violation.
type Location struct {
	File   string `json:"file" yaml:"file"`
	Row    int    `json:"row,omitempty" yaml:"row,omitempty"`
	Column int    `json:"col,omitempty" yaml:"col,omitempty"`
	Text   string `json:"text,omitempty" yaml:"text,omitempty"`
}

// Violation is a single finding reported by a rule.
type Violation struct {
	Rule        string   `json:"rule" yaml:"rule"`
	Category    string   `json:"category" yaml:"category"`
	Level       string   `json:"level" yaml:"level"`
	Description string   `json:"description" yaml:"description"`
	Location    Location `json:"location" yaml:"location"`
}

// Notice signals that a rule was skipped, e.g. due to a missing capability.
// A notice is not a finding.
type Notice struct {
	Rule        string `json:"rule" yaml:"rule"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`
	Severity    string `json:"severity" yaml:"severity"`
	Description string `json:"description" yaml:"description"`
}

// Aggregate is an opaque fact bag collected by a rule for one file during the
// per-file phase, and replayed to the same rule in the aggregate phase.
type Aggregate map[string]any

// ProfileEntry holds the evaluation cost recorded for a single location.
type ProfileEntry struct {
	Location    string `json:"location" yaml:"location"`
	TotalTimeNs int64  `json:"total_time_ns" yaml:"total_time_ns"`
	NumEval     int    `json:"num_eval" yaml:"num_eval"`
}

// Summary holds the high level statistics of a lint run.
type Summary struct {
	FilesScanned  int `json:"files_scanned" yaml:"files_scanned"`
	FilesFailed   int `json:"files_failed" yaml:"files_failed"`
	RulesSkipped  int `json:"rules_skipped" yaml:"rules_skipped"`
	NumViolations int `json:"num_violations" yaml:"num_violations"`
}

// Report is the aggregated result of a lint run.
type Report struct {
	Violations []Violation            `json:"violations" yaml:"violations"`
	Notices    []Notice               `json:"notices,omitempty" yaml:"notices,omitempty"`
	Aggregates map[string][]Aggregate `json:"aggregates,omitempty" yaml:"aggregates,omitempty"`
	Summary    Summary                `json:"summary" yaml:"summary"`
	Metrics    map[string]any         `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// AggregateProfile accumulates profiling entries keyed by location while
	// a run is in progress. It is dropped from the final report in favor of
	// the sorted Profile table.
	AggregateProfile map[string]ProfileEntry `json:"aggregate_profile,omitempty" yaml:"aggregate_profile,omitempty"`
	Profile          []ProfileEntry          `json:"profile,omitempty" yaml:"profile,omitempty"`
}

// ViolationsFileCount returns the number of violations found per file.
func (r Report) ViolationsFileCount() map[string]int {
	counts := make(map[string]int)
	for _, violation := range r.Violations {
		counts[violation.Location.File]++
	}

	return counts
}

// AddProfileEntries merges profiling entries into the report, summing the
// time and evaluation count of entries sharing a location.
func (r *Report) AddProfileEntries(entries map[string]ProfileEntry) {
	if r.AggregateProfile == nil {
		r.AggregateProfile = make(map[string]ProfileEntry, len(entries))
	}

	for loc, entry := range entries {
		existing := r.AggregateProfile[loc]
		existing.Location = loc
		existing.TotalTimeNs += entry.TotalTimeNs
		existing.NumEval += entry.NumEval
		r.AggregateProfile[loc] = existing
	}
}

// AggregateProfileToSortedProfile flattens the aggregated profile into a
// table sorted by total time, truncated to the numResults costliest entries.
func (r *Report) AggregateProfileToSortedProfile(numResults int) {
	r.Profile = make([]ProfileEntry, 0, len(r.AggregateProfile))
	for _, entry := range r.AggregateProfile {
		r.Profile = append(r.Profile, entry)
	}

	sort.Slice(r.Profile, func(i, j int) bool {
		if r.Profile[i].TotalTimeNs != r.Profile[j].TotalTimeNs {
			return r.Profile[i].TotalTimeNs > r.Profile[j].TotalTimeNs
		}

		return r.Profile[i].Location < r.Profile[j].Location
	})

	if len(r.Profile) > numResults {
		r.Profile = r.Profile[:numResults]
	}
}
