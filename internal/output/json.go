package output

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/reglint/reglint/internal/report"
)

// JSONReporter renders a report as indented JSON.
type JSONReporter struct {
	out io.Writer
}

// NewJSONReporter creates a JSON reporter writing to out.
func NewJSONReporter(out io.Writer) *JSONReporter {
	return &JSONReporter{out: out}
}

// Publish renders the report.
func (r *JSONReporter) Publish(rep report.Report) error {
	// JSON output always carries the violations key, even when empty.
	if rep.Violations == nil {
		rep.Violations = []report.Violation{}
	}

	enc := json.NewEncoder(r.out)
	enc.SetIndent("", "  ")

	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("failed to encode report: %w", err)
	}

	return nil
}

// Reporter publishes a finished report.
type Reporter interface {
	Publish(rep report.Report) error
}
