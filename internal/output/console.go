// Package output renders lint reports for human and machine consumption.
package output

import (
	"fmt"
	"io"
	"sort"

	"github.com/charmbracelet/lipgloss"

	"github.com/reglint/reglint/internal/report"
)

// ConsoleReporter renders a report as styled text.
type ConsoleReporter struct {
	out     io.Writer
	verbose bool
}

// NewConsoleReporter creates a console reporter writing to out.
func NewConsoleReporter(out io.Writer, verbose bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, verbose: verbose}
}

// Publish renders the report.
func (r *ConsoleReporter) Publish(rep report.Report) error {
	errorStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	warningStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	dimStyle := lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	boldStyle := lipgloss.NewStyle().Bold(true)

	violations := make([]report.Violation, len(rep.Violations))
	copy(violations, rep.Violations)

	sort.Slice(violations, func(i, j int) bool {
		if violations[i].Location.File != violations[j].Location.File {
			return violations[i].Location.File < violations[j].Location.File
		}

		return violations[i].Location.Row < violations[j].Location.Row
	})

	for _, violation := range violations {
		style := warningStyle
		if violation.Level == "error" {
			style = errorStyle
		}

		location := violation.Location.File
		if violation.Location.Row > 0 {
			location = fmt.Sprintf("%s:%d", location, violation.Location.Row)
			if violation.Location.Column > 0 {
				location = fmt.Sprintf("%s:%d", location, violation.Location.Column)
			}
		}

		fmt.Fprintf(r.out, "%s: %s %s\n",
			dimStyle.Render(location),
			style.Render(fmt.Sprintf("[%s/%s]", violation.Category, violation.Rule)),
			violation.Description,
		)

		if r.verbose && violation.Location.Text != "" {
			fmt.Fprintf(r.out, "  %s\n", dimStyle.Render(violation.Location.Text))
		}
	}

	for _, notice := range rep.Notices {
		if notice.Severity == "none" {
			continue
		}

		fmt.Fprintf(r.out, "%s %s\n",
			warningStyle.Render(fmt.Sprintf("notice [%s]:", notice.Rule)),
			notice.Description,
		)
	}

	fmt.Fprintf(r.out, "\n%s %d files scanned, %d files failed, %d violations, %d rules skipped\n",
		boldStyle.Render("summary:"),
		rep.Summary.FilesScanned,
		rep.Summary.FilesFailed,
		rep.Summary.NumViolations,
		rep.Summary.RulesSkipped,
	)

	if r.verbose && len(rep.Profile) > 0 {
		fmt.Fprintf(r.out, "\n%s\n", boldStyle.Render("top evaluation locations:"))

		for _, entry := range rep.Profile {
			fmt.Fprintf(r.out, "  %s %d ns (%d evals)\n", entry.Location, entry.TotalTimeNs, entry.NumEval)
		}
	}

	return nil
}
