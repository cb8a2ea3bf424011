package rules

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/report"
)

// LineLengthRule flags lines longer than the configured maximum.
type LineLengthRule struct {
	configuredRule
}

// NewLineLengthRule creates the line-length rule from the provided config.
func NewLineLengthRule(conf config.Config) *LineLengthRule {
	return &LineLengthRule{newConfiguredRule(conf, "style", "line-length")}
}

// Run checks every line of every input file against the maximum length.
func (r *LineLengthRule) Run(ctx context.Context, input Input) (report.Report, error) {
	result := report.Report{}
	maxLen := intParam(r.config, "max-line-length", 120)

	for _, name := range input.FileNames {
		if err := ctx.Err(); err != nil {
			return report.Report{}, fmt.Errorf("line-length rule cancelled: %w", err)
		}

		for i, line := range strings.Split(input.FileContent[name], "\n") {
			length := utf8.RuneCountInString(strings.TrimSuffix(line, "\r"))
			if length <= maxLen {
				continue
			}

			result.Violations = append(result.Violations, report.Violation{
				Rule:        r.name,
				Category:    r.category,
				Level:       r.config.Level,
				Description: fmt.Sprintf("line is %d characters long, max is %d", length, maxLen),
				Location: report.Location{
					File:   name,
					Row:    i + 1,
					Column: maxLen + 1,
					Text:   line,
				},
			})
		}
	}

	return result, nil
}
