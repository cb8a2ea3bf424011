package rules

import (
	"context"
	"fmt"
	"regexp"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/report"
)

var todoRegexp = regexp.MustCompile(`(?i)^(todo|fixme)\b`)

// TodoCommentRule flags TODO and FIXME comments left in policy files.
type TodoCommentRule struct {
	configuredRule
}

// NewTodoCommentRule creates the todo-comment rule from the provided config.
func NewTodoCommentRule(conf config.Config) *TodoCommentRule {
	return &TodoCommentRule{newConfiguredRule(conf, "style", "todo-comment")}
}

// Run scans the comments of every input module.
func (r *TodoCommentRule) Run(ctx context.Context, input Input) (report.Report, error) {
	result := report.Report{}

	for _, name := range input.FileNames {
		if err := ctx.Err(); err != nil {
			return report.Report{}, fmt.Errorf("todo-comment rule cancelled: %w", err)
		}

		for _, comment := range input.Modules[name].Comments {
			if !todoRegexp.MatchString(comment.Text) {
				continue
			}

			result.Violations = append(result.Violations, report.Violation{
				Rule:        r.name,
				Category:    r.category,
				Level:       r.config.Level,
				Description: "avoid TODO comments",
				Location: report.Location{
					File: name,
					Row:  comment.Row,
					Text: comment.Text,
				},
			})
		}
	}

	return result, nil
}
