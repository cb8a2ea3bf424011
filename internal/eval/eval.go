// Package eval defines the contract between the lint orchestrator and the
// declarative rule evaluation engine. The engine itself is replaceable;
// anything implementing Evaluator can drive declarative rules.
package eval

import (
	"context"
	"errors"
	"io"
	"io/fs"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/metrics"
	"github.com/reglint/reglint/internal/report"
)

// Errors surfaced by engine invocations.
var (
	// ErrEvaluation marks engine failures and malformed result shapes.
	ErrEvaluation = errors.New("evaluation error")
	// ErrConsistency marks aggregate facts routed to a rule that cannot
	// consume them.
	ErrConsistency = errors.New("consistency error")
)

// Query selects the shape of an engine invocation. The three queries used
// by the linter are process-wide immutable values, never mutated after
// initialization.
type Query struct {
	// Binding is the name of the single binding the result set must carry.
	Binding string
	// Collect makes the per-file query also harvest aggregate facts.
	Collect bool
	// Aggregate marks the cross-file phase-two query.
	Aggregate bool
}

// The static queries used by the linter.
var (
	// LintQuery is used when a single file is provided as input.
	LintQuery = Query{Binding: "lint"}
	// LintAndCollectQuery is used when more than one file is provided.
	LintAndCollectQuery = Query{Binding: "lint", Collect: true}
	// LintAggregateQuery drives the cross-file aggregate phase.
	LintAggregateQuery = Query{Binding: "lint_aggregate", Aggregate: true}
)

// Bindings is one binding set returned from an engine invocation.
type Bindings map[string]any

// Result is the outcome of evaluating a prepared query against one input.
type Result struct {
	// Sets holds the returned binding sets. The orchestrator requires
	// exactly one.
	Sets []Bindings
	// Profile holds per-location evaluation cost, populated only when
	// profiling was requested.
	Profile map[string]report.ProfileEntry
}

// Params is the flag surface influencing rule selection, forwarded to the
// engine so declarative rules are selected under the same precedence chain
// as native ones.
type Params struct {
	Disable         []string
	DisableAll      bool
	DisableCategory []string
	Enable          []string
	EnableAll       bool
	EnableCategory  []string
	IgnoreFiles     []string
}

// RuleEnabled decides whether a rule is part of the enabled set. The
// decision is a pure function of the rule's identity, its configured level,
// and the params: first match in the precedence chain wins, independently
// for every rule.
func (p Params) RuleEnabled(category, name, level string) bool {
	if p.DisableAll {
		return contains(p.Enable, name) || contains(p.EnableCategory, category)
	}

	if p.EnableAll {
		return !contains(p.Disable, name) && !contains(p.DisableCategory, category)
	}

	if contains(p.Disable, name) {
		return false
	}

	if contains(p.Enable, name) {
		return true
	}

	if contains(p.DisableCategory, category) {
		return false
	}

	if contains(p.EnableCategory, category) {
		return true
	}

	return level != "ignore"
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}

	return false
}

// Options configures query preparation.
type Options struct {
	// Config is the combined configuration as generic data, made available
	// to declarative rules.
	Config map[string]any
	// Capabilities of the configuration in effect; rules requiring absent
	// builtins are skipped with a notice.
	Capabilities *config.Capabilities
	// Params is the rule selection flag surface.
	Params Params
	// CustomRulesPaths points at additional declarative rule files.
	CustomRulesPaths []string
	// CustomRuleFS and CustomRuleFSRoot load additional declarative rules
	// from a filesystem. Test files are excluded.
	CustomRuleFS     fs.FS
	CustomRuleFSRoot string
	// PrintHook receives print output from rules, when non-nil.
	PrintHook io.Writer
}

// EvalOptions configures a single evaluation.
type EvalOptions struct {
	Profiling bool
	Metrics   *metrics.Metrics
}

// PreparedQuery is a compiled query ready for repeated evaluation, safe for
// concurrent use.
type PreparedQuery interface {
	Eval(ctx context.Context, input map[string]any, opts EvalOptions) (Result, error)
}

// Evaluator is the external evaluation engine as seen by the orchestrator.
type Evaluator interface {
	// Prepare compiles the rule set for the given query shape.
	Prepare(ctx context.Context, query Query, opts Options) (PreparedQuery, error)
	// Capabilities describes the running engine version.
	Capabilities() *config.Capabilities
}
