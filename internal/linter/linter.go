// Package linter orchestrates a lint run: configuration resolution, rule
// selection, file filtering, the sequential native rule phase, the
// concurrent declarative phase, the cross-file aggregate phase, and the
// merge of all partial results into one report.
package linter

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/eval"
	"github.com/reglint/reglint/internal/metrics"
	"github.com/reglint/reglint/internal/parse"
	"github.com/reglint/reglint/internal/report"
	"github.com/reglint/reglint/internal/rules"
)

// aggregateReportFile is the sentinel file name used as input during the
// aggregate phase, which has no real file to point at.
const aggregateReportFile = "__aggregate_report__"

// profileTopLocations bounds both the per-file and the final profile tables.
const profileTopLocations = 10

// Options configures a lint run. The value is read-only once handed to New;
// there is no shared mutable state across calls.
type Options struct {
	// InputPaths are the files and directories to lint, filtered according
	// to the ignore configuration.
	InputPaths []string
	// InputModules are pre-parsed modules to lint, for programmatic use.
	InputModules *rules.Input
	// UserConfig overrides parts of the provided configuration.
	UserConfig *config.Config
	// Evaluator runs declarative rules. When nil, only native rules run.
	Evaluator eval.Evaluator
	// CustomRulesPaths point at additional declarative rule files.
	CustomRulesPaths []string
	// CustomRuleFS and CustomRuleFSRoot load additional declarative rules
	// from a filesystem.
	CustomRuleFS     fs.FS
	CustomRuleFSRoot string
	// Debug enables config dumps and rule print output.
	Debug bool
	// PrintHook receives print output from declarative rules. Defaults to
	// stderr in debug mode.
	PrintHook io.Writer

	// Rule selection flags. Precedence: disable-all and enable-all first,
	// then disable > enable > disable-category > enable-category, then the
	// configured level.
	Disable         []string
	DisableAll      bool
	DisableCategory []string
	Enable          []string
	EnableAll       bool
	EnableCategory  []string

	// IgnoreFiles overrides the configured ignore patterns.
	IgnoreFiles []string

	// Metrics enables timer collection when non-nil.
	Metrics *metrics.Metrics
	// Profiling captures the most expensive evaluation locations.
	Profiling bool
}

// Linter runs lint passes for a fixed set of options.
type Linter struct {
	opts     Options
	combined *config.Config
}

// New creates a linter from the given options.
func New(opts Options) *Linter {
	if opts.Debug && opts.PrintHook == nil {
		opts.PrintHook = os.Stderr
	}

	return &Linter{opts: opts}
}

// Lint runs the linter over the configured input. On any error, no report
// is returned, not even a partial one.
func (l *Linter) Lint(ctx context.Context) (report.Report, error) {
	l.startTimer(metrics.Lint)
	defer l.stopTimer(metrics.Lint)

	if len(l.opts.InputPaths) == 0 && l.opts.InputModules == nil {
		return report.Report{}, errors.New("nothing provided to lint")
	}

	conf, err := l.resolveConfig()
	if err != nil {
		return report.Report{}, err
	}

	l.combined = &conf

	ignore := conf.Ignore.Files
	if len(l.opts.IgnoreFiles) > 0 {
		ignore = l.opts.IgnoreFiles
	}

	input, err := l.resolveInput(ignore)
	if err != nil {
		return report.Report{}, err
	}

	finalReport := report.Report{}

	nativeReport, err := l.lintWithNativeRules(ctx, input)
	if err != nil {
		return report.Report{}, fmt.Errorf("failed to lint using native rules: %w", err)
	}

	finalReport.Violations = append(finalReport.Violations, nativeReport.Violations...)

	declarativeReport := report.Report{}

	if l.opts.Evaluator != nil {
		declarativeReport, err = l.lintWithDeclarativeRules(ctx, input)
		if err != nil {
			return report.Report{}, fmt.Errorf("failed to lint using declarative rules: %w", err)
		}

		finalReport.Violations = append(finalReport.Violations, declarativeReport.Violations...)
		finalReport.Aggregates = declarativeReport.Aggregates
	}

	rulesSkipped := 0

	for _, notice := range declarativeReport.Notices {
		if !containsNotice(finalReport.Notices, notice) {
			finalReport.Notices = append(finalReport.Notices, notice)

			if notice.Severity != "none" {
				rulesSkipped++
			}
		}
	}

	if len(input.FileNames) > 1 && l.opts.Evaluator != nil {
		aggregateReport, err := l.lintWithAggregateRules(ctx, declarativeReport.Aggregates)
		if err != nil {
			return report.Report{}, fmt.Errorf("failed to lint using aggregate rules: %w", err)
		}

		finalReport.Violations = append(finalReport.Violations, aggregateReport.Violations...)
	}

	finalReport.Summary = report.Summary{
		FilesScanned:  len(input.FileNames),
		FilesFailed:   len(finalReport.ViolationsFileCount()),
		RulesSkipped:  rulesSkipped,
		NumViolations: len(finalReport.Violations),
	}

	if l.opts.Metrics != nil {
		l.opts.Metrics.Timer(metrics.Lint).Stop()
		finalReport.Metrics = l.opts.Metrics.All()
	}

	if l.opts.Profiling {
		finalReport.AggregateProfile = declarativeReport.AggregateProfile
		finalReport.AggregateProfileToSortedProfile(profileTopLocations)
		finalReport.AggregateProfile = nil
	}

	return finalReport, nil
}

// resolveConfig merges provided and user configuration and fills in the
// capability descriptor of the evaluator when the configuration has none.
func (l *Linter) resolveConfig() (config.Config, error) {
	if l.combined != nil {
		return *l.combined, nil
	}

	provided, err := config.Provided()
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: failed to read provided config: %w", ErrConfig, err)
	}

	merged, err := config.Merge(provided, l.opts.UserConfig)
	if err != nil {
		return config.Config{}, fmt.Errorf("%w: %w", ErrConfig, err)
	}

	if merged.Capabilities == nil && l.opts.Evaluator != nil {
		merged.Capabilities = l.opts.Evaluator.Capabilities()
	}

	if l.opts.Debug {
		if bs, err := yaml.Marshal(merged); err == nil {
			slog.Debug("merged provided and user config", "config", string(bs))
		}
	}

	return merged, nil
}

// resolveInput filters the input paths, reads and parses the survivors, and
// merges in any programmatically provided modules after filtering them the
// same way.
func (l *Linter) resolveInput(ignore []string) (rules.Input, error) {
	l.startTimer(metrics.FilterIgnoredFiles)

	filtered, err := config.FilterIgnoredPaths(l.opts.InputPaths, ignore, true)
	if err != nil {
		return rules.Input{}, fmt.Errorf("%w: failed to filter paths: %w", ErrInput, err)
	}

	l.stopTimer(metrics.FilterIgnoredFiles)
	l.startTimer(metrics.InputParse)

	input, err := rules.InputFromPaths(filtered)
	if err != nil {
		return rules.Input{}, fmt.Errorf("%w: failed to read files to lint: %w", ErrInput, err)
	}

	l.stopTimer(metrics.InputParse)

	if l.opts.InputModules != nil {
		l.startTimer(metrics.FilterInputModules)

		filteredNames, err := config.FilterIgnoredPaths(l.opts.InputModules.FileNames, ignore, false)
		if err != nil {
			return rules.Input{}, fmt.Errorf("%w: failed to filter input modules: %w", ErrInput, err)
		}

		for _, name := range filteredNames {
			input.FileNames = append(input.FileNames, name)
			input.FileContent[name] = l.opts.InputModules.FileContent[name]
			input.Modules[name] = l.opts.InputModules.Modules[name]
		}

		l.stopTimer(metrics.FilterInputModules)
	}

	return input, nil
}

// params returns the flag surface for rule selection.
func (l *Linter) params() eval.Params {
	return eval.Params{
		Disable:         l.opts.Disable,
		DisableAll:      l.opts.DisableAll,
		DisableCategory: l.opts.DisableCategory,
		Enable:          l.opts.Enable,
		EnableAll:       l.opts.EnableAll,
		EnableCategory:  l.opts.EnableCategory,
		IgnoreFiles:     l.opts.IgnoreFiles,
	}
}

// enabledNativeRules selects native rules under the same precedence chain
// that governs declarative rules.
func (l *Linter) enabledNativeRules() ([]rules.Rule, error) {
	conf, err := l.resolveConfig()
	if err != nil {
		return nil, err
	}

	params := l.params()

	var enabled []rules.Rule

	for _, rule := range rules.AllRules(conf) {
		if params.RuleEnabled(rule.Category(), rule.Name(), rule.Config().Level) {
			enabled = append(enabled, rule)
		}
	}

	return enabled, nil
}

// lintWithNativeRules runs the native rules, strictly sequentially, each
// against the input minus its rule-level ignore patterns.
func (l *Linter) lintWithNativeRules(ctx context.Context, input rules.Input) (report.Report, error) {
	l.startTimer(metrics.LintNativeRules)
	defer l.stopTimer(metrics.LintNativeRules)

	nativeRules, err := l.enabledNativeRules()
	if err != nil {
		return report.Report{}, err
	}

	aggregate := report.Report{}

	for _, rule := range nativeRules {
		ruleInput, err := inputForRule(input, rule)
		if err != nil {
			return report.Report{}, fmt.Errorf("%w: failed to filter input for rule %s: %w", ErrInput, rule.Name(), err)
		}

		result, err := rule.Run(ctx, ruleInput)
		if err != nil {
			return report.Report{}, fmt.Errorf("native rule %s failed: %w", rule.Name(), err)
		}

		aggregate.Violations = append(aggregate.Violations, result.Violations...)
	}

	return aggregate, nil
}

// lintWithDeclarativeRules fans out one task per file, all sharing one
// cancellation scope. The first failing task cancels the rest, and only its
// error is reported; nothing is merged from a failed phase.
func (l *Linter) lintWithDeclarativeRules(ctx context.Context, input rules.Input) (report.Report, error) {
	l.startTimer(metrics.LintDeclarative)
	defer l.stopTimer(metrics.LintDeclarative)

	query := eval.LintQuery
	if len(input.FileNames) > 1 {
		query = eval.LintAndCollectQuery
	}

	pq, err := l.prepareQuery(ctx, query)
	if err != nil {
		return report.Report{}, err
	}

	aggregate := report.Report{Aggregates: make(map[string][]report.Aggregate)}

	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)

	for _, name := range input.FileNames {
		g.Go(func() error {
			enriched, err := parse.PrepareAST(name, input.FileContent[name], input.Modules[name])
			if err != nil {
				return fmt.Errorf("failed preparing AST for %s: %w", name, err)
			}

			result, err := pq.Eval(ctx, enriched, eval.EvalOptions{
				Profiling: l.opts.Profiling,
				Metrics:   l.opts.Metrics,
			})
			if err != nil {
				return fmt.Errorf("evaluation failed for %s: %w", name, err)
			}

			fileReport, err := resultToReport(result)
			if err != nil {
				return fmt.Errorf("malformed result for %s: %w", name, err)
			}

			var profile map[string]report.ProfileEntry
			if l.opts.Profiling {
				// Only the costliest locations of this single file; the
				// final report truncates again after merging.
				profile = topProfileEntries(result.Profile, profileTopLocations)
			}

			mu.Lock()
			defer mu.Unlock()

			aggregate.Violations = append(aggregate.Violations, fileReport.Violations...)
			aggregate.Notices = append(aggregate.Notices, fileReport.Notices...)

			for k := range fileReport.Aggregates {
				aggregate.Aggregates[k] = append(aggregate.Aggregates[k], fileReport.Aggregates[k]...)
			}

			if l.opts.Profiling {
				aggregate.AddProfileEntries(profile)
			}

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return report.Report{}, err
	}

	return aggregate, nil
}

// lintWithAggregateRules runs phase two over the collected facts, using a
// synthetic single-file input so rules inspecting file context still get a
// well-formed structure.
func (l *Linter) lintWithAggregateRules(
	ctx context.Context,
	aggregates map[string][]report.Aggregate,
) (report.Report, error) {
	l.startTimer(metrics.LintAggregate)
	defer l.stopTimer(metrics.LintAggregate)

	pq, err := l.prepareQuery(ctx, eval.LintAggregateQuery)
	if err != nil {
		return report.Report{}, err
	}

	routed := make(map[string]any, len(aggregates))
	for ruleID, facts := range aggregates {
		items := make([]any, 0, len(facts))
		for _, fact := range facts {
			items = append(items, map[string]any(fact))
		}

		routed[ruleID] = items
	}

	input := map[string]any{
		"aggregates_internal": routed,
		"reglint": map[string]any{
			"file": map[string]any{
				"name":  aggregateReportFile,
				"lines": []any{},
			},
		},
	}

	result, err := pq.Eval(ctx, input, eval.EvalOptions{Metrics: l.opts.Metrics})
	if err != nil {
		return report.Report{}, fmt.Errorf("aggregate evaluation failed: %w", err)
	}

	return resultToReport(result)
}

// prepareQuery compiles one of the static queries with the combined
// configuration and flag surface.
func (l *Linter) prepareQuery(ctx context.Context, query eval.Query) (eval.PreparedQuery, error) {
	l.startTimer(metrics.PrepareEvaluation)
	defer l.stopTimer(metrics.PrepareEvaluation)

	confMap, err := config.ToMap(*l.combined)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to convert config: %w", ErrConfig, err)
	}

	pq, err := l.opts.Evaluator.Prepare(ctx, query, eval.Options{
		Config:           confMap,
		Capabilities:     l.combined.Capabilities,
		Params:           l.params(),
		CustomRulesPaths: l.opts.CustomRulesPaths,
		CustomRuleFS:     l.opts.CustomRuleFS,
		CustomRuleFSRoot: l.opts.CustomRuleFSRoot,
		PrintHook:        l.opts.PrintHook,
	})
	if err != nil {
		return nil, fmt.Errorf("failed preparing query for linting: %w", err)
	}

	return pq, nil
}

// resultToReport converts an engine result into a report. The result must
// contain exactly one binding set.
func resultToReport(result eval.Result) (report.Report, error) {
	if len(result.Sets) != 1 {
		return report.Report{}, fmt.Errorf("%w: expected 1 binding set in result, got %d",
			eval.ErrEvaluation, len(result.Sets))
	}

	r := report.Report{}

	for _, binding := range []string{"lint", "lint_aggregate"} {
		if value, ok := result.Sets[0][binding]; ok {
			if err := jsonRoundTrip(value, &r); err != nil {
				return report.Report{}, fmt.Errorf("%w: decoding %s binding failed: %w",
					eval.ErrEvaluation, binding, err)
			}
		}
	}

	return r, nil
}

func jsonRoundTrip(from any, to any) error {
	bs, err := json.Marshal(from)
	if err != nil {
		return err
	}

	return json.Unmarshal(bs, to)
}

// inputForRule removes the files matched by a native rule's own ignore
// patterns.
func inputForRule(input rules.Input, rule rules.Rule) (rules.Input, error) {
	ignore := rule.Config().Ignore
	if ignore == nil || len(ignore.Files) == 0 {
		return input, nil
	}

	return filterInputFiles(input, ignore.Files)
}

// filterInputFiles filters file names, content and modules in lock-step, so
// every surviving name has exactly one content and one module entry.
func filterInputFiles(input rules.Input, ignore []string) (rules.Input, error) {
	n := len(input.FileNames)
	filtered := rules.Input{
		FileNames:   make([]string, 0, n),
		FileContent: make(map[string]string, n),
		Modules:     make(map[string]*parse.Module, n),
	}

outer:
	for _, name := range input.FileNames {
		for _, pattern := range ignore {
			if pattern == "" {
				continue
			}

			excluded, err := config.ExcludeFile(pattern, name)
			if err != nil {
				return rules.Input{}, err
			}

			if excluded {
				continue outer
			}
		}

		filtered.FileNames = append(filtered.FileNames, name)
		filtered.FileContent[name] = input.FileContent[name]
		filtered.Modules[name] = input.Modules[name]
	}

	return filtered, nil
}

func topProfileEntries(profile map[string]report.ProfileEntry, n int) map[string]report.ProfileEntry {
	if len(profile) <= n {
		return profile
	}

	tmp := report.Report{AggregateProfile: profile}
	tmp.AggregateProfileToSortedProfile(n)

	top := make(map[string]report.ProfileEntry, n)
	for _, entry := range tmp.Profile {
		top[entry.Location] = entry
	}

	return top
}

func containsNotice(notices []report.Notice, notice report.Notice) bool {
	for _, n := range notices {
		if n == notice {
			return true
		}
	}

	return false
}

func (l *Linter) startTimer(name string) {
	if l.opts.Metrics != nil {
		l.opts.Metrics.Timer(name).Start()
	}
}

func (l *Linter) stopTimer(name string) {
	if l.opts.Metrics != nil {
		l.opts.Metrics.Timer(name).Stop()
	}
}
