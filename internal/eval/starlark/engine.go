// Package starlark implements the declarative rule evaluation engine on top
// of go.starlark.net. Declarative rules are Starlark programs exporting rule
// metadata and a report function; aggregate rules additionally export
// aggregate and aggregate_report functions.
package starlark

import (
	"context"
	"embed"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/eval"
	"github.com/reglint/reglint/internal/report"
)

// Version of the bundled rule engine.
const Version = "0.3.0"

//go:embed rules/*/*.star
var bundledRules embed.FS

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
	Recursion:       true,
}

type ruleSource struct {
	path string
	src  []byte
}

// Engine evaluates declarative Starlark rules. The zero value is not usable;
// create one with NewEngine.
type Engine struct {
	sources []ruleSource
}

// NewEngine creates an engine holding the bundled declarative rules.
func NewEngine() (*Engine, error) {
	e := &Engine{}

	err := fs.WalkDir(bundledRules, "rules", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !strings.HasSuffix(path, ".star") {
			return nil
		}

		src, err := bundledRules.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read bundled rule %s: %w", path, err)
		}

		e.sources = append(e.sources, ruleSource{path: path, src: src})

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load bundled rules: %w", err)
	}

	return e, nil
}

// Capabilities describes this engine version.
func (e *Engine) Capabilities() *config.Capabilities {
	return &config.Capabilities{
		Version: Version,
		Builtins: []string{
			CapabilityRegexMatch,
			CapabilityPrint,
			CapabilityLineSplit,
		},
	}
}

// compiledRule is one declarative rule after program execution.
type compiledRule struct {
	path            string
	category        string
	name            string
	level           string
	requiredCaps    []string
	report          starlark.Callable
	aggregate       starlark.Callable
	aggregateReport starlark.Callable
}

func (r *compiledRule) id() string {
	return r.category + "/" + r.name
}

// preparedQuery holds the active rule set for one query shape. It is safe
// for concurrent Eval calls: rule functions are pure and every call gets its
// own thread.
type preparedQuery struct {
	query     eval.Query
	rules     []*compiledRule
	notices   []report.Notice
	configMap map[string]any
	printHook io.Writer
}

// Prepare compiles all rule sources, applies rule selection and capability
// checks, and returns a query ready for evaluation.
func (e *Engine) Prepare(ctx context.Context, query eval.Query, opts eval.Options) (eval.PreparedQuery, error) {
	sources, err := e.collectSources(opts)
	if err != nil {
		return nil, err
	}

	caps := opts.Capabilities
	if caps == nil {
		caps = e.Capabilities()
	}

	pq := &preparedQuery{
		query:     query,
		configMap: opts.Config,
		printHook: opts.PrintHook,
	}

	for _, source := range sources {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: prepare cancelled: %w", eval.ErrEvaluation, err)
		}

		rule, err := compileRule(source, pq.printHook)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", eval.ErrEvaluation, err)
		}

		rule.level = levelFromConfig(opts.Config, rule.category, rule.name)

		if !opts.Params.RuleEnabled(rule.category, rule.name, rule.level) {
			continue
		}

		if missing := missingCapabilities(rule, caps); len(missing) > 0 {
			pq.notices = append(pq.notices, report.Notice{
				Rule:     rule.name,
				Category: rule.category,
				Severity: "warning",
				Description: fmt.Sprintf("rule skipped: missing capabilities: %s",
					strings.Join(missing, ", ")),
			})

			continue
		}

		pq.rules = append(pq.rules, rule)
	}

	return pq, nil
}

func (e *Engine) collectSources(opts eval.Options) ([]ruleSource, error) {
	sources := make([]ruleSource, len(e.sources))
	copy(sources, e.sources)

	for _, path := range opts.CustomRulesPaths {
		found, err := sourcesFromPath(path)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load custom rules from %s: %w", eval.ErrEvaluation, path, err)
		}

		sources = append(sources, found...)
	}

	if opts.CustomRuleFS != nil && opts.CustomRuleFSRoot != "" {
		found, err := sourcesFromFS(opts.CustomRuleFS, opts.CustomRuleFSRoot)
		if err != nil {
			return nil, fmt.Errorf("%w: failed to load custom rules from FS: %w", eval.ErrEvaluation, err)
		}

		sources = append(sources, found...)
	}

	return sources, nil
}

func sourcesFromPath(path string) ([]ruleSource, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}

	if !info.IsDir() {
		src, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}

		return []ruleSource{{path: path, src: src}}, nil
	}

	var sources []ruleSource

	err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isRuleFile(p) {
			return nil
		}

		src, err := os.ReadFile(p)
		if err != nil {
			return err
		}

		sources = append(sources, ruleSource{path: p, src: src})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sources, nil
}

func sourcesFromFS(fsys fs.FS, root string) ([]ruleSource, error) {
	var sources []ruleSource

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() || !isRuleFile(p) {
			return nil
		}

		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return err
		}

		sources = append(sources, ruleSource{path: p, src: src})

		return nil
	})
	if err != nil {
		return nil, err
	}

	return sources, nil
}

// isRuleFile matches .star rule files, excluding test files.
func isRuleFile(path string) bool {
	return strings.HasSuffix(path, ".star") && !strings.HasSuffix(path, "_test.star")
}

func compileRule(source ruleSource, printHook io.Writer) (*compiledRule, error) {
	thread := newThread(source.path, printHook)

	globals, err := starlark.ExecFileOptions(fileOptions, thread, source.path, source.src, predeclared())
	if err != nil {
		return nil, fmt.Errorf("failed to execute rule %s: %w", source.path, err)
	}

	rule := &compiledRule{path: source.path}

	rule.category, err = stringGlobal(globals, source.path, "category")
	if err != nil {
		return nil, err
	}

	rule.name, err = stringGlobal(globals, source.path, "name")
	if err != nil {
		return nil, err
	}

	if v, ok := globals["required_capabilities"]; ok {
		rule.requiredCaps, err = stringList(v)
		if err != nil {
			return nil, fmt.Errorf("rule %s: required_capabilities: %w", source.path, err)
		}
	}

	rule.report, err = callableGlobal(globals, source.path, "report", true)
	if err != nil {
		return nil, err
	}

	rule.aggregate, err = callableGlobal(globals, source.path, "aggregate", false)
	if err != nil {
		return nil, err
	}

	rule.aggregateReport, err = callableGlobal(globals, source.path, "aggregate_report", false)
	if err != nil {
		return nil, err
	}

	if (rule.aggregate == nil) != (rule.aggregateReport == nil) {
		return nil, fmt.Errorf("rule %s: aggregate and aggregate_report must be defined together", source.path)
	}

	return rule, nil
}

func stringGlobal(globals starlark.StringDict, path, name string) (string, error) {
	v, ok := globals[name]
	if !ok {
		return "", fmt.Errorf("rule %s: missing %q declaration", path, name)
	}

	s, ok := v.(starlark.String)
	if !ok {
		return "", fmt.Errorf("rule %s: %q must be a string, got %s", path, name, v.Type())
	}

	return string(s), nil
}

func callableGlobal(globals starlark.StringDict, path, name string, required bool) (starlark.Callable, error) {
	v, ok := globals[name]
	if !ok {
		if required {
			return nil, fmt.Errorf("rule %s: missing %q function", path, name)
		}

		return nil, nil
	}

	fn, ok := v.(starlark.Callable)
	if !ok {
		return nil, fmt.Errorf("rule %s: %q must be a function, got %s", path, name, v.Type())
	}

	return fn, nil
}

func levelFromConfig(configMap map[string]any, category, name string) string {
	rules, ok := configMap["rules"].(map[string]any)
	if !ok {
		return "error"
	}

	categoryRules, ok := rules[category].(map[string]any)
	if !ok {
		return "error"
	}

	ruleConf, ok := categoryRules[name].(map[string]any)
	if !ok {
		return "error"
	}

	if level, ok := ruleConf["level"].(string); ok && level != "" {
		return level
	}

	return "error"
}

func missingCapabilities(rule *compiledRule, caps *config.Capabilities) []string {
	var missing []string

	for _, required := range rule.requiredCaps {
		if !caps.HasBuiltin(required) {
			missing = append(missing, required)
		}
	}

	return missing
}

func newThread(name string, printHook io.Writer) *starlark.Thread {
	return &starlark.Thread{
		Name: name,
		Print: func(_ *starlark.Thread, msg string) {
			if printHook != nil {
				fmt.Fprintln(printHook, msg)
			}
		},
	}
}

// Eval runs the prepared rule set against one input value and returns a
// result carrying exactly one binding set.
func (pq *preparedQuery) Eval(ctx context.Context, input map[string]any, opts eval.EvalOptions) (eval.Result, error) {
	inputValue, err := pq.inputValue(input)
	if err != nil {
		return eval.Result{}, fmt.Errorf("%w: failed to convert input: %w", eval.ErrEvaluation, err)
	}

	result := eval.Result{}
	if opts.Profiling {
		result.Profile = make(map[string]report.ProfileEntry)
	}

	var violations, notices []any

	for _, notice := range pq.notices {
		notices = append(notices, map[string]any{
			"rule":        notice.Rule,
			"category":    notice.Category,
			"severity":    notice.Severity,
			"description": notice.Description,
		})
	}

	aggregates := make(map[string]any)

	if pq.query.Aggregate {
		violations, err = pq.evalAggregateRules(ctx, input, opts, &result)
	} else {
		violations, err = pq.evalFileRules(ctx, input, inputValue, opts, aggregates, &result)
	}

	if err != nil {
		return eval.Result{}, err
	}

	binding := map[string]any{
		"violations": emptyWhenNil(violations),
		"notices":    emptyWhenNil(notices),
	}

	if pq.query.Collect {
		binding["aggregates"] = aggregates
	}

	result.Sets = []eval.Bindings{{pq.query.Binding: binding}}

	return result, nil
}

func (pq *preparedQuery) evalFileRules(
	ctx context.Context,
	input map[string]any,
	inputValue starlark.Value,
	opts eval.EvalOptions,
	aggregates map[string]any,
	result *eval.Result,
) ([]any, error) {
	fileName := inputFileName(input)

	var violations []any

	for _, rule := range pq.rules {
		items, err := pq.callRule(ctx, rule, rule.report, "report", inputValue, opts, result)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			violation, err := pq.violationFromItem(rule, item, fileName)
			if err != nil {
				return nil, err
			}

			violations = append(violations, violation)
		}

		if pq.query.Collect && rule.aggregate != nil {
			facts, err := pq.callRule(ctx, rule, rule.aggregate, "aggregate", inputValue, opts, result)
			if err != nil {
				return nil, err
			}

			if len(facts) > 0 {
				existing, _ := aggregates[rule.id()].([]any)
				aggregates[rule.id()] = append(existing, facts...)
			}
		}
	}

	return violations, nil
}

func (pq *preparedQuery) evalAggregateRules(
	ctx context.Context,
	input map[string]any,
	opts eval.EvalOptions,
	result *eval.Result,
) ([]any, error) {
	routed, ok := input["aggregates_internal"].(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: aggregate query input carries no aggregates_internal", eval.ErrEvaluation)
	}

	rulesByID := make(map[string]*compiledRule, len(pq.rules))
	for _, rule := range pq.rules {
		rulesByID[rule.id()] = rule
	}

	fileName := inputFileName(input)

	var violations []any

	for id := range routed {
		rule, ok := rulesByID[id]
		if !ok || rule.aggregateReport == nil {
			return nil, fmt.Errorf("%w: aggregate facts found for rule %s which cannot consume them",
				eval.ErrConsistency, id)
		}
	}

	for _, rule := range pq.rules {
		if rule.aggregateReport == nil {
			continue
		}

		facts, ok := routed[rule.id()]
		if !ok {
			continue
		}

		// Each rule sees only the facts it produced itself.
		ruleInput, err := toStarlark(map[string]any{
			"aggregates": facts,
			"reglint":    reglintSection(input, pq.configMap),
		})
		if err != nil {
			return nil, fmt.Errorf("%w: failed to convert aggregate input: %w", eval.ErrEvaluation, err)
		}

		items, err := pq.callRule(ctx, rule, rule.aggregateReport, "aggregate_report", ruleInput, opts, result)
		if err != nil {
			return nil, err
		}

		for _, item := range items {
			violation, err := pq.violationFromItem(rule, item, fileName)
			if err != nil {
				return nil, err
			}

			violations = append(violations, violation)
		}
	}

	return violations, nil
}

// callRule invokes one rule function on its own thread, recording profiling
// data when requested. The thread is cancelled if ctx is done.
func (pq *preparedQuery) callRule(
	ctx context.Context,
	rule *compiledRule,
	fn starlark.Callable,
	fnName string,
	input starlark.Value,
	opts eval.EvalOptions,
	result *eval.Result,
) ([]any, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: evaluation cancelled: %w", eval.ErrEvaluation, err)
	}

	thread := newThread(rule.path, pq.printHook)

	done := make(chan struct{})
	defer close(done)

	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel("lint cancelled")
		case <-done:
		}
	}()

	started := time.Now()

	value, err := starlark.Call(thread, fn, starlark.Tuple{input}, nil)

	if opts.Profiling {
		location := rule.path + ":" + fnName
		entry := result.Profile[location]
		entry.Location = location
		entry.TotalTimeNs += time.Since(started).Nanoseconds()
		entry.NumEval++
		result.Profile[location] = entry
	}

	if err != nil {
		return nil, fmt.Errorf("%w: rule %s failed in %s: %w", eval.ErrEvaluation, rule.id(), fnName, err)
	}

	goValue, err := fromStarlark(value)
	if err != nil {
		return nil, fmt.Errorf("%w: rule %s returned invalid value: %w", eval.ErrEvaluation, rule.id(), err)
	}

	if goValue == nil {
		return nil, nil
	}

	items, ok := goValue.([]any)
	if !ok {
		return nil, fmt.Errorf("%w: rule %s must return a list, got %T", eval.ErrEvaluation, rule.id(), goValue)
	}

	return items, nil
}

// violationFromItem fills in rule identity and location defaults around the
// fields the rule returned.
func (pq *preparedQuery) violationFromItem(rule *compiledRule, item any, defaultFile string) (map[string]any, error) {
	fields, ok := item.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("%w: rule %s returned a non-dict violation: %T", eval.ErrEvaluation, rule.id(), item)
	}

	description, _ := fields["description"].(string)
	if description == "" {
		return nil, fmt.Errorf("%w: rule %s returned a violation without description", eval.ErrEvaluation, rule.id())
	}

	location := map[string]any{"file": defaultFile}
	if file, ok := fields["file"].(string); ok && file != "" {
		location["file"] = file
	}

	for _, key := range []string{"row", "col"} {
		if v, ok := fields[key]; ok {
			location[key] = v
		}
	}

	if text, ok := fields["text"].(string); ok && text != "" {
		location["text"] = text
	}

	return map[string]any{
		"rule":        rule.name,
		"category":    rule.category,
		"level":       rule.level,
		"description": description,
		"location":    location,
	}, nil
}

// inputValue builds the Starlark input for per-file rules, with the combined
// configuration exposed under reglint.config.
func (pq *preparedQuery) inputValue(input map[string]any) (starlark.Value, error) {
	enriched := make(map[string]any, len(input))
	for k, v := range input {
		enriched[k] = v
	}

	enriched["reglint"] = reglintSection(input, pq.configMap)

	return toStarlark(enriched)
}

func reglintSection(input map[string]any, configMap map[string]any) map[string]any {
	section := make(map[string]any)

	if existing, ok := input["reglint"].(map[string]any); ok {
		for k, v := range existing {
			section[k] = v
		}
	}

	if configMap != nil {
		section["config"] = configMap
	}

	return section
}

func inputFileName(input map[string]any) string {
	if section, ok := input["reglint"].(map[string]any); ok {
		if file, ok := section["file"].(map[string]any); ok {
			if name, ok := file["name"].(string); ok {
				return name
			}
		}
	}

	return ""
}

func emptyWhenNil(items []any) []any {
	if items == nil {
		return []any{}
	}

	return items
}
