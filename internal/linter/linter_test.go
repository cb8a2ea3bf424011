package linter

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/eval"
	"github.com/reglint/reglint/internal/eval/starlark"
	"github.com/reglint/reglint/internal/metrics"
	"github.com/reglint/reglint/internal/parse"
	"github.com/reglint/reglint/internal/rules"
)

// fakeEvaluator lets tests script both query preparation and evaluation.
type fakeEvaluator struct {
	prepared []eval.Query
	evalFn   func(query eval.Query, input map[string]any) (eval.Result, error)
}

func (f *fakeEvaluator) Prepare(_ context.Context, query eval.Query, _ eval.Options) (eval.PreparedQuery, error) {
	f.prepared = append(f.prepared, query)

	return &fakePrepared{query: query, evalFn: f.evalFn}, nil
}

func (f *fakeEvaluator) Capabilities() *config.Capabilities {
	return &config.Capabilities{Version: "test"}
}

type fakePrepared struct {
	query  eval.Query
	evalFn func(query eval.Query, input map[string]any) (eval.Result, error)
}

func (f *fakePrepared) Eval(_ context.Context, input map[string]any, _ eval.EvalOptions) (eval.Result, error) {
	if f.evalFn == nil {
		return singleSet(f.query.Binding, map[string]any{
			"violations": []any{},
			"notices":    []any{},
		}), nil
	}

	return f.evalFn(f.query, input)
}

func singleSet(binding string, value map[string]any) eval.Result {
	return eval.Result{Sets: []eval.Bindings{{binding: value}}}
}

func inputName(input map[string]any) string {
	section, _ := input["reglint"].(map[string]any)
	file, _ := section["file"].(map[string]any)
	name, _ := file["name"].(string)

	return name
}

func fileViolation(file string) map[string]any {
	return map[string]any{
		"rule":        "fake-rule",
		"category":    "testing",
		"level":       "error",
		"description": "fake finding",
		"location":    map[string]any{"file": file, "row": 1},
	}
}

func modulesInput(t *testing.T, files map[string]string) *rules.Input {
	t.Helper()

	content := make(map[string]string, len(files))
	modules := make(map[string]*parse.Module, len(files))

	for name, text := range files {
		module, err := parse.ModuleFromString(name, text)
		require.NoError(t, err)

		content[name] = text
		modules[name] = module
	}

	input := rules.NewInput(content, modules)

	return &input
}

func TestLintNothingProvided(t *testing.T) {
	t.Parallel()

	_, err := New(Options{}).Lint(context.Background())
	require.Error(t, err)
}

func TestLintNativeRulesOnly(t *testing.T) {
	t.Parallel()

	linter := New(Options{
		InputModules: modulesInput(t, map[string]string{
			"a.rego": "package a\n\n# TODO: clean this up\n",
			"b.rego": "package b\n",
		}),
	})

	result, err := linter.Lint(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Violations, 1)
	require.Equal(t, "todo-comment", result.Violations[0].Rule)
	require.Equal(t, "a.rego", result.Violations[0].Location.File)

	require.Equal(t, 2, result.Summary.FilesScanned)
	require.Equal(t, 1, result.Summary.FilesFailed)
	require.Equal(t, 1, result.Summary.NumViolations)
}

func TestLintIgnoreFilesOverride(t *testing.T) {
	t.Parallel()

	linter := New(Options{
		InputModules: modulesInput(t, map[string]string{
			"vendor/a.rego": "package a\n\n# TODO: clean this up\n",
			"lib/b.rego":    "package b\n",
		}),
		IgnoreFiles: []string{"vendor/**"},
	})

	result, err := linter.Lint(context.Background())
	require.NoError(t, err)

	require.Empty(t, result.Violations)
	require.Equal(t, 1, result.Summary.FilesScanned)
}

func TestLintDisableAllWithEnable(t *testing.T) {
	t.Parallel()

	content := "package p\n\n# TODO: later\n"

	linter := New(Options{
		InputModules: modulesInput(t, map[string]string{"p.rego": content}),
		DisableAll:   true,
		Enable:       []string{"todo-comment"},
	})

	result, err := linter.Lint(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Violations, 1)
	require.Equal(t, "todo-comment", result.Violations[0].Rule)

	disabled := New(Options{
		InputModules: modulesInput(t, map[string]string{"p.rego": content}),
		DisableAll:   true,
	})

	result, err = disabled.Lint(context.Background())
	require.NoError(t, err)
	require.Empty(t, result.Violations)
}

func TestLintDeclarativeMergesAllFiles(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	for i := range 5 {
		files[fmt.Sprintf("p%d.rego", i)] = fmt.Sprintf("package p%d\n", i)
	}

	evaluator := &fakeEvaluator{
		evalFn: func(query eval.Query, input map[string]any) (eval.Result, error) {
			if query.Aggregate {
				return singleSet(query.Binding, map[string]any{
					"violations": []any{},
					"notices":    []any{},
				}), nil
			}

			return singleSet(query.Binding, map[string]any{
				"violations": []any{fileViolation(inputName(input))},
				"notices":    []any{},
				"aggregates": map[string]any{},
			}), nil
		},
	}

	linter := New(Options{
		InputModules: modulesInput(t, files),
		Evaluator:    evaluator,
	})

	result, err := linter.Lint(context.Background())
	require.NoError(t, err)
	require.Len(t, result.Violations, 5)

	var seen []string
	for _, violation := range result.Violations {
		seen = append(seen, violation.Location.File)
	}

	sort.Strings(seen)
	require.Equal(t, []string{"p0.rego", "p1.rego", "p2.rego", "p3.rego", "p4.rego"}, seen)
	require.Equal(t, 5, result.Summary.FilesFailed)
}

func TestLintOneFailingFileFailsTheRun(t *testing.T) {
	t.Parallel()

	files := map[string]string{}
	for i := range 5 {
		files[fmt.Sprintf("p%d.rego", i)] = fmt.Sprintf("package p%d\n", i)
	}

	boom := errors.New("rule exploded")

	evaluator := &fakeEvaluator{
		evalFn: func(query eval.Query, input map[string]any) (eval.Result, error) {
			if inputName(input) == "p2.rego" {
				return eval.Result{}, boom
			}

			return singleSet(query.Binding, map[string]any{
				"violations": []any{fileViolation(inputName(input))},
				"notices":    []any{},
				"aggregates": map[string]any{},
			}), nil
		},
	}

	linter := New(Options{
		InputModules: modulesInput(t, files),
		Evaluator:    evaluator,
	})

	result, err := linter.Lint(context.Background())
	require.ErrorIs(t, err, boom)
	require.Empty(t, result.Violations)
	require.Zero(t, result.Summary)
}

func TestLintAggregatePhaseOnlyForMultipleFiles(t *testing.T) {
	t.Parallel()

	single := &fakeEvaluator{}

	_, err := New(Options{
		InputModules: modulesInput(t, map[string]string{"a.rego": "package a\n"}),
		Evaluator:    single,
	}).Lint(context.Background())
	require.NoError(t, err)
	require.Equal(t, []eval.Query{eval.LintQuery}, single.prepared)

	var aggregateFacts int

	multi := &fakeEvaluator{
		evalFn: func(query eval.Query, input map[string]any) (eval.Result, error) {
			if query.Aggregate {
				routed, _ := input["aggregates_internal"].(map[string]any)
				facts, _ := routed["testing/fake-rule"].([]any)
				aggregateFacts = len(facts)

				require.Equal(t, aggregateReportFile, inputName(input))

				return singleSet(query.Binding, map[string]any{
					"violations": []any{fileViolation(aggregateReportFile)},
					"notices":    []any{},
				}), nil
			}

			return singleSet(query.Binding, map[string]any{
				"violations": []any{},
				"notices":    []any{},
				"aggregates": map[string]any{
					"testing/fake-rule": []any{map[string]any{"file": inputName(input)}},
				},
			}), nil
		},
	}

	result, err := New(Options{
		InputModules: modulesInput(t, map[string]string{"a.rego": "package a\n", "b.rego": "package b\n"}),
		Evaluator:    multi,
	}).Lint(context.Background())
	require.NoError(t, err)

	require.Equal(t, []eval.Query{eval.LintAndCollectQuery, eval.LintAggregateQuery}, multi.prepared)
	require.Equal(t, 2, aggregateFacts)
	require.Len(t, result.Violations, 1)
	require.Equal(t, aggregateReportFile, result.Violations[0].Location.File)
}

func TestLintRejectsMultipleBindingSets(t *testing.T) {
	t.Parallel()

	evaluator := &fakeEvaluator{
		evalFn: func(query eval.Query, _ map[string]any) (eval.Result, error) {
			set := eval.Bindings{query.Binding: map[string]any{"violations": []any{}, "notices": []any{}}}

			return eval.Result{Sets: []eval.Bindings{set, set}}, nil
		},
	}

	_, err := New(Options{
		InputModules: modulesInput(t, map[string]string{"a.rego": "package a\n"}),
		Evaluator:    evaluator,
	}).Lint(context.Background())
	require.ErrorIs(t, err, eval.ErrEvaluation)
}

func TestLintNoticesDeduplicatedAndCounted(t *testing.T) {
	t.Parallel()

	notices := []any{
		map[string]any{
			"rule":        "needs-caps",
			"category":    "testing",
			"severity":    "warning",
			"description": "rule skipped",
		},
		map[string]any{
			"rule":        "informational",
			"category":    "testing",
			"severity":    "none",
			"description": "nothing to see",
		},
	}

	evaluator := &fakeEvaluator{
		evalFn: func(query eval.Query, _ map[string]any) (eval.Result, error) {
			binding := map[string]any{"violations": []any{}, "notices": notices}
			if query.Collect {
				binding["aggregates"] = map[string]any{}
			}

			return singleSet(query.Binding, binding), nil
		},
	}

	result, err := New(Options{
		InputModules: modulesInput(t, map[string]string{"a.rego": "package a\n", "b.rego": "package b\n"}),
		Evaluator:    evaluator,
	}).Lint(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Notices, 2)
	require.Equal(t, 1, result.Summary.RulesSkipped)
}

func TestLintPerRuleIgnoreFiles(t *testing.T) {
	t.Parallel()

	userConfig := &config.Config{
		Rules: map[string]config.Category{
			"style": {
				"todo-comment": {Ignore: &config.Ignore{Files: []string{"legacy/**"}}},
			},
		},
	}

	linter := New(Options{
		InputModules: modulesInput(t, map[string]string{
			"legacy/old.rego": "package old\n\n# TODO: never\n",
			"new.rego":        "package new\n\n# TODO: soon\n",
		}),
		UserConfig: userConfig,
	})

	result, err := linter.Lint(context.Background())
	require.NoError(t, err)

	require.Len(t, result.Violations, 1)
	require.Equal(t, "new.rego", result.Violations[0].Location.File)
	require.Equal(t, 2, result.Summary.FilesScanned)
}

func TestLintMetricsCollected(t *testing.T) {
	t.Parallel()

	collected := metrics.New()

	result, err := New(Options{
		InputModules: modulesInput(t, map[string]string{"a.rego": "package a\n"}),
		Metrics:      collected,
	}).Lint(context.Background())
	require.NoError(t, err)

	require.Contains(t, result.Metrics, "timer_reglint_lint_ns")
	require.Contains(t, result.Metrics, "timer_reglint_lint_native_ns")
}

func TestLintWithStarlarkEngine(t *testing.T) {
	t.Parallel()

	engine, err := starlark.NewEngine()
	require.NoError(t, err)

	linter := New(Options{
		InputModules: modulesInput(t, map[string]string{
			"a.rego": "package dup\n\nx := 1  \n",
			"b.rego": "package dup\n",
		}),
		Evaluator: engine,
	})

	result, err := linter.Lint(context.Background())
	require.NoError(t, err)

	byRule := map[string]int{}
	for _, violation := range result.Violations {
		byRule[violation.Rule]++
	}

	require.Equal(t, 1, byRule["trailing-whitespace"])
	require.Equal(t, 1, byRule["duplicate-package"])
	require.Equal(t, 2, result.Summary.FilesScanned)
	require.Equal(t, len(result.Violations), result.Summary.NumViolations)
}

func TestLintProfilingTable(t *testing.T) {
	t.Parallel()

	engine, err := starlark.NewEngine()
	require.NoError(t, err)

	result, err := New(Options{
		InputModules: modulesInput(t, map[string]string{
			"a.rego": "package a\n",
			"b.rego": "package b\n",
		}),
		Evaluator: engine,
		Profiling: true,
	}).Lint(context.Background())
	require.NoError(t, err)

	require.NotEmpty(t, result.Profile)
	require.LessOrEqual(t, len(result.Profile), profileTopLocations)
	require.Nil(t, result.AggregateProfile)

	for i := 1; i < len(result.Profile); i++ {
		require.GreaterOrEqual(t, result.Profile[i-1].TotalTimeNs, result.Profile[i].TotalTimeNs)
	}
}
