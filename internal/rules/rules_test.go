package rules

import (
	"context"
	"strings"
	"testing"

	"github.com/reglint/reglint/internal/config"
)

func TestLineLengthRule(t *testing.T) {
	conf := config.Config{
		Rules: map[string]config.Category{
			"style": {
				"line-length": {Level: "error", Extra: map[string]any{"max-line-length": 40}},
			},
		},
	}

	long := "package p\n\nx := 1 # " + strings.Repeat("y", 60) + "\n"

	input, err := InputFromText("p.rego", long)
	if err != nil {
		t.Fatal(err)
	}

	result, err := NewLineLengthRule(conf).Run(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Violations) != 1 {
		t.Fatalf("violations = %d, want 1", len(result.Violations))
	}

	v := result.Violations[0]

	if v.Rule != "line-length" || v.Category != "style" || v.Level != "error" {
		t.Errorf("violation identity = %+v", v)
	}

	if v.Location.File != "p.rego" || v.Location.Row != 3 || v.Location.Column != 41 {
		t.Errorf("violation location = %+v", v.Location)
	}
}

func TestLineLengthRuleDefaultsMax(t *testing.T) {
	input, err := InputFromText("p.rego", "package p\n")
	if err != nil {
		t.Fatal(err)
	}

	result, err := NewLineLengthRule(config.Config{}).Run(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Violations) != 0 {
		t.Errorf("violations = %d, want 0", len(result.Violations))
	}
}

func TestTodoCommentRule(t *testing.T) {
	content := "package p\n\n# TODO: fix me\n# fixme later\n# all good here\nx := 1\n"

	input, err := InputFromText("p.rego", content)
	if err != nil {
		t.Fatal(err)
	}

	result, err := NewTodoCommentRule(config.Config{}).Run(context.Background(), input)
	if err != nil {
		t.Fatal(err)
	}

	if len(result.Violations) != 2 {
		t.Fatalf("violations = %d, want 2", len(result.Violations))
	}

	if result.Violations[0].Location.Row != 3 || result.Violations[1].Location.Row != 4 {
		t.Errorf("rows = %d, %d, want 3, 4",
			result.Violations[0].Location.Row, result.Violations[1].Location.Row)
	}
}

func TestTodoCommentRuleCancelled(t *testing.T) {
	input, err := InputFromText("p.rego", "package p\n")
	if err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := NewTodoCommentRule(config.Config{}).Run(ctx, input); err == nil {
		t.Error("cancelled context accepted")
	}
}

func TestAllRulesHaveUniqueNames(t *testing.T) {
	seen := make(map[string]bool)

	for _, rule := range AllRules(config.Config{}) {
		if seen[rule.Name()] {
			t.Errorf("duplicate rule name %s", rule.Name())
		}

		seen[rule.Name()] = true
	}
}

func TestIntParam(t *testing.T) {
	conf := config.Rule{Extra: map[string]any{
		"as-int":   7,
		"as-float": 7.0,
		"as-text":  "7",
	}}

	if got := intParam(conf, "as-int", 1); got != 7 {
		t.Errorf("as-int = %d, want 7", got)
	}

	if got := intParam(conf, "as-float", 1); got != 7 {
		t.Errorf("as-float = %d, want 7", got)
	}

	if got := intParam(conf, "as-text", 1); got != 1 {
		t.Errorf("as-text = %d, want fallback 1", got)
	}

	if got := intParam(conf, "missing", 9); got != 9 {
		t.Errorf("missing = %d, want fallback 9", got)
	}
}
