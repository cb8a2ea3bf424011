package rules

import (
	"context"

	"github.com/reglint/reglint/internal/config"
	"github.com/reglint/reglint/internal/report"
)

// Rule is the interface implemented by natively coded rules.
type Rule interface {
	// Run evaluates the rule over the provided input.
	Run(ctx context.Context, input Input) (report.Report, error)
	// Name returns the rule name, unique across all categories.
	Name() string
	// Category returns the category the rule belongs to.
	Category() string
	// Config returns the effective configuration of the rule.
	Config() config.Rule
}

// AllRules returns all native rules, configured from conf.
func AllRules(conf config.Config) []Rule {
	return []Rule{
		NewLineLengthRule(conf),
		NewTodoCommentRule(conf),
	}
}

// configuredRule carries the name, category and resolved configuration
// shared by all native rule implementations.
type configuredRule struct {
	name     string
	category string
	config   config.Rule
}

func newConfiguredRule(conf config.Config, category, name string) configuredRule {
	ruleConf, _, ok := conf.RuleConfig(name)
	if !ok {
		ruleConf = config.Rule{Level: "error"}
	}

	return configuredRule{name: name, category: category, config: ruleConf}
}

func (r configuredRule) Name() string        { return r.name }
func (r configuredRule) Category() string    { return r.category }
func (r configuredRule) Config() config.Rule { return r.config }

// intParam reads an integer rule parameter, falling back to a default when
// unset. YAML unmarshals numbers as int, but be lenient about float64 as the
// value may have passed through JSON.
func intParam(conf config.Rule, name string, fallback int) int {
	v, ok := conf.Extra[name]
	if !ok {
		return fallback
	}

	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return fallback
	}
}
