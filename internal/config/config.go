// Package config holds the rule configuration model, the precedence-aware
// merge of provided and user configuration, and ignore-pattern file filtering.
package config

import (
	_ "embed"
	"fmt"

	"gopkg.in/yaml.v3"
)

//go:embed provided/config.yaml
var providedConfig []byte

// Config is the full rule configuration: rules organized by category and
// name, a global ignore list, and the capability descriptor of the
// evaluation engine the configuration targets.
type Config struct {
	Rules        map[string]Category `yaml:"rules" json:"rules"`
	Ignore       Ignore              `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Capabilities *Capabilities       `yaml:"capabilities,omitempty" json:"capabilities,omitempty"`
}

// Category maps rule name to rule configuration. Rule names are unique
// across all categories, a property the merge logic relies on.
type Category map[string]Rule

// Rule configures a single rule. Fields other than Level and Ignore are
// rule-specific parameters kept in Extra.
type Rule struct {
	Level  string         `yaml:"level" json:"level"`
	Ignore *Ignore        `yaml:"ignore,omitempty" json:"ignore,omitempty"`
	Extra  map[string]any `yaml:",inline" json:"extra,omitempty"`
}

// Ignore holds gitignore style file exclusion patterns.
type Ignore struct {
	Files []string `yaml:"files,omitempty" json:"files,omitempty"`
}

// Capabilities describes what the evaluation engine offers: its version and
// the set of builtins declarative rules may call.
type Capabilities struct {
	Version  string   `yaml:"version" json:"version"`
	Builtins []string `yaml:"builtins" json:"builtins"`
}

// HasBuiltin reports whether the named builtin is available.
func (c *Capabilities) HasBuiltin(name string) bool {
	for _, b := range c.Builtins {
		if b == name {
			return true
		}
	}

	return false
}

// Provided returns the default configuration shipped with reglint.
func Provided() (Config, error) {
	var conf Config
	if err := yaml.Unmarshal(providedConfig, &conf); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal provided config: %w", err)
	}

	return conf, nil
}

// FromMap builds a Config from its generic map representation.
func FromMap(m map[string]any) (Config, error) {
	var conf Config

	bs, err := yaml.Marshal(m)
	if err != nil {
		return Config{}, fmt.Errorf("failed to marshal config map: %w", err)
	}

	if err := yaml.Unmarshal(bs, &conf); err != nil {
		return Config{}, fmt.Errorf("failed to unmarshal config map: %w", err)
	}

	return conf, nil
}

// ToMap converts a Config to its generic map representation, suitable for
// handing to the evaluation engine as static data.
func ToMap(conf Config) (map[string]any, error) {
	bs, err := yaml.Marshal(conf)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	m := make(map[string]any)
	if err := yaml.Unmarshal(bs, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return m, nil
}

// RuleConfig returns the configuration for the named rule, searching all
// categories, together with the category it was found in.
func (c Config) RuleConfig(name string) (Rule, string, bool) {
	for category, rules := range c.Rules {
		if rule, ok := rules[name]; ok {
			return rule, category, true
		}
	}

	return Rule{}, "", false
}
