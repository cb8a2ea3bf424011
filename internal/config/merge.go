package config

import (
	"fmt"

	"dario.cat/mergo"
)

// Merge layers the user configuration on top of the provided configuration.
// User values win, but the merge is structural: nested rule maps are merged
// key by key rather than replaced wholesale. Rules whose level was left
// unset by the user inherit the level of the provided rule with the same
// name. Rule names are assumed unique across categories.
func Merge(provided Config, user *Config) (Config, error) {
	merged := provided
	providedLevels := ruleLevels(provided)

	if user != nil {
		if err := mergo.Merge(&merged, *user, mergo.WithOverride); err != nil {
			return Config{}, fmt.Errorf("failed to merge user config: %w", err)
		}
	}

	for categoryName, rulesByCategory := range merged.Rules {
		for ruleName, rule := range rulesByCategory {
			if rule.Level == "" {
				if providedLevel, ok := providedLevels[ruleName]; ok {
					rule.Level = providedLevel
					merged.Rules[categoryName][ruleName] = rule
				}
			}
		}
	}

	return merged, nil
}

// ruleLevels collects the level of each rule in the provided configuration,
// keyed by rule name alone.
func ruleLevels(conf Config) map[string]string {
	levels := make(map[string]string)

	for _, rulesByCategory := range conf.Rules {
		for ruleName, rule := range rulesByCategory {
			levels[ruleName] = rule.Level
		}
	}

	return levels
}
