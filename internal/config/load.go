package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Default file names probed for user configuration, in order.
var defaultConfigFiles = []string{".reglint.yaml", ".reglint.yml", ".reglint.json"}

// FromFile loads and validates a user configuration file.
func FromFile(path string) (Config, error) {
	bs, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	raw := make(map[string]any)
	if err := yaml.Unmarshal(bs, &raw); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	if err := ValidateMap(raw); err != nil {
		return Config{}, fmt.Errorf("invalid config file %s: %w", path, err)
	}

	return FromMap(raw)
}

// FindConfigFile returns the path of the first default config file found in
// dir, or an empty string when none exists.
func FindConfigFile(dir string) string {
	for _, name := range defaultConfigFiles {
		path := dir + string(os.PathSeparator) + name
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}
