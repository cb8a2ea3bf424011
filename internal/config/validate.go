package config

import (
	_ "embed"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

//go:embed schema/config.cue
var configSchema []byte

// ValidateMap checks a raw user configuration against the embedded CUE
// schema, catching misspelled severity levels and mistyped fields before
// they disappear into the structural merge.
func ValidateMap(data map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileBytes(configSchema, cue.Filename("config.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("failed to compile config schema: %w", err)
	}

	value := ctx.Encode(data)
	if err := value.Err(); err != nil {
		return fmt.Errorf("failed to encode config for validation: %w", err)
	}

	unified := schema.Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}

	return nil
}
