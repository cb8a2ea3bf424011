package linter

import "errors"

// Error taxonomy of the orchestration layer. All failures are wrapped with
// one of these sentinels so callers can classify them with errors.Is.
// Evaluation and consistency errors originate in the eval package.
var (
	// ErrConfig marks configuration resolution and merge failures.
	ErrConfig = errors.New("config error")
	// ErrInput marks path filtering and file read failures.
	ErrInput = errors.New("input error")
)
