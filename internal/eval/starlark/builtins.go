package starlark

import (
	"fmt"
	"regexp"
	"sync"

	"go.starlark.net/starlark"
)

// Builtin capability names, advertised through Capabilities and matched
// against the required_capabilities of declarative rules.
const (
	CapabilityRegexMatch = "regex.match"
	CapabilityPrint      = "print"
	CapabilityLineSplit  = "lines.split"
)

var (
	regexCacheMu sync.Mutex
	regexCache   = make(map[string]*regexp.Regexp)
)

func compileRegex(pattern string) (*regexp.Regexp, error) {
	regexCacheMu.Lock()
	defer regexCacheMu.Unlock()

	if re, ok := regexCache[pattern]; ok {
		return re, nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, err
	}

	regexCache[pattern] = re

	return re, nil
}

// regexMatch implements the regex_match(pattern, s) builtin.
func regexMatch(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var pattern, s string
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 2, &pattern, &s); err != nil {
		return nil, err
	}

	re, err := compileRegex(pattern)
	if err != nil {
		return nil, fmt.Errorf("%s: invalid pattern %q: %w", b.Name(), pattern, err)
	}

	return starlark.Bool(re.MatchString(s)), nil
}

// predeclared returns the globals available to every declarative rule.
func predeclared() starlark.StringDict {
	return starlark.StringDict{
		"regex_match": starlark.NewBuiltin("regex_match", regexMatch),
	}
}
