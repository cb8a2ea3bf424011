package config

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	lru "github.com/hashicorp/golang-lru/v2"
)

// patternCache memoizes the candidate expansion of ignore patterns. The same
// few patterns are checked against every input file, so expansion is worth
// caching but must not grow without bound for long-lived processes.
var patternCache, _ = lru.New[string, []string](512)

// FilterIgnoredPaths removes paths matching any of the ignore patterns.
// When checkFileExists is set, directory paths are walked and expanded to
// the .rego files beneath them before filtering.
func FilterIgnoredPaths(paths, ignore []string, checkFileExists bool) ([]string, error) {
	policyPaths := paths

	if checkFileExists {
		expanded, err := expandDirs(paths)
		if err != nil {
			return nil, err
		}

		policyPaths = expanded
	}

	return filterPaths(policyPaths, ignore)
}

func expandDirs(paths []string) ([]string, error) {
	expanded := make([]string, 0, len(paths))

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", path, err)
		}

		if !info.IsDir() {
			expanded = append(expanded, path)

			continue
		}

		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}

			if !d.IsDir() && strings.HasSuffix(p, ".rego") {
				expanded = append(expanded, p)
			}

			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", path, err)
		}
	}

	return expanded, nil
}

func filterPaths(paths, ignore []string) ([]string, error) {
	filtered := make([]string, 0, len(paths))

outer:
	for _, path := range paths {
		for _, pattern := range ignore {
			if pattern == "" {
				continue
			}

			excluded, err := ExcludeFile(pattern, path)
			if err != nil {
				return nil, fmt.Errorf("failed to check for exclusion using pattern %s: %w", pattern, err)
			}

			if excluded {
				continue outer
			}
		}

		filtered = append(filtered, path)
	}

	return filtered, nil
}

// ExcludeFile imitates the pattern matching of .gitignore files without a
// full gitignore parser. A pattern without internal slashes may match at any
// depth, a leading slash anchors it to the root, a trailing slash matches
// everything below a directory, and a bare name matches both a file and a
// directory of that name.
func ExcludeFile(pattern, filename string) (bool, error) {
	candidates, err := candidatePatterns(pattern)
	if err != nil {
		return false, err
	}

	filename = filepath.ToSlash(filename)

	for _, p := range candidates {
		ok, err := doublestar.Match(p, filename)
		if err != nil {
			return false, fmt.Errorf("failed to match pattern %s: %w", p, err)
		}

		if ok {
			return true, nil
		}
	}

	return false, nil
}

func candidatePatterns(pattern string) ([]string, error) {
	key := pattern
	if cached, ok := patternCache.Get(key); ok {
		return cached, nil
	}

	n := len(pattern)
	if n == 0 {
		return nil, fmt.Errorf("empty ignore pattern")
	}

	// Internal slashes mean the pattern is relative to the root. Otherwise
	// it may appear anywhere in the tree (--> **/ prefix).
	if !strings.Contains(pattern[:n-1], "/") {
		pattern = "**/" + pattern
	}

	pattern = strings.TrimPrefix(pattern, "/")

	var ps []string
	if strings.HasPrefix(pattern, "**/") {
		// A **/ prefixed pattern should also match at the root.
		ps = []string{pattern, strings.TrimPrefix(pattern, "**/")}
	} else {
		ps = []string{pattern}
	}

	var candidates []string

	for _, p := range ps {
		switch {
		case strings.HasSuffix(p, "/"):
			candidates = append(candidates, p+"**")
		case !strings.HasSuffix(p, "**"):
			// Both the name itself and everything below a directory
			// of that name.
			candidates = append(candidates, p, p+"/**")
		default:
			candidates = append(candidates, p)
		}
	}

	patternCache.Add(key, candidates)

	return candidates, nil
}
