package config

import (
	"testing"
)

func TestExcludeFile(t *testing.T) {
	tests := []struct {
		name     string
		pattern  string
		path     string
		excluded bool
	}{
		// Patterns without internal slashes match anywhere in the tree.
		{"plain name at root", "foo.rego", "foo.rego", true},
		{"plain name nested", "foo.rego", "a/b/foo.rego", true},
		{"plain name no partial match", "foo.rego", "foobar.rego", false},
		{"plain name no suffix match", "foo.rego", "afoo.rego", false},

		// Trailing slash patterns match everything under the directory.
		{"directory at root", "build/", "build/x.rego", true},
		{"directory nested content", "build/", "build/sub/y.rego", true},
		{"directory anywhere", "build/", "a/build/x.rego", true},
		{"directory no partial match", "build/", "buildx.rego", false},

		// A bare name also excludes everything under a directory of that
		// name.
		{"name as directory", "generated", "generated/x.rego", true},
		{"name as nested directory", "generated", "a/generated/x.rego", true},

		// Leading slash anchors the pattern to the root.
		{"anchored match", "/vendor/a.rego", "vendor/a.rego", true},
		{"anchored no nested match", "/vendor/a.rego", "x/vendor/a.rego", false},

		// Internal slashes anchor the pattern to the root.
		{"internal slash anchored", "lib/foo.rego", "lib/foo.rego", true},
		{"internal slash not nested", "lib/foo.rego", "a/lib/foo.rego", false},

		// Double star crosses directory boundaries, single star does not.
		{"doublestar", "vendor/**", "vendor/a/b/c.rego", true},
		{"doublestar at root level", "vendor/**", "vendor/a.rego", true},
		{"doublestar miss", "vendor/**", "lib/b.rego", false},
		{"leading doublestar matches root", "**/foo/bar.rego", "foo/bar.rego", true},
		{"leading doublestar matches nested", "**/foo/bar.rego", "a/foo/bar.rego", true},
		{"single star stays in directory", "*.rego", "a/b/c.rego", true}, // **/ prefix added for slashless patterns
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			excluded, err := ExcludeFile(tt.pattern, tt.path)
			if err != nil {
				t.Fatalf("ExcludeFile(%q, %q): %v", tt.pattern, tt.path, err)
			}

			if excluded != tt.excluded {
				t.Errorf("ExcludeFile(%q, %q) = %v, want %v", tt.pattern, tt.path, excluded, tt.excluded)
			}
		})
	}
}

func TestExcludeFileCachedPattern(t *testing.T) {
	// Same pattern twice: second call hits the candidate cache and must
	// return identical decisions.
	for range 2 {
		excluded, err := ExcludeFile("foo.rego", "a/foo.rego")
		if err != nil {
			t.Fatal(err)
		}

		if !excluded {
			t.Error("expected a/foo.rego to be excluded by foo.rego")
		}
	}
}

func TestFilterIgnoredPaths(t *testing.T) {
	paths := []string{"vendor/a.rego", "lib/b.rego"}

	filtered, err := FilterIgnoredPaths(paths, []string{"vendor/**"}, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(filtered) != 1 || filtered[0] != "lib/b.rego" {
		t.Errorf("filtered = %v, want [lib/b.rego]", filtered)
	}
}

func TestFilterIgnoredPathsEmptyPatternSkipped(t *testing.T) {
	filtered, err := FilterIgnoredPaths([]string{"a.rego"}, []string{""}, false)
	if err != nil {
		t.Fatal(err)
	}

	if len(filtered) != 1 {
		t.Errorf("empty pattern must not exclude anything, got %v", filtered)
	}
}
