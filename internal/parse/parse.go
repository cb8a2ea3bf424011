// Package parse turns policy source text into the module representation the
// rule runners operate on, and enriches it with the derived facts
// declarative rules rely on.
package parse

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// Module is the parsed representation of a single policy file.
type Module struct {
	Package  string    `json:"package" yaml:"package"`
	Imports  []Import  `json:"imports,omitempty" yaml:"imports,omitempty"`
	Rules    []Rule    `json:"rules,omitempty" yaml:"rules,omitempty"`
	Comments []Comment `json:"comments,omitempty" yaml:"comments,omitempty"`
}

// Import is a single import declaration.
type Import struct {
	Path string `json:"path" yaml:"path"`
	Row  int    `json:"row" yaml:"row"`
}

// Rule is a rule declaration inside a module.
type Rule struct {
	Name string `json:"name" yaml:"name"`
	Row  int    `json:"row" yaml:"row"`
}

// Comment is a single comment line.
type Comment struct {
	Text string `json:"text" yaml:"text"`
	Row  int    `json:"row" yaml:"row"`
}

var (
	packageRegexp = regexp.MustCompile(`^package\s+([a-zA-Z_][\w.\[\]"]*)\s*$`)
	importRegexp  = regexp.MustCompile(`^import\s+(\S+)`)
	ruleRegexp    = regexp.MustCompile(`^(?:default\s+)?([a-zA-Z_]\w*)\s*(?::=|=|\(|\{|contains\s|if\s|if$)`)
)

// ModuleFromString parses policy source text into a Module. The parser is
// line oriented: it recognizes package and import declarations, top level
// rule heads, and comments, which is the shape rule evaluation needs.
func ModuleFromString(filename, content string) (*Module, error) {
	module := &Module{}

	for i, line := range strings.Split(content, "\n") {
		row := i + 1
		trimmed := strings.TrimSpace(line)

		switch {
		case trimmed == "":
			continue
		case strings.HasPrefix(trimmed, "#"):
			module.Comments = append(module.Comments, Comment{
				Text: strings.TrimSpace(strings.TrimPrefix(trimmed, "#")),
				Row:  row,
			})
		case strings.HasPrefix(line, "package"):
			m := packageRegexp.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, fmt.Errorf("%s:%d: invalid package declaration: %s", filename, row, trimmed)
			}

			if module.Package != "" {
				return nil, fmt.Errorf("%s:%d: multiple package declarations", filename, row)
			}

			module.Package = m[1]
		case strings.HasPrefix(line, "import"):
			m := importRegexp.FindStringSubmatch(trimmed)
			if m == nil {
				return nil, fmt.Errorf("%s:%d: invalid import declaration: %s", filename, row, trimmed)
			}

			module.Imports = append(module.Imports, Import{Path: m[1], Row: row})
		case !strings.HasPrefix(line, " ") && !strings.HasPrefix(line, "\t"):
			if m := ruleRegexp.FindStringSubmatch(line); m != nil {
				module.Rules = append(module.Rules, Rule{Name: m[1], Row: row})
			}
		}
	}

	if module.Package == "" {
		return nil, fmt.Errorf("%s: missing package declaration", filename)
	}

	return module, nil
}

// PrepareAST builds the enriched input value for one file: the module itself
// plus the derived facts rules depend on, under the "reglint" key.
func PrepareAST(name, content string, module *Module) (map[string]any, error) {
	if module == nil {
		return nil, fmt.Errorf("no module provided for %s", name)
	}

	abs, err := filepath.Abs(name)
	if err != nil {
		abs = name
	}

	imports := make([]any, 0, len(module.Imports))
	for _, imp := range module.Imports {
		imports = append(imports, map[string]any{"path": imp.Path, "row": imp.Row})
	}

	rules := make([]any, 0, len(module.Rules))
	for _, rule := range module.Rules {
		rules = append(rules, map[string]any{"name": rule.Name, "row": rule.Row})
	}

	comments := make([]any, 0, len(module.Comments))
	for _, comment := range module.Comments {
		comments = append(comments, map[string]any{"text": comment.Text, "row": comment.Row})
	}

	return map[string]any{
		"package":  module.Package,
		"imports":  imports,
		"rules":    rules,
		"comments": comments,
		"reglint": map[string]any{
			"file": map[string]any{
				"name":  name,
				"abs":   abs,
				"lines": strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n"),
			},
			"environment": map[string]any{
				"path_separator": string(os.PathSeparator),
			},
		},
	}, nil
}
