// Package rules defines the lint input collection and the natively
// implemented rules that run against it.
package rules

import (
	"fmt"
	"os"
	"sort"

	"github.com/reglint/reglint/internal/parse"
)

// Input is the set of files under lint: an ordered list of file names with
// one content entry and one parsed module per name.
type Input struct {
	FileNames   []string
	FileContent map[string]string
	Modules     map[string]*parse.Module
}

// NewInput builds an Input from parsed modules, with file names sorted for
// deterministic traversal.
func NewInput(fileContent map[string]string, modules map[string]*parse.Module) Input {
	fileNames := make([]string, 0, len(modules))
	for name := range modules {
		fileNames = append(fileNames, name)
	}

	sort.Strings(fileNames)

	return Input{
		FileNames:   fileNames,
		FileContent: fileContent,
		Modules:     modules,
	}
}

// InputFromPaths reads and parses the files at the given paths.
func InputFromPaths(paths []string) (Input, error) {
	fileContent := make(map[string]string, len(paths))
	modules := make(map[string]*parse.Module, len(paths))

	for _, path := range paths {
		bs, err := os.ReadFile(path)
		if err != nil {
			return Input{}, fmt.Errorf("failed to read file %s: %w", path, err)
		}

		module, err := parse.ModuleFromString(path, string(bs))
		if err != nil {
			return Input{}, fmt.Errorf("failed to parse file %s: %w", path, err)
		}

		fileContent[path] = string(bs)
		modules[path] = module
	}

	return NewInput(fileContent, modules), nil
}

// InputFromText creates an Input from raw policy text, for programmatic use
// where the thing being linted is not a file on disk.
func InputFromText(fileName, text string) (Input, error) {
	module, err := parse.ModuleFromString(fileName, text)
	if err != nil {
		return Input{}, fmt.Errorf("failed to parse %s: %w", fileName, err)
	}

	return NewInput(map[string]string{fileName: text}, map[string]*parse.Module{fileName: module}), nil
}
