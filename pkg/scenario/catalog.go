package scenario

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

// ErrNotFound is returned when a catalog has no scenario with the requested name
var ErrNotFound = errors.New("scenario not found")

var builtins = map[string][]byte{
	DefaultName: recipePortionsYAML,
}

// Catalog resolves scenarios by name: built-ins first, then *.yaml / *.yml files in Dir
type Catalog struct {
	Dir string
}

// List returns the names of all available scenarios, sorted
func (c Catalog) List() ([]string, error) {
	names := make([]string, 0, len(builtins))
	for name := range builtins {
		names = append(names, name)
	}

	if c.Dir != "" {
		entries, err := os.ReadDir(c.Dir)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to list scenarios: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			ext := filepath.Ext(entry.Name())
			if ext != ".yaml" && ext != ".yml" {
				continue
			}
			name := strings.TrimSuffix(entry.Name(), ext)
			if _, ok := builtins[name]; ok {
				continue
			}
			names = append(names, name)
		}
	}

	sort.Strings(names)
	return names, nil
}

// Load returns the named scenario, validated
func (c Catalog) Load(name string) (*models.Scenario, error) {
	if name == "" {
		name = DefaultName
	}
	if data, ok := builtins[name]; ok {
		return Parse(data)
	}
	// Names are plain file stems, never paths.
	if filepath.Base(name) != name || strings.HasPrefix(name, ".") {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if c.Dir == "" {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(c.Dir, name+ext)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrNotFound, name)
}
