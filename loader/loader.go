// Package loader reads application bundles — the declarative component
// trees produced by the editor — from JSON or YAML files and keeps a
// runtime registry synchronized with them as they change on disk.
package loader

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	canvasflow "github.com/canvasflow/canvasflow-go"
)

// LoadBundle parses one application bundle file by extension: .json, or
// .yaml/.yml.
func LoadBundle(path string) (*canvasflow.Application, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading bundle: %w", err)
	}

	var app canvasflow.Application
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &app); err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
	default:
		return nil, fmt.Errorf("unsupported bundle extension for %s (must be .json, .yaml, or .yml)", path)
	}

	if err := Validate(&app); err != nil {
		return nil, fmt.Errorf("validating %s: %w", path, err)
	}
	return &app, nil
}

// LoadDir loads every bundle in a directory, non-recursively.
func LoadDir(dir string) ([]*canvasflow.Application, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading bundle directory: %w", err)
	}

	var apps []*canvasflow.Application
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		switch strings.ToLower(filepath.Ext(entry.Name())) {
		case ".json", ".yaml", ".yml":
		default:
			continue
		}
		app, err := LoadBundle(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		apps = append(apps, app)
	}
	return apps, nil
}

// Validate checks the structural invariants of a bundle: a non-empty
// application id, uuid uniqueness within the application, and child
// references that resolve.
func Validate(app *canvasflow.Application) error {
	if app.ID == "" {
		return fmt.Errorf("application id is required")
	}
	seen := make(map[string]struct{}, len(app.Components))
	for _, comp := range app.Components {
		if comp.UUID == "" {
			return fmt.Errorf("component %q has no uuid", comp.Name)
		}
		if _, dup := seen[comp.UUID]; dup {
			return fmt.Errorf("duplicate component uuid %s", comp.UUID)
		}
		seen[comp.UUID] = struct{}{}
		if comp.ApplicationID == "" {
			comp.ApplicationID = app.ID
		}
		if comp.ApplicationID != app.ID {
			return fmt.Errorf("component %s belongs to application %s, not %s", comp.UUID, comp.ApplicationID, app.ID)
		}
	}
	for _, comp := range app.Components {
		for _, childID := range comp.ChildrenIDs {
			if _, ok := seen[childID]; !ok {
				return fmt.Errorf("component %s references unknown child %s", comp.UUID, childID)
			}
		}
	}
	return nil
}
