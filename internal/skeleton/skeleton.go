// Package skeleton derives the blank output shape an extraction must fill.
package skeleton

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

//go:embed default_template.json
var defaultTemplate []byte

// Build returns a copy of template with every scalar leaf replaced by null.
// Mapping keys keep their order and sequences keep every element, each
// blanked in turn. The input is never modified and Build(Build(t)) equals
// Build(t).
func Build(template docnode.Node) docnode.Node {
	switch template.Kind {
	case docnode.Mapping:
		entries := make([]docnode.Entry, len(template.Entries))
		for i, e := range template.Entries {
			entries[i] = docnode.Entry{Key: e.Key, Value: Build(e.Value)}
		}
		return docnode.NewMapping(entries...)
	case docnode.Sequence:
		items := make([]docnode.Node, len(template.Items))
		for i, item := range template.Items {
			items[i] = Build(item)
		}
		return docnode.NewSequence(items...)
	default:
		return docnode.NewNull()
	}
}

// Default returns the built-in MTR template, not yet blanked.
func Default() docnode.Node {
	return docnode.MustParse(string(defaultTemplate))
}

// Load reads a template from path. An empty path selects the built-in
// template.
func Load(path string) (docnode.Node, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return docnode.Node{}, fmt.Errorf("failed to read template: %w", err)
	}
	tmpl, err := docnode.Parse(data)
	if err != nil {
		return docnode.Node{}, fmt.Errorf("failed to parse template %s: %w", path, err)
	}
	return tmpl, nil
}

// LoadOrDefault is Load that falls back to the built-in template when the
// file cannot be used.
func LoadOrDefault(path string, logger *slog.Logger) docnode.Node {
	if logger == nil {
		logger = slog.Default()
	}
	tmpl, err := Load(path)
	if err != nil {
		logger.Warn("template unavailable, using built-in template", "path", path, "error", err)
		return Default()
	}
	return tmpl
}

// IsBlank reports whether no scalar leaf under n carries a value.
func IsBlank(n docnode.Node) bool {
	switch n.Kind {
	case docnode.Null:
		return true
	case docnode.Mapping:
		for _, e := range n.Entries {
			if !IsBlank(e.Value) {
				return false
			}
		}
		return true
	case docnode.Sequence:
		for _, item := range n.Items {
			if !IsBlank(item) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
