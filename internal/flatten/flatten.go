// Package flatten collects the text carried by a document-analysis result
// into a single newline-separated blob.
package flatten

import (
	"fmt"
	"strings"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

// Separator joins collected strings.
const Separator = "\n"

// textKeys are the keys whose string values carry document text.
var textKeys = []string{"content", "text", "value"}

// IsTextKey reports whether key names a text-bearing field (case-insensitive).
func IsTextKey(key string) bool {
	for _, k := range textKeys {
		if strings.EqualFold(key, k) {
			return true
		}
	}
	return false
}

// Flatten walks the tree depth-first and returns every string stored under a
// text-bearing key, joined by Separator. Mapping entries are visited in
// order and sequence elements by index. Bare strings inside a sequence have
// no key of their own and are skipped.
func Flatten(root docnode.Node) string {
	var parts []string
	walk(root, "", &parts)
	return strings.Join(parts, Separator)
}

// FlattenJSON parses raw JSON and flattens it.
func FlattenJSON(data []byte) (string, error) {
	root, err := docnode.Parse(data)
	if err != nil {
		return "", fmt.Errorf("failed to parse analysis result: %w", err)
	}
	return Flatten(root), nil
}

func walk(n docnode.Node, key string, parts *[]string) {
	switch n.Kind {
	case docnode.String:
		if IsTextKey(key) {
			*parts = append(*parts, n.Text)
		}
	case docnode.Mapping:
		for _, e := range n.Entries {
			walk(e.Value, e.Key, parts)
		}
	case docnode.Sequence:
		for _, item := range n.Items {
			walk(item, "", parts)
		}
	}
}
