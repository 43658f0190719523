package recovery

import (
	"regexp"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

var leadingDecimal = regexp.MustCompile(`^\s*([+-]?)\.(\d+(?:[eE][+-]?\d+)?)\s*$`)

// NormalizeNumeric adds the missing zero to a leading-decimal numeral:
// ".5" becomes "0.5" and "-.5" becomes "-0.5". Any other input, including
// "0.5", is returned unchanged.
func NormalizeNumeric(s string) string {
	m := leadingDecimal.FindStringSubmatch(s)
	if m == nil {
		return s
	}
	return m[1] + "0." + m[2]
}

// NormalizeRecord returns a copy of n in which every numeric leaf is a
// string and every string leaf has passed through NormalizeNumeric. Keys,
// order and nulls are untouched.
func NormalizeRecord(n docnode.Node) docnode.Node {
	switch n.Kind {
	case docnode.Number:
		return docnode.NewString(NormalizeNumeric(n.Text))
	case docnode.String:
		return docnode.NewString(NormalizeNumeric(n.Text))
	case docnode.Sequence:
		items := make([]docnode.Node, len(n.Items))
		for i, item := range n.Items {
			items[i] = NormalizeRecord(item)
		}
		return docnode.NewSequence(items...)
	case docnode.Mapping:
		entries := make([]docnode.Entry, len(n.Entries))
		for i, e := range n.Entries {
			entries[i] = docnode.Entry{Key: e.Key, Value: NormalizeRecord(e.Value)}
		}
		return docnode.NewMapping(entries...)
	default:
		return n
	}
}
