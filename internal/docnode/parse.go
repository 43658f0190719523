package docnode

import (
	"encoding/json"
	"errors"

	"github.com/tidwall/gjson"
)

// ErrInvalidJSON is returned when input is not syntactically valid JSON.
var ErrInvalidJSON = errors.New("invalid JSON")

// Parse decodes JSON into a Node, keeping mapping keys in document order.
func Parse(data []byte) (Node, error) {
	if !json.Valid(data) {
		return Node{}, ErrInvalidJSON
	}
	return fromResult(gjson.ParseBytes(data)), nil
}

// ParseString is Parse for string input.
func ParseString(s string) (Node, error) {
	return Parse([]byte(s))
}

// MustParse is Parse that panics on error. Intended for literals in tests
// and embedded defaults.
func MustParse(s string) Node {
	n, err := ParseString(s)
	if err != nil {
		panic("docnode: " + err.Error())
	}
	return n
}

func fromResult(r gjson.Result) Node {
	switch {
	case r.IsObject():
		entries := make([]Entry, 0)
		r.ForEach(func(key, value gjson.Result) bool {
			entries = append(entries, Entry{Key: key.String(), Value: fromResult(value)})
			return true
		})
		return NewMapping(entries...)
	case r.IsArray():
		items := make([]Node, 0)
		r.ForEach(func(_, value gjson.Result) bool {
			items = append(items, fromResult(value))
			return true
		})
		return NewSequence(items...)
	}

	switch r.Type {
	case gjson.True:
		return NewBool(true)
	case gjson.False:
		return NewBool(false)
	case gjson.Number:
		return NewNumber(r.Raw)
	case gjson.String:
		return NewString(r.String())
	default:
		return NewNull()
	}
}

// Any converts the node to the generic form produced by encoding/json
// with UseNumber: map[string]any, []any, string, json.Number, bool, nil.
// Key order is lost; use it only for consumers that need plain values.
func (n Node) Any() any {
	switch n.Kind {
	case Bool:
		return n.Bool
	case Number:
		return json.Number(n.Text)
	case String:
		return n.Text
	case Sequence:
		out := make([]any, len(n.Items))
		for i, item := range n.Items {
			out[i] = item.Any()
		}
		return out
	case Mapping:
		out := make(map[string]any, len(n.Entries))
		for _, e := range n.Entries {
			if _, dup := out[e.Key]; dup {
				continue
			}
			out[e.Key] = e.Value.Any()
		}
		return out
	default:
		return nil
	}
}
