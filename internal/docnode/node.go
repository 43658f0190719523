// Package docnode provides an ordered, schema-less document tree.
//
// Analysis results, templates and recovered records all pass through this
// type so traversal order is the order keys appeared in the source JSON.
package docnode

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind identifies the variant held by a Node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Sequence
	Mapping
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case Null:
		return "null"
	case Bool:
		return "bool"
	case Number:
		return "number"
	case String:
		return "string"
	case Sequence:
		return "sequence"
	case Mapping:
		return "mapping"
	default:
		return "unknown"
	}
}

// Entry is a single key/value pair of a Mapping node.
type Entry struct {
	Key   string
	Value Node
}

// Node is a tagged union over JSON values.
// Number nodes keep their literal text so no precision is lost.
type Node struct {
	Kind    Kind
	Bool    bool
	Text    string // String value, or Number literal
	Items   []Node
	Entries []Entry
}

// NewNull returns a Null node.
func NewNull() Node { return Node{Kind: Null} }

// NewString returns a String node.
func NewString(s string) Node { return Node{Kind: String, Text: s} }

// NewNumber returns a Number node from its literal form.
func NewNumber(literal string) Node { return Node{Kind: Number, Text: literal} }

// NewBool returns a Bool node.
func NewBool(b bool) Node { return Node{Kind: Bool, Bool: b} }

// NewSequence returns a Sequence node holding items.
func NewSequence(items ...Node) Node {
	if items == nil {
		items = []Node{}
	}
	return Node{Kind: Sequence, Items: items}
}

// NewMapping returns a Mapping node holding entries in the given order.
func NewMapping(entries ...Entry) Node {
	if entries == nil {
		entries = []Entry{}
	}
	return Node{Kind: Mapping, Entries: entries}
}

// IsScalar reports whether the node has no children.
func (n Node) IsScalar() bool {
	return n.Kind != Sequence && n.Kind != Mapping
}

// Get returns the value for key in a Mapping node.
// The first matching entry wins when keys repeat.
func (n Node) Get(key string) (Node, bool) {
	if n.Kind != Mapping {
		return Node{}, false
	}
	for _, e := range n.Entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Node{}, false
}

// GetFold is Get with case-insensitive key matching.
func (n Node) GetFold(key string) (Node, bool) {
	if n.Kind != Mapping {
		return Node{}, false
	}
	for _, e := range n.Entries {
		if strings.EqualFold(e.Key, key) {
			return e.Value, true
		}
	}
	return Node{}, false
}

// Keys returns the mapping keys in order.
func (n Node) Keys() []string {
	keys := make([]string, 0, len(n.Entries))
	for _, e := range n.Entries {
		keys = append(keys, e.Key)
	}
	return keys
}

// Clone returns a deep copy of the node.
func (n Node) Clone() Node {
	out := Node{Kind: n.Kind, Bool: n.Bool, Text: n.Text}
	if n.Items != nil {
		out.Items = make([]Node, len(n.Items))
		for i, item := range n.Items {
			out.Items[i] = item.Clone()
		}
	}
	if n.Entries != nil {
		out.Entries = make([]Entry, len(n.Entries))
		for i, e := range n.Entries {
			out.Entries[i] = Entry{Key: e.Key, Value: e.Value.Clone()}
		}
	}
	return out
}

// Equal reports whether two nodes are structurally identical,
// including mapping key order.
func Equal(a, b Node) bool {
	if a.Kind != b.Kind {
		return false
	}
	switch a.Kind {
	case Null:
		return true
	case Bool:
		return a.Bool == b.Bool
	case Number, String:
		return a.Text == b.Text
	case Sequence:
		if len(a.Items) != len(b.Items) {
			return false
		}
		for i := range a.Items {
			if !Equal(a.Items[i], b.Items[i]) {
				return false
			}
		}
		return true
	case Mapping:
		if len(a.Entries) != len(b.Entries) {
			return false
		}
		for i := range a.Entries {
			if a.Entries[i].Key != b.Entries[i].Key || !Equal(a.Entries[i].Value, b.Entries[i].Value) {
				return false
			}
		}
		return true
	}
	return false
}

// MarshalJSON encodes the node with mapping keys in their stored order.
func (n Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.encode(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes JSON into the node, preserving key order.
func (n *Node) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*n = parsed
	return nil
}

// Indent returns the node as JSON indented by two spaces.
func (n Node) Indent() ([]byte, error) {
	raw, err := n.MarshalJSON()
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n Node) encode(buf *bytes.Buffer) error {
	switch n.Kind {
	case Null:
		buf.WriteString("null")
	case Bool:
		if n.Bool {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		buf.WriteString(n.Text)
	case String:
		if err := writeString(buf, n.Text); err != nil {
			return err
		}
	case Sequence:
		buf.WriteByte('[')
		for i, item := range n.Items {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := item.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Mapping:
		buf.WriteByte('{')
		for i, e := range n.Entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := writeString(buf, e.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := e.Value.encode(buf); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	}
	return nil
}

// writeString encodes s as a JSON string without HTML escaping,
// so values like "<0.05" stay readable in output files.
func writeString(buf *bytes.Buffer, s string) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}
