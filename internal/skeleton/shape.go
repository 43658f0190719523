package skeleton

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

// ShapeReport describes how a record differs from a skeleton.
// A record that does not conform is still usable; the report is advisory.
type ShapeReport struct {
	Conforms   bool     `json:"conforms"`
	Missing    []string `json:"missing,omitempty"`
	Extra      []string `json:"extra,omitempty"`
	Violations []string `json:"violations,omitempty"`
}

// Schema derives a JSON Schema from a skeleton. Mappings with keys become
// closed objects, empty mappings accept any object, sequences take their
// item schema from the first element and null leaves accept any value.
// Keys listed in allowTop may additionally appear at the top level.
func Schema(skel docnode.Node, allowTop ...string) map[string]any {
	s := schemaFor(skel)
	if skel.Kind == docnode.Mapping && len(allowTop) > 0 {
		props, _ := s["properties"].(map[string]any)
		for _, key := range allowTop {
			if _, exists := props[key]; !exists && props != nil {
				props[key] = map[string]any{}
			}
		}
	}
	return s
}

func schemaFor(n docnode.Node) map[string]any {
	switch n.Kind {
	case docnode.Mapping:
		if len(n.Entries) == 0 {
			return map[string]any{"type": "object"}
		}
		props := make(map[string]any, len(n.Entries))
		for _, e := range n.Entries {
			props[e.Key] = schemaFor(e.Value)
		}
		return map[string]any{
			"type":                 "object",
			"properties":           props,
			"additionalProperties": false,
		}
	case docnode.Sequence:
		s := map[string]any{"type": "array"}
		if len(n.Items) > 0 {
			s["items"] = schemaFor(n.Items[0])
		}
		return s
	default:
		return map[string]any{}
	}
}

// Check compares record against skeleton. Missing and Extra list key paths
// such as "HNPipeDetails[0].Grade"; Violations carries the schema
// validator's messages. allowTop names top-level keys that are never
// reported as extra.
func Check(skel, record docnode.Node, allowTop ...string) (*ShapeReport, error) {
	report := &ShapeReport{}
	allowed := make(map[string]bool, len(allowTop))
	for _, k := range allowTop {
		allowed[k] = true
	}
	diff(skel, record, "", allowed, report)

	raw, err := json.Marshal(Schema(skel, allowTop...))
	if err != nil {
		return nil, fmt.Errorf("failed to encode skeleton schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("skeleton.json", bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("failed to load skeleton schema: %w", err)
	}
	schema, err := compiler.Compile("skeleton.json")
	if err != nil {
		return nil, fmt.Errorf("failed to compile skeleton schema: %w", err)
	}

	if err := schema.Validate(record.Any()); err != nil {
		var verr *jsonschema.ValidationError
		if !errors.As(err, &verr) {
			return nil, fmt.Errorf("failed to validate record: %w", err)
		}
		report.Violations = leafMessages(verr)
	}

	sort.Strings(report.Violations)
	report.Conforms = len(report.Missing) == 0 && len(report.Extra) == 0 && len(report.Violations) == 0
	return report, nil
}

func diff(skel, rec docnode.Node, path string, allowTop map[string]bool, report *ShapeReport) {
	switch skel.Kind {
	case docnode.Mapping:
		if rec.Kind != docnode.Mapping || len(skel.Entries) == 0 {
			return
		}
		for _, e := range skel.Entries {
			v, ok := rec.Get(e.Key)
			if !ok {
				report.Missing = append(report.Missing, join(path, e.Key))
				continue
			}
			diff(e.Value, v, join(path, e.Key), nil, report)
		}
		for _, e := range rec.Entries {
			if _, ok := skel.Get(e.Key); ok || allowTop[e.Key] {
				continue
			}
			report.Extra = append(report.Extra, join(path, e.Key))
		}
	case docnode.Sequence:
		if rec.Kind != docnode.Sequence || len(skel.Items) == 0 {
			return
		}
		for i, item := range rec.Items {
			pattern := skel.Items[0]
			if i < len(skel.Items) {
				pattern = skel.Items[i]
			}
			diff(pattern, item, path+"["+strconv.Itoa(i)+"]", nil, report)
		}
	}
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func leafMessages(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := verr.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		return []string{loc + ": " + verr.Message}
	}
	var out []string
	for _, c := range verr.Causes {
		out = append(out, leafMessages(c)...)
	}
	return out
}
