package flatten

import (
	"testing"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

func TestFlatten(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "empty object",
			input: `{}`,
			want:  "",
		},
		{
			name:  "top level content",
			input: `{"content": "HEAT 12345", "apiVersion": "2023-07-31"}`,
			want:  "HEAT 12345",
		},
		{
			name: "depth first in document order",
			input: `{
				"content": "whole page",
				"pages": [
					{"lines": [{"content": "line 1"}, {"content": "line 2"}]},
					{"lines": [{"content": "line 3"}]}
				],
				"keyValuePairs": [
					{"key": {"content": "Grade"}, "value": {"content": "X52"}}
				]
			}`,
			want: "whole page\nline 1\nline 2\nline 3\nGrade\nX52",
		},
		{
			name:  "keys match case-insensitively",
			input: `{"Content": "a", "TEXT": "b", "Value": "c", "label": "skip"}`,
			want:  "a\nb\nc",
		},
		{
			name:  "non-string under text key is descended",
			input: `{"value": {"text": "nested"}, "content": 12}`,
			want:  "nested",
		},
		{
			name:  "bare strings in sequences are skipped",
			input: `{"content": ["x", "y"], "cells": [{"text": "z"}]}`,
			want:  "z",
		},
		{
			name:  "scalar root",
			input: `"just a string"`,
			want:  "",
		},
		{
			name:  "no dedup",
			input: `[{"text": "dup"}, {"text": "dup"}]`,
			want:  "dup\ndup",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FlattenJSON([]byte(tt.input))
			if err != nil {
				t.Fatalf("FlattenJSON() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("FlattenJSON() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFlatten_Deterministic(t *testing.T) {
	root := docnode.MustParse(`{"pages": [{"words": [{"content": "A"}, {"content": "B"}]}], "content": "C"}`)
	first := Flatten(root)
	for i := 0; i < 10; i++ {
		if got := Flatten(root); got != first {
			t.Fatalf("run %d = %q, want %q", i, got, first)
		}
	}
}

func TestFlatten_IgnoresReorderOfNonTextKeys(t *testing.T) {
	a := docnode.MustParse(`{"meta": {"width": 8.5, "unit": "inch"}, "content": "first", "extra": {"text": "second"}}`)
	b := docnode.MustParse(`{"content": "first", "meta": {"unit": "inch", "width": 8.5}, "extra": {"text": "second"}}`)

	if Flatten(a) != Flatten(b) {
		t.Errorf("Flatten differs: %q vs %q", Flatten(a), Flatten(b))
	}
}

func TestFlattenJSON_Invalid(t *testing.T) {
	if _, err := FlattenJSON([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestIsTextKey(t *testing.T) {
	for _, k := range []string{"content", "CONTENT", "Text", "value"} {
		if !IsTextKey(k) {
			t.Errorf("IsTextKey(%q) = false", k)
		}
	}
	for _, k := range []string{"", "contents", "values", "key"} {
		if IsTextKey(k) {
			t.Errorf("IsTextKey(%q) = true", k)
		}
	}
}
