package extract

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts"
)

var testSkeleton = docnode.MustParse(`{"HeatNumber": null, "HNPipeDetails": [{"Grade": null}]}`)

func TestAssemble_SystemRules(t *testing.T) {
	msg, err := Assemble(testSkeleton, "HEAT 123", DefaultRules())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	for _, want := range []string{
		"exactly one JSON object",
		`".354" becomes "0.354"`,
		`ends in "Unit"`,
		"Never assign one set's value to the other set's field",
		"leave the field null",
		`"Criteria"`,
		"MM/DD/YYYY",
		`"ExtractionNotes"`,
	} {
		if !strings.Contains(msg.System, want) {
			t.Errorf("system prompt missing %q", want)
		}
	}
	if strings.Contains(msg.System, "{{") {
		t.Error("system prompt has unrendered template actions")
	}
}

func TestAssemble_UserPayload(t *testing.T) {
	text := "HEAT NO. 4471\nGRADE X52\nC .08"
	msg, err := Assemble(testSkeleton, text, DefaultRules())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}

	tmplStart := strings.Index(msg.User, "=== JSON TEMPLATE ===")
	tmplEnd := strings.Index(msg.User, "=== END JSON TEMPLATE ===")
	textStart := strings.Index(msg.User, "=== OCR TEXT ===")
	textEnd := strings.Index(msg.User, "=== END OCR TEXT ===")
	if tmplStart < 0 || tmplEnd < tmplStart || textStart < tmplEnd || textEnd < textStart {
		t.Fatalf("delimiters missing or out of order:\n%s", msg.User)
	}

	skel := msg.User[tmplStart:tmplEnd]
	if !strings.Contains(skel, `"HeatNumber": null`) {
		t.Errorf("skeleton section = %q", skel)
	}
	if strings.Index(skel, "HeatNumber") > strings.Index(skel, "HNPipeDetails") {
		t.Error("skeleton keys out of order")
	}
	if !strings.Contains(msg.User[textStart:textEnd], text) {
		t.Errorf("OCR section does not contain the text verbatim")
	}
	if msg.Truncated {
		t.Error("short text should not be truncated")
	}
}

func TestAssemble_Deterministic(t *testing.T) {
	a, err := Assemble(testSkeleton, "same text", DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	b, err := Assemble(testSkeleton, "same text", DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Error("identical inputs produced different messages")
	}
	if len(a.Version) != 12 {
		t.Errorf("Version = %q, want 12 hex chars", a.Version)
	}
	want := prompts.HashText(prompts.HashText(systemPromptTmpl) + prompts.HashText(userPromptTmpl))[:12]
	if a.Version != want {
		t.Errorf("Version = %q, want %q", a.Version, want)
	}
}

func TestAssembler_UserOverrideChangesVersion(t *testing.T) {
	dir := t.TempDir()
	override := "TEMPLATE\n{{.Skeleton}}\nTEXT\n{{.Text}}"
	if err := os.WriteFile(filepath.Join(dir, UserPromptKey+".tmpl"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	base, err := Assemble(testSkeleton, "x", DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	msg, err := NewAssembler(prompts.NewResolver(dir, nil)).Assemble(testSkeleton, "x", DefaultRules())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if msg.System != base.System {
		t.Error("system prompt should still come from the embedded default")
	}
	if !strings.HasPrefix(msg.User, "TEMPLATE\n") {
		t.Errorf("User = %q", msg.User)
	}
	if msg.Version == base.Version {
		t.Error("user override should change the prompt version")
	}
}

func TestAssemble_RulesApplied(t *testing.T) {
	rules := Rules{DateFormat: "YYYY-MM-DD", NoteField: "Notes", MaxTextChars: 5}
	msg, err := Assemble(testSkeleton, "héllo world", rules)
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if !strings.Contains(msg.System, "YYYY-MM-DD") || !strings.Contains(msg.System, `"Notes"`) {
		t.Error("custom rules not rendered into system prompt")
	}
	if !msg.Truncated {
		t.Fatal("expected truncation")
	}
	if !strings.Contains(msg.User, "=== OCR TEXT ===\nhéllo\n=== END OCR TEXT ===") {
		t.Errorf("expected text cut at 5 characters:\n%s", msg.User)
	}
	if !strings.Contains(msg.User, "cut at 5 characters") {
		t.Error("expected truncation note")
	}
}

func TestAssembler_Override(t *testing.T) {
	dir := t.TempDir()
	override := "Custom rules. Dates as {{.DateFormat}}."
	if err := os.WriteFile(filepath.Join(dir, SystemPromptKey+".tmpl"), []byte(override), 0o644); err != nil {
		t.Fatal(err)
	}

	resolver := prompts.NewResolver(dir, nil)
	RegisterPrompts(resolver)

	base, err := Assemble(testSkeleton, "x", DefaultRules())
	if err != nil {
		t.Fatal(err)
	}
	msg, err := NewAssembler(resolver).Assemble(testSkeleton, "x", DefaultRules())
	if err != nil {
		t.Fatalf("Assemble() error = %v", err)
	}
	if msg.System != "Custom rules. Dates as MM/DD/YYYY." {
		t.Errorf("System = %q", msg.System)
	}
	if msg.Version == base.Version {
		t.Error("override should change the prompt version")
	}
	if msg.User != base.User {
		t.Error("user prompt should still come from the embedded default")
	}
}

func TestAssembler_BrokenOverride(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, SystemPromptKey+".tmpl"), []byte("{{.Missing}}"), 0o644); err != nil {
		t.Fatal(err)
	}
	resolver := prompts.NewResolver(dir, nil)
	if _, err := NewAssembler(resolver).Assemble(testSkeleton, "x", DefaultRules()); err == nil {
		t.Error("expected error for override referencing unknown field")
	}
}

func TestTruncateRunes(t *testing.T) {
	tests := []struct {
		in        string
		max       int
		want      string
		truncated bool
	}{
		{"abc", 5, "abc", false},
		{"abc", 3, "abc", false},
		{"abcdef", 3, "abc", true},
		{"ééé", 2, "éé", true},
	}
	for _, tt := range tests {
		got, truncated := truncateRunes(tt.in, tt.max)
		if got != tt.want || truncated != tt.truncated {
			t.Errorf("truncateRunes(%q, %d) = %q, %v; want %q, %v", tt.in, tt.max, got, truncated, tt.want, tt.truncated)
		}
	}
}
