// Package extract assembles the two-part prompt that asks a model to fill an
// MTR template from OCR text.
package extract

import (
	_ "embed"
	"fmt"
	"unicode/utf8"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/prompts"
)

//go:embed system.tmpl
var systemPromptTmpl string

//go:embed user.tmpl
var userPromptTmpl string

// Prompt keys
const (
	SystemPromptKey = "extract.system"
	UserPromptKey   = "extract.user"
)

// Rules parameterizes the instruction block.
type Rules struct {
	DateFormat   string // default MM/DD/YYYY
	NoteField    string // default ExtractionNotes
	MaxTextChars int    // OCR text cap in characters; default 50000
}

// DefaultRules returns the rules used when none are configured.
func DefaultRules() Rules {
	return Rules{
		DateFormat:   "MM/DD/YYYY",
		NoteField:    "ExtractionNotes",
		MaxTextChars: 50000,
	}
}

func (r Rules) withDefaults() Rules {
	d := DefaultRules()
	if r.DateFormat == "" {
		r.DateFormat = d.DateFormat
	}
	if r.NoteField == "" {
		r.NoteField = d.NoteField
	}
	if r.MaxTextChars <= 0 {
		r.MaxTextChars = d.MaxTextChars
	}
	return r
}

// Message is an assembled prompt. It is fully determined by the skeleton,
// the text, the rules and the prompt texts in effect.
type Message struct {
	System string
	User   string
	// Version identifies the prompt texts that produced the message.
	Version   string
	Truncated bool
}

// RegisterPrompts registers the extraction prompts with the resolver.
func RegisterPrompts(r *prompts.Resolver) {
	r.Register(prompts.EmbeddedPrompt{
		Key:         SystemPromptKey,
		Text:        systemPromptTmpl,
		Description: "MTR extraction rules: output shape, numeric strings, units, dates, ambiguity policy",
	})
	r.Register(prompts.EmbeddedPrompt{
		Key:         UserPromptKey,
		Text:        userPromptTmpl,
		Description: "MTR extraction payload: delimited template and OCR text",
	})
}

// Assembler renders prompts through a resolver so overrides apply.
type Assembler struct {
	resolver *prompts.Resolver
}

// NewAssembler creates an assembler. A nil resolver uses the embedded
// prompts only.
func NewAssembler(resolver *prompts.Resolver) *Assembler {
	if resolver == nil {
		resolver = prompts.NewResolver("", nil)
	}
	if _, ok := resolver.GetEmbedded(SystemPromptKey); !ok {
		RegisterPrompts(resolver)
	}
	return &Assembler{resolver: resolver}
}

// Assemble is Assembler.Assemble with the embedded prompts.
func Assemble(skeleton docnode.Node, text string, rules Rules) (Message, error) {
	return NewAssembler(nil).Assemble(skeleton, text, rules)
}

// Assemble builds the system and user messages. It states the rules but
// performs no normalization of its own.
func (a *Assembler) Assemble(skeleton docnode.Node, text string, rules Rules) (Message, error) {
	rules = rules.withDefaults()

	sysPrompt, err := a.resolver.Resolve(SystemPromptKey)
	if err != nil {
		return Message{}, err
	}
	userPrompt, err := a.resolver.Resolve(UserPromptKey)
	if err != nil {
		return Message{}, err
	}

	system, err := prompts.Render(SystemPromptKey, sysPrompt.Text, rules)
	if err != nil {
		return Message{}, err
	}

	skel, err := skeleton.Indent()
	if err != nil {
		return Message{}, fmt.Errorf("failed to encode skeleton: %w", err)
	}
	body, truncated := truncateRunes(text, rules.MaxTextChars)

	user, err := prompts.Render(UserPromptKey, userPrompt.Text, struct {
		Skeleton     string
		Text         string
		Truncated    bool
		MaxTextChars int
	}{
		Skeleton:     string(skel),
		Text:         body,
		Truncated:    truncated,
		MaxTextChars: rules.MaxTextChars,
	})
	if err != nil {
		return Message{}, err
	}

	return Message{
		System:    system,
		User:      user,
		Version:   prompts.HashText(sysPrompt.Hash + userPrompt.Hash)[:12],
		Truncated: truncated,
	}, nil
}

func truncateRunes(s string, max int) (string, bool) {
	if utf8.RuneCountInString(s) <= max {
		return s, false
	}
	n := 0
	for i := range s {
		if n == max {
			return s[:i], true
		}
		n++
	}
	return s, false
}
