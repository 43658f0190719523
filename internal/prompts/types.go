// Package prompts manages the prompt texts sent to the model.
//
// Embedded .tmpl files are the source of truth for defaults. An optional
// override directory can replace any prompt by key: the file
// "<dir>/<key>.tmpl" wins over the embedded text when it exists.
//
// Every resolved prompt carries the SHA-256 of its text so call records can
// name the exact prompt version that produced an extraction.
package prompts

// EmbeddedPrompt represents a prompt loaded from an embedded .tmpl file.
type EmbeddedPrompt struct {
	Key         string   // Dotted key: extract.system
	Text        string   // The prompt text (Go template)
	Description string   // Human-readable description
	Variables   []string // Extracted template variables
	Hash        string   // SHA256 hash of the text for change detection
}

// ResolvedPrompt is the text chosen for a key after overrides are applied.
type ResolvedPrompt struct {
	Key        string   `json:"key"`
	Text       string   `json:"text"`
	Variables  []string `json:"variables,omitempty"`
	IsOverride bool     `json:"is_override"`
	Source     string   `json:"source"` // "embedded" or the override file path
	Hash       string   `json:"hash"`
}
