package llmcall

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Recorder persists call records.
type Recorder interface {
	RecordCall(call *Call) error
}

// FileRecorder writes each call as indented JSON next to the document's
// output: {dir}/{document base}.call.json. Calls without a document path
// are named by their ID.
type FileRecorder struct {
	dir    string
	logger *slog.Logger
}

// NewFileRecorder creates a recorder writing into dir.
func NewFileRecorder(dir string, logger *slog.Logger) *FileRecorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileRecorder{dir: dir, logger: logger}
}

// PathFor returns the file a call will be written to.
func (r *FileRecorder) PathFor(call *Call) string {
	name := call.ID
	if call.DocumentPath != "" {
		base := filepath.Base(call.DocumentPath)
		name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	return filepath.Join(r.dir, name+".call.json")
}

// RecordCall writes call to disk.
func (r *FileRecorder) RecordCall(call *Call) error {
	if call == nil {
		return nil
	}
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create call record dir: %w", err)
	}

	data, err := json.MarshalIndent(call, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal call record: %w", err)
	}

	path := r.PathFor(call)
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write call record: %w", err)
	}
	r.logger.Debug("recorded llm call", "path", path, "call_id", call.ID)
	return nil
}

// MemoryRecorder keeps calls in memory.
type MemoryRecorder struct {
	mu    sync.Mutex
	calls []*Call
}

// RecordCall appends call.
func (r *MemoryRecorder) RecordCall(call *Call) error {
	if call == nil {
		return nil
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
	return nil
}

// Calls returns a copy of the recorded calls.
func (r *MemoryRecorder) Calls() []*Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*Call(nil), r.calls...)
}

var (
	_ Recorder = (*FileRecorder)(nil)
	_ Recorder = (*MemoryRecorder)(nil)
)
