package pipeline

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/ocr"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
)

// analysisResult is a trimmed Document Intelligence analyzeResult.
const analysisResult = `{
	"content": "MILL TEST REPORT",
	"pages": [{"lines": [{"content": "Heat No. H12345"}, {"content": "Grade X52"}]}],
	"keyValuePairs": [{"key": {"content": "Yield"}, "value": {"content": ".354"}}]
}`

const testTemplate = `{"HeatNumber": "H0", "Grade": "X42", "YieldStrength": "0.1"}`

// minimalPDF builds a valid PDF with the given number of blank pages.
func minimalPDF(pages int) []byte {
	var buf bytes.Buffer
	var offsets []int

	buf.WriteString("%PDF-1.4\n")
	writeObj := func(body string) {
		offsets = append(offsets, buf.Len())
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", len(offsets), body)
	}

	writeObj("<< /Type /Catalog /Pages 2 0 R >>")
	kids := ""
	for i := 0; i < pages; i++ {
		kids += fmt.Sprintf("%d 0 R ", i+3)
	}
	writeObj(fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", kids, pages))
	for i := 0; i < pages; i++ {
		writeObj("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << >> >>")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n", len(offsets)+1)
	buf.WriteString("0000000000 65535 f \n")
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)
	return buf.Bytes()
}

func writePDF(t *testing.T, dir, name string, pages int) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, minimalPDF(pages), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// newTestEngine wires an engine over mock providers.
func newTestEngine(t *testing.T, analyzer providers.DocumentAnalyzer, llm providers.LLMClient) *Engine {
	t.Helper()
	orch, err := ocr.New(ocr.Config{Analyzer: analyzer, PollInterval: time.Millisecond, MaxAttempts: 3})
	if err != nil {
		t.Fatal(err)
	}
	inv, err := NewInvoker(InvokerConfig{Client: llm})
	if err != nil {
		t.Fatal(err)
	}
	eng, err := NewEngine(EngineConfig{
		OCR:              orch,
		Invoker:          inv,
		Template:         docnode.MustParse(testTemplate),
		NormalizeNumbers: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	return eng
}
