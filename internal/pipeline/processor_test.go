package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/export"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/llmcall"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/providers"
	"github.com/Unigalactix/GasOps-DI-JSON/internal/recovery"
)

const goodResponse = `{"HeatNumber": "H12345", "Grade": "X52", "YieldStrength": ".354"}`

func TestProcessFile(t *testing.T) {
	t.Run("writes record, call and spreadsheet", func(t *testing.T) {
		inDir, outDir := t.TempDir(), t.TempDir()
		pdf := writePDF(t, inDir, "mtr-1.pdf", 2)
		xlsx := filepath.Join(outDir, "records.xlsx")

		proc, err := NewProcessor(ProcessorConfig{
			Engine:      newTestEngine(t, providers.NewMockAnalyzer(analysisResult), providers.NewMockClient(goodResponse)),
			OutputDir:   outDir,
			RecordCalls: true,
			Exporter:    export.NewExporter(xlsx, "HeatNumber", nil),
		})
		if err != nil {
			t.Fatal(err)
		}

		out, err := proc.ProcessFile(context.Background(), pdf)
		if err != nil {
			t.Fatalf("ProcessFile() error = %v", err)
		}
		if out.Pages != 2 {
			t.Errorf("Pages = %d, want 2", out.Pages)
		}
		if out.OutputPath != filepath.Join(outDir, "mtr-1.json") {
			t.Errorf("OutputPath = %q", out.OutputPath)
		}
		if out.Strategy != recovery.StrategyObjectScan || !out.Conforms {
			t.Errorf("Strategy = %s, Conforms = %v", out.Strategy, out.Conforms)
		}

		data, err := os.ReadFile(out.OutputPath)
		if err != nil {
			t.Fatal(err)
		}
		want := "{\n  \"HeatNumber\": \"H12345\",\n  \"Grade\": \"X52\",\n  \"YieldStrength\": \"0.354\"\n}\n"
		if string(data) != want {
			t.Errorf("record file = %q\nwant %q", data, want)
		}

		callData, err := os.ReadFile(filepath.Join(outDir, "mtr-1.call.json"))
		if err != nil {
			t.Fatalf("call record missing: %v", err)
		}
		var call llmcall.Call
		if err := json.Unmarshal(callData, &call); err != nil {
			t.Fatal(err)
		}
		if call.RunID != proc.RunID() || call.PromptVersion == "" || call.Strategy != "object_scan" || !call.Success {
			t.Errorf("call = %+v", call)
		}
		if out.CallPath != filepath.Join(outDir, "mtr-1.call.json") {
			t.Errorf("CallPath = %q", out.CallPath)
		}

		f, err := excelize.OpenFile(xlsx)
		if err != nil {
			t.Fatalf("spreadsheet missing: %v", err)
		}
		defer f.Close()
		rows, _ := f.GetRows(export.DefaultSheet)
		if len(rows) != 2 || rows[1][0] != "H12345" {
			t.Errorf("rows = %v", rows)
		}
	})

	t.Run("outputs default to the pdf directory", func(t *testing.T) {
		dir := t.TempDir()
		pdf := writePDF(t, dir, "mtr-2.pdf", 1)

		proc, err := NewProcessor(ProcessorConfig{
			Engine: newTestEngine(t, providers.NewMockAnalyzer(analysisResult), providers.NewMockClient(goodResponse)),
		})
		if err != nil {
			t.Fatal(err)
		}
		out, err := proc.ProcessFile(context.Background(), pdf)
		if err != nil {
			t.Fatalf("ProcessFile() error = %v", err)
		}
		if out.OutputPath != filepath.Join(dir, "mtr-2.json") {
			t.Errorf("OutputPath = %q", out.OutputPath)
		}
		if _, err := os.Stat(filepath.Join(dir, "mtr-2.call.json")); !os.IsNotExist(err) {
			t.Error("call record written with recording disabled")
		}
	})

	t.Run("unrecoverable response is saved raw", func(t *testing.T) {
		inDir, outDir := t.TempDir(), t.TempDir()
		pdf := writePDF(t, inDir, "mtr-3.pdf", 1)
		rec := &llmcall.MemoryRecorder{}

		reply := "Sorry, the document is illegible."
		proc, err := NewProcessor(ProcessorConfig{
			Engine:    newTestEngine(t, providers.NewMockAnalyzer(analysisResult), providers.NewMockClient(reply)),
			OutputDir: outDir,
			Recorder:  rec,
		})
		if err != nil {
			t.Fatal(err)
		}

		out, err := proc.ProcessFile(context.Background(), pdf)
		if !errors.Is(err, recovery.ErrUnrecoverable) {
			t.Fatalf("error = %v, want ErrUnrecoverable", err)
		}
		if out.ErrorKind != KindUnrecoverable || out.OK() {
			t.Errorf("outcome = %+v", out)
		}
		raw, err := os.ReadFile(filepath.Join(outDir, "mtr-3.raw.txt"))
		if err != nil {
			t.Fatalf("raw response missing: %v", err)
		}
		if string(raw) != reply {
			t.Errorf("raw = %q", raw)
		}
		if _, err := os.Stat(filepath.Join(outDir, "mtr-3.json")); !os.IsNotExist(err) {
			t.Error("record file written for unrecoverable response")
		}

		calls := rec.Calls()
		if len(calls) != 1 || calls[0].Success || calls[0].Error == "" {
			t.Errorf("calls = %+v", calls)
		}
	})

	t.Run("invalid inputs", func(t *testing.T) {
		dir := t.TempDir()
		notPDF := filepath.Join(dir, "notes.txt")
		_ = os.WriteFile(notPDF, []byte("hello"), 0o644)
		garbage := filepath.Join(dir, "broken.pdf")
		_ = os.WriteFile(garbage, []byte("this is not a pdf"), 0o644)

		analyzer := providers.NewMockAnalyzer(analysisResult)
		proc, err := NewProcessor(ProcessorConfig{
			Engine: newTestEngine(t, analyzer, providers.NewMockClient(goodResponse)),
		})
		if err != nil {
			t.Fatal(err)
		}

		for _, path := range []string{notPDF, garbage, filepath.Join(dir, "missing.pdf"), dir + ".pdf"} {
			out, err := proc.ProcessFile(context.Background(), path)
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("%s: error = %v, want ErrInvalidInput", filepath.Base(path), err)
			}
			if out == nil || out.ErrorKind != KindInvalidInput {
				t.Errorf("%s: outcome = %+v", filepath.Base(path), out)
			}
		}
		if analyzer.SubmitCount() != 0 {
			t.Errorf("invalid input reached the analyzer %d times", analyzer.SubmitCount())
		}
	})
}

func TestReadPDF(t *testing.T) {
	dir := t.TempDir()
	path := writePDF(t, dir, "three.PDF", 3)

	data, pages, err := readPDF(path)
	if err != nil {
		t.Fatalf("readPDF() error = %v", err)
	}
	if pages != 3 {
		t.Errorf("pages = %d, want 3", pages)
	}
	if !strings.HasPrefix(string(data), "%PDF-") {
		t.Error("expected PDF bytes")
	}
}
