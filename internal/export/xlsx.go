// Package export keeps a spreadsheet of extracted records, one row per key.
package export

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/xuri/excelize/v2"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

const (
	DefaultSheet = "MTR"
	DefaultKey   = "HeatNumber"
)

// Exporter upserts records into one workbook. Calls are serialized so a
// batch can share it.
type Exporter struct {
	mu     sync.Mutex
	path   string
	key    string
	sheet  string
	logger *slog.Logger
}

// NewExporter creates an exporter for the workbook at path, keyed by the
// flattened column key.
func NewExporter(path, key string, logger *slog.Logger) *Exporter {
	if key == "" {
		key = DefaultKey
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{path: path, key: key, sheet: DefaultSheet, logger: logger}
}

// Path returns the workbook path.
func (e *Exporter) Path() string {
	return e.path
}

// UpsertResult reports what Upsert did.
type UpsertResult struct {
	Row     int  // 1-based sheet row
	Updated bool // false when the row was appended
}

// Upsert writes record to the workbook at path keyed by key. It is a
// convenience for a one-off Exporter.
func Upsert(path, key string, record docnode.Node) (*UpsertResult, error) {
	return NewExporter(path, key, nil).Upsert(record)
}

// Upsert flattens record to dotted columns and writes it to the row whose
// key column matches, appending a row when none does or the record has no
// key value. Unknown columns are appended to the header.
func (e *Exporter) Upsert(record docnode.Node) (*UpsertResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	columns, values := Columns(record)

	f, err := e.open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	rows, err := f.GetRows(e.sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %s: %w", e.sheet, err)
	}

	var header []string
	if len(rows) > 0 {
		header = rows[0]
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[h] = i
	}
	for _, c := range columns {
		if _, ok := index[c]; !ok {
			index[c] = len(header)
			header = append(header, c)
		}
	}
	if _, ok := index[e.key]; !ok {
		index[e.key] = len(header)
		header = append(header, e.key)
	}

	for i, h := range header {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		if err := f.SetCellValue(e.sheet, cell, h); err != nil {
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	result := &UpsertResult{Row: len(rows) + 1}
	if result.Row < 2 {
		result.Row = 2
	}
	if keyValue := values[e.key]; keyValue != "" {
		keyCol := index[e.key]
		for r := 1; r < len(rows); r++ {
			if keyCol < len(rows[r]) && rows[r][keyCol] == keyValue {
				result.Row = r + 1
				result.Updated = true
				break
			}
		}
	} else {
		e.logger.Warn("record has no key value, appending row", "key", e.key)
	}

	if result.Updated {
		// Clear stale cells so a re-extracted record fully replaces the old row.
		for i := range header {
			cell, _ := excelize.CoordinatesToCellName(i+1, result.Row)
			if err := f.SetCellValue(e.sheet, cell, ""); err != nil {
				return nil, fmt.Errorf("failed to clear row: %w", err)
			}
		}
	}
	for _, c := range columns {
		cell, _ := excelize.CoordinatesToCellName(index[c]+1, result.Row)
		if err := f.SetCellValue(e.sheet, cell, values[c]); err != nil {
			return nil, fmt.Errorf("failed to write cell %s: %w", cell, err)
		}
	}

	if err := os.MkdirAll(filepath.Dir(e.path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export dir: %w", err)
	}
	if err := f.SaveAs(e.path); err != nil {
		return nil, fmt.Errorf("failed to save workbook: %w", err)
	}

	e.logger.Debug("spreadsheet row written", "path", e.path, "row", result.Row, "updated", result.Updated)
	return result, nil
}

// open loads the workbook or creates one holding only the export sheet.
func (e *Exporter) open() (*excelize.File, error) {
	f, err := excelize.OpenFile(e.path)
	switch {
	case err == nil:
		if idx, _ := f.GetSheetIndex(e.sheet); idx == -1 {
			if _, err := f.NewSheet(e.sheet); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to add sheet: %w", err)
			}
		}
		return f, nil
	case errors.Is(err, os.ErrNotExist):
		f = excelize.NewFile()
		idx, err := f.NewSheet(e.sheet)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to add sheet: %w", err)
		}
		f.SetActiveSheet(idx)
		if e.sheet != "Sheet1" {
			_ = f.DeleteSheet("Sheet1")
		}
		return f, nil
	default:
		return nil, fmt.Errorf("failed to open workbook: %w", err)
	}
}

// Columns flattens record into dotted column names in traversal order and
// their string values. Sequence elements are addressed by index, so
// HNPipeDetails[0].Grade becomes "HNPipeDetails.0.Grade". Nulls become
// empty cells.
func Columns(record docnode.Node) ([]string, map[string]string) {
	var columns []string
	values := make(map[string]string)
	var walk func(n docnode.Node, path string)
	walk = func(n docnode.Node, path string) {
		switch n.Kind {
		case docnode.Mapping:
			for _, e := range n.Entries {
				walk(e.Value, joinColumn(path, e.Key))
			}
		case docnode.Sequence:
			for i, item := range n.Items {
				walk(item, joinColumn(path, strconv.Itoa(i)))
			}
		default:
			if path == "" {
				return
			}
			if _, seen := values[path]; !seen {
				columns = append(columns, path)
			}
			values[path] = scalarString(n)
		}
	}
	walk(record, "")
	return columns, values
}

func joinColumn(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

func scalarString(n docnode.Node) string {
	switch n.Kind {
	case docnode.String, docnode.Number:
		return n.Text
	case docnode.Bool:
		return strconv.FormatBool(n.Bool)
	default:
		return ""
	}
}
