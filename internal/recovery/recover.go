// Package recovery pulls a single structured record out of free-form model
// output. Model responses are untrusted: they may wrap the record in prose or
// markdown fences, or include illustrative fragments that are not the answer.
package recovery

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/docnode"
)

// Strategy names the extraction step that produced a record.
type Strategy string

const (
	StrategyObjectScan Strategy = "object_scan"
	StrategyArrayScan  Strategy = "array_scan"
	StrategyFullText   Strategy = "full_text"
	StrategyFenced     Strategy = "fenced"
)

// ErrUnrecoverable is matched by every *UnrecoverableError.
var ErrUnrecoverable = errors.New("unrecoverable model response")

// UnrecoverableError is returned when no strategy yields valid structured
// data. Raw holds the full response so callers can persist it.
type UnrecoverableError struct {
	Raw string
}

func (e *UnrecoverableError) Error() string {
	return fmt.Sprintf("no structured data found in model response (%d bytes)", len(e.Raw))
}

func (e *UnrecoverableError) Unwrap() error {
	return ErrUnrecoverable
}

// Record is a recovered object or array.
type Record struct {
	Node docnode.Node
	// Raw is the exact substring that parsed.
	Raw      string
	Strategy Strategy
	// Inner is the strategy applied inside the fence when Strategy is
	// StrategyFenced.
	Inner Strategy
}

// Recover extracts one object or array from text. Strategies run in order
// and the first candidate that parses wins:
//
//  1. object scan: each '{' outside fenced blocks, matched by bracket depth
//  2. array scan: the same from each '['
//  3. full text: the whole response
//  4. fenced: the whole content of each fenced block, then steps 1-2 inside it
//
// When skel is a sequence the array scan runs before the object scan. The
// skeleton does not otherwise gate the result; partial records are
// returned as-is.
func Recover(text string, skel docnode.Node) (*Record, error) {
	scans := []Strategy{StrategyObjectScan, StrategyArrayScan}
	if skel.Kind == docnode.Sequence {
		scans = []Strategy{StrategyArrayScan, StrategyObjectScan}
	}

	blocks := fencedBlocks(text)
	if rec := scan(withoutFences(text, blocks), scans); rec != nil {
		return rec, nil
	}
	if rec := fullText(text); rec != nil {
		return rec, nil
	}

	for _, blk := range blocks {
		rec := fullText(blk.Inner)
		if rec == nil {
			rec = scan(blk.Inner, scans)
		}
		if rec != nil {
			rec.Inner = rec.Strategy
			rec.Strategy = StrategyFenced
			return rec, nil
		}
	}

	return nil, &UnrecoverableError{Raw: text}
}

// scan runs the bracket scans over text in the given order.
func scan(text string, scans []Strategy) *Record {
	for _, s := range scans {
		open := byte('{')
		if s == StrategyArrayScan {
			open = '['
		}
		var rec *Record
		eachCandidate(text, open, func(region string) bool {
			node, ok := parseStructured(region)
			if ok {
				rec = &Record{Node: node, Raw: region, Strategy: s}
			}
			return ok
		})
		if rec != nil {
			return rec
		}
	}
	return nil
}

// fullText parses the whole of text.
func fullText(text string) *Record {
	trimmed := strings.TrimSpace(text)
	if node, ok := parseStructured(trimmed); ok {
		return &Record{Node: node, Raw: trimmed, Strategy: StrategyFullText}
	}
	return nil
}

// parseStructured accepts only objects and arrays; bare scalars are not
// records.
func parseStructured(s string) (docnode.Node, bool) {
	node, err := docnode.ParseString(s)
	if err != nil {
		return docnode.Node{}, false
	}
	if node.Kind != docnode.Mapping && node.Kind != docnode.Sequence {
		return docnode.Node{}, false
	}
	return node, true
}
