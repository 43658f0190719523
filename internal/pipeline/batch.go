package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/metrics"
)

// Summary reports a batch run.
type Summary struct {
	Total     int           `json:"total" yaml:"total"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	RunID     string        `json:"run_id" yaml:"run_id"`

	// Calls summarizes the model calls made during the run.
	Calls *metrics.Stats `json:"calls" yaml:"calls"`

	// Outcomes are in input order.
	Outcomes []*Outcome `json:"outcomes" yaml:"outcomes"`
}

// FailuresByKind counts failed documents per error kind.
func (s *Summary) FailuresByKind() map[string]int {
	counts := make(map[string]int)
	for _, o := range s.Outcomes {
		if !o.OK() {
			counts[o.ErrorKind]++
		}
	}
	return counts
}

// ProcessBatch processes paths with at most MaxWorkers documents in
// flight. A failing document never stops the others; its error is kept in
// its Outcome. Only cancellation of ctx ends the batch early, and documents
// not yet started are then reported as canceled.
//
// A document whose outputs would land on the same files as an earlier one
// in paths (same output directory and base name, compared without case) is
// not processed and fails with ErrInvalidInput.
func (p *Processor) ProcessBatch(ctx context.Context, paths []string) *Summary {
	start := time.Now()
	summary := &Summary{
		Total:    len(paths),
		RunID:    p.runID,
		Outcomes: make([]*Outcome, len(paths)),
	}

	collisions := p.outputCollisions(paths)

	var g errgroup.Group
	g.SetLimit(p.maxWorkers)

	for i, path := range paths {
		if first, ok := collisions[i]; ok {
			out := &Outcome{Path: path}
			out.fail(fmt.Errorf("%w: %s would overwrite the outputs of %s", ErrInvalidInput, path, first))
			p.logger.Warn("skipping document with colliding outputs", "document", path, "collides_with", first)
			summary.Outcomes[i] = out
			continue
		}
		if err := ctx.Err(); err != nil {
			out := &Outcome{Path: path}
			out.fail(err)
			summary.Outcomes[i] = out
			continue
		}
		g.Go(func() error {
			out, _ := p.ProcessFile(ctx, path)
			summary.Outcomes[i] = out
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range summary.Outcomes {
		if o.OK() {
			summary.Succeeded++
		} else {
			summary.Failed++
		}
	}
	summary.Duration = time.Since(start)
	summary.Calls = p.stats.Stats()

	p.logger.Info("batch complete",
		"run_id", p.runID,
		"total", summary.Total,
		"succeeded", summary.Succeeded,
		"failed", summary.Failed,
		"input_tokens", summary.Calls.TotalInputTokens,
		"output_tokens", summary.Calls.TotalOutputTokens,
		"duration", summary.Duration)
	return summary
}

// outputCollisions maps the index of every path whose output stem was
// already claimed by an earlier path to that earlier path.
func (p *Processor) outputCollisions(paths []string) map[int]string {
	claimed := make(map[string]string, len(paths))
	collisions := make(map[int]string)
	for i, path := range paths {
		stem := strings.ToLower(filepath.Clean(p.outputPath(path, "")))
		if first, ok := claimed[stem]; ok {
			collisions[i] = first
			continue
		}
		claimed[stem] = path
	}
	return collisions
}

// CollectPDFs expands args into PDF paths. Directories contribute their
// *.pdf entries (case-insensitive, not recursive) in sorted order; files
// are kept as given so invalid ones are reported per document.
func CollectPDFs(args []string) ([]string, error) {
	var paths []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		if !info.IsDir() {
			paths = append(paths, arg)
			continue
		}

		entries, err := os.ReadDir(arg)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", arg, err)
		}
		var found []string
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.HasSuffix(strings.ToLower(entry.Name()), ".pdf") {
				found = append(found, filepath.Join(arg, entry.Name()))
			}
		}
		sort.Strings(found)
		paths = append(paths, found...)
	}
	return paths, nil
}
