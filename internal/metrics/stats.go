// Package metrics aggregates model call records into run statistics.
package metrics

import (
	"sort"
	"sync"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/llmcall"
)

// Collector accumulates call records in memory. It implements
// llmcall.Recorder so it can sit beside a file recorder.
type Collector struct {
	mu    sync.Mutex
	calls []*llmcall.Call
}

var _ llmcall.Recorder = (*Collector)(nil)

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// RecordCall adds call to the collector.
func (c *Collector) RecordCall(call *llmcall.Call) error {
	if call == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, call)
	return nil
}

// Stats summarizes every call recorded so far.
func (c *Collector) Stats() *Stats {
	c.mu.Lock()
	calls := make([]*llmcall.Call, len(c.calls))
	copy(calls, c.calls)
	c.mu.Unlock()
	return Summarize(calls)
}

// Stats provides call counts, latency percentiles and token totals.
type Stats struct {
	// Basic counts
	Count        int `json:"count" yaml:"count"`
	SuccessCount int `json:"success_count" yaml:"success_count"`
	ErrorCount   int `json:"error_count" yaml:"error_count"`

	// Latency percentiles (milliseconds)
	LatencyP50 float64 `json:"latency_p50_ms" yaml:"latency_p50_ms"`
	LatencyP95 float64 `json:"latency_p95_ms" yaml:"latency_p95_ms"`
	LatencyAvg float64 `json:"latency_avg_ms" yaml:"latency_avg_ms"`
	LatencyMax float64 `json:"latency_max_ms" yaml:"latency_max_ms"`

	// Token stats
	TotalInputTokens  int     `json:"total_input_tokens" yaml:"total_input_tokens"`
	TotalOutputTokens int     `json:"total_output_tokens" yaml:"total_output_tokens"`
	AvgOutputTokens   float64 `json:"avg_output_tokens" yaml:"avg_output_tokens"`

	// Calls cut off by max_tokens
	Truncated int `json:"truncated" yaml:"truncated"`

	// Recovery strategy per call; unrecovered calls count under "none".
	ByStrategy map[string]int `json:"by_strategy,omitempty" yaml:"by_strategy,omitempty"`
	ByModel    map[string]int `json:"by_model,omitempty" yaml:"by_model,omitempty"`
}

// Summarize computes Stats over calls.
func Summarize(calls []*llmcall.Call) *Stats {
	stats := &Stats{Count: len(calls)}
	if len(calls) == 0 {
		return stats
	}
	stats.ByStrategy = make(map[string]int)
	stats.ByModel = make(map[string]int)

	var latencies []float64
	for _, c := range calls {
		if c.Success {
			stats.SuccessCount++
		} else {
			stats.ErrorCount++
		}

		stats.TotalInputTokens += c.InputTokens
		stats.TotalOutputTokens += c.OutputTokens
		if c.FinishReason == "length" {
			stats.Truncated++
		}

		strategy := c.Strategy
		if strategy == "" {
			strategy = "none"
		}
		stats.ByStrategy[strategy]++
		if c.Model != "" {
			stats.ByModel[c.Model]++
		}

		if c.LatencyMs > 0 {
			latencies = append(latencies, float64(c.LatencyMs))
		}
	}
	stats.AvgOutputTokens = float64(stats.TotalOutputTokens) / float64(stats.Count)

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		stats.LatencyMax = latencies[len(latencies)-1]

		var sum float64
		for _, l := range latencies {
			sum += l
		}
		stats.LatencyAvg = sum / float64(len(latencies))

		stats.LatencyP50 = percentile(latencies, 50)
		stats.LatencyP95 = percentile(latencies, 95)
	}
	return stats
}

// percentile calculates the p-th percentile from a sorted slice of values.
func percentile(sorted []float64, p float64) float64 {
	if len(sorted) == 0 {
		return 0
	}
	if len(sorted) == 1 {
		return sorted[0]
	}

	idx := (p / 100.0) * float64(len(sorted)-1)
	lower := int(idx)
	upper := lower + 1
	if upper >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	// Linear interpolation
	weight := idx - float64(lower)
	return sorted[lower]*(1-weight) + sorted[upper]*weight
}
