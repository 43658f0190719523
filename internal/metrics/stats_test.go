package metrics

import (
	"sync"
	"testing"

	"github.com/Unigalactix/GasOps-DI-JSON/internal/llmcall"
)

func TestPercentile(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		p      float64
		want   float64
	}{
		{"empty", nil, 50, 0},
		{"single", []float64{7}, 95, 7},
		{"median of four", []float64{10, 20, 30, 40}, 50, 25},
		{"max", []float64{10, 20, 30, 40}, 100, 40},
		{"p75 of five", []float64{100, 200, 300, 400, 500}, 75, 400},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := percentile(tt.values, tt.p); got != tt.want {
				t.Errorf("percentile() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	if s := Summarize(nil); s.Count != 0 || s.ByStrategy != nil {
		t.Errorf("Summarize(nil) = %+v", s)
	}

	calls := []*llmcall.Call{
		{Success: true, LatencyMs: 100, InputTokens: 1000, OutputTokens: 200, Model: "gpt-35", Strategy: "object_scan", FinishReason: "stop"},
		{Success: true, LatencyMs: 300, InputTokens: 1200, OutputTokens: 400, Model: "gpt-35", Strategy: "fenced", FinishReason: "length"},
		{Success: false, LatencyMs: 200, InputTokens: 900, OutputTokens: 0, Model: "gpt-35", Error: "unrecoverable"},
	}
	s := Summarize(calls)

	if s.Count != 3 || s.SuccessCount != 2 || s.ErrorCount != 1 {
		t.Errorf("counts = %d/%d/%d", s.Count, s.SuccessCount, s.ErrorCount)
	}
	if s.TotalInputTokens != 3100 || s.TotalOutputTokens != 600 || s.AvgOutputTokens != 200 {
		t.Errorf("tokens = %d/%d/%v", s.TotalInputTokens, s.TotalOutputTokens, s.AvgOutputTokens)
	}
	if s.LatencyP50 != 200 || s.LatencyMax != 300 || s.LatencyAvg != 200 {
		t.Errorf("latency p50=%v max=%v avg=%v", s.LatencyP50, s.LatencyMax, s.LatencyAvg)
	}
	if s.Truncated != 1 {
		t.Errorf("Truncated = %d", s.Truncated)
	}
	if s.ByStrategy["object_scan"] != 1 || s.ByStrategy["fenced"] != 1 || s.ByStrategy["none"] != 1 {
		t.Errorf("ByStrategy = %v", s.ByStrategy)
	}
	if s.ByModel["gpt-35"] != 3 {
		t.Errorf("ByModel = %v", s.ByModel)
	}
}

func TestCollectorConcurrent(t *testing.T) {
	c := NewCollector()
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = c.RecordCall(&llmcall.Call{Success: true, LatencyMs: 10})
		}()
	}
	wg.Wait()
	_ = c.RecordCall(nil)

	if s := c.Stats(); s.Count != 20 || s.SuccessCount != 20 {
		t.Errorf("Stats() = %+v", s)
	}
}
