package bench_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/example/go-kreyol-tts/internal/bench"
)

// ---------------------------------------------------------------------------
// Aggregation
// ---------------------------------------------------------------------------

func TestStats_MinMaxMean(t *testing.T) {
	durations := []time.Duration{
		100 * time.Millisecond,
		200 * time.Millisecond,
		300 * time.Millisecond,
	}
	s := bench.ComputeStats(durations)

	if s.Min != 100*time.Millisecond {
		t.Errorf("want min=100ms, got %v", s.Min)
	}

	if s.Max != 300*time.Millisecond {
		t.Errorf("want max=300ms, got %v", s.Max)
	}

	if s.Mean != 200*time.Millisecond {
		t.Errorf("want mean=200ms, got %v", s.Mean)
	}
}

func TestStats_SingleRun(t *testing.T) {
	s := bench.ComputeStats([]time.Duration{150 * time.Millisecond})
	if s.Min != s.Max || s.Min != s.Mean {
		t.Errorf("single run: min/max/mean should all be equal, got min=%v max=%v mean=%v", s.Min, s.Max, s.Mean)
	}
}

func TestStats_Empty(t *testing.T) {
	if s := bench.ComputeStats(nil); s != (bench.Stats{}) {
		t.Errorf("want zero stats, got %+v", s)
	}
}

func TestDurations(t *testing.T) {
	runs := []bench.RunResult{{Duration: time.Second}, {Duration: 2 * time.Second}}
	got := bench.Durations(runs)
	if len(got) != 2 || got[0] != time.Second || got[1] != 2*time.Second {
		t.Errorf("Durations = %v", got)
	}
}

// ---------------------------------------------------------------------------
// Phone rate
// ---------------------------------------------------------------------------

func TestPhoneRate_Calculation(t *testing.T) {
	// 50 phones in 250ms → 200 phones/s
	rate := bench.CalcPhoneRate(250*time.Millisecond, 50)
	if rate < 199.9 || rate > 200.1 {
		t.Errorf("want rate≈200, got %.2f", rate)
	}
}

func TestPhoneRate_ZeroDuration(t *testing.T) {
	if rate := bench.CalcPhoneRate(0, 50); rate != 0 {
		t.Errorf("want 0 for zero duration, got %.2f", rate)
	}
}

// ---------------------------------------------------------------------------
// Latency gate
// ---------------------------------------------------------------------------

func TestMeanThreshold_Exceeds(t *testing.T) {
	if err := bench.CheckMeanThreshold(150*time.Millisecond, 100*time.Millisecond); err == nil {
		t.Error("want error when mean exceeds threshold")
	}
}

func TestMeanThreshold_Below(t *testing.T) {
	if err := bench.CheckMeanThreshold(80*time.Millisecond, 100*time.Millisecond); err != nil {
		t.Errorf("want no error below threshold, got: %v", err)
	}
}

func TestMeanThreshold_Exactly(t *testing.T) {
	if err := bench.CheckMeanThreshold(100*time.Millisecond, 100*time.Millisecond); err != nil {
		t.Errorf("want no error at exact threshold, got: %v", err)
	}
}

func TestMeanThreshold_DisabledWhenZero(t *testing.T) {
	if err := bench.CheckMeanThreshold(time.Hour, 0); err != nil {
		t.Errorf("threshold=0 should disable gate, got: %v", err)
	}
}

// ---------------------------------------------------------------------------
// Output formatting
// ---------------------------------------------------------------------------

func sampleRuns() ([]bench.RunResult, bench.Stats) {
	runs := []bench.RunResult{
		{Index: 0, Cold: true, Duration: 8 * time.Millisecond, Phones: 22, PhoneRate: 2750},
		{Index: 1, Duration: 4 * time.Millisecond, Phones: 22, PhoneRate: 5500},
	}
	return runs, bench.ComputeStats(bench.Durations(runs))
}

func TestFormatTable_ContainsHeaders(t *testing.T) {
	runs, stats := sampleRuns()

	var buf strings.Builder
	bench.FormatTable(runs, stats, &buf)
	out := buf.String()

	for _, want := range []string{"run", "cold", "ms", "phones/s", "(mean)", "yes"} {
		if !strings.Contains(strings.ToLower(out), want) {
			t.Errorf("table output missing %q:\n%s", want, out)
		}
	}
}

func TestFormatJSON_IsValidJSON(t *testing.T) {
	runs, stats := sampleRuns()

	var buf bytes.Buffer
	if err := bench.FormatJSON(runs, stats, &buf); err != nil {
		t.Fatalf("FormatJSON: %v", err)
	}

	var out struct {
		Runs []struct {
			Phones int  `json:"phones"`
			Cold   bool `json:"cold"`
		} `json:"runs"`
		Stats struct {
			MeanMS float64 `json:"mean_ms"`
		} `json:"stats"`
	}
	if err := json.Unmarshal(buf.Bytes(), &out); err != nil {
		t.Fatalf("FormatJSON produced invalid JSON: %v\n%s", err, buf.String())
	}
	if len(out.Runs) != 2 || !out.Runs[0].Cold || out.Runs[1].Phones != 22 {
		t.Errorf("runs = %+v", out.Runs)
	}
	if out.Stats.MeanMS != 6 {
		t.Errorf("mean_ms = %v, want 6", out.Stats.MeanMS)
	}
}
