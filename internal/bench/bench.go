// Package bench provides timing primitives for the morphtag bench command.
package bench

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"
)

// ---------------------------------------------------------------------------
// Run result and stats
// ---------------------------------------------------------------------------

// RunResult holds the timing of a single decode pass over the bench input.
type RunResult struct {
	Index      int
	Cold       bool // true for the first run (encoder cache and pools cold)
	Duration   time.Duration
	Sentences  int
	Throughput float64 // sentences per second
}

// NewRunResult fills Throughput from the pass duration.
func NewRunResult(index int, d time.Duration, sentences int) RunResult {
	return RunResult{
		Index:      index,
		Cold:       index == 0,
		Duration:   d,
		Sentences:  sentences,
		Throughput: CalcThroughput(sentences, d),
	}
}

// Stats holds aggregate timing statistics across all runs.
type Stats struct {
	Min  time.Duration
	Max  time.Duration
	Mean time.Duration
}

// ComputeStats calculates min, max and mean over a slice of durations.
func ComputeStats(durations []time.Duration) Stats {
	if len(durations) == 0 {
		return Stats{}
	}

	mn, mx := durations[0], durations[0]

	var sum time.Duration
	for _, d := range durations {
		if d < mn {
			mn = d
		}

		if d > mx {
			mx = d
		}

		sum += d
	}

	return Stats{
		Min:  mn,
		Max:  mx,
		Mean: sum / time.Duration(len(durations)),
	}
}

// Durations extracts the run durations, skipping the cold run when
// warmOnly is set and more than one run exists.
func Durations(runs []RunResult, warmOnly bool) []time.Duration {
	out := make([]time.Duration, 0, len(runs))

	for _, r := range runs {
		if warmOnly && r.Cold && len(runs) > 1 {
			continue
		}

		out = append(out, r.Duration)
	}

	return out
}

// ---------------------------------------------------------------------------
// Throughput
// ---------------------------------------------------------------------------

// CalcThroughput returns sentences per second, or 0 for a zero duration.
func CalcThroughput(sentences int, d time.Duration) float64 {
	if d <= 0 {
		return 0
	}

	return float64(sentences) / d.Seconds()
}

// CheckThroughput returns an error if mean falls below minimum.
// A minimum of 0 disables the gate.
func CheckThroughput(mean, minimum float64) error {
	if minimum <= 0 {
		return nil
	}

	if mean < minimum {
		return fmt.Errorf("mean throughput %.2f sent/s below minimum %.2f", mean, minimum)
	}

	return nil
}

// ---------------------------------------------------------------------------
// Output formatters
// ---------------------------------------------------------------------------

// FormatTable writes a human-readable ASCII table of bench results to w.
func FormatTable(runs []RunResult, stats Stats, w io.Writer) {
	sb := &strings.Builder{}

	fmt.Fprintf(sb, "%-5s  %-5s  %10s  %9s  %10s\n", "Run", "Cold", "MS", "Sentences", "Sent/s")
	fmt.Fprintln(sb, strings.Repeat("-", 48))

	for _, r := range runs {
		cold := ""
		if r.Cold {
			cold = "yes"
		}

		fmt.Fprintf(sb, "%-5d  %-5s  %10.1f  %9d  %10.2f\n",
			r.Index+1,
			cold,
			float64(r.Duration.Microseconds())/1000,
			r.Sentences,
			r.Throughput,
		)
	}

	fmt.Fprintln(sb, strings.Repeat("-", 48))
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (min)\n", "", "", float64(stats.Min.Microseconds())/1000)
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (mean)\n", "", "", float64(stats.Mean.Microseconds())/1000)
	fmt.Fprintf(sb, "%-5s  %-5s  %10.1f  (max)\n", "", "", float64(stats.Max.Microseconds())/1000)

	fmt.Fprint(w, sb.String())
}

// jsonReport is the top-level JSON structure emitted by FormatJSON.
type jsonReport struct {
	Runs  []jsonRun `json:"runs"`
	Stats jsonStats `json:"stats"`
}

type jsonRun struct {
	Index      int     `json:"index"`
	Cold       bool    `json:"cold"`
	DurationMS float64 `json:"duration_ms"`
	Sentences  int     `json:"sentences"`
	Throughput float64 `json:"sentences_per_second"`
}

type jsonStats struct {
	MinMS  float64 `json:"min_ms"`
	MeanMS float64 `json:"mean_ms"`
	MaxMS  float64 `json:"max_ms"`
}

// FormatJSON writes a JSON report of bench results to w.
func FormatJSON(runs []RunResult, stats Stats, w io.Writer) error {
	jr := jsonReport{
		Runs: make([]jsonRun, len(runs)),
		Stats: jsonStats{
			MinMS:  float64(stats.Min.Microseconds()) / 1000,
			MeanMS: float64(stats.Mean.Microseconds()) / 1000,
			MaxMS:  float64(stats.Max.Microseconds()) / 1000,
		},
	}

	for i, r := range runs {
		jr.Runs[i] = jsonRun{
			Index:      r.Index,
			Cold:       r.Cold,
			DurationMS: float64(r.Duration.Microseconds()) / 1000,
			Sentences:  r.Sentences,
			Throughput: r.Throughput,
		}
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	return enc.Encode(jr)
}
