package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/aseker00/alephbert/internal/bench"
	"github.com/aseker00/alephbert/internal/dataset"
	"github.com/aseker00/alephbert/internal/train"
)

func newBenchCmd() *cobra.Command {
	var (
		runs          int
		format        string
		minThroughput float64
	)

	cmd := &cobra.Command{
		Use:   "bench [sentence...]",
		Short: "Benchmark decoding latency and throughput",
		Long:  "Each argument is one sentence. Without arguments, sentences are read from stdin one per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}

			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			lines := args
			if len(lines) == 0 {
				lines, err = readLines(cmd.InOrStdin())
				if err != nil {
					return err
				}
			}

			samples := rawSamples(lines)
			if len(samples) == 0 {
				return fmt.Errorf("bench: no input sentences")
			}

			p, err := newPipeline(cfg)
			if err != nil {
				return err
			}

			defer func() {
				if cerr := p.Close(); cerr != nil {
					slog.Warn("close encoder", "error", cerr)
				}
			}()

			examples, err := p.encode(samples)
			if err != nil {
				return err
			}

			results, err := runBench(cmd.Context(), p.session, dataset.Batches(examples, cfg.Train.BatchSize), runs)
			if err != nil {
				return err
			}

			stats := bench.ComputeStats(bench.Durations(results, false))

			out := cmd.OutOrStdout()
			if format == "json" {
				if err := bench.FormatJSON(results, stats, out); err != nil {
					return err
				}
			} else {
				bench.FormatTable(results, stats, out)
			}

			warm := bench.ComputeStats(bench.Durations(results, true))

			return bench.CheckThroughput(bench.CalcThroughput(len(examples), warm.Mean), minThroughput)
		},
	}

	cmd.Flags().IntVar(&runs, "runs", 3, "Number of decode passes over the input")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table or json")
	cmd.Flags().Float64Var(&minThroughput, "min-throughput", 0, "Fail when warm mean sentences/s falls below this (0 disables)")

	return cmd
}

// runBench decodes every batch runs times, timing each full pass.
func runBench(ctx context.Context, s *train.Session, batches [][]*dataset.Example, runs int) ([]bench.RunResult, error) {
	results := make([]bench.RunResult, 0, runs)

	for i := range runs {
		start := time.Now()
		sentences := 0

		for _, batch := range batches {
			m, err := train.Process(ctx, s, batch, train.PhaseTest)
			if err != nil {
				return nil, fmt.Errorf("bench run %d: %w", i+1, err)
			}

			sentences += m.Sentences
		}

		r := bench.NewRunResult(i, time.Since(start), sentences)
		slog.Debug("bench run", "run", i+1, "ms", r.Duration.Milliseconds(), "sentences_per_second", r.Throughput)

		results = append(results, r)
	}

	return results, nil
}
