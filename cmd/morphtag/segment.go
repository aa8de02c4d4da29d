package main

import (
	"bufio"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aseker00/alephbert/internal/dataset"
	"github.com/aseker00/alephbert/internal/lattice"
	"github.com/aseker00/alephbert/internal/train"
)

func newSegmentCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "segment [sentence...]",
		Short: "Segment and tag raw sentences, printing lattice rows",
		Long:  "Each argument is one sentence. Without arguments, sentences are read from stdin one per line.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
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
				return fmt.Errorf("segment: no input sentences")
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

			m, err := train.RunEpoch(cmd.Context(), p.session, dataset.Batches(examples, cfg.Train.BatchSize), 1, train.PhaseTest)
			if err != nil {
				return err
			}

			return lattice.WriteTSV(cmd.OutOrStdout(), m.Rows)
		},
	}
}

func readLines(r io.Reader) ([]string, error) {
	var lines []string

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines = append(lines, sc.Text())
	}

	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}

	return lines, nil
}

// rawSamples splits each non-blank line on whitespace into an unlabelled
// sample, numbering sentences from 1.
func rawSamples(lines []string) []dataset.Sample {
	var out []dataset.Sample

	for _, line := range lines {
		words := strings.Fields(line)
		if len(words) == 0 {
			continue
		}

		s := dataset.Sample{SentID: fmt.Sprint(len(out) + 1)}
		for _, w := range words {
			s.Tokens = append(s.Tokens, dataset.Token{Text: w})
		}

		out = append(out, s)
	}

	return out
}
