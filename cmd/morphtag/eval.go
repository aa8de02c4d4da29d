package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aseker00/alephbert/internal/dataset"
	"github.com/aseker00/alephbert/internal/lattice"
	"github.com/aseker00/alephbert/internal/train"
)

func newEvalCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "eval",
		Short: "Decode a labelled dataset and score it against gold",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if cfg.Paths.Data == "" {
				return errors.New("eval: --data is required")
			}

			samples, err := dataset.Load(cfg.Paths.Data)
			if err != nil {
				return err
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

			batches := dataset.Batches(examples, cfg.Train.BatchSize)

			m, err := train.RunEpoch(cmd.Context(), p.session, batches, 1, train.PhaseTest)
			if err != nil {
				return err
			}

			if err := printScores(cmd.OutOrStdout(), m); err != nil {
				return err
			}

			if cfg.Paths.LatticeOut == "" {
				return nil
			}

			f, err := os.Create(cfg.Paths.LatticeOut)
			if err != nil {
				return fmt.Errorf("create lattice output: %w", err)
			}

			if err := lattice.WriteTSV(f, m.Rows); err != nil {
				_ = f.Close()
				return err
			}

			slog.Info("lattice written", "path", cfg.Paths.LatticeOut, "rows", len(m.Rows))

			return f.Close()
		},
	}
}

func printScores(w io.Writer, m *train.Metrics) error {
	formAligned, formMSet := m.FormScores()
	tagAligned, tagMSet := m.TagScores()

	_, err := fmt.Fprintf(w,
		"sentences: %d\nchar loss: %.4f\ntag loss: %.4f\nsegment loss: %.4f\n"+
			"forms aligned: P %.4f R %.4f F %.4f\nforms mset:    P %.4f R %.4f F %.4f\n"+
			"tags aligned:  P %.4f R %.4f F %.4f\ntags mset:     P %.4f R %.4f F %.4f\n",
		m.Sentences,
		m.Losses.Char.Mean(), m.Losses.Tag.Mean(), m.Losses.Segment.Mean(),
		formAligned.Precision, formAligned.Recall, formAligned.F1,
		formMSet.Precision, formMSet.Recall, formMSet.F1,
		tagAligned.Precision, tagAligned.Recall, tagAligned.F1,
		tagMSet.Precision, tagMSet.Recall, tagMSet.F1,
	)

	return err
}
