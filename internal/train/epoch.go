package train

import (
	"context"
	"fmt"
	"time"

	"github.com/aseker00/alephbert/internal/dataset"
)

// RunEpoch processes every batch, logging running losses and scores every
// PrintEvery batches, and returns the accumulated metrics.
func RunEpoch(ctx context.Context, s *Session, batches [][]*dataset.Example, epoch int, phase Phase) (*Metrics, error) {
	start := time.Now()
	total := &Metrics{}
	window := &Metrics{}

	for i, batch := range batches {
		m, err := Process(ctx, s, batch, phase)
		if err != nil {
			return nil, fmt.Errorf("train: epoch %d %s batch %d: %w", epoch, phase, i+1, err)
		}

		window.Merge(m)

		if (i+1)%s.PrintEvery == 0 {
			s.report(window, epoch, phase, i+1)
			total.Merge(window)
			window = &Metrics{}
		}
	}

	if window.Batches > 0 {
		total.Merge(window)
	}

	formAligned, formMSet := total.FormScores()
	tagAligned, tagMSet := total.TagScores()

	s.Logger.Info("epoch complete",
		"epoch", epoch,
		"phase", string(phase),
		"batches", total.Batches,
		"sentences", total.Sentences,
		"char_loss", total.Losses.Char.Mean(),
		"tag_loss", total.Losses.Tag.Mean(),
		"segment_loss", total.Losses.Segment.Mean(),
		"form_aligned_f1", formAligned.F1,
		"form_mset_f1", formMSet.F1,
		"tag_aligned_f1", tagAligned.F1,
		"tag_mset_f1", tagMSet.F1,
		"ms", time.Since(start).Milliseconds(),
	)

	return total, nil
}

func (s *Session) report(w *Metrics, epoch int, phase Phase, step int) {
	formAligned, formMSet := w.FormScores()
	tagAligned, tagMSet := w.TagScores()

	s.Logger.Info("epoch progress",
		"epoch", epoch,
		"phase", string(phase),
		"step", step,
		"char_loss", w.Losses.Char.Mean(),
		"tag_loss", w.Losses.Tag.Mean(),
		"form_aligned_f1", formAligned.F1,
		"form_mset_f1", formMSet.F1,
		"tag_aligned_f1", tagAligned.F1,
		"tag_mset_f1", tagMSet.F1,
	)

	last := len(w.Words) - 1
	if last < 0 {
		return
	}

	s.Logger.Debug("last sentence",
		"tokens", w.Words[last],
		"gold_forms", w.GoldForms[last],
		"decoded_forms", w.DecodedForms[last],
		"gold_tags", w.GoldTags[last],
		"decoded_tags", w.DecodedTags[last],
	)
}
