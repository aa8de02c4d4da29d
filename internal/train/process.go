package train

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/sourcegraph/conc/pool"

	"github.com/aseker00/alephbert/internal/dataset"
	"github.com/aseker00/alephbert/internal/lattice"
	"github.com/aseker00/alephbert/internal/morph"
	"github.com/aseker00/alephbert/internal/runtime/ops"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// Phase names a pass over a dataset.
type Phase string

const (
	PhaseTrain Phase = "train"
	PhaseDev   Phase = "dev"
	PhaseTest  Phase = "test"
)

// Training reports whether the phase draws teacher forcing, applies dropout
// and steps the optimizer.
func (p Phase) Training() bool { return p == PhaseTrain }

type sentenceResult struct {
	losses  Losses
	words   []string
	decoded [2][][]string // forms, tags
	gold    [2][][]string
	rows    []lattice.Row
}

// Process runs one batch. Training phases run sentences in order so random
// draws are reproducible, then step the optimizer once. Other phases decode
// sentences concurrently.
func Process(ctx context.Context, s *Session, batch []*dataset.Example, phase Phase) (*Metrics, error) {
	results := make([]*sentenceResult, len(batch))

	if phase.Training() {
		for i, ex := range batch {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			forced := ex.Labelled() && s.RNG.Float64() < s.TeacherForcingRatio

			r, err := s.sentence(ctx, ex, forced, s.RNG)
			if err != nil {
				return nil, err
			}

			results[i] = r
		}
	} else {
		p := pool.New().WithMaxGoroutines(s.Workers).WithContext(ctx).WithCancelOnError()

		for i, ex := range batch {
			p.Go(func(ctx context.Context) error {
				r, err := s.sentence(ctx, ex, false, nil)
				if err != nil {
					return err
				}

				results[i] = r

				return nil
			})
		}

		if err := p.Wait(); err != nil {
			return nil, err
		}
	}

	m := &Metrics{Batches: 1}

	for _, r := range results {
		m.Losses.Merge(r.losses)
		m.Sentences++
		m.Words = append(m.Words, r.words)
		m.DecodedForms = append(m.DecodedForms, r.decoded[0])
		m.DecodedTags = append(m.DecodedTags, r.decoded[1])
		m.GoldForms = append(m.GoldForms, r.gold[0])
		m.GoldTags = append(m.GoldTags, r.gold[1])
		m.Rows = append(m.Rows, r.rows...)
	}

	if phase.Training() && s.Optimizer != nil {
		if err := s.Optimizer.Step(ctx, m.Losses); err != nil {
			return nil, fmt.Errorf("train: optimizer step: %w", err)
		}
	}

	return m, nil
}

// sentence encodes, decodes and scores one example. A non-nil rng enables
// dropout.
func (s *Session) sentence(ctx context.Context, ex *dataset.Example, forced bool, rng *rand.Rand) (*sentenceResult, error) {
	c, err := s.contextFor(ctx, ex)
	if err != nil {
		return nil, err
	}

	in := morph.Sentence{ID: ex.ID, Context: c, Positions: ex.Positions, Chars: ex.Chars}
	if forced {
		in.Targets = ex.Targets
	}

	out, err := s.Model.Forward(in, rng)
	if err != nil {
		return nil, err
	}

	r := &sentenceResult{words: ex.Words}

	if ex.Labelled() {
		if r.losses, err = s.losses(ex, out); err != nil {
			return nil, err
		}
	}

	chars, err := out.DecodeChars()
	if err != nil {
		return nil, err
	}

	tags, err := out.DecodeTags()
	if err != nil {
		return nil, err
	}

	r.decoded = s.toStrings(chars, tags)

	if ex.Labelled() {
		r.gold = s.toStrings(ex.Targets, ex.Tags)
	}

	r.rows = lattice.Rows(ex.ID, ex.Words, r.decoded[0], r.decoded[1])

	s.Logger.Debug("sentence decoded",
		"sent_id", ex.ID,
		"tokens", len(ex.Words),
		"teacher_forcing", forced,
		"forms", r.decoded[0],
		"tags", r.decoded[1],
	)

	return r, nil
}

func (s *Session) losses(ex *dataset.Example, out *morph.Output) (Losses, error) {
	var l Losses

	if len(ex.Targets) == 0 {
		return l, nil
	}

	pad := s.Vocabs.CharSymbols.PAD

	mean, n, err := flatLoss(out.CharScores, ex.Targets, pad)
	if err != nil {
		return l, fmt.Errorf("train: sentence %s char loss: %w", ex.ID, err)
	}

	l.Char.Add(mean, n)

	tagPad := s.Vocabs.TagSymbols.PAD

	mean, n, err = flatLoss(out.TagScores, ex.Tags, tagPad)
	if err != nil {
		return l, fmt.Errorf("train: sentence %s tag loss: %w", ex.ID, err)
	}

	l.Tag.Add(mean, n)

	// The coarse segment labels share the tag targets only when they share
	// the tag vocabulary.
	if s.Model.Config.CoarseLabels == s.Model.Config.TagVocabSize {
		mean, n, err = flatLoss(out.SegmentScores, ex.Tags, tagPad)
		if err != nil {
			return l, fmt.Errorf("train: sentence %s segment loss: %w", ex.ID, err)
		}

		l.Segment.Add(mean, n)
	}

	return l, nil
}

// flatLoss scores [N, L, V] against N target rows of length L.
func flatLoss(scores *tensor.Tensor, targets [][]int, ignore int) (float64, int, error) {
	n, rows, width := scores.Dim(0), scores.Dim(1), scores.Dim(2)
	if len(targets) != n {
		return 0, 0, fmt.Errorf("%w: %d score rows but %d target rows", morph.ErrShapeMismatch, n, len(targets))
	}

	flat := make([]int, 0, n*rows)

	for i, t := range targets {
		if len(t) != rows {
			return 0, 0, fmt.Errorf("%w: token %d has %d targets, want %d", morph.ErrShapeMismatch, i, len(t), rows)
		}

		flat = append(flat, t...)
	}

	x, err := scores.Reshape([]int64{int64(n * rows), int64(width)})
	if err != nil {
		return 0, 0, err
	}

	return ops.CrossEntropy(x, flat, ignore)
}

// toStrings converts per-token char and tag index streams into forms and
// tag labels.
func (s *Session) toStrings(chars, tags [][]int) [2][][]string {
	var out [2][][]string

	for _, c := range chars {
		out[0] = append(out[0], lattice.Segments(c, s.Vocabs.Chars, s.Vocabs.CharSymbols))
	}

	for _, t := range tags {
		out[1] = append(out[1], lattice.Tags(t, s.Vocabs.Tags, s.Vocabs.TagSymbols))
	}

	return out
}
