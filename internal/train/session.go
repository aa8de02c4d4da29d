// Package train drives the model over batches of encoded sentences: it runs
// the contextual encoder, applies teacher forcing, computes losses and turns
// decoded output into lattices for scoring.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/google/uuid"

	"github.com/aseker00/alephbert/internal/dataset"
	"github.com/aseker00/alephbert/internal/encoder"
	"github.com/aseker00/alephbert/internal/morph"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// Optimizer applies one parameter update from a batch's losses. Gradient
// computation lives with the optimizer.
type Optimizer interface {
	Step(ctx context.Context, l Losses) error
}

// Session owns all mutable state of a training or evaluation run.
type Session struct {
	ID        uuid.UUID
	Model     *morph.Model
	Vocabs    dataset.Vocabs
	Encoder   encoder.Encoder
	Optimizer Optimizer
	RNG       *rand.Rand

	// TeacherForcingRatio is the probability that a training sentence is
	// decoded from its gold stream.
	TeacherForcingRatio float64
	// FreezeEncoder keeps encoder outputs fixed, so each example is encoded
	// once per session.
	FreezeEncoder bool
	// Workers bounds concurrent sentence decoding in evaluation phases.
	Workers int
	// PrintEvery is the batch interval of progress logs.
	PrintEvery int
	Logger     *slog.Logger

	mu    sync.Mutex
	cache map[*dataset.Example]*tensor.Tensor
}

type Option func(*Session)

func WithOptimizer(o Optimizer) Option {
	return func(s *Session) { s.Optimizer = o }
}

func WithSeed(seed uint64) Option {
	return func(s *Session) { s.RNG = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) }
}

func WithTeacherForcing(ratio float64) Option {
	return func(s *Session) { s.TeacherForcingRatio = ratio }
}

func WithFreezeEncoder(freeze bool) Option {
	return func(s *Session) { s.FreezeEncoder = freeze }
}

func WithWorkers(n int) Option {
	return func(s *Session) { s.Workers = n }
}

func WithPrintEvery(n int) Option {
	return func(s *Session) { s.PrintEvery = n }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.Logger = l }
}

// NewSession builds a session. enc may be nil when every example carries
// precomputed context vectors.
func NewSession(m *morph.Model, v dataset.Vocabs, enc encoder.Encoder, opts ...Option) (*Session, error) {
	if m == nil {
		return nil, errors.New("train: model is nil")
	}

	if v.Chars == nil || v.Tags == nil {
		return nil, errors.New("train: vocabularies are not set")
	}

	if v.Chars.Size() != m.Config.CharVocabSize {
		return nil, fmt.Errorf("train: char vocabulary has %d symbols, model expects %d", v.Chars.Size(), m.Config.CharVocabSize)
	}

	if v.Tags.Size() != m.Config.TagVocabSize {
		return nil, fmt.Errorf("train: tag vocabulary has %d symbols, model expects %d", v.Tags.Size(), m.Config.TagVocabSize)
	}

	if enc != nil && enc.Dim() != m.Config.EncoderHiddenSize {
		return nil, fmt.Errorf("train: encoder width %d, model expects %d", enc.Dim(), m.Config.EncoderHiddenSize)
	}

	s := &Session{
		ID:         uuid.New(),
		Model:      m,
		Vocabs:     v,
		Encoder:    enc,
		Workers:    1,
		PrintEvery: 1,
		cache:      make(map[*dataset.Example]*tensor.Tensor),
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.RNG == nil {
		WithSeed(uint64(s.ID.ID()))(s)
	}

	if s.Logger == nil {
		s.Logger = slog.Default()
	}

	if s.TeacherForcingRatio < 0 || s.TeacherForcingRatio > 1 {
		return nil, fmt.Errorf("train: teacher forcing ratio %v outside [0,1]", s.TeacherForcingRatio)
	}

	s.Workers = max(s.Workers, 1)
	s.PrintEvery = max(s.PrintEvery, 1)
	s.Logger = s.Logger.With("session", s.ID.String())

	return s, nil
}

// contextFor returns the per-position vectors of ex.
func (s *Session) contextFor(ctx context.Context, ex *dataset.Example) (*tensor.Tensor, error) {
	if ex.Context != nil {
		return ex.Context, nil
	}

	if len(ex.Words) == 0 {
		return nil, nil
	}

	if s.FreezeEncoder {
		s.mu.Lock()
		c, ok := s.cache[ex]
		s.mu.Unlock()

		if ok {
			return c, nil
		}
	}

	if s.Encoder == nil {
		return nil, fmt.Errorf("train: sentence %s has no context vectors and no encoder is configured", ex.ID)
	}

	c, err := s.Encoder.Encode(ctx, ex.IDs, ex.Mask)
	if err != nil {
		return nil, fmt.Errorf("train: encode sentence %s: %w", ex.ID, err)
	}

	if s.FreezeEncoder {
		s.mu.Lock()
		s.cache[ex] = c
		s.mu.Unlock()
	}

	return c, nil
}
