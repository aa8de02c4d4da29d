// Package morph implements joint morphological segmentation and tagging:
// a character-level segment decoder seeded by pooled contextual vectors,
// boundary alignment over the decoded stream, and a tag sequence encoder.
package morph

import (
	"fmt"
	"math/rand/v2"

	"github.com/aseker00/alephbert/internal/nn"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
	"github.com/aseker00/alephbert/internal/vocab"
)

// Model is the sentence-level segmenter and tagger.
type Model struct {
	Config  Config
	Symbols vocab.Symbols
	Decoder *SegmentDecoder
	Tagger  *TagEncoder
}

// NewModel validates cfg and resolves all parameters through vb.
func NewModel(cfg Config, sym vocab.Symbols, vb *nn.VarBuilder) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dec, err := LoadSegmentDecoder(vb, cfg, sym)
	if err != nil {
		return nil, err
	}

	tagger, err := LoadTagEncoder(vb, cfg)
	if err != nil {
		return nil, err
	}

	return &Model{Config: cfg, Symbols: sym, Decoder: dec, Tagger: tagger}, nil
}

// Sentence is the model input for one sentence.
type Sentence struct {
	ID string
	// Context holds the contextual encoder's per-position vectors [P, C].
	Context *tensor.Tensor
	// Positions lists each token's sub-word positions into Context.
	Positions [][]int
	// Chars lists each token's input characters.
	Chars [][]int
	// Targets, when set, are the per-token gold streams (MaxLen long) used
	// for teacher forcing.
	Targets [][]int
}

func (s Sentence) NumTokens() int { return len(s.Chars) }

// Output holds fixed-shape scores for every token of a sentence.
type Output struct {
	CharScores    *tensor.Tensor // [N, MaxLen, chars]
	SegmentScores *tensor.Tensor // [N, MaxNumTags, coarse labels]
	TagScores     *tensor.Tensor // [N, MaxNumTags, tags]
	Tokens        []*Decoded
	TagSizes      []int
}

// Forward decodes each token in turn, aligns boundary states and scores
// tags. A non-nil rng enables dropout. A sentence without tokens yields
// empty score tensors.
func (m *Model) Forward(s Sentence, rng *rand.Rand) (*Output, error) {
	cfg := m.Config
	n := s.NumTokens()

	if len(s.Positions) != n {
		return nil, shapeErrorf(s.ID, -1, "%d tokens with characters but %d with sub-word positions", n, len(s.Positions))
	}

	if s.Targets != nil && len(s.Targets) != n {
		return nil, shapeErrorf(s.ID, -1, "%d tokens but %d target streams", n, len(s.Targets))
	}

	if n == 0 {
		return m.empty()
	}

	if w := s.Context.Dim(1); w != cfg.EncoderHiddenSize {
		return nil, shapeErrorf(s.ID, -1, "context width %d, want %d", w, cfg.EncoderHiddenSize)
	}

	pooled, err := Pool(s.ID, s.Context, s.Positions)
	if err != nil {
		return nil, err
	}

	tokens := make([]*Decoded, n)
	states := make([][][]float32, n)

	for i := range n {
		ctx, _ := pooled.Row(i)
		in := DecodeInput{Context: ctx, Chars: s.Chars[i]}

		if s.Targets != nil {
			if len(s.Targets[i]) != cfg.MaxLen {
				return nil, shapeErrorf(s.ID, i, "target stream has %d chars, want %d", len(s.Targets[i]), cfg.MaxLen)
			}

			in.Target = s.Targets[i]
		}

		d, err := m.Decoder.Decode(in, cfg.MaxLen, cfg.MaxNumTags, rng)
		if err != nil {
			return nil, fmt.Errorf("morph: sentence %q token %d: %w", s.ID, i, err)
		}

		aligned, err := AlignDecoded(d, m.Symbols)
		if err != nil {
			return nil, &ShapeError{Sentence: s.ID, Token: i, Detail: err.Error()}
		}

		tokens[i] = d
		states[i] = aligned
	}

	tags, sizes, err := m.Tagger.Encode(s.ID, states, cfg.MaxNumTags, rng)
	if err != nil {
		return nil, err
	}

	chars := make([]*tensor.Tensor, n)
	segments := make([]*tensor.Tensor, n)

	for i, d := range tokens {
		chars[i] = d.CharScores
		segments[i] = d.SegmentScores
	}

	out := &Output{TagScores: tags, Tokens: tokens, TagSizes: sizes}

	if out.CharScores, err = tensor.Stack(chars); err != nil {
		return nil, err
	}

	if out.SegmentScores, err = tensor.Stack(segments); err != nil {
		return nil, err
	}

	return out, nil
}

func (m *Model) empty() (*Output, error) {
	cfg := m.Config
	out := &Output{}

	var err error
	if out.CharScores, err = tensor.Stack(nil, int64(cfg.MaxLen), int64(cfg.CharVocabSize)); err != nil {
		return nil, err
	}

	if out.SegmentScores, err = tensor.Stack(nil, int64(cfg.MaxNumTags), int64(cfg.CoarseLabels)); err != nil {
		return nil, err
	}

	if out.TagScores, err = tensor.Stack(nil, int64(cfg.MaxNumTags), int64(cfg.TagVocabSize)); err != nil {
		return nil, err
	}

	return out, nil
}

// DecodeChars returns the characters each token's decoder chose, up to its
// length. Score rows past that length repeat the last one and are left out.
func (o *Output) DecodeChars() ([][]int, error) {
	if len(o.Tokens) != o.CharScores.Dim(0) {
		return nil, fmt.Errorf("morph: %d decoded tokens for %d score rows", len(o.Tokens), o.CharScores.Dim(0))
	}

	out := make([][]int, len(o.Tokens))
	for i, d := range o.Tokens {
		out[i] = append([]int(nil), d.Predicted[:d.Len]...)
	}

	return out, nil
}

// DecodeTags returns the argmax tag of every slot, per token. Slots past a
// token's size are padding (index 0).
func (o *Output) DecodeTags() ([][]int, error) {
	tags, err := argmaxRows(o.TagScores)
	if err != nil {
		return nil, err
	}

	for i := range tags {
		for s := o.TagSizes[i]; s < len(tags[i]); s++ {
			tags[i][s] = 0
		}
	}

	return tags, nil
}

func argmaxRows(t *tensor.Tensor) ([][]int, error) {
	n, rows := t.Dim(0), t.Dim(1)
	out := make([][]int, n)

	if n == 0 {
		return out, nil
	}

	flat, err := tensor.Argmax(t)
	if err != nil {
		return nil, err
	}

	for i := range out {
		out[i] = flat[i*rows : (i+1)*rows]
	}

	return out, nil
}
