package dataset

import (
	"fmt"

	"github.com/aseker00/alephbert/internal/encoder"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
	"github.com/aseker00/alephbert/internal/vocab"
)

// Vocabs bundles both vocabularies with their resolved control symbols.
type Vocabs struct {
	Chars       *vocab.Vocab
	CharSymbols vocab.Symbols
	Tags        *vocab.Vocab
	TagSymbols  vocab.Symbols
}

// NewVocabs resolves the control symbols of both vocabularies.
func NewVocabs(chars, tags *vocab.Vocab) (Vocabs, error) {
	csym, err := vocab.CharSymbols(chars)
	if err != nil {
		return Vocabs{}, fmt.Errorf("char vocabulary: %w", err)
	}

	tsym, err := vocab.TagSymbols(tags)
	if err != nil {
		return Vocabs{}, fmt.Errorf("tag vocabulary: %w", err)
	}

	return Vocabs{Chars: chars, CharSymbols: csym, Tags: tags, TagSymbols: tsym}, nil
}

// Example is an encoded sentence.
type Example struct {
	ID    string
	Words []string
	// Chars holds each token's input characters.
	Chars [][]int
	// Targets holds each token's gold stream "f1 <sep> f2 ... </s>", zero
	// padded or truncated to max_len. Nil for unlabelled samples.
	Targets [][]int
	// Tags holds each token's gold tags zero padded to max_num_tags.
	Tags [][]int
	// IDs and Mask are the sub-word input of the contextual encoder.
	IDs  []int64
	Mask []int64
	// Positions lists each token's sub-word positions into IDs.
	Positions [][]int
	// Context is set when the sample carried precomputed vectors.
	Context *tensor.Tensor
	// Dropped counts input and gold runes missing from the char vocabulary.
	Dropped int
}

func (e *Example) Labelled() bool { return e.Targets != nil }

// Encode builds the index streams of s. Sub-word positions come from the
// sample when every token lists them; otherwise tok computes them.
func Encode(s Sample, v Vocabs, maxLen, maxNumTags int, tok encoder.SubwordTokenizer) (*Example, error) {
	if maxLen <= 0 || maxNumTags <= 0 {
		return nil, fmt.Errorf("dataset: max_len %d and max_num_tags %d must be positive", maxLen, maxNumTags)
	}

	ex := &Example{ID: s.SentID, Words: s.Words()}
	labelled := s.Labelled()

	if labelled {
		ex.Targets = make([][]int, len(s.Tokens))
		ex.Tags = make([][]int, len(s.Tokens))
	}

	for i, t := range s.Tokens {
		chars, dropped := v.Chars.EncodeChars(t.Text)
		if len(chars) == 0 {
			return nil, fmt.Errorf("dataset: sentence %s token %d %q has no known characters", s.SentID, i, t.Text)
		}

		ex.Chars = append(ex.Chars, chars)
		ex.Dropped += dropped

		if !labelled {
			continue
		}

		if len(t.Forms) != len(t.Tags) {
			return nil, fmt.Errorf("dataset: sentence %s token %d has %d forms but %d tags", s.SentID, i, len(t.Forms), len(t.Tags))
		}

		if len(t.Tags) > maxNumTags {
			return nil, fmt.Errorf("dataset: sentence %s token %d has %d segments, max_num_tags is %d", s.SentID, i, len(t.Tags), maxNumTags)
		}

		target, dropped := goldStream(t.Forms, v, maxLen)
		ex.Targets[i] = target
		ex.Dropped += dropped

		tags, err := goldTags(t.Tags, v, maxNumTags)
		if err != nil {
			return nil, fmt.Errorf("dataset: sentence %s token %d: %w", s.SentID, i, err)
		}

		ex.Tags[i] = tags
	}

	if err := positions(ex, s, tok); err != nil {
		return nil, err
	}

	if len(s.Context) > 0 {
		ctx, err := contextTensor(s.Context)
		if err != nil {
			return nil, fmt.Errorf("dataset: sentence %s: %w", s.SentID, err)
		}

		ex.Context = ctx
	}

	return ex, nil
}

func goldStream(forms []string, v Vocabs, maxLen int) ([]int, int) {
	var (
		stream  []int
		dropped int
	)

	for j, f := range forms {
		if j > 0 {
			stream = append(stream, v.CharSymbols.SEP)
		}

		ids, n := v.Chars.EncodeChars(f)
		stream = append(stream, ids...)
		dropped += n
	}

	stream = append(stream, v.CharSymbols.EOS)

	out := make([]int, maxLen)
	copy(out, stream)

	return out, dropped
}

func goldTags(tags []string, v Vocabs, maxNumTags int) ([]int, error) {
	out := make([]int, maxNumTags)

	for j, t := range tags {
		idx, ok := v.Tags.Index(t)
		if !ok {
			return nil, fmt.Errorf("unknown tag %q", t)
		}

		out[j] = idx
	}

	return out, nil
}

func positions(ex *Example, s Sample, tok encoder.SubwordTokenizer) error {
	if len(s.Tokens) == 0 {
		return nil
	}

	given := len(s.XTokenIDs) > 0
	for _, t := range s.Tokens {
		if len(t.XTokenPositions) == 0 {
			given = false
			break
		}
	}

	if given {
		for i, t := range s.Tokens {
			for _, p := range t.XTokenPositions {
				if p < 0 || p >= len(s.XTokenIDs) {
					return fmt.Errorf("dataset: sentence %s token %d position %d out of %d sub-words", s.SentID, i, p, len(s.XTokenIDs))
				}
			}

			ex.Positions = append(ex.Positions, append([]int(nil), t.XTokenPositions...))
		}

		ex.IDs = append([]int64(nil), s.XTokenIDs...)
		ex.Mask = make([]int64, len(ex.IDs))

		for i := range ex.Mask {
			ex.Mask[i] = 1
		}

		return nil
	}

	if tok == nil {
		return fmt.Errorf("dataset: sentence %s has no sub-word positions and no tokenizer is configured", s.SentID)
	}

	a, err := encoder.AlignTokens(tok, ex.Words, 0)
	if err != nil {
		return fmt.Errorf("dataset: sentence %s: %w", s.SentID, err)
	}

	ex.IDs, ex.Mask, ex.Positions = a.IDs, a.Mask, a.Positions

	return nil
}

func contextTensor(rows [][]float32) (*tensor.Tensor, error) {
	width := len(rows[0])
	flat := make([]float32, 0, len(rows)*width)

	for i, r := range rows {
		if len(r) != width {
			return nil, fmt.Errorf("context row %d has %d values, want %d", i, len(r), width)
		}

		flat = append(flat, r...)
	}

	return tensor.New(flat, []int64{int64(len(rows)), int64(width)})
}

// Batches groups examples in order; the last batch may be short.
func Batches(xs []*Example, size int) [][]*Example {
	if size <= 0 {
		size = 1
	}

	var out [][]*Example
	for start := 0; start < len(xs); start += size {
		out = append(out, xs[start:min(start+size, len(xs))])
	}

	return out
}
