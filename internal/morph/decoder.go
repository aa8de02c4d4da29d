package morph

import (
	"fmt"
	"math/rand/v2"

	"github.com/aseker00/alephbert/internal/nn"
	"github.com/aseker00/alephbert/internal/runtime/ops"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
	"github.com/aseker00/alephbert/internal/vocab"
)

// SegmentDecoder turns one token's characters and pooled context into a
// character stream of segments joined by <sep> and terminated by </s>.
type SegmentDecoder struct {
	Embedding  *ops.Embedding
	Encoder    *ops.GRU
	Decoder    *ops.GRU
	Out        *nn.Linear
	Classifier *nn.Linear
	OutDropout float64
	Symbols    vocab.Symbols
}

// LoadSegmentDecoder resolves the char_emb, encoder, decoder, out and
// classifier parameters.
func LoadSegmentDecoder(vb *nn.VarBuilder, cfg Config, sym vocab.Symbols) (*SegmentDecoder, error) {
	emb, err := nn.LoadEmbedding(vb, "char_emb", cfg.CharVocabSize, cfg.CharEmbeddingDim, sym.PAD)
	if err != nil {
		return nil, fmt.Errorf("morph: char embedding: %w", err)
	}

	enc, err := nn.LoadGRU(vb, "encoder", cfg.CharEmbeddingDim, cfg.HiddenSize, cfg.NumLayers, cfg.EncDropout)
	if err != nil {
		return nil, fmt.Errorf("morph: char encoder: %w", err)
	}

	dec, err := nn.LoadGRU(vb, "decoder", cfg.CharEmbeddingDim, cfg.HiddenSize, cfg.NumLayers, cfg.DecDropout)
	if err != nil {
		return nil, fmt.Errorf("morph: char decoder: %w", err)
	}

	out, err := nn.LoadLinear(vb, "out", cfg.HiddenSize, cfg.CharVocabSize)
	if err != nil {
		return nil, fmt.Errorf("morph: char projection: %w", err)
	}

	cls, err := nn.LoadLinear(vb, "classifier", cfg.HiddenSize, cfg.CoarseLabels)
	if err != nil {
		return nil, fmt.Errorf("morph: segment classifier: %w", err)
	}

	return &SegmentDecoder{
		Embedding:  emb,
		Encoder:    enc,
		Decoder:    dec,
		Out:        out,
		Classifier: cls,
		OutDropout: cfg.OutDropout,
		Symbols:    sym,
	}, nil
}

// DecodeInput is one lane of a decode call.
type DecodeInput struct {
	// Context is the pooled token vector, NumLayers*Hidden wide.
	Context []float32
	Chars   []int
	// Target, when set, is the gold stream fed back instead of the argmax.
	Target []int
}

// Decoded is the result for one lane. Score tensors have fixed shapes;
// rows at and beyond Len (SegmentLen) repeat the last real row.
type Decoded struct {
	CharScores    *tensor.Tensor // [maxLen, chars]
	SegmentScores *tensor.Tensor // [maxNumTags, coarse labels]

	// Chars holds the character fed back after every step, gold under
	// teacher forcing, and States the top-layer hidden state that produced
	// it.
	Chars  []int
	States [][]float32
	// Predicted holds the model's own choice at every step. It equals Chars
	// when decoding greedily.
	Predicted []int

	Len        int
	SegmentLen int
	// Finished is set when the lane chose </s>. A lane stopped by max len
	// is truncated; one that would open more than max num tags segments is
	// closed with </s> in place of the extra <sep>.
	Finished bool
}

type lane struct {
	in       DecodeInput
	state    *ops.GRUState
	next     int
	done     bool
	chars    *tensor.Tensor
	segments *tensor.Tensor
	out      *Decoded
}

// Decode runs one lane. See DecodeBatch.
func (d *SegmentDecoder) Decode(in DecodeInput, maxLen, maxNumTags int, rng *rand.Rand) (*Decoded, error) {
	out, err := d.DecodeBatch([]DecodeInput{in}, maxLen, maxNumTags, rng)
	if err != nil {
		return nil, err
	}

	return out[0], nil
}

// DecodeBatch decodes independent lanes in lockstep. A lane stops on </s>,
// including the </s> that replaces a <sep> beyond maxNumTags segments. The
// loop ends when every lane has stopped or after maxLen steps. A non-nil rng
// enables dropout.
func (d *SegmentDecoder) DecodeBatch(inputs []DecodeInput, maxLen, maxNumTags int, rng *rand.Rand) ([]*Decoded, error) {
	if maxLen <= 0 || maxNumTags <= 0 {
		return nil, fmt.Errorf("morph: decode budgets must be positive, got max len %d and max num tags %d", maxLen, maxNumTags)
	}

	lanes := make([]*lane, len(inputs))
	for i, in := range inputs {
		l, err := d.start(in, maxLen, maxNumTags, rng)
		if err != nil {
			return nil, fmt.Errorf("morph: lane %d: %w", i, err)
		}

		lanes[i] = l
	}

	for step := 0; step < maxLen; step++ {
		active := 0

		for i, l := range lanes {
			if l.done {
				continue
			}

			if err := d.step(l, step, maxNumTags, rng); err != nil {
				return nil, fmt.Errorf("morph: lane %d step %d: %w", i, step, err)
			}

			if !l.done {
				active++
			}
		}

		if active == 0 {
			break
		}
	}

	out := make([]*Decoded, len(lanes))
	for i, l := range lanes {
		if err := d.finish(l, maxLen, maxNumTags); err != nil {
			return nil, fmt.Errorf("morph: lane %d: %w", i, err)
		}

		out[i] = l.out
	}

	return out, nil
}

func (d *SegmentDecoder) start(in DecodeInput, maxLen, maxNumTags int, rng *rand.Rand) (*lane, error) {
	state, err := d.Encoder.StateFrom(in.Context)
	if err != nil {
		return nil, err
	}

	for i, c := range in.Chars {
		x, err := d.Embedding.Lookup(c)
		if err != nil {
			return nil, fmt.Errorf("input char %d: %w", i, err)
		}

		if err := d.Encoder.Step(x, state, rng); err != nil {
			return nil, fmt.Errorf("encode char %d: %w", i, err)
		}
	}

	chars, err := tensor.Zeros([]int64{int64(maxLen), int64(d.Out.Out())})
	if err != nil {
		return nil, err
	}

	segments, err := tensor.Zeros([]int64{int64(maxNumTags), int64(d.Classifier.Out())})
	if err != nil {
		return nil, err
	}

	return &lane{
		in:       in,
		state:    state,
		next:     d.Symbols.SOS,
		chars:    chars,
		segments: segments,
		out: &Decoded{
			CharScores:    chars,
			SegmentScores: segments,
			Chars:         make([]int, 0, maxLen),
			States:        make([][]float32, 0, maxLen),
			Predicted:     make([]int, 0, maxLen),
		},
	}, nil
}

func (d *SegmentDecoder) step(l *lane, step, maxNumTags int, rng *rand.Rand) error {
	x, err := d.Embedding.Lookup(l.next)
	if err != nil {
		return err
	}

	if err := d.Decoder.Step(x, l.state, rng); err != nil {
		return err
	}

	top := l.state.Top()
	l.out.States = append(l.out.States, append([]float32(nil), top...))

	h := append([]float32(nil), top...)
	ops.DropoutSlice(h, d.OutDropout, rng)

	row, _ := l.chars.Row(step)
	if err := tensor.MatVec(row, d.Out.Weight, h, d.Out.Bias); err != nil {
		return err
	}

	best := tensor.ArgmaxSlice(row)
	predicted := d.closeOverBudget(best, l.out.SegmentLen, maxNumTags)

	raw, chosen := best, predicted
	if l.in.Target != nil {
		if step >= len(l.in.Target) {
			return fmt.Errorf("target stream has %d chars, decoding needs position %d", len(l.in.Target), step)
		}

		raw = l.in.Target[step]
		chosen = d.closeOverBudget(raw, l.out.SegmentLen, maxNumTags)
	}

	l.out.Chars = append(l.out.Chars, chosen)
	l.out.Predicted = append(l.out.Predicted, predicted)
	l.out.Len++
	l.next = chosen

	switch chosen {
	case d.Symbols.SEP:
		return d.classify(l)
	case d.Symbols.EOS:
		l.done = true
		l.out.Finished = raw == d.Symbols.EOS
	}

	return nil
}

// closeOverBudget turns a <sep> that would open segment maxNumTags+1 into
// </s>. classified counts the segments already closed by a <sep>.
func (d *SegmentDecoder) closeOverBudget(c, classified, maxNumTags int) int {
	if c == d.Symbols.SEP && classified+1 >= maxNumTags {
		return d.Symbols.EOS
	}

	return c
}

func (d *SegmentDecoder) classify(l *lane) error {
	row, err := l.segments.Row(l.out.SegmentLen)
	if err != nil {
		return err
	}

	if err := tensor.MatVec(row, d.Classifier.Weight, l.state.Top(), d.Classifier.Bias); err != nil {
		return err
	}

	l.out.SegmentLen++

	return nil
}

func (d *SegmentDecoder) finish(l *lane, maxLen, maxNumTags int) error {
	if l.out.SegmentLen < maxNumTags {
		if err := d.classify(l); err != nil {
			return err
		}
	}

	if err := repeatTail(l.chars, l.out.Len, maxLen); err != nil {
		return err
	}

	return repeatTail(l.segments, l.out.SegmentLen, maxNumTags)
}

// repeatTail copies row n-1 into rows n..size-1.
func repeatTail(t *tensor.Tensor, n, size int) error {
	if n == 0 {
		return nil
	}

	last, err := t.Row(n - 1)
	if err != nil {
		return err
	}

	for i := n; i < size; i++ {
		if err := t.SetRow(i, last); err != nil {
			return err
		}
	}

	return nil
}
