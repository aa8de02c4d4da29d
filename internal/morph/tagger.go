package morph

import (
	"fmt"
	"math/rand/v2"

	"github.com/aseker00/alephbert/internal/nn"
	"github.com/aseker00/alephbert/internal/runtime/ops"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// TagEncoder scores the boundary states of a sentence's tokens.
type TagEncoder struct {
	Variant    TagVariant
	LSTM       *ops.LSTM // nil for TagToken
	Out        *nn.Linear
	OutDropout float64
}

// LoadTagEncoder resolves tag_encoder (sentence variant only) and tag_out.
func LoadTagEncoder(vb *nn.VarBuilder, cfg Config) (*TagEncoder, error) {
	e := &TagEncoder{Variant: cfg.TagVariant, OutDropout: cfg.TagOutDropout}
	in := cfg.HiddenSize

	if cfg.TagVariant == TagSentence {
		lstm, err := nn.LoadLSTM(vb, "tag_encoder", cfg.HiddenSize, cfg.TagHiddenSize, cfg.TagNumLayers, true, cfg.TagDropout)
		if err != nil {
			return nil, fmt.Errorf("morph: tag encoder: %w", err)
		}

		e.LSTM = lstm
		in = lstm.OutputSize()
	}

	out, err := nn.LoadLinear(vb, "tag_out", in, cfg.TagVocabSize)
	if err != nil {
		return nil, fmt.Errorf("morph: tag projection: %w", err)
	}

	e.Out = out

	return e, nil
}

// Encode scores tokens[i], the ordered boundary states of token i, and
// returns [len(tokens), maxNumTags, tags] scores with zero rows past each
// token's size, along with the sizes.
func (e *TagEncoder) Encode(sentence string, tokens [][][]float32, maxNumTags int, rng *rand.Rand) (*tensor.Tensor, []int, error) {
	sizes := make([]int, len(tokens))

	var flat [][]float32
	for i, states := range tokens {
		if len(states) > maxNumTags {
			return nil, nil, shapeErrorf(sentence, i, "%d tag slots exceed max num tags %d", len(states), maxNumTags)
		}

		sizes[i] = len(states)
		flat = append(flat, states...)
	}

	out, err := tensor.Zeros([]int64{int64(len(tokens)), int64(maxNumTags), int64(e.Out.Out())})
	if err != nil {
		return nil, nil, err
	}

	if len(flat) == 0 {
		return out, sizes, nil
	}

	feats := flat
	if e.Variant == TagSentence {
		feats, err = e.LSTM.Run(flat, rng)
		if err != nil {
			return nil, nil, fmt.Errorf("morph: tag encoder: %w", err)
		}
	}

	in := e.Out.In()
	stacked := make([]float32, 0, len(feats)*in)
	pos := 0

	for i, n := range sizes {
		for slot := range n {
			if len(feats[pos]) != in {
				return nil, nil, shapeErrorf(sentence, i, "boundary state %d has width %d, want %d", slot, len(feats[pos]), in)
			}

			stacked = append(stacked, feats[pos]...)
			pos++
		}
	}

	x, err := tensor.New(stacked, []int64{int64(len(feats)), int64(in)})
	if err != nil {
		return nil, nil, err
	}

	if x, err = ops.Dropout(x, e.OutDropout, rng); err != nil {
		return nil, nil, err
	}

	// One projection over every slot of the sentence.
	scores, err := e.Out.Forward(x)
	if err != nil {
		return nil, nil, shapeErrorf(sentence, -1, "tag projection: %v", err)
	}

	width := e.Out.Out()
	src := scores.RawData()
	dst := out.RawData()
	pos = 0

	for i, n := range sizes {
		base := i * maxNumTags * width
		copy(dst[base:base+n*width], src[pos*width:(pos+n)*width])
		pos += n
	}

	return out, sizes, nil
}
