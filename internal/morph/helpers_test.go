package morph

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/aseker00/alephbert/internal/nn"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
	"github.com/aseker00/alephbert/internal/vocab"
)

// Character indices of the test vocabulary.
const (
	cHe   = 4 // ה
	cSamk = 5 // ס
	cPe   = 6 // פ
	cResh = 7 // ר
)

func testVocabs(t *testing.T) (*vocab.Vocab, vocab.Symbols, *vocab.Vocab) {
	t.Helper()

	chars, err := vocab.New([]string{vocab.PAD, vocab.SOS, vocab.EOS, vocab.SEP, "ה", "ס", "פ", "ר"})
	require.NoError(t, err)

	sym, err := vocab.CharSymbols(chars)
	require.NoError(t, err)

	tags, err := vocab.New([]string{vocab.PAD, vocab.SOS, vocab.EOS, "DET", "NOUN"})
	require.NoError(t, err)

	return chars, sym, tags
}

func testConfig() Config {
	return Config{
		CharVocabSize:     8,
		TagVocabSize:      5,
		CharEmbeddingDim:  4,
		HiddenSize:        3,
		NumLayers:         2,
		EncoderHiddenSize: 6,
		TagVariant:        TagSentence,
		TagHiddenSize:     2,
		TagNumLayers:      1,
		MaxLen:            8,
		MaxNumTags:        4,
	}
}

func testModel(t *testing.T, cfg Config) *Model {
	t.Helper()

	_, sym, _ := testVocabs(t)

	m, err := NewModel(cfg, sym, nn.NewVarBuilder(nil, nn.WithInit(42)))
	require.NoError(t, err)

	return m
}

func testContext(t *testing.T, positions, width int) *tensor.Tensor {
	t.Helper()

	data := make([]float32, positions*width)
	for i := range data {
		data[i] = float32((i%11)-5) / 11
	}

	ctx, err := tensor.New(data, []int64{int64(positions), int64(width)})
	require.NoError(t, err)

	return ctx
}

// goldStream lays out "ה <sep> ספר </s>" padded to maxLen.
func goldStream(sym vocab.Symbols, maxLen int) []int {
	out := make([]int, maxLen)
	copy(out, []int{cHe, sym.SEP, cSamk, cPe, cResh, sym.EOS})

	return out
}

func rowsEqual(t *testing.T, x *tensor.Tensor, a, b int) bool {
	t.Helper()

	ra, err := x.Row(a)
	require.NoError(t, err)
	rb, err := x.Row(b)
	require.NoError(t, err)

	for i := range ra {
		if ra[i] != rb[i] {
			return false
		}
	}

	return true
}
