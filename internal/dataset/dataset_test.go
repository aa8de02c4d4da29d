package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aseker00/alephbert/internal/encoder"
	"github.com/aseker00/alephbert/internal/vocab"
)

const (
	cHe   = 4
	cSamk = 5
	cPe   = 6
	cResh = 7
)

func testVocabs(t *testing.T) Vocabs {
	t.Helper()

	chars, err := vocab.New([]string{vocab.PAD, vocab.SOS, vocab.EOS, vocab.SEP, "ה", "ס", "פ", "ר"})
	require.NoError(t, err)

	tags, err := vocab.New([]string{vocab.PAD, vocab.SOS, vocab.EOS, "DET", "NOUN"})
	require.NoError(t, err)

	v, err := NewVocabs(chars, tags)
	require.NoError(t, err)

	return v
}

const sampleLine = `{"sent_id":"s1","tokens":[{"text":"הספר","xtoken_positions":[1,2],"forms":["ה","ספר"],"tags":["DET","NOUN"]}],"xtoken_ids":[2,40,41,3]}`

func TestReadSkipsBlankLines(t *testing.T) {
	samples, err := Read(strings.NewReader("\n" + sampleLine + "\n\n" + `{"tokens":[{"text":"ספר"}]}` + "\n"))
	require.NoError(t, err)
	require.Len(t, samples, 2)

	assert.Equal(t, "s1", samples[0].SentID)
	assert.True(t, samples[0].Labelled())
	assert.Equal(t, "2", samples[1].SentID)
	assert.False(t, samples[1].Labelled())
}

func TestReadErrors(t *testing.T) {
	_, err := Read(strings.NewReader("\n\n"))
	require.ErrorIs(t, err, ErrEmptyFile)

	_, err = Read(strings.NewReader(sampleLine + "\n{oops\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dev.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(sampleLine+"\n"), 0o644))

	samples, err := Load(path)
	require.NoError(t, err)
	require.Len(t, samples, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.jsonl"))
	require.Error(t, err)
}

func TestEncodeLabelled(t *testing.T) {
	v := testVocabs(t)

	samples, err := Read(strings.NewReader(sampleLine))
	require.NoError(t, err)

	ex, err := Encode(samples[0], v, 8, 4, nil)
	require.NoError(t, err)

	assert.Equal(t, "s1", ex.ID)
	assert.True(t, ex.Labelled())
	assert.Equal(t, [][]int{{cHe, cSamk, cPe, cResh}}, ex.Chars)

	sym := v.CharSymbols
	assert.Equal(t, [][]int{{cHe, sym.SEP, cSamk, cPe, cResh, sym.EOS, 0, 0}}, ex.Targets)
	// tag targets carry no end symbol
	assert.Equal(t, [][]int{{3, 4, 0, 0}}, ex.Tags)

	assert.Equal(t, []int64{2, 40, 41, 3}, ex.IDs)
	assert.Equal(t, []int64{1, 1, 1, 1}, ex.Mask)
	assert.Equal(t, [][]int{{1, 2}}, ex.Positions)
	assert.Zero(t, ex.Dropped)
}

func TestEncodeTruncatesGoldStream(t *testing.T) {
	v := testVocabs(t)
	s := Sample{SentID: "t", Tokens: []Token{{Text: "הספר", XTokenPositions: []int{1}, Forms: []string{"ה", "ספר"}, Tags: []string{"DET", "NOUN"}}}, XTokenIDs: []int64{1, 2, 3}}

	ex, err := Encode(s, v, 3, 2, nil)
	require.NoError(t, err)
	assert.Equal(t, []int{cHe, v.CharSymbols.SEP, cSamk}, ex.Targets[0])
}

func TestEncodeTokenizesWhenPositionsMissing(t *testing.T) {
	v := testVocabs(t)
	s := Sample{SentID: "u", Tokens: []Token{{Text: "ה"}, {Text: "ספר"}}}

	ex, err := Encode(s, v, 8, 4, encoder.HashTokenizer{Buckets: 10})
	require.NoError(t, err)

	assert.False(t, ex.Labelled())
	assert.Nil(t, ex.Tags)
	assert.Equal(t, [][]int{{1}, {2}}, ex.Positions)
	assert.Len(t, ex.IDs, 4)
	assert.Equal(t, []string{"ה", "ספר"}, ex.Words)

	_, err = Encode(s, v, 8, 4, nil)
	require.Error(t, err)
}

func TestEncodeErrors(t *testing.T) {
	v := testVocabs(t)
	base := func() Sample {
		return Sample{SentID: "e", XTokenIDs: []int64{1, 2, 3}, Tokens: []Token{{
			Text: "הספר", XTokenPositions: []int{1}, Forms: []string{"ה", "ספר"}, Tags: []string{"DET", "NOUN"},
		}}}
	}

	tests := []struct {
		name   string
		mutate func(*Sample)
		want   string
	}{
		{"forms and tags differ", func(s *Sample) { s.Tokens[0].Tags = []string{"DET"} }, "2 forms but 1 tags"},
		{"unknown tag", func(s *Sample) { s.Tokens[0].Tags[1] = "VERB" }, "unknown tag"},
		{"too many segments", func(s *Sample) {
			s.Tokens[0].Forms = []string{"ה", "ס", "פ"}
			s.Tokens[0].Tags = []string{"DET", "NOUN", "NOUN"}
		}, "max_num_tags"},
		{"position out of range", func(s *Sample) { s.Tokens[0].XTokenPositions = []int{7} }, "position 7"},
		{"unknown characters only", func(s *Sample) { s.Tokens[0].Text = "xyz" }, "no known characters"},
		{"ragged context", func(s *Sample) { s.Context = [][]float32{{1, 2}, {3}} }, "context row 1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := base()
			tt.mutate(&s)

			_, err := Encode(s, v, 8, 2, nil)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestEncodeContextAndDropped(t *testing.T) {
	v := testVocabs(t)
	s := Sample{
		SentID:    "c",
		XTokenIDs: []int64{1, 2, 3},
		Tokens:    []Token{{Text: "הxספר", XTokenPositions: []int{1}}},
		Context:   [][]float32{{1, 2}, {3, 4}, {5, 6}},
	}

	ex, err := Encode(s, v, 8, 2, nil)
	require.NoError(t, err)

	assert.Equal(t, 1, ex.Dropped)
	require.NotNil(t, ex.Context)
	assert.Equal(t, []int64{3, 2}, ex.Context.Shape())
}

func TestBatches(t *testing.T) {
	xs := make([]*Example, 5)
	for i := range xs {
		xs[i] = &Example{ID: string(rune('a' + i))}
	}

	b := Batches(xs, 2)
	require.Len(t, b, 3)
	assert.Len(t, b[2], 1)
	assert.Equal(t, "e", b[2][0].ID)

	assert.Len(t, Batches(xs, 0), 5)
	assert.Empty(t, Batches(nil, 3))
}
