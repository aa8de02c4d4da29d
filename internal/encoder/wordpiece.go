package encoder

import (
	"errors"
	"fmt"

	tk "github.com/sugarme/tokenizer"
	"github.com/sugarme/tokenizer/model/wordpiece"
	"github.com/sugarme/tokenizer/normalizer"
	"github.com/sugarme/tokenizer/pretokenizer"
)

// WordPieceTokenizer is a BERT-style tokenizer over a vocab.txt file.
type WordPieceTokenizer struct {
	t   *tk.Tokenizer
	cls int64
	sep int64
}

// NewWordPieceTokenizer loads vocabPath. Lowercasing and accent stripping
// stay off unless lowercase is set; Hebrew pointing must survive.
func NewWordPieceTokenizer(vocabPath string, lowercase bool) (*WordPieceTokenizer, error) {
	if vocabPath == "" {
		return nil, errors.New("encoder: wordpiece vocab path is empty")
	}

	wp, err := wordpiece.NewWordPieceFromFile(vocabPath, "[UNK]")
	if err != nil {
		return nil, fmt.Errorf("encoder: load wordpiece vocab %s: %w", vocabPath, err)
	}

	cls, ok := wp.TokenToId("[CLS]")
	if !ok {
		return nil, fmt.Errorf("encoder: wordpiece vocab %s has no [CLS]", vocabPath)
	}

	sep, ok := wp.TokenToId("[SEP]")
	if !ok {
		return nil, fmt.Errorf("encoder: wordpiece vocab %s has no [SEP]", vocabPath)
	}

	t := tk.NewTokenizer(wp)
	t.WithNormalizer(normalizer.NewBertNormalizer(true, true, lowercase, lowercase))
	t.WithPreTokenizer(pretokenizer.NewBertPreTokenizer())

	return &WordPieceTokenizer{t: t, cls: int64(cls), sep: int64(sep)}, nil
}

func (w *WordPieceTokenizer) Tokenize(word string) ([]int64, error) {
	enc, err := w.t.Encode(tk.NewSingleEncodeInput(tk.NewInputSequence(word)), false)
	if err != nil {
		return nil, err
	}

	ids := enc.GetIds()

	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}

	return out, nil
}

func (w *WordPieceTokenizer) Specials() (cls, sep int64) {
	return w.cls, w.sep
}
