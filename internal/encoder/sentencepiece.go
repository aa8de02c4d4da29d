package encoder

import (
	"errors"
	"fmt"

	gosp "github.com/vikesh-raj/go-sentencepiece-encoder/sentencepiece"
)

// SentencePieceTokenizer wraps a unigram SentencePiece model. The model
// file does not carry the sentence frame ids, so they are configured.
type SentencePieceTokenizer struct {
	proc gosp.Sentencepiece
	cls  int64
	sep  int64
}

func NewSentencePieceTokenizer(modelPath string, cls, sep int64) (*SentencePieceTokenizer, error) {
	if modelPath == "" {
		return nil, errors.New("encoder: sentencepiece model path is empty")
	}

	proc, err := gosp.NewSentencepieceFromFile(modelPath, false)
	if err != nil {
		return nil, fmt.Errorf("encoder: load sentencepiece model %s: %w", modelPath, err)
	}

	return &SentencePieceTokenizer{proc: proc, cls: cls, sep: sep}, nil
}

func (s *SentencePieceTokenizer) Tokenize(word string) ([]int64, error) {
	if word == "" {
		return nil, nil
	}

	ids := s.proc.TokenizeToIDs(word)

	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}

	return out, nil
}

func (s *SentencePieceTokenizer) Specials() (cls, sep int64) {
	return s.cls, s.sep
}
