package encoder

import (
	"errors"
	"fmt"
	"hash/fnv"
)

// SubwordTokenizer splits one whitespace token into sub-word ids.
type SubwordTokenizer interface {
	// Tokenize returns the ids of word without special tokens.
	Tokenize(word string) ([]int64, error)
	// Specials returns the ids framing a sentence.
	Specials() (cls, sep int64)
}

// ErrTooLong is returned when a sentence does not fit the encoder's
// position budget.
var ErrTooLong = errors.New("encoder: sentence exceeds max positions")

// Aligned is a tokenized sentence: [CLS] w1 ... wn [SEP] ids, an all-ones
// attention mask, and each word's positions in ids.
type Aligned struct {
	IDs       []int64
	Mask      []int64
	Positions [][]int
}

// AlignTokens tokenizes words one at a time so every sub-word position can
// be attributed to its word. maxPositions <= 0 disables the length check.
func AlignTokens(tok SubwordTokenizer, words []string, maxPositions int) (*Aligned, error) {
	if len(words) == 0 {
		return nil, ErrEmptySentence
	}

	cls, sep := tok.Specials()
	a := &Aligned{IDs: []int64{cls}, Positions: make([][]int, len(words))}

	for i, w := range words {
		ids, err := tok.Tokenize(w)
		if err != nil {
			return nil, fmt.Errorf("encoder: tokenize word %d %q: %w", i, w, err)
		}

		if len(ids) == 0 {
			return nil, fmt.Errorf("encoder: word %d %q produced no sub-words", i, w)
		}

		for _, id := range ids {
			a.Positions[i] = append(a.Positions[i], len(a.IDs))
			a.IDs = append(a.IDs, id)
		}
	}

	a.IDs = append(a.IDs, sep)

	if maxPositions > 0 && len(a.IDs) > maxPositions {
		return nil, fmt.Errorf("%w: %d sub-words, limit %d", ErrTooLong, len(a.IDs), maxPositions)
	}

	a.Mask = make([]int64, len(a.IDs))
	for i := range a.Mask {
		a.Mask[i] = 1
	}

	return a, nil
}

// HashTokenizer gives every word a single id from a hash of its text. It
// pairs with HashEncoder when no sub-word vocabulary is available.
type HashTokenizer struct {
	Buckets int64
}

const (
	hashCLS = 1
	hashSEP = 2
	// first id handed out to words; 0 is padding
	hashBase = 3
)

func (h HashTokenizer) Tokenize(word string) ([]int64, error) {
	if word == "" {
		return nil, nil
	}

	buckets := h.Buckets
	if buckets <= 0 {
		buckets = 1 << 20
	}

	f := fnv.New64a()
	_, _ = f.Write([]byte(word))

	return []int64{hashBase + int64(f.Sum64()%uint64(buckets))}, nil
}

func (h HashTokenizer) Specials() (cls, sep int64) {
	return hashCLS, hashSEP
}
