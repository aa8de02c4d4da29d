package morph

import (
	"fmt"
	"strings"
)

// TagVariant selects how boundary states are turned into tag scores.
type TagVariant string

const (
	// TagSentence runs a bidirectional LSTM over every boundary state of the
	// sentence before projecting.
	TagSentence TagVariant = "sentence"
	// TagToken projects each boundary state directly.
	TagToken TagVariant = "token"
)

// Config fixes the model dimensions. EncoderHiddenSize is the width of the
// contextual encoder's per-position vectors; it is split evenly across the
// character encoder's layers to seed the recurrent state.
type Config struct {
	CharVocabSize     int
	TagVocabSize      int
	CoarseLabels      int
	CharEmbeddingDim  int
	HiddenSize        int
	NumLayers         int
	EncoderHiddenSize int

	EncDropout float64
	DecDropout float64
	OutDropout float64

	TagVariant    TagVariant
	TagHiddenSize int
	TagNumLayers  int
	TagDropout    float64
	TagOutDropout float64

	MaxLen     int
	MaxNumTags int
}

// Validate checks sizes and the encoder/decoder hidden size relationship,
// and fills CoarseLabels from the tag vocabulary when unset.
func (c *Config) Validate() error {
	positive := []struct {
		name string
		v    int
	}{
		{"char vocab size", c.CharVocabSize},
		{"tag vocab size", c.TagVocabSize},
		{"char embedding dim", c.CharEmbeddingDim},
		{"hidden size", c.HiddenSize},
		{"num layers", c.NumLayers},
		{"max len", c.MaxLen},
		{"max num tags", c.MaxNumTags},
	}
	for _, p := range positive {
		if p.v <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.v)
		}
	}

	if c.EncoderHiddenSize != c.NumLayers*c.HiddenSize {
		return fmt.Errorf("%w: encoder hidden size %d != num layers %d x hidden size %d",
			ErrInvalidConfig, c.EncoderHiddenSize, c.NumLayers, c.HiddenSize)
	}

	for name, p := range map[string]float64{
		"enc dropout":     c.EncDropout,
		"dec dropout":     c.DecDropout,
		"out dropout":     c.OutDropout,
		"tag dropout":     c.TagDropout,
		"tag out dropout": c.TagOutDropout,
	} {
		if p < 0 || p >= 1 {
			return fmt.Errorf("%w: %s %v outside [0, 1)", ErrInvalidConfig, name, p)
		}
	}

	if c.CoarseLabels == 0 {
		c.CoarseLabels = c.TagVocabSize
	}

	if c.CoarseLabels < 0 {
		return fmt.Errorf("%w: coarse labels must be positive, got %d", ErrInvalidConfig, c.CoarseLabels)
	}

	c.TagVariant = TagVariant(strings.ToLower(strings.TrimSpace(string(c.TagVariant))))
	switch c.TagVariant {
	case TagToken:
	case TagSentence, "":
		c.TagVariant = TagSentence
		if c.TagHiddenSize <= 0 || c.TagNumLayers <= 0 {
			return fmt.Errorf("%w: sentence tagger needs positive tag hidden size and layers, got %d and %d",
				ErrInvalidConfig, c.TagHiddenSize, c.TagNumLayers)
		}
	default:
		return fmt.Errorf("%w: unknown tag variant %q", ErrInvalidConfig, c.TagVariant)
	}

	return nil
}
