package morph

import (
	"errors"
	"fmt"
)

var (
	// ErrShapeMismatch marks token or segment counts inconsistent with the
	// padded dimensions. It aborts the batch.
	ErrShapeMismatch = errors.New("morph: shape mismatch")
	ErrInvalidConfig = errors.New("morph: invalid config")
)

// ShapeError names the sentence and token a shape mismatch was found in.
// Token is -1 when the mismatch concerns the sentence as a whole.
type ShapeError struct {
	Sentence string
	Token    int
	Detail   string
}

func (e *ShapeError) Error() string {
	if e.Token < 0 {
		return fmt.Sprintf("morph: shape mismatch in sentence %q: %s", e.Sentence, e.Detail)
	}

	return fmt.Sprintf("morph: shape mismatch in sentence %q token %d: %s", e.Sentence, e.Token, e.Detail)
}

func (e *ShapeError) Unwrap() error { return ErrShapeMismatch }

func shapeErrorf(sentence string, token int, format string, args ...any) *ShapeError {
	return &ShapeError{Sentence: sentence, Token: token, Detail: fmt.Sprintf(format, args...)}
}
