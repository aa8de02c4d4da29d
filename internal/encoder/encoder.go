// Package encoder provides the contextual encoder collaborators: sub-word
// tokenizers that map whitespace tokens to sub-word positions, and encoders
// that turn sub-word ids into per-position context vectors.
package encoder

import (
	"context"
	"errors"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

var (
	ErrEmptySentence = errors.New("encoder: empty sentence")
	ErrClosed        = errors.New("encoder: closed")
)

// Encoder maps sub-word ids and their attention mask to per-position
// vectors [P, C]. The sentence-level vector some encoders also produce is
// not used.
type Encoder interface {
	Encode(ctx context.Context, ids, mask []int64) (*tensor.Tensor, error)
	// Dim is C, the width of every per-position vector.
	Dim() int
	Close() error
}
