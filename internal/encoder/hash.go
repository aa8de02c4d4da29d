package encoder

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// HashEncoder derives per-position vectors from a hash of each sub-word id
// plus a sinusoidal position term. It needs no model and is deterministic,
// which makes it the encoder for smoke runs and tests.
type HashEncoder struct {
	dims int
}

func NewHashEncoder(dims int) (*HashEncoder, error) {
	if dims <= 0 {
		return nil, fmt.Errorf("encoder: hash encoder dims must be positive, got %d", dims)
	}

	return &HashEncoder{dims: dims}, nil
}

func (h *HashEncoder) Dim() int { return h.dims }

func (h *HashEncoder) Close() error { return nil }

func (h *HashEncoder) Encode(ctx context.Context, ids, mask []int64) (*tensor.Tensor, error) {
	if len(ids) == 0 {
		return nil, ErrEmptySentence
	}

	if len(mask) != len(ids) {
		return nil, fmt.Errorf("encoder: %d ids but %d mask values", len(ids), len(mask))
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out, err := tensor.Zeros([]int64{int64(len(ids)), int64(h.dims)})
	if err != nil {
		return nil, err
	}

	var key [8]byte

	for p, id := range ids {
		if mask[p] == 0 {
			continue
		}

		binary.LittleEndian.PutUint64(key[:], uint64(id))
		sum := sha256.Sum256(key[:])
		row, _ := out.Row(p)

		for j := range row {
			b := sum[j%len(sum)]
			angle := float64(p) / math.Pow(10000, float64(2*(j/2))/float64(h.dims))

			pos := math.Sin(angle)
			if j%2 == 1 {
				pos = math.Cos(angle)
			}

			row[j] = (float32(b)-128)/128 + 0.1*float32(pos)
		}
	}

	return out, nil
}
