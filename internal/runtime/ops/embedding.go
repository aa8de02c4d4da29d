package ops

import (
	"fmt"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// Embedding is a lookup table [V, E]. The row at PaddingIdx is zeroed on
// construction so padded positions carry no signal.
type Embedding struct {
	Weight     *tensor.Tensor
	PaddingIdx int
}

func NewEmbedding(weight *tensor.Tensor, paddingIdx int) (*Embedding, error) {
	if weight == nil || weight.Rank() != 2 {
		return nil, fmt.Errorf("ops: embedding weight must be rank 2")
	}

	e := &Embedding{Weight: weight, PaddingIdx: paddingIdx}

	if paddingIdx >= 0 {
		row, err := weight.Row(paddingIdx)
		if err != nil {
			return nil, fmt.Errorf("ops: embedding padding index: %w", err)
		}

		clear(row)
	}

	return e, nil
}

// Size is the number of rows in the table.
func (e *Embedding) Size() int { return e.Weight.Dim(0) }

// Dim is the embedding width.
func (e *Embedding) Dim() int { return e.Weight.Dim(1) }

// Lookup returns a read-only view of the row for idx.
func (e *Embedding) Lookup(idx int) ([]float32, error) {
	row, err := e.Weight.Row(idx)
	if err != nil {
		return nil, fmt.Errorf("ops: embedding lookup: %w", err)
	}

	return row, nil
}
