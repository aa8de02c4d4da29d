package morph

import "github.com/aseker00/alephbert/internal/runtime/tensor"

// Pool averages the rows of ctx [P, C] at each token's sub-word positions
// and returns one pooled vector per token, [N, C].
func Pool(sentence string, ctx *tensor.Tensor, positions [][]int) (*tensor.Tensor, error) {
	if ctx == nil || ctx.Rank() != 2 {
		return nil, shapeErrorf(sentence, -1, "context must be rank 2, got %v", ctx.Shape())
	}

	out, err := tensor.Zeros([]int64{int64(len(positions)), int64(ctx.Dim(1))})
	if err != nil {
		return nil, err
	}

	for tok, pos := range positions {
		if len(pos) == 0 {
			return nil, shapeErrorf(sentence, tok, "token has no sub-word positions")
		}

		acc, _ := out.Row(tok)

		for _, p := range pos {
			row, err := ctx.Row(p)
			if err != nil {
				return nil, shapeErrorf(sentence, tok, "sub-word position %d outside context of %d positions", p, ctx.Dim(0))
			}

			tensor.Axpy(acc, 1, row)
		}

		tensor.Scale(acc, 1/float32(len(pos)))
	}

	return out, nil
}
