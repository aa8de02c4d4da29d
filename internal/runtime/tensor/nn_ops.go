package tensor

import (
	"errors"
	"fmt"
	"math"
)

// minParallelRows keeps small score projections on the calling goroutine.
const minParallelRows = 8

// Linear applies y = x * W^T + b where weight shape is [out, in].
func Linear(x, weight, bias *Tensor) (*Tensor, error) {
	if x == nil || weight == nil {
		return nil, errors.New("tensor: linear requires non-nil x and weight")
	}

	if x.Rank() < 1 {
		return nil, errors.New("tensor: linear requires x rank >= 1")
	}

	if weight.Rank() != 2 {
		return nil, fmt.Errorf("tensor: linear weight must be rank 2, got %d", weight.Rank())
	}

	in := x.shape[x.Rank()-1]

	out := weight.shape[0]
	if weight.shape[1] != in {
		return nil, fmt.Errorf("tensor: linear mismatch: x last dim %d, weight in dim %d", in, weight.shape[1])
	}

	if bias != nil {
		if bias.Rank() != 1 || bias.shape[0] != out {
			return nil, fmt.Errorf("tensor: linear bias shape %v does not match out dim %d", bias.shape, out)
		}
	}

	inI := int(in)
	outI := int(out)

	batch := 0
	if inI > 0 {
		batch = len(x.data) / inI
	}

	outData := make([]float32, batch*outI)

	rowFn := func(lo, hi int) {
		for bIdx := lo; bIdx < hi; bIdx++ {
			dst := outData[bIdx*outI : (bIdx+1)*outI]
			if bias != nil {
				copy(dst, bias.data)
			}

			gemv(dst, weight.data, outI, inI, x.data[bIdx*inI:(bIdx+1)*inI], bias != nil)
		}
	}

	if batch >= minParallelRows {
		parallelRows(batch, Workers(), rowFn)
	} else {
		rowFn(0, batch)
	}

	outShape := make([]int64, x.Rank())
	copy(outShape, x.shape[:x.Rank()-1])
	outShape[x.Rank()-1] = out

	return newOwned(outData, outShape), nil
}

// MatVec writes W*x (+ b) into dst for a rank-2 weight [out, in]. It is the
// allocation-free path used by recurrent cells, one time step at a time.
func MatVec(dst []float32, weight *Tensor, x []float32, bias *Tensor) error {
	if weight == nil || weight.Rank() != 2 {
		return errors.New("tensor: matvec requires a rank-2 weight")
	}

	out := int(weight.shape[0])
	in := int(weight.shape[1])

	if len(x) != in {
		return fmt.Errorf("tensor: matvec mismatch: x length %d, weight in dim %d", len(x), in)
	}

	if len(dst) != out {
		return fmt.Errorf("tensor: matvec mismatch: dst length %d, weight out dim %d", len(dst), out)
	}

	if bias != nil {
		if len(bias.data) != out {
			return fmt.Errorf("tensor: matvec bias length %d does not match out dim %d", len(bias.data), out)
		}

		copy(dst, bias.data)
	}

	gemv(dst, weight.data, out, in, x, bias != nil)

	return nil
}

// LogSoftmax applies log-softmax over the last dimension.
func LogSoftmax(x *Tensor) (*Tensor, error) {
	rows, width, err := lastDim(x)
	if err != nil {
		return nil, fmt.Errorf("tensor: log-softmax: %w", err)
	}

	out := x.Clone()
	for r := range rows {
		logSoftmaxInPlace(out.data[r*width : (r+1)*width])
	}

	return out, nil
}

func logSoftmaxInPlace(row []float32) {
	maxV := float32(math.Inf(-1))
	for _, v := range row {
		if v > maxV {
			maxV = v
		}
	}

	var sum float64
	for _, v := range row {
		sum += math.Exp(float64(v - maxV))
	}

	logZ := float32(math.Log(sum)) + maxV
	for i := range row {
		row[i] -= logZ
	}
}

// Argmax returns the index of the largest value in every row of the last
// dimension. Ties resolve to the lowest index.
func Argmax(x *Tensor) ([]int, error) {
	rows, width, err := lastDim(x)
	if err != nil {
		return nil, fmt.Errorf("tensor: argmax: %w", err)
	}

	if width == 0 {
		return nil, errors.New("tensor: argmax over empty last dimension")
	}

	out := make([]int, rows)
	for r := range rows {
		out[r] = ArgmaxSlice(x.data[r*width : (r+1)*width])
	}

	return out, nil
}

// ArgmaxSlice returns the index of the largest value, -1 for an empty slice.
func ArgmaxSlice(row []float32) int {
	if len(row) == 0 {
		return -1
	}

	best := 0
	for i := 1; i < len(row); i++ {
		if row[i] > row[best] {
			best = i
		}
	}

	return best
}
