package tensor

import (
	"fmt"
	"math"
)

func shapeElemCount(shape []int64) (int, error) {
	total := int64(1)

	for i, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("tensor: shape %v has negative dimension at %d", shape, i)
		}

		total *= d
		if total > math.MaxInt32 && total > math.MaxInt64/2 {
			return 0, fmt.Errorf("tensor: shape %v too large", shape)
		}
	}

	if total > int64(^uint(0)>>1) {
		return 0, fmt.Errorf("tensor: shape %v exceeds platform int size", shape)
	}

	return int(total), nil
}

func normalizeDim(dim, rank int) (int, error) {
	if rank < 0 {
		return 0, fmt.Errorf("invalid rank %d", rank)
	}

	if dim < 0 {
		dim += rank
	}

	if dim < 0 || dim >= rank {
		return 0, fmt.Errorf("dim %d out of range for rank %d", dim, rank)
	}

	return dim, nil
}

// lastDim splits a tensor of rank >= 1 into rows of its last dimension.
func lastDim(t *Tensor) (rows, width int, err error) {
	if t == nil {
		return 0, 0, fmt.Errorf("tensor: nil tensor")
	}

	if len(t.shape) == 0 {
		return 0, 0, fmt.Errorf("tensor: rank >= 1 required, got scalar")
	}

	width = int(t.shape[len(t.shape)-1])
	if width == 0 {
		return 0, 0, nil
	}

	return len(t.data) / width, width, nil
}
