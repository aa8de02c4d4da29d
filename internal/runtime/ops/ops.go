// Package ops holds the recurrent and embedding building blocks of the
// segmentation model on top of the tensor runtime.
package ops

import (
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

func sigmoid(x float32) float32 {
	return float32(1 / (1 + math.Exp(-float64(x))))
}

func tanh(x float32) float32 {
	return float32(math.Tanh(float64(x)))
}

// DropoutSlice applies inverted dropout to x in place. It is the identity
// when rng is nil or p is zero, which is how inference runs.
func DropoutSlice(x []float32, p float64, rng *rand.Rand) {
	if rng == nil || p <= 0 {
		return
	}

	if p >= 1 {
		clear(x)
		return
	}

	keep := float32(1 / (1 - p))
	for i := range x {
		if rng.Float64() < p {
			x[i] = 0
		} else {
			x[i] *= keep
		}
	}
}

// Dropout returns an inverted-dropout copy of x.
func Dropout(x *tensor.Tensor, p float64, rng *rand.Rand) (*tensor.Tensor, error) {
	if x == nil {
		return nil, fmt.Errorf("ops: dropout input is nil")
	}

	if p < 0 || p > 1 {
		return nil, fmt.Errorf("ops: dropout probability %v out of range [0, 1]", p)
	}

	out := x.Clone()
	DropoutSlice(out.RawData(), p, rng)

	return out, nil
}

// CrossEntropy returns the mean negative log-likelihood of targets under
// row-wise softmax of scores [N, V]. Targets equal to ignore are skipped.
// count is the number of scored targets; with none scored the loss is 0.
func CrossEntropy(scores *tensor.Tensor, targets []int, ignore int) (loss float64, count int, err error) {
	if scores == nil || scores.Rank() != 2 {
		return 0, 0, fmt.Errorf("ops: cross entropy requires rank-2 scores")
	}

	n := scores.Dim(0)
	v := scores.Dim(1)

	if len(targets) != n {
		return 0, 0, fmt.Errorf("ops: cross entropy has %d targets for %d score rows", len(targets), n)
	}

	logp, err := tensor.LogSoftmax(scores)
	if err != nil {
		return 0, 0, fmt.Errorf("ops: cross entropy: %w", err)
	}

	data := logp.RawData()

	var total float64
	for i, target := range targets {
		if target == ignore {
			continue
		}

		if target < 0 || target >= v {
			return 0, 0, fmt.Errorf("ops: cross entropy target %d at row %d out of range [0, %d)", target, i, v)
		}

		total -= float64(data[i*v+target])
		count++
	}

	if count == 0 {
		return 0, 0, nil
	}

	return total / float64(count), count, nil
}
