package tensor

import (
	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"
)

// Axpy computes dst += alpha * src element-wise.
// If src and dst lengths differ, the shorter length is used.
func Axpy(dst []float32, alpha float32, src []float32) {
	n := min(len(dst), len(src))
	if n == 0 || alpha == 0 {
		return
	}

	blas32.Axpy(alpha, vec(src[:n]), vec(dst[:n]))
}

// Scale multiplies every element of x by alpha in place.
func Scale(x []float32, alpha float32) {
	if len(x) == 0 {
		return
	}

	blas32.Scal(alpha, vec(x))
}

// gemv computes dst = W x (+ dst when accumulate) for a row-major [out, in]
// weight matrix.
func gemv(dst []float32, w []float32, out, in int, x []float32, accumulate bool) {
	if out == 0 {
		return
	}

	if in == 0 {
		if !accumulate {
			clear(dst[:out])
		}

		return
	}

	beta := float32(0)
	if accumulate {
		beta = 1
	}

	blas32.Gemv(blas.NoTrans, 1, blas32.General{
		Rows:   out,
		Cols:   in,
		Data:   w,
		Stride: in,
	}, vec(x), beta, vec(dst))
}

func vec(x []float32) blas32.Vector {
	return blas32.Vector{N: len(x), Data: x, Inc: 1}
}
