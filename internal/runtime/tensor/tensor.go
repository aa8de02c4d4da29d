package tensor

import (
	"errors"
	"fmt"
)

// Tensor is a dense, row-major float32 tensor. Score grids, hidden-state
// stacks and parameters of the morphological model are all carried as
// tensors of rank 1 to 3.
type Tensor struct {
	shape []int64
	data  []float32
}

// New creates a tensor from data and shape. Both slices are copied.
func New(data []float32, shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	return &Tensor{
		shape: append([]int64(nil), shape...),
		data:  append([]float32(nil), data...),
	}, nil
}

// newOwned takes ownership of data and shape without copying. The caller
// guarantees len(data) equals the element count of shape.
func newOwned(data []float32, shape []int64) *Tensor {
	return &Tensor{shape: shape, data: data}
}

// Zeros creates a zero-initialized tensor. Zero-sized dimensions are
// allowed and yield an empty tensor with the requested shape.
func Zeros(shape []int64) (*Tensor, error) {
	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Tensor{
		shape: append([]int64(nil), shape...),
		data:  make([]float32, total),
	}, nil
}

func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Dim returns the size of dimension d, or 0 when d is out of range.
func (t *Tensor) Dim(d int) int {
	if t == nil || d < 0 || d >= len(t.shape) {
		return 0
	}

	return int(t.shape[d])
}

// Data returns a copy of the underlying tensor data.
func (t *Tensor) Data() []float32 {
	if t == nil {
		return nil
	}

	return append([]float32(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only unless they own the tensor.
func (t *Tensor) RawData() []float32 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Tensor) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}

	return &Tensor{
		shape: append([]int64(nil), t.shape...),
		data:  append([]float32(nil), t.data...),
	}
}

// Row returns a view of the i-th slice along dimension 0, flattened.
// Writes through the returned slice modify the tensor.
func (t *Tensor) Row(i int) ([]float32, error) {
	if t == nil {
		return nil, errors.New("tensor: row on nil tensor")
	}

	if len(t.shape) == 0 {
		return nil, errors.New("tensor: row requires rank >= 1")
	}

	if i < 0 || int64(i) >= t.shape[0] {
		return nil, fmt.Errorf("tensor: row %d out of range for dim 0 size %d", i, t.shape[0])
	}

	stride := rowStride(t.shape)

	return t.data[i*stride : (i+1)*stride], nil
}

// SetRow copies src into the i-th slice along dimension 0.
func (t *Tensor) SetRow(i int, src []float32) error {
	row, err := t.Row(i)
	if err != nil {
		return err
	}

	if len(src) != len(row) {
		return fmt.Errorf("tensor: set row %d: got %d values, want %d", i, len(src), len(row))
	}

	copy(row, src)

	return nil
}

// Reshape returns a copy of the tensor with a new shape.
func (t *Tensor) Reshape(shape []int64) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: reshape on nil tensor")
	}

	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if total != len(t.data) {
		return nil, fmt.Errorf("tensor: cannot reshape %v (%d elements) to %v (%d elements)", t.shape, len(t.data), shape, total)
	}

	return &Tensor{shape: append([]int64(nil), shape...), data: append([]float32(nil), t.data...)}, nil
}

// Concat concatenates tensors along dim.
func Concat(tensors []*Tensor, dim int) (*Tensor, error) {
	if len(tensors) == 0 {
		return nil, errors.New("tensor: concat requires at least one tensor")
	}

	first := tensors[0]
	if first == nil {
		return nil, errors.New("tensor: concat tensor 0 is nil")
	}

	rank := len(first.shape)

	dim, err := normalizeDim(dim, rank)
	if err != nil {
		return nil, fmt.Errorf("tensor: concat: %w", err)
	}

	outShape := append([]int64(nil), first.shape...)
	outShape[dim] = 0

	for i, t := range tensors {
		if t == nil {
			return nil, fmt.Errorf("tensor: concat tensor %d is nil", i)
		}

		if len(t.shape) != rank {
			return nil, fmt.Errorf("tensor: concat tensor %d rank %d does not match rank %d", i, len(t.shape), rank)
		}

		for d := range rank {
			if d != dim && t.shape[d] != first.shape[d] {
				return nil, fmt.Errorf("tensor: concat tensor %d shape %v does not match base shape %v on dim %d", i, t.shape, first.shape, d)
			}
		}

		outShape[dim] += t.shape[dim]
	}

	out, err := Zeros(outShape)
	if err != nil {
		return nil, err
	}

	inner := int64(1)
	for i := dim + 1; i < rank; i++ {
		inner *= outShape[i]
	}

	outer := int64(1)
	for i := range dim {
		outer *= outShape[i]
	}

	outDim := outShape[dim]

	for o := range outer {
		writePos := int64(0)

		for _, t := range tensors {
			span := t.shape[dim] * inner
			srcBase := o * t.shape[dim] * inner
			dstBase := o*outDim*inner + writePos
			copy(out.data[dstBase:dstBase+span], t.data[srcBase:srcBase+span])
			writePos += span
		}
	}

	return out, nil
}

// Stack joins equally shaped tensors along a new leading dimension. An
// empty input yields a tensor of shape [0, elem...] when elem is given.
func Stack(tensors []*Tensor, elem ...int64) (*Tensor, error) {
	if len(tensors) == 0 {
		return Zeros(append([]int64{0}, elem...))
	}

	base := tensors[0].Shape()
	out := make([]*Tensor, len(tensors))

	for i, t := range tensors {
		if t == nil {
			return nil, fmt.Errorf("tensor: stack tensor %d is nil", i)
		}

		if !equalShape(t.shape, base) {
			return nil, fmt.Errorf("tensor: stack tensor %d shape %v does not match %v", i, t.shape, base)
		}

		out[i] = newOwned(t.data, append([]int64{1}, t.shape...))
	}

	return Concat(out, 0)
}

func rowStride(shape []int64) int {
	stride := 1
	for _, d := range shape[1:] {
		stride *= int(d)
	}

	return stride
}

func equalShape(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}

	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}

	return true
}
