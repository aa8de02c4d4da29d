package tensor

import (
	"strings"
	"testing"
)

func TestNormalizeDim(t *testing.T) {
	got, err := normalizeDim(-1, 3)
	if err != nil {
		t.Fatalf("normalizeDim(-1,3) error: %v", err)
	}

	if got != 2 {
		t.Fatalf("normalizeDim(-1,3) = %d, want 2", got)
	}

	got, err = normalizeDim(1, 3)
	if err != nil {
		t.Fatalf("normalizeDim(1,3) error: %v", err)
	}

	if got != 1 {
		t.Fatalf("normalizeDim(1,3) = %d, want 1", got)
	}

	_, err = normalizeDim(3, 3)
	if err == nil || !strings.Contains(err.Error(), "out of range") {
		t.Fatalf("expected out-of-range error, got: %v", err)
	}

	_, err = normalizeDim(0, -1)
	if err == nil || !strings.Contains(err.Error(), "invalid rank") {
		t.Fatalf("expected invalid rank error, got: %v", err)
	}
}

func TestShapeElemCount_Empty(t *testing.T) {
	got, err := shapeElemCount([]int64{})
	if err != nil {
		t.Fatalf("shapeElemCount([]) error: %v", err)
	}

	if got != 1 {
		t.Fatalf("shapeElemCount([]) = %d; want 1 (scalar)", got)
	}
}

func TestShapeElemCount_NegativeDim(t *testing.T) {
	_, err := shapeElemCount([]int64{2, -3})
	if err == nil || !strings.Contains(err.Error(), "negative") {
		t.Fatalf("shapeElemCount with negative dim: got %v", err)
	}
}

func TestShapeElemCount_ZeroDim(t *testing.T) {
	got, err := shapeElemCount([]int64{3, 0, 5})
	if err != nil {
		t.Fatalf("shapeElemCount with zero dim error: %v", err)
	}

	if got != 0 {
		t.Fatalf("shapeElemCount([3,0,5]) = %d; want 0", got)
	}
}

func TestLastDim(t *testing.T) {
	x, _ := Zeros([]int64{2, 3, 4})

	rows, width, err := lastDim(x)
	if err != nil {
		t.Fatalf("lastDim: %v", err)
	}

	if rows != 6 || width != 4 {
		t.Fatalf("lastDim = (%d, %d); want (6, 4)", rows, width)
	}

	empty, _ := Zeros([]int64{0, 5})

	rows, width, err = lastDim(empty)
	if err != nil || rows != 0 || width != 5 {
		t.Fatalf("lastDim(empty) = (%d, %d, %v); want (0, 5, nil)", rows, width, err)
	}

	scalar, _ := New([]float32{1}, []int64{})
	if _, _, err := lastDim(scalar); err == nil {
		t.Fatal("lastDim(scalar) succeeded; want error")
	}
}
