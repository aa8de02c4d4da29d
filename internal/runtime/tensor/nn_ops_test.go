package tensor

import (
	"math"
	"testing"
)

func TestLinear(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 4}, []int64{2, 2})
	w, _ := New([]float32{1, 0, 0, 1, 1, 1}, []int64{3, 2})
	b, _ := New([]float32{0.5, -0.5, 0}, []int64{3})

	out, err := Linear(x, w, b)
	if err != nil {
		t.Fatalf("linear: %v", err)
	}
	if got := out.Shape(); !equalI64(got, []int64{2, 3}) {
		t.Fatalf("shape = %v, want [2 3]", got)
	}
	want := []float32{1.5, 1.5, 3, 3.5, 3.5, 7}
	if got := out.Data(); !equalF32(got, want, 1e-6) {
		t.Fatalf("data = %v, want %v", got, want)
	}
}

func TestLinearParallelMatchesSerial(t *testing.T) {
	const rows, in, outDim = 32, 5, 4

	xData := make([]float32, rows*in)
	for i := range xData {
		xData[i] = float32(i%7) - 3
	}
	wData := make([]float32, outDim*in)
	for i := range wData {
		wData[i] = float32(i%5)*0.25 - 0.5
	}
	x, _ := New(xData, []int64{rows, in})
	w, _ := New(wData, []int64{outDim, in})

	prev := Workers()
	defer SetWorkers(prev)

	SetWorkers(1)
	serial, err := Linear(x, w, nil)
	if err != nil {
		t.Fatalf("serial linear: %v", err)
	}
	SetWorkers(4)
	parallel, err := Linear(x, w, nil)
	if err != nil {
		t.Fatalf("parallel linear: %v", err)
	}
	if !equalF32(serial.Data(), parallel.Data(), 0) {
		t.Fatal("parallel linear differs from serial")
	}
}

func TestLinearRejectsMismatch(t *testing.T) {
	x, _ := New([]float32{1, 2, 3}, []int64{1, 3})
	w, _ := New([]float32{1, 2}, []int64{1, 2})
	if _, err := Linear(x, w, nil); err == nil {
		t.Fatal("expected in-dim mismatch error")
	}
}

func TestMatVec(t *testing.T) {
	w, _ := New([]float32{1, 2, 3, 4}, []int64{2, 2})
	b, _ := New([]float32{1, 1}, []int64{2})
	dst := make([]float32, 2)
	if err := MatVec(dst, w, []float32{1, 1}, b); err != nil {
		t.Fatalf("matvec: %v", err)
	}
	if !equalF32(dst, []float32{4, 8}, 1e-6) {
		t.Fatalf("dst = %v, want [4 8]", dst)
	}
	if err := MatVec(dst, w, []float32{1}, nil); err == nil {
		t.Fatal("expected length mismatch error")
	}
}

func TestLogSoftmaxRowsNormalize(t *testing.T) {
	x, _ := New([]float32{1, 2, 3, 1000, 1000, 1000}, []int64{2, 3})
	out, err := LogSoftmax(x)
	if err != nil {
		t.Fatalf("log-softmax: %v", err)
	}
	data := out.RawData()
	for r := range 2 {
		var sum float64
		for _, v := range data[r*3 : (r+1)*3] {
			sum += math.Exp(float64(v))
		}
		if math.Abs(sum-1) > 1e-5 {
			t.Fatalf("row %d probabilities sum to %v", r, sum)
		}
	}
	if math.Abs(float64(data[3])-math.Log(1.0/3)) > 1e-5 {
		t.Fatalf("uniform row log-prob = %v", data[3])
	}
}

func TestArgmaxTiesPickLowestIndex(t *testing.T) {
	x, _ := New([]float32{0, 5, 5, 2, -1, -3, -1, -2}, []int64{2, 4})
	got, err := Argmax(x)
	if err != nil {
		t.Fatalf("argmax: %v", err)
	}
	if got[0] != 1 || got[1] != 0 {
		t.Fatalf("argmax = %v, want [1 0]", got)
	}
	if ArgmaxSlice(nil) != -1 {
		t.Fatal("argmax of empty slice should be -1")
	}
}

func TestAxpyAndScale(t *testing.T) {
	dst := []float32{1, 1}
	Axpy(dst, 2, []float32{3, 4})
	if !equalF32(dst, []float32{7, 9}, 0) {
		t.Fatalf("axpy = %v, want [7 9]", dst)
	}
	Scale(dst, 0.5)
	if !equalF32(dst, []float32{3.5, 4.5}, 0) {
		t.Fatalf("scale = %v, want [3.5 4.5]", dst)
	}
}
