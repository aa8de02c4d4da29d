package safetensors

import (
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseRoundTripsFloat32(t *testing.T) {
	blob, err := Encode(
		Tensor{Name: "out.weight", Shape: []int64{2, 2}, Data: []float32{1, 2, 3, 4}},
		Tensor{Name: "out.bias", Shape: []int64{2}, Data: []float32{-1, 1}},
	)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	s, err := Parse(blob, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	defer s.Close()

	if got := strings.Join(s.Names(), ","); got != "out.bias,out.weight" {
		t.Fatalf("names = %s, want out.bias,out.weight", got)
	}

	w, err := s.Tensor("out.weight")
	if err != nil {
		t.Fatalf("tensor: %v", err)
	}

	if len(w.Shape) != 2 || w.Shape[0] != 2 || w.Data[3] != 4 {
		t.Fatalf("out.weight = %v %v", w.Shape, w.Data)
	}
}

func TestTensorNotFound(t *testing.T) {
	blob, _ := Encode(Tensor{Name: "a", Shape: []int64{1}, Data: []float32{1}})

	s, err := Parse(blob, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	_, err = s.Tensor("b")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestTrimPrefixes(t *testing.T) {
	blob, _ := Encode(
		Tensor{Name: "module.char_emb.weight", Shape: []int64{1}, Data: []float32{1}},
		Tensor{Name: "tag_out.bias", Shape: []int64{1}, Data: []float32{2}},
	)

	s, err := Parse(blob, Options{TrimPrefixes: []string{"module."}})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	if !s.Has("char_emb.weight") || !s.Has("tag_out.bias") {
		t.Fatalf("names = %v", s.Names())
	}
}

func TestTrimPrefixCollision(t *testing.T) {
	blob, _ := Encode(
		Tensor{Name: "module.a", Shape: []int64{1}, Data: []float32{1}},
		Tensor{Name: "a", Shape: []int64{1}, Data: []float32{2}},
	)

	if _, err := Parse(blob, Options{TrimPrefixes: []string{"module."}}); err == nil {
		t.Fatal("expected collision error")
	}
}

func TestHalfPrecisionEntries(t *testing.T) {
	half := []byte{}
	for _, h := range []uint16{0x3c00, 0xc000} {
		half = binary.LittleEndian.AppendUint16(half, h)
	}

	bhalf := []byte{}
	for _, v := range []float32{1, -2} {
		bhalf = binary.LittleEndian.AppendUint16(bhalf, uint16(math.Float32bits(v)>>16))
	}

	header := `{"h":{"dtype":"F16","shape":[2],"data_offsets":[0,4]},` +
		`"b":{"dtype":"bf16","shape":[2],"data_offsets":[4,8]},` +
		`"__metadata__":{"format":"pt"}}`

	blob := binary.LittleEndian.AppendUint64(nil, uint64(len(header)))
	blob = append(blob, header...)
	blob = append(blob, half...)
	blob = append(blob, bhalf...)

	s, err := Parse(blob, Options{})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	for _, name := range []string{"h", "b"} {
		got, err := s.Tensor(name)
		if err != nil {
			t.Fatalf("tensor %s: %v", name, err)
		}

		if got.Data[0] != 1 || got.Data[1] != -2 {
			t.Fatalf("tensor %s = %v, want [1 -2]", name, got.Data)
		}
	}
}

func TestParseRejectsMalformed(t *testing.T) {
	tests := []struct {
		name   string
		header string
		body   int
		substr string
	}{
		{name: "bad dtype", header: `{"x":{"dtype":"I64","shape":[1],"data_offsets":[0,8]}}`, body: 8, substr: "unsupported dtype"},
		{name: "short data", header: `{"x":{"dtype":"F32","shape":[4],"data_offsets":[0,8]}}`, body: 8, substr: "needs 16 bytes"},
		{name: "offsets past end", header: `{"x":{"dtype":"F32","shape":[1],"data_offsets":[0,64]}}`, body: 4, substr: "outside payload"},
		{name: "empty", header: `{"__metadata__":{}}`, body: 0, substr: "no tensors"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blob := binary.LittleEndian.AppendUint64(nil, uint64(len(tt.header)))
			blob = append(blob, tt.header...)
			blob = append(blob, make([]byte, tt.body)...)

			_, err := Parse(blob, Options{})
			if err == nil || !strings.Contains(err.Error(), tt.substr) {
				t.Fatalf("err = %v, want substring %q", err, tt.substr)
			}
		})
	}

	if _, err := Parse([]byte{1, 2}, Options{}); err == nil {
		t.Fatal("expected short payload error")
	}
}

func TestOpenFromDisk(t *testing.T) {
	blob, _ := Encode(Tensor{Name: "w", Shape: []int64{1}, Data: []float32{7}})
	path := filepath.Join(t.TempDir(), "model.safetensors")

	if err := os.WriteFile(path, blob, 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	s, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open: %v", err)
	}

	w, _ := s.Tensor("w")
	if w.Data[0] != 7 {
		t.Fatalf("w = %v, want [7]", w.Data)
	}

	if _, err := Open(filepath.Join(t.TempDir(), "missing"), Options{}); err == nil {
		t.Fatal("expected read error")
	}
}

func TestHalfToFloat32(t *testing.T) {
	tests := []struct {
		name string
		h    uint16
		want float32
	}{
		{name: "zero", h: 0x0000, want: 0},
		{name: "one", h: 0x3c00, want: 1},
		{name: "minus two", h: 0xc000, want: -2},
		{name: "max normal", h: 0x7bff, want: 65504},
		{name: "smallest subnormal", h: 0x0001, want: float32(math.Ldexp(1, -24))},
		{name: "subnormal", h: 0x0200, want: float32(math.Ldexp(1, -15))},
		{name: "inf", h: 0x7c00, want: float32(math.Inf(1))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := halfToFloat32(tt.h); got != tt.want {
				t.Fatalf("halfToFloat32(%#04x) = %v, want %v", tt.h, got, tt.want)
			}
		})
	}
}
