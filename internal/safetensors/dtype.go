package safetensors

import (
	"encoding/binary"
	"fmt"
	"math"
)

const (
	dtypeF32  = "F32"
	dtypeF16  = "F16"
	dtypeBF16 = "BF16"
)

func dtypeWidth(dtype string) (int, error) {
	switch dtype {
	case dtypeF32:
		return 4, nil
	case dtypeF16, dtypeBF16:
		return 2, nil
	default:
		return 0, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func decode(raw []byte, dtype string, n int) ([]float32, error) {
	width, err := dtypeWidth(dtype)
	if err != nil {
		return nil, err
	}

	if len(raw) < n*width {
		return nil, fmt.Errorf("%s payload has %d bytes, want %d", dtype, len(raw), n*width)
	}

	out := make([]float32, n)

	for i := range out {
		switch dtype {
		case dtypeF32:
			out[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
		case dtypeF16:
			out[i] = halfToFloat32(binary.LittleEndian.Uint16(raw[i*2:]))
		case dtypeBF16:
			out[i] = math.Float32frombits(uint32(binary.LittleEndian.Uint16(raw[i*2:])) << 16)
		}
	}

	return out, nil
}

// halfToFloat32 widens an IEEE 754 binary16 value.
func halfToFloat32(h uint16) float32 {
	sign := uint32(h>>15) << 31
	exp := uint32(h>>10) & 0x1f
	frac := uint32(h & 0x3ff)

	switch {
	case exp == 0 && frac == 0:
		return math.Float32frombits(sign)
	case exp == 0:
		// subnormal
		e := uint32(127 - 14)
		for frac&0x400 == 0 {
			frac <<= 1
			e--
		}

		return math.Float32frombits(sign | e<<23 | (frac&0x3ff)<<13)
	case exp == 0x1f:
		return math.Float32frombits(sign | 0x7f800000 | frac<<13)
	default:
		return math.Float32frombits(sign | (exp+127-15)<<23 | frac<<13)
	}
}
