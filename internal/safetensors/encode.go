package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
)

// Encode lays out float32 tensors as a checkpoint payload. It exists for
// building fixtures; the model itself never writes checkpoints.
func Encode(tensors ...Tensor) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: nothing to encode")
	}

	header := make(map[string]headerEntry, len(tensors))
	var body []byte

	for _, t := range tensors {
		if t.Name == "" {
			return nil, errors.New("safetensors: tensor name is empty")
		}

		if _, dup := header[t.Name]; dup {
			return nil, fmt.Errorf("safetensors: duplicate tensor %q", t.Name)
		}

		if n := elemCount(t.Shape); n != len(t.Data) {
			return nil, fmt.Errorf("safetensors: tensor %q shape %v wants %d values, got %d", t.Name, t.Shape, n, len(t.Data))
		}

		start := len(body)
		for _, v := range t.Data {
			body = binary.LittleEndian.AppendUint32(body, math.Float32bits(v))
		}

		header[t.Name] = headerEntry{DType: dtypeF32, Shape: t.Shape, Offsets: [2]int{start, len(body)}}
	}

	js, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := binary.LittleEndian.AppendUint64(make([]byte, 0, 8+len(js)+len(body)), uint64(len(js)))
	out = append(out, js...)

	return append(out, body...), nil
}
