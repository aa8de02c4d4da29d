// Package safetensors reads model checkpoints in the safetensors layout:
// an 8-byte little-endian header length, a JSON header, then raw tensor
// bytes. Tensors are decoded to float32 on access.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"slices"
	"strings"
)

// ErrNotFound is returned by Tensor for names absent from the checkpoint.
var ErrNotFound = errors.New("safetensors: tensor not found")

const metadataKey = "__metadata__"

// Tensor is one decoded checkpoint entry.
type Tensor struct {
	Name  string
	Shape []int64
	Data  []float32
}

// Options controls how checkpoint names are exposed.
type Options struct {
	// TrimPrefixes are removed from the front of every name, first match
	// wins. Checkpoints saved from a wrapping module carry such prefixes
	// ("module.", "tagger.").
	TrimPrefixes []string
}

// Store is a read-only view over a checkpoint held in memory.
type Store struct {
	raw     []byte
	entries map[string]entry
	names   []string
}

type entry struct {
	dtype string
	shape []int64
	start int
	end   int
}

type headerEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// Open reads and indexes the checkpoint at path.
func Open(path string, opts Options) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return Parse(data, opts)
}

// Parse indexes a checkpoint payload. Tensor bytes are decoded lazily.
func Parse(data []byte, opts Options) (*Store, error) {
	base, header, err := readHeader(data)
	if err != nil {
		return nil, err
	}

	s := &Store{raw: data, entries: make(map[string]entry, len(header))}

	for original, raw := range header {
		if original == metadataKey {
			continue
		}

		var h headerEntry
		if err := json.Unmarshal(raw, &h); err != nil {
			return nil, fmt.Errorf("safetensors: header entry %q: %w", original, err)
		}

		e, err := h.locate(base, len(data))
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", original, err)
		}

		name := trimName(original, opts.TrimPrefixes)
		if _, dup := s.entries[name]; dup {
			return nil, fmt.Errorf("safetensors: tensor %q collides with another entry after prefix trimming", original)
		}

		s.entries[name] = e
		s.names = append(s.names, name)
	}

	if len(s.entries) == 0 {
		return nil, errors.New("safetensors: checkpoint holds no tensors")
	}

	slices.Sort(s.names)

	return s, nil
}

// Names lists the tensor names in sorted order.
func (s *Store) Names() []string {
	return slices.Clone(s.names)
}

func (s *Store) Has(name string) bool {
	_, ok := s.entries[name]
	return ok
}

// Tensor decodes the named tensor.
func (s *Store) Tensor(name string) (*Tensor, error) {
	e, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (have %s)", ErrNotFound, name, preview(s.names))
	}

	data, err := decode(s.raw[e.start:e.end], e.dtype, elemCount(e.shape))
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	return &Tensor{Name: name, Shape: slices.Clone(e.shape), Data: data}, nil
}

// Close drops the payload. The store is unusable afterwards.
func (s *Store) Close() {
	s.raw = nil
	s.entries = nil
	s.names = nil
}

func readHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, fmt.Errorf("safetensors: payload too short (%d bytes)", len(data))
	}

	n := binary.LittleEndian.Uint64(data[:8])
	if n > uint64(len(data)-8) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds payload size %d", n, len(data))
	}

	base := 8 + int(n)

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:base], &header); err != nil {
		return 0, nil, fmt.Errorf("safetensors: parse header: %w", err)
	}

	return base, header, nil
}

func (h headerEntry) locate(base, size int) (entry, error) {
	dtype := strings.ToUpper(h.DType)

	width, err := dtypeWidth(dtype)
	if err != nil {
		return entry{}, err
	}

	for _, d := range h.Shape {
		if d < 0 {
			return entry{}, fmt.Errorf("negative dimension in shape %v", h.Shape)
		}
	}

	start, end := base+h.Offsets[0], base+h.Offsets[1]
	if h.Offsets[0] < 0 || end < start || end > size {
		return entry{}, fmt.Errorf("data offsets %v outside payload of %d bytes", h.Offsets, size-base)
	}

	if need := elemCount(h.Shape) * width; end-start < need {
		return entry{}, fmt.Errorf("shape %v needs %d bytes, offsets cover %d", h.Shape, need, end-start)
	}

	return entry{dtype: dtype, shape: h.Shape, start: start, end: end}, nil
}

func trimName(name string, prefixes []string) string {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return strings.TrimPrefix(name, p)
		}
	}

	return name
}

func elemCount(shape []int64) int {
	n := 1
	for _, d := range shape {
		n *= int(d)
	}

	return n
}

func preview(names []string) string {
	const limit = 6

	switch {
	case len(names) == 0:
		return "none"
	case len(names) <= limit:
		return strings.Join(names, ", ")
	default:
		return strings.Join(names[:limit], ", ") + fmt.Sprintf(", ... %d more", len(names)-limit)
	}
}
