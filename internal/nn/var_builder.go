// Package nn resolves model parameters by their PyTorch names, either from
// a safetensors checkpoint or, when a name is absent and initialisation is
// enabled, from a seeded initializer.
package nn

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
	"github.com/aseker00/alephbert/internal/safetensors"
)

// ErrMissingParam is returned when a parameter is neither in the checkpoint
// nor initialisable.
var ErrMissingParam = errors.New("nn: missing parameter")

// Init fills data with initial values.
type Init func(rng *rand.Rand, data []float32)

// Uniform draws from U(-bound, bound).
func Uniform(bound float64) Init {
	return func(rng *rand.Rand, data []float32) {
		for i := range data {
			data[i] = float32((rng.Float64()*2 - 1) * bound)
		}
	}
}

// Normal draws from N(0, std^2).
func Normal(std float64) Init {
	return func(rng *rand.Rand, data []float32) {
		for i := range data {
			data[i] = float32(rng.NormFloat64() * std)
		}
	}
}

// FanBound is the 1/sqrt(fan) bound PyTorch uses for recurrent and linear
// layers.
func FanBound(fan int) float64 {
	if fan <= 0 {
		return 0
	}

	return 1 / math.Sqrt(float64(fan))
}

// Stats counts how parameters were resolved.
type Stats struct {
	Loaded      int
	Initialized int
}

type shared struct {
	store *safetensors.Store
	rng   *rand.Rand
	stats Stats
}

// VarBuilder provides hierarchical, dot-separated parameter lookup.
type VarBuilder struct {
	s      *shared
	prefix string
}

// Option configures a VarBuilder.
type Option func(*shared)

// WithInit enables seeded initialisation for parameters the checkpoint
// does not carry.
func WithInit(seed uint64) Option {
	return func(s *shared) {
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// NewVarBuilder wraps store, which may be nil when every parameter is to be
// initialised.
func NewVarBuilder(store *safetensors.Store, opts ...Option) *VarBuilder {
	s := &shared{store: store}
	for _, opt := range opts {
		opt(s)
	}

	return &VarBuilder{s: s}
}

// Path returns a builder scoped under the given name parts.
func (vb *VarBuilder) Path(parts ...string) *VarBuilder {
	prefix := vb.prefix

	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if prefix != "" {
			prefix += "."
		}

		prefix += part
	}

	return &VarBuilder{s: vb.s, prefix: prefix}
}

// Has reports whether the checkpoint carries name.
func (vb *VarBuilder) Has(name string) bool {
	return vb.s.store != nil && vb.s.store.Has(vb.resolve(name))
}

// Stats reports how many parameters were loaded and initialised so far,
// across every builder derived from the same root.
func (vb *VarBuilder) Stats() Stats {
	return vb.s.stats
}

// Tensor loads name from the checkpoint and checks its shape when given.
func (vb *VarBuilder) Tensor(name string, shape ...int64) (*tensor.Tensor, error) {
	full := vb.resolve(name)

	if vb.s.store == nil {
		return nil, fmt.Errorf("%w: %q (no checkpoint)", ErrMissingParam, full)
	}

	st, err := vb.s.store.Tensor(full)
	if err != nil {
		if errors.Is(err, safetensors.ErrNotFound) {
			return nil, fmt.Errorf("%w: %w", ErrMissingParam, err)
		}

		return nil, err
	}

	if len(shape) > 0 && !equalShape(st.Shape, shape) {
		return nil, fmt.Errorf("nn: parameter %q has shape %v, want %v", full, st.Shape, shape)
	}

	t, err := tensor.New(st.Data, st.Shape)
	if err != nil {
		return nil, fmt.Errorf("nn: parameter %q: %w", full, err)
	}

	vb.s.stats.Loaded++

	return t, nil
}

// Param loads name when the checkpoint has it and otherwise initialises a
// tensor of the given shape with init, provided initialisation is enabled.
func (vb *VarBuilder) Param(name string, init Init, shape ...int64) (*tensor.Tensor, error) {
	if vb.Has(name) || vb.s.rng == nil {
		return vb.Tensor(name, shape...)
	}

	t, err := tensor.Zeros(shape)
	if err != nil {
		return nil, fmt.Errorf("nn: parameter %q: %w", vb.resolve(name), err)
	}

	init(vb.s.rng, t.RawData())
	vb.s.stats.Initialized++

	return t, nil
}

func (vb *VarBuilder) resolve(name string) string {
	name = strings.TrimSpace(name)

	switch {
	case vb.prefix == "":
		return name
	case name == "":
		return vb.prefix
	default:
		return vb.prefix + "." + name
	}
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
