package ops

import (
	"fmt"
	"math/rand/v2"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// RecurrentWeights are the parameters of one recurrent layer in one
// direction, laid out the way PyTorch stores them: gates are stacked along
// dim 0 of each matrix.
type RecurrentWeights struct {
	WeightIH *tensor.Tensor // [G*H, in]
	WeightHH *tensor.Tensor // [G*H, H]
	BiasIH   *tensor.Tensor // [G*H]
	BiasHH   *tensor.Tensor // [G*H]
}

func (w RecurrentWeights) validate(gates, in, hidden int) error {
	if w.WeightIH == nil || w.WeightHH == nil {
		return fmt.Errorf("missing weight matrices")
	}

	rows := int64(gates * hidden)

	if got := w.WeightIH.Shape(); len(got) != 2 || got[0] != rows || got[1] != int64(in) {
		return fmt.Errorf("weight_ih shape %v, want [%d %d]", got, rows, in)
	}

	if got := w.WeightHH.Shape(); len(got) != 2 || got[0] != rows || got[1] != int64(hidden) {
		return fmt.Errorf("weight_hh shape %v, want [%d %d]", got, rows, hidden)
	}

	for name, b := range map[string]*tensor.Tensor{"bias_ih": w.BiasIH, "bias_hh": w.BiasHH} {
		if b != nil && (b.Rank() != 1 || b.Dim(0) != int(rows)) {
			return fmt.Errorf("%s shape %v, want [%d]", name, b.Shape(), rows)
		}
	}

	return nil
}

// GRU is a multi-layer unidirectional gated recurrent unit with PyTorch
// gate order (r, z, n).
type GRU struct {
	Input   int
	Hidden  int
	Dropout float64
	Layers  []RecurrentWeights
}

func NewGRU(input, hidden int, dropout float64, layers []RecurrentWeights) (*GRU, error) {
	if input <= 0 || hidden <= 0 {
		return nil, fmt.Errorf("ops: gru sizes must be positive, got input=%d hidden=%d", input, hidden)
	}

	if len(layers) == 0 {
		return nil, fmt.Errorf("ops: gru requires at least one layer")
	}

	for l, w := range layers {
		in := hidden
		if l == 0 {
			in = input
		}

		if err := w.validate(3, in, hidden); err != nil {
			return nil, fmt.Errorf("ops: gru layer %d: %w", l, err)
		}
	}

	return &GRU{Input: input, Hidden: hidden, Dropout: dropout, Layers: layers}, nil
}

// GRUState is the hidden state of every layer plus per-state scratch space.
// A state belongs to a single sequence and must not be shared.
type GRUState struct {
	H [][]float32

	gi  []float32
	gh  []float32
	buf []float32
}

// NewState returns a zero state.
func (g *GRU) NewState() *GRUState {
	s := &GRUState{
		H:   make([][]float32, len(g.Layers)),
		gi:  make([]float32, 3*g.Hidden),
		gh:  make([]float32, 3*g.Hidden),
		buf: make([]float32, g.Hidden),
	}
	for l := range s.H {
		s.H[l] = make([]float32, g.Hidden)
	}

	return s
}

// StateFrom splits a flat vector of len(Layers)*Hidden into per-layer
// hidden states, layer 0 first.
func (g *GRU) StateFrom(flat []float32) (*GRUState, error) {
	want := len(g.Layers) * g.Hidden
	if len(flat) != want {
		return nil, fmt.Errorf("ops: gru initial state has %d values, want %d layers x %d", len(flat), len(g.Layers), g.Hidden)
	}

	s := g.NewState()
	for l := range s.H {
		copy(s.H[l], flat[l*g.Hidden:(l+1)*g.Hidden])
	}

	return s, nil
}

// Top returns the hidden state of the last layer.
func (s *GRUState) Top() []float32 {
	return s.H[len(s.H)-1]
}

// Step advances every layer one time step on input x and updates s in
// place. Dropout is applied to the outputs of all layers but the last when
// rng is non-nil.
func (g *GRU) Step(x []float32, s *GRUState, rng *rand.Rand) error {
	if len(x) != g.Input {
		return fmt.Errorf("ops: gru input has %d values, want %d", len(x), g.Input)
	}

	if len(s.H) != len(g.Layers) {
		return fmt.Errorf("ops: gru state has %d layers, want %d", len(s.H), len(g.Layers))
	}

	in := x
	for l, w := range g.Layers {
		if err := g.cell(w, in, s.H[l], s); err != nil {
			return fmt.Errorf("ops: gru layer %d: %w", l, err)
		}

		if l < len(g.Layers)-1 {
			copy(s.buf, s.H[l])
			DropoutSlice(s.buf, g.Dropout, rng)
			in = s.buf
		}
	}

	return nil
}

func (g *GRU) cell(w RecurrentWeights, x, h []float32, s *GRUState) error {
	if err := tensor.MatVec(s.gi, w.WeightIH, x, w.BiasIH); err != nil {
		return err
	}

	if err := tensor.MatVec(s.gh, w.WeightHH, h, w.BiasHH); err != nil {
		return err
	}

	hs := g.Hidden
	for j := range hs {
		r := sigmoid(s.gi[j] + s.gh[j])
		z := sigmoid(s.gi[hs+j] + s.gh[hs+j])
		n := tanh(s.gi[2*hs+j] + r*s.gh[2*hs+j])
		h[j] = (1-z)*n + z*h[j]
	}

	return nil
}
