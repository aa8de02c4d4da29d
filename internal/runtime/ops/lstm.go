package ops

import (
	"fmt"
	"math/rand/v2"

	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

// LSTM is a multi-layer, optionally bidirectional long short-term memory
// network with PyTorch gate order (i, f, g, o). Layers are indexed
// layer*directions + direction, direction 1 being the reverse pass.
type LSTM struct {
	Input         int
	Hidden        int
	NumLayers     int
	Bidirectional bool
	Dropout       float64
	Layers        []RecurrentWeights
}

func NewLSTM(input, hidden, numLayers int, bidirectional bool, dropout float64, layers []RecurrentWeights) (*LSTM, error) {
	if input <= 0 || hidden <= 0 || numLayers <= 0 {
		return nil, fmt.Errorf("ops: lstm sizes must be positive, got input=%d hidden=%d layers=%d", input, hidden, numLayers)
	}

	m := &LSTM{
		Input:         input,
		Hidden:        hidden,
		NumLayers:     numLayers,
		Bidirectional: bidirectional,
		Dropout:       dropout,
		Layers:        layers,
	}

	if len(layers) != numLayers*m.Directions() {
		return nil, fmt.Errorf("ops: lstm has %d weight sets, want %d", len(layers), numLayers*m.Directions())
	}

	for i, w := range layers {
		in := input
		if i/m.Directions() > 0 {
			in = hidden * m.Directions()
		}

		if err := w.validate(4, in, hidden); err != nil {
			return nil, fmt.Errorf("ops: lstm weights %d: %w", i, err)
		}
	}

	return m, nil
}

func (m *LSTM) Directions() int {
	if m.Bidirectional {
		return 2
	}

	return 1
}

// OutputSize is the width of each output position.
func (m *LSTM) OutputSize() int {
	return m.Hidden * m.Directions()
}

// Run processes xs from a zero state and returns, for each position, the
// last layer's outputs with forward and backward halves concatenated.
func (m *LSTM) Run(xs [][]float32, rng *rand.Rand) ([][]float32, error) {
	in := xs
	for l := range m.NumLayers {
		out := make([][]float32, len(in))
		for t := range out {
			out[t] = make([]float32, m.OutputSize())
		}

		for d := range m.Directions() {
			if err := m.pass(m.Layers[l*m.Directions()+d], in, out, d); err != nil {
				return nil, fmt.Errorf("ops: lstm layer %d direction %d: %w", l, d, err)
			}
		}

		if l < m.NumLayers-1 {
			for _, o := range out {
				DropoutSlice(o, m.Dropout, rng)
			}
		}

		in = out
	}

	return in, nil
}

func (m *LSTM) pass(w RecurrentWeights, xs, out [][]float32, dir int) error {
	hs := m.Hidden
	h := make([]float32, hs)
	c := make([]float32, hs)
	gi := make([]float32, 4*hs)
	gh := make([]float32, 4*hs)

	for step := range xs {
		t := step
		if dir == 1 {
			t = len(xs) - 1 - step
		}

		if err := tensor.MatVec(gi, w.WeightIH, xs[t], w.BiasIH); err != nil {
			return fmt.Errorf("position %d: %w", t, err)
		}

		if err := tensor.MatVec(gh, w.WeightHH, h, w.BiasHH); err != nil {
			return fmt.Errorf("position %d: %w", t, err)
		}

		for j := range hs {
			i := sigmoid(gi[j] + gh[j])
			f := sigmoid(gi[hs+j] + gh[hs+j])
			g := tanh(gi[2*hs+j] + gh[2*hs+j])
			o := sigmoid(gi[3*hs+j] + gh[3*hs+j])
			c[j] = f*c[j] + i*g
			h[j] = o * tanh(c[j])
		}

		copy(out[t][dir*hs:(dir+1)*hs], h)
	}

	return nil
}
