package nn

import (
	"errors"
	"fmt"

	"github.com/aseker00/alephbert/internal/runtime/ops"
	"github.com/aseker00/alephbert/internal/runtime/tensor"
)

type Linear struct {
	Weight *tensor.Tensor // [out, in]
	Bias   *tensor.Tensor // [out]
}

// LoadLinear resolves name.weight and name.bias.
func LoadLinear(vb *VarBuilder, name string, in, out int) (*Linear, error) {
	lvb := vb.Path(name)
	bound := FanBound(in)

	w, err := lvb.Param("weight", Uniform(bound), int64(out), int64(in))
	if err != nil {
		return nil, err
	}

	b, err := lvb.Param("bias", Uniform(bound), int64(out))
	if err != nil {
		return nil, err
	}

	return &Linear{Weight: w, Bias: b}, nil
}

func (l *Linear) In() int  { return l.Weight.Dim(1) }
func (l *Linear) Out() int { return l.Weight.Dim(0) }

// Forward projects the last dimension of x.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	if l == nil || l.Weight == nil {
		return nil, errors.New("nn: linear is not initialized")
	}

	return tensor.Linear(x, l.Weight, l.Bias)
}

// LoadEmbedding resolves name.weight [size, dim] with N(0, 1) fallback.
func LoadEmbedding(vb *VarBuilder, name string, size, dim, paddingIdx int) (*ops.Embedding, error) {
	w, err := vb.Path(name).Param("weight", Normal(1), int64(size), int64(dim))
	if err != nil {
		return nil, err
	}

	return ops.NewEmbedding(w, paddingIdx)
}

// LoadGRU resolves name.{weight,bias}_{ih,hh}_l{k} for every layer.
func LoadGRU(vb *VarBuilder, name string, input, hidden, numLayers int, dropout float64) (*ops.GRU, error) {
	layers := make([]ops.RecurrentWeights, numLayers)

	for l := range numLayers {
		in := hidden
		if l == 0 {
			in = input
		}

		w, err := loadRecurrent(vb.Path(name), fmt.Sprintf("l%d", l), 3, in, hidden)
		if err != nil {
			return nil, err
		}

		layers[l] = w
	}

	return ops.NewGRU(input, hidden, dropout, layers)
}

// LoadLSTM resolves an LSTM's parameters; the reverse direction of a
// bidirectional network uses the _reverse suffix.
func LoadLSTM(vb *VarBuilder, name string, input, hidden, numLayers int, bidirectional bool, dropout float64) (*ops.LSTM, error) {
	dirs := 1
	if bidirectional {
		dirs = 2
	}

	layers := make([]ops.RecurrentWeights, 0, numLayers*dirs)

	for l := range numLayers {
		in := input
		if l > 0 {
			in = hidden * dirs
		}

		for d := range dirs {
			suffix := fmt.Sprintf("l%d", l)
			if d == 1 {
				suffix += "_reverse"
			}

			w, err := loadRecurrent(vb.Path(name), suffix, 4, in, hidden)
			if err != nil {
				return nil, err
			}

			layers = append(layers, w)
		}
	}

	return ops.NewLSTM(input, hidden, numLayers, bidirectional, dropout, layers)
}

func loadRecurrent(vb *VarBuilder, suffix string, gates, in, hidden int) (ops.RecurrentWeights, error) {
	var (
		w     ops.RecurrentWeights
		err   error
		rows  = int64(gates * hidden)
		bound = Uniform(FanBound(hidden))
	)

	if w.WeightIH, err = vb.Param("weight_ih_"+suffix, bound, rows, int64(in)); err != nil {
		return w, err
	}

	if w.WeightHH, err = vb.Param("weight_hh_"+suffix, bound, rows, int64(hidden)); err != nil {
		return w, err
	}

	if w.BiasIH, err = vb.Param("bias_ih_"+suffix, bound, rows); err != nil {
		return w, err
	}

	if w.BiasHH, err = vb.Param("bias_hh_"+suffix, bound, rows); err != nil {
		return w, err
	}

	return w, nil
}
