package morph

import (
	"fmt"

	"github.com/aseker00/alephbert/internal/vocab"
)

// Boundaries returns the positions of an output stream that close a
// segment: every <sep> before the first </s>, then that </s>. A stream
// without </s> was truncated and its last position closes the final
// segment, even when that position is itself a <sep>.
func Boundaries(stream []int, sym vocab.Symbols) []int {
	var out []int

	for i, c := range stream {
		switch c {
		case sym.EOS:
			return append(out, i)
		case sym.SEP:
			out = append(out, i)
		}
	}

	if len(stream) > 0 {
		out = append(out, len(stream)-1)
	}

	return out
}

// SlotCount is the number of tag slots a stream yields: the separators
// before the first </s>, plus one.
func SlotCount(stream []int, sym vocab.Symbols) int {
	return len(Boundaries(stream, sym))
}

// Align picks the states paired with the boundary positions of stream.
// The returned slices alias states.
func Align(stream []int, states [][]float32, sym vocab.Symbols) ([][]float32, error) {
	if len(stream) != len(states) {
		return nil, fmt.Errorf("%w: stream has %d symbols but %d states", ErrShapeMismatch, len(stream), len(states))
	}

	idx := Boundaries(stream, sym)

	out := make([][]float32, len(idx))
	for i, p := range idx {
		out[i] = states[p]
	}

	return out, nil
}

// AlignDecoded extracts the boundary states of one decoded lane from the
// stream it fed back and the states that produced it.
func AlignDecoded(d *Decoded, sym vocab.Symbols) ([][]float32, error) {
	return Align(d.Chars, d.States, sym)
}
