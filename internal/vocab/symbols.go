package vocab

import "fmt"

// Symbols holds the reserved indices of a vocabulary. SEP is -1 for tag
// vocabularies, which have no separator.
type Symbols struct {
	SOS int
	EOS int
	SEP int
	PAD int
}

// CharSymbols resolves <s>, </s>, <sep> and <pad> in a character vocabulary.
func CharSymbols(v *Vocab) (Symbols, error) {
	return lookup(v, true)
}

// TagSymbols resolves <s>, </s> and <pad> in a tag vocabulary.
func TagSymbols(v *Vocab) (Symbols, error) {
	return lookup(v, false)
}

func lookup(v *Vocab, withSep bool) (Symbols, error) {
	s := Symbols{SEP: -1}

	fields := []struct {
		name string
		dst  *int
	}{
		{SOS, &s.SOS},
		{EOS, &s.EOS},
		{PAD, &s.PAD},
	}
	if withSep {
		fields = append(fields, struct {
			name string
			dst  *int
		}{SEP, &s.SEP})
	}

	for _, f := range fields {
		i, ok := v.Index(f.name)
		if !ok {
			return Symbols{}, fmt.Errorf("%w %q", ErrMissingSymbol, f.name)
		}

		*f.dst = i
	}

	if s.PAD != 0 {
		return Symbols{}, fmt.Errorf("%w, got %d", ErrPadIndex, s.PAD)
	}

	return s, nil
}

// IsControl reports whether idx is one of the reserved indices.
func (s Symbols) IsControl(idx int) bool {
	return idx == s.SOS || idx == s.EOS || idx == s.PAD || (s.SEP >= 0 && idx == s.SEP)
}
