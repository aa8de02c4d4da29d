// Package vocab maps characters and morphological tags to dense indices.
package vocab

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/unicode/norm"
)

// Control symbols shared by the character and tag vocabularies.
const (
	SOS = "<s>"
	EOS = "</s>"
	SEP = "<sep>"
	PAD = "<pad>"
)

var (
	ErrMissingSymbol = errors.New("vocab: missing control symbol")
	ErrPadIndex      = errors.New("vocab: padding symbol must have index 0")
)

// Vocab is an immutable bidirectional symbol table.
type Vocab struct {
	symbols []string
	index   map[string]int
}

// New builds a vocabulary where symbols[i] has index i.
func New(symbols []string) (*Vocab, error) {
	v := &Vocab{
		symbols: append([]string(nil), symbols...),
		index:   make(map[string]int, len(symbols)),
	}

	for i, s := range symbols {
		if _, dup := v.index[s]; dup {
			return nil, fmt.Errorf("vocab: duplicate symbol %q at index %d", s, i)
		}

		v.index[s] = i
	}

	return v, nil
}

type file struct {
	Index2Char []string       `json:"index2char"`
	Index2Tag  []string       `json:"index2tag"`
	Char2Index map[string]int `json:"char2index"`
	Tag2Index  map[string]int `json:"tag2index"`
}

// Load reads a JSON vocabulary file. Either the index->symbol list or the
// symbol->index map may be present; the list wins when both are.
func Load(path string) (*Vocab, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("vocab: read %s: %w", path, err)
	}

	v, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("vocab: %s: %w", path, err)
	}

	return v, nil
}

func Parse(data []byte) (*Vocab, error) {
	var f file
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}

	switch {
	case len(f.Index2Char) > 0:
		return New(f.Index2Char)
	case len(f.Index2Tag) > 0:
		return New(f.Index2Tag)
	case len(f.Char2Index) > 0:
		return fromIndex(f.Char2Index)
	case len(f.Tag2Index) > 0:
		return fromIndex(f.Tag2Index)
	default:
		return nil, errors.New("no index2char, index2tag, char2index or tag2index entries")
	}
}

func fromIndex(m map[string]int) (*Vocab, error) {
	symbols := make([]string, len(m))
	seen := make([]bool, len(m))

	for s, i := range m {
		if i < 0 || i >= len(m) {
			return nil, fmt.Errorf("symbol %q has index %d outside [0, %d)", s, i, len(m))
		}

		if seen[i] {
			return nil, fmt.Errorf("index %d assigned twice", i)
		}

		symbols[i] = s
		seen[i] = true
	}

	return New(symbols)
}

func (v *Vocab) Size() int { return len(v.symbols) }

// Index returns the index of symbol s.
func (v *Vocab) Index(s string) (int, bool) {
	i, ok := v.index[s]
	return i, ok
}

// Symbol returns the symbol at index i.
func (v *Vocab) Symbol(i int) (string, bool) {
	if i < 0 || i >= len(v.symbols) {
		return "", false
	}

	return v.symbols[i], true
}

// Symbols returns a copy of the symbol list in index order.
func (v *Vocab) Symbols() []string {
	return append([]string(nil), v.symbols...)
}

// Normalize returns the NFC form of text, the form vocabularies are built in.
func Normalize(text string) string {
	return norm.NFC.String(text)
}

// EncodeChars maps the runes of text to indices after NFC normalisation.
// Runes missing from the vocabulary are dropped and counted.
func (v *Vocab) EncodeChars(text string) (ids []int, dropped int) {
	for _, r := range Normalize(text) {
		i, ok := v.index[string(r)]
		if !ok {
			dropped++
			continue
		}

		ids = append(ids, i)
	}

	return ids, dropped
}

// DecodeChars joins the symbols for ids, skipping control symbols and
// unknown indices.
func (v *Vocab) DecodeChars(ids []int) string {
	var b strings.Builder

	for _, i := range ids {
		s, ok := v.Symbol(i)
		if !ok || isControl(s) {
			continue
		}

		b.WriteString(s)
	}

	return b.String()
}

func isControl(s string) bool {
	switch s {
	case SOS, EOS, SEP, PAD:
		return true
	}

	return false
}
