// Package dataset reads sentence samples from JSON lines and encodes them
// into the index streams the model consumes.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// Token is one whitespace token of a sample. Forms and Tags are its gold
// segmentation and are empty for unlabelled input.
type Token struct {
	Text string `json:"text"`
	// XTokenPositions are the token's sub-word positions into XTokenIDs.
	XTokenPositions []int    `json:"xtoken_positions,omitempty"`
	Forms           []string `json:"forms,omitempty"`
	Tags            []string `json:"tags,omitempty"`
}

// Sample is one sentence.
type Sample struct {
	SentID    string  `json:"sent_id"`
	Tokens    []Token `json:"tokens"`
	XTokenIDs []int64 `json:"xtoken_ids,omitempty"`
	// Context optionally carries precomputed per-position encoder vectors.
	Context [][]float32 `json:"context,omitempty"`
}

// Labelled reports whether every token carries gold forms.
func (s Sample) Labelled() bool {
	if len(s.Tokens) == 0 {
		return false
	}

	for _, t := range s.Tokens {
		if len(t.Forms) == 0 {
			return false
		}
	}

	return true
}

// Words returns the token texts.
func (s Sample) Words() []string {
	out := make([]string, len(s.Tokens))
	for i, t := range s.Tokens {
		out[i] = t.Text
	}

	return out
}

var ErrEmptyFile = errors.New("dataset: no samples")

// Load reads a JSON-lines file of samples.
func Load(path string) ([]Sample, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("dataset: open %s: %w", path, err)
	}
	defer f.Close()

	samples, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("dataset: %s: %w", path, err)
	}

	return samples, nil
}

// Read parses one sample per non-blank line.
func Read(r io.Reader) ([]Sample, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 64<<20)

	var (
		out  []Sample
		line int
	)

	for sc.Scan() {
		line++

		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}

		var s Sample
		if err := json.Unmarshal(b, &s); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}

		if s.SentID == "" {
			s.SentID = fmt.Sprint(len(out) + 1)
		}

		out = append(out, s)
	}

	if err := sc.Err(); err != nil {
		return nil, err
	}

	if len(out) == 0 {
		return nil, ErrEmptyFile
	}

	return out, nil
}
