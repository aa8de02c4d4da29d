package train

import "github.com/aseker00/alephbert/internal/lattice"

// Loss accumulates a cross-entropy mean weighted by its scored targets.
type Loss struct {
	Sum   float64
	Count int
}

func (l *Loss) Add(mean float64, count int) {
	l.Sum += mean * float64(count)
	l.Count += count
}

func (l Loss) Mean() float64 {
	if l.Count == 0 {
		return 0
	}

	return l.Sum / float64(l.Count)
}

// Losses are the three objectives, reported independently.
type Losses struct {
	Char    Loss
	Tag     Loss
	Segment Loss
}

func (l *Losses) Merge(o Losses) {
	l.Char.Add(o.Char.Mean(), o.Char.Count)
	l.Tag.Add(o.Tag.Mean(), o.Tag.Count)
	l.Segment.Add(o.Segment.Mean(), o.Segment.Count)
}

// Metrics is the outcome of one or more batches. The form and tag lists
// are indexed by sentence then token; gold entries of unlabelled sentences
// are nil.
type Metrics struct {
	Losses    Losses
	Sentences int
	Batches   int

	Words        [][]string
	DecodedForms [][][]string
	GoldForms    [][][]string
	DecodedTags  [][][]string
	GoldTags     [][][]string
	Rows         []lattice.Row
}

func (m *Metrics) Merge(o *Metrics) {
	m.Losses.Merge(o.Losses)
	m.Sentences += o.Sentences
	m.Batches += o.Batches
	m.Words = append(m.Words, o.Words...)
	m.DecodedForms = append(m.DecodedForms, o.DecodedForms...)
	m.GoldForms = append(m.GoldForms, o.GoldForms...)
	m.DecodedTags = append(m.DecodedTags, o.DecodedTags...)
	m.GoldTags = append(m.GoldTags, o.GoldTags...)
	m.Rows = append(m.Rows, o.Rows...)
}

// FormScores compares decoded segments with gold.
func (m *Metrics) FormScores() (aligned, mset lattice.Score) {
	return lattice.Evaluate(m.DecodedForms, m.GoldForms)
}

// TagScores compares decoded tags with gold.
func (m *Metrics) TagScores() (aligned, mset lattice.Score) {
	return lattice.Evaluate(m.DecodedTags, m.GoldTags)
}
