package lattice

// Score is precision, recall and their harmonic mean.
type Score struct {
	Precision float64
	Recall    float64
	F1        float64
}

// Counts accumulates decoded, gold and matched unit counts.
type Counts struct {
	Decoded int
	Gold    int
	Matched int
}

func (c *Counts) Add(o Counts) {
	c.Decoded += o.Decoded
	c.Gold += o.Gold
	c.Matched += o.Matched
}

func (c Counts) Score() Score {
	var s Score
	if c.Decoded > 0 {
		s.Precision = float64(c.Matched) / float64(c.Decoded)
	}

	if c.Gold > 0 {
		s.Recall = float64(c.Matched) / float64(c.Gold)
	}

	if s.Precision+s.Recall > 0 {
		s.F1 = 2 * s.Precision * s.Recall / (s.Precision + s.Recall)
	}

	return s
}

// Evaluation holds the position-aligned and the multiset comparison.
type Evaluation struct {
	Aligned Counts
	MSet    Counts
}

func (e *Evaluation) Add(o Evaluation) {
	e.Aligned.Add(o.Aligned)
	e.MSet.Add(o.MSet)
}

// Compare scores decoded units against gold, sentence by sentence and token
// by token. Aligned matches require the same unit at the same index;
// multiset matches ignore order within a token.
func Compare(decoded, gold [][][]string) Evaluation {
	var e Evaluation

	for s := 0; s < len(decoded) && s < len(gold); s++ {
		for t := 0; t < len(decoded[s]) && t < len(gold[s]); t++ {
			d, g := decoded[s][t], gold[s][t]

			e.Aligned.Decoded += len(d)
			e.Aligned.Gold += len(g)
			e.MSet.Decoded += len(d)
			e.MSet.Gold += len(g)

			for i := 0; i < len(d) && i < len(g); i++ {
				if d[i] == g[i] {
					e.Aligned.Matched++
				}
			}

			counts := make(map[string]int, len(g))
			for _, u := range g {
				counts[u]++
			}

			for _, u := range d {
				if counts[u] > 0 {
					counts[u]--
					e.MSet.Matched++
				}
			}
		}
	}

	return e
}

// Evaluate returns the aligned and multiset scores of decoded against gold.
func Evaluate(decoded, gold [][][]string) (aligned, mset Score) {
	e := Compare(decoded, gold)
	return e.Aligned.Score(), e.MSet.Score()
}
