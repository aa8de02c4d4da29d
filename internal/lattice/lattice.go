// Package lattice turns decoded symbol streams into per-token segments and
// tags, lays them out as lattice rows and scores them against gold.
package lattice

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/aseker00/alephbert/internal/vocab"
)

// Segments splits a character stream into forms. The stream ends at the
// first </s>, or runs to its end when decoding was truncated. Forms are
// separated by <sep>; other control symbols are skipped.
func Segments(chars []int, v *vocab.Vocab, sym vocab.Symbols) []string {
	end := len(chars)

	for i, c := range chars {
		if c == sym.EOS {
			end = i
			break
		}
	}

	var (
		forms []string
		start int
	)

	for i := 0; i <= end; i++ {
		if i < end && chars[i] != sym.SEP {
			continue
		}

		forms = append(forms, v.DecodeChars(chars[start:i]))
		start = i + 1
	}

	return forms
}

// Tags maps tag indices to labels, dropping padding.
func Tags(tags []int, v *vocab.Vocab, sym vocab.Symbols) []string {
	var out []string

	for _, t := range tags {
		if t == sym.PAD {
			continue
		}

		s, ok := v.Symbol(t)
		if !ok {
			s = strconv.Itoa(t)
		}

		out = append(out, s)
	}

	return out
}

// Row is one arc of a morphological lattice.
type Row struct {
	SentID  string
	From    int
	To      int
	Form    string
	Lemma   string
	Tag     string
	Feats   string
	TokenID int
	Token   string
	IsGold  bool
}

// Header names the TSV columns written by WriteTSV.
var Header = []string{"sent_id", "from_node_id", "to_node_id", "form", "lemma", "tag", "feats", "token_id", "token", "is_gold"}

// Rows lays out one sentence. Node ids start at 0 and advance by one per
// segment; token ids are 1-based. Each token contributes as many rows as the
// shorter of its forms and tags.
func Rows(sentID string, tokens []string, forms, tags [][]string) []Row {
	var (
		rows []Row
		node int
	)

	for i, tok := range tokens {
		if i >= len(forms) || i >= len(tags) {
			break
		}

		for j := 0; j < len(forms[i]) && j < len(tags[i]); j++ {
			rows = append(rows, Row{
				SentID:  sentID,
				From:    node,
				To:      node + 1,
				Form:    forms[i][j],
				Lemma:   "_",
				Tag:     tags[i][j],
				Feats:   "_",
				TokenID: i + 1,
				Token:   tok,
				IsGold:  true,
			})
			node++
		}
	}

	return rows
}

func (r Row) record() []string {
	return []string{
		r.SentID,
		strconv.Itoa(r.From),
		strconv.Itoa(r.To),
		r.Form,
		r.Lemma,
		r.Tag,
		r.Feats,
		strconv.Itoa(r.TokenID),
		r.Token,
		strconv.FormatBool(r.IsGold),
	}
}

// WriteTSV writes the header and rows tab-separated.
func WriteTSV(w io.Writer, rows []Row) error {
	cw := csv.NewWriter(w)
	cw.Comma = '\t'

	if err := cw.Write(Header); err != nil {
		return fmt.Errorf("lattice: write header: %w", err)
	}

	for i, r := range rows {
		if err := cw.Write(r.record()); err != nil {
			return fmt.Errorf("lattice: write row %d: %w", i, err)
		}
	}

	cw.Flush()

	return cw.Error()
}

// ReadTSV parses rows written by WriteTSV.
func ReadTSV(r io.Reader) ([]Row, error) {
	cr := csv.NewReader(r)
	cr.Comma = '\t'
	cr.FieldsPerRecord = len(Header)
	cr.LazyQuotes = true

	records, err := cr.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("lattice: read: %w", err)
	}

	if len(records) == 0 {
		return nil, nil
	}

	if strings.Join(records[0], "\t") != strings.Join(Header, "\t") {
		return nil, fmt.Errorf("lattice: unexpected header %v", records[0])
	}

	rows := make([]Row, 0, len(records)-1)

	for n, rec := range records[1:] {
		row, err := parseRow(rec)
		if err != nil {
			return nil, fmt.Errorf("lattice: row %d: %w", n+1, err)
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func parseRow(rec []string) (Row, error) {
	row := Row{SentID: rec[0], Form: rec[3], Lemma: rec[4], Tag: rec[5], Feats: rec[6], Token: rec[8]}

	var err error
	if row.From, err = strconv.Atoi(rec[1]); err != nil {
		return Row{}, err
	}

	if row.To, err = strconv.Atoi(rec[2]); err != nil {
		return Row{}, err
	}

	if row.TokenID, err = strconv.Atoi(rec[7]); err != nil {
		return Row{}, err
	}

	if row.IsGold, err = strconv.ParseBool(rec[9]); err != nil {
		return Row{}, err
	}

	return row, nil
}
