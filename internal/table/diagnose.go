// internal/table/diagnose.go
package table

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"fmt"
	"sort"
)

// diagnoseSampleLines bounds how many physical lines are inspected.
const diagnoseSampleLines = 1000

// Attempt is the outcome of one parsing strategy.
type Attempt struct {
	Name    string
	Columns int
	Rows    int
	Err     error
}

// FieldCount is one bucket of the field-count histogram.
type FieldCount struct {
	Fields int
	Lines  int
}

// Diagnosis describes why a document may fail to convert.
type Diagnosis struct {
	Size         int
	SampledLines int
	Header       []string
	FieldCounts  []FieldCount
	Attempts     []Attempt
}

// Consistent reports whether every sampled line had the same field count.
func (d *Diagnosis) Consistent() bool {
	return len(d.FieldCounts) <= 1
}

// Diagnose inspects data for the common causes of conversion failure:
// inconsistent field counts across lines, and whether alternate separators
// or strict quoting change the parse.
func Diagnose(data []byte) *Diagnosis {
	d := &Diagnosis{Size: len(data)}

	counts := make(map[int]int)
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 64*1024), len(data)+1)
	for sc.Scan() && d.SampledLines < diagnoseSampleLines {
		d.SampledLines++
		counts[bytes.Count(sc.Bytes(), []byte{','})+1]++
	}
	for fields, lines := range counts {
		d.FieldCounts = append(d.FieldCounts, FieldCount{Fields: fields, Lines: lines})
	}
	sort.Slice(d.FieldCounts, func(i, j int) bool {
		return d.FieldCounts[i].Fields < d.FieldCounts[j].Fields
	})

	if t, err := ReadBytes(data); err == nil {
		d.Header = t.Header
	}

	d.Attempts = append(d.Attempts,
		attempt("lenient comma", data, ',', true),
		attempt("strict comma", data, ',', false),
		attempt("semicolon", data, ';', true),
		attempt("tab", data, '\t', true),
	)
	return d
}

func attempt(name string, data []byte, comma rune, lenient bool) Attempt {
	a := Attempt{Name: name}
	if lenient {
		t, err := read(bytes.NewReader(data), comma)
		if err != nil {
			a.Err = err
			return a
		}
		a.Columns = len(t.Header)
		a.Rows = len(t.Rows)
		return a
	}

	// Standard quoting, every record as wide as the first.
	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = comma
	recs, err := cr.ReadAll()
	if err != nil {
		a.Err = fmt.Errorf("strict parse: %w", err)
		return a
	}
	if len(recs) == 0 {
		a.Err = ErrNoHeader
		return a
	}
	a.Columns = len(recs[0])
	a.Rows = len(recs) - 1
	return a
}
