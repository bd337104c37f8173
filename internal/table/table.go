// internal/table/table.go
package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// ErrNoHeader is returned when the input has no header record.
var ErrNoHeader = errors.New("table has no header row")

const utf8BOM = "\ufeff"

// Table is a parsed delimited-text document: a header and its data rows.
type Table struct {
	Header []string
	Rows   []Row
}

// Row is one data record. Fields are addressed by column name; a column the
// row does not carry reads as empty.
type Row struct {
	// Line is the 1-based record number in the source, header included.
	Line   int
	names  []string
	values []string
}

// NewRow builds a row from parallel name and value slices. Missing values
// are treated as empty.
func NewRow(line int, names, values []string) Row {
	vals := make([]string, len(names))
	copy(vals, values)
	return Row{Line: line, names: names, values: vals}
}

// Get returns the value of the named field and whether the row has it.
func (r Row) Get(name string) (string, bool) {
	for i, n := range r.names {
		if n == name {
			return r.values[i], true
		}
	}
	return "", false
}

// Value returns the named field, or "" when absent.
func (r Row) Value(name string) string {
	v, _ := r.Get(name)
	return v
}

// Fields returns the row's field names in column order.
func (r Row) Fields() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Map returns the row as a name to value map.
func (r Row) Map() map[string]string {
	m := make(map[string]string, len(r.names))
	for i, n := range r.names {
		m[n] = r.values[i]
	}
	return m
}

// Select returns a copy of the row holding only the fields keep accepts.
func (r Row) Select(keep func(name string) bool) Row {
	out := Row{Line: r.Line}
	for i, n := range r.names {
		if keep(n) {
			out.names = append(out.names, n)
			out.values = append(out.values, r.values[i])
		}
	}
	return out
}

// HasColumn reports whether name is part of the header.
func (t *Table) HasColumn(name string) bool {
	if name == "" {
		return false
	}
	for _, h := range t.Header {
		if h == name {
			return true
		}
	}
	return false
}

// Read parses comma-separated input. Quoting is lenient and records may carry
// a different number of fields than the header: short records are padded and
// long ones truncated. Blank lines are skipped.
func Read(r io.Reader) (*Table, error) {
	return read(r, ',')
}

// ReadBytes is Read over an in-memory document.
func ReadBytes(data []byte) (*Table, error) {
	return Read(bytes.NewReader(data))
}

func read(r io.Reader, comma rune) (*Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.LazyQuotes = true
	cr.FieldsPerRecord = -1

	first, err := cr.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	header := normalizeHeader(first)
	t := &Table{Header: header}

	line := 1
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record %d: %w", line+1, err)
		}
		line++
		if isBlank(rec) {
			continue
		}
		t.Rows = append(t.Rows, NewRow(line, header, rec))
	}
	return t, nil
}

// normalizeHeader strips a leading byte-order mark, trims names, names blank
// columns empty_col_<i> and disambiguates duplicates with a .N suffix.
func normalizeHeader(rec []string) []string {
	out := make([]string, len(rec))
	seen := make(map[string]int, len(rec))
	for i, name := range rec {
		if i == 0 {
			name = strings.TrimPrefix(name, utf8BOM)
		}
		name = strings.TrimSpace(name)
		if name == "" {
			name = "empty_col_" + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			seen[name] = n + 1
			name = name + "." + strconv.Itoa(n+1)
		} else {
			seen[name] = 0
		}
		out[i] = name
	}
	return out
}

func isBlank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
