// internal/types/ids.go
package types

import (
	"strconv"
	"strings"

	"github.com/google/uuid"
)

type BatchID string
type ItemID string

func NewBatchID() BatchID {
	return BatchID(uuid.New().String())
}

func NewItemID() ItemID {
	return ItemID(uuid.New().String())
}

// Short returns the first eight characters of the batch id, enough to
// disambiguate runs in CLI listings.
func (id BatchID) Short() string {
	s := string(id)
	if len(s) > 8 {
		return s[:8]
	}
	return s
}

// NewLocator builds a human-readable work item locator such as "Sheet1!C5".
func NewLocator(sheet, column string, row int) string {
	var b strings.Builder
	if sheet != "" {
		b.WriteString(sheet)
		b.WriteByte('!')
	}
	b.WriteString(column)
	b.WriteString(strconv.Itoa(row))
	return b.String()
}

// ColumnLetter converts a 0-based column index to A1 letters (0 -> A, 26 -> AA).
func ColumnLetter(idx int) string {
	var buf []byte
	for n := idx + 1; n > 0; n = (n - 1) / 26 {
		buf = append([]byte{byte('A' + (n-1)%26)}, buf...)
	}
	return string(buf)
}
