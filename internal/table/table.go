// Package table maps CSV headers onto the columns a loader requires.
package table

import (
	"fmt"
	"strings"
)

// Columns resolves column names to positions in a CSV header.
type Columns map[string]int

// MissingColumnsError lists required columns absent from a header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
}

// Index validates header against the required column names. Header cells are
// trimmed and a leading byte order mark is ignored. Extra columns are allowed.
func Index(header []string, required ...string) (Columns, error) {
	cols := make(Columns, len(header))
	for i, name := range header {
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		name = strings.TrimSpace(name)
		if _, dup := cols[name]; !dup {
			cols[name] = i
		}
	}
	var missing []string
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing}
	}
	return cols, nil
}

// Get returns the value of column name in record, or "" when the record is
// shorter than the header.
func (c Columns) Get(record []string, name string) string {
	idx, ok := c[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
