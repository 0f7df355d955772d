package table

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrColumnNotFound is returned when a named column is absent from the header.
var ErrColumnNotFound = errors.New("column not found")

// ErrTooManyFields is returned when a row holds more fields than the header.
var ErrTooManyFields = errors.New("too many fields")

// Table is a delimited text table held fully in memory. Cells are kept as
// the raw strings read from disk so untouched columns round-trip unchanged.
type Table struct {
	Headers []string
	Rows    [][]string

	index map[string]int
}

// New creates a table with the given headers and rows. Short rows are padded
// with empty cells.
func New(headers []string, rows [][]string) *Table {
	t := &Table{Headers: append([]string(nil), headers...)}
	t.reindex()
	for _, r := range rows {
		t.Rows = append(t.Rows, t.pad(r))
	}
	return t
}

func (t *Table) reindex() {
	t.index = make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		if _, dup := t.index[h]; !dup {
			t.index[h] = i
		}
	}
}

func (t *Table) pad(rec []string) []string {
	row := make([]string, len(t.Headers))
	copy(row, rec)
	return row
}

// Len returns the number of data rows.
func (t *Table) Len() int { return len(t.Rows) }

// Has reports whether the table has a column named name.
func (t *Table) Has(name string) bool {
	_, ok := t.index[name]
	return ok
}

// ColumnIndex returns the position of the named column.
func (t *Table) ColumnIndex(name string) (int, error) {
	i, ok := t.index[name]
	if !ok {
		return -1, fmt.Errorf("%w: %s", ErrColumnNotFound, name)
	}
	return i, nil
}

// Column returns a copy of every cell in the named column.
func (t *Table) Column(name string) ([]string, error) {
	i, err := t.ColumnIndex(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[i]
	}
	return out, nil
}

// SetColumn replaces the named column with values, appending the column at
// the end of the header when it does not exist yet.
func (t *Table) SetColumn(name string, values []string) error {
	if len(values) != len(t.Rows) {
		return fmt.Errorf("column %s has %d values, table has %d rows", name, len(values), len(t.Rows))
	}
	i, ok := t.index[name]
	if !ok {
		t.Headers = append(t.Headers, name)
		i = len(t.Headers) - 1
		t.index[name] = i
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], "")
		}
	}
	for r, v := range values {
		t.Rows[r][i] = v
	}
	return nil
}

// Records returns every row as a map keyed by header.
func (t *Table) Records() []map[string]string {
	out := make([]map[string]string, len(t.Rows))
	for r, row := range t.Rows {
		m := make(map[string]string, len(t.Headers))
		for i, h := range t.Headers {
			m[h] = row[i]
		}
		out[r] = m
	}
	return out
}

// Read parses a delimited table with a header row from r.
func Read(r io.Reader) (*Table, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	b = bytes.TrimPrefix(b, []byte{0xEF, 0xBB, 0xBF})

	cr := csv.NewReader(bytes.NewReader(b))
	cr.FieldsPerRecord = -1
	headers, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(nil, nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := New(headers, nil)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %w", len(t.Rows)+1, err)
		}
		if len(rec) > len(t.Headers) {
			return nil, fmt.Errorf("%w: row %d has %d fields, expected %d", ErrTooManyFields, len(t.Rows)+1, len(rec), len(t.Headers))
		}
		t.Rows = append(t.Rows, t.pad(rec))
	}
	return t, nil
}

// ReadFile loads the table stored at path.
func ReadFile(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return t, nil
}

// Write serializes the header and every row to w. No index column is added.
func (t *Table) Write(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Headers); err != nil {
		return err
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return err
	}
	return cw.Error()
}

// WriteFile writes the table to path, creating parent directories as needed.
func (t *Table) WriteFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := t.Write(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
