// Package table holds the in-memory batch passed from the fetcher to the
// loader: ordered named columns and ordered rows whose cells are all text.
package table

import (
	"fmt"
)

// Table is an ordered set of named text columns and the rows under them.
// The zero value is an empty table with no columns.
type Table struct {
	columns []string
	index   map[string]int
	rows    [][]string
}

// New creates an empty table with the given columns. Duplicate names are
// collapsed to their first occurrence.
func New(columns ...string) *Table {
	t := &Table{index: make(map[string]int, len(columns))}
	for _, c := range columns {
		t.addColumn(c)
	}
	return t
}

func (t *Table) addColumn(name string) int {
	if t.index == nil {
		t.index = make(map[string]int)
	}
	if i, ok := t.index[name]; ok {
		return i
	}
	t.index[name] = len(t.columns)
	t.columns = append(t.columns, name)
	for i := range t.rows {
		t.rows[i] = append(t.rows[i], "")
	}
	return len(t.columns) - 1
}

// Columns returns a copy of the column names in order
func (t *Table) Columns() []string {
	out := make([]string, len(t.columns))
	copy(out, t.columns)
	return out
}

// HasColumn reports whether the table has a column with this name
func (t *Table) HasColumn(name string) bool {
	_, ok := t.index[name]
	return ok
}

// Len returns the number of rows
func (t *Table) Len() int {
	return len(t.rows)
}

// Width returns the number of columns
func (t *Table) Width() int {
	return len(t.columns)
}

// AppendRow adds a row. The number of cells must match the number of columns
func (t *Table) AppendRow(cells ...string) error {
	if len(cells) != len(t.columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.columns))
	}
	row := make([]string, len(cells))
	copy(row, cells)
	t.rows = append(t.rows, row)
	return nil
}

// Row returns a copy of row i
func (t *Table) Row(i int) []string {
	out := make([]string, len(t.rows[i]))
	copy(out, t.rows[i])
	return out
}

// Value returns the cell at row i under column name
func (t *Table) Value(i int, name string) (string, bool) {
	c, ok := t.index[name]
	if !ok || i < 0 || i >= len(t.rows) {
		return "", false
	}
	return t.rows[i][c], true
}

// Column returns a copy of every cell under column name
func (t *Table) Column(name string) ([]string, bool) {
	c, ok := t.index[name]
	if !ok {
		return nil, false
	}
	out := make([]string, len(t.rows))
	for i, row := range t.rows {
		out[i] = row[c]
	}
	return out, true
}

// Fill sets column name to value on every row, adding the column at the end
// if it does not exist yet.
func (t *Table) Fill(name, value string) {
	c := t.addColumn(name)
	for i := range t.rows {
		t.rows[i][c] = value
	}
}
