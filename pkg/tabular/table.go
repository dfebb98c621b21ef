// Package tabular turns normalized value trees into rectangular tables and
// reads and writes those tables as delimited text.
package tabular

import (
	"fmt"

	"github.com/twinfer/matcsv/pkg/value"
)

// Cell is one table cell. The zero Cell is empty.
type Cell struct {
	v value.Value
}

// ValueCell wraps v; nested values render on one line.
func ValueCell(v value.Value) Cell {
	return Cell{v: v}
}

// TextCell holds s verbatim; the empty string is an empty cell.
func TextCell(s string) Cell {
	if s == "" {
		return Cell{}
	}
	return Cell{v: value.String(s)}
}

// Empty reports whether the cell holds no value.
func (c Cell) Empty() bool {
	if c.v == nil {
		return true
	}
	s, ok := c.v.(value.Scalar)
	return ok && s.Kind == value.KindEmpty
}

// Value returns the wrapped value, or nil for an empty cell.
func (c Cell) Value() value.Value {
	return c.v
}

// String renders the cell for delimited output.
func (c Cell) String() string {
	switch v := c.v.(type) {
	case nil:
		return ""
	case value.Scalar:
		return v.Text()
	}
	return value.Render(c.v)
}

// Table is a set of uniquely named columns over rows of equal width.
type Table struct {
	Columns []string
	Rows    [][]Cell
}

// New returns an empty table with the given columns.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// NumRows returns the row count.
func (t *Table) NumRows() int {
	return len(t.Rows)
}

// NumCols returns the column count.
func (t *Table) NumCols() int {
	return len(t.Columns)
}

// AddRow appends a row, padding it with empty cells to the table width.
func (t *Table) AddRow(cells ...Cell) error {
	if len(cells) > len(t.Columns) {
		return fmt.Errorf("row has %d cells, table has %d columns", len(cells), len(t.Columns))
	}
	row := make([]Cell, len(t.Columns))
	copy(row, cells)
	t.Rows = append(t.Rows, row)
	return nil
}

// ColumnIndex returns the position of the named column, or -1.
func (t *Table) ColumnIndex(name string) int {
	for i, c := range t.Columns {
		if c == name {
			return i
		}
	}
	return -1
}

// Column returns a copy of the named column's cells.
func (t *Table) Column(name string) ([]Cell, bool) {
	idx := t.ColumnIndex(name)
	if idx < 0 {
		return nil, false
	}
	out := make([]Cell, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = row[idx]
	}
	return out, true
}

// SetColumn replaces the named column, or appends it when absent. cells
// must hold one entry per row.
func (t *Table) SetColumn(name string, cells []Cell) error {
	if len(cells) != len(t.Rows) {
		return fmt.Errorf("column %q has %d cells, table has %d rows", name, len(cells), len(t.Rows))
	}
	idx := t.ColumnIndex(name)
	if idx < 0 {
		t.Columns = append(t.Columns, name)
		for r := range t.Rows {
			t.Rows[r] = append(t.Rows[r], cells[r])
		}
		return nil
	}
	for r := range t.Rows {
		t.Rows[r][idx] = cells[r]
	}
	return nil
}

// Validate checks the table invariants: unique column names and rows as
// wide as the header.
func (t *Table) Validate() error {
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		if seen[c] {
			return fmt.Errorf("duplicate column %q", c)
		}
		seen[c] = true
	}
	for i, row := range t.Rows {
		if len(row) != len(t.Columns) {
			return fmt.Errorf("row %d has %d cells, want %d", i, len(row), len(t.Columns))
		}
	}
	return nil
}

// Strings renders every row as text.
func (t *Table) Strings() [][]string {
	out := make([][]string, len(t.Rows))
	for r, row := range t.Rows {
		out[r] = make([]string, len(row))
		for c, cell := range row {
			out[r][c] = cell.String()
		}
	}
	return out
}
