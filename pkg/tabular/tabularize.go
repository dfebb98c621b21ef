package tabular

import (
	"fmt"
	"strconv"

	"github.com/twinfer/matcsv/pkg/value"
)

// Error reports a value whose shape cannot be reconciled into a table.
type Error struct {
	Key    string // mapping key or column involved, if any
	Reason string
	Err    error
}

func (e *Error) Error() string {
	msg := "tabular: " + e.Reason
	if e.Key != "" {
		msg = fmt.Sprintf("tabular: key %q: %s", e.Key, e.Reason)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Tabularize converts v into a table. Any failure is returned as *Error.
//
// A Mapping yields one column per key. When a key's value cannot be made
// into a column, the Mapping collapses to a single row of rendered values
// instead; if a value nests another record even that is impossible and an
// error is returned. A Sequence of Mappings yields one row per element over
// the union of their keys; any other Sequence yields a single column. A
// Matrix maps rows and columns directly under positional column names, and
// a Scalar yields a 1x1 table.
func Tabularize(v value.Value) (*Table, error) {
	switch v := v.(type) {
	case value.Mapping:
		return fromMapping(v)
	case value.Sequence:
		return fromSequence(v)
	case value.Matrix:
		return fromMatrix(v)
	case value.Scalar:
		t := New("0")
		t.Rows = [][]Cell{{ValueCell(v)}}
		return t, nil
	}
	return nil, &Error{Reason: fmt.Sprintf("unsupported value %T", v)}
}

type columnShape int

const (
	// broadcast columns repeat their single cell to the table length
	broadcast columnShape = iota
	// series columns are padded with empty cells to the table length
	series
	// exact columns must already match the table length
	exact
)

type column struct {
	cells []Cell
	shape columnShape
}

func fromMapping(m value.Mapping) (*Table, error) {
	if len(m.Fields) == 0 {
		return nil, &Error{Reason: "mapping has no keys"}
	}
	cols, err := mappingColumns(m)
	if err != nil {
		return stringRow(m, err)
	}

	n := 1
	sized := false
	for _, c := range cols {
		if c.shape == broadcast {
			continue
		}
		if !sized || len(c.cells) > n {
			n = len(c.cells)
		}
		sized = true
	}
	for i, c := range cols {
		if c.shape == exact && len(c.cells) != n {
			cause := &Error{Key: m.Fields[i].Key, Reason: fmt.Sprintf("%d rows do not fit a %d-row table", len(c.cells), n)}
			return stringRow(m, cause)
		}
	}

	t := New(m.Keys()...)
	t.Rows = make([][]Cell, n)
	for r := range t.Rows {
		row := make([]Cell, len(cols))
		for i, c := range cols {
			switch {
			case c.shape == broadcast:
				row[i] = c.cells[0]
			case r < len(c.cells):
				row[i] = c.cells[r]
			}
		}
		t.Rows[r] = row
	}
	return t, nil
}

func mappingColumns(m value.Mapping) ([]column, error) {
	cols := make([]column, len(m.Fields))
	for i, f := range m.Fields {
		c, err := toColumn(f.Value)
		if err != nil {
			return nil, &Error{Key: f.Key, Reason: err.Error()}
		}
		cols[i] = c
	}
	return cols, nil
}

// toColumn applies the column normalization rules to one mapping value.
func toColumn(v value.Value) (column, error) {
	switch v := v.(type) {
	case value.Scalar:
		return column{cells: []Cell{ValueCell(v)}, shape: broadcast}, nil
	case value.Matrix:
		if err := v.Validate(); err != nil {
			return column{}, err
		}
		if v.Rank() == 1 {
			cells := make([]Cell, v.Len())
			for i := range cells {
				cells[i] = ValueCell(v.Elem1(i))
			}
			return column{cells: cells, shape: series}, nil
		}
		// 2-D values stay one column of row vectors
		cells := make([]Cell, v.Rows())
		for r := range cells {
			cells[r] = ValueCell(v.Row(r))
		}
		return column{cells: cells, shape: exact}, nil
	case value.Sequence:
		cells := make([]Cell, len(v.Elems))
		for i, e := range v.Elems {
			// nested sequences stay one cell per element
			if !value.Flat(e) {
				return column{}, fmt.Errorf("element %d is a nested %s", i, kindName(e))
			}
			cells[i] = ValueCell(e)
		}
		return column{cells: cells, shape: series}, nil
	case value.Mapping:
		return column{}, fmt.Errorf("nested record cannot be a column")
	}
	return column{}, fmt.Errorf("unsupported value %T", v)
}

// stringRow is the whole-mapping fallback: one row holding each value's
// rendered text.
func stringRow(m value.Mapping, cause error) (*Table, error) {
	row := make([]Cell, len(m.Fields))
	for i, f := range m.Fields {
		if !value.Flat(f.Value) {
			return nil, &Error{Key: f.Key, Reason: "irregular nested record", Err: cause}
		}
		if s, ok := f.Value.(value.Scalar); ok {
			row[i] = ValueCell(s)
			continue
		}
		row[i] = TextCell(value.Render(f.Value))
	}
	t := New(m.Keys()...)
	t.Rows = [][]Cell{row}
	return t, nil
}

func fromSequence(s value.Sequence) (*Table, error) {
	if len(s.Elems) == 0 {
		return New(), nil
	}

	records := true
	for _, e := range s.Elems {
		if _, ok := e.(value.Mapping); !ok {
			records = false
			break
		}
	}

	if !records {
		t := New("0")
		t.Rows = make([][]Cell, len(s.Elems))
		for i, e := range s.Elems {
			if !value.Flat(e) {
				return nil, &Error{Key: "0", Reason: fmt.Sprintf("element %d nests a record", i)}
			}
			t.Rows[i] = []Cell{ValueCell(e)}
		}
		return t, nil
	}

	var columns []string
	index := make(map[string]int)
	for _, e := range s.Elems {
		for _, k := range e.(value.Mapping).Keys() {
			if _, ok := index[k]; !ok {
				index[k] = len(columns)
				columns = append(columns, k)
			}
		}
	}

	t := New(columns...)
	t.Rows = make([][]Cell, len(s.Elems))
	for r, e := range s.Elems {
		row := make([]Cell, len(columns))
		for _, f := range e.(value.Mapping).Fields {
			if !value.Flat(f.Value) {
				return nil, &Error{Key: f.Key, Reason: fmt.Sprintf("row %d nests a record", r)}
			}
			row[index[f.Key]] = ValueCell(f.Value)
		}
		t.Rows[r] = row
	}
	return t, nil
}

func fromMatrix(m value.Matrix) (*Table, error) {
	if err := m.Validate(); err != nil {
		return nil, &Error{Reason: "malformed matrix", Err: err}
	}
	if m.Rank() == 1 {
		t := New("0")
		t.Rows = make([][]Cell, m.Len())
		for i := range t.Rows {
			t.Rows[i] = []Cell{ValueCell(m.Elem1(i))}
		}
		return t, nil
	}

	columns := make([]string, m.Cols())
	for c := range columns {
		columns[c] = strconv.Itoa(c)
	}
	t := New(columns...)
	t.Rows = make([][]Cell, m.Rows())
	for r := range t.Rows {
		row := make([]Cell, m.Cols())
		for c := range row {
			row[c] = ValueCell(m.At(r, c))
		}
		t.Rows[r] = row
	}
	return t, nil
}

func kindName(v value.Value) string {
	switch v.(type) {
	case value.Mapping:
		return "mapping"
	case value.Sequence:
		return "sequence"
	case value.Matrix:
		return "matrix"
	}
	return "scalar"
}
