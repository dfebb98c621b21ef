package tabular

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// WriteCSV writes t as a header line followed by one line per row. A zero
// delimiter means ','. An empty cell is written as an empty field.
func WriteCSV(w io.Writer, t *Table, delim rune) error {
	if err := t.Validate(); err != nil {
		return fmt.Errorf("invalid table: %w", err)
	}
	cw := csv.NewWriter(w)
	if delim != 0 {
		cw.Comma = delim
	}
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	for i, row := range t.Strings() {
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadCSV reads a table written by WriteCSV. Every field comes back as a
// text cell; empty fields are empty cells. Input with no header yields a
// table with no columns.
func ReadCSV(r io.Reader, delim rune) (*Table, error) {
	cr := csv.NewReader(r)
	if delim != 0 {
		cr.Comma = delim
	}
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return New(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %w", err)
	}

	t := New(header...)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row: %w", err)
		}
		if len(rec) != len(header) {
			return nil, fmt.Errorf("line %d has %d fields, header has %d", line, len(rec), len(header))
		}
		row := make([]Cell, len(rec))
		for i, s := range rec {
			row[i] = TextCell(s)
		}
		t.Rows = append(t.Rows, row)
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}
