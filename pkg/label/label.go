// Package label derives a composite identifier column from existing columns
// of a table.
package label

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/twinfer/matcsv/internal/cel"
	"github.com/twinfer/matcsv/pkg/sink"
	"github.com/twinfer/matcsv/pkg/tabular"
)

// Defaults for the exercise-series identifier.
var (
	DefaultColumns = []string{"stimulus_0", "restimulus_0", "repetition_0", "rerepetition_0"}
	DefaultTarget  = "series_id"
)

// Missing is the text used for an empty source cell in a joined label.
const Missing = "nan"

// MissingColumnError is returned when a source column is absent.
type MissingColumnError struct {
	Column string
}

func (e *MissingColumnError) Error() string {
	return fmt.Sprintf("label: column %q not found", e.Column)
}

type options struct {
	columns    []string
	target     string
	separator  string
	expression string
	delimiter  rune
	logger     *slog.Logger
}

// Option configures labeling.
type Option func(*options)

// WithColumns sets the source columns joined into the label.
func WithColumns(columns ...string) Option {
	return func(o *options) {
		o.columns = columns
	}
}

// WithTarget sets the name of the derived column.
func WithTarget(name string) Option {
	return func(o *options) {
		o.target = name
	}
}

// WithSeparator sets the text placed between joined values.
func WithSeparator(sep string) Option {
	return func(o *options) {
		o.separator = sep
	}
}

// WithExpression derives the label from a CEL expression instead of a
// join. Every column is bound as a string, as a variable when its name is
// an identifier and always as row["name"].
func WithExpression(expr string) Option {
	return func(o *options) {
		o.expression = expr
	}
}

// WithDelimiter sets the field delimiter used by Apply.
func WithDelimiter(r rune) Option {
	return func(o *options) {
		o.delimiter = r
	}
}

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() options {
	return options{
		columns:   DefaultColumns,
		target:    DefaultTarget,
		separator: "_",
		delimiter: ',',
		logger:    slog.Default(),
	}
}

// Table sets the derived column on t, replacing a column of the same name.
func Table(t *tabular.Table, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return apply(t, o)
}

func apply(t *tabular.Table, o options) error {
	if o.expression != "" {
		return applyExpression(t, o)
	}

	idx := make([]int, len(o.columns))
	for i, c := range o.columns {
		idx[i] = t.ColumnIndex(c)
		if idx[i] < 0 {
			return &MissingColumnError{Column: c}
		}
	}

	cells := make([]tabular.Cell, t.NumRows())
	parts := make([]string, len(idx))
	for r, row := range t.Rows {
		for i, c := range idx {
			if row[c].Empty() {
				parts[i] = Missing
				continue
			}
			parts[i] = row[c].String()
		}
		cells[r] = tabular.TextCell(strings.Join(parts, o.separator))
	}
	return t.SetColumn(o.target, cells)
}

func applyExpression(t *tabular.Table, o options) error {
	pool, err := cel.NewExpressionPool()
	if err != nil {
		return err
	}
	program, err := pool.GetExpression(o.expression, t.Columns)
	if err != nil {
		return fmt.Errorf("label expression: %w", err)
	}

	cells := make([]tabular.Cell, t.NumRows())
	values := make([]string, t.NumCols())
	for r, row := range t.Rows {
		for c, cell := range row {
			values[c] = cell.String()
		}
		out, err := pool.EvaluateExpression(program, cel.RowParams(t.Columns, values))
		if err != nil {
			return fmt.Errorf("label expression, row %d: %w", r, err)
		}
		cells[r] = tabular.TextCell(text(out))
	}
	return t.SetColumn(o.target, cells)
}

func text(v any) string {
	switch v := v.(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	}
	return fmt.Sprint(v)
}

// Apply reads the CSV file at path, sets the derived column and writes the
// file back in place.
func Apply(ctx context.Context, path string, opts ...Option) error {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", path, err)
	}
	t, err := tabular.ReadCSV(f, o.delimiter)
	f.Close()
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	if err := apply(t, o); err != nil {
		return err
	}

	w, err := sink.NewCSVDir(filepath.Dir(path),
		sink.WithExtension(""), sink.WithDelimiter(o.delimiter), sink.WithLogger(o.logger))
	if err != nil {
		return err
	}
	defer w.Close()
	if err := w.WriteTable(ctx, filepath.Base(path), t); err != nil {
		return err
	}
	o.logger.InfoContext(ctx, "Label column written", "path", path, "column", o.target, "rows", t.NumRows())
	return nil
}
