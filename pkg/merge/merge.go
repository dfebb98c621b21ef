// Package merge joins several CSV tables side by side, prefixing each
// column with the name of the file it came from.
package merge

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/twinfer/matcsv/pkg/sink"
	"github.com/twinfer/matcsv/pkg/tabular"
)

// DefaultFiles are the per-signal tables of an exercise recording.
var DefaultFiles = []string{
	"emg.csv",
	"glove.csv",
	"repetition.csv",
	"rerepetition.csv",
	"stimulus.csv",
	"restimulus.csv",
}

// ErrNothingToMerge is returned when none of the inputs could be loaded.
var ErrNothingToMerge = errors.New("merge: no input tables loaded")

// Input is one table and the prefix for its columns.
type Input struct {
	Prefix string
	Table  *tabular.Table
}

// Tables joins inputs by row position. Columns become "<prefix>_<column>"
// in input order; the result has as many rows as the longest input, and
// shorter inputs contribute empty cells.
func Tables(inputs ...Input) (*tabular.Table, error) {
	var columns []string
	seen := make(map[string]string)
	rows := 0
	for _, in := range inputs {
		for _, c := range in.Table.Columns {
			name := in.Prefix + "_" + c
			if prev, ok := seen[name]; ok {
				return nil, fmt.Errorf("column %q from %s collides with %s", name, in.Prefix, prev)
			}
			seen[name] = in.Prefix
			columns = append(columns, name)
		}
		rows = max(rows, in.Table.NumRows())
	}

	out := tabular.New(columns...)
	out.Rows = make([][]tabular.Cell, rows)
	for r := range out.Rows {
		row := make([]tabular.Cell, 0, len(columns))
		for _, in := range inputs {
			if r < in.Table.NumRows() {
				row = append(row, in.Table.Rows[r]...)
				continue
			}
			row = append(row, make([]tabular.Cell, in.Table.NumCols())...)
		}
		out.Rows[r] = row
	}
	if err := out.Validate(); err != nil {
		return nil, err
	}
	return out, nil
}

// Result summarizes a Files run.
type Result struct {
	Output  string
	Loaded  []string
	Skipped []string
	Rows    int
	Columns int
}

type options struct {
	logger    *slog.Logger
	delimiter rune
}

// Option configures Files.
type Option func(*options)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithDelimiter sets the field delimiter of inputs and output.
func WithDelimiter(r rune) Option {
	return func(o *options) {
		o.delimiter = r
	}
}

func defaultOptions() options {
	return options{
		logger:    slog.Default(),
		delimiter: ',',
	}
}

// Files merges the named CSV files from dir into out. Files that are
// missing, unreadable or have no columns are skipped with a warning. The
// prefix of each file is its name without extension. An empty names list
// means DefaultFiles.
func Files(ctx context.Context, dir string, names []string, out string, opts ...Option) (*Result, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(names) == 0 {
		names = DefaultFiles
	}

	res := &Result{Output: out}
	var inputs []Input
	for _, name := range names {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		path := filepath.Join(dir, name)
		t, err := readTable(path, o.delimiter)
		if err != nil {
			o.logger.WarnContext(ctx, "Skipping input", "path", path, "error", err)
			res.Skipped = append(res.Skipped, name)
			continue
		}
		prefix := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		inputs = append(inputs, Input{Prefix: prefix, Table: t})
		res.Loaded = append(res.Loaded, name)
		o.logger.InfoContext(ctx, "Loaded input", "path", path, "rows", t.NumRows(), "columns", t.NumCols())
	}
	if len(inputs) == 0 {
		return nil, ErrNothingToMerge
	}

	merged, err := Tables(inputs...)
	if err != nil {
		return nil, fmt.Errorf("merging tables: %w", err)
	}

	w, err := sink.NewCSVDir(filepath.Dir(out),
		sink.WithExtension(""), sink.WithDelimiter(o.delimiter), sink.WithLogger(o.logger))
	if err != nil {
		return nil, err
	}
	defer w.Close()
	if err := w.WriteTable(ctx, filepath.Base(out), merged); err != nil {
		return nil, err
	}

	res.Rows, res.Columns = merged.NumRows(), merged.NumCols()
	o.logger.InfoContext(ctx, "Merged tables written", "path", out, "rows", res.Rows, "columns", res.Columns)
	return res, nil
}

func readTable(path string, delim rune) (*tabular.Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	t, err := tabular.ReadCSV(f, delim)
	if err != nil {
		return nil, err
	}
	if t.NumCols() == 0 {
		return nil, fmt.Errorf("no columns")
	}
	return t, nil
}
