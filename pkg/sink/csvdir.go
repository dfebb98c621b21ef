package sink

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/twinfer/matcsv/pkg/tabular"
)

// CSVDir writes each record to <dir>/<name>.<ext>.
type CSVDir struct {
	dir     string
	options options
}

type options struct {
	extension string
	delimiter rune
	logger    *slog.Logger
}

// Option configures a sink.
type Option func(*options)

// WithExtension sets the output file extension, without the dot.
func WithExtension(ext string) Option {
	return func(o *options) {
		o.extension = ext
	}
}

// WithDelimiter sets the field delimiter.
func WithDelimiter(r rune) Option {
	return func(o *options) {
		o.delimiter = r
	}
}

// WithLogger sets a custom logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func defaultOptions() options {
	return options{
		extension: "csv",
		delimiter: ',',
		logger:    slog.Default(),
	}
}

// NewCSVDir creates dir if needed and returns a sink writing into it.
func NewCSVDir(dir string, opts ...Option) (*CSVDir, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &WriteError{Target: dir, Op: "create directory", Err: err}
	}
	return &CSVDir{dir: dir, options: o}, nil
}

// Dir returns the output directory.
func (d *CSVDir) Dir() string {
	return d.dir
}

// Target returns the file path used for name. With an empty extension the
// name is used as is.
func (d *CSVDir) Target(name string) string {
	if d.options.extension == "" {
		return filepath.Join(d.dir, name)
	}
	return filepath.Join(d.dir, name+"."+d.options.extension)
}

// WriteTable writes a header line and one line per row, without an index
// column.
func (d *CSVDir) WriteTable(ctx context.Context, name string, t *tabular.Table) error {
	return d.write(ctx, name, "write table", func(w *bufio.Writer) error {
		return tabular.WriteCSV(w, t, d.options.delimiter)
	})
}

// WriteText writes text verbatim.
func (d *CSVDir) WriteText(ctx context.Context, name string, text string) error {
	return d.write(ctx, name, "write text", func(w *bufio.Writer) error {
		_, err := w.WriteString(text)
		return err
	})
}

// write fills a temp file in the output directory and renames it over the
// target, so a failed write never leaves a partial file behind.
func (d *CSVDir) write(ctx context.Context, name, op string, fill func(*bufio.Writer) error) (err error) {
	target := d.Target(name)
	if err := ctx.Err(); err != nil {
		return &WriteError{Target: target, Op: op, Err: err}
	}
	if err := checkName(name); err != nil {
		return &WriteError{Target: target, Op: op, Err: err}
	}

	tmp, err := os.CreateTemp(d.dir, "."+name+".*.tmp")
	if err != nil {
		return &WriteError{Target: target, Op: op, Err: err}
	}
	defer func() {
		if err != nil {
			os.Remove(tmp.Name())
		}
	}()

	w := bufio.NewWriter(tmp)
	if err := fill(w); err != nil {
		tmp.Close()
		return &WriteError{Target: target, Op: op, Err: err}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		return &WriteError{Target: target, Op: op, Err: err}
	}
	// CreateTemp uses 0600
	if err := tmp.Chmod(0o644); err != nil {
		tmp.Close()
		return &WriteError{Target: target, Op: op, Err: err}
	}
	if err := tmp.Close(); err != nil {
		return &WriteError{Target: target, Op: op, Err: fmt.Errorf("failed to close: %w", err)}
	}
	if err := os.Rename(tmp.Name(), target); err != nil {
		return &WriteError{Target: target, Op: op, Err: err}
	}

	d.options.logger.DebugContext(ctx, "Wrote output", "target", target, "op", op)
	return nil
}

// Close is a no-op; every file is closed as soon as it is written.
func (d *CSVDir) Close() error {
	return nil
}
