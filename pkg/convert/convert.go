package convert

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/twinfer/matcsv/pkg/matfile"
	"github.com/twinfer/matcsv/pkg/sink"
	"github.com/twinfer/matcsv/pkg/tabular"
	"github.com/twinfer/matcsv/pkg/value"
)

// MissingInputError is returned when the source file does not exist.
type MissingInputError struct {
	Path string
	Err  error
}

func (e *MissingInputError) Error() string {
	return fmt.Sprintf("convert: input %s not found", e.Path)
}

func (e *MissingInputError) Unwrap() error {
	return e.Err
}

// Converter runs records through normalization, tabularization and a sink.
type Converter struct {
	options options
}

type options struct {
	logger           *slog.Logger
	reservedPrefixes []string
	workers          int
	sinkOptions      []sink.Option
}

// Option configures a Converter.
type Option func(*options)

// WithLogger sets a custom logger
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithReservedPrefixes replaces the name prefixes of records that are never
// converted. With no prefixes every record is converted.
func WithReservedPrefixes(prefixes ...string) Option {
	return func(o *options) {
		o.reservedPrefixes = prefixes
	}
}

// WithWorkers sets how many records are converted at once.
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithSinkOptions passes options to the directory sink created by ToDir.
func WithSinkOptions(opts ...sink.Option) Option {
	return func(o *options) {
		o.sinkOptions = append(o.sinkOptions, opts...)
	}
}

// DefaultReservedPrefixes marks the metadata records synthesized from the
// file header.
var DefaultReservedPrefixes = []string{"__"}

func defaultOptions() options {
	return options{
		logger:           slog.Default(),
		reservedPrefixes: DefaultReservedPrefixes,
		workers:          1,
	}
}

// New creates a converter with the given options.
func New(opts ...Option) *Converter {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if o.workers < 1 {
		o.workers = 1
	}
	return &Converter{options: o}
}

// ToDir converts src into one file per record under outDir.
func ToDir(ctx context.Context, src, outDir string, opts ...Option) (*Report, error) {
	c := New(opts...)
	sinkOpts := append([]sink.Option{sink.WithLogger(c.options.logger)}, c.options.sinkOptions...)
	dir, err := sink.NewCSVDir(outDir, sinkOpts...)
	if err != nil {
		return nil, err
	}
	defer dir.Close()
	return c.Convert(ctx, src, dir)
}

// Convert decodes the MAT-file at src and converts its records into s.
// Errors concerning the file as a whole are returned and nothing is
// written; per-record problems are reported in the Report.
func (c *Converter) Convert(ctx context.Context, src string, s sink.Sink) (*Report, error) {
	if _, err := os.Stat(src); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, &MissingInputError{Path: src, Err: err}
		}
		return nil, fmt.Errorf("checking input: %w", err)
	}

	f, err := matfile.Open(src)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", src, err)
	}
	if f.Trailing != nil {
		c.options.logger.WarnContext(ctx, "MAT-file ends inside a data element",
			"source", src, "records", len(f.Records), "error", f.Trailing)
	}

	report, err := c.ConvertRecords(ctx, f.Records, s)
	if report != nil {
		report.Source = src
	}
	return report, err
}

// ConvertRecords converts already decoded records. The returned error is
// non-nil only when ctx ends before every record was handled; the report
// then marks the remaining records Failed.
func (c *Converter) ConvertRecords(ctx context.Context, records []matfile.Record, s sink.Sink) (*Report, error) {
	report := &Report{
		RunID:    uuid.New().String(),
		Outcomes: make([]Outcome, len(records)),
	}
	logger := c.options.logger.With("run_id", report.RunID)
	logger.DebugContext(ctx, "Converting records", "records", len(records), "workers", c.options.workers)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.options.workers)
	for i, rec := range records {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				report.Outcomes[i] = Outcome{Name: rec.Name, Status: Failed, Err: err}
				return err
			}
			report.Outcomes[i] = c.convertRecord(gctx, logger, rec, s)
			return nil
		})
	}
	err := g.Wait()

	report.tally()
	logger.InfoContext(ctx, "Conversion finished",
		"tabularized", report.Tabularized,
		"fallback", report.Fallback,
		"skipped", report.Skipped,
		"failed", report.Failed)
	return report, err
}

func (c *Converter) reserved(name string) bool {
	for _, p := range c.options.reservedPrefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

func (c *Converter) convertRecord(ctx context.Context, logger *slog.Logger, rec matfile.Record, s sink.Sink) Outcome {
	logger = logger.With("record", rec.Name)
	if c.reserved(rec.Name) {
		logger.DebugContext(ctx, "Skipped reserved record")
		return Outcome{Name: rec.Name, Status: Skipped}
	}

	v := value.Normalize(rec.Value)
	t, cause := safeTabularize(v)
	if cause == nil {
		cause = s.WriteTable(ctx, rec.Name, t)
		if cause == nil {
			logger.InfoContext(ctx, "Saved record", "rows", t.NumRows(), "columns", t.NumCols())
			return Outcome{Name: rec.Name, Status: Tabularized, Table: t}
		}
	}

	text := value.Dump(v)
	if err := s.WriteText(ctx, rec.Name, text); err != nil {
		logger.ErrorContext(ctx, "Failed to save record", "error", err, "cause", cause)
		return Outcome{Name: rec.Name, Status: Failed, Err: errors.Join(cause, err)}
	}
	logger.InfoContext(ctx, "Saved record as text", "reason", cause)
	return Outcome{Name: rec.Name, Status: Fallback, Text: text, Err: cause}
}

// safeTabularize turns a panic inside the tabularizer into an error so the
// record still takes the fallback path.
func safeTabularize(v value.Value) (t *tabular.Table, err error) {
	defer func() {
		if r := recover(); r != nil {
			t, err = nil, &tabular.Error{Reason: fmt.Sprintf("panic: %v", r)}
		}
	}()
	return tabular.Tabularize(v)
}
