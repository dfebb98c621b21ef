package main

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/redpanda-data/benthos/v4/public/service"

	"github.com/twinfer/matcsv/pkg/convert"
	"github.com/twinfer/matcsv/pkg/matfile"
	"github.com/twinfer/matcsv/pkg/sink"
)

// Metadata keys set on every output message.
const (
	metaRecord  = "mat_record"
	metaOutcome = "mat_outcome"
	metaRunID   = "mat_run_id"
)

// MatProcessor is a Benthos processor that converts a MAT-file message into
// one CSV (or fallback text) message per variable.
type MatProcessor struct {
	config       MatConfig
	logger       *service.Logger
	mFiles       *service.MetricCounter
	mTabularized *service.MetricCounter
	mFallback    *service.MetricCounter
	mSkipped     *service.MetricCounter
	mErrors      *service.MetricCounter
}

// MatConfig contains configuration parameters for the processor.
type MatConfig struct {
	ReservedPrefixes []string `json:"reserved_prefixes" yaml:"reserved_prefixes"`
	Delimiter        rune     `json:"delimiter" yaml:"delimiter"`
}

func init() {
	err := service.RegisterProcessor(
		"mat_csv",
		matProcessorConfig(),
		func(conf *service.ParsedConfig, mgr *service.Resources) (service.Processor, error) {
			return newMatProcessorFromConfig(conf, mgr)
		},
	)
	if err != nil {
		panic(err)
	}
}

func main() {
	service.RunCLI(context.Background())
}

// matProcessorConfig returns a config spec for a mat_csv processor.
func matProcessorConfig() *service.ConfigSpec {
	return service.NewConfigSpec().
		Summary("Converts MATLAB Level 5 MAT-files into one CSV message per variable.").
		Description("Each variable of the MAT-file in the message body is normalized and tabularized. Variables that cannot be tabularized are emitted as a YAML text dump instead. Output messages carry the variable name in `mat_record` and `tabularized` or `fallback` in `mat_outcome`.").
		Field(service.NewStringListField("reserved_prefixes").
			Description("Variables whose name starts with one of these prefixes are dropped.").
			Default([]any{"__"})).
		Field(service.NewStringField("delimiter").
			Description("Single-character field delimiter of the CSV output.").
			Default(",")).
		Version("0.1.0")
}

// newMatProcessorFromConfig creates a new MatProcessor from a parsed config.
func newMatProcessorFromConfig(conf *service.ParsedConfig, mgr *service.Resources) (*MatProcessor, error) {
	prefixes, err := conf.FieldStringList("reserved_prefixes")
	if err != nil {
		return nil, err
	}

	delim, err := conf.FieldString("delimiter")
	if err != nil {
		return nil, err
	}
	r, size := utf8.DecodeRuneInString(delim)
	if size == 0 || size != len(delim) || strings.ContainsRune("\"\r\n", r) {
		return nil, fmt.Errorf("delimiter %q must be a single character other than a quote or newline", delim)
	}

	metrics := mgr.Metrics()
	return &MatProcessor{
		config: MatConfig{
			ReservedPrefixes: prefixes,
			Delimiter:        r,
		},
		logger:       mgr.Logger(),
		mFiles:       metrics.NewCounter("mat_csv_files"),
		mTabularized: metrics.NewCounter("mat_csv_records_tabularized"),
		mFallback:    metrics.NewCounter("mat_csv_records_fallback"),
		mSkipped:     metrics.NewCounter("mat_csv_records_skipped"),
		mErrors:      metrics.NewCounter("mat_csv_errors"),
	}, nil
}

// Process converts a MAT-file message. A message that is not a valid
// MAT-file is returned with its error set.
func (p *MatProcessor) Process(ctx context.Context, msg *service.Message) (service.MessageBatch, error) {
	data, err := msg.AsBytes()
	if err != nil {
		p.logger.Errorf("Failed to get MAT-file data from message: %v", err)
		p.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("failed to get MAT-file data from message: %w", err))
		return service.MessageBatch{msg}, nil
	}

	f, err := matfile.Decode(data)
	if err != nil {
		p.logger.Errorf("Failed to decode MAT-file of size %d bytes: %v", len(data), err)
		p.mErrors.Incr(1)
		msg.SetError(fmt.Errorf("failed to decode MAT-file of size %d bytes: %w", len(data), err))
		return service.MessageBatch{msg}, nil
	}
	if f.Trailing != nil {
		p.logger.Warnf("MAT-file ends inside a data element: %v", f.Trailing)
	}

	mem := sink.NewMemory(sink.WithDelimiter(p.config.Delimiter))
	conv := convert.New(convert.WithReservedPrefixes(p.config.ReservedPrefixes...))
	report, err := conv.ConvertRecords(ctx, f.Records, mem)
	if err != nil {
		return nil, err
	}
	p.mFiles.Incr(1)

	var batch service.MessageBatch
	for _, o := range report.Outcomes {
		switch o.Status {
		case convert.Skipped:
			p.mSkipped.Incr(1)
			continue
		case convert.Failed:
			p.logger.Errorf("Failed to convert record %s: %v", o.Name, o.Err)
			p.mErrors.Incr(1)
			continue
		case convert.Fallback:
			p.logger.Debugf("Record %s emitted as text: %v", o.Name, o.Err)
			p.mFallback.Incr(1)
		case convert.Tabularized:
			p.mTabularized.Incr(1)
		}

		out, ok := mem.Get(o.Name)
		if !ok {
			continue
		}
		newMsg := service.NewMessage(out.Body)
		msg.MetaWalk(func(key, value string) error {
			newMsg.MetaSet(key, value)
			return nil
		})
		newMsg.MetaSet(metaRecord, o.Name)
		newMsg.MetaSet(metaOutcome, o.Status.String())
		newMsg.MetaSet(metaRunID, report.RunID)
		batch = append(batch, newMsg)
	}

	p.logger.Debugf("Converted MAT-file of %d bytes into %d messages", len(data), len(batch))
	return batch, nil
}

// Close the processor resources
func (p *MatProcessor) Close(ctx context.Context) error {
	return nil
}
