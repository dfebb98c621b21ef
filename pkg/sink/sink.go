// Package sink persists converted records: tables as delimited files or
// database tables, and fallback text verbatim under the same target.
package sink

import (
	"context"
	"fmt"
	"strings"

	"github.com/twinfer/matcsv/pkg/tabular"
)

// Sink receives one output per record name.
type Sink interface {
	// WriteTable stores t as the output for name.
	WriteTable(ctx context.Context, name string, t *tabular.Table) error
	// WriteText stores text verbatim as the output for name.
	WriteText(ctx context.Context, name string, text string) error
	Close() error
}

// WriteError is returned when an output cannot be produced.
type WriteError struct {
	Target string
	Op     string
	Err    error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("sink: %s %s: %v", e.Op, e.Target, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

func checkName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid record name %q", name)
	case strings.ContainsAny(name, `/\`+"\x00"):
		return fmt.Errorf("record name %q contains a path separator", name)
	}
	return nil
}
