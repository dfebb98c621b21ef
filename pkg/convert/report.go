package convert

import (
	"fmt"

	"github.com/twinfer/matcsv/pkg/tabular"
)

// Status is the result of converting one record.
type Status int

const (
	// Tabularized records were written as a table.
	Tabularized Status = iota
	// Fallback records were written as a text dump.
	Fallback
	// Skipped records carry a reserved name.
	Skipped
	// Failed records produced no output.
	Failed
)

func (s Status) String() string {
	switch s {
	case Tabularized:
		return "tabularized"
	case Fallback:
		return "fallback"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Outcome describes what happened to one record. Table is set for
// Tabularized and Text for Fallback. Err holds the reason for a Fallback or
// Failed outcome.
type Outcome struct {
	Name   string
	Status Status
	Table  *tabular.Table
	Text   string
	Err    error
}

// Report collects the outcomes of one run in file order.
type Report struct {
	RunID    string
	Source   string
	Outcomes []Outcome

	Tabularized int
	Fallback    int
	Skipped     int
	Failed      int
}

// Outcome returns the outcome recorded for name.
func (r *Report) Outcome(name string) (Outcome, bool) {
	for _, o := range r.Outcomes {
		if o.Name == name {
			return o, true
		}
	}
	return Outcome{}, false
}

// Written returns the names of records that produced output.
func (r *Report) Written() []string {
	var names []string
	for _, o := range r.Outcomes {
		if o.Status == Tabularized || o.Status == Fallback {
			names = append(names, o.Name)
		}
	}
	return names
}

func (r *Report) tally() {
	r.Tabularized, r.Fallback, r.Skipped, r.Failed = 0, 0, 0, 0
	for _, o := range r.Outcomes {
		switch o.Status {
		case Tabularized:
			r.Tabularized++
		case Fallback:
			r.Fallback++
		case Skipped:
			r.Skipped++
		case Failed:
			r.Failed++
		}
	}
}
