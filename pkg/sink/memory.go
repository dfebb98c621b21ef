package sink

import (
	"bytes"
	"context"
	"sync"

	"github.com/twinfer/matcsv/pkg/tabular"
)

// Output is one rendered record held by Memory.
type Output struct {
	Name     string
	Body     []byte
	Fallback bool
}

// Memory renders outputs into byte slices in write order.
type Memory struct {
	mu      sync.Mutex
	outputs []Output
	index   map[string]int
	options options
}

// NewMemory returns an empty in-memory sink. Only WithDelimiter applies.
func NewMemory(opts ...Option) *Memory {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return &Memory{index: make(map[string]int), options: o}
}

// WriteTable renders t as delimited text.
func (m *Memory) WriteTable(ctx context.Context, name string, t *tabular.Table) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Target: name, Op: "write table", Err: err}
	}
	var buf bytes.Buffer
	if err := tabular.WriteCSV(&buf, t, m.options.delimiter); err != nil {
		return &WriteError{Target: name, Op: "write table", Err: err}
	}
	m.put(Output{Name: name, Body: buf.Bytes()})
	return nil
}

// WriteText stores text verbatim.
func (m *Memory) WriteText(ctx context.Context, name string, text string) error {
	if err := ctx.Err(); err != nil {
		return &WriteError{Target: name, Op: "write text", Err: err}
	}
	m.put(Output{Name: name, Body: []byte(text), Fallback: true})
	return nil
}

// put replaces an earlier output for the same name in place.
func (m *Memory) put(out Output) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[out.Name]; ok {
		m.outputs[i] = out
		return
	}
	m.index[out.Name] = len(m.outputs)
	m.outputs = append(m.outputs, out)
}

// Outputs returns a copy of the stored outputs.
func (m *Memory) Outputs() []Output {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Output(nil), m.outputs...)
}

// Get returns the output stored for name.
func (m *Memory) Get(name string) (Output, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[name]
	if !ok {
		return Output{}, false
	}
	return m.outputs[i], true
}

func (m *Memory) Close() error {
	return nil
}
