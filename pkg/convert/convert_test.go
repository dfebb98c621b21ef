package convert

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/matcsv/pkg/matfile"
	"github.com/twinfer/matcsv/pkg/sink"
	"github.com/twinfer/matcsv/pkg/tabular"
	"github.com/twinfer/matcsv/testutil"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func emgData() []float64 {
	data := make([]float64, 10*8)
	for i := range data {
		data[i] = float64(i) / 4
	}
	return data
}

// writeSample writes a MAT-file with a matrix, a struct and an irregular
// nested struct.
func writeSample(t *testing.T) string {
	t.Helper()
	mat := testutil.NewMatFile().
		Add("emg", testutil.Doubles(10, 8, emgData()...)).
		Add("subject", testutil.Struct([]string{"name", "age"}, testutil.Char("S2"), testutil.Number(29))).
		Add("info", testutil.Struct([]string{"inner"},
			testutil.Struct([]string{"k", "v"}, testutil.Number(1), testutil.Char("x"))))
	path := filepath.Join(t.TempDir(), "S2_E1_A1.mat")
	require.NoError(t, os.WriteFile(path, mat.Bytes(), 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(content)
}

func TestToDir(t *testing.T) {
	src := writeSample(t)
	out := filepath.Join(t.TempDir(), "data")

	report, err := ToDir(context.Background(), src, out, WithLogger(quietLogger()))
	require.NoError(t, err)
	assert.NotEmpty(t, report.RunID)
	assert.Equal(t, src, report.Source)
	assert.Equal(t, 2, report.Tabularized)
	assert.Equal(t, 1, report.Fallback)
	assert.Equal(t, 3, report.Skipped)
	assert.Zero(t, report.Failed)
	assert.Equal(t, []string{"emg", "subject", "info"}, report.Written())

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.ElementsMatch(t, []string{"emg.csv", "subject.csv", "info.csv"}, names)

	t.Run("matrix record", func(t *testing.T) {
		lines := strings.Split(strings.TrimSuffix(readFile(t, filepath.Join(out, "emg.csv")), "\n"), "\n")
		require.Len(t, lines, 11)
		assert.Equal(t, "0,1,2,3,4,5,6,7", lines[0])
		data := emgData()
		for r := 0; r < 10; r++ {
			want := make([]string, 8)
			for c := range want {
				want[c] = fmt.Sprint(data[r*8+c])
			}
			assert.Equal(t, strings.Join(want, ","), lines[r+1])
		}
	})

	t.Run("struct record", func(t *testing.T) {
		assert.Equal(t, "name,age\nS2,29\n", readFile(t, filepath.Join(out, "subject.csv")))
	})

	t.Run("irregular record", func(t *testing.T) {
		o, ok := report.Outcome("info")
		require.True(t, ok)
		assert.Equal(t, Fallback, o.Status)
		assert.NotEmpty(t, o.Text)
		assert.Nil(t, o.Table)
		var terr *tabular.Error
		assert.ErrorAs(t, o.Err, &terr)
		assert.Equal(t, o.Text, readFile(t, filepath.Join(out, "info.csv")))
		assert.Contains(t, o.Text, "inner:")
	})

	t.Run("metadata skipped", func(t *testing.T) {
		for _, name := range []string{matfile.HeaderRecord, matfile.VersionRecord, matfile.GlobalsRecord} {
			o, ok := report.Outcome(name)
			require.True(t, ok)
			assert.Equal(t, Skipped, o.Status)
		}
	})
}

func TestConvertIsIdempotent(t *testing.T) {
	src := writeSample(t)
	first, second := t.TempDir(), t.TempDir()

	_, err := ToDir(context.Background(), src, first, WithLogger(quietLogger()))
	require.NoError(t, err)
	_, err = ToDir(context.Background(), src, second, WithLogger(quietLogger()), WithWorkers(3))
	require.NoError(t, err)

	entries, err := os.ReadDir(first)
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	for _, e := range entries {
		a := readFile(t, filepath.Join(first, e.Name()))
		b := readFile(t, filepath.Join(second, e.Name()))
		assert.Equal(t, a, b, e.Name())
	}
}

func TestConvertMissingInput(t *testing.T) {
	out := filepath.Join(t.TempDir(), "data")
	_, err := ToDir(context.Background(), filepath.Join(t.TempDir(), "absent.mat"), out, WithLogger(quietLogger()))

	var missing *MissingInputError
	require.ErrorAs(t, err, &missing)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	entries, err := os.ReadDir(out)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestConvertBadHeader(t *testing.T) {
	src := filepath.Join(t.TempDir(), "bad.mat")
	require.NoError(t, os.WriteFile(src, []byte("not a mat file"), 0o644))

	_, err := New(WithLogger(quietLogger())).Convert(context.Background(), src, sink.NewMemory())
	var derr *matfile.DecodeError
	assert.ErrorAs(t, err, &derr)
}

func TestConvertReservedPrefixes(t *testing.T) {
	src := writeSample(t)
	mem := sink.NewMemory()

	report, err := New(WithLogger(quietLogger()), WithReservedPrefixes("sub")).Convert(context.Background(), src, mem)
	require.NoError(t, err)

	o, _ := report.Outcome("subject")
	assert.Equal(t, Skipped, o.Status)
	o, _ = report.Outcome(matfile.HeaderRecord)
	assert.Equal(t, Tabularized, o.Status)

	out, ok := mem.Get(matfile.VersionRecord)
	require.True(t, ok)
	assert.Equal(t, "0\n1.0\n", string(out.Body))
}

// flakySink fails table writes, and text writes for the listed names.
type flakySink struct {
	*sink.Memory
	failText map[string]bool
}

func (f *flakySink) WriteTable(ctx context.Context, name string, t *tabular.Table) error {
	return &sink.WriteError{Target: name, Op: "write table", Err: errors.New("disk full")}
}

func (f *flakySink) WriteText(ctx context.Context, name, text string) error {
	if f.failText[name] {
		return &sink.WriteError{Target: name, Op: "write text", Err: errors.New("disk full")}
	}
	return f.Memory.WriteText(ctx, name, text)
}

func TestConvertWriteFailures(t *testing.T) {
	src := writeSample(t)
	fs := &flakySink{Memory: sink.NewMemory(), failText: map[string]bool{"emg": true}}

	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))
	report, err := New(WithLogger(logger)).Convert(context.Background(), src, fs)
	require.NoError(t, err)

	emg, _ := report.Outcome("emg")
	assert.Equal(t, Failed, emg.Status)
	var werr *sink.WriteError
	assert.ErrorAs(t, emg.Err, &werr)

	subject, _ := report.Outcome("subject")
	assert.Equal(t, Fallback, subject.Status)
	out, ok := fs.Get("subject")
	require.True(t, ok)
	assert.True(t, out.Fallback)
	assert.Equal(t, subject.Text, string(out.Body))

	assert.Equal(t, 1, report.Failed)
	assert.Equal(t, 2, report.Fallback)
	assert.Contains(t, logs.String(), "Failed to save record")
	assert.Contains(t, logs.String(), "record=emg")
}

func TestConvertRecordsOrderWithWorkers(t *testing.T) {
	var records []matfile.Record
	for i := 0; i < 20; i++ {
		records = append(records, matfile.Record{Name: fmt.Sprintf("r%02d", i), Value: float64(i)})
	}
	mem := sink.NewMemory()
	report, err := New(WithLogger(quietLogger()), WithWorkers(4)).ConvertRecords(context.Background(), records, mem)
	require.NoError(t, err)

	require.Len(t, report.Outcomes, 20)
	for i, o := range report.Outcomes {
		assert.Equal(t, records[i].Name, o.Name)
		assert.Equal(t, Tabularized, o.Status)
	}
	assert.Equal(t, 20, report.Tabularized)
	assert.Len(t, mem.Outputs(), 20)
}

func TestConvertRecordsCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	records := []matfile.Record{{Name: "a", Value: 1.0}, {Name: "b", Value: 2.0}}
	report, err := New(WithLogger(quietLogger())).ConvertRecords(ctx, records, sink.NewMemory())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 2, report.Failed)
}

func TestConvertRecordsIsTotal(t *testing.T) {
	records := []matfile.Record{
		{Name: "nil", Value: nil},
		{Name: "opaque", Value: &matfile.Opaque{Class: matfile.ClassFunction}},
		{Name: "bad", Value: &matfile.Numeric{Kind: matfile.KindFloat, Dims: []int{4}, Float: []float64{1}}},
		{Name: "mixed", Value: []any{1.0, map[string]any{"k": 1.0}}},
		{Name: "empty", Value: &matfile.Struct{}},
	}
	mem := sink.NewMemory()
	report, err := New(WithLogger(quietLogger())).ConvertRecords(context.Background(), records, mem)
	require.NoError(t, err)

	for _, o := range report.Outcomes {
		switch o.Status {
		case Tabularized:
			assert.NotNil(t, o.Table, o.Name)
			assert.Empty(t, o.Text, o.Name)
		case Fallback:
			assert.Nil(t, o.Table, o.Name)
			assert.NotEmpty(t, o.Text, o.Name)
		default:
			t.Errorf("record %s: unexpected status %s", o.Name, o.Status)
		}
	}
	assert.Len(t, mem.Outputs(), len(records))
}
