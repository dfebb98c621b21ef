package merge

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/matcsv/pkg/tabular"
)

func quiet() Option {
	return WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func table(t *testing.T, columns []string, rows ...[]string) *tabular.Table {
	t.Helper()
	tbl := tabular.New(columns...)
	for _, r := range rows {
		cells := make([]tabular.Cell, len(r))
		for i, s := range r {
			cells[i] = tabular.TextCell(s)
		}
		require.NoError(t, tbl.AddRow(cells...))
	}
	return tbl
}

func TestTables(t *testing.T) {
	a := table(t, []string{"0", "1"}, []string{"1", "2"}, []string{"3", "4"}, []string{"5", "6"})
	b := table(t, []string{"x"}, []string{"y"})

	merged, err := Tables(Input{Prefix: "a", Table: a}, Input{Prefix: "b", Table: b})
	require.NoError(t, err)
	assert.Equal(t, []string{"a_0", "a_1", "b_x"}, merged.Columns)
	assert.Equal(t, [][]string{{"1", "2", "y"}, {"3", "4", ""}, {"5", "6", ""}}, merged.Strings())
	assert.Equal(t, a.NumCols()+b.NumCols(), merged.NumCols())
	assert.Equal(t, max(a.NumRows(), b.NumRows()), merged.NumRows())

	_, err = Tables(Input{Prefix: "a", Table: a}, Input{Prefix: "a", Table: a})
	assert.Error(t, err)
}

func writeCSV(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestFilesEMGAndSubject(t *testing.T) {
	dir := t.TempDir()
	var emg strings.Builder
	emg.WriteString("0,1,2,3,4,5,6,7\n")
	for r := 0; r < 10; r++ {
		emg.WriteString("1,2,3,4,5,6,7,8\n")
	}
	writeCSV(t, dir, "emg.csv", emg.String())
	writeCSV(t, dir, "subject.csv", "name,age\nS2,29\n")

	out := filepath.Join(dir, "merged", "data.csv")
	res, err := Files(context.Background(), dir, []string{"emg.csv", "subject.csv"}, out, quiet())
	require.NoError(t, err)
	assert.Equal(t, 10, res.Rows)
	assert.Equal(t, 10, res.Columns)

	f, err := os.Open(out)
	require.NoError(t, err)
	defer f.Close()
	merged, err := tabular.ReadCSV(f, 0)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"emg_0", "emg_1", "emg_2", "emg_3", "emg_4", "emg_5", "emg_6", "emg_7",
		"subject_name", "subject_age",
	}, merged.Columns)
	require.Equal(t, 10, merged.NumRows())
	rows := merged.Strings()
	assert.Equal(t, []string{"S2", "29"}, rows[0][8:])
	for r := 1; r < 10; r++ {
		assert.Equal(t, []string{"", ""}, rows[r][8:], "row %d", r)
	}
}

func TestFilesSkipsMissingAndBroken(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "emg.csv", "0,1\n1,2\n")
	writeCSV(t, dir, "glove.csv", "")
	writeCSV(t, dir, "stimulus.csv", "0\n1\n2\n")
	writeCSV(t, dir, "restimulus.csv", "a,b\n1\n")

	out := filepath.Join(dir, "data.csv")
	res, err := Files(context.Background(), dir, nil, out, quiet())
	require.NoError(t, err)
	assert.Equal(t, []string{"emg.csv", "stimulus.csv"}, res.Loaded)
	assert.Equal(t, []string{"glove.csv", "repetition.csv", "rerepetition.csv", "restimulus.csv"}, res.Skipped)

	content, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, "emg_0,emg_1,stimulus_0\n1,2,1\n,,2\n", string(content))
}

func TestFilesNothingToMerge(t *testing.T) {
	dir := t.TempDir()
	_, err := Files(context.Background(), dir, nil, filepath.Join(dir, "data.csv"), quiet())
	assert.True(t, errors.Is(err, ErrNothingToMerge))

	_, err = os.Stat(filepath.Join(dir, "data.csv"))
	assert.True(t, os.IsNotExist(err))
}
