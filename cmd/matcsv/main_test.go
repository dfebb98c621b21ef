package main

import (
	"bytes"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/twinfer/matcsv/pkg/sink"
	"github.com/twinfer/matcsv/testutil"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func writeSession(t *testing.T, dir string) string {
	t.Helper()
	data := testutil.NewMatFile().
		Add("emg", testutil.Doubles(2, 2, 1, 2, 3, 4)).
		Add("stimulus", testutil.Doubles(2, 1, 1, 2)).
		Add("restimulus", testutil.Doubles(2, 1, 1, 2)).
		Add("repetition", testutil.Doubles(2, 1, 3, 4)).
		Add("rerepetition", testutil.Doubles(2, 1, 3, 4)).
		Add("info", testutil.Struct([]string{"inner"}, testutil.Struct([]string{"k"}, testutil.Number(1)))).
		Bytes()
	path := filepath.Join(dir, "S2_E1_A1.mat")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

func TestConvertMergeLabel(t *testing.T) {
	dir := t.TempDir()
	src := writeSession(t, dir)
	data := filepath.Join(dir, "data")

	out, err := execute(t, "convert", src, "-o", data, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Saved emg\n")
	assert.Contains(t, out, "Saved info as text")
	assert.Equal(t, "0,1\n1,2\n3,4\n", readFile(t, filepath.Join(data, "emg.csv")))
	assert.Contains(t, readFile(t, filepath.Join(data, "info.csv")), "inner:")

	merged := filepath.Join(data, "data.csv")
	out, err = execute(t, "merge", "-d", data, "-o", merged, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "2 rows, 6 columns")
	assert.Equal(t,
		"emg_0,emg_1,repetition_0,rerepetition_0,stimulus_0,restimulus_0\n"+
			"1,2,3,3,1,1\n"+
			"3,4,4,4,2,2\n",
		readFile(t, merged))

	_, err = execute(t, "label", merged, "--log-level", "error")
	require.NoError(t, err)
	assert.Equal(t,
		"emg_0,emg_1,repetition_0,rerepetition_0,stimulus_0,restimulus_0,series_id\n"+
			"1,2,3,3,1,1,1_1_3_3\n"+
			"3,4,4,4,2,2,2_2_4_4\n",
		readFile(t, merged))
}

func TestConvertWithConfigFile(t *testing.T) {
	dir := t.TempDir()
	src := writeSession(t, dir)
	out := filepath.Join(dir, "tables")
	conf := filepath.Join(dir, "matcsv.yaml")
	content := "source: " + src + "\nout_dir: " + out + "\nextension: tsv\ndelimiter: tab\nworkers: 2\nlog_level: error\n"
	require.NoError(t, os.WriteFile(conf, []byte(content), 0o644))

	_, err := execute(t, "convert", "--config", conf)
	require.NoError(t, err)
	assert.Equal(t, "0\t1\n1\t2\n3\t4\n", readFile(t, filepath.Join(out, "emg.tsv")))

	// flags win over the file
	flagOut := filepath.Join(dir, "flag")
	_, err = execute(t, "convert", "--config", conf, "-o", flagOut, "--ext", "csv", "--delimiter", ";")
	require.NoError(t, err)
	assert.Equal(t, "0;1\n1;2\n3;4\n", readFile(t, filepath.Join(flagOut, "emg.csv")))
}

func TestConvertSkipsMissingSources(t *testing.T) {
	dir := t.TempDir()
	src := writeSession(t, dir)
	absent := filepath.Join(dir, "S3_E1_A1.mat")
	data := filepath.Join(dir, "data")

	out, err := execute(t, "convert", absent, src, "-o", data, "--log-level", "error")
	require.NoError(t, err)
	assert.Contains(t, out, "Skipping "+absent+": not found")
	assert.FileExists(t, filepath.Join(data, "emg.csv"))
}

func TestConvertToSQLite(t *testing.T) {
	dir := t.TempDir()
	src := writeSession(t, dir)
	dbPath := filepath.Join(dir, "out.db")

	_, err := execute(t, "convert", src, "--sqlite", dbPath, "--log-level", "error")
	require.NoError(t, err)

	db, err := sql.Open("sqlite", dbPath)
	require.NoError(t, err)
	defer db.Close()

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM "emg"`).Scan(&n))
	assert.Equal(t, 2, n)
	var text string
	require.NoError(t, db.QueryRow(`SELECT text FROM `+sink.FallbackTable+` WHERE name = ?`, "info").Scan(&text))
	assert.Contains(t, text, "inner:")
}

func TestCommandErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		args []string
	}{
		{"no source", []string{"convert", "-o", dir}},
		{"missing source", []string{"convert", filepath.Join(dir, "absent.mat"), "-o", dir}},
		{"bad delimiter", []string{"convert", "x.mat", "--delimiter", ";;"}},
		{"bad log level", []string{"convert", "x.mat", "--log-level", "loud"}},
		{"missing config", []string{"convert", "--config", filepath.Join(dir, "absent.yaml")}},
		{"nothing to merge", []string{"merge", "-d", dir, "-o", filepath.Join(dir, "data.csv")}},
		{"label missing file", []string{"label", filepath.Join(dir, "absent.csv")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := execute(t, tt.args...)
			assert.Error(t, err)
		})
	}
}
