package sink

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/twinfer/matcsv/pkg/tabular"
)

// FallbackTable holds the text of records that were not tabularized.
const FallbackTable = "matcsv_fallback"

// SQLite writes each record as a table of TEXT columns in one database file.
// Fallback text goes to FallbackTable keyed by record name.
type SQLite struct {
	db      *sql.DB
	path    string
	options options
}

// OpenSQLite opens or creates the database at path.
func OpenSQLite(path string, opts ...Option) (*SQLite, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, &WriteError{Target: path, Op: "open database", Err: err}
	}
	// one writer; avoids SQLITE_BUSY between concurrent records
	db.SetMaxOpenConns(1)

	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		name TEXT PRIMARY KEY,
		text TEXT NOT NULL
	)`, quoteIdent(FallbackTable))
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, &WriteError{Target: path, Op: "initialize schema", Err: err}
	}

	return &SQLite{db: db, path: path, options: o}, nil
}

// DB exposes the underlying handle for reads.
func (s *SQLite) DB() *sql.DB {
	return s.db
}

// WriteTable replaces the table named name with t. Empty cells are stored
// as NULL.
func (s *SQLite) WriteTable(ctx context.Context, name string, t *tabular.Table) (err error) {
	target := s.path + "#" + name
	fail := func(err error) error {
		return &WriteError{Target: target, Op: "write table", Err: err}
	}
	if name == FallbackTable {
		return fail(fmt.Errorf("record name %q is reserved", name))
	}
	if err := t.Validate(); err != nil {
		return fail(err)
	}
	if t.NumCols() == 0 {
		return fail(fmt.Errorf("table has no columns"))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
		return fail(err)
	}
	cols := make([]string, len(t.Columns))
	marks := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		cols[i] = quoteIdent(c) + " TEXT"
		marks[i] = "?"
	}
	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(name), strings.Join(cols, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return fail(err)
	}
	// remove any fallback text left by an earlier run
	if _, err := tx.ExecContext(ctx, "DELETE FROM "+quoteIdent(FallbackTable)+" WHERE name = ?", name); err != nil {
		return fail(err)
	}

	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s VALUES (%s)", quoteIdent(name), strings.Join(marks, ", ")))
	if err != nil {
		return fail(err)
	}
	defer stmt.Close()

	args := make([]any, len(t.Columns))
	for r, row := range t.Rows {
		for c, cell := range row {
			if cell.Empty() {
				args[c] = nil
				continue
			}
			args[c] = cell.String()
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return fail(fmt.Errorf("row %d: %w", r, err))
		}
	}

	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	s.options.logger.DebugContext(ctx, "Wrote table", "target", target, "rows", t.NumRows())
	return nil
}

// WriteText stores text under name, dropping any table of that name.
func (s *SQLite) WriteText(ctx context.Context, name string, text string) (err error) {
	target := s.path + "#" + name
	fail := func(err error) error {
		return &WriteError{Target: target, Op: "write text", Err: err}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	if name != FallbackTable {
		if _, err := tx.ExecContext(ctx, "DROP TABLE IF EXISTS "+quoteIdent(name)); err != nil {
			return fail(err)
		}
	}
	upsert := "INSERT INTO " + quoteIdent(FallbackTable) + " (name, text) VALUES (?, ?) " +
		"ON CONFLICT(name) DO UPDATE SET text = excluded.text"
	if _, err := tx.ExecContext(ctx, upsert, name, text); err != nil {
		return fail(err)
	}
	if err := tx.Commit(); err != nil {
		return fail(err)
	}
	s.options.logger.DebugContext(ctx, "Wrote fallback text", "target", target, "bytes", len(text))
	return nil
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func quoteIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
