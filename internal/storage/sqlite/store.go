// Package sqlite implements the relational store on SQLite via the
// CGO-free modernc driver. Useful for local runs and tests.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"docpipe/internal/catalog"
	"docpipe/internal/storage"
)

func init() {
	storage.Register("sqlite", New)
}

// Store implements storage.Store on a SQLite database file (or :memory:).
type Store struct {
	db *sql.DB
}

func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %w", err)
	}
	// SQLite serializes writers; a single connection avoids SQLITE_BUSY
	// under the loader's sequential batches.
	db.SetMaxOpenConns(1)
	return &Store{db: db}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() {
	_ = s.db.Close()
}

func (s *Store) EnsureTables(ctx context.Context) error {
	for _, t := range catalog.Tables() {
		for _, stmt := range []string{buildCreateTableSQL(t), buildDedupIndexSQL(t)} {
			if _, err := s.db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("sqlite: ensure %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// InsertBatch writes the batch as one multi-row INSERT OR IGNORE, so rows
// colliding with the dedup index are skipped rather than failing the batch.
func (s *Store) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	stmt, args := buildInsertSQL(table, columns, rows)
	res, err := s.db.ExecContext(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("sqlite: insert %s: %w", table, err)
	}
	return res.RowsAffected()
}

// buildInsertSQL constructs a single INSERT OR IGNORE statement with "?"
// placeholders. Pure, for tests.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT OR IGNORE INTO ")
	b.WriteString(table)
	b.WriteString(" (")
	b.WriteString(strings.Join(columns, ", "))
	b.WriteString(") VALUES ")

	placeholders := "(" + strings.TrimRight(strings.Repeat("?,", len(columns)), ",") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholders)
		args = append(args, row...)
	}
	b.WriteString(";")
	return b.String(), args
}

func buildCreateTableSQL(t catalog.Table) string {
	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, "id INTEGER PRIMARY KEY AUTOINCREMENT")
	for _, c := range t.Columns {
		parts = append(parts, c.Name+" "+sqliteType(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", t.Name, strings.Join(parts, ",\n  "))
}

func buildDedupIndexSQL(t catalog.Table) string {
	cols := storage.UniqueIndexColumns(t)
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS ux_%s_dedup ON %s (%s);",
		t.Name, t.Name, strings.Join(cols, ", "))
}

func sqliteType(c catalog.Column) string {
	var typ string
	switch storage.TypeOf(c) {
	case storage.TypeDecimal:
		typ = "REAL"
	case storage.TypeTimestamp:
		typ = "TIMESTAMP"
	default:
		typ = "TEXT"
	}
	if c.Required {
		typ += " NOT NULL"
	}
	return typ
}
