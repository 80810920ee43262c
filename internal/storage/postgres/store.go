// Package postgres implements the relational store on PostgreSQL via pgx.
package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"docpipe/internal/catalog"
	"docpipe/internal/storage"
)

func init() {
	storage.Register("postgres", New)
}

// Store implements storage.Store on a pgx connection pool.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a Postgres-backed Store. The DSN is a pgx/libpq connection
// string.
func New(ctx context.Context, cfg storage.Config) (storage.Store, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *Store) Close() {
	s.pool.Close()
}

// EnsureTables creates the catalog tables and their dedup indexes if absent.
func (s *Store) EnsureTables(ctx context.Context) error {
	for _, t := range catalog.Tables() {
		for _, stmt := range []string{buildCreateTableSQL(t), buildDedupIndexSQL(t)} {
			if _, err := s.pool.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("postgres: ensure %s: %w", t.Name, err)
			}
		}
	}
	return nil
}

// InsertBatch writes the batch as one multi-row INSERT. Rows that collide
// with the dedup index are skipped via ON CONFLICT DO NOTHING, so the
// returned count can be lower than len(rows) without an error.
func (s *Store) InsertBatch(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	sql, args := buildInsertSQL(table, columns, rows)
	cmd, err := s.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, fmt.Errorf("postgres: insert %s: %w", table, err)
	}
	return cmd.RowsAffected(), nil
}

// buildInsertSQL constructs a single INSERT statement and its args.
//
// It is pure and deterministic, so placeholder numbering and the ON CONFLICT
// clause are unit-tested without a database. Every row must have the same
// length as columns.
func buildInsertSQL(table string, columns []string, rows [][]any) (string, []any) {
	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(pgIdent(table))
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(pgIdent(c))
	}
	b.WriteString(") VALUES ")

	args := make([]any, 0, len(rows)*len(columns))
	p := 1
	for i, row := range rows {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString("(")
		for j := range columns {
			if j > 0 {
				b.WriteString(", ")
			}
			b.WriteString(fmt.Sprintf("$%d", p))
			args = append(args, row[j])
			p++
		}
		b.WriteString(")")
	}

	b.WriteString(" ON CONFLICT DO NOTHING;")
	return b.String(), args
}

// buildCreateTableSQL builds an idempotent CREATE TABLE for one catalog
// table.
func buildCreateTableSQL(t catalog.Table) string {
	parts := make([]string, 0, len(t.Columns)+1)
	parts = append(parts, "id BIGSERIAL PRIMARY KEY")
	for _, c := range t.Columns {
		parts = append(parts, pgIdent(c.Name)+" "+pgType(c))
	}
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);", pgIdent(t.Name), strings.Join(parts, ",\n  "))
}

// buildDedupIndexSQL builds the unique index backing ON CONFLICT DO NOTHING
// for cross-run duplicates.
func buildDedupIndexSQL(t catalog.Table) string {
	cols := storage.UniqueIndexColumns(t)
	quoted := make([]string, 0, len(cols))
	for _, c := range cols {
		quoted = append(quoted, pgIdent(c))
	}
	return fmt.Sprintf("CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (%s);",
		pgIdent("ux_"+t.Name+"_dedup"), pgIdent(t.Name), strings.Join(quoted, ", "))
}

func pgType(c catalog.Column) string {
	var typ string
	switch storage.TypeOf(c) {
	case storage.TypeDecimal:
		typ = "NUMERIC(18,2)"
	case storage.TypeTimestamp:
		typ = "TIMESTAMPTZ"
	default:
		typ = "TEXT"
	}
	if c.Required {
		typ += " NOT NULL"
	}
	return typ
}

// pgIdent quotes an identifier.
func pgIdent(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
