package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// dialect selects SQL spelling differences between the two backends.
type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// DB implements Store over database/sql. The same implementation serves the
// embedded SQLite backend and the pgx-driven Postgres backend; placeholder
// style and DDL spelling are translated per dialect.
type DB struct {
	db      *sql.DB
	dialect dialect
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "store: open sqlite")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "store: exec %s", pragma)
		}
	}
	// A single writer avoids lock thrash between concurrent stages.
	db.SetMaxOpenConns(1)
	return &DB{db: db, dialect: dialectSQLite}, nil
}

// NewPostgres opens a Postgres database via the pgx stdlib driver.
func NewPostgres(databaseURL string) (*DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, eris.Wrap(err, "store: open postgres")
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, eris.Wrap(err, "store: ping postgres")
	}
	return &DB{db: db, dialect: dialectPostgres}, nil
}

// Open selects the backend: Postgres when databaseURL is set, else SQLite.
func Open(sqlitePath, databaseURL string) (*DB, error) {
	if databaseURL != "" {
		return NewPostgres(databaseURL)
	}
	return NewSQLite(sqlitePath)
}

func (s *DB) Close() error {
	return s.db.Close()
}

// q rewrites ? placeholders to $n for Postgres.
func (s *DB) q(query string) string {
	if s.dialect == dialectSQLite {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *DB) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.q(query), args...)
}

func (s *DB) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.q(query), args...)
}

func (s *DB) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.q(query), args...)
}

func (s *DB) schema() string {
	if s.dialect == dialectSQLite {
		return baseSchema
	}
	ddl := strings.ReplaceAll(baseSchema,
		"INTEGER PRIMARY KEY AUTOINCREMENT",
		"BIGINT GENERATED BY DEFAULT AS IDENTITY PRIMARY KEY")
	ddl = strings.ReplaceAll(ddl, "DATETIME", "TIMESTAMPTZ")
	return ddl
}

// Migrate creates missing tables and adds missing columns. Migrations are
// strictly additive.
func (s *DB) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, s.schema()); err != nil {
		return eris.Wrap(err, "store: migrate schema")
	}
	for _, mc := range addedColumns {
		ok, err := s.hasColumn(ctx, mc.table, mc.column)
		if err != nil {
			return err
		}
		if ok {
			continue
		}
		ddl := mc.ddl
		if s.dialect == dialectPostgres {
			ddl = strings.ReplaceAll(ddl, "DATETIME", "TIMESTAMPTZ")
		}
		stmt := fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", mc.table, mc.column, ddl)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return eris.Wrapf(err, "store: add column %s.%s", mc.table, mc.column)
		}
	}
	return nil
}

func (s *DB) hasColumn(ctx context.Context, table, column string) (bool, error) {
	if s.dialect == dialectPostgres {
		var n int
		err := s.db.QueryRowContext(ctx,
			`SELECT count(*) FROM information_schema.columns WHERE table_name = $1 AND column_name = $2`,
			table, column,
		).Scan(&n)
		if err != nil {
			return false, eris.Wrapf(err, "store: inspect %s", table)
		}
		return n > 0, nil
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return false, eris.Wrapf(err, "store: table_info %s", table)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			cid     int
			name    string
			ctype   string
			notnull int
			dflt    sql.NullString
			pk      int
		)
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return false, eris.Wrap(err, "store: scan table_info")
		}
		if name == column {
			return true, nil
		}
	}
	return false, rows.Err()
}

// Reset deletes all rows from every table. Schema stays in place.
func (s *DB) Reset(ctx context.Context) error {
	for _, table := range allTables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return eris.Wrapf(err, "store: reset %s", table)
		}
	}
	return nil
}

// Stats returns per-table row counts.
func (s *DB) Stats(ctx context.Context) (map[string]int, error) {
	out := make(map[string]int, len(allTables))
	for _, table := range allTables {
		var n int
		if err := s.db.QueryRowContext(ctx, "SELECT count(*) FROM "+table).Scan(&n); err != nil {
			return nil, eris.Wrapf(err, "store: count %s", table)
		}
		out[table] = n
	}
	return out, nil
}

func checkRowsAffected(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "store: rows affected for %s %s", kind, id)
	}
	if n == 0 {
		return eris.Errorf("store: %s %s not found", kind, id)
	}
	return nil
}

// jsonString marshals v for a TEXT column; nil-safe.
func jsonString(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(b)
}

// fromJSON unmarshals a TEXT column into out, tolerating empty values.
func fromJSON(s string, out any) {
	if s == "" {
		return
	}
	_ = json.Unmarshal([]byte(s), out)
}
