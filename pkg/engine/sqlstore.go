package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/celerix-dev/celerix-hr/internal/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects placeholder syntax and migrations for a SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// SQLStore keeps the key space in a single two-column table.
type SQLStore struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLStore wraps an open database. The kv table must already exist; use
// OpenSQLite or OpenPostgres to get migrations applied.
func NewSQLStore(db *sql.DB, dialect Dialect) *SQLStore {
	return &SQLStore{db: db, dialect: dialect}
}

// OpenSQLite opens (or creates) a SQLite database file and migrates it.
// Use ":memory:" for a throwaway store.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and serializes
	// SQLite writers.
	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, DialectSQLite); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return NewSQLStore(db, DialectSQLite), nil
}

// OpenPostgres connects through pgx and migrates the schema.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("db open error: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, Unavailable("ping", "", err)
	}

	if err := runMigrations(ctx, db, DialectPostgres); err != nil {
		db.Close()
		return nil, fmt.Errorf("migration error: %w", err)
	}
	return NewSQLStore(db, DialectPostgres), nil
}

func runMigrations(ctx context.Context, db *sql.DB, d Dialect) error {
	goose.SetBaseFS(migrations.Migrations)
	defer goose.SetBaseFS(nil)

	gooseDialect := "postgres"
	if d == DialectSQLite {
		gooseDialect = "sqlite3"
	}
	if err := goose.SetDialect(gooseDialect); err != nil {
		return err
	}
	return goose.UpContext(ctx, db, string(d))
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

// DB exposes the underlying handle for health checks.
func (s *SQLStore) DB() *sql.DB {
	return s.db
}

func (s *SQLStore) ph(n int) string {
	if s.dialect == DialectPostgres {
		return "$" + strconv.Itoa(n)
	}
	return "?"
}

func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	query := `SELECT value FROM kv WHERE key = ` + s.ph(1)
	err := s.db.QueryRowContext(ctx, query, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrKeyNotFound
	}
	if err != nil {
		return nil, Unavailable("get", key, err)
	}
	if value == nil {
		value = []byte{}
	}
	return value, nil
}

func (s *SQLStore) Put(ctx context.Context, key string, value []byte) error {
	if value == nil {
		value = []byte{}
	}
	query := `INSERT INTO kv (key, value) VALUES (` + s.ph(1) + `, ` + s.ph(2) + `)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	if _, err := s.db.ExecContext(ctx, query, key, value); err != nil {
		return Unavailable("put", key, err)
	}
	return nil
}

func (s *SQLStore) Delete(ctx context.Context, key string) error {
	query := `DELETE FROM kv WHERE key = ` + s.ph(1)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return Unavailable("delete", key, err)
	}
	return nil
}

// List runs a range scan starting at prefix. Matching keys are contiguous in
// byte order, so the scan stops at the first key outside the prefix.
func (s *SQLStore) List(ctx context.Context, prefix string, limit int) ([]string, error) {
	var (
		b    strings.Builder
		args []any
	)
	b.WriteString(`SELECT key FROM kv WHERE key >= ` + s.ph(1))
	args = append(args, prefix)

	upper, bounded := prefixEnd(prefix)
	if bounded {
		args = append(args, upper)
		b.WriteString(` AND key < ` + s.ph(len(args)))
	}
	b.WriteString(` ORDER BY key`)
	if bounded && limit > 0 {
		args = append(args, limit)
		b.WriteString(` LIMIT ` + s.ph(len(args)))
	}

	rows, err := s.db.QueryContext(ctx, b.String(), args...)
	if err != nil {
		return nil, Unavailable("list", prefix, err)
	}
	defer rows.Close()

	keys := make([]string, 0)
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, Unavailable("list", prefix, err)
		}
		if !strings.HasPrefix(k, prefix) {
			break
		}
		keys = append(keys, k)
		if limit > 0 && len(keys) >= limit {
			break
		}
	}
	if err := rows.Err(); err != nil {
		return nil, Unavailable("list", prefix, err)
	}
	return keys, nil
}

// prefixEnd returns the smallest string greater than every string carrying
// prefix. It reports false when no such bound exists or when the bound would
// not be valid UTF-8 (PostgreSQL rejects it as a text parameter).
func prefixEnd(prefix string) (string, bool) {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			end := string(b[:i+1])
			if !utf8.ValidString(end) {
				return "", false
			}
			return end, true
		}
	}
	return "", false
}
