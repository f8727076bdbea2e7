package repo

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/LeventeLantos/message-scheduler/internal/config"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed schema_postgres.sql schema_sqlite.sql
var schemaFS embed.FS

type Dialect int

const (
	Postgres Dialect = iota
	SQLite
)

func (d Dialect) String() string {
	if d == SQLite {
		return "sqlite"
	}
	return "postgres"
}

// DB is a *sql.DB that knows which placeholder and timestamp conventions its
// driver needs. Queries are written with "?" placeholders.
type DB struct {
	*sql.DB
	dialect Dialect
}

// Open connects to Postgres when a URL is configured, SQLite otherwise, and
// makes sure the tables exist.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*DB, error) {
	if cfg.PostgresURL != "" {
		return OpenPostgres(ctx, cfg.PostgresURL)
	}
	return OpenSQLite(ctx, cfg.SQLitePath)
}

func OpenPostgres(ctx context.Context, url string) (*DB, error) {
	sqlDB, err := sql.Open("pgx", url)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(30 * time.Minute)

	return prepare(ctx, &DB{DB: sqlDB, dialect: Postgres})
}

func OpenSQLite(ctx context.Context, path string) (*DB, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sqlite path is required")
	}
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, err
		}
	}

	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// SQLite prefers a single writer; this also keeps ":memory:" on one connection.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)

	_, _ = sqlDB.ExecContext(ctx, "PRAGMA busy_timeout = 5000")
	_, _ = sqlDB.ExecContext(ctx, "PRAGMA journal_mode = WAL")

	return prepare(ctx, &DB{DB: sqlDB, dialect: SQLite})
}

func prepare(ctx context.Context, db *DB) (*DB, error) {
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", db.dialect, err)
	}
	if err := db.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("schema %s: %w", db.dialect, err)
	}
	return db, nil
}

func (db *DB) Dialect() Dialect {
	return db.dialect
}

func (db *DB) ensureSchema(ctx context.Context) error {
	name := "schema_postgres.sql"
	if db.dialect == SQLite {
		name = "schema_sqlite.sql"
	}
	b, err := schemaFS.ReadFile(name)
	if err != nil {
		return err
	}
	_, err = db.ExecContext(ctx, string(b))
	return err
}

// rebind rewrites "?" placeholders to "$n" for Postgres.
func (db *DB) rebind(query string) string {
	if db.dialect != Postgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// sqliteTimeLayout is fixed width so that text comparison and ORDER BY match
// chronological order.
const sqliteTimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func (db *DB) timeArg(t time.Time) any {
	if db.dialect == SQLite {
		return t.UTC().Format(sqliteTimeLayout)
	}
	return t.UTC()
}

func nullString(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

// dbTime scans timestamps returned either natively or as SQLite text.
type dbTime struct {
	Time  time.Time
	Valid bool
}

func (t *dbTime) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		t.Time, t.Valid = time.Time{}, false
		return nil
	case time.Time:
		t.Time, t.Valid = v.UTC(), true
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	}
	return fmt.Errorf("unsupported timestamp type %T", src)
}

func (t *dbTime) parse(s string) error {
	for _, layout := range []string{sqliteTimeLayout, time.RFC3339Nano, "2006-01-02 15:04:05.999999999-07:00", "2006-01-02 15:04:05"} {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time, t.Valid = parsed.UTC(), true
			return nil
		}
	}
	return fmt.Errorf("invalid timestamp %q", s)
}

func (t dbTime) ptr() *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time
	return &v
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
