// Package sqlstore implements the store interfaces on database/sql.
//
// Two dialects are supported: Postgres through the pgx stdlib driver and SQLite
// through modernc.org/sqlite. Schema is managed by goose with migrations
// embedded per dialect. Timestamps are stored as UTC unix milliseconds so both
// dialects share one set of queries; placeholders are written as '?' and
// rebound to '$n' for Postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/store"
	"github.com/MrEthical07/authcore/store/sqlstore/migrations"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects the SQL flavour and driver.
type Dialect string

const (
	DialectPostgres Dialect = "postgres"
	DialectSQLite   Dialect = "sqlite"
)

var (
	_ store.AccountStore    = (*Store)(nil)
	_ store.ResetTokenStore = (*Store)(nil)
	_ store.Transactor      = (*Store)(nil)
)

// Store is a SQL-backed account and reset-token store.
type Store struct {
	db      *sql.DB
	dialect Dialect
	now     func() time.Time
}

// ParseDialect maps a configuration string onto a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return DialectPostgres, nil
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", name)
	}
}

// Open connects to dsn, verifies the connection and applies migrations.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("sqlstore: dsn is required")
	}
	driver, err := driverName(dialect)
	if err != nil {
		return nil, err
	}
	if dialect == DialectSQLite {
		dsn = sqliteDSN(dsn)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	if dialect == DialectSQLite {
		// SQLite serialises writers; one connection avoids SQLITE_BUSY inside transactions.
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect, err)
	}

	s := New(db, dialect)
	if err := s.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an existing handle. Migrations are not applied.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, now: time.Now}
}

// Migrate applies the embedded goose migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	switch s.dialect {
	case DialectPostgres:
		goose.SetBaseFS(migrations.Postgres)
		if err := goose.SetDialect("pgx"); err != nil {
			return fmt.Errorf("sqlstore: goose dialect: %w", err)
		}
		if err := goose.UpContext(ctx, s.db, "postgres"); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	case DialectSQLite:
		goose.SetBaseFS(migrations.SQLite)
		if err := goose.SetDialect("sqlite3"); err != nil {
			return fmt.Errorf("sqlstore: goose dialect: %w", err)
		}
		if err := goose.UpContext(ctx, s.db, "sqlite"); err != nil {
			return fmt.Errorf("sqlstore: migrate: %w", err)
		}
	default:
		return fmt.Errorf("sqlstore: unsupported dialect %q", s.dialect)
	}
	return nil
}

// DB exposes the underlying handle for health checks.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the underlying handle.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// InTx runs fn inside a database transaction.
func (s *Store) InTx(ctx context.Context, fn store.TxFunc) error {
	return withTx(ctx, s.db, nil, func(ctx context.Context, tx DBTX) error {
		q := s.queries(tx)
		return fn(ctx, q, q)
	})
}

func (s *Store) queries(db DBTX) *queries {
	return &queries{db: db, dialect: s.dialect, now: s.now}
}

func driverName(dialect Dialect) (string, error) {
	switch dialect {
	case DialectPostgres:
		return "pgx", nil
	case DialectSQLite:
		return "sqlite", nil
	default:
		return "", fmt.Errorf("sqlstore: unsupported dialect %q", dialect)
	}
}

func sqliteDSN(dsn string) string {
	if strings.Contains(dsn, "_pragma=") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
}

// rebind rewrites '?' placeholders to '$n' for Postgres.
func rebind(dialect Dialect, query string) string {
	if dialect != DialectPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	return time.UnixMilli(value).UTC()
}
