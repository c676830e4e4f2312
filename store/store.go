// Package store provides Postgres-backed persistence for guild settings,
// opt-outs and the append-only history logs.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"strconv"
	"time"

	"emperror.dev/errors"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/tomasmach/fishie/metrics"
)

//go:embed schema.sql
var schemaSQL string

// Store wraps a database/sql handle opened with the pgx driver.
type Store struct {
	db *sql.DB
}

// Open connects to Postgres, verifies the connection and applies the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open postgres")
	}
	db.SetMaxOpenConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping postgres")
	}
	s := New(db)
	if err := s.ApplySchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an already opened database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// ApplySchema executes the embedded schema script. Every statement is
// idempotent so this runs on each startup.
func (s *Store) ApplySchema(ctx context.Context) error {
	if _, err := s.exec(ctx, schemaSQL); err != nil {
		return errors.Wrap(err, "apply schema")
	}
	return nil
}

// Ping reports whether the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	start := time.Now()
	res, err := s.db.ExecContext(ctx, query, args...)
	observe("exec", start, err)
	return res, err
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	start := time.Now()
	rows, err := s.db.QueryContext(ctx, query, args...)
	observe("query", start, err)
	return rows, err
}

// queryRow scans a single row into dest. found is false when there was no row.
func (s *Store) queryRow(ctx context.Context, query string, args []any, dest ...any) (found bool, err error) {
	start := time.Now()
	err = s.db.QueryRowContext(ctx, query, args...).Scan(dest...)
	if errors.Is(err, sql.ErrNoRows) {
		observe("query", start, nil)
		return false, nil
	}
	observe("query", start, err)
	if err != nil {
		return false, err
	}
	return true, nil
}

func observe(kind string, start time.Time, err error) {
	metrics.DatabaseQueries.WithLabelValues(kind).Inc()
	metrics.DatabaseQueryDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DatabaseErrors.Inc()
	}
}

// snowflakes converts Discord ids to the BIGINT values stored in Postgres.
func snowflakes(ids ...string) ([]any, error) {
	out := make([]any, 0, len(ids))
	for _, id := range ids {
		n, err := strconv.ParseInt(id, 10, 64)
		if err != nil {
			return nil, errors.Errorf("invalid snowflake %q", id)
		}
		out = append(out, n)
	}
	return out, nil
}

// nullSnowflake maps "" to NULL.
func nullSnowflake(id string) (any, error) {
	if id == "" {
		return nil, nil
	}
	args, err := snowflakes(id)
	if err != nil {
		return nil, err
	}
	return args[0], nil
}

// IsUniqueViolation reports whether err is a Postgres unique_violation.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
