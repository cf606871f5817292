// Package postgres implements store.Store on pgx. Every check-then-mutate
// operation runs in a single transaction with the job row locked via
// SELECT ... FOR UPDATE, which is what makes concurrent acceptance attempts
// resolve to exactly one winner.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/taskradar/taskradar/internal/store"
)

var _ store.Store = (*Store)(nil)

type Store struct {
	pool *pgxpool.Pool
}

// New connects to Postgres and pings it.
func New(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

// isDuplicateKey reports a unique-constraint violation.
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// isNoRows reports an empty result from QueryRow.
func isNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }
