package warehouse

import (
	"context"
	"errors"
	"fmt"

	pgxdecimal "github.com/jackc/pgx-shopspring-decimal"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Sentinel errors surfaced by snapshot writes. Callers translate these into
// operator-facing outcomes rather than stack traces.
var (
	// ErrAlreadyPublished reports that a snapshot run already exists for the
	// tenant-week, including the case where a concurrent publish won the
	// unique-constraint race.
	ErrAlreadyPublished = errors.New("snapshot already published for week")

	// ErrNoRun reports that no snapshot run exists for the tenant-week.
	ErrNoRun = errors.New("no snapshot run for week")
)

// Store is the pgx-backed warehouse access layer. All snapshot state and the
// gap report view live behind it; every query is tenant-scoped.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a new Store and verifies the connection.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("warehouse dsn: %w", err)
	}
	// gap_cases is NUMERIC; register shopspring decimal codecs so it round-trips
	// without precision loss.
	cfg.AfterConnect = func(_ context.Context, conn *pgx.Conn) error {
		pgxdecimal.Register(conn.TypeMap())
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("warehouse connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("warehouse ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Migrate runs the schema DDL to create tables, views, and indexes.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, schemaDDL)
	return err
}

// Ping verifies warehouse connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() {
	s.pool.Close()
}
