package state

import (
	"context"
	stderrors "errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/config"
	"github.com/ajitpratap0/nebula-tiktok-ads/pkg/errors"
)

// PgQuerier is the subset of *pgxpool.Pool used by PostgresBackend
type PgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresBackend keeps checkpoints in a table keyed by state ID
type PostgresBackend struct {
	db      PgQuerier
	pool    *pgxpool.Pool
	table   string
	stateID string
}

// NewPostgresBackend connects to cfg.DSN and creates the state table if needed
func NewPostgresBackend(ctx context.Context, cfg config.StateConfig) (*PostgresBackend, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid postgres dsn")
	}
	poolConfig.MaxConns = 2

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to create connection pool")
	}

	b := NewPostgresBackendWithQuerier(pool, cfg.Table, cfg.StateID)
	b.pool = pool
	if err := b.EnsureTable(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return b, nil
}

// NewPostgresBackendWithQuerier creates a backend on an existing connection
func NewPostgresBackendWithQuerier(db PgQuerier, table, stateID string) *PostgresBackend {
	return &PostgresBackend{
		db:      db,
		table:   pgx.Identifier{table}.Sanitize(),
		stateID: stateID,
	}
}

// Name implements Backend
func (b *PostgresBackend) Name() string { return "postgres" }

// EnsureTable creates the state table when it does not exist
func (b *PostgresBackend) EnsureTable(ctx context.Context) error {
	query := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
	state_id TEXT PRIMARY KEY,
	state JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`, b.table)
	if _, err := b.db.Exec(ctx, query); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to create state table").
			WithDetail("table", b.table)
	}
	return nil
}

// Load implements Backend
func (b *PostgresBackend) Load(ctx context.Context) (*State, error) {
	var data []byte
	query := fmt.Sprintf(`SELECT state FROM %s WHERE state_id = $1`, b.table)
	if err := b.db.QueryRow(ctx, query, b.stateID).Scan(&data); err != nil {
		if stderrors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, errors.Wrap(err, errors.ErrorTypeConnection, "failed to load state").
			WithDetail("state_id", b.stateID)
	}
	return ParseState(data)
}

// Save implements Backend
func (b *PostgresBackend) Save(ctx context.Context, st *State) error {
	data, err := Encode(st)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`INSERT INTO %s (state_id, state, updated_at) VALUES ($1, $2, now())
ON CONFLICT (state_id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`, b.table)
	if _, err := b.db.Exec(ctx, query, b.stateID, string(data)); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConnection, "failed to save state").
			WithDetail("state_id", b.stateID)
	}
	return nil
}

// Close implements Backend
func (b *PostgresBackend) Close() error {
	if b.pool != nil {
		b.pool.Close()
	}
	return nil
}
