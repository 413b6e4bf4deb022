package quarantine

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arremate/ingestor/internal/pipeline"
)

// PostgresConfig controls the connection pool used for quarantine rows.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink appends quarantine entries to Postgres. Inserts only; the
// table is append-only and resolution updates belong to triage tooling.
type PostgresSink struct {
	pool execCloser
}

// NewPostgresSink connects a pool using the provided config.
func NewPostgresSink(ctx context.Context, cfg PostgresConfig) (*PostgresSink, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &PostgresSink{pool: pool}, nil
}

// NewPostgresSinkWithPool constructs a sink from an existing pool
// (primarily for testing).
func NewPostgresSinkWithPool(pool execCloser) (*PostgresSink, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	return &PostgresSink{pool: pool}, nil
}

// Close releases the underlying pool resources.
func (s *PostgresSink) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

const insertQuarantineSQL = `
INSERT INTO quarantine (
	id,
	run_id,
	stage,
	code,
	detail,
	payload,
	producer_version,
	created_at,
	resolution
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`

// Quarantine inserts one entry.
func (s *PostgresSink) Quarantine(ctx context.Context, entry pipeline.QuarantineEntry) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("quarantine sink is not configured")
	}
	if entry.ID == "" {
		return fmt.Errorf("entry id is required")
	}
	if entry.Resolution == "" {
		entry.Resolution = pipeline.ResolutionPending
	}
	args := []any{
		entry.ID,
		entry.RunID,
		string(entry.Stage),
		string(entry.Code),
		entry.Detail,
		[]byte(entry.Payload),
		entry.ProducerVersion,
		entry.CreatedAt,
		string(entry.Resolution),
	}
	if _, err := s.pool.Exec(ctx, insertQuarantineSQL, args...); err != nil {
		return fmt.Errorf("insert quarantine entry: %w", err)
	}
	return nil
}
