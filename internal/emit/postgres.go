package emit

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/arremate/ingestor/internal/pipeline"
)

// persistAttempts bounds the retry loop for transient Postgres failures.
const persistAttempts = 3

// PostgresConfig controls the connection pool used for canonical records.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MaxConnLifetime time.Duration
}

type execCloser interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Close()
}

// PostgresSink upserts canonical records keyed by id_interno. A unique
// constraint on that column is the only row identity this pipeline assumes.
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

// upsertRecordSQL updates only mutable fields on conflict; id_interno is
// immutable, so re-extraction may improve a draft without forking identity.
const upsertRecordSQL = `
INSERT INTO canonical_records (
	id_interno,
	cidade,
	uf,
	data_leilao,
	data_publicacao,
	url_fonte,
	url_edital,
	objeto_resumido,
	descricao,
	comitente,
	tags,
	valor_estimado_centavos,
	publication_status
) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
ON CONFLICT (id_interno) DO UPDATE SET
	cidade = EXCLUDED.cidade,
	uf = EXCLUDED.uf,
	data_leilao = EXCLUDED.data_leilao,
	data_publicacao = EXCLUDED.data_publicacao,
	url_fonte = EXCLUDED.url_fonte,
	url_edital = EXCLUDED.url_edital,
	objeto_resumido = EXCLUDED.objeto_resumido,
	descricao = EXCLUDED.descricao,
	comitente = EXCLUDED.comitente,
	tags = EXCLUDED.tags,
	valor_estimado_centavos = EXCLUDED.valor_estimado_centavos,
	publication_status = EXCLUDED.publication_status`

// Emit upserts the record, retrying transient failures with backoff. A
// still-failing upsert is surfaced to the caller, never swallowed.
func (s *PostgresSink) Emit(ctx context.Context, rec pipeline.CanonicalRecord) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("postgres sink is not configured")
	}
	if rec.InternalID == "" {
		return fmt.Errorf("record has no identity")
	}
	args := []any{
		rec.InternalID,
		rec.City,
		rec.State,
		rec.AuctionDate,
		rec.PublishedDate,
		rec.SourceURL,
		rec.NoticeURL,
		rec.Title,
		rec.Description,
		rec.Entity,
		rec.Tags,
		rec.EstimatedValue,
		string(rec.Status),
	}

	var lastErr error
	backoff := 200 * time.Millisecond
	for attempt := 0; attempt < persistAttempts; attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(backoff)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("emit canceled: %w", ctx.Err())
			case <-timer.C:
			}
			backoff *= 2
		}
		if _, err := s.pool.Exec(ctx, upsertRecordSQL, args...); err != nil {
			lastErr = err
			continue
		}
		return nil
	}
	return fmt.Errorf("upsert record %s: %w", rec.InternalID, lastErr)
}
