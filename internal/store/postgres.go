package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/classifier-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses; pgxmock satisfies it.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// preparedStatements lists queries to prepare on each new connection.
var preparedStatements = map[string]string{
	"get_cache_entry": `SELECT company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at FROM classification_cache WHERE company_key = $1`,
	"upsert_cache_entry": `INSERT INTO classification_cache
		(company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company_key) DO UPDATE SET
		job_id = EXCLUDED.job_id, result_json = EXCLUDED.result_json,
		sources_fingerprint = EXCLUDED.sources_fingerprint, status = EXCLUDED.status,
		error_message = EXCLUDED.error_message, updated_at = EXCLUDED.updated_at`,
	"delete_cache_entry": `DELETE FROM classification_cache WHERE company_key = $1`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute
	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS classification_cache (
	company_key         TEXT PRIMARY KEY,
	job_id              TEXT NOT NULL,
	result_json         JSONB,
	sources_fingerprint TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'preparing',
	error_message       TEXT,
	created_at          TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_classification_cache_status ON classification_cache(status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, companyKey string) (*model.CacheEntry, error) {
	var e model.CacheEntry
	var resultJSON, errorMessage *string

	err := s.pool.QueryRow(ctx,
		`SELECT company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at FROM classification_cache WHERE company_key = $1`,
		companyKey,
	).Scan(&e.CompanyKey, &e.JobID, &resultJSON, &e.SourcesFingerprint, &e.Status, &errorMessage, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, eris.Wrapf(err, "postgres: get cache entry %s", companyKey)
	}
	if resultJSON != nil {
		e.ResultJSON = *resultJSON
	}
	if errorMessage != nil {
		e.ErrorMessage = *errorMessage
	}
	return &e, nil
}

func (s *PostgresStore) Upsert(ctx context.Context, entry model.CacheEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := s.pool.Exec(ctx,
		`INSERT INTO classification_cache
		(company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (company_key) DO UPDATE SET
		job_id = EXCLUDED.job_id, result_json = EXCLUDED.result_json,
		sources_fingerprint = EXCLUDED.sources_fingerprint, status = EXCLUDED.status,
		error_message = EXCLUDED.error_message, updated_at = EXCLUDED.updated_at`,
		entry.CompanyKey, entry.JobID, nullable(entry.ResultJSON), entry.SourcesFingerprint,
		string(entry.Status), nullable(entry.ErrorMessage), entry.CreatedAt, entry.UpdatedAt,
	)
	return eris.Wrapf(err, "postgres: upsert cache entry %s", entry.CompanyKey)
}

func (s *PostgresStore) Delete(ctx context.Context, companyKey string) error {
	_, err := s.pool.Exec(ctx,
		`DELETE FROM classification_cache WHERE company_key = $1`, companyKey)
	return eris.Wrapf(err, "postgres: delete cache entry %s", companyKey)
}

func (s *PostgresStore) List(ctx context.Context, filter Filter) ([]model.CacheEntry, error) {
	query := `SELECT company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at FROM classification_cache`
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		query += ` WHERE status = $1`
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += ` LIMIT $` + strconv.Itoa(len(args))
		if filter.Offset > 0 {
			args = append(args, filter.Offset)
			query += ` OFFSET $` + strconv.Itoa(len(args))
		}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list cache entries")
	}
	defer rows.Close()

	var entries []model.CacheEntry
	for rows.Next() {
		var e model.CacheEntry
		var resultJSON, errorMessage *string
		if err := rows.Scan(&e.CompanyKey, &e.JobID, &resultJSON, &e.SourcesFingerprint, &e.Status, &errorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan cache entry")
		}
		if resultJSON != nil {
			e.ResultJSON = *resultJSON
		}
		if errorMessage != nil {
			e.ErrorMessage = *errorMessage
		}
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "postgres: iterate cache entries")
}
