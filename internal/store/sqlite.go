package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/classifier-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS classification_cache (
	company_key         TEXT PRIMARY KEY,
	job_id              TEXT NOT NULL,
	result_json         TEXT,
	sources_fingerprint TEXT NOT NULL,
	status              TEXT NOT NULL DEFAULT 'preparing',
	error_message       TEXT,
	created_at          DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at          DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE INDEX IF NOT EXISTS idx_classification_cache_status ON classification_cache(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, companyKey string) (*model.CacheEntry, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at
		 FROM classification_cache WHERE company_key = ?`,
		companyKey,
	)

	var e model.CacheEntry
	var resultJSON, errorMessage sql.NullString
	err := row.Scan(&e.CompanyKey, &e.JobID, &resultJSON, &e.SourcesFingerprint, &e.Status, &errorMessage, &e.CreatedAt, &e.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get cache entry %s", companyKey)
	}
	e.ResultJSON = resultJSON.String
	e.ErrorMessage = errorMessage.String
	return &e, nil
}

func (s *SQLiteStore) Upsert(ctx context.Context, entry model.CacheEntry) error {
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO classification_cache
			(company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(company_key) DO UPDATE SET
			job_id = excluded.job_id,
			result_json = excluded.result_json,
			sources_fingerprint = excluded.sources_fingerprint,
			status = excluded.status,
			error_message = excluded.error_message,
			updated_at = excluded.updated_at`,
		entry.CompanyKey, entry.JobID, nullable(entry.ResultJSON), entry.SourcesFingerprint,
		string(entry.Status), nullable(entry.ErrorMessage), entry.CreatedAt, entry.UpdatedAt,
	)
	return eris.Wrapf(err, "sqlite: upsert cache entry %s", entry.CompanyKey)
}

func (s *SQLiteStore) Delete(ctx context.Context, companyKey string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM classification_cache WHERE company_key = ?`, companyKey)
	return eris.Wrapf(err, "sqlite: delete cache entry %s", companyKey)
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]model.CacheEntry, error) {
	query := `SELECT company_key, job_id, result_json, sources_fingerprint, status, error_message, created_at, updated_at
		 FROM classification_cache`
	var args []any
	if filter.Status != "" {
		query += ` WHERE status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY updated_at DESC`
	if filter.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += ` OFFSET ?`
			args = append(args, filter.Offset)
		}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list cache entries")
	}
	defer rows.Close()

	var entries []model.CacheEntry
	for rows.Next() {
		var e model.CacheEntry
		var resultJSON, errorMessage sql.NullString
		if err := rows.Scan(&e.CompanyKey, &e.JobID, &resultJSON, &e.SourcesFingerprint, &e.Status, &errorMessage, &e.CreatedAt, &e.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan cache entry")
		}
		e.ResultJSON = resultJSON.String
		e.ErrorMessage = errorMessage.String
		entries = append(entries, e)
	}
	return entries, eris.Wrap(rows.Err(), "sqlite: iterate cache entries")
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
