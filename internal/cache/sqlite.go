package cache

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	log "github.com/sirupsen/logrus"
)

const createSummariesTable = `CREATE TABLE IF NOT EXISTS summaries (
	key             TEXT PRIMARY KEY,
	file_path       TEXT NOT NULL,
	summary         TEXT NOT NULL,
	original_tokens INTEGER NOT NULL,
	summary_tokens  INTEGER NOT NULL,
	priority        INTEGER NOT NULL,
	created_at      INTEGER NOT NULL
)`

const selectSummary = `SELECT file_path, summary, original_tokens, summary_tokens, priority
FROM summaries WHERE key = ? AND created_at >= ?`

const upsertSummary = `INSERT INTO summaries (key, file_path, summary, original_tokens, summary_tokens, priority, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(key) DO UPDATE SET
	file_path = excluded.file_path,
	summary = excluded.summary,
	original_tokens = excluded.original_tokens,
	summary_tokens = excluded.summary_tokens,
	priority = excluded.priority,
	created_at = excluded.created_at`

const deleteExpired = `DELETE FROM summaries WHERE created_at < ?`

// SQLite stores summaries in a single table.
type SQLite struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// OpenSQLite opens (or creates) the database at path.
func OpenSQLite(ctx context.Context, path string, ttl time.Duration) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open summary database: %w", err)
	}
	db.SetMaxOpenConns(1)

	s, err := NewSQLite(ctx, db, ttl)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// NewSQLite uses an open database, creating the table if needed.
func NewSQLite(ctx context.Context, db *sql.DB, ttl time.Duration) (*SQLite, error) {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if _, err := db.ExecContext(ctx, createSummariesTable); err != nil {
		return nil, fmt.Errorf("failed to create summaries table: %w", err)
	}
	return &SQLite{db: db, ttl: ttl, now: time.Now}, nil
}

func (s *SQLite) Get(ctx context.Context, key string) (SummaryRecord, bool) {
	var rec SummaryRecord
	cutoff := s.now().Add(-s.ttl).Unix()
	err := s.db.QueryRowContext(ctx, selectSummary, key, cutoff).
		Scan(&rec.FilePath, &rec.Summary, &rec.OriginalTokens, &rec.SummaryTokens, &rec.Priority)
	if err != nil {
		if err != sql.ErrNoRows {
			log.Debugf("summary cache lookup failed: %v", err)
		}
		return SummaryRecord{}, false
	}
	return rec, true
}

func (s *SQLite) Set(ctx context.Context, key string, rec SummaryRecord) error {
	_, err := s.db.ExecContext(ctx, upsertSummary,
		key, rec.FilePath, rec.Summary, rec.OriginalTokens, rec.SummaryTokens, rec.Priority, s.now().Unix())
	if err != nil {
		return fmt.Errorf("failed to store summary: %w", err)
	}
	return nil
}

// Prune deletes expired rows and returns how many were removed.
func (s *SQLite) Prune(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, deleteExpired, s.now().Add(-s.ttl).Unix())
	if err != nil {
		return 0, fmt.Errorf("failed to prune summaries: %w", err)
	}
	return res.RowsAffected()
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
