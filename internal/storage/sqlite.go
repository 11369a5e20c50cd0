package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/logger"
)

// SQLiteStore is the default backend: a single state file, no server to run.
// The fingerprint primary key gives the same insert-if-absent guarantee as
// the Postgres UNIQUE constraint.
type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// Serialize writers; sqlite allows only one anyway.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Info("sqlite dedup store ready", "path", path)
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS delivered_posts (
		fingerprint TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		source TEXT NOT NULL,
		delivered_at TIMESTAMP NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_delivered_posts_delivered_at ON delivered_posts(delivered_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *SQLiteStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM delivered_posts WHERE fingerprint = ?`,
		fingerprint,
	).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return count > 0, nil
}

func (s *SQLiteStore) Record(ctx context.Context, rec DeliveryRecord) (bool, error) {
	deliveredAt := rec.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO delivered_posts (fingerprint, title, link, source, delivered_at)
		VALUES (?, ?, ?, ?, ?)
	`, rec.Fingerprint, rec.Title, rec.Link, rec.Source, deliveredAt)
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record delivery: %w", err)
	}
	return rows == 1, nil
}

func (s *SQLiteStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM delivered_posts WHERE delivered_at < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("purge: %w", err)
	}
	if rows > 0 {
		logger.Info("purged old delivery records", "count", rows)
	}
	return rows, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
