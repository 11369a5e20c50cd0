package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/nikizi1234-ship-it/Ai-Post/internal/logger"
)

// PostgresStore keeps delivery records in Postgres. The UNIQUE constraint on
// fingerprint is what enforces at-most-once recording under concurrency.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	s := &PostgresStore{db: db}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	logger.Info("postgres dedup store ready")
	return s, nil
}

func (s *PostgresStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS delivered_posts (
		id SERIAL PRIMARY KEY,
		fingerprint VARCHAR(64) UNIQUE NOT NULL,
		title TEXT NOT NULL,
		link TEXT NOT NULL,
		source TEXT NOT NULL,
		delivered_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);

	CREATE INDEX IF NOT EXISTS idx_delivered_posts_delivered_at ON delivered_posts(delivered_at);
	`

	_, err := s.db.ExecContext(ctx, schema)
	return err
}

func (s *PostgresStore) Exists(ctx context.Context, fingerprint string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM delivered_posts WHERE fingerprint = $1)`,
		fingerprint,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("dedup lookup: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Record(ctx context.Context, rec DeliveryRecord) (bool, error) {
	deliveredAt := rec.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now().UTC()
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO delivered_posts (fingerprint, title, link, source, delivered_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (fingerprint) DO NOTHING
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

func (s *PostgresStore) Purge(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM delivered_posts WHERE delivered_at < $1`, cutoff)
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

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
