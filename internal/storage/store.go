// Package storage persists delivery records so a piece of content is posted
// at most once across runs and restarts.
package storage

import (
	"context"
	"time"
)

// DeliveryRecord is written exactly once per fingerprint, at the moment a
// send is acknowledged, and never mutated afterwards (purge aside).
type DeliveryRecord struct {
	Fingerprint string
	Title       string
	Link        string
	Source      string
	DeliveredAt time.Time
}

// Store is the dedup contract. Exists is safe to call concurrently with
// Record; Record has insert-if-absent semantics so recording is idempotent
// under retries.
type Store interface {
	Exists(ctx context.Context, fingerprint string) (bool, error)

	// Record inserts the record unless its fingerprint is already present.
	// It returns false (and no error) when the fingerprint existed.
	Record(ctx context.Context, rec DeliveryRecord) (bool, error)

	// Purge removes records delivered earlier than now-olderThan and
	// returns how many were dropped. Housekeeping only; re-delivery of
	// purged content is accepted staleness.
	Purge(ctx context.Context, olderThan time.Duration) (int64, error)

	Close() error
}
