package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	path := filepath.Join(t.TempDir(), "state.db")
	s, err := NewSQLiteStore(context.Background(), path)
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRecordThenExists(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	exists, err := s.Exists(ctx, "fp1")
	if err != nil {
		t.Fatalf("Exists: %v", err)
	}
	if exists {
		t.Fatal("fresh store reports fingerprint as existing")
	}

	inserted, err := s.Record(ctx, DeliveryRecord{
		Fingerprint: "fp1",
		Title:       "A post",
		Link:        "https://example.org/a",
		Source:      "Habr",
	})
	if err != nil {
		t.Fatalf("Record: %v", err)
	}
	if !inserted {
		t.Fatal("first Record reported already-exists")
	}

	// Dedup monotonicity: once recorded, Exists stays true until purge.
	for i := 0; i < 3; i++ {
		exists, err = s.Exists(ctx, "fp1")
		if err != nil {
			t.Fatalf("Exists: %v", err)
		}
		if !exists {
			t.Fatal("recorded fingerprint not found")
		}
	}
}

func TestRecordIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := DeliveryRecord{Fingerprint: "fp2", Title: "t", Link: "l", Source: "s"}

	if inserted, err := s.Record(ctx, rec); err != nil || !inserted {
		t.Fatalf("first Record = (%v, %v), want (true, nil)", inserted, err)
	}
	if inserted, err := s.Record(ctx, rec); err != nil || inserted {
		t.Fatalf("second Record = (%v, %v), want (false, nil)", inserted, err)
	}
}

func TestPurgeRemovesOnlyOldRecords(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := DeliveryRecord{
		Fingerprint: "old",
		Title:       "t", Link: "l", Source: "s",
		DeliveredAt: time.Now().Add(-72 * time.Hour),
	}
	fresh := DeliveryRecord{Fingerprint: "fresh", Title: "t", Link: "l", Source: "s"}

	if _, err := s.Record(ctx, old); err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, fresh); err != nil {
		t.Fatal(err)
	}

	removed, err := s.Purge(ctx, 48*time.Hour)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("Purge removed %d records, want 1", removed)
	}

	if exists, _ := s.Exists(ctx, "old"); exists {
		t.Error("purged fingerprint still present")
	}
	if exists, _ := s.Exists(ctx, "fresh"); !exists {
		t.Error("fresh fingerprint was purged")
	}
}

func TestStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.db")
	ctx := context.Background()

	s, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Record(ctx, DeliveryRecord{Fingerprint: "fp3", Title: "t", Link: "l", Source: "s"}); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	reopened, err := NewSQLiteStore(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	defer reopened.Close()

	exists, err := reopened.Exists(ctx, "fp3")
	if err != nil {
		t.Fatal(err)
	}
	if !exists {
		t.Error("dedup record did not survive a restart")
	}
}

func TestConcurrentExistsDuringRecord(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 50; i++ {
			if _, err := s.Exists(ctx, "fp-concurrent"); err != nil {
				t.Errorf("Exists during writes: %v", err)
				return
			}
		}
	}()

	for i := 0; i < 50; i++ {
		rec := DeliveryRecord{Fingerprint: "fp-concurrent", Title: "t", Link: "l", Source: "s"}
		if _, err := s.Record(ctx, rec); err != nil {
			t.Fatalf("Record during reads: %v", err)
		}
	}
	<-done
}
