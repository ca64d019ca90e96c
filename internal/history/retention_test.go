package history

import (
	"context"
	"testing"
	"time"
)

func insertAgedSnapshot(t *testing.T, store *Store, key string, capturedAt time.Time) {
	t.Helper()
	_, err := store.db.Exec(`
		INSERT INTO session_snapshots (session_key, updated_at, total_tokens, captured_at)
		VALUES (?, ?, ?, ?)`,
		key, capturedAt.UnixMilli(), 100, capturedAt.Format(time.RFC3339),
	)
	if err != nil {
		t.Fatalf("insert aged snapshot: %v", err)
	}
}

func TestRetentionCleaner_SweepDeletesExpiredSnapshots(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	now := time.Now()
	insertAgedSnapshot(t, store, "old-1", now.AddDate(0, 0, -60))
	insertAgedSnapshot(t, store, "old-2", now.AddDate(0, 0, -45))
	insertAgedSnapshot(t, store, "fresh", now.AddDate(0, 0, -5))

	cleaner := NewRetentionCleaner(store, 30)
	cleaner.sweep()

	count, err := store.SnapshotCount(context.Background())
	if err != nil {
		t.Fatalf("SnapshotCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("SnapshotCount() after sweep = %d, want 1", count)
	}
}

func TestRetentionCleaner_ZeroDaysDisablesPruning(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	insertAgedSnapshot(t, store, "ancient", time.Now().AddDate(-1, 0, 0))

	cleaner := NewRetentionCleaner(store, 0)
	cleaner.sweep()

	count, err := store.SnapshotCount(context.Background())
	if err != nil {
		t.Fatalf("SnapshotCount() error = %v", err)
	}
	if count != 1 {
		t.Fatalf("SnapshotCount() = %d, want 1 with pruning disabled", count)
	}
}

func TestRetentionCleaner_UpdateRetentionDays(t *testing.T) {
	store, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore() error = %v", err)
	}
	defer store.Close()

	cleaner := NewRetentionCleaner(store, 30)
	if got := cleaner.RetentionDays(); got != 30 {
		t.Fatalf("RetentionDays() = %d, want 30", got)
	}
	if previous := cleaner.UpdateRetentionDays(90); previous != 30 {
		t.Fatalf("UpdateRetentionDays() previous = %d, want 30", previous)
	}
	if got := cleaner.RetentionDays(); got != 90 {
		t.Fatalf("RetentionDays() = %d, want 90", got)
	}

	// Stop before Start must not block.
	cleaner.Stop()
}
