package persist

import (
	"path/filepath"
	"testing"

	"github.com/danielpatrickdp/trustfield/internal/snapshot"
)

func tempStore(t *testing.T) *SnapshotStore {
	t.Helper()
	dir := t.TempDir()
	s, err := NewSnapshotStore(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("NewSnapshotStore: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleSnapshot(id, prior string) snapshot.Snapshot {
	return snapshot.Snapshot{
		SnapshotID:        id,
		PriorSnapshotID:   prior,
		Version:           snapshot.Version,
		CreatedAt:         100,
		LastActive:        105,
		TotalInteractions: 12,
		Personality: snapshot.PersonalityRecord{
			CuriosityDrive:     0.6,
			StartleSensitivity: 0.3,
			RecoverySpeed:      0.5,
		},
		Contexts: []snapshot.ContextRecord{
			{Hash: 1, Coherence: 0.7, Floor: 0.5, PositiveCount: 4, LastTick: 10},
			{Hash: 2, Coherence: 0.2, Floor: 0.0, PositiveCount: 1, LastTick: 3},
		},
	}
}

func TestPutAndGet(t *testing.T) {
	s := tempStore(t)
	snap := sampleSnapshot("snap-1", "")

	if err := s.Put(snap); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get("snap-1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.SnapshotID != snap.SnapshotID || got.Version != snap.Version {
		t.Fatalf("round-trip mismatch: got %+v want %+v", got, snap)
	}
	if len(got.Contexts) != 2 {
		t.Fatalf("expected 2 contexts, got %d", len(got.Contexts))
	}
	if got.PriorSnapshotID != "" {
		t.Fatalf("expected empty prior id, got %q", got.PriorSnapshotID)
	}
}

func TestPutMarksActive(t *testing.T) {
	s := tempStore(t)
	first := sampleSnapshot("snap-1", "")
	second := sampleSnapshot("snap-2", "snap-1")

	if err := s.Put(first); err != nil {
		t.Fatalf("Put first: %v", err)
	}
	if err := s.Put(second); err != nil {
		t.Fatalf("Put second: %v", err)
	}

	active, err := s.GetActive()
	if err != nil {
		t.Fatalf("GetActive: %v", err)
	}
	if active.SnapshotID != "snap-2" {
		t.Fatalf("expected snap-2 active, got %s", active.SnapshotID)
	}
	if active.PriorSnapshotID != "snap-1" {
		t.Fatalf("expected chain to snap-1, got %s", active.PriorSnapshotID)
	}
}

func TestListRecentOrdersNewestFirst(t *testing.T) {
	s := tempStore(t)
	for _, id := range []string{"a", "b", "c"} {
		if err := s.Put(sampleSnapshot(id, "")); err != nil {
			t.Fatalf("Put %s: %v", id, err)
		}
	}

	recent, err := s.ListRecent(10)
	if err != nil {
		t.Fatalf("ListRecent: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("expected 3 snapshots, got %d", len(recent))
	}
	if recent[0].SnapshotID != "c" {
		t.Fatalf("expected newest first (c), got %s", recent[0].SnapshotID)
	}
}

func TestGetNonExistent(t *testing.T) {
	s := tempStore(t)
	_, err := s.Get("nonexistent")
	if err == nil {
		t.Fatal("expected error for nonexistent snapshot")
	}
}

func TestGetActiveWithNoSnapshots(t *testing.T) {
	s := tempStore(t)
	_, err := s.GetActive()
	if err == nil {
		t.Fatal("expected error when no active snapshot exists")
	}
}

func TestNewSnapshotStoreInvalidPath(t *testing.T) {
	_, err := NewSnapshotStore(filepath.Join("/nonexistent", "deep", "path", "test.db"))
	if err == nil {
		t.Fatal("expected error for invalid path")
	}
}
