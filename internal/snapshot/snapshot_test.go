package snapshot

import (
	"testing"

	"github.com/danielpatrickdp/trustfield/internal/contextkey"
	"github.com/danielpatrickdp/trustfield/internal/feature"
	"github.com/danielpatrickdp/trustfield/internal/field"
	"github.com/danielpatrickdp/trustfield/internal/personality"
)

func TestFromFieldCapturesContextsWithoutFeatureVectors(t *testing.T) {
	f := field.New(8)
	p := personality.NewWith(0.7, 0.2, 0.6)
	k := contextkey.New(feature.New([]float64{1, 1}))

	for tick := uint64(0); tick < 5; tick++ {
		f.PositiveInteraction(k, p, tick, false)
	}

	snap := FromField(f, p, 100, 104, 5, "")

	if snap.Version != Version {
		t.Fatalf("expected version %d, got %d", Version, snap.Version)
	}
	if snap.SnapshotID == "" {
		t.Fatalf("expected a non-empty snapshot id")
	}
	if len(snap.Contexts) != 1 {
		t.Fatalf("expected 1 captured context, got %d", len(snap.Contexts))
	}
	got := snap.Contexts[0]
	if got.Hash != k.Hash() {
		t.Fatalf("expected hash %d, got %d", k.Hash(), got.Hash)
	}
	if got.Coherence <= 0 {
		t.Fatalf("expected positive coherence after 5 positive interactions, got %v", got.Coherence)
	}
	if got.PositiveCount != 5 {
		t.Fatalf("expected positive_count 5, got %d", got.PositiveCount)
	}
	if snap.Personality.CuriosityDrive != 0.7 || snap.Personality.StartleSensitivity != 0.2 || snap.Personality.RecoverySpeed != 0.6 {
		t.Fatalf("personality not captured faithfully: %+v", snap.Personality)
	}
}

func TestRestoreIntoRebuildsAccumulatorState(t *testing.T) {
	src := field.New(8)
	p := personality.NewWith(0.7, 0.2, 0.6)
	k := contextkey.New(feature.New([]float64{1, 1}))
	for tick := uint64(0); tick < 10; tick++ {
		src.PositiveInteraction(k, p, tick, false)
	}
	snap := FromField(src, p, 0, 9, 10, "")

	dst := field.New(8)
	keyOf := func(hash uint64) (contextkey.Key, bool) {
		if hash == k.Hash() {
			return k, true
		}
		return contextkey.Key{}, false
	}
	restoredPersonality := RestoreInto(dst, snap, keyOf)

	if restoredPersonality.CuriosityDrive() != 0.7 {
		t.Fatalf("expected curiosity_drive 0.7, got %v", restoredPersonality.CuriosityDrive())
	}
	entries := dst.AllEntries()
	if len(entries) != 1 {
		t.Fatalf("expected 1 restored entry, got %d", len(entries))
	}
	if entries[0].Accumulator.Coherence != snap.Contexts[0].Coherence {
		t.Fatalf("expected restored coherence %v, got %v", snap.Contexts[0].Coherence, entries[0].Accumulator.Coherence)
	}
	if entries[0].Accumulator.PositiveCount != 10 {
		t.Fatalf("expected restored positive_count 10, got %d", entries[0].Accumulator.PositiveCount)
	}
}

func TestRestoreIntoSkipsUnresolvableHashes(t *testing.T) {
	src := field.New(8)
	p := personality.New()
	k := contextkey.New(feature.New([]float64{0.2, 0.9}))
	src.PositiveInteraction(k, p, 0, false)
	snap := FromField(src, p, 0, 0, 1, "")

	dst := field.New(8)
	keyOf := func(hash uint64) (contextkey.Key, bool) { return contextkey.Key{}, false }
	RestoreInto(dst, snap, keyOf)

	if dst.Len() != 0 {
		t.Fatalf("expected no entries restored when keyOf resolves nothing, got %d", dst.Len())
	}
}

func TestSnapshotChainCarriesPriorID(t *testing.T) {
	f := field.New(4)
	p := personality.New()
	first := FromField(f, p, 0, 0, 0, "")
	second := FromField(f, p, 1, 1, 0, first.SnapshotID)

	if second.PriorSnapshotID != first.SnapshotID {
		t.Fatalf("expected chained snapshot to reference prior id %q, got %q", first.SnapshotID, second.PriorSnapshotID)
	}
}
