// Package snapshot captures and restores a vocabulary-erased view of a
// coherence field: hashes and accumulator state only, no feature vectors
// (spec.md §4.8).
package snapshot

import (
	"github.com/google/uuid"

	"github.com/danielpatrickdp/trustfield/internal/coherence"
	"github.com/danielpatrickdp/trustfield/internal/contextkey"
	"github.com/danielpatrickdp/trustfield/internal/field"
	"github.com/danielpatrickdp/trustfield/internal/personality"
)

// #region constants

// Version is the integer format tag stamped on every Snapshot (spec.md
// §4.8: "versioned with an integer tag v=1").
const Version = 1

// #endregion constants

// #region types

// ContextRecord is one reported context's persisted state, keyed by hash
// only. Feature vectors are deliberately not carried: restoration re-learns
// them as contexts are re-observed.
type ContextRecord struct {
	Hash          uint64
	Coherence     float64
	Floor         float64
	PositiveCount uint64
	LastTick      uint64
}

// Snapshot is the pure-value, versioned capture of a field's state at a
// point in time.
type Snapshot struct {
	SnapshotID        string
	PriorSnapshotID   string
	Version           int
	CreatedAt         uint64
	LastActive        uint64
	TotalInteractions uint64
	Personality       PersonalityRecord
	Contexts          []ContextRecord
}

// PersonalityRecord is the flattened three-scalar personality carried in a
// Snapshot (personality.Personality itself has unexported fields, so it
// cannot be persisted directly).
type PersonalityRecord struct {
	CuriosityDrive     float64
	StartleSensitivity float64
	RecoverySpeed      float64
}

// #endregion types

// #region capture

// FromField captures a field's current state into a new Snapshot. prior, if
// non-empty, threads a provenance chain across successive snapshots the way
// StateRecord.ParentID does for the disposition-vector lineage this package
// is adapted from.
func FromField(f *field.CoherenceField, p personality.Personality, createdAt, lastActive, totalInteractions uint64, prior string) Snapshot {
	entries := f.AllEntries()
	contexts := make([]ContextRecord, 0, len(entries))
	for _, e := range entries {
		contexts = append(contexts, ContextRecord{
			Hash:          e.Key.Hash(),
			Coherence:     e.Accumulator.Coherence,
			Floor:         e.Accumulator.Floor,
			PositiveCount: e.Accumulator.PositiveCount,
			LastTick:      e.Accumulator.LastTick,
		})
	}

	return Snapshot{
		SnapshotID:        uuid.NewString(),
		PriorSnapshotID:   prior,
		Version:           Version,
		CreatedAt:         createdAt,
		LastActive:        lastActive,
		TotalInteractions: totalInteractions,
		Personality: PersonalityRecord{
			CuriosityDrive:     p.CuriosityDrive(),
			StartleSensitivity: p.StartleSensitivity(),
			RecoverySpeed:      p.RecoverySpeed(),
		},
		Contexts: contexts,
	}
}

// #endregion capture

// #region restore

// RestoreInto rebuilds a field's accumulator state from a snapshot, keyed
// by hash only. keyOf must resolve a hash back to the contextkey.Key a
// caller will use to address that context again; hashes with no resolver
// entry are skipped (their trust is lost until re-observed under a fresh
// key, per spec.md §4.8: "feature vectors are re-learned as contexts are
// re-observed").
func RestoreInto(f *field.CoherenceField, snap Snapshot, keyOf func(hash uint64) (contextkey.Key, bool)) personality.Personality {
	for _, c := range snap.Contexts {
		k, ok := keyOf(c.Hash)
		if !ok {
			continue
		}
		f.RestoreEntry(k, coherence.Accumulator{
			Coherence:     c.Coherence,
			Floor:         c.Floor,
			PositiveCount: c.PositiveCount,
			LastTick:      c.LastTick,
		})
	}
	return personality.NewWith(snap.Personality.CuriosityDrive, snap.Personality.StartleSensitivity, snap.Personality.RecoverySpeed)
}

// #endregion restore
