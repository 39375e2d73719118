// Package field implements the bounded coherence field: a context-keyed map
// of trust accumulators with LRU eviction and the min-gate/familiar-arm
// blending rule (spec.md §4.3).
package field

import (
	"github.com/danielpatrickdp/trustfield/internal/coherence"
	"github.com/danielpatrickdp/trustfield/internal/contextkey"
	"github.com/danielpatrickdp/trustfield/internal/personality"
)

// #region constants

// familiarThreshold is the fixed boundary between the unfamiliar (min-gate)
// and familiar (weighted blend) arms of EffectiveCoherence. Part of the
// determinism contract (spec.md §4.3).
const familiarThreshold = 0.3

// #endregion constants

// #region types

// Entry pairs a stored accumulator with the key it belongs to, returned by
// AllEntries for enumeration.
type Entry struct {
	Key         contextkey.Key
	Accumulator coherence.Accumulator
}

// Observer receives structured events about field mutations. Attaching one
// is optional; see the telemetry package for a zerolog-backed
// implementation. Never invoked by pure reads (EffectiveCoherence).
type Observer interface {
	OnEvicted(hash uint64, last coherence.Accumulator)
	OnInserted(hash uint64)
}

// CoherenceField is a fixed-capacity map of context hash -> Accumulator.
type CoherenceField struct {
	capacity int
	entries  map[uint64]*record
	order    []uint64 // insertion order, for AllEntries determinism
	observer Observer
}

type record struct {
	key contextkey.Key
	acc coherence.Accumulator
}

// #endregion types

// #region constructor

// New creates a field with the given bounded capacity (typical: 32-128).
func New(capacity int) *CoherenceField {
	if capacity < 1 {
		capacity = 1
	}
	return &CoherenceField{
		capacity: capacity,
		entries:  make(map[uint64]*record, capacity),
	}
}

// SetObserver attaches an optional observer for eviction/insertion events.
func (f *CoherenceField) SetObserver(o Observer) { f.observer = o }

// Capacity returns the field's fixed capacity.
func (f *CoherenceField) Capacity() int { return f.capacity }

// Len returns the number of currently tracked contexts.
func (f *CoherenceField) Len() int { return len(f.entries) }

// #endregion constructor

// #region interactions

// PositiveInteraction dispatches a positive interaction to the accumulator
// for k, creating one on first sight.
func (f *CoherenceField) PositiveInteraction(k contextkey.Key, p personality.Personality, t uint64, alone bool) {
	rec := f.lookupOrInsert(k, p, t)
	rec.acc = rec.acc.Positive(p, t, alone)
}

// NegativeInteraction dispatches a negative interaction to the accumulator
// for k, creating one on first sight.
func (f *CoherenceField) NegativeInteraction(k contextkey.Key, p personality.Personality, t uint64) {
	rec := f.lookupOrInsert(k, p, t)
	rec.acc = rec.acc.Negative(p, t)
}

// RestoreEntry seeds an accumulator directly, used by the snapshot package
// to rebuild state from persisted (hash, coherence, floor, positive_count,
// last_tick) tuples without replaying interaction history. Bypasses
// capacity eviction bookkeeping's usual insert path only in that it accepts
// a caller-supplied accumulator instead of NewCold; capacity limits and
// eviction still apply.
func (f *CoherenceField) RestoreEntry(k contextkey.Key, acc coherence.Accumulator) {
	if rec, ok := f.entries[k.Hash()]; ok {
		rec.acc = acc
		return
	}
	if len(f.entries) >= f.capacity {
		f.evictOne()
	}
	f.entries[k.Hash()] = &record{key: k, acc: acc}
	f.order = append(f.order, k.Hash())
	if f.observer != nil {
		f.observer.OnInserted(k.Hash())
	}
}

// #endregion interactions

// #region effective-coherence

// EffectiveCoherence blends an instantaneous sensor reading with the
// context's accumulated trust (spec.md §4.3). Pure read: never inserts,
// never evicts. A miss is treated as if a fresh cold accumulator existed.
func (f *CoherenceField) EffectiveCoherence(instant float64, k contextkey.Key, p personality.Personality, t uint64) float64 {
	instant = clamp01(instant)

	var ctxCoherence float64
	if rec, ok := f.entries[k.Hash()]; ok {
		_, ctxCoherence = rec.acc.Read(p, t)
	} else {
		ctxCoherence = coherence.NewCold(p, t).Coherence
	}

	if ctxCoherence < familiarThreshold {
		return min(instant, ctxCoherence)
	}
	return 0.3*instant + 0.7*ctxCoherence
}

// #endregion effective-coherence

// #region enumeration

// AllEntries returns every tracked (Key, Accumulator) pair in insertion
// order.
func (f *CoherenceField) AllEntries() []Entry {
	out := make([]Entry, 0, len(f.order))
	for _, h := range f.order {
		rec, ok := f.entries[h]
		if !ok {
			continue
		}
		out = append(out, Entry{Key: rec.key, Accumulator: rec.acc})
	}
	return out
}

// #endregion enumeration

// #region internals

func (f *CoherenceField) lookupOrInsert(k contextkey.Key, p personality.Personality, t uint64) *record {
	if rec, ok := f.entries[k.Hash()]; ok {
		return rec
	}

	if len(f.entries) >= f.capacity {
		f.evictOne()
	}

	rec := &record{key: k, acc: coherence.NewCold(p, t)}
	f.entries[k.Hash()] = rec
	f.order = append(f.order, k.Hash())
	if f.observer != nil {
		f.observer.OnInserted(k.Hash())
	}
	return rec
}

// evictOne removes the least-recently-updated entry, tie-broken by lowest
// coherence, tie-broken again by lowest hash for full determinism (Open
// Question (b): LRU tie-breaking is pinned here, not stated in spec.md).
func (f *CoherenceField) evictOne() {
	var victim uint64
	found := false
	for h, rec := range f.entries {
		if !found {
			victim, found = h, true
			continue
		}
		cur := f.entries[victim]
		switch {
		case rec.acc.LastTick < cur.acc.LastTick:
			victim = h
		case rec.acc.LastTick == cur.acc.LastTick && rec.acc.Coherence < cur.acc.Coherence:
			victim = h
		case rec.acc.LastTick == cur.acc.LastTick && rec.acc.Coherence == cur.acc.Coherence && h < victim:
			victim = h
		}
	}
	if !found {
		return
	}
	evicted := f.entries[victim]
	delete(f.entries, victim)
	f.order = removeHash(f.order, victim)
	if f.observer != nil {
		f.observer.OnEvicted(victim, evicted.acc)
	}
}

func removeHash(order []uint64, h uint64) []uint64 {
	for i, v := range order {
		if v == h {
			return append(order[:i], order[i+1:]...)
		}
	}
	return order
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func min(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

// #endregion internals
