// Package cardinality implements a two-tier, bounded-cardinality context
// map for deployments where the context key space is too large for
// field.CoherenceField's flat map. New contexts land in a bounded,
// LRU-evicted Tier 1 of coarse classes (grouped by a caller-chosen subset
// of feature dimensions); once a class accumulates enough positive
// interactions, its contexts get protected Tier 2 fine entries. A fine entry
// leaves Tier 2 when it is the weakest entry of a full class, when
// EvictStaleTier2Entries finds it stale with a low positive count, or when
// its whole Tier 1 class is evicted.
package cardinality

import (
	"github.com/danielpatrickdp/trustfield/internal/coherence"
	"github.com/danielpatrickdp/trustfield/internal/contextkey"
	"github.com/danielpatrickdp/trustfield/internal/personality"
)

// #region config

// Config holds the tunables governing Tier 1/Tier 2 promotion, demotion,
// and coarse-key derivation.
type Config struct {
	// PromotionThreshold is the positive-interaction count at which a Tier 1
	// class activates its Tier 2 fine entries. Default: 20.
	PromotionThreshold uint64

	// EvictionStalenessTicks is how long a Tier 2 entry may go unvisited
	// before it becomes eligible for eviction. Default: 50000.
	EvictionStalenessTicks uint64

	// EvictionMinCount is the positive-interaction count below which a Tier
	// 2 entry may be evicted for staleness. Default: 3.
	EvictionMinCount uint64

	// Tier1FeatureMask selects which feature dimensions form the coarse
	// Tier 1 key; bit i set keeps dimension i, bit i clear zeroes it out
	// before hashing. Default: every bit set (every dimension contributes to
	// the coarse key).
	Tier1FeatureMask uint32

	// EvictionContributionWeight damps how much of an evicted Tier 2
	// entry's coherence is folded back into its Tier 1 parent. Default: 0.1.
	EvictionContributionWeight float64

	// Tier1Capacity bounds the number of concurrently tracked Tier 1
	// classes; the LRU class (by last interaction tick) is evicted on
	// overflow.
	Tier1Capacity int

	// Tier2Capacity bounds the number of fine entries per Tier 1 class; the
	// weakest entry (lowest coherence) is evicted on overflow.
	Tier2Capacity int
}

// DefaultConfig returns the pack-pinned defaults.
func DefaultConfig() Config {
	return Config{
		PromotionThreshold:         20,
		EvictionStalenessTicks:     50_000,
		EvictionMinCount:           3,
		Tier1FeatureMask:           0xFFFF_FFFF,
		EvictionContributionWeight: 0.1,
		Tier1Capacity:              64,
		Tier2Capacity:              16,
	}
}

// #endregion config

// #region merge

// MergeAccumulators combines two accumulators for the same coarse class,
// asymmetrically: coherence and floor take the minimum of the sources (a
// merge can never grant unearned familiarity), while positive_count sums
// and last_tick takes the maximum (relational history is never erased).
// Associative and commutative.
func MergeAccumulators(a, b coherence.Accumulator) coherence.Accumulator {
	return coherence.Accumulator{
		Coherence:     minF(a.Coherence, b.Coherence),
		Floor:         minF(a.Floor, b.Floor),
		PositiveCount: a.PositiveCount + b.PositiveCount,
		LastTick:      maxU(a.LastTick, b.LastTick),
	}
}

// #endregion merge

// #region tier1class

type tier2Entry struct {
	acc coherence.Accumulator
}

type tier1Class struct {
	accumulator coherence.Accumulator
	tier2Active bool
	tier2       map[uint64]*tier2Entry
}

func newTier1Class(baseline coherence.Accumulator) *tier1Class {
	return &tier1Class{accumulator: baseline, tier2: make(map[uint64]*tier2Entry)}
}

// #endregion tier1class

// #region map

// TieredContextMap is the two-tier, cardinality-bounded alternative to
// field.CoherenceField for context spaces too large for a flat map to
// bound cheaply.
type TieredContextMap struct {
	cfg     Config
	classes map[uint64]*tier1Class
	order   []uint64 // Tier 1 insertion order, oldest first
}

// New creates an empty tiered context map.
func New(cfg Config) *TieredContextMap {
	if cfg.Tier1Capacity < 1 {
		cfg.Tier1Capacity = 1
	}
	if cfg.Tier2Capacity < 1 {
		cfg.Tier2Capacity = 1
	}
	return &TieredContextMap{cfg: cfg, classes: make(map[uint64]*tier1Class)}
}

// Tier1ClassCount returns the number of active Tier 1 coarse classes.
func (m *TieredContextMap) Tier1ClassCount() int { return len(m.classes) }

// Tier2EntryCount returns the total number of fine Tier 2 entries across
// all classes.
func (m *TieredContextMap) Tier2EntryCount() int {
	n := 0
	for _, cls := range m.classes {
		n += len(cls.tier2)
	}
	return n
}

// #endregion map

// #region reads

// ContextCoherence returns the raw accumulated coherence for k (0 if
// unseen). Tier 2 is checked first, falling through to the Tier 1 coarse
// accumulator.
func (m *TieredContextMap) ContextCoherence(k contextkey.Key) float64 {
	cls, ok := m.classes[tier1Key(k, m.cfg.Tier1FeatureMask)]
	if !ok {
		return 0
	}
	if cls.tier2Active {
		if fine, ok := cls.tier2[k.Hash()]; ok {
			return fine.acc.Coherence
		}
	}
	return cls.accumulator.Coherence
}

// ContextInteractionCount returns the positive-interaction count for k (0
// if unseen), following the same Tier 2-first lookup as ContextCoherence.
func (m *TieredContextMap) ContextInteractionCount(k contextkey.Key) uint64 {
	cls, ok := m.classes[tier1Key(k, m.cfg.Tier1FeatureMask)]
	if !ok {
		return 0
	}
	if cls.tier2Active {
		if fine, ok := cls.tier2[k.Hash()]; ok {
			return fine.acc.PositiveCount
		}
	}
	return cls.accumulator.PositiveCount
}

// EffectiveCoherence blends an instantaneous reading with the context's
// accumulated trust, using the same min-gate/familiar-arm rule as
// field.CoherenceField.EffectiveCoherence.
func (m *TieredContextMap) EffectiveCoherence(instant float64, k contextkey.Key) float64 {
	instant = clamp01(instant)
	ctx := m.ContextCoherence(k)
	if ctx < 0.3 {
		return minF(instant, ctx)
	}
	return clamp01(0.3*instant + 0.7*ctx)
}

// #endregion reads

// #region interactions

// PositiveInteraction always updates the Tier 1 coarse accumulator, so
// coarse relational history is never silently lost even while Tier 2 is
// inactive. Once the coarse class's positive count reaches
// PromotionThreshold, Tier 2 activates and fine entries begin tracking
// individual contexts within the class, evicting the weakest fine entry to
// make room when full.
func (m *TieredContextMap) PositiveInteraction(k contextkey.Key, p personality.Personality, tick uint64, alone bool) {
	t1k := tier1Key(k, m.cfg.Tier1FeatureMask)
	cls := m.ensureClass(t1k, p, tick)

	cls.accumulator = cls.accumulator.Positive(p, tick, alone)

	if !cls.tier2Active && cls.accumulator.PositiveCount >= m.cfg.PromotionThreshold {
		cls.tier2Active = true
	}

	if !cls.tier2Active {
		return
	}

	if fine, ok := cls.tier2[k.Hash()]; ok {
		fine.acc = fine.acc.Positive(p, tick, alone)
		return
	}

	if len(cls.tier2) >= m.cfg.Tier2Capacity {
		m.evictWeakestTier2(cls)
	}
	fresh := coherence.NewCold(p, tick).Positive(p, tick, alone)
	cls.tier2[k.Hash()] = &tier2Entry{acc: fresh}
}

// NegativeInteraction always updates the Tier 1 coarse accumulator, and the
// Tier 2 fine entry too if one is already tracking k.
func (m *TieredContextMap) NegativeInteraction(k contextkey.Key, p personality.Personality, tick uint64) {
	t1k := tier1Key(k, m.cfg.Tier1FeatureMask)
	cls := m.ensureClass(t1k, p, tick)

	cls.accumulator = cls.accumulator.Negative(p, tick)

	if cls.tier2Active {
		if fine, ok := cls.tier2[k.Hash()]; ok {
			fine.acc = fine.acc.Negative(p, tick)
		}
	}
}

// #endregion interactions

// #region staleness

// EvictStaleTier2Entries removes Tier 2 entries whose positive count is
// below EvictionMinCount and which have not been seen in
// EvictionStalenessTicks, folding a damped fraction of their coherence back
// into the parent Tier 1 accumulator before dropping them. Call
// periodically from the caller's decay/consolidation pass; not invoked
// automatically by the interaction methods.
func (m *TieredContextMap) EvictStaleTier2Entries(currentTick uint64) {
	for _, cls := range m.classes {
		var stale []uint64
		for h, fine := range cls.tier2 {
			if fine.acc.PositiveCount < m.cfg.EvictionMinCount &&
				staleness(currentTick, fine.acc.LastTick) > m.cfg.EvictionStalenessTicks {
				stale = append(stale, h)
			}
		}
		for _, h := range stale {
			m.contributeAndRemove(cls, h)
		}
	}
}

func staleness(current, last uint64) uint64 {
	if current <= last {
		return 0
	}
	return current - last
}

// #endregion staleness

// #region internals

func (m *TieredContextMap) ensureClass(t1k uint64, p personality.Personality, tick uint64) *tier1Class {
	if cls, ok := m.classes[t1k]; ok {
		return cls
	}
	if len(m.classes) >= m.cfg.Tier1Capacity {
		m.evictLRUTier1Class()
	}
	cls := newTier1Class(coherence.NewCold(p, tick))
	m.classes[t1k] = cls
	m.order = append(m.order, t1k)
	return cls
}

func (m *TieredContextMap) evictLRUTier1Class() {
	if len(m.order) == 0 {
		return
	}
	// Smallest last interaction tick loses; ties go to the earliest inserted.
	lru := 0
	for i, h := range m.order {
		if m.classes[h].accumulator.LastTick < m.classes[m.order[lru]].accumulator.LastTick {
			lru = i
		}
	}
	victim := m.order[lru]
	m.order = append(m.order[:lru], m.order[lru+1:]...)
	delete(m.classes, victim)
}

func (m *TieredContextMap) evictWeakestTier2(cls *tier1Class) {
	var weakest uint64
	found := false
	for h, fine := range cls.tier2 {
		if !found || fine.acc.Coherence < cls.tier2[weakest].acc.Coherence {
			weakest, found = h, true
		}
	}
	if found {
		m.contributeAndRemove(cls, weakest)
	}
}

// contributeAndRemove removes a Tier 2 entry and folds a damped fraction of
// its coherence back into the parent Tier 1 accumulator, so a demoted
// context's history is not simply discarded.
func (m *TieredContextMap) contributeAndRemove(cls *tier1Class, hash uint64) {
	evicted, ok := cls.tier2[hash]
	if !ok {
		return
	}
	delete(cls.tier2, hash)

	contribution := evicted.acc.Coherence * m.cfg.EvictionContributionWeight
	cls.accumulator.Coherence = clamp01(cls.accumulator.Coherence + contribution)
}

// tier1Key computes the coarse Tier 1 key: FNV-1a-64 over the quantised
// feature components, with every dimension not selected by mask zeroed out
// before hashing.
func tier1Key(k contextkey.Key, mask uint32) uint64 {
	const offset64 = 14695981039346656037
	const prime64 = 1099511628211

	vec := k.Vector()
	h := uint64(offset64)
	for i := 0; i < vec.Len(); i++ {
		var v uint64
		if mask&(1<<uint(i)) != 0 {
			v = uint64(clamp01(vec.At(i)) * 65535)
		}
		h ^= v
		h *= prime64
	}
	return h
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

func minF(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func maxU(a, b uint64) uint64 {
	if a > b {
		return a
	}
	return b
}

// #endregion internals
