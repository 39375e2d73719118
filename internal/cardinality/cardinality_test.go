package cardinality

import (
	"testing"

	"github.com/danielpatrickdp/trustfield/internal/coherence"
	"github.com/danielpatrickdp/trustfield/internal/contextkey"
	"github.com/danielpatrickdp/trustfield/internal/feature"
	"github.com/danielpatrickdp/trustfield/internal/personality"
)

func key(vals ...float64) contextkey.Key {
	return contextkey.New(feature.New(vals))
}

func TestMergeAccumulatorsTakesMinCoherenceSumCountMaxTick(t *testing.T) {
	a := coherence.Accumulator{Coherence: 0.8, Floor: 0.5, PositiveCount: 3, LastTick: 10}
	b := coherence.Accumulator{Coherence: 0.3, Floor: 0.6, PositiveCount: 5, LastTick: 20}

	merged := MergeAccumulators(a, b)
	if merged.Coherence != 0.3 {
		t.Fatalf("expected coherence = min(0.8,0.3) = 0.3, got %v", merged.Coherence)
	}
	if merged.Floor != 0.5 {
		t.Fatalf("expected floor = min(0.5,0.6) = 0.5, got %v", merged.Floor)
	}
	if merged.PositiveCount != 8 {
		t.Fatalf("expected positive count = 3+5 = 8, got %v", merged.PositiveCount)
	}
	if merged.LastTick != 20 {
		t.Fatalf("expected last tick = max(10,20) = 20, got %v", merged.LastTick)
	}
}

func TestMergeAccumulatorsCommutative(t *testing.T) {
	a := coherence.Accumulator{Coherence: 0.8, Floor: 0.5, PositiveCount: 3, LastTick: 10}
	b := coherence.Accumulator{Coherence: 0.3, Floor: 0.6, PositiveCount: 5, LastTick: 20}

	ab := MergeAccumulators(a, b)
	ba := MergeAccumulators(b, a)
	if ab != ba {
		t.Fatalf("expected MergeAccumulators to be commutative, got %+v vs %+v", ab, ba)
	}
}

func TestUnseenContextReadsZero(t *testing.T) {
	m := New(DefaultConfig())
	k := key(0.5, 0.5, 0.5)
	if got := m.ContextCoherence(k); got != 0 {
		t.Fatalf("expected 0 coherence for unseen context, got %v", got)
	}
	if got := m.ContextInteractionCount(k); got != 0 {
		t.Fatalf("expected 0 interaction count for unseen context, got %v", got)
	}
}

func TestPositiveInteractionAlwaysUpdatesTier1(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 1000 // keep Tier 2 inactive for this test
	m := New(cfg)
	p := personality.New()
	k := key(0.9, 0.1, 0.1)

	m.PositiveInteraction(k, p, 1, false)
	if m.Tier1ClassCount() != 1 {
		t.Fatalf("expected exactly one Tier 1 class after first report, got %d", m.Tier1ClassCount())
	}
	if got := m.ContextCoherence(k); got <= 0 {
		t.Fatalf("expected positive coherence after a positive interaction, got %v", got)
	}
	if m.Tier2EntryCount() != 0 {
		t.Fatalf("expected Tier 2 to remain inactive below the promotion threshold, got %d entries", m.Tier2EntryCount())
	}
}

func TestTier2PromotesAfterThreshold(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 3
	m := New(cfg)
	p := personality.New()
	k := key(0.9, 0.1, 0.1)

	for i := uint64(1); i <= 3; i++ {
		m.PositiveInteraction(k, p, i, false)
	}
	if m.Tier2EntryCount() != 1 {
		t.Fatalf("expected the reporting context to be promoted into Tier 2 once the threshold is met, got %d entries", m.Tier2EntryCount())
	}
}

func TestTier2FineEntryDivergesFromCoarseClass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 1
	// Mask out every dimension so every context lands in the same Tier 1
	// class, isolating the divergence to the Tier 2 fine entries.
	cfg.Tier1FeatureMask = 0
	m := New(cfg)
	p := personality.New()

	warm := key(0.9, 0.1, 0.1)
	cold := key(0.1, 0.9, 0.1)

	m.PositiveInteraction(warm, p, 1, false)
	m.PositiveInteraction(warm, p, 2, false)
	m.PositiveInteraction(warm, p, 3, false)
	m.PositiveInteraction(cold, p, 4, false)

	warmCoherence := m.ContextCoherence(warm)
	coldCoherence := m.ContextCoherence(cold)
	if warmCoherence <= coldCoherence {
		t.Fatalf("expected the repeatedly reinforced context to out-earn the once-touched one sharing its coarse class: warm=%v cold=%v", warmCoherence, coldCoherence)
	}
}

func TestNegativeInteractionUpdatesActiveTier2Entry(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 1
	m := New(cfg)
	p := personality.New()
	k := key(0.9, 0.1, 0.1)

	m.PositiveInteraction(k, p, 1, false)
	before := m.ContextCoherence(k)
	m.NegativeInteraction(k, p, 2)
	after := m.ContextCoherence(k)
	if after >= before {
		t.Fatalf("expected coherence to drop after a negative interaction, before=%v after=%v", before, after)
	}
}

func TestTier1CapacityEvictsLRUClass(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tier1Capacity = 1
	m := New(cfg)
	p := personality.New()

	first := key(1, 0, 0)
	second := key(0, 1, 0)

	m.PositiveInteraction(first, p, 1, false)
	m.PositiveInteraction(second, p, 2, false)

	if m.Tier1ClassCount() != 1 {
		t.Fatalf("expected Tier 1 capacity to bound class count to 1, got %d", m.Tier1ClassCount())
	}
	if got := m.ContextCoherence(first); got != 0 {
		t.Fatalf("expected the evicted class's context to read back to 0, got %v", got)
	}
}

func TestTier2CapacityEvictsWeakestAndContributesBack(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 1
	cfg.Tier1FeatureMask = 0 // force every context into one coarse class
	cfg.Tier2Capacity = 1
	cfg.EvictionContributionWeight = 1.0
	m := New(cfg)
	p := personality.New()

	weak := key(0.1, 0.1, 0.1)
	strong := key(0.9, 0.9, 0.9)
	// probe is never interacted with, so it has no fine entry and reads the
	// shared coarse class accumulator directly.
	probe := key(0.5, 0.5, 0.5)

	m.PositiveInteraction(weak, p, 1, false)
	before := m.ContextCoherence(weak)
	classBefore := m.ContextCoherence(probe)

	m.PositiveInteraction(strong, p, 2, false)

	if m.Tier2EntryCount() != 1 {
		t.Fatalf("expected Tier 2 capacity to bound fine entries to 1, got %d", m.Tier2EntryCount())
	}
	// The weak entry should have been evicted (no longer trackable as its own
	// fine entry) and its coherence folded back into the shared coarse class,
	// which the probe context reads through. The strong context reads its own
	// fresh fine entry instead.
	if got := m.ContextCoherence(probe); got < classBefore+before {
		t.Fatalf("expected the coarse class to have absorbed the evicted entry's coherence, class=%v class_before=%v evicted_before=%v", got, classBefore, before)
	}
}

func TestEvictStaleTier2EntriesRemovesLowCountStaleEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 1
	cfg.EvictionMinCount = 5
	cfg.EvictionStalenessTicks = 10
	m := New(cfg)
	p := personality.New()
	k := key(0.9, 0.1, 0.1)

	m.PositiveInteraction(k, p, 1, false)
	if m.Tier2EntryCount() != 1 {
		t.Fatalf("expected one Tier 2 entry after promotion, got %d", m.Tier2EntryCount())
	}

	m.EvictStaleTier2Entries(1000) // far beyond EvictionStalenessTicks, count still below EvictionMinCount
	if m.Tier2EntryCount() != 0 {
		t.Fatalf("expected the stale, low-count entry to be evicted, got %d entries", m.Tier2EntryCount())
	}
}

func TestEvictStaleTier2EntriesKeepsActiveEntries(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PromotionThreshold = 1
	cfg.EvictionMinCount = 1
	cfg.EvictionStalenessTicks = 1000
	m := New(cfg)
	p := personality.New()
	k := key(0.9, 0.1, 0.1)

	m.PositiveInteraction(k, p, 1, false)
	m.EvictStaleTier2Entries(2) // well within staleness window
	if m.Tier2EntryCount() != 1 {
		t.Fatalf("expected a fresh entry to survive staleness eviction, got %d entries", m.Tier2EntryCount())
	}
}

func TestEffectiveCoherenceGatesOnLowContext(t *testing.T) {
	m := New(DefaultConfig())
	k := key(0.5, 0.5, 0.5)
	// Unseen context reads coherence 0, so the gated blend must not let a
	// high instantaneous reading through.
	if got := m.EffectiveCoherence(0.95, k); got != 0 {
		t.Fatalf("expected effective coherence to be gated to the low context reading, got %v", got)
	}
}
