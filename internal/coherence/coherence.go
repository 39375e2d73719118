// Package coherence implements the per-context trust accumulator: an
// earned floor with asymmetric decay (spec.md §4.2).
package coherence

import "github.com/danielpatrickdp/trustfield/internal/personality"

// #region constants

// The min-gate threshold is not this package's concern (it is
// field.familiarThreshold, part of field's
// blend rule) but the passive-decay rate constant below is part of the
// determinism contract and lives here next to the state it decays.
const passiveDecayBase = 0.001

// #endregion constants

// #region types

// Accumulator is the per-context trust record. Invariants (checked by
// construction and every transition): 0 <= floor <= coherence <= 1;
// floor is monotone non-decreasing; positive_count is monotone.
type Accumulator struct {
	Coherence      float64
	Floor          float64
	PositiveCount  uint64
	LastTick       uint64
}

// #endregion types

// #region constructor

// NewCold creates a freshly observed accumulator per spec.md §4.3's
// on-miss initialisation rule: coherence = 0.1*curiosity_drive, floor = 0.
func NewCold(p personality.Personality, tick uint64) Accumulator {
	return Accumulator{
		Coherence: 0.1 * p.CuriosityDrive(),
		Floor:     0,
		LastTick:  tick,
	}
}

// #endregion constructor

// #region positive

// Positive applies a positive interaction at tick t. alone halves the base
// delta (passive presence earns less).
func (a Accumulator) Positive(p personality.Personality, t uint64, alone bool) Accumulator {
	a = a.decayTo(p, t)

	delta := 0.02 + 0.08*p.CuriosityDrive()
	if alone {
		delta *= 0.5
	}

	newCoherence := a.Coherence + delta*(1-a.Coherence)

	var newFloor float64
	if newCoherence >= 0.6 {
		newFloor = max(a.Floor, newCoherence-0.1)
	} else {
		newFloor = max(a.Floor, newCoherence*0.5)
	}

	a.Coherence = clamp01(newCoherence)
	a.Floor = clamp01(newFloor)
	a.PositiveCount++
	a.LastTick = t
	return a
}

// #endregion positive

// #region negative

// Negative applies a negative interaction at tick t. Decay is bounded
// below by the earned floor — trust never falls below what was earned.
func (a Accumulator) Negative(p personality.Personality, t uint64) Accumulator {
	a = a.decayTo(p, t)

	drop := 0.10 + 0.20*p.StartleSensitivity()
	a.Coherence = max(a.Floor, a.Coherence-drop)
	a.LastTick = t
	return a
}

// #endregion negative

// #region read

// Read applies lazy passive decay for the given tick and returns the
// resulting coherence without mutating LastTick's semantics beyond the
// decay itself (the returned Accumulator carries the decayed state).
func (a Accumulator) Read(p personality.Personality, t uint64) (Accumulator, float64) {
	decayed := a.decayTo(p, t)
	return decayed, decayed.Coherence
}

// #endregion read

// #region decay

// decayTo applies passive decay for elapsed ticks since LastTick. kappa =
// 0.001*(1-recovery_speed); higher recovery_speed slows decay.
func (a Accumulator) decayTo(p personality.Personality, t uint64) Accumulator {
	if t <= a.LastTick {
		return a
	}
	elapsed := t - a.LastTick
	kappa := passiveDecayBase * (1 - p.RecoverySpeed())
	a.Coherence = max(a.Floor, a.Coherence-kappa*float64(elapsed))
	a.LastTick = t
	return a
}

// #endregion decay

// #region helpers

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

func max(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

// #endregion helpers
