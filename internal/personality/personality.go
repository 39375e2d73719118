// Package personality holds the bounded scalar modulators applied to
// coherence deltas.
package personality

// #region types

// Personality holds three [0,1] modulators. Every setter clamps; the zero
// value is not a valid Personality — use New for the (0.5,0.5,0.5) default.
type Personality struct {
	curiosityDrive     float64
	startleSensitivity float64
	recoverySpeed      float64
}

// #endregion types

// #region constructor

// New returns the default personality: all three modulators at 0.5.
func New() Personality {
	return Personality{curiosityDrive: 0.5, startleSensitivity: 0.5, recoverySpeed: 0.5}
}

// NewWith builds a Personality from explicit values, clamping each to
// [0,1].
func NewWith(curiosityDrive, startleSensitivity, recoverySpeed float64) Personality {
	return Personality{
		curiosityDrive:     clamp01(curiosityDrive),
		startleSensitivity: clamp01(startleSensitivity),
		recoverySpeed:      clamp01(recoverySpeed),
	}
}

// #endregion constructor

// #region accessors

func (p Personality) CuriosityDrive() float64     { return p.curiosityDrive }
func (p Personality) StartleSensitivity() float64 { return p.startleSensitivity }
func (p Personality) RecoverySpeed() float64      { return p.recoverySpeed }

// #endregion accessors

// #region setters

// WithCuriosityDrive returns a copy with curiosity_drive set (clamped).
func (p Personality) WithCuriosityDrive(v float64) Personality {
	p.curiosityDrive = clamp01(v)
	return p
}

// WithStartleSensitivity returns a copy with startle_sensitivity set (clamped).
func (p Personality) WithStartleSensitivity(v float64) Personality {
	p.startleSensitivity = clamp01(v)
	return p
}

// WithRecoverySpeed returns a copy with recovery_speed set (clamped).
func (p Personality) WithRecoverySpeed(v float64) Personality {
	p.recoverySpeed = clamp01(v)
	return p
}

// #endregion setters

// #region helpers

func clamp01(x float64) float64 {
	if x != x {
		return 0
	}
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}

// #endregion helpers
