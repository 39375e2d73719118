// Package config loads TrustConfig from an optional YAML file, defaults,
// and environment variables via viper. Used only by cmd/trustctl; the core
// packages never import this and are always constructed with explicit,
// caller-supplied values (spec.md §6: "No CLI, no environment variables,
// no network" for the library surface itself).
package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/spf13/viper"
)

// #region types

// TrustConfig holds the construction-time tunables a caller would
// otherwise have to hardcode: field capacity, default personality, the
// social-phase hysteresis space, and the Sinkhorn iteration limits.
type TrustConfig struct {
	Capacity    int               `mapstructure:"capacity"`
	Personality PersonalityConfig `mapstructure:"personality"`
	Phase       PhaseSpaceConfig  `mapstructure:"phase_space"`
	Sinkhorn    SinkhornConfig    `mapstructure:"sinkhorn"`
}

// PersonalityConfig is the mapstructure-tagged mirror of
// personality.Personality's three scalars.
type PersonalityConfig struct {
	CuriosityDrive     float64 `mapstructure:"curiosity_drive"`
	StartleSensitivity float64 `mapstructure:"startle_sensitivity"`
	RecoverySpeed      float64 `mapstructure:"recovery_speed"`
}

// PhaseSpaceConfig is the mapstructure-tagged mirror of
// socialphase.Space's four Schmitt thresholds.
type PhaseSpaceConfig struct {
	CoherenceLo float64 `mapstructure:"coherence_lo"`
	CoherenceHi float64 `mapstructure:"coherence_hi"`
	TensionLo   float64 `mapstructure:"tension_lo"`
	TensionHi   float64 `mapstructure:"tension_hi"`
}

// SinkhornConfig is the mapstructure-tagged mirror of sinkhorn.Config.
type SinkhornConfig struct {
	MaxIterations int     `mapstructure:"max_iterations"`
	Tolerance     float64 `mapstructure:"tolerance"`
}

// #endregion types

// #region defaults

// Default returns the spec-pinned defaults: CAP=64, personality
// (0.5,0.5,0.5), the default hysteresis space, and Sinkhorn's
// (100, 1e-6).
func Default() TrustConfig {
	return TrustConfig{
		Capacity: 64,
		Personality: PersonalityConfig{
			CuriosityDrive:     0.5,
			StartleSensitivity: 0.5,
			RecoverySpeed:      0.5,
		},
		Phase: PhaseSpaceConfig{
			CoherenceLo: 0.35,
			CoherenceHi: 0.55,
			TensionLo:   0.40,
			TensionHi:   0.60,
		},
		Sinkhorn: SinkhornConfig{
			MaxIterations: 100,
			Tolerance:     1e-6,
		},
	}
}

// #endregion defaults

// #region load

// Load reads TrustConfig from configPath if non-empty, falling back to
// defaults merged with any TRUSTFIELD_-prefixed environment overrides. A
// missing config file is not an error.
func Load(configPath string) (TrustConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("TRUSTFIELD")
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("trustfield")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	if err := v.ReadInConfig(); err != nil {
		// Search-path lookup reports ConfigFileNotFoundError; an explicit
		// configPath that does not exist surfaces as fs.ErrNotExist.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return TrustConfig{}, fmt.Errorf("read trustfield config: %w", err)
		}
	}

	var cfg TrustConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return TrustConfig{}, fmt.Errorf("unmarshal trustfield config: %w", err)
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("capacity", d.Capacity)
	v.SetDefault("personality.curiosity_drive", d.Personality.CuriosityDrive)
	v.SetDefault("personality.startle_sensitivity", d.Personality.StartleSensitivity)
	v.SetDefault("personality.recovery_speed", d.Personality.RecoverySpeed)
	v.SetDefault("phase_space.coherence_lo", d.Phase.CoherenceLo)
	v.SetDefault("phase_space.coherence_hi", d.Phase.CoherenceHi)
	v.SetDefault("phase_space.tension_lo", d.Phase.TensionLo)
	v.SetDefault("phase_space.tension_hi", d.Phase.TensionHi)
	v.SetDefault("sinkhorn.max_iterations", d.Sinkhorn.MaxIterations)
	v.SetDefault("sinkhorn.tolerance", d.Sinkhorn.Tolerance)
}

// #endregion load

// #region conversions

// Values unpacks the three scalars in personality.NewWith's argument order.
// Kept here rather than in the personality package to avoid a config ->
// personality import for something only the CLI needs.
func (c PersonalityConfig) Values() (curiosityDrive, startleSensitivity, recoverySpeed float64) {
	return c.CuriosityDrive, c.StartleSensitivity, c.RecoverySpeed
}

// #endregion conversions
