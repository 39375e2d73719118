// Package telemetry provides an optional zerolog-backed field.Observer.
// Attaching one is never required: the core packages never import this
// package, matching spec.md §6's "no CLI, no environment variables, no
// network" contract for the library surface itself.
package telemetry

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/danielpatrickdp/trustfield/internal/coherence"
)

// #region observer

// Observer logs field mutation events via zerolog, mirroring the "record
// what happened and why" intent of the teacher's provenance log without a
// database underneath it.
type Observer struct {
	log zerolog.Logger
}

// DefaultObserver returns an Observer writing structured JSON to stderr at
// info level.
func DefaultObserver() Observer {
	return Observer{log: zerolog.New(os.Stderr).With().Timestamp().Logger()}
}

// NewObserver wraps a caller-supplied logger, e.g. one already configured
// with a console writer or a file sink.
func NewObserver(logger zerolog.Logger) Observer {
	return Observer{log: logger}
}

// OnEvicted logs an LRU eviction with the accumulator state it lost.
func (o Observer) OnEvicted(hash uint64, last coherence.Accumulator) {
	o.log.Info().
		Uint64("hash", hash).
		Float64("coherence", last.Coherence).
		Float64("floor", last.Floor).
		Uint64("positive_count", last.PositiveCount).
		Uint64("last_tick", last.LastTick).
		Msg("context evicted")
}

// OnInserted logs the first sighting of a context.
func (o Observer) OnInserted(hash uint64) {
	o.log.Info().Uint64("hash", hash).Msg("context inserted")
}

// PhaseTransition logs a social-phase change; not part of field.Observer,
// called directly by callers that drive socialphase.Classify.
func (o Observer) PhaseTransition(previous, next string, coherenceVal, tension float64) {
	o.log.Info().
		Str("previous_phase", previous).
		Str("next_phase", next).
		Float64("coherence", coherenceVal).
		Float64("tension", tension).
		Msg("phase transition")
}

// BoundaryRecomputed logs a min-cut recompute's headline numbers.
func (o Observer) BoundaryRecomputed(cutValue float64, sizeS, sizeComplement int) {
	o.log.Info().
		Float64("cut_value", cutValue).
		Int("size_s", sizeS).
		Int("size_complement", sizeComplement).
		Msg("boundary recomputed")
}

// #endregion observer
