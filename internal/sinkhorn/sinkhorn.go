// Package sinkhorn projects a non-negative square matrix onto the Birkhoff
// polytope (doubly stochastic matrices) via iterative row/column
// normalisation (spec.md §4.7).
package sinkhorn

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// #region config

// Config holds the iteration limits for Project.
type Config struct {
	MaxIterations int
	Tolerance     float64
}

// DefaultConfig returns the spec-pinned defaults: 100 iterations, 1e-6
// tolerance.
func DefaultConfig() Config {
	return Config{MaxIterations: 100, Tolerance: 1e-6}
}

// #endregion config

// #region result

// Result reports whether Project converged and how many iterations it took.
type Result struct {
	Converged  bool
	Iterations int
}

// #endregion result

// #region project

// Project mutates m in place, alternately row- and column-normalising until
// every row/column sum (excluding all-zero rows/columns, which are left as
// zeros and do not block convergence) is within cfg.Tolerance of 1, or
// cfg.MaxIterations is reached. On non-convergence the partially normalised
// matrix is retained.
//
// Precondition: m must be square. A non-square m is caller misuse, not a
// finite-input domain violation, so Project panics rather than clamping —
// the same contract gonum's own mat operations use for dimension mismatch.
func Project(m *mat.Dense, cfg Config) Result {
	r, c := m.Dims()
	if r != c {
		panic("sinkhorn: matrix must be square")
	}
	if cfg.MaxIterations <= 0 {
		cfg.MaxIterations = 100
	}
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = 1e-6
	}

	n := r
	for it := 1; it <= cfg.MaxIterations; it++ {
		normaliseRows(m, n)
		normaliseCols(m, n)

		if maxDeviation(m, n) <= cfg.Tolerance {
			return Result{Converged: true, Iterations: it}
		}
	}
	return Result{Converged: false, Iterations: cfg.MaxIterations}
}

// #endregion project

// #region normalisation

func normaliseRows(m *mat.Dense, n int) {
	for i := 0; i < n; i++ {
		row := m.RawRowView(i)
		sum := 0.0
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue // all-zero row is left as zeros; maxDeviation skips it and Result does not report it
		}
		for j := range row {
			row[j] /= sum
		}
	}
}

func normaliseCols(m *mat.Dense, n int) {
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += m.At(i, j)
		}
		if sum == 0 {
			continue
		}
		for i := 0; i < n; i++ {
			m.Set(i, j, m.At(i, j)/sum)
		}
	}
}

// maxDeviation returns the largest absolute deviation of any non-zero
// row/column sum from 1.
func maxDeviation(m *mat.Dense, n int) float64 {
	maxDev := 0.0
	for i := 0; i < n; i++ {
		sum := 0.0
		row := m.RawRowView(i)
		for _, v := range row {
			sum += v
		}
		if sum == 0 {
			continue
		}
		if dev := math.Abs(sum - 1); dev > maxDev {
			maxDev = dev
		}
	}
	for j := 0; j < n; j++ {
		sum := 0.0
		for i := 0; i < n; i++ {
			sum += m.At(i, j)
		}
		if sum == 0 {
			continue
		}
		if dev := math.Abs(sum - 1); dev > maxDev {
			maxDev = dev
		}
	}
	return maxDev
}

// #endregion normalisation
