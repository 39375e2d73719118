// Package mixing extends the flat Sinkhorn projection path with a
// hierarchical, cluster-aware mixer for large context counts: contexts are
// grouped into clusters (typically the two-way split boundary.Partition
// supplies, applied recursively or supplied directly by the caller), mixed
// within each cluster, then corrected by a smaller inter-cluster mix,
// keeping the O(k^2 + sum(cluster_size^2)) cost far below the flat O(n^2)
// path once n grows past FlatThreshold.
package mixing

import (
	"github.com/danielpatrickdp/trustfield/internal/boundary"
	"github.com/danielpatrickdp/trustfield/internal/sinkhorn"
	"gonum.org/v1/gonum/mat"
)

// #region config

// Config holds the mixer's tunables.
type Config struct {
	// FlatThreshold is the active-context count above which SelectStrategy
	// recommends the hierarchical path over the flat one. Default: 50.
	FlatThreshold int

	// SkIterationsIntra/SkIterationsInter bound the Sinkhorn projections
	// used to re-normalise the intra- and inter-cluster mixing matrices.
	// Default: 20 each.
	SkIterationsIntra int
	SkIterationsInter int

	// TransitionBlendTicks is how many ticks a cluster restructure is
	// smoothed over via BlendAlpha before the old structure is dropped.
	// Default: 100.
	TransitionBlendTicks int
}

// DefaultConfig returns the pack-pinned defaults.
func DefaultConfig() Config {
	return Config{FlatThreshold: 50, SkIterationsIntra: 20, SkIterationsInter: 20, TransitionBlendTicks: 100}
}

// #endregion config

// #region strategy

// Strategy selects between the flat Sinkhorn path and this package's
// hierarchical one, purely as a function of how many contexts are active.
type Strategy int

const (
	Flat Strategy = iota
	Hierarchical
)

// SelectStrategy returns Hierarchical once nActive exceeds cfg.FlatThreshold,
// Flat otherwise. The existing sinkhorn.Project path is unmodified either
// way; this only decides which caller uses it.
func SelectStrategy(nActive int, cfg Config) Strategy {
	if nActive > cfg.FlatThreshold {
		return Hierarchical
	}
	return Flat
}

// #endregion strategy

// #region cluster

// Cluster is one coherence cluster: the indices (into the caller's
// coherence/interaction-count slices) it groups, and its intra-cluster
// mixing matrix in raw (caller-set) and Sinkhorn-projected form.
type Cluster struct {
	ID              int
	MemberIndices   []int
	IntraMixRaw     *mat.Dense
	IntraMixProjected *mat.Dense
}

func newCluster(id int, members []int) *Cluster {
	n := len(members)
	raw := identity(n)
	projected := identity(n)
	return &Cluster{ID: id, MemberIndices: members, IntraMixRaw: raw, IntraMixProjected: projected}
}

func identity(n int) *mat.Dense {
	m := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		m.Set(i, i, 1)
	}
	return m
}

// #endregion cluster

// #region mixer

// HierarchicalMixer holds the current cluster structure plus, during a
// transition, the previous structure being blended out.
type HierarchicalMixer struct {
	cfg Config

	clusters       []*Cluster
	interMixRaw    *mat.Dense
	interMixProjected *mat.Dense

	inTransition   bool
	transitionTick int
	oldClusters    []*Cluster
	oldInterMix    *mat.Dense
}

// NewHierarchicalMixer creates a mixer with no clusters yet; call
// UpdateClusters before Apply.
func NewHierarchicalMixer(cfg Config) *HierarchicalMixer {
	if cfg.SkIterationsIntra <= 0 {
		cfg.SkIterationsIntra = 20
	}
	if cfg.SkIterationsInter <= 0 {
		cfg.SkIterationsInter = 20
	}
	return &HierarchicalMixer{cfg: cfg}
}

// UpdateClusters reassigns cluster membership from assignments (one cluster
// index per context, indices into the caller's coherence slice). If the
// mixer already had a cluster structure, the old one is preserved and a
// transition begins so Apply blends smoothly between the two rather than
// jumping discontinuously.
func (m *HierarchicalMixer) UpdateClusters(assignments []int, numClusters int) {
	if len(m.clusters) > 0 {
		m.oldClusters = m.clusters
		m.oldInterMix = m.interMixProjected
		m.inTransition = true
		m.transitionTick = 0
	}

	members := make([][]int, numClusters)
	for idx, c := range assignments {
		if c < 0 || c >= numClusters {
			continue
		}
		members[c] = append(members[c], idx)
	}

	clusters := make([]*Cluster, numClusters)
	for c := 0; c < numClusters; c++ {
		clusters[c] = newCluster(c, members[c])
	}
	m.clusters = clusters
	m.interMixRaw = identity(numClusters)
	m.interMixProjected = identity(numClusters)
}

// UpdateIntraParams sets a cluster's raw intra-cluster mixing matrix; call
// ReprojectAll afterward to re-derive the doubly-stochastic projected form.
func (m *HierarchicalMixer) UpdateIntraParams(clusterID int, raw *mat.Dense) {
	if clusterID < 0 || clusterID >= len(m.clusters) {
		return
	}
	m.clusters[clusterID].IntraMixRaw = raw
}

// UpdateInterParams sets the raw inter-cluster mixing matrix; call
// ReprojectAll afterward.
func (m *HierarchicalMixer) UpdateInterParams(raw *mat.Dense) {
	m.interMixRaw = raw
}

// ReprojectAll re-derives every doubly-stochastic mixing matrix from its raw
// form via sinkhorn.Project, reusing the existing flat projector rather
// than a bespoke one.
func (m *HierarchicalMixer) ReprojectAll() {
	intraCfg := sinkhorn.Config{MaxIterations: m.cfg.SkIterationsIntra, Tolerance: 1e-6}
	for _, c := range m.clusters {
		if len(c.MemberIndices) == 0 {
			continue
		}
		c.IntraMixProjected.CloneFrom(c.IntraMixRaw)
		sinkhorn.Project(c.IntraMixProjected, intraCfg)
	}

	if m.interMixRaw != nil {
		interCfg := sinkhorn.Config{MaxIterations: m.cfg.SkIterationsInter, Tolerance: 1e-6}
		m.interMixProjected.CloneFrom(m.interMixRaw)
		sinkhorn.Project(m.interMixProjected, interCfg)
	}
}

// TickTransition advances a cluster-restructure transition by one tick and
// reports whether it is still in progress. Once the blend completes the old
// structure is dropped.
func (m *HierarchicalMixer) TickTransition() bool {
	if !m.inTransition {
		return false
	}
	m.transitionTick++
	if m.transitionTick >= m.cfg.TransitionBlendTicks {
		m.inTransition = false
		m.oldClusters = nil
		m.oldInterMix = nil
		return false
	}
	return true
}

// Apply runs the five-step hierarchical mix over a copy of coherenceValues
// (the input slice is not modified) and returns the mixed result;
// interactionCounts weights how much of each
// cluster's inter-cluster correction lands on any one member. During a
// transition the old and new cluster structures are both applied and
// linearly blended via BlendAlpha, so a restructure never causes a
// discontinuous jump.
func (m *HierarchicalMixer) Apply(coherenceValues []float64, interactionCounts []uint64) []float64 {
	next := applyCore(m.clusters, m.interMixProjected, coherenceValues, interactionCounts)

	if !m.inTransition || m.oldClusters == nil {
		return next
	}

	prev := applyCore(m.oldClusters, m.oldInterMix, coherenceValues, interactionCounts)
	alpha := BlendAlpha(m.transitionTick, m.cfg.TransitionBlendTicks)

	blended := make([]float64, len(coherenceValues))
	for i := range blended {
		blended[i] = clamp01((1-alpha)*prev[i] + alpha*next[i])
	}
	return blended
}

// applyCore is the five-step mixing kernel, factored out so both the
// current and (during a transition) prior cluster structure can run
// through the identical logic.
func applyCore(clusters []*Cluster, interMix *mat.Dense, coherenceValues []float64, interactionCounts []uint64) []float64 {
	out := append([]float64(nil), coherenceValues...)
	if len(clusters) == 0 {
		return out
	}

	// Step 1: intra-cluster mix, c'_i = H_i . c_i
	mixed := make([][]float64, len(clusters))
	for ci, c := range clusters {
		n := len(c.MemberIndices)
		mixed[ci] = make([]float64, n)
		if n == 0 {
			continue
		}
		for row := 0; row < n; row++ {
			var sum float64
			for col := 0; col < n; col++ {
				sum += c.IntraMixProjected.At(row, col) * out[c.MemberIndices[col]]
			}
			mixed[ci][row] = clamp01(sum)
		}
	}

	// Step 2: cluster summary means
	summary := make([]float64, len(clusters))
	for ci, vals := range mixed {
		if len(vals) == 0 {
			continue
		}
		var sum float64
		for _, v := range vals {
			sum += v
		}
		summary[ci] = sum / float64(len(vals))
	}

	// Step 3: inter-cluster mix, s'_i = sum_k inter_mix[i,k] . s_k
	corrected := make([]float64, len(clusters))
	if interMix != nil {
		k, _ := interMix.Dims()
		for i := 0; i < k && i < len(clusters); i++ {
			var sum float64
			for j := 0; j < k && j < len(clusters); j++ {
				sum += interMix.At(i, j) * summary[j]
			}
			corrected[i] = sum
		}
	} else {
		corrected = summary
	}

	// Steps 4-5: distribute each cluster's correction across its members,
	// weighted by interaction-count share (uniform if all members are
	// still cold), then clamp.
	for ci, c := range clusters {
		n := len(c.MemberIndices)
		if n == 0 {
			continue
		}
		delta := corrected[ci] - summary[ci]

		var totalCount uint64
		for _, idx := range c.MemberIndices {
			if idx < len(interactionCounts) {
				totalCount += interactionCounts[idx]
			}
		}

		for row, idx := range c.MemberIndices {
			var weight float64
			if totalCount == 0 {
				weight = 1.0 / float64(n)
			} else if idx < len(interactionCounts) {
				weight = float64(interactionCounts[idx]) / float64(totalCount)
			}
			out[idx] = clamp01(mixed[ci][row] + delta*weight)
		}
	}

	return out
}

// #endregion mixer

// #region transition

// BlendAlpha returns the linear transition weight for the new cluster
// structure at transitionTick out of blendTicks: 0 at the start, ramping to
// 1 once transitionTick reaches blendTicks, and pinned to 1 if blendTicks
// is 0 (no smoothing configured).
func BlendAlpha(transitionTick, blendTicks int) float64 {
	if blendTicks <= 0 {
		return 1
	}
	alpha := float64(transitionTick) / float64(blendTicks)
	if alpha > 1 {
		return 1
	}
	if alpha < 0 {
		return 0
	}
	return alpha
}

// #endregion transition

// #region wiring

// AssignmentsFromPartition converts a two-way boundary.Partition over
// orderedHashes into a 0/1 cluster-assignment vector suitable for
// UpdateClusters: index i is 0 if orderedHashes[i] is in part.S, 1 if it is
// in part.Complement. Positions not present in either side (a hash that
// isn't currently tracked by the boundary) are left in cluster 0.
func AssignmentsFromPartition(orderedHashes []uint64, part boundary.Partition) []int {
	assignments := make([]int, len(orderedHashes))
	for i, h := range orderedHashes {
		if part.Complement[h] {
			assignments[i] = 1
		}
	}
	return assignments
}

// #endregion wiring

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

// #endregion helpers
