// Package boundary discovers a comfort-zone boundary via the
// Stoer–Wagner global min-cut over a cosine-weighted, coherence-gated
// context graph (spec.md §4.6).
package boundary

import (
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/danielpatrickdp/trustfield/internal/contextkey"
)

// #region types

// Partition is the output of a min-cut run: the smaller side S, its
// complement, and the cut weight. HashesS and HashesComplement carry the
// sorted hash lists used to break ties deterministically (spec.md §4.6),
// so a caller can see why a partition won without re-running the search.
type Partition struct {
	S                map[uint64]bool
	Complement       map[uint64]bool
	CutValue         float64
	HashesS          []uint64
	HashesComplement []uint64
}

type reportedContext struct {
	key       contextkey.Key
	coherence float64
}

// MinCutBoundary tracks reported contexts and computes their min-cut
// boundary. Bounded by the same capacity convention as field.CoherenceField.
type MinCutBoundary struct {
	capacity int
	contexts map[uint64]reportedContext
	order    []uint64
}

// #endregion types

// #region constructor

// New creates a boundary tracker with the given bounded capacity.
func New(capacity int) *MinCutBoundary {
	if capacity < 1 {
		capacity = 1
	}
	return &MinCutBoundary{capacity: capacity, contexts: make(map[uint64]reportedContext, capacity)}
}

// #endregion constructor

// #region report

// ReportContextWithKey records or updates a context's current coherence.
// On capacity overflow the oldest-reported context (by insertion order) is
// evicted, mirroring field.CoherenceField's bounded-capacity contract.
func (b *MinCutBoundary) ReportContextWithKey(k contextkey.Key, coherenceVal float64) {
	if coherenceVal < 0 {
		coherenceVal = 0
	}
	if coherenceVal > 1 {
		coherenceVal = 1
	}
	if _, exists := b.contexts[k.Hash()]; exists {
		b.contexts[k.Hash()] = reportedContext{key: k, coherence: coherenceVal}
		return
	}
	if len(b.contexts) >= b.capacity && len(b.order) > 0 {
		oldest := b.order[0]
		b.order = b.order[1:]
		delete(b.contexts, oldest)
	}
	b.contexts[k.Hash()] = reportedContext{key: k, coherence: coherenceVal}
	b.order = append(b.order, k.Hash())
}

// Len returns the number of currently reported contexts.
func (b *MinCutBoundary) Len() int { return len(b.contexts) }

// #endregion report

// #region partition

// Partition runs Stoer–Wagner on a working copy of the current graph and
// returns the global min cut. With fewer than 2 vertices, returns
// (all, empty, 0) per spec.md §4.6.
func (b *MinCutBoundary) Partition() Partition {
	hashes := b.sortedHashes()
	n := len(hashes)

	if n < 2 {
		all := map[uint64]bool{}
		for _, h := range hashes {
			all[h] = true
		}
		return Partition{S: all, Complement: map[uint64]bool{}, CutValue: 0, HashesS: hashes, HashesComplement: nil}
	}

	adj := b.buildAdjacency(hashes, n)
	groups := make([][]uint64, n)
	for i, h := range hashes {
		groups[i] = []uint64{h}
	}
	active := make([]bool, n)
	for i := range active {
		active[i] = true
	}

	candidates := make([]phaseCut, 0, n-1)
	remaining := n
	phase := 0

	for remaining > 1 {
		order, weightAtAdd := maxAdjacencyOrder(adj, active, groups, n)
		s := order[len(order)-2]
		tIdx := order[len(order)-1]

		candidates = append(candidates, phaseCut{phase: phase, value: weightAtAdd[tIdx], side: append([]uint64(nil), groups[tIdx]...)})

		// Merge t into s: sum edge weights to every other active vertex.
		for v := 0; v < n; v++ {
			if !active[v] || v == s || v == tIdx {
				continue
			}
			sum := adj.At(s, v) + adj.At(tIdx, v)
			adj.SetSym(s, v, sum)
		}
		groups[s] = append(groups[s], groups[tIdx]...)
		active[tIdx] = false
		remaining--
		phase++
	}

	best := candidates[0]
	for _, cand := range candidates[1:] {
		if betterCut(cand, best) {
			best = cand
		}
	}

	return finalizePartition(hashes, best.side, best.value)
}

// MinCutValue returns just the cut weight of the current partition.
func (b *MinCutBoundary) MinCutValue() float64 {
	return b.Partition().CutValue
}

// #endregion partition

// #region stoer-wagner internals

// maxAdjacencyOrder performs one phase of maximum-adjacency ordering,
// starting from the active vertex with the smallest representative hash
// (spec.md §4.6: "starting from an arbitrary fixed vertex, lowest hash, for
// determinism"). Returns the visitation order and, for each vertex, its
// accumulated weight to the "added" set at the moment it was added.
func maxAdjacencyOrder(adj *mat.SymDense, active []bool, groups [][]uint64, n int) ([]int, []float64) {
	inA := make([]bool, n)
	weight := make([]float64, n)
	order := make([]int, 0, n)

	start := smallestHashVertex(active, groups, n)
	inA[start] = true
	order = append(order, start)

	remainingCount := 0
	for i := 0; i < n; i++ {
		if active[i] {
			remainingCount++
		}
	}

	for len(order) < remainingCount {
		last := order[len(order)-1]
		for v := 0; v < n; v++ {
			if active[v] && !inA[v] {
				weight[v] += adj.At(last, v)
			}
		}

		next := -1
		for v := 0; v < n; v++ {
			if !active[v] || inA[v] {
				continue
			}
			if next == -1 || weight[v] > weight[next] ||
				(weight[v] == weight[next] && minHash(groups[v]) < minHash(groups[next])) {
				next = v
			}
		}
		inA[next] = true
		order = append(order, next)
	}

	return order, weight
}

func smallestHashVertex(active []bool, groups [][]uint64, n int) int {
	best := -1
	for i := 0; i < n; i++ {
		if !active[i] {
			continue
		}
		if best == -1 || minHash(groups[i]) < minHash(groups[best]) {
			best = i
		}
	}
	return best
}

func minHash(hashes []uint64) uint64 {
	m := hashes[0]
	for _, h := range hashes[1:] {
		if h < m {
			m = h
		}
	}
	return m
}

// phaseCut is one phase's cut-of-the-phase candidate: the cut value at the
// moment the phase's last vertex was added, the side it isolates, and the
// phase index it was discovered on.
type phaseCut struct {
	phase int
	value float64
	side  []uint64
}

// betterCut implements the full tie-break chain of spec.md §4.6, in pinned
// precedence order: smaller cut value wins outright; on an equal value,
// the earlier phase wins; on an equal phase (impossible in this sequential
// search, but kept so the comparator is correct independent of how
// candidates are gathered), the smaller S side wins; failing that, the
// lexicographically smallest sorted hash list wins.
func betterCut(cand, best phaseCut) bool {
	if cand.value != best.value {
		return cand.value < best.value
	}
	if cand.phase != best.phase {
		return cand.phase < best.phase
	}
	if len(cand.side) != len(best.side) {
		return len(cand.side) < len(best.side)
	}
	sa := append([]uint64(nil), cand.side...)
	sb := append([]uint64(nil), best.side...)
	sort.Slice(sa, func(i, j int) bool { return sa[i] < sa[j] })
	sort.Slice(sb, func(i, j int) bool { return sb[i] < sb[j] })
	for i := range sa {
		if sa[i] != sb[i] {
			return sa[i] < sb[i]
		}
	}
	return false
}

// #endregion stoer-wagner internals

// #region graph construction

func (b *MinCutBoundary) sortedHashes() []uint64 {
	hashes := make([]uint64, 0, len(b.contexts))
	for h := range b.contexts {
		hashes = append(hashes, h)
	}
	sort.Slice(hashes, func(i, j int) bool { return hashes[i] < hashes[j] })
	return hashes
}

func (b *MinCutBoundary) buildAdjacency(hashes []uint64, n int) *mat.SymDense {
	adj := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		ci := b.contexts[hashes[i]]
		for j := i + 1; j < n; j++ {
			cj := b.contexts[hashes[j]]
			w := edgeWeight(ci, cj)
			adj.SetSym(i, j, w)
		}
	}
	return adj
}

func edgeWeight(a, b reportedContext) float64 {
	sim := contextkey.CosineSimilarity(a.key.Vector(), b.key.Vector())
	minCoh := a.coherence
	if b.coherence < minCoh {
		minCoh = b.coherence
	}
	sim = clamp01(sim)
	minCoh = clamp01(minCoh)
	return sim * minCoh
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

func finalizePartition(allHashes []uint64, side []uint64, cutValue float64) Partition {
	sideSet := map[uint64]bool{}
	for _, h := range side {
		sideSet[h] = true
	}
	complement := make([]uint64, 0, len(allHashes)-len(side))
	complementSet := map[uint64]bool{}
	for _, h := range allHashes {
		if !sideSet[h] {
			complement = append(complement, h)
			complementSet[h] = true
		}
	}

	sortedSide := append([]uint64(nil), side...)
	sort.Slice(sortedSide, func(i, j int) bool { return sortedSide[i] < sortedSide[j] })
	sort.Slice(complement, func(i, j int) bool { return complement[i] < complement[j] })

	// Contract: returned S is the smaller side.
	if len(sideSet) <= len(complementSet) {
		return Partition{S: sideSet, Complement: complementSet, CutValue: cutValue, HashesS: sortedSide, HashesComplement: complement}
	}
	return Partition{S: complementSet, Complement: sideSet, CutValue: cutValue, HashesS: complement, HashesComplement: sortedSide}
}

// #endregion graph construction
