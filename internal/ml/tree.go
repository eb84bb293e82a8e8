package ml

import (
	"math/rand"
	"sort"
)

// Node is one node of a binary decision tree. Leaves have Feature == -1.
type Node struct {
	Feature   int       `json:"f"`
	Threshold float64   `json:"t,omitempty"`
	Left      *Node     `json:"l,omitempty"`
	Right     *Node     `json:"r,omitempty"`
	Value     []float64 `json:"v,omitempty"`
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return n.Feature < 0
}

// Leaf returns the leaf x falls into.
func (n *Node) Leaf(x []float64) *Node {
	for !n.IsLeaf() {
		if x[n.Feature] <= n.Threshold {
			n = n.Left
		} else {
			n = n.Right
		}
	}
	return n
}

// criterion abstracts the impurity bookkeeping of a tree. Statistics are
// additive vectors so a split sweep can move samples from right to left.
type criterion interface {
	statsLen() int
	accumulate(stats []float64, i int, sign float64)
	// cost is the weighted impurity of a node with the given statistics.
	cost(stats []float64) float64
	leaf(idx []int) []float64
}

// giniCriterion grows classification trees with class-distribution leaves.
type giniCriterion struct {
	y []int
	w []float64
}

func (c giniCriterion) statsLen() int { return NumClasses }

func (c giniCriterion) accumulate(stats []float64, i int, sign float64) {
	stats[c.y[i]] += sign * c.w[i]
}

func (c giniCriterion) cost(stats []float64) float64 {
	var total, sq float64
	for _, v := range stats {
		total += v
		sq += v * v
	}
	if total <= 0 {
		return 0
	}
	return total - sq/total
}

func (c giniCriterion) leaf(idx []int) []float64 {
	dist := make([]float64, NumClasses)
	var total float64
	for _, i := range idx {
		dist[c.y[i]] += c.w[i]
		total += c.w[i]
	}
	if total <= 0 {
		for k := range dist {
			dist[k] = 1.0 / NumClasses
		}
		return dist
	}
	for k := range dist {
		dist[k] /= total
	}
	return dist
}

// squaredErrorCriterion grows regression trees on a target with a custom
// leaf estimator.
type squaredErrorCriterion struct {
	target    []float64
	w         []float64
	leafValue func(idx []int) float64
}

func (c squaredErrorCriterion) statsLen() int { return 3 }

func (c squaredErrorCriterion) accumulate(stats []float64, i int, sign float64) {
	wi, ti := c.w[i], c.target[i]
	stats[0] += sign * wi
	stats[1] += sign * wi * ti
	stats[2] += sign * wi * ti * ti
}

func (c squaredErrorCriterion) cost(stats []float64) float64 {
	if stats[0] <= 0 {
		return 0
	}
	return stats[2] - stats[1]*stats[1]/stats[0]
}

func (c squaredErrorCriterion) leaf(idx []int) []float64 {
	return []float64{c.leafValue(idx)}
}

// treeGrower builds one CART tree.
type treeGrower struct {
	X              [][]float64
	crit           criterion
	maxDepth       int
	minSamplesLeaf int
	maxFeatures    int
	rng            *rand.Rand
	importance     []float64
}

func (g *treeGrower) grow(idx []int, depth int) *Node {
	if depth >= g.maxDepth || len(idx) < 2*g.minSamplesLeaf {
		return &Node{Feature: -1, Value: g.crit.leaf(idx)}
	}

	parent := make([]float64, g.crit.statsLen())
	for _, i := range idx {
		g.crit.accumulate(parent, i, 1)
	}
	parentCost := g.crit.cost(parent)
	if parentCost <= 1e-12 {
		return &Node{Feature: -1, Value: g.crit.leaf(idx)}
	}

	bestFeature, bestThreshold, bestGain := -1, 0.0, 1e-12
	left := make([]float64, len(parent))
	right := make([]float64, len(parent))
	sorted := make([]int, len(idx))

	for _, j := range g.candidateFeatures() {
		copy(sorted, idx)
		sort.Slice(sorted, func(a, b int) bool { return g.X[sorted[a]][j] < g.X[sorted[b]][j] })

		clear(left)
		copy(right, parent)
		for pos := 0; pos < len(sorted)-1; pos++ {
			i := sorted[pos]
			g.crit.accumulate(left, i, 1)
			g.crit.accumulate(right, i, -1)

			nLeft := pos + 1
			if nLeft < g.minSamplesLeaf || len(sorted)-nLeft < g.minSamplesLeaf {
				continue
			}
			v, next := g.X[i][j], g.X[sorted[pos+1]][j]
			if v == next {
				continue
			}
			gain := parentCost - g.crit.cost(left) - g.crit.cost(right)
			if gain > bestGain {
				bestFeature, bestThreshold, bestGain = j, (v+next)/2, gain
			}
		}
	}

	if bestFeature < 0 {
		return &Node{Feature: -1, Value: g.crit.leaf(idx)}
	}
	g.importance[bestFeature] += bestGain

	var li, ri []int
	for _, i := range idx {
		if g.X[i][bestFeature] <= bestThreshold {
			li = append(li, i)
		} else {
			ri = append(ri, i)
		}
	}
	return &Node{
		Feature:   bestFeature,
		Threshold: bestThreshold,
		Left:      g.grow(li, depth+1),
		Right:     g.grow(ri, depth+1),
	}
}

func (g *treeGrower) candidateFeatures() []int {
	d := len(g.X[0])
	if g.maxFeatures <= 0 || g.maxFeatures >= d || g.rng == nil {
		all := make([]int, d)
		for j := range all {
			all[j] = j
		}
		return all
	}
	return g.rng.Perm(d)[:g.maxFeatures]
}
