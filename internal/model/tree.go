package model

import (
	"math/rand/v2"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// featureEpsilon is the minimum gap between two sorted values for a split
// to be placed between them.
const featureEpsilon = 1e-7

type criterion int

const (
	// gini scores class purity of 0/1 targets.
	gini criterion = iota
	// mse scores variance of continuous targets.
	mse
)

// node is a tree node. Leaves have feature == -1.
type node struct {
	feature   int
	threshold float64
	left      int
	right     int
	value     float64
}

// tree is a binary CART tree stored as a flat node slice rooted at 0.
type tree struct {
	nodes []node
}

func (t *tree) predict(x []float64) float64 {
	i := 0
	for {
		n := &t.nodes[i]
		if n.feature < 0 {
			return n.value
		}
		if x[n.feature] <= n.threshold {
			i = n.left
		} else {
			i = n.right
		}
	}
}

type treeParams struct {
	criterion criterion
	// maxDepth <= 0 grows until leaves are pure.
	maxDepth int
	// maxFeatures <= 0 considers every feature at each split.
	maxFeatures int
	// leafValue overrides the weighted target mean of a leaf.
	leafValue func(idx []int) float64
}

type treeBuilder struct {
	x          [][]float64
	y          []float64
	w          []float64
	params     treeParams
	rng        *rand.Rand
	nodes      []node
	importance []float64
	features   []int
}

// growTree fits a tree to the rows in idx. importance accumulates the
// weighted impurity decrease of each feature and is left unnormalized.
func growTree(x [][]float64, y, w []float64, idx []int, params treeParams, rng *rand.Rand) (*tree, []float64) {
	nFeatures := 0
	if len(x) > 0 {
		nFeatures = len(x[0])
	}
	b := &treeBuilder{
		x:          x,
		y:          y,
		w:          w,
		params:     params,
		rng:        rng,
		importance: make([]float64, nFeatures),
		features:   make([]int, nFeatures),
	}
	for f := range b.features {
		b.features[f] = f
	}
	b.build(append([]int(nil), idx...), 0)
	return &tree{nodes: b.nodes}, b.importance
}

type nodeStats struct {
	w, sum, sumSq float64
}

func (s nodeStats) impurity(c criterion) float64 {
	if s.w <= 0 {
		return 0
	}
	mean := s.sum / s.w
	if c == gini {
		return 2 * mean * (1 - mean)
	}
	v := s.sumSq/s.w - mean*mean
	if v < 0 {
		return 0
	}
	return v
}

func (b *treeBuilder) stats(idx []int) nodeStats {
	var s nodeStats
	for _, i := range idx {
		wy := b.w[i] * b.y[i]
		s.w += b.w[i]
		s.sum += wy
		s.sumSq += wy * b.y[i]
	}
	return s
}

func (b *treeBuilder) leaf(idx []int, s nodeStats) int {
	v := 0.0
	switch {
	case b.params.leafValue != nil:
		v = b.params.leafValue(idx)
	case s.w > 0:
		v = s.sum / s.w
	}
	b.nodes = append(b.nodes, node{feature: -1, value: v})
	return len(b.nodes) - 1
}

type split struct {
	feature   int
	threshold float64
	pos       int
	score     float64
	left      nodeStats
	right     nodeStats
}

func (b *treeBuilder) build(idx []int, depth int) int {
	s := b.stats(idx)
	imp := s.impurity(b.params.criterion)
	if len(idx) < 2 || imp <= 1e-12 || (b.params.maxDepth > 0 && depth >= b.params.maxDepth) {
		return b.leaf(idx, s)
	}

	best, ok := b.bestSplit(idx, s)
	if !ok {
		return b.leaf(idx, s)
	}

	sort.Slice(idx, func(a, c int) bool { return b.x[idx[a]][best.feature] < b.x[idx[c]][best.feature] })
	left, right := idx[:best.pos], idx[best.pos:]

	c := b.params.criterion
	b.importance[best.feature] += s.w*imp - best.left.w*best.left.impurity(c) - best.right.w*best.right.impurity(c)

	self := len(b.nodes)
	b.nodes = append(b.nodes, node{feature: best.feature, threshold: best.threshold})
	l := b.build(left, depth+1)
	r := b.build(right, depth+1)
	b.nodes[self].left = l
	b.nodes[self].right = r
	return self
}

// bestSplit scans candidate features in random order. Features that are
// constant on idx do not count towards maxFeatures.
func (b *treeBuilder) bestSplit(idx []int, total nodeStats) (split, bool) {
	maxFeatures := b.params.maxFeatures
	if maxFeatures <= 0 || maxFeatures > len(b.features) {
		maxFeatures = len(b.features)
	}
	if b.rng != nil {
		b.rng.Shuffle(len(b.features), func(i, j int) { b.features[i], b.features[j] = b.features[j], b.features[i] })
	}

	c := b.params.criterion
	best := split{feature: -1}
	values := make([]float64, len(idx))
	order := make([]int, len(idx))
	visited := 0
	for _, f := range b.features {
		if visited >= maxFeatures {
			break
		}
		copy(order, idx)
		sort.Slice(order, func(a, k int) bool { return b.x[order[a]][f] < b.x[order[k]][f] })
		for k, i := range order {
			values[k] = b.x[i][f]
		}
		if values[len(values)-1] <= values[0]+featureEpsilon {
			continue
		}
		visited++

		var left nodeStats
		for k := 0; k < len(order)-1; k++ {
			i := order[k]
			wy := b.w[i] * b.y[i]
			left.w += b.w[i]
			left.sum += wy
			left.sumSq += wy * b.y[i]
			if values[k+1] <= values[k]+featureEpsilon {
				continue
			}
			right := nodeStats{w: total.w - left.w, sum: total.sum - left.sum, sumSq: total.sumSq - left.sumSq}
			score := left.w*left.impurity(c) + right.w*right.impurity(c)
			if best.feature < 0 || score < best.score {
				thr := values[k]/2 + values[k+1]/2
				if thr >= values[k+1] {
					thr = values[k]
				}
				best = split{feature: f, threshold: thr, pos: k + 1, score: score, left: left, right: right}
			}
		}
	}
	return best, best.feature >= 0
}

// normalized returns imp scaled to sum to one, or all zeros.
func normalized(imp []float64) []float64 {
	out := append([]float64(nil), imp...)
	if sum := floats.Sum(out); sum > 0 {
		floats.Scale(1/sum, out)
	}
	return out
}
