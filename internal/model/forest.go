package model

import (
	"context"
	"math"
	"math/rand/v2"
	"runtime"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/floats"
)

// RandomForest is a bagged ensemble of unpruned Gini trees with
// balanced-subsample class weighting.
type RandomForest struct {
	Trees   int
	Seed    uint64
	Workers int

	trees      []*tree
	importance []float64
}

// NewRandomForest returns a forest of n trees.
func NewRandomForest(n int, seed uint64, workers int) *RandomForest {
	return &RandomForest{Trees: n, Seed: seed, Workers: workers}
}

// Fit grows the trees concurrently and blocks until all are done.
func (rf *RandomForest) Fit(ctx context.Context, X [][]float64, y []int) error {
	if len(X) == 0 {
		return errEmptyTrainingSet
	}
	nTrees := rf.Trees
	if nTrees <= 0 {
		nTrees = 100
	}
	workers := rf.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	p := len(X[0])
	maxFeatures := int(math.Sqrt(float64(p)))
	if maxFeatures < 1 {
		maxFeatures = 1
	}

	target := make([]float64, len(y))
	for i, c := range y {
		target[i] = float64(c)
	}

	master := newRand(rf.Seed, 1)
	seeds := make([]uint64, nTrees)
	for i := range seeds {
		seeds[i] = master.Uint64()
	}

	trees := make([]*tree, nTrees)
	imps := make([][]float64, nTrees)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := 0; i < nTrees; i++ {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rng := newRand(seeds[i], uint64(i))
			idx, w := bootstrap(y, rng)
			t, imp := growTree(X, target, w, idx, treeParams{criterion: gini, maxFeatures: maxFeatures}, rng)
			trees[i] = t
			imps[i] = normalized(imp)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	importance := make([]float64, p)
	for _, imp := range imps {
		floats.Add(importance, imp)
	}
	rf.trees = trees
	rf.importance = normalized(importance)
	return nil
}

// bootstrap draws len(y) rows with replacement and weights each drawn row
// by its draw count times the balanced class weight of the sample.
func bootstrap(y []int, rng *rand.Rand) ([]int, []float64) {
	n := len(y)
	counts := make([]float64, n)
	for k := 0; k < n; k++ {
		counts[rng.IntN(n)]++
	}

	classCount := make(map[int]float64)
	for i, c := range counts {
		if c > 0 {
			classCount[y[i]] += c
		}
	}

	w := make([]float64, n)
	idx := make([]int, 0, n)
	for i, c := range counts {
		if c == 0 {
			continue
		}
		w[i] = c * float64(n) / (float64(len(classCount)) * classCount[y[i]])
		idx = append(idx, i)
	}
	return idx, w
}

// PredictProba averages the leaf positive-class fractions of all trees.
func (rf *RandomForest) PredictProba(x []float64) float64 {
	if len(rf.trees) == 0 {
		return 0
	}
	sum := 0.0
	for _, t := range rf.trees {
		sum += t.predict(x)
	}
	return sum / float64(len(rf.trees))
}

// FeatureImportances returns the mean normalized impurity decrease.
func (rf *RandomForest) FeatureImportances() []float64 {
	return append([]float64(nil), rf.importance...)
}
