package model

import (
	"context"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// GradientBoosting is a binary log-loss boosted ensemble of shallow
// regression trees. It applies no class weighting.
type GradientBoosting struct {
	Stages       int
	LearningRate float64
	MaxDepth     int

	prior      float64
	trees      []*tree
	importance []float64
}

// NewGradientBoosting returns a booster with the given stage count,
// learning rate 0.1 and depth 5.
func NewGradientBoosting(stages int) *GradientBoosting {
	return &GradientBoosting{Stages: stages, LearningRate: 0.1, MaxDepth: 5}
}

func sigmoid(z float64) float64 {
	return 1 / (1 + math.Exp(-z))
}

// Fit boosts sequentially from the prior log-odds. Each stage fits the
// residuals y-p and sets leaves with one Newton step.
func (gb *GradientBoosting) Fit(ctx context.Context, X [][]float64, y []int) error {
	if len(X) == 0 {
		return errEmptyTrainingSet
	}
	stages := gb.Stages
	if stages <= 0 {
		stages = 100
	}
	n := len(y)
	target := make([]float64, n)
	for i, c := range y {
		target[i] = float64(c)
	}
	weights := make([]float64, n)
	for i := range weights {
		weights[i] = 1
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}

	p0 := math.Min(math.Max(stat.Mean(target, nil), 1e-15), 1-1e-15)
	gb.prior = math.Log(p0 / (1 - p0))

	raw := make([]float64, n)
	for i := range raw {
		raw[i] = gb.prior
	}
	prob := make([]float64, n)
	residual := make([]float64, n)
	importance := make([]float64, len(X[0]))

	params := treeParams{
		criterion: mse,
		maxDepth:  gb.MaxDepth,
		leafValue: func(leaf []int) float64 {
			var num, den float64
			for _, i := range leaf {
				num += residual[i]
				den += prob[i] * (1 - prob[i])
			}
			if den < 1e-150 {
				return 0
			}
			return num / den
		},
	}

	gb.trees = make([]*tree, 0, stages)
	for m := 0; m < stages; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		for i := range raw {
			prob[i] = sigmoid(raw[i])
			residual[i] = target[i] - prob[i]
		}
		t, imp := growTree(X, residual, weights, idx, params, nil)
		for i, x := range X {
			raw[i] += gb.LearningRate * t.predict(x)
		}
		gb.trees = append(gb.trees, t)
		floats.Add(importance, imp)
	}
	gb.importance = normalized(importance)
	return nil
}

// PredictProba returns the positive-class probability of x.
func (gb *GradientBoosting) PredictProba(x []float64) float64 {
	if gb.trees == nil {
		return 0
	}
	z := gb.prior
	for _, t := range gb.trees {
		z += gb.LearningRate * t.predict(x)
	}
	return sigmoid(z)
}

// FeatureImportances returns the normalized impurity decrease summed over
// all stages.
func (gb *GradientBoosting) FeatureImportances() []float64 {
	return append([]float64(nil), gb.importance...)
}
