package model

import "github.com/opensource-finance/fraudguard/internal/domain"

// confusion counts predictions against labels for the positive class 1.
func confusion(yTrue, yPred []int) domain.Confusion {
	var c domain.Confusion
	for i := range yTrue {
		switch {
		case yTrue[i] == 1 && yPred[i] == 1:
			c.TP++
		case yTrue[i] == 0 && yPred[i] == 1:
			c.FP++
		case yTrue[i] == 1:
			c.FN++
		default:
			c.TN++
		}
	}
	return c
}

// scores returns precision, recall and F1. Zero divisions yield 0.
func scores(c domain.Confusion) (precision, recall, f1 float64) {
	if d := c.TP + c.FP; d > 0 {
		precision = float64(c.TP) / float64(d)
	}
	if d := c.TP + c.FN; d > 0 {
		recall = float64(c.TP) / float64(d)
	}
	if precision+recall > 0 {
		f1 = 2 * precision * recall / (precision + recall)
	}
	return precision, recall, f1
}

// applyThreshold labels probabilities strictly above threshold as 1.
func applyThreshold(probs []float64, threshold float64) []int {
	out := make([]int, len(probs))
	for i, p := range probs {
		if p > threshold {
			out[i] = 1
		}
	}
	return out
}
