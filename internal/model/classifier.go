// Package model trains and applies the binary fraud classifiers.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

var errEmptyTrainingSet = errors.New("empty training set")

// Classifier is a binary probabilistic classifier over dense rows.
type Classifier interface {
	// Fit trains on rows X with 0/1 labels y. It blocks until training
	// completes or ctx is cancelled.
	Fit(ctx context.Context, X [][]float64, y []int) error

	// PredictProba returns the probability of class 1.
	PredictProba(x []float64) float64

	// FeatureImportances returns one normalized score per column of X.
	FeatureImportances() []float64
}

// Kind names a classifier architecture.
type Kind string

const (
	RandomForestKind     Kind = "Random Forest"
	GradientBoostingKind Kind = "Gradient Boosting"
)

// Kinds lists the available architectures.
var Kinds = []Kind{RandomForestKind, GradientBoostingKind}

// ParseKind accepts display names and short aliases, case-insensitively.
// An empty string selects Random Forest.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "random forest", "random_forest", "randomforest", "rf":
		return RandomForestKind, nil
	case "gradient boosting", "gradient_boosting", "gradientboosting", "gbm", "gb":
		return GradientBoostingKind, nil
	}
	return "", fmt.Errorf("%w: %q", domain.ErrUnknownModelKind, s)
}

func newClassifier(kind Kind, opts Options) (Classifier, error) {
	switch kind {
	case RandomForestKind:
		return NewRandomForest(opts.Trees, opts.Seed, opts.Workers), nil
	case GradientBoostingKind:
		return NewGradientBoosting(opts.Trees), nil
	}
	return nil, fmt.Errorf("%w: %q", domain.ErrUnknownModelKind, kind)
}
