package model

import (
	"fmt"
	"strings"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Options holds the tunable constants of a training run.
type Options struct {
	// Threshold is the probability above which a row is predicted positive.
	Threshold float64
	// TestSize is the held-out fraction.
	TestSize float64
	Seed     uint64
	// Trees is the estimator count of either architecture.
	Trees int
	// PositiveLabels are the trimmed target strings mapped to class 1.
	PositiveLabels []string
	// Workers bounds concurrent tree growth; 0 uses GOMAXPROCS.
	Workers int
}

// DefaultOptions returns threshold 0.25, a 70/30 split, seed 42 and 100
// estimators.
func DefaultOptions() Options {
	return Options{
		Threshold:      0.25,
		TestSize:       0.3,
		Seed:           42,
		Trees:          100,
		PositiveLabels: append([]string(nil), domain.DefaultPositiveLabels...),
	}
}

// OptionsFromConfig fills Options from configuration, keeping defaults for
// unset fields.
func OptionsFromConfig(cfg domain.TrainingConfig) Options {
	opts := DefaultOptions()
	if cfg.Threshold > 0 {
		opts.Threshold = cfg.Threshold
	}
	if cfg.TestSize > 0 {
		opts.TestSize = cfg.TestSize
	}
	if cfg.Seed != 0 {
		opts.Seed = cfg.Seed
	}
	if cfg.Trees > 0 {
		opts.Trees = cfg.Trees
	}
	if len(cfg.PositiveLabels) > 0 {
		opts.PositiveLabels = append([]string(nil), cfg.PositiveLabels...)
	}
	opts.Workers = cfg.Workers
	return opts
}

// FeatureMatrix is the encoded, row-major classifier input.
type FeatureMatrix struct {
	Columns []string
	Rows    [][]float64
}

// Binarize maps each value to 1 when its trimmed string form is in
// positive, else 0. Applying it to a 0/1 vector is the identity.
func Binarize(values []any, positive []string) []int {
	set := make(map[string]bool, len(positive))
	for _, p := range positive {
		set[p] = true
	}
	out := make([]int, len(values))
	for i, v := range values {
		if set[strings.TrimSpace(domain.Stringify(v))] {
			out[i] = 1
		}
	}
	return out
}

// preprocess cleans t, binarizes the target and encodes the declared
// features that are present. It fills p.featureCols, p.encoders and
// p.debug.
func (p *Pipeline) preprocess(t *dataset.Table) (*FeatureMatrix, []int, error) {
	if t == nil || t.Len() == 0 {
		return nil, nil, domain.ErrEmptyDataset
	}
	clean := t.FillMissing(0.0).Drop(p.config.DropColumns...)

	target := p.config.Target
	if !clean.Has(target) {
		return nil, nil, fmt.Errorf("%w: target %q not found", domain.ErrSchemaMismatch, target)
	}

	raw := make(map[string]int)
	for _, s := range clean.Strings(target) {
		raw[strings.TrimSpace(s)]++
	}
	y := Binarize(clean.Column(target), p.opts.PositiveLabels)
	dist := make(map[int]int)
	for _, c := range y {
		dist[c]++
	}
	p.debug = domain.DebugInfo{RawLabelCounts: raw, ClassDistribution: dist}

	p.featureCols = p.featureCols[:0]
	for _, col := range p.config.FeatureNames() {
		if clean.Has(col) {
			p.featureCols = append(p.featureCols, col)
		}
	}
	if len(p.featureCols) == 0 {
		return nil, nil, fmt.Errorf("%w: none of the declared feature columns are present", domain.ErrSchemaMismatch)
	}

	columns := make([][]float64, len(p.featureCols))
	for j, col := range p.featureCols {
		if !p.config.IsCategorical(col) {
			columns[j] = clean.Floats(col)
			continue
		}
		values := clean.Strings(col)
		enc := FitLabelEncoder(values)
		p.encoders[col] = enc
		encoded := make([]float64, len(values))
		for i, v := range values {
			code, _ := enc.Encode(v)
			encoded[i] = float64(code)
		}
		columns[j] = encoded
	}

	rows := make([][]float64, clean.Len())
	for i := range rows {
		row := make([]float64, len(columns))
		for j := range columns {
			row[j] = columns[j][i]
		}
		rows[i] = row
	}
	return &FeatureMatrix{Columns: append([]string(nil), p.featureCols...), Rows: rows}, y, nil
}
