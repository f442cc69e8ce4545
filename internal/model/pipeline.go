package model

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

// State is the lifecycle of a Pipeline. Transitions only move forward.
type State int

const (
	Unfitted State = iota
	Preprocessing
	Fitted
)

func (s State) String() string {
	switch s {
	case Unfitted:
		return "unfitted"
	case Preprocessing:
		return "preprocessing"
	case Fitted:
		return "fitted"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// ErrPipelineUsed is returned when Train is called twice on one Pipeline.
var ErrPipelineUsed = errors.New("pipeline already used; start a new one")

// Advice messages.
const (
	AdviceSafe    = "Transaction looks safe."
	AdviceComplex = "Risk pattern is complex (Categorical)."

	// adviceCutoff is the risk below which a transaction needs no advice.
	adviceCutoff = 0.50
	// adviceReduction is the factor applied to the probed feature.
	adviceReduction = 0.7
)

// Pipeline runs one training attempt for one domain.
type Pipeline struct {
	mu          sync.Mutex
	config      *domain.DomainConfig
	kind        Kind
	opts        Options
	state       State
	encoders    map[string]*LabelEncoder
	featureCols []string
	debug       domain.DebugInfo
}

// NewPipeline returns an unfitted pipeline.
func NewPipeline(cfg *domain.DomainConfig, kind Kind, opts Options) (*Pipeline, error) {
	if cfg == nil {
		return nil, domain.ErrUnknownDomain
	}
	if _, err := newClassifier(kind, opts); err != nil {
		return nil, err
	}
	return &Pipeline{
		config:   cfg,
		kind:     kind,
		opts:     opts,
		state:    Unfitted,
		encoders: make(map[string]*LabelEncoder),
	}, nil
}

// State returns the current lifecycle state.
func (p *Pipeline) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Preprocess cleans t and returns the encoded features and binarized
// target without training. It moves the pipeline to Preprocessing.
func (p *Pipeline) Preprocess(t *dataset.Table) (*FeatureMatrix, []int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state == Fitted {
		return nil, nil, ErrPipelineUsed
	}
	p.state = Preprocessing
	p.encoders = make(map[string]*LabelEncoder)
	return p.preprocess(t)
}

// Train preprocesses t, fits the classifier on a stratified split and
// evaluates it on the held-out rows. Data problems are returned as data
// errors and no model is produced.
func (p *Pipeline) Train(ctx context.Context, t *dataset.Table) (*TrainedModel, *domain.Metrics, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != Unfitted {
		return nil, nil, ErrPipelineUsed
	}
	start := time.Now()
	p.state = Preprocessing

	X, y, err := p.preprocess(t)
	if err != nil {
		return nil, nil, err
	}
	if p.debug.ClassDistribution[1] == 0 {
		return nil, nil, domain.ErrNoFraudFound
	}

	trainIdx, testIdx, err := stratifiedSplit(y, p.opts.TestSize, p.opts.Seed)
	if err != nil {
		return nil, nil, err
	}
	xTrain, yTrain := take(X.Rows, y, trainIdx)
	xTest, yTest := take(X.Rows, y, testIdx)

	clf, err := newClassifier(p.kind, p.opts)
	if err != nil {
		return nil, nil, err
	}
	if err := clf.Fit(ctx, xTrain, yTrain); err != nil {
		return nil, nil, fmt.Errorf("fit %s: %w", p.kind, err)
	}

	probs := make([]float64, len(xTest))
	for i, row := range xTest {
		probs[i] = clf.PredictProba(row)
	}
	cm := confusion(yTest, applyThreshold(probs, p.opts.Threshold))
	precision, recall, f1 := scores(cm)

	importance := make(map[string]float64, len(p.featureCols))
	for i, v := range clf.FeatureImportances() {
		importance[p.featureCols[i]] = v
	}

	metrics := &domain.Metrics{
		ModelKind:  string(p.kind),
		Precision:  precision,
		Recall:     recall,
		F1:         f1,
		Threshold:  p.opts.Threshold,
		TrainRows:  len(trainIdx),
		TestRows:   len(testIdx),
		Confusion:  cm,
		Importance: importance,
		Debug:      p.debug,
	}

	model := &TrainedModel{
		schema:      p.config,
		kind:        p.kind,
		featureCols: append([]string(nil), p.featureCols...),
		encoders:    p.encoders,
		clf:         clf,
		trainedAt:   time.Now().UTC(),
	}
	p.state = Fitted

	slog.Info("model trained",
		"domain", p.config.ID,
		"model_kind", p.kind,
		"rows", t.Len(),
		"features", len(p.featureCols),
		"precision", precision,
		"recall", recall,
		"f1", f1,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return model, metrics, nil
}

// TrainedModel is a fitted classifier together with the feature order and
// encoders fixed at training time. It is never mutated after creation.
type TrainedModel struct {
	schema      *domain.DomainConfig
	kind        Kind
	featureCols []string
	encoders    map[string]*LabelEncoder
	clf         Classifier
	trainedAt   time.Time
}

func (m *TrainedModel) fitted() bool {
	return m != nil && m.clf != nil
}

// Domain returns the schema the model was trained against.
func (m *TrainedModel) Domain() *domain.DomainConfig { return m.schema }

// Kind returns the classifier architecture.
func (m *TrainedModel) Kind() Kind { return m.kind }

// TrainedAt returns when training finished.
func (m *TrainedModel) TrainedAt() time.Time { return m.trainedAt }

// FeatureColumns returns the feature order fixed at training time.
func (m *TrainedModel) FeatureColumns() []string {
	return append([]string(nil), m.featureCols...)
}

// Encoder returns the fitted encoder of a categorical column.
func (m *TrainedModel) Encoder(col string) (*LabelEncoder, bool) {
	enc, ok := m.encoders[col]
	return enc, ok
}

// EncoderClasses returns the fitted categories of every encoded column.
func (m *TrainedModel) EncoderClasses() map[string][]string {
	out := make(map[string][]string, len(m.encoders))
	for col, enc := range m.encoders {
		out[col] = enc.Classes()
	}
	return out
}

// vector encodes in using the training column order. Absent columns,
// unseen categories and non-numeric values become 0.
func (m *TrainedModel) vector(in domain.TransactionInput) []float64 {
	row := make([]float64, len(m.featureCols))
	for j, col := range m.featureCols {
		v, ok := in[col]
		if !ok || v == nil {
			continue
		}
		if enc, isCat := m.encoders[col]; isCat {
			code, err := enc.Encode(domain.Stringify(v))
			if err != nil {
				slog.Debug("unseen category encoded as 0", "column", col, "error", err)
				continue
			}
			row[j] = float64(code)
			continue
		}
		if f, ok := domain.ToFloat(v); ok {
			row[j] = f
		}
	}
	return row
}

// PredictSingle returns the probability that in is fraudulent.
func (m *TrainedModel) PredictSingle(in domain.TransactionInput) (float64, error) {
	if !m.fitted() {
		return 0, domain.ErrModelNotFitted
	}
	return m.clf.PredictProba(m.vector(in)), nil
}

// GenerateAdvice probes each positive numerical feature in declaration
// order, reduced by 30% on its own, and names the first one that brings the
// risk under 0.5. It is a greedy single-feature probe, not a search for the
// smallest change.
func (m *TrainedModel) GenerateAdvice(in domain.TransactionInput, currentRisk float64) ([]string, error) {
	if !m.fitted() {
		return nil, domain.ErrModelNotFitted
	}
	if currentRisk < adviceCutoff {
		return []string{AdviceSafe}, nil
	}
	for _, col := range m.schema.NumericalNames() {
		v, ok := in.Float(col)
		if !ok || v <= 0 {
			continue
		}
		probe := in.Clone()
		probe[col] = v * adviceReduction
		risk, err := m.PredictSingle(probe)
		if err != nil {
			return nil, err
		}
		if risk < adviceCutoff {
			return []string{fmt.Sprintf("Reducing **%s** significantly lowers risk.", col)}, nil
		}
	}
	return []string{AdviceComplex}, nil
}
