package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/schema"
)

var categories = []string{"grocery", "travel", "tech"}

// cardTable returns 100 legitimate rows with amt in [10,1000] and 100
// fraudulent rows with amt in [1100,1397]. Categories are spread evenly
// over both classes.
func cardTable(t *testing.T) *dataset.Table {
	t.Helper()
	records := make([]map[string]any, 0, 200)
	for i := 0; i < 100; i++ {
		records = append(records, map[string]any{
			"amt":      10 + float64(i)*10,
			"category": categories[i%3],
			"cc_num":   float64(4000 + i),
			"is_fraud": 0.0,
		})
	}
	for i := 0; i < 100; i++ {
		records = append(records, map[string]any{
			"amt":      1100 + float64(i)*3,
			"category": categories[i%3],
			"cc_num":   float64(5000 + i),
			"is_fraud": 1.0,
		})
	}
	return dataset.FromRecords([]string{"amt", "category", "cc_num", "is_fraud"}, records)
}

func trainCard(t *testing.T, kind Kind) (*TrainedModel, *domain.Metrics) {
	t.Helper()
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)

	p, err := NewPipeline(cfg, kind, DefaultOptions())
	require.NoError(t, err)

	m, metrics, err := p.Train(context.Background(), cardTable(t))
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, Fitted, p.State())
	return m, metrics
}

func TestTrainRandomForest(t *testing.T) {
	m, metrics := trainCard(t, RandomForestKind)

	assert.Equal(t, 1.0, metrics.Precision)
	assert.Equal(t, 1.0, metrics.Recall)
	assert.Equal(t, 1.0, metrics.F1)
	assert.Equal(t, 0.25, metrics.Threshold)
	assert.Equal(t, 140, metrics.TrainRows)
	assert.Equal(t, 60, metrics.TestRows)
	assert.Equal(t, map[int]int{0: 100, 1: 100}, metrics.Debug.ClassDistribution)
	assert.Equal(t, map[string]int{"0": 100, "1": 100}, metrics.Debug.RawLabelCounts)

	// cc_num is dropped; only declared features are used
	assert.Equal(t, []string{"amt", "category"}, m.FeatureColumns())
	assert.Len(t, metrics.Importance, 2)
	assert.Greater(t, metrics.Importance["amt"], metrics.Importance["category"])
	assert.InDelta(t, 1.0, metrics.Importance["amt"]+metrics.Importance["category"], 1e-9)
	assert.Equal(t, "amt", metrics.TopFeatures(1)[0].Feature)

	assert.Equal(t, map[string][]string{"category": {"grocery", "tech", "travel"}}, m.EncoderClasses())
}

func TestTrainGradientBoosting(t *testing.T) {
	m, metrics := trainCard(t, GradientBoostingKind)

	assert.Equal(t, 1.0, metrics.Precision)
	assert.Equal(t, 1.0, metrics.Recall)
	assert.Equal(t, string(GradientBoostingKind), metrics.ModelKind)

	high, err := m.PredictSingle(domain.TransactionInput{"amt": 1300.0, "category": "tech"})
	require.NoError(t, err)
	low, err := m.PredictSingle(domain.TransactionInput{"amt": 50.0, "category": "tech"})
	require.NoError(t, err)
	assert.Greater(t, high, 0.9)
	assert.Less(t, low, 0.1)
}

func TestTrainIsDeterministic(t *testing.T) {
	m1, metrics1 := trainCard(t, RandomForestKind)
	m2, metrics2 := trainCard(t, RandomForestKind)

	assert.Equal(t, metrics1.Importance, metrics2.Importance)
	in := domain.TransactionInput{"amt": 1050.0, "category": "travel"}
	p1, err := m1.PredictSingle(in)
	require.NoError(t, err)
	p2, err := m2.PredictSingle(in)
	require.NoError(t, err)
	assert.Equal(t, p1, p2)
}

func TestTrainNoFraudFound(t *testing.T) {
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)
	tbl := dataset.FromRecords([]string{"amt", "is_fraud"}, []map[string]any{
		{"amt": 1.0, "is_fraud": 0.0},
		{"amt": 2.0, "is_fraud": "No"},
		{"amt": 3.0, "is_fraud": nil},
	})

	p, err := NewPipeline(cfg, RandomForestKind, DefaultOptions())
	require.NoError(t, err)
	m, metrics, err := p.Train(context.Background(), tbl)

	assert.ErrorIs(t, err, domain.ErrNoFraudFound)
	assert.EqualError(t, err, "NO FRAUD FOUND in data subset.")
	assert.True(t, domain.IsDataError(err))
	assert.Nil(t, m)
	assert.Nil(t, metrics)
	assert.NotEqual(t, Fitted, p.State())
}

func TestTrainMissingTarget(t *testing.T) {
	cfg, err := schema.Get(domain.LoanApplication)
	require.NoError(t, err)
	tbl := dataset.FromRecords([]string{"AMT_CREDIT"}, []map[string]any{{"AMT_CREDIT": 1.0}})

	p, err := NewPipeline(cfg, RandomForestKind, DefaultOptions())
	require.NoError(t, err)
	_, _, err = p.Train(context.Background(), tbl)
	assert.ErrorIs(t, err, domain.ErrSchemaMismatch)
	assert.True(t, domain.IsDataError(err))
}

func TestTrainTooFewPositives(t *testing.T) {
	cfg, err := schema.Get(domain.MobileTransaction)
	require.NoError(t, err)
	records := []map[string]any{{"amount": 900.0, "isFraud": 1.0}}
	for i := 0; i < 20; i++ {
		records = append(records, map[string]any{"amount": float64(i), "isFraud": 0.0})
	}

	p, err := NewPipeline(cfg, GradientBoostingKind, DefaultOptions())
	require.NoError(t, err)
	_, _, err = p.Train(context.Background(), dataset.FromRecords([]string{"amount", "isFraud"}, records))
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
}

func TestTrainTwiceRejected(t *testing.T) {
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)
	p, err := NewPipeline(cfg, RandomForestKind, DefaultOptions())
	require.NoError(t, err)

	_, _, err = p.Train(context.Background(), cardTable(t))
	require.NoError(t, err)
	_, _, err = p.Train(context.Background(), cardTable(t))
	assert.ErrorIs(t, err, ErrPipelineUsed)
}

func TestNewPipelineUnknownKind(t *testing.T) {
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)
	_, err = NewPipeline(cfg, "SVM", DefaultOptions())
	assert.ErrorIs(t, err, domain.ErrUnknownModelKind)
}

func TestPreprocessLoanFeatureOrder(t *testing.T) {
	cfg, err := schema.Get(domain.LoanApplication)
	require.NoError(t, err)
	tbl := dataset.FromRecords(
		[]string{"SK_ID_CURR", "NAME_CLIENT_TYPE", "NFLAG_INSURED_ON_APPROVAL", "AMT_CREDIT", "NAME_CONTRACT_STATUS"},
		[]map[string]any{
			{"SK_ID_CURR": 1.0, "NAME_CLIENT_TYPE": "New", "NFLAG_INSURED_ON_APPROVAL": true, "AMT_CREDIT": 100.0, "NAME_CONTRACT_STATUS": "Refused"},
			{"SK_ID_CURR": 2.0, "NAME_CLIENT_TYPE": "Repeater", "NFLAG_INSURED_ON_APPROVAL": nil, "AMT_CREDIT": nil, "NAME_CONTRACT_STATUS": " Approved "},
		},
	)

	p, err := NewPipeline(cfg, RandomForestKind, DefaultOptions())
	require.NoError(t, err)
	X, y, err := p.Preprocess(tbl)
	require.NoError(t, err)

	assert.Equal(t, Preprocessing, p.State())
	assert.Equal(t, []string{"AMT_CREDIT", "NAME_CLIENT_TYPE", "NFLAG_INSURED_ON_APPROVAL"}, X.Columns)
	assert.Equal(t, [][]float64{{100, 0, 1}, {0, 1, 0}}, X.Rows)
	assert.Equal(t, []int{1, 0}, y)
}

func TestPredictSingleFallbacks(t *testing.T) {
	m, _ := trainCard(t, RandomForestKind)

	base, err := m.PredictSingle(domain.TransactionInput{"amt": 1200.0, "category": "grocery"})
	require.NoError(t, err)

	// grocery is code 0, so an unseen value scores identically
	unseen, err := m.PredictSingle(domain.TransactionInput{"amt": 1200.0, "category": "casino"})
	require.NoError(t, err)
	assert.Equal(t, base, unseen)

	// absent columns are zero filled; extra keys are ignored
	missing, err := m.PredictSingle(domain.TransactionInput{"amt": 1200.0, "unrelated": "x"})
	require.NoError(t, err)
	assert.Equal(t, base, missing)

	for i := 0; i < 5; i++ {
		again, err := m.PredictSingle(domain.TransactionInput{"amt": 1200.0, "category": "grocery"})
		require.NoError(t, err)
		assert.Equal(t, base, again)
	}
	assert.GreaterOrEqual(t, base, 0.0)
	assert.LessOrEqual(t, base, 1.0)
}

func TestNotFitted(t *testing.T) {
	var m *TrainedModel
	_, err := m.PredictSingle(domain.TransactionInput{"amt": 1.0})
	assert.ErrorIs(t, err, domain.ErrModelNotFitted)

	_, err = m.GenerateAdvice(domain.TransactionInput{"amt": 1.0}, 0.9)
	assert.ErrorIs(t, err, domain.ErrModelNotFitted)

	_, err = (&TrainedModel{}).PredictSingle(nil)
	assert.ErrorIs(t, err, domain.ErrModelNotFitted)
}

type countingClassifier struct {
	calls int
	proba func(x []float64) float64
}

func (c *countingClassifier) Fit(context.Context, [][]float64, []int) error { return nil }
func (c *countingClassifier) FeatureImportances() []float64 { return nil }
func (c *countingClassifier) PredictProba(x []float64) float64 {
	c.calls++
	return c.proba(x)
}

func TestGenerateAdviceSafeSkipsScoring(t *testing.T) {
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)
	clf := &countingClassifier{proba: func([]float64) float64 { return 1 }}
	m := &TrainedModel{schema: cfg, featureCols: []string{"amt"}, clf: clf}

	advice, err := m.GenerateAdvice(domain.TransactionInput{"amt": 5000.0}, 0.40)
	require.NoError(t, err)
	assert.Equal(t, []string{"Transaction looks safe."}, advice)
	assert.Zero(t, clf.calls)
}

func TestGenerateAdviceFirstFeatureWins(t *testing.T) {
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)
	// risk drops when either amt or lat is reduced
	clf := &countingClassifier{proba: func(x []float64) float64 {
		if x[0] < 100 || x[1] < 30 {
			return 0.1
		}
		return 0.9
	}}
	m := &TrainedModel{schema: cfg, featureCols: []string{"amt", "lat"}, clf: clf}

	in := domain.TransactionInput{"amt": 120.0, "lat": 40.0}
	advice, err := m.GenerateAdvice(in, 0.9)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reducing **amt** significantly lowers risk."}, advice)
	assert.Equal(t, 1, clf.calls)
	assert.Equal(t, 120.0, in["amt"], "input must not be mutated")
}

func TestGenerateAdviceSkipsNonPositive(t *testing.T) {
	cfg, err := schema.Get(domain.CreditCard)
	require.NoError(t, err)
	clf := &countingClassifier{proba: func(x []float64) float64 {
		if x[1] < 30 {
			return 0.1
		}
		return 0.9
	}}
	m := &TrainedModel{schema: cfg, featureCols: []string{"amt", "lat"}, clf: clf}

	advice, err := m.GenerateAdvice(domain.TransactionInput{"amt": 0.0, "lat": 40.0, "category": "tech"}, 0.8)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reducing **lat** significantly lowers risk."}, advice)
	assert.Equal(t, 1, clf.calls)
}

func TestGenerateAdviceTrained(t *testing.T) {
	m, _ := trainCard(t, RandomForestKind)

	in := domain.TransactionInput{"amt": 1390.0, "category": "travel"}
	risk, err := m.PredictSingle(in)
	require.NoError(t, err)
	require.GreaterOrEqual(t, risk, 0.5)

	advice, err := m.GenerateAdvice(in, risk)
	require.NoError(t, err)
	assert.Equal(t, []string{"Reducing **amt** significantly lowers risk."}, advice)

	far := domain.TransactionInput{"amt": 5000.0, "category": "travel"}
	risk, err = m.PredictSingle(far)
	require.NoError(t, err)
	advice, err = m.GenerateAdvice(far, risk)
	require.NoError(t, err)
	assert.Equal(t, []string{"Risk pattern is complex (Categorical)."}, advice)
}

func TestOptionsFromConfig(t *testing.T) {
	opts := OptionsFromConfig(domain.TrainingConfig{Threshold: 0.4, PositiveLabels: []string{"bad"}})
	assert.Equal(t, 0.4, opts.Threshold)
	assert.Equal(t, 0.3, opts.TestSize)
	assert.Equal(t, uint64(42), opts.Seed)
	assert.Equal(t, []string{"bad"}, opts.PositiveLabels)
}
