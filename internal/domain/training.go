package domain

import (
	"sort"
	"time"
)

// Metrics summarises one training run on its held-out partition.
type Metrics struct {
	ModelKind  string             `json:"modelKind"`
	Precision  float64            `json:"precision"`
	Recall     float64            `json:"recall"`
	F1         float64            `json:"f1"`
	Threshold  float64            `json:"threshold"`
	TrainRows  int                `json:"trainRows"`
	TestRows   int                `json:"testRows"`
	Confusion  Confusion          `json:"confusion"`
	Importance map[string]float64 `json:"importance"`
	Debug      DebugInfo          `json:"debug"`
}

// Confusion holds the test-set confusion counts.
type Confusion struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	TN int `json:"tn"`
	FN int `json:"fn"`
}

// DebugInfo records the target distribution before and after binarization.
type DebugInfo struct {
	RawLabelCounts    map[string]int `json:"rawLabelCounts"`
	ClassDistribution map[int]int    `json:"classDistribution"`
}

// FeatureImportance is one ranked importance entry.
type FeatureImportance struct {
	Feature    string  `json:"feature"`
	Importance float64 `json:"importance"`
}

// TopFeatures returns up to n features ranked by descending importance.
// Ties are broken by name. n <= 0 returns all of them.
func (m *Metrics) TopFeatures(n int) []FeatureImportance {
	out := make([]FeatureImportance, 0, len(m.Importance))
	for name, v := range m.Importance {
		out = append(out, FeatureImportance{Feature: name, Importance: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Importance != out[j].Importance {
			return out[i].Importance > out[j].Importance
		}
		return out[i].Feature < out[j].Feature
	})
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out
}

// JobStatus is the lifecycle state of an asynchronous training job.
type JobStatus string

const (
	JobQueued    JobStatus = "queued"
	JobRunning   JobStatus = "running"
	JobSucceeded JobStatus = "succeeded"
	JobFailed    JobStatus = "failed"
)

// TrainingJob tracks an asynchronous training request.
type TrainingJob struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Domain     DomainID  `json:"domain"`
	ModelKind  string    `json:"modelKind"`
	Status     JobStatus `json:"status"`
	RunID      string    `json:"runId,omitempty"`
	Error      string    `json:"error,omitempty"`
	DataError  bool      `json:"dataError,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	FinishedAt time.Time `json:"finishedAt,omitempty"`
}

// TrainingRun is the audit record of a finished training attempt.
// Models themselves are never persisted.
type TrainingRun struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"sessionId"`
	Domain     DomainID  `json:"domain"`
	ModelKind  string    `json:"modelKind"`
	Rows       int       `json:"rows"`
	Metrics    *Metrics  `json:"metrics,omitempty"`
	Error      string    `json:"error,omitempty"`
	DurationMs int64     `json:"durationMs"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Analysis is the audit record of a rule engine evaluation.
type Analysis struct {
	ID        string           `json:"id"`
	Domain    string           `json:"domain"`
	Inputs    TransactionInput `json:"inputs"`
	Result    ScoreResult      `json:"result"`
	CreatedAt time.Time        `json:"createdAt"`
}
