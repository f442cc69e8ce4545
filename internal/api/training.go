package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/fraudguard/internal/bus"
	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/session"
)

// TrainRequest is the request body for POST /sessions/{id}/train.
type TrainRequest struct {
	ModelType string `json:"modelType"`
}

// TrainResponse is returned when a training job is accepted.
type TrainResponse struct {
	JobID     string           `json:"jobId"`
	SessionID string           `json:"sessionId"`
	Status    domain.JobStatus `json:"status"`
	ModelKind string           `json:"modelKind"`
}

// Train handles POST /sessions/{id}/train. The job runs on the trainer
// that owns the session; clients poll GET /jobs/{id}.
func (h *Handler) Train(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := chi.URLParam(r, "id")

	sess, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	// An empty body selects the default architecture.
	var req TrainRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	kind, err := model.ParseKind(req.ModelType)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Table == nil {
		writeError(w, domain.ErrEmptyDataset)
		return
	}

	if h.cache == nil || h.bus == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "training queue not available",
		})
		return
	}

	job := &domain.TrainingJob{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		Domain:    sess.Domain,
		ModelKind: string(kind),
		Status:    domain.JobQueued,
		CreatedAt: time.Now().UTC(),
	}
	if err := h.cache.SetJob(ctx, job, h.opts.JobTTL); err != nil {
		writeError(w, err)
		return
	}

	payload, err := json.Marshal(domain.TrainingRequest{
		JobID:     job.ID,
		SessionID: sess.ID,
		ModelKind: string(kind),
		TraceID:   GetTraceID(ctx),
	})
	if err != nil {
		writeError(w, err)
		return
	}

	if err := h.bus.Publish(ctx, domain.TrainingTopic(h.opts.InstanceID), payload); err != nil {
		job.Status = domain.JobFailed
		job.Error = err.Error()
		job.FinishedAt = time.Now().UTC()
		if setErr := h.cache.SetJob(ctx, job, h.opts.JobTTL); setErr != nil {
			slog.Error("failed to store job result", "job_id", job.ID, "error", setErr)
		}
		if errors.Is(err, bus.ErrBackpressure) || errors.Is(err, bus.ErrClosed) {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{
				"error": "training queue is busy, retry later",
			})
			return
		}
		writeError(w, err)
		return
	}

	slog.Info("training job queued",
		"job_id", job.ID,
		"session_id", sess.ID,
		"domain", sess.Domain,
		"model_kind", kind,
		"trace_id", GetTraceID(ctx),
	)
	writeJSON(w, http.StatusAccepted, TrainResponse{
		JobID:     job.ID,
		SessionID: sess.ID,
		Status:    job.Status,
		ModelKind: job.ModelKind,
	})
}

// GetJob handles GET /jobs/{id}.
func (h *Handler) GetJob(w http.ResponseWriter, r *http.Request) {
	if h.cache == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "cache not available",
		})
		return
	}

	jobID := chi.URLParam(r, "id")
	job, err := h.cache.GetJob(r.Context(), jobID)
	if err != nil {
		writeError(w, err)
		return
	}
	if job == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "job not found",
		})
		return
	}
	writeJSON(w, http.StatusOK, job)
}

// ============================================================================
// INFERENCE HANDLERS
// ============================================================================

// PredictRequest is the request body for POST /sessions/{id}/predict.
type PredictRequest struct {
	Inputs domain.TransactionInput `json:"inputs"`
}

// PredictResponse carries the model's verdict on one transaction.
type PredictResponse struct {
	SessionID   string          `json:"sessionId"`
	Domain      domain.DomainID `json:"domain"`
	ModelKind   string          `json:"modelKind"`
	Probability float64         `json:"probability"`
	RiskPercent float64         `json:"riskPercent"`
	// Flagged is true when the probability exceeds the training threshold.
	Flagged bool          `json:"flagged"`
	Action  domain.Action `json:"action"`
	Advice  []string      `json:"advice"`
}

// Predict handles POST /sessions/{id}/predict.
func (h *Handler) Predict(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.fittedSession(w, r)
	if !ok {
		return
	}

	var req PredictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Inputs == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "inputs are required",
		})
		return
	}

	prob, err := sess.Model.PredictSingle(req.Inputs)
	if err != nil {
		writeError(w, err)
		return
	}
	advice, err := sess.Model.GenerateAdvice(req.Inputs, prob)
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.RecordPrediction(string(sess.Domain))

	threshold := model.DefaultOptions().Threshold
	if sess.Metrics != nil && sess.Metrics.Threshold > 0 {
		threshold = sess.Metrics.Threshold
	}

	writeJSON(w, http.StatusOK, PredictResponse{
		SessionID:   sess.ID,
		Domain:      sess.Domain,
		ModelKind:   string(sess.Model.Kind()),
		Probability: prob,
		RiskPercent: prob * 100,
		Flagged:     prob > threshold,
		Action:      decision.ActionForProbability(prob),
		Advice:      advice,
	})
}

// AdviceRequest is the request body for POST /sessions/{id}/advice. When
// CurrentRisk is absent the model's own probability is used.
type AdviceRequest struct {
	Inputs      domain.TransactionInput `json:"inputs"`
	CurrentRisk *float64                `json:"currentRisk"`
}

// Advice handles POST /sessions/{id}/advice.
func (h *Handler) Advice(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.fittedSession(w, r)
	if !ok {
		return
	}

	var req AdviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Inputs == nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "inputs are required",
		})
		return
	}

	var risk float64
	if req.CurrentRisk != nil {
		risk = *req.CurrentRisk
	} else {
		p, err := sess.Model.PredictSingle(req.Inputs)
		if err != nil {
			writeError(w, err)
			return
		}
		risk = p
	}

	advice, err := sess.Model.GenerateAdvice(req.Inputs, risk)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId":   sess.ID,
		"currentRisk": risk,
		"advice":      advice,
	})
}

// fittedSession loads the session of the request and requires a model.
func (h *Handler) fittedSession(w http.ResponseWriter, r *http.Request) (session.Session, bool) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return session.Session{}, false
	}
	if !sess.HasModel() {
		writeError(w, domain.ErrModelNotFitted)
		return session.Session{}, false
	}
	return sess, true
}

// ============================================================================
// TRAINING RUN HANDLERS
// ============================================================================

// ListRuns handles GET /runs[?session={id}&limit={n}].
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{
				"error": "limit must be a non-negative integer",
			})
			return
		}
		limit = n
	}

	runs, err := h.repo.ListTrainingRuns(r.Context(), r.URL.Query().Get("session"), limit)
	if err != nil {
		writeError(w, err)
		return
	}
	if runs == nil {
		runs = []*domain.TrainingRun{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"count": len(runs),
	})
}

// GetRun handles GET /runs/{id}.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	run, err := h.repo.GetTrainingRun(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, run)
}
