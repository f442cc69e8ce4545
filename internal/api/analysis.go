package api

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/opensource-finance/fraudguard/internal/decision"
	"github.com/opensource-finance/fraudguard/internal/domain"
)

// AnalyzeRequest is the request body for POST /analyze.
type AnalyzeRequest struct {
	Domain string                  `json:"domain"`
	Inputs domain.TransactionInput `json:"inputs"`
}

// AnalyzeResponse is the response for POST /analyze.
type AnalyzeResponse struct {
	AnalysisID string `json:"analysisId"`
	Domain     string `json:"domain"`
	domain.ScoreResult
	Cached   bool `json:"cached"`
	Metadata struct {
		TraceID string `json:"traceId"`
		TotalMs int64  `json:"totalMs"`
		Version string `json:"version"`
	} `json:"metadata"`
}

// Analyze handles POST /analyze. Identical (domain, inputs) pairs are
// answered from the cache with the analysis id of the first evaluation.
func (h *Handler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Inputs == nil {
		req.Inputs = domain.TransactionInput{}
	}

	key, err := analysisKey(req.Domain, req.Inputs)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "inputs are not serializable",
		})
		return
	}

	if resp, ok := h.cachedAnalysis(r, key); ok {
		resp.Cached = true
		h.respondAnalysis(w, r, resp, start)
		return
	}

	result := decision.AnalyzeTransaction(req.Inputs, req.Domain)
	analysis := &domain.Analysis{
		ID:        uuid.New().String(),
		Domain:    req.Domain,
		Inputs:    req.Inputs,
		Result:    result,
		CreatedAt: time.Now().UTC(),
	}

	if h.repo != nil {
		if err := h.repo.SaveAnalysis(ctx, analysis); err != nil {
			slog.Error("failed to save analysis", "analysis_id", analysis.ID, "error", err)
		}
	}
	h.metrics.RecordDecision(decisionDomain(req.Domain), string(result.Action))

	resp := AnalyzeResponse{
		AnalysisID:  analysis.ID,
		Domain:      req.Domain,
		ScoreResult: result,
	}
	if h.cache != nil {
		if data, err := json.Marshal(resp); err == nil {
			if err := h.cache.Set(ctx, domain.ScopeAnalysis, key, data, h.opts.AnalysisTTL); err != nil {
				slog.Warn("failed to cache analysis", "analysis_id", analysis.ID, "error", err)
			}
		}
	}

	slog.Debug("transaction analyzed",
		"analysis_id", analysis.ID,
		"domain", req.Domain,
		"score", result.Score,
		"action", result.Action,
		"factors", len(result.Factors),
	)
	h.respondAnalysis(w, r, resp, start)
}

func (h *Handler) cachedAnalysis(r *http.Request, key string) (AnalyzeResponse, bool) {
	var resp AnalyzeResponse
	if h.cache == nil {
		return resp, false
	}
	data, err := h.cache.Get(r.Context(), domain.ScopeAnalysis, key)
	if err != nil {
		slog.Warn("analysis cache lookup failed", "error", err)
		return resp, false
	}
	if data == nil {
		return resp, false
	}
	if err := json.Unmarshal(data, &resp); err != nil {
		return resp, false
	}
	return resp, true
}

func (h *Handler) respondAnalysis(w http.ResponseWriter, r *http.Request, resp AnalyzeResponse, start time.Time) {
	resp.Metadata.TraceID = GetTraceID(r.Context())
	resp.Metadata.TotalMs = time.Since(start).Milliseconds()
	resp.Metadata.Version = h.version()
	writeJSON(w, http.StatusOK, resp)
}

// GetAnalysis handles GET /analyses/{id}.
func (h *Handler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"error": "repository not available",
		})
		return
	}

	a, err := h.repo.GetAnalysis(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// analysisKey hashes the domain and the inputs. encoding/json sorts map
// keys, so equal inputs produce equal keys.
func analysisKey(domainName string, in domain.TransactionInput) (string, error) {
	data, err := json.Marshal(in)
	if err != nil {
		return "", err
	}
	sum := sha256.New()
	sum.Write([]byte(domainName))
	sum.Write([]byte{0})
	sum.Write(data)
	return hex.EncodeToString(sum.Sum(nil)), nil
}

// decisionDomain bounds the metric label to the known domains.
func decisionDomain(name string) string {
	id, err := domain.ParseDomainID(name)
	if err != nil {
		return "unknown"
	}
	return string(id)
}
