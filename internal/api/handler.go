package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/opensource-finance/fraudguard/internal/dataset"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/normalize"
	"github.com/opensource-finance/fraudguard/internal/schema"
	"github.com/opensource-finance/fraudguard/internal/session"
	"github.com/opensource-finance/fraudguard/internal/telemetry"
)

// Options carries the handler settings that do not come from the server
// section of the configuration.
type Options struct {
	Version string

	// InstanceID addresses training requests to this process's trainer.
	InstanceID string

	// Sample datasets
	SampleDir      string
	SampleRowLimit int

	MaxUploadMB int

	// JobTTL bounds how long job records stay pollable.
	JobTTL time.Duration

	// AnalysisTTL bounds how long rule analyses stay memoised.
	AnalysisTTL time.Duration
}

// previewRows is the number of rows returned by the dataset preview.
const previewRows = 5

// Handler holds dependencies for API handlers.
type Handler struct {
	repo     domain.Repository
	cache    domain.Cache
	bus      domain.EventBus
	sessions *session.Store
	metrics  *telemetry.Metrics
	opts     Options
}

// NewHandler creates a new API handler. repo, cache, bus and metrics may
// be nil; the endpoints that need them answer 503.
func NewHandler(repo domain.Repository, cache domain.Cache, bus domain.EventBus, sessions *session.Store, metrics *telemetry.Metrics, opts Options) *Handler {
	if sessions == nil {
		sessions = session.NewStore(0, 0)
	}
	if opts.MaxUploadMB <= 0 {
		opts.MaxUploadMB = 200
	}
	if opts.JobTTL <= 0 {
		opts.JobTTL = 24 * time.Hour
	}
	if opts.AnalysisTTL <= 0 {
		opts.AnalysisTTL = time.Hour
	}
	return &Handler{
		repo:     repo,
		cache:    cache,
		bus:      bus,
		sessions: sessions,
		metrics:  metrics,
		opts:     opts,
	}
}

// Health returns the health status of the server.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	status := "healthy"

	if h.repo != nil {
		if err := h.repo.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.cache != nil {
		if err := h.cache.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}
	if h.bus != nil {
		if err := h.bus.Ping(r.Context()); err != nil {
			status = "degraded"
		}
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  status,
		"version": h.version(),
	})
}

// Ready returns whether the server is ready to accept traffic.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"ready": "true",
	})
}

func (h *Handler) version() string {
	return h.opts.Version
}

// ============================================================================
// DOMAIN HANDLERS
// ============================================================================

// DomainSummary is one entry of GET /domains.
type DomainSummary struct {
	ID     domain.DomainID `json:"id"`
	Label  string          `json:"label"`
	Target string          `json:"target"`
}

// ListDomains handles GET /domains.
func (h *Handler) ListDomains(w http.ResponseWriter, r *http.Request) {
	all := schema.All()
	out := make([]DomainSummary, len(all))
	for i, cfg := range all {
		out[i] = DomainSummary{ID: cfg.ID, Label: cfg.ID.Label(), Target: cfg.Target}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"domains": out,
		"count":   len(out),
	})
}

// SchemaResponse is the declarative schema plus the options offered to
// categorical inputs.
type SchemaResponse struct {
	*domain.DomainConfig
	Label string `json:"label"`

	// Categories lists the fitted classes of each categorical column. A
	// column without a fitted encoder offers only "Unknown".
	Categories map[string][]string `json:"categories"`
	Fitted     bool                `json:"fitted"`
}

// GetSchema handles GET /domains/{domain}/schema[?session={id}].
func (h *Handler) GetSchema(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseDomainID(chi.URLParam(r, "domain"))
	if err != nil {
		writeError(w, err)
		return
	}
	cfg, err := schema.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	var classes map[string][]string
	fitted := false
	if sessionID := r.URL.Query().Get("session"); sessionID != "" {
		sess, err := h.sessions.Get(sessionID)
		if err != nil {
			writeError(w, err)
			return
		}
		if sess.HasModel() && sess.Domain == id {
			classes = sess.Model.EncoderClasses()
			fitted = true
		}
	}

	categories := make(map[string][]string, len(cfg.Categorical))
	for _, col := range cfg.Categorical {
		if opts := classes[col]; len(opts) > 0 {
			categories[col] = opts
			continue
		}
		categories[col] = []string{"Unknown"}
	}

	writeJSON(w, http.StatusOK, SchemaResponse{
		DomainConfig: cfg,
		Label:        id.Label(),
		Categories:   categories,
		Fitted:       fitted,
	})
}

// ============================================================================
// SESSION HANDLERS
// ============================================================================

// CreateSessionRequest is the request body for POST /sessions.
type CreateSessionRequest struct {
	Domain string `json:"domain"`
}

// SessionResponse describes a session without its table or model.
type SessionResponse struct {
	session.Session
	Label   string `json:"label"`
	Rows    int    `json:"rows"`
	Trained bool   `json:"hasModel"`
}

func sessionResponse(s session.Session) SessionResponse {
	resp := SessionResponse{
		Session: s,
		Label:   s.Domain.Label(),
		Trained: s.HasModel(),
	}
	if s.Table != nil {
		resp.Rows = s.Table.Len()
	}
	return resp
}

// CreateSession handles POST /sessions.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req CreateSessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid JSON request body",
		})
		return
	}
	if req.Domain == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "domain is required",
		})
		return
	}
	id, err := domain.ParseDomainID(req.Domain)
	if err != nil {
		writeError(w, err)
		return
	}

	sess, err := h.sessions.Create(id)
	if err != nil {
		writeError(w, err)
		return
	}
	h.metrics.SetSessions(h.sessions.Len())

	slog.Info("session created",
		"session_id", sess.ID,
		"domain", sess.Domain,
		"trace_id", GetTraceID(r.Context()),
	)
	writeJSON(w, http.StatusCreated, sessionResponse(sess))
}

// GetSession handles GET /sessions/{id}.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse(sess))
}

// DeleteSession handles DELETE /sessions/{id}.
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.sessions.Delete(id); err != nil {
		writeError(w, err)
		return
	}
	h.metrics.SetSessions(h.sessions.Len())

	writeJSON(w, http.StatusOK, map[string]string{
		"id":      id,
		"message": "session deleted",
	})
}

// ============================================================================
// DATASET HANDLERS
// ============================================================================

// DatasetResponse summarises a freshly loaded table.
type DatasetResponse struct {
	SessionID string   `json:"sessionId"`
	Source    string   `json:"source"`
	Rows      int      `json:"rows"`
	Columns   []string `json:"columns"`
}

// UploadDataset handles POST /sessions/{id}/dataset. The body is either a
// multipart form with a "file" field or the raw file; raw XLSX bodies are
// recognised by content type or a ?name= ending in .xlsx. Uploads are
// read in full.
func (h *Handler) UploadDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := h.sessions.Get(id); err != nil {
		writeError(w, err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, int64(h.opts.MaxUploadMB)<<20)

	name, body, err := uploadedFile(r)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	defer body.Close()

	t, err := dataset.Load(name, body, 0)
	if err != nil {
		writeUploadError(w, err)
		return
	}
	h.attachDataset(w, r, id, t, name)
}

// LoadSample handles POST /sessions/{id}/dataset/sample.
func (h *Handler) LoadSample(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}

	t, err := dataset.LoadSample(h.opts.SampleDir, sess.Domain, h.opts.SampleRowLimit)
	if err != nil {
		writeError(w, err)
		return
	}
	name, _ := dataset.SampleFile(sess.Domain)
	h.attachDataset(w, r, id, t, "sample:"+name)
}

func (h *Handler) attachDataset(w http.ResponseWriter, r *http.Request, id string, t *dataset.Table, source string) {
	sess, err := h.sessions.SetDataset(id, t, source)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("dataset loaded",
		"session_id", id,
		"domain", sess.Domain,
		"source", source,
		"rows", t.Len(),
		"trace_id", GetTraceID(r.Context()),
	)
	writeJSON(w, http.StatusOK, DatasetResponse{
		SessionID: id,
		Source:    source,
		Rows:      t.Len(),
		Columns:   t.Columns(),
	})
}

// PreviewDataset handles GET /sessions/{id}/dataset.
func (h *Handler) PreviewDataset(w http.ResponseWriter, r *http.Request) {
	sess, err := h.sessions.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Table == nil {
		writeError(w, domain.ErrEmptyDataset)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"sessionId": sess.ID,
		"source":    sess.Source,
		"preview":   dataset.NewPreview(sess.Table, previewRows),
	})
}

// NormalizeResponse is the capability report of the session dataset plus
// a preview of its normalized form.
type NormalizeResponse struct {
	*domain.CapabilityReport
	Preview *dataset.Preview `json:"preview"`
}

// NormalizeDataset handles POST /sessions/{id}/normalize. The session
// table is left untouched; normalization drops the target column, so the
// normalized form only feeds the report.
func (h *Handler) NormalizeDataset(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := h.sessions.Get(id)
	if err != nil {
		writeError(w, err)
		return
	}
	if sess.Table == nil {
		writeError(w, domain.ErrEmptyDataset)
		return
	}

	catalog, err := normalize.CatalogFor(sess.Domain)
	if err != nil {
		writeError(w, err)
		return
	}
	report, normalized, err := normalize.Report(sess.Table, catalog)
	if err != nil {
		writeError(w, err)
		return
	}

	slog.Info("dataset normalized",
		"session_id", id,
		"domain", sess.Domain,
		"found", len(report.InternalColumnsFound),
		"capabilities", len(report.Capabilities),
	)
	writeJSON(w, http.StatusOK, NormalizeResponse{
		CapabilityReport: report,
		Preview:          dataset.NewPreview(normalized, previewRows),
	})
}

// uploadedFile returns the file name and body of an upload request.
func uploadedFile(r *http.Request) (string, io.ReadCloser, error) {
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			return "", nil, err
		}
		return header.Filename, file, nil
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = "upload.csv"
		if mediaType == "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet" {
			name = "upload.xlsx"
		}
	}
	return name, r.Body, nil
}

func writeUploadError(w http.ResponseWriter, err error) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.As(err, &tooLarge):
		writeJSON(w, http.StatusRequestEntityTooLarge, map[string]string{
			"error": "upload exceeds size limit",
		})
	case domain.IsDataError(err):
		writeError(w, err)
	default:
		writeJSON(w, http.StatusBadRequest, map[string]string{
			"error": "invalid dataset: " + err.Error(),
		})
	}
}

// ============================================================================
// RESPONSES
// ============================================================================

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case domain.IsDataError(err):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrSessionNotFound), errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrModelNotFitted):
		return http.StatusConflict
	case errors.Is(err, domain.ErrUnknownDomain),
		errors.Is(err, domain.ErrUnknownModelKind),
		errors.Is(err, domain.ErrUnknownPatternCatalog):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// writeError writes err with the status of its class. Unclassified errors
// are logged and reported without detail.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		slog.Error("request failed", "error", err)
		msg = "internal server error"
	}
	body := map[string]any{"error": msg}
	if status == http.StatusUnprocessableEntity {
		body["dataError"] = true
	}
	writeJSON(w, status, body)
}
