// Package worker runs training jobs taken from the event bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/schema"
	"github.com/opensource-finance/fraudguard/internal/session"
	"github.com/opensource-finance/fraudguard/internal/telemetry"
)

var tracer = telemetry.Tracer("fraudguard-worker")

// Config holds trainer configuration.
type Config struct {
	// InstanceID addresses the requests of this process; see
	// domain.TrainingTopic.
	InstanceID string

	// JobTTL bounds how long job records stay pollable.
	JobTTL time.Duration

	// Options are the pipeline constants applied to every run.
	Options model.Options
}

// Trainer consumes training requests, fits models on session datasets and
// records the outcome in the cache, the repository and the session.
type Trainer struct {
	bus      domain.EventBus
	repo     domain.Repository
	cache    domain.Cache
	sessions *session.Store
	metrics  *telemetry.Metrics
	cfg      Config

	mu            sync.Mutex
	subscriptions []domain.Subscription
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewTrainer creates a trainer. repo and metrics may be nil.
func NewTrainer(bus domain.EventBus, repo domain.Repository, cache domain.Cache, sessions *session.Store, metrics *telemetry.Metrics, cfg Config) *Trainer {
	if cfg.JobTTL <= 0 {
		cfg.JobTTL = 24 * time.Hour
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Trainer{
		bus:      bus,
		repo:     repo,
		cache:    cache,
		sessions: sessions,
		metrics:  metrics,
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Topic returns the subject this trainer consumes.
func (t *Trainer) Topic() string {
	return domain.TrainingTopic(t.cfg.InstanceID)
}

// Start subscribes to training requests.
func (t *Trainer) Start() error {
	sub, err := t.bus.Subscribe(t.ctx, t.Topic(), t.handleMessage)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", t.Topic(), err)
	}
	t.mu.Lock()
	t.subscriptions = append(t.subscriptions, sub)
	t.mu.Unlock()

	slog.Info("trainer started", "topic", t.Topic())
	return nil
}

// Stop cancels in-flight training and unsubscribes.
func (t *Trainer) Stop() error {
	t.cancel()

	t.mu.Lock()
	defer t.mu.Unlock()
	for _, sub := range t.subscriptions {
		if err := sub.Unsubscribe(); err != nil {
			slog.Error("failed to unsubscribe",
				"topic", sub.Topic(),
				"error", err,
			)
		}
	}
	t.subscriptions = nil

	slog.Info("trainer stopped")
	return nil
}

// Stats describes the active subscriptions.
type Stats struct {
	SubscriptionCount int      `json:"subscriptionCount"`
	Topics            []string `json:"topics"`
}

// GetStats returns current trainer statistics.
func (t *Trainer) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	topics := make([]string, len(t.subscriptions))
	for i, sub := range t.subscriptions {
		topics[i] = sub.Topic()
	}
	return Stats{
		SubscriptionCount: len(t.subscriptions),
		Topics:            topics,
	}
}

func (t *Trainer) handleMessage(ctx context.Context, msg *domain.Message) error {
	var req domain.TrainingRequest
	if err := json.Unmarshal(msg.Payload, &req); err != nil {
		slog.Error("failed to parse training request",
			"message_id", msg.ID,
			"error", err,
		)
		return err
	}
	_, err := t.Process(ctx, req)
	return err
}

// Process runs one training request to completion and returns the final
// job record. Data errors fail the job but are not returned as errors.
func (t *Trainer) Process(ctx context.Context, req domain.TrainingRequest) (*domain.TrainingJob, error) {
	start := time.Now()

	job, err := t.cache.GetJob(ctx, req.JobID)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", req.JobID, err)
	}
	if job == nil {
		job = &domain.TrainingJob{
			ID:        req.JobID,
			SessionID: req.SessionID,
			ModelKind: req.ModelKind,
			CreatedAt: start.UTC(),
		}
	}
	job.Status = domain.JobRunning
	if err := t.cache.SetJob(ctx, job, t.cfg.JobTTL); err != nil {
		return nil, fmt.Errorf("mark job running: %w", err)
	}

	ctx, span := tracer.Start(ctx, "training.job",
		trace.WithAttributes(
			attribute.String("job.id", req.JobID),
			attribute.String("session.id", req.SessionID),
			attribute.String("model.kind", req.ModelKind),
		),
	)
	defer span.End()

	run, trainErr := t.train(ctx, req, job)
	run.DurationMs = time.Since(start).Milliseconds()

	job.FinishedAt = time.Now().UTC()
	outcome := telemetry.OutcomeSucceeded
	switch {
	case trainErr == nil:
		job.Status = domain.JobSucceeded
		job.RunID = run.ID
	case domain.IsDataError(trainErr):
		outcome = telemetry.OutcomeDataError
		job.Status = domain.JobFailed
		job.Error = trainErr.Error()
		job.DataError = true
	default:
		outcome = telemetry.OutcomeFailed
		job.Status = domain.JobFailed
		job.Error = trainErr.Error()
	}
	if trainErr != nil {
		run.Error = trainErr.Error()
		span.RecordError(trainErr)
		span.SetStatus(codes.Error, trainErr.Error())
	}
	t.metrics.ObserveTraining(string(job.Domain), job.ModelKind, outcome, time.Since(start))

	// Runs that never reached the pipeline are not part of the audit trail.
	if t.repo != nil && job.Domain != "" {
		if err := t.repo.SaveTrainingRun(ctx, run); err != nil {
			slog.Error("failed to save training run",
				"job_id", job.ID,
				"run_id", run.ID,
				"error", err,
			)
		}
	}

	if err := t.cache.SetJob(context.WithoutCancel(ctx), job, t.cfg.JobTTL); err != nil {
		slog.Error("failed to store job result", "job_id", job.ID, "error", err)
	}
	t.publishCompleted(ctx, job)

	slog.Info("training job finished",
		"job_id", job.ID,
		"session_id", job.SessionID,
		"domain", job.Domain,
		"model_kind", job.ModelKind,
		"status", job.Status,
		"data_error", job.DataError,
		"duration_ms", run.DurationMs,
	)
	return job, nil
}

// train fits the model and attaches it to the session. It always returns a
// run record; the error says why training did not produce a model.
func (t *Trainer) train(ctx context.Context, req domain.TrainingRequest, job *domain.TrainingJob) (*domain.TrainingRun, error) {
	run := &domain.TrainingRun{
		ID:        uuid.New().String(),
		SessionID: req.SessionID,
		ModelKind: req.ModelKind,
		CreatedAt: time.Now().UTC(),
	}

	sess, err := t.sessions.Get(req.SessionID)
	if err != nil {
		return run, err
	}
	job.Domain = sess.Domain
	run.Domain = sess.Domain

	kind, err := model.ParseKind(req.ModelKind)
	if err != nil {
		return run, err
	}
	job.ModelKind = string(kind)
	run.ModelKind = string(kind)

	if sess.Table == nil {
		return run, fmt.Errorf("%w: no dataset loaded", domain.ErrEmptyDataset)
	}
	run.Rows = sess.Table.Len()

	cfg, err := schema.Get(sess.Domain)
	if err != nil {
		return run, err
	}
	p, err := model.NewPipeline(cfg, kind, t.cfg.Options)
	if err != nil {
		return run, err
	}
	m, metrics, err := p.Train(ctx, sess.Table)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			slog.Warn("training cancelled", "job_id", job.ID)
		}
		return run, err
	}
	run.Metrics = metrics

	if _, err := t.sessions.SetModel(req.SessionID, m, metrics, run.ID); err != nil {
		return run, fmt.Errorf("attach model: %w", err)
	}
	return run, nil
}

func (t *Trainer) publishCompleted(ctx context.Context, job *domain.TrainingJob) {
	payload, err := json.Marshal(domain.TrainingCompleted{
		JobID:     job.ID,
		SessionID: job.SessionID,
		RunID:     job.RunID,
		Status:    job.Status,
		Error:     job.Error,
	})
	if err != nil {
		return
	}
	if err := t.bus.Publish(context.WithoutCancel(ctx), domain.TopicTrainingCompleted, payload); err != nil {
		slog.Warn("failed to publish training completion",
			"job_id", job.ID,
			"error", err,
		)
	}
}
