package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/opensource-finance/fraudguard/internal/api"
	"github.com/opensource-finance/fraudguard/internal/bus"
	"github.com/opensource-finance/fraudguard/internal/cache"
	"github.com/opensource-finance/fraudguard/internal/domain"
	"github.com/opensource-finance/fraudguard/internal/model"
	"github.com/opensource-finance/fraudguard/internal/repository"
	"github.com/opensource-finance/fraudguard/internal/session"
	"github.com/opensource-finance/fraudguard/internal/telemetry"
	"github.com/opensource-finance/fraudguard/internal/worker"
)

// sweepInterval is how often expired sessions are dropped.
const sweepInterval = time.Minute

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the training worker",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return serve(cmd.Context())
		},
	}
}

func serve(ctx context.Context) error {
	slog.Info("starting fraudguard",
		"version", Version,
		"commit", Commit,
		"build_date", BuildDate,
	)
	slog.Info("configuration loaded",
		"tier", cfg.Tier,
		"repository", cfg.Repository.Driver,
		"cache", cfg.Cache.Type,
		"eventbus", cfg.EventBus.Type,
	)

	repo, err := repository.New(cfg.Repository)
	if err != nil {
		return fmt.Errorf("failed to initialize repository: %w", err)
	}
	defer repo.Close()
	slog.Info("repository initialized", "driver", cfg.Repository.Driver)

	cacheImpl, err := cache.New(cfg.Cache)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	defer cacheImpl.Close()
	slog.Info("cache initialized", "type", cfg.Cache.Type)

	busImpl, err := bus.New(cfg.EventBus)
	if err != nil {
		return fmt.Errorf("failed to initialize event bus: %w", err)
	}
	defer busImpl.Close()
	slog.Info("event bus initialized", "type", cfg.EventBus.Type)

	metrics := telemetry.New()
	sessions := session.NewStoreFromConfig(cfg.Session)
	instanceID := uuid.New().String()

	trainer := worker.NewTrainer(busImpl, repo, cacheImpl, sessions, metrics, worker.Config{
		InstanceID: instanceID,
		JobTTL:     cfg.Cache.JobTTL,
		Options:    model.OptionsFromConfig(cfg.Training),
	})
	if err := trainer.Start(); err != nil {
		return fmt.Errorf("failed to start trainer: %w", err)
	}
	slog.Info("trainer started", "instance_id", instanceID)

	srv := api.NewServer(cfg.Server, repo, cacheImpl, busImpl, sessions, metrics, api.Options{
		Version:        Version,
		InstanceID:     instanceID,
		SampleDir:      cfg.Training.SampleDir,
		SampleRowLimit: cfg.Training.SampleRowLimit,
		MaxUploadMB:    cfg.Server.MaxUploadMB,
		JobTTL:         cfg.Cache.JobTTL,
	})

	serverErr := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()
	go sweepSessions(ctx, sessions, metrics)

	slog.Info("fraudguard is ready",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
	)
	printBanner(cfg, Version)

	select {
	case <-ctx.Done():
	case err := <-serverErr:
		slog.Error("server failed", "error", err)
	}
	slog.Info("shutting down...")

	// Stop the trainer first so in-flight jobs record their cancellation.
	if err := trainer.Stop(); err != nil {
		slog.Error("failed to stop trainer", "error", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	slog.Info("fraudguard shutdown complete")
	return nil
}

func sweepSessions(ctx context.Context, sessions *session.Store, metrics *telemetry.Metrics) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := sessions.Sweep(); n > 0 {
				slog.Info("expired sessions removed", "count", n)
			}
			metrics.SetSessions(sessions.Len())
		}
	}
}

func printBanner(cfg *domain.Config, version string) {
	fmt.Println()
	fmt.Println("  FRAUDGUARD  multi-domain fraud triage")
	fmt.Println()
	fmt.Printf("  Version:  %s\n", version)
	fmt.Printf("  Tier:     %s\n", cfg.Tier)
	fmt.Printf("  Server:   http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()
	fmt.Println("  Endpoints:")
	fmt.Println("    GET  /domains                      - List domains")
	fmt.Println("    GET  /domains/{domain}/schema      - Feature schema and input options")
	fmt.Println("    POST /sessions                     - Start a session")
	fmt.Println("    POST /sessions/{id}/dataset        - Upload CSV or XLSX")
	fmt.Println("    POST /sessions/{id}/dataset/sample - Load the sample dataset")
	fmt.Println("    POST /sessions/{id}/normalize      - Capability report")
	fmt.Println("    POST /sessions/{id}/train          - Queue a training job")
	fmt.Println("    GET  /jobs/{id}                    - Training job status")
	fmt.Println("    POST /sessions/{id}/predict        - Score a transaction")
	fmt.Println("    POST /analyze                      - Rule scorecard")
	fmt.Println("    GET  /runs                         - Training audit trail")
	fmt.Println("    GET  /health | /metrics            - Operations")
	fmt.Println()
}
