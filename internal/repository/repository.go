// Package repository persists the training and analysis audit trail.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// ErrInvalidInput reports a record that cannot be stored.
var ErrInvalidInput = errors.New("invalid input")

// defaultListLimit caps ListTrainingRuns when no limit is given.
const defaultListLimit = 50

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New opens the configured database and runs migrations.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	db, err := open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{db: db, driver: cfg.Driver}
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

// SaveTrainingRun stores the audit record of a training attempt.
func (r *SQLRepository) SaveTrainingRun(ctx context.Context, run *domain.TrainingRun) error {
	if run == nil || run.ID == "" {
		return fmt.Errorf("%w: run id is required", ErrInvalidInput)
	}

	var metrics sql.NullString
	if run.Metrics != nil {
		data, err := json.Marshal(run.Metrics)
		if err != nil {
			return fmt.Errorf("encode metrics: %w", err)
		}
		metrics = sql.NullString{String: string(data), Valid: true}
	}

	query := `
		INSERT INTO training_runs (
			id, session_id, domain, model_kind, rows_used,
			metrics, error, duration_ms, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, r.rebind(query),
		run.ID, run.SessionID, string(run.Domain), run.ModelKind, run.Rows,
		metrics, run.Error, run.DurationMs, run.CreatedAt.UTC(),
	)
	return err
}

const selectTrainingRun = `
	SELECT id, session_id, domain, model_kind, rows_used,
		   metrics, error, duration_ms, created_at
	FROM training_runs
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTrainingRun(s rowScanner) (*domain.TrainingRun, error) {
	var run domain.TrainingRun
	var dom string
	var metrics sql.NullString
	if err := s.Scan(
		&run.ID, &run.SessionID, &dom, &run.ModelKind, &run.Rows,
		&metrics, &run.Error, &run.DurationMs, &run.CreatedAt,
	); err != nil {
		return nil, err
	}
	run.Domain = domain.DomainID(dom)
	if metrics.Valid && metrics.String != "" {
		var m domain.Metrics
		if err := json.Unmarshal([]byte(metrics.String), &m); err != nil {
			return nil, fmt.Errorf("failed to parse metrics for run %s: %w", run.ID, err)
		}
		run.Metrics = &m
	}
	return &run, nil
}

// GetTrainingRun retrieves a training run by ID.
func (r *SQLRepository) GetTrainingRun(ctx context.Context, id string) (*domain.TrainingRun, error) {
	row := r.db.QueryRowContext(ctx, r.rebind(selectTrainingRun+" WHERE id = ?"), id)
	run, err := scanTrainingRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return run, err
}

// ListTrainingRuns returns the newest runs first. An empty sessionID lists
// runs of every session.
func (r *SQLRepository) ListTrainingRuns(ctx context.Context, sessionID string, limit int) ([]*domain.TrainingRun, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := selectTrainingRun
	args := []any{}
	if sessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, sessionID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*domain.TrainingRun{}
	for rows.Next() {
		run, err := scanTrainingRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// SaveAnalysis stores a rule engine evaluation.
func (r *SQLRepository) SaveAnalysis(ctx context.Context, a *domain.Analysis) error {
	if a == nil || a.ID == "" {
		return fmt.Errorf("%w: analysis id is required", ErrInvalidInput)
	}

	inputs, err := json.Marshal(a.Inputs)
	if err != nil {
		return fmt.Errorf("encode inputs: %w", err)
	}
	result, err := json.Marshal(a.Result)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}

	query := `
		INSERT INTO analyses (id, domain, inputs, score, action, result, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, r.rebind(query),
		a.ID, a.Domain, string(inputs), a.Result.Score, a.Result.Action,
		string(result), a.CreatedAt.UTC(),
	)
	return err
}

// GetAnalysis retrieves an analysis by ID.
func (r *SQLRepository) GetAnalysis(ctx context.Context, id string) (*domain.Analysis, error) {
	query := `
		SELECT id, domain, inputs, result, created_at
		FROM analyses
		WHERE id = ?
	`

	var a domain.Analysis
	var inputs, result string
	err := r.db.QueryRowContext(ctx, r.rebind(query), id).Scan(
		&a.ID, &a.Domain, &inputs, &result, &a.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal([]byte(inputs), &a.Inputs); err != nil {
		return nil, fmt.Errorf("failed to parse inputs for analysis %s: %w", a.ID, err)
	}
	if err := json.Unmarshal([]byte(result), &a.Result); err != nil {
		return nil, fmt.Errorf("failed to parse result for analysis %s: %w", a.ID, err)
	}
	return &a, nil
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			n++
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
