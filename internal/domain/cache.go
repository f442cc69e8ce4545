package domain

import (
	"context"
	"time"
)

// Cache stores short-lived records: training job status and memoised rule
// analyses. Supports two-phase caching: local LRU + Redis.
type Cache interface {
	// Get retrieves a value from cache.
	// Returns nil, nil if key not found.
	Get(ctx context.Context, scope string, key string) ([]byte, error)

	// Set stores a value in cache with expiration.
	Set(ctx context.Context, scope string, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from cache.
	Delete(ctx context.Context, scope string, key string) error

	// GetJob retrieves a training job record. Returns nil, nil if absent.
	GetJob(ctx context.Context, jobID string) (*TrainingJob, error)

	// SetJob stores a training job record.
	SetJob(ctx context.Context, job *TrainingJob, ttl time.Duration) error

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// Cache scopes.
const (
	ScopeJobs     = "jobs"
	ScopeAnalysis = "analysis"
)

// CacheConfig holds configuration for cache initialization.
type CacheConfig struct {
	// Type is the cache type: "memory" or "redis"
	Type string `json:"type" mapstructure:"type"`

	// Local LRU cache settings
	LocalMaxSize int           `json:"localMaxSize" mapstructure:"localMaxSize"`
	LocalTTL     time.Duration `json:"localTTL" mapstructure:"localTTL"`

	// Redis settings
	RedisAddr     string `json:"redisAddr" mapstructure:"redisAddr"`
	RedisPassword string `json:"-" mapstructure:"redisPassword"`
	RedisDB       int    `json:"redisDb" mapstructure:"redisDb"`

	// Two-phase settings
	EnableTwoPhase bool `json:"enableTwoPhase" mapstructure:"enableTwoPhase"` // If true, check local first, then Redis

	// JobTTL bounds how long finished job records stay pollable.
	JobTTL time.Duration `json:"jobTTL" mapstructure:"jobTTL"`
}
