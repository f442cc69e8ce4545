package domain

import "time"

// Config holds the complete FraudGuard configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server" mapstructure:"server"`

	// Tier selects the backing infrastructure profile
	Tier Tier `json:"tier" mapstructure:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository" mapstructure:"repository"`
	Cache      CacheConfig      `json:"cache" mapstructure:"cache"`
	EventBus   EventBusConfig   `json:"eventBus" mapstructure:"eventBus"`

	// Pipeline settings
	Training TrainingConfig `json:"training" mapstructure:"training"`
	Session  SessionConfig  `json:"session" mapstructure:"session"`

	// Observability
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
	Tracing TracingConfig `json:"tracing" mapstructure:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host" mapstructure:"host"`
	Port         int    `json:"port" mapstructure:"port"`
	ReadTimeout  int    `json:"readTimeout" mapstructure:"readTimeout"`   // seconds
	WriteTimeout int    `json:"writeTimeout" mapstructure:"writeTimeout"` // seconds
	MaxUploadMB  int    `json:"maxUploadMb" mapstructure:"maxUploadMb"`
}

// TrainingConfig holds the tunable constants of the model pipeline.
type TrainingConfig struct {
	// Threshold is the positive-class probability cutoff.
	Threshold float64 `json:"threshold" mapstructure:"threshold"`
	TestSize  float64 `json:"testSize" mapstructure:"testSize"`
	Seed      uint64  `json:"seed" mapstructure:"seed"`
	Trees     int     `json:"trees" mapstructure:"trees"`

	// PositiveLabels is the target vocabulary mapped to class 1.
	PositiveLabels []string `json:"positiveLabels" mapstructure:"positiveLabels"`

	// Built-in sample datasets
	SampleDir      string `json:"sampleDir" mapstructure:"sampleDir"`
	SampleRowLimit int    `json:"sampleRowLimit" mapstructure:"sampleRowLimit"`

	Workers int `json:"workers" mapstructure:"workers"`
}

// SessionConfig bounds the in-memory session store.
type SessionConfig struct {
	TTL         time.Duration `json:"ttl" mapstructure:"ttl"`
	MaxSessions int           `json:"maxSessions" mapstructure:"maxSessions"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `json:"format" mapstructure:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled      bool   `json:"enabled" mapstructure:"enabled"`
	ServiceName  string `json:"serviceName" mapstructure:"serviceName"`
	ExporterType string `json:"exporterType" mapstructure:"exporterType"` // stdout, otlp, jaeger
	Endpoint     string `json:"endpoint" mapstructure:"endpoint"`
}

// Tier represents the deployment profile.
type Tier string

const (
	// TierCommunity runs on SQLite + channels + in-process LRU
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + NATS + Redis
	TierPro Tier = "pro"
)

// DefaultPositiveLabels is the target vocabulary treated as class 1.
var DefaultPositiveLabels = []string{"1", "1.0", "Yes", "True", "Refused", "Fraud", "TARGET"}

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 120,
			MaxUploadMB:  200,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:            "sqlite",
			SQLitePath:        "./fraudguard.db",
			SQLiteJournalMode: "WAL",
			SQLiteBusyTimeout: 5 * time.Second,
			ConnectTimeout:    10 * time.Second,
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
			LocalTTL:     5 * time.Minute,
			JobTTL:       24 * time.Hour,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 100,
		},
		Training: TrainingConfig{
			Threshold:      0.25,
			TestSize:       0.3,
			Seed:           42,
			Trees:          100,
			PositiveLabels: append([]string(nil), DefaultPositiveLabels...),
			SampleDir:      "data/raw",
			SampleRowLimit: 50000,
			Workers:        1,
		},
		Session: SessionConfig{
			TTL:         2 * time.Hour,
			MaxSessions: 64,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "fraudguard",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:          "postgres",
		PostgresHost:    "localhost",
		PostgresPort:    5432,
		PostgresDB:      "fraudguard",
		PostgresSSLMode: "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 30 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
		LocalTTL:       time.Minute,
		JobTTL:         24 * time.Hour,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Training.Workers = 4
	cfg.Tracing.Enabled = true
	return cfg
}
