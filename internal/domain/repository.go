package domain

import (
	"context"
	"time"
)

// Repository persists the audit trail of training runs and rule analyses.
// Trained models are held in memory only.
type Repository interface {
	// Training runs
	SaveTrainingRun(ctx context.Context, run *TrainingRun) error
	GetTrainingRun(ctx context.Context, id string) (*TrainingRun, error)
	ListTrainingRuns(ctx context.Context, sessionID string, limit int) ([]*TrainingRun, error)

	// Rule analyses
	SaveAnalysis(ctx context.Context, a *Analysis) error
	GetAnalysis(ctx context.Context, id string) (*Analysis, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// SQLiteJournalModes lists the journal modes accepted for SQLite.
var SQLiteJournalModes = []string{"DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF"}

// PostgresSSLModes lists the libpq sslmode values accepted for Postgres.
var PostgresSSLModes = []string{"disable", "allow", "prefer", "require", "verify-ca", "verify-full"}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string `json:"driver" mapstructure:"driver"`

	// SQLite specific
	SQLitePath        string        `json:"sqlitePath" mapstructure:"sqlitePath"`
	SQLiteJournalMode string        `json:"sqliteJournalMode" mapstructure:"sqliteJournalMode"`
	SQLiteBusyTimeout time.Duration `json:"sqliteBusyTimeout" mapstructure:"sqliteBusyTimeout"`

	// PostgreSQL specific. PostgresURL, when set, replaces the fields below.
	PostgresURL      string `json:"-" mapstructure:"postgresUrl"`
	PostgresHost     string `json:"postgresHost" mapstructure:"postgresHost"`
	PostgresPort     int    `json:"postgresPort" mapstructure:"postgresPort"`
	PostgresUser     string `json:"postgresUser" mapstructure:"postgresUser"`
	PostgresPassword string `json:"-" mapstructure:"postgresPassword"`
	PostgresDB       string `json:"postgresDb" mapstructure:"postgresDb"`
	PostgresSSLMode  string `json:"postgresSslMode" mapstructure:"postgresSslMode"`

	// Connection pool settings
	MaxOpenConns    int           `json:"maxOpenConns" mapstructure:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns" mapstructure:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime" mapstructure:"connMaxLifetime"`
	ConnectTimeout  time.Duration `json:"connectTimeout" mapstructure:"connectTimeout"`
}
