package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.DefaultConfig(), cfg)
}

func TestLoadFileAndEnv(t *testing.T) {
	path := writeFile(t, "fraudguard.yaml", `
server:
  port: 9090
training:
  threshold: 0.4
  trees: 50
session:
  ttl: 30m
`)
	t.Setenv("FRAUDGUARD_TRAINING_TREES", "25")
	t.Setenv("FRAUDGUARD_TRAINING_POSITIVELABELS", "1,Fraud")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, 0.4, cfg.Training.Threshold)
	assert.Equal(t, 25, cfg.Training.Trees, "environment wins over file")
	assert.Equal(t, []string{"1", "Fraud"}, cfg.Training.PositiveLabels)
	assert.Equal(t, 30*time.Minute, cfg.Session.TTL)
	assert.Equal(t, 0.3, cfg.Training.TestSize, "unset keys keep defaults")
	assert.Equal(t, "sqlite", cfg.Repository.Driver)
}

func TestLoadProTier(t *testing.T) {
	t.Setenv("FRAUDGUARD_TIER", "pro")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, domain.TierPro, cfg.Tier)
	assert.Equal(t, "postgres", cfg.Repository.Driver)
	assert.Equal(t, "nats", cfg.EventBus.Type)
	assert.True(t, cfg.Cache.EnableTwoPhase)
}

func TestLoadEnvFile(t *testing.T) {
	env := writeFile(t, ".env", "FRAUDGUARD_SERVER_PORT=7070\n")
	t.Cleanup(func() { os.Unsetenv("FRAUDGUARD_SERVER_PORT") })

	cfg, err := Load("", env, filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, 7070, cfg.Server.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("FRAUDGUARD_TRAINING_THRESHOLD", "1.5")
	_, err := Load("")
	assert.ErrorContains(t, err, "training.threshold")

	_, err = Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cfg := domain.DefaultConfig()
	require.NoError(t, Validate(cfg))

	cfg.Server.Port = 0
	cfg.Training.TestSize = 1
	cfg.Logging.Level = "loud"
	err := Validate(cfg)
	require.Error(t, err)
	assert.ErrorContains(t, err, "server.port")
	assert.ErrorContains(t, err, "training.testSize")
	assert.ErrorContains(t, err, "logging.level")
}

func TestLoadRepositorySettings(t *testing.T) {
	t.Setenv("FRAUDGUARD_REPOSITORY_SQLITEJOURNALMODE", "delete")
	t.Setenv("FRAUDGUARD_REPOSITORY_SQLITEBUSYTIMEOUT", "2s")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "delete", cfg.Repository.SQLiteJournalMode)
	assert.Equal(t, 2*time.Second, cfg.Repository.SQLiteBusyTimeout)
	assert.Equal(t, 10*time.Second, cfg.Repository.ConnectTimeout)
}

func TestValidateRepository(t *testing.T) {
	cfg := domain.DefaultConfig()
	cfg.Repository.SQLiteJournalMode = "fast"
	assert.ErrorContains(t, Validate(cfg), "repository.sqliteJournalMode")

	cfg = domain.ProConfig()
	require.NoError(t, Validate(cfg))
	cfg.Repository.PostgresSSLMode = "sometimes"
	assert.ErrorContains(t, Validate(cfg), "repository.postgresSslMode")

	cfg = domain.DefaultConfig()
	cfg.Repository.Driver = "mysql"
	assert.ErrorContains(t, Validate(cfg), "repository.driver")
}
