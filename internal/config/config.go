// Package config loads FraudGuard configuration from files, .env files and
// FRAUDGUARD_* environment variables on top of the tier defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"reflect"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// EnvPrefix prefixes every environment override, e.g.
// FRAUDGUARD_SERVER_PORT or FRAUDGUARD_TRAINING_THRESHOLD.
const EnvPrefix = "FRAUDGUARD"

// Load builds the configuration. Precedence, highest first: environment,
// config file (YAML, JSON or TOML; optional), tier defaults. Variables from
// envFiles are exported first; missing .env files are ignored.
func Load(path string, envFiles ...string) (*domain.Config, error) {
	if err := loadEnvFiles(envFiles); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	base := domain.DefaultConfig()
	if domain.Tier(strings.ToLower(v.GetString("tier"))) == domain.TierPro {
		base = domain.ProConfig()
	}
	setDefaults(v, "", reflect.ValueOf(*base))

	cfg := &domain.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func loadEnvFiles(files []string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("load env file %s: %w", f, err)
		}
	}
	return nil
}

// setDefaults registers every leaf of the default config so that
// AutomaticEnv can resolve it and Unmarshal falls back to it.
func setDefaults(v *viper.Viper, prefix string, val reflect.Value) {
	typ := val.Type()
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		tag := field.Tag.Get("mapstructure")
		if tag == "" || tag == "-" {
			continue
		}
		key := tag
		if prefix != "" {
			key = prefix + "." + tag
		}
		fv := val.Field(i)
		if fv.Kind() == reflect.Struct {
			setDefaults(v, key, fv)
			continue
		}
		v.SetDefault(key, fv.Interface())
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks ranges that would otherwise fail deep inside a run.
func Validate(cfg *domain.Config) error {
	var errs []error
	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", cfg.Server.Port))
	}
	if cfg.Tier != domain.TierCommunity && cfg.Tier != domain.TierPro {
		errs = append(errs, fmt.Errorf("unknown tier %q", cfg.Tier))
	}
	switch cfg.Repository.Driver {
	case "sqlite":
		if m := strings.ToUpper(cfg.Repository.SQLiteJournalMode); m != "" && !slices.Contains(domain.SQLiteJournalModes, m) {
			errs = append(errs, fmt.Errorf("invalid repository.sqliteJournalMode %q", cfg.Repository.SQLiteJournalMode))
		}
	case "postgres":
		if m := cfg.Repository.PostgresSSLMode; m != "" && !slices.Contains(domain.PostgresSSLModes, m) {
			errs = append(errs, fmt.Errorf("invalid repository.postgresSslMode %q", m))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported repository.driver %q", cfg.Repository.Driver))
	}
	if t := cfg.Training.Threshold; t <= 0 || t >= 1 {
		errs = append(errs, fmt.Errorf("training.threshold %v must be in (0,1)", t))
	}
	if s := cfg.Training.TestSize; s <= 0 || s >= 1 {
		errs = append(errs, fmt.Errorf("training.testSize %v must be in (0,1)", s))
	}
	if cfg.Training.Trees < 1 {
		errs = append(errs, fmt.Errorf("training.trees must be positive"))
	}
	if cfg.Training.SampleRowLimit < 1 {
		errs = append(errs, fmt.Errorf("training.sampleRowLimit must be positive"))
	}
	if len(cfg.Training.PositiveLabels) == 0 {
		errs = append(errs, fmt.Errorf("training.positiveLabels must not be empty"))
	}
	if cfg.Session.TTL <= 0 || cfg.Session.MaxSessions < 1 {
		errs = append(errs, fmt.Errorf("session.ttl and session.maxSessions must be positive"))
	}
	if !validLevels[strings.ToLower(cfg.Logging.Level)] {
		errs = append(errs, fmt.Errorf("invalid logging.level %q", cfg.Logging.Level))
	}
	if f := strings.ToLower(cfg.Logging.Format); f != "json" && f != "text" {
		errs = append(errs, fmt.Errorf("invalid logging.format %q", cfg.Logging.Format))
	}
	return errors.Join(errs...)
}
