package repository

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/opensource-finance/fraudguard/internal/domain"
)

// Connection defaults applied when the configuration leaves a field empty.
const (
	defaultSQLitePath     = "./fraudguard.db"
	defaultJournalMode    = "WAL"
	defaultBusyTimeout    = 5 * time.Second
	defaultConnectTimeout = 10 * time.Second
)

// open connects to the configured driver and verifies the connection
// within cfg.ConnectTimeout.
func open(cfg domain.RepositoryConfig) (*sql.DB, error) {
	driver, dsn, err := dataSource(cfg)
	if err != nil {
		return nil, err
	}
	if driver == "sqlite" {
		if err := ensureDir(sqlitePath(cfg)); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s database: %w", driver, err)
	}

	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping %s database: %w", driver, err)
	}
	return db, nil
}

// dataSource returns the database/sql driver name and DSN for cfg.
func dataSource(cfg domain.RepositoryConfig) (driver, dsn string, err error) {
	switch cfg.Driver {
	case "sqlite":
		return "sqlite", sqliteDSN(cfg), nil
	case "postgres":
		dsn, err := postgresDSN(cfg)
		return "postgres", dsn, err
	default:
		return "", "", fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}
}

func sqlitePath(cfg domain.RepositoryConfig) string {
	if cfg.SQLitePath == "" {
		return defaultSQLitePath
	}
	return cfg.SQLitePath
}

// sqliteDSN builds a modernc.org/sqlite URI. Pragmas are applied on every
// new connection in the pool.
func sqliteDSN(cfg domain.RepositoryConfig) string {
	mode := strings.ToUpper(cfg.SQLiteJournalMode)
	if !slices.Contains(domain.SQLiteJournalModes, mode) {
		mode = defaultJournalMode
	}
	busy := cfg.SQLiteBusyTimeout
	if busy <= 0 {
		busy = defaultBusyTimeout
	}

	pragmas := url.Values{}
	pragmas.Add("_pragma", "journal_mode("+mode+")")
	pragmas.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busy.Milliseconds()))
	pragmas.Add("_pragma", "foreign_keys(ON)")
	// WAL tolerates NORMAL sync without risking corruption.
	if mode == "WAL" {
		pragmas.Add("_pragma", "synchronous(NORMAL)")
	}
	return "file:" + sqlitePath(cfg) + "?" + pragmas.Encode()
}

// postgresDSN returns PostgresURL verbatim when set, otherwise a libpq
// keyword/value string with every value quoted.
func postgresDSN(cfg domain.RepositoryConfig) (string, error) {
	if cfg.PostgresURL != "" {
		return cfg.PostgresURL, nil
	}

	host := cfg.PostgresHost
	if host == "" {
		host = "localhost"
	}
	port := cfg.PostgresPort
	if port == 0 {
		port = 5432
	}
	dbname := cfg.PostgresDB
	if dbname == "" {
		dbname = "fraudguard"
	}
	sslmode := cfg.PostgresSSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	if !slices.Contains(domain.PostgresSSLModes, sslmode) {
		return "", fmt.Errorf("unsupported postgres sslmode %q", sslmode)
	}
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = defaultConnectTimeout
	}

	params := []struct{ key, val string }{
		{"host", host},
		{"port", fmt.Sprint(port)},
		{"user", cfg.PostgresUser},
		{"password", cfg.PostgresPassword},
		{"dbname", dbname},
		{"sslmode", sslmode},
		{"connect_timeout", fmt.Sprint(max(1, int(timeout.Seconds())))},
		{"application_name", "fraudguard"},
	}
	parts := make([]string, 0, len(params))
	for _, p := range params {
		if p.val == "" {
			continue
		}
		parts = append(parts, p.key+"="+pqQuote(p.val))
	}
	return strings.Join(parts, " "), nil
}

// pqQuote single-quotes v for a libpq connection string, escaping
// backslashes and quotes.
func pqQuote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `'`, `\'`)
	return "'" + v + "'"
}

func ensureDir(path string) error {
	if path == ":memory:" {
		return nil
	}
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create database directory: %w", err)
	}
	return nil
}
