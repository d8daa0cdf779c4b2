package storage

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"honeypot/internal/config"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Normalize maps driver aliases to the registered database/sql driver name.
func Normalize(driver string) string {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return "sqlite3"
	case "postgres", "postgresql", "pg":
		return "postgres"
	case "mysql":
		return "mysql"
	default:
		return strings.ToLower(driver)
	}
}

// Open connects to the configured database for driver and verifies the connection.
func Open(ctx context.Context, driver string, cfg *config.Config) (*sql.DB, error) {
	driver = Normalize(driver)
	dbCfg, ok := cfg.Databases[driver]
	if !ok {
		return nil, fmt.Errorf("database config for %s not found", driver)
	}

	dsn, err := dataSource(driver, dbCfg)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s database: %w", driver, err)
	}
	if driver == "sqlite3" {
		// a single writer avoids SQLITE_BUSY under concurrent turns
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return db, nil
}

func dataSource(driver string, c config.DatabaseConfig) (string, error) {
	if c.DSN != "" {
		return c.DSN, nil
	}
	switch driver {
	case "sqlite3":
		return "", fmt.Errorf("sqlite dsn must be provided")
	case "mysql":
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?%s",
			c.Username,
			c.Password,
			c.Host,
			c.Port,
			c.DBName,
			c.Params,
		), nil
	case "postgres":
		u := url.URL{
			Scheme:   "postgres",
			User:     url.UserPassword(c.Username, c.Password),
			Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
			Path:     "/" + c.DBName,
			RawQuery: c.Params,
		}
		return u.String(), nil
	default:
		return "", fmt.Errorf("unsupported driver: %s", driver)
	}
}

// Migrate ensures the session table is present.
func Migrate(ctx context.Context, db *sql.DB, driver string) error {
	var stmts []string
	switch Normalize(driver) {
	case "sqlite3":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS honeypot_sessions (
				session_id TEXT PRIMARY KEY,
				status TEXT NOT NULL,
				payload TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_honeypot_sessions_updated ON honeypot_sessions(updated_at)`,
		}
	case "postgres":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS honeypot_sessions (
				session_id VARCHAR(255) PRIMARY KEY,
				status VARCHAR(16) NOT NULL,
				payload TEXT NOT NULL,
				created_at TIMESTAMPTZ NOT NULL,
				updated_at TIMESTAMPTZ NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_honeypot_sessions_updated ON honeypot_sessions(updated_at)`,
		}
	case "mysql":
		stmts = []string{
			`CREATE TABLE IF NOT EXISTS honeypot_sessions (
				session_id VARCHAR(255) NOT NULL,
				status VARCHAR(16) NOT NULL,
				payload MEDIUMTEXT NOT NULL,
				created_at DATETIME(6) NOT NULL,
				updated_at DATETIME(6) NOT NULL,
				PRIMARY KEY (session_id),
				INDEX idx_honeypot_sessions_updated (updated_at)
			) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`,
		}
	default:
		return fmt.Errorf("unsupported driver for migration: %s", driver)
	}

	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate (%s): %w", driver, err)
		}
	}
	return nil
}
