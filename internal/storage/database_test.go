package storage

import (
	"context"
	"testing"

	"honeypot/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAndMigrateSQLite(t *testing.T) {
	cfg := config.Default()
	cfg.Databases["sqlite3"] = config.DatabaseConfig{DSN: "file::memory:?cache=shared"}
	ctx := context.Background()

	db, err := Open(ctx, "sqlite", cfg)
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(ctx, db, "sqlite3"))
	// idempotent
	require.NoError(t, Migrate(ctx, db, "sqlite3"))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM honeypot_sessions`).Scan(&n))
	assert.Equal(t, 0, n)
}

func TestDataSource(t *testing.T) {
	dsn, err := dataSource("postgres", config.DatabaseConfig{
		Host: "db", Port: 5432, Username: "hp", Password: "pw", DBName: "honeypot", Params: "sslmode=disable",
	})
	require.NoError(t, err)
	assert.Equal(t, "postgres://hp:pw@db:5432/honeypot?sslmode=disable", dsn)

	dsn, err = dataSource("mysql", config.DatabaseConfig{Host: "db", Port: 3306, Username: "hp", Password: "pw", DBName: "honeypot", Params: "parseTime=true"})
	require.NoError(t, err)
	assert.Equal(t, "hp:pw@tcp(db:3306)/honeypot?parseTime=true", dsn)

	_, err = Open(context.Background(), "oracle", config.Default())
	assert.Error(t, err)
}
