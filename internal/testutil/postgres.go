package testutil

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fastygo/taskpulse/internal/config"
	pgInfra "github.com/fastygo/taskpulse/internal/infrastructure/postgres"
)

var errMissingDSN = errors.New("missing TEST_DATABASE_URL")

var (
	poolOnce sync.Once
	pool     *pgxpool.Pool
	poolErr  error
)

// Pool returns a migrated pool for integration tests, or skips the test when
// TEST_DATABASE_URL is unset.
func Pool(tb testing.TB) *pgxpool.Pool {
	tb.Helper()

	poolOnce.Do(func() {
		dsn := os.Getenv("TEST_DATABASE_URL")
		if dsn == "" {
			poolErr = errMissingDSN
			return
		}
		cfg := &config.Config{
			Database:   config.DatabaseConfig{URL: dsn, Name: "taskpulse_test"},
			Migrations: config.MigrationsConfig{Enabled: true},
		}
		if err := pgInfra.RunMigrations(cfg, nil); err != nil {
			poolErr = err
			return
		}
		pool, poolErr = pgInfra.NewPool(context.Background(), cfg.Database, nil)
	})

	if errors.Is(poolErr, errMissingDSN) {
		tb.Skip("set TEST_DATABASE_URL to run postgres integration tests")
	}
	if poolErr != nil {
		tb.Fatalf("failed to init test db: %v", poolErr)
	}
	return pool
}

// Reset empties every table so each test starts from a clean schema.
func Reset(tb testing.TB, p *pgxpool.Pool) {
	tb.Helper()
	const query = `TRUNCATE telegram_profiles, task_events, task_messages, tasks, users RESTART IDENTITY CASCADE`
	if _, err := p.Exec(context.Background(), query); err != nil {
		tb.Fatalf("reset db: %v", err)
	}
}
