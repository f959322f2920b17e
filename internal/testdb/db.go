package testdb

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/phrazzld/isocheck/internal/platform/logger"
	"github.com/phrazzld/isocheck/internal/platform/postgres"
	"github.com/phrazzld/isocheck/internal/redact"
)

// TestTimeout defines a default timeout for test database operations.
const TestTimeout = 10 * time.Second

// Environment variables checked for a test database, in order.
const (
	EnvDatabaseURL = "DATABASE_URL"
	EnvTestDBURL   = "ISOCHECK_TEST_DB_URL"
)

// GetTestDatabaseURL returns the first non-empty database URL from the
// environment, or "" when integration tests cannot run.
func GetTestDatabaseURL() string {
	for _, name := range []string{EnvDatabaseURL, EnvTestDBURL} {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// IsIntegrationTestEnvironment reports whether a test database is configured.
func IsIntegrationTestEnvironment() bool {
	return GetTestDatabaseURL() != ""
}

// OpenTestStore connects to the test database and migrates it up. It skips
// the test when no database is configured.
func OpenTestStore(t *testing.T) *postgres.Store {
	t.Helper()

	dbURL := GetTestDatabaseURL()
	if dbURL == "" {
		t.Skip("DATABASE_URL or ISOCHECK_TEST_DB_URL not set - skipping integration test")
	}

	buf := &testLogWriter{t: t}
	log := slog.New(slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelWarn}))

	ctx, cancel := context.WithTimeout(logger.WithLogger(context.Background(), log), TestTimeout)
	defer cancel()

	s, err := postgres.Open(ctx, dbURL, 10)
	require.NoError(t, err, "failed to connect to %s", redact.DatabaseURL(dbURL))

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Logf("Warning: failed to close database connection: %v", err)
		}
	})

	require.NoError(t, postgres.Migrate(ctx, s.DB(), postgres.MigrateUp), "failed to run migrations")
	return s
}

// testLogWriter routes log output to t.Log.
type testLogWriter struct {
	t *testing.T
}

func (w *testLogWriter) Write(p []byte) (int, error) {
	w.t.Log(string(p))
	return len(p), nil
}
