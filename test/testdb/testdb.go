// Package testdb spins up a disposable PostgreSQL instance for integration
// tests that need real row-locking behavior go-sqlmock can't simulate.
package testdb

import (
	"context"
	"os"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/codeready-toolchain/wafcore/pkg/database"
	"github.com/codeready-toolchain/wafcore/pkg/store"
)

// New starts a PostgreSQL container, runs migrations through
// database.NewClient, and returns a ready Store. The container is terminated
// when the test completes. When CI_DATABASE_URL is set, no container is
// started and the connection uses database.LoadConfigFromEnv's settings; the
// URL's own value is not used.
func New(t *testing.T) *store.Store {
	t.Helper()
	ctx := context.Background()

	if ciURL := os.Getenv("CI_DATABASE_URL"); ciURL != "" {
		t.Log("using external PostgreSQL from CI_DATABASE_URL")
		return newStoreFromEnv(t, ctx)
	}

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("wafcore_test"),
		postgres.WithUsername("wafcore"),
		postgres.WithPassword("wafcore"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(pgContainer); err != nil {
			t.Logf("failed to terminate postgres container: %v", err)
		}
	})

	host, err := pgContainer.Host(ctx)
	require.NoError(t, err)
	port, err := pgContainer.MappedPort(ctx, "5432/tcp")
	require.NoError(t, err)

	portN, err := strconv.Atoi(port.Port())
	require.NoError(t, err)

	client, err := database.NewClient(ctx, database.Config{
		Host:            host,
		Port:            portN,
		User:            "wafcore",
		Password:        "wafcore",
		Database:        "wafcore_test",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: time.Hour,
		ConnMaxIdleTime: 15 * time.Minute,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })

	return store.New(client)
}

func newStoreFromEnv(t *testing.T, ctx context.Context) *store.Store {
	t.Helper()
	cfg, err := database.LoadConfigFromEnv()
	require.NoError(t, err)
	client, err := database.NewClient(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	return store.New(client)
}
