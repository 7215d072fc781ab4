package postgresql_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/persistence/postgresql"
	"github.com/dukex/cleanup/pkg/persistence/sqlbase"
	"github.com/dukex/cleanup/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
)

var postgresContainer *postgres.PostgresContainer

func dropDb(ctx context.Context, t *testing.T, databaseURL string) {
	t.Helper()

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	for _, table := range []string{"projects", "workflow_projections", "schema_migrations"} {
		_, err = db.ExecContext(ctx, "DROP TABLE IF EXISTS "+table+" CASCADE")
		require.NoError(t, err)
	}

	err = db.Close()
	require.NoError(t, err)
}

func setupTestDB(t *testing.T) (*postgresql.Persistence, context.Context, string) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 120*time.Second)

	if postgresContainer == nil || !postgresContainer.IsRunning() {
		var err error

		postgresContainer, err = postgres.Run(ctx,
			"postgres:16-alpine",
			postgres.WithDatabase("cleanup_test"),
			postgres.WithUsername("cleanup"),
			postgres.WithPassword("cleanup"),
			postgres.BasicWaitStrategies(),
		)
		require.NoError(t, err)
	}

	databaseURL, err := postgresContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	dropDb(ctx, t, databaseURL)

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

	p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, p.Close(ctx))
		dropDb(ctx, t, databaseURL)
		cancel()
	})

	return p, ctx, databaseURL
}

func newPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	p, _, _ := setupTestDB(t)

	return p
}

func TestNewPersistence_Migrations(t *testing.T) {
	p, ctx, databaseURL := setupTestDB(t)

	require.NoError(t, p.HealthCheck(ctx))

	db, err := sql.Open("postgres", databaseURL)
	require.NoError(t, err)

	defer func() { _ = db.Close() }()

	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
	manager := sqlbase.NewMigrationManager(logger, db, map[int]string{1: "", 2: ""})

	version, err := manager.CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, version)
	assert.Equal(t, version, manager.LatestVersion())

	// A second run is a no-op.
	require.NoError(t, manager.RunMigrations(ctx))
}

func TestWorkflowRepository(t *testing.T) {
	testutil.RunWorkflowRepositoryTests(t, newPersistence)
}

func TestProjectRepository(t *testing.T) {
	testutil.RunProjectRepositoryTests(t, newPersistence)
}
