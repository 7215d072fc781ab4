package file_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/persistence/file"
	"github.com/dukex/cleanup/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	return file.NewPersistence("file://" + t.TempDir())
}

func TestWorkflowRepository(t *testing.T) {
	testutil.RunWorkflowRepositoryTests(t, newPersistence)
}

func TestProjectRepository(t *testing.T) {
	testutil.RunProjectRepositoryTests(t, newPersistence)
}

func TestPersistence_HealthCheck(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	p := file.NewPersistence(root)
	require.NoError(t, p.HealthCheck(t.Context()))

	missing := file.NewPersistence(filepath.Join(root, "missing"))
	require.ErrorIs(t, missing.HealthCheck(t.Context()), os.ErrNotExist)
	require.NoError(t, p.Close(t.Context()))
}

func TestWorkflowRepository_Layout(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	repo := file.NewWorkflowRepository(root)
	projection := testutil.CreateTestProjection()

	require.NoError(t, repo.Create(t.Context(), projection))

	info, err := os.Stat(filepath.Join(root, "workflows", projection.ID+".json"))
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
}
