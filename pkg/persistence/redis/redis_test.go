package redis_test

import (
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	cleanupredis "github.com/dukex/cleanup/pkg/persistence/redis"
	"github.com/dukex/cleanup/pkg/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRedis(t *testing.T, opts ...cleanupredis.Option) (*cleanupredis.Persistence, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return cleanupredis.NewPersistence(client, opts...), mr
}

func newPersistence(t *testing.T) persistence.Persistence {
	t.Helper()

	p, _ := setupRedis(t)

	return p
}

func TestWorkflowRepository(t *testing.T) {
	testutil.RunWorkflowRepositoryTests(t, newPersistence)
}

func TestProjectRepository(t *testing.T) {
	testutil.RunProjectRepositoryTests(t, newPersistence)
}

func TestWorkflowRepository_StateIndexFollowsUpdates(t *testing.T) {
	p, mr := setupRedis(t, cleanupredis.WithPrefix("test"))
	repo := p.WorkflowRepository()
	projection := testutil.CreateTestProjection()

	require.NoError(t, repo.Create(t.Context(), projection))
	assert.True(t, mr.Exists("test:workflow:"+projection.ID))

	isMember, err := mr.SIsMember("test:workflows:state:created", projection.ID)
	require.NoError(t, err)
	assert.True(t, isMember)

	projection.State = models.StateAwaitingUserAction
	require.NoError(t, repo.Update(t.Context(), projection))

	stale, err := repo.GetByState(t.Context(), models.StateCreated)
	require.NoError(t, err)
	assert.Empty(t, stale)

	found, err := repo.GetByState(t.Context(), models.StateAwaitingUserAction)
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, projection.ID, found[0].ID)

	existed, err := repo.Delete(t.Context(), projection.ID)
	require.NoError(t, err)
	assert.True(t, existed)
	assert.False(t, mr.Exists("test:workflow:"+projection.ID))
}

func TestWorkflowRepository_ConcurrentUpdateNeverRestoresDeleted(t *testing.T) {
	p, mr := setupRedis(t, cleanupredis.WithPrefix("test"))
	repo := p.WorkflowRepository()

	for range 25 {
		projection := testutil.CreateTestProjection()
		require.NoError(t, repo.Create(t.Context(), projection))

		updated := *projection
		updated.State = models.StateAwaitingUserAction

		var (
			wg        sync.WaitGroup
			updateErr error
		)

		wg.Add(2)

		go func() {
			defer wg.Done()

			updateErr = repo.Update(t.Context(), &updated)
		}()

		go func() {
			defer wg.Done()

			existed, err := repo.Delete(t.Context(), projection.ID)
			assert.NoError(t, err)
			assert.True(t, existed)
		}()

		wg.Wait()

		if updateErr != nil {
			assert.True(t, persistence.IsWorkflowNotFound(updateErr), updateErr)
		}

		assert.False(t, mr.Exists("test:workflow:"+projection.ID))

		for _, state := range []string{"created", "awaiting_user_action"} {
			isMember, err := mr.SIsMember("test:workflows:state:"+state, projection.ID)
			if err == nil {
				assert.False(t, isMember, state)
			}
		}
	}
}

func TestPersistence_HealthCheck(t *testing.T) {
	p, mr := setupRedis(t)

	require.NoError(t, p.HealthCheck(t.Context()))

	mr.Close()
	require.Error(t, p.HealthCheck(t.Context()))
}

func TestNewPersistenceFromURL(t *testing.T) {
	mr := miniredis.RunT(t)

	p, err := cleanupredis.NewPersistenceFromURL(t.Context(), "redis://"+mr.Addr()+"/0")
	require.NoError(t, err)
	require.NoError(t, p.Close(t.Context()))

	_, err = cleanupredis.NewPersistenceFromURL(t.Context(), "://bad")
	require.Error(t, err)
}
