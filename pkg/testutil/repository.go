package testutil

import (
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunWorkflowRepositoryTests exercises the WorkflowRepository contract
// against a fresh persistence created by setup for every subtest.
func RunWorkflowRepositoryTests(t *testing.T, setup func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("create and get", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()
		projection := CreateTestProjection()

		require.NoError(t, repo.Create(t.Context(), projection))

		got, err := repo.GetByID(t.Context(), projection.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, projection.ID, got.ID)
		assert.Equal(t, projection.State, got.State)
		assert.Equal(t, projection.DisplayName, got.DisplayName)
		assert.Equal(t, projection.Metadata, got.Metadata)
		assert.Len(t, got.History, 1)
		require.NotNil(t, got.Context.Cleanup)
		assert.Len(t, got.Context.Cleanup.StageSet.Stages, 2)
		assert.True(t, projection.CreatedAt.Equal(got.CreatedAt))
	})

	t.Run("create rejects duplicate id", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()
		projection := CreateTestProjection()

		require.NoError(t, repo.Create(t.Context(), projection))

		err := repo.Create(t.Context(), projection)
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowAlreadyExists(err))
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()

		got, err := repo.GetByID(t.Context(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("update replaces stored projection", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()
		projection := CreateTestProjection()
		require.NoError(t, repo.Create(t.Context(), projection))

		reason := "traffic reduction failed"
		projection.State = models.StateFailed
		projection.ErrorMessage = &reason
		projection.AppendHistory(models.HistoryEvent{
			Timestamp: time.Now().UTC(),
			EventType: models.HistoryEventStarted,
			FromState: models.StateCreated,
			ToState:   models.StateFailed,
		})
		require.NoError(t, repo.Update(t.Context(), projection))

		got, err := repo.GetByID(t.Context(), projection.ID)
		require.NoError(t, err)
		assert.Equal(t, models.StateFailed, got.State)
		require.NotNil(t, got.ErrorMessage)
		assert.Equal(t, reason, *got.ErrorMessage)
		assert.Len(t, got.History, 2)
	})

	t.Run("update missing fails", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()

		err := repo.Update(t.Context(), CreateTestProjection())
		require.Error(t, err)
		assert.True(t, persistence.IsWorkflowNotFound(err))
	})

	t.Run("filtered listing", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()
		base := time.Now().UTC().Truncate(time.Millisecond)

		projections := []*models.WorkflowProjection{
			CreateTestProjection(WithCreatedAt(base)),
			CreateTestProjection(WithCreatedAt(base.Add(time.Second)), WithState(models.StateWaiting)),
			CreateTestProjection(WithCreatedAt(base.Add(2*time.Second)), WithWorkflowType(string(models.WorkflowTypeCodeReview)), WithState(models.StateAwaitingReview)),
		}
		for _, p := range projections {
			require.NoError(t, repo.Create(t.Context(), p))
		}

		all, err := repo.GetAll(t.Context())
		require.NoError(t, err)
		require.Len(t, all, 3)
		assert.Equal(t, projections[0].ID, all[0].ID)
		assert.Equal(t, projections[2].ID, all[2].ID)

		archives, err := repo.GetByType(t.Context(), string(models.WorkflowTypeStagedArchive))
		require.NoError(t, err)
		assert.Len(t, archives, 2)

		waiting, err := repo.GetByState(t.Context(), models.StateWaiting)
		require.NoError(t, err)
		require.Len(t, waiting, 1)
		assert.Equal(t, projections[1].ID, waiting[0].ID)

		none, err := repo.GetByState(t.Context(), models.StateMerged)
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("delete reports existence", func(t *testing.T) {
		repo := setup(t).WorkflowRepository()
		projection := CreateTestProjection()
		require.NoError(t, repo.Create(t.Context(), projection))

		existed, err := repo.Delete(t.Context(), projection.ID)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = repo.Delete(t.Context(), projection.ID)
		require.NoError(t, err)
		assert.False(t, existed)

		got, err := repo.GetByID(t.Context(), projection.ID)
		require.NoError(t, err)
		assert.Nil(t, got)
	})
}

// RunProjectRepositoryTests exercises the ProjectRepository contract.
func RunProjectRepositoryTests(t *testing.T, setup func(t *testing.T) persistence.Persistence) {
	t.Helper()

	t.Run("save and get", func(t *testing.T) {
		repo := setup(t).ProjectRepository()
		project := CreateTestProject()

		require.NoError(t, repo.Save(t.Context(), project))
		assert.False(t, project.CreatedAt.IsZero())

		got, err := repo.GetByID(t.Context(), project.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, project.Name, got.Name)
		require.Len(t, got.Items, 1)
		assert.Equal(t, "feature.checkout.v1", got.Items[0].Request.ConfigurationName)
	})

	t.Run("save updates existing project", func(t *testing.T) {
		repo := setup(t).ProjectRepository()
		project := CreateTestProject()
		require.NoError(t, repo.Save(t.Context(), project))

		project.Items[0].WorkflowID = "wf-1"
		require.NoError(t, repo.Save(t.Context(), project))

		got, err := repo.GetByID(t.Context(), project.ID)
		require.NoError(t, err)
		assert.Equal(t, "wf-1", got.Items[0].WorkflowID)

		all, err := repo.GetAll(t.Context())
		require.NoError(t, err)
		assert.Len(t, all, 1)
	})

	t.Run("get missing returns nil", func(t *testing.T) {
		repo := setup(t).ProjectRepository()

		got, err := repo.GetByID(t.Context(), "missing")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("delete reports existence", func(t *testing.T) {
		repo := setup(t).ProjectRepository()
		project := CreateTestProject()
		require.NoError(t, repo.Save(t.Context(), project))

		existed, err := repo.Delete(t.Context(), project.ID)
		require.NoError(t, err)
		assert.True(t, existed)

		existed, err = repo.Delete(t.Context(), project.ID)
		require.NoError(t, err)
		assert.False(t, existed)
	})
}
