package codeupdate_test

import (
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence/file"
	"github.com/dukex/cleanup/pkg/providers/cleanup"
	"github.com/dukex/cleanup/pkg/providers/codeupdate"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/dukex/cleanup/pkg/workflow/factory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedClock() time.Time {
	return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
}

func TestProvider_CreateContext(t *testing.T) {
	t.Parallel()

	provider := codeupdate.New(fixedClock)

	c, err := provider.CreateContext(models.CodeUpdateRequest{Title: "Drop flags", PullRequestURL: "https://git.example.com/pr/5"})
	require.NoError(t, err)
	assert.Equal(t, "Drop flags", provider.DisplayName(c))
	assert.Equal(t, codeupdate.WorkflowType, provider.WorkflowType(c))
	assert.Equal(t, "https://git.example.com/pr/5", provider.Metadata(c)["pull_request_url"])

	_, err = provider.CreateContext(models.CodeUpdateRequest{Title: "x"})
	assert.True(t, services.IsValidationError(err))

	_, err = provider.CreateContext(models.CodeUpdateRequest{Title: "Bump", PullRequestURL: "not a url"})
	assert.True(t, services.IsValidationError(err))
}

func TestProvider_HandleExternalEvent(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	provider := codeupdate.New(fixedClock)

	c, err := provider.CreateContext(models.CodeUpdateRequest{Title: "Drop flags"})
	require.NoError(t, err)
	wf, err := provider.CreateWorkflow(c)
	require.NoError(t, err)

	handled, err := provider.HandleExternalEvent(ctx, wf, codeupdate.EventPRMerged, nil)
	require.NoError(t, err)
	assert.False(t, handled)

	handled, err = provider.HandleExternalEvent(ctx, wf, codeupdate.EventPRCreated, map[string]any{"url": "https://git.example.com/pr/8"})
	require.NoError(t, err)
	assert.True(t, handled)
	assert.Equal(t, models.StateValidationInTestEnv, provider.CurrentState(wf))

	for _, event := range []string{codeupdate.EventValidationPassed, codeupdate.EventPRMerged, codeupdate.EventDeploymentDetected} {
		handled, err = provider.HandleExternalEvent(ctx, wf, event, nil)
		require.NoError(t, err, event)
		assert.True(t, handled, event)
	}

	assert.Equal(t, models.StateDeploymentDone, provider.CurrentState(wf))
	assert.Equal(t, 4, provider.CalculateProgress(nil, wf).Step)
}

func TestCodeUpdateHost_Flow(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := file.NewPersistence(t.TempDir())
	host := services.NewCodeUpdateHost(store.WorkflowRepository(), codeupdate.New(fixedClock))

	id, err := host.CreateWorkflow(ctx, models.CodeUpdateRequest{Title: "Drop flags"})
	require.NoError(t, err)

	_, err = host.StartWorkflow(ctx, id)
	assert.True(t, services.IsInvalidState(err))

	_, err = host.HandleExternalEvent(ctx, id, codeupdate.EventPRCreated, map[string]any{"url": "::"})
	assert.True(t, services.IsValidationError(err))

	response, err := host.HandleExternalEvent(ctx, id, codeupdate.EventPRCreated, map[string]any{"url": "https://git.example.com/pr/8"})
	require.NoError(t, err)
	assert.Equal(t, models.StateValidationInTestEnv, response.State)
	assert.Equal(t, models.ContextKindCodeUpdate, response.Context.Kind)

	_, err = host.ProceedWorkflow(ctx, id)
	assert.True(t, services.IsUnsupported(err))

	_, err = host.HandleExternalEvent(ctx, id, codeupdate.EventDeploymentDetected, nil)
	require.ErrorIs(t, err, services.ErrUnsupportedEvent)
}

func TestHosts_ShareRepositoryWithoutCrossingFamilies(t *testing.T) {
	t.Parallel()

	ctx := t.Context()
	store := file.NewPersistence(t.TempDir())
	updates := services.NewCodeUpdateHost(store.WorkflowRepository(), codeupdate.New(fixedClock))
	cleanups := services.NewArchiveHost(store.WorkflowRepository(), cleanup.New(factory.Dependencies{}))

	updateID, err := updates.CreateWorkflow(ctx, models.CodeUpdateRequest{Title: "Drop flags"})
	require.NoError(t, err)
	cleanupID, err := cleanups.CreateWorkflow(ctx, models.CleanupRequest{ConfigurationName: "feature.k", WorkflowType: models.WorkflowTypeCodeReview})
	require.NoError(t, err)

	_, err = cleanups.GetWorkflow(ctx, updateID)
	assert.True(t, services.IsNotFound(err))

	_, err = updates.GetWorkflow(ctx, cleanupID)
	assert.True(t, services.IsNotFound(err))

	all, err := updates.GetAllWorkflows(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, updateID, all[0].ID)

	summary, err := cleanups.Summary(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Total)
}
