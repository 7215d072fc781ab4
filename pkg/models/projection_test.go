package models_test

import (
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSummary(t *testing.T) {
	t.Parallel()

	projections := []*models.WorkflowProjection{
		{WorkflowType: "staged-archive", State: models.StateAwaitingUserAction},
		{WorkflowType: "staged-archive", State: models.StateWaiting},
		{WorkflowType: "code-review", State: models.StateCompleted},
		{WorkflowType: "code-review", State: models.StateAwaitingReview},
		{WorkflowType: "transform", State: models.StateFailed},
		{WorkflowType: "code-update", State: models.StateDeploymentDone},
		{WorkflowType: "code-update", State: models.StatePRInReview},
	}

	summary := models.NewSummary(projections)

	assert.Equal(t, 7, summary.Total)
	assert.Equal(t, 4, summary.Active)
	assert.Equal(t, 2, summary.Completed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.AwaitingManualAction)
	assert.Equal(t, 2, summary.ByType["staged-archive"])
	assert.Equal(t, 1, summary.ByState[models.StateWaiting])
}

func TestWorkflowContext_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, models.NewCleanupContext(&models.CleanupContext{}).Validate())
	require.NoError(t, models.NewCodeUpdateContext(&models.CodeUpdateContext{}).Validate())

	invalid := []models.WorkflowContext{
		{Kind: models.ContextKindCleanup},
		{Kind: models.ContextKindCodeUpdate, Cleanup: &models.CleanupContext{}},
		{Kind: models.ContextKindCleanup, Cleanup: &models.CleanupContext{}, CodeUpdate: &models.CodeUpdateContext{}},
		{Kind: "unknown", Cleanup: &models.CleanupContext{}},
	}

	for _, wc := range invalid {
		assert.ErrorIs(t, wc.Validate(), models.ErrInvalidContext)
	}
}

func TestWorkflowContext_Clone(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	original := models.NewCleanupContext(&models.CleanupContext{
		ConfigurationName:        "feature.banner",
		CurrentTrafficPercentage: 80,
		PRCreatedAt:              &now,
		StageSet:                 models.NewStageSet(models.NewStage("global", 80, 0, time.Hour)),
	})

	clone := original.Clone()
	require.Equal(t, original, clone)

	original.Cleanup.CurrentTrafficPercentage = 0
	original.Cleanup.StageSet.Stages[0].CurrentAllocation = 0
	*original.Cleanup.PRCreatedAt = now.Add(time.Hour)

	assert.Equal(t, 80, clone.Cleanup.CurrentTrafficPercentage)
	assert.Equal(t, 80, clone.Cleanup.StageSet.Stages[0].CurrentAllocation)
	assert.Equal(t, now, *clone.Cleanup.PRCreatedAt)

	update := models.NewCodeUpdateContext(&models.CodeUpdateContext{Title: "Drop flags", MergedAt: &now})
	copied := update.Clone()
	assert.Equal(t, update, copied)
	assert.NotSame(t, update.CodeUpdate, copied.CodeUpdate)
	assert.Nil(t, copied.Cleanup)
}

func TestState_Flags(t *testing.T) {
	t.Parallel()

	assert.True(t, models.StateCompleted.IsTerminal())
	assert.True(t, models.StateFailed.IsTerminal())
	assert.True(t, models.StateDeploymentDone.IsTerminal())
	assert.False(t, models.StateWaiting.IsTerminal())
	assert.False(t, models.StateFailed.IsSuccessful())
	assert.True(t, models.StateAwaitingUserAction.RequiresManualAction())
	assert.False(t, models.StateInProgress.RequiresManualAction())
}
