package models_test

import (
	"testing"
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStage_SetAllocation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		percent int
		want    int
		wantErr bool
	}{
		{name: "toward target", percent: 80, want: 80},
		{name: "exactly target", percent: 20, want: 20},
		{name: "unchanged", percent: 100, want: 100},
		{name: "past target", percent: 10, want: 100, wantErr: true},
		{name: "away from target", percent: 101, want: 100, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stage := models.NewStage("prod", 100, 20, time.Hour)

			err := stage.SetAllocation(tt.percent)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrAllocationOutOfRange)
			} else {
				require.NoError(t, err)
			}

			assert.Equal(t, tt.want, stage.CurrentAllocation)
		})
	}
}

func TestStage_SetStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		from    models.StageStatus
		to      models.StageStatus
		wantErr bool
	}{
		{name: "pending to reducing", from: models.StageStatusPending, to: models.StageStatusReducingTraffic},
		{name: "reducing to waiting", from: models.StageStatusReducingTraffic, to: models.StageStatusWaiting},
		{name: "reducing straight to completed", from: models.StageStatusReducingTraffic, to: models.StageStatusCompleted},
		{name: "waiting to completed", from: models.StageStatusWaiting, to: models.StageStatusCompleted},
		{name: "waiting again after final reduction", from: models.StageStatusWaiting, to: models.StageStatusWaiting},
		{name: "pending to failed", from: models.StageStatusPending, to: models.StageStatusFailed},
		{name: "waiting to failed", from: models.StageStatusWaiting, to: models.StageStatusFailed},
		{name: "pending to completed", from: models.StageStatusPending, to: models.StageStatusCompleted, wantErr: true},
		{name: "waiting back to pending", from: models.StageStatusWaiting, to: models.StageStatusPending, wantErr: true},
		{name: "completed to failed", from: models.StageStatusCompleted, to: models.StageStatusFailed, wantErr: true},
		{name: "failed to reducing", from: models.StageStatusFailed, to: models.StageStatusReducingTraffic, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stage := models.NewStage("dev", 100, 0, 0)
			stage.Status = tt.from

			err := stage.SetStatus(tt.to)
			if tt.wantErr {
				require.ErrorIs(t, err, models.ErrInvalidStageTransition)
				assert.Equal(t, tt.from, stage.Status)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.to, stage.Status)
		})
	}
}

func TestStageSet_AdvanceIsBounded(t *testing.T) {
	t.Parallel()

	set := models.NewStageSet(
		models.NewStage("dev", 100, 0, 0),
		models.NewStage("prod", 100, 0, 0),
	)

	assert.True(t, set.Advance())
	assert.Equal(t, 1, set.CurrentStageIndex)
	assert.False(t, set.Advance())
	assert.Equal(t, 1, set.CurrentStageIndex)
}

func TestStageSet_CurrentStage(t *testing.T) {
	t.Parallel()

	assert.Nil(t, models.NewStageSet().CurrentStage())

	var empty *models.StageSet
	assert.Nil(t, empty.CurrentStage())

	set := models.NewStageSet(models.NewStage("dev", 100, 0, 0))
	require.NotNil(t, set.CurrentStage())
	assert.Equal(t, "dev", set.CurrentStage().Name)

	set.Stages[0].Status = models.StageStatusCompleted
	assert.Nil(t, set.CurrentStage())
	assert.True(t, set.AllCompleted())
}

func TestStageSet_Clone(t *testing.T) {
	t.Parallel()

	now := time.Now()
	set := models.NewStageSet(models.NewStage("dev", 100, 0, time.Minute))
	set.StartedAt = &now
	set.Stages[0].WaitStartTime = &now

	clone := set.Clone()
	clone.Stages[0].CurrentAllocation = 50
	*clone.Stages[0].WaitStartTime = now.Add(time.Hour)

	assert.Equal(t, 100, set.Stages[0].CurrentAllocation)
	assert.Equal(t, now, *set.Stages[0].WaitStartTime)
	assert.Equal(t, set.StartedAt, clone.StartedAt)
}

func TestStageSet_HasReducibleStage(t *testing.T) {
	t.Parallel()

	assert.False(t, models.NewStageSet(models.NewStage("dev", 0, 0, 0)).HasReducibleStage())
	assert.True(t, models.NewStageSet(
		models.NewStage("dev", 0, 0, 0),
		models.NewStage("prod", 10, 0, 0),
	).HasReducibleStage())
}
