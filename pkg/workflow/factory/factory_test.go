package factory_test

import (
	"context"
	"testing"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/dukex/cleanup/pkg/workflow/archive"
	"github.com/dukex/cleanup/pkg/workflow/codereview"
	"github.com/dukex/cleanup/pkg/workflow/factory"
	"github.com/dukex/cleanup/pkg/workflow/transform"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type noop struct{}

func (noop) ReduceTraffic(context.Context, string, string, int, int) error { return nil }
func (noop) Transform(context.Context, string) error                       { return nil }

func TestNew(t *testing.T) {
	t.Parallel()

	deps := factory.Dependencies{Effects: workflow.Effects{Reducer: noop{}, Transformer: noop{}}}

	tests := []struct {
		workflowType models.WorkflowType
		check        func(t *testing.T, wf workflow.Workflow)
	}{
		{workflowType: models.WorkflowTypeStagedArchive, check: func(t *testing.T, wf workflow.Workflow) {
			t.Helper()
			assert.IsType(t, &archive.Workflow{}, wf)
			assert.Implements(t, (*workflow.Resumer)(nil), wf)
			assert.Implements(t, (*workflow.Proceeder)(nil), wf)
		}},
		{workflowType: models.WorkflowTypeCodeReview, check: func(t *testing.T, wf workflow.Workflow) {
			t.Helper()
			assert.IsType(t, &codereview.Workflow{}, wf)
		}},
		{workflowType: models.WorkflowTypeTransform, check: func(t *testing.T, wf workflow.Workflow) {
			t.Helper()
			assert.IsType(t, &transform.Workflow{}, wf)
		}},
	}

	for _, tt := range tests {
		t.Run(string(tt.workflowType), func(t *testing.T) {
			t.Parallel()

			wf, err := factory.New(&models.CleanupContext{ConfigurationName: "c", WorkflowType: tt.workflowType}, deps)
			require.NoError(t, err)
			assert.Equal(t, models.StateCreated, wf.State())
			tt.check(t, wf)
		})
	}
}

func TestNew_UnknownType(t *testing.T) {
	t.Parallel()

	_, err := factory.New(&models.CleanupContext{WorkflowType: "shred"}, factory.Dependencies{})
	require.ErrorIs(t, err, workflow.ErrUnknownWorkflowType)
}

func TestNew_MissingEffect(t *testing.T) {
	t.Parallel()

	_, err := factory.New(&models.CleanupContext{WorkflowType: models.WorkflowTypeStagedArchive}, factory.Dependencies{})
	require.Error(t, err)
}
