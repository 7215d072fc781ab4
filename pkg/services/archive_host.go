package services

import (
	"context"
	"fmt"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/dukex/cleanup/pkg/workflow"
)

// CleanupHost is the host for the cleanup family.
type CleanupHost = Host[models.CleanupRequest, *models.CleanupContext, workflow.Workflow]

// ArchiveHost specializes the cleanup host with manual proceed for staged
// archive workflows.
type ArchiveHost struct {
	*CleanupHost
}

// NewArchiveHost creates the cleanup family host around provider.
func NewArchiveHost(
	repo persistence.WorkflowRepository,
	provider Provider[models.CleanupRequest, *models.CleanupContext, workflow.Workflow],
	opts ...Option,
) *ArchiveHost {
	return &ArchiveHost{CleanupHost: NewHost(repo, provider, opts...)}
}

// ProceedWorkflow advances a workflow waiting on the user and records a
// Proceeded event. Workflows without a manual step fail with ErrUnsupported.
func (h *ArchiveHost) ProceedWorkflow(ctx context.Context, id string) (*models.WorkflowResponse, error) {
	return h.mutate(ctx, "ProceedWorkflow", id, func(ctx context.Context, wf workflow.Workflow) (*change, error) {
		proceeder, ok := wf.(workflow.Proceeder)
		if !ok {
			return nil, fmt.Errorf("%w: workflow %s cannot be proceeded", ErrUnsupported, id)
		}

		err := proceeder.Proceed(ctx)
		if err != nil {
			return nil, err
		}

		return &change{eventType: models.HistoryEventProceeded, description: "Proceeded manually"}, nil
	})
}
