// Package persistence provides the storage contract for workflow projections and projects.
package persistence

import (
	"context"

	"github.com/dukex/cleanup/pkg/models"
)

type Persistence interface {
	WorkflowRepository() WorkflowRepository
	ProjectRepository() ProjectRepository

	HealthCheck(ctx context.Context) error
	Close(ctx context.Context) error
}

// WorkflowRepository stores workflow projections. GetByID returns nil, nil
// when the projection does not exist.
type WorkflowRepository interface {
	Create(ctx context.Context, projection *models.WorkflowProjection) error
	Update(ctx context.Context, projection *models.WorkflowProjection) error
	GetByID(ctx context.Context, id string) (*models.WorkflowProjection, error)
	GetAll(ctx context.Context) ([]*models.WorkflowProjection, error)
	GetByType(ctx context.Context, workflowType string) ([]*models.WorkflowProjection, error)
	GetByState(ctx context.Context, state models.State) ([]*models.WorkflowProjection, error)
	// Delete removes the projection and reports whether it existed.
	Delete(ctx context.Context, id string) (bool, error)
}

// ProjectRepository stores projects. GetByID returns nil, nil when the
// project does not exist.
type ProjectRepository interface {
	Save(ctx context.Context, project *models.Project) error
	GetByID(ctx context.Context, id string) (*models.Project, error)
	GetAll(ctx context.Context) ([]*models.Project, error)
	Delete(ctx context.Context, id string) (bool, error)
}
