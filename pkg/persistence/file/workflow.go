package file

import (
	"context"
	"slices"
	"sync"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
)

// WorkflowRepository stores workflow projections as root/workflows/<id>.json.
type WorkflowRepository struct {
	mu   sync.Mutex
	docs documents[models.WorkflowProjection]
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{docs: newDocuments[models.WorkflowProjection](root, "workflows")}
}

// Create stores a new projection, rejecting a duplicate id.
func (wr *WorkflowRepository) Create(_ context.Context, projection *models.WorkflowProjection) error {
	if projection.ID == "" {
		return persistence.NewWorkflowError("Create", "", persistence.ErrInvalidProjection)
	}

	wr.mu.Lock()
	defer wr.mu.Unlock()

	exists, err := wr.docs.exists(projection.ID)
	if err != nil {
		return persistence.NewWorkflowError("Create", projection.ID, err)
	}

	if exists {
		return persistence.NewWorkflowError("Create", projection.ID, persistence.ErrWorkflowAlreadyExists)
	}

	return wr.docs.write(projection.ID, projection)
}

// Update replaces an existing projection.
func (wr *WorkflowRepository) Update(_ context.Context, projection *models.WorkflowProjection) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	exists, err := wr.docs.exists(projection.ID)
	if err != nil {
		return persistence.NewWorkflowError("Update", projection.ID, err)
	}

	if !exists {
		return persistence.NewWorkflowError("Update", projection.ID, persistence.ErrWorkflowNotFound)
	}

	return wr.docs.write(projection.ID, projection)
}

// GetByID retrieves a projection by its ID from the file system.
func (wr *WorkflowRepository) GetByID(_ context.Context, id string) (*models.WorkflowProjection, error) {
	return wr.docs.read(id)
}

// GetAll returns every projection ordered by creation time.
func (wr *WorkflowRepository) GetAll(_ context.Context) ([]*models.WorkflowProjection, error) {
	return wr.filter(func(*models.WorkflowProjection) bool { return true })
}

// GetByType returns the projections of one workflow type.
func (wr *WorkflowRepository) GetByType(_ context.Context, workflowType string) ([]*models.WorkflowProjection, error) {
	return wr.filter(func(p *models.WorkflowProjection) bool { return p.WorkflowType == workflowType })
}

// GetByState returns the projections currently in state.
func (wr *WorkflowRepository) GetByState(_ context.Context, state models.State) ([]*models.WorkflowProjection, error) {
	return wr.filter(func(p *models.WorkflowProjection) bool { return p.State == state })
}

// Delete removes a projection from the file system.
func (wr *WorkflowRepository) Delete(_ context.Context, id string) (bool, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	return wr.docs.remove(id)
}

func (wr *WorkflowRepository) filter(keep func(*models.WorkflowProjection) bool) ([]*models.WorkflowProjection, error) {
	all, err := wr.docs.list()
	if err != nil {
		return nil, err
	}

	projections := slices.DeleteFunc(all, func(p *models.WorkflowProjection) bool { return !keep(p) })
	slices.SortStableFunc(projections, func(a, b *models.WorkflowProjection) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return projections, nil
}
