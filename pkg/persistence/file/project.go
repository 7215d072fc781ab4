package file

import (
	"context"
	"slices"
	"time"

	"github.com/dukex/cleanup/pkg/models"
)

// ProjectRepository stores projects as root/projects/<id>.json.
type ProjectRepository struct {
	docs documents[models.Project]
}

// NewProjectRepository creates a new project repository.
func NewProjectRepository(root string) *ProjectRepository {
	return &ProjectRepository{docs: newDocuments[models.Project](root, "projects")}
}

// Save creates or replaces a project.
func (pr *ProjectRepository) Save(_ context.Context, project *models.Project) error {
	now := time.Now().UTC()
	if project.CreatedAt.IsZero() {
		project.CreatedAt = now
	}

	project.UpdatedAt = now

	return pr.docs.write(project.ID, project)
}

// GetByID retrieves a project by its ID from the file system.
func (pr *ProjectRepository) GetByID(_ context.Context, id string) (*models.Project, error) {
	return pr.docs.read(id)
}

// GetAll returns every project ordered by creation time.
func (pr *ProjectRepository) GetAll(_ context.Context) ([]*models.Project, error) {
	projects, err := pr.docs.list()
	if err != nil {
		return nil, err
	}

	slices.SortStableFunc(projects, func(a, b *models.Project) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	return projects, nil
}

// Delete removes a project from the file system.
func (pr *ProjectRepository) Delete(_ context.Context, id string) (bool, error) {
	return pr.docs.remove(id)
}
