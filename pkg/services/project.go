package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// Creator creates a cleanup workflow and returns its id.
type Creator interface {
	CreateWorkflow(ctx context.Context, req models.CleanupRequest) (string, error)
}

// Project manages groupings of cleanup requests.
type Project struct {
	repo      persistence.ProjectRepository
	creator   Creator
	validator *validator.Validate
	locks     *keyedMutex
	logger    *slog.Logger
}

// NewProject creates a project service launching workflows through creator.
func NewProject(repo persistence.ProjectRepository, creator Creator) *Project {
	return &Project{
		repo:      repo,
		creator:   creator,
		validator: validator.New(validator.WithRequiredStructEnabled()),
		locks:     newKeyedMutex(),
		logger:    log.WithModule("project_service"),
	}
}

// Create validates and stores a new project.
func (p *Project) Create(ctx context.Context, project *models.Project) (*models.Project, error) {
	if project == nil {
		return nil, NewValidationError("CreateProject", "project cannot be nil", nil)
	}

	err := p.validator.Struct(project)
	if err != nil {
		return nil, NewValidationError("CreateProject", err.Error(), err)
	}

	project.ID = uuid.NewString()

	for i := range project.Items {
		project.Items[i].WorkflowID = ""
	}

	err = p.repo.Save(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("failed to save project: %w", err)
	}

	p.logger.InfoContext(ctx, "Project created", "project_id", project.ID, "items", len(project.Items))

	return project, nil
}

// Get returns a project or a not found error.
func (p *Project) Get(ctx context.Context, id string) (*models.Project, error) {
	project, err := p.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch project %s: %w", id, err)
	}

	if project == nil {
		return nil, &ServiceError{Op: "GetProject", Code: CodeNotFound, Message: "project " + id + " not found", Err: ErrProjectNotFound}
	}

	return project, nil
}

// List returns every project.
func (p *Project) List(ctx context.Context) ([]*models.Project, error) {
	projects, err := p.repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list projects: %w", err)
	}

	return projects, nil
}

// Delete removes a project, leaving its launched workflows in place.
func (p *Project) Delete(ctx context.Context, id string) (bool, error) {
	unlock := p.locks.Lock(id)
	defer unlock()

	existed, err := p.repo.Delete(ctx, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete project %s: %w", id, err)
	}

	return existed, nil
}

// Launch creates a workflow for every item that has none yet and records the
// ids on the project. Launching twice only creates the missing workflows.
func (p *Project) Launch(ctx context.Context, id string) (*models.Project, error) {
	unlock := p.locks.Lock(id)
	defer unlock()

	project, err := p.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	launched := 0

	for i := range project.Items {
		item := &project.Items[i]
		if item.WorkflowID != "" {
			continue
		}

		workflowID, err := p.creator.CreateWorkflow(ctx, item.Request)
		if err != nil {
			if launched > 0 {
				if saveErr := p.repo.Save(ctx, project); saveErr != nil {
					p.logger.ErrorContext(ctx, "Failed to save partially launched project", "project_id", id, "error", saveErr)
				}
			}

			return nil, fmt.Errorf("failed to launch %s: %w", item.Request.ConfigurationName, err)
		}

		item.WorkflowID = workflowID
		launched++
	}

	if launched > 0 {
		err = p.repo.Save(ctx, project)
		if err != nil {
			return nil, fmt.Errorf("failed to save project: %w", err)
		}
	}

	p.logger.InfoContext(ctx, "Project launched", "project_id", id, "launched", launched)

	return project, nil
}
