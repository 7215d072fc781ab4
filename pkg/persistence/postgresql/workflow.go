package postgresql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

const selectProjection = `
	SELECT
		id
	  , display_name
	  , workflow_type
	  , state
	  , context
	  , metadata
	  , history
	  , error_message
	  , created_at
	  , updated_at
	FROM workflow_projections
`

// WorkflowRepository handles workflow projection database operations.
type WorkflowRepository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(db *sql.DB, logger *slog.Logger) *WorkflowRepository {
	return &WorkflowRepository{db: db, logger: logger}
}

// Create inserts a new projection, rejecting a duplicate id.
func (r *WorkflowRepository) Create(ctx context.Context, projection *models.WorkflowProjection) error {
	if projection.ID == "" {
		return persistence.NewWorkflowError("Create", "", persistence.ErrInvalidProjection)
	}

	columns, err := projectionColumns(projection)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO workflow_projections (
			id, display_name, workflow_type, state, context, metadata, history, error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err = r.db.ExecContext(ctx, query, columns...)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return persistence.NewWorkflowError("Create", projection.ID, persistence.ErrWorkflowAlreadyExists)
		}

		return fmt.Errorf("failed to insert workflow projection %s: %w", projection.ID, err)
	}

	return nil
}

// Update replaces an existing projection.
func (r *WorkflowRepository) Update(ctx context.Context, projection *models.WorkflowProjection) error {
	columns, err := projectionColumns(projection)
	if err != nil {
		return err
	}

	query := `
		UPDATE workflow_projections SET
			display_name = $2
		  , workflow_type = $3
		  , state = $4
		  , context = $5
		  , metadata = $6
		  , history = $7
		  , error_message = $8
		  , created_at = $9
		  , updated_at = $10
		WHERE id = $1
	`

	result, err := r.db.ExecContext(ctx, query, columns...)
	if err != nil {
		return fmt.Errorf("failed to update workflow projection %s: %w", projection.ID, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if affected == 0 {
		return persistence.NewWorkflowError("Update", projection.ID, persistence.ErrWorkflowNotFound)
	}

	return nil
}

// GetByID returns a projection, or nil when none exists.
func (r *WorkflowRepository) GetByID(ctx context.Context, id string) (*models.WorkflowProjection, error) {
	row := r.db.QueryRowContext(ctx, selectProjection+" WHERE id = $1", id)

	projection, err := scanProjection(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to scan workflow projection: %w", err)
	}

	return projection, nil
}

// GetAll returns every projection ordered by creation time.
func (r *WorkflowRepository) GetAll(ctx context.Context) ([]*models.WorkflowProjection, error) {
	return r.query(ctx, selectProjection+" ORDER BY created_at ASC")
}

// GetByType returns the projections of one workflow type.
func (r *WorkflowRepository) GetByType(ctx context.Context, workflowType string) ([]*models.WorkflowProjection, error) {
	return r.query(ctx, selectProjection+" WHERE workflow_type = $1 ORDER BY created_at ASC", workflowType)
}

// GetByState returns the projections currently in state.
func (r *WorkflowRepository) GetByState(ctx context.Context, state models.State) ([]*models.WorkflowProjection, error) {
	return r.query(ctx, selectProjection+" WHERE state = $1 ORDER BY created_at ASC", string(state))
}

// Delete removes a projection and reports whether it existed.
func (r *WorkflowRepository) Delete(ctx context.Context, id string) (bool, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM workflow_projections WHERE id = $1", id)
	if err != nil {
		return false, fmt.Errorf("failed to delete workflow projection %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

func (r *WorkflowRepository) query(ctx context.Context, query string, args ...any) ([]*models.WorkflowProjection, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query workflow projections: %w", err)
	}

	defer closeRows(ctx, r.logger, rows)

	projections := make([]*models.WorkflowProjection, 0)

	for rows.Next() {
		projection, err := scanProjection(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan workflow projection: %w", err)
		}

		projections = append(projections, projection)
	}

	err = rows.Err()
	if err != nil {
		return nil, fmt.Errorf("error iterating workflow projections: %w", err)
	}

	return projections, nil
}

func projectionColumns(p *models.WorkflowProjection) ([]any, error) {
	contextJSON, err := json.Marshal(p.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal context: %w", err)
	}

	metadataJSON, err := json.Marshal(p.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	history := p.History
	if history == nil {
		history = []models.HistoryEvent{}
	}

	historyJSON, err := json.Marshal(history)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history: %w", err)
	}

	var errorMessage sql.NullString
	if p.ErrorMessage != nil {
		errorMessage = sql.NullString{String: *p.ErrorMessage, Valid: true}
	}

	return []any{
		p.ID, p.DisplayName, p.WorkflowType, string(p.State),
		contextJSON, metadataJSON, historyJSON, errorMessage,
		p.CreatedAt, p.UpdatedAt,
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProjection(row scanner) (*models.WorkflowProjection, error) {
	var (
		projection   models.WorkflowProjection
		state        string
		contextJSON  []byte
		metadataJSON []byte
		historyJSON  []byte
		errorMessage sql.NullString
	)

	err := row.Scan(
		&projection.ID,
		&projection.DisplayName,
		&projection.WorkflowType,
		&state,
		&contextJSON,
		&metadataJSON,
		&historyJSON,
		&errorMessage,
		&projection.CreatedAt,
		&projection.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	projection.State = models.State(state)
	projection.CreatedAt = projection.CreatedAt.UTC()
	projection.UpdatedAt = projection.UpdatedAt.UTC()

	if errorMessage.Valid {
		projection.ErrorMessage = &errorMessage.String
	}

	err = json.Unmarshal(contextJSON, &projection.Context)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal context: %w", err)
	}

	if len(metadataJSON) > 0 {
		err = json.Unmarshal(metadataJSON, &projection.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	err = json.Unmarshal(historyJSON, &projection.History)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal history: %w", err)
	}

	return &projection, nil
}
