// Package testutil provides test data builders and utilities for testing.
package testutil

import (
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/google/uuid"
)

// CreateTestProjection creates a staged archive projection with default values that can be overridden.
func CreateTestProjection(overrides ...func(*models.WorkflowProjection)) *models.WorkflowProjection {
	now := time.Now().UTC().Truncate(time.Millisecond)
	c := &models.CleanupContext{
		ConfigurationName:        "feature.checkout." + uuid.NewString()[:8],
		WorkflowType:             models.WorkflowTypeStagedArchive,
		CurrentTrafficPercentage: 100,
		StageSet: models.NewStageSet(
			models.NewStage("canary", 100, 50, time.Hour),
			models.NewStage("global", 50, 0, time.Hour),
		),
	}

	projection := &models.WorkflowProjection{
		ID:           uuid.NewString(),
		DisplayName:  c.ConfigurationName,
		WorkflowType: string(c.WorkflowType),
		State:        models.StateCreated,
		Context:      models.NewCleanupContext(c),
		CreatedAt:    now,
		UpdatedAt:    now,
		Metadata:     map[string]string{"configuration_name": c.ConfigurationName},
		History: []models.HistoryEvent{{
			Timestamp: now,
			EventType: models.HistoryEventCreated,
			ToState:   models.StateCreated,
		}},
	}

	for _, override := range overrides {
		override(projection)
	}

	return projection
}

// WithState sets the projection state.
func WithState(state models.State) func(*models.WorkflowProjection) {
	return func(p *models.WorkflowProjection) {
		p.State = state
	}
}

// WithWorkflowType sets the projection workflow type.
func WithWorkflowType(workflowType string) func(*models.WorkflowProjection) {
	return func(p *models.WorkflowProjection) {
		p.WorkflowType = workflowType
	}
}

// WithCreatedAt sets the projection creation time.
func WithCreatedAt(at time.Time) func(*models.WorkflowProjection) {
	return func(p *models.WorkflowProjection) {
		p.CreatedAt = at
		p.UpdatedAt = at
	}
}

// CreateTestProject creates a project with one staged archive item.
func CreateTestProject(overrides ...func(*models.Project)) *models.Project {
	project := &models.Project{
		ID:          uuid.NewString(),
		Name:        "Checkout cleanup",
		Description: "Retire checkout flags",
		Items: []models.ProjectItem{{
			Request: models.CleanupRequest{
				ConfigurationName:        "feature.checkout.v1",
				WorkflowType:             models.WorkflowTypeStagedArchive,
				CurrentTrafficPercentage: 100,
			},
		}},
	}

	for _, override := range overrides {
		override(project)
	}

	return project
}
