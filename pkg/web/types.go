package web

import "github.com/dukex/cleanup/pkg/models"

// CreatedResponse carries the id of a created workflow.
type CreatedResponse struct {
	ID string `json:"id"`
}

// ExternalEventRequest is the body of POST /{family}/{id}/events.
type ExternalEventRequest struct {
	EventType string         `json:"event_type" validate:"required"`
	Data      map[string]any `json:"data,omitempty"`
}

// CreateProjectRequest is the body of POST /projects.
type CreateProjectRequest struct {
	Name        string                  `json:"name"        validate:"required,min=3"`
	Description string                  `json:"description"`
	Requests    []models.CleanupRequest `json:"requests"    validate:"dive"`
}

// DeletedResponse reports whether a delete removed anything.
type DeletedResponse struct {
	Deleted bool `json:"deleted"`
}
