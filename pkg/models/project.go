package models

import "time"

// StageRequest describes one stage of a staged archive request.
type StageRequest struct {
	Name              string        `json:"name"               validate:"required"`
	CurrentAllocation int           `json:"current_allocation" validate:"min=0,max=100"`
	TargetAllocation  int           `json:"target_allocation"  validate:"min=0,max=100,ltefield=CurrentAllocation"`
	WaitDuration      time.Duration `json:"wait_duration"      validate:"min=0"`
}

// CleanupRequest asks for a new configuration cleanup workflow.
type CleanupRequest struct {
	ConfigurationName        string         `json:"configuration_name"         validate:"required,min=1"`
	WorkflowType             WorkflowType   `json:"workflow_type"              validate:"required,oneof=staged-archive code-review transform"`
	CurrentTrafficPercentage int            `json:"current_traffic_percentage" validate:"min=0,max=100"`
	WaitDuration             time.Duration  `json:"wait_duration"              validate:"min=0"`
	Stages                   []StageRequest `json:"stages,omitempty"           validate:"dive"`
}

// CodeUpdateRequest asks for a new code update workflow.
type CodeUpdateRequest struct {
	Title          string `json:"title"                      validate:"required,min=3"`
	Description    string `json:"description,omitempty"`
	PullRequestURL string `json:"pull_request_url,omitempty" validate:"omitempty,url"`
}

// Project groups cleanup requests that are launched together.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"        validate:"required,min=3"`
	Description string        `json:"description"`
	Items       []ProjectItem `json:"items"       validate:"dive"`
	CreatedAt   time.Time     `json:"created_at"`
	UpdatedAt   time.Time     `json:"updated_at"`
}

// ProjectItem is a cleanup request owned by a project, with the id of the
// workflow launched for it once the project has been launched.
type ProjectItem struct {
	Request    CleanupRequest `json:"request"`
	WorkflowID string         `json:"workflow_id,omitempty"`
}
