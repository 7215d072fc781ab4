package models

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidContext is returned when a workflow context does not match its discriminant.
var ErrInvalidContext = errors.New("invalid workflow context")

// WorkflowType selects the cleanup workflow definition.
type WorkflowType string

const (
	WorkflowTypeStagedArchive WorkflowType = "staged-archive"
	WorkflowTypeCodeReview    WorkflowType = "code-review"
	WorkflowTypeTransform     WorkflowType = "transform"
	WorkflowTypeCodeUpdate    WorkflowType = "code-update"
)

// ContextKind discriminates the workflow context families.
type ContextKind string

const (
	ContextKindCleanup    ContextKind = "cleanup"
	ContextKindCodeUpdate ContextKind = "code-update"
)

// CleanupContext is the domain data of a configuration cleanup workflow.
type CleanupContext struct {
	ConfigurationName        string        `json:"configuration_name"`
	WorkflowType             WorkflowType  `json:"workflow_type"`
	CurrentTrafficPercentage int           `json:"current_traffic_percentage"`
	PullRequestURL           string        `json:"pull_request_url,omitempty"`
	WaitStartTime            *time.Time    `json:"wait_start_time,omitempty"`
	WaitDuration             time.Duration `json:"wait_duration"`
	IsCompleted              bool          `json:"is_completed"`
	ErrorMessage             string        `json:"error_message,omitempty"`
	StageSet                 *StageSet     `json:"stage_set,omitempty"`

	StartedAt            *time.Time `json:"started_at,omitempty"`
	CodeWorkStartedAt    *time.Time `json:"code_work_started_at,omitempty"`
	PRCreatedAt          *time.Time `json:"pr_created_at,omitempty"`
	PRApprovedAt         *time.Time `json:"pr_approved_at,omitempty"`
	PRMergedAt           *time.Time `json:"pr_merged_at,omitempty"`
	DeploymentDetectedAt *time.Time `json:"deployment_detected_at,omitempty"`
	TransformedAt        *time.Time `json:"transformed_at,omitempty"`
	CompletedAt          *time.Time `json:"completed_at,omitempty"`
}

// CodeUpdateContext is the domain data of a code update workflow.
type CodeUpdateContext struct {
	Title               string     `json:"title"`
	Description         string     `json:"description,omitempty"`
	PullRequestURL      string     `json:"pull_request_url,omitempty"`
	PRCreatedAt         *time.Time `json:"pr_created_at,omitempty"`
	ValidationStartedAt *time.Time `json:"validation_started_at,omitempty"`
	ReviewStartedAt     *time.Time `json:"review_started_at,omitempty"`
	MergedAt            *time.Time `json:"merged_at,omitempty"`
	DeployedAt          *time.Time `json:"deployed_at,omitempty"`
	Progress            float64    `json:"progress"`
	ErrorMessage        string     `json:"error_message,omitempty"`
}

// WorkflowContext is the persisted context of a workflow. Kind selects which
// of the variant fields is set.
type WorkflowContext struct {
	Kind       ContextKind        `json:"kind"`
	Cleanup    *CleanupContext    `json:"cleanup,omitempty"`
	CodeUpdate *CodeUpdateContext `json:"code_update,omitempty"`
}

// NewCleanupContext wraps a cleanup context.
func NewCleanupContext(c *CleanupContext) WorkflowContext {
	return WorkflowContext{Kind: ContextKindCleanup, Cleanup: c}
}

// NewCodeUpdateContext wraps a code update context.
func NewCodeUpdateContext(c *CodeUpdateContext) WorkflowContext {
	return WorkflowContext{Kind: ContextKindCodeUpdate, CodeUpdate: c}
}

// Validate checks that exactly the variant named by Kind is present.
func (wc WorkflowContext) Validate() error {
	switch wc.Kind {
	case ContextKindCleanup:
		if wc.Cleanup == nil || wc.CodeUpdate != nil {
			return fmt.Errorf("%w: kind %s requires only the cleanup variant", ErrInvalidContext, wc.Kind)
		}
	case ContextKindCodeUpdate:
		if wc.CodeUpdate == nil || wc.Cleanup != nil {
			return fmt.Errorf("%w: kind %s requires only the code update variant", ErrInvalidContext, wc.Kind)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidContext, wc.Kind)
	}

	return nil
}

// ErrorMessage returns the error recorded on whichever variant is set.
func (wc WorkflowContext) ErrorMessage() string {
	switch {
	case wc.Cleanup != nil:
		return wc.Cleanup.ErrorMessage
	case wc.CodeUpdate != nil:
		return wc.CodeUpdate.ErrorMessage
	default:
		return ""
	}
}

// Clone returns a deep copy of the context.
func (c *CleanupContext) Clone() *CleanupContext {
	if c == nil {
		return nil
	}

	clone := *c
	clone.WaitStartTime = cloneTime(c.WaitStartTime)
	clone.StageSet = c.StageSet.Clone()
	clone.StartedAt = cloneTime(c.StartedAt)
	clone.CodeWorkStartedAt = cloneTime(c.CodeWorkStartedAt)
	clone.PRCreatedAt = cloneTime(c.PRCreatedAt)
	clone.PRApprovedAt = cloneTime(c.PRApprovedAt)
	clone.PRMergedAt = cloneTime(c.PRMergedAt)
	clone.DeploymentDetectedAt = cloneTime(c.DeploymentDetectedAt)
	clone.TransformedAt = cloneTime(c.TransformedAt)
	clone.CompletedAt = cloneTime(c.CompletedAt)

	return &clone
}

// Clone returns a deep copy of the context.
func (c *CodeUpdateContext) Clone() *CodeUpdateContext {
	if c == nil {
		return nil
	}

	clone := *c
	clone.PRCreatedAt = cloneTime(c.PRCreatedAt)
	clone.ValidationStartedAt = cloneTime(c.ValidationStartedAt)
	clone.ReviewStartedAt = cloneTime(c.ReviewStartedAt)
	clone.MergedAt = cloneTime(c.MergedAt)
	clone.DeployedAt = cloneTime(c.DeployedAt)

	return &clone
}

// Clone returns a copy that shares no memory with wc, so it can be read
// while the live workflow keeps changing.
func (wc WorkflowContext) Clone() WorkflowContext {
	return WorkflowContext{
		Kind:       wc.Kind,
		Cleanup:    wc.Cleanup.Clone(),
		CodeUpdate: wc.CodeUpdate.Clone(),
	}
}
