// Package codeupdate provides the host provider for code update workflows.
package codeupdate

import (
	"context"
	"fmt"
	"strconv"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/dukex/cleanup/pkg/workflow/codeupdate"
	"github.com/go-playground/validator/v10"
)

// WorkflowType tags code update projections.
const WorkflowType = "code-update"

// External event types understood by the provider.
const (
	EventPRCreated          = "pr-created"
	EventValidationPassed   = "validation-passed"
	EventPRMerged           = "pr-merged"
	EventDeploymentDetected = "deployment-detected"
	EventFail               = "fail"
)

var eventTriggers = map[string]models.Trigger{
	EventValidationPassed:   models.TriggerValidationPassed,
	EventPRMerged:           models.TriggerPRMerged,
	EventDeploymentDetected: models.TriggerDeploymentDetected,
}

// Provider implements services.Provider for code update workflows.
type Provider struct {
	clock     workflow.Clock
	validator *validator.Validate
}

var _ services.Provider[models.CodeUpdateRequest, *models.CodeUpdateContext, *codeupdate.Workflow] = (*Provider)(nil)

// New creates a provider. A nil clock means the system clock.
func New(clock workflow.Clock) *Provider {
	if clock == nil {
		clock = workflow.SystemClock
	}

	return &Provider{
		clock:     clock,
		validator: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (p *Provider) CreateContext(req models.CodeUpdateRequest) (*models.CodeUpdateContext, error) {
	err := p.validator.Struct(req)
	if err != nil {
		return nil, services.NewValidationError("CreateContext", err.Error(), err)
	}

	return &models.CodeUpdateContext{
		Title:          req.Title,
		Description:    req.Description,
		PullRequestURL: req.PullRequestURL,
	}, nil
}

func (p *Provider) CreateWorkflow(c *models.CodeUpdateContext) (*codeupdate.Workflow, error) {
	return codeupdate.New(c, codeupdate.WithClock(p.clock)), nil
}

// HandleExternalEvent fires the event's trigger when the current state permits it.
func (p *Provider) HandleExternalEvent(ctx context.Context, wf *codeupdate.Workflow, eventType string, data map[string]any) (bool, error) {
	switch eventType {
	case EventPRCreated:
		if !wf.CanFire(models.TriggerPRCreated) {
			return false, nil
		}

		url, _ := data["url"].(string)
		_, err := wf.PRCreated(ctx, url)

		return true, err
	case EventFail:
		if !wf.CanFire(models.TriggerFail) {
			return false, nil
		}

		reason, _ := data["reason"].(string)
		if reason == "" {
			reason = "failed by external event"
		}

		return true, wf.Fail(ctx, reason)
	}

	trigger, known := eventTriggers[eventType]
	if !known || !wf.CanFire(trigger) {
		return false, nil
	}

	_, err := wf.Fire(ctx, trigger)

	return true, err
}

// Kind is the context family served.
func (p *Provider) Kind() models.ContextKind {
	return models.ContextKindCodeUpdate
}

func (p *Provider) CurrentStatus(wf *codeupdate.Workflow) string {
	return wf.CurrentStatus()
}

func (p *Provider) CurrentState(wf *codeupdate.Workflow) models.State {
	return wf.State()
}

func (p *Provider) Context(wf *codeupdate.Workflow) *models.CodeUpdateContext {
	return wf.Context()
}

func (p *Provider) CalculateProgress(_ *models.WorkflowProjection, wf *codeupdate.Workflow) models.Progress {
	return wf.Progress()
}

func (p *Provider) DisplayName(c *models.CodeUpdateContext) string {
	return c.Title
}

func (p *Provider) WorkflowType(*models.CodeUpdateContext) string {
	return WorkflowType
}

func (p *Provider) Metadata(c *models.CodeUpdateContext) map[string]string {
	metadata := map[string]string{
		"title":    c.Title,
		"progress": strconv.FormatFloat(c.Progress, 'f', 2, 64),
	}

	if c.PullRequestURL != "" {
		metadata["pull_request_url"] = c.PullRequestURL
	}

	return metadata
}

func (p *Provider) Wrap(c *models.CodeUpdateContext) models.WorkflowContext {
	return models.NewCodeUpdateContext(c)
}

// Unwrap rejects contexts of another family.
func (p *Provider) Unwrap(wc models.WorkflowContext) (*models.CodeUpdateContext, error) {
	err := wc.Validate()
	if err != nil {
		return nil, err
	}

	if wc.Kind != models.ContextKindCodeUpdate {
		return nil, fmt.Errorf("%w: expected %s context, got %s", models.ErrInvalidContext, models.ContextKindCodeUpdate, wc.Kind)
	}

	return wc.CodeUpdate.Clone(), nil
}

func (p *Provider) EventSchemas() map[string]map[string]any {
	return map[string]map[string]any{
		EventPRCreated: {
			"type":     "object",
			"required": []any{"url"},
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "format": "uri"},
			},
		},
	}
}
