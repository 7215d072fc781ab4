// Package cleanup provides the host provider for configuration cleanup
// workflows: staged archive, code review and transform.
package cleanup

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/dukex/cleanup/pkg/fsm"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/dukex/cleanup/pkg/workflow"
	"github.com/dukex/cleanup/pkg/workflow/factory"
	"github.com/go-playground/validator/v10"
)

// External event types understood by the provider.
const (
	EventPRCreated          = "pr-created"
	EventPRApproved         = "pr-approved"
	EventPRMerged           = "pr-merged"
	EventDeploymentDetected = "deployment-detected"
	EventTimeout            = "timeout"
	EventFail               = "fail"
)

const defaultStageName = "default"

var eventTriggers = map[string]models.Trigger{
	EventPRApproved:         models.TriggerPRApproved,
	EventPRMerged:           models.TriggerPRMerged,
	EventDeploymentDetected: models.TriggerDeploymentDetected,
	EventTimeout:            models.TriggerTimeout,
}

// StageTemplate describes a default stage. Stages built from templates are
// chained: each starts where the previous one stopped.
type StageTemplate struct {
	Name             string
	TargetAllocation int
	WaitDuration     time.Duration
}

type machine interface {
	CanFire(trigger models.Trigger) bool
	Fire(ctx context.Context, trigger models.Trigger) (fsm.Outcome, error)
	Context() *models.CleanupContext
}

type prCreator interface {
	PRCreated(ctx context.Context, url string) (fsm.Outcome, error)
}

type failer interface {
	Fail(ctx context.Context, reason string) error
}

// Provider implements services.Provider for the cleanup family.
type Provider struct {
	deps        factory.Dependencies
	templates   []StageTemplate
	defaultWait time.Duration
	validator   *validator.Validate
}

var _ services.Provider[models.CleanupRequest, *models.CleanupContext, workflow.Workflow] = (*Provider)(nil)

// Option configures a Provider.
type Option func(*Provider)

// WithStageTemplates sets the stages used when a staged archive request has none.
func WithStageTemplates(templates []StageTemplate) Option {
	return func(p *Provider) {
		p.templates = templates
	}
}

// WithDefaultWait sets the wait used when neither the request nor a stage sets one.
func WithDefaultWait(wait time.Duration) Option {
	return func(p *Provider) {
		p.defaultWait = wait
	}
}

// New creates a provider building workflows with deps.
func New(deps factory.Dependencies, opts ...Option) *Provider {
	p := &Provider{
		deps:        deps,
		defaultWait: time.Hour,
		validator:   validator.New(validator.WithRequiredStructEnabled()),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

// CreateContext validates req and builds a cleanup context. Staged archive
// requests without stages get the configured templates, or a single stage
// down to zero.
func (p *Provider) CreateContext(req models.CleanupRequest) (*models.CleanupContext, error) {
	err := p.validator.Struct(req)
	if err != nil {
		return nil, services.NewValidationError("CreateContext", err.Error(), err)
	}

	wait := req.WaitDuration
	if wait == 0 {
		wait = p.defaultWait
	}

	c := &models.CleanupContext{
		ConfigurationName:        req.ConfigurationName,
		WorkflowType:             req.WorkflowType,
		CurrentTrafficPercentage: req.CurrentTrafficPercentage,
		WaitDuration:             wait,
	}

	if req.WorkflowType == models.WorkflowTypeStagedArchive {
		stages, err := p.stages(req, wait)
		if err != nil {
			return nil, err
		}

		c.StageSet = models.NewStageSet(stages...)
	}

	return c, nil
}

func (p *Provider) stages(req models.CleanupRequest, wait time.Duration) ([]*models.Stage, error) {
	waitOr := func(d time.Duration) time.Duration {
		if d == 0 {
			return wait
		}

		return d
	}

	if len(req.Stages) > 0 {
		stages := make([]*models.Stage, 0, len(req.Stages))
		for _, s := range req.Stages {
			stages = append(stages, models.NewStage(s.Name, s.CurrentAllocation, s.TargetAllocation, waitOr(s.WaitDuration)))
		}

		return stages, nil
	}

	if len(p.templates) == 0 {
		return []*models.Stage{models.NewStage(defaultStageName, req.CurrentTrafficPercentage, 0, wait)}, nil
	}

	current := req.CurrentTrafficPercentage
	stages := make([]*models.Stage, 0, len(p.templates))

	for _, t := range p.templates {
		if t.TargetAllocation < 0 || t.TargetAllocation > 100 {
			return nil, services.NewValidationError("CreateContext",
				fmt.Sprintf("stage template %s has target %d outside 0-100", t.Name, t.TargetAllocation), nil)
		}

		target := min(t.TargetAllocation, current)
		stages = append(stages, models.NewStage(t.Name, current, target, waitOr(t.WaitDuration)))
		current = target
	}

	return stages, nil
}

// CreateWorkflow builds the live workflow for c's type.
//
//nolint:ireturn // the concrete definition depends on the context
func (p *Provider) CreateWorkflow(c *models.CleanupContext) (workflow.Workflow, error) {
	return factory.New(c, p.deps)
}

// HandleExternalEvent maps eventType to a trigger and fires it when the
// workflow's current state permits it.
func (p *Provider) HandleExternalEvent(ctx context.Context, wf workflow.Workflow, eventType string, data map[string]any) (bool, error) {
	m, ok := wf.(machine)
	if !ok {
		return false, nil
	}

	switch eventType {
	case EventPRCreated:
		creator, ok := wf.(prCreator)
		if !ok || !m.CanFire(models.TriggerPRCreated) {
			return false, nil
		}

		url, _ := data["url"].(string)
		_, err := creator.PRCreated(ctx, url)

		return true, err
	case EventFail:
		f, ok := wf.(failer)
		if !ok || !m.CanFire(models.TriggerFail) {
			return false, nil
		}

		reason, _ := data["reason"].(string)
		if reason == "" {
			reason = "failed by external event"
		}

		return true, f.Fail(ctx, reason)
	}

	trigger, known := eventTriggers[eventType]
	if !known || !m.CanFire(trigger) {
		return false, nil
	}

	_, err := m.Fire(ctx, trigger)

	return true, err
}

// Kind is the context family served.
func (p *Provider) Kind() models.ContextKind {
	return models.ContextKindCleanup
}

func (p *Provider) CurrentStatus(wf workflow.Workflow) string {
	return wf.CurrentStatus()
}

func (p *Provider) CurrentState(wf workflow.Workflow) models.State {
	return wf.State()
}

// Context returns the context owned by wf.
func (p *Provider) Context(wf workflow.Workflow) *models.CleanupContext {
	if m, ok := wf.(machine); ok {
		return m.Context()
	}

	return nil
}

// CalculateProgress uses the workflow's own report when it has one.
func (p *Provider) CalculateProgress(_ *models.WorkflowProjection, wf workflow.Workflow) models.Progress {
	if reporter, ok := wf.(workflow.ProgressReporter); ok {
		return reporter.Progress()
	}

	progress := models.Progress{TotalSteps: 1, Description: wf.CurrentStatus()}
	if wf.State().IsTerminal() {
		progress.Step = 1
		progress.Percent = 100
	}

	return progress
}

func (p *Provider) DisplayName(c *models.CleanupContext) string {
	return c.ConfigurationName
}

func (p *Provider) WorkflowType(c *models.CleanupContext) string {
	return string(c.WorkflowType)
}

// Metadata exposes the fields listings filter and display on.
func (p *Provider) Metadata(c *models.CleanupContext) map[string]string {
	metadata := map[string]string{
		"configuration_name":         c.ConfigurationName,
		"current_traffic_percentage": strconv.Itoa(c.CurrentTrafficPercentage),
	}

	if c.PullRequestURL != "" {
		metadata["pull_request_url"] = c.PullRequestURL
	}

	if c.StageSet != nil {
		metadata["stages"] = strconv.Itoa(len(c.StageSet.Stages))
	}

	return metadata
}

func (p *Provider) Wrap(c *models.CleanupContext) models.WorkflowContext {
	return models.NewCleanupContext(c)
}

// Unwrap rejects contexts of another family.
func (p *Provider) Unwrap(wc models.WorkflowContext) (*models.CleanupContext, error) {
	err := wc.Validate()
	if err != nil {
		return nil, err
	}

	if wc.Kind != models.ContextKindCleanup {
		return nil, fmt.Errorf("%w: expected %s context, got %s", models.ErrInvalidContext, models.ContextKindCleanup, wc.Kind)
	}

	return wc.Cleanup.Clone(), nil
}

// EventSchemas describes the data each event requires.
func (p *Provider) EventSchemas() map[string]map[string]any {
	return map[string]map[string]any{
		EventPRCreated: {
			"type":     "object",
			"required": []any{"url"},
			"properties": map[string]any{
				"url": map[string]any{"type": "string", "minLength": 1},
			},
		},
		EventFail: {
			"type": "object",
			"properties": map[string]any{
				"reason": map[string]any{"type": "string"},
			},
		},
	}
}
