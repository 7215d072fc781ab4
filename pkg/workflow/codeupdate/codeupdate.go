// Package codeupdate implements the code update workflow, which follows a
// pull request from creation through test validation, review and deployment.
package codeupdate

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukex/cleanup/pkg/fsm"
	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/workflow"
)

type machine = fsm.Machine[*models.CodeUpdateContext, models.State, models.Trigger]

// Workflow is a live code update workflow.
type Workflow struct {
	*machine

	clock  workflow.Clock
	logger *slog.Logger

	pendingURL string
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock replaces the wall clock.
func WithClock(clock workflow.Clock) Option {
	return func(w *Workflow) {
		w.clock = clock
	}
}

// New builds a workflow around c, positioned on the state c describes.
func New(c *models.CodeUpdateContext, opts ...Option) *Workflow {
	w := &Workflow{
		clock:  workflow.SystemClock,
		logger: log.WithModule("code_update").With("title", c.Title),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.machine = fsm.New(c, InitialState(c),
		fsm.WithLogger[*models.CodeUpdateContext, models.State, models.Trigger](w.logger))

	w.Configure(models.StatePRInProgress).
		Permit(models.TriggerPRCreated, models.StateValidationInTestEnv).
		Permit(models.TriggerFail, models.StateFailed)

	w.Configure(models.StateValidationInTestEnv).
		Permit(models.TriggerValidationPassed, models.StatePRInReview).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.phase(0.25, func(c *models.CodeUpdateContext, now *time.Time) {
			if w.pendingURL != "" {
				c.PullRequestURL = w.pendingURL
			}

			c.PRCreatedAt = now
			c.ValidationStartedAt = now
		}))

	w.Configure(models.StatePRInReview).
		Permit(models.TriggerPRMerged, models.StateMergedAwaitingDeployment).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.phase(0.5, func(c *models.CodeUpdateContext, now *time.Time) { c.ReviewStartedAt = now }))

	w.Configure(models.StateMergedAwaitingDeployment).
		Permit(models.TriggerDeploymentDetected, models.StateDeploymentDone).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.phase(0.75, func(c *models.CodeUpdateContext, now *time.Time) { c.MergedAt = now }))

	w.Configure(models.StateDeploymentDone).
		OnEntry(w.phase(1, func(c *models.CodeUpdateContext, now *time.Time) { c.DeployedAt = now }))

	return w
}

func (w *Workflow) phase(progress float64, apply func(c *models.CodeUpdateContext, now *time.Time)) fsm.Action[*models.CodeUpdateContext] {
	return func(_ context.Context, c *models.CodeUpdateContext) error {
		now := w.clock()
		apply(c, &now)
		c.Progress = progress

		return nil
	}
}

// InitialState derives the state from the timestamps recorded on c.
func InitialState(c *models.CodeUpdateContext) models.State {
	switch {
	case c.DeployedAt != nil:
		return models.StateDeploymentDone
	case c.ErrorMessage != "":
		return models.StateFailed
	case c.MergedAt != nil:
		return models.StateMergedAwaitingDeployment
	case c.ReviewStartedAt != nil:
		return models.StatePRInReview
	case c.ValidationStartedAt != nil:
		return models.StateValidationInTestEnv
	default:
		return models.StatePRInProgress
	}
}

// CanStart requires a pull request to follow.
func (w *Workflow) CanStart() bool {
	return w.Context().PullRequestURL != ""
}

// Start begins validating the pull request.
func (w *Workflow) Start(ctx context.Context) error {
	if !w.IsInState(models.StatePRInProgress) {
		return fmt.Errorf("%w: cannot start from %s", workflow.ErrInvalidState, w.State())
	}

	if !w.CanStart() {
		return fmt.Errorf("%w: no pull request URL", workflow.ErrInvalidState)
	}

	_, err := w.Fire(ctx, models.TriggerPRCreated)

	return err
}

// PRCreated records url and starts validation. It is ignored unless the
// pull request is still in progress.
func (w *Workflow) PRCreated(ctx context.Context, url string) (fsm.Outcome, error) {
	w.pendingURL = url
	defer func() { w.pendingURL = "" }()

	return w.Fire(ctx, models.TriggerPRCreated)
}

// Fail records reason and moves the workflow to Failed.
func (w *Workflow) Fail(ctx context.Context, reason string) error {
	if !w.CanFire(models.TriggerFail) {
		return fmt.Errorf("%w: cannot fail from %s", workflow.ErrInvalidState, w.State())
	}

	w.Context().ErrorMessage = reason
	w.logger.ErrorContext(ctx, "Code update failed", "error", reason)

	_, err := w.Fire(ctx, models.TriggerFail)

	return err
}

// CurrentStatus describes the workflow for display.
func (w *Workflow) CurrentStatus() string {
	switch w.State() {
	case models.StatePRInProgress:
		return "Pull request in progress"
	case models.StateValidationInTestEnv:
		return "Validating in test environment"
	case models.StatePRInReview:
		return "Pull request in review"
	case models.StateMergedAwaitingDeployment:
		return "Merged, awaiting deployment"
	case models.StateDeploymentDone:
		return "Deployed"
	case models.StateFailed:
		return "Failed: " + w.Context().ErrorMessage
	default:
		return string(w.State())
	}
}

// Progress reports the recorded progress fraction in four steps.
func (w *Workflow) Progress() models.Progress {
	c := w.Context()
	progress := models.Progress{
		Step:        int(c.Progress * 4),
		TotalSteps:  4,
		Percent:     c.Progress * 100,
		Description: w.CurrentStatus(),
	}

	if w.IsInState(models.StatePRInReview) {
		progress.RequiresManualAction = true
		progress.ManualActionDescription = "Review and merge the pull request"
	}

	return progress
}
