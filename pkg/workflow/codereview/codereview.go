// Package codereview implements the code review cleanup workflow, where a
// configuration is removed through a pull request that is reviewed, merged
// and deployed.
package codereview

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

type machine = fsm.Machine[*models.CleanupContext, models.State, models.Trigger]

// Workflow is a live code review workflow.
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
func New(c *models.CleanupContext, opts ...Option) *Workflow {
	w := &Workflow{
		clock:  workflow.SystemClock,
		logger: log.WithModule("code_review").With("configuration", c.ConfigurationName),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.machine = fsm.New(c, InitialState(c),
		fsm.WithLogger[*models.CleanupContext, models.State, models.Trigger](w.logger))

	w.configure()

	return w
}

func (w *Workflow) configure() {
	w.Configure(models.StateCreated).
		Permit(models.TriggerStart, models.StateInProgress).
		Permit(models.TriggerFail, models.StateFailed)

	w.Configure(models.StateInProgress).
		Permit(models.TriggerUserProceed, models.StateCreatingPR).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.stamp(func(c *models.CleanupContext, now *time.Time) { c.StartedAt = now }))

	w.Configure(models.StateCreatingPR).
		Permit(models.TriggerPRCreated, models.StateAwaitingReview).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.stamp(func(c *models.CleanupContext, now *time.Time) { c.CodeWorkStartedAt = now }))

	w.Configure(models.StateAwaitingReview).
		Permit(models.TriggerPRApproved, models.StateMerged).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.stamp(func(c *models.CleanupContext, now *time.Time) {
			c.PRCreatedAt = now
			c.PullRequestURL = w.pendingURL
		}))

	w.Configure(models.StateMerged).
		Permit(models.TriggerPRMerged, models.StateWaitingForDeployment).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.stamp(func(c *models.CleanupContext, now *time.Time) { c.PRApprovedAt = now }))

	w.Configure(models.StateWaitingForDeployment).
		Permit(models.TriggerDeploymentDetected, models.StateCompleted).
		Permit(models.TriggerTimeout, models.StateFailed).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.stamp(func(c *models.CleanupContext, now *time.Time) { c.PRMergedAt = now }))

	w.Configure(models.StateCompleted).
		OnEntry(w.stamp(func(c *models.CleanupContext, now *time.Time) {
			c.DeploymentDetectedAt = now
			c.CompletedAt = now
			c.IsCompleted = true
			c.CurrentTrafficPercentage = 0
		}))

	w.Configure(models.StateFailed).
		OnEntry(func(_ context.Context, c *models.CleanupContext) error {
			if c.ErrorMessage == "" {
				c.ErrorMessage = "deployment was not detected in time"
			}

			return nil
		})
}

func (w *Workflow) stamp(apply func(c *models.CleanupContext, now *time.Time)) fsm.Action[*models.CleanupContext] {
	return func(_ context.Context, c *models.CleanupContext) error {
		now := w.clock()
		apply(c, &now)

		return nil
	}
}

// InitialState derives the state from the timestamps recorded on c.
func InitialState(c *models.CleanupContext) models.State {
	switch {
	case c.IsCompleted || c.DeploymentDetectedAt != nil:
		return models.StateCompleted
	case c.ErrorMessage != "":
		return models.StateFailed
	case c.PRMergedAt != nil:
		return models.StateWaitingForDeployment
	case c.PRApprovedAt != nil:
		return models.StateMerged
	case c.PRCreatedAt != nil:
		return models.StateAwaitingReview
	case c.CodeWorkStartedAt != nil:
		return models.StateCreatingPR
	case c.StartedAt != nil:
		return models.StateInProgress
	default:
		return models.StateCreated
	}
}

// CanStart requires a configuration to remove.
func (w *Workflow) CanStart() bool {
	return w.Context().ConfigurationName != ""
}

// Start moves a created workflow to InProgress.
func (w *Workflow) Start(ctx context.Context) error {
	if !w.IsInState(models.StateCreated) || !w.CanStart() {
		return fmt.Errorf("%w: cannot start from %s", workflow.ErrInvalidState, w.State())
	}

	_, err := w.Fire(ctx, models.TriggerStart)

	return err
}

// Proceed starts the code work.
func (w *Workflow) Proceed(ctx context.Context) error {
	if !w.CanFire(models.TriggerUserProceed) {
		return fmt.Errorf("%w: proceed requires %s, workflow is %s",
			workflow.ErrInvalidState, models.StateInProgress, w.State())
	}

	_, err := w.Fire(ctx, models.TriggerUserProceed)

	return err
}

// PRCreated records the pull request URL. It is ignored, leaving the
// context untouched, unless the workflow is creating the pull request.
func (w *Workflow) PRCreated(ctx context.Context, url string) (fsm.Outcome, error) {
	if !w.CanFire(models.TriggerPRCreated) {
		return w.Fire(ctx, models.TriggerPRCreated)
	}

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
	w.logger.ErrorContext(ctx, "Code review failed", "error", reason)

	_, err := w.Fire(ctx, models.TriggerFail)

	return err
}

// CurrentStatus describes the workflow for display.
func (w *Workflow) CurrentStatus() string {
	c := w.Context()

	switch w.State() {
	case models.StateCreated:
		return "Ready to start"
	case models.StateInProgress:
		return "Waiting for code work to begin"
	case models.StateCreatingPR:
		return "Creating pull request"
	case models.StateAwaitingReview:
		return "Pull request awaiting review: " + c.PullRequestURL
	case models.StateMerged:
		return "Pull request approved, waiting for merge"
	case models.StateWaitingForDeployment:
		return "Merged, waiting for deployment"
	case models.StateCompleted:
		return "Removal deployed"
	case models.StateFailed:
		return "Failed: " + c.ErrorMessage
	default:
		return string(w.State())
	}
}

var steps = []models.State{
	models.StateCreated,
	models.StateInProgress,
	models.StateCreatingPR,
	models.StateAwaitingReview,
	models.StateMerged,
	models.StateWaitingForDeployment,
	models.StateCompleted,
}

// Progress reports the position in the review chain.
func (w *Workflow) Progress() models.Progress {
	step := 0

	for i, state := range steps {
		if state == w.State() {
			step = i
		}
	}

	progress := models.Progress{
		Step:        step,
		TotalSteps:  len(steps) - 1,
		Percent:     float64(step) / float64(len(steps)-1) * 100,
		Description: w.CurrentStatus(),
	}

	switch w.State() {
	case models.StateInProgress:
		progress.RequiresManualAction = true
		progress.ManualActionDescription = "Start the code change"
	case models.StateAwaitingReview:
		progress.RequiresManualAction = true
		progress.ManualActionDescription = "Review the pull request"
	}

	return progress
}
