// Package archive implements the staged archive workflow: traffic to a
// configuration is reduced stage by stage, with a wait after each reduction.
package archive

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

// Reductions of at least this many points are split: the first step only
// removes a fifth of the reduction and the rest follows after the wait.
const (
	largeReductionThreshold = 40
	firstStepFraction       = 0.2
)

type machine = fsm.Machine[*models.CleanupContext, models.State, models.Trigger]

// Workflow is a live staged archive workflow.
type Workflow struct {
	*machine

	reducer workflow.TrafficReducer
	clock   workflow.Clock
	logger  *slog.Logger
}

// Option configures a Workflow.
type Option func(*Workflow)

// WithClock replaces the wall clock.
func WithClock(clock workflow.Clock) Option {
	return func(w *Workflow) {
		w.clock = clock
	}
}

// WithLogger sets the workflow logger.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workflow) {
		w.logger = logger
	}
}

// New builds a workflow around c, positioned on the state c describes.
func New(c *models.CleanupContext, reducer workflow.TrafficReducer, opts ...Option) *Workflow {
	w := &Workflow{
		reducer: reducer,
		clock:   workflow.SystemClock,
		logger:  log.WithModule("staged_archive"),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.logger = w.logger.With("configuration", c.ConfigurationName)
	w.machine = fsm.New(c, InitialState(c, w.clock()),
		fsm.WithLogger[*models.CleanupContext, models.State, models.Trigger](w.logger))

	w.configure()

	return w
}

func (w *Workflow) configure() {
	w.Configure(models.StateCreated).
		Permit(models.TriggerStart, models.StateAwaitingUserAction)

	w.Configure(models.StateAwaitingUserAction).
		Permit(models.TriggerUserProceed, models.StateInProgress).
		Permit(models.TriggerComplete, models.StateCompleted).
		Permit(models.TriggerFail, models.StateFailed)

	w.Configure(models.StateInProgress).
		Permit(models.TriggerReductionCompleted, models.StateWaiting).
		Permit(models.TriggerStageCompleted, models.StateAwaitingUserAction).
		Permit(models.TriggerComplete, models.StateCompleted).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.reduce)

	w.Configure(models.StateWaiting).
		Permit(models.TriggerWaitPeriodCompleted, models.StateAwaitingUserAction).
		Permit(models.TriggerComplete, models.StateCompleted).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.beginWait)

	w.Configure(models.StateCompleted).
		OnEntry(w.complete)
}

// InitialState derives the state of a workflow from its context alone, so a
// rebuilt instance reports what an uninterrupted one would at time now.
func InitialState(c *models.CleanupContext, now time.Time) models.State {
	switch {
	case c.IsCompleted:
		return models.StateCompleted
	case c.ErrorMessage != "":
		return models.StateFailed
	case c.StageSet == nil || c.StartedAt == nil:
		return models.StateCreated
	}

	stage := c.StageSet.CurrentStage()
	if stage == nil {
		return models.StateAwaitingUserAction
	}

	switch stage.Status {
	case models.StageStatusReducingTraffic:
		return models.StateInProgress
	case models.StageStatusFailed:
		return models.StateFailed
	case models.StageStatusWaiting:
		deadline, ok := stage.WaitDeadline()
		if ok && now.Before(deadline) {
			return models.StateWaiting
		}

		return models.StateAwaitingUserAction
	default:
		return models.StateAwaitingUserAction
	}
}

// CanStart requires at least one stage with traffic left to remove.
func (w *Workflow) CanStart() bool {
	return w.Context().StageSet.HasReducibleStage()
}

// Start moves a created workflow to AwaitingUserAction.
func (w *Workflow) Start(ctx context.Context) error {
	if !w.IsInState(models.StateCreated) {
		return fmt.Errorf("%w: cannot start from %s", workflow.ErrInvalidState, w.State())
	}

	if !w.CanStart() {
		return fmt.Errorf("%w: no stage has traffic to reduce", workflow.ErrInvalidState)
	}

	c := w.Context()
	now := w.clock()
	c.StartedAt = &now
	c.StageSet.StartedAt = &now

	_, err := w.Fire(ctx, models.TriggerStart)

	return err
}

// Proceed runs the next reduction. It is only valid while awaiting the user.
func (w *Workflow) Proceed(ctx context.Context) error {
	if !w.IsInState(models.StateAwaitingUserAction) {
		return fmt.Errorf("%w: proceed requires %s, workflow is %s",
			workflow.ErrInvalidState, models.StateAwaitingUserAction, w.State())
	}

	_, err := w.Fire(ctx, models.TriggerUserProceed)

	return err
}

// Fail records reason and moves the workflow to Failed.
func (w *Workflow) Fail(ctx context.Context, reason string) error {
	if !w.CanFire(models.TriggerFail) {
		return fmt.Errorf("%w: cannot fail from %s", workflow.ErrInvalidState, w.State())
	}

	return w.fail(ctx, w.Context(), w.Context().StageSet.CurrentStage(), reason)
}

// WakeAt returns when the current wait period ends. No wake time is
// reported while a user action is owed.
func (w *Workflow) WakeAt() (time.Time, bool) {
	stage := w.Context().StageSet.CurrentStage()
	if stage == nil || stage.Status != models.StageStatusWaiting {
		return time.Time{}, false
	}

	switch w.State() {
	case models.StateWaiting:
		return stage.WaitDeadline()
	case models.StateAwaitingUserAction:
		if stage.NeedsReduction() {
			return time.Time{}, false
		}

		return stage.WaitDeadline()
	default:
		return time.Time{}, false
	}
}

// Resume finishes an elapsed wait period. It reports false when there is
// nothing due yet.
func (w *Workflow) Resume(ctx context.Context) (bool, error) {
	at, ok := w.WakeAt()
	if !ok || w.clock().Before(at) {
		return false, nil
	}

	c := w.Context()
	stage := c.StageSet.CurrentStage()

	if w.IsInState(models.StateWaiting) && stage.NeedsReduction() {
		_, err := w.Fire(ctx, models.TriggerWaitPeriodCompleted)

		return true, err
	}

	more, err := w.completeStage(c, stage)
	if err != nil {
		return true, w.fail(ctx, c, stage, err.Error())
	}

	switch {
	case !more:
		_, err = w.Fire(ctx, models.TriggerComplete)
	case w.IsInState(models.StateWaiting):
		_, err = w.Fire(ctx, models.TriggerWaitPeriodCompleted)
	}

	return true, err
}

// ObservedState reports the state Resume would leave the workflow in at the
// current time. An elapsed wait on a finished last stage reads as Completed.
func (w *Workflow) ObservedState() models.State {
	at, ok := w.WakeAt()
	if !ok || w.clock().Before(at) {
		return w.State()
	}

	ss := w.Context().StageSet
	if !ss.CurrentStage().NeedsReduction() && ss.CurrentStageIndex >= len(ss.Stages)-1 {
		return models.StateCompleted
	}

	return models.StateAwaitingUserAction
}

func (w *Workflow) reduce(ctx context.Context, c *models.CleanupContext) error {
	stage := c.StageSet.CurrentStage()
	if stage == nil {
		_, err := w.Fire(ctx, models.TriggerComplete)

		return err
	}

	switch {
	case stage.Status == models.StageStatusPending,
		stage.Status == models.StageStatusReducingTraffic && stage.NeedsReduction():
		return w.firstReduction(ctx, c, stage)
	case stage.Status == models.StageStatusWaiting && stage.NeedsReduction():
		return w.finalReduction(ctx, c, stage)
	default:
		return w.skipStage(ctx, c, stage)
	}
}

func (w *Workflow) firstReduction(ctx context.Context, c *models.CleanupContext, stage *models.Stage) error {
	if stage.Status == models.StageStatusPending {
		now := w.clock()
		stage.StartedAt = &now

		err := stage.SetStatus(models.StageStatusReducingTraffic)
		if err != nil {
			return w.fail(ctx, c, stage, err.Error())
		}
	}

	to := IntermediateAllocation(stage.CurrentAllocation, stage.TargetAllocation)

	err := w.applyReduction(ctx, c, stage, to)
	if err != nil {
		return w.fail(ctx, c, stage, err.Error())
	}

	if stage.NeedsReduction() {
		_, err = w.Fire(ctx, models.TriggerReductionCompleted)

		return err
	}

	more, err := w.completeStage(c, stage)
	if err != nil {
		return w.fail(ctx, c, stage, err.Error())
	}

	if !more {
		_, err = w.Fire(ctx, models.TriggerComplete)

		return err
	}

	_, err = w.Fire(ctx, models.TriggerStageCompleted)

	return err
}

func (w *Workflow) finalReduction(ctx context.Context, c *models.CleanupContext, stage *models.Stage) error {
	err := w.applyReduction(ctx, c, stage, stage.TargetAllocation)
	if err != nil {
		return w.fail(ctx, c, stage, err.Error())
	}

	_, err = w.Fire(ctx, models.TriggerReductionCompleted)

	return err
}

// skipStage finishes a stage that is already at its target and carries on
// with the next one.
func (w *Workflow) skipStage(ctx context.Context, c *models.CleanupContext, stage *models.Stage) error {
	var (
		more bool
		err  error
	)

	if stage.Status == models.StageStatusCompleted {
		more = c.StageSet.Advance()
	} else {
		more, err = w.completeStage(c, stage)
		if err != nil {
			return w.fail(ctx, c, stage, err.Error())
		}
	}

	if !more {
		_, err = w.Fire(ctx, models.TriggerComplete)

		return err
	}

	return w.reduce(ctx, c)
}

func (w *Workflow) applyReduction(ctx context.Context, c *models.CleanupContext, stage *models.Stage, to int) error {
	from := stage.CurrentAllocation

	if from != to {
		w.logger.InfoContext(ctx, "Reducing traffic", "stage", stage.Name, "from", from, "to", to)

		err := w.reducer.ReduceTraffic(ctx, c.ConfigurationName, stage.Name, from, to)
		if err != nil {
			return fmt.Errorf("failed to reduce traffic on stage %s from %d%% to %d%%: %w", stage.Name, from, to, err)
		}
	}

	err := stage.SetAllocation(to)
	if err != nil {
		return err
	}

	c.CurrentTrafficPercentage = to

	return nil
}

func (w *Workflow) beginWait(ctx context.Context, c *models.CleanupContext) error {
	stage := c.StageSet.CurrentStage()
	if stage == nil {
		return nil
	}

	err := stage.SetStatus(models.StageStatusWaiting)
	if err != nil {
		return w.fail(ctx, c, stage, err.Error())
	}

	now := w.clock()
	stage.WaitStartTime = &now
	c.WaitStartTime = &now
	c.WaitDuration = stage.WaitDuration

	w.logger.InfoContext(ctx, "Waiting", "stage", stage.Name, "until", now.Add(stage.WaitDuration))

	return nil
}

// completeStage marks stage completed and advances the stage index. It
// reports whether another stage follows.
func (w *Workflow) completeStage(c *models.CleanupContext, stage *models.Stage) (bool, error) {
	err := stage.SetStatus(models.StageStatusCompleted)
	if err != nil {
		return false, err
	}

	now := w.clock()
	stage.CompletedAt = &now
	c.WaitStartTime = nil

	return c.StageSet.Advance(), nil
}

func (w *Workflow) complete(_ context.Context, c *models.CleanupContext) error {
	now := w.clock()
	c.IsCompleted = true
	c.CompletedAt = &now
	c.WaitStartTime = nil

	if c.StageSet != nil {
		c.StageSet.CompletedAt = &now
	}

	return nil
}

func (w *Workflow) fail(ctx context.Context, c *models.CleanupContext, stage *models.Stage, reason string) error {
	w.logger.ErrorContext(ctx, "Staged archive failed", "error", reason)

	c.ErrorMessage = reason

	if stage != nil {
		stage.ErrorMessage = reason
		_ = stage.SetStatus(models.StageStatusFailed)
	}

	_, err := w.Fire(ctx, models.TriggerFail)

	return err
}

// IntermediateAllocation returns the allocation the first reduction of a
// stage moves to.
func IntermediateAllocation(current, target int) int {
	reduction := current - target
	if reduction < largeReductionThreshold {
		return target
	}

	return max(current-int(float64(reduction)*firstStepFraction), target)
}
