// Package transform implements the single step transform cleanup workflow.
package transform

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/cleanup/pkg/fsm"
	"github.com/dukex/cleanup/pkg/log"
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/workflow"
)

type machine = fsm.Machine[*models.CleanupContext, models.State, models.Trigger]

// Workflow is a live transform workflow.
type Workflow struct {
	*machine

	transformer workflow.Transformer
	clock       workflow.Clock
	logger      *slog.Logger
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
func New(c *models.CleanupContext, transformer workflow.Transformer, opts ...Option) *Workflow {
	w := &Workflow{
		transformer: transformer,
		clock:       workflow.SystemClock,
		logger:      log.WithModule("transform").With("configuration", c.ConfigurationName),
	}

	for _, opt := range opts {
		opt(w)
	}

	w.machine = fsm.New(c, InitialState(c),
		fsm.WithLogger[*models.CleanupContext, models.State, models.Trigger](w.logger))

	w.Configure(models.StateCreated).
		Permit(models.TriggerStart, models.StateTransforming)

	w.Configure(models.StateTransforming).
		Permit(models.TriggerTransformCompleted, models.StateCompleted).
		Permit(models.TriggerFail, models.StateFailed).
		OnEntry(w.transform)

	w.Configure(models.StateCompleted).
		OnEntry(func(_ context.Context, c *models.CleanupContext) error {
			now := w.clock()
			c.TransformedAt = &now
			c.CompletedAt = &now
			c.IsCompleted = true

			return nil
		})

	return w
}

// InitialState derives the state from c.
func InitialState(c *models.CleanupContext) models.State {
	switch {
	case c.IsCompleted || c.TransformedAt != nil:
		return models.StateCompleted
	case c.ErrorMessage != "":
		return models.StateFailed
	case c.StartedAt != nil:
		return models.StateTransforming
	default:
		return models.StateCreated
	}
}

func (w *Workflow) transform(ctx context.Context, c *models.CleanupContext) error {
	w.logger.InfoContext(ctx, "Transforming configuration")

	err := w.transformer.Transform(ctx, c.ConfigurationName)
	if err != nil {
		c.ErrorMessage = fmt.Sprintf("failed to transform %s: %v", c.ConfigurationName, err)
		w.logger.ErrorContext(ctx, "Transform failed", "error", err)

		_, err = w.Fire(ctx, models.TriggerFail)

		return err
	}

	_, err = w.Fire(ctx, models.TriggerTransformCompleted)

	return err
}

// CanStart requires a configuration to transform.
func (w *Workflow) CanStart() bool {
	return w.Context().ConfigurationName != ""
}

// Start runs the transform.
func (w *Workflow) Start(ctx context.Context) error {
	if !w.IsInState(models.StateCreated) || !w.CanStart() {
		return fmt.Errorf("%w: cannot start from %s", workflow.ErrInvalidState, w.State())
	}

	now := w.clock()
	w.Context().StartedAt = &now

	_, err := w.Fire(ctx, models.TriggerStart)

	return err
}

// Fail records reason and moves a transforming workflow to Failed.
func (w *Workflow) Fail(ctx context.Context, reason string) error {
	if !w.CanFire(models.TriggerFail) {
		return fmt.Errorf("%w: cannot fail from %s", workflow.ErrInvalidState, w.State())
	}

	w.Context().ErrorMessage = reason

	_, err := w.Fire(ctx, models.TriggerFail)

	return err
}

// CurrentStatus describes the workflow for display.
func (w *Workflow) CurrentStatus() string {
	switch w.State() {
	case models.StateCreated:
		return "Ready to transform"
	case models.StateTransforming:
		return "Transforming"
	case models.StateCompleted:
		return "Transformed"
	case models.StateFailed:
		return "Failed: " + w.Context().ErrorMessage
	default:
		return string(w.State())
	}
}

// Progress reports a single step.
func (w *Workflow) Progress() models.Progress {
	progress := models.Progress{TotalSteps: 1, Description: w.CurrentStatus()}

	if w.IsInState(models.StateCompleted) {
		progress.Step = 1
		progress.Percent = 100
	}

	return progress
}
