// Package workflow defines the contracts shared by the cleanup workflow
// definitions and the side effects they invoke.
package workflow

import (
	"context"
	"errors"
	"time"

	"github.com/dukex/cleanup/pkg/models"
)

var (
	// ErrInvalidState is returned when an operation's precondition on the
	// current state does not hold.
	ErrInvalidState = errors.New("invalid workflow state")
	// ErrUnknownWorkflowType is returned for an unrecognised workflow type.
	ErrUnknownWorkflowType = errors.New("unknown workflow type")
)

// Workflow is a live workflow instance: a context paired with FSM state.
type Workflow interface {
	// CanStart reports whether the workflow has what it needs to start.
	CanStart() bool
	// Start leaves the initial state.
	Start(ctx context.Context) error
	// CurrentStatus is a human readable description of where the workflow is.
	CurrentStatus() string
	// State is the current FSM state.
	State() models.State
	// PermittedTriggers lists the triggers valid from the current state.
	PermittedTriggers() []models.Trigger
}

// Proceeder is implemented by workflows that support a manual advance.
type Proceeder interface {
	Proceed(ctx context.Context) error
}

// Timed is implemented by workflows that wait on the clock. WakeAt returns
// the time the workflow must be resumed at, if any.
type Timed interface {
	WakeAt() (time.Time, bool)
}

// Resumer is implemented by timed workflows. Resume performs the work owed
// once the wake time has passed and reports whether anything changed.
type Resumer interface {
	Timed
	Resume(ctx context.Context) (bool, error)
}

// Observer is implemented by timed workflows whose reported state depends
// on the clock. ObservedState returns the state the workflow will be in once
// an elapsed wait is resumed, without changing the workflow.
type Observer interface {
	ObservedState() models.State
}

// ProgressReporter is implemented by workflows that can describe their own progress.
type ProgressReporter interface {
	Progress() models.Progress
}

// Clock returns the current time.
type Clock func() time.Time

// SystemClock returns the current UTC time.
func SystemClock() time.Time {
	return time.Now().UTC()
}

// TrafficReducer moves traffic away from a configuration.
type TrafficReducer interface {
	ReduceTraffic(ctx context.Context, configurationName, stage string, from, to int) error
}

// Transformer rewrites a configuration in a single step.
type Transformer interface {
	Transform(ctx context.Context, configurationName string) error
}

// Effects groups the side effects a workflow may call.
type Effects struct {
	Reducer     TrafficReducer
	Transformer Transformer
}
