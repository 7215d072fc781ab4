// Package fsm provides a small finite-state-machine runtime with guarded
// transitions and entry actions, shared by every workflow definition.
package fsm

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/dukex/cleanup/pkg/log"
)

// Outcome reports what a call to Fire did.
type Outcome int

const (
	// Ignored means no transition is configured for the trigger in the
	// current state, or its guard rejected it. State and context are unchanged.
	Ignored Outcome = iota
	// Transitioned means the state changed and the entry action ran.
	Transitioned
)

func (o Outcome) String() string {
	if o == Transitioned {
		return "transitioned"
	}

	return "ignored"
}

// Guard decides whether a configured transition may be taken.
type Guard[C any] func(c C) bool

// Action runs when a state is entered.
type Action[C any] func(ctx context.Context, c C) error

type transition[C any, S comparable, T comparable] struct {
	trigger T
	dst     S
	guard   Guard[C]
}

// StateConfig holds the transitions leaving one state and its entry action.
type StateConfig[C any, S comparable, T comparable] struct {
	state       S
	transitions []transition[C, S, T]
	onEntry     Action[C]
}

// Permit configures trigger to move from this state to dst.
func (sc *StateConfig[C, S, T]) Permit(trigger T, dst S) *StateConfig[C, S, T] {
	return sc.PermitIf(trigger, dst, nil)
}

// PermitIf configures trigger to move to dst only when guard holds.
func (sc *StateConfig[C, S, T]) PermitIf(trigger T, dst S, guard Guard[C]) *StateConfig[C, S, T] {
	sc.transitions = append(sc.transitions, transition[C, S, T]{trigger: trigger, dst: dst, guard: guard})

	return sc
}

// OnEntry sets the action run each time this state is entered.
func (sc *StateConfig[C, S, T]) OnEntry(action Action[C]) *StateConfig[C, S, T] {
	sc.onEntry = action

	return sc
}

// Machine is a finite-state machine over a context C, states S and triggers T.
// It is not safe for concurrent use; callers serialize access per instance.
type Machine[C any, S comparable, T comparable] struct {
	context C
	state   S
	states  map[S]*StateConfig[C, S, T]
	logger  *slog.Logger
}

// Option configures a Machine.
type Option[C any, S comparable, T comparable] func(*Machine[C, S, T])

// WithLogger sets the logger used to report ignored triggers.
func WithLogger[C any, S comparable, T comparable](logger *slog.Logger) Option[C, S, T] {
	return func(m *Machine[C, S, T]) {
		m.logger = logger
	}
}

// New returns a machine positioned on initial. The entry action of the
// initial state is not run.
func New[C any, S comparable, T comparable](c C, initial S, opts ...Option[C, S, T]) *Machine[C, S, T] {
	m := &Machine[C, S, T]{
		context: c,
		state:   initial,
		states:  make(map[S]*StateConfig[C, S, T]),
		logger:  log.WithModule("fsm"),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Configure returns the configuration of state, creating it if needed.
func (m *Machine[C, S, T]) Configure(state S) *StateConfig[C, S, T] {
	sc, ok := m.states[state]
	if !ok {
		sc = &StateConfig[C, S, T]{state: state}
		m.states[state] = sc
	}

	return sc
}

// State returns the current state.
func (m *Machine[C, S, T]) State() S {
	return m.state
}

// IsInState reports whether the machine is currently in state.
func (m *Machine[C, S, T]) IsInState(state S) bool {
	return m.state == state
}

// Context returns the context the machine acts on.
func (m *Machine[C, S, T]) Context() C {
	return m.context
}

// CanFire reports whether trigger would cause a transition from the current state.
func (m *Machine[C, S, T]) CanFire(trigger T) bool {
	_, ok := m.find(trigger)

	return ok
}

// PermittedTriggers returns the triggers that can fire from the current
// state, in the order they were configured.
func (m *Machine[C, S, T]) PermittedTriggers() []T {
	sc, ok := m.states[m.state]
	if !ok {
		return nil
	}

	triggers := make([]T, 0, len(sc.transitions))
	seen := make(map[T]bool, len(sc.transitions))

	for _, tr := range sc.transitions {
		if seen[tr.trigger] || (tr.guard != nil && !tr.guard(m.context)) {
			continue
		}

		seen[tr.trigger] = true
		triggers = append(triggers, tr.trigger)
	}

	return triggers
}

// Fire applies trigger. An unconfigured trigger is not an error: it is
// logged and reported as Ignored. Otherwise the state is updated before the
// destination's entry action runs, so the action may fire further triggers.
// An error from the entry action is returned with the Transitioned outcome.
func (m *Machine[C, S, T]) Fire(ctx context.Context, trigger T) (Outcome, error) {
	tr, ok := m.find(trigger)
	if !ok {
		log.FromContextOr(ctx, m.logger).DebugContext(ctx, "Trigger ignored",
			"state", fmt.Sprint(m.state),
			"trigger", fmt.Sprint(trigger))

		return Ignored, nil
	}

	from := m.state
	m.state = tr.dst

	log.FromContextOr(ctx, m.logger).DebugContext(ctx, "Transition",
		"from", fmt.Sprint(from),
		"to", fmt.Sprint(tr.dst),
		"trigger", fmt.Sprint(trigger))

	if sc, ok := m.states[tr.dst]; ok && sc.onEntry != nil {
		err := sc.onEntry(ctx, m.context)
		if err != nil {
			return Transitioned, fmt.Errorf("failed to enter state %v: %w", tr.dst, err)
		}
	}

	return Transitioned, nil
}

func (m *Machine[C, S, T]) find(trigger T) (transition[C, S, T], bool) {
	sc, ok := m.states[m.state]
	if !ok {
		return transition[C, S, T]{}, false
	}

	for _, tr := range sc.transitions {
		if tr.trigger == trigger && (tr.guard == nil || tr.guard(m.context)) {
			return tr, true
		}
	}

	return transition[C, S, T]{}, false
}
