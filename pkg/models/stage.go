package models

import (
	"errors"
	"fmt"
	"time"
)

var (
	ErrInvalidStageTransition = errors.New("invalid stage status transition")
	ErrAllocationOutOfRange   = errors.New("allocation out of range")
)

// StageStatus is the progress of a single stage of a staged rollback.
type StageStatus string

const (
	StageStatusPending         StageStatus = "pending"
	StageStatusReducingTraffic StageStatus = "reducing_traffic"
	StageStatusWaiting         StageStatus = "waiting"
	StageStatusCompleted       StageStatus = "completed"
	StageStatusFailed          StageStatus = "failed"
)

// IsTerminal reports whether a stage in this status can no longer change.
func (s StageStatus) IsTerminal() bool {
	return s == StageStatusCompleted || s == StageStatusFailed
}

var stageTransitions = map[StageStatus][]StageStatus{
	StageStatusPending:         {StageStatusReducingTraffic},
	StageStatusReducingTraffic: {StageStatusWaiting, StageStatusCompleted},
	StageStatusWaiting:         {StageStatusWaiting, StageStatusCompleted},
}

// Stage is one named step of a staged rollback, typically an environment.
type Stage struct {
	Name              string        `json:"name"`
	CurrentAllocation int           `json:"current_allocation"`
	TargetAllocation  int           `json:"target_allocation"`
	Status            StageStatus   `json:"status"`
	StartedAt         *time.Time    `json:"started_at,omitempty"`
	CompletedAt       *time.Time    `json:"completed_at,omitempty"`
	WaitStartTime     *time.Time    `json:"wait_start_time,omitempty"`
	WaitDuration      time.Duration `json:"wait_duration"`
	ErrorMessage      string        `json:"error_message,omitempty"`
}

// NewStage returns a pending stage.
func NewStage(name string, current, target int, wait time.Duration) *Stage {
	return &Stage{
		Name:              name,
		CurrentAllocation: current,
		TargetAllocation:  target,
		Status:            StageStatusPending,
		WaitDuration:      wait,
	}
}

// NeedsReduction reports whether traffic is still above the stage target.
func (s *Stage) NeedsReduction() bool {
	return s.CurrentAllocation > s.TargetAllocation
}

// SetAllocation moves the current allocation toward the target. Moving away
// from the target or past it is rejected.
func (s *Stage) SetAllocation(percent int) error {
	if percent < s.TargetAllocation || percent > s.CurrentAllocation {
		return fmt.Errorf("%w: stage %s cannot move from %d%% to %d%% with target %d%%",
			ErrAllocationOutOfRange, s.Name, s.CurrentAllocation, percent, s.TargetAllocation)
	}

	s.CurrentAllocation = percent

	return nil
}

// SetStatus applies a status change. Any non-terminal status may move to Failed.
func (s *Stage) SetStatus(status StageStatus) error {
	if status == StageStatusFailed && !s.Status.IsTerminal() {
		s.Status = status

		return nil
	}

	for _, next := range stageTransitions[s.Status] {
		if next == status {
			s.Status = status

			return nil
		}
	}

	return fmt.Errorf("%w: stage %s from %s to %s", ErrInvalidStageTransition, s.Name, s.Status, status)
}

// WaitDeadline returns the end of the current wait period, if one is running.
func (s *Stage) WaitDeadline() (time.Time, bool) {
	if s.WaitStartTime == nil {
		return time.Time{}, false
	}

	return s.WaitStartTime.Add(s.WaitDuration), true
}

// StageSet is the ordered list of stages of a staged rollback.
type StageSet struct {
	Stages            []*Stage   `json:"stages"`
	CurrentStageIndex int        `json:"current_stage_index"`
	StartedAt         *time.Time `json:"started_at,omitempty"`
	CompletedAt       *time.Time `json:"completed_at,omitempty"`
}

// NewStageSet returns a stage set positioned on the first stage.
func NewStageSet(stages ...*Stage) *StageSet {
	return &StageSet{Stages: stages}
}

// CurrentStage returns the stage being worked on, or nil when every stage is
// done or the set is empty.
func (ss *StageSet) CurrentStage() *Stage {
	if ss == nil || ss.CurrentStageIndex >= len(ss.Stages) {
		return nil
	}

	stage := ss.Stages[ss.CurrentStageIndex]
	if stage.Status == StageStatusCompleted && ss.CurrentStageIndex == len(ss.Stages)-1 {
		return nil
	}

	return stage
}

// Advance moves to the next stage. It returns false, leaving the index on the
// last stage, when no stage follows.
func (ss *StageSet) Advance() bool {
	if ss.CurrentStageIndex >= len(ss.Stages)-1 {
		return false
	}

	ss.CurrentStageIndex++

	return true
}

// AllCompleted reports whether every stage has completed.
func (ss *StageSet) AllCompleted() bool {
	if ss == nil || len(ss.Stages) == 0 {
		return false
	}

	for _, stage := range ss.Stages {
		if stage.Status != StageStatusCompleted {
			return false
		}
	}

	return true
}

// HasReducibleStage reports whether any stage still has traffic to remove.
func (ss *StageSet) HasReducibleStage() bool {
	if ss == nil {
		return false
	}

	for _, stage := range ss.Stages {
		if stage.NeedsReduction() {
			return true
		}
	}

	return false
}

// CompletedCount returns the number of completed stages.
func (ss *StageSet) CompletedCount() int {
	count := 0

	if ss == nil {
		return count
	}

	for _, stage := range ss.Stages {
		if stage.Status == StageStatusCompleted {
			count++
		}
	}

	return count
}

// Clone returns a deep copy of the stage set.
func (ss *StageSet) Clone() *StageSet {
	if ss == nil {
		return nil
	}

	clone := &StageSet{
		Stages:            make([]*Stage, len(ss.Stages)),
		CurrentStageIndex: ss.CurrentStageIndex,
		StartedAt:         cloneTime(ss.StartedAt),
		CompletedAt:       cloneTime(ss.CompletedAt),
	}

	for i, stage := range ss.Stages {
		copied := *stage
		copied.StartedAt = cloneTime(stage.StartedAt)
		copied.CompletedAt = cloneTime(stage.CompletedAt)
		copied.WaitStartTime = cloneTime(stage.WaitStartTime)
		clone.Stages[i] = &copied
	}

	return clone
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	copied := *t

	return &copied
}
