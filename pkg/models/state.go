package models

// State is the externally observed state of a workflow instance. The same
// vocabulary is shared by every workflow family.
type State string

const (
	StateCreated            State = "created"
	StateAwaitingUserAction State = "awaiting_user_action"
	StateInProgress         State = "in_progress"
	StateWaiting            State = "waiting"
	StateCompleted          State = "completed"
	StateFailed             State = "failed"

	// Code review.
	StateCreatingPR           State = "creating_pr"
	StateAwaitingReview       State = "awaiting_review"
	StateMerged               State = "merged"
	StateWaitingForDeployment State = "waiting_for_deployment"

	// Transform.
	StateTransforming State = "transforming"

	// Code update.
	StatePRInProgress             State = "pr_in_progress"
	StateValidationInTestEnv      State = "validation_in_test_env"
	StatePRInReview               State = "pr_in_review"
	StateMergedAwaitingDeployment State = "merged_awaiting_deployment"
	StateDeploymentDone           State = "deployment_done"
)

// IsTerminal reports whether no further transitions are permitted from s.
func (s State) IsTerminal() bool {
	switch s {
	case StateCompleted, StateFailed, StateDeploymentDone:
		return true
	default:
		return false
	}
}

// IsSuccessful reports whether s is a terminal state reached without failure.
func (s State) IsSuccessful() bool {
	return s == StateCompleted || s == StateDeploymentDone
}

// RequiresManualAction reports whether a workflow in s is blocked on a person.
func (s State) RequiresManualAction() bool {
	switch s {
	case StateAwaitingUserAction, StateAwaitingReview, StatePRInReview:
		return true
	default:
		return false
	}
}

func (s State) String() string {
	return string(s)
}

// Trigger names an event that may move a workflow between states.
type Trigger string

const (
	TriggerStart               Trigger = "start"
	TriggerUserProceed         Trigger = "user_proceed"
	TriggerReductionCompleted  Trigger = "reduction_completed"
	TriggerStageCompleted      Trigger = "stage_completed"
	TriggerWaitPeriodCompleted Trigger = "wait_period_completed"
	TriggerComplete            Trigger = "complete"
	TriggerFail                Trigger = "fail"
	TriggerTimeout             Trigger = "timeout"

	TriggerPRCreated          Trigger = "pr_created"
	TriggerPRApproved         Trigger = "pr_approved"
	TriggerPRMerged           Trigger = "pr_merged"
	TriggerDeploymentDetected Trigger = "deployment_detected"
	TriggerValidationPassed   Trigger = "validation_passed"

	TriggerTransformCompleted Trigger = "transform_completed"
)

func (t Trigger) String() string {
	return string(t)
}
