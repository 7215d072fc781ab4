package models

import "time"

// History event types recorded by the workflow host.
const (
	HistoryEventCreated     = "Created"
	HistoryEventStarted     = "Started"
	HistoryEventProceeded   = "Proceeded"
	HistoryEventWaitElapsed = "WaitElapsed"
)

// WorkflowProjection is the durable, externally observable record of a
// workflow instance. The live instance is rebuilt from Context.
type WorkflowProjection struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	WorkflowType string            `json:"workflow_type"`
	State        State             `json:"state"`
	Context      WorkflowContext   `json:"context"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	History      []HistoryEvent    `json:"history"`
}

// HistoryEvent is one append-only entry of a projection's history.
type HistoryEvent struct {
	Timestamp   time.Time      `json:"timestamp"`
	EventType   string         `json:"event_type"`
	FromState   State          `json:"from_state"`
	ToState     State          `json:"to_state"`
	Description string         `json:"description,omitempty"`
	Data        map[string]any `json:"data,omitempty"`
}

// AppendHistory records an event on the projection.
func (p *WorkflowProjection) AppendHistory(event HistoryEvent) {
	p.History = append(p.History, event)
}

// Progress describes how far a workflow has advanced.
type Progress struct {
	Step                    int     `json:"step"`
	TotalSteps              int     `json:"total_steps"`
	Percent                 float64 `json:"percent"`
	Description             string  `json:"description"`
	RequiresManualAction    bool    `json:"requires_manual_action"`
	ManualActionDescription string  `json:"manual_action_description,omitempty"`
}

// WorkflowResponse combines a projection's durable fields with the live
// instance's view of itself.
type WorkflowResponse struct {
	ID           string            `json:"id"`
	DisplayName  string            `json:"display_name"`
	WorkflowType string            `json:"workflow_type"`
	State        State             `json:"state"`
	Status       string            `json:"status"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
	ErrorMessage *string           `json:"error_message,omitempty"`
	Progress     Progress          `json:"progress"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	Context      WorkflowContext   `json:"context"`
}

// Summary aggregates counts over a set of projections.
type Summary struct {
	Total                int            `json:"total"`
	Active               int            `json:"active"`
	Completed            int            `json:"completed"`
	Failed               int            `json:"failed"`
	AwaitingManualAction int            `json:"awaiting_manual_action"`
	ByType               map[string]int `json:"by_type"`
	ByState              map[State]int  `json:"by_state"`
}

// NewSummary counts the given projections.
func NewSummary(projections []*WorkflowProjection) Summary {
	summary := Summary{
		ByType:  make(map[string]int),
		ByState: make(map[State]int),
	}

	for _, p := range projections {
		summary.Total++
		summary.ByType[p.WorkflowType]++
		summary.ByState[p.State]++

		switch {
		case p.State.IsSuccessful():
			summary.Completed++
		case p.State == StateFailed:
			summary.Failed++
		default:
			summary.Active++
		}

		if p.State.RequiresManualAction() {
			summary.AwaitingManualAction++
		}
	}

	return summary
}
