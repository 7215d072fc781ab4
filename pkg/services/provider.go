package services

import (
	"context"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/workflow"
)

// Provider is the capability set a workflow family exposes to the Host.
// Req is the creation request, C the family's context and W its live
// workflow type.
type Provider[Req any, C any, W workflow.Workflow] interface {
	// Kind is the context family the provider serves.
	Kind() models.ContextKind

	// CreateContext validates req and builds a fresh context.
	CreateContext(req Req) (C, error)
	// CreateWorkflow builds a live instance positioned on the state c describes.
	CreateWorkflow(c C) (W, error)
	// HandleExternalEvent applies eventType to wf. It reports false when the
	// event is unknown to the family or not valid in wf's current state.
	HandleExternalEvent(ctx context.Context, wf W, eventType string, data map[string]any) (bool, error)

	CurrentStatus(wf W) string
	CurrentState(wf W) models.State
	Context(wf W) C
	CalculateProgress(projection *models.WorkflowProjection, wf W) models.Progress

	DisplayName(c C) string
	WorkflowType(c C) string
	Metadata(c C) map[string]string

	// Wrap and Unwrap convert between C and the stored tagged context.
	Wrap(c C) models.WorkflowContext
	Unwrap(wc models.WorkflowContext) (C, error)

	// EventSchemas maps event types to the JSON schema their data must satisfy.
	EventSchemas() map[string]map[string]any
}
