// Package web provides the HTTP API over the workflow hosts and projects.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/persistence"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// Host is the part of a workflow host the API drives.
type Host[Req any] interface {
	CreateWorkflow(ctx context.Context, req Req) (string, error)
	GetWorkflow(ctx context.Context, id string) (*models.WorkflowResponse, error)
	GetAllWorkflows(ctx context.Context) ([]*models.WorkflowResponse, error)
	GetWorkflowsByType(ctx context.Context, workflowType string) ([]*models.WorkflowResponse, error)
	GetWorkflowsByState(ctx context.Context, state models.State) ([]*models.WorkflowResponse, error)
	StartWorkflow(ctx context.Context, id string) (*models.WorkflowResponse, error)
	HandleExternalEvent(ctx context.Context, id, eventType string, data map[string]any) (*models.WorkflowResponse, error)
	ProceedWorkflow(ctx context.Context, id string) (*models.WorkflowResponse, error)
	Summary(ctx context.Context) (models.Summary, error)
	DeleteWorkflow(ctx context.Context, id string) (bool, error)
}

// WorkflowHandlers serves one workflow family.
type WorkflowHandlers[Req any] struct {
	host      Host[Req]
	validator *validator.Validate
}

func NewWorkflowHandlers[Req any](host Host[Req], validator *validator.Validate) *WorkflowHandlers[Req] {
	return &WorkflowHandlers[Req]{host: host, validator: validator}
}

// Register mounts the family routes on r.
func (h *WorkflowHandlers[Req]) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/summary", h.Summary)
	r.Get("/:id", h.Get)
	r.Delete("/:id", h.Delete)
	r.Post("/:id/start", h.Start)
	r.Post("/:id/proceed", h.Proceed)
	r.Post("/:id/events", h.Event)
}

// List returns every workflow, or those matching the type or state query.
func (h *WorkflowHandlers[Req]) List(c fiber.Ctx) error {
	var (
		workflows []*models.WorkflowResponse
		err       error
	)

	switch {
	case c.Query("type") != "":
		workflows, err = h.host.GetWorkflowsByType(c.Context(), c.Query("type"))
	case c.Query("state") != "":
		workflows, err = h.host.GetWorkflowsByState(c.Context(), models.State(c.Query("state")))
	default:
		workflows, err = h.host.GetAllWorkflows(c.Context())
	}

	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"workflows":   workflows,
		"total_count": len(workflows),
	})
}

func (h *WorkflowHandlers[Req]) Create(c fiber.Ctx) error {
	var req Req
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	id, err := h.host.CreateWorkflow(c.Context(), req)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(CreatedResponse{ID: id})
}

func (h *WorkflowHandlers[Req]) Get(c fiber.Ctx) error {
	workflow, err := h.host.GetWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *WorkflowHandlers[Req]) Start(c fiber.Ctx) error {
	workflow, err := h.host.StartWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *WorkflowHandlers[Req]) Proceed(c fiber.Ctx) error {
	workflow, err := h.host.ProceedWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *WorkflowHandlers[Req]) Event(c fiber.Ctx) error {
	var req ExternalEventRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	workflow, err := h.host.HandleExternalEvent(c.Context(), c.Params("id"), req.EventType, req.Data)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(workflow)
}

func (h *WorkflowHandlers[Req]) Summary(c fiber.Ctx) error {
	summary, err := h.host.Summary(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(summary)
}

func (h *WorkflowHandlers[Req]) Delete(c fiber.Ctx) error {
	existed, err := h.host.DeleteWorkflow(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if !existed {
		return notFound(c, "Workflow not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// HealthCheck reports whether the persistence backend answers.
func HealthCheck(store persistence.Persistence) fiber.Handler {
	return func(c fiber.Ctx) error {
		status, message, httpStatus := "healthy", "Cleanup API is healthy", http.StatusOK

		checker := fiber.Map{"status": "ok"}

		err := store.HealthCheck(c.Context())
		if err != nil {
			status, message, httpStatus = "unhealthy", "Cleanup API is unhealthy", http.StatusServiceUnavailable
			checker = fiber.Map{"status": "error", "error": err.Error()}
		}

		return c.Status(httpStatus).JSON(fiber.Map{
			"status":    status,
			"message":   message,
			"checkers":  fiber.Map{"persistence": checker},
			"timestamp": time.Now().UTC(),
		})
	}
}
