package web

import (
	"errors"

	"github.com/dukex/cleanup/pkg/services"
	"github.com/gofiber/fiber/v3"
	"github.com/moogar0880/problems"
)

func problem(c fiber.Ctx, status int, kind, detail string) error {
	p := problems.NewStatusProblem(status).
		WithInstance(c.Path()).
		WithType(kind).
		WithDetail(detail)

	return c.Status(status).JSON(p)
}

func badRequest(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusBadRequest, "validation_error", detail)
}

func notFound(c fiber.Ctx, detail string) error {
	return problem(c, fiber.StatusNotFound, "not_found", detail)
}

// handleServiceError maps service errors to problem responses.
func handleServiceError(c fiber.Ctx, err error) error {
	switch {
	case services.IsValidationError(err):
		return badRequest(c, err.Error())

	case errors.Is(err, services.ErrWorkflowNotFound):
		return problem(c, fiber.StatusNotFound, "workflow_not_found", "workflow not found")

	case errors.Is(err, services.ErrProjectNotFound):
		return problem(c, fiber.StatusNotFound, "project_not_found", "project not found")

	case services.IsInvalidState(err):
		return problem(c, fiber.StatusConflict, "invalid_state", err.Error())

	case errors.Is(err, services.ErrUnsupportedEvent):
		return problem(c, fiber.StatusUnprocessableEntity, "unsupported_event", err.Error())

	case services.IsUnsupported(err):
		return problem(c, fiber.StatusUnprocessableEntity, "unsupported", err.Error())

	default:
		p := problems.NewStatusProblem(fiber.StatusInternalServerError).
			WithInstance(c.Path()).
			WithType("internal_error").
			WithError(err)

		return c.Status(fiber.StatusInternalServerError).JSON(p)
	}
}
