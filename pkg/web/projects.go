package web

import (
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/services"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
)

// ProjectHandlers serves project management.
type ProjectHandlers struct {
	projects  *services.Project
	validator *validator.Validate
}

func NewProjectHandlers(projects *services.Project, validator *validator.Validate) *ProjectHandlers {
	return &ProjectHandlers{projects: projects, validator: validator}
}

// Register mounts the project routes on r.
func (h *ProjectHandlers) Register(r fiber.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/:id", h.Get)
	r.Delete("/:id", h.Delete)
	r.Post("/:id/launch", h.Launch)
}

func (h *ProjectHandlers) List(c fiber.Ctx) error {
	projects, err := h.projects.List(c.Context())
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(fiber.Map{
		"projects":    projects,
		"total_count": len(projects),
	})
}

func (h *ProjectHandlers) Create(c fiber.Ctx) error {
	var req CreateProjectRequest
	if err := c.Bind().JSON(&req); err != nil {
		return badRequest(c, "Invalid JSON format")
	}

	if err := h.validator.Struct(req); err != nil {
		return badRequest(c, err.Error())
	}

	project := &models.Project{
		Name:        req.Name,
		Description: req.Description,
		Items:       make([]models.ProjectItem, 0, len(req.Requests)),
	}

	for _, request := range req.Requests {
		project.Items = append(project.Items, models.ProjectItem{Request: request})
	}

	created, err := h.projects.Create(c.Context(), project)
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.Status(fiber.StatusCreated).JSON(created)
}

func (h *ProjectHandlers) Get(c fiber.Ctx) error {
	project, err := h.projects.Get(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}

func (h *ProjectHandlers) Delete(c fiber.Ctx) error {
	existed, err := h.projects.Delete(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	if !existed {
		return notFound(c, "Project not found")
	}

	return c.SendStatus(fiber.StatusNoContent)
}

// Launch creates the project's missing workflows.
func (h *ProjectHandlers) Launch(c fiber.Ctx) error {
	project, err := h.projects.Launch(c.Context(), c.Params("id"))
	if err != nil {
		return handleServiceError(c, err)
	}

	return c.JSON(project)
}
