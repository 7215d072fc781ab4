package main

import (
	"github.com/dukex/cleanup/pkg/models"
	"github.com/dukex/cleanup/pkg/web"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
)

type API struct {
	rt       *runtime
	validate *validator.Validate
}

func NewAPI(rt *runtime) *API {
	return &API{
		rt:       rt,
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Cleanup API")
	})

	app.Get("/health", web.HealthCheck(a.rt.store))

	web.NewWorkflowHandlers[models.CleanupRequest](a.rt.cleanups, a.validate).Register(app.Group("/cleanups"))
	web.NewWorkflowHandlers[models.CodeUpdateRequest](a.rt.updates, a.validate).Register(app.Group("/code-updates"))
	web.NewProjectHandlers(a.rt.projects, a.validate).Register(app.Group("/projects"))

	return app
}
