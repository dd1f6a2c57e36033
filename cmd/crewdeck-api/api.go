// Package main provides the Crewdeck API server implementation.
package main

import (
	"log/slog"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"

	"github.com/crewdeck/crewdeck/pkg/callback"
	"github.com/crewdeck/crewdeck/pkg/engine"
	"github.com/crewdeck/crewdeck/pkg/eventbus"
	"github.com/crewdeck/crewdeck/pkg/persistence"
	"github.com/crewdeck/crewdeck/pkg/resume"
	"github.com/crewdeck/crewdeck/pkg/services"
	"github.com/crewdeck/crewdeck/pkg/web"
)

type API struct {
	logger          *slog.Logger
	persistence     persistence.Persistence
	eventBus        eventbus.EventBus
	engineClient    *engine.Client
	allowList       *callback.AllowList
	baseCallbackURL string
	validate        *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	persistence persistence.Persistence,
	eventBus eventbus.EventBus,
	engineClient *engine.Client,
	allowList *callback.AllowList,
	baseCallbackURL string,
) *API {
	return &API{
		logger:          logger,
		persistence:     persistence,
		eventBus:        eventBus,
		engineClient:    engineClient,
		allowList:       allowList,
		baseCallbackURL: baseCallbackURL,
		validate:        validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	orchestrator := resume.NewOrchestrator(
		a.allowList,
		a.engineClient,
		a.persistence.ExecutionRepository(),
		a.eventBus,
		a.logger,
	)

	workflowService := services.NewWorkflow(a.persistence, a.engineClient, a.baseCallbackURL, a.eventBus, a.logger)
	reviewService := services.NewReview(a.persistence, a.allowList, orchestrator, a.eventBus, a.logger)

	handlers := web.NewAPIHandlers(workflowService, reviewService, a.validate)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Crewdeck API")
	})

	app.Get("/health", handlers.HealthCheck)

	w := app.Group("/workflows", web.RequireOrganization())
	w.Get("/", handlers.GetWorkflows)
	w.Post("/", handlers.CreateWorkflow)
	w.Get("/:id", handlers.GetWorkflow)
	w.Patch("/:id", handlers.UpdateWorkflow)
	w.Delete("/:id", handlers.ArchiveWorkflow)
	w.Put("/:id/steps", handlers.ReplaceWorkflowSteps)
	w.Post("/:id/activate", handlers.ActivateWorkflow)
	w.Get("/:id/graph", handlers.GetWorkflowGraph)

	r := app.Group("/reviews", web.RequireOrganization())
	r.Get("/", handlers.GetPendingReviews)
	r.Post("/respond", handlers.RespondToReview)
	r.Get("/:id", handlers.GetReview)

	return app
}

func (a *API) Start(port int) error {
	app := a.App()

	err := app.Listen(":" + strconv.Itoa(port))

	return err
}
