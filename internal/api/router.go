package api

import (
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/olho-vivo/presenca/internal/api/handler"
	"github.com/olho-vivo/presenca/internal/api/middleware"
	"github.com/olho-vivo/presenca/internal/service"
)

// Dependencies carries what the operational routes need. A nil Service keeps
// the router health-check-only.
type Dependencies struct {
	Service *service.Service
	DB      *pgxpool.Pool
}

type Router struct {
	app    *fiber.App
	logger *slog.Logger
	deps   *Dependencies
}

func NewRouter(logger *slog.Logger, deps *Dependencies) *Router {
	app := fiber.New(fiber.Config{
		ErrorHandler: middleware.ErrorHandler(logger),
		AppName:      "Presenca Worker",
	})

	return &Router{
		app:    app,
		logger: logger,
		deps:   deps,
	}
}

func (r *Router) Setup() {
	r.app.Use(requestid.New())
	r.app.Use(middleware.Recover(r.logger))
	r.app.Use(middleware.Logger(r.logger))

	var db *pgxpool.Pool
	if r.deps != nil {
		db = r.deps.DB
	}
	healthHandler := handler.NewHealthHandler(db)
	r.app.Get("/health", healthHandler.Health)
	r.app.Get("/ready", healthHandler.Ready)

	if r.deps == nil || r.deps.Service == nil {
		return
	}

	v1 := r.app.Group("/v1")

	runsHandler := handler.NewRunsHandler(r.deps.Service, r.logger)
	v1.Post("/runs", runsHandler.Create)
	v1.Get("/runs", runsHandler.List)
	v1.Get("/runs/:id", runsHandler.Get)
	v1.Patch("/runs/:id/expectations", runsHandler.UpdateExpectations)
	v1.Post("/runs/:id/recompute", runsHandler.Recompute)

	facesHandler := handler.NewFacesHandler(r.deps.Service, r.logger)
	v1.Post("/faces/resolve", facesHandler.Resolve)

	presencesHandler := handler.NewPresencesHandler(r.deps.Service, r.logger)
	v1.Get("/presences/:id", presencesHandler.Get)
	v1.Patch("/presences/:id/labels", presencesHandler.UpdateLabels)
}

func (r *Router) App() *fiber.App {
	return r.app
}

func (r *Router) Listen(addr string) error {
	return r.app.Listen(addr)
}

func (r *Router) Shutdown() error {
	return r.app.Shutdown()
}

// ShutdownWithTimeout closes the server, waiting at most d for in-flight
// requests before forcing the close.
func (r *Router) ShutdownWithTimeout(d time.Duration) error {
	return r.app.ShutdownWithTimeout(d)
}
