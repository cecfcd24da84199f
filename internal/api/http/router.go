package http

import (
	"github.com/gofiber/adaptor/v2"
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-gateway/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/observability"
)

// RouteConfig bundles dependencies for route registration.
type RouteConfig struct {
	Health         *handlers.HealthHandler
	Cases          *handlers.CasesHandler
	SSO            *handlers.SSOHandler
	AuthMiddleware *auth.Middleware
	Metrics        *observability.Metrics
}

// RegisterRoutes wires HTTP routes.
func RegisterRoutes(app *fiber.App, cfg RouteConfig) {
	app.Get("/health", cfg.Health.Status)
	if cfg.Metrics != nil {
		app.Get("/metrics", adaptor.HTTPHandler(cfg.Metrics.Handler()))
	}

	cases := app.Group("/cases", cfg.AuthMiddleware.Handle)
	cases.Post("", cfg.Cases.CreateCase)
	cases.Get("", cfg.Cases.ListCases)
	cases.Get("/:caseId/messages", cfg.Cases.GetMessages)
	cases.Post("/:caseId/messages", cfg.Cases.SendMessage)

	sso := app.Group("/sso", cfg.AuthMiddleware.Handle)
	sso.Post("/generate-link", cfg.SSO.GenerateLink)
}
