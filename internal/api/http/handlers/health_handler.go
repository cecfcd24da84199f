package handlers

import (
	"github.com/gofiber/fiber/v2"
)

// HealthHandler responds to the unauthenticated health probe. The gateway is
// stateless; once the key set is primed and the process listens, it is ready.
type HealthHandler struct {
	serviceName string
	version     string
}

// NewHealthHandler returns a new handler instance.
func NewHealthHandler(serviceName, version string) *HealthHandler {
	return &HealthHandler{serviceName: serviceName, version: version}
}

// Status reports service health.
func (h *HealthHandler) Status(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"status":  "ok",
		"service": h.serviceName,
		"version": h.version,
	})
}
