package handlers

import (
	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/service"
	apperrors "github.com/spec-kit/helpdesk-gateway/pkg/util/errorutil"
)

// SSOHandler exposes the signed-redirect minting endpoint.
type SSOHandler struct {
	service *service.SSOService
}

// NewSSOHandler constructs handler.
func NewSSOHandler(ssoService *service.SSOService) *SSOHandler {
	return &SSOHandler{service: ssoService}
}

// GenerateLink POST /sso/generate-link. Responds with the backend-resolved
// redirect URL as plain text.
func (h *SSOHandler) GenerateLink(c *fiber.Ctx) error {
	identity, ok := auth.IdentityFromContext(c)
	if !ok {
		return apperrors.NewUnauthorized("authentication required")
	}

	redirectURL, err := h.service.MintRedirect(c.UserContext(), identity, c.Query("return_to"))
	if err != nil {
		return err
	}
	return c.SendString(redirectURL)
}
