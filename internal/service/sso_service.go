package service

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/config"
	apperrors "github.com/spec-kit/helpdesk-gateway/pkg/util/errorutil"
)

// SSOService mints time-boxed signed assertions and exchanges them with the
// backend for single-use redirect URLs. The signing secret is shared only
// with the backend; it is a separate trust relationship from the identity
// provider's key set.
type SSOService struct {
	secret          []byte
	endpoint        string
	defaultReturnTo string
	ttl             time.Duration
	httpClient      *http.Client
	now             func() time.Time
	logger          *zap.Logger
}

// NewSSOService constructs the minter.
func NewSSOService(cfg config.SSOConfig, logger *zap.Logger) *SSOService {
	return &SSOService{
		secret:          []byte(cfg.SharedSecret),
		endpoint:        cfg.RedirectEndpoint,
		defaultReturnTo: cfg.DefaultReturnTo,
		ttl:             cfg.AssertionTTL(),
		httpClient:      &http.Client{Timeout: cfg.Timeout()},
		now:             time.Now,
		logger:          logger,
	}
}

type assertionClaims struct {
	Email      string `json:"email"`
	Name       string `json:"name"`
	ExternalID string `json:"external_id"`
	jwt.RegisteredClaims
}

// MintRedirect builds the signed assertion, sends it with return_to to the
// backend's redirect-resolution endpoint, and returns the raw response body
// verbatim as the final redirect URL.
func (s *SSOService) MintRedirect(ctx context.Context, identity *auth.Identity, returnTo string) (string, error) {
	assertion, err := s.mintAssertion(identity)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}
	if returnTo == "" {
		returnTo = s.defaultReturnTo
	}

	params := url.Values{
		"jwt":       {assertion},
		"return_to": {returnTo},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return "", apperrors.NewInternalError(err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		s.logger.Warn("sso redirect exchange failed", zap.Error(err))
		return "", apperrors.NewUpstreamUnavailable(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", apperrors.NewUpstreamUnavailable(err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		s.logger.Warn("sso redirect exchange rejected", zap.Int("status", resp.StatusCode))
		return "", apperrors.NewUpstreamUnavailable(nil)
	}
	return string(body), nil
}

func (s *SSOService) mintAssertion(identity *auth.Identity) (string, error) {
	issuedAt := s.now()
	claims := &assertionClaims{
		Email:      identity.Email,
		Name:       identity.Name,
		ExternalID: identity.ExternalID,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}
