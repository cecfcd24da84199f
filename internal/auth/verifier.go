package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-jose/go-jose/v4"
	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/helpdesk-gateway/internal/config"
)

// Identity is the verified portal caller. Produced once per request, never
// persisted.
type Identity struct {
	ExternalID string
	Email      string
	Name       string
}

// ErrUnauthenticated is the single failure surfaced by Verify. Malformed,
// expired and unknown-key tokens all collapse into it so verification
// internals never leak to callers.
var ErrUnauthenticated = errors.New("invalid or expired token")

// Verifier validates portal bearer tokens against the identity provider's
// JWKS. The key set is fetched once by PrimeKeys before the server accepts
// traffic and is read-only afterwards; verification failures never trigger a
// refetch (rotation is the provider's refresh policy, not ours).
type Verifier struct {
	jwksURL    string
	issuer     string
	httpClient *http.Client
	keys       *jose.JSONWebKeySet
}

// NewVerifier builds an unprimed verifier.
func NewVerifier(cfg config.AuthConfig) *Verifier {
	return &Verifier{
		jwksURL:    cfg.JWKSURL,
		issuer:     cfg.Issuer,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// PrimeKeys fetches and caches the trusted public key set. It must complete
// before the first Verify call; main treats a failure as fatal.
func (v *Verifier) PrimeKeys(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.jwksURL, nil)
	if err != nil {
		return err
	}
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: unexpected status %d", resp.StatusCode)
	}

	var keySet jose.JSONWebKeySet
	if err := json.NewDecoder(resp.Body).Decode(&keySet); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	if len(keySet.Keys) == 0 {
		return errors.New("jwks contains no keys")
	}
	v.keys = &keySet
	return nil
}

type tokenClaims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// Verify checks signature, expiry and issuer against the cached key set and
// returns the caller identity.
func (v *Verifier) Verify(token string) (*Identity, error) {
	if v.keys == nil {
		return nil, ErrUnauthenticated
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"RS256"}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	parsed, err := jwt.ParseWithClaims(token, &tokenClaims{}, v.keyFunc, opts...)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	claims, ok := parsed.Claims.(*tokenClaims)
	if !ok || !parsed.Valid || claims.Subject == "" || claims.Email == "" {
		return nil, ErrUnauthenticated
	}
	return &Identity{
		ExternalID: claims.Subject,
		Email:      claims.Email,
		Name:       claims.Name,
	}, nil
}

func (v *Verifier) keyFunc(token *jwt.Token) (interface{}, error) {
	kid, _ := token.Header["kid"].(string)
	if matches := v.keys.Key(kid); len(matches) > 0 {
		return matches[0].Key, nil
	}
	// Some providers publish a single unnamed key and omit kid in tokens.
	if kid == "" && len(v.keys.Keys) == 1 {
		return v.keys.Keys[0].Key, nil
	}
	return nil, errors.New("unknown signing key")
}
