package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config aggregates runtime configuration for the gateway.
type Config struct {
	App      AppConfig
	Logger   LoggerConfig
	Auth     AuthConfig
	Helpdesk HelpdeskConfig
	SSO      SSOConfig
}

// AppConfig controls server level behavior.
type AppConfig struct {
	Name                  string
	Env                   string
	Host                  string
	Port                  string
	Version               string
	RequestTimeoutSeconds int
	BodyLimitMB           int
}

// LoggerConfig configures logging behavior.
type LoggerConfig struct {
	Level string
}

// AuthConfig points the identity verifier at the portal identity provider.
type AuthConfig struct {
	JWKSURL string
	Issuer  string
}

// HelpdeskConfig holds the backend base URL and the shared service credential.
type HelpdeskConfig struct {
	BaseURL              string
	StaffEmail           string
	APIKey               string
	TimeoutSeconds       int
	UploadTimeoutSeconds int
	EnforceOwnership     bool
}

// SSOConfig describes the signed-redirect trust relationship with the backend.
// The shared secret is distinct from the identity provider's key set.
type SSOConfig struct {
	SharedSecret        string
	RedirectEndpoint    string
	DefaultReturnTo     string
	AssertionTTLMinutes int
	TimeoutSeconds      int
}

// Load reads configuration from environment variables, applying defaults where possible.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:                  getEnv("APP_NAME", "helpdesk-gateway"),
			Env:                   getEnv("APP_ENV", "development"),
			Host:                  getEnv("APP_HOST", "0.0.0.0"),
			Port:                  getEnv("APP_PORT", "8080"),
			Version:               getEnv("APP_VERSION", "dev"),
			RequestTimeoutSeconds: getEnvAsInt("HTTP_REQUEST_TIMEOUT_SECONDS", 90),
			BodyLimitMB:           getEnvAsInt("HTTP_BODY_LIMIT_MB", 32),
		},
		Logger: LoggerConfig{
			Level: getEnv("LOG_LEVEL", "info"),
		},
		Auth: AuthConfig{
			JWKSURL: os.Getenv("AUTH_JWKS_URL"),
			Issuer:  os.Getenv("AUTH_ISSUER"),
		},
		Helpdesk: HelpdeskConfig{
			BaseURL:              os.Getenv("HELPDESK_BASE_URL"),
			StaffEmail:           os.Getenv("HELPDESK_STAFF_EMAIL"),
			APIKey:               os.Getenv("HELPDESK_API_KEY"),
			TimeoutSeconds:       getEnvAsInt("HELPDESK_TIMEOUT_SECONDS", 30),
			UploadTimeoutSeconds: getEnvAsInt("HELPDESK_UPLOAD_TIMEOUT_SECONDS", 60),
			EnforceOwnership:     getEnvAsBool("HELPDESK_ENFORCE_OWNERSHIP", true),
		},
		SSO: SSOConfig{
			SharedSecret:        os.Getenv("SSO_SHARED_SECRET"),
			RedirectEndpoint:    os.Getenv("SSO_REDIRECT_ENDPOINT"),
			DefaultReturnTo:     os.Getenv("SSO_DEFAULT_RETURN_TO"),
			AssertionTTLMinutes: getEnvAsInt("SSO_ASSERTION_TTL_MINUTES", 30),
			TimeoutSeconds:      getEnvAsInt("SSO_TIMEOUT_SECONDS", 30),
		},
	}

	required := map[string]string{
		"AUTH_JWKS_URL":        cfg.Auth.JWKSURL,
		"HELPDESK_BASE_URL":    cfg.Helpdesk.BaseURL,
		"HELPDESK_STAFF_EMAIL": cfg.Helpdesk.StaffEmail,
		"HELPDESK_API_KEY":     cfg.Helpdesk.APIKey,
	}
	for key, val := range required {
		if val == "" {
			return nil, fmt.Errorf("missing required env %s", key)
		}
	}

	return cfg, nil
}

// Addr returns the HTTP bind address.
func (a AppConfig) Addr() string {
	return fmt.Sprintf("%s:%s", a.Host, a.Port)
}

// RequestTimeout returns the configured request timeout duration.
func (a AppConfig) RequestTimeout() time.Duration {
	if a.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(a.RequestTimeoutSeconds) * time.Second
}

// Timeout returns the per-call deadline for ordinary backend calls.
func (h HelpdeskConfig) Timeout() time.Duration {
	return time.Duration(h.TimeoutSeconds) * time.Second
}

// UploadTimeout returns the per-call deadline for multipart upload calls.
func (h HelpdeskConfig) UploadTimeout() time.Duration {
	return time.Duration(h.UploadTimeoutSeconds) * time.Second
}

// AssertionTTL returns the SSO assertion validity window.
func (s SSOConfig) AssertionTTL() time.Duration {
	return time.Duration(s.AssertionTTLMinutes) * time.Minute
}

// Timeout returns the deadline for the redirect-resolution call.
func (s SSOConfig) Timeout() time.Duration {
	return time.Duration(s.TimeoutSeconds) * time.Second
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return parsed
}

func getEnvAsBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return parsed
}
