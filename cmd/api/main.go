package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/helpdesk-gateway/internal/api/http"
	"github.com/spec-kit/helpdesk-gateway/internal/api/http/handlers"
	"github.com/spec-kit/helpdesk-gateway/internal/auth"
	"github.com/spec-kit/helpdesk-gateway/internal/config"
	"github.com/spec-kit/helpdesk-gateway/internal/helpdesk"
	"github.com/spec-kit/helpdesk-gateway/internal/observability"
	"github.com/spec-kit/helpdesk-gateway/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck

	metrics := observability.NewMetrics()

	// The key set must be primed before the server accepts traffic.
	verifier := auth.NewVerifier(cfg.Auth)
	primeCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	if err := verifier.PrimeKeys(primeCtx); err != nil {
		cancel()
		logger.Fatal("failed to prime identity key set", zap.Error(err))
	}
	cancel()
	logger.Info("identity key set primed", zap.String("jwks_url", cfg.Auth.JWKSURL))

	client := helpdesk.NewClient(cfg.Helpdesk, logger)
	caseService := service.NewCaseService(client, cfg.Helpdesk.EnforceOwnership, logger)
	ssoService := service.NewSSOService(cfg.SSO, logger)
	authMiddleware := auth.NewMiddleware(verifier)

	app := fiber.New(fiber.Config{
		AppName:   cfg.App.Name,
		BodyLimit: cfg.App.BodyLimitMB * 1024 * 1024,
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout())

	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version),
		Cases:          handlers.NewCasesHandler(caseService),
		SSO:            handlers.NewSSOHandler(ssoService),
		AuthMiddleware: authMiddleware,
		Metrics:        metrics,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	_ = app.Shutdown()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
