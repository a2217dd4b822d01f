package main

import (
	"context"
	"crypto/sha256"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"

	"github.com/agroplane/agroplane/internal/adapter/fsm"
	handler "github.com/agroplane/agroplane/internal/adapter/http"
	oteladapter "github.com/agroplane/agroplane/internal/adapter/otel"
	riveradapter "github.com/agroplane/agroplane/internal/adapter/river"
	"github.com/agroplane/agroplane/internal/adapter/sqlite"
	"github.com/agroplane/agroplane/internal/app"
	"github.com/agroplane/agroplane/internal/domain"
)

func main() {
	if err := run(); err != nil {
		log.Fatalf("agroplane: %v", err)
	}
}

func run() error {
	port := envOrDefault("PORT", "8080")
	dbPath := envOrDefault("DATABASE_PATH", "agroplane.db")
	orderPolicy := app.ParseOrderPolicy(envOrDefault("ONBOARDING_ORDER_POLICY", "lenient"))

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Telemetry ---
	providers, err := oteladapter.Setup(ctx, oteladapter.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			logger.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(dbPath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	store, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("migrations: %w", err)
	}
	defer store.Close()

	identity := &localIdentityProvider{logger: logger}
	mailer := &logMailer{logger: logger}

	riverClient, err := riveradapter.Setup(ctx, db, riveradapter.Deps{
		Archives:      store.Archives(),
		Identity:      identity,
		Relationships: store.Relationships(),
		Mailer:        mailer,
		Logger:        logger,
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}

	publisher := oteladapter.NewTracingPublisher(riveradapter.NewPublisher(riverClient))
	scheduler := riveradapter.NewScheduler(riverClient)
	tenantRepo := oteladapter.NewTracingRepository(store.Tenants())

	// --- Application ---
	onboarding := app.NewOnboardingService(store.Workflows(), tenantRepo, orderPolicy, logger)
	tenants := app.NewTenantService(tenantRepo, store.Archives(), publisher, fsm.New(), scheduler, onboarding, logger)
	access := app.NewAccessService(store.Relationships(), 2*time.Second, logger)
	conversion := app.NewConversionService(store.Leads(), tenantRepo, store.Relationships(),
		onboarding, identity, scheduler, 10*time.Second, logger)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("agroplane", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("agroplane", "0.1.0"))
	handler.Register(api, handler.Services{
		Tenants:    tenants,
		Onboarding: onboarding,
		Access:     access,
		Conversion: conversion,
	})

	// --- Job queue ---
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			logger.Error("river shutdown", "error", err)
		}
	}()

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "port", port, "docs", "http://localhost:"+port+"/docs")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http shutdown", "error", err)
	}

	logger.Info("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// localIdentityProvider derives a stable user id from the email. It stands
// in for the external auth service in single-node deployments; the derived
// id makes EnsureUser idempotent per email, as the port requires.
type localIdentityProvider struct {
	logger *slog.Logger
}

func (p *localIdentityProvider) EnsureUser(ctx context.Context, email, name, _ string) (string, error) {
	sum := sha256.Sum256([]byte(email))
	id := fmt.Sprintf("usr_%x", sum[:8])
	p.logger.InfoContext(ctx, "ensured user identity", "user_id", id, "name", name)
	return id, nil
}

// logMailer records outbound notifications in the log instead of sending
// them. Swapped for a real provider adapter in hosted deployments.
type logMailer struct {
	logger *slog.Logger
}

func (m *logMailer) Send(ctx context.Context, msg domain.EmailMessage) (domain.EmailReceipt, error) {
	m.logger.InfoContext(ctx, "sending notification",
		"type", msg.Type,
		"tenant_id", msg.TenantID,
		"recipient", msg.Recipient,
	)
	return domain.EmailReceipt{Success: true, MessageID: "local-" + msg.TenantID}, nil
}
