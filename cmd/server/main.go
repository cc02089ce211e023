package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/posbridge/pricing-service/config"
	"github.com/posbridge/pricing-service/internal/backend"
	"github.com/posbridge/pricing-service/internal/engine"
	"github.com/posbridge/pricing-service/internal/handlers"
	"github.com/posbridge/pricing-service/internal/middleware"
	"github.com/posbridge/pricing-service/internal/rulestore"
	"github.com/posbridge/pricing-service/internal/telemetry"
)

// @title Pricing Service API
// @version 1.0
// @description Internal API for blueprint pricing resolution, tier matching, cart item conversion, and rule cache management.
// @BasePath /
// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
func main() {
	configPath := os.Getenv("PRICING_CONFIG")
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger := initLogger(cfg.Logging)

	logger.Info().
		Strs("environments", cfg.EnvironmentNames()).
		Str("default_environment", cfg.Backend.DefaultEnvironment).
		Msg("Starting pricing service")

	ctx := context.Background()
	shutdownTelemetry, err := telemetry.Init(ctx, cfg.TelemetryOptions())
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize telemetry")
	}

	gateway, err := backend.New(cfg.BackendEnvironments(), cfg.BackendOptions(), logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to create backend gateway")
	}
	store := rulestore.New(gateway, cfg.StoreOptions(), logger)
	eng := engine.New(store, gateway, cfg.EngineConfig(), logger)
	h := handlers.New(eng, store, gateway, cfg.Backend.DefaultEnvironment, logger)

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterDocs(router)

	internal := router.Group("/internal")
	internal.Use(middleware.InternalAuthMiddleware(cfg.Auth.InternalAPIKey))
	internal.Use(middleware.ServiceRateLimitMiddleware(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
	h.Register(internal)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("Server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	// warm the default environment so the first request does not pay for it
	go func() {
		entry := store.Get(ctx, cfg.Backend.DefaultEnvironment)
		logger.Info().
			Str("environment", entry.Environment).
			Int("rules", len(entry.Rules)).
			Bool("stale", entry.Stale).
			Msg("Warmed rule store")
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Server forced to shutdown")
	}
	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("Failed to flush telemetry")
	}

	logger.Info().Msg("Server exited")
}

func initLogger(cfg config.LoggingConfig) *zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var output io.Writer
	if cfg.Format == "json" {
		output = os.Stdout
	} else {
		output = zerolog.ConsoleWriter{Out: os.Stdout, NoColor: cfg.NoColor}
	}

	logger := zerolog.New(output).Level(level).With().Timestamp().Str("service", "pricing-service").Logger()
	return &logger
}
