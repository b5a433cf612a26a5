package bootstrap

import (
	"context"
	"log"
	"net/http"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/crypto"
	"github.com/go-mailgate/mailgate/internal/mailchimp"
	"github.com/go-mailgate/mailgate/internal/retry"
	"github.com/go-mailgate/mailgate/internal/services"
	"github.com/go-mailgate/mailgate/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Application holds all initialized components
type Application struct {
	Config *config.Config

	// Core infrastructure
	DB                    *store.Store
	Cipher                *crypto.TokenCipher
	MetricsRecorder       core.Recorder
	ValidationCache       core.Cache[services.ValidationResult]
	ValidationCacheCloser func() error
	RateLimitRedisClient  *redis.Client

	// Provider
	HTTPClient *retry.Client
	Provider   *mailchimp.Provider

	// Services
	StateService      *services.StateService
	Validator         *services.ConnectionValidator
	ConnectionService *services.ConnectionService

	// HTTP
	HandlerSet handlerSet
	Router     *gin.Engine
	Server     *http.Server
}

// Run initializes and starts the application
func Run(ctx context.Context, cfg *config.Config) error {
	app := &Application{Config: cfg}

	// Phase 1: Validate configuration
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	// Phase 2: Initialize infrastructure
	if err := app.initializeInfrastructure(ctx); err != nil {
		return err
	}

	// Phase 3: Initialize business layer
	app.initializeBusinessLayer()

	// Phase 4: Initialize HTTP layer
	app.initializeHTTPLayer()

	// Phase 5: Start server with graceful shutdown
	app.startWithGracefulShutdown()

	return nil
}

// initializeInfrastructure sets up the database, token cipher, metrics,
// validation cache, and Redis
func (app *Application) initializeInfrastructure(ctx context.Context) error {
	var err error

	// Database
	app.DB, err = initializeDatabase(ctx, app.Config)
	if err != nil {
		return err
	}

	// Token cipher
	app.Cipher, err = initializeCipher(app.Config)
	if err != nil {
		return err
	}

	// Metrics
	app.MetricsRecorder = initializeMetrics(app.Config)

	// Validation cache
	app.ValidationCache, app.ValidationCacheCloser, err = initializeValidationCache(ctx, app.Config)
	if err != nil {
		return err
	}

	// Redis (for rate limiting)
	app.RateLimitRedisClient, err = initializeRateLimitRedisClient(ctx, app.Config)
	if err != nil {
		return err
	}

	return nil
}

// initializeBusinessLayer sets up the provider client and services
func (app *Application) initializeBusinessLayer() {
	app.HTTPClient = retry.NewClient()
	app.Provider = initializeProvider(app.Config, app.HTTPClient)

	app.StateService,
		app.Validator,
		app.ConnectionService = initializeServices(
		app.Config,
		app.DB,
		app.Cipher,
		app.Provider,
		app.ValidationCache,
		app.MetricsRecorder,
	)
}

// initializeHTTPLayer sets up handlers, router, and server
func (app *Application) initializeHTTPLayer() {
	app.HandlerSet = initializeHandlers(
		app.Config,
		app.ConnectionService,
		app.Validator,
		app.HTTPClient,
		app.MetricsRecorder,
	)

	app.Router = setupRouter(
		app.Config,
		app.DB,
		app.HandlerSet,
		app.MetricsRecorder,
		app.RateLimitRedisClient,
	)

	app.Server = createHTTPServer(app.Config, app.Router)
}

// startWithGracefulShutdown starts the server and handles graceful shutdown
func (app *Application) startWithGracefulShutdown() {
	m := newGracefulManager()

	addServerRunningJob(m, app.Server)
	addServerShutdownJob(m, app.Server)
	addStateSweepJob(m, app.Config, app.StateService)
	addRedisClientShutdownJob(m, app.RateLimitRedisClient)
	addCacheCleanupJob(m, app.ValidationCacheCloser)
	addStoreShutdownJob(m, app.DB)

	<-m.Done()
}
