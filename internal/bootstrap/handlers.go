package bootstrap

import (
	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/handlers"
	"github.com/go-mailgate/mailgate/internal/retry"
	"github.com/go-mailgate/mailgate/internal/services"
)

// handlerSet holds all HTTP handlers
type handlerSet struct {
	oauth   *handlers.OAuthHandler
	session *handlers.SessionHandler
	api     *handlers.APIHandler
}

// initializeHandlers creates all HTTP handlers
func initializeHandlers(
	cfg *config.Config,
	connections *services.ConnectionService,
	validator *services.ConnectionValidator,
	httpClient *retry.Client,
	recorder core.Recorder,
) handlerSet {
	return handlerSet{
		oauth:   handlers.NewOAuthHandler(connections, cfg.DashboardURL, cfg.SettingsPath),
		session: handlers.NewSessionHandler(cfg.JWTSecret),
		api:     handlers.NewAPIHandler(validator, httpClient, recorder),
	}
}
