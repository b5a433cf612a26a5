package bootstrap

import (
	"log"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/crypto"
	"github.com/go-mailgate/mailgate/internal/mailchimp"
	"github.com/go-mailgate/mailgate/internal/retry"
	"github.com/go-mailgate/mailgate/internal/services"
	"github.com/go-mailgate/mailgate/internal/store"
)

// initializeProvider builds the Mailchimp OAuth provider client
func initializeProvider(cfg *config.Config, httpClient *retry.Client) *mailchimp.Provider {
	log.Printf("Mailchimp OAuth configured (redirect: %s)", cfg.MailchimpRedirectURL)
	return mailchimp.New(mailchimp.Config{
		ClientID:     cfg.MailchimpClientID,
		ClientSecret: cfg.MailchimpClientSecret,
		RedirectURL:  cfg.MailchimpRedirectURL,
	}, httpClient)
}

// initializeServices wires the state ledger, validator, and connection service
func initializeServices(
	cfg *config.Config,
	db *store.Store,
	cipher *crypto.TokenCipher,
	provider core.Provider,
	validationCache core.Cache[services.ValidationResult],
	recorder core.Recorder,
) (*services.StateService, *services.ConnectionValidator, *services.ConnectionService) {
	states := services.NewStateService(db, cfg.OAuthStateTTL, recorder)
	validator := services.NewConnectionValidator(
		db, cipher, provider, validationCache, cfg.ValidationTTL, recorder,
	)
	connections := services.NewConnectionService(db, cipher, provider, states, validator, recorder)

	log.Printf(
		"Connection services initialized (state_ttl=%s, validation_ttl=%s)",
		cfg.OAuthStateTTL, cfg.ValidationTTL,
	)
	return states, validator, connections
}
