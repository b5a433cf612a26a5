package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/crypto"
	"github.com/go-mailgate/mailgate/internal/models"
	"github.com/go-mailgate/mailgate/internal/store"

	"github.com/google/uuid"
)

// Connection lifecycle errors
var (
	// ErrNotConnected indicates the user has no connection on record
	ErrNotConnected = errors.New("no connection on record")

	// ErrStorageFailed indicates the exchanged token could not be persisted.
	// The grant succeeded upstream, so the caller should tell the user to
	// retry rather than re-authorize.
	ErrStorageFailed = errors.New("failed to persist connection")
)

// ConnectionService drives the OAuth connection lifecycle: initiating the
// authorization flow, completing the callback, and disconnecting.
type ConnectionService struct {
	store     *store.Store
	cipher    *crypto.TokenCipher
	provider  core.Provider
	states    *StateService
	validator *ConnectionValidator
	metrics   core.Recorder
}

// NewConnectionService creates a connection service.
func NewConnectionService(
	s *store.Store,
	cipher *crypto.TokenCipher,
	provider core.Provider,
	states *StateService,
	validator *ConnectionValidator,
	metrics core.Recorder,
) *ConnectionService {
	return &ConnectionService{
		store:     s,
		cipher:    cipher,
		provider:  provider,
		states:    states,
		validator: validator,
		metrics:   metrics,
	}
}

// Connect mints a CSRF state for the user and returns the provider
// authorization URL to redirect to.
func (s *ConnectionService) Connect(userID string) (string, error) {
	state, err := s.states.Create(userID, s.provider.Name())
	if err != nil {
		s.metrics.RecordConnectInitiated(s.provider.Name(), false)
		return "", err
	}

	s.metrics.RecordConnectInitiated(s.provider.Name(), true)
	return s.provider.AuthCodeURL(state), nil
}

// CompleteCallback finishes the authorization flow: it redeems the state,
// exchanges the code, fetches account metadata, and persists the encrypted
// token. Nothing is written until every upstream step has succeeded, so a
// failed callback never leaves a partial connection behind.
func (s *ConnectionService) CompleteCallback(ctx context.Context, userID, code, state string) error {
	if err := s.states.VerifyAndConsume(state, userID, s.provider.Name()); err != nil {
		s.metrics.RecordOAuthCallback(s.provider.Name(), "invalid_state")
		return err
	}

	accessToken, err := s.provider.Exchange(ctx, code)
	if err != nil {
		s.metrics.RecordOAuthCallback(s.provider.Name(), "exchange_failed")
		return err
	}

	account, err := s.provider.Metadata(ctx, accessToken)
	if err != nil {
		s.metrics.RecordOAuthCallback(s.provider.Name(), "metadata_failed")
		return err
	}

	encrypted, err := s.cipher.Encrypt(accessToken)
	if err != nil {
		s.metrics.RecordOAuthCallback(s.provider.Name(), "encrypt_failed")
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	// The exchange itself proved the token good, so the connection starts
	// with a fresh validation stamp
	connectedAt := time.Now()
	conn := &models.Connection{
		ID:              uuid.New().String(),
		UserID:          userID,
		Provider:        s.provider.Name(),
		EncryptedToken:  encrypted,
		Region:          account.Region,
		AccountID:       account.AccountID,
		AccountName:     account.AccountName,
		Email:           account.Email,
		Username:        account.Username,
		Role:            account.Role,
		LoginEmail:      account.LoginEmail,
		IsActive:        true,
		LastValidatedAt: &connectedAt,
	}

	if err := s.store.UpsertConnection(conn); err != nil {
		s.metrics.RecordDatabaseQueryError("upsert_connection")
		s.metrics.RecordOAuthCallback(s.provider.Name(), "storage_failed")
		return fmt.Errorf("%w: %v", ErrStorageFailed, err)
	}

	// A stale cached verdict must not outlive the new token
	s.validator.Invalidate(ctx, userID)

	s.metrics.RecordOAuthCallback(s.provider.Name(), "connected")
	log.Printf("[Connection] User %s connected %s account %q (region %s)",
		userID, s.provider.Name(), account.AccountName, account.Region)
	return nil
}

// Status returns the user's connection record, or ErrNotConnected.
// The encrypted token stays inside the service boundary; callers must not
// serialize it.
func (s *ConnectionService) Status(userID string) (*models.Connection, error) {
	conn, err := s.store.GetConnection(userID, s.provider.Name())
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return nil, ErrNotConnected
		}
		s.metrics.RecordDatabaseQueryError("get_connection")
		return nil, fmt.Errorf("failed to load connection: %w", err)
	}
	return conn, nil
}

// Disconnect deactivates the user's connection. With purge the record is
// deleted outright, including the encrypted token and account metadata.
func (s *ConnectionService) Disconnect(ctx context.Context, userID string, purge bool) error {
	var err error
	if purge {
		err = s.store.DeleteConnection(userID, s.provider.Name())
	} else {
		err = s.store.DeactivateConnection(userID, s.provider.Name())
	}
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return ErrNotConnected
		}
		s.metrics.RecordDatabaseQueryError("disconnect")
		return fmt.Errorf("failed to disconnect: %w", err)
	}

	s.validator.Invalidate(ctx, userID)
	s.metrics.RecordDisconnect(s.provider.Name(), purge)
	log.Printf("[Connection] User %s disconnected %s (purge=%v)", userID, s.provider.Name(), purge)
	return nil
}

// LastValidated reports when the connection was last confirmed healthy.
func (s *ConnectionService) LastValidated(userID string) (*time.Time, error) {
	conn, err := s.Status(userID)
	if err != nil {
		return nil, err
	}
	return conn.LastValidatedAt, nil
}
