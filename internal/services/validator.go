package services

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/crypto"
	"github.com/go-mailgate/mailgate/internal/mailchimp"
	"github.com/go-mailgate/mailgate/internal/store"
)

// ErrorCode is the closed set of machine-readable validation failure codes.
type ErrorCode string

const (
	CodeNotAuthenticated   ErrorCode = "NOT_AUTHENTICATED"
	CodeNotConnected       ErrorCode = "NOT_CONNECTED"
	CodeConnectionInactive ErrorCode = "CONNECTION_INACTIVE"
	CodeTokenInvalid       ErrorCode = "TOKEN_INVALID"
	CodeValidationFailed   ErrorCode = "VALIDATION_FAILED"
)

// ValidationResult is the outcome of a connection validation. When Valid is
// true the decrypted access token and region are populated so callers can
// build an API client without touching storage again. The result is cached,
// so it carries json tags for the Redis backends.
type ValidationResult struct {
	Valid       bool      `json:"valid"`
	Code        ErrorCode `json:"code,omitempty"`
	Reason      string    `json:"reason,omitempty"`
	AccessToken string    `json:"access_token,omitempty"`
	Region      string    `json:"region,omitempty"`
	AccountID   string    `json:"account_id,omitempty"`
	AccountName string    `json:"account_name,omitempty"`
	CheckedAt   time.Time `json:"checked_at"`
}

// ConnectionValidator answers "can this user call the provider right now"
// with a TTL cache in front of the full check. A full check loads the
// connection, decrypts the token, and probes the provider's health endpoint.
type ConnectionValidator struct {
	store    *store.Store
	cipher   *crypto.TokenCipher
	provider core.Provider
	cache    core.Cache[ValidationResult]
	ttl      time.Duration
	metrics  core.Recorder

	// now is replaceable in tests
	now func() time.Time
}

// NewConnectionValidator creates a validator that caches results for ttl.
func NewConnectionValidator(
	s *store.Store,
	cipher *crypto.TokenCipher,
	provider core.Provider,
	cache core.Cache[ValidationResult],
	ttl time.Duration,
	metrics core.Recorder,
) *ConnectionValidator {
	return &ConnectionValidator{
		store:    s,
		cipher:   cipher,
		provider: provider,
		cache:    cache,
		ttl:      ttl,
		metrics:  metrics,
		now:      time.Now,
	}
}

func (v *ConnectionValidator) cacheKey(userID string) string {
	return v.provider.Name() + ":" + userID
}

// Validate checks the user's connection, serving from cache when a result
// is fresh. It never returns an error: every failure mode maps to a result
// with Valid=false and a code from the closed set.
func (v *ConnectionValidator) Validate(ctx context.Context, userID string) *ValidationResult {
	start := v.now()

	if userID == "" {
		result := &ValidationResult{
			Valid:     false,
			Code:      CodeNotAuthenticated,
			Reason:    "no authenticated user",
			CheckedAt: start,
		}
		v.metrics.RecordValidation(string(result.Code), false, time.Since(start))
		return result
	}

	if cached, err := v.cache.Get(ctx, v.cacheKey(userID)); err == nil {
		outcome := "VALID"
		if !cached.Valid {
			outcome = string(cached.Code)
		}
		v.metrics.RecordValidation(outcome, true, time.Since(start))
		return &cached
	}

	result := v.validateUncached(ctx, userID)

	// Every outcome is cached, failures included, so repeated calls inside
	// the TTL window skip the store entirely
	if err := v.cache.Set(ctx, v.cacheKey(userID), *result, v.ttl); err != nil {
		log.Printf("[Validator] Failed to cache result for user %s: %v", userID, err)
	}

	outcome := "VALID"
	if !result.Valid {
		outcome = string(result.Code)
	}
	v.metrics.RecordValidation(outcome, false, time.Since(start))
	return result
}

func (v *ConnectionValidator) validateUncached(ctx context.Context, userID string) *ValidationResult {
	checkedAt := v.now()

	conn, err := v.store.GetConnection(userID, v.provider.Name())
	if err != nil {
		if errors.Is(err, store.ErrRecordNotFound) {
			return &ValidationResult{
				Valid:     false,
				Code:      CodeNotConnected,
				Reason:    "no connection on record",
				CheckedAt: checkedAt,
			}
		}
		v.metrics.RecordDatabaseQueryError("get_connection")
		return &ValidationResult{
			Valid:     false,
			Code:      CodeValidationFailed,
			Reason:    "connection lookup failed",
			CheckedAt: checkedAt,
		}
	}

	if !conn.IsActive {
		return &ValidationResult{
			Valid:     false,
			Code:      CodeConnectionInactive,
			Reason:    "connection is inactive",
			CheckedAt: checkedAt,
		}
	}

	accessToken, err := v.cipher.Decrypt(conn.EncryptedToken)
	if err != nil {
		// An undecryptable token cannot be probed but the connection is
		// left untouched, re-connecting repairs it
		log.Printf("[Validator] Failed to decrypt token for user %s: %v", userID, err)
		return &ValidationResult{
			Valid:     false,
			Code:      CodeValidationFailed,
			Reason:    "stored token could not be decrypted",
			CheckedAt: checkedAt,
		}
	}

	// A probe confirmed this token within the TTL window: trust it and
	// skip the provider round trip entirely
	if conn.LastValidatedAt != nil && checkedAt.Sub(*conn.LastValidatedAt) < v.ttl {
		return &ValidationResult{
			Valid:       true,
			AccessToken: accessToken,
			Region:      conn.Region,
			AccountID:   conn.AccountID,
			AccountName: conn.AccountName,
			CheckedAt:   checkedAt,
		}
	}

	probeStart := v.now()
	err = v.provider.Ping(ctx, accessToken, conn.Region)
	v.metrics.RecordHealthProbe(v.provider.Name(), err == nil, time.Since(probeStart))

	switch {
	case err == nil:
		if dbErr := v.store.TouchConnectionValidated(conn.ID, checkedAt); dbErr != nil {
			v.metrics.RecordDatabaseQueryError("touch_connection")
			log.Printf("[Validator] Failed to record validation time for user %s: %v", userID, dbErr)
		}
		return &ValidationResult{
			Valid:       true,
			AccessToken: accessToken,
			Region:      conn.Region,
			AccountID:   conn.AccountID,
			AccountName: conn.AccountName,
			CheckedAt:   checkedAt,
		}

	case errors.Is(err, mailchimp.ErrTokenRejected):
		// The provider no longer honors the token: flip the connection
		// inactive so subsequent checks short-circuit
		if dbErr := v.store.MarkConnectionInactive(conn.ID); dbErr != nil {
			v.metrics.RecordDatabaseQueryError("mark_inactive")
			log.Printf("[Validator] Failed to deactivate connection for user %s: %v", userID, dbErr)
		}
		return &ValidationResult{
			Valid:     false,
			Code:      CodeTokenInvalid,
			Reason:    "provider rejected the access token",
			CheckedAt: checkedAt,
		}

	default:
		// Transport failure, the token's standing is unknown so the
		// connection stays active
		return &ValidationResult{
			Valid:     false,
			Code:      CodeValidationFailed,
			Reason:    "provider health probe failed",
			CheckedAt: checkedAt,
		}
	}
}

// Invalidate drops the cached result for a user. Called whenever the
// underlying connection changes.
func (v *ConnectionValidator) Invalidate(ctx context.Context, userID string) {
	if err := v.cache.Delete(ctx, v.cacheKey(userID)); err != nil {
		log.Printf("[Validator] Failed to invalidate cache for user %s: %v", userID, err)
	}
}

// Clear drops every cached result.
func (v *ConnectionValidator) Clear(ctx context.Context) error {
	return v.cache.Clear(ctx)
}
