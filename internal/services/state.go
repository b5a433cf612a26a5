package services

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-mailgate/mailgate/internal/core"
	"github.com/go-mailgate/mailgate/internal/models"
	"github.com/go-mailgate/mailgate/internal/store"
	"github.com/go-mailgate/mailgate/internal/util"
)

// State ledger errors
var (
	// ErrStateInvalid covers every rejection: unknown state, wrong user,
	// wrong provider, expired, or already consumed. Callers get no more
	// detail than this, replayed and forged states look identical.
	ErrStateInvalid = errors.New("oauth state invalid, expired, or already used")
)

const (
	// stateTokenBytes is the entropy of a state token before encoding
	stateTokenBytes = 32

	// statePrefixLen is the number of leading characters stored in plaintext
	// for indexed candidate lookup
	statePrefixLen = 8
)

// StateService issues and redeems single-use CSRF state tokens for the
// OAuth authorization flow. Tokens are stored salted and hashed; only a
// short plaintext prefix is kept for indexed lookup.
type StateService struct {
	store   *store.Store
	ttl     time.Duration
	metrics core.Recorder
}

// NewStateService creates a state service with the given token lifetime.
func NewStateService(s *store.Store, ttl time.Duration, metrics core.Recorder) *StateService {
	return &StateService{
		store:   s,
		ttl:     ttl,
		metrics: metrics,
	}
}

// Create mints a fresh state token bound to the user and provider and
// records its hash in the ledger. The plaintext token is returned once and
// never stored.
func (s *StateService) Create(userID, provider string) (string, error) {
	state, err := util.CryptoRandomToken(stateTokenBytes)
	if err != nil {
		s.metrics.RecordStateCreated(false)
		return "", fmt.Errorf("failed to generate state token: %w", err)
	}

	salt, err := util.CryptoRandomString(20)
	if err != nil {
		s.metrics.RecordStateCreated(false)
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	record := &models.OAuthState{
		StateHash:   util.HashToken(state, salt),
		StateSalt:   salt,
		StatePrefix: state[:statePrefixLen],
		UserID:      userID,
		Provider:    provider,
		ExpiresAt:   time.Now().Add(s.ttl),
	}

	if err := s.store.CreateOAuthState(record); err != nil {
		s.metrics.RecordStateCreated(false)
		return "", fmt.Errorf("failed to store state: %w", err)
	}

	s.metrics.RecordStateCreated(true)
	return state, nil
}

// VerifyAndConsume redeems a state token exactly once. The token must hash
// to a live ledger entry bound to the same user and provider. The final
// conditional delete guarantees that concurrent redemptions of the same
// token produce a single winner.
func (s *StateService) VerifyAndConsume(state, userID, provider string) error {
	if len(state) < statePrefixLen {
		s.metrics.RecordStateConsumed("invalid")
		return ErrStateInvalid
	}

	candidates, err := s.store.FindOAuthStatesByPrefix(state[:statePrefixLen])
	if err != nil {
		s.metrics.RecordStateConsumed("error")
		return fmt.Errorf("failed to look up state candidates: %w", err)
	}

	for _, candidate := range candidates {
		if !util.VerifyTokenHash(state, candidate.StateSalt, candidate.StateHash) {
			continue
		}

		// A hash match bound to another user or provider is rejected,
		// not skipped
		if candidate.UserID != userID || candidate.Provider != provider {
			s.metrics.RecordStateConsumed("mismatch")
			return ErrStateInvalid
		}

		if candidate.IsExpired() {
			s.metrics.RecordStateConsumed("expired")
			return ErrStateInvalid
		}

		if err := s.store.ConsumeOAuthState(candidate.ID); err != nil {
			if errors.Is(err, store.ErrStateConsumed) {
				// Lost the race or replayed
				s.metrics.RecordStateConsumed("replayed")
				return ErrStateInvalid
			}
			s.metrics.RecordStateConsumed("error")
			return fmt.Errorf("failed to consume state: %w", err)
		}

		s.metrics.RecordStateConsumed("consumed")
		return nil
	}

	s.metrics.RecordStateConsumed("invalid")
	return ErrStateInvalid
}

// Sweep removes expired ledger entries. Intended to run periodically in
// the background.
func (s *StateService) Sweep() (int64, error) {
	removed, err := s.store.DeleteExpiredOAuthStates()
	if err != nil {
		return 0, fmt.Errorf("failed to sweep expired states: %w", err)
	}

	if removed > 0 {
		log.Printf("[StateLedger] Swept %d expired states", removed)
	}
	s.metrics.RecordStatesSwept(removed)
	return removed, nil
}
