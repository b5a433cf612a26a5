package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/go-mailgate/mailgate/internal/config"
	"github.com/go-mailgate/mailgate/internal/crypto"
	"github.com/go-mailgate/mailgate/internal/store"
)

const dbInitTimeout = 30 * time.Second

// initializeDatabase creates and initializes the database connection
func initializeDatabase(ctx context.Context, cfg *config.Config) (*store.Store, error) {
	ctx, cancel := context.WithTimeout(ctx, dbInitTimeout)
	defer cancel()

	db, err := store.New(ctx, cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	return db, nil
}

// initializeCipher parses the configured key and builds the token cipher
func initializeCipher(cfg *config.Config) (*crypto.TokenCipher, error) {
	key, err := crypto.ParseKey(cfg.TokenEncryptionKey)
	if err != nil {
		return nil, fmt.Errorf("invalid TOKEN_ENCRYPTION_KEY: %w", err)
	}
	return crypto.NewTokenCipher(key)
}
