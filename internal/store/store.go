package store

import (
	"context"
	"errors"
	"time"

	"github.com/go-mailgate/mailgate/internal/models"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the persistence layer for connections and OAuth state entries.
type Store struct {
	db *gorm.DB
}

// New opens the database, runs migrations, and returns a ready Store.
func New(ctx context.Context, driver, dsn string) (*Store, error) {
	dialector, err := GetDialector(driver, dsn)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, err
	}

	// Auto migrate
	if err := db.WithContext(ctx).AutoMigrate(
		&models.Connection{},
		&models.OAuthState{},
	); err != nil {
		return nil, err
	}

	return &Store{db: db}, nil
}

// Health checks database connectivity.
func (s *Store) Health() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// --- OAuth state ledger ---

// CreateOAuthState persists a new CSRF state entry.
func (s *Store) CreateOAuthState(state *models.OAuthState) error {
	return s.db.Create(state).Error
}

// FindOAuthStatesByPrefix returns unexpired state entries matching the given
// plaintext prefix. Callers verify the full hash against each candidate.
func (s *Store) FindOAuthStatesByPrefix(prefix string) ([]models.OAuthState, error) {
	var states []models.OAuthState
	err := s.db.Where("state_prefix = ? AND expires_at > ?", prefix, time.Now()).
		Find(&states).Error
	return states, err
}

// ConsumeOAuthState deletes a state entry if it is still present and
// unexpired. The conditional delete is atomic at the storage layer: under
// concurrent callbacks presenting the same state, exactly one request
// observes a deleted row; the loser receives ErrStateConsumed (0 rows).
func (s *Store) ConsumeOAuthState(id uint) error {
	result := s.db.Where("id = ? AND expires_at > ?", id, time.Now()).
		Delete(&models.OAuthState{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrStateConsumed
	}
	return nil
}

// DeleteExpiredOAuthStates removes all expired state entries and returns the
// number deleted. Called periodically by the expiry sweep job.
func (s *Store) DeleteExpiredOAuthStates() (int64, error) {
	result := s.db.Where("expires_at <= ?", time.Now()).
		Delete(&models.OAuthState{})
	return result.RowsAffected, result.Error
}

// --- Connections ---

// GetConnection finds a connection by user ID and provider.
func (s *Store) GetConnection(userID, provider string) (*models.Connection, error) {
	var conn models.Connection
	err := s.db.Where("user_id = ? AND provider = ?", userID, provider).
		First(&conn).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrRecordNotFound
		}
		return nil, err
	}
	return &conn, nil
}

// UpsertConnection creates a connection for (user, provider) or updates the
// existing row in place, preserving the one-connection-per-user invariant.
func (s *Store) UpsertConnection(conn *models.Connection) error {
	existing, err := s.GetConnection(conn.UserID, conn.Provider)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return s.db.Create(conn).Error
		}
		return err
	}

	conn.ID = existing.ID
	conn.CreatedAt = existing.CreatedAt
	return s.db.Save(conn).Error
}

// MarkConnectionInactive flips is_active to false after a failed health
// probe. The encrypted token is kept so a later reconnect can replace it.
func (s *Store) MarkConnectionInactive(id string) error {
	return s.db.Model(&models.Connection{}).
		Where("id = ?", id).
		Update("is_active", false).Error
}

// TouchConnectionValidated records the time of the last confirmed-good
// health probe.
func (s *Store) TouchConnectionValidated(id string, at time.Time) error {
	return s.db.Model(&models.Connection{}).
		Where("id = ?", id).
		Update("last_validated_at", at).Error
}

// DeactivateConnection soft-disconnects a user: the row survives with
// is_active=false.
func (s *Store) DeactivateConnection(userID, provider string) error {
	result := s.db.Model(&models.Connection{}).
		Where("user_id = ? AND provider = ?", userID, provider).
		Update("is_active", false)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// DeleteConnection hard-deletes a user's connection record.
func (s *Store) DeleteConnection(userID, provider string) error {
	result := s.db.Where("user_id = ? AND provider = ?", userID, provider).
		Delete(&models.Connection{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrRecordNotFound
	}
	return nil
}
