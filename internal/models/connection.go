package models

import (
	"time"
)

// Connection represents a completed OAuth grant for an application user.
// At most one connection exists per (user, provider); reconnects update the
// existing row in place.
type Connection struct {
	ID       string `gorm:"primaryKey"`
	UserID   string `gorm:"not null;uniqueIndex:idx_connections_user_provider,priority:1"`
	Provider string `gorm:"not null;uniqueIndex:idx_connections_user_provider,priority:2"`

	// Token storage. EncryptedToken holds the AES-256-GCM envelope produced
	// by crypto.TokenCipher; the plaintext token is never persisted or logged.
	EncryptedToken string `gorm:"type:text;not null"`

	// Region is the provider-assigned data-center segment (e.g. "us1")
	// required to address API calls for this account.
	Region string `gorm:"not null"`

	// Provider account metadata (snapshot taken at connect time)
	AccountID   string
	AccountName string
	Email       string
	Username    string
	Role        string
	LoginEmail  string

	// IsActive is false when the token was detected invalid; the user must
	// reconnect to reactivate.
	IsActive bool `gorm:"not null;default:true"`

	// LastValidatedAt is the time of the last confirmed-good health probe,
	// nil until the first probe succeeds.
	LastValidatedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Connection) TableName() string {
	return "connections"
}
