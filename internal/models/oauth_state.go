package models

import "time"

// OAuthState stores CSRF state tokens for in-flight OAuth authorization
// flows. Entries are short-lived (default 10 minutes) and single-use:
// consumption is an atomic conditional delete in the store, so a state can
// never validate twice even under concurrent callbacks.
type OAuthState struct {
	ID uint `gorm:"primaryKey;autoIncrement"`

	// State storage: PBKDF2 hash for security, prefix for quick lookup
	StateHash   string `gorm:"uniqueIndex;not null"`
	StateSalt   string `gorm:"not null"`
	StatePrefix string `gorm:"index;not null;size:8"` // First 8 chars of the plaintext state

	// The user and provider that initiated the flow; verification fails on
	// any mismatch.
	UserID   string `gorm:"not null;index"`
	Provider string `gorm:"not null"`

	ExpiresAt time.Time `gorm:"index"`
	CreatedAt time.Time
}

func (s *OAuthState) IsExpired() bool {
	return time.Now().After(s.ExpiresAt)
}

func (OAuthState) TableName() string {
	return "oauth_states"
}
