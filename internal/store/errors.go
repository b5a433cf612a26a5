package store

import "errors"

var (
	// ErrRecordNotFound wraps GORM's not found error for consistency
	ErrRecordNotFound = errors.New("record not found")

	// ErrStateConsumed is returned by ConsumeOAuthState when the entry was
	// already removed by a concurrent request or the expiry sweep (0 rows
	// deleted).
	ErrStateConsumed = errors.New("oauth state already consumed or expired")
)
