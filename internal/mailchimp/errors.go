package mailchimp

import "errors"

var (
	// ErrProviderUnreachable indicates Mailchimp could not be reached or
	// answered with a server error after retries
	ErrProviderUnreachable = errors.New("mailchimp: provider unreachable")

	// ErrCodeRejected indicates Mailchimp refused the authorization code
	ErrCodeRejected = errors.New("mailchimp: authorization code rejected")

	// ErrTokenRejected indicates Mailchimp no longer accepts the access token
	ErrTokenRejected = errors.New("mailchimp: access token rejected")

	// ErrBadMetadata indicates the metadata response was missing required fields
	ErrBadMetadata = errors.New("mailchimp: malformed metadata response")
)
