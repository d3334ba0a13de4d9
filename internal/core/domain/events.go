package domain

import "time"

// UserRegisteredEvent is emitted after a successful signup.
type UserRegisteredEvent struct {
	EventID      string
	UserID       string
	Username     string
	MaskedEmail  string
	RegisteredAt time.Time
}

// VerificationStartedEvent is emitted when a login verification code is
// issued. The email is masked before it enters the event pipeline.
type VerificationStartedEvent struct {
	EventID     string
	MaskedEmail string
	MaskedIP    string
	ExpiresAt   time.Time
	RequestedAt time.Time
}

// LoginSucceededEvent is emitted after a credential login succeeds.
type LoginSucceededEvent struct {
	EventID  string
	UserID   string
	MaskedIP string
	LoginAt  time.Time
}

// TokensRevokedEvent is emitted when a logout bumps the token version and
// invalidates all outstanding refresh tokens for the user.
type TokensRevokedEvent struct {
	EventID      string
	UserID       string
	TokenVersion int
	RevokedAt    time.Time
}
