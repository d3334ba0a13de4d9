package domain

import (
	"strings"
	"time"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID              string
	Email           string // email as entered at signup
	NormalizedEmail string
	Username        string
	PasswordHash    string
	// TokenVersion is a monotonic counter embedded into refresh tokens.
	// Incrementing it invalidates every refresh token issued before.
	TokenVersion int
	CreatedAt    time.Time
}

// EmailVerification is a one-time code challenge issued by the start flow.
// At most one unused, unexpired record per email is authoritative; newer
// records supersede older ones.
type EmailVerification struct {
	ID        string
	Email     string // normalized
	CodeHash  string
	ExpiresAt time.Time
	Attempts  int
	Used      bool
	CreatedIP string
	CreatedAt time.Time
}

// Expired reports whether the record is past its expiry at the given instant.
func (v EmailVerification) Expired(now time.Time) bool {
	return now.After(v.ExpiresAt)
}

// NormalizeEmail lowercases and trims an email address. The normalized form
// is the unique key for users and the lookup key for verification records;
// the raw-cased column is still consulted for rows created before
// normalization was introduced.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
