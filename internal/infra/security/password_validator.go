package security

import (
	"errors"
	"fmt"

	"github.com/nbutton23/zxcvbn-go"
)

// ErrPasswordTooShort reports a password below the configured minimum length.
var ErrPasswordTooShort = errors.New("security: password too short")

// PasswordPolicy validates candidate passwords at signup time. Only the
// length rule rejects; the strength score is advisory and surfaced to the
// caller for logging.
type PasswordPolicy struct {
	minLength int
}

// NewPasswordPolicy creates a policy with the given minimum length.
func NewPasswordPolicy(minLength int) *PasswordPolicy {
	if minLength < 1 {
		minLength = 1
	}
	return &PasswordPolicy{minLength: minLength}
}

// Validate checks the password against the policy and returns its estimated
// strength score (0 to 4). Callers may log low scores without rejecting.
func (p *PasswordPolicy) Validate(password string, userInputs ...string) (int, error) {
	if len(password) < p.minLength {
		return 0, fmt.Errorf("%w: minimum length is %d", ErrPasswordTooShort, p.minLength)
	}

	strength := zxcvbn.PasswordStrength(password, userInputs)
	return strength.Score, nil
}
