package security

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidToken is returned for any token that fails parsing, signature
// verification, or expiry validation. Callers never learn which check failed.
var ErrInvalidToken = errors.New("security: invalid token")

const emailProofType = "epp"

// Claims is the claim set carried by every token kind this service issues.
// Access tokens carry only the registered claims; refresh tokens add Ver,
// email-proof tokens add Type.
type Claims struct {
	Ver  *int   `json:"ver,omitempty"`
	Type string `json:"typ,omitempty"`
	jwt.RegisteredClaims
}

// TokenService issues and validates HS256-signed tokens for access, refresh,
// and email-proof flows. All kinds share one symmetric secret and are told
// apart by claim shape.
type TokenService struct {
	secret     []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
	proofTTL   time.Duration
	now        func() time.Time
}

// NewTokenService builds a TokenService from the signing secret and per-kind
// lifetimes.
func NewTokenService(secret string, accessTTL, refreshTTL, proofTTL time.Duration) (*TokenService, error) {
	if secret == "" {
		return nil, errors.New("security: token secret must not be empty")
	}

	return &TokenService{
		secret:     []byte(secret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		proofTTL:   proofTTL,
		now:        time.Now,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	s.now = now
	return s
}

// AccessTTL returns the configured access token lifetime.
func (s *TokenService) AccessTTL() time.Duration { return s.accessTTL }

// RefreshTTL returns the configured refresh token lifetime.
func (s *TokenService) RefreshTTL() time.Duration { return s.refreshTTL }

// EmailProofTTL returns the configured email-proof token lifetime.
func (s *TokenService) EmailProofTTL() time.Duration { return s.proofTTL }

// IssueAccess creates an access token for the given subject.
func (s *TokenService) IssueAccess(subject string) (string, error) {
	return s.sign(Claims{
		RegisteredClaims: s.registered(subject, s.accessTTL),
	})
}

// IssueRefresh creates a refresh token bound to the subject's current token
// version. Bumping the stored version invalidates every token issued before.
func (s *TokenService) IssueRefresh(subject string, version int) (string, error) {
	return s.sign(Claims{
		Ver:              &version,
		RegisteredClaims: s.registered(subject, s.refreshTTL),
	})
}

// IssueEmailProof creates a short-lived proof that the subject address passed
// code verification.
func (s *TokenService) IssueEmailProof(email string) (string, error) {
	return s.sign(Claims{
		Type:             emailProofType,
		RegisteredClaims: s.registered(email, s.proofTTL),
	})
}

// Decode parses and validates a token, returning its claims. Any failure maps
// to ErrInvalidToken.
func (s *TokenService) Decode(token string) (*Claims, error) {
	claims := &Claims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// ParseEmailProof extracts the proven address from an email-proof token.
// It reports false for anything invalid, expired, or of another token kind;
// proof cookies are optional inputs and a bad one is simply absent proof.
func (s *TokenService) ParseEmailProof(token string) (string, bool) {
	if token == "" {
		return "", false
	}

	claims, err := s.Decode(token)
	if err != nil {
		return "", false
	}
	if claims.Type != emailProofType || claims.Subject == "" {
		return "", false
	}

	return claims.Subject, true
}

func (s *TokenService) registered(subject string, ttl time.Duration) jwt.RegisteredClaims {
	now := s.now()
	return jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}
}

func (s *TokenService) sign(claims Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("security: sign token: %w", err)
	}

	return signed, nil
}
