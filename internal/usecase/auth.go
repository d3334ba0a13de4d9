package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/core/port"
	"github.com/anjun206/board-app/internal/infra/logger"
	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/repository"
)

var (
	// ErrInvalidCredentials is the generic login failure. It covers both
	// unknown accounts and wrong passwords so responses do not reveal
	// which one it was.
	ErrInvalidCredentials = errors.New("invalid email or password")
	// ErrPasswordIncorrect is the specific login failure, disclosed only
	// when the caller already proved control of the email address.
	ErrPasswordIncorrect = errors.New("password incorrect")
	// ErrInvalidRefreshToken indicates the refresh token is absent,
	// malformed, expired, or revoked by a later logout.
	ErrInvalidRefreshToken = errors.New("invalid refresh token")
	// ErrUnauthorized indicates the access token is missing/invalid or the
	// subject no longer exists.
	ErrUnauthorized = errors.New("unauthorized")
)

// LoginInput carries credential login parameters. ProofToken is the optional
// email-proof cookie value.
type LoginInput struct {
	Email      string
	Password   string
	ProofToken string
	IP         string
}

// TokenPair is an issued access/refresh token set.
type TokenPair struct {
	AccessToken  string
	RefreshToken string
}

// AuthService coordinates login, token refresh, logout, and current-user
// resolution.
type AuthService struct {
	users  port.UserRepository
	tokens *security.TokenService
	events port.EventPublisher
	logger *zap.Logger
	now    func() time.Time
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	users port.UserRepository,
	tokens *security.TokenService,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	return &AuthService{
		users:  users,
		tokens: tokens,
		events: events,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	s.now = now
	return s
}

// Login authenticates an email/password pair. The dummy-verify path runs for
// unknown accounts too, so the elapsed time does not depend on account
// existence. When the proof token matches the login email, the wrong-password
// failure is reported specifically; otherwise every failure is generic.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*TokenPair, *domain.User, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" || input.Password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	proved := false
	if subject, ok := s.tokens.ParseEmailProof(input.ProofToken); ok {
		proved = subject == email
	}

	user, err := s.lookupByEmail(ctx, email, input.Email)
	if err != nil {
		return nil, nil, err
	}

	var storedHash string
	if user != nil {
		storedHash = user.PasswordHash
	}

	if !security.VerifyPasswordWithDummy(input.Password, storedHash) {
		if proved {
			return nil, nil, ErrPasswordIncorrect
		}
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	if err := s.events.PublishLoginSucceeded(ctx, domain.LoginSucceededEvent{
		EventID:  uuid.NewString(),
		UserID:   user.ID,
		MaskedIP: logger.MaskIP(input.IP),
		LoginAt:  s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish login succeeded event failed", zap.Error(err))
	}

	return pair, user, nil
}

// TokenByIdentifier authenticates a form login where the identifier may be
// an email address or a username. It keeps the dummy-verify timing guard but
// never discloses specifics.
func (s *AuthService) TokenByIdentifier(ctx context.Context, identifier, password string) (*TokenPair, *domain.User, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, nil, ErrInvalidCredentials
	}

	var (
		user *domain.User
		err  error
	)
	if strings.Contains(identifier, "@") {
		user, err = s.lookupByEmail(ctx, domain.NormalizeEmail(identifier), identifier)
	} else {
		user, err = s.lookupByUsername(ctx, identifier)
	}
	if err != nil {
		return nil, nil, err
	}

	var storedHash string
	if user != nil {
		storedHash = user.PasswordHash
	}

	if !security.VerifyPasswordWithDummy(password, storedHash) {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Refresh validates a refresh token, checks its version against the user's
// current token version, and rotates the pair.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, *domain.User, error) {
	if refreshToken == "" {
		return nil, nil, ErrInvalidRefreshToken
	}

	claims, err := s.tokens.Decode(refreshToken)
	if err != nil {
		return nil, nil, ErrInvalidRefreshToken
	}
	if claims.Ver == nil || claims.Subject == "" {
		return nil, nil, ErrInvalidRefreshToken
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil, ErrInvalidRefreshToken
		}
		return nil, nil, fmt.Errorf("lookup user: %w", err)
	}

	if *claims.Ver != user.TokenVersion {
		return nil, nil, ErrInvalidRefreshToken
	}

	pair, err := s.issuePair(user)
	if err != nil {
		return nil, nil, err
	}

	return pair, user, nil
}

// Logout bumps the user's token version, revoking every outstanding refresh
// token in one update.
func (s *AuthService) Logout(ctx context.Context, userID string) error {
	version, err := s.users.IncrementTokenVersion(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUnauthorized
		}
		return fmt.Errorf("bump token version: %w", err)
	}

	if err := s.events.PublishTokensRevoked(ctx, domain.TokensRevokedEvent{
		EventID:      uuid.NewString(),
		UserID:       userID,
		TokenVersion: version,
		RevokedAt:    s.now().UTC(),
	}); err != nil {
		s.logger.Warn("publish tokens revoked event failed", zap.Error(err))
	}

	return nil
}

// CurrentUser resolves an access token to its user.
func (s *AuthService) CurrentUser(ctx context.Context, accessToken string) (*domain.User, error) {
	if accessToken == "" {
		return nil, ErrUnauthorized
	}

	claims, err := s.tokens.Decode(accessToken)
	if err != nil {
		return nil, ErrUnauthorized
	}
	if claims.Subject == "" || claims.Type != "" {
		return nil, ErrUnauthorized
	}

	user, err := s.users.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUnauthorized
		}
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return user, nil
}

// lookupByEmail tries the normalized column first, then the raw-cased column
// for rows stored before normalization. A missing user returns (nil, nil) so
// the caller can still run the dummy verify.
func (s *AuthService) lookupByEmail(ctx context.Context, normalized, raw string) (*domain.User, error) {
	user, err := s.users.GetByNormalizedEmail(ctx, normalized)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	user, err = s.users.GetByRawEmail(ctx, strings.TrimSpace(raw))
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}

	return nil, nil
}

func (s *AuthService) lookupByUsername(ctx context.Context, username string) (*domain.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return nil, nil
}

func (s *AuthService) issuePair(user *domain.User) (*TokenPair, error) {
	access, err := s.tokens.IssueAccess(user.ID)
	if err != nil {
		return nil, fmt.Errorf("issue access token: %w", err)
	}

	refresh, err := s.tokens.IssueRefresh(user.ID, user.TokenVersion)
	if err != nil {
		return nil, fmt.Errorf("issue refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh}, nil
}
