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
	// ErrEmailTaken indicates the email already belongs to an account.
	ErrEmailTaken = errors.New("email already registered")
	// ErrUsernameTaken indicates the username already belongs to an account.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrWeakPassword indicates the password fails the configured policy.
	ErrWeakPassword = errors.New("password does not meet policy")
)

// SignupInput carries new-account parameters.
type SignupInput struct {
	Email    string
	Username string
	Password string
}

// RegistrationService creates user accounts.
type RegistrationService struct {
	users  port.UserRepository
	events port.EventPublisher
	policy *security.PasswordPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewRegistrationService constructs a RegistrationService.
func NewRegistrationService(
	users port.UserRepository,
	events port.EventPublisher,
	policy *security.PasswordPolicy,
	log *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		users:  users,
		events: events,
		policy: policy,
		logger: log,
		now:    time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *RegistrationService) WithClock(now func() time.Time) *RegistrationService {
	s.now = now
	return s
}

// Signup registers a new account. Email dedup is case-insensitive via the
// normalized column, with an extra raw-cased lookup for rows stored before
// normalization; username dedup is case-sensitive.
func (s *RegistrationService) Signup(ctx context.Context, input SignupInput) (*domain.User, error) {
	email := strings.TrimSpace(input.Email)
	username := strings.TrimSpace(input.Username)
	if email == "" || username == "" || input.Password == "" {
		return nil, fmt.Errorf("email, username and password are required")
	}

	normalized := domain.NormalizeEmail(email)

	if err := s.ensureEmailFree(ctx, email, normalized); err != nil {
		return nil, err
	}

	if _, err := s.users.GetByUsername(ctx, username); err == nil {
		return nil, ErrUsernameTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("lookup username: %w", err)
	}

	score, err := s.policy.Validate(input.Password, email, username)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWeakPassword, err)
	}
	if score < 2 {
		s.logger.Warn("weak password accepted",
			zap.String("email", logger.MaskEmail(normalized)),
			zap.Int("score", score),
		)
	}

	hash, err := security.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := domain.User{
		ID:              uuid.NewString(),
		Email:           email,
		NormalizedEmail: normalized,
		Username:        username,
		PasswordHash:    hash,
		TokenVersion:    0,
		CreatedAt:       s.now().UTC(),
	}

	if err := s.users.Create(ctx, user); err != nil {
		// The unique indexes close the lookup-then-insert race.
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if err := s.events.PublishUserRegistered(ctx, domain.UserRegisteredEvent{
		EventID:      uuid.NewString(),
		UserID:       user.ID,
		Username:     user.Username,
		MaskedEmail:  logger.MaskEmail(normalized),
		RegisteredAt: user.CreatedAt,
	}); err != nil {
		s.logger.Warn("publish user registered event failed", zap.Error(err))
	}

	return &user, nil
}

func (s *RegistrationService) ensureEmailFree(ctx context.Context, raw, normalized string) error {
	if _, err := s.users.GetByNormalizedEmail(ctx, normalized); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	if _, err := s.users.GetByRawEmail(ctx, raw); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup raw email: %w", err)
	}

	return nil
}
