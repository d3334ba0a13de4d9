package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/core/port"
	"github.com/anjun206/board-app/internal/infra/config"
	"github.com/anjun206/board-app/internal/infra/logger"
	"github.com/anjun206/board-app/internal/infra/ratelimit"
	"github.com/anjun206/board-app/internal/infra/security"
	"github.com/anjun206/board-app/internal/repository"
)

var (
	// ErrRateLimited indicates the caller exceeded a sliding-window limit.
	ErrRateLimited = errors.New("too many requests")
	// ErrInvalidCode indicates the code is malformed, wrong, expired,
	// already used, or its attempt budget is exhausted. One sentinel for
	// all of these so the response does not reveal which check failed.
	ErrInvalidCode = errors.New("invalid or expired code")
)

const codeDigits = 6

// StartInput carries parameters for issuing a verification code.
type StartInput struct {
	Email string
	IP    string
}

// VerifyInput carries parameters for checking a submitted code.
type VerifyInput struct {
	Email string
	Code  string
	IP    string
}

// VerificationService drives the email-proof flow: issuing one-time codes
// and exchanging a correct code for an email-proof token.
type VerificationService struct {
	cfg           config.AuthSettings
	limits        config.RateLimitSettings
	users         port.UserRepository
	verifications port.VerificationRepository
	limiter       *ratelimit.MemoryLimiter
	tokens        *security.TokenService
	notifier      port.Notifier
	events        port.EventPublisher
	logger        *zap.Logger
	now           func() time.Time
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(
	cfg config.AuthSettings,
	limits config.RateLimitSettings,
	users port.UserRepository,
	verifications port.VerificationRepository,
	limiter *ratelimit.MemoryLimiter,
	tokens *security.TokenService,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *VerificationService {
	return &VerificationService{
		cfg:           cfg,
		limits:        limits,
		users:         users,
		verifications: verifications,
		limiter:       limiter,
		tokens:        tokens,
		notifier:      notifier,
		events:        events,
		logger:        log,
		now:           time.Now,
	}
}

// WithClock overrides the time source. Intended for tests.
func (s *VerificationService) WithClock(now func() time.Time) *VerificationService {
	s.now = now
	return s
}

// Start issues a fresh verification code for the email. Unknown addresses
// return success without side effects so the endpoint does not reveal which
// accounts exist.
func (s *VerificationService) Start(ctx context.Context, input StartInput) error {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return fmt.Errorf("email is required")
	}

	if !s.limiter.Allow("start:email:"+input.IP+":"+email, s.limits.StartEmailLimit, s.limits.Window) {
		return ErrRateLimited
	}

	user, err := s.users.GetByNormalizedEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("lookup user: %w", err)
	}

	if err := s.verifications.InvalidatePending(ctx, email); err != nil {
		return fmt.Errorf("invalidate pending codes: %w", err)
	}

	code, err := security.GenerateNumericCode(codeDigits)
	if err != nil {
		return fmt.Errorf("generate code: %w", err)
	}

	codeHash, err := security.HashPassword(code)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	record := domain.EmailVerification{
		ID:        uuid.NewString(),
		Email:     email,
		CodeHash:  codeHash,
		ExpiresAt: now.Add(s.cfg.CodeTTL),
		Attempts:  0,
		Used:      false,
		CreatedIP: input.IP,
		CreatedAt: now,
	}

	if err := s.verifications.Create(ctx, record); err != nil {
		return fmt.Errorf("store verification: %w", err)
	}

	// Delivery must not delay or fail the response.
	go func() {
		sendCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := s.notifier.SendVerificationCode(sendCtx, user.Email, code); err != nil {
			s.logger.Error("dispatch verification code failed",
				zap.String("email", logger.MaskEmail(email)),
				zap.Error(err),
			)
		}
	}()

	if err := s.events.PublishVerificationStarted(ctx, domain.VerificationStartedEvent{
		EventID:     uuid.NewString(),
		MaskedEmail: logger.MaskEmail(email),
		MaskedIP:    logger.MaskIP(input.IP),
		ExpiresAt:   record.ExpiresAt,
		RequestedAt: now,
	}); err != nil {
		s.logger.Warn("publish verification started event failed", zap.Error(err))
	}

	return nil
}

// Verify checks a submitted code against the newest active record and
// returns an email-proof token on success. Every failure mode maps to
// ErrInvalidCode.
func (s *VerificationService) Verify(ctx context.Context, input VerifyInput) (string, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return "", fmt.Errorf("email is required")
	}

	if !s.limiter.Allow("verify:email:"+input.IP+":"+email, s.limits.VerifyEmailLimit, s.limits.Window) {
		return "", ErrRateLimited
	}

	if !isNumericCode(input.Code) {
		return "", ErrInvalidCode
	}

	record, err := s.verifications.LatestActive(ctx, email, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrInvalidCode
		}
		return "", fmt.Errorf("lookup verification: %w", err)
	}

	if record.Attempts >= s.cfg.MaxCodeAttempts {
		return "", ErrInvalidCode
	}

	if err := s.verifications.IncrementAttempts(ctx, record.ID); err != nil {
		return "", fmt.Errorf("record attempt: %w", err)
	}

	ok, err := security.VerifyPassword(input.Code, record.CodeHash)
	if err != nil {
		return "", fmt.Errorf("compare code: %w", err)
	}
	if !ok {
		return "", ErrInvalidCode
	}

	if err := s.verifications.MarkUsed(ctx, record.ID); err != nil {
		return "", fmt.Errorf("consume verification: %w", err)
	}

	token, err := s.tokens.IssueEmailProof(email)
	if err != nil {
		return "", fmt.Errorf("issue email proof: %w", err)
	}

	return token, nil
}

// PurgeExpired removes verification records past their expiry. The app runs
// it on a ticker alongside the database expiry index.
func (s *VerificationService) PurgeExpired(ctx context.Context) (int64, error) {
	removed, err := s.verifications.DeleteExpired(ctx, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("purge expired verifications: %w", err)
	}

	if removed > 0 {
		s.logger.Debug("purged expired verification codes", zap.Int64("count", removed))
	}

	return removed, nil
}

func isNumericCode(code string) bool {
	if len(code) != codeDigits {
		return false
	}
	for _, c := range code {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
