package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/core/port"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a development-friendly event publisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	return &StubPublisher{logger: logger}
}

func (p *StubPublisher) logEvent(eventType, userID string, at time.Time, payload any) {
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.logger.Info("Stub event published",
		zap.String("event_type", eventType),
		zap.String("user_id", userID),
		zap.Time("timestamp", at.UTC()),
		zap.Any("payload", payload),
	)
}

// PublishUserRegistered logs board.user.registered events.
func (p *StubPublisher) PublishUserRegistered(_ context.Context, event domain.UserRegisteredEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"username":      event.Username,
		"masked_email":  event.MaskedEmail,
		"registered_at": event.RegisteredAt,
	}
	p.logEvent("board.user.registered", event.UserID, event.RegisteredAt, payload)
	return nil
}

// PublishVerificationStarted logs board.auth.verification.started events.
func (p *StubPublisher) PublishVerificationStarted(_ context.Context, event domain.VerificationStartedEvent) error {
	payload := map[string]any{
		"masked_email": event.MaskedEmail,
		"masked_ip":    event.MaskedIP,
		"expires_at":   event.ExpiresAt,
		"requested_at": event.RequestedAt,
	}
	p.logEvent("board.auth.verification.started", "", event.RequestedAt, payload)
	return nil
}

// PublishLoginSucceeded logs board.auth.login.succeeded events.
func (p *StubPublisher) PublishLoginSucceeded(_ context.Context, event domain.LoginSucceededEvent) error {
	payload := map[string]any{
		"user_id":   event.UserID,
		"masked_ip": event.MaskedIP,
		"login_at":  event.LoginAt,
	}
	p.logEvent("board.auth.login.succeeded", event.UserID, event.LoginAt, payload)
	return nil
}

// PublishTokensRevoked logs board.auth.tokens.revoked events.
func (p *StubPublisher) PublishTokensRevoked(_ context.Context, event domain.TokensRevokedEvent) error {
	payload := map[string]any{
		"user_id":       event.UserID,
		"token_version": event.TokenVersion,
		"revoked_at":    event.RevokedAt,
	}
	p.logEvent("board.auth.tokens.revoked", event.UserID, event.RevokedAt, payload)
	return nil
}

var _ port.EventPublisher = (*StubPublisher)(nil)
