package port

import (
	"context"

	"github.com/anjun206/board-app/internal/core/domain"
)

// EventPublisher publishes auth domain events to the message bus.
type EventPublisher interface {
	PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error
	PublishVerificationStarted(ctx context.Context, event domain.VerificationStartedEvent) error
	PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error
	PublishTokensRevoked(ctx context.Context, event domain.TokensRevokedEvent) error
}
