package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/anjun206/board-app/internal/core/domain"
	"github.com/anjun206/board-app/internal/core/port"
	"github.com/anjun206/board-app/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}

	if span := trace.SpanFromContext(ctx); span != nil {
		if sc := span.SpanContext(); sc.IsValid() {
			metadata["trace_id"] = sc.TraceID().String()
		}
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishUserRegistered publishes board.user.registered events.
func (p *EventPublisher) PublishUserRegistered(ctx context.Context, event domain.UserRegisteredEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		Username     string    `json:"username"`
		MaskedEmail  string    `json:"masked_email"`
		RegisteredAt time.Time `json:"registered_at"`
	}{
		UserID:       event.UserID,
		Username:     event.Username,
		MaskedEmail:  event.MaskedEmail,
		RegisteredAt: event.RegisteredAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "board.user.registered", event.UserID, event.RegisteredAt, payload)
}

// PublishVerificationStarted publishes board.auth.verification.started events.
func (p *EventPublisher) PublishVerificationStarted(ctx context.Context, event domain.VerificationStartedEvent) error {
	payload := struct {
		MaskedEmail string    `json:"masked_email"`
		MaskedIP    string    `json:"masked_ip,omitempty"`
		ExpiresAt   time.Time `json:"expires_at"`
		RequestedAt time.Time `json:"requested_at"`
	}{
		MaskedEmail: event.MaskedEmail,
		MaskedIP:    event.MaskedIP,
		ExpiresAt:   event.ExpiresAt.UTC(),
		RequestedAt: event.RequestedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "board.auth.verification.started", "", event.RequestedAt, payload)
}

// PublishLoginSucceeded publishes board.auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		UserID   string    `json:"user_id"`
		MaskedIP string    `json:"masked_ip,omitempty"`
		LoginAt  time.Time `json:"login_at"`
	}{
		UserID:   event.UserID,
		MaskedIP: event.MaskedIP,
		LoginAt:  event.LoginAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "board.auth.login.succeeded", event.UserID, event.LoginAt, payload)
}

// PublishTokensRevoked publishes board.auth.tokens.revoked events.
func (p *EventPublisher) PublishTokensRevoked(ctx context.Context, event domain.TokensRevokedEvent) error {
	payload := struct {
		UserID       string    `json:"user_id"`
		TokenVersion int       `json:"token_version"`
		RevokedAt    time.Time `json:"revoked_at"`
	}{
		UserID:       event.UserID,
		TokenVersion: event.TokenVersion,
		RevokedAt:    event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "board.auth.tokens.revoked", event.UserID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
