package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/wnsxk2/jt-log/pkg/kafka"
	"github.com/wnsxk2/jt-log/pkg/logger"
)

// Kafka topics for auth domain events.
var (
	TopicUserSignedUp    = pkgkafka.Topic("user", "signed_up")
	TopicSessionsRevoked = pkgkafka.Topic("session", "revoked")
)

// Aggregate type constant.
const AggregateTypeUser = "user"

// Source identifier for events originating from the auth service.
const SourceAuthService = "auth-service"

// UserSignedUpData is the payload for a user.signed_up event.
type UserSignedUpData struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Nickname string `json:"nickname"`
}

// SessionsRevokedData is the payload for a session.revoked event.
type SessionsRevokedData struct {
	UserID string `json:"user_id"`
	Count  int64  `json:"count"`
}

// publisher is the part of *pkgkafka.Producer used here.
type publisher interface {
	Publish(ctx context.Context, topic string, event *pkgkafka.Event) error
}

// Producer publishes auth domain events to Kafka.
type Producer struct {
	kafka  publisher
	logger *slog.Logger
}

// NewProducer creates a new event producer for the auth service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserSignedUp publishes a user.signed_up event.
func (p *Producer) PublishUserSignedUp(ctx context.Context, userID, email, nickname string) error {
	data := UserSignedUpData{ID: userID, Email: email, Nickname: nickname}
	return p.publish(ctx, TopicUserSignedUp, userID, data)
}

// PublishSessionsRevoked publishes a session.revoked event after a user
// signed out of every device.
func (p *Producer) PublishSessionsRevoked(ctx context.Context, userID string, count int64) error {
	data := SessionsRevokedData{UserID: userID, Count: count}
	return p.publish(ctx, TopicSessionsRevoked, userID, data)
}

func (p *Producer) publish(ctx context.Context, topic, userID string, data any) error {
	event, err := pkgkafka.NewEvent(topic, userID, AggregateTypeUser, SourceAuthService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	event.WithCorrelationID(logger.CorrelationIDFromContext(ctx))

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published event",
		slog.String("topic", topic),
		slog.String("user_id", userID),
	)
	return nil
}

// Discard drops every event. It stands in for Producer when no Kafka
// brokers are configured.
type Discard struct{}

// PublishUserSignedUp does nothing.
func (Discard) PublishUserSignedUp(context.Context, string, string, string) error { return nil }

// PublishSessionsRevoked does nothing.
func (Discard) PublishSessionsRevoked(context.Context, string, int64) error { return nil }
