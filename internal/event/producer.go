package event

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/utafrali/HabitGo/internal/domain"
	pkgkafka "github.com/utafrali/HabitGo/pkg/kafka"
	"github.com/utafrali/HabitGo/pkg/logger"
)

// Kafka topics for account events.
var (
	TopicUserRegistered         = pkgkafka.Topic("user", "registered")
	TopicUserDeleted            = pkgkafka.Topic("user", "deleted")
	TopicPasswordResetRequested = pkgkafka.Topic("user", "password_reset_requested")
)

const (
	AggregateTypeUser  = "user"
	SourceHabitService = "habit-service"
)

// UserRegisteredData is the payload for a user.registered event.
type UserRegisteredData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// UserDeletedData is the payload for a user.deleted event.
type UserDeletedData struct {
	UserID string `json:"user_id"`
}

// PasswordResetRequestedData is the payload for a user.password_reset_requested
// event. The reset link is never part of it.
type PasswordResetRequestedData struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// Producer publishes account events. A Producer without a Kafka producer
// drops every event, which is how the service runs with Kafka disabled.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new event producer. kafka may be nil.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishUserRegistered publishes a user.registered event.
func (p *Producer) PublishUserRegistered(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicUserRegistered, u.ID, UserRegisteredData{
		UserID: u.ID.String(),
		Email:  u.Email,
	})
}

// PublishUserDeleted publishes a user.deleted event.
func (p *Producer) PublishUserDeleted(ctx context.Context, id uuid.UUID) error {
	return p.publish(ctx, TopicUserDeleted, id, UserDeletedData{UserID: id.String()})
}

// PublishPasswordResetRequested publishes a user.password_reset_requested event.
func (p *Producer) PublishPasswordResetRequested(ctx context.Context, u *domain.User) error {
	return p.publish(ctx, TopicPasswordResetRequested, u.ID, PasswordResetRequestedData{
		UserID: u.ID.String(),
		Email:  u.Email,
	})
}

func (p *Producer) publish(ctx context.Context, topic string, userID uuid.UUID, data any) error {
	if p.kafka == nil {
		return nil
	}

	evt, err := pkgkafka.NewEvent(topic, userID.String(), AggregateTypeUser, SourceHabitService, data)
	if err != nil {
		return fmt.Errorf("create %s event: %w", topic, err)
	}
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		evt.WithCorrelationID(id)
	}

	if err := p.kafka.Publish(ctx, topic, evt); err != nil {
		return fmt.Errorf("publish %s event: %w", topic, err)
	}

	p.logger.DebugContext(ctx, "published account event",
		slog.String("topic", topic),
		slog.String("user_id", userID.String()),
	)
	return nil
}
