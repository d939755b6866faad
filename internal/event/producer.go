package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/utafrali/EcommerceGo/storefront/pkg/kafka"
	"github.com/utafrali/EcommerceGo/storefront/pkg/logger"
)

// Kafka topic constants for sync events.
var (
	TopicSyncCompensated = pkgkafka.Topic("sync", "compensated")
	TopicSyncReconciled  = pkgkafka.Topic("sync", "reconciled")
)

// SourceStorefront identifies events originating from the storefront agent.
const SourceStorefront = "storefront"

// CompensatedData is the payload of a sync.compensated event: an optimistic
// local change that was rolled back because the backend rejected it.
type CompensatedData struct {
	UserID    string `json:"user_id"`
	Kind      string `json:"kind"`
	Operation string `json:"operation"`
	ItemID    string `json:"item_id"`
	Retryable bool   `json:"retryable"`
	Reason    string `json:"reason"`
}

// ReconciledData is the payload of a sync.reconciled event emitted after a
// login reconciliation.
type ReconciledData struct {
	UserID        string `json:"user_id"`
	Cart          string `json:"cart"`
	Wishlist      string `json:"wishlist"`
	CartItems     int    `json:"cart_items"`
	WishlistItems int    `json:"wishlist_items"`
	Error         string `json:"error,omitempty"`
}

// Publisher publishes sync events. Producer and Nop satisfy it.
type Publisher interface {
	PublishCompensated(ctx context.Context, data CompensatedData) error
	PublishReconciled(ctx context.Context, data ReconciledData) error
}

// Producer publishes sync events to Kafka.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates a new sync event producer.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishCompensated publishes a sync.compensated event.
func (p *Producer) PublishCompensated(ctx context.Context, data CompensatedData) error {
	return p.publish(ctx, TopicSyncCompensated, "sync.compensated", data.UserID, data, pkgkafka.WithCollection(data.Kind))
}

// PublishReconciled publishes a sync.reconciled event.
func (p *Producer) PublishReconciled(ctx context.Context, data ReconciledData) error {
	return p.publish(ctx, TopicSyncReconciled, "sync.reconciled", data.UserID, data)
}

func (p *Producer) publish(ctx context.Context, topic, eventType, userID string, data any, opts ...pkgkafka.Option) error {
	if id := logger.CorrelationIDFromContext(ctx); id != "" {
		opts = append(opts, pkgkafka.WithCorrelationID(id))
	}
	event, err := pkgkafka.NewEvent(eventType, userID, SourceStorefront, data, opts...)
	if err != nil {
		return fmt.Errorf("create %s event: %w", eventType, err)
	}

	if err := p.kafka.Publish(ctx, topic, event); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	p.logger.DebugContext(ctx, "published sync event",
		slog.String("event_type", eventType),
		slog.String("user_id", userID),
	)
	return nil
}

// Nop discards events. It is used when no Kafka brokers are configured.
type Nop struct{}

// PublishCompensated implements Publisher.
func (Nop) PublishCompensated(context.Context, CompensatedData) error { return nil }

// PublishReconciled implements Publisher.
func (Nop) PublishReconciled(context.Context, ReconciledData) error { return nil }
