package kafka

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TopicPrefix is the standard prefix for all storefront topics.
const TopicPrefix = "storefront"

// Topic constructs a fully-qualified topic name.
func Topic(domain, action string) string {
	return fmt.Sprintf("%s.%s.%s", TopicPrefix, domain, action)
}

// Event is the envelope of every message the storefront publishes. Key is
// the partition key, normally the user the event concerns.
type Event struct {
	ID            string          `json:"id"`
	Type          string          `json:"type"`
	Key           string          `json:"key"`
	Collection    string          `json:"collection,omitempty"`
	Source        string          `json:"source"`
	OccurredAt    time.Time       `json:"occurred_at"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Data          json.RawMessage `json:"data"`
}

// Option customizes an Event built by NewEvent.
type Option func(*Event)

// WithCorrelationID ties the event to the request that caused it.
func WithCorrelationID(id string) Option {
	return func(e *Event) { e.CorrelationID = id }
}

// WithCollection names the collection (cart, wishlist) the event is about.
func WithCollection(kind string) Option {
	return func(e *Event) { e.Collection = kind }
}

// NewEvent encodes data into a fresh envelope stamped with a random ID and
// the current UTC time.
func NewEvent(eventType, key, source string, data any, opts ...Option) (*Event, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s payload: %w", eventType, err)
	}

	e := &Event{
		ID:         uuid.NewString(),
		Type:       eventType,
		Key:        key,
		Source:     source,
		OccurredAt: time.Now().UTC(),
		Data:       raw,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}
