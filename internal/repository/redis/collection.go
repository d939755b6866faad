package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
)

const keyPrefix = "storefront:"

// CollectionRepository persists collections as JSON strings in Redis. It
// implements store.Persister.
type CollectionRepository struct {
	client    *redis.Client
	namespace string
	ttl       time.Duration
}

// NewCollectionRepository creates a Redis-backed persister. Keys are scoped
// by namespace; a zero ttl keeps collections until they are overwritten.
func NewCollectionRepository(client *redis.Client, namespace string, ttl time.Duration) *CollectionRepository {
	return &CollectionRepository{
		client:    client,
		namespace: namespace,
		ttl:       ttl,
	}
}

// Key returns the Redis key of a collection.
func (r *CollectionRepository) Key(kind domain.Kind) string {
	return keyPrefix + r.namespace + ":" + kind.String()
}

// Load reads the collection of kind. A missing key is an empty collection.
func (r *CollectionRepository) Load(ctx context.Context, kind domain.Kind) ([]domain.LineItem, error) {
	data, err := r.client.Get(ctx, r.Key(kind)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return []domain.LineItem{}, nil
		}
		return nil, fmt.Errorf("redis get %s: %w", kind, err)
	}

	var items []domain.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", kind, err)
	}
	return items, nil
}

// Save overwrites the collection of kind.
func (r *CollectionRepository) Save(ctx context.Context, kind domain.Kind, items []domain.LineItem) error {
	if items == nil {
		items = []domain.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", kind, err)
	}

	if err := r.client.Set(ctx, r.Key(kind), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", kind, err)
	}
	return nil
}
