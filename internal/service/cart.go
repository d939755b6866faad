package service

import (
	"context"
	"log/slog"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/internal/event"
	"github.com/utafrali/EcommerceGo/storefront/internal/store"
	"github.com/utafrali/EcommerceGo/storefront/internal/syncer"
	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

// CartService applies cart mutations locally and mirrors them to the
// backend for authenticated sessions, rolling back rejected changes.
type CartService struct {
	*collection
}

// NewCartService creates a cart service over st, which must hold a cart.
func NewCartService(st *store.Store, s Syncer, events event.Publisher, logger *slog.Logger) *CartService {
	return &CartService{collection: newCollection(st, s, events, logger)}
}

// AddItem adds item to the cart, merging quantities with an existing entry.
// A quantity below one counts as one.
func (s *CartService) AddItem(ctx context.Context, sess auth.Session, item domain.LineItem) error {
	if err := validateItem(item); err != nil {
		return err
	}
	if item.Quantity < 1 {
		item.Quantity = 1
	}

	err := s.mutate(ctx, sess, syncer.IntentAddToCart, item.ID,
		func() { s.store.AddItem(item) },
		func() syncer.Result { return s.syncer.AddToCart(ctx, sess, item) },
	)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "item added to cart",
		slog.String("item_id", item.ID),
		slog.Int("quantity", item.Quantity),
	)
	return nil
}

// RemoveItem removes the entry with id. Removing an absent id does nothing.
func (s *CartService) RemoveItem(ctx context.Context, sess auth.Session, id string) error {
	if id == "" {
		return apperrors.InvalidInput("item id is required")
	}
	if !s.store.IsInCollection(id) {
		return nil
	}

	err := s.mutate(ctx, sess, syncer.IntentRemoveFromCart, id,
		func() { s.store.RemoveItem(id) },
		func() syncer.Result { return s.syncer.RemoveFromCart(ctx, sess, id) },
	)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "item removed from cart", slog.String("item_id", id))
	return nil
}

// UpdateQuantity sets the quantity of an entry. Zero or less removes it,
// exactly like RemoveItem.
func (s *CartService) UpdateQuantity(ctx context.Context, sess auth.Session, id string, quantity int) error {
	if quantity <= 0 {
		return s.RemoveItem(ctx, sess, id)
	}
	if id == "" {
		return apperrors.InvalidInput("item id is required")
	}
	if !s.store.IsInCollection(id) {
		return nil
	}

	err := s.mutate(ctx, sess, syncer.IntentUpdateCartQuantity, id,
		func() { s.store.UpdateQuantity(id, quantity) },
		func() syncer.Result { return s.syncer.UpdateCartQuantity(ctx, sess, id, quantity) },
	)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "cart quantity updated",
		slog.String("item_id", id),
		slog.Int("quantity", quantity),
	)
	return nil
}
