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

// WishlistService is the wishlist counterpart of CartService. Entries carry
// no quantity and adding a held id changes nothing locally.
type WishlistService struct {
	*collection
}

// NewWishlistService creates a wishlist service over st, which must hold a
// wishlist.
func NewWishlistService(st *store.Store, s Syncer, events event.Publisher, logger *slog.Logger) *WishlistService {
	return &WishlistService{collection: newCollection(st, s, events, logger)}
}

// AddItem adds item to the wishlist. Adding an id already held does nothing
// and makes no remote call.
func (s *WishlistService) AddItem(ctx context.Context, sess auth.Session, item domain.LineItem) error {
	if err := validateItem(item); err != nil {
		return err
	}
	item.Quantity = 0
	if s.store.IsInCollection(item.ID) {
		return nil
	}

	err := s.mutate(ctx, sess, syncer.IntentAddToWishlist, item.ID,
		func() { s.store.AddItem(item) },
		func() syncer.Result { return s.syncer.AddToWishlist(ctx, sess, item) },
	)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "item added to wishlist", slog.String("item_id", item.ID))
	return nil
}

// RemoveItem removes the entry with id. Removing an absent id does nothing.
func (s *WishlistService) RemoveItem(ctx context.Context, sess auth.Session, id string) error {
	if id == "" {
		return apperrors.InvalidInput("item id is required")
	}
	if !s.store.IsInCollection(id) {
		return nil
	}

	err := s.mutate(ctx, sess, syncer.IntentRemoveFromWishlist, id,
		func() { s.store.RemoveItem(id) },
		func() syncer.Result { return s.syncer.RemoveFromWishlist(ctx, sess, id) },
	)
	if err != nil {
		return err
	}

	s.logger.InfoContext(ctx, "item removed from wishlist", slog.String("item_id", id))
	return nil
}

// Toggle adds item when it is absent and removes it otherwise. It reports
// whether the item is held afterwards.
func (s *WishlistService) Toggle(ctx context.Context, sess auth.Session, item domain.LineItem) (bool, error) {
	if s.store.IsInCollection(item.ID) {
		if err := s.RemoveItem(ctx, sess, item.ID); err != nil {
			return true, err
		}
		return false, nil
	}
	if err := s.AddItem(ctx, sess, item); err != nil {
		return false, err
	}
	return true, nil
}
