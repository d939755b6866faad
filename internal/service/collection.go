package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/internal/event"
	"github.com/utafrali/EcommerceGo/storefront/internal/store"
	"github.com/utafrali/EcommerceGo/storefront/internal/syncer"
	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

// Syncer mirrors local mutations to the storefront backend. *syncer.Adapter
// satisfies it.
type Syncer interface {
	AddToCart(ctx context.Context, sess auth.Session, item domain.LineItem) syncer.Result
	RemoveFromCart(ctx context.Context, sess auth.Session, id string) syncer.Result
	UpdateCartQuantity(ctx context.Context, sess auth.Session, id string, quantity int) syncer.Result
	AddToWishlist(ctx context.Context, sess auth.Session, item domain.LineItem) syncer.Result
	RemoveFromWishlist(ctx context.Context, sess auth.Session, id string) syncer.Result
	FetchUser(ctx context.Context, sess auth.Session) (*syncer.RemoteUser, error)
}

// View is a collection together with its sync status.
type View struct {
	domain.Collection
	Sync domain.SyncStatus `json:"sync"`
}

// collection holds what cart and wishlist services share: the store, the
// optimistic mutation protocol and the server pull.
type collection struct {
	store   *store.Store
	syncer  Syncer
	events  event.Publisher
	logger  *slog.Logger
	pending atomic.Int64
}

func newCollection(st *store.Store, s Syncer, events event.Publisher, logger *slog.Logger) *collection {
	if events == nil {
		events = event.Nop{}
	}
	return &collection{
		store:  st,
		syncer: s,
		events: events,
		logger: logger.With(slog.String("collection", st.Kind().String())),
	}
}

// Item returns the entry with id.
func (c *collection) Item(id string) (domain.LineItem, bool) {
	return c.store.Item(id)
}

// IsInCollection reports whether an entry with id exists.
func (c *collection) IsInCollection(id string) bool {
	return c.store.IsInCollection(id)
}

// Snapshot returns the collection with its aggregates.
func (c *collection) Snapshot() domain.Collection {
	return c.store.Snapshot()
}

// Status returns the sync status of the last remote call.
func (c *collection) Status() domain.SyncStatus {
	return c.store.SyncStatus()
}

// View returns the collection and its sync status.
func (c *collection) View() View {
	return View{Collection: c.store.Snapshot(), Sync: c.store.SyncStatus()}
}

// Clear empties the collection locally. The backend has no clear endpoint,
// so nothing is mirrored.
func (c *collection) Clear(ctx context.Context) {
	c.store.Clear()
	c.logger.InfoContext(ctx, "collection cleared")
}

// SyncFromServer overwrites the local collection with server state. With nil
// items the current user record is fetched first.
func (c *collection) SyncFromServer(ctx context.Context, sess auth.Session, items []domain.LineItem) error {
	if !sess.Authenticated() {
		return apperrors.Unauthorized("syncing from the server requires a session")
	}
	fetch := func() (*syncer.RemoteUser, error) {
		return c.syncer.FetchUser(ctx, sess)
	}
	if items != nil {
		fetch = nil
	}
	return c.pull(ctx, sess, items, fetch)
}

// pull replaces local state with items, or with the items of the user
// record returned by fetch when fetch is set.
func (c *collection) pull(ctx context.Context, sess auth.Session, items []domain.LineItem, fetch func() (*syncer.RemoteUser, error)) error {
	c.begin()

	if fetch != nil {
		user, err := fetch()
		if err != nil {
			c.end(err)
			c.logger.WarnContext(ctx, "pull from server failed",
				slog.String("user_id", sess.UserID),
				slog.String("error", err.Error()),
			)
			var appErr *apperrors.AppError
			if errors.As(err, &appErr) {
				return err
			}
			return syncFailed(apperrors.Message(err), err)
		}
		items = c.itemsOf(user)
	}

	c.store.ReplaceAll(items)
	c.end(nil)
	c.logger.InfoContext(ctx, "collection replaced by server state",
		slog.String("user_id", sess.UserID),
		slog.Int("items", len(items)),
	)
	return nil
}

func (c *collection) itemsOf(user *syncer.RemoteUser) []domain.LineItem {
	var items []domain.LineItem
	if c.store.Kind() == domain.KindWishlist {
		items = user.Wishlist
	} else {
		items = user.Cart
	}
	if items == nil {
		items = []domain.LineItem{}
	}
	return items
}

// mutate runs the optimistic protocol for one item: capture its state,
// apply locally, then mirror remotely and restore the captured state if the
// backend rejects the change.
func (c *collection) mutate(ctx context.Context, sess auth.Session, intent syncer.Intent, id string, apply func(), remote func() syncer.Result) error {
	snap := c.store.Capture(id)
	apply()

	if !sess.Authenticated() {
		return nil
	}

	c.begin()
	res := remote()
	if res.Success {
		c.end(nil)
		c.logger.DebugContext(ctx, "mutation synced",
			slog.String("operation", string(intent)),
			slog.String("item_id", id),
			slog.Bool("queued", res.Queued),
		)
		return nil
	}

	c.store.Restore(snap)
	msg := res.Error
	if msg == "" {
		msg = fmt.Sprintf("%s failed", intent)
	}
	c.end(errors.New(msg))

	kind := c.store.Kind().String()
	compensationsTotal.WithLabelValues(kind, string(intent)).Inc()
	c.logger.WarnContext(ctx, "mutation rolled back",
		slog.String("operation", string(intent)),
		slog.String("item_id", id),
		slog.String("user_id", sess.UserID),
		slog.String("error", msg),
	)

	if err := c.events.PublishCompensated(ctx, event.CompensatedData{
		UserID:    sess.UserID,
		Kind:      kind,
		Operation: string(intent),
		ItemID:    id,
		Retryable: apperrors.IsRetryable(res.Err),
		Reason:    msg,
	}); err != nil {
		c.logger.ErrorContext(ctx, "failed to publish sync.compensated event",
			slog.String("item_id", id),
			slog.String("error", err.Error()),
		)
	}

	return syncFailed(msg, res.Err)
}

// begin marks a remote call in flight.
func (c *collection) begin() {
	c.pending.Add(1)
	c.store.SetSyncStatus(true, nil)
}

// end records the outcome of a remote call. The status stays in progress
// while other calls are still in flight.
func (c *collection) end(err error) {
	n := c.pending.Add(-1)
	c.store.SetSyncStatus(n > 0, err)
}

// syncFailed builds the error returned after a rollback. It matches both
// apperrors.ErrSyncFailed and the classified cause.
func syncFailed(msg string, cause error) error {
	appErr := apperrors.SyncFailed(msg)
	if cause != nil {
		appErr.Err = fmt.Errorf("%w: %w", apperrors.ErrSyncFailed, cause)
	}
	return appErr
}

func validateItem(item domain.LineItem) error {
	if item.ID == "" {
		return apperrors.InvalidInput("item id is required")
	}
	if item.Price < 0 {
		return apperrors.InvalidInput("price must not be negative")
	}
	return nil
}
