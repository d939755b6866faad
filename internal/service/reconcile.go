package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	"github.com/utafrali/EcommerceGo/storefront/internal/event"
	"github.com/utafrali/EcommerceGo/storefront/internal/syncer"
	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

// Outcome describes what reconciliation did with one collection.
type Outcome string

const (
	OutcomePushed  Outcome = "pushed"
	OutcomePulled  Outcome = "pulled"
	OutcomeSkipped Outcome = "skipped"
)

// Reconciliation is the result of a login reconciliation.
type Reconciliation struct {
	Cart     Outcome `json:"cart"`
	Wishlist Outcome `json:"wishlist"`
	Pushed   int     `json:"pushed"`
}

// Reconciler merges pre-login local state with the user's server state.
type Reconciler struct {
	cart     *CartService
	wishlist *WishlistService
	syncer   Syncer
	events   event.Publisher
	logger   *slog.Logger
}

// NewReconciler creates a login reconciler.
func NewReconciler(cart *CartService, wishlist *WishlistService, s Syncer, events event.Publisher, logger *slog.Logger) *Reconciler {
	if events == nil {
		events = event.Nop{}
	}
	return &Reconciler{
		cart:     cart,
		wishlist: wishlist,
		syncer:   s,
		events:   events,
		logger:   logger,
	}
}

// OnLogin reconciles the cart and then the wishlist, one after the other. A
// collection holding local items pushes them to the server one add at a
// time; an empty one is pulled from the user record, which is fetched at
// most once. Reconciliation stops at the first failure. Collections not
// reached report OutcomeSkipped.
func (r *Reconciler) OnLogin(ctx context.Context, sess auth.Session) (Reconciliation, error) {
	res := Reconciliation{Cart: OutcomeSkipped, Wishlist: OutcomeSkipped}
	if !sess.Authenticated() {
		return res, apperrors.Unauthorized("reconciliation requires a session")
	}

	fetch := sync.OnceValues(func() (*syncer.RemoteUser, error) {
		return r.syncer.FetchUser(ctx, sess)
	})

	var err error
	res.Cart, err = r.reconcile(ctx, sess, r.cart.collection, fetch, &res.Pushed, func(item domain.LineItem) syncer.Result {
		return r.syncer.AddToCart(ctx, sess, item)
	})
	if err == nil {
		res.Wishlist, err = r.reconcile(ctx, sess, r.wishlist.collection, fetch, &res.Pushed, func(item domain.LineItem) syncer.Result {
			return r.syncer.AddToWishlist(ctx, sess, item)
		})
	}

	r.publish(ctx, sess, res, err)
	if err != nil {
		reconciliationsTotal.WithLabelValues("failed").Inc()
		r.logger.WarnContext(ctx, "login reconciliation failed",
			slog.String("user_id", sess.UserID),
			slog.String("cart", string(res.Cart)),
			slog.String("wishlist", string(res.Wishlist)),
			slog.String("error", err.Error()),
		)
		return res, err
	}

	reconciliationsTotal.WithLabelValues("succeeded").Inc()
	r.logger.InfoContext(ctx, "login reconciliation completed",
		slog.String("user_id", sess.UserID),
		slog.String("cart", string(res.Cart)),
		slog.String("wishlist", string(res.Wishlist)),
		slog.Int("pushed", res.Pushed),
	)
	return res, nil
}

// PullAll overwrites both collections with the user's server state, cart
// first. The user record is fetched once for both.
func (r *Reconciler) PullAll(ctx context.Context, sess auth.Session) error {
	if !sess.Authenticated() {
		return apperrors.Unauthorized("syncing from the server requires a session")
	}

	fetch := sync.OnceValues(func() (*syncer.RemoteUser, error) {
		return r.syncer.FetchUser(ctx, sess)
	})
	if err := r.cart.pull(ctx, sess, nil, fetch); err != nil {
		return err
	}
	return r.wishlist.pull(ctx, sess, nil, fetch)
}

func (r *Reconciler) reconcile(
	ctx context.Context,
	sess auth.Session,
	c *collection,
	fetch func() (*syncer.RemoteUser, error),
	pushed *int,
	push func(domain.LineItem) syncer.Result,
) (Outcome, error) {
	local := c.store.Snapshot().Items
	if len(local) == 0 {
		if err := c.pull(ctx, sess, nil, fetch); err != nil {
			return OutcomeSkipped, err
		}
		return OutcomePulled, nil
	}

	c.begin()
	for _, item := range local {
		res := push(item)
		if !res.Success {
			msg := res.Error
			if msg == "" {
				msg = fmt.Sprintf("push of %s failed", item.ID)
			}
			c.end(errors.New(msg))
			return OutcomeSkipped, syncFailed(msg, res.Err)
		}
		*pushed++
	}
	c.end(nil)
	return OutcomePushed, nil
}

func (r *Reconciler) publish(ctx context.Context, sess auth.Session, res Reconciliation, err error) {
	data := event.ReconciledData{
		UserID:        sess.UserID,
		Cart:          string(res.Cart),
		Wishlist:      string(res.Wishlist),
		CartItems:     r.cart.Snapshot().ItemCount,
		WishlistItems: r.wishlist.Snapshot().ItemCount,
	}
	if err != nil {
		data.Error = apperrors.Message(err)
	}
	if perr := r.events.PublishReconciled(ctx, data); perr != nil {
		r.logger.ErrorContext(ctx, "failed to publish sync.reconciled event",
			slog.String("user_id", sess.UserID),
			slog.String("error", perr.Error()),
		)
	}
}
