package syncer

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/storefront/pkg/logger"
	"github.com/utafrali/EcommerceGo/storefront/pkg/tracing"
)

const tracerName = "github.com/utafrali/EcommerceGo/storefront/internal/syncer"

// Result is the uniform outcome of a sync call. Err carries the classified
// cause of a failure and is not serialized.
type Result struct {
	Success bool   `json:"success"`
	Queued  bool   `json:"queued,omitempty"`
	Error   string `json:"error,omitempty"`
	Err     error  `json:"-"`
}

func ok(queued bool) Result {
	return Result{Success: true, Queued: queued}
}

func failed(err error) Result {
	return Result{Error: apperrors.Message(err), Err: err}
}

// Runner executes a remote call, possibly deferring it while offline.
type Runner interface {
	Run(ctx context.Context, name string, call httpclient.Call) (queued bool, err error)
}

// Adapter translates local mutation intents into at most one remote call.
// It never returns an error for a classified failure; the Result says what
// happened.
type Adapter struct {
	remote *Remote
	runner Runner
	online httpclient.Connectivity
	logger *slog.Logger
	budget time.Duration
}

// NewAdapter creates a sync adapter.
func NewAdapter(remote *Remote, runner Runner, online httpclient.Connectivity, logger *slog.Logger) *Adapter {
	return &Adapter{
		remote: remote,
		runner: runner,
		online: online,
		logger: logger,
	}
}

// WithCallBudget returns a copy of the adapter whose remote calls run on a
// context detached from the caller's deadline and cancellation, bounded by
// d instead. A sync that has started then always gets its full retry policy.
func (a *Adapter) WithCallBudget(d time.Duration) *Adapter {
	cpy := *a
	cpy.budget = d
	return &cpy
}

func (a *Adapter) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.budget <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(context.WithoutCancel(ctx), a.budget)
}

type addToCartPayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Quantity  int     `json:"quantity"`
	Image     string  `json:"image,omitempty"`
}

type addToWishlistPayload struct {
	ProductID string  `json:"productId"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Image     string  `json:"image,omitempty"`
}

type removePayload struct {
	ProductID string `json:"productId"`
}

type updateQuantityPayload struct {
	ProductID string `json:"productId"`
	Quantity  int    `json:"quantity"`
}

// AddToCart mirrors a cart add.
func (a *Adapter) AddToCart(ctx context.Context, sess auth.Session, item domain.LineItem) Result {
	return a.send(ctx, sess, IntentAddToCart, addToCartPayload{
		ProductID: item.ID,
		Name:      item.Name,
		Price:     item.Price,
		Quantity:  item.Quantity,
		Image:     item.Image,
	})
}

// RemoveFromCart mirrors a cart removal.
func (a *Adapter) RemoveFromCart(ctx context.Context, sess auth.Session, id string) Result {
	return a.send(ctx, sess, IntentRemoveFromCart, removePayload{ProductID: id})
}

// UpdateCartQuantity mirrors a cart quantity change.
func (a *Adapter) UpdateCartQuantity(ctx context.Context, sess auth.Session, id string, quantity int) Result {
	return a.send(ctx, sess, IntentUpdateCartQuantity, updateQuantityPayload{ProductID: id, Quantity: quantity})
}

// AddToWishlist mirrors a wishlist add.
func (a *Adapter) AddToWishlist(ctx context.Context, sess auth.Session, item domain.LineItem) Result {
	return a.send(ctx, sess, IntentAddToWishlist, addToWishlistPayload{
		ProductID: item.ID,
		Name:      item.Name,
		Price:     item.Price,
		Image:     item.Image,
	})
}

// RemoveFromWishlist mirrors a wishlist removal.
func (a *Adapter) RemoveFromWishlist(ctx context.Context, sess auth.Session, id string) Result {
	return a.send(ctx, sess, IntentRemoveFromWishlist, removePayload{ProductID: id})
}

// FetchUser reads the current user record for reconciliation. Reads are
// never deferred: while offline it fails with a retryable network error.
func (a *Adapter) FetchUser(ctx context.Context, sess auth.Session) (*RemoteUser, error) {
	if !sess.Authenticated() {
		return nil, apperrors.Unauthorized("fetching the user record requires a session")
	}
	if !a.online.Online() {
		return nil, &apperrors.RemoteError{Op: opGetUser, Network: true, Retryable: true, Message: "offline"}
	}
	ctx, cancel := a.callContext(ctx)
	defer cancel()
	return a.remote.FetchUser(ctx, sess)
}

func (a *Adapter) send(ctx context.Context, sess auth.Session, intent Intent, payload any) (res Result) {
	if !sess.Authenticated() {
		return ok(false)
	}

	ctx, span := tracing.Start(ctx, tracerName, "sync."+string(intent),
		attribute.String("sync.intent", string(intent)),
	)
	defer func() {
		span.SetAttributes(attribute.Bool("sync.queued", res.Queued))
		tracing.End(span, res.Err)
	}()

	call, err := a.remote.Mutation(sess, intent, payload)
	if err != nil {
		return failed(err)
	}

	callCtx, cancel := a.callContext(ctx)
	defer cancel()
	queued, err := a.runner.Run(callCtx, string(intent), call)
	if err != nil {
		logger.WithContext(ctx, a.logger).WarnContext(ctx, "remote sync failed",
			slog.String("operation", string(intent)),
			slog.Bool("retryable", apperrors.IsRetryable(err)),
			slog.String("error", err.Error()),
		)
		return failed(err)
	}
	return ok(queued)
}
