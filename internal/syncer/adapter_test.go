package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
	"github.com/utafrali/EcommerceGo/storefront/pkg/connectivity"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"
	"github.com/utafrali/EcommerceGo/storefront/pkg/offline"
)

// ---------------------------------------------------------------------------
// fake backend
// ---------------------------------------------------------------------------

type capturedRequest struct {
	Method string
	Path   string
	Auth   string
	Body   map[string]any
}

type fakeBackend struct {
	*httptest.Server
	mu       sync.Mutex
	requests []capturedRequest
	hits     int32
	status   int
	reply    string
}

func newFakeBackend(t *testing.T, status int, reply string) *fakeBackend {
	t.Helper()
	b := &fakeBackend{status: status, reply: reply}
	b.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&b.hits, 1)
		var body map[string]any
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			_ = json.Unmarshal(data, &body)
		}
		b.mu.Lock()
		b.requests = append(b.requests, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Auth:   r.Header.Get("Authorization"),
			Body:   body,
		})
		b.mu.Unlock()

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(b.status)
		_, _ = w.Write([]byte(b.reply))
	}))
	t.Cleanup(b.Close)
	return b
}

func (b *fakeBackend) captured() []capturedRequest {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]capturedRequest(nil), b.requests...)
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func fastRetry() httpclient.Config {
	return httpclient.Config{
		MaxRetries:      3,
		BaseDelay:       time.Millisecond,
		MaxDelay:        5 * time.Millisecond,
		BackoffFactor:   2,
		Timeout:         2 * time.Second,
		MaxConnsPerHost: 4,
	}
}

type harness struct {
	adapter *Adapter
	monitor *connectivity.Monitor
	queue   *offline.Queue
}

func newHarness(t *testing.T, baseURL string, online bool) *harness {
	t.Helper()
	logger := newTestLogger()
	monitor := connectivity.NewMonitor(online, logger)
	queue := offline.New(monitor, logger, offline.Options{})
	t.Cleanup(queue.Close)

	remote := NewRemote(baseURL, httpclient.New(fastRetry()))
	runner := httpclient.NewOfflineClient(monitor, queue, logger)
	return &harness{
		adapter: NewAdapter(remote, runner, monitor, logger),
		monitor: monitor,
		queue:   queue,
	}
}

var (
	signedIn = auth.Session{Token: "tok-123", UserID: "user-1"}
	shirt    = domain.LineItem{ID: "p1", Name: "Shirt", Price: 10, Quantity: 2, Image: "https://img.example.com/p1.jpg"}
)

// ---------------------------------------------------------------------------
// mutations
// ---------------------------------------------------------------------------

func TestAdapter_UnauthenticatedIsLocalOnly(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"success":true}`)
	h := newHarness(t, backend.URL, true)

	res := h.adapter.AddToCart(context.Background(), auth.Anonymous(), shirt)
	assert.True(t, res.Success)
	assert.False(t, res.Queued)
	assert.Zero(t, atomic.LoadInt32(&backend.hits))
}

func TestAdapter_AddToCartRequest(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"success":true,"cart":[]}`)
	h := newHarness(t, backend.URL, true)

	res := h.adapter.AddToCart(context.Background(), signedIn, shirt)
	require.True(t, res.Success, res.Error)

	reqs := backend.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/api/cart/add", reqs[0].Path)
	assert.Equal(t, "JWT tok-123", reqs[0].Auth)
	assert.Equal(t, map[string]any{
		"productId": "p1",
		"name":      "Shirt",
		"price":     10.0,
		"quantity":  2.0,
		"image":     "https://img.example.com/p1.jpg",
	}, reqs[0].Body)
}

func TestAdapter_EndpointMapping(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{}`)
	h := newHarness(t, backend.URL, true)
	ctx := context.Background()

	require.True(t, h.adapter.RemoveFromCart(ctx, signedIn, "p1").Success)
	require.True(t, h.adapter.UpdateCartQuantity(ctx, signedIn, "p1", 4).Success)
	require.True(t, h.adapter.AddToWishlist(ctx, signedIn, shirt).Success)
	require.True(t, h.adapter.RemoveFromWishlist(ctx, signedIn, "p1").Success)

	reqs := backend.captured()
	require.Len(t, reqs, 4)
	assert.Equal(t, "/api/cart/remove", reqs[0].Path)
	assert.Equal(t, map[string]any{"productId": "p1"}, reqs[0].Body)
	assert.Equal(t, "/api/cart/update", reqs[1].Path)
	assert.Equal(t, map[string]any{"productId": "p1", "quantity": 4.0}, reqs[1].Body)
	assert.Equal(t, "/api/wishlist/add", reqs[2].Path)
	assert.NotContains(t, reqs[2].Body, "quantity")
	assert.Equal(t, "/api/wishlist/remove", reqs[3].Path)
}

func TestAdapter_SuccessFalseIsTerminal(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"success":false,"message":"Product is out of stock"}`)
	h := newHarness(t, backend.URL, true)

	res := h.adapter.AddToCart(context.Background(), signedIn, shirt)
	assert.False(t, res.Success)
	assert.Equal(t, "Product is out of stock", res.Error)
	assert.False(t, apperrors.IsRetryable(res.Err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.hits))
}

func TestAdapter_ClientErrorNotRetried(t *testing.T) {
	backend := newFakeBackend(t, http.StatusUnauthorized, `{"errors":[{"message":"You are not allowed to perform this action."}]}`)
	h := newHarness(t, backend.URL, true)

	res := h.adapter.RemoveFromWishlist(context.Background(), signedIn, "p1")
	assert.False(t, res.Success)
	assert.Equal(t, "You are not allowed to perform this action.", res.Error)
	assert.Equal(t, int32(1), atomic.LoadInt32(&backend.hits))
	assert.Zero(t, h.queue.Len(), "failed inline calls are not queued")
}

func TestAdapter_ServerErrorExhaustsRetries(t *testing.T) {
	backend := newFakeBackend(t, http.StatusInternalServerError, `{"message":"boom"}`)
	h := newHarness(t, backend.URL, true)

	res := h.adapter.AddToCart(context.Background(), signedIn, shirt)
	assert.False(t, res.Success)
	assert.Equal(t, "boom", res.Error)
	assert.True(t, apperrors.IsRetryable(res.Err))
	assert.Equal(t, int32(4), atomic.LoadInt32(&backend.hits))
	assert.Zero(t, h.queue.Len())
}

func TestAdapter_CallBudgetOutlivesCallerDeadline(t *testing.T) {
	var hits int32
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) == 1 {
			select {
			case <-r.Context().Done():
			case <-time.After(2 * time.Second):
			}
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	t.Cleanup(backend.Close)

	logger := newTestLogger()
	monitor := connectivity.NewMonitor(true, logger)
	queue := offline.New(monitor, logger, offline.Options{})
	t.Cleanup(queue.Close)

	cfg := fastRetry()
	cfg.Timeout = 100 * time.Millisecond
	remote := NewRemote(backend.URL, httpclient.New(cfg))
	adapter := NewAdapter(remote, httpclient.NewOfflineClient(monitor, queue, logger), monitor, logger).
		WithCallBudget(cfg.Budget())

	// The caller's deadline equals one attempt timeout.
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timeout)
	defer cancel()

	res := adapter.AddToCart(ctx, signedIn, shirt)
	require.True(t, res.Success, res.Error)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits), "timed out attempt was retried")
}

func TestAdapter_WithoutBudgetFollowsCallerDeadline(t *testing.T) {
	backend := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		<-r.Context().Done()
	}))
	t.Cleanup(backend.Close)

	h := newHarness(t, backend.URL, true)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	res := h.adapter.AddToCart(ctx, signedIn, shirt)
	require.False(t, res.Success)
	assert.True(t, apperrors.IsNetwork(res.Err))
}

func TestAdapter_OfflineQueuesAndReplays(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"success":true}`)
	h := newHarness(t, backend.URL, false)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		res := h.adapter.AddToWishlist(ctx, signedIn, domain.LineItem{ID: id, Name: id, Price: 1})
		require.True(t, res.Success)
		require.True(t, res.Queued)
	}
	assert.Zero(t, atomic.LoadInt32(&backend.hits))
	assert.Equal(t, 3, h.queue.Len())

	h.monitor.SetOnline(true)
	require.Eventually(t, func() bool { return h.queue.Len() == 0 }, 2*time.Second, 5*time.Millisecond)

	reqs := backend.captured()
	require.Len(t, reqs, 3)
	for i, id := range []string{"a", "b", "c"} {
		assert.Equal(t, id, reqs[i].Body["productId"])
		assert.Equal(t, "JWT tok-123", reqs[i].Auth)
	}
}

// ---------------------------------------------------------------------------
// user record
// ---------------------------------------------------------------------------

func TestAdapter_FetchUser(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"user":{"id":"user-1","email":"a@example.com",
		"cart":[{"id":"p1","name":"Shirt","price":10,"quantity":2}],
		"wishlist":[{"id":"w1","name":"Dress","price":40}]}}`)
	h := newHarness(t, backend.URL, true)

	user, err := h.adapter.FetchUser(context.Background(), signedIn)
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	require.Len(t, user.Cart, 1)
	assert.Equal(t, 2, user.Cart[0].Quantity)
	require.Len(t, user.Wishlist, 1)
	assert.Equal(t, "w1", user.Wishlist[0].ID)

	reqs := backend.captured()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodGet, reqs[0].Method)
	assert.Equal(t, "/api/users/me", reqs[0].Path)
	assert.Equal(t, "JWT tok-123", reqs[0].Auth)
}

func TestAdapter_FetchUserNullUser(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{"user":null}`)
	h := newHarness(t, backend.URL, true)

	_, err := h.adapter.FetchUser(context.Background(), signedIn)
	assert.ErrorIs(t, err, apperrors.ErrUnauthorized)
}

func TestAdapter_FetchUserOffline(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{}`)
	h := newHarness(t, backend.URL, false)

	_, err := h.adapter.FetchUser(context.Background(), signedIn)
	require.Error(t, err)
	assert.True(t, apperrors.IsNetwork(err))
	assert.True(t, apperrors.IsRetryable(err))
	assert.Zero(t, atomic.LoadInt32(&backend.hits))
}

func TestAdapter_FetchUserRequiresSession(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `{}`)
	h := newHarness(t, backend.URL, true)

	_, err := h.adapter.FetchUser(context.Background(), auth.Anonymous())
	assert.True(t, errors.Is(err, apperrors.ErrUnauthorized))
}

func TestAdapter_FetchUserMalformed(t *testing.T) {
	backend := newFakeBackend(t, http.StatusOK, `<html>`)
	h := newHarness(t, backend.URL, true)

	_, err := h.adapter.FetchUser(context.Background(), signedIn)
	var rerr *apperrors.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, "malformed user record", rerr.Message)
}

func TestEndpoint(t *testing.T) {
	assert.Equal(t, "/api/cart/add", Endpoint(IntentAddToCart))
	assert.Equal(t, "/api/wishlist/remove", Endpoint(IntentRemoveFromWishlist))
	assert.Empty(t, Endpoint(Intent("nope")))
}
