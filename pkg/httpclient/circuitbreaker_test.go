package httpclient

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

// fakeDoer returns a canned outcome and counts invocations.
type fakeDoer struct {
	calls int32
	err   atomic.Value // error
}

func (f *fakeDoer) setErr(err error) { f.err.Store(&err) }

func (f *fakeDoer) Do(_ context.Context, _ *http.Request) (*http.Response, error) {
	atomic.AddInt32(&f.calls, 1)
	if v, ok := f.err.Load().(*error); ok && *v != nil {
		return nil, *v
	}
	return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(strings.NewReader("{}"))}, nil
}

func testBreakerConfig(name string) CircuitBreakerConfig {
	return CircuitBreakerConfig{
		Name:         name,
		MaxRequests:  1,
		Interval:     time.Minute,
		Timeout:      50 * time.Millisecond,
		FailureRatio: 0.5,
		MinRequests:  3,
	}
}

func newRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://backend.test/api/users/me", http.NoBody)
	require.NoError(t, err)
	return req
}

func TestCircuitBreaker_PassesThroughSuccess(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	cb := NewCircuitBreakerClient(New(testConfig()), testBreakerConfig("cb-pass"), newTestLogger())

	resp, err := get(context.Background(), cb, server.URL)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_TripsOnTransientFailures(t *testing.T) {
	doer := &fakeDoer{}
	doer.setErr(&apperrors.RemoteError{Op: "get-user", Status: http.StatusServiceUnavailable, Retryable: true})
	cb := NewCircuitBreakerClient(doer, testBreakerConfig("cb-trip"), newTestLogger())

	for i := 0; i < 3; i++ {
		_, err := cb.Do(context.Background(), newRequest(t))
		require.Error(t, err)
	}
	assert.Equal(t, gobreaker.StateOpen, cb.State())

	_, err := cb.Do(WithOperation(context.Background(), "get-user"), newRequest(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)

	var rerr *apperrors.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Retryable)
	assert.Equal(t, "get-user", rerr.Op)
	assert.Equal(t, int32(3), atomic.LoadInt32(&doer.calls), "open breaker must not reach the backend")
}

func TestCircuitBreaker_ClientErrorsDoNotTrip(t *testing.T) {
	doer := &fakeDoer{}
	doer.setErr(&apperrors.RemoteError{Op: "add-to-cart", Status: http.StatusBadRequest, Message: "bad"})
	cb := NewCircuitBreakerClient(doer, testBreakerConfig("cb-4xx"), newTestLogger())

	for i := 0; i < 10; i++ {
		_, err := cb.Do(context.Background(), newRequest(t))
		var rerr *apperrors.RemoteError
		require.ErrorAs(t, err, &rerr)
		assert.Equal(t, http.StatusBadRequest, rerr.Status)
	}
	assert.Equal(t, gobreaker.StateClosed, cb.State())
	assert.Equal(t, int32(10), atomic.LoadInt32(&doer.calls))
}

func TestCircuitBreaker_HalfOpenRecovers(t *testing.T) {
	doer := &fakeDoer{}
	doer.setErr(&apperrors.RemoteError{Op: "get-user", Network: true, Retryable: true})
	cb := NewCircuitBreakerClient(doer, testBreakerConfig("cb-recover"), newTestLogger())

	for i := 0; i < 3; i++ {
		_, _ = cb.Do(context.Background(), newRequest(t))
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())

	time.Sleep(80 * time.Millisecond)
	assert.Equal(t, gobreaker.StateHalfOpen, cb.State())

	doer.setErr(nil)
	resp, err := cb.Do(context.Background(), newRequest(t))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, gobreaker.StateClosed, cb.State())
}

func TestCircuitBreaker_RejectsWhileOpen(t *testing.T) {
	doer := &fakeDoer{}
	doer.setErr(&apperrors.RemoteError{Op: "get-user", Status: http.StatusBadGateway, Retryable: true})
	cb := NewCircuitBreakerClient(doer, testBreakerConfig("cb-reject"), newTestLogger())

	for i := 0; i < 3; i++ {
		_, _ = cb.Do(context.Background(), newRequest(t))
	}
	require.Equal(t, gobreaker.StateOpen, cb.State())
	calls := atomic.LoadInt32(&doer.calls)

	_, err := cb.Do(WithOperation(context.Background(), "get-user"), newRequest(t))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCircuitOpen))

	var rerr *apperrors.RemoteError
	require.ErrorAs(t, err, &rerr)
	assert.True(t, rerr.Retryable)
	assert.Equal(t, "get-user", rerr.Op)
	assert.Equal(t, calls, atomic.LoadInt32(&doer.calls), "open breaker does not reach the backend")
	assert.Equal(t, float64(1), testutil.ToFloat64(circuitBreakerRejectedTotal.WithLabelValues("cb-reject")))
}

func TestCircuitBreaker_Post(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.WriteHeader(http.StatusCreated)
	}))
	defer server.Close()

	cb := NewCircuitBreakerClient(New(testConfig()), testBreakerConfig("cb-post"), newTestLogger())

	resp, err := post(context.Background(), cb, server.URL, `{}`)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}
