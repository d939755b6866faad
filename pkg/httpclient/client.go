package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand/v2"
	"net"
	"net/http"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

const (
	instrumentationName = "github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"

	// jitterFraction bounds the random delay added on top of each backoff step.
	jitterFraction = 0.1
)

// Config holds the retry policy and transport settings of a Client.
type Config struct {
	MaxRetries      int
	BaseDelay       time.Duration
	MaxDelay        time.Duration
	BackoffFactor   float64
	Timeout         time.Duration // per attempt
	MaxConnsPerHost int
}

// DefaultConfig returns the default retry policy: 3 retries, 1s base delay
// doubling up to 10s, 30s per-attempt timeout.
func DefaultConfig() Config {
	return Config{
		MaxRetries:      3,
		BaseDelay:       time.Second,
		MaxDelay:        10 * time.Second,
		BackoffFactor:   2,
		Timeout:         30 * time.Second,
		MaxConnsPerHost: 100,
	}
}

// Budget is the longest a Do call can take under this policy: every attempt
// running into Timeout plus the largest possible backoff between them.
func (c Config) Budget() time.Duration {
	total := time.Duration(c.MaxRetries+1) * c.Timeout
	factor := c.BackoffFactor
	if factor <= 0 {
		factor = 1
	}
	for i := 0; i < c.MaxRetries; i++ {
		wait := time.Duration(float64(c.BaseDelay) * math.Pow(factor, float64(i)) * (1 + jitterFraction))
		if c.MaxDelay > 0 && wait > c.MaxDelay {
			wait = c.MaxDelay
		}
		total += wait
	}
	return total
}

// Doer executes a single logical HTTP call. Client, CircuitBreakerClient and
// test fakes satisfy it.
type Doer interface {
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
}

// Option customizes a Client.
type Option func(*Client)

// WithTracerProvider sets the provider used for client spans. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Client) { c.tracer = tp.Tracer(instrumentationName) }
}

// Client wraps http.Client with bounded retry-with-backoff and failure
// classification.
type Client struct {
	httpClient *http.Client
	config     Config
	tracer     trace.Tracer

	jitter func() float64
	sleep  func(ctx context.Context, d time.Duration) error
}

// New creates a new HTTP client with retry and connection pooling.
func New(cfg Config, opts ...Option) *Client {
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 1
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   cfg.MaxConnsPerHost,
		MaxConnsPerHost:       cfg.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{
		httpClient: &http.Client{Transport: transport},
		config:     cfg,
		tracer:     otel.Tracer(instrumentationName),
		jitter:     rand.Float64, // #nosec G404 -- non-cryptographic jitter for retry backoff
		sleep:      sleepContext,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Backoff returns the wait before retry number attempt (0-based):
// min(base × factor^attempt + jitter, maxDelay), with jitter below 10% of
// the computed step.
func (c *Client) Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	step := float64(c.config.BaseDelay) * math.Pow(c.config.BackoffFactor, float64(attempt))
	step += step * jitterFraction * c.jitter()
	if c.config.MaxDelay > 0 && step > float64(c.config.MaxDelay) {
		return c.config.MaxDelay
	}
	return time.Duration(step)
}

// Do executes req, retrying transient failures. It returns the response for
// any status below 400. Every other outcome is a *apperrors.RemoteError:
// terminal failures (4xx other than 408/429) are returned after the first
// attempt, transient ones once MaxRetries retries are exhausted.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	op := OperationFromContext(ctx)
	if op == "" {
		op = req.Method + " " + req.URL.Path
	}

	ctx, span := c.tracer.Start(ctx, "httpclient.do", trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("url.path", req.URL.Path),
			attribute.String("storefront.operation", op),
		))
	defer span.End()

	var prevWait time.Duration
	for attempt := 0; ; attempt++ {
		if attempt > 0 {
			// Jitter is drawn per retry; never wait less than last time.
			wait := max(c.Backoff(attempt-1), prevWait)
			prevWait = wait
			retriesTotal.WithLabelValues(op).Inc()
			if err := c.sleep(ctx, wait); err != nil {
				rerr := &apperrors.RemoteError{Op: op, Network: true, Retryable: true, Attempts: attempt, Err: err}
				return nil, c.fail(span, rerr)
			}
		}

		resp, err := c.attempt(ctx, req)
		span.SetAttributes(attribute.Int("http.attempts", attempt+1))
		if err != nil {
			attemptsTotal.WithLabelValues(op, "network_error").Inc()
			retryable := isRetryableError(err)
			if retryable && attempt < c.config.MaxRetries && ctx.Err() == nil {
				continue
			}
			rerr := &apperrors.RemoteError{Op: op, Network: true, Retryable: retryable, Attempts: attempt + 1, Err: err}
			return nil, c.fail(span, rerr)
		}

		attemptsTotal.WithLabelValues(op, statusClass(resp.StatusCode)).Inc()
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode < http.StatusBadRequest {
			return resp, nil
		}

		if apperrors.IsRetryableStatus(resp.StatusCode) && attempt < c.config.MaxRetries && ctx.Err() == nil {
			drainAndClose(resp)
			continue
		}

		rerr := ParseResponseError(resp, op)
		rerr.Attempts = attempt + 1
		return nil, c.fail(span, rerr)
	}
}

// attempt performs one round trip bounded by the per-attempt timeout.
func (c *Client) attempt(ctx context.Context, req *http.Request) (*http.Response, error) {
	attemptCtx, cancel := ctx, context.CancelFunc(func() {})
	if c.config.Timeout > 0 {
		attemptCtx, cancel = context.WithTimeout(ctx, c.config.Timeout)
	}

	r := req.Clone(attemptCtx)
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			cancel()
			return nil, fmt.Errorf("rewind request body: %w", err)
		}
		r.Body = body
	}

	resp, err := c.httpClient.Do(r)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

func (c *Client) fail(span trace.Span, err *apperrors.RemoteError) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	span.SetAttributes(
		attribute.Bool("storefront.retryable", err.Retryable),
		attribute.Bool("storefront.network_error", err.Network),
	)
	return err
}

// isRetryableError reports whether a transport error is transient:
// connection refused/reset, broken pipe, unexpected EOF, and timeouts or
// aborts of the attempt.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return true
	case errors.Is(err, syscall.ECONNREFUSED), errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EPIPE), errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH):
		return true
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return true
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	return false
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func drainAndClose(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<16))
	_ = resp.Body.Close()
}

func statusClass(status int) string {
	return fmt.Sprintf("%dxx", status/100)
}

// cancelOnClose releases the per-attempt context once the caller is done
// with the response body.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

type operationKey struct{}

// WithOperation names the logical operation carried by requests issued with
// ctx; it labels metrics, spans and RemoteError.Op.
func WithOperation(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, operationKey{}, op)
}

// OperationFromContext returns the operation name set by WithOperation.
func OperationFromContext(ctx context.Context) string {
	op, _ := ctx.Value(operationKey{}).(string)
	return op
}
