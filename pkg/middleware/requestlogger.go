package middleware

import (
	"log/slog"
	"net/http"

	"github.com/utafrali/EcommerceGo/storefront/pkg/logger"
)

// RequestLogger stores a request-scoped logger, enriched with whatever of
// correlation_id, user_id, trace_id and span_id the context carries, for
// downstream handlers to retrieve with logger.FromContext.
//
// Mount it after RequestLogging, Tracing and any middleware that sets the
// user ID.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			ctx = logger.NewContext(ctx, logger.WithContext(ctx, base))
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// NoStore marks responses as uncacheable. Cart and wishlist views change on
// every mutation.
func NoStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
