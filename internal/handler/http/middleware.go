package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httputil"
	"github.com/utafrali/EcommerceGo/storefront/pkg/logger"
)

type contextKey string

const sessionKey contextKey = "session"

// SessionInspector turns an Authorization header into a session.
// *auth.Inspector satisfies it.
type SessionInspector interface {
	FromHeader(header string) (auth.Session, error)
}

// Session resolves the caller's session from the Authorization header and
// stores it in the request context. A missing header is an anonymous
// session. A header that does not yield a session is rejected with 401.
func Session(inspector SessionInspector) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := inspector.FromHeader(r.Header.Get("Authorization"))
			if err != nil {
				code := "UNAUTHORIZED"
				if errors.Is(err, auth.ErrTokenExpired) {
					code = "TOKEN_EXPIRED"
				}
				httputil.WriteJSON(w, http.StatusUnauthorized, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:      code,
						Message:   err.Error(),
						RequestID: logger.CorrelationIDFromContext(r.Context()),
					},
				})
				return
			}

			ctx := context.WithValue(r.Context(), sessionKey, sess)
			if sess.UserID != "" {
				ctx = logger.WithUserID(ctx, sess.UserID)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// sessionFromContext returns the session stored by Session, or an anonymous
// one.
func sessionFromContext(ctx context.Context) auth.Session {
	if sess, ok := ctx.Value(sessionKey).(auth.Session); ok {
		return sess
	}
	return auth.Anonymous()
}

// ContentTypeJSON enforces that requests with a body have Content-Type: application/json.
func ContentTypeJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.ContentLength > 0 || r.Method == http.MethodPost || r.Method == http.MethodPut {
			ct := r.Header.Get("Content-Type")
			if ct != "" && !strings.HasPrefix(ct, "application/json") {
				httputil.WriteJSON(w, http.StatusUnsupportedMediaType, httputil.Response{
					Error: &httputil.ErrorResponse{
						Code:    "UNSUPPORTED_MEDIA_TYPE",
						Message: "Content-Type must be application/json",
					},
				})
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}
