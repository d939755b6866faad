package syncer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/utafrali/EcommerceGo/storefront/internal/auth"
	"github.com/utafrali/EcommerceGo/storefront/internal/domain"
	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
	"github.com/utafrali/EcommerceGo/storefront/pkg/httpclient"
)

// Intent names a remote mutation.
type Intent string

const (
	IntentAddToCart          Intent = "add-to-cart"
	IntentRemoveFromCart     Intent = "remove-from-cart"
	IntentUpdateCartQuantity Intent = "update-cart-quantity"
	IntentAddToWishlist      Intent = "add-to-wishlist"
	IntentRemoveFromWishlist Intent = "remove-from-wishlist"

	opGetUser = "get-user"
)

var endpoints = map[Intent]string{
	IntentAddToCart:          "/api/cart/add",
	IntentRemoveFromCart:     "/api/cart/remove",
	IntentUpdateCartQuantity: "/api/cart/update",
	IntentAddToWishlist:      "/api/wishlist/add",
	IntentRemoveFromWishlist: "/api/wishlist/remove",
}

const userPath = "/api/users/me"

// Endpoint returns the path an intent is posted to.
func Endpoint(intent Intent) string {
	return endpoints[intent]
}

// RemoteUser is the current user record held by the storefront backend.
type RemoteUser struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Cart     []domain.LineItem `json:"cart"`
	Wishlist []domain.LineItem `json:"wishlist"`
}

type userEnvelope struct {
	User *RemoteUser `json:"user"`
}

type mutationEnvelope struct {
	Success *bool  `json:"success"`
	Message string `json:"message"`
}

// Remote issues requests against the storefront backend.
type Remote struct {
	baseURL string
	doer    httpclient.Doer
}

// NewRemote creates a client for the backend at baseURL. doer is normally a
// circuit breaker around the retrying client.
func NewRemote(baseURL string, doer httpclient.Doer) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		doer:    doer,
	}
}

// Mutation builds the self-contained call for intent. The payload is encoded
// once, so a replay from the offline queue sends exactly the same body.
func (r *Remote) Mutation(sess auth.Session, intent Intent, payload any) (httpclient.Call, error) {
	path, ok := endpoints[intent]
	if !ok {
		return nil, fmt.Errorf("unknown intent %q", intent)
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", intent, err)
	}
	url := r.baseURL + path
	header := sess.AuthorizationHeader()

	return func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", intent, err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", header)

		resp, err := r.doer.Do(httpclient.WithOperation(ctx, string(intent)), req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		return checkMutation(resp, string(intent))
	}, nil
}

// FetchUser reads the current user record.
func (r *Remote) FetchUser(ctx context.Context, sess auth.Session) (*RemoteUser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+userPath, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create %s request: %w", opGetUser, err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", sess.AuthorizationHeader())

	resp, err := r.doer.Do(httpclient.WithOperation(ctx, opGetUser), req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env userEnvelope
	if err := json.NewDecoder(io.LimitReader(resp.Body, 4<<20)).Decode(&env); err != nil {
		return nil, &apperrors.RemoteError{Op: opGetUser, Status: resp.StatusCode, Message: "malformed user record", Err: err}
	}
	if env.User == nil {
		return nil, apperrors.Unauthorized("session is not recognized by the storefront backend")
	}
	return env.User, nil
}

// checkMutation treats a 2xx reply whose body says "success": false as a
// terminal rejection. Bodies without the flag count as success.
func checkMutation(resp *http.Response, op string) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &apperrors.RemoteError{Op: op, Network: true, Retryable: true, Err: err}
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}

	var env mutationEnvelope
	if json.Unmarshal(data, &env) != nil {
		return nil
	}
	if env.Success != nil && !*env.Success {
		msg := env.Message
		if msg == "" {
			msg = op + " rejected by the storefront backend"
		}
		return &apperrors.RemoteError{Op: op, Message: msg}
	}
	return nil
}
