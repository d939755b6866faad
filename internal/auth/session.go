package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMalformedHeader is returned for an Authorization header that is not
	// "Bearer <token>" or "JWT <token>".
	ErrMalformedHeader = errors.New("invalid authorization header format")
	// ErrInvalidToken is returned for a token that cannot be parsed or fails
	// signature verification.
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for a token whose exp claim has passed.
	ErrTokenExpired = errors.New("token expired")
)

// Claims are the fields read from a storefront backend session token.
type Claims struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Session is the caller's authentication state. The zero value is an
// anonymous, local-only session.
type Session struct {
	Token     string
	UserID    string
	Email     string
	ExpiresAt time.Time
}

// Anonymous returns an unauthenticated session.
func Anonymous() Session {
	return Session{}
}

// Authenticated reports whether remote sync applies to this session.
func (s Session) Authenticated() bool {
	return s.Token != ""
}

// AuthorizationHeader is the header value the storefront backend expects.
func (s Session) AuthorizationHeader() string {
	return "JWT " + s.Token
}

// Inspector turns Authorization headers into sessions. Token issuance and
// full verification belong to the storefront backend; with a secret set the
// HMAC signature is checked locally as well.
type Inspector struct {
	secret []byte
	now    func() time.Time
}

// NewInspector creates an inspector. An empty secret skips signature checks.
func NewInspector(secret string) *Inspector {
	i := &Inspector{now: time.Now}
	if secret != "" {
		i.secret = []byte(secret)
	}
	return i
}

// FromHeader parses header. An empty header is an anonymous session and no
// error.
func (i *Inspector) FromHeader(header string) (Session, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return Anonymous(), nil
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || (!strings.EqualFold(parts[0], "bearer") && !strings.EqualFold(parts[0], "jwt")) {
		return Anonymous(), ErrMalformedHeader
	}
	return i.FromToken(strings.TrimSpace(parts[1]))
}

// FromToken builds a session from a raw token.
func (i *Inspector) FromToken(token string) (Session, error) {
	if token == "" {
		return Anonymous(), ErrMalformedHeader
	}

	claims, err := i.parse(token)
	if err != nil {
		return Anonymous(), err
	}

	s := Session{Token: token, UserID: claims.ID, Email: claims.Email}
	if s.UserID == "" {
		s.UserID = claims.Subject
	}
	if claims.ExpiresAt != nil {
		s.ExpiresAt = claims.ExpiresAt.Time
		if !s.ExpiresAt.After(i.now()) {
			return Anonymous(), ErrTokenExpired
		}
	}
	return s, nil
}

func (i *Inspector) parse(token string) (*Claims, error) {
	claims := &Claims{}
	if i.secret == nil {
		if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
		}
		return claims, nil
	}

	// Expiry is checked by the caller against the inspector's clock.
	parser := jwt.NewParser(jwt.WithoutClaimsValidation(), jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}))
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return i.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}
