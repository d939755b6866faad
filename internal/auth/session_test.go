package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

func signToken(t *testing.T, secret string, claims Claims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func validClaims() Claims {
	return Claims{
		ID:    "user-42",
		Email: "ayse@example.com",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(testNow.Add(time.Hour)),
		},
	}
}

func newTestInspector(secret string) *Inspector {
	i := NewInspector(secret)
	i.now = func() time.Time { return testNow }
	return i
}

func TestFromHeader_Empty(t *testing.T) {
	s, err := newTestInspector("").FromHeader("")
	require.NoError(t, err)
	assert.False(t, s.Authenticated())
}

func TestFromHeader_JWTScheme(t *testing.T) {
	token := signToken(t, "whatever", validClaims())

	s, err := newTestInspector("").FromHeader("JWT " + token)
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
	assert.Equal(t, "user-42", s.UserID)
	assert.Equal(t, "ayse@example.com", s.Email)
	assert.Equal(t, "JWT "+token, s.AuthorizationHeader())
}

func TestFromHeader_BearerScheme(t *testing.T) {
	token := signToken(t, "whatever", validClaims())

	s, err := newTestInspector("").FromHeader("bearer " + token)
	require.NoError(t, err)
	assert.True(t, s.Authenticated())
}

func TestFromHeader_SubjectFallback(t *testing.T) {
	claims := validClaims()
	claims.ID = ""
	claims.Subject = "sub-7"

	s, err := newTestInspector("").FromToken(signToken(t, "k", claims))
	require.NoError(t, err)
	assert.Equal(t, "sub-7", s.UserID)
}

func TestFromHeader_Malformed(t *testing.T) {
	for _, header := range []string{"Basic abc", "JWT", "token-without-scheme"} {
		s, err := newTestInspector("").FromHeader(header)
		assert.ErrorIs(t, err, ErrMalformedHeader, header)
		assert.False(t, s.Authenticated())
	}
}

func TestFromToken_Garbage(t *testing.T) {
	_, err := newTestInspector("").FromToken("not.a.jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromToken_Expired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Minute))

	s, err := newTestInspector("").FromToken(signToken(t, "k", claims))
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.False(t, s.Authenticated())
}

func TestFromToken_NoExpiryIsAccepted(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = nil

	s, err := newTestInspector("").FromToken(signToken(t, "k", claims))
	require.NoError(t, err)
	assert.True(t, s.ExpiresAt.IsZero())
}

func TestFromToken_SignatureChecked(t *testing.T) {
	inspector := newTestInspector("right-secret")

	_, err := inspector.FromToken(signToken(t, "right-secret", validClaims()))
	require.NoError(t, err)

	_, err = inspector.FromToken(signToken(t, "wrong-secret", validClaims()))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestFromToken_SignedButExpired(t *testing.T) {
	claims := validClaims()
	claims.ExpiresAt = jwt.NewNumericDate(testNow.Add(-time.Second))

	_, err := newTestInspector("s").FromToken(signToken(t, "s", claims))
	assert.ErrorIs(t, err, ErrTokenExpired)
}
