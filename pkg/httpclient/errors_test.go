package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// makeResponse creates an *http.Response with the given status code and body string.
func makeResponse(statusCode int, body string) *http.Response {
	return &http.Response{
		StatusCode: statusCode,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestParseResponseError_BodyShapes(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "flat message", body: `{"success":false,"message":"out of stock"}`, want: "out of stock"},
		{name: "error envelope", body: `{"error":{"code":"NOT_FOUND","message":"product not found"}}`, want: "product not found"},
		{name: "error string", body: `{"error":"token expired"}`, want: "token expired"},
		{name: "errors list", body: `{"errors":[{"message":"You are not allowed to perform this action."}]}`, want: "You are not allowed to perform this action."},
		{name: "plain text", body: "  upstream exploded \n", want: "upstream exploded"},
		{name: "empty json", body: `{}`, want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rerr := ParseResponseError(makeResponse(http.StatusBadRequest, tt.body), "add-to-cart")
			require.NotNil(t, rerr)
			assert.Equal(t, tt.want, rerr.Message)
			assert.Equal(t, "add-to-cart", rerr.Op)
			assert.Equal(t, http.StatusBadRequest, rerr.Status)
		})
	}
}

func TestParseResponseError_Classification(t *testing.T) {
	assert.True(t, ParseResponseError(makeResponse(http.StatusInternalServerError, ""), "op").Retryable)
	assert.True(t, ParseResponseError(makeResponse(http.StatusServiceUnavailable, ""), "op").Retryable)
	assert.True(t, ParseResponseError(makeResponse(http.StatusTooManyRequests, ""), "op").Retryable)
	assert.True(t, ParseResponseError(makeResponse(http.StatusRequestTimeout, ""), "op").Retryable)
	assert.False(t, ParseResponseError(makeResponse(http.StatusUnauthorized, ""), "op").Retryable)
	assert.False(t, ParseResponseError(makeResponse(http.StatusNotFound, ""), "op").Retryable)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("connection reset mid-body") }

func TestParseResponseError_UnreadableBody(t *testing.T) {
	resp := &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(failingReader{})}

	rerr := ParseResponseError(resp, "get-user")
	require.NotNil(t, rerr)
	assert.True(t, rerr.Retryable)
	assert.EqualError(t, rerr.Err, "connection reset mid-body")
}
