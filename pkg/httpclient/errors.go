package httpclient

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/storefront/pkg/errors"
)

// backendErrorBody covers the error shapes returned by the storefront backend:
// a flat message, the `{"error":{"code","message"}}` envelope, and the CMS
// `{"errors":[{"message"}]}` list.
type backendErrorBody struct {
	Message string          `json:"message"`
	Error   json.RawMessage `json:"error"`
	Errors  []struct {
		Message string `json:"message"`
	} `json:"errors"`
}

type errorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx response and turns it into a
// classified RemoteError. The body is fully consumed and closed.
func ParseResponseError(resp *http.Response, op string) *apperrors.RemoteError {
	defer func() { _ = resp.Body.Close() }()

	rerr := &apperrors.RemoteError{
		Op:        op,
		Status:    resp.StatusCode,
		Retryable: apperrors.IsRetryableStatus(resp.StatusCode),
	}

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20)) // 1 MB limit
	if err != nil {
		rerr.Err = err
		return rerr
	}
	rerr.Message = extractMessage(bodyBytes)
	return rerr
}

func extractMessage(body []byte) string {
	var parsed backendErrorBody
	if json.Unmarshal(body, &parsed) != nil {
		return strings.TrimSpace(string(body))
	}

	if len(parsed.Error) > 0 {
		var env errorEnvelope
		if json.Unmarshal(parsed.Error, &env) == nil && env.Message != "" {
			return env.Message
		}
		var flat string
		if json.Unmarshal(parsed.Error, &flat) == nil && flat != "" {
			return flat
		}
	}
	if parsed.Message != "" {
		return parsed.Message
	}
	if len(parsed.Errors) > 0 && parsed.Errors[0].Message != "" {
		return parsed.Errors[0].Message
	}
	return ""
}
