package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// RemoteError is the classified outcome of a failed call to a remote
// endpoint. Network is set when no HTTP response was obtained; Status holds
// the last HTTP status otherwise.
type RemoteError struct {
	Op        string
	Status    int
	Network   bool
	Retryable bool
	Attempts  int
	Message   string
	Err       error
}

func (e *RemoteError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	switch {
	case e.Status > 0:
		return fmt.Sprintf("%s: status %d after %d attempt(s): %s", e.Op, e.Status, e.Attempts, msg)
	case e.Network:
		return fmt.Sprintf("%s: network error after %d attempt(s): %s", e.Op, e.Attempts, msg)
	default:
		return fmt.Sprintf("%s: %s", e.Op, msg)
	}
}

func (e *RemoteError) Unwrap() error {
	return e.Err
}

// UserMessage returns the message suitable for surfacing to a shopper.
func (e *RemoteError) UserMessage() string {
	if e.Message != "" {
		return e.Message
	}
	if e.Network {
		return "network error, please check your connection"
	}
	if e.Status > 0 {
		return http.StatusText(e.Status)
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "request failed"
}

// IsRetryableStatus reports whether an HTTP status is a transient failure:
// any 5xx, 408 Request Timeout or 429 Too Many Requests.
func IsRetryableStatus(status int) bool {
	return status >= 500 || status == http.StatusRequestTimeout || status == http.StatusTooManyRequests
}

// IsRetryable reports whether err is a classified transient failure.
func IsRetryable(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Retryable
	}
	return false
}

// IsNetwork reports whether err is a classified network failure.
func IsNetwork(err error) bool {
	var re *RemoteError
	if errors.As(err, &re) {
		return re.Network
	}
	return false
}

// Message extracts the most user-presentable message from err.
func Message(err error) string {
	if err == nil {
		return ""
	}
	var re *RemoteError
	if errors.As(err, &re) {
		return re.UserMessage()
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}
