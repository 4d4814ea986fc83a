package httpx

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRequestFailed is the single failure kind reported by the transport. It
// matches both network failures and non-2xx responses.
var ErrRequestFailed = errors.New("httpx: request failed")

// HTTPError represents a non-2xx HTTP response returned by the agent.
type HTTPError struct {
	StatusCode int
	Body       []byte
	Header     http.Header
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return fmt.Sprintf("http error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Is reports HTTPError as a RequestFailed error.
func (e *HTTPError) Is(target error) bool {
	return target == ErrRequestFailed
}

// NotFound reports whether the agent answered 404.
func (e *HTTPError) NotFound() bool {
	return e != nil && e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err wraps a 404 answer from the agent.
func IsNotFound(err error) bool {
	var httpErr *HTTPError
	return errors.As(err, &httpErr) && httpErr.NotFound()
}

// StatusCode extracts the HTTP status from err when it wraps an HTTPError.
func StatusCode(err error) (int, bool) {
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return httpErr.StatusCode, true
	}
	return 0, false
}
