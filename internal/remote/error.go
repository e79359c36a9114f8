package remote

import (
	"fmt"
	"net/http"
	"strings"
)

// Error is a failed vendor API call. The status code drives the retry
// and re-authentication decisions upstream.
type Error struct {
	StatusCode int
	Detail     string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return fmt.Sprintf("remote api: status %d", e.StatusCode)
	}
	return fmt.Sprintf("remote api: status %d: %s", e.StatusCode, e.Detail)
}

// RateLimited reports whether the vendor throttled the call.
func (e *Error) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests ||
		strings.Contains(e.Detail, "TOO_MANY_REQUESTS")
}

// Unauthorized reports whether the session or token was rejected.
func (e *Error) Unauthorized() bool {
	return e.StatusCode == http.StatusUnauthorized
}
