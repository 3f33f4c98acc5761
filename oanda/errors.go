package oanda

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized marks a 401/403 from the provider. The credential is
	// shared by every job, so callers treat this as fatal to the whole run.
	ErrUnauthorized = errors.New("oanda: unauthorized")

	// ErrUnavailable marks a page fetch that kept failing transiently until
	// the retry ceiling was reached.
	ErrUnavailable = errors.New("oanda: provider unavailable")

	// ErrMalformedRecord marks a single candle record that cannot be
	// normalized. It is scoped to that record; the rest of the page stands.
	ErrMalformedRecord = errors.New("oanda: malformed candle record")
)

// APIError is a non-200 response from the OANDA API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("oanda: http %d: %s", e.StatusCode, e.Body)
}

// transient reports whether the failure is worth retrying: rate limits and
// server-side errors are, other client errors are not.
func (e *APIError) transient() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}

// retryable classifies an error from a single page fetch. Network errors,
// 5xx/429 responses and unparseable envelopes are retried; ErrUnauthorized
// and remaining 4xx responses are not.
func retryable(err error) bool {
	if errors.Is(err, ErrUnauthorized) {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.transient()
	}
	// Transport failures and malformed envelopes are frequently transient
	// provider-side issues.
	return true
}
