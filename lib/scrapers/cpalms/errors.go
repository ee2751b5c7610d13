package cpalms

import (
	"fmt"
	"net/http"
)

var retryableStatuses = map[int]bool{
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

func IsRetryableStatus(code int) bool {
	return retryableStatuses[code]
}

// TransientFetchError is a failure that may succeed if retried: network errors,
// timeouts and retryable http statuses.
type TransientFetchError struct {
	Url string
	// zero if no response was received
	StatusCode int
	// number of attempts made before giving up, set by Client.Fetch
	Attempts int
	Err      error
}

func (e *TransientFetchError) Error() string {
	msg := fmt.Sprintf("transient fetch error for %s", e.Url)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(": http %d", e.StatusCode)
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %s", e.Err)
	}
	if e.Attempts > 0 {
		msg += fmt.Sprintf(" (after %d attempts)", e.Attempts)
	}
	return msg
}

func (e *TransientFetchError) Unwrap() error {
	return e.Err
}

// FatalFetchError is a failure that retrying will not fix: malformed urls
// and non-retryable http statuses.
type FatalFetchError struct {
	Url        string
	StatusCode int
	Err        error
}

func (e *FatalFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fatal fetch error for %s: http %d", e.Url, e.StatusCode)
	}
	return fmt.Sprintf("fatal fetch error for %s: %s", e.Url, e.Err)
}

func (e *FatalFetchError) Unwrap() error {
	return e.Err
}

// ParseError is only returned for documents that cannot be read as html at all,
// a page missing the expected sections is not a parse error.
type ParseError struct {
	Url    string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse %s: %s: %s", e.Url, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse %s: %s", e.Url, e.Reason)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}
