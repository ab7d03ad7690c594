// Package resilience classifies pipeline failures and provides retry with
// backoff for the conditions that warrant it.
package resilience

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
)

// ErrNotFound marks a 404 for a URL: terminal for that URL, dead-lettered
// by the caller when the document was expected to exist.
var ErrNotFound = errors.New("not found")

// FetchError wraps a failed or rejected fetch. Throttled marks an explicit
// rate-limit signal (429); the caller must back off before retrying.
type FetchError struct {
	URL        string
	StatusCode int
	Throttled  bool
	Err        error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ParseError marks an extraction anomaly: a pattern matched but its numeric
// payload could not be parsed unambiguously. DLQ-worthy, never a silent zero.
type ParseError struct {
	Input  string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %q: %s", e.Input, e.Reason)
}

// IsThrottled reports whether err carries an explicit rate-limit signal.
func IsThrottled(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Throttled
}

// IsTransient returns true if the error (or any error in its chain) matches
// common transient patterns: throttling, 5xx fetch failures, network
// timeouts, connection resets, DNS failures.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		if fe.Throttled || IsTransientHTTPStatus(fe.StatusCode) {
			return true
		}
	}

	// Network-level transient errors.
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	// Connection reset / refused / DNS.
	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNABORTED) {
		return true
	}

	// String-based heuristics for wrapped errors from HTTP clients.
	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"connection reset by peer",
		"broken pipe",
		"temporary failure in name resolution",
		"no such host",
		"tls handshake timeout",
		"i/o timeout",
		"server closed idle connection",
		"transport connection broken",
	}
	for _, p := range transientPatterns {
		if strings.Contains(msg, p) {
			return true
		}
	}

	return false
}

// IsTransientHTTPStatus returns true if the HTTP status code indicates a
// transient server-side issue that is safe to retry.
func IsTransientHTTPStatus(statusCode int) bool {
	switch statusCode {
	case 408, // Request Timeout
		429, // Too Many Requests
		500, // Internal Server Error
		502, // Bad Gateway
		503, // Service Unavailable
		504: // Gateway Timeout
		return true
	default:
		return false
	}
}
