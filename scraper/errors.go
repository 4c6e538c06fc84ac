package scraper

import (
	"errors"
	"fmt"
)

// ErrTimeout indicates a timeout while issuing a request.
type ErrTimeout struct {
	Err error
}

func (e ErrTimeout) Error() string {
	return fmt.Errorf("timeout: %w", e.Err).Error()
}

func (e ErrTimeout) Unwrap() error {
	return e.Err
}

// ErrConnection indicates a network connectivity failure (DNS,
// connection reset, refused connection).
type ErrConnection struct {
	Err error
}

func (e ErrConnection) Error() string {
	return fmt.Errorf("connection: %w", e.Err).Error()
}

func (e ErrConnection) Unwrap() error {
	return e.Err
}

// ErrHTTP indicates a non-retryable client response (4xx other than
// 429). Client errors signal a structural bug in the caller, not
// transient trouble, so the fetcher fails fast on them.
type ErrHTTP struct {
	StatusCode int
	Err        error
}

func (e ErrHTTP) Error() string {
	return fmt.Errorf("http_error: status %d: %w", e.StatusCode, e.Err).Error()
}

func (e ErrHTTP) Unwrap() error {
	return e.Err
}

// ErrRateLimited indicates the target rate-limited the request (429).
type ErrRateLimited struct {
	Err error
}

func (e ErrRateLimited) Error() string {
	return fmt.Errorf("rate_limited: %w", e.Err).Error()
}

func (e ErrRateLimited) Unwrap() error {
	return e.Err
}

// ErrServer indicates a 5xx response.
type ErrServer struct {
	StatusCode int
	Err        error
}

func (e ErrServer) Error() string {
	return fmt.Errorf("server_error: status %d: %w", e.StatusCode, e.Err).Error()
}

func (e ErrServer) Unwrap() error {
	return e.Err
}

// ExhaustedError is returned when the retry budget for a URL ran out.
// It carries the last underlying failure.
type ExhaustedError struct {
	URL      string
	Attempts int
	Err      error
}

func (e ExhaustedError) Error() string {
	return fmt.Sprintf("failed to load %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e ExhaustedError) Unwrap() error {
	return e.Err
}

// retryable reports whether another attempt may succeed.
func retryable(err error) bool {
	var timeout ErrTimeout
	var conn ErrConnection
	var rateLimited ErrRateLimited
	var server ErrServer
	return errors.As(err, &timeout) ||
		errors.As(err, &conn) ||
		errors.As(err, &rateLimited) ||
		errors.As(err, &server)
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var exhausted ExhaustedError
	if errors.As(err, &exhausted) {
		return "retries_exhausted"
	}
	var timeout ErrTimeout
	if errors.As(err, &timeout) {
		return "timeout"
	}
	var conn ErrConnection
	if errors.As(err, &conn) {
		return "connection"
	}
	var httpErr ErrHTTP
	if errors.As(err, &httpErr) {
		return "http_error"
	}
	var rateLimited ErrRateLimited
	if errors.As(err, &rateLimited) {
		return "rate_limited"
	}
	var server ErrServer
	if errors.As(err, &server) {
		return "server_error"
	}
	return "other"
}
