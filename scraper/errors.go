package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"github.com/aluiziolira/go-scrape-kym/parser"
)

// ErrInvalidArgument marks caller input that failed validation before any request was made.
var ErrInvalidArgument = errors.New("invalid argument")

// Failure kinds recorded on NetworkError and used as the error_type metric label.
const (
	KindTimeout     = "timeout"
	KindCanceled    = "canceled"
	KindConnection  = "connection"
	KindForbidden   = "forbidden"
	KindNotFound    = "not_found"
	KindRateLimited = "rate_limited"
	KindServer      = "server"
	KindHTTPStatus  = "http_status"
	KindOther       = "other"
)

// NetworkError reports a failed fetch or an unsuccessful HTTP status.
// StatusCode is zero when no response was received.
type NetworkError struct {
	URL        string
	StatusCode int
	Kind       string
	Err        error
}

func (e *NetworkError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// Retryable reports whether the failure is transient: timeouts, connection errors and 5xx.
func (e *NetworkError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindServer:
		return true
	default:
		return false
	}
}

func isRetryable(err error) bool {
	var netErr *NetworkError
	return errors.As(err, &netErr) && netErr.Retryable()
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var netErr *NetworkError
	if errors.As(err, &netErr) {
		return netErr.Kind
	}
	var parseErr *parser.ParseError
	if errors.As(err, &parseErr) {
		return "parse"
	}
	if errors.Is(err, ErrInvalidArgument) {
		return "invalid_argument"
	}
	return KindOther
}

// classifyError maps a transport error or response status to a NetworkError.
// It returns nil for a nil error with a 2xx or 3xx status.
func classifyError(url string, err error, statusCode int) error {
	if err == nil && statusCode >= http.StatusOK && statusCode < http.StatusBadRequest {
		return nil
	}

	if err != nil {
		kind := KindOther
		var netErr net.Error
		var opErr *net.OpError
		switch {
		case errors.Is(err, context.Canceled):
			kind = KindCanceled
		case errors.Is(err, context.DeadlineExceeded):
			kind = KindTimeout
		case errors.As(err, &netErr) && netErr.Timeout():
			kind = KindTimeout
		case errors.As(err, &opErr):
			kind = KindConnection
		}
		return &NetworkError{URL: url, StatusCode: statusCode, Kind: kind, Err: err}
	}

	wrapped := fmt.Errorf("%s", http.StatusText(statusCode))
	if statusCode == 0 {
		wrapped = errors.New("no response received")
	}

	kind := KindHTTPStatus
	switch {
	case statusCode == http.StatusForbidden:
		kind = KindForbidden
	case statusCode == http.StatusNotFound:
		kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		kind = KindRateLimited
	case statusCode >= http.StatusInternalServerError:
		kind = KindServer
	case statusCode == 0:
		kind = KindOther
	}
	return &NetworkError{URL: url, StatusCode: statusCode, Kind: kind, Err: wrapped}
}
