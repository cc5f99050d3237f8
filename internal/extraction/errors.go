package extraction

import (
	"context"
	"errors"
	"net"
	"strings"

	anthropic "github.com/liushuangls/go-anthropic/v2"
)

// GatewayError classifies a failed call to the extraction service.
type GatewayError struct {
	Reason     string
	StatusCode int
	Retryable  bool
	Cause      error
}

func (e *GatewayError) Error() string {
	if e.Cause == nil {
		return "extraction " + e.Reason
	}
	return "extraction " + e.Reason + ": " + e.Cause.Error()
}

func (e *GatewayError) Unwrap() error { return e.Cause }

const (
	ReasonAuth        = "auth"
	ReasonRateLimited = "rate_limited"
	ReasonOverloaded  = "overloaded"
	ReasonServer      = "server_error"
	ReasonBadRequest  = "bad_request"
	ReasonTimeout     = "timeout"
	ReasonCanceled    = "canceled"
	ReasonNetwork     = "network"
	ReasonMalformed   = "malformed_reply"
	ReasonUnknown     = "unknown"
)

// Classify wraps err in a GatewayError. Rate limits, overloads, 5xx and
// network failures are retryable; caller cancellation is not.
func Classify(err error) *GatewayError {
	if err == nil {
		return nil
	}
	var gwErr *GatewayError
	if errors.As(err, &gwErr) {
		return gwErr
	}

	if errors.Is(err, context.Canceled) {
		return &GatewayError{Reason: ReasonCanceled, Cause: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &GatewayError{Reason: ReasonTimeout, Cause: err}
	}

	var reqErr *anthropic.RequestError
	if errors.As(err, &reqErr) {
		return byStatus(reqErr.StatusCode, err)
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "rate_limit"):
		return &GatewayError{Reason: ReasonRateLimited, StatusCode: 429, Retryable: true, Cause: err}
	case strings.Contains(lower, "overloaded"):
		return &GatewayError{Reason: ReasonOverloaded, StatusCode: 529, Retryable: true, Cause: err}
	case strings.Contains(lower, "authentication") || strings.Contains(lower, "invalid x-api-key"):
		return &GatewayError{Reason: ReasonAuth, StatusCode: 401, Cause: err}
	case strings.Contains(lower, "invalid_request"):
		return &GatewayError{Reason: ReasonBadRequest, StatusCode: 400, Cause: err}
	case strings.Contains(lower, "api_error"):
		return &GatewayError{Reason: ReasonServer, StatusCode: 500, Retryable: true, Cause: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return &GatewayError{Reason: ReasonNetwork, Retryable: true, Cause: err}
	}
	if strings.Contains(lower, "connection refused") || strings.Contains(lower, "connection reset") ||
		strings.Contains(lower, "eof") {
		return &GatewayError{Reason: ReasonNetwork, Retryable: true, Cause: err}
	}
	return &GatewayError{Reason: ReasonUnknown, Cause: err}
}

func byStatus(code int, err error) *GatewayError {
	switch {
	case code == 401 || code == 403:
		return &GatewayError{Reason: ReasonAuth, StatusCode: code, Cause: err}
	case code == 429:
		return &GatewayError{Reason: ReasonRateLimited, StatusCode: code, Retryable: true, Cause: err}
	case code == 529:
		return &GatewayError{Reason: ReasonOverloaded, StatusCode: code, Retryable: true, Cause: err}
	case code >= 500:
		return &GatewayError{Reason: ReasonServer, StatusCode: code, Retryable: true, Cause: err}
	case code >= 400:
		return &GatewayError{Reason: ReasonBadRequest, StatusCode: code, Cause: err}
	default:
		return &GatewayError{Reason: ReasonUnknown, StatusCode: code, Cause: err}
	}
}

// IsRetryable is the retry predicate for gateway calls.
func IsRetryable(err error) bool {
	gwErr := Classify(err)
	return gwErr != nil && gwErr.Retryable
}
