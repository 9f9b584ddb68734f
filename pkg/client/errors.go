package client

import (
	"errors"
	"fmt"
	"time"
)

// ErrClientClosed is returned by every request method after Close. A closed
// client performs no network or secret store I/O.
var ErrClientClosed = errors.New("client is closed")

// AuthenticationError reports a request the gateway rejected as
// unauthenticated (HTTP 403). The cached credential has already been
// invalidated when this error is returned; the caller decides whether to
// try again with the fresh one.
type AuthenticationError struct {
	Service string
	Status  int
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication rejected calling %s (status %d), credential invalidated", e.Service, e.Status)
}

// QuotaError reports a request rejected for exceeding the gateway quota
// (HTTP 429). The cached credential is still valid.
type QuotaError struct {
	Service    string
	RetryAfter time.Duration
}

func (e *QuotaError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("quota exceeded calling %s, retry after %s", e.Service, e.RetryAfter)
	}
	return fmt.Sprintf("quota exceeded calling %s", e.Service)
}

// NetworkError reports a transport-level failure: connection refused, DNS
// failure, reset. The request may or may not have reached the target.
type NetworkError struct {
	Service string
	Err     error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("network error calling %s: %v", e.Service, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// TimeoutError reports a request that exceeded its deadline.
type TimeoutError struct {
	Service string
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("timeout calling %s: %v", e.Service, e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

// Outcome labels, used for metrics and relay events.
const (
	OutcomeSuccess       = "success"
	OutcomeAuthFailed    = "auth_failed"
	OutcomeQuotaExceeded = "quota_exceeded"
	OutcomeNetworkError  = "network_error"
	OutcomeTimeout       = "timeout"
	OutcomeError         = "error"
)

// Outcome classifies a request error into a stable label. A nil error is
// OutcomeSuccess; errors that fit no other class report OutcomeError.
func Outcome(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	var (
		authErr  *AuthenticationError
		quotaErr *QuotaError
		netErr   *NetworkError
		toErr    *TimeoutError
	)
	switch {
	case errors.As(err, &authErr):
		return OutcomeAuthFailed
	case errors.As(err, &quotaErr):
		return OutcomeQuotaExceeded
	case errors.As(err, &toErr):
		return OutcomeTimeout
	case errors.As(err, &netErr):
		return OutcomeNetworkError
	default:
		return OutcomeError
	}
}
