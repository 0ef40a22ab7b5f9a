package payment

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ValidationError reports caller input rejected before any network call.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	if len(e.Fields) == 0 {
		return "invalid payment request"
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "invalid payment request: " + strings.Join(parts, "; ")
}

// GatewayError is a non-2xx answer from the payment backend.
type GatewayError struct {
	StatusCode  int
	Message     string
	Cancellable bool
}

func (e *GatewayError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("payment gateway returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("payment gateway returned status %d: %s", e.StatusCode, e.Message)
}

// NetworkError wraps a transport failure; the request may be retried.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// IsRetryable reports whether the caller may offer a retry for err.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var validation *ValidationError
	if errors.As(err, &validation) {
		return false
	}

	var network *NetworkError
	if errors.As(err, &network) {
		return true
	}

	var gateway *GatewayError
	if errors.As(err, &gateway) {
		return gateway.StatusCode >= 500 || gateway.StatusCode == 429 || gateway.Cancellable
	}

	return errors.Is(err, context.DeadlineExceeded)
}
