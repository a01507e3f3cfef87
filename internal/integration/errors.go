package integration

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNotConnected means the user has no live LinkedIn token: either they
// never connected or the stored token has expired.
var ErrNotConnected = errors.New("linkedin account is not connected")

// ConfigurationError means the OAuth client is not registered correctly.
type ConfigurationError struct {
	Missing []string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	if len(e.Missing) > 0 {
		return fmt.Sprintf("linkedin integration is not configured: missing %s", strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("linkedin integration is not configured: %s", e.Reason)
}

// Steps of the connect flow reported by ExchangeFailedError.
const (
	StepExchange = "token_exchange"
	StepProfile  = "profile_fetch"
	StepStore    = "token_store"
)

// ExchangeFailedError reports a failed step of the OAuth code exchange. It
// carries the upstream status and body when the provider answered.
type ExchangeFailedError struct {
	Step       string
	StatusCode int
	Body       string
	Err        error
}

func (e *ExchangeFailedError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("linkedin %s failed: status %d: %s", e.Step, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("linkedin %s failed: %v", e.Step, e.Err)
}

func (e *ExchangeFailedError) Unwrap() error {
	return e.Err
}

// ValidationError indicates a bad argument to a manager operation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s - %s", e.Field, e.Message)
}
