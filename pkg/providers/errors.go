package providers

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
)

// ErrEmptyContent is returned when a backend answers with an envelope that
// carries no message content.
var ErrEmptyContent = errors.New("response carried no message content")

// ServiceUnavailableError is returned without attempting the main call when
// the provider's health probe failed.
type ServiceUnavailableError struct {
	Provider  string
	CheckedAt time.Time
	Cause     error
}

func (e *ServiceUnavailableError) Error() string {
	msg := fmt.Sprintf("%s is unavailable (checked %s)", e.Provider, e.CheckedAt.Format(time.RFC3339))
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ServiceUnavailableError) Unwrap() error {
	return e.Cause
}

// RetriesExhaustedError wraps the cause of the last failed whole-request
// attempt.
type RetriesExhaustedError struct {
	Provider string
	Attempts int
	Cause    error
}

func (e *RetriesExhaustedError) Error() string {
	return fmt.Sprintf("%s: exhausted after %d attempts: %v", e.Provider, e.Attempts, e.Cause)
}

func (e *RetriesExhaustedError) Unwrap() error {
	return e.Cause
}
