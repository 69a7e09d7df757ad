package protocol

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	ErrContextNotFound = errors.New("protocol context not found")
	ErrNoKeywords      = errors.New("no operation keywords to schedule")
)

// InvalidContextStateError is returned when an operation is not allowed in
// the current state. The caller has to reset before trying again.
type InvalidContextStateError struct {
	Op     string
	ID     string
	Status Status
	Cause  error
}

func (e *InvalidContextStateError) Error() string {
	msg := fmt.Sprintf("cannot %s protocol context", e.Op)
	if e.ID != "" {
		msg += fmt.Sprintf(" %s", e.ID)
	}
	if e.Status != "" {
		msg += fmt.Sprintf(" in status %s", e.Status)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *InvalidContextStateError) Unwrap() error {
	return e.Cause
}
