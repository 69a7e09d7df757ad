package dispatch

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
)

// ErrNoCandidates is returned when Dispatch is called without any usable endpoint.
var ErrNoCandidates = errors.New("no endpoint candidates configured")

type FailureKind string

const (
	// KindTimeout means the per-attempt deadline expired and the call was aborted.
	KindTimeout FailureKind = "timeout"
	// KindTransport covers connection, TLS and protocol errors.
	KindTransport FailureKind = "transport"
	// KindBody means the response could not be read or was not consumable.
	KindBody FailureKind = "body"
)

// TransportError is a failed attempt that never produced a usable HTTP response.
type TransportError struct {
	Kind      FailureKind
	Candidate Candidate
	Cause     error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %s failure: %v", e.Candidate, e.Kind, e.Cause)
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

func (e *TransportError) Timeout() bool {
	return e.Kind == KindTimeout
}

// HTTPStatusError is a non-2xx response. The body is kept for diagnostics.
type HTTPStatusError struct {
	Candidate  Candidate
	StatusCode int
	Body       string
}

const maxErrorBody = 2048

func (e *HTTPStatusError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > maxErrorBody {
		body = body[:maxErrorBody] + "..."
	}
	if body == "" {
		return fmt.Sprintf("%s: HTTP %d", e.Candidate, e.StatusCode)
	}
	return fmt.Sprintf("%s: HTTP %d: %s", e.Candidate, e.StatusCode, body)
}

// ExhaustedError is returned once every candidate failed. It wraps the last
// attempt's failure.
type ExhaustedError struct {
	Label    string
	Attempts int
	Last     error
}

func (e *ExhaustedError) Error() string {
	label := e.Label
	if label == "" {
		label = "dispatch"
	}
	return fmt.Sprintf("%s: all %d attempts failed, last error: %v", label, e.Attempts, e.Last)
}

func (e *ExhaustedError) Unwrap() error {
	return e.Last
}

// IsTimeout reports whether err (or anything it wraps) is an attempt timeout.
func IsTimeout(err error) bool {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Timeout()
	}
	return false
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var he *HTTPStatusError
	if errors.As(err, &he) {
		return he.StatusCode
	}
	return 0
}
