package recovery

import (
	"fmt"
	"strings"
)

// RecoveryExhaustedError is attached to a Result when no stage produced a
// usable structure.
type RecoveryExhaustedError struct {
	Mode   Mode
	Tried  []Stage
	Last   error
	Length int
}

func (e *RecoveryExhaustedError) Error() string {
	names := make([]string, 0, len(e.Tried))
	for _, s := range e.Tried {
		names = append(names, s.String())
	}
	msg := fmt.Sprintf("json recovery failed after %d stages (%s) on %d bytes of %s input",
		len(e.Tried), strings.Join(names, ", "), e.Length, e.Mode)
	if e.Last != nil {
		msg += ": " + e.Last.Error()
	}
	return msg
}

func (e *RecoveryExhaustedError) Unwrap() error {
	return e.Last
}
