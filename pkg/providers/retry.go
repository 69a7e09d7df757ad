package providers

import (
	"context"
	"time"

	"github.com/go-go-golems/relay/pkg/dispatch"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultRetries    = 3
	DefaultRetryDelay = 2 * time.Second
)

// Retrier runs a whole request up to Attempts times with a fixed delay in
// between. Cancellation of the parent context stops it immediately.
//
// The dispatches inside fn are expected to run with dispatch.WithoutNotice.
// Once every attempt failed, a single notice covering all of them goes to
// Notifier.
type Retrier struct {
	Name     string
	Attempts int
	Delay    time.Duration
	Notifier dispatch.Notifier
	// Endpoints is the number of endpoints each attempt is sent to.
	Endpoints int
}

func (r Retrier) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := r.Attempts
	if attempts < 1 {
		attempts = 1
	}

	var last error
	dispatched := 0
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		last = fn(ctx)
		if last == nil {
			return nil
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		var exhausted *dispatch.ExhaustedError
		if errors.As(last, &exhausted) {
			dispatched += exhausted.Attempts
		} else {
			dispatched++
		}

		log.Warn().
			Str("provider", r.Name).
			Int("attempt", i).
			Int("attempts", attempts).
			Err(last).
			Msg("request attempt failed")

		if i == attempts {
			break
		}

		timer := time.NewTimer(r.Delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if r.Notifier != nil {
		endpoints := r.Endpoints
		if endpoints < 1 {
			endpoints = 1
		}
		r.Notifier.NotifyExhausted(ctx, dispatch.Notice{
			Label:     r.Name,
			Attempts:  dispatched,
			Endpoints: endpoints,
			LastError: last.Error(),
			Timeout:   dispatch.IsTimeout(last),
			At:        time.Now(),
		})
	}

	return &RetriesExhaustedError{
		Provider: r.Name,
		Attempts: attempts,
		Cause:    last,
	}
}
