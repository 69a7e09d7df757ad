package providers

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	DefaultHealthInterval = 30 * time.Second
	DefaultProbeTimeout   = 5 * time.Second
)

type HealthState struct {
	Provider      string    `json:"provider" yaml:"provider"`
	Healthy       bool      `json:"healthy" yaml:"healthy"`
	LastCheckedAt time.Time `json:"last_checked_at" yaml:"last_checked_at"`
	LastError     string    `json:"last_error,omitempty" yaml:"last_error,omitempty"`
}

// ProbeFunc performs one lightweight request. A nil error means healthy.
type ProbeFunc func(ctx context.Context) error

// HealthGate caches the result of a health probe and refreshes it lazily
// once it is older than the interval. The mutex is held across the probe so
// concurrent callers share a single refresh.
type HealthGate struct {
	name         string
	probe        ProbeFunc
	interval     time.Duration
	probeTimeout time.Duration
	now          func() time.Time

	mu    sync.Mutex
	state HealthState
	cause error
}

type HealthGateOption func(*HealthGate)

func WithHealthInterval(d time.Duration) HealthGateOption {
	return func(h *HealthGate) {
		if d > 0 {
			h.interval = d
		}
	}
}

func WithProbeTimeout(d time.Duration) HealthGateOption {
	return func(h *HealthGate) {
		if d > 0 {
			h.probeTimeout = d
		}
	}
}

func WithClock(now func() time.Time) HealthGateOption {
	return func(h *HealthGate) {
		h.now = now
	}
}

func NewHealthGate(name string, probe ProbeFunc, options ...HealthGateOption) *HealthGate {
	h := &HealthGate{
		name:         name,
		probe:        probe,
		interval:     DefaultHealthInterval,
		probeTimeout: DefaultProbeTimeout,
		now:          time.Now,
		state:        HealthState{Provider: name},
	}
	for _, o := range options {
		o(h)
	}
	return h
}

func (h *HealthGate) stale(now time.Time) bool {
	return h.state.LastCheckedAt.IsZero() || now.Sub(h.state.LastCheckedAt) >= h.interval
}

// Check returns the cached state, probing first if it is stale. A check cut
// short by the cancellation of ctx is reported as unhealthy but not cached.
func (h *HealthGate) Check(ctx context.Context) HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()
	if !h.stale(now) {
		return h.state
	}

	probeCtx, cancel := context.WithTimeout(ctx, h.probeTimeout)
	defer cancel()

	err := h.probe(probeCtx)
	if err != nil && ctx.Err() != nil {
		// cancelled by the caller, the cached state stays as it was
		log.Debug().Str("provider", h.name).Err(err).Msg("health check abandoned")
		return HealthState{
			Provider:      h.name,
			LastCheckedAt: now,
			LastError:     ctx.Err().Error(),
		}
	}
	h.state.LastCheckedAt = now
	h.state.Healthy = err == nil
	h.cause = err
	h.state.LastError = ""
	if err != nil {
		h.state.LastError = err.Error()
		log.Warn().Str("provider", h.name).Err(err).Msg("health probe failed")
	} else {
		log.Debug().Str("provider", h.name).Msg("health probe succeeded")
	}
	return h.state
}

// Ensure fails fast with a *ServiceUnavailableError when the provider is
// unhealthy.
func (h *HealthGate) Ensure(ctx context.Context) error {
	state := h.Check(ctx)
	if state.Healthy {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	h.mu.Lock()
	cause := h.cause
	h.mu.Unlock()
	if cause == nil {
		cause = errors.New("marked unhealthy")
	}
	return &ServiceUnavailableError{
		Provider:  h.name,
		CheckedAt: state.LastCheckedAt,
		Cause:     cause,
	}
}

// MarkUnhealthy records a failure observed outside of the probe. The state
// stays unhealthy until the next probe after the interval.
func (h *HealthGate) MarkUnhealthy(cause error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.state.Healthy = false
	h.state.LastCheckedAt = h.now()
	h.cause = cause
	if cause != nil {
		h.state.LastError = cause.Error()
	}
	log.Warn().Str("provider", h.name).Err(cause).Msg("provider marked unhealthy")
}

// snapshot returns the cached state without probing.
func (h *HealthGate) snapshot() HealthState {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}
