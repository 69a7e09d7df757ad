package providers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func TestHealthGateCachesWithinInterval(t *testing.T) {
	clock := newFakeClock()
	probes := 0
	healthy := true
	gate := NewHealthGate("local", func(ctx context.Context) error {
		probes++
		if healthy {
			return nil
		}
		return errors.New("connection refused")
	}, WithClock(clock.Now), WithHealthInterval(30*time.Second))

	require.NoError(t, gate.Ensure(context.Background()))
	require.NoError(t, gate.Ensure(context.Background()))
	assert.Equal(t, 1, probes)

	healthy = false
	clock.Advance(29 * time.Second)
	require.NoError(t, gate.Ensure(context.Background()))
	assert.Equal(t, 1, probes)

	clock.Advance(time.Second)
	err := gate.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, 2, probes)

	var unavailable *ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.Equal(t, "local", unavailable.Provider)
	assert.Contains(t, err.Error(), "connection refused")
	assert.False(t, gate.snapshot().Healthy)
	assert.Equal(t, "connection refused", gate.snapshot().LastError)
}

func TestHealthGateCheckTimeout(t *testing.T) {
	gate := NewHealthGate("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}, WithProbeTimeout(20*time.Millisecond))

	start := time.Now()
	err := gate.Ensure(context.Background())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)

	var unavailable *ServiceUnavailableError
	require.True(t, errors.As(err, &unavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestHealthGateMarkUnhealthy(t *testing.T) {
	clock := newFakeClock()
	probes := 0
	gate := NewHealthGate("local", func(ctx context.Context) error {
		probes++
		return nil
	}, WithClock(clock.Now))

	require.NoError(t, gate.Ensure(context.Background()))
	gate.MarkUnhealthy(errors.New("502 bad gateway"))

	err := gate.Ensure(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502 bad gateway")
	assert.Equal(t, 1, probes)

	clock.Advance(DefaultHealthInterval)
	require.NoError(t, gate.Ensure(context.Background()))
	assert.Equal(t, 2, probes)
}

func TestHealthGateIgnoresCallerCancellation(t *testing.T) {
	probes := 0
	gate := NewHealthGate("local", func(ctx context.Context) error {
		probes++
		return ctx.Err()
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	state := gate.Check(ctx)
	assert.False(t, state.Healthy)
	assert.Equal(t, context.Canceled.Error(), state.LastError)
	assert.True(t, gate.snapshot().LastCheckedAt.IsZero())

	require.NoError(t, gate.Ensure(context.Background()))
	assert.Equal(t, 2, probes)
	assert.True(t, gate.snapshot().Healthy)
}
