package providers

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
)

// ProbeAll checks every provider concurrently and returns their states
// sorted by provider name. Probe failures are reported in the states, not as
// errors.
func ProbeAll(ctx context.Context, checkers ...HealthChecker) []HealthState {
	states := make([]HealthState, len(checkers))
	eg, ctx := errgroup.WithContext(ctx)
	for i, c := range checkers {
		i, c := i, c
		eg.Go(func() error {
			states[i] = c.CheckHealth(ctx)
			if states[i].Provider == "" {
				states[i].Provider = c.Name()
			}
			return nil
		})
	}
	_ = eg.Wait()

	sort.SliceStable(states, func(i, j int) bool {
		return states[i].Provider < states[j].Provider
	})
	return states
}
