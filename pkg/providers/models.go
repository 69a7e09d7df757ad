package providers

import (
	"context"
	"sync"
	"time"

	"github.com/mb0/glob"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const DefaultModelCacheTTL = 5 * time.Minute

// ModelCache caches a model list for a fixed TTL and refetches lazily on
// expiry or first use. An empty list is never considered fresh.
type ModelCache struct {
	fetch func(ctx context.Context) ([]string, error)
	ttl   time.Duration
	now   func() time.Time

	mu        sync.Mutex
	models    []string
	fetchedAt time.Time
}

func NewModelCache(fetch func(ctx context.Context) ([]string, error), ttl time.Duration) *ModelCache {
	if ttl <= 0 {
		ttl = DefaultModelCacheTTL
	}
	return &ModelCache{
		fetch: fetch,
		ttl:   ttl,
		now:   time.Now,
	}
}

func (c *ModelCache) Models(ctx context.Context) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	if len(c.models) > 0 && now.Sub(c.fetchedAt) <= c.ttl {
		return append([]string(nil), c.models...), nil
	}

	models, err := c.fetch(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "could not fetch models")
	}
	log.Debug().Strs("models", models).Msg("refreshed model list")
	c.models = models
	c.fetchedAt = now
	return append([]string(nil), models...), nil
}

// Invalidate drops the cached list.
func (c *ModelCache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.models = nil
	c.fetchedAt = time.Time{}
}

// FilterModels keeps the models matching the glob pattern. An empty pattern
// keeps everything.
func FilterModels(models []string, pattern string) ([]string, error) {
	if pattern == "" {
		return models, nil
	}
	ret := []string{}
	for _, m := range models {
		matching, err := glob.Match(pattern, m)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid model pattern %q", pattern)
		}
		if matching {
			ret = append(ret, m)
		}
	}
	return ret, nil
}
