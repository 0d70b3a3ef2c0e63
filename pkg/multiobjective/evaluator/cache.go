package evaluator

import (
	"context"
	"math"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/go-logr/logr"
	"github.com/patrickmn/go-cache"

	"github.com/facegen/latentsearch/pkg/multiobjective/framework"
)

// Cache memoizes a deterministic evaluator by the exact bits of the latent
// vector. Unmutated clones that survive into later generations are scored
// once per run.
type Cache struct {
	next   framework.Evaluator
	store  *cache.Cache
	logger logr.Logger

	hits   atomic.Int64
	misses atomic.Int64
}

var _ framework.Evaluator = &Cache{}

// NewCache wraps next. Entries never expire.
func NewCache(next framework.Evaluator, logger logr.Logger) *Cache {
	return &Cache{
		next:   next,
		store:  cache.New(cache.NoExpiration, 0),
		logger: logger.WithName("evaluation-cache"),
	}
}

func (c *Cache) Evaluate(ctx context.Context, vars []float64) (framework.ObjectiveSpacePoint, error) {
	key := cacheKey(vars)
	if v, ok := c.store.Get(key); ok {
		c.hits.Add(1)
		return append(framework.ObjectiveSpacePoint(nil), v.(framework.ObjectiveSpacePoint)...), nil
	}

	values, err := c.next.Evaluate(ctx, vars)
	if err != nil {
		return nil, err
	}
	c.misses.Add(1)
	// Invalid results are not cached so that a retry reaches the evaluator.
	if framework.CheckObjectives(values) == nil {
		c.store.Set(key, append(framework.ObjectiveSpacePoint(nil), values...), cache.NoExpiration)
	}
	return values, nil
}

// Stats returns the number of cache hits and evaluator calls that succeeded.
func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Len is the number of memoized vectors.
func (c *Cache) Len() int {
	return c.store.ItemCount()
}

// LogStats reports the hit ratio at verbosity 2.
func (c *Cache) LogStats() {
	hits, misses := c.Stats()
	ratio := 0.0
	if total := hits + misses; total > 0 {
		ratio = float64(hits) / float64(total)
	}
	c.logger.V(2).Info("Evaluation cache", "entries", c.Len(), "hits", hits, "misses", misses, "hitRatio", ratio)
}

func cacheKey(vars []float64) string {
	var b strings.Builder
	b.Grow(len(vars) * 17)
	for i, v := range vars {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatUint(math.Float64bits(v), 16))
	}
	return b.String()
}
