package cache

import (
	"assignment-wizard-service/internal/domain"
	"assignment-wizard-service/internal/platform/obs"
	"assignment-wizard-service/internal/ports"
	"context"
	"fmt"

	"go.uber.org/zap"
)

// DepotOrigin is the origin key of a route's first leg.
const DepotOrigin = "depot"

// CachedLegCalculator always asks the wrapped calculator first and writes the
// answer through to a LegCache. The cache is read only when the backend call
// fails, and only a route whose every leg is cached is served from it. A cache
// failure degrades to a plain backend call.
type CachedLegCalculator struct {
	next    ports.LegCalculator
	cache   ports.LegCache
	metrics *obs.Metrics
}

func NewCachedLegCalculator(next ports.LegCalculator, cache ports.LegCache, metrics *obs.Metrics) *CachedLegCalculator {
	return &CachedLegCalculator{next: next, cache: cache, metrics: metrics}
}

func legKeys(recipientIDs []string) []domain.LegKey {
	keys := make([]domain.LegKey, 0, len(recipientIDs))
	prev := DepotOrigin
	for _, id := range recipientIDs {
		keys = append(keys, domain.LegKey{Origin: prev, Destination: id})
		prev = id
	}
	return keys
}

func (c *CachedLegCalculator) ComputeLegs(ctx context.Context, recipientIDs []string) ([]domain.RouteLeg, error) {
	legs, _, err := c.ComputeLegsOrCached(ctx, recipientIDs)
	return legs, err
}

// ComputeLegsOrCached is ComputeLegs that also reports whether the legs came
// from the cache because the backend call failed.
func (c *CachedLegCalculator) ComputeLegsOrCached(ctx context.Context, recipientIDs []string) (_ []domain.RouteLeg, fromCache bool, err error) {
	defer obs.Time(ctx, "legs.ComputeLegs")(&err)

	if len(recipientIDs) == 0 {
		return []domain.RouteLeg{}, false, nil
	}

	keys := legKeys(recipientIDs)
	logger := obs.Logger(ctx)

	legs, err := c.next.ComputeLegs(ctx, recipientIDs)
	if err != nil {
		cached, ok := c.lookup(ctx, keys)
		if !ok {
			return nil, false, fmt.Errorf("compute legs: %w", err)
		}
		logger.Warn("serving cached legs after backend failure",
			zap.Int("legs", len(cached)),
			zap.Error(err),
		)
		return cached, true, nil
	}
	if len(legs) != len(keys) {
		return legs, false, nil
	}

	fresh := make(map[domain.LegKey]domain.RouteLeg, len(keys))
	for i, k := range keys {
		fresh[k] = legs[i]
	}
	if perr := c.cache.PutMany(ctx, fresh); perr != nil {
		logger.Warn("leg cache write failed", zap.Error(perr))
	}
	return legs, false, nil
}

// lookup returns the cached legs for keys in order, or false when any is
// missing or the cache cannot be read.
func (c *CachedLegCalculator) lookup(ctx context.Context, keys []domain.LegKey) ([]domain.RouteLeg, bool) {
	cached, err := c.cache.GetMany(ctx, keys)
	if err != nil {
		obs.Logger(ctx).Warn("leg cache read failed", zap.Error(err))
		c.metrics.ObserveLegCache(0, len(keys))
		return nil, false
	}

	out := make([]domain.RouteLeg, 0, len(keys))
	for _, k := range keys {
		leg, ok := cached[k]
		if !ok {
			break
		}
		out = append(out, leg)
	}
	c.metrics.ObserveLegCache(len(out), len(keys)-len(out))
	return out, len(out) == len(keys)
}
