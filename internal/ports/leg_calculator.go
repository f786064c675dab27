package ports

import (
	"assignment-wizard-service/internal/domain"
	"context"
)

// Contract for computing per-leg distance and duration of an ordered route.
type LegCalculator interface {
	// Return one leg per stop: depot to first stop, then each consecutive pair.
	ComputeLegs(ctx context.Context, recipientIDs []string) ([]domain.RouteLeg, error)
}

// Implemented by calculators that can answer from earlier results when the
// backend is unavailable. fromCache reports that the legs were not freshly
// computed.
type FallbackLegCalculator interface {
	LegCalculator
	ComputeLegsOrCached(ctx context.Context, recipientIDs []string) (legs []domain.RouteLeg, fromCache bool, err error)
}

// Storage for legs computed earlier, keyed by origin and destination.
type LegCache interface {
	// Return cached legs; missing keys are absent from the map.
	GetMany(ctx context.Context, keys []domain.LegKey) (map[domain.LegKey]domain.RouteLeg, error)
	PutMany(ctx context.Context, legs map[domain.LegKey]domain.RouteLeg) error
}
