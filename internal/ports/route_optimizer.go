package ports

import (
	"assignment-wizard-service/internal/domain"
	"context"
)

// Contract for the external route optimizer. Solving happens remotely; callers
// only consume sequences and totals.
type RouteOptimizer interface {
	// Order the recipients of one route. A nil depot uses the optimizer's default.
	OptimizeTSP(ctx context.Context, recipientIDs []string, depot *domain.Location) (domain.TSPResult, error)
	// Split recipients into capacity-bounded routes.
	OptimizeCVRP(ctx context.Context, req domain.CVRPRequest) (domain.CVRPResult, error)
}
