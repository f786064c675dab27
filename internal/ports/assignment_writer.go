package ports

import (
	"assignment-wizard-service/internal/domain"
	"context"
)

// Port: a boundary for persisting routes.
type AssignmentWriter interface {
	CreateAssignment(ctx context.Context, req domain.NewAssignment) (domain.Assignment, error)
	// Create several routes at once. Only the routes that were created are
	// returned; a shorter result than the request is a partial success.
	CreateBulkAssignments(ctx context.Context, reqs []domain.NewAssignment) ([]domain.Assignment, error)
}
