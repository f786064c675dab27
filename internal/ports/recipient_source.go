package ports

import (
	"assignment-wizard-service/internal/domain"
	"context"
)

// Port: a boundary for listing recipients that are not yet on any route.
type RecipientSource interface {
	// Return one page of Unassigned recipients, optionally filtered by a search term.
	ListUnassignedRecipients(ctx context.Context, page, perPage int, search string) (domain.RecipientPage, error)
}

// Port: a boundary for listing couriers.
type CourierSource interface {
	ListCouriers(ctx context.Context, page, perPage int) (domain.CourierPage, error)
}
