package ports

import (
	"context"
	"errors"
	"time"

	"assignment-wizard-service/internal/wizard"
)

var ErrSessionNotFound = errors.New("session not found")

// Session wraps a wizard state with the bookkeeping the controller needs.
// Epoch changes whenever the state is reset, so results computed against an
// older epoch can be recognised and dropped.
type Session struct {
	ID        string       `json:"id"`
	Epoch     uint64       `json:"epoch"`
	State     wizard.State `json:"state"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Storage for live wizard sessions.
type SessionStore interface {
	// Return ErrSessionNotFound when the id is unknown or expired.
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}
