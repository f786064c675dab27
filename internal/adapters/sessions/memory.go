package sessions

import (
	"assignment-wizard-service/internal/ports"
	"context"
	"sync"
	"time"
)

// MemoryStore keeps sessions in process memory. Expired sessions are dropped
// lazily on access.
type MemoryStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	now      func() time.Time
	sessions map[string]memoryEntry
}

type memoryEntry struct {
	session   ports.Session
	expiresAt time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:      ttl,
		now:      time.Now,
		sessions: map[string]memoryEntry{},
	}
}

func (m *MemoryStore) Load(ctx context.Context, id string) (ports.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		return ports.Session{}, ports.ErrSessionNotFound
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.sessions, id)
		return ports.Session{}, ports.ErrSessionNotFound
	}
	// Hand out a copy so callers cannot alias stored slices.
	s := e.session
	s.State = s.State.Clone()
	return s, nil
}

func (m *MemoryStore) Save(ctx context.Context, s ports.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := memoryEntry{session: s}
	e.session.State = s.State.Clone()
	if m.ttl > 0 {
		e.expiresAt = m.now().Add(m.ttl)
	}
	m.sessions[s.ID] = e
	return nil
}

func (m *MemoryStore) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Len reports how many sessions are held, expired ones included.
func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}
