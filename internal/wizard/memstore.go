package wizard

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/pitabwire/vesselwizard/model"
)

// MemorySessionStore is an in-memory SessionStore for tests and single-node
// deployments.
type MemorySessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*model.WizardSession
	now      func() time.Time
}

// NewMemorySessionStore creates a new in-memory session store.
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		sessions: make(map[string]*model.WizardSession),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Create persists a new session.
func (s *MemorySessionStore) Create(_ context.Context, session *model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.sessions[session.ID]; exists {
		return model.NewConflictError(fmt.Sprintf("wizard session %q already exists", session.ID))
	}
	s.sessions[session.ID] = session.Clone()
	return nil
}

// Get retrieves a session by ID, scoped to actor.
func (s *MemorySessionStore) Get(_ context.Context, actorID, sessionID string) (*model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.ActorID != actorID {
		return nil, sessionNotFound(sessionID)
	}
	return session.Clone(), nil
}

// Update persists an updated session with optimistic locking.
func (s *MemorySessionStore) Update(_ context.Context, session *model.WizardSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.sessions[session.ID]
	if !exists || existing.ActorID != session.ActorID {
		return sessionNotFound(session.ID)
	}
	if existing.Version != session.Version {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d, got %d)", session.ID, session.Version, existing.Version),
		)
	}

	stored := session.Clone()
	stored.Version++
	stored.UpdatedAt = s.now()
	s.sessions[session.ID] = stored
	return nil
}

// ListActive returns the actor's active sessions.
func (s *MemorySessionStore) ListActive(_ context.Context, actorID string) ([]*model.WizardSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.WizardSession
	for _, session := range s.sessions {
		if session.ActorID != actorID || session.Status != model.SessionStatusActive {
			continue
		}
		result = append(result, session.Clone())
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// DeleteExpired removes sessions past their expiration time.
func (s *MemorySessionStore) DeleteExpired(_ context.Context, cutoff time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, session := range s.sessions {
		if session.ExpiresAt != nil && session.ExpiresAt.Before(cutoff) {
			delete(s.sessions, id)
			removed++
		}
	}
	return removed, nil
}

// Delete removes a session.
func (s *MemorySessionStore) Delete(_ context.Context, actorID, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, exists := s.sessions[sessionID]
	if !exists || session.ActorID != actorID {
		return sessionNotFound(sessionID)
	}
	delete(s.sessions, sessionID)
	return nil
}

// HealthCheck always succeeds.
func (s *MemorySessionStore) HealthCheck(context.Context) error { return nil }

// Len returns the total number of sessions. For testing.
func (s *MemorySessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
