package wizard

import (
	"context"
	"time"

	"github.com/pitabwire/vesselwizard/model"
)

// SessionStore persists wizard sessions.
type SessionStore interface {
	// Create persists a new session.
	Create(ctx context.Context, session *model.WizardSession) error

	// Get retrieves a session by ID, scoped to an actor. Returns
	// SESSION_NOT_FOUND if the session doesn't exist or belongs to another
	// actor.
	Get(ctx context.Context, actorID, sessionID string) (*model.WizardSession, error)

	// Update persists an updated session with optimistic locking. The
	// session's Version must match the stored version; on success the
	// stored copy carries Version+1. Returns CONFLICT if the version has
	// changed.
	Update(ctx context.Context, session *model.WizardSession) error

	// ListActive returns the actor's active sessions, most recently updated
	// first.
	ListActive(ctx context.Context, actorID string) ([]*model.WizardSession, error)

	// DeleteExpired removes sessions whose expires_at is before cutoff and
	// returns how many were removed.
	DeleteExpired(ctx context.Context, cutoff time.Time) (int, error)

	// Delete removes a session.
	Delete(ctx context.Context, actorID, sessionID string) error

	// HealthCheck reports whether the backing store is reachable.
	HealthCheck(ctx context.Context) error
}

func sessionNotFound(id string) *model.ErrorEnvelope {
	return &model.ErrorEnvelope{
		Code:    model.ErrSessionNotFound,
		Message: "wizard session \"" + id + "\" not found",
	}
}
