package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pitabwire/vesselwizard/model"
)

// Schema creates the table used by PgSessionStore.
const Schema = `
CREATE TABLE IF NOT EXISTS wizard_sessions (
	id               TEXT PRIMARY KEY,
	actor_id         TEXT NOT NULL,
	transaction_type TEXT NOT NULL,
	status           TEXT NOT NULL,
	current_step     INTEGER NOT NULL,
	completed_steps  JSONB NOT NULL DEFAULT '[]',
	data             JSONB NOT NULL DEFAULT '[]',
	selected_unit_id TEXT NOT NULL DEFAULT '',
	pending_action   JSONB,
	violations       JSONB,
	version          INTEGER NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	updated_at       TIMESTAMPTZ NOT NULL,
	expires_at       TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS wizard_sessions_actor_status ON wizard_sessions (actor_id, status);
CREATE INDEX IF NOT EXISTS wizard_sessions_expires_at ON wizard_sessions (expires_at);
`

const sessionColumns = `id, actor_id, transaction_type, status, current_step, completed_steps,
	data, selected_unit_id, pending_action, violations, version,
	created_at, updated_at, expires_at`

// PgSessionStore is a PostgreSQL-backed SessionStore using pgx/v5.
type PgSessionStore struct {
	pool *pgxpool.Pool
}

// NewPgSessionStore creates a new PostgreSQL session store.
func NewPgSessionStore(pool *pgxpool.Pool) *PgSessionStore {
	return &PgSessionStore{pool: pool}
}

// EnsureSchema creates the sessions table when it does not exist.
func (s *PgSessionStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("create wizard_sessions: %w", err)
	}
	return nil
}

// sessionRow holds the JSON-encoded columns of a session.
type sessionRow struct {
	completed  []byte
	data       []byte
	pending    []byte
	violations []byte
}

func encodeRow(session *model.WizardSession) (sessionRow, error) {
	var row sessionRow
	var err error
	if row.completed, err = json.Marshal(session.CompletedSteps); err != nil {
		return row, fmt.Errorf("marshal completed steps: %w", err)
	}
	if row.data, err = json.Marshal(session.Data); err != nil {
		return row, fmt.Errorf("marshal form data: %w", err)
	}
	if session.PendingAction != nil {
		if row.pending, err = json.Marshal(session.PendingAction); err != nil {
			return row, fmt.Errorf("marshal pending action: %w", err)
		}
	}
	if len(session.Violations) > 0 {
		if row.violations, err = json.Marshal(session.Violations); err != nil {
			return row, fmt.Errorf("marshal violations: %w", err)
		}
	}
	return row, nil
}

// Create inserts a new session.
func (s *PgSessionStore) Create(ctx context.Context, session *model.WizardSession) error {
	row, err := encodeRow(session)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO wizard_sessions (`+sessionColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		session.ID, session.ActorID, session.TransactionType, session.Status, session.CurrentStep, row.completed,
		row.data, session.SelectedUnitID, row.pending, row.violations, session.Version,
		session.CreatedAt, session.UpdatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("insert wizard session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, scoped to actor.
func (s *PgSessionStore) Get(ctx context.Context, actorID, sessionID string) (*model.WizardSession, error) {
	session, err := scanSession(s.pool.QueryRow(ctx, `
		SELECT `+sessionColumns+`
		FROM wizard_sessions
		WHERE id = $1 AND actor_id = $2`,
		sessionID, actorID,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, sessionNotFound(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("query wizard session: %w", err)
	}
	return session, nil
}

// Update persists an updated session with optimistic locking.
func (s *PgSessionStore) Update(ctx context.Context, session *model.WizardSession) error {
	row, err := encodeRow(session)
	if err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE wizard_sessions SET
			status = $1,
			current_step = $2,
			completed_steps = $3,
			data = $4,
			selected_unit_id = $5,
			pending_action = $6,
			violations = $7,
			version = $8,
			updated_at = $9,
			expires_at = $10
		WHERE id = $11 AND actor_id = $12 AND version = $13`,
		session.Status, session.CurrentStep, row.completed,
		row.data, session.SelectedUnitID, row.pending, row.violations,
		session.Version+1, time.Now().UTC(), session.ExpiresAt,
		session.ID, session.ActorID, session.Version,
	)
	if err != nil {
		return fmt.Errorf("update wizard session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d)", session.ID, session.Version),
		)
	}
	return nil
}

// ListActive returns the actor's active sessions.
func (s *PgSessionStore) ListActive(ctx context.Context, actorID string) ([]*model.WizardSession, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+sessionColumns+`
		FROM wizard_sessions
		WHERE actor_id = $1 AND status = 'active'
		ORDER BY updated_at DESC`,
		actorID,
	)
	if err != nil {
		return nil, fmt.Errorf("query wizard sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*model.WizardSession
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan wizard session: %w", err)
		}
		sessions = append(sessions, session)
	}
	return sessions, rows.Err()
}

// DeleteExpired removes sessions past their expiration time.
func (s *PgSessionStore) DeleteExpired(ctx context.Context, cutoff time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wizard_sessions
		WHERE expires_at IS NOT NULL AND expires_at < $1`,
		cutoff,
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired wizard sessions: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// Delete removes a session.
func (s *PgSessionStore) Delete(ctx context.Context, actorID, sessionID string) error {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM wizard_sessions
		WHERE id = $1 AND actor_id = $2`,
		sessionID, actorID,
	)
	if err != nil {
		return fmt.Errorf("delete wizard session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sessionNotFound(sessionID)
	}
	return nil
}

// HealthCheck pings the database.
func (s *PgSessionStore) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanSession(row pgx.Row) (*model.WizardSession, error) {
	var session model.WizardSession
	var enc sessionRow
	if err := row.Scan(
		&session.ID, &session.ActorID, &session.TransactionType, &session.Status, &session.CurrentStep, &enc.completed,
		&enc.data, &session.SelectedUnitID, &enc.pending, &enc.violations, &session.Version,
		&session.CreatedAt, &session.UpdatedAt, &session.ExpiresAt,
	); err != nil {
		return nil, err
	}

	if err := json.Unmarshal(enc.completed, &session.CompletedSteps); err != nil {
		return nil, fmt.Errorf("unmarshal completed steps: %w", err)
	}
	if err := json.Unmarshal(enc.data, &session.Data); err != nil {
		return nil, fmt.Errorf("unmarshal form data: %w", err)
	}
	if enc.pending != nil {
		session.PendingAction = &model.ActionEnvelope{}
		if err := json.Unmarshal(enc.pending, session.PendingAction); err != nil {
			return nil, fmt.Errorf("unmarshal pending action: %w", err)
		}
	}
	if enc.violations != nil {
		if err := json.Unmarshal(enc.violations, &session.Violations); err != nil {
			return nil, fmt.Errorf("unmarshal violations: %w", err)
		}
	}
	return &session, nil
}
