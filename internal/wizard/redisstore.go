package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pitabwire/vesselwizard/model"
)

const defaultRedisPrefix = "vesselwizard:"

// RedisSessionStore is a Redis-backed SessionStore. Sessions are stored as
// JSON under their ID and expire natively at ExpiresAt; a per-actor set
// indexes them for listing.
type RedisSessionStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// RedisOption configures a RedisSessionStore.
type RedisOption func(*RedisSessionStore)

// WithRedisPrefix sets the key prefix.
func WithRedisPrefix(prefix string) RedisOption {
	return func(s *RedisSessionStore) { s.prefix = prefix }
}

// WithRedisTTL sets the expiry used for sessions without ExpiresAt.
func WithRedisTTL(ttl time.Duration) RedisOption {
	return func(s *RedisSessionStore) { s.ttl = ttl }
}

// NewRedisSessionStore creates a session store on client.
func NewRedisSessionStore(client *redis.Client, opts ...RedisOption) *RedisSessionStore {
	s := &RedisSessionStore{
		client: client,
		prefix: defaultRedisPrefix,
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *RedisSessionStore) sessionKey(id string) string {
	return s.prefix + "session:" + id
}

func (s *RedisSessionStore) actorKey(actorID string) string {
	return s.prefix + "actor:" + actorID
}

// expiry returns the key TTL for session; zero means no expiry.
func (s *RedisSessionStore) expiry(session *model.WizardSession) time.Duration {
	if session.ExpiresAt == nil {
		return s.ttl
	}
	d := session.ExpiresAt.Sub(s.now())
	if d < time.Second {
		d = time.Second
	}
	return d
}

// Create persists a new session.
func (s *RedisSessionStore) Create(ctx context.Context, session *model.WizardSession) error {
	payload, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("marshal wizard session: %w", err)
	}

	ok, err := s.client.SetNX(ctx, s.sessionKey(session.ID), payload, s.expiry(session)).Result()
	if err != nil {
		return fmt.Errorf("store wizard session: %w", err)
	}
	if !ok {
		return model.NewConflictError(fmt.Sprintf("wizard session %q already exists", session.ID))
	}
	if err := s.client.SAdd(ctx, s.actorKey(session.ActorID), session.ID).Err(); err != nil {
		return fmt.Errorf("index wizard session: %w", err)
	}
	return nil
}

// Get retrieves a session by ID, scoped to actor.
func (s *RedisSessionStore) Get(ctx context.Context, actorID, sessionID string) (*model.WizardSession, error) {
	payload, err := s.client.Get(ctx, s.sessionKey(sessionID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sessionNotFound(sessionID)
	}
	if err != nil {
		return nil, fmt.Errorf("load wizard session: %w", err)
	}

	session, err := decodeSession(payload)
	if err != nil {
		return nil, err
	}
	if session.ActorID != actorID {
		return nil, sessionNotFound(sessionID)
	}
	return session, nil
}

// Update persists an updated session with optimistic locking. The version
// check and the write run in one WATCH transaction.
func (s *RedisSessionStore) Update(ctx context.Context, session *model.WizardSession) error {
	key := s.sessionKey(session.ID)

	err := s.client.Watch(ctx, func(tx *redis.Tx) error {
		payload, err := tx.Get(ctx, key).Bytes()
		if errors.Is(err, redis.Nil) {
			return sessionNotFound(session.ID)
		}
		if err != nil {
			return fmt.Errorf("load wizard session: %w", err)
		}
		existing, err := decodeSession(payload)
		if err != nil {
			return err
		}
		if existing.ActorID != session.ActorID {
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
		next, err := json.Marshal(stored)
		if err != nil {
			return fmt.Errorf("marshal wizard session: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, next, s.expiry(stored))
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return model.NewConflictError(fmt.Sprintf("wizard session %q was modified concurrently", session.ID))
	}
	return err
}

// ListActive returns the actor's active sessions. Index entries whose
// session has expired are pruned.
func (s *RedisSessionStore) ListActive(ctx context.Context, actorID string) ([]*model.WizardSession, error) {
	ids, err := s.client.SMembers(ctx, s.actorKey(actorID)).Result()
	if err != nil {
		return nil, fmt.Errorf("list wizard sessions: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load wizard sessions: %w", err)
	}

	var result []*model.WizardSession
	var stale []any
	for i, v := range values {
		raw, ok := v.(string)
		if !ok {
			stale = append(stale, ids[i])
			continue
		}
		session, err := decodeSession([]byte(raw))
		if err != nil {
			return nil, err
		}
		if session.ActorID == actorID && session.Status == model.SessionStatusActive {
			result = append(result, session)
		}
	}
	if len(stale) > 0 {
		if err := s.client.SRem(ctx, s.actorKey(actorID), stale...).Err(); err != nil {
			return nil, fmt.Errorf("prune wizard session index: %w", err)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].UpdatedAt.After(result[j].UpdatedAt)
	})
	return result, nil
}

// DeleteExpired is a no-op: Redis expires session keys itself.
func (s *RedisSessionStore) DeleteExpired(context.Context, time.Time) (int, error) {
	return 0, nil
}

// Delete removes a session.
func (s *RedisSessionStore) Delete(ctx context.Context, actorID, sessionID string) error {
	if _, err := s.Get(ctx, actorID, sessionID); err != nil {
		return err
	}
	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, s.sessionKey(sessionID))
		pipe.SRem(ctx, s.actorKey(actorID), sessionID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete wizard session: %w", err)
	}
	return nil
}

// HealthCheck pings Redis.
func (s *RedisSessionStore) HealthCheck(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func decodeSession(payload []byte) (*model.WizardSession, error) {
	var session model.WizardSession
	if err := json.Unmarshal(payload, &session); err != nil {
		return nil, fmt.Errorf("unmarshal wizard session: %w", err)
	}
	return &session, nil
}
