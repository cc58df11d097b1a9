// Package wizard drives wizard sessions: it renders the current step,
// validates submissions, moves between steps and applies the navigation
// actions produced by eligibility resolution.
package wizard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/eligibility"
	"github.com/pitabwire/vesselwizard/internal/fieldvalidation"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/model"
)

// Step transition directions reported to the Recorder.
const (
	DirectionForward = "forward"
	DirectionBack    = "back"
	DirectionJump    = "jump"
)

// Recorder receives session metrics.
type Recorder interface {
	RecordSessionStart(transactionType string)
	RecordSessionFinish(transactionType, status string)
	RecordStepTransition(transactionType, direction string)
	RecordStepValidationFailure(transactionType, stepID string)
	RecordSessionConflict()
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMessages sets the resolver used for validation messages.
func WithMessages(m model.MessageResolver) Option {
	return func(e *Engine) { e.messages = m }
}

// WithTTL sets the idle lifetime of a session. Every mutation extends it.
func WithTTL(ttl time.Duration) Option {
	return func(e *Engine) { e.ttl = ttl }
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithIDGenerator replaces the session ID generator.
func WithIDGenerator(newID func() string) Option {
	return func(e *Engine) { e.newID = newID }
}

// WithSensitiveFields lists field IDs whose values are redacted in logs.
func WithSensitiveFields(ids ...string) Option {
	return func(e *Engine) { e.sensitive = ids }
}

// Engine manages the lifecycle of wizard sessions. It keeps no state of its
// own besides its collaborators; sessions live in the SessionStore.
type Engine struct {
	defs        *definition.Registry
	store       SessionStore
	eligibility *eligibility.Engine
	ruleSets    *eligibility.Registry
	units       model.MarineRegistry
	capResolver model.CapabilityResolver
	logger      *zap.Logger

	recorder  Recorder
	messages  model.MessageResolver
	ttl       time.Duration
	now       func() time.Time
	newID     func() string
	sensitive []string
}

// NewEngine creates a new wizard engine. capResolver may be nil, in which
// case transaction capabilities are not enforced.
func NewEngine(
	defs *definition.Registry,
	store SessionStore,
	resolver *eligibility.Engine,
	ruleSets *eligibility.Registry,
	units model.MarineRegistry,
	capResolver model.CapabilityResolver,
	logger *zap.Logger,
	opts ...Option,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		defs:        defs,
		store:       store,
		eligibility: resolver,
		ruleSets:    ruleSets,
		units:       units,
		capResolver: capResolver,
		logger:      logger,
		ttl:         24 * time.Hour,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Start creates a session for txType on its first step. Field defaults are
// seeded into the form data and prefill, typically the data handed over by a
// redirect, is merged over them.
func (e *Engine) Start(ctx context.Context, rctx *model.RequestContext, txType string, prefill model.FormData) (*View, error) {
	tx, ok := e.defs.GetTransaction(txType)
	if !ok {
		return nil, unknownTransaction(txType)
	}
	if err := e.authorize(rctx, tx); err != nil {
		return nil, err
	}

	data := model.FormData{}
	for _, step := range tx.Steps {
		for _, fd := range step.Fields {
			if fd.Default != "" {
				data = data.With(fd.ID, fd.Default)
			}
		}
	}
	data = data.Merge(prefill)

	now := e.now()
	session := &model.WizardSession{
		ID:              e.newID(),
		TransactionType: tx.Type,
		ActorID:         rctx.ActorID,
		CompletedSteps:  []int{},
		Data:            data,
		Status:          model.SessionStatusActive,
		CreatedAt:       now,
		UpdatedAt:       now,
		Version:         1,
	}
	e.touch(session)

	if err := e.store.Create(ctx, session); err != nil {
		return nil, err
	}
	if e.recorder != nil {
		e.recorder.RecordSessionStart(tx.Type)
	}
	e.log(ctx).Info("wizard session started",
		zap.String("session_id", session.ID),
		zap.String("transaction_type", tx.Type),
		zap.Int("prefilled", prefill.Len()),
	)
	return e.render(tx, session, nil), nil
}

// Get returns the current view of a session in any status.
func (e *Engine) Get(ctx context.Context, rctx *model.RequestContext, sessionID string) (*View, error) {
	session, tx, err := e.load(ctx, rctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	return e.render(tx, session, nil), nil
}

// List returns summaries of the actor's active sessions.
func (e *Engine) List(ctx context.Context, rctx *model.RequestContext) ([]model.SessionSummary, error) {
	sessions, err := e.store.ListActive(ctx, rctx.ActorID)
	if err != nil {
		return nil, err
	}
	summaries := make([]model.SessionSummary, 0, len(sessions))
	for _, s := range sessions {
		summary := model.SessionSummary{
			ID:              s.ID,
			TransactionType: s.TransactionType,
			Title:           s.TransactionType,
			CurrentStep:     s.CurrentStep,
			Status:          s.Status,
			UpdatedAt:       s.UpdatedAt,
		}
		if tx, ok := e.defs.GetTransaction(s.TransactionType); ok {
			summary.Title = tx.Title
			summary.TotalSteps = tx.TotalSteps()
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Cancel ends an active session.
func (e *Engine) Cancel(ctx context.Context, rctx *model.RequestContext, sessionID string, version int) error {
	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return err
	}
	session.Status = model.SessionStatusCancelled
	session.PendingAction = nil
	if err := e.save(ctx, session); err != nil {
		return err
	}
	e.finished(tx, model.SessionStatusCancelled)
	e.log(ctx).Info("wizard session cancelled", zap.String("session_id", sessionID))
	return nil
}

// ExpireSessions removes sessions whose lifetime has passed.
func (e *Engine) ExpireSessions(ctx context.Context) (int, error) {
	n, err := e.store.DeleteExpired(ctx, e.now())
	if err != nil {
		return 0, err
	}
	if n > 0 {
		e.logger.Info("expired wizard sessions removed", zap.Int("count", n))
	}
	return n, nil
}

// load fetches a session and its compiled transaction. A non-zero version
// must match the stored one.
func (e *Engine) load(ctx context.Context, rctx *model.RequestContext, sessionID string, version int) (*model.WizardSession, *definition.Transaction, error) {
	session, err := e.store.Get(ctx, rctx.ActorID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	tx, ok := e.defs.GetTransaction(session.TransactionType)
	if !ok {
		return nil, nil, unknownTransaction(session.TransactionType)
	}
	if err := e.authorize(rctx, tx); err != nil {
		return nil, nil, err
	}
	if version > 0 && version != session.Version {
		e.conflict()
		return nil, nil, model.NewConflictError(
			fmt.Sprintf("wizard session %q version conflict (expected %d, got %d)", sessionID, version, session.Version),
		)
	}
	if session.CurrentStep < 0 || session.CurrentStep >= tx.TotalSteps() {
		return nil, nil, &model.ConfigurationError{
			Path:    tx.Type,
			Message: fmt.Sprintf("session %s is on step %d of %d", sessionID, session.CurrentStep, tx.TotalSteps()),
		}
	}
	return session, tx, nil
}

// loadActive is load restricted to active, unexpired sessions.
func (e *Engine) loadActive(ctx context.Context, rctx *model.RequestContext, sessionID string, version int) (*model.WizardSession, *definition.Transaction, error) {
	session, tx, err := e.load(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, nil, err
	}
	if session.Status != model.SessionStatusActive {
		return nil, nil, model.NewSessionNotActiveError(session.Status)
	}
	if session.ExpiresAt != nil && session.ExpiresAt.Before(e.now()) {
		return nil, nil, model.NewSessionNotActiveError("expired")
	}
	return session, tx, nil
}

func (e *Engine) authorize(rctx *model.RequestContext, tx *definition.Transaction) error {
	if len(tx.Capabilities) == 0 || e.capResolver == nil {
		return nil
	}
	caps, err := e.capResolver.Resolve(rctx)
	if err != nil {
		return fmt.Errorf("resolve capabilities: %w", err)
	}
	if !caps.HasAll(tx.Capabilities...) {
		return model.NewForbiddenError(fmt.Sprintf("insufficient capabilities for transaction %q", tx.Type))
	}
	return nil
}

// save persists session and, on success, mirrors the store's version bump.
func (e *Engine) save(ctx context.Context, session *model.WizardSession) error {
	e.touch(session)
	if err := e.store.Update(ctx, session); err != nil {
		var env *model.ErrorEnvelope
		if errors.As(err, &env) && env.Code == model.ErrConflict {
			e.conflict()
		}
		return err
	}
	session.Version++
	session.UpdatedAt = e.now()
	return nil
}

func (e *Engine) touch(session *model.WizardSession) {
	if e.ttl > 0 {
		exp := e.now().Add(e.ttl)
		session.ExpiresAt = &exp
	}
}

func (e *Engine) validator(ctx context.Context) *fieldvalidation.Validator {
	opts := []fieldvalidation.Option{fieldvalidation.WithClock(e.now)}
	if e.messages != nil {
		opts = append(opts, fieldvalidation.WithMessages(func(code string) string {
			return e.messages.Resolve(ctx, code)
		}))
	}
	return fieldvalidation.New(opts...)
}

func (e *Engine) ruleSetOf(tx *definition.Transaction) (eligibility.RuleSet, bool) {
	if tx.RuleSet == "" || e.ruleSets == nil {
		return nil, false
	}
	return e.ruleSets.Get(tx.RuleSet)
}

func (e *Engine) log(ctx context.Context) *zap.Logger {
	return observability.RequestLogger(ctx, e.logger)
}

func (e *Engine) conflict() {
	if e.recorder != nil {
		e.recorder.RecordSessionConflict()
	}
}

func (e *Engine) transition(tx *definition.Transaction, direction string) {
	if e.recorder != nil {
		e.recorder.RecordStepTransition(tx.Type, direction)
	}
}

func (e *Engine) finished(tx *definition.Transaction, status string) {
	if e.recorder != nil {
		e.recorder.RecordSessionFinish(tx.Type, status)
	}
}

func unknownTransaction(txType string) *model.ErrorEnvelope {
	return &model.ErrorEnvelope{
		Code:    model.ErrTransactionUnknown,
		Message: fmt.Sprintf("transaction %q not found", txType),
	}
}
