package eligibility

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/model"
)

// Message keys for the transient failure dialog.
const (
	MsgLookupFailedTitle   = "eligibility.lookup_failed.title"
	MsgLookupFailedMessage = "eligibility.lookup_failed.message"
	MsgRetry               = "action.retry"
	MsgDismiss             = "action.dismiss"
)

var defaultMessages = map[string]string{
	MsgLookupFailedTitle:   "Service unavailable",
	MsgLookupFailedMessage: "We could not check this marine unit right now. Please try again.",
	MsgRetry:               "Retry",
	MsgDismiss:             "Dismiss",
}

// Recorder receives one observation per evaluated unit. verdict is
// "eligible", an IneligibilityReason, or "lookup_error".
type Recorder interface {
	RecordEligibility(transactionType, verdict string, duration time.Duration)
}

// Option configures an Engine.
type Option func(*Engine)

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(e *Engine) { e.recorder = r }
}

// WithMessages sets the resolver for user-facing texts.
func WithMessages(m model.MessageResolver) Option {
	return func(e *Engine) { e.messages = m }
}

// WithConcurrency bounds the number of units evaluated in parallel by
// ResolveForMany. Values below 1 mean unbounded.
func WithConcurrency(n int) Option {
	return func(e *Engine) { e.concurrency = n }
}

// WithLookupTimeout bounds each single rule set evaluation.
func WithLookupTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// Engine evaluates marine units against rule sets. It holds no per-session
// state and is safe for concurrent use.
type Engine struct {
	logger      *zap.Logger
	recorder    Recorder
	messages    model.MessageResolver
	concurrency int
	timeout     time.Duration
}

// NewEngine creates an Engine.
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{logger: logger, concurrency: 8}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Resolution couples a verdict with the action the caller must take. Result
// is nil when the verdict could not be obtained; Action is then a transient
// ShowError and Err holds the *LookupError.
type Resolution struct {
	Result model.EligibilityResult
	Action model.NavigationAction
	Err    error
}

// Validate obtains the verdict of rs for unit.
//
// A failed lookup is returned as a *LookupError. When ctx is cancelled the
// context error is returned and any verdict is dropped, so a stale result is
// never applied.
func (e *Engine) Validate(ctx context.Context, unit model.MarineUnit, actorID string, rs RuleSet) (model.EligibilityResult, error) {
	ctx, span := observability.StartSpan(ctx, "eligibility.validate",
		attribute.String("transaction_type", rs.TransactionType()),
		attribute.String("unit_id", unit.ID),
	)

	start := time.Now()
	result, err := e.evaluate(ctx, unit, actorID, rs)
	duration := time.Since(start)

	if cerr := ctx.Err(); cerr != nil {
		observability.EndSpanWithError(span, cerr)
		return nil, cerr
	}
	if err != nil {
		lerr := &LookupError{TransactionType: rs.TransactionType(), UnitID: unit.ID, Err: err}
		e.record(rs, "lookup_error", duration)
		e.logger.Warn("eligibility lookup failed",
			zap.String("transaction_type", rs.TransactionType()),
			zap.String("unit_id", unit.ID),
			zap.Error(err),
		)
		observability.EndSpanWithError(span, lerr)
		return nil, lerr
	}

	verdict := verdictOf(result)
	span.SetAttributes(attribute.String("verdict", verdict))
	e.record(rs, verdict, duration)
	e.logger.Debug("eligibility verdict",
		zap.String("transaction_type", rs.TransactionType()),
		zap.String("unit_id", unit.ID),
		zap.String("verdict", verdict),
		zap.Duration("duration", duration),
	)
	observability.EndSpanWithError(span, nil)
	return result, nil
}

// ValidateAndResolveAction obtains the verdict and the resulting action in one
// call. A transient failure yields a ShowError action marked Transient with a
// retry option instead of an error; only cancellation is returned as error.
func (e *Engine) ValidateAndResolveAction(ctx context.Context, unit model.MarineUnit, actorID string, rs RuleSet) (Resolution, error) {
	result, err := e.Validate(ctx, unit, actorID, rs)
	if err != nil {
		if !IsLookupError(err) {
			return Resolution{}, err
		}
		return Resolution{Action: e.transientError(ctx), Err: err}, nil
	}

	action := rs.MapResultToAction(result)
	checkAction(rs, action)
	return Resolution{Result: result, Action: action}, nil
}

func (e *Engine) evaluate(ctx context.Context, unit model.MarineUnit, actorID string, rs RuleSet) (model.EligibilityResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	result, err := rs.Validate(ctx, unit, actorID)
	if err != nil {
		return nil, err
	}
	if result == nil {
		panic(&model.ConfigurationError{
			Path:    "ruleset." + rs.TransactionType(),
			Message: "Validate returned neither a result nor an error",
		})
	}
	return result, nil
}

func (e *Engine) transientError(ctx context.Context) model.ShowError {
	return model.ShowError{
		Title:   e.message(ctx, MsgLookupFailedTitle),
		Message: e.message(ctx, MsgLookupFailedMessage),
		Actions: []model.ErrorAction{
			{ID: model.ErrorActionRetry, Label: e.message(ctx, MsgRetry)},
			{ID: model.ErrorActionDismiss, Label: e.message(ctx, MsgDismiss)},
		},
		Transient: true,
	}
}

func (e *Engine) message(ctx context.Context, key string) string {
	if e.messages != nil {
		if msg := e.messages.Resolve(ctx, key); msg != "" && msg != key {
			return msg
		}
	}
	return defaultMessages[key]
}

func (e *Engine) record(rs RuleSet, verdict string, d time.Duration) {
	if e.recorder != nil {
		e.recorder.RecordEligibility(rs.TransactionType(), verdict, d)
	}
}

// verdictOf labels result, panicking on an unknown variant or reason.
func verdictOf(result model.EligibilityResult) string {
	switch r := result.(type) {
	case model.Eligible:
		return "eligible"
	case model.Ineligible:
		if !r.Reason.Known() {
			panic(model.UnhandledVariant("ineligibility reason", r.Reason))
		}
		return string(r.Reason)
	default:
		panic(model.UnhandledVariant("eligibility result", result))
	}
}

// checkAction enforces the action contract of a rule set: an action is always
// produced and a confirmation never wraps another confirmation.
func checkAction(rs RuleSet, action model.NavigationAction) {
	if action == nil {
		panic(&model.ConfigurationError{
			Path:    "ruleset." + rs.TransactionType(),
			Message: "MapResultToAction returned no action",
		})
	}
	if c, ok := action.(model.ShowConfirmation); ok {
		if _, nested := c.OnConfirm.(model.ShowConfirmation); nested || c.OnConfirm == nil {
			panic(&model.ConfigurationError{
				Path:    "ruleset." + rs.TransactionType(),
				Message: "confirmation must wrap exactly one non-confirmation action",
			})
		}
	}
}
