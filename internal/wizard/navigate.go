package wizard

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/fieldvalidation"
	"github.com/pitabwire/vesselwizard/internal/navigation"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/internal/rules"
	"github.com/pitabwire/vesselwizard/model"
)

// UpdateFields stores values typed on the current step and returns the step
// with the changed fields validated. Untouched fields carry no error so the
// user is not told off for fields not reached yet. Same-step rules run on
// the result; cross-step rules wait for Next.
func (e *Engine) UpdateFields(ctx context.Context, rctx *model.RequestContext, sessionID string, version int, values model.FormData) (*View, error) {
	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, err
	}
	if err := e.merge(tx, session, values); err != nil {
		return nil, err
	}

	v := e.validator(ctx)
	fields := tx.Steps[session.CurrentStep].Instantiate(session.Data)
	for i, f := range fields {
		if _, touched := values.Get(f.Base().ID); touched {
			fields[i] = v.Validate(f)
		}
	}
	fields = rules.Apply(fields, tx.Rules(session.CurrentStep))

	session.Violations = nil
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	return e.render(tx, session, fields), nil
}

// Next submits the current step. values, which may be empty, are merged
// first. Every field is validated and every rule of the step is applied;
// when anything fails the input is kept, the violations are stored on the
// session and a STEP_INCOMPLETE error lists them. Otherwise the step is
// marked completed and the session moves to the next visible step, or is
// completed when there is none.
func (e *Engine) Next(ctx context.Context, rctx *model.RequestContext, sessionID string, version int, values model.FormData) (_ *View, err error) {
	ctx, span := observability.StartSpan(ctx, "wizard.next", attribute.String("session_id", sessionID))
	defer func() { observability.EndSpanWithError(span, err) }()

	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, err
	}
	if pendingConfirmation(session) {
		return nil, model.NewInvalidTransitionError("a confirmation is pending")
	}
	if err := e.merge(tx, session, values); err != nil {
		return nil, err
	}

	cur := session.CurrentStep
	step := tx.Steps[cur]
	if sel, fieldID, ok := tx.SelectorStep(); ok && sel == cur {
		if _, has := e.ruleSetOf(tx); has && (session.SelectedUnitID == "" || session.Data.Value(fieldID) != session.SelectedUnitID) {
			return nil, model.NewInvalidTransitionError("select an eligible marine unit first")
		}
	}

	fields := e.validator(ctx).ValidateAll(step.Instantiate(session.Data))
	fields, report := rules.ApplyAccumulated(fields, session.Data, tx.Rules(cur))

	if !fieldvalidation.IsFormValid(fields) || !report.Passed() || !navigation.CanProceed(cur, tx.Steps, session.Data) {
		session.Violations = report.Violations
		if err := e.save(ctx, session); err != nil {
			return nil, err
		}
		if e.recorder != nil {
			e.recorder.RecordStepValidationFailure(tx.Type, step.ID)
		}
		e.log(ctx).Debug("wizard step rejected",
			zap.String("session_id", sessionID),
			zap.String("step_id", step.ID),
			zap.Any("data", observability.RedactValues(session.Data, e.sensitiveFields(step))),
		)
		return nil, model.NewStepIncompleteError(stepErrors(fields, report))
	}

	next, ok := nextVisible(tx, cur, session.Data)
	if !ok {
		if missing, incomplete := firstIncomplete(tx, session, cur); incomplete {
			return nil, model.NewInvalidTransitionError(
				fmt.Sprintf("step %q has not been completed", tx.Steps[missing].ID),
			)
		}
	}

	session.Violations = nil
	session.MarkCompleted(cur)
	if ok {
		session.CurrentStep = next
	} else {
		session.Status = model.SessionStatusCompleted
		session.PendingAction = nil
	}
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}

	e.transition(tx, DirectionForward)
	if !ok {
		e.finished(tx, model.SessionStatusCompleted)
		e.log(ctx).Info("wizard session completed",
			zap.String("session_id", sessionID),
			zap.String("transaction_type", tx.Type),
		)
	}
	return e.render(tx, session, nil), nil
}

// Back moves to the previous visible step. Values are kept; a pending action
// is dropped.
func (e *Engine) Back(ctx context.Context, rctx *model.RequestContext, sessionID string, version int) (*View, error) {
	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, err
	}
	prev, ok := previousVisible(tx, session.CurrentStep, session.Data)
	if !ok {
		return nil, model.NewInvalidTransitionError("already on the first step")
	}

	session.CurrentStep = prev
	session.PendingAction = nil
	session.Violations = nil
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	e.transition(tx, DirectionBack)
	return e.render(tx, session, nil), nil
}

// JumpTo moves to target. Earlier steps may always be revisited; a forward
// jump may not pass over a visible step that was never completed.
func (e *Engine) JumpTo(ctx context.Context, rctx *model.RequestContext, sessionID string, version, target int) (*View, error) {
	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, err
	}
	cur := session.CurrentStep
	if target == cur {
		return e.render(tx, session, nil), nil
	}
	if pendingConfirmation(session) && target > cur {
		return nil, model.NewInvalidTransitionError("a confirmation is pending")
	}
	if !tx.Visible(target, session.Data) || !navigation.CanJumpTo(target, cur, passable(tx, session), tx.TotalSteps()) {
		return nil, model.NewInvalidTransitionError(fmt.Sprintf("cannot jump from step %d to step %d", cur, target))
	}

	session.CurrentStep = target
	session.PendingAction = nil
	session.Violations = nil
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	e.transition(tx, DirectionJump)
	return e.render(tx, session, nil), nil
}

// merge folds values into the session data. Only fields of the current step
// may be written, and the unit selector of a transaction with a rule set is
// only written by SelectUnit.
func (e *Engine) merge(tx *definition.Transaction, session *model.WizardSession, values model.FormData) error {
	step := tx.Steps[session.CurrentStep]
	_, selectorID, hasSelector := tx.SelectorStep()
	_, guarded := e.ruleSetOf(tx)
	for _, key := range values.Keys() {
		if !step.HasField(key) {
			return model.NewBadRequestError(fmt.Sprintf("field %q is not on step %q", key, step.ID))
		}
		if guarded && hasSelector && key == selectorID {
			return model.NewBadRequestError("the marine unit is chosen through unit selection")
		}
	}
	session.Data = session.Data.Merge(values)
	return nil
}

func (e *Engine) sensitiveFields(step model.StepDescriptor) []string {
	out := append([]string(nil), e.sensitive...)
	for _, fd := range step.Fields {
		if fd.Password || fd.Type == string(model.KindOTP) {
			out = append(out, fd.ID)
		}
	}
	return out
}

// stepErrors lists the field errors of a rejected step followed by the
// violations that could not be attached to a rendered field.
func stepErrors(fields []model.Field, report rules.Report) []model.FieldError {
	details := fieldvalidation.Errors(fields)
	for _, v := range report.Unattached() {
		details = append(details, model.FieldError{Field: v.FieldID, Code: v.RuleID, Message: v.Message})
	}
	return details
}

func pendingConfirmation(session *model.WizardSession) bool {
	return session.PendingAction != nil && session.PendingAction.Type == model.ActionShowConfirmation
}

func nextVisible(tx *definition.Transaction, cur int, data model.FormData) (int, bool) {
	total := tx.TotalSteps()
	for i, ok := navigation.NextStep(cur, total); ok; i, ok = navigation.NextStep(i, total) {
		if tx.Visible(i, data) {
			return i, true
		}
	}
	return 0, false
}

func previousVisible(tx *definition.Transaction, cur int, data model.FormData) (int, bool) {
	for i, ok := navigation.PreviousStep(cur); ok; i, ok = navigation.PreviousStep(i) {
		if tx.Visible(i, data) {
			return i, true
		}
	}
	return 0, false
}

// passable returns the completed steps plus the hidden ones, which a forward
// jump may pass over.
func passable(tx *definition.Transaction, session *model.WizardSession) map[int]bool {
	out := session.Completed()
	for i := range tx.Steps {
		if !tx.Visible(i, session.Data) {
			out[i] = true
		}
	}
	return out
}

// firstIncomplete returns the first visible step other than except that was
// never completed.
func firstIncomplete(tx *definition.Transaction, session *model.WizardSession, except int) (int, bool) {
	completed := session.Completed()
	for i := range tx.Steps {
		if i != except && !completed[i] && tx.Visible(i, session.Data) {
			return i, true
		}
	}
	return 0, false
}
