package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/eligibility"
	"github.com/pitabwire/vesselwizard/internal/observability"
	"github.com/pitabwire/vesselwizard/model"
)

// ListUnits evaluates every unit of the actor against the session's rule set
// and groups them for the selection step. Units whose verdict could not be
// obtained are listed as unavailable.
func (e *Engine) ListUnits(ctx context.Context, rctx *model.RequestContext, sessionID string) (*UnitList, error) {
	session, tx, err := e.loadActive(ctx, rctx, sessionID, 0)
	if err != nil {
		return nil, err
	}
	rs, ok := e.ruleSetOf(tx)
	if !ok {
		return nil, model.NewInvalidTransitionError(fmt.Sprintf("transaction %q has no unit selection", tx.Type))
	}

	units, err := e.units.FetchUnitsForUser(ctx, rctx.ActorID)
	if err != nil {
		if cerr := ctx.Err(); cerr != nil {
			return nil, cerr
		}
		e.log(ctx).Warn("listing marine units failed", zap.Error(err))
		return nil, model.NewBackendUnavailableError()
	}

	batch, err := e.eligibility.ResolveForMany(ctx, units, rctx.ActorID, rs)
	if err != nil {
		return nil, err
	}
	eligible, ineligible := eligibility.GroupByEligibility(batch)

	list := &UnitList{
		Title:             eligibility.StepTitle(rs),
		Description:       eligibility.StepDescription(rs),
		MultipleSelection: eligibility.AllowsMultipleSelection(rs),
		SelectedUnitID:    session.SelectedUnitID,
		Eligible:          eligible,
		Ineligible:        make([]IneligibleUnit, 0, len(ineligible)),
	}
	if list.Eligible == nil {
		list.Eligible = []model.MarineUnit{}
	}
	for _, u := range ineligible {
		list.Ineligible = append(list.Ineligible, IneligibleUnit{
			Unit:       u.Unit,
			Reason:     u.Result.Reason,
			Message:    u.Reason,
			Suggestion: u.Result.Suggestion,
		})
	}
	for _, f := range eligibility.Failed(batch) {
		list.Unavailable = append(list.Unavailable, f.Unit)
	}
	return list, nil
}

// SelectUnit records the user's unit choice and acts on the eligibility
// verdict. Several IDs are accepted only when the rule set allows multiple
// selection; the units are then checked in order and the first rejection
// decides the action.
//
// Resolution runs against the session version read at the start. If the
// session changes meanwhile, the write fails with CONFLICT and the verdict is
// dropped; if ctx is cancelled the context error is returned and nothing is
// written.
func (e *Engine) SelectUnit(ctx context.Context, rctx *model.RequestContext, sessionID string, version int, unitIDs []string) (_ *View, err error) {
	ctx, span := observability.StartSpan(ctx, "wizard.select_unit", attribute.String("session_id", sessionID))
	defer func() { observability.EndSpanWithError(span, err) }()

	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, err
	}
	rs, ok := e.ruleSetOf(tx)
	if !ok {
		return nil, model.NewInvalidTransitionError(fmt.Sprintf("transaction %q has no unit selection", tx.Type))
	}
	selStep, fieldID, _ := tx.SelectorStep()
	if session.CurrentStep != selStep {
		return nil, model.NewInvalidTransitionError("unit selection is not available on this step")
	}

	ids := dedupe(unitIDs)
	switch {
	case len(ids) == 0:
		return nil, model.NewBadRequestError("at least one marine unit must be selected")
	case len(ids) > 1 && !eligibility.AllowsMultipleSelection(rs):
		return nil, model.NewBadRequestError("this transaction accepts a single marine unit")
	}

	action, extra, eligible, err := e.resolve(ctx, rctx, rs, ids)
	if err != nil {
		return nil, err
	}

	value := encodeSelection(ids)
	session.Data = session.Data.With(fieldID, value)
	session.SelectedUnitID = ""
	if eligible {
		session.SelectedUnitID = value
		keys := make([]string, 0, len(extra))
		for k := range extra {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			if k == fieldID {
				continue
			}
			session.Data = session.Data.With(k, extra[k])
		}
	}
	session.PendingAction = nil
	session.Violations = nil

	direction, err := e.apply(tx, session, action)
	if err != nil {
		return nil, err
	}
	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	e.afterApply(ctx, tx, session, action, direction)
	return e.render(tx, session, nil), nil
}

// Confirm answers a pending action. Accepting a confirmation applies the
// action it defers; declining it, or dismissing any other pending action,
// clears it and keeps the session where it is.
func (e *Engine) Confirm(ctx context.Context, rctx *model.RequestContext, sessionID string, version int, accept bool) (*View, error) {
	session, tx, err := e.loadActive(ctx, rctx, sessionID, version)
	if err != nil {
		return nil, err
	}
	if session.PendingAction == nil {
		return nil, noPendingAction("there is no pending action")
	}
	pending, err := model.DecodeAction(session.PendingAction)
	if err != nil {
		return nil, fmt.Errorf("decode pending action: %w", err)
	}
	confirmation, isConfirmation := pending.(model.ShowConfirmation)
	if accept && !isConfirmation {
		return nil, noPendingAction("there is no confirmation to accept")
	}

	session.PendingAction = nil
	var action model.NavigationAction
	direction := ""
	if accept {
		action = confirmation.OnConfirm
		if direction, err = e.apply(tx, session, action); err != nil {
			return nil, err
		}
	} else if isConfirmation {
		session.SelectedUnitID = ""
	}

	if err := e.save(ctx, session); err != nil {
		return nil, err
	}
	if action != nil {
		e.afterApply(ctx, tx, session, action, direction)
	}
	return e.render(tx, session, nil), nil
}

// resolve checks each unit in order and returns the action to apply, the
// data to prefill and whether every unit was eligible.
func (e *Engine) resolve(ctx context.Context, rctx *model.RequestContext, rs eligibility.RuleSet, ids []string) (model.NavigationAction, map[string]string, bool, error) {
	var first model.NavigationAction
	extra := make(map[string]string)

	for _, id := range ids {
		unit, err := e.units.FetchUnit(ctx, id)
		if errors.Is(err, model.ErrUnitNotFound) {
			return nil, nil, false, model.NewNotFoundError(fmt.Sprintf("marine unit %q not found", id))
		}
		if err != nil {
			if cerr := ctx.Err(); cerr != nil {
				return nil, nil, false, cerr
			}
			e.log(ctx).Warn("fetching marine unit failed", zap.String("unit_id", id), zap.Error(err))
			return nil, nil, false, model.NewBackendUnavailableError()
		}

		res, err := e.eligibility.ValidateAndResolveAction(ctx, unit, rctx.ActorID, rs)
		if err != nil {
			return nil, nil, false, err
		}
		verdict, isEligible := res.Result.(model.Eligible)
		if !isEligible {
			return res.Action, nil, false, nil
		}
		for k, v := range verdict.ExtraData {
			extra[k] = v
		}
		if first == nil {
			first = res.Action
		}
	}
	return first, extra, true, nil
}

// apply changes session according to action and returns the transition
// direction to report, empty when the session stays on its step.
func (e *Engine) apply(tx *definition.Transaction, session *model.WizardSession, action model.NavigationAction) (string, error) {
	switch a := action.(type) {
	case model.ProceedToNextStep:
		cur := session.CurrentStep
		session.MarkCompleted(cur)
		if next, ok := nextVisible(tx, cur, session.Data); ok {
			session.CurrentStep = next
		} else {
			session.Status = model.SessionStatusCompleted
		}
		return DirectionForward, nil

	case model.JumpToStep:
		return DirectionJump, moveTo(tx, session, a.Index)

	case model.RouteToConditionalStep:
		return DirectionJump, moveTo(tx, session, a.TargetIndex)

	case model.ShowError, model.ShowComplianceDetailScreen, model.ShowConfirmation:
		session.PendingAction = model.EncodeAction(action)
		return "", nil

	case model.RedirectToTransaction:
		session.PendingAction = model.EncodeAction(action)
		session.Status = model.SessionStatusRedirected
		return "", nil

	default:
		panic(model.UnhandledVariant("navigation action", action))
	}
}

func (e *Engine) afterApply(ctx context.Context, tx *definition.Transaction, session *model.WizardSession, action model.NavigationAction, direction string) {
	if direction != "" {
		e.transition(tx, direction)
	}
	switch session.Status {
	case model.SessionStatusCompleted, model.SessionStatusRedirected:
		e.finished(tx, session.Status)
	}
	e.log(ctx).Info("navigation action applied",
		zap.String("session_id", session.ID),
		zap.String("action", action.ActionType()),
		zap.Int("current_step", session.CurrentStep),
		zap.String("status", session.Status),
	)
}

// moveTo completes the current step and moves forward to target.
func moveTo(tx *definition.Transaction, session *model.WizardSession, target int) error {
	if target <= session.CurrentStep || target >= tx.TotalSteps() {
		return &model.ConfigurationError{
			Path:    "ruleset." + tx.RuleSet,
			Message: fmt.Sprintf("action targets step %d, which is not ahead of step %d", target, session.CurrentStep),
		}
	}
	session.MarkCompleted(session.CurrentStep)
	session.CurrentStep = target
	return nil
}

func encodeSelection(ids []string) string {
	if len(ids) == 1 {
		return ids[0]
	}
	b, _ := json.Marshal(ids)
	return string(b)
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

func noPendingAction(msg string) *model.ErrorEnvelope {
	return &model.ErrorEnvelope{Code: model.ErrNoPendingAction, Message: msg}
}
