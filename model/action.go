package model

import (
	"errors"
	"fmt"
)

// NavigationAction is the decision the wizard must act on after an
// eligibility check. The set is closed. Every action ends the current
// decision cycle except ShowConfirmation, which defers exactly one other
// action until the user confirms.
type NavigationAction interface {
	ActionType() string
	navigationAction()
}

// Action type names.
const (
	ActionProceedToNextStep          = "proceed_to_next_step"
	ActionJumpToStep                 = "jump_to_step"
	ActionShowError                  = "show_error"
	ActionRedirectToTransaction      = "redirect_to_transaction"
	ActionShowConfirmation           = "show_confirmation"
	ActionShowComplianceDetailScreen = "show_compliance_detail_screen"
	ActionRouteToConditionalStep     = "route_to_conditional_step"
)

// ProceedToNextStep continues with the next step in order.
type ProceedToNextStep struct{}

// JumpToStep moves to the step at Index.
type JumpToStep struct {
	Index  int
	Reason string
}

// ErrorAction is a button offered next to an error.
type ErrorAction struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Standard error action IDs.
const (
	ErrorActionRetry   = "retry"
	ErrorActionDismiss = "dismiss"
	ErrorActionBack    = "back"
)

// ShowError halts progression and shows a message. Transient is true when the
// error stems from a failed lookup rather than a business verdict; the caller
// may offer a retry.
type ShowError struct {
	Title     string
	Message   string
	Actions   []ErrorAction
	Transient bool
}

// RedirectToTransaction hands the user over to another transaction type.
type RedirectToTransaction struct {
	TransactionType string
	Reason          string
	PrefilledData   FormData
}

// ShowConfirmation asks the user to confirm before OnConfirm is applied.
// OnConfirm is never itself a ShowConfirmation.
type ShowConfirmation struct {
	Message   string
	OnConfirm NavigationAction
}

// ShowComplianceDetailScreen shows the open compliance issues of a unit.
type ShowComplianceDetailScreen struct {
	MarineUnit      MarineUnit
	Issues          []ComplianceIssue
	RejectionReason string
}

// RouteToConditionalStep moves to TargetIndex because of Condition on Unit.
type RouteToConditionalStep struct {
	MarineUnit  MarineUnit
	TargetIndex int
	Condition   string
}

func (ProceedToNextStep) ActionType() string          { return ActionProceedToNextStep }
func (JumpToStep) ActionType() string                 { return ActionJumpToStep }
func (ShowError) ActionType() string                  { return ActionShowError }
func (RedirectToTransaction) ActionType() string      { return ActionRedirectToTransaction }
func (ShowConfirmation) ActionType() string           { return ActionShowConfirmation }
func (ShowComplianceDetailScreen) ActionType() string { return ActionShowComplianceDetailScreen }
func (RouteToConditionalStep) ActionType() string     { return ActionRouteToConditionalStep }

func (ProceedToNextStep) navigationAction()          {}
func (JumpToStep) navigationAction()                 {}
func (ShowError) navigationAction()                  {}
func (RedirectToTransaction) navigationAction()      {}
func (ShowConfirmation) navigationAction()           {}
func (ShowComplianceDetailScreen) navigationAction() {}
func (RouteToConditionalStep) navigationAction()     {}

// ErrNestedConfirmation is returned when a confirmation would wrap another
// confirmation.
var ErrNestedConfirmation = errors.New("model: confirmation cannot wrap another confirmation")

// NewConfirmation returns a ShowConfirmation deferring next.
func NewConfirmation(message string, next NavigationAction) (ShowConfirmation, error) {
	if next == nil {
		return ShowConfirmation{}, errors.New("model: confirmation requires an action")
	}
	if _, nested := next.(ShowConfirmation); nested {
		return ShowConfirmation{}, ErrNestedConfirmation
	}
	return ShowConfirmation{Message: message, OnConfirm: next}, nil
}

// ActionEnvelope is the flat JSON encoding of a NavigationAction, used by the
// session stores and the HTTP API.
type ActionEnvelope struct {
	Type            string            `json:"type"`
	Index           *int              `json:"index,omitempty"`
	Reason          string            `json:"reason,omitempty"`
	Title           string            `json:"title,omitempty"`
	Message         string            `json:"message,omitempty"`
	Actions         []ErrorAction     `json:"actions,omitempty"`
	Transient       bool              `json:"transient,omitempty"`
	TransactionType string            `json:"transaction_type,omitempty"`
	PrefilledData   *FormData         `json:"prefilled_data,omitempty"`
	OnConfirm       *ActionEnvelope   `json:"on_confirm,omitempty"`
	Unit            *MarineUnit       `json:"unit,omitempty"`
	Issues          []ComplianceIssue `json:"issues,omitempty"`
	Condition       string            `json:"condition,omitempty"`
}

// EncodeAction flattens a into an envelope. It panics on an unknown variant.
func EncodeAction(a NavigationAction) *ActionEnvelope {
	if a == nil {
		return nil
	}
	env := &ActionEnvelope{Type: a.ActionType()}
	switch v := a.(type) {
	case ProceedToNextStep:
	case JumpToStep:
		env.Index = &v.Index
		env.Reason = v.Reason
	case ShowError:
		env.Title = v.Title
		env.Message = v.Message
		env.Actions = v.Actions
		env.Transient = v.Transient
	case RedirectToTransaction:
		env.TransactionType = v.TransactionType
		env.Reason = v.Reason
		data := v.PrefilledData
		env.PrefilledData = &data
	case ShowConfirmation:
		env.Message = v.Message
		env.OnConfirm = EncodeAction(v.OnConfirm)
	case ShowComplianceDetailScreen:
		unit := v.MarineUnit
		env.Unit = &unit
		env.Issues = v.Issues
		env.Reason = v.RejectionReason
	case RouteToConditionalStep:
		unit := v.MarineUnit
		env.Unit = &unit
		env.Index = &v.TargetIndex
		env.Condition = v.Condition
	default:
		panic(UnhandledVariant("navigation action", a))
	}
	return env
}

// DecodeAction rebuilds the action held by env.
func DecodeAction(env *ActionEnvelope) (NavigationAction, error) {
	if env == nil {
		return nil, nil
	}
	switch env.Type {
	case ActionProceedToNextStep:
		return ProceedToNextStep{}, nil
	case ActionJumpToStep:
		if env.Index == nil {
			return nil, fmt.Errorf("model: %s requires an index", env.Type)
		}
		return JumpToStep{Index: *env.Index, Reason: env.Reason}, nil
	case ActionShowError:
		return ShowError{Title: env.Title, Message: env.Message, Actions: env.Actions, Transient: env.Transient}, nil
	case ActionRedirectToTransaction:
		var data FormData
		if env.PrefilledData != nil {
			data = *env.PrefilledData
		}
		return RedirectToTransaction{TransactionType: env.TransactionType, Reason: env.Reason, PrefilledData: data}, nil
	case ActionShowConfirmation:
		next, err := DecodeAction(env.OnConfirm)
		if err != nil {
			return nil, err
		}
		return NewConfirmation(env.Message, next)
	case ActionShowComplianceDetailScreen:
		if env.Unit == nil {
			return nil, fmt.Errorf("model: %s requires a unit", env.Type)
		}
		return ShowComplianceDetailScreen{MarineUnit: *env.Unit, Issues: env.Issues, RejectionReason: env.Reason}, nil
	case ActionRouteToConditionalStep:
		if env.Unit == nil || env.Index == nil {
			return nil, fmt.Errorf("model: %s requires a unit and an index", env.Type)
		}
		return RouteToConditionalStep{MarineUnit: *env.Unit, TargetIndex: *env.Index, Condition: env.Condition}, nil
	}
	return nil, fmt.Errorf("model: unknown action type %q", env.Type)
}
