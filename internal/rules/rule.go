// Package rules applies cross-field rules within a step and cross-step rules
// over the accumulated form data of a wizard session.
package rules

import "github.com/pitabwire/vesselwizard/model"

// Rule is a configured validation rule. Every rule is either a SameStepRule
// or a CrossStepRule; the engine rejects anything else.
type Rule interface {
	ID() string
}

// SameStepRule validates using only the fields of the current step.
type SameStepRule interface {
	Rule
	Validate(fields []model.Field) model.RuleResult
}

// CrossStepRule validates using the accumulated form data. TriggerFieldID and
// RequiredFieldID may name fields on steps that are not currently rendered.
type CrossStepRule interface {
	Rule
	TriggerFieldID() string
	RequiredFieldID() string
	Validate(data model.FormData) model.RuleResult
}

// SameStepFunc adapts a function to SameStepRule.
type SameStepFunc struct {
	RuleID string
	Fn     func(fields []model.Field) model.RuleResult
}

// ID returns the rule ID.
func (r SameStepFunc) ID() string { return r.RuleID }

// Validate calls Fn.
func (r SameStepFunc) Validate(fields []model.Field) model.RuleResult { return r.Fn(fields) }

// CrossStepFunc adapts a function to CrossStepRule.
type CrossStepFunc struct {
	RuleID   string
	Trigger  string
	Required string
	Fn       func(data model.FormData) model.RuleResult
}

// ID returns the rule ID.
func (r CrossStepFunc) ID() string { return r.RuleID }

// TriggerFieldID returns the field whose value activates the rule.
func (r CrossStepFunc) TriggerFieldID() string { return r.Trigger }

// RequiredFieldID returns the field the rule constrains.
func (r CrossStepFunc) RequiredFieldID() string { return r.Required }

// Validate calls Fn.
func (r CrossStepFunc) Validate(data model.FormData) model.RuleResult { return r.Fn(data) }

// Report is the aggregate outcome of applying rules to a step.
type Report struct {
	Violations []model.Violation
}

// Passed reports whether no rule failed.
func (r Report) Passed() bool {
	return len(r.Violations) == 0
}

// Unattached returns the violations that could not be attached to a field of
// the current step.
func (r Report) Unattached() []model.Violation {
	var out []model.Violation
	for _, v := range r.Violations {
		if !v.Attached {
			out = append(out, v)
		}
	}
	return out
}

// FieldErrors returns the violations as API error details.
func (r Report) FieldErrors() []model.FieldError {
	out := make([]model.FieldError, 0, len(r.Violations))
	for _, v := range r.Violations {
		out = append(out, model.FieldError{Field: v.FieldID, Code: "RULE:" + v.RuleID, Message: v.Message})
	}
	return out
}
