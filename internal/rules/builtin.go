package rules

import (
	"strings"
	"time"

	"github.com/pitabwire/vesselwizard/model"
)

// RequiredWhenPositive requires Required to be filled whenever Trigger holds
// a number greater than zero, e.g. a bank name once a mortgage value is
// entered.
type RequiredWhenPositive struct {
	RuleID   string
	Trigger  string
	Required string
	Message  string
}

// ID returns the rule ID.
func (r RequiredWhenPositive) ID() string { return r.RuleID }

// TriggerFieldID returns the amount field.
func (r RequiredWhenPositive) TriggerFieldID() string { return r.Trigger }

// RequiredFieldID returns the field that becomes mandatory.
func (r RequiredWhenPositive) RequiredFieldID() string { return r.Required }

// Validate checks the rule against the accumulated data.
func (r RequiredWhenPositive) Validate(data model.FormData) model.RuleResult {
	amount, err := parseNumber(data.Value(r.Trigger))
	if err != nil || amount <= 0 {
		return model.Valid{}
	}
	if strings.TrimSpace(data.Value(r.Required)) != "" {
		return model.Valid{}
	}
	return model.Invalid{FieldID: r.Required, Message: r.Message}
}

// RequiredWhen requires Required to be filled whenever When holds.
type RequiredWhen struct {
	RuleID   string
	When     Condition
	Required string
	Message  string
}

// ID returns the rule ID.
func (r RequiredWhen) ID() string { return r.RuleID }

// TriggerFieldID returns the field the condition inspects.
func (r RequiredWhen) TriggerFieldID() string { return r.When.Field }

// RequiredFieldID returns the field that becomes mandatory.
func (r RequiredWhen) RequiredFieldID() string { return r.Required }

// Validate checks the rule against the accumulated data.
func (r RequiredWhen) Validate(data model.FormData) model.RuleResult {
	if !r.When.Eval(data) || strings.TrimSpace(data.Value(r.Required)) != "" {
		return model.Valid{}
	}
	return model.Invalid{FieldID: r.Required, Message: r.Message}
}

// FieldsMatch requires Confirm to repeat the value of Source, e.g. an email
// confirmation. The failure attaches to Confirm.
type FieldsMatch struct {
	RuleID  string
	Source  string
	Confirm string
	Message string
}

// ID returns the rule ID.
func (r FieldsMatch) ID() string { return r.RuleID }

// Validate checks the rule against the step's fields.
func (r FieldsMatch) Validate(fields []model.Field) model.RuleResult {
	src := valueOf(fields, r.ID(), r.Source)
	confirm := valueOf(fields, r.ID(), r.Confirm)
	if confirm == "" || src == confirm {
		return model.Valid{}
	}
	return model.Invalid{FieldID: r.Confirm, Message: r.Message}
}

// DateOrder requires End not to precede Start. Unparseable dates are left to
// the field validator.
type DateOrder struct {
	RuleID  string
	Start   string
	End     string
	Message string
}

// ID returns the rule ID.
func (r DateOrder) ID() string { return r.RuleID }

// Validate checks the rule against the step's fields.
func (r DateOrder) Validate(fields []model.Field) model.RuleResult {
	start, err := time.Parse(model.DateLayout, valueOf(fields, r.ID(), r.Start))
	if err != nil {
		return model.Valid{}
	}
	end, err := time.Parse(model.DateLayout, valueOf(fields, r.ID(), r.End))
	if err != nil {
		return model.Valid{}
	}
	if end.Before(start) {
		return model.Invalid{FieldID: r.End, Message: r.Message}
	}
	return model.Valid{}
}

// valueOf returns the trimmed value of a field the rule depends on. A missing
// field is a configuration error.
func valueOf(fields []model.Field, ruleID, fieldID string) string {
	f, _, ok := model.FindField(fields, fieldID)
	if !ok {
		panic(&model.ConfigurationError{
			Path:    "rules." + ruleID,
			Message: "rule reads field " + fieldID + " which is not on the step",
		})
	}
	return strings.TrimSpace(f.Base().Value)
}
