package rules

import (
	"fmt"

	"github.com/pitabwire/vesselwizard/model"
)

// Build constructs the rule described by def.
func Build(def model.RuleDefinition) (Rule, error) {
	if def.ID == "" {
		return nil, fmt.Errorf("rule id is required")
	}
	msg := def.Message
	switch def.Type {
	case model.RuleRequiredWhenPositive:
		if def.Trigger == "" || def.Required == "" {
			return nil, fmt.Errorf("rule %s: trigger and required are mandatory", def.ID)
		}
		if msg == "" {
			msg = "This field is required when " + def.Trigger + " is set"
		}
		return RequiredWhenPositive{RuleID: def.ID, Trigger: def.Trigger, Required: def.Required, Message: msg}, nil

	case model.RuleRequiredWhen:
		if def.Required == "" {
			return nil, fmt.Errorf("rule %s: required is mandatory", def.ID)
		}
		cond, err := ParseCondition(def.Condition)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", def.ID, err)
		}
		if msg == "" {
			msg = "This field is required"
		}
		return RequiredWhen{RuleID: def.ID, When: cond, Required: def.Required, Message: msg}, nil

	case model.RuleFieldsMatch:
		if len(def.Fields) != 2 {
			return nil, fmt.Errorf("rule %s: fields_match needs exactly two fields", def.ID)
		}
		if msg == "" {
			msg = "Values do not match"
		}
		return FieldsMatch{RuleID: def.ID, Source: def.Fields[0], Confirm: def.Fields[1], Message: msg}, nil

	case model.RuleDateOrder:
		if len(def.Fields) != 2 {
			return nil, fmt.Errorf("rule %s: date_order needs exactly two fields", def.ID)
		}
		if msg == "" {
			msg = "End date cannot be before start date"
		}
		return DateOrder{RuleID: def.ID, Start: def.Fields[0], End: def.Fields[1], Message: msg}, nil
	}
	return nil, fmt.Errorf("rule %s: unknown type %q", def.ID, def.Type)
}

// ReferencedFields returns the field IDs a rule reads or writes.
func ReferencedFields(r Rule) []string {
	switch v := r.(type) {
	case FieldsMatch:
		return []string{v.Source, v.Confirm}
	case DateOrder:
		return []string{v.Start, v.End}
	case CrossStepRule:
		return []string{v.TriggerFieldID(), v.RequiredFieldID()}
	case SameStepRule:
		return nil
	}
	panic(model.UnhandledVariant("rule", r))
}
