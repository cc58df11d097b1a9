package rules

import (
	"fmt"

	"github.com/pitabwire/vesselwizard/model"
)

// Apply evaluates the same-step rules in configured order against the current
// candidate fields. Each rule sees the fields as left by the rules before it;
// a failure overwrites the error of the field it names, so when several rules
// fail on one field the last one wins. Cross-step rules are skipped.
//
// Apply panics with a *model.ConfigurationError when a rule names a field the
// step does not render.
func Apply(fields []model.Field, rules []Rule) []model.Field {
	out := cloneFields(fields)
	for _, rule := range rules {
		switch r := rule.(type) {
		case SameStepRule:
			out, _ = attachSameStep(out, r)
		case CrossStepRule:
		default:
			panic(model.UnhandledVariant("rule", rule))
		}
	}
	return out
}

// ApplyAccumulated evaluates every rule in configured order: same-step rules
// against the current step's fields and cross-step rules against data. Rules
// are not short-circuited by earlier failures.
//
// A failing cross-step rule whose field is not rendered on this step mutates
// nothing; it is returned in the report as an unattached violation so the
// caller can block navigation.
func ApplyAccumulated(fields []model.Field, data model.FormData, rules []Rule) ([]model.Field, Report) {
	out := cloneFields(fields)
	var report Report

	for _, rule := range rules {
		switch r := rule.(type) {
		case SameStepRule:
			var v *model.Violation
			out, v = attachSameStep(out, r)
			if v != nil {
				report.Violations = append(report.Violations, *v)
			}

		case CrossStepRule:
			res := r.Validate(data)
			inv, failed := invalid(res)
			if !failed {
				continue
			}
			v := model.Violation{RuleID: r.ID(), FieldID: inv.FieldID, Message: inv.Message, CrossStep: true}
			if _, i, ok := model.FindField(out, inv.FieldID); ok {
				out[i] = model.WithError(out[i], inv.Message)
				v.Attached = true
			}
			report.Violations = append(report.Violations, v)

		default:
			panic(model.UnhandledVariant("rule", rule))
		}
	}
	return out, report
}

func attachSameStep(fields []model.Field, r SameStepRule) ([]model.Field, *model.Violation) {
	inv, failed := invalid(r.Validate(fields))
	if !failed {
		return fields, nil
	}
	_, i, ok := model.FindField(fields, inv.FieldID)
	if !ok {
		panic(&model.ConfigurationError{
			Path:    "rules." + r.ID(),
			Message: fmt.Sprintf("same-step rule targets field %q which is not on the step", inv.FieldID),
		})
	}
	fields[i] = model.WithError(fields[i], inv.Message)
	return fields, &model.Violation{RuleID: r.ID(), FieldID: inv.FieldID, Message: inv.Message, Attached: true}
}

func invalid(res model.RuleResult) (model.Invalid, bool) {
	switch v := res.(type) {
	case model.Valid:
		return model.Invalid{}, false
	case model.Invalid:
		return v, true
	default:
		panic(model.UnhandledVariant("rule result", res))
	}
}

func cloneFields(fields []model.Field) []model.Field {
	out := make([]model.Field, len(fields))
	copy(out, fields)
	return out
}
