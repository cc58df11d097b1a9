// Package transactions holds the eligibility rule sets of the marine unit
// transactions offered by the wizard.
package transactions

import (
	"context"
	"fmt"

	"github.com/pitabwire/vesselwizard/model"
)

// Transaction types.
const (
	TypeMortgageRequest          = "mortgage_request"
	TypeMortgageRelease          = "mortgage_release"
	TypePermanentRegistration    = "permanent_registration"
	TypeRegistrationCancellation = "registration_cancellation"
)

// Message keys and their English defaults. Templates take the unit name as
// first argument where they contain a verb.
var defaultMessages = map[string]string{
	"ineligible.not_owned":                    "%s is not registered to you.",
	"ineligible.not_owned.suggestion":         "Select a marine unit you own or contact the registry office.",
	"ineligible.already_mortgaged":            "%s is already mortgaged.",
	"ineligible.already_mortgaged.suggestion": "Release the existing mortgage first.",
	"ineligible.not_mortgaged":                "%s has no active mortgage.",
	"ineligible.temporary":                    "%s only holds a temporary registration.",
	"ineligible.temporary.suggestion":         "Apply for permanent registration first.",
	"ineligible.suspended":                    "The registration of %s is suspended or cancelled.",
	"ineligible.violations":                   "%s has open violations.",
	"ineligible.violations.suggestion":        "Settle the listed violations and try again.",
	"ineligible.detentions":                   "%s is under detention.",
	"ineligible.already_permanent":            "%s is already permanently registered.",
	"error.ineligible.title":                  "This marine unit cannot be used",
	"confirm.cancel_mortgaged":                "%s is mortgaged to %s. Cancelling its registration requires the bank's consent. Continue?",
	"redirect.mortgage_release":               "The unit is mortgaged; a mortgage release is needed first.",
	"redirect.permanent_registration":         "The unit needs a permanent registration first.",
	"jump.mortgage_loaded":                    "Mortgage details were loaded from the registry.",
	"action.back":                             "Choose another unit",
}

// base carries the collaborators shared by every rule set.
type base struct {
	registry model.MarineRegistry
	messages model.MessageResolver
}

func (b base) text(ctx context.Context, key string, args ...any) string {
	tmpl := key
	if b.messages != nil {
		tmpl = b.messages.Resolve(ctx, key)
	}
	if tmpl == key || tmpl == "" {
		tmpl = defaultMessages[key]
	}
	if len(args) == 0 {
		return tmpl
	}
	return fmt.Sprintf(tmpl, args...)
}

func (b base) ineligible(ctx context.Context, unit model.MarineUnit, reason model.IneligibilityReason, key string) model.Ineligible {
	return model.Ineligible{
		MarineUnit: unit,
		Reason:     reason,
		Message:    b.text(ctx, key, displayName(unit)),
		Suggestion: b.suggestion(ctx, key),
	}
}

func (b base) suggestion(ctx context.Context, key string) string {
	skey := key + ".suggestion"
	if _, ok := defaultMessages[skey]; !ok {
		return ""
	}
	return b.text(ctx, skey)
}

// checkOwnership rejects units the actor does not own.
func (b base) checkOwnership(ctx context.Context, unit model.MarineUnit, actorID string) (*model.Ineligible, error) {
	owned, err := b.registry.CheckOwnership(ctx, unit.ID, actorID)
	if err != nil {
		return nil, fmt.Errorf("checking ownership: %w", err)
	}
	if !owned {
		r := b.ineligible(ctx, unit, model.ReasonNotOwned, "ineligible.not_owned")
		return &r, nil
	}
	return nil, nil
}

// checkActive rejects suspended or cancelled registrations.
func (b base) checkActive(ctx context.Context, unit model.MarineUnit) *model.Ineligible {
	switch unit.RegistrationStatus {
	case model.RegistrationSuspended, model.RegistrationCancelled:
		r := b.ineligible(ctx, unit, model.ReasonSuspendedOrCancelled, "ineligible.suspended")
		return &r
	}
	return nil
}

// checkCompliance rejects units with open detentions, then violations.
func (b base) checkCompliance(ctx context.Context, unit model.MarineUnit, allowViolations bool) (*model.Ineligible, error) {
	report, err := b.registry.Compliance(ctx, unit.ID)
	if err != nil {
		return nil, fmt.Errorf("checking compliance: %w", err)
	}
	if d := report.Detentions(); len(d) > 0 {
		r := b.ineligible(ctx, unit, model.ReasonHasDetentions, "ineligible.detentions")
		r.Issues = d
		return &r, nil
	}
	if v := report.Violations(); len(v) > 0 && !allowViolations {
		r := b.ineligible(ctx, unit, model.ReasonHasViolations, "ineligible.violations")
		r.Issues = v
		return &r, nil
	}
	return nil, nil
}

func (b base) mortgageStatus(ctx context.Context, unit model.MarineUnit) (model.MortgageStatus, error) {
	st, err := b.registry.MortgageStatus(ctx, unit.ID)
	if err != nil {
		return model.MortgageStatus{}, fmt.Errorf("checking mortgage status: %w", err)
	}
	return st, nil
}

// showError is the generic action for a rejection the user can only remedy
// by choosing another unit.
func (b base) showError(r model.Ineligible) model.ShowError {
	msg := r.Message
	if r.Suggestion != "" {
		msg += " " + r.Suggestion
	}
	return model.ShowError{
		Title:   b.text(context.Background(), "error.ineligible.title"),
		Message: msg,
		Actions: []model.ErrorAction{{ID: model.ErrorActionBack, Label: b.text(context.Background(), "action.back")}},
	}
}

func complianceScreen(r model.Ineligible) model.ShowComplianceDetailScreen {
	return model.ShowComplianceDetailScreen{MarineUnit: r.MarineUnit, Issues: r.Issues, RejectionReason: r.Message}
}

func unitData(unit model.MarineUnit) map[string]string {
	return map[string]string{
		"unit_id":             unit.ID,
		"unit_name":           unit.Name,
		"registration_number": unit.RegistrationNumber,
		"port":                unit.Port,
	}
}

func displayName(unit model.MarineUnit) string {
	if unit.Name != "" {
		return unit.Name
	}
	return unit.ID
}

// describe returns the human-readable reason of an Ineligible result.
func describe(result model.EligibilityResult) string {
	switch r := result.(type) {
	case model.Eligible:
		return ""
	case model.Ineligible:
		if r.Suggestion != "" {
			return r.Message + " " + r.Suggestion
		}
		return r.Message
	default:
		panic(model.UnhandledVariant("eligibility result", result))
	}
}

// firstOf returns the first non-nil rejection.
func firstOf(rs ...*model.Ineligible) *model.Ineligible {
	for _, r := range rs {
		if r != nil {
			return r
		}
	}
	return nil
}
