package transactions

import (
	"context"

	"github.com/pitabwire/vesselwizard/model"
)

// MortgageRequest decides whether a unit can be offered as collateral for a
// new mortgage.
type MortgageRequest struct {
	base
}

// NewMortgageRequest creates the mortgage request rule set.
func NewMortgageRequest(registry model.MarineRegistry, messages model.MessageResolver) *MortgageRequest {
	return &MortgageRequest{base: base{registry: registry, messages: messages}}
}

// TransactionType returns "mortgage_request".
func (*MortgageRequest) TransactionType() string { return TypeMortgageRequest }

// StepTitle names the unit selection step.
func (*MortgageRequest) StepTitle() string { return "Select the unit to mortgage" }

// Validate checks ownership, registration state, existing mortgages and open
// compliance issues, in that order.
func (m *MortgageRequest) Validate(ctx context.Context, unit model.MarineUnit, actorID string) (model.EligibilityResult, error) {
	if r, err := m.checkOwnership(ctx, unit, actorID); err != nil || r != nil {
		return orErr(r, err)
	}
	if r := m.checkActive(ctx, unit); r != nil {
		return *r, nil
	}
	if unit.RegistrationStatus == model.RegistrationTemporary {
		return m.ineligible(ctx, unit, model.ReasonTemporaryRegistration, "ineligible.temporary"), nil
	}

	st, err := m.mortgageStatus(ctx, unit)
	if err != nil {
		return nil, err
	}
	if st.Mortgaged {
		r := m.ineligible(ctx, unit, model.ReasonAlreadyMortgaged, "ineligible.already_mortgaged")
		r.Mortgage = &st
		return r, nil
	}

	if r, err := m.checkCompliance(ctx, unit, false); err != nil || r != nil {
		return orErr(r, err)
	}
	return model.Eligible{MarineUnit: unit, ExtraData: unitData(unit)}, nil
}

// MapResultToAction redirects mortgaged units to a release and temporary
// registrations to a permanent registration.
func (m *MortgageRequest) MapResultToAction(result model.EligibilityResult) model.NavigationAction {
	switch r := result.(type) {
	case model.Eligible:
		return model.ProceedToNextStep{}
	case model.Ineligible:
		switch r.Reason {
		case model.ReasonAlreadyMortgaged:
			return model.RedirectToTransaction{
				TransactionType: TypeMortgageRelease,
				Reason:          m.text(context.Background(), "redirect.mortgage_release"),
				PrefilledData:   prefill(r.MarineUnit),
			}
		case model.ReasonTemporaryRegistration:
			return model.RedirectToTransaction{
				TransactionType: TypePermanentRegistration,
				Reason:          m.text(context.Background(), "redirect.permanent_registration"),
				PrefilledData:   prefill(r.MarineUnit),
			}
		case model.ReasonHasViolations, model.ReasonHasDetentions:
			return complianceScreen(r)
		default:
			return m.showError(r)
		}
	default:
		panic(model.UnhandledVariant("eligibility result", result))
	}
}

// DescribeError returns the rejection message.
func (*MortgageRequest) DescribeError(result model.EligibilityResult) string {
	return describe(result)
}

// MortgageRelease decides whether the mortgage on a unit can be released.
type MortgageRelease struct {
	base
	detailsStep int
}

// NewMortgageRelease creates the mortgage release rule set. An eligible unit
// skips straight to detailsStep since the mortgage details are already known
// to the registry.
func NewMortgageRelease(registry model.MarineRegistry, messages model.MessageResolver, detailsStep int) *MortgageRelease {
	return &MortgageRelease{base: base{registry: registry, messages: messages}, detailsStep: detailsStep}
}

// TransactionType returns "mortgage_release".
func (*MortgageRelease) TransactionType() string { return TypeMortgageRelease }

// StepTitle names the unit selection step.
func (*MortgageRelease) StepTitle() string { return "Select the mortgaged unit" }

// StepDescription describes the unit selection step.
func (*MortgageRelease) StepDescription() string {
	return "Only units with an active mortgage can be released."
}

// Validate checks ownership, registration state and that a mortgage exists.
func (m *MortgageRelease) Validate(ctx context.Context, unit model.MarineUnit, actorID string) (model.EligibilityResult, error) {
	if r, err := m.checkOwnership(ctx, unit, actorID); err != nil || r != nil {
		return orErr(r, err)
	}
	if r := m.checkActive(ctx, unit); r != nil {
		return *r, nil
	}

	st, err := m.mortgageStatus(ctx, unit)
	if err != nil {
		return nil, err
	}
	if !st.Mortgaged {
		return m.ineligible(ctx, unit, model.ReasonNotMortgaged, "ineligible.not_mortgaged"), nil
	}

	extra := unitData(unit)
	extra["bank_name"] = st.Bank
	extra["mortgage_reference"] = st.Reference
	return model.Eligible{MarineUnit: unit, ExtraData: extra}, nil
}

// MapResultToAction jumps to the details step for an eligible unit.
func (m *MortgageRelease) MapResultToAction(result model.EligibilityResult) model.NavigationAction {
	switch r := result.(type) {
	case model.Eligible:
		return model.JumpToStep{Index: m.detailsStep, Reason: m.text(context.Background(), "jump.mortgage_loaded")}
	case model.Ineligible:
		return m.showError(r)
	default:
		panic(model.UnhandledVariant("eligibility result", result))
	}
}

// DescribeError returns the rejection message.
func (*MortgageRelease) DescribeError(result model.EligibilityResult) string {
	return describe(result)
}

func prefill(unit model.MarineUnit) model.FormData {
	return model.NewFormData("unit_id", unit.ID, "unit_name", unit.Name)
}

func orErr(r *model.Ineligible, err error) (model.EligibilityResult, error) {
	if err != nil {
		return nil, err
	}
	return *r, nil
}
