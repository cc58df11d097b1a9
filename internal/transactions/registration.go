package transactions

import (
	"context"

	"github.com/pitabwire/vesselwizard/model"
)

// PermanentRegistration converts a temporary registration into a permanent
// one.
type PermanentRegistration struct {
	base
}

// NewPermanentRegistration creates the permanent registration rule set.
func NewPermanentRegistration(registry model.MarineRegistry, messages model.MessageResolver) *PermanentRegistration {
	return &PermanentRegistration{base: base{registry: registry, messages: messages}}
}

// TransactionType returns "permanent_registration".
func (*PermanentRegistration) TransactionType() string { return TypePermanentRegistration }

// StepTitle names the unit selection step.
func (*PermanentRegistration) StepTitle() string { return "Select the temporarily registered unit" }

// Validate accepts owned, temporarily registered units without detentions.
// Open violations do not block a permanent registration.
func (p *PermanentRegistration) Validate(ctx context.Context, unit model.MarineUnit, actorID string) (model.EligibilityResult, error) {
	if r, err := p.checkOwnership(ctx, unit, actorID); err != nil || r != nil {
		return orErr(r, err)
	}
	if r := p.checkActive(ctx, unit); r != nil {
		return *r, nil
	}
	if unit.RegistrationStatus == model.RegistrationPermanent {
		return p.ineligible(ctx, unit, model.ReasonCustom, "ineligible.already_permanent"), nil
	}
	if r, err := p.checkCompliance(ctx, unit, true); err != nil || r != nil {
		return orErr(r, err)
	}
	return model.Eligible{MarineUnit: unit, ExtraData: unitData(unit)}, nil
}

// MapResultToAction proceeds for eligible units.
func (p *PermanentRegistration) MapResultToAction(result model.EligibilityResult) model.NavigationAction {
	switch r := result.(type) {
	case model.Eligible:
		return model.ProceedToNextStep{}
	case model.Ineligible:
		if r.Reason == model.ReasonHasDetentions {
			return complianceScreen(r)
		}
		return p.showError(r)
	default:
		panic(model.UnhandledVariant("eligibility result", result))
	}
}

// DescribeError returns the rejection message.
func (*PermanentRegistration) DescribeError(result model.EligibilityResult) string {
	return describe(result)
}

// RegistrationCancellation cancels the registration of a unit. Mortgaged
// units are eligible but need the bank's consent, collected on a dedicated
// step.
type RegistrationCancellation struct {
	base
	consentStep int
}

// NewRegistrationCancellation creates the cancellation rule set. consentStep
// is the index of the bank consent step.
func NewRegistrationCancellation(registry model.MarineRegistry, messages model.MessageResolver, consentStep int) *RegistrationCancellation {
	return &RegistrationCancellation{base: base{registry: registry, messages: messages}, consentStep: consentStep}
}

// TransactionType returns "registration_cancellation".
func (*RegistrationCancellation) TransactionType() string { return TypeRegistrationCancellation }

// Extra data keys set on an eligible mortgaged unit.
const (
	ExtraMortgaged = "mortgaged"
	ExtraBank      = "bank_name"
)

// Validate checks ownership, registration state and compliance. The mortgage
// state is always reported through ExtraData so that a later selection
// overwrites an earlier one.
func (c *RegistrationCancellation) Validate(ctx context.Context, unit model.MarineUnit, actorID string) (model.EligibilityResult, error) {
	if r, err := c.checkOwnership(ctx, unit, actorID); err != nil || r != nil {
		return orErr(r, err)
	}
	if r := c.checkActive(ctx, unit); r != nil {
		return *r, nil
	}
	if r, err := c.checkCompliance(ctx, unit, false); err != nil || r != nil {
		return orErr(r, err)
	}

	st, err := c.mortgageStatus(ctx, unit)
	if err != nil {
		return nil, err
	}
	extra := unitData(unit)
	extra[ExtraMortgaged] = "false"
	extra[ExtraBank] = ""
	if st.Mortgaged {
		extra[ExtraMortgaged] = model.CheckedValue
		extra[ExtraBank] = st.Bank
	}
	return model.Eligible{MarineUnit: unit, ExtraData: extra}, nil
}

// MapResultToAction asks for confirmation before routing a mortgaged unit to
// the consent step.
func (c *RegistrationCancellation) MapResultToAction(result model.EligibilityResult) model.NavigationAction {
	switch r := result.(type) {
	case model.Eligible:
		if r.ExtraData[ExtraMortgaged] != model.CheckedValue {
			return model.ProceedToNextStep{}
		}
		return model.ShowConfirmation{
			Message: c.text(context.Background(), "confirm.cancel_mortgaged", displayName(r.MarineUnit), r.ExtraData[ExtraBank]),
			OnConfirm: model.RouteToConditionalStep{
				MarineUnit:  r.MarineUnit,
				TargetIndex: c.consentStep,
				Condition:   ExtraMortgaged,
			},
		}
	case model.Ineligible:
		switch r.Reason {
		case model.ReasonHasViolations, model.ReasonHasDetentions:
			return complianceScreen(r)
		default:
			return c.showError(r)
		}
	default:
		panic(model.UnhandledVariant("eligibility result", result))
	}
}

// DescribeError returns the rejection message.
func (*RegistrationCancellation) DescribeError(result model.EligibilityResult) string {
	return describe(result)
}
