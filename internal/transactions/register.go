package transactions

import (
	"fmt"

	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/eligibility"
	"github.com/pitabwire/vesselwizard/model"
)

// Step IDs the rule sets route to.
const (
	StepMortgageDetails = "mortgage_details"
	StepBankConsent     = "bank_consent"
)

// Names returns the rule set names provided by this package.
func Names() []string {
	return []string{TypeMortgageRequest, TypeMortgageRelease, TypePermanentRegistration, TypeRegistrationCancellation}
}

// Build creates the rule set named by tx.RuleSet, resolving the step indexes
// it routes to from tx.
func Build(tx *definition.Transaction, registry model.MarineRegistry, messages model.MessageResolver) (eligibility.RuleSet, error) {
	switch tx.RuleSet {
	case TypeMortgageRequest:
		return NewMortgageRequest(registry, messages), nil
	case TypeMortgageRelease:
		step, err := stepOf(tx, StepMortgageDetails)
		if err != nil {
			return nil, err
		}
		return NewMortgageRelease(registry, messages, step), nil
	case TypePermanentRegistration:
		return NewPermanentRegistration(registry, messages), nil
	case TypeRegistrationCancellation:
		step, err := stepOf(tx, StepBankConsent)
		if err != nil {
			return nil, err
		}
		return NewRegistrationCancellation(registry, messages, step), nil
	}
	return nil, &model.ConfigurationError{Path: tx.Type + ".ruleset", Message: fmt.Sprintf("unknown ruleset %q", tx.RuleSet)}
}

// Register builds the rule set of every loaded transaction that names one.
// Transactions sharing a rule set share one instance.
func Register(defs *definition.Registry, registry model.MarineRegistry, messages model.MessageResolver) (*eligibility.Registry, error) {
	sets, err := eligibility.NewRegistry()
	if err != nil {
		return nil, err
	}
	for _, tx := range defs.AllTransactions() {
		if tx.RuleSet == "" {
			continue
		}
		if _, ok := sets.Get(tx.RuleSet); ok {
			continue
		}
		rs, err := Build(tx, registry, messages)
		if err != nil {
			return nil, err
		}
		if err := sets.Register(rs); err != nil {
			return nil, err
		}
	}
	return sets, nil
}

func stepOf(tx *definition.Transaction, id string) (int, error) {
	i, ok := tx.StepIndex(id)
	if !ok {
		return 0, &model.ConfigurationError{
			Path:    tx.Type + ".steps",
			Message: fmt.Sprintf("ruleset %s needs a step with id %q", tx.RuleSet, id),
		}
	}
	return i, nil
}
