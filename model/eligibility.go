package model

// EligibilityResult is the verdict of a transaction rule set for one marine
// unit: Eligible or Ineligible. The set is closed; consumers must handle both
// variants.
type EligibilityResult interface {
	Unit() MarineUnit
	eligibilityResult()
}

// Eligible means the unit may be used for the transaction. ExtraData carries
// values the rule set wants pre-filled into the wizard.
type Eligible struct {
	MarineUnit MarineUnit
	ExtraData  map[string]string
}

// IneligibilityReason enumerates why a unit was rejected. The set is closed.
type IneligibilityReason string

// Ineligibility reasons.
const (
	ReasonNotOwned              IneligibilityReason = "NOT_OWNED"
	ReasonAlreadyMortgaged      IneligibilityReason = "ALREADY_MORTGAGED"
	ReasonNotMortgaged          IneligibilityReason = "NOT_MORTGAGED"
	ReasonTemporaryRegistration IneligibilityReason = "TEMPORARY_REGISTRATION"
	ReasonSuspendedOrCancelled  IneligibilityReason = "SUSPENDED_OR_CANCELLED"
	ReasonHasViolations         IneligibilityReason = "HAS_VIOLATIONS"
	ReasonHasDetentions         IneligibilityReason = "HAS_DETENTIONS"
	ReasonCustom                IneligibilityReason = "CUSTOM"
)

// Reasons lists every IneligibilityReason.
var Reasons = []IneligibilityReason{
	ReasonNotOwned,
	ReasonAlreadyMortgaged,
	ReasonNotMortgaged,
	ReasonTemporaryRegistration,
	ReasonSuspendedOrCancelled,
	ReasonHasViolations,
	ReasonHasDetentions,
	ReasonCustom,
}

// Known reports whether r is one of the declared reasons.
func (r IneligibilityReason) Known() bool {
	for _, known := range Reasons {
		if r == known {
			return true
		}
	}
	return false
}

// Ineligible is a definitive business rejection. It is a normal result, not
// an error. Message is the human-readable reason; Suggestion optionally tells
// the user how to remedy it. Issues is populated for HAS_VIOLATIONS and
// HAS_DETENTIONS; Mortgage for ALREADY_MORTGAGED.
type Ineligible struct {
	MarineUnit MarineUnit
	Reason     IneligibilityReason
	Message    string
	Suggestion string
	Issues     []ComplianceIssue
	Mortgage   *MortgageStatus
}

// Unit returns the evaluated unit.
func (e Eligible) Unit() MarineUnit { return e.MarineUnit }

// Unit returns the evaluated unit.
func (e Ineligible) Unit() MarineUnit { return e.MarineUnit }

func (Eligible) eligibilityResult()   {}
func (Ineligible) eligibilityResult() {}

// IsEligible reports whether r is the Eligible variant. It panics on a nil or
// unknown variant.
func IsEligible(r EligibilityResult) bool {
	switch r.(type) {
	case Eligible:
		return true
	case Ineligible:
		return false
	default:
		panic(UnhandledVariant("eligibility result", r))
	}
}
