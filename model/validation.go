package model

// ValidationResult is the outcome of checking a single field value:
// Success or Failure. The set is closed.
type ValidationResult interface {
	validationResult()
}

// Success means the value passed every rule of its field.
type Success struct{}

// Failure carries the first rule the value violated.
type Failure struct {
	Code    string
	Message string
}

func (Success) validationResult() {}
func (Failure) validationResult() {}

// RuleResult is the outcome of a cross-field or cross-step rule: Valid or
// Invalid. The set is closed.
type RuleResult interface {
	ruleResult()
}

// Valid means the rule holds.
type Valid struct{}

// Invalid names the field the failure attaches to.
type Invalid struct {
	FieldID string
	Message string
}

func (Valid) ruleResult()   {}
func (Invalid) ruleResult() {}

// Violation records a failed rule after it has been applied to a step.
// Attached is false when the violated field is not rendered on the current
// step; such violations carry no field mutation but still block navigation.
type Violation struct {
	RuleID    string `json:"rule_id"`
	FieldID   string `json:"field_id"`
	Message   string `json:"message"`
	CrossStep bool   `json:"cross_step"`
	Attached  bool   `json:"attached"`
}
