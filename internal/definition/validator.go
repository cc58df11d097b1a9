package definition

import (
	"fmt"
	"strings"

	"github.com/pitabwire/vesselwizard/internal/rules"
	"github.com/pitabwire/vesselwizard/model"
)

// Validation error codes.
const (
	CodeRequired          = "REQUIRED"
	CodeDuplicate         = "DUPLICATE"
	CodeUnknownType       = "UNKNOWN_TYPE"
	CodeInvalidRule       = "INVALID_RULE"
	CodeUnknownField      = "UNKNOWN_FIELD"
	CodeWrongStep         = "WRONG_STEP"
	CodeUnknownRuleSet    = "UNKNOWN_RULESET"
	CodeMissingSelector   = "MISSING_SELECTOR"
	CodeMissingOptions    = "MISSING_OPTIONS"
	CodeInvalidValue      = "INVALID_VALUE"
	CodeNamespaceMismatch = "NAMESPACE_MISMATCH"
)

// VError describes a single validation error in a definition.
type VError struct {
	Path    string `json:"path"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e VError) Error() string {
	return fmt.Sprintf("%s: %s", e.Path, e.Message)
}

// ConfigurationError converts e into the model's configuration error.
func (e VError) ConfigurationError() *model.ConfigurationError {
	return &model.ConfigurationError{Path: e.Path, Message: e.Message}
}

// Validator checks definitions structurally and referentially.
type Validator struct {
	ruleSets map[string]bool
}

// NewValidator creates a new Validator. When ruleSets is non-empty, every
// transaction's ruleset must be one of them.
func NewValidator(ruleSets ...string) *Validator {
	v := &Validator{}
	if len(ruleSets) > 0 {
		v.ruleSets = make(map[string]bool, len(ruleSets))
		for _, name := range ruleSets {
			v.ruleSets[name] = true
		}
	}
	return v
}

// Validate checks all definitions. Transaction types must be unique across
// every definition.
func (v *Validator) Validate(defs []model.DomainDefinition) []VError {
	var errs []VError
	seen := make(map[string]string)
	for i, def := range defs {
		prefix := fmt.Sprintf("definitions[%d]", i)
		errs = append(errs, v.validateDomain(prefix, def)...)

		for j, tx := range def.Transactions {
			if tx.Type == "" {
				continue
			}
			if other, dup := seen[tx.Type]; dup {
				errs = append(errs, VError{
					Path:    fmt.Sprintf("%s.transactions[%d].type", prefix, j),
					Code:    CodeDuplicate,
					Message: fmt.Sprintf("transaction type %q already declared in %s", tx.Type, other),
				})
				continue
			}
			seen[tx.Type] = prefix
		}
	}
	return errs
}

func (v *Validator) validateDomain(prefix string, def model.DomainDefinition) []VError {
	var errs []VError

	if def.Domain == "" {
		errs = append(errs, VError{Path: prefix + ".domain", Code: CodeRequired, Message: "domain is required"})
	}
	if def.Version == "" {
		errs = append(errs, VError{Path: prefix + ".version", Code: CodeRequired, Message: "version is required"})
	}
	if len(def.Transactions) == 0 {
		errs = append(errs, VError{Path: prefix + ".transactions", Code: CodeRequired, Message: "at least one transaction is required"})
	}

	for i, tx := range def.Transactions {
		tp := fmt.Sprintf("%s.transactions[%d]", prefix, i)
		errs = append(errs, v.validateTransaction(tp, tx, def.Domain)...)
	}
	return errs
}

func (v *Validator) validateTransaction(prefix string, tx model.TransactionDefinition, domain string) []VError {
	var errs []VError

	if tx.Type == "" {
		errs = append(errs, VError{Path: prefix + ".type", Code: CodeRequired, Message: "type is required"})
	}
	if len(tx.Steps) == 0 {
		errs = append(errs, VError{Path: prefix + ".steps", Code: CodeRequired, Message: "at least one step is required"})
	}

	if tx.RuleSet != "" {
		if v.ruleSets != nil && !v.ruleSets[tx.RuleSet] {
			errs = append(errs, VError{
				Path:    prefix + ".ruleset",
				Code:    CodeUnknownRuleSet,
				Message: fmt.Sprintf("unknown ruleset %q", tx.RuleSet),
			})
		}
		if !hasSelector(tx) {
			errs = append(errs, VError{
				Path:    prefix + ".steps",
				Code:    CodeMissingSelector,
				Message: "a transaction with a ruleset needs a marine_unit_selector field",
			})
		}
	}

	if domain != "" {
		for _, c := range tx.Capabilities {
			if !strings.HasPrefix(c, domain+":") && c != "*" {
				errs = append(errs, VError{
					Path:    prefix + ".capabilities",
					Code:    CodeNamespaceMismatch,
					Message: fmt.Sprintf("capability %q does not match domain %q", c, domain),
				})
			}
		}
	}

	// Field IDs key the accumulated form data, so they are unique across the
	// whole transaction and not only within a step.
	fieldStep := make(map[string]int)
	stepIDs := make(map[string]bool)
	for i, step := range tx.Steps {
		sp := fmt.Sprintf("%s.steps[%d]", prefix, i)
		if step.ID == "" {
			errs = append(errs, VError{Path: sp + ".id", Code: CodeRequired, Message: "step id is required"})
		} else if stepIDs[step.ID] {
			errs = append(errs, VError{Path: sp + ".id", Code: CodeDuplicate, Message: fmt.Sprintf("duplicate step id %q", step.ID)})
		}
		stepIDs[step.ID] = true

		if step.When != "" {
			if i == 0 {
				errs = append(errs, VError{Path: sp + ".when", Code: CodeInvalidValue, Message: "the first step cannot be conditional"})
			} else if _, err := rules.ParseCondition(step.When); err != nil {
				errs = append(errs, VError{Path: sp + ".when", Code: CodeInvalidRule, Message: err.Error()})
			}
		}

		for j, f := range step.Fields {
			fp := fmt.Sprintf("%s.fields[%d]", sp, j)
			errs = append(errs, validateField(fp, f)...)
			if f.ID == "" {
				continue
			}
			if _, dup := fieldStep[f.ID]; dup {
				errs = append(errs, VError{Path: fp + ".id", Code: CodeDuplicate, Message: fmt.Sprintf("duplicate field id %q", f.ID)})
				continue
			}
			fieldStep[f.ID] = i
		}
	}

	ruleIDs := make(map[string]bool)
	for i, step := range tx.Steps {
		for j, rd := range step.Rules {
			rp := fmt.Sprintf("%s.steps[%d].rules[%d]", prefix, i, j)
			if rd.ID != "" && ruleIDs[rd.ID] {
				errs = append(errs, VError{Path: rp + ".id", Code: CodeDuplicate, Message: fmt.Sprintf("duplicate rule id %q", rd.ID)})
			}
			ruleIDs[rd.ID] = true
			errs = append(errs, validateRule(rp, rd, i, fieldStep)...)
		}
	}

	return errs
}

var optionKinds = map[model.FieldKind]bool{
	model.KindDropDown:    true,
	model.KindRadioGroup:  true,
	model.KindMultiSelect: true,
}

func validateField(prefix string, f model.FieldDefinition) []VError {
	var errs []VError

	if f.ID == "" {
		errs = append(errs, VError{Path: prefix + ".id", Code: CodeRequired, Message: "field id is required"})
	}
	kind, err := model.ParseFieldKind(f.Type)
	if err != nil {
		return append(errs, VError{Path: prefix + ".type", Code: CodeUnknownType, Message: err.Error()})
	}
	if optionKinds[kind] && len(f.Options) == 0 {
		errs = append(errs, VError{
			Path:    prefix + ".options",
			Code:    CodeMissingOptions,
			Message: fmt.Sprintf("%s field needs at least one option", kind),
		})
	}
	if f.MaxLength < 0 {
		errs = append(errs, VError{Path: prefix + ".max_length", Code: CodeInvalidValue, Message: "max_length cannot be negative"})
	}
	if f.Length < 0 {
		errs = append(errs, VError{Path: prefix + ".length", Code: CodeInvalidValue, Message: "length cannot be negative"})
	}
	return errs
}

func validateRule(prefix string, rd model.RuleDefinition, step int, fieldStep map[string]int) []VError {
	r, err := rules.Build(rd)
	if err != nil {
		return []VError{{Path: prefix, Code: CodeInvalidRule, Message: err.Error()}}
	}

	_, cross := r.(rules.CrossStepRule)
	var errs []VError
	for _, id := range rules.ReferencedFields(r) {
		at, ok := fieldStep[id]
		switch {
		case !ok:
			errs = append(errs, VError{
				Path:    prefix,
				Code:    CodeUnknownField,
				Message: fmt.Sprintf("rule %q references unknown field %q", rd.ID, id),
			})
		case !cross && at != step:
			errs = append(errs, VError{
				Path:    prefix,
				Code:    CodeWrongStep,
				Message: fmt.Sprintf("same-step rule %q references field %q from step %d", rd.ID, id, at),
			})
		}
	}
	return errs
}

func hasSelector(tx model.TransactionDefinition) bool {
	for _, step := range tx.Steps {
		for _, f := range step.Fields {
			if k, err := model.ParseFieldKind(f.Type); err == nil && k == model.KindMarineUnitSelector {
				return true
			}
		}
	}
	return false
}
