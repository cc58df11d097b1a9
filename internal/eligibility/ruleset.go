// Package eligibility evaluates a selected marine unit against the business
// rules of a transaction and turns the verdict into a navigation action.
package eligibility

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/pitabwire/vesselwizard/model"
)

// RuleSet is the transaction-specific strategy plugged into the Engine.
//
// Validate returns a business verdict for unit. Ineligibility is a normal
// result; an error means the verdict could not be obtained and is treated as
// a transient failure.
type RuleSet interface {
	TransactionType() string
	Validate(ctx context.Context, unit model.MarineUnit, actorID string) (model.EligibilityResult, error)
	MapResultToAction(result model.EligibilityResult) model.NavigationAction
	DescribeError(result model.EligibilityResult) string
}

// MultiSelector is implemented by rule sets that let the user pick several
// units at once.
type MultiSelector interface {
	AllowsMultipleSelection() bool
}

// StepTitler is implemented by rule sets that name their unit selection step.
type StepTitler interface {
	StepTitle() string
}

// StepDescriber is implemented by rule sets that describe their unit
// selection step.
type StepDescriber interface {
	StepDescription() string
}

// Defaults used when a rule set does not implement the optional hooks.
const (
	DefaultStepTitle       = "Select a marine unit"
	DefaultStepDescription = "Choose the marine unit this request applies to."
)

// AllowsMultipleSelection reports whether rs accepts several units.
func AllowsMultipleSelection(rs RuleSet) bool {
	if m, ok := rs.(MultiSelector); ok {
		return m.AllowsMultipleSelection()
	}
	return false
}

// StepTitle returns the unit selection step title for rs.
func StepTitle(rs RuleSet) string {
	if t, ok := rs.(StepTitler); ok && t.StepTitle() != "" {
		return t.StepTitle()
	}
	return DefaultStepTitle
}

// StepDescription returns the unit selection step description for rs.
func StepDescription(rs RuleSet) string {
	if d, ok := rs.(StepDescriber); ok && d.StepDescription() != "" {
		return d.StepDescription()
	}
	return DefaultStepDescription
}

// Registry maps transaction types to their rule sets. It is safe for
// concurrent use.
type Registry struct {
	mu   sync.RWMutex
	sets map[string]RuleSet
}

// NewRegistry creates a Registry holding sets.
func NewRegistry(sets ...RuleSet) (*Registry, error) {
	r := &Registry{sets: make(map[string]RuleSet, len(sets))}
	for _, rs := range sets {
		if err := r.Register(rs); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds rs. Registering a transaction type twice is an error.
func (r *Registry) Register(rs RuleSet) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := rs.TransactionType()
	if name == "" {
		return fmt.Errorf("eligibility: rule set %T has no transaction type", rs)
	}
	if _, exists := r.sets[name]; exists {
		return fmt.Errorf("eligibility: rule set %q already registered", name)
	}
	r.sets[name] = rs
	return nil
}

// Get returns the rule set for name.
func (r *Registry) Get(name string) (RuleSet, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rs, ok := r.sets[name]
	return rs, ok
}

// Names returns the registered transaction types in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.sets))
	for name := range r.sets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
