package eligibility

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/pitabwire/vesselwizard/model"
)

// Outcome is the evaluation of one unit in a batch. Exactly one of Result and
// Err is set. Reason is the rule set's description of an Ineligible result.
type Outcome struct {
	Unit     model.MarineUnit
	Position int
	Result   model.EligibilityResult
	Reason   string
	Err      error
}

// BatchResult maps unit IDs to their outcomes.
type BatchResult map[string]Outcome

// IneligibleUnit pairs a rejected unit with the human-readable reason.
type IneligibleUnit struct {
	Unit   model.MarineUnit
	Reason string
	Result model.Ineligible
}

// FailedUnit is a unit whose verdict could not be obtained.
type FailedUnit struct {
	Unit model.MarineUnit
	Err  error
}

// ResolveForMany evaluates every unit independently and concurrently. Units
// sharing an ID are evaluated once, at their first position. The only error
// returned is the context error when ctx is cancelled, in which case no
// partial result is returned.
func (e *Engine) ResolveForMany(ctx context.Context, units []model.MarineUnit, actorID string, rs RuleSet) (BatchResult, error) {
	unique := make([]model.MarineUnit, 0, len(units))
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		unique = append(unique, u)
	}

	outcomes := make([]Outcome, len(unique))
	var g errgroup.Group
	if e.concurrency > 0 {
		g.SetLimit(e.concurrency)
	}

	for i, unit := range unique {
		g.Go(func() error {
			result, err := e.Validate(ctx, unit, actorID, rs)
			o := Outcome{Unit: unit, Position: i, Result: result, Err: err}
			if err == nil {
				if inel, ok := result.(model.Ineligible); ok {
					o.Reason = rs.DescribeError(inel)
				}
			}
			outcomes[i] = o
			return nil
		})
	}
	_ = g.Wait()

	if err := ctx.Err(); err != nil {
		e.logger.Debug("batch eligibility discarded", zap.Error(err), zap.Int("units", len(unique)))
		return nil, err
	}

	batch := make(BatchResult, len(outcomes))
	for _, o := range outcomes {
		batch[o.Unit.ID] = o
	}
	return batch, nil
}

// Ordered returns the outcomes in their original input order.
func (b BatchResult) Ordered() []Outcome {
	out := make([]Outcome, 0, len(b))
	for _, o := range b {
		out = append(out, o)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Position < out[j].Position })
	return out
}

// FilterEligible returns the eligible units in input order.
func FilterEligible(b BatchResult) []model.MarineUnit {
	eligible, _ := GroupByEligibility(b)
	return eligible
}

// GroupByEligibility splits the batch into eligible units and ineligible units
// with their reasons, both in input order. Units whose lookup failed appear
// in neither list; see Failed.
func GroupByEligibility(b BatchResult) ([]model.MarineUnit, []IneligibleUnit) {
	var eligible []model.MarineUnit
	var ineligible []IneligibleUnit
	for _, o := range b.Ordered() {
		if o.Err != nil {
			continue
		}
		switch r := o.Result.(type) {
		case model.Eligible:
			eligible = append(eligible, o.Unit)
		case model.Ineligible:
			ineligible = append(ineligible, IneligibleUnit{Unit: o.Unit, Reason: o.Reason, Result: r})
		default:
			panic(model.UnhandledVariant("eligibility result", o.Result))
		}
	}
	return eligible, ineligible
}

// Failed returns the units whose verdict could not be obtained, in input
// order.
func Failed(b BatchResult) []FailedUnit {
	var out []FailedUnit
	for _, o := range b.Ordered() {
		if o.Err != nil {
			out = append(out, FailedUnit{Unit: o.Unit, Err: o.Err})
		}
	}
	return out
}
