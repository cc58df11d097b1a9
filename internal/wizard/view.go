package wizard

import (
	"github.com/pitabwire/vesselwizard/internal/definition"
	"github.com/pitabwire/vesselwizard/internal/navigation"
	"github.com/pitabwire/vesselwizard/model"
)

// View is the client representation of a session on its current step.
type View struct {
	Session    *model.WizardSession `json:"session"`
	Title      string               `json:"title"`
	TotalSteps int                  `json:"total_steps"`
	Step       model.StepView       `json:"step"`
	CanProceed bool                 `json:"can_proceed"`
	Terminal   bool                 `json:"terminal"`
	Missing    []string             `json:"missing,omitempty"`
}

// UnitList is the content of the unit selection step.
type UnitList struct {
	Title             string             `json:"title"`
	Description       string             `json:"description"`
	MultipleSelection bool               `json:"multiple_selection"`
	SelectedUnitID    string             `json:"selected_unit_id,omitempty"`
	Eligible          []model.MarineUnit `json:"eligible"`
	Ineligible        []IneligibleUnit   `json:"ineligible"`
	Unavailable       []model.MarineUnit `json:"unavailable,omitempty"`
}

// IneligibleUnit is a unit shown greyed out with the reason it cannot be
// chosen.
type IneligibleUnit struct {
	Unit       model.MarineUnit          `json:"unit"`
	Reason     model.IneligibilityReason `json:"reason"`
	Message    string                    `json:"message"`
	Suggestion string                    `json:"suggestion,omitempty"`
}

// render builds the view of the session's current step. fields, when given,
// are the already validated fields to show; otherwise they are instantiated
// from the form data.
func (e *Engine) render(tx *definition.Transaction, session *model.WizardSession, fields []model.Field) *View {
	cur := session.CurrentStep
	step := tx.Steps[cur]
	if fields == nil {
		fields = step.Instantiate(session.Data)
	}

	views := make([]model.FieldView, len(fields))
	for i, f := range fields {
		views[i] = model.ViewOf(f)
	}

	active := session.Status == model.SessionStatusActive
	_, hasNext := nextVisible(tx, cur, session.Data)
	v := &View{
		Session:    session,
		Title:      tx.Title,
		TotalSteps: tx.TotalSteps(),
		Step: model.StepView{
			Index:       cur,
			ID:          step.ID,
			Title:       step.Title,
			Description: step.Description,
			Fields:      views,
			Violations:  session.Violations,
		},
		CanProceed: active && navigation.CanProceed(cur, tx.Steps, session.Data),
		Terminal:   !hasNext,
	}
	if active {
		v.Missing = navigation.MissingFields(cur, tx.Steps, session.Data)
	}
	return v
}
