// Package navigation decides which wizard transitions are allowed. All
// functions are pure.
package navigation

import (
	"strings"

	"github.com/pitabwire/vesselwizard/model"
)

// CanProceed reports whether every mandatory field of step current has a
// value in data. Mandatory checkboxes must hold "true" and mandatory list
// fields must hold a non-empty list. Format and rule validity are not
// checked here; they are enforced when the step is submitted.
func CanProceed(current int, steps []model.StepDescriptor, data model.FormData) bool {
	if current < 0 || current >= len(steps) {
		return false
	}
	for _, fd := range steps[current].Fields {
		if !fd.Mandatory {
			continue
		}
		kind, err := model.ParseFieldKind(fd.Type)
		if err != nil {
			panic(&model.ConfigurationError{Path: steps[current].ID + "." + fd.ID, Message: err.Error()})
		}
		if !satisfied(kind, data.Value(fd.ID)) {
			return false
		}
	}
	return true
}

// MissingFields returns the IDs of the mandatory fields of step current that
// have no usable value in data.
func MissingFields(current int, steps []model.StepDescriptor, data model.FormData) []string {
	if current < 0 || current >= len(steps) {
		return nil
	}
	var missing []string
	for _, fd := range steps[current].Fields {
		if !fd.Mandatory {
			continue
		}
		kind, _ := model.ParseFieldKind(fd.Type)
		if !satisfied(kind, data.Value(fd.ID)) {
			missing = append(missing, fd.ID)
		}
	}
	return missing
}

func satisfied(kind model.FieldKind, value string) bool {
	if kind.DisplayOnly() {
		return true
	}
	v := strings.TrimSpace(value)
	switch kind {
	case model.KindCheckBox:
		return v == model.CheckedValue
	case model.KindOwnerList, model.KindEngineList, model.KindSailorList,
		model.KindSelectableList, model.KindMultiSelect:
		compact := strings.Join(strings.Fields(v), "")
		return compact != "" && compact != model.EmptyList
	default:
		return v != ""
	}
}

// NextStep returns current+1, or false when current is the last step.
func NextStep(current, total int) (int, bool) {
	if current+1 < total {
		return current + 1, true
	}
	return 0, false
}

// PreviousStep returns current-1, or false on the first step.
func PreviousStep(current int) (int, bool) {
	if current > 0 {
		return current - 1, true
	}
	return 0, false
}

// CanJumpTo reports whether the wizard may move from current to target.
// Revisiting earlier steps is always allowed. Moving forward is allowed to a
// step completed before, or to the first step after a run of completed steps
// starting at current; a forward jump never skips an unfinished step.
func CanJumpTo(target, current int, completed map[int]bool, total int) bool {
	if target < 0 || target >= total {
		return false
	}
	if target <= current || completed[target] {
		return true
	}
	for i := current; i < target; i++ {
		if !completed[i] {
			return false
		}
	}
	return true
}

// IsTerminal reports whether current is the last step.
func IsTerminal(current, total int) bool {
	_, ok := NextStep(current, total)
	return !ok
}
