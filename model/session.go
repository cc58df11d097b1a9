package model

import "time"

// Wizard session status constants.
const (
	SessionStatusActive     = "active"
	SessionStatusCompleted  = "completed"
	SessionStatusCancelled  = "cancelled"
	SessionStatusRedirected = "redirected"
)

// WizardSession is the persisted state of one user's pass through a
// transaction wizard. Data is the accumulated form snapshot; it is the only
// state that outlives a single step.
type WizardSession struct {
	ID              string          `json:"id"`
	TransactionType string          `json:"transaction_type"`
	ActorID         string          `json:"actor_id"`
	CurrentStep     int             `json:"current_step"`
	CompletedSteps  []int           `json:"completed_steps"`
	Data            FormData        `json:"data"`
	Status          string          `json:"status"`
	SelectedUnitID  string          `json:"selected_unit_id,omitempty"`
	PendingAction   *ActionEnvelope `json:"pending_action,omitempty"`
	Violations      []Violation     `json:"violations,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
	ExpiresAt       *time.Time      `json:"expires_at,omitempty"`
	Version         int             `json:"version"`
}

// Completed returns the completed step indices as a set.
func (s *WizardSession) Completed() map[int]bool {
	out := make(map[int]bool, len(s.CompletedSteps))
	for _, i := range s.CompletedSteps {
		out[i] = true
	}
	return out
}

// MarkCompleted records step i as completed, keeping CompletedSteps sorted
// and free of duplicates.
func (s *WizardSession) MarkCompleted(i int) {
	for pos, existing := range s.CompletedSteps {
		if existing == i {
			return
		}
		if existing > i {
			s.CompletedSteps = append(s.CompletedSteps[:pos], append([]int{i}, s.CompletedSteps[pos:]...)...)
			return
		}
	}
	s.CompletedSteps = append(s.CompletedSteps, i)
}

// Clone returns a deep copy suitable for modification without affecting the
// original.
func (s *WizardSession) Clone() *WizardSession {
	c := *s
	c.CompletedSteps = append([]int(nil), s.CompletedSteps...)
	c.Violations = append([]Violation(nil), s.Violations...)
	if s.ExpiresAt != nil {
		t := *s.ExpiresAt
		c.ExpiresAt = &t
	}
	return &c
}

// SessionSummary is a lightweight view used in session listings.
type SessionSummary struct {
	ID              string    `json:"id"`
	TransactionType string    `json:"transaction_type"`
	Title           string    `json:"title"`
	CurrentStep     int       `json:"current_step"`
	TotalSteps      int       `json:"total_steps"`
	Status          string    `json:"status"`
	UpdatedAt       time.Time `json:"updated_at"`
}
