package models

import (
	"time"
)

type WizardStep string

const (
	WizardStepWelcome   WizardStep = "welcome"
	WizardStepTeacher   WizardStep = "teacher"
	WizardStepClass     WizardStep = "class"
	WizardStepPromoCode WizardStep = "promo_code"
	WizardStepDone      WizardStep = "done"
)

// WizardSteps is the fixed forward order of the setup flow.
var WizardSteps = []WizardStep{
	WizardStepWelcome,
	WizardStepTeacher,
	WizardStepClass,
	WizardStepPromoCode,
	WizardStepDone,
}

// WizardSession carries the state of one setup-wizard run between
// steps. It is created explicitly at the welcome step, advanced
// strictly forward, and deleted when the done step is reached.
type WizardSession struct {
	ID   string     `json:"id"`
	Step WizardStep `json:"step"`

	// Selections accumulated across steps
	TeacherID      string   `json:"teacher_id,omitempty"`
	ClassID        uint     `json:"class_id,omitempty"`
	GeneratedCodes []string `json:"generated_codes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NextStep returns the step after the session's current one, or done
// when already at the end.
func (s *WizardSession) NextStep() WizardStep {
	for i, step := range WizardSteps {
		if step == s.Step && i+1 < len(WizardSteps) {
			return WizardSteps[i+1]
		}
	}
	return WizardStepDone
}

// IsDone reports whether the session reached the terminal step.
func (s *WizardSession) IsDone() bool {
	return s.Step == WizardStepDone
}
