package models

import (
	"errors"
	"fmt"
)

// StepStatus is the state of a roadmap step.
type StepStatus string

const (
	StepPending    StepStatus = "PENDING"
	StepInProgress StepStatus = "IN_PROGRESS"
	StepCompleted  StepStatus = "COMPLETED"
	StepLocked     StepStatus = "LOCKED"
)

// stepTransitions is the full set of allowed status changes. LOCKED->PENDING is
// further restricted to the step right after a COMPLETED one (see Roadmap.CompleteStep).
var stepTransitions = map[StepStatus][]StepStatus{
	StepLocked:     {StepPending},
	StepPending:    {StepInProgress, StepCompleted},
	StepInProgress: {StepCompleted},
	StepCompleted:  nil,
}

// Valid reports whether s is a known status.
func (s StepStatus) Valid() bool {
	_, ok := stepTransitions[s]
	return ok
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s StepStatus) CanTransitionTo(next StepStatus) bool {
	for _, allowed := range stepTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

type ActionType string

const (
	ActionAIGeneration ActionType = "AI_GENERATION"
	ActionUpload       ActionType = "UPLOAD"
	ActionFormFill     ActionType = "FORM_FILL"
	ActionExternalLink ActionType = "EXTERNAL_LINK"
	ActionGeneral      ActionType = "GENERAL"
)

type RoadmapStep struct {
	ID           string     `json:"id"`
	Title        string     `json:"title"`
	Description  string     `json:"description"`
	Status       StepStatus `json:"status"`
	ActionType   ActionType `json:"action_type,omitempty"`
	ExternalLink string     `json:"external_link,omitempty"`
}

// Roadmap is the mutable execution plan of a process.
type Roadmap struct {
	CurrentPhase int           `json:"current_phase"`
	NextActionID string        `json:"next_action_id"`
	Steps        []RoadmapStep `json:"steps"`
}

var (
	ErrStepNotFound      = errors.New("roadmap step not found")
	ErrInvalidTransition = errors.New("invalid roadmap step transition")
)

// FirstPending returns the index of the first PENDING step, or -1.
func (r *Roadmap) FirstPending() int {
	for i, s := range r.Steps {
		if s.Status == StepPending {
			return i
		}
	}
	return -1
}

// PendingCount counts PENDING steps. More than one is tolerated; the first wins.
func (r *Roadmap) PendingCount() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepPending {
			n++
		}
	}
	return n
}

// CurrentStepIndex is the first PENDING step, falling back to the first step.
// It returns -1 only for an empty roadmap.
func (r *Roadmap) CurrentStepIndex() int {
	if len(r.Steps) == 0 {
		return -1
	}
	if i := r.FirstPending(); i >= 0 {
		return i
	}
	return 0
}

// CurrentStep returns the current mission, or nil for an empty roadmap.
func (r *Roadmap) CurrentStep() *RoadmapStep {
	i := r.CurrentStepIndex()
	if i < 0 {
		return nil
	}
	return &r.Steps[i]
}

func (r *Roadmap) indexOf(stepID string) int {
	for i, s := range r.Steps {
		if s.ID == stepID {
			return i
		}
	}
	return -1
}

// StartStep moves a PENDING step to IN_PROGRESS.
func (r *Roadmap) StartStep(stepID string) error {
	i := r.indexOf(stepID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	return r.transition(i, StepInProgress)
}

// CompleteStep marks a PENDING or IN_PROGRESS step COMPLETED, unlocks the step that
// follows it when that one is LOCKED, and advances CurrentPhase and NextActionID.
func (r *Roadmap) CompleteStep(stepID string) error {
	i := r.indexOf(stepID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	if err := r.transition(i, StepCompleted); err != nil {
		return err
	}
	next := i + 1
	if next < len(r.Steps) && r.Steps[next].Status == StepLocked {
		if err := r.transition(next, StepPending); err != nil {
			return err
		}
	}
	r.CurrentPhase = r.completedCount()
	r.NextActionID = ""
	if cur := r.FirstPending(); cur >= 0 {
		r.NextActionID = r.Steps[cur].ID
	}
	return nil
}

func (r *Roadmap) transition(i int, next StepStatus) error {
	from := r.Steps[i].Status
	if !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: step %s %s -> %s", ErrInvalidTransition, r.Steps[i].ID, from, next)
	}
	if from == StepLocked && next == StepPending && (i == 0 || r.Steps[i-1].Status != StepCompleted) {
		return fmt.Errorf("%w: step %s unlocked before its predecessor completed", ErrInvalidTransition, r.Steps[i].ID)
	}
	r.Steps[i].Status = next
	return nil
}

func (r *Roadmap) completedCount() int {
	n := 0
	for _, s := range r.Steps {
		if s.Status == StepCompleted {
			n++
		}
	}
	return n
}
