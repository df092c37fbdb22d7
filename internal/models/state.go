package models

import (
	"encoding/json"
	"fmt"
)

// Keys of the two documents persisted per namespace, plus the pre-multi-process
// key that onboarding removes.
const (
	GlobalStateKey     = "imigra_global_state"
	ChatHistoryKey     = "imigra_chat_history"
	LegacyUserStateKey = "imigra_user_state"
)

// UserIdentity is set once at onboarding.
type UserIdentity struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Token string `json:"token,omitempty"`
}

// GlobalState is the single persisted document holding the user identity and
// every immigration process the user is tracking.
type GlobalState struct {
	UserIdentity    UserIdentity         `json:"user_identity"`
	ActiveProcessID string               `json:"active_process_id"`
	Processes       []ImmigrationProcess `json:"processes"`
}

// ActiveProcess returns a pointer into Processes for the active process, or nil.
func (s *GlobalState) ActiveProcess() *ImmigrationProcess {
	if s == nil || s.ActiveProcessID == "" {
		return nil
	}
	return s.Process(s.ActiveProcessID)
}

// Process looks a process up by id.
func (s *GlobalState) Process(id string) *ImmigrationProcess {
	if s == nil {
		return nil
	}
	for i := range s.Processes {
		if s.Processes[i].ID == id {
			return &s.Processes[i]
		}
	}
	return nil
}

// HasProcess reports whether a process with the given id exists.
func (s *GlobalState) HasProcess(id string) bool {
	return s.Process(id) != nil
}

// Clone returns a deep copy so callers can mutate without touching a shared snapshot.
func (s *GlobalState) Clone() (*GlobalState, error) {
	if s == nil {
		return nil, nil
	}
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal global state: %w", err)
	}
	var out GlobalState
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("failed to unmarshal global state: %w", err)
	}
	return &out, nil
}
