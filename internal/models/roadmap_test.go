package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func roadmapWith(statuses ...StepStatus) Roadmap {
	r := Roadmap{}
	for i, s := range statuses {
		r.Steps = append(r.Steps, RoadmapStep{
			ID:     string(rune('a' + i)),
			Title:  "step",
			Status: s,
		})
	}
	return r
}

func TestRoadmap_CurrentStepIndex(t *testing.T) {
	tests := []struct {
		name     string
		roadmap  Roadmap
		expected int
	}{
		{"first pending", roadmapWith(StepPending, StepLocked, StepLocked), 0},
		{"pending after completed", roadmapWith(StepCompleted, StepPending, StepLocked), 1},
		{"no pending falls back to first", roadmapWith(StepCompleted, StepCompleted), 0},
		{"multiple pending, first wins", roadmapWith(StepCompleted, StepPending, StepPending), 1},
		{"empty roadmap", Roadmap{}, -1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.roadmap.CurrentStepIndex())
		})
	}
}

func TestRoadmap_CurrentStep_Empty(t *testing.T) {
	r := Roadmap{}
	assert.Nil(t, r.CurrentStep())
}

func TestStepStatus_Transitions(t *testing.T) {
	assert.True(t, StepLocked.CanTransitionTo(StepPending))
	assert.True(t, StepPending.CanTransitionTo(StepCompleted))
	assert.True(t, StepPending.CanTransitionTo(StepInProgress))
	assert.True(t, StepInProgress.CanTransitionTo(StepCompleted))

	assert.False(t, StepLocked.CanTransitionTo(StepCompleted))
	assert.False(t, StepCompleted.CanTransitionTo(StepPending))
	assert.False(t, StepPending.CanTransitionTo(StepLocked))
	assert.False(t, StepStatus("DONE").Valid())
}

func TestRoadmap_CompleteStep_UnlocksNext(t *testing.T) {
	r := roadmapWith(StepPending, StepLocked, StepLocked)

	require.NoError(t, r.CompleteStep("a"))

	assert.Equal(t, StepCompleted, r.Steps[0].Status)
	assert.Equal(t, StepPending, r.Steps[1].Status)
	assert.Equal(t, StepLocked, r.Steps[2].Status)
	assert.Equal(t, 1, r.CurrentPhase)
	assert.Equal(t, "b", r.NextActionID)
}

func TestRoadmap_CompleteStep_Last(t *testing.T) {
	r := roadmapWith(StepCompleted, StepInProgress)

	require.NoError(t, r.CompleteStep("b"))

	assert.Equal(t, 2, r.CurrentPhase)
	assert.Empty(t, r.NextActionID)
}

func TestRoadmap_CompleteStep_Errors(t *testing.T) {
	r := roadmapWith(StepPending, StepLocked)

	err := r.CompleteStep("b")
	assert.ErrorIs(t, err, ErrInvalidTransition)

	err = r.CompleteStep("zzz")
	assert.ErrorIs(t, err, ErrStepNotFound)

	// Rejected transitions leave the roadmap untouched.
	assert.Equal(t, StepPending, r.Steps[0].Status)
	assert.Equal(t, StepLocked, r.Steps[1].Status)
}

func TestRoadmap_StartStep(t *testing.T) {
	r := roadmapWith(StepPending, StepLocked)

	require.NoError(t, r.StartStep("a"))
	assert.Equal(t, StepInProgress, r.Steps[0].Status)
	assert.ErrorIs(t, r.StartStep("b"), ErrInvalidTransition)
}

func TestProcess_DocumentProgress(t *testing.T) {
	p := ImmigrationProcess{UploadedDocuments: []UploadedDocument{
		{DocName: "Passaporte", Status: DocumentApproved},
		{DocName: "Diploma", Status: DocumentPendingUpload},
		{DocName: "IELTS", Status: DocumentReviewing},
	}}

	assert.Equal(t, DocumentProgress{Approved: 1, Total: 3}, p.DocumentProgress())
	assert.True(t, p.HasBlockingUploads())

	p.UploadedDocuments[1].Status = DocumentApproved
	assert.False(t, p.HasBlockingUploads())
}

func TestDocumentsFromConfig(t *testing.T) {
	cfg := ProcessConfig{Requirements: Requirements{DocumentsList: []RequiredDocument{
		{Name: "Passaporte", Required: true},
		{Name: "Diploma", Required: true},
	}}}

	docs := DocumentsFromConfig(cfg)

	require.Len(t, docs, 2)
	for _, d := range docs {
		assert.Equal(t, DocumentPendingUpload, d.Status)
		assert.Nil(t, d.Date)
	}
	assert.Equal(t, "Diploma", docs[1].DocName)
}

func TestGlobalState_ActiveProcess(t *testing.T) {
	s := &GlobalState{
		ActiveProcessID: "p2",
		Processes:       []ImmigrationProcess{{ID: "p1"}, {ID: "p2", Country: "Canada"}},
	}

	active := s.ActiveProcess()
	require.NotNil(t, active)
	assert.Equal(t, "Canada", active.Country)

	s.ActiveProcessID = "missing"
	assert.Nil(t, s.ActiveProcess())

	var nilState *GlobalState
	assert.Nil(t, nilState.ActiveProcess())
}

func TestCatalog(t *testing.T) {
	c, ok := FindCountry("Canada")
	require.True(t, ok)
	assert.True(t, c.OffersVisa("Express Entry"))
	assert.False(t, c.OffersVisa("H1B"))
	assert.True(t, IsProfession("TI / Tech"))
	assert.False(t, IsProfession("Astronauta"))
}
