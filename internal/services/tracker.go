package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/store"
	"go.uber.org/zap"
)

// TrackerFunction projects the active process into the dashboard and moves
// roadmap steps forward.
type TrackerFunction struct {
	store  *store.Store
	logger *zap.Logger
}

func NewTracker(s *store.Store, logger *zap.Logger) *TrackerFunction {
	return &TrackerFunction{store: s, logger: logger}
}

// Dashboard is recomputed from the stored state on every call.
func (f *TrackerFunction) Dashboard(ctx context.Context) (*models.DashboardView, error) {
	state, err := f.store.LoadGlobalState(ctx)
	if err != nil {
		return nil, activeStateError(err)
	}
	active := state.ActiveProcess()
	if active == nil {
		return nil, ErrNoActiveProcess
	}

	if active.ActiveRoadmap.PendingCount() > 1 {
		f.logger.Warn("Roadmap has more than one PENDING step; using the first.", zap.String("processId", active.ID))
	}

	view := &models.DashboardView{
		FirstName:      firstName(state.UserIdentity.Name),
		ProcessID:      active.ID,
		ProcessLabel:   active.Label(),
		Documents:      active.DocumentProgress(),
		BlockingUpload: active.HasBlockingUploads(),
	}
	if step := active.ActiveRoadmap.CurrentStep(); step != nil {
		current := *step
		view.CurrentStep = &current
	}
	if n := len(active.PendingUploads()); n > 0 {
		view.Notification = fmt.Sprintf("Você tem %d documento(s) pendente(s) de envio.", n)
	}
	return view, nil
}

// StartStep marks a PENDING step IN_PROGRESS on the active roadmap.
func (f *TrackerFunction) StartStep(ctx context.Context, stepID string) (*models.Roadmap, error) {
	return f.updateRoadmap(ctx, func(p *models.ImmigrationProcess) error {
		return p.ActiveRoadmap.StartStep(stepID)
	})
}

// CompleteStep completes a step and unlocks its successor. The process moves
// to In Progress on the first completion and to Completed after the last.
func (f *TrackerFunction) CompleteStep(ctx context.Context, stepID string) (*models.Roadmap, error) {
	return f.updateRoadmap(ctx, func(p *models.ImmigrationProcess) error {
		if err := p.ActiveRoadmap.CompleteStep(stepID); err != nil {
			return err
		}
		if p.ActiveRoadmap.CurrentPhase == len(p.ActiveRoadmap.Steps) {
			p.Status = models.ProcessCompleted
		} else if p.Status == models.ProcessPlanning {
			p.Status = models.ProcessInProgress
		}
		return nil
	})
}

func (f *TrackerFunction) updateRoadmap(ctx context.Context, fn func(*models.ImmigrationProcess) error) (*models.Roadmap, error) {
	var roadmap models.Roadmap
	_, err := f.store.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		active := st.ActiveProcess()
		if active == nil {
			return ErrNoActiveProcess
		}
		if err := fn(active); err != nil {
			return err
		}
		roadmap = active.ActiveRoadmap
		return nil
	})
	if err != nil {
		return nil, activeStateError(err)
	}
	return &roadmap, nil
}

// activeStateError folds a missing stored state into ErrNoActiveProcess.
func activeStateError(err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return ErrNoActiveProcess
	}
	return err
}

func firstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
