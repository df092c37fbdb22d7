package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/store"
	"go.uber.org/zap"
)

// ProcessesFunction switches between tracked processes, updates the document
// checklist and ends the session.
type ProcessesFunction struct {
	store  *store.Store
	logger *zap.Logger
	now    Clock
}

func NewProcesses(s *store.Store, logger *zap.Logger, now Clock) *ProcessesFunction {
	return &ProcessesFunction{store: s, logger: logger, now: orNow(now)}
}

// List returns every process and the active id.
func (f *ProcessesFunction) List(ctx context.Context) ([]models.ImmigrationProcess, string, error) {
	state, err := f.store.LoadGlobalState(ctx)
	if errors.Is(err, store.ErrNotFound) {
		return []models.ImmigrationProcess{}, "", nil
	}
	if err != nil {
		return nil, "", err
	}
	return state.Processes, state.ActiveProcessID, nil
}

// Switch makes processID the active process. The chat log is left alone; the
// next turn picks up the new context through the system instruction.
func (f *ProcessesFunction) Switch(ctx context.Context, processID string) error {
	_, err := f.store.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		if !st.HasProcess(processID) {
			return fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
		}
		st.ActiveProcessID = processID
		return nil
	})
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrProcessNotFound, processID)
	}
	if err != nil {
		return err
	}
	f.logger.Info("Switched active process.", zap.String("processId", processID))
	return nil
}

// Logout removes the global state only. The chat log survives and is resumed
// after the next onboarding unless that onboarding clears it.
func (f *ProcessesFunction) Logout(ctx context.Context) error {
	if err := f.store.RemoveGlobalState(ctx); err != nil {
		return fmt.Errorf("failed to remove global state: %w", err)
	}
	f.logger.Info("Session ended.")
	return nil
}

// UpdateDocumentStatus sets the status of a checklist entry of the active
// process. The date is today for APPROVED and REVIEWING and cleared otherwise.
func (f *ProcessesFunction) UpdateDocumentStatus(ctx context.Context, docName string, status models.DocumentStatus) (*models.UploadedDocument, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	var updated models.UploadedDocument
	_, err := f.store.UpdateGlobalState(ctx, func(st *models.GlobalState) error {
		active := st.ActiveProcess()
		if active == nil {
			return ErrNoActiveProcess
		}
		for i := range active.UploadedDocuments {
			doc := &active.UploadedDocuments[i]
			if doc.DocName != docName {
				continue
			}
			doc.Status = status
			doc.Date = nil
			if status != models.DocumentPendingUpload {
				date := f.now().Format("2006-01-02")
				doc.Date = &date
			}
			updated = *doc
			return nil
		}
		return fmt.Errorf("%w: %s", ErrDocumentNotFound, docName)
	})
	if err != nil {
		return nil, activeStateError(err)
	}
	return &updated, nil
}

// Watch streams change hints for the namespace so open views can re-read.
func (f *ProcessesFunction) Watch(ctx context.Context) (<-chan store.Change, error) {
	return f.store.Subscribe(ctx)
}
