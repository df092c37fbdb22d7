package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Lllllllleong/imigraflow/internal/models"
	"go.uber.org/zap"
)

// Store gives typed access to the documents of one namespace.
type Store struct {
	backend Backend
	logger  *zap.Logger

	// mu serialises read-modify-write cycles issued through this Store.
	mu sync.Mutex
}

func New(backend Backend, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{backend: backend, logger: logger}
}

func (s *Store) Backend() Backend { return s.backend }

func (s *Store) Close() error { return s.backend.Close() }

// RawGlobalState returns the stored global state bytes, or ErrNotFound.
func (s *Store) RawGlobalState(ctx context.Context) ([]byte, error) {
	return s.backend.Get(ctx, models.GlobalStateKey)
}

func (s *Store) HasGlobalState(ctx context.Context) (bool, error) {
	_, err := s.backend.Get(ctx, models.GlobalStateKey)
	if errors.Is(err, ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// LoadGlobalState decodes the global state. It returns ErrNotFound when no
// state exists and ErrCorruptState when the stored bytes do not decode.
func (s *Store) LoadGlobalState(ctx context.Context) (*models.GlobalState, error) {
	raw, err := s.backend.Get(ctx, models.GlobalStateKey)
	if err != nil {
		return nil, err
	}
	var state models.GlobalState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorruptState, err)
	}
	return &state, nil
}

func (s *Store) SaveGlobalState(ctx context.Context, state *models.GlobalState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveGlobalState(ctx, state)
}

func (s *Store) saveGlobalState(ctx context.Context, state *models.GlobalState) error {
	if state == nil {
		return fmt.Errorf("cannot save a nil global state")
	}
	if state.Processes == nil {
		state.Processes = []models.ImmigrationProcess{}
	}
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to encode global state: %w", err)
	}
	if err := s.backend.Set(ctx, models.GlobalStateKey, data); err != nil {
		return fmt.Errorf("failed to save global state: %w", err)
	}
	return nil
}

// UpdateGlobalState loads the current state, applies fn and writes the result
// as one step. When fn returns an error nothing is written.
func (s *Store) UpdateGlobalState(ctx context.Context, fn func(*models.GlobalState) error) (*models.GlobalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.LoadGlobalState(ctx)
	if err != nil {
		return nil, err
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	if err := s.saveGlobalState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// UpsertGlobalState is UpdateGlobalState starting from an empty state when none
// is stored or the stored one does not decode.
func (s *Store) UpsertGlobalState(ctx context.Context, fn func(*models.GlobalState) error) (*models.GlobalState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	state, err := s.LoadGlobalState(ctx)
	switch {
	case errors.Is(err, ErrNotFound):
		state = &models.GlobalState{}
	case errors.Is(err, ErrCorruptState):
		s.logger.Warn("replacing unreadable global state", zap.Error(err))
		state = &models.GlobalState{}
	case err != nil:
		return nil, err
	}
	if err := fn(state); err != nil {
		return nil, err
	}
	if err := s.saveGlobalState(ctx, state); err != nil {
		return nil, err
	}
	return state, nil
}

// RemoveGlobalState deletes only the global state key (logout).
func (s *Store) RemoveGlobalState(ctx context.Context) error {
	return s.backend.Delete(ctx, models.GlobalStateKey)
}

func (s *Store) RemoveLegacyState(ctx context.Context) error {
	return s.backend.Delete(ctx, models.LegacyUserStateKey)
}

// LoadChatHistory returns the persisted chat log. A missing log is empty; an
// unreadable one is logged and treated as empty.
func (s *Store) LoadChatHistory(ctx context.Context) ([]models.Message, error) {
	raw, err := s.backend.Get(ctx, models.ChatHistoryKey)
	if errors.Is(err, ErrNotFound) {
		return []models.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	var messages []models.Message
	if err := json.Unmarshal(raw, &messages); err != nil {
		s.logger.Warn("discarding unreadable chat history", zap.Error(err))
		return []models.Message{}, nil
	}
	if messages == nil {
		messages = []models.Message{}
	}
	return messages, nil
}

// SaveChatHistory writes the whole log. Attachment payloads are not persisted.
func (s *Store) SaveChatHistory(ctx context.Context, messages []models.Message) error {
	stored := make([]models.Message, len(messages))
	for i, m := range messages {
		stored[i] = m
		if len(m.Attachments) > 0 {
			stored[i].Attachments = make([]models.Attachment, len(m.Attachments))
			for j, a := range m.Attachments {
				a.Data = ""
				stored[i].Attachments[j] = a
			}
		}
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to encode chat history: %w", err)
	}
	if err := s.backend.Set(ctx, models.ChatHistoryKey, data); err != nil {
		return fmt.Errorf("failed to save chat history: %w", err)
	}
	return nil
}

func (s *Store) ClearChatHistory(ctx context.Context) error {
	return s.backend.Delete(ctx, models.ChatHistoryKey)
}

// ClearAll destroys every key of the namespace.
func (s *Store) ClearAll(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backend.Clear(ctx)
}

// Subscribe forwards change hints from backends that support watching.
func (s *Store) Subscribe(ctx context.Context) (<-chan Change, error) {
	w, ok := s.backend.(Watcher)
	if !ok {
		return nil, ErrWatchUnsupported
	}
	return w.Watch(ctx)
}
