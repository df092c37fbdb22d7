package services

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/Lllllllleong/imigraflow/internal/gateway"
	"github.com/Lllllllleong/imigraflow/internal/models"
	"github.com/Lllllllleong/imigraflow/internal/store"
	"go.uber.org/zap"
)

// IntroMessageID is the id of the static greeting shown when there is no
// roadmap step to act on.
const IntroMessageID = "init"

const introMessage = "**Consultor Imigra.AI Iniciado.**\n\nEstou analisando seu processo ativo no sistema. Por favor, aguarde instruções ou faça sua pergunta."

const coldStartTrigger = `O usuário acabou de entrar na tela de chat.
O passo atual do Roadmap é: "%s".
Descrição: "%s".

AÇÃO: Inicie a conversa explicando este passo e já pedindo a informação necessária para EXECUTARMOS a tarefa agora.
Não dê "Bom dia" genérico. Atue como um advogado sênior dando instruções.`

// ConversationFunction owns the chat log of one namespace. At most one turn is
// generated at a time; a second Send while a reply is pending is rejected.
type ConversationFunction struct {
	store  *store.Store
	gen    Generator
	logger *zap.Logger
	now    Clock

	mu       sync.Mutex
	inFlight bool
	messages []models.Message
}

func NewConversation(s *store.Store, gen Generator, logger *zap.Logger, now Clock) *ConversationFunction {
	return &ConversationFunction{store: s, gen: gen, logger: logger, now: orNow(now)}
}

// Open returns the chat log, resuming a persisted one or starting a new one.
// A new log opens with a model message about the first PENDING roadmap step of
// the active process, or with the static intro when there is no such step.
func (f *ConversationFunction) Open(ctx context.Context) ([]models.Message, error) {
	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	history, err := f.store.LoadChatHistory(ctx)
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	if len(history) > 0 {
		f.messages = history
		out := f.snapshot()
		f.mu.Unlock()
		return out, nil
	}
	f.inFlight = true
	f.mu.Unlock()

	first := f.coldStart(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	f.messages = []models.Message{first}
	if err := f.store.SaveChatHistory(ctx, f.messages); err != nil {
		return nil, fmt.Errorf("failed to save chat history: %w", err)
	}
	return f.snapshot(), nil
}

func (f *ConversationFunction) coldStart(ctx context.Context) models.Message {
	state := f.loadState(ctx)
	active := state.ActiveProcess()
	if active != nil {
		roadmap := &active.ActiveRoadmap
		if roadmap.PendingCount() > 1 {
			f.logger.Warn("Roadmap has more than one PENDING step; using the first.", zap.String("processId", active.ID))
		}
		if i := roadmap.FirstPending(); i >= 0 {
			step := roadmap.Steps[i]
			f.logger.Info("Cold-starting chat on roadmap step.", zap.String("processId", active.ID), zap.String("stepId", step.ID))
			reply := f.gen.Reply(ctx, gateway.ReplyInput{
				State:         state,
				HiddenTrigger: fmt.Sprintf(coldStartTrigger, step.Title, step.Description),
			})
			now := f.now()
			return models.Message{
				ID:        strconv.FormatInt(now.UnixMilli()+1, 10),
				Role:      models.RoleModel,
				Content:   reply,
				Timestamp: now.UnixMilli(),
			}
		}
	}
	return models.Message{
		ID:        IntroMessageID,
		Role:      models.RoleModel,
		Content:   introMessage,
		Timestamp: f.now().UnixMilli(),
	}
}

// loadState returns nil when there is no usable state; the gateway then sends
// the no-context markers.
func (f *ConversationFunction) loadState(ctx context.Context) *models.GlobalState {
	state, err := f.store.LoadGlobalState(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			f.logger.Warn("Chat is running without process context.", zap.Error(err))
		}
		return nil
	}
	return state
}

// Send appends the user message, asks the gateway for a reply and appends it.
// Both messages are persisted. Only the first attachment reaches the model.
func (f *ConversationFunction) Send(ctx context.Context, text string, attachments []models.Attachment) (*models.Message, error) {
	if strings.TrimSpace(text) == "" && len(attachments) == 0 {
		return nil, ErrEmptyMessage
	}

	f.mu.Lock()
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrTurnInFlight
	}
	// The log may have been cleared or replaced since the last turn
	// (onboarding, the compatibility guard, another client).
	stored, err := f.store.LoadChatHistory(ctx)
	if err != nil {
		f.mu.Unlock()
		return nil, fmt.Errorf("failed to load chat history: %w", err)
	}
	f.messages = stored
	now := f.now()
	userMsg := models.Message{
		ID:          nextMessageID(f.messages, now.UnixMilli()),
		Role:        models.RoleUser,
		Content:     text,
		Timestamp:   now.UnixMilli(),
		Attachments: attachments,
	}
	history := f.snapshot()
	f.messages = append(f.messages, userMsg)
	if err := f.store.SaveChatHistory(ctx, f.messages); err != nil {
		f.messages = f.messages[:len(f.messages)-1]
		f.mu.Unlock()
		return nil, fmt.Errorf("failed to save chat history: %w", err)
	}
	f.inFlight = true
	f.mu.Unlock()

	reply := f.gen.Reply(ctx, gateway.ReplyInput{
		History:     history,
		Text:        text,
		State:       f.loadState(ctx),
		Attachments: attachments,
	})

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	modelMsg := models.Message{
		ID:        nextMessageID(f.messages, now.UnixMilli()+1),
		Role:      models.RoleModel,
		Content:   reply,
		Timestamp: f.now().UnixMilli(),
	}
	f.messages = append(f.messages, modelMsg)
	if err := f.store.SaveChatHistory(ctx, f.messages); err != nil {
		return nil, fmt.Errorf("failed to save chat history: %w", err)
	}
	return &modelMsg, nil
}

// Reset deletes the persisted log. The next Open cold-starts again.
func (f *ConversationFunction) Reset(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return ErrTurnInFlight
	}
	if err := f.store.ClearChatHistory(ctx); err != nil {
		return fmt.Errorf("failed to clear chat history: %w", err)
	}
	f.messages = nil
	return nil
}

// nextMessageID returns candidate as a decimal id, raised above every numeric
// id already in the log so ids stay unique and increasing.
func nextMessageID(log []models.Message, candidate int64) string {
	for _, m := range log {
		if n, err := strconv.ParseInt(m.ID, 10, 64); err == nil && n >= candidate {
			candidate = n + 1
		}
	}
	return strconv.FormatInt(candidate, 10)
}

// Messages returns a copy of the in-memory log.
func (f *ConversationFunction) Messages() []models.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

// Busy reports whether a reply is being generated.
func (f *ConversationFunction) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inFlight
}

func (f *ConversationFunction) snapshot() []models.Message {
	out := make([]models.Message, len(f.messages))
	copy(out, f.messages)
	return out
}
