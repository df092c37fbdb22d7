// Package app wires configuration, logging, storage and the generation gateway
// into per-namespace sessions shared by the HTTP functions and the CLI.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/gateway"
	"github.com/Lllllllleong/imigraflow/internal/guard"
	"github.com/Lllllllleong/imigraflow/internal/llm"
	"github.com/Lllllllleong/imigraflow/internal/services"
	"github.com/Lllllllleong/imigraflow/internal/store"
)

type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	Stores  *store.Factory
	Gateway *gateway.Gateway
	Clock   services.Clock

	mu       sync.Mutex
	sessions map[string]*Session

	storageOnce   sync.Once
	storageClient *storage.Client
	storageErr    error
}

// Session bundles the services of one namespace. Sessions are cached so the
// one-turn-in-flight rule of the conversation holds across requests.
type Session struct {
	Namespace    string
	Store        *store.Store
	Guards       *guard.Guards
	Onboarding   *services.OnboardingFunction
	Conversation *services.ConversationFunction
	Tracker      *services.TrackerFunction
	Processes    *services.ProcessesFunction
	Study        *services.StudyFunction
	Calculator   *services.CalculatorFunction
	DocReview    *services.DocReviewFunction
}

// New connects the configured store backend and the LLM connector.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, error) {
	return NewWithConnector(ctx, cfg, logger, llm.NewConnector(cfg.LLM, logger))
}

// NewWithConnector is New with an explicit provider connector.
func NewWithConnector(ctx context.Context, cfg *config.Config, logger *zap.Logger, connect llm.Connector) (*App, error) {
	stores, err := store.NewFactory(ctx, cfg.Store, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	gw, err := gateway.New(connect, logger)
	if err != nil {
		_ = stores.Close()
		return nil, fmt.Errorf("failed to create gateway: %w", err)
	}
	return &App{
		Config:   cfg,
		Logger:   logger,
		Stores:   stores,
		Gateway:  gw,
		sessions: make(map[string]*Session),
	}, nil
}

// Session returns the cached session of namespace, opening it on first use.
func (a *App) Session(namespace string) (*Session, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if s, ok := a.sessions[namespace]; ok {
		return s, nil
	}

	st, err := a.Stores.Open(namespace)
	if err != nil {
		return nil, err
	}
	logger := a.Logger.With(zap.String("namespace", namespace))
	s := &Session{
		Namespace:    namespace,
		Store:        st,
		Guards:       guard.New(st, logger),
		Onboarding:   services.NewOnboarding(st, a.Gateway, logger, a.Clock),
		Conversation: services.NewConversation(st, a.Gateway, logger, a.Clock),
		Tracker:      services.NewTracker(st, logger),
		Processes:    services.NewProcesses(st, logger, a.Clock),
		Study:        services.NewStudy(st, a.Gateway, logger),
		Calculator:   services.NewCalculator(st, a.Gateway, logger),
		DocReview:    services.NewDocReview(a.Gateway, logger),
	}
	a.sessions[namespace] = s
	return s, nil
}

// StorageClient creates the GCS client on first use; local-only setups never need it.
func (a *App) StorageClient(ctx context.Context) (*storage.Client, error) {
	a.storageOnce.Do(func() {
		a.storageClient, a.storageErr = storage.NewClient(ctx)
		if a.storageErr != nil {
			a.storageErr = fmt.Errorf("failed to create storage client: %w", a.storageErr)
		}
	})
	return a.storageClient, a.storageErr
}

func (a *App) Close() error {
	var errs []error
	a.mu.Lock()
	for ns, s := range a.sessions {
		if err := s.Store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("namespace %s: %w", ns, err))
		}
	}
	a.sessions = make(map[string]*Session)
	a.mu.Unlock()

	if err := a.Stores.Close(); err != nil {
		errs = append(errs, err)
	}
	if a.storageClient != nil {
		if err := a.storageClient.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	_ = a.Logger.Sync()
	return errors.Join(errs...)
}
