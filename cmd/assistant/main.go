package main

import (
	"context"
	"net/http"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/app"
	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/logger"
)

var (
	handler http.Handler
	once    sync.Once
	initErr error
)

func init() {
	// "HandleImigra" is the entry point name configured in GCP.
	functions.HTTP("HandleImigra", handleImigra)
}

// main is required by the Go Functions Framework.
func main() {}

func handleImigra(w http.ResponseWriter, r *http.Request) {
	// Use sync.Once for robust, one-time initialization of clients.
	once.Do(func() {
		handler, initErr = setup(context.Background())
	})
	if initErr != nil {
		zap.L().Error("CRITICAL: assistant initialization failed", zap.Error(initErr))
		http.Error(w, "Internal Server Error: failed to initialize service", http.StatusInternalServerError)
		return
	}
	handler.ServeHTTP(w, r)
}

func setup(ctx context.Context) (http.Handler, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	zap.ReplaceGlobals(log)

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	log.Info("Assistant initialized.", zap.String("provider", cfg.LLM.Provider), zap.String("store", cfg.Store.Backend))
	return newServer(a).routes(), nil
}
