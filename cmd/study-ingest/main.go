package main

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/logger"
	"github.com/Lllllllleong/imigraflow/internal/services"
	"github.com/Lllllllleong/imigraflow/internal/store"
)

var (
	ingestInstance *services.IngestFunction
	once           sync.Once
	initErr        error
)

func init() {
	// Register the CloudEvent function. The framework will handle routing the event here.
	functions.CloudEvent("IngestStudyMaterial", ingestStudyMaterial)
}

// main is required by the Go Functions Framework.
func main() {}

// ingestStudyMaterial is the Cloud Function entry point for object finalize events.
func ingestStudyMaterial(ctx context.Context, e cloudevents.Event) error {
	once.Do(func() {
		ingestInstance, initErr = setup(context.Background())
	})
	if initErr != nil {
		zap.L().Error("Critical error during function initialization", zap.Error(initErr))
		return initErr
	}

	var gcsEvent services.GCSEvent
	if err := json.Unmarshal(e.Data(), &gcsEvent); err != nil {
		zap.L().Error("Failed to unmarshal event data", zap.Error(err), zap.String("data", string(e.Data())))
		return fmt.Errorf("json.Unmarshal: %w", err)
	}

	// The error is already logged with context within the Process method.
	return ingestInstance.Process(ctx, gcsEvent)
}

func setup(ctx context.Context) (*services.IngestFunction, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	zap.ReplaceGlobals(log)

	storageClient, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create storage client: %w", err)
	}
	stores, err := store.NewFactory(ctx, cfg.Store, log)
	if err != nil {
		storageClient.Close()
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	log.Info("Study ingest initialized.",
		zap.String("store", cfg.Store.Backend),
		zap.String("archiveBucket", cfg.Study.ArchiveBucket))
	return services.NewIngest(storageClient, stores, services.IngestConfig{
		ArchiveBucket: cfg.Study.ArchiveBucket,
		DefaultPages:  cfg.Study.DefaultPages,
	}, log), nil
}
