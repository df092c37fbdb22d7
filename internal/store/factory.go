package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/config"
	"github.com/Lllllllleong/imigraflow/internal/gcp"
)

// Factory opens Stores for namespaces over clients shared by all of them.
type Factory struct {
	cfg    config.StoreConfig
	logger *zap.Logger

	redis     *redis.Client
	firestore *firestore.Client

	mu     sync.Mutex
	memory map[string]*MemoryBackend
}

// NewFactory connects to the configured backend once.
func NewFactory(ctx context.Context, cfg config.StoreConfig, logger *zap.Logger) (*Factory, error) {
	f := &Factory{cfg: cfg, logger: logger, memory: make(map[string]*MemoryBackend)}

	switch cfg.Backend {
	case config.BackendMemory, config.BackendFile:
	case config.BackendRedis:
		f.redis = redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
			PoolSize:     10,
		})
		if err := f.redis.Ping(ctx).Err(); err != nil {
			_ = f.redis.Close()
			return nil, fmt.Errorf("redis ping failed: %w", err)
		}
	case config.BackendFirestore:
		client, err := gcp.NewFirestoreClient(ctx, cfg.FirestoreProject, cfg.FirestoreDatabase)
		if err != nil {
			return nil, err
		}
		f.firestore = client
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
	return f, nil
}

// Open returns a Store scoped to namespace.
func (f *Factory) Open(namespace string) (*Store, error) {
	if err := validateName(namespace); err != nil {
		return nil, err
	}
	logger := f.logger.With(zap.String("namespace", namespace))

	var (
		backend Backend
		err     error
	)
	switch f.cfg.Backend {
	case config.BackendMemory:
		f.mu.Lock()
		mb, ok := f.memory[namespace]
		if !ok {
			mb = NewMemoryBackend()
			f.memory[namespace] = mb
		}
		f.mu.Unlock()
		backend = mb
	case config.BackendFile:
		backend, err = NewFileBackend(f.cfg.DataDir, namespace, logger)
	case config.BackendRedis:
		backend, err = NewRedisBackend(f.redis, namespace, logger)
	case config.BackendFirestore:
		backend, err = NewFirestoreBackend(f.firestore, f.cfg.FirestoreCollection, namespace)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open namespace %s: %w", namespace, err)
	}
	return New(backend, logger), nil
}

func (f *Factory) Close() error {
	var errs []error
	if f.redis != nil {
		if err := f.redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if f.firestore != nil {
		if err := f.firestore.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to close store clients: %v", errs)
	}
	return nil
}
