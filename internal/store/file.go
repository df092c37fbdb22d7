package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

const fileExt = ".json"

// FileBackend stores one file per key under <dataDir>/<namespace>/. Writes go
// through a temp file and a rename so readers never observe partial documents.
type FileBackend struct {
	dir    string
	logger *zap.Logger
}

func NewFileBackend(dataDir, namespace string, logger *zap.Logger) (*FileBackend, error) {
	if err := validateName(namespace); err != nil {
		return nil, err
	}
	dir := filepath.Join(dataDir, namespace)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create namespace directory %s: %w", dir, err)
	}
	return &FileBackend{dir: dir, logger: logger}, nil
}

// Dir is the directory holding the namespace's files.
func (b *FileBackend) Dir() string { return b.dir }

func (b *FileBackend) path(key string) string {
	return filepath.Join(b.dir, key+fileExt)
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	if err := validateName(key); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(b.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

func (b *FileBackend) Set(_ context.Context, key string, value []byte) error {
	if err := validateName(key); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(b.dir, "."+key+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file for %s: %w", key, err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(value); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to finalize %s: %w", key, err)
	}
	if err := os.Rename(tmpName, b.path(key)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("failed to commit %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	if err := validateName(key); err != nil {
		return err
	}
	if err := os.Remove(b.path(key)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

func (b *FileBackend) Clear(_ context.Context) error {
	entries, err := os.ReadDir(b.dir)
	if err != nil {
		return fmt.Errorf("failed to list %s: %w", b.dir, err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(b.dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("failed to clear %s: %w", e.Name(), err)
		}
	}
	return nil
}

func (b *FileBackend) Close() error { return nil }

// Watch reports changes to key files made by any process sharing the data
// directory. The returned channel is closed once ctx is done.
func (b *FileBackend) Watch(ctx context.Context) (<-chan Change, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := w.Add(b.dir); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", b.dir, err)
	}

	out := make(chan Change, 16)
	go b.run(ctx, w, out)
	return out, nil
}

func (b *FileBackend) run(ctx context.Context, w *fsnotify.Watcher, out chan<- Change) {
	defer close(out)
	defer w.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.Events:
			if !ok {
				return
			}
			change, ok := changeFromEvent(event)
			if !ok {
				continue
			}
			select {
			case out <- change:
			case <-ctx.Done():
				return
			}

		case err, ok := <-w.Errors:
			if !ok {
				return
			}
			b.logger.Warn("file watcher error", zap.String("dir", b.dir), zap.Error(err))
		}
	}
}

func changeFromEvent(event fsnotify.Event) (Change, bool) {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") || !strings.HasSuffix(base, fileExt) {
		return Change{}, false
	}
	key := strings.TrimSuffix(base, fileExt)
	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Key: key, Deleted: true}, true
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return Change{Key: key}, true
	}
	return Change{}, false
}
