// Package store persists the two per-namespace documents (global state and
// chat log) behind a small key/value Backend abstraction.
package store

import (
	"context"
	"errors"
	"fmt"
	"regexp"
)

var (
	// ErrNotFound is returned by Backend.Get when the key is absent.
	ErrNotFound = errors.New("key not found")
	// ErrWatchUnsupported is returned when the backend cannot report changes.
	ErrWatchUnsupported = errors.New("backend does not support change notifications")
	// ErrCorruptState means the stored global state could not be decoded.
	ErrCorruptState = errors.New("stored state is corrupt")
	// ErrInvalidName is returned for keys or namespaces that are not plain identifiers.
	ErrInvalidName = errors.New("invalid key or namespace")
)

// Backend is a flat key/value space scoped to one namespace.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// Clear destroys every key of the namespace.
	Clear(ctx context.Context) error
	Close() error
}

// Change describes a write observed on a namespace. Cleared is set when the
// whole namespace was wiped, in which case Key is empty.
type Change struct {
	Key     string `json:"key,omitempty"`
	Deleted bool   `json:"deleted,omitempty"`
	Cleared bool   `json:"cleared,omitempty"`
}

// Watcher is implemented by backends that can notify about changes made by
// other writers. Notifications are hints: receivers re-read the key.
type Watcher interface {
	Watch(ctx context.Context) (<-chan Change, error)
}

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,128}$`)

func validateName(name string) error {
	if !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
