package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type firestoreEntry struct {
	Value     string    `firestore:"value"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

// FirestoreBackend keeps each key as a document at
// <collection>/<namespace>/keys/<key>. It does not implement Watcher.
type FirestoreBackend struct {
	client     *firestore.Client
	collection string
	namespace  string
}

// NewFirestoreBackend does not take ownership of client.
func NewFirestoreBackend(client *firestore.Client, collection, namespace string) (*FirestoreBackend, error) {
	if err := validateName(namespace); err != nil {
		return nil, err
	}
	if collection == "" {
		return nil, fmt.Errorf("firestore collection must be provided")
	}
	return &FirestoreBackend{client: client, collection: collection, namespace: namespace}, nil
}

func (b *FirestoreBackend) keys() *firestore.CollectionRef {
	return b.client.Collection(b.collection).Doc(b.namespace).Collection("keys")
}

func (b *FirestoreBackend) Get(ctx context.Context, key string) ([]byte, error) {
	if err := validateName(key); err != nil {
		return nil, err
	}
	snap, err := b.keys().Doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("firestore get %s: %w", key, err)
	}
	var entry firestoreEntry
	if err := snap.DataTo(&entry); err != nil {
		return nil, fmt.Errorf("firestore decode %s: %w", key, err)
	}
	return []byte(entry.Value), nil
}

func (b *FirestoreBackend) Set(ctx context.Context, key string, value []byte) error {
	if err := validateName(key); err != nil {
		return err
	}
	entry := firestoreEntry{Value: string(value), UpdatedAt: time.Now().UTC()}
	if _, err := b.keys().Doc(key).Set(ctx, entry); err != nil {
		return fmt.Errorf("firestore set %s: %w", key, err)
	}
	return nil
}

func (b *FirestoreBackend) Delete(ctx context.Context, key string) error {
	if err := validateName(key); err != nil {
		return err
	}
	if _, err := b.keys().Doc(key).Delete(ctx); err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("firestore delete %s: %w", key, err)
	}
	return nil
}

func (b *FirestoreBackend) Clear(ctx context.Context) error {
	iter := b.keys().Documents(ctx)
	defer iter.Stop()
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("firestore list namespace %s: %w", b.namespace, err)
		}
		if _, err := doc.Ref.Delete(ctx); err != nil {
			return fmt.Errorf("firestore delete %s: %w", doc.Ref.ID, err)
		}
	}
}

func (b *FirestoreBackend) Close() error { return nil }
