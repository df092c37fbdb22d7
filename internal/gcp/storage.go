package gcp

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"google.golang.org/api/googleapi"
)

// ErrInvalidGCSURI is returned for anything that is not gs://bucket/object.
var ErrInvalidGCSURI = errors.New("invalid GCS URI")

// ParseGCSURI splits gs://bucket/path/to/object into bucket and object.
func ParseGCSURI(uri string) (bucket, object string, err error) {
	rest, ok := strings.CutPrefix(uri, "gs://")
	if !ok {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURI, uri)
	}
	bucket, object, ok = strings.Cut(rest, "/")
	if !ok || bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidGCSURI, uri)
	}
	return bucket, object, nil
}

// IsGCSURI reports whether s uses the gs:// scheme.
func IsGCSURI(s string) bool {
	return strings.HasPrefix(s, "gs://")
}

// ReadObject downloads a whole object into memory.
func ReadObject(ctx context.Context, client *storage.Client, bucket, object string) ([]byte, error) {
	gcsReader, err := client.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()

	data, err := io.ReadAll(gcsReader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", bucket, object, err)
	}
	return data, nil
}

// ContentHash is the hex SHA-256 of data, used to key derived artifacts.
func ContentHash(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// SaveToGCSAtomically writes content to a GCS object only if it doesn't already exist.
// An existing object is not an error, so repeated deliveries of the same event are harmless.
func SaveToGCSAtomically(ctx context.Context, bucket *storage.BucketHandle, objectName, content string, logger *zap.Logger) error {
	writer := bucket.Object(objectName).If(storage.Conditions{DoesNotExist: true}).NewWriter(ctx)

	if _, err := io.Copy(writer, strings.NewReader(content)); err != nil {
		_ = writer.Close()
		if IsPreconditionFailed(err) {
			logger.Info("skipping existing object", zap.String("object", objectName))
			return nil
		}
		logger.Error("failed to copy content to GCS object", zap.String("object", objectName), zap.Error(err))
		return fmt.Errorf("failed to write to GCS: %w", err)
	}

	if err := writer.Close(); err != nil {
		if IsPreconditionFailed(err) {
			logger.Info("skipping existing object", zap.String("object", objectName))
			return nil
		}
		logger.Error("failed to close GCS writer", zap.String("object", objectName), zap.Error(err))
		return fmt.Errorf("failed to finalize GCS write: %w", err)
	}
	return nil
}

// IsPreconditionFailed reports a 412 from a DoesNotExist write condition.
func IsPreconditionFailed(err error) bool {
	var gerr *googleapi.Error
	return errors.As(err, &gerr) && gerr.Code == http.StatusPreconditionFailed
}
