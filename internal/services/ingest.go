package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/gcp"
	"github.com/Lllllllleong/imigraflow/internal/pdftext"
	"github.com/Lllllllleong/imigraflow/internal/store"
)

// StoreOpener returns the store of a namespace. *store.Factory implements it.
type StoreOpener interface {
	Open(namespace string) (*store.Store, error)
}

type IngestConfig struct {
	// ArchiveBucket receives the source PDF and the extracted text. Empty disables archiving.
	ArchiveBucket string
	DefaultPages  int
}

// IngestFunction loads study PDFs uploaded to <namespace>/<file>.pdf into the
// namespace's active process.
type IngestFunction struct {
	storageClient *storage.Client
	stores        StoreOpener
	config        IngestConfig
	logger        *zap.Logger
}

// GCSEvent is the payload of a storage object finalize event. Optional object
// metadata keys startPage and endPage select the page range.
type GCSEvent struct {
	Bucket   string            `json:"bucket"`
	Name     string            `json:"name"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// PageRange is an inclusive, 1-based page selection.
type PageRange struct {
	Start int
	End   int
}

func NewIngest(storageClient *storage.Client, stores StoreOpener, config IngestConfig, logger *zap.Logger) *IngestFunction {
	if config.DefaultPages < 1 {
		config.DefaultPages = 5
	}
	return &IngestFunction{storageClient: storageClient, stores: stores, config: config, logger: logger}
}

func (f *IngestFunction) Process(ctx context.Context, e GCSEvent) error {
	logCtx := f.logger.With(zap.String("gcsBucket", e.Bucket), zap.String("gcsObject", e.Name))

	namespace, filename, ok := IngestTarget(e.Name)
	if !ok {
		logCtx.Info("Object is not a namespaced PDF. Skipping.")
		return nil
	}
	logCtx = logCtx.With(zap.String("namespace", namespace))
	logCtx.Info("Processing uploaded study material.")

	tempDir, err := os.MkdirTemp("", "study-ingest-*")
	if err != nil {
		return fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tempDir)

	sourcePdfPath := filepath.Join(tempDir, "source.pdf")
	if err := f.streamGCSObject(ctx, e.Bucket, e.Name, sourcePdfPath); err != nil {
		return f.handleError(logCtx, "failed to download source PDF", err)
	}
	fileHash, err := calculateFileHash(sourcePdfPath)
	if err != nil {
		return f.handleError(logCtx, "failed to calculate file hash", err)
	}
	logCtx = logCtx.With(zap.String("fileHash", fileHash))

	doc, err := pdftext.OpenFile(sourcePdfPath)
	if err != nil {
		return f.handleError(logCtx, "failed to open PDF", err)
	}

	text, err := f.Ingest(ctx, namespace, filename, doc, RangeFromMetadata(e.Metadata, f.config.DefaultPages))
	if err != nil {
		return f.handleError(logCtx, "failed to load study material", err)
	}

	if f.config.ArchiveBucket != "" {
		if err := f.archive(ctx, logCtx, namespace, fileHash, sourcePdfPath, text); err != nil {
			return err
		}
	}
	logCtx.Info("Study material ingested.")
	return nil
}

// Ingest extracts the range from src and stores it on the namespace's active process.
func (f *IngestFunction) Ingest(ctx context.Context, namespace, filename string, src PageSource, rng PageRange) (string, error) {
	st, err := f.stores.Open(namespace)
	if err != nil {
		return "", fmt.Errorf("failed to open store for %s: %w", namespace, err)
	}
	defer st.Close()
	study := NewStudy(st, nil, f.logger)
	return study.LoadMaterial(ctx, filename, src, rng.Start, rng.End)
}

func (f *IngestFunction) archive(ctx context.Context, logCtx *zap.Logger, namespace, fileHash, sourcePdfPath, text string) error {
	if err := f.uploadFile(ctx, sourcePdfPath, fmt.Sprintf("%s/%s.pdf", namespace, fileHash)); err != nil {
		return f.handleError(logCtx, "failed to archive source PDF", err)
	}
	textObject := fmt.Sprintf("%s/%s.txt", namespace, gcp.ContentHash([]byte(text)))
	bucket := f.storageClient.Bucket(f.config.ArchiveBucket)
	if err := gcp.SaveToGCSAtomically(ctx, bucket, textObject, text, logCtx); err != nil {
		return f.handleError(logCtx, "failed to archive extracted text", err)
	}
	logCtx.Info("Archived study material.", zap.String("archiveBucket", f.config.ArchiveBucket), zap.String("textObject", textObject))
	return nil
}

// IngestTarget splits "<namespace>/<file>.pdf". Anything else is not ingested.
func IngestTarget(object string) (namespace, filename string, ok bool) {
	namespace, filename, ok = strings.Cut(object, "/")
	if !ok || namespace == "" || strings.Contains(filename, "/") {
		return "", "", false
	}
	if !strings.EqualFold(path.Ext(filename), ".pdf") || filename == path.Ext(filename) {
		return "", "", false
	}
	return namespace, filename, true
}

// RangeFromMetadata reads startPage and endPage, defaulting to the first
// defaultPages pages. Values are clamped later against the page count.
func RangeFromMetadata(meta map[string]string, defaultPages int) PageRange {
	rng := PageRange{Start: 1, End: defaultPages}
	if v, err := strconv.Atoi(meta["startPage"]); err == nil {
		rng.Start = v
	}
	if v, err := strconv.Atoi(meta["endPage"]); err == nil {
		rng.End = v
	} else if _, hasStart := meta["startPage"]; hasStart {
		rng.End = rng.Start + defaultPages - 1
	}
	return rng
}

func (f *IngestFunction) handleError(logCtx *zap.Logger, message string, originalErr error) error {
	logCtx.Error(message, zap.Error(originalErr))
	return fmt.Errorf("%s: %w", message, originalErr)
}

func (f *IngestFunction) streamGCSObject(ctx context.Context, bucket, object, destPath string) error {
	gcsReader, err := f.storageClient.Bucket(bucket).Object(object).NewReader(ctx)
	if err != nil {
		return fmt.Errorf("failed to get GCS object reader for gs://%s/%s: %w", bucket, object, err)
	}
	defer gcsReader.Close()
	localFile, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("failed to create temp file at %s: %w", destPath, err)
	}
	defer localFile.Close()
	if _, err := io.Copy(localFile, gcsReader); err != nil {
		return fmt.Errorf("failed to copy GCS object to local file: %w", err)
	}
	return nil
}

func (f *IngestFunction) uploadFile(ctx context.Context, localPath, destObject string) error {
	const maxRetries = 4
	var backoff = 1 * time.Second
	var lastErr error

	for i := 0; i < maxRetries; i++ {
		err := func() error {
			localFileReader, err := os.Open(localPath)
			if err != nil {
				return fmt.Errorf("could not open local file %s: %w", localPath, err)
			}
			defer localFileReader.Close()

			writeCtx, cancel := context.WithTimeout(ctx, time.Second*50)
			defer cancel()

			gcsWriter := f.storageClient.Bucket(f.config.ArchiveBucket).Object(destObject).If(storage.Conditions{DoesNotExist: true}).NewWriter(writeCtx)
			gcsWriter.ContentType = "application/pdf"

			if _, err := io.Copy(gcsWriter, localFileReader); err != nil {
				_ = gcsWriter.Close()
				return fmt.Errorf("io.Copy to GCS failed: %w", err)
			}
			if err := gcsWriter.Close(); err != nil {
				return fmt.Errorf("failed to close GCS writer (finalize upload): %w", err)
			}
			return nil
		}()

		if err == nil || gcp.IsPreconditionFailed(err) {
			return nil
		}

		lastErr = err
		f.logger.Warn("Upload failed, will retry.",
			zap.String("gcsObject", destObject),
			zap.Int("attempt", i+1),
			zap.Int("maxRetries", maxRetries),
			zap.Duration("backoff", backoff),
			zap.Error(err),
		)

		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			f.logger.Error("Context cancelled during backoff. Aborting retries.", zap.String("gcsObject", destObject), zap.Error(ctx.Err()))
			return ctx.Err()
		}
	}
	f.logger.Error("Upload failed after all retries.", zap.String("gcsObject", destObject), zap.Error(lastErr))
	return fmt.Errorf("upload for %s failed after all retries: %w", destObject, lastErr)
}

func calculateFileHash(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()
	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}
	return hex.EncodeToString(hash.Sum(nil)), nil
}
