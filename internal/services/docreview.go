package services

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"github.com/Lllllllleong/imigraflow/internal/models"
)

// reviewableTypes are the raster formats the vision models accept.
var reviewableTypes = []string{"image/png", "image/jpeg", "image/webp", "image/gif", "image/heic"}

// defaultDocType is used when the caller does not pick a document type.
const defaultDocType = "Outro"

// DocReviewFunction runs the vision check on a photographed document.
type DocReviewFunction struct {
	gen    Generator
	logger *zap.Logger
}

func NewDocReview(gen Generator, logger *zap.Logger) *DocReviewFunction {
	return &DocReviewFunction{gen: gen, logger: logger}
}

// Analyze returns the model's markdown analysis. data is base64, optionally a
// data URL; when mimeType is empty it is taken from the data URL header.
func (f *DocReviewFunction) Analyze(ctx context.Context, docType, data, mimeType string) (string, error) {
	if mimeType == "" {
		mimeType = dataURLMIME(data)
	}
	mimeType = strings.ToLower(mimeType)
	if !slices.Contains(reviewableTypes, mimeType) {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMediaType, mimeType)
	}
	if !slices.Contains(models.DocumentTypes, docType) {
		f.logger.Debug("Unknown document type, reviewing as generic.", zap.String("docType", docType))
		docType = defaultDocType
	}
	f.logger.Info("Reviewing document image.", zap.String("docType", docType), zap.String("mimeType", mimeType))
	return f.gen.AnalyzeDocumentImage(ctx, data, mimeType, docType), nil
}

// dataURLMIME extracts the media type of "data:<mime>;base64,...".
func dataURLMIME(s string) string {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), "data:")
	if !ok {
		return ""
	}
	mime, _, _ := strings.Cut(rest, ";")
	mime, _, _ = strings.Cut(mime, ",")
	return mime
}
