// Package pdftext pulls plain text out of PDF pages for study material.
package pdftext

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// ErrPageOutOfRange is returned for page numbers outside [1, PageCount].
var ErrPageOutOfRange = errors.New("page out of range")

// Document is a parsed PDF. It is safe for concurrent use.
type Document struct {
	mu        sync.Mutex
	ctx       *model.Context
	pageCount int
}

func newConfiguration() *model.Configuration {
	cfg := model.NewDefaultConfiguration()
	cfg.ValidationMode = model.ValidationRelaxed
	return cfg
}

// Open reads and validates a PDF from rs.
func Open(rs io.ReadSeeker) (*Document, error) {
	ctx, err := api.ReadContext(rs, newConfiguration())
	if err != nil {
		return nil, fmt.Errorf("failed to read PDF: %w", err)
	}
	if err := api.ValidateContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to validate PDF: %w", err)
	}
	return &Document{ctx: ctx, pageCount: ctx.PageCount}, nil
}

// OpenFile is Open for a local path.
func OpenFile(path string) (*Document, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("could not open %s: %w", path, err)
	}
	defer f.Close()
	return Open(f)
}

func (d *Document) PageCount() int { return d.pageCount }

// PageText returns the text shown on page n (1-based).
func (d *Document) PageText(ctx context.Context, n int) (string, error) {
	if n < 1 || n > d.pageCount {
		return "", fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, n, d.pageCount)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	d.mu.Lock()
	r, err := pdfcpu.ExtractPageContent(d.ctx, n)
	var content []byte
	if err == nil && r != nil {
		content, err = io.ReadAll(r)
	}
	d.mu.Unlock()

	if err != nil {
		return "", fmt.Errorf("failed to extract content of page %d: %w", n, err)
	}
	return DecodeContent(content), nil
}
