// Package pdf provides an Extractor for PDF documents.
package pdf

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// Ensure Extractor implements the interfaces.
var (
	_ driven.Extractor  = (*Extractor)(nil)
	_ driven.PageReader = (*Extractor)(nil)
)

// DefaultConcurrency is the number of pages decoded in parallel.
const DefaultConcurrency = 4

// Extractor handles PDF documents.
type Extractor struct {
	concurrency int
}

// New creates a new PDF extractor.
func New() *Extractor {
	return &Extractor{concurrency: DefaultConcurrency}
}

// SupportedTypes returns the file types this extractor handles.
func (e *Extractor) SupportedTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypePDF}
}

// Extract reads the text of every page. Pages with no text are omitted
// but still counted in PageCount.
func (e *Extractor) Extract(ctx context.Context, path string, _ domain.ExtractOptions) (*domain.Extraction, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}

	numPages := r.NumPage()
	pages, err := e.readRange(ctx, r, 1, numPages)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, path, err)
	}

	ext := &domain.Extraction{
		Pages:     make(map[int]string, len(pages)),
		PageCount: numPages,
	}
	for _, p := range pages {
		ext.Pages[p.PageNumber] = p.Text
	}
	return ext, nil
}

// ReadPages reads the inclusive page range straight from the file.
// The range is clamped to the document; an empty range yields no pages.
func (e *Extractor) ReadPages(ctx context.Context, path string, start, end int) ([]domain.Page, error) {
	r, err := open(path)
	if err != nil {
		return nil, err
	}

	start = max(start, 1)
	end = min(end, r.NumPage())
	if start > end {
		return nil, nil
	}

	pages, err := e.readRange(ctx, r, start, end)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", domain.ErrExtraction, path, err)
	}
	return pages, nil
}

// readRange decodes pages [start, end] concurrently and returns the
// non-empty ones in page order.
func (e *Extractor) readRange(ctx context.Context, r *pdf.Reader, start, end int) ([]domain.Page, error) {
	texts := make([]string, end-start+1)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.concurrency, 1))

	for i := start; i <= end; i++ {
		pageNum := i
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}

			page := r.Page(pageNum)
			if page.V.IsNull() {
				return nil
			}

			text, err := page.GetPlainText(nil)
			if err != nil {
				return fmt.Errorf("reading text of page %d: %w", pageNum, err)
			}
			texts[pageNum-start] = strings.TrimSpace(text)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	pages := make([]domain.Page, 0, len(texts))
	for i, t := range texts {
		if t == "" {
			continue
		}
		pages = append(pages, domain.Page{PageNumber: start + i, Text: t})
	}
	return pages, nil
}

func open(path string) (*pdf.Reader, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	reader := bytes.NewReader(content)
	r, err := pdf.NewReader(reader, reader.Size())
	if err != nil {
		return nil, fmt.Errorf("%w: opening %s: %v", domain.ErrExtraction, path, err)
	}
	return r, nil
}
