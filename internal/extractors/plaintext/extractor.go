package plaintext

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
)

// WordsPerPage is the pagination unit for plain text.
const WordsPerPage = 300

// Ensure Extractor implements the interface.
var _ driven.Extractor = (*Extractor)(nil)

// Extractor handles plain text documents.
type Extractor struct{}

// New creates a new plain text extractor.
func New() *Extractor {
	return &Extractor{}
}

// SupportedTypes returns the file types this extractor handles.
func (e *Extractor) SupportedTypes() []domain.FileType {
	return []domain.FileType{domain.FileTypeTXT}
}

// Extract reads a text file and paginates it into pages of WordsPerPage
// words joined by single spaces. Invalid UTF-8 is dropped.
func (e *Extractor) Extract(_ context.Context, path string, _ domain.ExtractOptions) (*domain.Extraction, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrExtraction, err)
	}

	pages := Paginate(strings.ToValidUTF8(string(data), ""), WordsPerPage)
	return &domain.Extraction{Pages: pages, PageCount: len(pages)}, nil
}

// Paginate splits text into pages of at most size words.
// Empty text yields a single empty page.
func Paginate(text string, size int) map[int]string {
	words := strings.Fields(text)
	if len(words) == 0 {
		return map[int]string{1: ""}
	}

	pages := make(map[int]string, (len(words)+size-1)/size)
	for i, page := 0, 1; i < len(words); i, page = i+size, page+1 {
		end := min(i+size, len(words))
		pages[page] = strings.Join(words[i:end], " ")
	}
	return pages
}
