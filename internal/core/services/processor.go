package services

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// MaxAnalyzeLength is the largest text, in bytes, handed to the NLP
// capability in one call. Longer pages are indexed without entities.
const MaxAnalyzeLength = 2_000_000

// DefaultEmbedBatchSize is the number of chunk texts sent per embedding call.
const DefaultEmbedBatchSize = 16

// WorkerState is the per-slot state a pool worker hands to each task.
type WorkerState struct {
	// Slot identifies the worker slot.
	Slot int

	// NLP is the capability loaded once for this slot.
	NLP driven.NLPCapability

	// Settings is the snapshot the pool was created from.
	Settings domain.ProcessingSettings
}

// Processor runs the single-document path: extract, analyse, embed and
// replace the document's derived rows in one transaction.
type Processor struct {
	docs         driven.DocumentStore
	index        driven.IndexStore
	extractors   driven.ExtractorRegistry
	embedder     driven.EmbeddingService
	documentsDir string
}

// NewProcessor creates a processor. embedder may be nil, in which case
// chunks are stored without vectors.
func NewProcessor(
	docs driven.DocumentStore,
	index driven.IndexStore,
	extractors driven.ExtractorRegistry,
	embedder driven.EmbeddingService,
	documentsDir string,
) *Processor {
	return &Processor{
		docs:         docs,
		index:        index,
		extractors:   extractors,
		embedder:     embedder,
		documentsDir: documentsDir,
	}
}

// Process indexes one document. Any failure after the document is marked
// Indexing is recorded on it as Error and also returned.
func (p *Processor) Process(ctx context.Context, state *WorkerState, docID int64) (*domain.ProcessResult, error) {
	started := time.Now()

	doc, err := p.docs.GetDocument(ctx, docID)
	if err != nil {
		return nil, fmt.Errorf("loading document %d: %w", docID, err)
	}

	if err := p.docs.SetStatus(ctx, docID, domain.StatusIndexing, domain.MsgProcessingStarted); err != nil {
		return nil, fmt.Errorf("marking document %d indexing: %w", docID, err)
	}

	result, err := p.indexDocument(ctx, state, doc)
	if err != nil {
		logger.Warn("processor: document %d (%s) failed: %v", docID, doc.RelativePath, err)
		if serr := p.docs.SetStatus(context.WithoutCancel(ctx), docID, domain.StatusError, err.Error()); serr != nil {
			logger.Error("processor: recording error on document %d: %v", docID, serr)
		}
		return nil, err
	}

	result.Duration = time.Since(started)
	logger.Debug("processor: indexed %s: %d pages, %d entities, %d relationships in %s",
		doc.RelativePath, result.Pages, result.Entities, result.Relationships, result.Duration)
	return result, nil
}

// indexDocument does the work between the Indexing and Indexed transitions.
func (p *Processor) indexDocument(ctx context.Context, state *WorkerState, doc *domain.Document) (*domain.ProcessResult, error) {
	path := filepath.Join(p.documentsDir, filepath.FromSlash(doc.RelativePath))

	opts := domain.ExtractOptions{HTMLMode: domain.HTMLModeGeneric}
	if state != nil && state.Settings.HTMLParsingMode != "" {
		opts.HTMLMode = state.Settings.HTMLParsingMode
	}

	ext, err := p.extractors.Extract(ctx, path, doc.FileType, opts)
	if err != nil {
		return nil, err
	}

	data := &domain.DerivedData{
		PageCount: ext.PageCount,
		Duration:  ext.Duration,
		Cues:      ext.Cues,
		Email:     ext.Email,
	}
	for _, page := range ext.SortedPages() {
		page.DocID = doc.ID
		data.Pages = append(data.Pages, page)
	}

	if state == nil || state.NLP == nil {
		return nil, domain.ErrNLPUnavailable
	}

	a := newAnalyser(state.NLP)
	if doc.FileType == domain.FileTypeSRT && len(ext.Cues) > 0 {
		err = a.cues(ctx, ext.Cues)
	} else {
		for _, page := range data.Pages {
			if err = a.page(ctx, page.Text, page.PageNumber); err != nil {
				break
			}
		}
	}
	if err != nil {
		return nil, err
	}

	data.Appearances = a.appearances
	data.Relationships = a.relationships
	data.Chunks = a.chunks

	p.embed(ctx, data.Chunks)

	if err := p.index.ReplaceDerived(ctx, doc.ID, data, domain.MsgIndexed); err != nil {
		return nil, err
	}

	return &domain.ProcessResult{
		DocID:         doc.ID,
		Pages:         len(data.Pages),
		Entities:      len(data.EntityKeys()),
		Appearances:   len(data.Appearances),
		Relationships: len(data.Relationships),
		Cues:          len(data.Cues),
		Chunks:        len(data.Chunks),
	}, nil
}

// embed fills chunk vectors in place. A failing service leaves the
// remaining chunks without vectors.
func (p *Processor) embed(ctx context.Context, chunks []domain.EmbeddingChunk) {
	if p.embedder == nil || len(chunks) == 0 {
		return
	}

	for i := 0; i < len(chunks); i += DefaultEmbedBatchSize {
		batch := chunks[i:min(i+DefaultEmbedBatchSize, len(chunks))]
		texts := make([]string, len(batch))
		for j, c := range batch {
			texts[j] = c.Text
		}

		vectors, err := p.embedder.EmbedBatch(ctx, texts)
		if err != nil || len(vectors) != len(batch) {
			logger.Warn("processor: embedding unavailable, storing chunks without vectors: %v", err)
			return
		}
		for j := range batch {
			batch[j].Embedding = vectors[j]
		}
	}
}

// analyser accumulates entities, relationships and chunks over the pages
// of one document.
type analyser struct {
	nlp driven.NLPCapability

	seen          map[domain.Appearance]struct{}
	appearances   []domain.Appearance
	relationships []domain.Relationship
	chunks        []domain.EmbeddingChunk
}

func newAnalyser(nlp driven.NLPCapability) *analyser {
	return &analyser{nlp: nlp, seen: make(map[domain.Appearance]struct{})}
}

func (a *analyser) analyse(ctx context.Context, text string) (*domain.Analysis, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	if len(text) > MaxAnalyzeLength {
		logger.Warn("processor: skipping NLP on %d-byte text", len(text))
		return nil, nil
	}

	analysis, err := a.nlp.Analyze(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("analysing text: %w", err)
	}
	return analysis, nil
}

// page records mentions, relationships and chunks of one page.
func (a *analyser) page(ctx context.Context, text string, pageNumber int) error {
	analysis, err := a.analyse(ctx, text)
	if err != nil || analysis == nil {
		return err
	}

	a.mentions(analysis, pageNumber)
	for _, m := range ExtractRelationships(text, analysis) {
		a.relationships = append(a.relationships, domain.Relationship{
			Subject: m.Subject, Object: m.Object, Phrase: m.Phrase, PageNumber: pageNumber,
		})
	}
	return nil
}

// cues records mentions per cue, keyed by cue sequence, then finds
// relationships over the whole transcript so they can span cues. Each
// relationship is attributed to the cue its subject starts in.
func (a *analyser) cues(ctx context.Context, cues []domain.Cue) error {
	for _, c := range cues {
		analysis, err := a.analyse(ctx, c.Dialogue)
		if err != nil {
			return err
		}
		if analysis != nil {
			a.mentions(analysis, c.Sequence)
		}
	}

	// Relationships only link entities that appear in some cue.
	known := make(map[domain.EntityKey]struct{}, len(a.seen))
	for app := range a.seen {
		known[app.Entity] = struct{}{}
	}

	transcript, locator := NewCueLocator(cues, " ")
	analysis, err := a.analyse(ctx, transcript)
	if err != nil || analysis == nil {
		return err
	}

	for _, m := range ExtractRelationships(transcript, analysis) {
		_, subj := known[m.Subject]
		_, obj := known[m.Object]
		if !subj || !obj {
			continue
		}
		a.relationships = append(a.relationships, domain.Relationship{
			Subject: m.Subject, Object: m.Object, Phrase: m.Phrase, PageNumber: locator.Sequence(m.Start),
		})
	}
	return nil
}

func (a *analyser) mentions(analysis *domain.Analysis, pageNumber int) {
	for _, m := range analysis.Mentions() {
		key := domain.EntityKey{Text: strings.TrimSpace(m.Text), Label: m.Label}
		if key.Text == "" {
			continue
		}

		app := domain.Appearance{Entity: key, PageNumber: pageNumber}
		if _, ok := a.seen[app]; !ok {
			a.seen[app] = struct{}{}
			a.appearances = append(a.appearances, app)
		}

		if m.Context != "" {
			a.chunks = append(a.chunks, domain.EmbeddingChunk{
				ID:         uuid.NewString(),
				PageNumber: pageNumber,
				Entity:     key,
				Text:       domain.ChunkText(key, m.Context),
			})
		}
	}
}
