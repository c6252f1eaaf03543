package services

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// ConsolidateBatchSize is the number of rows written to staging per insert
// batch when merging NLP results.
const ConsolidateBatchSize = 5000

// PipelineDeps are the collaborators of a Pipeline. Settings, Embedder and
// History are optional.
type PipelineDeps struct {
	Documents  driven.DocumentStore
	Batch      driven.BatchStore
	Staging    driven.StagingStore
	Extractors driven.ExtractorRegistry
	Settings   driven.SettingsStore
	Loader     driven.NLPLoader
	Embedder   driven.EmbeddingService
	History    driven.SchedulerStore
}

// Pipeline is the bulk indexing path. It processes every New document
// through staged phases: extract, NLP, finalize and embed.
type Pipeline struct {
	deps         PipelineDeps
	documentsDir string
	workDir      string
	modelDir     string
}

var _ driving.BatchPipeline = (*Pipeline)(nil)

// NewPipeline creates a batch pipeline. Per-run scratch files live under
// workDir/runs.
func NewPipeline(deps PipelineDeps, documentsDir, workDir, modelDir string) *Pipeline {
	return &Pipeline{
		deps:         deps,
		documentsDir: documentsDir,
		workDir:      workDir,
		modelDir:     modelDir,
	}
}

// nlpRecord is one line of a partition's JSON Lines output.
type nlpRecord struct {
	Entity       *domain.StagedEntity       `json:"entity,omitempty"`
	Relationship *domain.StagedRelationship `json:"relationship,omitempty"`
	Chunk        *domain.StagedChunk        `json:"chunk,omitempty"`
}

// Run executes all phases in order. A phase with no input is skipped. A
// failed run leaves production untouched up to the failing phase and is
// retried from the start.
func (p *Pipeline) Run(ctx context.Context, opts domain.PipelineOptions) (*domain.PipelineReport, error) {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.EmbedBatchSize < 1 {
		opts.EmbedBatchSize = DefaultEmbedBatchSize
	}

	report := &domain.PipelineReport{RunID: uuid.NewString(), StartedAt: time.Now()}
	logger.Info("pipeline: run %s with %d workers", report.RunID, opts.Workers)

	indexed, err := p.run(ctx, opts, report)
	report.EndedAt = time.Now()
	recordRun(ctx, p.deps.History, domain.TaskIDPipeline, report.StartedAt, indexed, err)
	if err != nil {
		return report, err
	}

	logger.Info("pipeline: run %s indexed %d documents in %s",
		report.RunID, indexed, report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond))
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, opts domain.PipelineOptions, report *domain.PipelineReport) (int, error) {
	runDir := filepath.Join(p.workDir, "runs", report.RunID)
	if err := os.MkdirAll(runDir, 0700); err != nil {
		return 0, fmt.Errorf("creating run directory: %w", err)
	}
	defer os.RemoveAll(runDir)

	if err := p.deps.Staging.Reset(ctx); err != nil {
		return 0, fmt.Errorf("preparing staging: %w", err)
	}
	defer func() {
		if err := p.deps.Staging.Drop(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("pipeline: dropping staging tables: %v", err)
		}
	}()

	// Phase 1: Extract
	docs, err := p.deps.Documents.ListDocuments(ctx, domain.StatusNew)
	if err != nil {
		return 0, fmt.Errorf("listing new documents: %w", err)
	}
	err = runPhase(report, domain.PhaseExtract, len(docs), func() (int, int, error) {
		return p.extract(ctx, docs, opts)
	})
	if err != nil {
		p.requeue(ctx)
		return 0, err
	}

	// Phase 2: NLP
	pages, err := p.deps.Staging.Pages(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading staged pages: %w", err)
	}
	err = runPhase(report, domain.PhaseNLP, len(pages), func() (int, int, error) {
		return p.analyse(ctx, pages, runDir, opts)
	})
	if err != nil {
		p.requeue(ctx)
		return 0, err
	}

	// Phase 3: Finalize
	staged, err := p.deps.Staging.DocIDs(ctx)
	if err != nil {
		return 0, fmt.Errorf("reading staged documents: %w", err)
	}
	indexed := 0
	err = runPhase(report, domain.PhaseFinalize, len(staged), func() (int, int, error) {
		stats, err := p.deps.Batch.FinalizeBatch(ctx, p.deps.Staging.Path(), opts.FullRebuild)
		if err != nil {
			return 0, 0, err
		}
		logger.Debug("pipeline: finalized %d documents, %d entities, %d appearances, %d relationships, %d chunks, pruned %d",
			stats.Documents, stats.Entities, stats.Appearances, stats.Relationships, stats.Chunks, stats.OrphansPruned)
		indexed = stats.Documents
		return stats.Documents, 0, nil
	})
	if err != nil {
		p.requeue(ctx)
		return 0, err
	}

	// Phase 4: Embed
	var chunks []domain.StagedChunk
	if p.deps.Embedder != nil && indexed > 0 {
		if chunks, err = p.deps.Staging.Chunks(ctx); err != nil {
			return indexed, fmt.Errorf("reading staged chunks: %w", err)
		}
	}
	err = runPhase(report, domain.PhaseEmbed, len(chunks), func() (int, int, error) {
		return p.embed(ctx, chunks, opts)
	})
	return indexed, err
}

// requeue returns staged documents to New after a failed run so the next
// run picks them up again.
func (p *Pipeline) requeue(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)
	ids, err := p.deps.Staging.DocIDs(ctx)
	if err != nil {
		logger.Warn("pipeline: reading staged documents for requeue: %v", err)
		return
	}
	for _, id := range ids {
		if err := p.deps.Documents.SetStatus(ctx, id, domain.StatusNew, domain.MsgReadyForProcessing); err != nil {
			logger.Warn("pipeline: requeueing document %d: %v", id, err)
		}
	}
}

// runPhase times fn and appends its report. Zero input skips the phase.
func runPhase(report *domain.PipelineReport, name string, input int, fn func() (output, errs int, err error)) error {
	phase := domain.PhaseReport{Name: name, Input: input}
	if input == 0 {
		phase.Skipped = true
		report.Phases = append(report.Phases, phase)
		logger.Info("pipeline: %s: nothing to do, skipped", name)
		return nil
	}

	started := time.Now()
	output, errs, err := fn()
	phase.Output = output
	phase.Errors = errs
	phase.Duration = time.Since(started)
	report.Phases = append(report.Phases, phase)

	if err != nil {
		logger.Error("pipeline: %s failed: %v", name, err)
		return fmt.Errorf("%s phase: %w", name, err)
	}
	logger.Info("pipeline: %s: %d in, %d out, %d errors in %s",
		name, input, output, errs, phase.Duration.Round(time.Millisecond))
	return nil
}

// extract stages the pages of each document. Extraction failures are
// recorded on the document; store failures abort the phase.
func (p *Pipeline) extract(ctx context.Context, docs []domain.Document, opts domain.PipelineOptions) (int, int, error) {
	extractOpts := domain.ExtractOptions{HTMLMode: domain.HTMLModeGeneric}
	if p.deps.Settings != nil {
		if s, err := p.deps.Settings.ProcessingSettings(ctx); err == nil {
			extractOpts.HTMLMode = s.HTMLParsingMode
		}
	}

	var staged, failed atomic.Int32
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for _, doc := range docs {
		g.Go(func() error {
			if err := p.deps.Documents.SetStatus(gctx, doc.ID, domain.StatusIndexing, domain.MsgProcessingStarted); err != nil {
				return err
			}

			path := filepath.Join(p.documentsDir, filepath.FromSlash(doc.RelativePath))
			ext, err := p.deps.Extractors.Extract(gctx, path, doc.FileType, extractOpts)
			if err != nil {
				failed.Add(1)
				logger.Warn("pipeline: extracting %s: %v", doc.RelativePath, err)
				return p.deps.Documents.SetStatus(gctx, doc.ID, domain.StatusError, err.Error())
			}

			if err := p.deps.Batch.RecordExtraction(gctx, doc.ID, ext); err != nil {
				return err
			}

			sorted := ext.SortedPages()
			pages := make([]domain.StagedPage, 0, len(sorted))
			for _, page := range sorted {
				pages = append(pages, domain.StagedPage{DocID: doc.ID, PageNumber: page.PageNumber, Text: page.Text})
			}
			if err := p.deps.Staging.StageDocument(gctx, doc.ID, pages); err != nil {
				return err
			}

			staged.Add(1)
			return nil
		})
	}

	err := g.Wait()
	return int(staged.Load()), int(failed.Load()), err
}

// analyse splits pages evenly across an ants pool. Each partition loads its
// own NLP capability and writes its results to nlp-<n>.jsonl in runDir; the
// files are then merged into staging.
func (p *Pipeline) analyse(ctx context.Context, pages []domain.StagedPage, runDir string, opts domain.PipelineOptions) (int, int, error) {
	parts := partition(pages, opts.Workers)

	pool, err := ants.NewPool(len(parts))
	if err != nil {
		return 0, 0, fmt.Errorf("creating NLP pool: %w", err)
	}
	defer pool.Release()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
		pageErrs atomic.Int32
		files    = make([]string, len(parts))
	)
	fail := func(err error) {
		mu.Lock()
		defer mu.Unlock()
		if firstErr == nil {
			firstErr = err
		}
	}

	loadOpts := driven.NLPLoadOptions{UseGPU: opts.UseGPU, ModelDir: p.modelDir}
	for i, part := range parts {
		files[i] = filepath.Join(runDir, fmt.Sprintf("nlp-%d.jsonl", i))
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			errs, err := p.analysePartition(ctx, part, files[i], loadOpts)
			pageErrs.Add(int32(errs))
			if err != nil {
				fail(fmt.Errorf("partition %d: %w", i, err))
			}
		}); err != nil {
			wg.Done()
			fail(fmt.Errorf("submitting partition %d: %w", i, err))
		}
	}
	wg.Wait()

	if firstErr != nil {
		return 0, int(pageErrs.Load()), firstErr
	}

	n, err := p.consolidate(ctx, files)
	return n, int(pageErrs.Load()), err
}

// analysePartition runs NLP over one partition and writes JSON Lines.
// Returns the number of pages that failed analysis.
func (p *Pipeline) analysePartition(
	ctx context.Context,
	pages []domain.StagedPage,
	path string,
	loadOpts driven.NLPLoadOptions,
) (pageErrs int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("NLP worker panic: %v", r)
		}
	}()

	nlp, err := loadCapability(ctx, p.deps.Loader, loadOpts)
	if errors.Is(err, domain.ErrGPUUnavailable) && nlp != nil {
		logger.Warn("pipeline: %v, using CPU", err)
		err = nil
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNLPUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrNLPUnavailable, err)
		}
		return 0, err
	}
	defer nlp.Close()

	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("creating %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)

	for _, page := range pages {
		if err := ctx.Err(); err != nil {
			return pageErrs, err
		}

		a := newAnalyser(nlp)
		if err := a.page(ctx, page.Text, page.PageNumber); err != nil {
			pageErrs++
			logger.Warn("pipeline: NLP on document %d page %d: %v", page.DocID, page.PageNumber, err)
			continue
		}

		for _, r := range stagedRecords(page.DocID, a) {
			if err := enc.Encode(r); err != nil {
				return pageErrs, fmt.Errorf("writing NLP results: %w", err)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return pageErrs, fmt.Errorf("flushing NLP results: %w", err)
	}
	return pageErrs, nil
}

// stagedRecords converts one page's analysis into staging records.
func stagedRecords(docID int64, a *analyser) []nlpRecord {
	records := make([]nlpRecord, 0, len(a.appearances)+len(a.relationships)+len(a.chunks))
	for _, app := range a.appearances {
		records = append(records, nlpRecord{Entity: &domain.StagedEntity{
			DocID: docID, PageNumber: app.PageNumber, Text: app.Entity.Text, Label: app.Entity.Label,
		}})
	}
	for _, r := range a.relationships {
		records = append(records, nlpRecord{Relationship: &domain.StagedRelationship{
			DocID: docID, PageNumber: r.PageNumber,
			SubjectText: r.Subject.Text, SubjectLabel: r.Subject.Label,
			ObjectText: r.Object.Text, ObjectLabel: r.Object.Label,
			Phrase: r.Phrase,
		}})
	}
	for _, c := range a.chunks {
		records = append(records, nlpRecord{Chunk: &domain.StagedChunk{
			ID: c.ID, DocID: docID, PageNumber: c.PageNumber,
			EntityText: c.Entity.Text, EntityLabel: c.Entity.Label, Text: c.Text,
		}})
	}
	return records
}

// consolidate merges partition files into staging tables in batches.
func (p *Pipeline) consolidate(ctx context.Context, files []string) (int, error) {
	var (
		entities []domain.StagedEntity
		rels     []domain.StagedRelationship
		chunks   []domain.StagedChunk
		total    int
	)

	flush := func(force bool) error {
		if force || len(entities) >= ConsolidateBatchSize {
			if err := p.deps.Staging.InsertEntities(ctx, entities); err != nil {
				return err
			}
			total += len(entities)
			entities = entities[:0]
		}
		if force || len(rels) >= ConsolidateBatchSize {
			if err := p.deps.Staging.InsertRelationships(ctx, rels); err != nil {
				return err
			}
			total += len(rels)
			rels = rels[:0]
		}
		if force || len(chunks) >= ConsolidateBatchSize {
			if err := p.deps.Staging.InsertChunks(ctx, chunks); err != nil {
				return err
			}
			total += len(chunks)
			chunks = chunks[:0]
		}
		return nil
	}

	for _, path := range files {
		if err := readRecords(path, func(r nlpRecord) error {
			switch {
			case r.Entity != nil:
				entities = append(entities, *r.Entity)
			case r.Relationship != nil:
				rels = append(rels, *r.Relationship)
			case r.Chunk != nil:
				chunks = append(chunks, *r.Chunk)
			}
			return flush(false)
		}); err != nil {
			return total, err
		}
	}

	if err := flush(true); err != nil {
		return total, err
	}
	return total, nil
}

// readRecords decodes a JSON Lines file record by record.
func readRecords(path string, fn func(nlpRecord) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	dec := json.NewDecoder(bufio.NewReader(f))
	for dec.More() {
		var r nlpRecord
		if err := dec.Decode(&r); err != nil {
			return fmt.Errorf("decoding %s: %w", filepath.Base(path), err)
		}
		if err := fn(r); err != nil {
			return err
		}
	}
	return nil
}

// embed computes vectors for staged chunks and commits them to production.
// A failed batch is counted and its chunks keep no vector.
func (p *Pipeline) embed(ctx context.Context, chunks []domain.StagedChunk, opts domain.PipelineOptions) (int, int, error) {
	var (
		mu      sync.Mutex
		vectors = make(map[string][]float32, len(chunks))
		failed  atomic.Int32
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)

	for start := 0; start < len(chunks); start += opts.EmbedBatchSize {
		batch := chunks[start:min(start+opts.EmbedBatchSize, len(chunks))]
		g.Go(func() error {
			texts := make([]string, len(batch))
			for i, c := range batch {
				texts[i] = c.Text
			}

			vecs, err := p.deps.Embedder.EmbedBatch(gctx, texts)
			if err == nil && len(vecs) != len(batch) {
				err = fmt.Errorf("got %d vectors for %d texts", len(vecs), len(batch))
			}
			if err != nil {
				failed.Add(1)
				logger.Warn("pipeline: embedding batch of %d chunks: %v", len(batch), err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			for i, c := range batch {
				vectors[c.ID] = vecs[i]
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return 0, int(failed.Load()), err
	}

	if err := p.deps.Staging.SetEmbeddings(ctx, vectors); err != nil {
		return 0, int(failed.Load()), err
	}
	n, err := p.deps.Batch.CommitEmbeddings(ctx, p.deps.Staging.Path())
	return n, int(failed.Load()), err
}

// partition splits pages into at most n contiguous slices of
// ceil(len/n) pages.
func partition(pages []domain.StagedPage, n int) [][]domain.StagedPage {
	if len(pages) == 0 {
		return nil
	}
	size := (len(pages) + n - 1) / max(n, 1)

	var parts [][]domain.StagedPage
	for start := 0; start < len(pages); start += size {
		parts = append(parts, pages[start:min(start+size, len(pages))])
	}
	return parts
}
