package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driven"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

var _ driving.DocumentProcessor = (*OneShotProcessor)(nil)

// OneShotProcessor loads an NLP capability for a single call, runs the
// single-document path and closes the capability again.
type OneShotProcessor struct {
	processor DocumentProcessor
	loader    driven.NLPLoader
	settings  driven.SettingsStore
	modelDir  string
}

// NewOneShotProcessor creates a OneShotProcessor.
func NewOneShotProcessor(
	processor DocumentProcessor,
	loader driven.NLPLoader,
	settings driven.SettingsStore,
	modelDir string,
) *OneShotProcessor {
	return &OneShotProcessor{
		processor: processor,
		loader:    loader,
		settings:  settings,
		modelDir:  modelDir,
	}
}

// ProcessDocument indexes docID with a freshly loaded capability.
func (o *OneShotProcessor) ProcessDocument(ctx context.Context, docID int64) (*domain.ProcessResult, error) {
	if o.loader == nil {
		return nil, fmt.Errorf("no NLP loader: %w", domain.ErrNLPUnavailable)
	}

	settings, err := o.settings.ProcessingSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading settings: %w", err)
	}

	nlp, err := loadCapability(ctx, o.loader, driven.NLPLoadOptions{UseGPU: settings.UseGPU, ModelDir: o.modelDir})
	if errors.Is(err, domain.ErrGPUUnavailable) && nlp != nil {
		logger.Warn("process: %v, using CPU", err)
		err = nil
	}
	if err != nil {
		if !errors.Is(err, domain.ErrNLPUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrNLPUnavailable, err)
		}
		return nil, err
	}
	defer func() {
		if cerr := nlp.Close(); cerr != nil {
			logger.Warn("process: closing NLP capability: %v", cerr)
		}
	}()

	return o.processor.Process(ctx, &WorkerState{NLP: nlp, Settings: settings}, docID)
}
