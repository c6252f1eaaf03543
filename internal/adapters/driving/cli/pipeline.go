package cli

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var (
	pipelineWorkers     int
	pipelineBatchSize   int
	pipelineUseGPU      bool
	pipelineFullRebuild bool
)

var pipelineCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Bulk indexing commands",
}

var pipelineRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Index every New document in bulk",
	Long: `Runs the batch pipeline over all documents with status New:

  extract   read files into staging in parallel
  nlp       recognise entities, one NLP model per worker
  finalize  move staged rows into the index in one transaction
  embed     compute chunk embeddings (when a provider is configured)

Do not run this while 'redleaf serve' is processing the same documents.`,
	Args: cobra.NoArgs,
	RunE: runPipeline,
}

func init() {
	pipelineRunCmd.Flags().IntVarP(&pipelineWorkers, "workers", "w", 0, "parallelism of each phase (default from config)")
	pipelineRunCmd.Flags().IntVar(&pipelineBatchSize, "batch-size", 0, "chunks per embedding request (default from config)")
	pipelineRunCmd.Flags().BoolVar(&pipelineUseGPU, "use-gpu", false, "load NLP models on the GPU when available")
	pipelineRunCmd.Flags().BoolVar(&pipelineFullRebuild, "full-rebuild", false, "clear all indexed content before applying this run")
	pipelineCmd.AddCommand(pipelineRunCmd)
	rootCmd.AddCommand(pipelineCmd)
}

func runPipeline(cmd *cobra.Command, _ []string) error {
	if batchPipeline == nil {
		return errors.New("pipeline not configured")
	}

	opts := domain.PipelineOptions{
		Workers:        appConfig.Batch.Workers,
		EmbedBatchSize: appConfig.Batch.EmbedBatchSize,
		UseGPU:         pipelineUseGPU,
		FullRebuild:    pipelineFullRebuild,
	}
	if pipelineWorkers > 0 {
		opts.Workers = pipelineWorkers
	}
	if pipelineBatchSize > 0 {
		opts.EmbedBatchSize = pipelineBatchSize
	}

	stop := showElapsed(cmd, "Running pipeline")
	report, err := batchPipeline.Run(cmd.Context(), opts)
	stop()

	if report != nil {
		printPipelineReport(cmd, report)
	}
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}
	return nil
}

// showElapsed redraws "label... 12s" on a terminal until the returned
// function is called.
func showElapsed(cmd *cobra.Command, label string) func() {
	p := newProgress(cmd)
	if !p.tty {
		return func() {}
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	done := make(chan struct{})
	go func() {
		defer close(done)
		started := time.Now()
		ticker := time.NewTicker(statusInterval)
		defer ticker.Stop()
		for {
			p.Update(fmt.Sprintf("%s... %s", label, time.Since(started).Round(time.Second)))
			select {
			case <-ctx.Done():
				p.Done()
				return
			case <-ticker.C:
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

func printPipelineReport(cmd *cobra.Command, report *domain.PipelineReport) {
	cmd.Printf("Pipeline run %s\n", report.RunID)
	cmd.Printf("  %-9s %8s %8s %8s %10s\n", "PHASE", "INPUT", "OUTPUT", "ERRORS", "DURATION")
	for _, ph := range report.Phases {
		if ph.Skipped {
			cmd.Printf("  %-9s %8s\n", ph.Name, "skipped")
			continue
		}
		cmd.Printf("  %-9s %8d %8d %8d %10s\n",
			ph.Name, ph.Input, ph.Output, ph.Errors, ph.Duration.Round(time.Millisecond))
	}
	if !report.EndedAt.IsZero() {
		cmd.Printf("Total: %s\n", report.EndedAt.Sub(report.StartedAt).Round(time.Millisecond))
	}
}
