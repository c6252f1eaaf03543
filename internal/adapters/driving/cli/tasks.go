package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var discoverQueue bool

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Register new and changed files",
	Long: `Scans the documents directory once. New files are registered and files whose
content changed are reset, both with status New.

With --queue the scan is handed to a running coordinator instead.`,
	Args: cobra.NoArgs,
	RunE: runDiscover,
}

var processCmd = &cobra.Command{
	Use:   "process [doc-id]",
	Short: "Index a single document now",
	Long: `Runs extraction, entity recognition and embedding for one document in the
foreground, replacing any earlier results for it.`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Rebuild the entity browse cache",
	Args:  cobra.NoArgs,
	RunE:  runCache,
}

func init() {
	discoverCmd.Flags().BoolVar(&discoverQueue, "queue", false, "enqueue on the coordinator instead of scanning here")
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runDiscover(cmd *cobra.Command, _ []string) error {
	if discoverQueue {
		if coordinator == nil {
			return errors.New("coordinator not configured")
		}
		if err := coordinator.Enqueue(cmd.Context(), domain.DiscoverTask{}); err != nil {
			return fmt.Errorf("enqueue discovery: %w", err)
		}
		cmd.Println("Discovery queued.")
		return nil
	}

	if discoverer == nil {
		return errors.New("discovery service not configured")
	}

	report, err := discoverer.Discover(cmd.Context())
	if err != nil {
		return fmt.Errorf("discovery failed: %w", err)
	}

	cmd.Printf("Scanned %d files: %d new, %d modified, %d unchanged",
		report.Scanned, report.Registered, report.Modified, report.Unchanged)
	if report.Failed > 0 {
		cmd.Printf(", %d failed", report.Failed)
	}
	cmd.Println()
	if n := len(report.DocIDs); n > 0 {
		cmd.Printf("%d documents ready for processing.\n", n)
	}
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	id, err := parseDocID(args[0])
	if err != nil {
		return err
	}
	if documentProcessor == nil {
		return errors.New("processor not configured")
	}

	result, err := documentProcessor.ProcessDocument(cmd.Context(), id)
	if err != nil {
		return fmt.Errorf("processing document %d: %w", id, err)
	}

	cmd.Printf("Indexed document %d in %s\n", result.DocID, result.Duration.Round(time.Millisecond))
	cmd.Printf("  Pages:         %d\n", result.Pages)
	if result.Cues > 0 {
		cmd.Printf("  Cues:          %d\n", result.Cues)
	}
	cmd.Printf("  Entities:      %d\n", result.Entities)
	cmd.Printf("  Appearances:   %d\n", result.Appearances)
	cmd.Printf("  Relationships: %d\n", result.Relationships)
	cmd.Printf("  Chunks:        %d\n", result.Chunks)
	return nil
}

func runCache(cmd *cobra.Command, _ []string) error {
	if cacheBuilder == nil {
		return errors.New("cache builder not configured")
	}

	rows, err := cacheBuilder.Rebuild(cmd.Context())
	if err != nil {
		return fmt.Errorf("rebuilding cache: %w", err)
	}
	cmd.Printf("Browse cache rebuilt: %d entities.\n", rows)
	return nil
}

func parseDocID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid document id %q: %w", arg, domain.ErrInvalidInput)
	}
	return id, nil
}
