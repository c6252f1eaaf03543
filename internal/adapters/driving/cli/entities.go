package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var entitiesLimit int

var entitiesCmd = &cobra.Command{
	Use:   "entities [label]",
	Short: "Browse the most frequent entities",
	Long: fmt.Sprintf(`Lists entities by the number of documents they appear in, read from the
browse cache. Run 'redleaf cache' after indexing to refresh it.

Labels: %s`, strings.Join(domain.BrowseLabels, ", ")),
	Args: cobra.MaximumNArgs(1),
	RunE: runEntities,
}

func init() {
	entitiesCmd.Flags().IntVarP(&entitiesLimit, "limit", "n", 25, "maximum number of entities")
	rootCmd.AddCommand(entitiesCmd)
}

func runEntities(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	label := ""
	if len(args) == 1 {
		label = strings.ToUpper(args[0])
	}

	entries, err := documentService.Browse(cmd.Context(), label, entitiesLimit)
	if err != nil {
		return fmt.Errorf("failed to browse entities: %w", err)
	}
	if len(entries) == 0 {
		cmd.Println("No entities found.")
		return nil
	}

	cmd.Printf("%-8s %6s %8s  %s\n", "LABEL", "DOCS", "MENTIONS", "ENTITY")
	for _, e := range entries {
		cmd.Printf("%-8s %6d %8d  %s\n", e.Label, e.DocumentCount, e.AppearanceCount, e.Text)
	}
	return nil
}
