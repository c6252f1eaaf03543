package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var (
	searchLimit int
	searchJSON  bool
)

// snippetLength bounds the page text shown per search result.
const snippetLength = 160

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Search indexed pages",
	Long: `Runs a full-text (FTS5) query over the text of indexed pages.
Results are ranked by relevance, one line per matching page.`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "maximum number of results")
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "output results as JSON")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	query := args[0]

	if documentService == nil {
		return errors.New("document service not configured")
	}

	pages, err := documentService.Search(cmd.Context(), query, searchLimit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if searchJSON {
		return outputSearchJSON(cmd, pages)
	}

	return outputSearchTable(cmd, pages)
}

func outputSearchJSON(cmd *cobra.Command, pages []domain.Page) error {
	data, err := json.MarshalIndent(pages, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, pages []domain.Page) error {
	if len(pages) == 0 {
		cmd.Println("No results found.")
		return nil
	}

	cmd.Println("Results:")
	cmd.Println()
	for i, p := range pages {
		// Format: [N] doc D, page P
		cmd.Printf("  [%d] document %d, page %d\n", i+1, p.DocID, p.PageNumber)
		if s := snippet(p.Text); s != "" {
			cmd.Printf("      %s\n", s)
		}
		cmd.Println()
	}
	return nil
}

// snippet flattens whitespace and truncates text for one-line display.
func snippet(text string) string {
	s := strings.Join(strings.Fields(text), " ")
	if r := []rune(s); len(r) > snippetLength {
		return string(r[:snippetLength]) + "..."
	}
	return s
}
