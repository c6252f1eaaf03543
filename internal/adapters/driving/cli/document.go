package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var documentCmd = &cobra.Command{
	Use:   "document",
	Short: "Manage registered documents",
	Long:  `List, inspect, read or reset registered documents.`,
}

var documentListCmd = &cobra.Command{
	Use:   "list",
	Short: "List documents",
	Args:  cobra.NoArgs,
	RunE:  runDocumentList,
}

var documentGetCmd = &cobra.Command{
	Use:   "get [doc-id]",
	Short: "Show document info",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentGet,
}

var documentTextCmd = &cobra.Command{
	Use:   "text [path]",
	Short: "Print extracted document text",
	Long: `Prints the text of a document for copying. PDF pages are read from the file;
other types come from the index. --start alone selects a single page.`,
	Args: cobra.ExactArgs(1),
	RunE: runDocumentText,
}

var documentResetCmd = &cobra.Command{
	Use:   "reset [doc-id]",
	Short: "Clear a document's results and mark it New",
	Args:  cobra.ExactArgs(1),
	RunE:  runDocumentReset,
}

var documentErrorsCmd = &cobra.Command{
	Use:   "errors",
	Short: "List documents that failed processing",
	Args:  cobra.NoArgs,
	RunE:  runDocumentErrors,
}

var (
	documentStatus string
	textStartPage  int
	textEndPage    int
	errorsReset    bool
)

func init() {
	documentListCmd.Flags().StringVarP(&documentStatus, "status", "s", "", "only documents with this status (New, Queued, Indexing, Indexed, Error)")
	documentTextCmd.Flags().IntVar(&textStartPage, "start", 0, "first page")
	documentTextCmd.Flags().IntVar(&textEndPage, "end", 0, "last page, inclusive")
	documentErrorsCmd.Flags().BoolVar(&errorsReset, "reset", false, "reset every failed document to New")

	documentCmd.AddCommand(documentListCmd)
	documentCmd.AddCommand(documentGetCmd)
	documentCmd.AddCommand(documentTextCmd)
	documentCmd.AddCommand(documentResetCmd)
	documentCmd.AddCommand(documentErrorsCmd)
	rootCmd.AddCommand(documentCmd)
}

func runDocumentList(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	docs, err := documentService.List(cmd.Context(), parseStatus(documentStatus))
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}

	if len(docs) == 0 {
		cmd.Println("No documents found.")
		return nil
	}

	cmd.Printf("%-6s %-9s %-5s %6s  %s\n", "ID", "STATUS", "TYPE", "PAGES", "PATH")
	for i := range docs {
		cmd.Printf("%-6d %-9s %-5s %6d  %s\n",
			docs[i].ID, docs[i].Status, docs[i].FileType, docs[i].PageCount, docs[i].RelativePath)
	}
	return nil
}

func runDocumentGet(cmd *cobra.Command, args []string) error {
	id, err := parseDocID(args[0])
	if err != nil {
		return err
	}
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := cmd.Context()
	doc, err := documentService.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	cmd.Printf("ID:       %d\n", doc.ID)
	cmd.Printf("Path:     %s\n", doc.RelativePath)
	cmd.Printf("Type:     %s\n", doc.FileType)
	cmd.Printf("Status:   %s\n", doc.Status)
	if doc.StatusMessage != "" {
		cmd.Printf("Message:  %s\n", doc.StatusMessage)
	}
	cmd.Printf("Size:     %d bytes\n", doc.FileSizeBytes)
	cmd.Printf("Hash:     %s\n", doc.FileHash)
	cmd.Printf("Pages:    %d\n", doc.PageCount)
	if doc.DurationSeconds != nil {
		cmd.Printf("Duration: %s\n", (time.Duration(*doc.DurationSeconds * float64(time.Second))).Round(time.Second))
	}
	cmd.Printf("Added:    %s\n", formatTime(doc.AddedAt))
	cmd.Printf("Modified: %s\n", formatTime(doc.FileModifiedAt))
	cmd.Printf("Processed: %s\n", formatTime(doc.ProcessedAt))

	if doc.Status != domain.StatusIndexed {
		return nil
	}

	entities, err := documentService.Entities(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list entities: %w", err)
	}
	rels, err := documentService.Relationships(ctx, id)
	if err != nil {
		return fmt.Errorf("failed to list relationships: %w", err)
	}

	cmd.Println()
	cmd.Printf("Entities (%d):\n", len(entities))
	for _, e := range entities {
		cmd.Printf("  %-8s %s\n", e.Label, e.Text)
	}
	cmd.Printf("Relationships (%d):\n", len(rels))
	for _, r := range rels {
		cmd.Printf("  p%d  %s --[%s]--> %s\n", r.PageNumber, r.Subject.Text, r.Phrase, r.Object.Text)
	}
	return nil
}

func runDocumentText(cmd *cobra.Command, args []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := cmd.Context()
	doc, err := documentService.GetByPath(ctx, args[0])
	if err != nil {
		return fmt.Errorf("failed to get document: %w", err)
	}

	var start, end *int
	if textStartPage > 0 {
		start = &textStartPage
	}
	if textEndPage > 0 {
		end = &textEndPage
	}

	text, err := documentService.ExtractTextForCopying(ctx, doc.RelativePath, doc.FileType, start, end)
	if err != nil {
		return fmt.Errorf("failed to extract text: %w", err)
	}
	cmd.Println(text)
	return nil
}

func runDocumentReset(cmd *cobra.Command, args []string) error {
	id, err := parseDocID(args[0])
	if err != nil {
		return err
	}
	if documentService == nil {
		return errors.New("document service not configured")
	}

	if err := documentService.Reset(cmd.Context(), id); err != nil {
		return fmt.Errorf("failed to reset document: %w", err)
	}
	cmd.Printf("Document %d reset to New.\n", id)
	return nil
}

func runDocumentErrors(cmd *cobra.Command, _ []string) error {
	if documentService == nil {
		return errors.New("document service not configured")
	}

	ctx := cmd.Context()
	if errorsReset {
		n, err := documentService.ResetErrors(ctx)
		if err != nil {
			return fmt.Errorf("failed to reset documents: %w", err)
		}
		cmd.Printf("%d documents reset to New.\n", n)
		return nil
	}

	docs, err := documentService.List(ctx, domain.StatusError)
	if err != nil {
		return fmt.Errorf("failed to list documents: %w", err)
	}
	if len(docs) == 0 {
		cmd.Println("No failed documents.")
		return nil
	}

	for i := range docs {
		cmd.Printf("[%d] %s\n", docs[i].ID, docs[i].RelativePath)
		cmd.Printf("     %s\n", docs[i].StatusMessage)
	}
	return nil
}

// parseStatus accepts a status in any letter case.
func parseStatus(s string) domain.Status {
	for _, st := range []domain.Status{
		domain.StatusNew, domain.StatusQueued, domain.StatusIndexing, domain.StatusIndexed, domain.StatusError,
	} {
		if strings.EqualFold(s, string(st)) {
			return st
		}
	}
	return domain.Status(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}
