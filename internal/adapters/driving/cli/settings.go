package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/redleaf/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage processing settings",
	Long: `View and change the runtime processing settings stored in the database.

A change is picked up by a running coordinator: the worker pool is recreated
once the tasks in flight have finished.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Change a setting",
	Long: `Change a processing setting.

Available keys:
  max_workers        number of documents processed in parallel (>= 1)
  use_gpu            true or false
  html_parsing_mode  generic or pipermail`,
	Args: cobra.ExactArgs(2),
	RunE: runSettingsSet,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	rootCmd.AddCommand(settingsCmd)
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	settings, err := settingsService.Get(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to get settings: %w", err)
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	// Processing settings
	cmd.Println("[Processing]")
	cmd.Printf("  Max workers: %d\n", settings.MaxWorkers)
	cmd.Printf("  Use GPU: %t\n", settings.UseGPU)
	cmd.Printf("  HTML parsing: %s\n", settings.HTMLParsingMode)
	cmd.Println()

	// Embedding settings
	emb := appConfig.Embedding
	cmd.Println("[Embedding]")
	cmd.Printf("  Provider: %s\n", emb.Provider.Description())
	if emb.Provider != domain.AIProviderNone {
		cmd.Printf("  Model: %s\n", emb.Model)
	}
	if emb.Provider.IsLocal() && emb.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", emb.BaseURL)
	}
	if emb.Provider.RequiresAPIKey() {
		if emb.APIKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(emb.APIKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	if emb.RequestsPerSecond > 0 {
		cmd.Printf("  Rate limit: %.2f requests/s\n", emb.RequestsPerSecond)
	}
	status := "configured"
	if !emb.IsConfigured() {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
	cmd.Println()

	// Paths
	cmd.Println("[Paths]")
	cmd.Printf("  Documents: %s\n", appConfig.DocumentsDir)
	cmd.Printf("  Data: %s\n", appConfig.DataDir)

	return nil
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key, value := strings.ToLower(args[0]), args[1]
	if err := settingsService.Set(cmd.Context(), key, value); err != nil {
		return fmt.Errorf("failed to set %s: %w", key, err)
	}
	cmd.Printf("Set %s = %s\n", key, value)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword() string {
	// Try to read password without echo
	if term.IsTerminal(int(os.Stdin.Fd())) {
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		if err == nil {
			return string(password)
		}
	}
	// Fallback to regular input
	reader := bufio.NewReader(os.Stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
