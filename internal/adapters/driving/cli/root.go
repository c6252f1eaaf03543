// Package cli provides the redleaf command-line interface.
package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/core/domain"
	"github.com/custodia-labs/redleaf/internal/core/ports/driving"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// version is set at build time via SetVersion.
var version = "dev"

var verbose bool

// Services injected by Configure.
var (
	coordinator       driving.Coordinator
	discoverer        driving.Discoverer
	cacheBuilder      driving.CacheBuilder
	documentProcessor driving.DocumentProcessor
	batchPipeline     driving.BatchPipeline
	documentService   driving.DocumentService
	settingsService   driving.SettingsService
	taskHistory       driving.TaskHistory
	configEditor      ConfigEditor
	configKeys        []string
	daemon            Daemon
	appConfig         = domain.DefaultAppConfig()
)

// ConfigEditor reads and writes the config file.
type ConfigEditor interface {
	Get(key string) (any, bool)
	Set(key string, value any) error
	Delete(key string) error
	Keys() []string
	Path() string
}

// Loop is a background loop that blocks in Start until its context is
// cancelled or Stop is called.
type Loop interface {
	Start(ctx context.Context) error
	Stop() error
}

// Runner is a background loop that blocks until its context is cancelled.
type Runner interface {
	Run(ctx context.Context) error
}

// Daemon holds the long-running parts started by serve.
type Daemon struct {
	// Coordinator runs the task loop. Required for serve.
	Coordinator Loop

	// Scheduler fires periodic triggers. Optional.
	Scheduler driving.Scheduler

	// Watcher reacts to file system changes when --watch is given. Optional.
	Watcher Runner
}

// Services are the ports the commands drive.
type Services struct {
	Coordinator driving.Coordinator
	Discoverer  driving.Discoverer
	Cache       driving.CacheBuilder
	Processor   driving.DocumentProcessor
	Pipeline    driving.BatchPipeline
	Documents   driving.DocumentService
	Settings    driving.SettingsService
	History     driving.TaskHistory
	Config      ConfigEditor
	ConfigKeys  []string
	Daemon      Daemon
	AppConfig   domain.AppConfig
}

var rootCmd = &cobra.Command{
	Use:   "redleaf",
	Short: "Local document indexing and entity extraction",
	Long: `redleaf discovers documents in a directory, extracts their text, recognises
named entities and the relationships between them, and keeps everything in a
local SQLite index.

Run 'redleaf serve' to keep the index up to date in the background, or use the
one-shot commands (discover, process, cache, pipeline run) directly.`,
	SilenceUsage: true,
	PersistentPreRun: func(_ *cobra.Command, _ []string) {
		logger.SetVerbose(verbose)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// Configure injects the services used by the commands.
func Configure(s Services) {
	coordinator = s.Coordinator
	discoverer = s.Discoverer
	cacheBuilder = s.Cache
	documentProcessor = s.Processor
	batchPipeline = s.Pipeline
	documentService = s.Documents
	settingsService = s.Settings
	taskHistory = s.History
	configEditor = s.Config
	configKeys = s.ConfigKeys
	daemon = s.Daemon
	appConfig = s.AppConfig
}

// SetVersion sets the version reported by the version command.
func SetVersion(v string) {
	version = v
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}
