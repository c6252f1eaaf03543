package cli

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/custodia-labs/redleaf/internal/logger"
)

var (
	serveWatch   bool
	serveMCP     bool
	serveMCPHTTP string
)

// statusInterval is how often serve redraws its status line.
const statusInterval = time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the task coordinator",
	Long: `Run the task coordinator until interrupted.

Documents left Queued or Indexing by an earlier run are reset and queued
again. The scheduler runs periodic discovery as configured.

Options:
  --watch           queue a discovery whenever files change
  --mcp             serve MCP tools over stdio (for AI assistants)
  --mcp-http ADDR   serve MCP tools over HTTP instead, e.g. localhost:8080

Claude Desktop configuration (claude_desktop_config.json):
  {
    "mcpServers": {
      "redleaf": {
        "command": "/path/to/redleaf",
        "args": ["serve", "--mcp"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&serveWatch, "watch", false, "watch the documents directory for changes")
	serveCmd.Flags().BoolVar(&serveMCP, "mcp", false, "serve MCP tools over stdio")
	serveCmd.Flags().StringVar(&serveMCPHTTP, "mcp-http", "", "serve MCP tools over HTTP on this address")
	serveCmd.MarkFlagsMutuallyExclusive("mcp", "mcp-http")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	if daemon.Coordinator == nil || coordinator == nil {
		return errors.New("coordinator not configured")
	}
	if serveWatch && daemon.Watcher == nil {
		return errors.New("watcher not configured")
	}

	runCtx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	g, ctx := errgroup.WithContext(runCtx)

	g.Go(func() error {
		return ignoreCanceled(daemon.Coordinator.Start(ctx))
	})
	if daemon.Scheduler != nil {
		g.Go(func() error {
			return ignoreCanceled(daemon.Scheduler.Start(ctx))
		})
	}
	if serveWatch {
		g.Go(func() error {
			return ignoreCanceled(daemon.Watcher.Run(ctx))
		})
	}

	switch {
	case serveMCP || serveMCPHTTP != "":
		// The session ending (stdin closed) stops the daemon too.
		g.Go(func() error {
			defer cancel()
			return runMCP(ctx, cmd, serveMCPHTTP)
		})
	default:
		g.Go(func() error {
			reportStatus(ctx, cmd)
			return nil
		})
	}

	logger.Info("serve: documents in %s", appConfig.DocumentsDir)
	return g.Wait()
}

// reportStatus redraws the coordinator status until ctx is done. Outside a
// terminal nothing is written; the logs carry the same information.
func reportStatus(ctx context.Context, cmd *cobra.Command) {
	p := newProgress(cmd)
	if !p.tty {
		<-ctx.Done()
		return
	}
	defer p.Done()

	ticker := time.NewTicker(statusInterval)
	defer ticker.Stop()
	for {
		p.Update(statusLine(coordinator.Status()))
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
