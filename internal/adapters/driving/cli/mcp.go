package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/redleaf/internal/adapters/driving/mcp"
	"github.com/custodia-labs/redleaf/internal/logger"
)

// runMCP serves the MCP tools over stdio, or over HTTP when addr is set.
// It blocks until ctx is cancelled or the transport fails.
func runMCP(ctx context.Context, cmd *cobra.Command, addr string) error {
	ports := &mcp.Ports{
		Coordinator: coordinator,
		Document:    documentService,
	}

	server, err := mcp.NewServer(ports)
	if err != nil {
		return err
	}

	if addr != "" {
		cmd.PrintErrf("MCP server listening on http://%s\n", addr)
		return server.RunHTTP(ctx, addr)
	}

	logger.Info("mcp: serving on stdio")
	err = server.Run(ctx)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
