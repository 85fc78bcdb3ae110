// ABOUTME: MCP command starts the Model Context Protocol server on stdio
// ABOUTME: Lets LLM agents ingest documents, ask questions and give feedback
package commands

import (
	"fmt"

	"github.com/charmbracelet/log"
	"github.com/harper/riskmem/internal/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

// NewMCPCmd creates the MCP command
func NewMCPCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Start MCP server for LLM agents",
		Long: `Start MCP server for LLM agents

Runs riskmem as an MCP (Model Context Protocol) server on stdio.`,
		Example: `  # Configure in an MCP client config file:
  # {
  #   "mcpServers": {
  #     "riskmem": {
  #       "command": "riskmem",
  #       "args": ["mcp"]
  #     }
  #   }
  # }`,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := signalContext(cmd.Context())
			defer stop()

			server := mcp.NewServer(a.svc, versionInfo.Version)

			// stdout carries the protocol
			log.SetOutput(cmd.ErrOrStderr())
			log.Info("MCP server starting on stdio")

			serverErr := make(chan error, 1)
			go func() {
				serverErr <- mcpserver.ServeStdio(server)
			}()

			select {
			case <-ctx.Done():
				log.Info("shutdown signal received")
			case err := <-serverErr:
				if err != nil {
					return fmt.Errorf("server error: %w", err)
				}
			}
			return nil
		},
	}
}
