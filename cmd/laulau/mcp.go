// ABOUTME: MCP server command implementation for laulau.
// ABOUTME: Starts the MCP server in stdio mode for AI agent integration.
package main

import (
	"github.com/spf13/cobra"

	mcppkg "github.com/2389-research/laulau/internal/mcp"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP server (stdio mode)",
	Long: `Start the Model Context Protocol server for AI agent integration.

The MCP server communicates via stdio, allowing AI agents to read the feed,
post, react, comment, and delete their own posts after confirmation.`,
	RunE: runMCP,
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}

func runMCP(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	ctrl := startFeed(ctx)
	defer ctrl.Close()

	server, err := mcppkg.NewServer(ctrl)
	if err != nil {
		return err
	}

	return server.Serve(ctx)
}
