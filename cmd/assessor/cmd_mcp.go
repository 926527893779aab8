package main

import (
	"github.com/danielpatrickdp/adaptive-assessment/internal/app"
	"github.com/danielpatrickdp/adaptive-assessment/internal/mcptools"
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the assessment as MCP tools over stdio",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := app.New(cmd.Context(), cfg, logger)
		if err != nil {
			return err
		}
		defer a.Close()

		// stdout carries the protocol; logs stay on stderr.
		return server.ServeStdio(mcptools.NewServer(a.Engine, version, logger))
	},
}
