// Package mcptools exposes the assessment engine as MCP tools so an agent
// host can run a session over stdio.
//
// Each tool is a struct holding the engine, a Definition() returning the
// mcp.Tool schema, and a Handle() processing the call.
package mcptools

import (
	"context"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/mark3labs/mcp-go/server"
	"github.com/rs/zerolog"
)

// Engine is the subset of the orchestrator the tools call.
type Engine interface {
	Handle(ctx context.Context, userID, text string) (orchestrator.Response, error)
	CurrentInventory(ctx context.Context, userID string) (inventory.ID, error)
	History(ctx context.Context, userID string, inv inventory.ID) ([]state.Turn, error)
	Reset(ctx context.Context, userID string) error
}

// NewServer registers every tool on a fresh MCP server. Engine failures are
// logged to log and reported to the client without detail.
func NewServer(engine Engine, version string, log zerolog.Logger) *server.MCPServer {
	log = log.With().Str("component", "mcp").Logger()
	s := server.NewMCPServer(
		"adaptive-assessment",
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)

	ask := NewAskTool(engine, log)
	s.AddTool(ask.Definition(), ask.Handle)

	current := NewCurrentInventoryTool(engine, log)
	s.AddTool(current.Definition(), current.Handle)

	history := NewHistoryTool(engine, log)
	s.AddTool(history.Definition(), history.Handle)

	reset := NewResetTool(engine, log)
	s.AddTool(reset.Definition(), reset.Handle)

	return s
}
