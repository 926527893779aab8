package mcptools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// internalError logs cause and returns a tool error that does not expose it.
func internalError(log zerolog.Logger, tool string, cause error) *mcp.CallToolResult {
	log.Error().Err(cause).Str("tool", tool).Msg("tool call failed")
	return mcp.NewToolResultError("internal error")
}

// AskTool handles the assessment_ask MCP tool.
type AskTool struct {
	engine Engine
	log    zerolog.Logger
}

// NewAskTool creates an AskTool.
func NewAskTool(engine Engine, log zerolog.Logger) *AskTool {
	return &AskTool{engine: engine, log: log}
}

// Definition returns the MCP tool definition for assessment_ask.
func (t *AskTool) Definition() mcp.Tool {
	return mcp.NewTool("assessment_ask",
		mcp.WithDescription(
			"Send one user message to the assessment. Returns JSON with the reply type "+
				"(question or finish), the text to show the user, and the current scores.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Opaque user identifier"),
		),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The user's message"),
		),
	)
}

// Handle processes the assessment_ask tool call.
func (t *AskTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	text := req.GetString("text", "")
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	if strings.TrimSpace(text) == "" {
		return mcp.NewToolResultError("'text' is required"), nil
	}

	resp, err := t.engine.Handle(ctx, userID, text)
	if err != nil {
		return internalError(t.log, "assessment_ask", err), nil
	}
	out, err := json.Marshal(resp)
	if err != nil {
		return internalError(t.log, "assessment_ask", err), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

// ─── CurrentInventoryTool ───────────────────────────────────────────────────

// CurrentInventoryTool handles the assessment_current_inventory MCP tool.
type CurrentInventoryTool struct {
	engine Engine
	log    zerolog.Logger
}

// NewCurrentInventoryTool creates a CurrentInventoryTool.
func NewCurrentInventoryTool(engine Engine, log zerolog.Logger) *CurrentInventoryTool {
	return &CurrentInventoryTool{engine: engine, log: log}
}

// Definition returns the MCP tool definition for assessment_current_inventory.
func (t *CurrentInventoryTool) Definition() mcp.Tool {
	return mcp.NewTool("assessment_current_inventory",
		mcp.WithDescription("Report which inventory the user is currently answering."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Opaque user identifier"),
		),
	)
}

// Handle processes the assessment_current_inventory tool call.
func (t *CurrentInventoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	id, err := t.engine.CurrentInventory(ctx, userID)
	if err != nil {
		return internalError(t.log, "assessment_current_inventory", err), nil
	}
	return mcp.NewToolResultText(string(id)), nil
}

// ─── HistoryTool ────────────────────────────────────────────────────────────

// HistoryTool handles the assessment_history MCP tool.
type HistoryTool struct {
	engine Engine
	log    zerolog.Logger
}

// NewHistoryTool creates a HistoryTool.
func NewHistoryTool(engine Engine, log zerolog.Logger) *HistoryTool {
	return &HistoryTool{engine: engine, log: log}
}

// Definition returns the MCP tool definition for assessment_history.
func (t *HistoryTool) Definition() mcp.Tool {
	return mcp.NewTool("assessment_history",
		mcp.WithDescription("Return the recorded conversation for one user and inventory, oldest first."),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Opaque user identifier"),
		),
		mcp.WithString("inventory",
			mcp.Required(),
			mcp.Description("Inventory id, e.g. interests, skills, values, traits, learning-style"),
		),
	)
}

// Handle processes the assessment_history tool call.
func (t *HistoryTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	inv := req.GetString("inventory", "")
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	if inv == "" {
		return mcp.NewToolResultError("'inventory' is required"), nil
	}

	turns, err := t.engine.History(ctx, userID, inventory.ID(inv))
	if errors.Is(err, inventory.ErrUnknownInventory) {
		return mcp.NewToolResultError(fmt.Sprintf("unknown inventory %q", inv)), nil
	}
	if err != nil {
		return internalError(t.log, "assessment_history", err), nil
	}
	if len(turns) == 0 {
		return mcp.NewToolResultText("No messages recorded yet."), nil
	}

	var b strings.Builder
	for _, turn := range turns {
		fmt.Fprintf(&b, "[%s] %s: %s\n", turn.CreatedAt.Format("2006-01-02 15:04:05"), turn.Role, turn.Content)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// ─── ResetTool ──────────────────────────────────────────────────────────────

// ResetTool handles the assessment_reset MCP tool.
type ResetTool struct {
	engine Engine
	log    zerolog.Logger
}

// NewResetTool creates a ResetTool.
func NewResetTool(engine Engine, log zerolog.Logger) *ResetTool {
	return &ResetTool{engine: engine, log: log}
}

// Definition returns the MCP tool definition for assessment_reset.
func (t *ResetTool) Definition() mcp.Tool {
	return mcp.NewTool("assessment_reset",
		mcp.WithDescription(
			"Delete the user's session, scores, and conversation. The next message starts "+
				"again from the first inventory.",
		),
		mcp.WithString("user_id",
			mcp.Required(),
			mcp.Description("Opaque user identifier"),
		),
	)
}

// Handle processes the assessment_reset tool call.
func (t *ResetTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	userID := req.GetString("user_id", "")
	if userID == "" {
		return mcp.NewToolResultError("'user_id' is required"), nil
	}
	if err := t.engine.Reset(ctx, userID); err != nil {
		return internalError(t.log, "assessment_reset", err), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("Session for %q reset", userID)), nil
}
