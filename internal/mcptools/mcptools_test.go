package mcptools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/oracle"
	"github.com/danielpatrickdp/adaptive-assessment/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/rs/zerolog"
)

// ─── Test helpers ────────────────────────────────────────────────────────────

func newEngine(t *testing.T) *orchestrator.Orchestrator {
	t.Helper()
	cat, err := inventory.Default()
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	half := oracle.Func(func(_ context.Context, req oracle.Request) (state.Observation, error) {
		obs := state.Observation{Scores: state.Vector{}, Confidence: state.Vector{}, NextQuestion: "Tell me more."}
		for _, d := range req.Profile.Dimensions {
			obs.Scores[d] = 0.5
			obs.Confidence[d] = 0.5
		}
		return obs, nil
	})
	return orchestrator.New(orchestrator.Deps{
		Catalog: cat,
		Store:   state.NewMemoryStore(),
		Oracle:  half,
		Logger:  zerolog.Nop(),
	}, orchestrator.DefaultOptions())
}

func makeReq(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(r *mcp.CallToolResult) string {
	if r == nil || len(r.Content) == 0 {
		return ""
	}
	for _, c := range r.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// ─── Definitions ─────────────────────────────────────────────────────────────

func TestDefinitions(t *testing.T) {
	e := newEngine(t)
	cases := []struct {
		def      mcp.Tool
		name     string
		required []string
	}{
		{NewAskTool(e, zerolog.Nop()).Definition(), "assessment_ask", []string{"user_id", "text"}},
		{NewCurrentInventoryTool(e, zerolog.Nop()).Definition(), "assessment_current_inventory", []string{"user_id"}},
		{NewHistoryTool(e, zerolog.Nop()).Definition(), "assessment_history", []string{"user_id", "inventory"}},
		{NewResetTool(e, zerolog.Nop()).Definition(), "assessment_reset", []string{"user_id"}},
	}
	for _, c := range cases {
		if c.def.Name != c.name {
			t.Errorf("tool name = %q, want %q", c.def.Name, c.name)
		}
		for _, r := range c.required {
			if _, ok := c.def.InputSchema.Properties[r]; !ok {
				t.Errorf("%s: missing %q parameter", c.name, r)
			}
			found := false
			for _, got := range c.def.InputSchema.Required {
				if got == r {
					found = true
				}
			}
			if !found {
				t.Errorf("%s: %q should be required", c.name, r)
			}
		}
	}
}

// ─── Handlers ────────────────────────────────────────────────────────────────

func TestAskTool_RoundTrip(t *testing.T) {
	e := newEngine(t)
	tool := NewAskTool(e, zerolog.Nop())

	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{
		"user_id": "u1",
		"text":    "I enjoy fixing things",
	}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if res.IsError {
		t.Fatalf("unexpected tool error: %s", resultText(res))
	}

	var resp orchestrator.Response
	if err := json.Unmarshal([]byte(resultText(res)), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Kind != orchestrator.KindQuestion || resp.Text != "Tell me more." {
		t.Errorf("unexpected response %+v", resp)
	}
	if got := resp.Scores["R"]; got < 0.149 || got > 0.151 {
		t.Errorf("R = %f, want 0.15", got)
	}
}

func TestAskTool_MissingArgs(t *testing.T) {
	tool := NewAskTool(newEngine(t), zerolog.Nop())

	res, _ := tool.Handle(context.Background(), makeReq(map[string]interface{}{"text": "hi"}))
	if !res.IsError || !strings.Contains(resultText(res), "user_id") {
		t.Errorf("expected user_id error, got %q", resultText(res))
	}
	res, _ = tool.Handle(context.Background(), makeReq(map[string]interface{}{"user_id": "u1", "text": "   "}))
	if !res.IsError || !strings.Contains(resultText(res), "text") {
		t.Errorf("expected text error, got %q", resultText(res))
	}
}

func TestCurrentInventoryTool(t *testing.T) {
	tool := NewCurrentInventoryTool(newEngine(t), zerolog.Nop())
	res, err := tool.Handle(context.Background(), makeReq(map[string]interface{}{"user_id": "fresh"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := resultText(res); got != "interests" {
		t.Errorf("current inventory = %q, want interests", got)
	}
}

func TestHistoryTool(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	history := NewHistoryTool(e, zerolog.Nop())

	res, _ := history.Handle(ctx, makeReq(map[string]interface{}{"user_id": "u1", "inventory": "interests"}))
	if !strings.Contains(resultText(res), "No messages") {
		t.Errorf("expected empty history, got %q", resultText(res))
	}

	if _, err := e.Handle(ctx, "u1", "I like plants"); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	res, _ = history.Handle(ctx, makeReq(map[string]interface{}{"user_id": "u1", "inventory": "interests"}))
	text := resultText(res)
	if !strings.Contains(text, "user: I like plants") || !strings.Contains(text, "assistant: Tell me more.") {
		t.Errorf("unexpected history %q", text)
	}

	res, _ = history.Handle(ctx, makeReq(map[string]interface{}{"user_id": "u1", "inventory": "horoscope"}))
	if !res.IsError || !strings.Contains(resultText(res), "unknown inventory") {
		t.Errorf("expected unknown inventory error, got %q", resultText(res))
	}
}

func TestResetTool(t *testing.T) {
	e := newEngine(t)
	ctx := context.Background()
	if _, err := e.Handle(ctx, "u1", "hello"); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	res, err := NewResetTool(e, zerolog.Nop()).Handle(ctx, makeReq(map[string]interface{}{"user_id": "u1"}))
	if err != nil || res.IsError {
		t.Fatalf("reset failed: %v %q", err, resultText(res))
	}
	turns, _ := e.History(ctx, "u1", "interests")
	if len(turns) != 0 {
		t.Errorf("expected history cleared, got %d turns", len(turns))
	}
}

func TestNewServer(t *testing.T) {
	if s := NewServer(newEngine(t), "test", zerolog.Nop()); s == nil {
		t.Fatal("expected server")
	}
}

type failingEngine struct {
	Engine
	err error
}

func (f failingEngine) Handle(context.Context, string, string) (orchestrator.Response, error) {
	return orchestrator.Response{}, f.err
}

func (f failingEngine) Reset(context.Context, string) error {
	return f.err
}

func TestTools_HideEngineErrors(t *testing.T) {
	var logs bytes.Buffer
	log := zerolog.New(&logs)
	e := failingEngine{err: errors.New("sqlite: disk I/O error at /var/lib/assessor.db")}

	res, err := NewAskTool(e, log).Handle(context.Background(), makeReq(map[string]interface{}{"user_id": "u1", "text": "hi"}))
	if err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if !res.IsError || resultText(res) != "internal error" {
		t.Errorf("expected opaque error, got %q", resultText(res))
	}

	res, _ = NewResetTool(e, log).Handle(context.Background(), makeReq(map[string]interface{}{"user_id": "u1"}))
	if !res.IsError || strings.Contains(resultText(res), "sqlite") {
		t.Errorf("reset leaked cause: %q", resultText(res))
	}

	if !strings.Contains(logs.String(), "disk I/O error") || !strings.Contains(logs.String(), "assessment_ask") {
		t.Errorf("expected cause in logs, got %q", logs.String())
	}
}
