package oracle

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/llm"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
)

// LLMOracle scores replies with a chat model: the inventory prompt as the
// system message, then the prior conversation, then the new reply.
type LLMOracle struct {
	completer llm.Completer
}

// NewLLMOracle returns an oracle backed by c.
func NewLLMOracle(c llm.Completer) *LLMOracle {
	return &LLMOracle{completer: c}
}

func (o *LLMOracle) Observe(ctx context.Context, req Request) (state.Observation, error) {
	raw, err := o.completer.Complete(ctx, Messages(req))
	if err != nil {
		return state.Observation{}, fmt.Errorf("observe: %w", err)
	}
	return Parse(raw, req.Profile)
}

// Messages renders req as a chat transcript.
func Messages(req Request) []llm.Message {
	msgs := make([]llm.Message, 0, len(req.Context)+2)
	msgs = append(msgs, llm.Message{Role: llm.RoleSystem, Content: req.Profile.Prompt()})
	for _, t := range req.Context {
		role := llm.RoleUser
		if t.Role == state.RoleAssistant {
			role = llm.RoleAssistant
		}
		msgs = append(msgs, llm.Message{Role: role, Content: t.Content})
	}
	msgs = append(msgs, llm.Message{Role: llm.RoleUser, Content: req.Input})
	return msgs
}

var _ Oracle = (*LLMOracle)(nil)
