// Package llm wraps chat-completion backends used by the oracle and the
// recommendation synthesizer.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
)

// ErrNoJSON is returned when a completion contains no JSON object.
var ErrNoJSON = errors.New("no JSON object in completion")

// Message is one chat message sent to a model.
type Message struct {
	Role    string
	Content string
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Completer produces one completion for a message list.
type Completer interface {
	Complete(ctx context.Context, msgs []Message) (string, error)
}

// ExtractJSON returns the first complete JSON object in text, tolerating
// surrounding prose and markdown code fences. Braces in prose before or
// after the object are skipped.
func ExtractJSON(text string) (string, error) {
	s := strings.TrimSpace(text)
	if i := strings.Index(s, "```"); i >= 0 {
		rest := s[i+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 {
			rest = rest[nl+1:]
		}
		if j := strings.Index(rest, "```"); j >= 0 {
			s = strings.TrimSpace(rest[:j])
		}
	}
	for off := 0; off < len(s); {
		i := strings.IndexByte(s[off:], '{')
		if i < 0 {
			break
		}
		start := off + i
		var raw json.RawMessage
		if err := json.NewDecoder(strings.NewReader(s[start:])).Decode(&raw); err == nil {
			return string(raw), nil
		}
		off = start + 1
	}
	return "", ErrNoJSON
}
