// Package oracle obtains structured observations for a user's reply from an
// external scoring model.
package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/llm"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
)

// ErrContract marks a response that does not satisfy the observation shape
// for the requested inventory.
var ErrContract = errors.New("oracle contract violation")

// Request is everything the oracle sees for one turn.
type Request struct {
	Profile inventory.Profile
	Context []state.Turn
	Input   string
}

// Oracle scores one user reply.
type Oracle interface {
	Observe(ctx context.Context, req Request) (state.Observation, error)
}

// Func adapts a function to Oracle.
type Func func(ctx context.Context, req Request) (state.Observation, error)

func (f Func) Observe(ctx context.Context, req Request) (state.Observation, error) {
	return f(ctx, req)
}

// Parse extracts, validates, and decodes an observation from raw model
// output. Every failure wraps ErrContract.
func Parse(raw string, p inventory.Profile) (state.Observation, error) {
	doc, err := llm.ExtractJSON(raw)
	if err != nil {
		return state.Observation{}, fmt.Errorf("%w: %v", ErrContract, err)
	}
	if err := Validate([]byte(doc), p); err != nil {
		return state.Observation{}, err
	}
	var obs state.Observation
	if err := json.Unmarshal([]byte(doc), &obs); err != nil {
		return state.Observation{}, fmt.Errorf("%w: decode: %v", ErrContract, err)
	}
	return obs, nil
}
