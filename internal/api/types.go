package api

import (
	"context"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/go-playground/validator/v10"
)

// Assessor is the engine surface the HTTP layer drives.
type Assessor interface {
	Handle(ctx context.Context, userID, text string) (orchestrator.Response, error)
	CurrentInventory(ctx context.Context, userID string) (inventory.ID, error)
	History(ctx context.Context, userID string, inv inventory.ID) ([]state.Turn, error)
	Assessments(ctx context.Context, userID string) ([]state.Assessment, error)
	Reset(ctx context.Context, userID string) error
}

var validate = validator.New()

// AskRequest is the body of POST /v1/ask.
type AskRequest struct {
	UserID string `json:"user_id" validate:"required,max=256"`
	Text   string `json:"text" validate:"required,max=16384"`
}

func (r *AskRequest) Validate() error {
	return validate.Struct(r)
}

// AskResponse mirrors orchestrator.Response on the wire.
type AskResponse struct {
	Type     orchestrator.Kind `json:"type"`
	Text     string            `json:"text"`
	Scores   state.Vector      `json:"scores"`
	Degraded bool              `json:"degraded,omitempty"`
}

type TurnView struct {
	Role      state.Role `json:"role"`
	Content   string     `json:"content"`
	CreatedAt time.Time  `json:"created_at"`
}

type AssessmentView struct {
	Inventory  inventory.ID `json:"inventory"`
	VersionID  string       `json:"version_id"`
	Scores     state.Vector `json:"scores"`
	Confidence state.Vector `json:"confidence"`
	Finished   bool         `json:"finished"`
	UpdatedAt  time.Time    `json:"updated_at"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}
