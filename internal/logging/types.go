package logging

import "time"

// Trigger types.
const (
	TriggerTurn  = "turn"
	TriggerReset = "reset"
)

// Decisions recorded per turn.
const (
	DecisionCommit   = "commit"
	DecisionNoOp     = "no_op"
	DecisionDegraded = "degraded"
	DecisionAdvance  = "advance"
	DecisionFinish   = "finish"
	DecisionComplete = "complete"
	DecisionReset    = "reset"
)

// #region provenance-entry
// ProvenanceEntry is a single row in the provenance_log table.
type ProvenanceEntry struct {
	ID              int64
	UserID          string
	Inventory       string
	VersionID       string
	TriggerType     string
	InputText       string
	ObservationJSON string
	Decision        string
	Reason          string
	CreatedAt       time.Time
}
// #endregion provenance-entry
