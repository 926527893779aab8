package replay

import (
	"errors"

	"github.com/danielpatrickdp/adaptive-assessment/internal/eval"
	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
)

// Replay actions beyond the update decisions ("commit", "no_op").
const (
	ActionRejected = "rejected" // observation keys did not match the inventory
	ActionComplete = "complete" // inventory already finished; turn ignored
)

// #region types
// Interaction is one recorded oracle observation for replay.
type Interaction struct {
	TurnID      string
	Input       string
	Observation state.Observation
}

// ReplayConfig bundles the merge weights and audit thresholds for a run.
type ReplayConfig struct {
	UpdateConfig update.Config
	EvalConfig   eval.EvalConfig
}

// DefaultReplayConfig returns the production defaults.
func DefaultReplayConfig() ReplayConfig {
	return ReplayConfig{
		UpdateConfig: update.DefaultConfig(),
		EvalConfig:   eval.DefaultEvalConfig(),
	}
}

// ReplayResult captures the outcome of replaying one interaction.
type ReplayResult struct {
	TurnID string
	Action string // "commit" | "no_op" | "rejected" | "complete"
	Reason string

	UpdateMetrics update.Metrics

	// nil unless the turn was applied
	EvalResult *eval.EvalResult

	Finished       bool
	FinalVersionID string
}

// ReplaySummary aggregates a replay run.
type ReplaySummary struct {
	TotalTurns    int
	Commits       int
	NoOps         int
	Rejected      int
	Ignored       int
	AuditFailures int
	Finished      bool
	FinalState    state.Assessment
}

// #endregion types

// #region replay
// Replay applies interactions in order to start, in memory. It returns one
// result per interaction and the final assessment.
func Replay(start state.Assessment, p inventory.Profile, interactions []Interaction, config ReplayConfig) ([]ReplayResult, state.Assessment) {
	current := start.Clone()
	results := make([]ReplayResult, 0, len(interactions))
	audit := eval.NewEvalHarness(config.EvalConfig)

	for _, inter := range interactions {
		if current.Finished {
			results = append(results, ReplayResult{
				TurnID:         inter.TurnID,
				Action:         ActionComplete,
				Reason:         "inventory already finished",
				Finished:       true,
				FinalVersionID: current.VersionID,
			})
			continue
		}

		obs := inter.Observation
		if err := checkObservation(obs, p); err != nil {
			results = append(results, ReplayResult{
				TurnID:         inter.TurnID,
				Action:         ActionRejected,
				Reason:         err.Error(),
				FinalVersionID: current.VersionID,
			})
			continue
		}

		res, err := update.Update(current, obs, config.UpdateConfig)
		if err != nil {
			results = append(results, ReplayResult{
				TurnID:         inter.TurnID,
				Action:         ActionRejected,
				Reason:         err.Error(),
				FinalVersionID: current.VersionID,
			})
			continue
		}

		current = res.NewState
		ev := audit.Run(current, p)
		results = append(results, ReplayResult{
			TurnID:         inter.TurnID,
			Action:         res.Decision.Action,
			Reason:         res.Decision.Reason,
			UpdateMetrics:  res.Metrics,
			EvalResult:     &ev,
			Finished:       current.Finished,
			FinalVersionID: current.VersionID,
		})
	}

	return results, current
}

func checkObservation(obs state.Observation, p inventory.Profile) error {
	if err := state.CheckKeys(obs.Scores, p.Dimensions); err != nil {
		return errors.Join(update.ErrKeyMismatch, err)
	}
	if err := state.CheckKeys(obs.Confidence, p.Dimensions); err != nil {
		return errors.Join(update.ErrKeyMismatch, err)
	}
	return nil
}

// Summarize computes aggregate stats from replay results.
func Summarize(results []ReplayResult, finalState state.Assessment) ReplaySummary {
	s := ReplaySummary{
		TotalTurns: len(results),
		Finished:   finalState.Finished,
		FinalState: finalState,
	}
	for _, r := range results {
		switch r.Action {
		case "commit":
			s.Commits++
		case "no_op":
			s.NoOps++
		case ActionRejected:
			s.Rejected++
		case ActionComplete:
			s.Ignored++
		}
		if r.EvalResult != nil && !r.EvalResult.Passed {
			s.AuditFailures++
		}
	}
	return s
}

// #endregion replay
