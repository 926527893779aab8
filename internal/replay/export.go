package replay

import (
	"encoding/json"
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
)

// #region export

// FromProvenance builds a fixture for one inventory out of a user's
// provenance entries. Only turns that reached the merge step carry an
// observation; degraded and bookkeeping entries are skipped. The recorded
// decisions become the expected results.
func FromProvenance(userID string, inv inventory.ID, entries []logging.ProvenanceEntry, w update.Weights) (Fixture, error) {
	f := Fixture{
		UserID:     userID,
		Inventory:  inv,
		StartState: FixtureStartState{VersionID: "start"},
		Config:     FixtureConfig{WeightOld: w.Old, WeightNew: w.New},
	}

	for _, e := range entries {
		if e.Inventory != string(inv) || e.TriggerType != logging.TriggerTurn || e.ObservationJSON == "" {
			continue
		}
		var obs state.Observation
		if err := json.Unmarshal([]byte(e.ObservationJSON), &obs); err != nil {
			continue
		}
		turnID := fmt.Sprintf("turn-%d", e.ID)
		f.Interactions = append(f.Interactions, FixtureInteraction{
			TurnID:      turnID,
			Input:       e.InputText,
			Observation: obs,
		})
		f.ExpectedResults = append(f.ExpectedResults, FixtureExpectedResult{
			TurnID: turnID,
			Action: e.Decision,
		})
	}

	if len(f.Interactions) == 0 {
		return Fixture{}, fmt.Errorf("no recorded observations for %s/%s", userID, inv)
	}
	f.Description = fmt.Sprintf("Session export: %d %s turns for %s", len(f.Interactions), inv, userID)
	return f, nil
}

// #endregion export

// #region compare

// Diff is one turn where the replayed action differs from the expected one.
type Diff struct {
	Index    int
	TurnID   string
	Expected string
	Replayed string
}

// Compare lines up results against expected actions by position.
func Compare(results []ReplayResult, expected []FixtureExpectedResult) []Diff {
	n := min(len(results), len(expected))
	var diffs []Diff
	for i := 0; i < n; i++ {
		if results[i].Action != expected[i].Action {
			diffs = append(diffs, Diff{Index: i, TurnID: results[i].TurnID, Expected: expected[i].Action, Replayed: results[i].Action})
		}
	}
	for i := n; i < max(len(results), len(expected)); i++ {
		d := Diff{Index: i}
		if i < len(results) {
			d.TurnID, d.Replayed = results[i].TurnID, results[i].Action
		} else {
			d.TurnID, d.Expected = expected[i].TurnID, expected[i].Action
		}
		diffs = append(diffs, d)
	}
	return diffs
}

// #endregion compare
