package replay

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/danielpatrickdp/adaptive-assessment/internal/eval"
	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture.
type Fixture struct {
	Description     string                  `json:"description"`
	UserID          string                  `json:"user_id,omitempty"`
	Inventory       inventory.ID            `json:"inventory"`
	StartState      FixtureStartState       `json:"start_state"`
	Config          FixtureConfig           `json:"config"`
	Interactions    []FixtureInteraction    `json:"interactions"`
	ExpectedResults []FixtureExpectedResult `json:"expected_results"`
}

// FixtureStartState is the JSON-serializable initial assessment.
// Empty vectors mean zero on every dimension.
type FixtureStartState struct {
	VersionID  string       `json:"version_id"`
	Scores     state.Vector `json:"scores,omitempty"`
	Confidence state.Vector `json:"confidence,omitempty"`
}

// FixtureInteraction is one recorded user message and the oracle's answer.
type FixtureInteraction struct {
	TurnID      string            `json:"turn_id"`
	Input       string            `json:"input"`
	Observation state.Observation `json:"observation"`
}

// FixtureExpectedResult captures the expected action per turn.
type FixtureExpectedResult struct {
	TurnID string `json:"turn_id"`
	Action string `json:"action"`
}

// FixtureConfig holds the merge weights and audit tolerance for a run.
type FixtureConfig struct {
	WeightOld float64 `json:"weight_old"`
	WeightNew float64 `json:"weight_new"`
	Tolerance float64 `json:"tolerance,omitempty"`
}

// #endregion fixture-types

// #region fixture-loader

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// WriteFixture encodes f as indented JSON at path.
func WriteFixture(f Fixture, path string) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal fixture: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ToAssessment builds the starting assessment for p, zero-filling any
// dimension the fixture leaves out.
func (s *FixtureStartState) ToAssessment(userID string, p inventory.Profile) state.Assessment {
	a := state.Initial(userID, p)
	a.VersionID = s.VersionID
	for k, v := range s.Scores {
		if p.HasDimension(k) {
			a.Scores[k] = v
		}
	}
	for k, v := range s.Confidence {
		if p.HasDimension(k) {
			a.Confidence[k] = v
		}
	}
	return a
}

// ToInteraction converts a FixtureInteraction to a domain Interaction.
func (fi *FixtureInteraction) ToInteraction() Interaction {
	return Interaction{
		TurnID:      fi.TurnID,
		Input:       fi.Input,
		Observation: fi.Observation,
	}
}

// ToReplayConfig converts a FixtureConfig to a ReplayConfig. Zero weights
// fall back to the production defaults.
func (fc *FixtureConfig) ToReplayConfig() ReplayConfig {
	cfg := DefaultReplayConfig()
	if fc.WeightOld != 0 || fc.WeightNew != 0 {
		cfg.UpdateConfig = update.Config{Weights: update.Weights{Old: fc.WeightOld, New: fc.WeightNew}}
	}
	if fc.Tolerance > 0 {
		cfg.EvalConfig = eval.EvalConfig{Tolerance: fc.Tolerance, MinMeanConf: cfg.EvalConfig.MinMeanConf}
	}
	return cfg
}

// Run replays the fixture against the inventory from cat.
func (f *Fixture) Run(cat *inventory.Catalog, override *ReplayConfig) ([]ReplayResult, state.Assessment, error) {
	p, err := cat.Lookup(f.Inventory)
	if err != nil {
		return nil, state.Assessment{}, err
	}
	cfg := f.Config.ToReplayConfig()
	if override != nil {
		cfg = *override
	}
	interactions := make([]Interaction, len(f.Interactions))
	for i := range f.Interactions {
		interactions[i] = f.Interactions[i].ToInteraction()
	}
	results, final := Replay(f.StartState.ToAssessment(f.UserID, p), p, interactions, cfg)
	return results, final, nil
}

// #endregion fixture-loader
