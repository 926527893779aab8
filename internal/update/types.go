package update

import "github.com/danielpatrickdp/adaptive-assessment/internal/state"

// #region weights
// Weights are the blend coefficients of one merge step. Old+New should be 1
// so every merged value is a convex combination of its inputs.
type Weights struct {
	Old float64
	New float64
}

// DefaultWeights returns the 0.7/0.3 exponential-moving-average blend.
func DefaultWeights() Weights {
	return Weights{Old: 0.7, New: 0.3}
}
// #endregion weights

// #region decision
// Decision records what the update function decided.
type Decision struct {
	Action string // "commit" | "no_op"
	Reason string
}
// #endregion decision

// #region metrics
// DimensionMetric captures the movement of one dimension in an update cycle.
type DimensionMetric struct {
	Key        string  `json:"key"`
	ScoreDelta float64 `json:"score_delta"`
	Confidence float64 `json:"confidence"`
}

// Metrics captures telemetry from an update cycle.
type Metrics struct {
	DeltaNorm      float64           `json:"delta_norm"`
	ConfidenceMean float64           `json:"confidence_mean"`
	Dimensions     []DimensionMetric `json:"dimensions"`
	UpdateTimeMs   int64             `json:"update_time_ms"`
}
// #endregion metrics

// #region update-config
// Config holds the merge parameters for the update function.
type Config struct {
	Weights Weights
}

// DefaultConfig returns the default merge parameters.
func DefaultConfig() Config {
	return Config{Weights: DefaultWeights()}
}
// #endregion update-config

// #region update-result
// Result bundles everything returned by Update().
type Result struct {
	NewState state.Assessment
	Decision Decision
	Metrics  Metrics
}
// #endregion update-result
