package update

import (
	"errors"
	"fmt"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/google/uuid"
	"gonum.org/v1/gonum/floats"
)

// ErrKeyMismatch is returned when an observation lacks a key the current vector has.
var ErrKeyMismatch = errors.New("vector key mismatch")

// #region merge
// Merge blends next into old: out[k] = old[k]*w.Old + next[k]*w.New for every
// key of old. Keys present only in next are ignored. Inputs are not modified.
func Merge(old, next state.Vector, w Weights) (state.Vector, error) {
	keys := old.Keys()
	a := make([]float64, len(keys))
	b := make([]float64, len(keys))
	for i, k := range keys {
		v, ok := next[k]
		if !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrKeyMismatch, k)
		}
		a[i] = old[k]
		b[i] = v
	}

	dst := make([]float64, len(keys))
	floats.ScaleTo(dst, w.Old, a)
	floats.AddScaled(dst, w.New, b)

	out := make(state.Vector, len(keys))
	for i, k := range keys {
		out[k] = dst[i]
	}
	return out, nil
}
// #endregion merge

// #region update-function
// Update is a pure function that folds one observation into the current
// assessment. Scores and confidence merge independently; Finished is taken
// from the observation as-is. The result is a new version whose parent is current.
func Update(current state.Assessment, obs state.Observation, cfg Config) (Result, error) {
	start := time.Now()

	scores, err := Merge(current.Scores, obs.Scores, cfg.Weights)
	if err != nil {
		return Result{}, fmt.Errorf("merge scores: %w", err)
	}
	conf, err := Merge(current.Confidence, obs.Confidence, cfg.Weights)
	if err != nil {
		return Result{}, fmt.Errorf("merge confidence: %w", err)
	}

	newRec := state.Assessment{
		VersionID:  uuid.New().String(),
		ParentID:   current.VersionID,
		UserID:     current.UserID,
		Inventory:  current.Inventory,
		Scores:     scores,
		Confidence: conf,
		Finished:   obs.ShouldFinish,
		CreatedAt:  time.Now().UTC(),
	}

	metrics := measure(current.Scores, scores, conf)
	metrics.UpdateTimeMs = time.Since(start).Milliseconds()

	decision := Decision{Action: "no_op", Reason: "no score change"}
	switch {
	case newRec.Finished && !current.Finished:
		decision = Decision{Action: "commit", Reason: fmt.Sprintf("inventory finished, delta norm: %.6f", metrics.DeltaNorm)}
	case metrics.DeltaNorm > 0:
		decision = Decision{Action: "commit", Reason: fmt.Sprintf("delta norm: %.6f", metrics.DeltaNorm)}
	}

	return Result{
		NewState: newRec,
		Decision: decision,
		Metrics:  metrics,
	}, nil
}

func measure(before, after, conf state.Vector) Metrics {
	keys := after.Keys()
	a := make([]float64, len(keys))
	b := make([]float64, len(keys))
	c := make([]float64, len(keys))
	dims := make([]DimensionMetric, len(keys))
	for i, k := range keys {
		a[i], b[i], c[i] = before[k], after[k], conf[k]
		dims[i] = DimensionMetric{Key: k, ScoreDelta: after[k] - before[k], Confidence: conf[k]}
	}

	m := Metrics{Dimensions: dims}
	if len(keys) > 0 {
		m.DeltaNorm = floats.Distance(a, b, 2)
		m.ConfidenceMean = floats.Sum(c) / float64(len(c))
	}
	return m
}
// #endregion update-function
