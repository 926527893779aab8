package update

import (
	"errors"
	"math"
	"testing"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
)

const eps = 1e-9

func approx(a, b float64) bool {
	return math.Abs(a-b) < eps
}

var interests = inventory.Profile{
	ID:         "interests",
	Dimensions: []string{"R", "I", "A", "S", "E", "C"},
	Min:        0,
	Max:        1,
}

func obsFor(keys []string, score, conf float64, finish bool) state.Observation {
	s := state.Vector{}
	c := state.Vector{}
	for _, k := range keys {
		s[k] = score
		c[k] = conf
	}
	return state.Observation{Scores: s, Confidence: c, NextQuestion: "next?", ShouldFinish: finish}
}

func TestMerge_Linearity(t *testing.T) {
	out, err := Merge(state.Vector{"R": 0.0}, state.Vector{"R": 1.0}, DefaultWeights())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !approx(out["R"], 0.3) {
		t.Fatalf("expected 0.3, got %f", out["R"])
	}
}

func TestMerge_ConvexCombination(t *testing.T) {
	old := state.Vector{"a": 0.2, "b": 0.9, "c": -0.5}
	next := state.Vector{"a": 0.8, "b": 0.1, "c": 0.5}
	weights := []Weights{{0.7, 0.3}, {0.5, 0.5}, {1, 0}, {0, 1}, {0.25, 0.75}}

	for _, w := range weights {
		out, err := Merge(old, next, w)
		if err != nil {
			t.Fatalf("Merge(%v): %v", w, err)
		}
		for k := range old {
			want := old[k]*w.Old + next[k]*w.New
			if !approx(out[k], want) {
				t.Fatalf("w=%v key %s: expected %f, got %f", w, k, want, out[k])
			}
			lo, hi := math.Min(old[k], next[k]), math.Max(old[k], next[k])
			if out[k] < lo-eps || out[k] > hi+eps {
				t.Fatalf("w=%v key %s: %f outside [%f, %f]", w, k, out[k], lo, hi)
			}
		}
	}
}

func TestMerge_KeySetPreserved(t *testing.T) {
	old := state.Zero(interests.Dimensions)
	next := obsFor(interests.Dimensions, 0.5, 0.5, false).Scores
	next["extra"] = 1

	out, err := Merge(old, next, DefaultWeights())
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if err := state.CheckKeys(out, interests.Dimensions); err != nil {
		t.Fatalf("key set changed: %v", err)
	}
}

func TestMerge_MissingKeyIsError(t *testing.T) {
	old := state.Vector{"R": 0.1, "I": 0.2}
	_, err := Merge(old, state.Vector{"R": 1}, DefaultWeights())
	if !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
}

func TestMerge_DoesNotMutateInputs(t *testing.T) {
	old := state.Vector{"R": 0.1}
	next := state.Vector{"R": 0.9}
	if _, err := Merge(old, next, DefaultWeights()); err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if old["R"] != 0.1 || next["R"] != 0.9 {
		t.Fatalf("inputs mutated: old=%v next=%v", old, next)
	}
}

func TestUpdate_FromZero(t *testing.T) {
	cur := state.Initial("u1", interests)
	cur.VersionID = "v0"

	res, err := Update(cur, obsFor(interests.Dimensions, 1.0, 0.5, false), DefaultConfig())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, k := range interests.Dimensions {
		if !approx(res.NewState.Scores[k], 0.3) {
			t.Fatalf("score %s: expected 0.3, got %f", k, res.NewState.Scores[k])
		}
		if !approx(res.NewState.Confidence[k], 0.15) {
			t.Fatalf("confidence %s: expected 0.15, got %f", k, res.NewState.Confidence[k])
		}
	}
	if res.NewState.VersionID == "" || res.NewState.VersionID == "v0" {
		t.Fatalf("expected fresh version id, got %q", res.NewState.VersionID)
	}
	if res.NewState.ParentID != "v0" {
		t.Fatalf("expected parent v0, got %q", res.NewState.ParentID)
	}
	if res.NewState.UserID != "u1" || res.NewState.Inventory != "interests" {
		t.Fatalf("identity not carried: %+v", res.NewState)
	}
	if res.Decision.Action != "commit" {
		t.Fatalf("expected commit, got %s", res.Decision.Action)
	}
	if len(res.Metrics.Dimensions) != 6 {
		t.Fatalf("expected 6 dimension metrics, got %d", len(res.Metrics.Dimensions))
	}
	if !approx(res.Metrics.DeltaNorm, math.Sqrt(6*0.09)) {
		t.Fatalf("unexpected delta norm %f", res.Metrics.DeltaNorm)
	}
}

func TestUpdate_FinishOverride(t *testing.T) {
	cur := state.Initial("u1", interests)

	res, err := Update(cur, obsFor(interests.Dimensions, 0, 0, true), DefaultConfig())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if !res.NewState.Finished {
		t.Fatal("expected finished after should_finish=true")
	}
	if res.Decision.Action != "commit" {
		t.Fatalf("finishing with no score change should still commit, got %s", res.Decision.Action)
	}

	// A later observation with should_finish=false clears the flag; it is never blended.
	res2, err := Update(res.NewState, obsFor(interests.Dimensions, 0, 0, false), DefaultConfig())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res2.NewState.Finished {
		t.Fatal("expected finished to follow the latest observation")
	}
}

func TestUpdate_NoChangeIsNoOp(t *testing.T) {
	cur := state.Initial("u1", interests)
	res, err := Update(cur, obsFor(interests.Dimensions, 0, 0, false), DefaultConfig())
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Decision.Action != "no_op" {
		t.Fatalf("expected no_op, got %s", res.Decision.Action)
	}
}

func TestUpdate_DoesNotMutateCurrent(t *testing.T) {
	cur := state.Initial("u1", interests)
	if _, err := Update(cur, obsFor(interests.Dimensions, 1, 1, true), DefaultConfig()); err != nil {
		t.Fatalf("Update: %v", err)
	}
	for _, k := range interests.Dimensions {
		if cur.Scores[k] != 0 || cur.Confidence[k] != 0 {
			t.Fatalf("current mutated at %s", k)
		}
	}
	if cur.Finished {
		t.Fatal("current finished flag mutated")
	}
}

func TestUpdate_ConfidenceMismatch(t *testing.T) {
	cur := state.Initial("u1", interests)
	obs := obsFor(interests.Dimensions, 0.5, 0.5, false)
	delete(obs.Confidence, "C")

	_, err := Update(cur, obs, DefaultConfig())
	if !errors.Is(err, ErrKeyMismatch) {
		t.Fatalf("expected ErrKeyMismatch, got %v", err)
	}
}
