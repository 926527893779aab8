package eval

import (
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"gonum.org/v1/gonum/floats"
)

// #region eval-harness
// EvalHarness audits a committed assessment against its inventory's
// declared ranges. Results are informational; nothing is rejected.
type EvalHarness struct {
	config EvalConfig
}

// NewEvalHarness creates an eval harness with the given configuration.
func NewEvalHarness(config EvalConfig) *EvalHarness {
	return &EvalHarness{config: config}
}

// Run checks every score against [p.Min, p.Max] and every confidence
// against [0, 1].
func (h *EvalHarness) Run(a state.Assessment, p inventory.Profile) EvalResult {
	var metrics []EvalMetric
	passed := true
	var failReasons []string

	// 1. Score ranges
	for _, k := range p.Dimensions {
		v := a.Scores[k]
		ok := h.within(v, p.Min, p.Max)
		metrics = append(metrics, EvalMetric{Name: "score_" + k, Value: v, Pass: ok})
		if !ok {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("score %s=%.4f outside [%.1f, %.1f]", k, v, p.Min, p.Max))
		}
	}

	// 2. Confidence ranges
	conf := make([]float64, 0, len(p.Dimensions))
	for _, k := range p.Dimensions {
		v := a.Confidence[k]
		conf = append(conf, v)
		ok := h.within(v, 0, 1)
		metrics = append(metrics, EvalMetric{Name: "confidence_" + k, Value: v, Pass: ok})
		if !ok {
			passed = false
			failReasons = append(failReasons, fmt.Sprintf("confidence %s=%.4f outside [0, 1]", k, v))
		}
	}

	// 3. Mean confidence on finish: informational only, does not fail
	if a.Finished && len(conf) > 0 {
		mean := floats.Sum(conf) / float64(len(conf))
		metrics = append(metrics, EvalMetric{
			Name:  "finish_confidence_mean",
			Value: mean,
			Pass:  mean >= h.config.MinMeanConf,
		})
	}

	reason := "all checks passed"
	if !passed {
		reason = fmt.Sprintf("eval failed: %s", failReasons[0])
		if len(failReasons) > 1 {
			reason = fmt.Sprintf("eval failed: %d checks: %s", len(failReasons), failReasons[0])
		}
	}

	return EvalResult{
		Passed:  passed,
		Metrics: metrics,
		Reason:  reason,
	}
}

func (h *EvalHarness) within(v, lo, hi float64) bool {
	return v >= lo-h.config.Tolerance && v <= hi+h.config.Tolerance
}

// #endregion eval-harness
