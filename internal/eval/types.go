package eval

// #region eval-config
// EvalConfig holds thresholds for post-commit validation.
type EvalConfig struct {
	Tolerance   float64 // slack allowed outside a declared range
	MinMeanConf float64 // informational: warn when mean confidence is below this on finish
}

// DefaultEvalConfig returns sensible defaults.
func DefaultEvalConfig() EvalConfig {
	return EvalConfig{
		Tolerance:   1e-9,
		MinMeanConf: 0.8,
	}
}

// #endregion eval-config

// #region eval-metric
// EvalMetric captures a single validation check result.
type EvalMetric struct {
	Name  string
	Value float64
	Pass  bool
}

// #endregion eval-metric

// #region eval-result
// EvalResult is the output of post-commit validation.
type EvalResult struct {
	Passed  bool
	Metrics []EvalMetric
	Reason  string
}

// Failed returns the names of failing checks.
func (r EvalResult) Failed() []string {
	var out []string
	for _, m := range r.Metrics {
		if !m.Pass {
			out = append(out, m.Name)
		}
	}
	return out
}

// #endregion eval-result
