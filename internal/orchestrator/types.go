package orchestrator

// #region imports
import (
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/eval"
	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/observability"
	"github.com/danielpatrickdp/adaptive-assessment/internal/oracle"
	"github.com/danielpatrickdp/adaptive-assessment/internal/recommend"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
	"github.com/rs/zerolog"
)

// #endregion

// #region kind

// Kind tells the caller whether the session continues.
type Kind string

const (
	KindQuestion Kind = "question"
	KindFinish   Kind = "finish"
)

// #endregion

// #region response

// Response is the outcome of one handled message. Scores is nil on finish.
type Response struct {
	Kind     Kind         `json:"type"`
	Text     string       `json:"text"`
	Scores   state.Vector `json:"scores"`
	Degraded bool         `json:"-"`
}

// #endregion

// #region messages

const (
	// RetryMessage is returned when the oracle fails; nothing was recorded.
	RetryMessage = "Sorry, I could not process your answer just now. Could you please send it again, perhaps in a bit more detail?"

	// CompletedMessage answers messages sent after every inventory is finished.
	CompletedMessage = "You have already completed every assessment. Reset your session to start over."
)

// #endregion

// #region options

// Options tune the turn cycle.
type Options struct {
	Weights          update.Weights
	OracleTimeout    time.Duration
	RecommendTimeout time.Duration
	// MaxContextTurns caps the history sent to the oracle; 0 sends everything.
	MaxContextTurns int
	Eval            eval.EvalConfig
}

// DefaultOptions returns the reference behavior: 0.7/0.3 blending and unbounded context.
func DefaultOptions() Options {
	return Options{
		Weights:          update.DefaultWeights(),
		OracleTimeout:    30 * time.Second,
		RecommendTimeout: 60 * time.Second,
		Eval:             eval.DefaultEvalConfig(),
	}
}

// Deps are the collaborators an Orchestrator drives. Synthesizer, Recorder,
// and Metrics may be nil.
type Deps struct {
	Catalog     *inventory.Catalog
	Store       state.Store
	Oracle      oracle.Oracle
	Synthesizer recommend.Synthesizer
	Recorder    *logging.Recorder
	Metrics     *observability.Metrics
	Logger      zerolog.Logger
}

// #endregion
