package orchestrator

// #region imports
import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/eval"
	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/observability"
	"github.com/danielpatrickdp/adaptive-assessment/internal/oracle"
	"github.com/danielpatrickdp/adaptive-assessment/internal/recommend"
	"github.com/danielpatrickdp/adaptive-assessment/internal/sequencer"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
	"github.com/rs/zerolog"
)

// #endregion

// #region orchestrator-struct

// Orchestrator runs one user message through the assessment cycle:
// resolve stage, consult the oracle, merge, persist, and advance.
type Orchestrator struct {
	catalog  *inventory.Catalog
	store    state.Store
	seq      *sequencer.Sequencer
	oracle   oracle.Oracle
	synth    recommend.Synthesizer
	recorder *logging.Recorder
	metrics  *observability.Metrics
	audit    *eval.EvalHarness
	opts     Options
	log      zerolog.Logger
	locks    *userLocks
}

// #endregion

// #region constructor

// New wires an orchestrator from its collaborators.
func New(d Deps, opts Options) *Orchestrator {
	if opts.OracleTimeout <= 0 {
		opts.OracleTimeout = DefaultOptions().OracleTimeout
	}
	if opts.RecommendTimeout <= 0 {
		opts.RecommendTimeout = DefaultOptions().RecommendTimeout
	}
	if opts.Weights == (update.Weights{}) {
		opts.Weights = update.DefaultWeights()
	}
	return &Orchestrator{
		catalog:  d.Catalog,
		store:    d.Store,
		seq:      sequencer.New(d.Catalog, d.Store),
		oracle:   d.Oracle,
		synth:    d.Synthesizer,
		recorder: d.Recorder,
		metrics:  d.Metrics,
		audit:    eval.NewEvalHarness(opts.Eval),
		opts:     opts,
		log:      d.Logger.With().Str("component", "orchestrator").Logger(),
		locks:    newUserLocks(),
	}
}

// #endregion

// #region handle

// Handle processes one message from userID. Oracle failures never surface as
// errors: they produce a degraded question and leave all state untouched.
// Returned errors indicate store failures or a broken deployment.
func (o *Orchestrator) Handle(ctx context.Context, userID, text string) (Response, error) {
	unlock := o.locks.lock(userID)
	defer unlock()

	pos, err := o.seq.Current(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	cur, err := o.assessment(ctx, userID, pos.Profile)
	if err != nil {
		return Response{}, err
	}

	// A finished inventory that is not the last means the process stopped
	// between commit and advance.
	for cur.Finished && !pos.Last {
		o.log.Warn().Str("user", userID).Str("inventory", string(pos.Profile.ID)).Msg("resuming interrupted stage transition")
		if _, _, err := o.seq.Advance(ctx, userID); err != nil {
			return Response{}, err
		}
		if pos, err = o.seq.Current(ctx, userID); err != nil {
			return Response{}, err
		}
		if cur, err = o.assessment(ctx, userID, pos.Profile); err != nil {
			return Response{}, err
		}
	}
	done, err := o.seq.AllComplete(ctx, userID)
	if err != nil {
		return Response{}, err
	}
	if done {
		o.metrics.Turn(string(pos.Profile.ID), logging.DecisionComplete)
		o.record(ctx, userID, pos.Profile.ID, logging.ProvenanceEntry{
			VersionID: cur.VersionID,
			InputText: text,
			Decision:  logging.DecisionComplete,
			Reason:    "message after completion",
		})
		return Response{Kind: KindFinish, Text: CompletedMessage}, nil
	}

	key := state.Key{UserID: userID, Inventory: pos.Profile.ID}
	history, err := o.store.History(ctx, key)
	if err != nil {
		return Response{}, fmt.Errorf("load history: %w", err)
	}

	userTurn := state.Turn{Role: state.RoleUser, Content: text, CreatedAt: time.Now().UTC()}

	obs, err := o.observe(ctx, pos.Profile, history, text)
	if err != nil {
		return o.degraded(ctx, userID, cur, text, err), nil
	}

	res, err := update.Update(cur, obs, update.Config{Weights: o.opts.Weights})
	if err != nil {
		return Response{}, fmt.Errorf("merge %s: %w", pos.Profile.ID, err)
	}

	err = o.store.CommitTurn(ctx, state.Commit{
		Key: key,
		Turns: []state.Turn{
			userTurn,
			{Role: state.RoleAssistant, Content: obs.NextQuestion, CreatedAt: time.Now().UTC()},
		},
		Assessment:  res.NewState,
		MetricsJSON: o.encode(res.Metrics, "update metrics"),
	})
	if err != nil {
		return Response{}, fmt.Errorf("commit turn: %w", err)
	}

	if audit := o.audit.Run(res.NewState, pos.Profile); !audit.Passed {
		o.log.Warn().Str("user", userID).Str("inventory", string(pos.Profile.ID)).
			Strs("checks", audit.Failed()).Msg(audit.Reason)
		o.metrics.AuditFailure(string(pos.Profile.ID))
	}

	o.metrics.Turn(string(pos.Profile.ID), res.Decision.Action)
	o.record(ctx, userID, pos.Profile.ID, logging.ProvenanceEntry{
		VersionID:       res.NewState.VersionID,
		InputText:       text,
		ObservationJSON: o.encode(obs, "observation"),
		Decision:        res.Decision.Action,
		Reason:          res.Decision.Reason,
	})
	o.log.Info().Str("user", userID).Str("inventory", string(pos.Profile.ID)).
		Str("decision", res.Decision.Action).Float64("delta_norm", res.Metrics.DeltaNorm).
		Bool("finished", res.NewState.Finished).Msg("turn committed")

	if !res.NewState.Finished {
		return Response{Kind: KindQuestion, Text: obs.NextQuestion, Scores: res.NewState.Scores.Clone()}, nil
	}
	return o.complete(ctx, userID, pos.Profile, res.NewState)
}

// observe calls the oracle under the configured timeout and checks the key sets.
func (o *Orchestrator) observe(ctx context.Context, p inventory.Profile, history []state.Turn, text string) (state.Observation, error) {
	octx, cancel := context.WithTimeout(ctx, o.opts.OracleTimeout)
	defer cancel()

	start := time.Now()
	obs, err := o.oracle.Observe(octx, oracle.Request{
		Profile: p,
		Context: window(history, o.opts.MaxContextTurns),
		Input:   text,
	})
	if err == nil {
		if kerr := state.CheckKeys(obs.Scores, p.Dimensions); kerr != nil {
			err = fmt.Errorf("%w: scores: %v", oracle.ErrContract, kerr)
		} else if kerr := state.CheckKeys(obs.Confidence, p.Dimensions); kerr != nil {
			err = fmt.Errorf("%w: confidence: %v", oracle.ErrContract, kerr)
		} else if kerr := state.CheckFinite(obs.Scores); kerr != nil {
			err = fmt.Errorf("%w: scores: %v", oracle.ErrContract, kerr)
		} else if kerr := state.CheckFinite(obs.Confidence); kerr != nil {
			err = fmt.Errorf("%w: confidence: %v", oracle.ErrContract, kerr)
		}
	}
	o.metrics.OracleCall(time.Since(start), failureKind(err))
	return obs, err
}

func (o *Orchestrator) degraded(ctx context.Context, userID string, cur state.Assessment, text string, cause error) Response {
	o.log.Warn().Err(cause).Str("user", userID).Str("inventory", string(cur.Inventory)).
		Str("kind", failureKind(cause)).Msg("oracle failed, turn not recorded")
	o.metrics.Turn(string(cur.Inventory), logging.DecisionDegraded)
	o.record(ctx, userID, cur.Inventory, logging.ProvenanceEntry{
		VersionID: cur.VersionID,
		InputText: text,
		Decision:  logging.DecisionDegraded,
		Reason:    cause.Error(),
	})
	return Response{Kind: KindQuestion, Text: RetryMessage, Scores: cur.Scores.Clone(), Degraded: true}
}

// complete runs after an inventory finishes: advance, or synthesize at the end.
func (o *Orchestrator) complete(ctx context.Context, userID string, done inventory.Profile, final state.Assessment) (Response, error) {
	nextID, terminal, err := o.seq.Advance(ctx, userID)
	if err != nil {
		return Response{}, err
	}

	if !terminal {
		next, err := o.catalog.Lookup(nextID)
		if err != nil {
			return Response{}, err
		}
		o.metrics.Advance(string(done.ID))
		o.record(ctx, userID, done.ID, logging.ProvenanceEntry{
			VersionID: final.VersionID,
			Decision:  logging.DecisionAdvance,
			Reason:    fmt.Sprintf("advanced to %s", next.ID),
		})
		return Response{Kind: KindQuestion, Text: transition(done, next, final.Scores), Scores: final.Scores.Clone()}, nil
	}

	o.metrics.Completed()
	text := o.recommend(ctx, userID)
	o.record(ctx, userID, done.ID, logging.ProvenanceEntry{
		VersionID: final.VersionID,
		Decision:  logging.DecisionFinish,
		Reason:    "all inventories complete",
	})
	return Response{Kind: KindFinish, Text: text}, nil
}

func (o *Orchestrator) recommend(ctx context.Context, userID string) string {
	if o.synth == nil {
		return recommend.FallbackMessage
	}
	scores := make(map[inventory.ID]state.Vector, o.catalog.Len())
	for _, p := range o.catalog.Profiles() {
		a, err := o.assessment(ctx, userID, p)
		if err != nil {
			o.log.Error().Err(err).Str("user", userID).Msg("load final scores")
			return recommend.FallbackMessage
		}
		scores[p.ID] = a.Scores
	}

	rctx, cancel := context.WithTimeout(ctx, o.opts.RecommendTimeout)
	defer cancel()
	rec, err := o.synth.Synthesize(rctx, recommend.Summarize(o.catalog.Profiles(), scores))
	if err != nil {
		o.log.Warn().Err(err).Str("user", userID).Msg("recommendation failed, using fallback")
		return recommend.FallbackMessage
	}
	return recommend.Render(rec)
}

// #endregion

// #region auxiliary

// CurrentInventory reports the user's active inventory without creating a session.
func (o *Orchestrator) CurrentInventory(ctx context.Context, userID string) (inventory.ID, error) {
	return o.seq.Peek(ctx, userID)
}

// History returns the recorded turns for (userID, inv).
func (o *Orchestrator) History(ctx context.Context, userID string, inv inventory.ID) ([]state.Turn, error) {
	if _, err := o.catalog.Lookup(inv); err != nil {
		return nil, err
	}
	return o.store.History(ctx, state.Key{UserID: userID, Inventory: inv})
}

// Assessments returns the user's stored assessments in stage order.
// Inventories never touched are omitted.
func (o *Orchestrator) Assessments(ctx context.Context, userID string) ([]state.Assessment, error) {
	var out []state.Assessment
	for _, p := range o.catalog.Profiles() {
		a, ok, err := o.store.Assessment(ctx, state.Key{UserID: userID, Inventory: p.ID})
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", p.ID, err)
		}
		if ok {
			out = append(out, a)
		}
	}
	return out, nil
}

// Reset deletes every trace of userID's session. The next message starts
// from the first inventory with empty state.
func (o *Orchestrator) Reset(ctx context.Context, userID string) error {
	unlock := o.locks.lock(userID)
	defer unlock()

	if err := o.store.DeleteUser(ctx, userID); err != nil {
		return fmt.Errorf("reset %s: %w", userID, err)
	}
	o.metrics.Reset()
	if o.recorder != nil {
		o.recorder.Record(ctx, logging.ProvenanceEntry{
			UserID:      userID,
			TriggerType: logging.TriggerReset,
			Decision:    logging.DecisionReset,
		})
	}
	o.log.Info().Str("user", userID).Msg("session reset")
	return nil
}

// #endregion

// #region helpers

func (o *Orchestrator) assessment(ctx context.Context, userID string, p inventory.Profile) (state.Assessment, error) {
	a, ok, err := o.store.Assessment(ctx, state.Key{UserID: userID, Inventory: p.ID})
	if err != nil {
		return state.Assessment{}, fmt.Errorf("load assessment: %w", err)
	}
	if !ok {
		return state.Initial(userID, p), nil
	}
	return a, nil
}

func (o *Orchestrator) record(ctx context.Context, userID string, inv inventory.ID, e logging.ProvenanceEntry) {
	if o.recorder == nil {
		return
	}
	e.UserID = userID
	e.Inventory = string(inv)
	e.TriggerType = logging.TriggerTurn
	o.recorder.Record(ctx, e)
}

// encode returns v as JSON for the provenance and version tables. Failures
// are logged and leave the column empty.
func (o *Orchestrator) encode(v any, what string) string {
	data, err := json.Marshal(v)
	if err != nil {
		o.log.Error().Err(err).Str("field", what).Msg("encode failed")
		return ""
	}
	return string(data)
}

func window(history []state.Turn, max int) []state.Turn {
	if max <= 0 || len(history) <= max {
		return history
	}
	return history[len(history)-max:]
}

func failureKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, oracle.ErrContract):
		return "contract"
	default:
		return "transport"
	}
}

func transition(done, next inventory.Profile, scores state.Vector) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Thank you! The %q section is complete.\n", done.Title)
	fmt.Fprintf(&b, "Your results: %s\n\n", recommend.FormatVector(done.Dimensions, scores))
	fmt.Fprintf(&b, "Next: %s.", next.Title)
	if next.Opening != "" {
		b.WriteString(" ")
		b.WriteString(next.Opening)
	}
	return b.String()
}

// #endregion
