// Package app is the composition root: it turns a Config into a running
// orchestrator and owns the resources behind it.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/danielpatrickdp/adaptive-assessment/internal/config"
	"github.com/danielpatrickdp/adaptive-assessment/internal/inventory"
	"github.com/danielpatrickdp/adaptive-assessment/internal/llm"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/observability"
	"github.com/danielpatrickdp/adaptive-assessment/internal/oracle"
	"github.com/danielpatrickdp/adaptive-assessment/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-assessment/internal/recommend"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/danielpatrickdp/adaptive-assessment/internal/update"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
)

// App holds the wired engine and the resources it needs closed.
type App struct {
	Config   *config.Config
	Log      zerolog.Logger
	Catalog  *inventory.Catalog
	Store    state.Store
	Registry *prometheus.Registry
	Metrics  *observability.Metrics
	Engine   *orchestrator.Orchestrator

	closers []func() error
}

// Option overrides a collaborator, mostly for tests.
type Option func(*overrides)

type overrides struct {
	oracle  oracle.Oracle
	synth   recommend.Synthesizer
	noSynth bool
}

// WithOracle skips building the configured oracle transport.
func WithOracle(o oracle.Oracle) Option {
	return func(ov *overrides) { ov.oracle = o }
}

// WithSynthesizer replaces the LLM synthesizer. A nil value disables
// synthesis and the fallback text is used.
func WithSynthesizer(s recommend.Synthesizer) Option {
	return func(ov *overrides) {
		ov.synth = s
		ov.noSynth = s == nil
	}
}

// New validates cfg and wires every component.
func New(ctx context.Context, cfg *config.Config, log zerolog.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	var ov overrides
	for _, opt := range opts {
		opt(&ov)
	}

	a := &App{Config: cfg, Log: log}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	cat, err := inventory.LoadCatalog(cfg.Catalog.Path)
	if err != nil {
		return nil, err
	}
	a.Catalog = cat

	var recorder *logging.Recorder
	switch cfg.Store.Driver {
	case "sqlite":
		s, err := state.NewSQLiteStore(ctx, cfg.Store.DSN)
		if err != nil {
			return nil, err
		}
		a.Store = s
		a.closers = append(a.closers, s.Close)
		recorder = logging.NewRecorder(s.DB(), log)
	default:
		s := state.NewMemoryStore()
		a.Store = s
		recorder = logging.NewRecorder(nil, log)
	}

	orc := ov.oracle
	if orc == nil {
		if orc, err = a.buildOracle(); err != nil {
			return nil, err
		}
	}

	synth := ov.synth
	if synth == nil && !ov.noSynth {
		synth = a.buildSynthesizer()
	}

	a.Registry = prometheus.NewRegistry()
	a.Metrics = observability.New(a.Registry)

	engineOpts := orchestrator.DefaultOptions()
	engineOpts.Weights = update.Weights{Old: cfg.Merge.WeightOld, New: cfg.Merge.WeightNew}
	engineOpts.OracleTimeout = cfg.Oracle.Timeout
	engineOpts.RecommendTimeout = cfg.Recommend.Timeout
	engineOpts.MaxContextTurns = cfg.History.MaxContextTurns

	a.Engine = orchestrator.New(orchestrator.Deps{
		Catalog:     cat,
		Store:       a.Store,
		Oracle:      orc,
		Synthesizer: synth,
		Recorder:    recorder,
		Metrics:     a.Metrics,
		Logger:      log,
	}, engineOpts)

	log.Info().
		Str("store", cfg.Store.Driver).
		Str("oracle", cfg.Oracle.Transport).
		Int("inventories", cat.Len()).
		Msg("engine ready")
	ok = true
	return a, nil
}

func (a *App) buildOracle() (oracle.Oracle, error) {
	cfg := a.Config.Oracle
	switch cfg.Transport {
	case "grpc":
		g, err := oracle.NewGRPCOracle(cfg.GRPCAddr)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, g.Close)
		return g, nil
	default:
		client, err := llm.NewOpenAIClient(llm.OpenAIOptions{
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.BaseURL,
			Model:       cfg.Model,
			Temperature: 0.2,
			JSONMode:    true,
		}, a.Log)
		if err != nil {
			return nil, err
		}
		return oracle.NewLLMOracle(client), nil
	}
}

// buildSynthesizer returns nil when no API key is configured; the engine
// then answers with the fallback message.
func (a *App) buildSynthesizer() recommend.Synthesizer {
	client, err := llm.NewOpenAIClient(llm.OpenAIOptions{
		APIKey:      a.Config.Oracle.APIKey,
		BaseURL:     a.Config.Oracle.BaseURL,
		Model:       a.Config.Recommend.Model,
		Temperature: 0.7,
		JSONMode:    true,
	}, a.Log)
	if err != nil {
		a.Log.Warn().Err(err).Msg("recommendation synthesis disabled")
		return nil
	}
	return recommend.NewLLMSynthesizer(client)
}

// SQLite returns the SQLite store when that driver is configured.
func (a *App) SQLite() (*state.SQLiteStore, bool) {
	s, ok := a.Store.(*state.SQLiteStore)
	return s, ok
}

// Close releases resources in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
