package app

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/danielpatrickdp/adaptive-assessment/internal/config"
	"github.com/danielpatrickdp/adaptive-assessment/internal/logging"
	"github.com/danielpatrickdp/adaptive-assessment/internal/oracle"
	"github.com/danielpatrickdp/adaptive-assessment/internal/orchestrator"
	"github.com/danielpatrickdp/adaptive-assessment/internal/state"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func baseConfig() *config.Config {
	return &config.Config{
		Store:     config.StoreConfig{Driver: "memory"},
		Oracle:    config.OracleConfig{Transport: "openai", Model: "m", Timeout: time.Second},
		Recommend: config.RecommendConfig{Model: "m", Timeout: time.Second},
		Merge:     config.MergeConfig{WeightOld: 0.7, WeightNew: 0.3},
	}
}

var constant = oracle.Func(func(_ context.Context, req oracle.Request) (state.Observation, error) {
	obs := state.Observation{Scores: state.Vector{}, Confidence: state.Vector{}, NextQuestion: "go on"}
	for _, d := range req.Profile.Dimensions {
		obs.Scores[d] = 1
		obs.Confidence[d] = 1
	}
	return obs, nil
})

func TestNew_Memory(t *testing.T) {
	a, err := New(context.Background(), baseConfig(), zerolog.Nop(), WithOracle(constant), WithSynthesizer(nil))
	require.NoError(t, err)
	defer a.Close()

	_, isSQL := a.SQLite()
	assert.False(t, isSQL)
	assert.Equal(t, 5, a.Catalog.Len())

	resp, err := a.Engine.Handle(context.Background(), "u1", "hello")
	require.NoError(t, err)
	assert.Equal(t, orchestrator.KindQuestion, resp.Kind)
	assert.InDelta(t, 0.3, resp.Scores["R"], 1e-9)
}

func TestNew_SQLiteRecordsProvenance(t *testing.T) {
	cfg := baseConfig()
	cfg.Store = config.StoreConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "app.db")}
	cfg.Merge = config.MergeConfig{WeightOld: 0.5, WeightNew: 0.5}

	ctx := context.Background()
	a, err := New(ctx, cfg, zerolog.Nop(), WithOracle(constant), WithSynthesizer(nil))
	require.NoError(t, err)
	defer a.Close()

	resp, err := a.Engine.Handle(ctx, "u1", "hello")
	require.NoError(t, err)
	assert.InDelta(t, 0.5, resp.Scores["R"], 1e-9)

	s, ok := a.SQLite()
	require.True(t, ok)
	entries, err := logging.ReadEntries(ctx, s.DB(), "u1", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "commit", entries[0].Decision)
}

func TestNew_InvalidConfig(t *testing.T) {
	cfg := baseConfig()
	cfg.Merge.WeightNew = 0.9
	_, err := New(context.Background(), cfg, zerolog.Nop(), WithOracle(constant))
	assert.Error(t, err)
}

func TestNew_OpenAIRequiresKey(t *testing.T) {
	_, err := New(context.Background(), baseConfig(), zerolog.Nop())
	assert.Error(t, err)
}

func TestNew_GRPCWithoutKeyFallsBack(t *testing.T) {
	cfg := baseConfig()
	cfg.Oracle.Transport = "grpc"
	cfg.Oracle.GRPCAddr = "localhost:1"

	a, err := New(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	assert.NoError(t, a.Close())
}
