package di

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	"FinFusion/pkg/config"
)

func mockConfig() *config.Config {
	cfg := config.Default()
	cfg.Mock.Enabled = true
	cfg.Mock.Seed = 7
	cfg.Log.Level = "error"
	cfg.Log.Output = "stderr"
	cfg.Pipeline.Period = 120
	return cfg
}

func TestInitializePipeline_MockAnalyze(t *testing.T) {
	p, cleanup, err := InitializePipeline(mockConfig())
	require.NoError(t, err)
	defer cleanup()

	ctx := context.Background()
	a, err := p.Service.Analyze(ctx, models.AnalysisRequest{Symbol: "aapl", Period: 120, Timeframe: "1d"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", a.Symbol)
	assert.NotEmpty(t, a.ID)
	assert.Contains(t, []models.Action{models.ActionStrongBuy, models.ActionBuy, models.ActionHold, models.ActionSell, models.ActionStrongSell}, a.Recommendation)

	hist, err := p.Service.History(ctx, "AAPL", 5)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, a.ID, hist[0].ID)
}

func TestInitializeApp_MockRunsAndStops(t *testing.T) {
	cfg := mockConfig()
	cfg.Server.Port = 0
	cfg.Server.ShutdownTimeout = 2 * time.Second

	app, cleanup, err := InitializeApp(cfg)
	require.NoError(t, err)
	defer cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	assert.NoError(t, app.RunContext(ctx))
}
