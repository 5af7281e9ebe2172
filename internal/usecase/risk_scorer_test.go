package usecase

import (
	"math"
	"testing"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/pkg/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestScorer(t *testing.T) *RiskScorer {
	t.Helper()
	s, err := NewRiskScorer(DefaultScorerConfig())
	require.NoError(t, err)
	return s
}

func assertUnit(t *testing.T, name string, v float64) {
	t.Helper()
	assert.False(t, math.IsNaN(v), "%s is NaN", name)
	assert.GreaterOrEqual(t, v, 0.0, name)
	assert.LessOrEqual(t, v, 1.0, name)
}

func TestScoreComponents(t *testing.T) {
	s := newTestScorer(t)
	data := &models.AggregatedData{
		Volatility: models.VolatilityEstimate{Current: 0.5},
		Liquidity:  models.LiquidityEstimate{DepthScore: 0.75},
	}
	pos := models.PositionState{
		Exposure: 50, MaxExposure: 100,
		Leverage: 2, MaxLeverage: 4,
		MarginUsed: 25, MarginAvailable: 75,
	}
	exec := models.ExecutionState{RecentSlippage: 0.005, AvgLatency: 500 * time.Millisecond}

	got := s.Score(data, pos, exec)

	assert.InDelta(t, 0.6*0.5+0.4*0.25, got.Components.Market.Score, 1e-12)
	assert.InDelta(t, 0.4*0.5+0.3*0.5+0.3*0.25, got.Components.Position.Score, 1e-12)
	assert.InDelta(t, 0.6*0.5+0.4*0.5, got.Components.Execution.Score, 1e-12)
	assert.Equal(t, 0.0, got.Components.Systemic.Score)

	want := 0.3*got.Components.Market.Score + 0.3*got.Components.Position.Score + 0.2*got.Components.Execution.Score
	assert.InDelta(t, want, got.TotalScore, 1e-12)
	assert.Equal(t, models.RiskLow, got.Level)
	assert.Equal(t, models.TrendStable, got.Trend)
}

func TestScoreZeroDenominators(t *testing.T) {
	s := newTestScorer(t)
	got := s.Score(&models.AggregatedData{Liquidity: models.LiquidityEstimate{DepthScore: 1}}, models.PositionState{Exposure: 10}, models.ExecutionState{})
	assert.Equal(t, 0.0, got.Components.Position.Score)
	assert.Equal(t, 0.0, got.TotalScore)
}

func TestScoreStaysBoundedOnWildInputs(t *testing.T) {
	s := newTestScorer(t)
	inputs := []struct {
		data models.AggregatedData
		pos  models.PositionState
		exec models.ExecutionState
	}{
		{
			data: models.AggregatedData{Volatility: models.VolatilityEstimate{Current: 50}, Liquidity: models.LiquidityEstimate{DepthScore: -3}},
			pos:  models.PositionState{Exposure: 1e9, MaxExposure: 1, Leverage: 100, MaxLeverage: 1, MarginUsed: 10, MarginAvailable: -20},
			exec: models.ExecutionState{RecentSlippage: -4, AvgLatency: time.Hour},
		},
		{
			data: models.AggregatedData{Volatility: models.VolatilityEstimate{Current: math.NaN()}, Liquidity: models.LiquidityEstimate{DepthScore: math.Inf(1)}},
			pos:  models.PositionState{Exposure: math.NaN(), MaxExposure: math.NaN()},
			exec: models.ExecutionState{RecentSlippage: math.Inf(-1)},
		},
	}
	for _, in := range inputs {
		got := s.Score(&in.data, in.pos, in.exec)
		assertUnit(t, "market", got.Components.Market.Score)
		assertUnit(t, "position", got.Components.Position.Score)
		assertUnit(t, "execution", got.Components.Execution.Score)
		assertUnit(t, "systemic", got.Components.Systemic.Score)
		assertUnit(t, "total", got.TotalScore)
	}
}

func TestSystemicRiskUsesCorrelations(t *testing.T) {
	base := models.PositionState{
		Exposure: 100, MaxExposure: 100,
		Positions: []models.PositionExposure{{Symbol: "A", Exposure: 50}, {Symbol: "B", Exposure: 50}},
	}
	correlated := base
	correlated.Correlations = map[string]float64{models.CorrelationKey("A", "B"): 1}
	hedged := base
	hedged.Correlations = map[string]float64{models.CorrelationKey("B", "A"): -1}

	s := newTestScorer(t)
	full := s.Score(&models.AggregatedData{}, correlated, models.ExecutionState{})
	none := s.Score(&models.AggregatedData{}, hedged, models.ExecutionState{})
	indep := s.Score(&models.AggregatedData{}, base, models.ExecutionState{})

	assert.InDelta(t, 1.0, full.Components.Systemic.Score, 1e-12)
	assert.InDelta(t, 0.0, none.Components.Systemic.Score, 1e-12)
	assert.InDelta(t, math.Sqrt(2)/2, indep.Components.Systemic.Score, 1e-12)
}

func TestLevelIsMonotonic(t *testing.T) {
	cut := config.DefaultCutoffs()
	rank := map[models.RiskLevel]int{models.RiskLow: 0, models.RiskMedium: 1, models.RiskHigh: 2, models.RiskExtreme: 3}
	prev := -1
	for i := 0; i <= 1000; i++ {
		r := rank[LevelFor(float64(i)/1000, cut)]
		require.GreaterOrEqual(t, r, prev)
		prev = r
	}
	assert.Equal(t, models.RiskLow, LevelFor(0.39, cut))
	assert.Equal(t, models.RiskMedium, LevelFor(0.4, cut))
	assert.Equal(t, models.RiskHigh, LevelFor(0.6, cut))
	assert.Equal(t, models.RiskExtreme, LevelFor(0.8, cut))
}

func TestScoreTrend(t *testing.T) {
	s := newTestScorer(t)
	low := &models.AggregatedData{Liquidity: models.LiquidityEstimate{DepthScore: 1}}
	high := &models.AggregatedData{Volatility: models.VolatilityEstimate{Current: 1}, Liquidity: models.LiquidityEstimate{DepthScore: 1}}

	first := s.Score(low, models.PositionState{}, models.ExecutionState{})
	assert.Equal(t, models.TrendStable, first.Trend)

	up := s.Score(high, models.PositionState{}, models.ExecutionState{})
	assert.Equal(t, models.TrendIncreasing, up.Trend)
	assert.InDelta(t, 0.18, up.Delta, 1e-12)

	down := s.Score(low, models.PositionState{}, models.ExecutionState{})
	assert.Equal(t, models.TrendDecreasing, down.Trend)

	prev, ok := s.Previous()
	require.True(t, ok)
	assert.Equal(t, down, prev)
}

func TestNewRiskScorerRejectsBadWeights(t *testing.T) {
	cfg := DefaultScorerConfig()
	cfg.Weights = config.Weights{}
	_, err := NewRiskScorer(cfg)
	assert.Error(t, err)

	cfg = DefaultScorerConfig()
	cfg.Cutoffs = config.Cutoffs{Medium: 0.5, High: 0.5, Extreme: 0.9}
	_, err = NewRiskScorer(cfg)
	assert.Error(t, err)
}
