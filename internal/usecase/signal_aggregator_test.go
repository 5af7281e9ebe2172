package usecase

import (
	"fmt"
	"testing"
	"time"

	"RiskDesk/internal/domain/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqIDs(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

func testInput(ts time.Time, change, volume float64) AggregateInput {
	return AggregateInput{
		View: &models.MarketView{
			Symbol:    "BTCUSDT",
			Timestamp: ts,
			Price:     models.PriceStats{Current: 100, Change24h: change, Volume24h: volume},
		},
		News:   &models.SentimentReading{Source: "news", OverallSentiment: 0.1, ConfidenceScore: 0.5},
		Social: &models.SentimentReading{Source: "social", OverallSentiment: 0.1, ConfidenceScore: 0.5},
	}
}

func TestAggregatePriceSignal(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig(), WithSignalIDs(seqIDs("sig")))
	ts := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	out, err := agg.Aggregate(testInput(ts, 0.08, 1000))
	require.NoError(t, err)
	require.Len(t, out.Signals, 1)

	s := out.Signals[0]
	assert.Equal(t, models.SignalPrice, s.Type)
	assert.Equal(t, models.DirectionBuy, s.Direction)
	assert.InDelta(t, 0.08, s.Strength, 1e-12)
	assert.InDelta(t, 0.8, s.Confidence, 1e-12)
	assert.Equal(t, ts, s.Timestamp)
	assert.Equal(t, 0.08, s.Metrics["change_24h"])
}

func TestAggregateSkipsWhenInputMissing(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig())
	in := testInput(time.Now(), 0, 0)
	in.News = nil

	_, err := agg.Aggregate(in)
	assert.ErrorIs(t, err, models.ErrInputUnavailable)

	_, err = agg.Aggregate(AggregateInput{})
	assert.ErrorIs(t, err, models.ErrInputUnavailable)
}

func TestAggregateSentimentSignal(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig())
	in := testInput(time.Now(), 0, 0)
	in.News.OverallSentiment = -0.5
	in.News.ConfidenceScore = 0.7

	out, err := agg.Aggregate(in)
	require.NoError(t, err)
	require.Len(t, out.Signals, 1)
	assert.Equal(t, models.SignalSentiment, out.Signals[0].Type)
	assert.Equal(t, models.DirectionSell, out.Signals[0].Direction)
	assert.InDelta(t, 0.5, out.Signals[0].Strength, 1e-12)
	assert.InDelta(t, 0.7, out.Signals[0].Confidence, 1e-12)
}

func TestAggregateCombinesSentimentByConfidence(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig())
	in := testInput(time.Now(), 0, 0)
	in.News.OverallSentiment, in.News.ConfidenceScore = 0.2, 0.75
	in.Social.OverallSentiment, in.Social.ConfidenceScore = -0.2, 0.25

	out, err := agg.Aggregate(in)
	require.NoError(t, err)
	assert.InDelta(t, 0.1, out.Sentiment.Score, 1e-12)
}

func TestAggregateLiquidityTrendAndDepth(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig())
	t0 := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)

	first, err := agg.Aggregate(testInput(t0, 0, 1000))
	require.NoError(t, err)
	assert.Equal(t, models.LiquidityStable, first.Liquidity.Trend)
	assert.Equal(t, 1.0, first.Liquidity.DepthScore)
	assert.InDelta(t, 10, first.Liquidity.Ratio, 1e-12)

	second, err := agg.Aggregate(testInput(t0.Add(time.Minute), 0, 500))
	require.NoError(t, err)
	assert.Equal(t, models.LiquidityDecreasing, second.Liquidity.Trend)
	assert.InDelta(t, 10, second.Liquidity.PriorRatio, 1e-12)
	assert.InDelta(t, 0.5, second.Liquidity.DepthScore, 1e-12)

	// the 24h max ages out
	third, err := agg.Aggregate(testInput(t0.Add(25*time.Hour), 0, 500))
	require.NoError(t, err)
	assert.Equal(t, models.LiquidityStable, third.Liquidity.Trend)
	assert.Equal(t, 1.0, third.Liquidity.DepthScore)
}

func TestAggregateVolumeSpikeNeedsPriorCycle(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig())
	t0 := time.Now()

	out, err := agg.Aggregate(testInput(t0, 0.01, 1000))
	require.NoError(t, err)
	assert.Empty(t, out.Signals)

	out, err = agg.Aggregate(testInput(t0.Add(time.Second), 0.01, 4000))
	require.NoError(t, err)
	require.Len(t, out.Signals, 1)
	assert.Equal(t, models.SignalVolume, out.Signals[0].Type)
	assert.Equal(t, models.DirectionBuy, out.Signals[0].Direction)
	assert.InDelta(t, 0.75, out.Signals[0].Strength, 1e-12)
}

func TestAggregateRSISignal(t *testing.T) {
	agg := NewSignalAggregator(DefaultAggregatorConfig())
	in := testInput(time.Now(), 0, 0)
	in.View.Indicators.RSI = 85

	out, err := agg.Aggregate(in)
	require.NoError(t, err)
	require.Len(t, out.Signals, 1)
	assert.Equal(t, models.SignalTechnical, out.Signals[0].Type)
	assert.Equal(t, models.DirectionSell, out.Signals[0].Direction)
	assert.InDelta(t, 0.5, out.Signals[0].Strength, 1e-12)

	// zero RSI means "not reported"
	in.View.Indicators.RSI = 0
	out, err = agg.Aggregate(in)
	require.NoError(t, err)
	assert.Empty(t, out.Signals)
}

func TestAggregateVolatility(t *testing.T) {
	agg := NewSignalAggregator(AggregatorConfig{VolatilityWindow: 2})
	in := testInput(time.Now(), 0, 0)
	in.History = []float64{100, 110, 99, 100}

	out, err := agg.Aggregate(in)
	require.NoError(t, err)
	assert.Greater(t, out.Volatility.Historical, 0.0)
	assert.Greater(t, out.Volatility.Current, 0.0)
	assert.InDelta(t, out.Volatility.Current*1.1, out.Volatility.Forecast, 1e-12)

	in.History = nil
	in.View.Price.Current = 0
	out, err = agg.Aggregate(in)
	require.NoError(t, err)
	assert.Equal(t, models.VolatilityEstimate{}, out.Volatility)
}

func TestSignalLogNewestFirstWithCap(t *testing.T) {
	log := NewSignalLog(3)
	for i := 0; i < 5; i++ {
		log.Append(models.Signal{ID: fmt.Sprintf("s%d", i)})
	}
	got := log.List(0)
	require.Len(t, got, 3)
	assert.Equal(t, "s4", got[0].ID)
	assert.Equal(t, "s2", got[2].ID)
	assert.Len(t, log.List(2), 2)

	unbounded := NewSignalLog(0)
	for i := 0; i < 50; i++ {
		unbounded.Append(models.Signal{})
	}
	assert.Equal(t, 50, unbounded.Len())
}
