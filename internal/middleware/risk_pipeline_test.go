package middleware

import (
	"context"
	"sync"
	"testing"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/usecase"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingMetrics struct {
	mu      sync.Mutex
	cycles  map[string]int
	actions map[string]int
	scores  int
}

func newCountingMetrics() *countingMetrics {
	return &countingMetrics{cycles: map[string]int{}, actions: map[string]int{}}
}

func (m *countingMetrics) RecordCycle(component, result string) {
	m.mu.Lock()
	m.cycles[component+"/"+result]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordCycleLatency(string, time.Duration) {}
func (m *countingMetrics) RecordRiskScore(*models.RiskScore) {
	m.mu.Lock()
	m.scores++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordAction(t string) {
	m.mu.Lock()
	m.actions[t]++
	m.mu.Unlock()
}
func (m *countingMetrics) RecordSignal(string)                  {}
func (m *countingMetrics) RecordBacktest(string, time.Duration) {}
func (m *countingMetrics) RecordBacktestDedup()                 {}
func (m *countingMetrics) RecordError(string)                   {}

func (m *countingMetrics) cycle(key string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles[key]
}

type recordingSink struct {
	mu         sync.Mutex
	aggregates int
	scores     int
	actions    []models.ControlAction
}

func (s *recordingSink) PublishAggregate(context.Context, *models.AggregatedData) error {
	s.mu.Lock()
	s.aggregates++
	s.mu.Unlock()
	return nil
}
func (s *recordingSink) PublishScore(context.Context, *models.RiskScore) error {
	s.mu.Lock()
	s.scores++
	s.mu.Unlock()
	return nil
}
func (s *recordingSink) PublishBacktest(context.Context, *models.BacktestSummary) error { return nil }
func (s *recordingSink) Close() error                                                   { return nil }
func (s *recordingSink) Execute(_ context.Context, actions []models.ControlAction) error {
	s.mu.Lock()
	s.actions = append(s.actions, actions...)
	s.mu.Unlock()
	return nil
}

func newTestPipeline(t *testing.T, state *usecase.MarketState, m *countingMetrics, sink *recordingSink, opts ...PipelineOption) (*RiskPipeline, Stages) {
	scorer, err := usecase.NewRiskScorer(usecase.DefaultScorerConfig())
	require.NoError(t, err)
	stages := Stages{
		Aggregator: usecase.NewSignalAggregator(usecase.DefaultAggregatorConfig()),
		Scorer:     scorer,
		Controller: usecase.NewRiskController(usecase.DefaultControllerConfig()),
		Alerts:     usecase.NewAlertStore(10, nil),
		Signals:    usecase.NewSignalLog(10),
	}
	opts = append([]PipelineOption{WithPublisher(sink), WithExecutor(sink)}, opts...)
	return NewRiskPipeline(state, stages, m, opts...), stages
}

func readyState() *usecase.MarketState {
	s := usecase.NewMarketState(10)
	s.SetView(&models.MarketView{
		Symbol:    "BTCUSDT",
		Timestamp: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Price:     models.PriceStats{Current: 100, Change24h: 0.08, Volume24h: 1000},
	})
	s.SetSentiment(&models.SentimentReading{Source: "news", OverallSentiment: 0.1, ConfidenceScore: 0.5})
	s.SetSentiment(&models.SentimentReading{Source: "social", OverallSentiment: 0.1, ConfidenceScore: 0.5})
	s.SetPosition(models.PositionState{Exposure: 1000, MaxExposure: 2000})
	s.SetExecution(models.ExecutionState{RecentSlippage: 0.05})
	return s
}

func TestTickSkipsWithoutInputs(t *testing.T) {
	m := newCountingMetrics()
	p, _ := newTestPipeline(t, usecase.NewMarketState(10), m, &recordingSink{})

	require.NoError(t, p.Tick(context.Background()))
	assert.Equal(t, 1, m.cycle("aggregator/skipped"))
	_, ok := p.LatestAggregate()
	assert.False(t, ok)
}

func TestTickAggregatesAndSamplesPrice(t *testing.T) {
	state := readyState()
	m := newCountingMetrics()
	sink := &recordingSink{}
	p, stages := newTestPipeline(t, state, m, sink)

	require.NoError(t, p.Tick(context.Background()))
	agg, ok := p.LatestAggregate()
	require.True(t, ok)
	require.Len(t, agg.Signals, 1)
	assert.Equal(t, models.SignalPrice, agg.Signals[0].Type)
	assert.Equal(t, []float64{100}, state.Snapshot().History)
	assert.Equal(t, 1, stages.Signals.Len())
	assert.Equal(t, 1, sink.aggregates)
	assert.Equal(t, 1, m.cycle("aggregator/ok"))
	assert.Len(t, p.events, 1)
}

func TestOfferKeepsNewest(t *testing.T) {
	p, _ := newTestPipeline(t, readyState(), newCountingMetrics(), &recordingSink{})
	p.offer(scoreEvent{position: models.PositionState{Exposure: 1}})
	p.offer(scoreEvent{position: models.PositionState{Exposure: 2}})

	require.Len(t, p.events, 1)
	ev := <-p.events
	assert.Equal(t, 2.0, ev.position.Exposure)
}

func TestAssessRaisesActionsOncePerCooldown(t *testing.T) {
	state := readyState()
	m := newCountingMetrics()
	sink := &recordingSink{}
	p, stages := newTestPipeline(t, state, m, sink)
	require.NoError(t, p.Tick(context.Background()))

	ev := <-p.events
	p.assess(context.Background(), ev)
	p.assess(context.Background(), ev)

	score, ok := p.LatestScore()
	require.True(t, ok)
	assert.InDelta(t, 1.0, score.Components.Execution.SlippageRisk, 1e-9)
	assert.Equal(t, 2, sink.scores)

	require.Len(t, sink.actions, 1)
	assert.Equal(t, models.ActionSlippageNotice, sink.actions[0].Type)
	assert.Len(t, stages.Alerts.List(0, false), 1)
	assert.Equal(t, 1, m.actions[string(models.ActionSlippageNotice)])
	assert.Equal(t, 2, m.cycle("controller/ok"))
}

func TestPipelineRunsUntilStopped(t *testing.T) {
	m := newCountingMetrics()
	p, _ := newTestPipeline(t, readyState(), m, &recordingSink{},
		WithInterval(10*time.Millisecond), WithTickTimeout(time.Second))
	assert.Equal(t, 10*time.Millisecond, p.tickTimeout)

	p.Start(context.Background())
	require.Eventually(t, func() bool {
		_, ok := p.LatestScore()
		return ok
	}, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, p.Stop(ctx))
	require.NoError(t, p.Stop(ctx))
}
