package usecase

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"RiskDesk/internal/domain/models"
	drepo "RiskDesk/internal/domain/repository"
)

type fakeMetrics struct {
	mu        sync.Mutex
	cycles    map[string]int
	errors    map[string]int
	actions   map[string]int
	signals   map[string]int
	backtests map[string]int
	dedup     int
	scores    int
}

var _ drepo.Metrics = (*fakeMetrics)(nil)

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{
		cycles:    map[string]int{},
		errors:    map[string]int{},
		actions:   map[string]int{},
		signals:   map[string]int{},
		backtests: map[string]int{},
	}
}

func (m *fakeMetrics) RecordCycle(component, result string) {
	m.mu.Lock()
	m.cycles[component+"/"+result]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordCycleLatency(string, time.Duration) {}

func (m *fakeMetrics) RecordRiskScore(*models.RiskScore) {
	m.mu.Lock()
	m.scores++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordAction(actionType string) {
	m.mu.Lock()
	m.actions[actionType]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordSignal(signalType string) {
	m.mu.Lock()
	m.signals[signalType]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordBacktest(result string, _ time.Duration) {
	m.mu.Lock()
	m.backtests[result]++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordBacktestDedup() {
	m.mu.Lock()
	m.dedup++
	m.mu.Unlock()
}

func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *fakeMetrics) cycle(component, result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cycles[component+"/"+result]
}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *fakeMetrics) backtest(result string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.backtests[result]
}

func (m *fakeMetrics) dedupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dedup
}

type fakePublisher struct {
	mu         sync.Mutex
	aggregates []models.AggregatedData
	scores     []models.RiskScore
	summaries  []models.BacktestSummary
}

var _ drepo.ReportPublisher = (*fakePublisher)(nil)

func (p *fakePublisher) PublishAggregate(_ context.Context, d *models.AggregatedData) error {
	p.mu.Lock()
	p.aggregates = append(p.aggregates, *d)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) PublishScore(_ context.Context, s *models.RiskScore) error {
	p.mu.Lock()
	p.scores = append(p.scores, *s)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) PublishBacktest(_ context.Context, s *models.BacktestSummary) error {
	p.mu.Lock()
	p.summaries = append(p.summaries, *s)
	p.mu.Unlock()
	return nil
}

func (p *fakePublisher) Close() error { return nil }

func (p *fakePublisher) summaryCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.summaries)
}

type fakePriceStore struct {
	candles []models.Candle
	err     error
	calls   int
}

func (s *fakePriceStore) GetCandles(_ context.Context, symbol string, from, to time.Time, _ drepo.Timeframe) ([]models.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	var out []models.Candle
	for _, c := range s.candles {
		if c.Symbol == symbol && !c.Bucket.Before(from) && !c.Bucket.After(to) {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakePriceStore) GetLatestNCandles(_ context.Context, symbol string, n int, _ drepo.Timeframe) ([]models.Candle, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	out := s.candles
	if len(out) > n {
		out = out[len(out)-n:]
	}
	return out, nil
}

type fakeEnqueuer struct {
	mu       sync.Mutex
	messages []enqueued
	err      error
}

type enqueued struct {
	msgType string
	payload json.RawMessage
}

func (q *fakeEnqueuer) Enqueue(_ context.Context, msgType string, payload interface{}) (string, error) {
	if q.err != nil {
		return "", q.err
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.messages = append(q.messages, enqueued{msgType: msgType, payload: b})
	return "msg-1", nil
}

type fakeExecutor struct {
	mu      sync.Mutex
	batches [][]models.ControlAction
}

func (e *fakeExecutor) Execute(_ context.Context, actions []models.ControlAction) error {
	e.mu.Lock()
	e.batches = append(e.batches, actions)
	e.mu.Unlock()
	return nil
}
