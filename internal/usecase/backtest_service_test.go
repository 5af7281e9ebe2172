package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRunner holds every run until release is closed or its ctx ends.
type blockingRunner struct {
	calls   atomic.Int32
	started chan context.Context
	release chan struct{}
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan context.Context, 4), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context, cfg models.BacktestConfig, series []models.PricePoint) (*models.BacktestResult, error) {
	r.calls.Add(1)
	r.started <- ctx
	select {
	case <-r.release:
		return NewBacktestSimulator().Run(ctx, cfg, series)
	case <-ctx.Done():
		return nil, &models.SimulationError{Err: ctx.Err()}
	}
}

func memoryCache(t *testing.T) cache.Service {
	c := cache.NewLayeredCache(nil, cache.WithLayeredMemory(cache.WithMemoryCleanup(0)))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestBacktestServiceDedupsConcurrentRuns(t *testing.T) {
	runner := newBlockingRunner()
	m := newFakeMetrics()
	svc := NewBacktestService(runner, m, nil)
	cfg, series := testBacktestConfig(20), cycleSeries()

	var wg sync.WaitGroup
	results := make([]*models.BacktestResult, 2)
	errs := make([]error, 2)
	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svc.Run(context.Background(), cfg, series)
	}()
	<-runner.started

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[1], errs[1] = svc.Run(context.Background(), cfg, series)
	}()
	require.Eventually(t, func() bool { return m.dedupCount() == 1 }, time.Second, 5*time.Millisecond)
	close(runner.release)
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Same(t, results[0], results[1])
	assert.EqualValues(t, 1, runner.calls.Load())
	assert.Equal(t, 1, m.backtest("ok"))
}

func TestBacktestServiceCancelsOnlyWhenAllWaitersLeave(t *testing.T) {
	runner := newBlockingRunner()
	svc := NewBacktestService(runner, newFakeMetrics(), nil)
	cfg, series := testBacktestConfig(20), cycleSeries()

	ctxA, cancelA := context.WithCancel(context.Background())
	ctxB, cancelB := context.WithCancel(context.Background())
	defer cancelB()

	doneA := make(chan error, 1)
	doneB := make(chan error, 1)
	go func() {
		_, err := svc.Run(ctxA, cfg, series)
		doneA <- err
	}()
	runCtx := <-runner.started
	go func() {
		_, err := svc.Run(ctxB, cfg, series)
		doneB <- err
	}()
	require.Eventually(t, func() bool {
		svc.mu.Lock()
		defer svc.mu.Unlock()
		for _, f := range svc.flights {
			return f.waiters == 2
		}
		return false
	}, time.Second, 5*time.Millisecond)

	cancelA()
	require.ErrorIs(t, <-doneA, context.Canceled)
	assert.NoError(t, runCtx.Err(), "shared run must survive while a waiter remains")

	cancelB()
	require.ErrorIs(t, <-doneB, context.Canceled)
	require.Eventually(t, func() bool { return runCtx.Err() != nil }, time.Second, 5*time.Millisecond)
	assert.EqualValues(t, 1, runner.calls.Load())
}

func TestBacktestServiceServesCachedResult(t *testing.T) {
	m := newFakeMetrics()
	pub := &fakePublisher{}
	svc := NewBacktestService(NewBacktestSimulator(), m, nil,
		WithResultCache(memoryCache(t), time.Minute),
		WithBacktestPublisher(pub))
	cfg, series := testBacktestConfig(20), cycleSeries()

	first, err := svc.Run(context.Background(), cfg, series)
	require.NoError(t, err)
	second, err := svc.Run(context.Background(), cfg, series)
	require.NoError(t, err)

	assert.Equal(t, first.Metrics, second.Metrics)
	assert.Len(t, second.Trades, len(first.Trades))
	assert.Equal(t, 1, m.backtest("ok"))
	assert.Equal(t, 1, m.backtest("cached"))

	require.Equal(t, 1, pub.summaryCount())
	fp, err := BacktestFingerprint(cfgWithDefaults(t, cfg), series)
	require.NoError(t, err)
	assert.Equal(t, fp, pub.summaries[0].Fingerprint)
	assert.Equal(t, "BTCUSDT", pub.summaries[0].Symbol)
}

func cfgWithDefaults(t *testing.T, cfg models.BacktestConfig) models.BacktestConfig {
	require.NoError(t, ApplyBacktestDefaults(&cfg))
	return cfg
}

func TestBacktestServiceLoadsHistory(t *testing.T) {
	store := &fakePriceStore{}
	for _, p := range cycleSeries() {
		store.candles = append(store.candles, models.Candle{Bucket: p.Timestamp, Symbol: "BTCUSDT", Close: p.Price, Volume: p.Volume})
	}
	svc := NewBacktestService(NewBacktestSimulator(), newFakeMetrics(), nil, WithPriceHistory(store, "1d"))

	fromStore, err := svc.Run(context.Background(), testBacktestConfig(20), nil)
	require.NoError(t, err)
	direct, err := NewBacktestSimulator().Run(context.Background(), cfgWithDefaults(t, testBacktestConfig(20)), cycleSeries())
	require.NoError(t, err)
	assert.Equal(t, direct.Metrics, fromStore.Metrics)
	assert.Equal(t, 1, store.calls)

	cfg := testBacktestConfig(20)
	cfg.Symbol = "ETHUSDT"
	_, err = svc.Run(context.Background(), cfg, nil)
	assert.ErrorIs(t, err, models.ErrNoPriceHistory)
}

func TestBacktestServiceWithoutStore(t *testing.T) {
	svc := NewBacktestService(NewBacktestSimulator(), newFakeMetrics(), nil)
	_, err := svc.Run(context.Background(), testBacktestConfig(20), nil)
	assert.ErrorIs(t, err, models.ErrNoPriceHistory)
}

func TestBacktestServiceValidatesBeforeLoading(t *testing.T) {
	store := &fakePriceStore{err: errors.New("unreachable")}
	svc := NewBacktestService(NewBacktestSimulator(), newFakeMetrics(), nil, WithPriceHistory(store, "1d"))
	cfg := testBacktestConfig(20)
	cfg.InitialCapital = 0

	_, err := svc.Run(context.Background(), cfg, nil)
	var verrs models.ValidationErrors
	require.ErrorAs(t, err, &verrs)
	assert.Equal(t, 0, store.calls)
}
