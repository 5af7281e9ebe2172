package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"RiskDesk/internal/domain/models"
	drepo "RiskDesk/internal/domain/repository"
	"RiskDesk/internal/services/features"
	"RiskDesk/pkg/cache"
	applogger "RiskDesk/pkg/logger"

	"golang.org/x/sync/singleflight"
)

const (
	backtestKeyPrefix     = "backtest"
	defaultBacktestTTL    = time.Hour
	backtestPublishBudget = 5 * time.Second
)

// BacktestRunner replays one config over one series.
type BacktestRunner interface {
	Run(ctx context.Context, cfg models.BacktestConfig, series []models.PricePoint) (*models.BacktestResult, error)
}

var _ BacktestRunner = (*BacktestSimulator)(nil)

// BacktestService runs backtests on demand. Identical requests in flight share one
// run; the shared run is cancelled only after every caller waiting on it has left.
// Completed results are cached by fingerprint and their summaries published.
type BacktestService struct {
	sim       BacktestRunner
	metrics   drepo.Metrics
	l         *applogger.Logger
	store     drepo.PriceHistoryStore
	tf        drepo.Timeframe
	cache     cache.Service
	ttl       time.Duration
	publisher drepo.ReportPublisher

	group   singleflight.Group
	mu      sync.Mutex
	flights map[string]*flight
}

// flight tracks callers sharing one singleflight call.
type flight struct {
	waiters int
	ctx     context.Context
	cancel  context.CancelFunc
}

type BacktestOption func(*BacktestService)

// WithPriceHistory lets Run load the series when the caller supplies none.
func WithPriceHistory(store drepo.PriceHistoryStore, tf drepo.Timeframe) BacktestOption {
	return func(s *BacktestService) {
		s.store, s.tf = store, tf
	}
}

func WithResultCache(c cache.Service, ttl time.Duration) BacktestOption {
	return func(s *BacktestService) {
		s.cache = c
		if ttl > 0 {
			s.ttl = ttl
		}
	}
}

func WithBacktestPublisher(p drepo.ReportPublisher) BacktestOption {
	return func(s *BacktestService) {
		s.publisher = p
	}
}

func NewBacktestService(sim BacktestRunner, metrics drepo.Metrics, l *applogger.Logger, opts ...BacktestOption) *BacktestService {
	if l == nil {
		l = applogger.NewNop()
	}
	s := &BacktestService{
		sim:     sim,
		metrics: metrics,
		l:       l,
		tf:      drepo.DefaultTimeframe(),
		ttl:     defaultBacktestTTL,
		flights: make(map[string]*flight),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// BacktestFingerprint identifies a run by its defaulted config and exact series.
func BacktestFingerprint(cfg models.BacktestConfig, series []models.PricePoint) (string, error) {
	b, err := json.Marshal(struct {
		Config models.BacktestConfig `json:"config"`
		Series []models.PricePoint   `json:"series"`
	}{cfg, series})
	if err != nil {
		return "", fmt.Errorf("fingerprint backtest: %w", err)
	}
	return cache.HashBytes(b), nil
}

// Run applies defaults, validates and replays cfg over series. A nil series is
// loaded from the price history store. The returned result is shared between
// deduplicated callers and must not be modified.
func (s *BacktestService) Run(ctx context.Context, cfg models.BacktestConfig, series []models.PricePoint) (*models.BacktestResult, error) {
	if err := ApplyBacktestDefaults(&cfg); err != nil {
		return nil, fmt.Errorf("apply backtest defaults: %w", err)
	}
	if err := ValidateBacktestConfig(cfg); err != nil {
		return nil, err
	}
	if series == nil {
		loaded, err := s.loadSeries(ctx, cfg)
		if err != nil {
			return nil, err
		}
		series = loaded
	}

	fp, err := BacktestFingerprint(cfg, series)
	if err != nil {
		return nil, err
	}
	key := cache.GenerateKey(backtestKeyPrefix, fp)
	if res, ok := s.cached(ctx, key); ok {
		s.metrics.RecordBacktest("cached", 0)
		return res, nil
	}
	return s.shared(ctx, key, fp, cfg, series)
}

func (s *BacktestService) loadSeries(ctx context.Context, cfg models.BacktestConfig) ([]models.PricePoint, error) {
	if s.store == nil {
		return nil, fmt.Errorf("%w: no price history store configured", models.ErrNoPriceHistory)
	}
	candles, err := s.store.GetCandles(ctx, cfg.Symbol, cfg.StartDate, inclusiveEnd(cfg.EndDate), s.tf)
	if err != nil {
		return nil, fmt.Errorf("load price history for %s: %w", cfg.Symbol, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("%w: %s %s..%s", models.ErrNoPriceHistory, cfg.Symbol,
			cfg.StartDate.Format(time.RFC3339), cfg.EndDate.Format(time.RFC3339))
	}
	return features.CandlesToSeries(candles), nil
}

func (s *BacktestService) cached(ctx context.Context, key string) (*models.BacktestResult, bool) {
	if s.cache == nil {
		return nil, false
	}
	res, err := cache.GetTyped[models.BacktestResult](ctx, s.cache, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			s.metrics.RecordError("backtest_cache")
			s.l.Warn("backtest cache read failed", applogger.String("key", key), applogger.Error(err))
		}
		return nil, false
	}
	return &res, true
}

func (s *BacktestService) shared(ctx context.Context, key, fp string, cfg models.BacktestConfig, series []models.PricePoint) (*models.BacktestResult, error) {
	s.mu.Lock()
	f, joined := s.flights[key]
	if !joined {
		runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
		f = &flight{ctx: runCtx, cancel: cancel}
		s.flights[key] = f
	}
	f.waiters++
	ch := s.group.DoChan(key, func() (interface{}, error) {
		return s.execute(f.ctx, key, fp, cfg, series)
	})
	s.mu.Unlock()
	if joined {
		s.metrics.RecordBacktestDedup()
	}

	select {
	case r := <-ch:
		s.release(key, f, false)
		if r.Err != nil {
			return nil, r.Err
		}
		return r.Val.(*models.BacktestResult), nil
	case <-ctx.Done():
		s.release(key, f, true)
		return nil, ctx.Err()
	}
}

// release drops one waiter. The last waiter to abandon cancels the run and
// forgets the call so a later request starts fresh.
func (s *BacktestService) release(key string, f *flight, abandoned bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	if s.flights[key] == f {
		delete(s.flights, key)
	}
	if abandoned {
		s.group.Forget(key)
	}
	f.cancel()
}

func (s *BacktestService) execute(ctx context.Context, key, fp string, cfg models.BacktestConfig, series []models.PricePoint) (*models.BacktestResult, error) {
	start := time.Now()
	res, err := s.sim.Run(ctx, cfg, series)
	elapsed := time.Since(start)
	if err != nil {
		result := "error"
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			result = "cancelled"
		}
		s.metrics.RecordBacktest(result, elapsed)
		s.l.Warn("backtest failed",
			applogger.String("symbol", cfg.Symbol),
			applogger.String("fingerprint", fp),
			applogger.String("result", result),
			applogger.Error(err))
		return nil, err
	}
	s.metrics.RecordBacktest("ok", elapsed)
	s.l.Info("backtest completed",
		applogger.String("symbol", cfg.Symbol),
		applogger.String("strategy", cfg.Strategy.Name),
		applogger.Int("trades", res.Metrics.TotalTrades),
		applogger.Duration("elapsed", elapsed))

	s.persist(ctx, key, fp, res)
	return res, nil
}

// persist caches the result and publishes its summary. Failures are logged only.
func (s *BacktestService) persist(ctx context.Context, key, fp string, res *models.BacktestResult) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), backtestPublishBudget)
	defer cancel()
	if s.cache != nil {
		if err := s.cache.Set(ctx, key, res, s.ttl); err != nil {
			s.metrics.RecordError("backtest_cache")
			s.l.Warn("backtest cache write failed", applogger.String("key", key), applogger.Error(err))
		}
	}
	if s.publisher != nil {
		summary := res.Summary()
		summary.Fingerprint = fp
		if err := s.publisher.PublishBacktest(ctx, &summary); err != nil {
			s.metrics.RecordError("backtest_publish")
			s.l.Warn("backtest summary publish failed", applogger.String("fingerprint", fp), applogger.Error(err))
		}
	}
}
