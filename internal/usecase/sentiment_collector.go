package usecase

import (
	"context"
	"fmt"
	"sync"
	"time"

	drepo "RiskDesk/internal/domain/repository"
	dsvc "RiskDesk/internal/domain/service"
	applogger "RiskDesk/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// SentimentCollector polls the sentiment analyzers on a fixed period and stores the
// readings in MarketState. A failed source keeps its previous reading.
type SentimentCollector struct {
	symbol    string
	analyzers []dsvc.SentimentAnalyzer
	state     *MarketState
	metrics   drepo.Metrics
	l         *applogger.Logger
	interval  time.Duration
	timeout   time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewSentimentCollector(symbol string, interval time.Duration, state *MarketState, metrics drepo.Metrics, l *applogger.Logger, analyzers ...dsvc.SentimentAnalyzer) *SentimentCollector {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if l == nil {
		l = applogger.NewNop()
	}
	return &SentimentCollector{
		symbol:    symbol,
		analyzers: analyzers,
		state:     state,
		metrics:   metrics,
		l:         l,
		interval:  interval,
		timeout:   interval,
	}
}

// Start polls once immediately, then every interval until ctx ends.
func (c *SentimentCollector) Start(ctx context.Context) {
	ctx, c.cancel = context.WithCancel(ctx)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		_, _ = c.Poll(ctx)
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				_, _ = c.Poll(ctx)
			}
		}
	}()
}

// Poll queries every analyzer concurrently and returns the number that
// succeeded and the first failure. Sources are independent: a failing one
// neither cancels the others nor clears its previous reading.
func (c *SentimentCollector) Poll(ctx context.Context) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var (
		mu sync.Mutex
		ok int
		g  errgroup.Group
	)
	for _, a := range c.analyzers {
		a := a
		g.Go(func() error {
			r, err := a.Analyze(ctx, c.symbol)
			if err != nil {
				c.metrics.RecordError("sentiment_" + a.Source())
				c.l.Warn("sentiment poll failed",
					applogger.String("source", a.Source()),
					applogger.String("symbol", c.symbol),
					applogger.Error(err))
				return fmt.Errorf("%s: %w", a.Source(), err)
			}
			c.state.SetSentiment(r)
			mu.Lock()
			ok++
			mu.Unlock()
			return nil
		})
	}
	err := g.Wait()
	return ok, err
}

// Wait blocks until the polling goroutine has exited.
func (c *SentimentCollector) Wait() { c.wg.Wait() }

// Stop ends polling and waits for an in-flight poll up to ctx.
func (c *SentimentCollector) Stop(ctx context.Context) error {
	if c.cancel != nil {
		c.cancel()
	}
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
