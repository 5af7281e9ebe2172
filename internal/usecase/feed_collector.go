package usecase

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"RiskDesk/internal/domain/models"
	drepo "RiskDesk/internal/domain/repository"
	"RiskDesk/internal/services/features"
	applogger "RiskDesk/pkg/logger"
)

// FeedCollector moves market snapshots from the feed into MarketState and
// reconnects when the stream fails.
type FeedCollector struct {
	feed    drepo.MarketFeed
	state   *MarketState
	metrics drepo.Metrics
	l       *applogger.Logger

	history   drepo.PriceHistoryStore
	symbol    string
	tf        drepo.Timeframe
	seedCount int

	closing atomic.Bool
	wg      sync.WaitGroup
}

type FeedOption func(*FeedCollector)

// WithHistorySeed loads the last n candles from store into the price window on Start.
func WithHistorySeed(store drepo.PriceHistoryStore, symbol string, tf drepo.Timeframe, n int) FeedOption {
	return func(c *FeedCollector) {
		c.history, c.symbol, c.tf, c.seedCount = store, symbol, tf, n
	}
}

func NewFeedCollector(feed drepo.MarketFeed, state *MarketState, metrics drepo.Metrics, l *applogger.Logger, opts ...FeedOption) *FeedCollector {
	if l == nil {
		l = applogger.NewNop()
	}
	c := &FeedCollector{feed: feed, state: state, metrics: metrics, l: l}
	for _, o := range opts {
		o(c)
	}
	return c
}

// IsConnected returns true if the market feed is connected.
func (c *FeedCollector) IsConnected() bool {
	return c.feed.IsConnected()
}

// Start seeds history, connects and consumes in the background until ctx ends.
func (c *FeedCollector) Start(ctx context.Context) error {
	c.seed(ctx)
	if err := c.feed.Connect(ctx); err != nil {
		return fmt.Errorf("feed connect: %w", err)
	}
	if err := c.feed.Subscribe(ctx); err != nil {
		return fmt.Errorf("feed subscribe: %w", err)
	}
	c.wg.Add(1)
	go c.run(ctx)
	return nil
}

func (c *FeedCollector) seed(ctx context.Context) {
	if c.history == nil || c.seedCount <= 0 {
		return
	}
	candles, err := c.history.GetLatestNCandles(ctx, c.symbol, c.seedCount, c.tf)
	if err != nil {
		c.metrics.RecordError("history_seed")
		c.l.Warn("price history seed failed", applogger.String("symbol", c.symbol), applogger.Error(err))
		return
	}
	c.state.SeedHistory(features.ClosePrices(candles))
	c.l.Info("price history seeded", applogger.String("symbol", c.symbol), applogger.Int("candles", len(candles)))
}

func (c *FeedCollector) run(ctx context.Context) {
	defer c.wg.Done()
	for {
		views, errs := c.feed.Read(ctx)
		err := c.consume(ctx, views, errs)
		if ctx.Err() != nil || c.closing.Load() {
			return
		}
		c.metrics.RecordError("feed")
		c.l.Warn("market feed interrupted, reconnecting", applogger.Error(err))
		for {
			if rerr := c.feed.Reconnect(ctx); rerr == nil {
				break
			} else if ctx.Err() != nil || c.closing.Load() {
				return
			} else {
				c.metrics.RecordError("feed_reconnect")
				c.l.Warn("market feed reconnect failed", applogger.Error(rerr))
			}
		}
	}
}

// consume drains one Read session and returns why it ended.
func (c *FeedCollector) consume(ctx context.Context, views <-chan *models.MarketView, errs <-chan error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err, ok := <-errs:
			if ok && err != nil {
				return err
			}
			if !ok {
				errs = nil
			}
		case v, ok := <-views:
			if !ok {
				return fmt.Errorf("feed stream closed")
			}
			if v == nil {
				continue
			}
			if v.Timestamp.IsZero() {
				v.Timestamp = time.Now().UTC()
			}
			c.state.SetView(v)
		}
	}
}

// Shutdown closes the feed and waits for the consumer goroutine.
func (c *FeedCollector) Shutdown(ctx context.Context) error {
	c.closing.Store(true)
	err := c.feed.Close()
	done := make(chan struct{})
	go func() {
		c.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return err
}
