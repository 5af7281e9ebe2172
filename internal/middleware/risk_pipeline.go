package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"RiskDesk/internal/domain/models"
	domrepo "RiskDesk/internal/domain/repository"
	"RiskDesk/internal/usecase"
	applogger "RiskDesk/pkg/logger"
)

const (
	componentAggregator = "aggregator"
	componentScorer     = "scorer"
	componentController = "controller"
)

// Stages are the per-cycle processors the pipeline drives.
type Stages struct {
	Aggregator *usecase.SignalAggregator
	Scorer     *usecase.RiskScorer
	Controller *usecase.RiskController
	Alerts     *usecase.AlertStore
	Signals    *usecase.SignalLog
}

// scoreEvent is one aggregation result together with the inputs the scorer needs.
type scoreEvent struct {
	data      models.AggregatedData
	position  models.PositionState
	execution models.ExecutionState
}

// RiskPipeline schedules the risk loop. The aggregator runs on a fixed period; a
// tick that is due while the previous one still runs is skipped. Each aggregate is
// handed to the scorer through a one-slot channel where the newest value wins, and
// the controller runs after every score.
type RiskPipeline struct {
	state     *usecase.MarketState
	stages    Stages
	metrics   domrepo.Metrics
	publisher domrepo.ReportPublisher
	executor  domrepo.ActionExecutor
	l         *applogger.Logger

	interval    time.Duration
	tickTimeout time.Duration

	busy   atomic.Bool
	events chan scoreEvent

	mu          sync.RWMutex
	started     bool
	cancel      context.CancelFunc
	wg          sync.WaitGroup
	latestAgg   *models.AggregatedData
	latestScore *models.RiskScore
}

type PipelineOption func(*RiskPipeline)

// WithInterval sets the aggregation period.
func WithInterval(d time.Duration) PipelineOption {
	return func(p *RiskPipeline) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTickTimeout bounds one aggregation or scoring cycle.
func WithTickTimeout(d time.Duration) PipelineOption {
	return func(p *RiskPipeline) {
		if d > 0 {
			p.tickTimeout = d
		}
	}
}

func WithPublisher(pub domrepo.ReportPublisher) PipelineOption {
	return func(p *RiskPipeline) { p.publisher = pub }
}

func WithExecutor(e domrepo.ActionExecutor) PipelineOption {
	return func(p *RiskPipeline) { p.executor = e }
}

func WithLogger(l *applogger.Logger) PipelineOption {
	return func(p *RiskPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewRiskPipeline creates a new pipeline.
func NewRiskPipeline(state *usecase.MarketState, stages Stages, metrics domrepo.Metrics, opts ...PipelineOption) *RiskPipeline {
	p := &RiskPipeline{
		state:       state,
		stages:      stages,
		metrics:     metrics,
		l:           applogger.NewNop(),
		interval:    5 * time.Second,
		tickTimeout: 4 * time.Second,
		events:      make(chan scoreEvent, 1),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.tickTimeout > p.interval {
		p.tickTimeout = p.interval
	}
	return p
}

// Start launches the aggregation ticker and the scoring loop.
func (p *RiskPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	ctx, p.cancel = context.WithCancel(ctx)
	p.mu.Unlock()

	p.wg.Add(2)
	go p.runTicker(ctx)
	go p.runScorer(ctx)
	p.l.Info("risk pipeline started",
		applogger.Duration("interval", p.interval),
		applogger.Duration("tick_timeout", p.tickTimeout))
}

// Stop cancels both loops and waits for in-flight cycles to finish.
func (p *RiskPipeline) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return nil
	}
	p.started = false
	p.cancel()
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("risk pipeline stop: %w", ctx.Err())
	}
}

func (p *RiskPipeline) runTicker(ctx context.Context) {
	defer p.wg.Done()
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !p.busy.CompareAndSwap(false, true) {
				p.metrics.RecordCycle(componentAggregator, "busy")
				continue
			}
			p.wg.Add(1)
			go func() {
				defer p.wg.Done()
				defer p.busy.Store(false)
				if err := p.Tick(ctx); err != nil {
					p.l.Error("aggregation cycle failed", applogger.Error(err))
				}
			}()
		}
	}
}

// Tick runs one aggregation cycle against the current market state. Missing
// inputs skip the cycle without error.
func (p *RiskPipeline) Tick(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, p.tickTimeout)
	defer cancel()
	start := time.Now()

	snap := p.state.Snapshot()
	data, err := p.stages.Aggregator.Aggregate(usecase.AggregateInput{
		View:    snap.View,
		News:    snap.News,
		Social:  snap.Social,
		History: snap.History,
	})
	if errors.Is(err, models.ErrInputUnavailable) {
		p.metrics.RecordCycle(componentAggregator, "skipped")
		return nil
	}
	if err != nil {
		p.metrics.RecordCycle(componentAggregator, "error")
		return fmt.Errorf("aggregate: %w", err)
	}

	p.state.AppendPrice(data.MarketData.Price.Current)
	if p.stages.Signals != nil {
		p.stages.Signals.Append(data.Signals...)
	}
	for _, s := range data.Signals {
		p.metrics.RecordSignal(string(s.Type))
	}
	p.mu.Lock()
	p.latestAgg = &data
	p.mu.Unlock()

	if p.publisher != nil {
		if err := p.publisher.PublishAggregate(ctx, &data); err != nil {
			p.metrics.RecordError("publish_aggregate")
			p.l.Warn("publish aggregate failed", applogger.Error(err))
		}
	}
	p.metrics.RecordCycle(componentAggregator, "ok")
	p.metrics.RecordCycleLatency(componentAggregator, time.Since(start))

	p.offer(scoreEvent{data: data, position: snap.Position, execution: snap.Execution})
	return nil
}

// offer replaces any unconsumed event with ev.
func (p *RiskPipeline) offer(ev scoreEvent) {
	for {
		select {
		case p.events <- ev:
			return
		default:
		}
		select {
		case <-p.events:
		default:
		}
	}
}

func (p *RiskPipeline) runScorer(ctx context.Context) {
	defer p.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-p.events:
			p.assess(ctx, ev)
		}
	}
}

// assess scores one aggregate, then lets the controller react to the score.
func (p *RiskPipeline) assess(ctx context.Context, ev scoreEvent) {
	ctx, cancel := context.WithTimeout(ctx, p.tickTimeout)
	defer cancel()
	start := time.Now()

	score := p.stages.Scorer.Score(&ev.data, ev.position, ev.execution)
	p.metrics.RecordRiskScore(&score)
	p.mu.Lock()
	p.latestScore = &score
	p.mu.Unlock()
	if p.publisher != nil {
		if err := p.publisher.PublishScore(ctx, &score); err != nil {
			p.metrics.RecordError("publish_score")
			p.l.Warn("publish risk score failed", applogger.Error(err))
		}
	}
	p.metrics.RecordCycle(componentScorer, "ok")
	p.metrics.RecordCycleLatency(componentScorer, time.Since(start))

	start = time.Now()
	actions := p.stages.Controller.Evaluate(score, ev.position.Exposure)
	p.metrics.RecordCycle(componentController, "ok")
	p.metrics.RecordCycleLatency(componentController, time.Since(start))
	if len(actions) == 0 {
		return
	}
	if p.stages.Alerts != nil {
		p.stages.Alerts.Append(actions...)
	}
	for _, a := range actions {
		p.metrics.RecordAction(string(a.Type))
		p.l.Info("control action raised",
			applogger.String("type", string(a.Type)),
			applogger.String("priority", string(a.Priority)),
			applogger.Float64("target", a.Target),
			applogger.String("reason", a.Reason))
	}
	if p.executor != nil {
		if err := p.executor.Execute(ctx, actions); err != nil {
			p.metrics.RecordError("execute_actions")
			p.l.Error("execute control actions failed", applogger.Int("actions", len(actions)), applogger.Error(err))
		}
	}
}

// LatestAggregate returns the newest aggregation result, if any.
func (p *RiskPipeline) LatestAggregate() (models.AggregatedData, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latestAgg == nil {
		return models.AggregatedData{}, false
	}
	return *p.latestAgg, true
}

// LatestScore returns the newest risk score, if any.
func (p *RiskPipeline) LatestScore() (models.RiskScore, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.latestScore == nil {
		return models.RiskScore{}, false
	}
	return *p.latestScore, true
}
