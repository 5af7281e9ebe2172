package repository

import (
	"context"
	"time"

	"RiskDesk/internal/domain/models"
)

// MarketFeed streams market snapshots for one symbol.
type MarketFeed interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context) error
	Read(ctx context.Context) (<-chan *models.MarketView, <-chan error)
	Reconnect(ctx context.Context) error
	Close() error
	IsConnected() bool
}

// ReportPublisher ships pipeline outputs to downstream consumers.
type ReportPublisher interface {
	PublishAggregate(ctx context.Context, data *models.AggregatedData) error
	PublishScore(ctx context.Context, score *models.RiskScore) error
	PublishBacktest(ctx context.Context, summary *models.BacktestSummary) error
	Close() error
}

// ActionExecutor receives control actions. Whether and how they are carried out is up to it.
type ActionExecutor interface {
	Execute(ctx context.Context, actions []models.ControlAction) error
}

type Metrics interface {
	RecordCycle(component, result string)
	RecordCycleLatency(component string, d time.Duration)
	RecordRiskScore(score *models.RiskScore)
	RecordAction(actionType string)
	RecordSignal(signalType string)
	RecordBacktest(result string, d time.Duration)
	RecordBacktestDedup()
	RecordError(kind string)
}
