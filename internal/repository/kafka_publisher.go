package repository

import (
	"context"
	"time"

	"RiskDesk/internal/domain/models"
	domrepo "RiskDesk/internal/domain/repository"
	pkgkafka "RiskDesk/pkg/kafka"
)

// Report kinds carried in the envelope and the "kind" header.
const (
	KindAggregate = "aggregate"
	KindScore     = "risk_score"
	KindBacktest  = "backtest_summary"
	KindAction    = "control_action"
)

// producer is the part of pkg/kafka.Producer the publishers use.
type producer interface {
	PublishBatch(ctx context.Context, topic string, messages []pkgkafka.Message) error
	Close() error
}

// Envelope wraps every report written to the reports topic.
type Envelope struct {
	Kind      string      `json:"kind"`
	Symbol    string      `json:"symbol"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// KafkaReportPublisher writes aggregates, scores and backtest summaries to one topic,
// keyed by symbol so per-symbol order is kept.
type KafkaReportPublisher struct {
	producer producer
	topic    string
	symbol   string
}

var _ domrepo.ReportPublisher = (*KafkaReportPublisher)(nil)

func NewKafkaReportPublisher(p *pkgkafka.Producer, topic, symbol string) *KafkaReportPublisher {
	return newKafkaReportPublisher(p, topic, symbol)
}

func newKafkaReportPublisher(p producer, topic, symbol string) *KafkaReportPublisher {
	return &KafkaReportPublisher{producer: p, topic: topic, symbol: symbol}
}

func (p *KafkaReportPublisher) PublishAggregate(ctx context.Context, data *models.AggregatedData) error {
	symbol := data.MarketData.Symbol
	if symbol == "" {
		symbol = p.symbol
	}
	return p.publish(ctx, KindAggregate, symbol, data.Timestamp, data)
}

func (p *KafkaReportPublisher) PublishScore(ctx context.Context, score *models.RiskScore) error {
	return p.publish(ctx, KindScore, p.symbol, score.Timestamp, score)
}

func (p *KafkaReportPublisher) PublishBacktest(ctx context.Context, summary *models.BacktestSummary) error {
	return p.publish(ctx, KindBacktest, summary.Symbol, summary.EndDate, summary)
}

func (p *KafkaReportPublisher) publish(ctx context.Context, kind, symbol string, ts time.Time, data interface{}) error {
	return p.producer.PublishBatch(ctx, p.topic, []pkgkafka.Message{{
		Key:     []byte(symbol),
		Value:   Envelope{Kind: kind, Symbol: symbol, Timestamp: ts, Data: data},
		Headers: map[string]string{"kind": kind},
	}})
}

func (p *KafkaReportPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

// KafkaActionExecutor forwards control actions to the actions topic for an external
// executor. It does not act on them itself.
type KafkaActionExecutor struct {
	producer producer
	topic    string
}

var _ domrepo.ActionExecutor = (*KafkaActionExecutor)(nil)

func NewKafkaActionExecutor(p *pkgkafka.Producer, topic string) *KafkaActionExecutor {
	return &KafkaActionExecutor{producer: p, topic: topic}
}

func (e *KafkaActionExecutor) Execute(ctx context.Context, actions []models.ControlAction) error {
	if len(actions) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(actions))
	for i, a := range actions {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(a.Type),
			Value: a,
			Headers: map[string]string{
				"kind":     KindAction,
				"priority": string(a.Priority),
			},
		}
	}
	return e.producer.PublishBatch(ctx, e.topic, msgs)
}
