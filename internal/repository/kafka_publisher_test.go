package repository

import (
	"context"
	"encoding/json"
	"math"
	"testing"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/domain/repository"
	pkgkafka "RiskDesk/pkg/kafka"
)

type recordedBatch struct {
	topic string
	msgs  []pkgkafka.Message
}

type fakeProducer struct {
	batches []recordedBatch
	closed  bool
}

func (f *fakeProducer) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	f.batches = append(f.batches, recordedBatch{topic: topic, msgs: msgs})
	return nil
}

func (f *fakeProducer) Close() error {
	f.closed = true
	return nil
}

func TestReportPublisherEnvelope(t *testing.T) {
	fp := &fakeProducer{}
	pub := newKafkaReportPublisher(fp, "reports", "BTCUSDT")
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	if err := pub.PublishScore(context.Background(), &models.RiskScore{Timestamp: ts, TotalScore: 0.42}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if len(fp.batches) != 1 || fp.batches[0].topic != "reports" {
		t.Fatalf("unexpected batches %+v", fp.batches)
	}
	msg := fp.batches[0].msgs[0]
	if string(msg.Key) != "BTCUSDT" || msg.Headers["kind"] != KindScore {
		t.Fatalf("unexpected key/headers %q %v", msg.Key, msg.Headers)
	}
	env, ok := msg.Value.(Envelope)
	if !ok || env.Kind != KindScore || !env.Timestamp.Equal(ts) {
		t.Fatalf("unexpected envelope %+v", msg.Value)
	}

	_ = pub.Close()
	if !fp.closed {
		t.Fatal("expected producer closed")
	}
}

func TestReportPublisherBacktestEncodesInfiniteProfitFactor(t *testing.T) {
	fp := &fakeProducer{}
	pub := newKafkaReportPublisher(fp, "reports", "BTCUSDT")
	summary := &models.BacktestSummary{Symbol: "ETHUSDT", Metrics: models.PerformanceMetrics{ProfitFactor: math.Inf(1)}}

	if err := pub.PublishBacktest(context.Background(), summary); err != nil {
		t.Fatalf("publish: %v", err)
	}
	msg := fp.batches[0].msgs[0]
	if string(msg.Key) != "ETHUSDT" {
		t.Fatalf("key = %q", msg.Key)
	}
	if _, err := json.Marshal(msg.Value); err != nil {
		t.Fatalf("envelope must be encodable: %v", err)
	}
}

func TestActionExecutorOneMessagePerAction(t *testing.T) {
	fp := &fakeProducer{}
	var exec repository.ActionExecutor = &KafkaActionExecutor{producer: fp, topic: "actions"}

	if err := exec.Execute(context.Background(), nil); err != nil || len(fp.batches) != 0 {
		t.Fatalf("empty batch should be a no-op, got %v %d", err, len(fp.batches))
	}

	actions := []models.ControlAction{
		{ID: "a1", Type: models.ActionReduceExposure, Priority: models.PriorityImmediate},
		{ID: "a2", Type: models.ActionHedge, Priority: models.PriorityHigh},
	}
	if err := exec.Execute(context.Background(), actions); err != nil {
		t.Fatalf("execute: %v", err)
	}
	msgs := fp.batches[0].msgs
	if len(msgs) != 2 || string(msgs[0].Key) != string(models.ActionReduceExposure) || msgs[1].Headers["priority"] != string(models.PriorityHigh) {
		t.Fatalf("unexpected messages %+v", msgs)
	}
}

func TestTableName(t *testing.T) {
	if got := tableName("market", "candles", repository.TF1h); got != "market.candles_1h" {
		t.Fatalf("tableName = %q", got)
	}
	if got := tableName("", "bars", repository.TF1d); got != "bars_1d" {
		t.Fatalf("tableName = %q", got)
	}
}
