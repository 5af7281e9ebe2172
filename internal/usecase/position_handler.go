package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"RiskDesk/internal/domain/models"
	domrepo "RiskDesk/internal/domain/repository"
	pkgkafka "RiskDesk/pkg/kafka"
)

// positionMessage is the wire form on the positions topic. Either part may be omitted.
type positionMessage struct {
	Position  *models.PositionState `json:"position"`
	Execution *executionWire        `json:"execution"`
}

type executionWire struct {
	RecentSlippage float64 `json:"recent_slippage"`
	AvgLatencyMs   float64 `json:"avg_latency_ms"`
	FillRate       float64 `json:"fill_rate"`
}

// PositionStateHandler consumes position and execution updates from Kafka into MarketState.
type PositionStateHandler struct {
	topic   string
	state   *MarketState
	metrics domrepo.Metrics
	now     func() time.Time
}

var _ pkgkafka.MessageHandler = (*PositionStateHandler)(nil)

func NewPositionStateHandler(topic string, state *MarketState, metrics domrepo.Metrics) *PositionStateHandler {
	return &PositionStateHandler{topic: topic, state: state, metrics: metrics, now: time.Now}
}

func (h *PositionStateHandler) Topic() string { return h.topic }

// Handle rejects undecodable or empty messages; the consumer retries and then dead-letters them.
func (h *PositionStateHandler) Handle(_ context.Context, b []byte) error {
	var m positionMessage
	if err := json.Unmarshal(b, &m); err != nil {
		h.metrics.RecordError("position_unmarshal")
		return fmt.Errorf("decode position message: %w", err)
	}
	if m.Position == nil && m.Execution == nil {
		h.metrics.RecordError("position_empty")
		return fmt.Errorf("position message carries neither position nor execution")
	}
	if m.Position != nil {
		p := *m.Position
		if p.UpdatedAt.IsZero() {
			p.UpdatedAt = h.now().UTC()
		}
		h.state.SetPosition(p)
	}
	if m.Execution != nil {
		h.state.SetExecution(models.ExecutionState{
			RecentSlippage: m.Execution.RecentSlippage,
			AvgLatency:     time.Duration(m.Execution.AvgLatencyMs * float64(time.Millisecond)),
			FillRate:       m.Execution.FillRate,
		})
	}
	return nil
}
