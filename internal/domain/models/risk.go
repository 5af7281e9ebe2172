package models

import "time"

type PositionExposure struct {
	Symbol   string  `json:"symbol"`
	Exposure float64 `json:"exposure"`
}

// PositionState is the account-level view reported by the position provider.
type PositionState struct {
	Exposure        float64            `json:"exposure"`
	MaxExposure     float64            `json:"max_exposure"`
	Leverage        float64            `json:"leverage"`
	MaxLeverage     float64            `json:"max_leverage"`
	MarginUsed      float64            `json:"margin_used"`
	MarginAvailable float64            `json:"margin_available"`
	Positions       []PositionExposure `json:"positions"`
	Correlations    map[string]float64 `json:"correlations"` // keyed "A|B"
	UpdatedAt       time.Time          `json:"updated_at"`
}

// CorrelationKey builds the map key for a symbol pair. Lookups try both orders.
func CorrelationKey(a, b string) string { return a + "|" + b }

// Correlation returns the recorded correlation between a and b, 1 for a == b, 0 when unknown.
func (p PositionState) Correlation(a, b string) float64 {
	if a == b {
		return 1
	}
	if v, ok := p.Correlations[CorrelationKey(a, b)]; ok {
		return v
	}
	if v, ok := p.Correlations[CorrelationKey(b, a)]; ok {
		return v
	}
	return 0
}

type ExecutionState struct {
	RecentSlippage float64       `json:"recent_slippage"`
	AvgLatency     time.Duration `json:"avg_latency"`
	FillRate       float64       `json:"fill_rate"`
}

type RiskLevel string

const (
	RiskLow     RiskLevel = "low"
	RiskMedium  RiskLevel = "medium"
	RiskHigh    RiskLevel = "high"
	RiskExtreme RiskLevel = "extreme"
)

type Trend string

const (
	TrendIncreasing Trend = "increasing"
	TrendDecreasing Trend = "decreasing"
	TrendStable     Trend = "stable"
)

type MarketRisk struct {
	Score            float64 `json:"score"`
	VolatilityImpact float64 `json:"volatility_impact"`
	LiquidityImpact  float64 `json:"liquidity_impact"`
}

type PositionRisk struct {
	Score             float64 `json:"score"`
	SizeRatio         float64 `json:"size_ratio"`
	LeverageRatio     float64 `json:"leverage_ratio"`
	MarginUtilization float64 `json:"margin_utilization"`
}

type ExecutionRisk struct {
	Score        float64 `json:"score"`
	SlippageRisk float64 `json:"slippage_risk"`
	LatencyRisk  float64 `json:"latency_risk"`
}

type SystemicRisk struct {
	Score              float64 `json:"score"`
	CorrelatedExposure float64 `json:"correlated_exposure"`
}

type RiskComponents struct {
	Market    MarketRisk    `json:"market"`
	Position  PositionRisk  `json:"position"`
	Execution ExecutionRisk `json:"execution"`
	Systemic  SystemicRisk  `json:"systemic"`
}

// RiskScore is one scoring cycle's output. All scores are in [0,1].
type RiskScore struct {
	Timestamp  time.Time      `json:"timestamp"`
	Components RiskComponents `json:"components"`
	TotalScore float64        `json:"total_score"`
	Level      RiskLevel      `json:"level"`
	Trend      Trend          `json:"trend"`
	Delta      float64        `json:"delta"`
}

type ActionType string

const (
	ActionReduceExposure ActionType = "reduce_exposure"
	ActionHedge          ActionType = "hedge"
	ActionSlippageNotice ActionType = "slippage_notice"
)

type Priority string

const (
	PriorityImmediate Priority = "immediate"
	PriorityHigh      Priority = "high"
	PriorityMedium    Priority = "medium"
	PriorityLow       Priority = "low"
)

// ControlAction is a recommendation emitted by the controller. It is handed to the
// executor and never carried out by the controller itself.
type ControlAction struct {
	ID              string     `json:"id"`
	Type            ActionType `json:"type"`
	Priority        Priority   `json:"priority"`
	Target          float64    `json:"target"`
	Reason          string     `json:"reason"`
	AcknowledgeOnly bool       `json:"acknowledge_only"`
	CreatedAt       time.Time  `json:"created_at"`
}

type Alert struct {
	ID             string        `json:"id"`
	Action         ControlAction `json:"action"`
	Acknowledged   bool          `json:"acknowledged"`
	AcknowledgedAt *time.Time    `json:"acknowledged_at,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}
