package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"

	"RiskDesk/pkg/util"
)

const (
	StrategySMACross = "sma_cross"
	StrategyMomentum = "momentum"
)

type StrategyParams struct {
	Name       string  `json:"name" default:"sma_cross" validate:"oneof=sma_cross momentum"`
	FastPeriod int     `json:"fast_period" default:"10" validate:"gte=0"`
	SlowPeriod int     `json:"slow_period" default:"30" validate:"gte=0"`
	Lookback   int     `json:"lookback" default:"10" validate:"gte=0"`
	Threshold  float64 `json:"threshold" default:"0.02" validate:"gte=0"`
	AllowShort bool    `json:"allow_short"`
}

type RiskParams struct {
	MaxPositionSize float64 `json:"max_position_size" default:"1" validate:"gt=0,lte=1"`
	MaxLeverage     float64 `json:"max_leverage" default:"1" validate:"gte=1,lte=100"`
	StopLoss        float64 `json:"stop_loss" validate:"gte=0,lt=1"`
	TakeProfit      float64 `json:"take_profit" validate:"gte=0"`
}

type CostParams struct {
	FeeBps      float64 `json:"fee_bps" validate:"gte=0,lte=1000"`
	SlippageBps float64 `json:"slippage_bps" validate:"gte=0,lte=1000"`
}

// BacktestConfig fully determines a backtest run together with its price series.
type BacktestConfig struct {
	Symbol         string         `json:"symbol" validate:"required"`
	StartDate      time.Time      `json:"start_date" validate:"required"`
	EndDate        time.Time      `json:"end_date" validate:"required,gtfield=StartDate"`
	InitialCapital float64        `json:"initial_capital" validate:"gt=0"`
	Strategy       StrategyParams `json:"strategy"`
	Risk           RiskParams     `json:"risk"`
	Costs          CostParams     `json:"costs"`
}

// UnmarshalJSON accepts start_date and end_date as RFC3339, YYYY-MM-DD or unix seconds.
func (c *BacktestConfig) UnmarshalJSON(data []byte) error {
	type plain BacktestConfig
	in := struct {
		*plain
		StartDate json.RawMessage `json:"start_date"`
		EndDate   json.RawMessage `json:"end_date"`
	}{plain: (*plain)(c)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	var err error
	if c.StartDate, err = decodeTime("start_date", in.StartDate); err != nil {
		return err
	}
	if c.EndDate, err = decodeTime("end_date", in.EndDate); err != nil {
		return err
	}
	return nil
}

func decodeTime(field string, raw json.RawMessage) (time.Time, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return time.Time{}, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	t, ok := util.ParseTime(s)
	if !ok {
		return time.Time{}, fmt.Errorf("%s: unrecognized time %q", field, s)
	}
	return t, nil
}

// PricePoint is one step of a historical series.
type PricePoint struct {
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	Volume    float64   `json:"volume"`
}

type TradeType string

const (
	TradeEntry TradeType = "entry"
	TradeExit  TradeType = "exit"
)

type Side string

const (
	SideLong  Side = "long"
	SideShort Side = "short"
)

type TradeRecord struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Type      TradeType `json:"type"`
	Side      Side      `json:"side"`
	Price     float64   `json:"price"`
	Size      float64   `json:"size"`
	PnL       float64   `json:"pnl"`
	Fees      float64   `json:"fees"`
	Slippage  float64   `json:"slippage"`
	Reason    string    `json:"reason"`
}

type EquityPoint struct {
	Timestamp time.Time `json:"timestamp"`
	Equity    float64   `json:"equity"`
	Drawdown  float64   `json:"drawdown"`
}

type DrawdownPeriod struct {
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	Trough    float64   `json:"trough"`
	Recovered bool      `json:"recovered"`
}

type PerformanceMetrics struct {
	TotalReturn      float64 `json:"total_return"`
	SharpeRatio      float64 `json:"sharpe_ratio"`
	MaxDrawdown      float64 `json:"max_drawdown"`
	WinRate          float64 `json:"win_rate"`
	ProfitFactor     float64 `json:"profit_factor"`
	AverageTrade     float64 `json:"average_trade"`
	TotalTrades      int     `json:"total_trades"`
	ProfitableTrades int     `json:"profitable_trades"`
}

// MarshalJSON writes an infinite profit factor as null; encoding/json rejects Inf.
func (m PerformanceMetrics) MarshalJSON() ([]byte, error) {
	type plain PerformanceMetrics
	out := struct {
		plain
		ProfitFactor *float64 `json:"profit_factor"`
	}{plain: plain(m)}
	if !math.IsInf(m.ProfitFactor, 0) && !math.IsNaN(m.ProfitFactor) {
		pf := m.ProfitFactor
		out.ProfitFactor = &pf
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads a null profit factor back as +Inf.
func (m *PerformanceMetrics) UnmarshalJSON(data []byte) error {
	type plain PerformanceMetrics
	in := struct {
		*plain
		ProfitFactor *float64 `json:"profit_factor"`
	}{plain: (*plain)(m)}
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	if in.ProfitFactor == nil {
		m.ProfitFactor = math.Inf(1)
	} else {
		m.ProfitFactor = *in.ProfitFactor
	}
	return nil
}

type RiskMetrics struct {
	VaR95             float64 `json:"var_95"`
	VaR99             float64 `json:"var_99"`
	ExpectedShortfall float64 `json:"expected_shortfall"`
	Beta              float64 `json:"beta"`
	Correlation       float64 `json:"correlation"`
}

type BacktestResult struct {
	Config      BacktestConfig     `json:"config"`
	Trades      []TradeRecord      `json:"trades"`
	Metrics     PerformanceMetrics `json:"metrics"`
	EquityCurve []EquityPoint      `json:"equity_curve"`
	RiskMetrics RiskMetrics        `json:"risk_metrics"`
}

// BacktestSummary is the compact form published to reporting.
type BacktestSummary struct {
	Symbol      string             `json:"symbol"`
	Strategy    string             `json:"strategy"`
	StartDate   time.Time          `json:"start_date"`
	EndDate     time.Time          `json:"end_date"`
	Metrics     PerformanceMetrics `json:"metrics"`
	RiskMetrics RiskMetrics        `json:"risk_metrics"`
	FinalEquity float64            `json:"final_equity"`
	Fingerprint string             `json:"fingerprint,omitempty"`
}

func (r *BacktestResult) Summary() BacktestSummary {
	s := BacktestSummary{
		Symbol:      r.Config.Symbol,
		Strategy:    r.Config.Strategy.Name,
		StartDate:   r.Config.StartDate,
		EndDate:     r.Config.EndDate,
		Metrics:     r.Metrics,
		RiskMetrics: r.RiskMetrics,
		FinalEquity: r.Config.InitialCapital,
	}
	if n := len(r.EquityCurve); n > 0 {
		s.FinalEquity = r.EquityCurve[n-1].Equity
	}
	return s
}

type BacktestJobStatus string

const (
	JobPending   BacktestJobStatus = "pending"
	JobRunning   BacktestJobStatus = "running"
	JobCompleted BacktestJobStatus = "completed"
	JobFailed    BacktestJobStatus = "failed"
)

// BacktestJobState is the stored status of an async backtest job.
type BacktestJobState struct {
	ID        string            `json:"id"`
	Status    BacktestJobStatus `json:"status"`
	Error     string            `json:"error,omitempty"`
	Summary   *BacktestSummary  `json:"summary,omitempty"`
	UpdatedAt time.Time         `json:"updated_at"`
}
