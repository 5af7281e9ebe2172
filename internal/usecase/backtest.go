package usecase

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/pkg/util"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

const (
	reasonSignal     = "signal"
	reasonReverse    = "reverse"
	reasonStopLoss   = "stop_loss"
	reasonTakeProfit = "take_profit"
	reasonEndOfData  = "end_of_data"
)

var (
	errBadPrice     = errors.New("price must be positive and finite")
	errOutOfOrder   = errors.New("timestamp before previous step")
	bps             = decimal.NewFromInt(10000)
	configValidator = newConfigValidator()
)

func newConfigValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// ApplyBacktestDefaults fills unset strategy, risk and cost parameters.
func ApplyBacktestDefaults(cfg *models.BacktestConfig) error {
	return defaults.Set(cfg)
}

// ValidateBacktestConfig checks struct constraints and strategy-specific rules.
// It returns models.ValidationErrors or nil.
func ValidateBacktestConfig(cfg models.BacktestConfig) error {
	var errs models.ValidationErrors
	if err := configValidator.Struct(cfg); err != nil {
		var ves validator.ValidationErrors
		if !errors.As(err, &ves) {
			return fmt.Errorf("validate backtest config: %w", err)
		}
		for _, fe := range ves {
			ns := fe.Namespace()
			if i := strings.IndexByte(ns, '.'); i >= 0 {
				ns = ns[i+1:]
			}
			errs = append(errs, &models.ValidationError{Field: ns, Message: validationMessage(fe)})
		}
	}
	errs = append(errs, validateStrategy(cfg.Strategy)...)
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func validationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "gtfield":
		return "must be after " + strings.ToLower(fe.Param())
	case "oneof":
		return "must be one of: " + strings.ReplaceAll(fe.Param(), " ", ", ")
	case "gt":
		return "must be greater than " + fe.Param()
	case "gte":
		return "must be at least " + fe.Param()
	case "lt":
		return "must be less than " + fe.Param()
	case "lte":
		return "must be at most " + fe.Param()
	default:
		return "failed " + fe.Tag()
	}
}

// BacktestSimulator replays a strategy over a price series. Run is pure: the same
// config and series always produce the same result.
type BacktestSimulator struct{}

func NewBacktestSimulator() *BacktestSimulator { return &BacktestSimulator{} }

type openPosition struct {
	side        models.Side
	qty         decimal.Decimal
	entryPrice  decimal.Decimal // after slippage
	marketEntry float64         // raw step price
	entryEquity float64
	entryFees   decimal.Decimal
}

func (p *openPosition) sign() decimal.Decimal {
	if p.side == models.SideShort {
		return decimal.NewFromInt(-1)
	}
	return decimal.NewFromInt(1)
}

// ledger is the mutable state of a single run.
type ledger struct {
	cfg      models.BacktestConfig
	cash     decimal.Decimal
	pos      *openPosition
	seq      int
	trades   []models.TradeRecord
	tradeRet []float64
	mktRet   []float64
}

func (l *ledger) nextID() string {
	l.seq++
	return fmt.Sprintf("bt-trade-%06d", l.seq)
}

func (l *ledger) equity(price decimal.Decimal) decimal.Decimal {
	if l.pos == nil {
		return l.cash
	}
	unrealized := price.Sub(l.pos.entryPrice).Mul(l.pos.qty).Mul(l.pos.sign())
	return l.cash.Add(unrealized)
}

func (l *ledger) open(side models.Side, ts time.Time, price float64, reason string) {
	p := decimal.NewFromFloat(price)
	eq := l.equity(p)
	fraction := math.Min(l.cfg.Risk.MaxPositionSize, l.cfg.Risk.MaxLeverage)
	notional := eq.Mul(decimal.NewFromFloat(fraction))
	if !notional.IsPositive() {
		return
	}
	slip := p.Mul(decimal.NewFromFloat(l.cfg.Costs.SlippageBps)).Div(bps)
	exec := p.Add(slip)
	if side == models.SideShort {
		exec = p.Sub(slip)
	}
	if !exec.IsPositive() {
		return
	}
	qty := notional.Div(exec)
	fee := notional.Mul(decimal.NewFromFloat(l.cfg.Costs.FeeBps)).Div(bps)
	l.cash = l.cash.Sub(fee)
	l.pos = &openPosition{
		side:        side,
		qty:         qty,
		entryPrice:  exec,
		marketEntry: price,
		entryEquity: eq.InexactFloat64(),
		entryFees:   fee,
	}
	l.trades = append(l.trades, models.TradeRecord{
		ID:        l.nextID(),
		Timestamp: ts,
		Type:      models.TradeEntry,
		Side:      side,
		Price:     exec.InexactFloat64(),
		Size:      qty.InexactFloat64(),
		Fees:      fee.InexactFloat64(),
		Slippage:  slip.Mul(qty).InexactFloat64(),
		Reason:    reason,
	})
}

func (l *ledger) close(ts time.Time, price float64, reason string) {
	pos := l.pos
	if pos == nil {
		return
	}
	p := decimal.NewFromFloat(price)
	slip := p.Mul(decimal.NewFromFloat(l.cfg.Costs.SlippageBps)).Div(bps)
	exec := p.Sub(slip)
	if pos.side == models.SideShort {
		exec = p.Add(slip)
	}
	gross := exec.Sub(pos.entryPrice).Mul(pos.qty).Mul(pos.sign())
	fee := exec.Mul(pos.qty).Mul(decimal.NewFromFloat(l.cfg.Costs.FeeBps)).Div(bps)
	pnl := gross.Sub(fee).Sub(pos.entryFees)
	l.cash = l.cash.Add(gross).Sub(fee)
	l.pos = nil

	pnlF := pnl.InexactFloat64()
	l.trades = append(l.trades, models.TradeRecord{
		ID:        l.nextID(),
		Timestamp: ts,
		Type:      models.TradeExit,
		Side:      pos.side,
		Price:     exec.InexactFloat64(),
		Size:      pos.qty.InexactFloat64(),
		PnL:       pnlF,
		Fees:      fee.InexactFloat64(),
		Slippage:  slip.Mul(pos.qty).InexactFloat64(),
		Reason:    reason,
	})
	ret := 0.0
	if pos.entryEquity > 0 {
		ret = pnlF / pos.entryEquity
	}
	l.tradeRet = append(l.tradeRet, ret)
	l.mktRet = append(l.mktRet, (price-pos.marketEntry)/pos.marketEntry)
}

// exitReason returns the stop-loss or take-profit reason hit at price, or "".
func (l *ledger) exitReason(price float64) string {
	if l.pos == nil {
		return ""
	}
	entry := l.pos.entryPrice.InexactFloat64()
	ret := (price - entry) / entry
	if l.pos.side == models.SideShort {
		ret = -ret
	}
	switch {
	case l.cfg.Risk.StopLoss > 0 && ret <= -l.cfg.Risk.StopLoss:
		return reasonStopLoss
	case l.cfg.Risk.TakeProfit > 0 && ret >= l.cfg.Risk.TakeProfit:
		return reasonTakeProfit
	}
	return ""
}

func (l *ledger) apply(dir models.Direction, ts time.Time, price float64) {
	switch dir {
	case models.DirectionBuy:
		if l.pos != nil && l.pos.side == models.SideLong {
			return
		}
		if l.pos != nil {
			l.close(ts, price, reasonReverse)
		}
		l.open(models.SideLong, ts, price, reasonSignal)
	case models.DirectionSell:
		if l.pos != nil && l.pos.side == models.SideShort {
			return
		}
		if l.pos != nil {
			l.close(ts, price, reasonSignal)
		}
		if l.cfg.Strategy.AllowShort {
			l.open(models.SideShort, ts, price, reasonSignal)
		}
	}
}

// exitOn closes a position that dir opposes without opening the other side.
func (l *ledger) exitOn(dir models.Direction, ts time.Time, price float64) {
	switch {
	case l.pos == nil:
	case dir == models.DirectionBuy && l.pos.side == models.SideShort:
		l.close(ts, price, reasonReverse)
	case dir == models.DirectionSell && l.pos.side == models.SideLong:
		l.close(ts, price, reasonSignal)
	}
}

// Run validates cfg, replays the in-range steps of series and computes metrics.
// Steps outside [StartDate, EndDate] are ignored; an EndDate without a time of day
// includes that whole day. Any malformed in-range step aborts the run with a
// *models.SimulationError and no partial result.
func (s *BacktestSimulator) Run(ctx context.Context, cfg models.BacktestConfig, series []models.PricePoint) (*models.BacktestResult, error) {
	if err := ValidateBacktestConfig(cfg); err != nil {
		return nil, err
	}
	strat, err := NewStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	end := inclusiveEnd(cfg.EndDate)
	steps := make([]models.PricePoint, 0, len(series))
	idx := make([]int, 0, len(series))
	var last time.Time
	for i, pt := range series {
		if pt.Timestamp.Before(cfg.StartDate) || pt.Timestamp.After(end) {
			continue
		}
		if pt.Price <= 0 || math.IsNaN(pt.Price) || math.IsInf(pt.Price, 0) {
			return nil, &models.SimulationError{Step: i, LastTimestamp: last, Err: errBadPrice}
		}
		if !last.IsZero() && pt.Timestamp.Before(last) {
			return nil, &models.SimulationError{Step: i, LastTimestamp: last, Err: errOutOfOrder}
		}
		last = pt.Timestamp
		steps = append(steps, pt)
		idx = append(idx, i)
	}

	l := &ledger{cfg: cfg, cash: decimal.NewFromFloat(cfg.InitialCapital)}
	prices := make([]float64, len(steps))
	for i, pt := range steps {
		prices[i] = pt.Price
	}

	curve := make([]models.EquityPoint, 0, len(steps))
	peak := cfg.InitialCapital
	var prevTS time.Time
	for i, pt := range steps {
		if reason := l.exitReason(pt.Price); reason != "" {
			l.close(pt.Timestamp, pt.Price, reason)
		}
		if i < len(steps)-1 {
			l.apply(strat.Signal(prices, i), pt.Timestamp, pt.Price)
		} else {
			// no new entries on the final step
			l.exitOn(strat.Signal(prices, i), pt.Timestamp, pt.Price)
			if l.pos != nil {
				l.close(pt.Timestamp, pt.Price, reasonEndOfData)
			}
		}

		if err := ctx.Err(); err != nil {
			return nil, &models.SimulationError{Step: idx[i], LastTimestamp: prevTS, Err: err}
		}
		eq := l.equity(decimal.NewFromFloat(pt.Price)).InexactFloat64()
		peak = math.Max(peak, eq)
		dd := 0.0
		if peak > 0 {
			dd = math.Min(0, (eq-peak)/peak)
		}
		curve = append(curve, models.EquityPoint{Timestamp: pt.Timestamp, Equity: eq, Drawdown: dd})
		prevTS = pt.Timestamp
	}

	return &models.BacktestResult{
		Config:      cfg,
		Trades:      l.trades,
		Metrics:     computePerformance(cfg.InitialCapital, l.trades, l.tradeRet, curve),
		EquityCurve: curve,
		RiskMetrics: computeRiskMetrics(l.tradeRet, l.mktRet),
	}, nil
}

func inclusiveEnd(t time.Time) time.Time {
	if util.IsDateOnly(t) {
		return t.Add(24*time.Hour - time.Nanosecond)
	}
	return t
}
