package usecase

import (
	"fmt"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/services/features"
)

// Strategy decides a direction at step i from prices[0..i]. It must be pure.
type Strategy interface {
	Name() string
	Signal(prices []float64, i int) models.Direction
}

func NewStrategy(p models.StrategyParams) (Strategy, error) {
	switch p.Name {
	case models.StrategySMACross:
		return smaCross{fast: p.FastPeriod, slow: p.SlowPeriod}, nil
	case models.StrategyMomentum:
		return momentum{lookback: p.Lookback, threshold: p.Threshold}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", p.Name)
	}
}

// validateStrategy runs the checks struct tags cannot express.
func validateStrategy(p models.StrategyParams) models.ValidationErrors {
	var errs models.ValidationErrors
	switch p.Name {
	case models.StrategySMACross:
		if p.FastPeriod < 1 {
			errs = append(errs, &models.ValidationError{Field: "strategy.fast_period", Message: "must be at least 1"})
		}
		if p.SlowPeriod <= p.FastPeriod {
			errs = append(errs, &models.ValidationError{Field: "strategy.slow_period", Message: "must be greater than fast_period"})
		}
	case models.StrategyMomentum:
		if p.Lookback < 1 {
			errs = append(errs, &models.ValidationError{Field: "strategy.lookback", Message: "must be at least 1"})
		}
	}
	return errs
}

type smaCross struct{ fast, slow int }

func (smaCross) Name() string { return models.StrategySMACross }

// Signal reports buy on a golden cross and sell on a death cross, neutral otherwise.
func (s smaCross) Signal(prices []float64, i int) models.Direction {
	fast, ok1 := features.SMA(prices, i, s.fast)
	slow, ok2 := features.SMA(prices, i, s.slow)
	pfast, ok3 := features.SMA(prices, i-1, s.fast)
	pslow, ok4 := features.SMA(prices, i-1, s.slow)
	if !(ok1 && ok2 && ok3 && ok4) {
		return models.DirectionNeutral
	}
	switch {
	case pfast <= pslow && fast > slow:
		return models.DirectionBuy
	case pfast >= pslow && fast < slow:
		return models.DirectionSell
	default:
		return models.DirectionNeutral
	}
}

type momentum struct {
	lookback  int
	threshold float64
}

func (momentum) Name() string { return models.StrategyMomentum }

func (m momentum) Signal(prices []float64, i int) models.Direction {
	roc, ok := features.RateOfChange(prices, i, m.lookback)
	if !ok {
		return models.DirectionNeutral
	}
	switch {
	case roc > m.threshold:
		return models.DirectionBuy
	case roc < -m.threshold:
		return models.DirectionSell
	default:
		return models.DirectionNeutral
	}
}
