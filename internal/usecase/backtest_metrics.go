package usecase

import (
	"math"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/services/features"
)

// computePerformance summarizes closed trades and the equity curve.
// With no closed trades every field is zero.
func computePerformance(initial float64, trades []models.TradeRecord, tradeReturns []float64, curve []models.EquityPoint) models.PerformanceMetrics {
	var m models.PerformanceMetrics
	if len(curve) > 0 && initial > 0 {
		m.TotalReturn = (curve[len(curve)-1].Equity - initial) / initial
	}
	for _, p := range curve {
		m.MaxDrawdown = math.Min(m.MaxDrawdown, p.Drawdown)
	}

	var profit, loss, total float64
	for _, t := range trades {
		if t.Type != models.TradeExit {
			continue
		}
		m.TotalTrades++
		total += t.PnL
		switch {
		case t.PnL > 0:
			m.ProfitableTrades++
			profit += t.PnL
		case t.PnL < 0:
			loss += -t.PnL
		}
	}
	if m.TotalTrades == 0 {
		return models.PerformanceMetrics{TotalReturn: m.TotalReturn, MaxDrawdown: m.MaxDrawdown}
	}

	m.WinRate = float64(m.ProfitableTrades) / float64(m.TotalTrades)
	m.AverageTrade = total / float64(m.TotalTrades)
	m.ProfitFactor = profitFactor(profit, loss, m.ProfitableTrades)
	m.SharpeRatio = sharpe(tradeReturns)
	return m
}

// profitFactor is +Inf when nothing was lost but something was won, and 0 when
// nothing was won.
func profitFactor(profit, loss float64, winners int) float64 {
	if loss == 0 {
		if winners > 0 {
			return math.Inf(1)
		}
		return 0
	}
	return profit / loss
}

// sharpe is mean/stdev of per-trade returns annualized by sqrt(252); fewer
// than two or zero dispersion gives 0.
func sharpe(returns []float64) float64 {
	if len(returns) < 2 {
		return 0
	}
	sd := features.StdDev(returns)
	if sd == 0 {
		return 0
	}
	return features.Mean(returns) / sd * math.Sqrt(features.TradingDaysPerYear)
}

func computeRiskMetrics(tradeReturns, marketReturns []float64) models.RiskMetrics {
	if len(tradeReturns) == 0 {
		return models.RiskMetrics{}
	}
	var95 := features.Percentile(tradeReturns, 0.05)
	return models.RiskMetrics{
		VaR95:             var95,
		VaR99:             features.Percentile(tradeReturns, 0.01),
		ExpectedShortfall: features.MeanAtOrBelow(tradeReturns, var95),
		Beta:              features.Beta(tradeReturns, marketReturns),
		Correlation:       features.Pearson(tradeReturns, marketReturns),
	}
}
