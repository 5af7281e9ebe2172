package features

import (
	"math"

	"RiskDesk/internal/domain/models"
)

// TradingDaysPerYear annualizes daily-bar statistics.
const TradingDaysPerYear = 252

// LogReturns computes r_t = ln(p_t / p_{t-1}). Non-positive prices yield a 0 return.
// It returns nil when fewer than two prices are given.
func LogReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		prev, cur := prices[i-1], prices[i]
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// SimpleReturns computes (p_t - p_{t-1}) / p_{t-1}.
func SimpleReturns(prices []float64) []float64 {
	if len(prices) < 2 {
		return nil
	}
	out := make([]float64, 0, len(prices)-1)
	for i := 1; i < len(prices); i++ {
		if prices[i-1] <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, (prices[i]-prices[i-1])/prices[i-1])
	}
	return out
}

// ClosePrices extracts close prices from candles.
func ClosePrices(candles []models.Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}
	return out
}

// RealizedVolatility computes annualized volatility over the latest window of returns.
// A window <= 0 or larger than the data uses every return.
func RealizedVolatility(returns []float64, window int, barsPerYear float64) float64 {
	if window <= 0 || window > len(returns) {
		window = len(returns)
	}
	if window < 2 {
		return 0
	}
	v := SampleVariance(returns[len(returns)-window:])
	return math.Sqrt(v * barsPerYear)
}

// SMA returns the simple moving average of the last period values ending at index end (inclusive).
func SMA(values []float64, end, period int) (float64, bool) {
	if period <= 0 || end < period-1 || end >= len(values) {
		return 0, false
	}
	return Mean(values[end-period+1 : end+1]), true
}

// RateOfChange returns (v[end] - v[end-lookback]) / v[end-lookback].
func RateOfChange(values []float64, end, lookback int) (float64, bool) {
	if lookback <= 0 || end-lookback < 0 || end >= len(values) {
		return 0, false
	}
	base := values[end-lookback]
	if base <= 0 {
		return 0, false
	}
	return (values[end] - base) / base, true
}

// CandlesToSeries converts candles to backtest price points.
func CandlesToSeries(candles []models.Candle) []models.PricePoint {
	out := make([]models.PricePoint, len(candles))
	for i, c := range candles {
		out[i] = models.PricePoint{Timestamp: c.Bucket, Price: c.Close, Volume: c.Volume}
	}
	return out
}
