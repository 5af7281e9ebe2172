package usecase

import (
	"math"

	"RiskDesk/internal/domain/models"
)

// DrawdownPeriods splits an equity curve into contiguous runs below the running peak.
// A period ends on the first point back at the peak; a run still open at the end of
// the curve is reported with Recovered false and End set to the last point.
func DrawdownPeriods(curve []models.EquityPoint) []models.DrawdownPeriod {
	var out []models.DrawdownPeriod
	var cur *models.DrawdownPeriod
	for _, p := range curve {
		if p.Drawdown < 0 {
			if cur == nil {
				cur = &models.DrawdownPeriod{Start: p.Timestamp, Trough: p.Drawdown}
			}
			cur.Trough = math.Min(cur.Trough, p.Drawdown)
			cur.End = p.Timestamp
			continue
		}
		if cur != nil {
			cur.End = p.Timestamp
			cur.Recovered = true
			out = append(out, *cur)
			cur = nil
		}
	}
	if cur != nil {
		out = append(out, *cur)
	}
	return out
}
