package usecase

import (
	"fmt"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/service/cache"

	"github.com/google/uuid"
)

const (
	hedgeVolatilityThreshold = 0.8
	slippageNoticeThreshold  = 0.1
)

type ControllerConfig struct {
	Cooldown       time.Duration
	ReduceFraction float64
}

func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{Cooldown: 5 * time.Minute, ReduceFraction: 0.5}
}

// RiskController turns a risk score into recommended actions. It never executes them.
// Each action type is suppressed for Cooldown after it was last emitted.
type RiskController struct {
	cfg      ControllerConfig
	cooldown *cache.TTLCache
	now      func() time.Time
	newID    func() string
}

type ControllerOption func(*RiskController)

func WithControllerClock(now func() time.Time) ControllerOption {
	return func(c *RiskController) { c.now = now }
}

func WithActionIDs(gen func() string) ControllerOption {
	return func(c *RiskController) { c.newID = gen }
}

func NewRiskController(cfg ControllerConfig, opts ...ControllerOption) *RiskController {
	if cfg.ReduceFraction <= 0 || cfg.ReduceFraction > 1 {
		cfg.ReduceFraction = DefaultControllerConfig().ReduceFraction
	}
	c := &RiskController{cfg: cfg, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(c)
	}
	c.cooldown = cache.NewTTLCache(cache.WithClock(c.now))
	return c
}

// Evaluate returns the actions warranted by score, in priority order.
func (c *RiskController) Evaluate(score models.RiskScore, currentExposure float64) []models.ControlAction {
	var out []models.ControlAction
	now := c.now()

	if score.Level == models.RiskExtreme {
		out = c.add(out, models.ControlAction{
			Type:     models.ActionReduceExposure,
			Priority: models.PriorityImmediate,
			Target:   c.cfg.ReduceFraction * currentExposure,
			Reason:   fmt.Sprintf("total risk %.2f is extreme", score.TotalScore),
		}, now)
	}
	if vi := score.Components.Market.VolatilityImpact; vi > hedgeVolatilityThreshold {
		out = c.add(out, models.ControlAction{
			Type:     models.ActionHedge,
			Priority: models.PriorityHigh,
			Target:   currentExposure,
			Reason:   fmt.Sprintf("volatility impact %.2f above %.2f", vi, hedgeVolatilityThreshold),
		}, now)
	}
	if sr := score.Components.Execution.SlippageRisk; sr > slippageNoticeThreshold {
		out = c.add(out, models.ControlAction{
			Type:            models.ActionSlippageNotice,
			Priority:        models.PriorityMedium,
			Reason:          fmt.Sprintf("slippage risk %.2f above %.2f", sr, slippageNoticeThreshold),
			AcknowledgeOnly: true,
		}, now)
	}
	return out
}

func (c *RiskController) add(out []models.ControlAction, a models.ControlAction, now time.Time) []models.ControlAction {
	if c.cfg.Cooldown > 0 && !c.cooldown.SetIfAbsent(string(a.Type), now, c.cfg.Cooldown) {
		return out
	}
	a.ID = c.newID()
	a.CreatedAt = now
	return append(out, a)
}

// ResetCooldowns forgets every suppression window.
func (c *RiskController) ResetCooldowns() {
	for _, t := range []models.ActionType{models.ActionReduceExposure, models.ActionHedge, models.ActionSlippageNotice} {
		c.cooldown.Delete(string(t))
	}
}
