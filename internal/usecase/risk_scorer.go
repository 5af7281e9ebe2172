package usecase

import (
	"fmt"
	"math"
	"sync"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/services/features"
	"RiskDesk/pkg/config"
)

const trendEpsilon = 0.01

type ScorerConfig struct {
	Weights             config.Weights
	Cutoffs             config.Cutoffs
	VolatilityReference float64
	SlippageReference   float64
	LatencyReference    time.Duration
}

func DefaultScorerConfig() ScorerConfig {
	return ScorerConfig{
		Weights:             config.DefaultWeights(),
		Cutoffs:             config.DefaultCutoffs(),
		VolatilityReference: 1,
		SlippageReference:   0.01,
		LatencyReference:    time.Second,
	}
}

// RiskScorer combines market, position, execution and systemic risk into one score.
// Its only cross-cycle state is the previous score, used for Trend and Delta.
type RiskScorer struct {
	cfg ScorerConfig

	mu   sync.Mutex
	prev *models.RiskScore
}

func NewRiskScorer(cfg ScorerConfig) (*RiskScorer, error) {
	if err := cfg.Weights.Validate(); err != nil {
		return nil, fmt.Errorf("scorer weights: %w", err)
	}
	if err := cfg.Cutoffs.Validate(); err != nil {
		return nil, fmt.Errorf("scorer cutoffs: %w", err)
	}
	def := DefaultScorerConfig()
	if cfg.VolatilityReference <= 0 {
		cfg.VolatilityReference = def.VolatilityReference
	}
	if cfg.SlippageReference <= 0 {
		cfg.SlippageReference = def.SlippageReference
	}
	if cfg.LatencyReference <= 0 {
		cfg.LatencyReference = def.LatencyReference
	}
	return &RiskScorer{cfg: cfg}, nil
}

// Score evaluates one cycle. Every component and the total stay in [0,1].
func (s *RiskScorer) Score(data *models.AggregatedData, pos models.PositionState, exec models.ExecutionState) models.RiskScore {
	market := s.marketRisk(data)
	position := positionRisk(pos)
	execution := s.executionRisk(exec)
	systemic := systemicRisk(pos, position.SizeRatio)

	w := s.cfg.Weights
	total := features.Clamp01((w.Market*market.Score + w.Position*position.Score +
		w.Execution*execution.Score + w.Systemic*systemic.Score) / w.Sum())

	out := models.RiskScore{
		Timestamp: data.Timestamp,
		Components: models.RiskComponents{
			Market:    market,
			Position:  position,
			Execution: execution,
			Systemic:  systemic,
		},
		TotalScore: total,
		Level:      LevelFor(total, s.cfg.Cutoffs),
		Trend:      models.TrendStable,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prev != nil {
		out.Delta = total - s.prev.TotalScore
		switch {
		case out.Delta >= trendEpsilon:
			out.Trend = models.TrendIncreasing
		case out.Delta <= -trendEpsilon:
			out.Trend = models.TrendDecreasing
		}
	}
	stored := out
	s.prev = &stored
	return out
}

// Previous returns the last computed score, if any.
func (s *RiskScorer) Previous() (models.RiskScore, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.prev == nil {
		return models.RiskScore{}, false
	}
	return *s.prev, true
}

// LevelFor buckets a total score. It is monotonic in total.
func LevelFor(total float64, c config.Cutoffs) models.RiskLevel {
	switch {
	case total >= c.Extreme:
		return models.RiskExtreme
	case total >= c.High:
		return models.RiskHigh
	case total >= c.Medium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

func (s *RiskScorer) marketRisk(data *models.AggregatedData) models.MarketRisk {
	vol := features.Clamp01(features.SafeDiv(finite(data.Volatility.Current), s.cfg.VolatilityReference))
	liq := features.Clamp01(1 - finite(data.Liquidity.DepthScore))
	return models.MarketRisk{
		Score:            features.Clamp01(0.6*vol + 0.4*liq),
		VolatilityImpact: vol,
		LiquidityImpact:  liq,
	}
}

func positionRisk(p models.PositionState) models.PositionRisk {
	size := features.Clamp01(features.SafeDiv(finite(p.Exposure), finite(p.MaxExposure)))
	lev := features.Clamp01(features.SafeDiv(finite(p.Leverage), finite(p.MaxLeverage)))
	used := finite(p.MarginUsed)
	margin := features.Clamp01(features.SafeDiv(used, used+finite(p.MarginAvailable)))
	return models.PositionRisk{
		Score:             features.Clamp01(0.4*size + 0.3*lev + 0.3*margin),
		SizeRatio:         size,
		LeverageRatio:     lev,
		MarginUtilization: margin,
	}
}

func (s *RiskScorer) executionRisk(e models.ExecutionState) models.ExecutionRisk {
	slip := features.Clamp01(features.SafeDiv(math.Abs(finite(e.RecentSlippage)), s.cfg.SlippageReference))
	lat := features.Clamp01(features.SafeDiv(float64(e.AvgLatency), float64(s.cfg.LatencyReference)))
	return models.ExecutionRisk{
		Score:        features.Clamp01(0.6*slip + 0.4*lat),
		SlippageRisk: slip,
		LatencyRisk:  lat,
	}
}

// systemicRisk scales position size by the diversification ratio sqrt(w'Cw) / sum|w|.
func systemicRisk(p models.PositionState, size float64) models.SystemicRisk {
	n := len(p.Positions)
	if n == 0 {
		return models.SystemicRisk{}
	}
	gross, quad := 0.0, 0.0
	for i := 0; i < n; i++ {
		wi := finite(p.Positions[i].Exposure)
		gross += math.Abs(wi)
		for j := 0; j < n; j++ {
			wj := finite(p.Positions[j].Exposure)
			quad += wi * wj * finite(p.Correlation(p.Positions[i].Symbol, p.Positions[j].Symbol))
		}
	}
	correlated := math.Sqrt(math.Max(quad, 0))
	ratio := features.Clamp01(features.SafeDiv(correlated, gross))
	return models.SystemicRisk{
		Score:              features.Clamp01(ratio * size),
		CorrelatedExposure: correlated,
	}
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
