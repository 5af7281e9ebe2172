package usecase

import (
	"math"
	"sync"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/services/features"

	"github.com/google/uuid"
)

type AggregatorConfig struct {
	VolatilityWindow     int
	PriceChangeThreshold float64
	SentimentThreshold   float64
	VolumeSpikeFactor    float64
	LiquidityWindow      time.Duration
}

func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{
		VolatilityWindow:     20,
		PriceChangeThreshold: 0.05,
		SentimentThreshold:   0.3,
		VolumeSpikeFactor:    2,
		LiquidityWindow:      24 * time.Hour,
	}
}

// AggregateInput is everything one aggregation cycle reads.
type AggregateInput struct {
	View    *models.MarketView
	News    *models.SentimentReading
	Social  *models.SentimentReading
	History []float64 // recent prices, oldest first
}

type liquiditySample struct {
	at    time.Time
	ratio float64
}

// SignalAggregator fuses market, sentiment and price history into AggregatedData.
// The liquidity and volume trackers carry state between cycles, so Aggregate
// must be called in input order.
type SignalAggregator struct {
	cfg   AggregatorConfig
	now   func() time.Time
	newID func() string

	mu          sync.Mutex
	priorRatio  float64
	hasPrior    bool
	priorVolume float64
	samples     []liquiditySample
}

type AggregatorOption func(*SignalAggregator)

func WithAggregatorClock(now func() time.Time) AggregatorOption {
	return func(a *SignalAggregator) { a.now = now }
}

func WithSignalIDs(gen func() string) AggregatorOption {
	return func(a *SignalAggregator) { a.newID = gen }
}

func NewSignalAggregator(cfg AggregatorConfig, opts ...AggregatorOption) *SignalAggregator {
	def := DefaultAggregatorConfig()
	if cfg.VolatilityWindow <= 0 {
		cfg.VolatilityWindow = def.VolatilityWindow
	}
	if cfg.PriceChangeThreshold <= 0 {
		cfg.PriceChangeThreshold = def.PriceChangeThreshold
	}
	if cfg.SentimentThreshold <= 0 {
		cfg.SentimentThreshold = def.SentimentThreshold
	}
	if cfg.VolumeSpikeFactor <= 0 {
		cfg.VolumeSpikeFactor = def.VolumeSpikeFactor
	}
	if cfg.LiquidityWindow <= 0 {
		cfg.LiquidityWindow = def.LiquidityWindow
	}
	a := &SignalAggregator{cfg: cfg, now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(a)
	}
	return a
}

// Aggregate runs one cycle. It returns models.ErrInputUnavailable when the market
// view or either sentiment reading is missing; tracker state is untouched then.
func (a *SignalAggregator) Aggregate(in AggregateInput) (models.AggregatedData, error) {
	if in.View == nil || in.News == nil || in.Social == nil {
		return models.AggregatedData{}, models.ErrInputUnavailable
	}
	view := *in.View
	ts := view.Timestamp
	if ts.IsZero() {
		ts = a.now()
	}

	sentiment := combineSentiment(*in.News, *in.Social)
	vol := a.volatility(in.History, view.Price.Current, sentiment.Score)

	a.mu.Lock()
	defer a.mu.Unlock()

	liq := a.liquidity(view, ts)
	signals := a.signals(view, *in.News, ts)
	a.priorVolume = view.Price.Volume24h

	return models.AggregatedData{
		MarketData: view,
		Signals:    signals,
		Sentiment:  sentiment,
		Volatility: vol,
		Liquidity:  liq,
		Timestamp:  ts,
	}, nil
}

func combineSentiment(news, social models.SentimentReading) models.Sentiment {
	wn, ws := features.Clamp01(news.ConfidenceScore), features.Clamp01(social.ConfidenceScore)
	var score float64
	if wn+ws == 0 {
		score = (news.OverallSentiment + social.OverallSentiment) / 2
	} else {
		score = (wn*news.OverallSentiment + ws*social.OverallSentiment) / (wn + ws)
	}
	return models.Sentiment{
		Score:  features.Clamp(score, -1, 1),
		News:   news,
		Social: social,
	}
}

func (a *SignalAggregator) volatility(history []float64, current, sentiment float64) models.VolatilityEstimate {
	prices := history
	if current > 0 && (len(history) == 0 || history[len(history)-1] != current) {
		prices = append(append(make([]float64, 0, len(history)+1), history...), current)
	}
	returns := features.LogReturns(prices)
	if len(returns) == 0 {
		return models.VolatilityEstimate{}
	}
	hist := features.RealizedVolatility(returns, 0, features.TradingDaysPerYear)
	cur := features.RealizedVolatility(returns, a.cfg.VolatilityWindow, features.TradingDaysPerYear)
	return models.VolatilityEstimate{
		Current:    cur,
		Historical: hist,
		Forecast:   math.Max(0, cur*(1+sentiment)),
	}
}

func (a *SignalAggregator) liquidity(view models.MarketView, ts time.Time) models.LiquidityEstimate {
	ratio := 0.0
	if view.Price.Current > 0 {
		ratio = view.Price.Volume24h / view.Price.Current
	}

	cutoff := ts.Add(-a.cfg.LiquidityWindow)
	kept := a.samples[:0]
	maxRatio := 0.0
	for _, s := range a.samples {
		if s.at.Before(cutoff) {
			continue
		}
		kept = append(kept, s)
		maxRatio = math.Max(maxRatio, s.ratio)
	}
	a.samples = append(kept, liquiditySample{at: ts, ratio: ratio})

	depth := 1.0
	if maxRatio > 0 {
		depth = features.Clamp01(ratio / maxRatio)
	}

	trend := models.LiquidityStable
	prior := a.priorRatio
	if a.hasPrior && prior > 0 {
		switch {
		case ratio > prior*1.10:
			trend = models.LiquidityIncreasing
		case ratio < prior*0.90:
			trend = models.LiquidityDecreasing
		}
	}
	a.priorRatio, a.hasPrior = ratio, true

	return models.LiquidityEstimate{Ratio: ratio, PriorRatio: prior, DepthScore: depth, Trend: trend}
}

func (a *SignalAggregator) signals(view models.MarketView, news models.SentimentReading, ts time.Time) []models.Signal {
	out := make([]models.Signal, 0, 4)
	emit := func(t models.SignalType, dir models.Direction, strength, confidence float64, source string, metrics map[string]float64) {
		out = append(out, models.Signal{
			ID:         a.newID(),
			Type:       t,
			Direction:  dir,
			Strength:   features.Clamp01(strength),
			Confidence: features.Clamp01(confidence),
			Timestamp:  ts,
			Source:     source,
			Metrics:    metrics,
		})
	}

	if change := view.Price.Change24h; math.Abs(change) > a.cfg.PriceChangeThreshold {
		emit(models.SignalPrice, models.DirectionOf(change), math.Min(math.Abs(change), 1), 0.8,
			"price_change", map[string]float64{"change_24h": change, "price": view.Price.Current})
	}

	if s := news.OverallSentiment; math.Abs(s) > a.cfg.SentimentThreshold {
		emit(models.SignalSentiment, models.DirectionOf(s), math.Abs(s), news.ConfidenceScore,
			"news_sentiment", map[string]float64{"sentiment": s, "market_impact": news.MarketImpact})
	}

	if prior, vol := a.priorVolume, view.Price.Volume24h; prior > 0 && vol > a.cfg.VolumeSpikeFactor*prior {
		ratio := vol / prior
		emit(models.SignalVolume, models.DirectionOf(view.Price.Change24h), 1-1/ratio, 0.6,
			"volume_spike", map[string]float64{"volume_24h": vol, "prior_volume": prior, "ratio": ratio})
	}

	switch rsi := view.Indicators.RSI; {
	case rsi > 0 && rsi < 30:
		emit(models.SignalTechnical, models.DirectionBuy, (30-rsi)/30, 0.6, "rsi", map[string]float64{"rsi": rsi})
	case rsi > 70:
		emit(models.SignalTechnical, models.DirectionSell, (rsi-70)/30, 0.6, "rsi", map[string]float64{"rsi": rsi})
	}

	return out
}
