package models

import "time"

// MarketView is one consistent snapshot of price, volume, order book and indicators.
// Missing upstream fields are left at their zero value.
type MarketView struct {
	Symbol     string             `json:"symbol"`
	Timestamp  time.Time          `json:"timestamp"`
	Price      PriceStats         `json:"price"`
	Indicators TechnicalIndicators `json:"indicators"`
	OrderBook  OrderBook          `json:"order_book"`
	Volatility float64            `json:"volatility"`
	Liquidity  float64            `json:"liquidity"`
}

type PriceStats struct {
	Current   float64 `json:"current"`
	High24h   float64 `json:"high_24h"`
	Low24h    float64 `json:"low_24h"`
	Change24h float64 `json:"change_24h"` // fractional, 0.05 == +5%
	Volume24h float64 `json:"volume_24h"`
}

type TechnicalIndicators struct {
	RSI       float64        `json:"rsi"`
	MACD      MACD           `json:"macd"`
	Bollinger BollingerBands `json:"bollinger"`
}

type MACD struct {
	Value     float64 `json:"value"`
	Signal    float64 `json:"signal"`
	Histogram float64 `json:"histogram"`
}

type BollingerBands struct {
	Upper  float64 `json:"upper"`
	Middle float64 `json:"middle"`
	Lower  float64 `json:"lower"`
}

type BookLevel struct {
	Price float64 `json:"price"`
	Size  float64 `json:"size"`
}

type OrderBook struct {
	Bids   []BookLevel `json:"bids"`
	Asks   []BookLevel `json:"asks"`
	Spread float64     `json:"spread"`
	Depth  float64     `json:"depth"`
}

// SentimentReading is what a news or social analyzer reports.
type SentimentReading struct {
	Source           string    `json:"source"`
	OverallSentiment float64   `json:"overall_sentiment"` // -1..1
	ConfidenceScore  float64   `json:"confidence_score"`  // 0..1
	MarketImpact     float64   `json:"market_impact"`
	Timestamp        time.Time `json:"timestamp"`
}

// Sentiment is the combined view of news and social readings.
type Sentiment struct {
	Score  float64          `json:"score"`
	News   SentimentReading `json:"news"`
	Social SentimentReading `json:"social"`
}

type VolatilityEstimate struct {
	Current    float64 `json:"current"`
	Historical float64 `json:"historical"`
	Forecast   float64 `json:"forecast"`
}

type LiquidityTrend string

const (
	LiquidityIncreasing LiquidityTrend = "increasing"
	LiquidityDecreasing LiquidityTrend = "decreasing"
	LiquidityStable     LiquidityTrend = "stable"
)

type LiquidityEstimate struct {
	Ratio      float64        `json:"ratio"`
	PriorRatio float64        `json:"prior_ratio"`
	DepthScore float64        `json:"depth_score"`
	Trend      LiquidityTrend `json:"trend"`
}

// AggregatedData is the output of one aggregation cycle.
type AggregatedData struct {
	MarketData MarketView         `json:"market_data"`
	Signals    []Signal           `json:"signals"`
	Sentiment  Sentiment          `json:"sentiment"`
	Volatility VolatilityEstimate `json:"volatility"`
	Liquidity  LiquidityEstimate  `json:"liquidity"`
	Timestamp  time.Time          `json:"timestamp"`
}

// Candle represents an OHLCV record read from the price history store.
type Candle struct {
	Bucket time.Time
	Symbol string
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}
