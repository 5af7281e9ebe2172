package models

import "time"

type SignalType string

const (
	SignalPrice       SignalType = "price"
	SignalVolume      SignalType = "volume"
	SignalSentiment   SignalType = "sentiment"
	SignalTechnical   SignalType = "technical"
	SignalFundamental SignalType = "fundamental"
)

type Direction string

const (
	DirectionBuy     Direction = "buy"
	DirectionSell    Direction = "sell"
	DirectionNeutral Direction = "neutral"
)

// Signal is a timestamped directional inference. It is never mutated after creation.
type Signal struct {
	ID         string             `json:"id"`
	Type       SignalType         `json:"type"`
	Direction  Direction          `json:"direction"`
	Strength   float64            `json:"strength"`
	Confidence float64            `json:"confidence"`
	Timestamp  time.Time          `json:"timestamp"`
	Source     string             `json:"source"`
	Metrics    map[string]float64 `json:"metrics,omitempty"`
}

// DirectionOf maps the sign of v to a direction.
func DirectionOf(v float64) Direction {
	switch {
	case v > 0:
		return DirectionBuy
	case v < 0:
		return DirectionSell
	default:
		return DirectionNeutral
	}
}
