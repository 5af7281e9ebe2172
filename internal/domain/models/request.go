package models

import "encoding/json"

// SignalsRequest lists the newest signals first.
type SignalsRequest struct {
	Limit int `query:"limit" default:"100" validate:"gte=1,lte=1000"`
}

// AlertsRequest lists alerts newest first, optionally only unacknowledged ones.
type AlertsRequest struct {
	Limit   int  `query:"limit" default:"100" validate:"gte=1,lte=1000"`
	Unacked bool `query:"unacked"`
}

type AlertIDRequest struct {
	ID string `param:"id" validate:"required"`
}

// BacktestRequest is a backtest config plus an optional inline price series.
// Without prices the series is read from the price history store.
type BacktestRequest struct {
	BacktestConfig
	Prices []PricePoint `json:"prices,omitempty"`
}

// UnmarshalJSON decodes the config and the series separately; the embedded
// config's own decoder would otherwise drop prices.
func (r *BacktestRequest) UnmarshalJSON(data []byte) error {
	if err := json.Unmarshal(data, &r.BacktestConfig); err != nil {
		return err
	}
	var series struct {
		Prices []PricePoint `json:"prices"`
	}
	if err := json.Unmarshal(data, &series); err != nil {
		return err
	}
	r.Prices = series.Prices
	return nil
}

type BacktestJobRequest struct {
	ID string `param:"id" validate:"required,uuid"`
}

type DrawdownsRequest struct {
	EquityCurve []EquityPoint `json:"equity_curve" validate:"required,min=1"`
}
