package service

import (
	"context"

	"RiskDesk/internal/domain/models"
)

// SentimentAnalyzer scores current sentiment for a symbol from one source.
type SentimentAnalyzer interface {
	Analyze(ctx context.Context, symbol string) (*models.SentimentReading, error)
	Source() string
}
