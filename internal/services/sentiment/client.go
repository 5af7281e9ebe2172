package sentiment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"RiskDesk/internal/domain/models"
	dsvc "RiskDesk/internal/domain/service"
	"RiskDesk/internal/services/features"
	xhttp "RiskDesk/pkg/http"
)

const (
	SourceNews   = "news"
	SourceSocial = "social"
)

type analyzeRequest struct {
	Symbol string `json:"symbol"`
}

type analyzeResponse struct {
	OverallSentiment float64   `json:"overall_sentiment"`
	ConfidenceScore  float64   `json:"confidence_score"`
	MarketImpact     float64   `json:"market_impact"`
	Timestamp        time.Time `json:"timestamp"`
}

// HTTPAnalyzer scores sentiment by POSTing {"symbol": ...} to one endpoint of the
// sentiment service. Transport errors and 429/5xx responses are retried.
type HTTPAnalyzer struct {
	source   string
	url      string
	client   *xhttp.Client
	attempts int
	backoff  time.Duration
	now      func() time.Time
}

var _ dsvc.SentimentAnalyzer = (*HTTPAnalyzer)(nil)

type Option func(*HTTPAnalyzer)

func WithAttempts(n int) Option {
	return func(a *HTTPAnalyzer) {
		if n > 0 {
			a.attempts = n
		}
	}
}

func WithBackoff(d time.Duration) Option {
	return func(a *HTTPAnalyzer) { a.backoff = d }
}

func WithClient(c *xhttp.Client) Option {
	return func(a *HTTPAnalyzer) { a.client = c }
}

func WithClock(now func() time.Time) Option {
	return func(a *HTTPAnalyzer) { a.now = now }
}

func NewHTTPAnalyzer(source, baseURL, path string, timeout time.Duration, opts ...Option) *HTTPAnalyzer {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	a := &HTTPAnalyzer{
		source:   source,
		url:      baseURL + path,
		client:   xhttp.NewClient(xhttp.WithTimeout(timeout)),
		attempts: 1,
		backoff:  50 * time.Millisecond,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// NewNewsAnalyzer and NewSocialAnalyzer bind the two service endpoints.
func NewNewsAnalyzer(baseURL, path string, timeout time.Duration, opts ...Option) *HTTPAnalyzer {
	return NewHTTPAnalyzer(SourceNews, baseURL, path, timeout, opts...)
}

func NewSocialAnalyzer(baseURL, path string, timeout time.Duration, opts ...Option) *HTTPAnalyzer {
	return NewHTTPAnalyzer(SourceSocial, baseURL, path, timeout, opts...)
}

func (a *HTTPAnalyzer) Source() string { return a.source }

// Analyze returns a reading with sentiment clamped to [-1,1] and confidence to [0,1].
func (a *HTTPAnalyzer) Analyze(ctx context.Context, symbol string) (*models.SentimentReading, error) {
	var resp analyzeResponse
	if err := a.postWithRetry(ctx, analyzeRequest{Symbol: symbol}, &resp); err != nil {
		return nil, fmt.Errorf("%s sentiment: %w", a.source, err)
	}
	ts := resp.Timestamp
	if ts.IsZero() {
		ts = a.now()
	}
	return &models.SentimentReading{
		Source:           a.source,
		OverallSentiment: features.Clamp(resp.OverallSentiment, -1, 1),
		ConfidenceScore:  features.Clamp01(resp.ConfidenceScore),
		MarketImpact:     resp.MarketImpact,
		Timestamp:        ts.UTC(),
	}, nil
}

func (a *HTTPAnalyzer) post(ctx context.Context, payload, dest interface{}) error {
	return a.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     a.url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}, dest)
}

func (a *HTTPAnalyzer) postWithRetry(ctx context.Context, payload, dest interface{}) error {
	var err error
	for i := 1; i <= a.attempts; i++ {
		err = a.post(ctx, payload, dest)
		if err == nil || !retryable(err) || i == a.attempts {
			return err
		}
		select {
		case <-time.After(time.Duration(i) * a.backoff):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}

// retryable treats 429/5xx and transport failures as transient; other statuses are final.
func retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	return true
}
