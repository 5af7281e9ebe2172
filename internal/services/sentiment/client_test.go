package sentiment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	xhttp "RiskDesk/pkg/http"
)

func TestAnalyzeClampsAndStamps(t *testing.T) {
	now := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req analyzeRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		if r.Method != http.MethodPost || r.URL.Path != "/sentiment/news" || req.Symbol != "BTCUSDT" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"overall_sentiment":1.7,"confidence_score":-0.2,"market_impact":0.3}`))
	}))
	defer srv.Close()

	a := NewNewsAnalyzer(srv.URL, "/sentiment/news", time.Second, WithClock(func() time.Time { return now }))
	got, err := a.Analyze(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if got.Source != SourceNews || got.OverallSentiment != 1 || got.ConfidenceScore != 0 || got.MarketImpact != 0.3 {
		t.Fatalf("unexpected reading %+v", got)
	}
	if !got.Timestamp.Equal(now) {
		t.Fatalf("timestamp = %v, want %v", got.Timestamp, now)
	}
}

func TestAnalyzeRetriesTransientFailures(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"overall_sentiment":-0.4,"confidence_score":0.9}`))
	}))
	defer srv.Close()

	a := NewSocialAnalyzer(srv.URL, "/s", time.Second, WithAttempts(3), WithBackoff(time.Millisecond))
	got, err := a.Analyze(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if calls.Load() != 3 || got.OverallSentiment != -0.4 {
		t.Fatalf("calls=%d reading=%+v", calls.Load(), got)
	}
}

func TestAnalyzeDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewNewsAnalyzer(srv.URL, "/missing", time.Second, WithAttempts(5), WithBackoff(time.Millisecond))
	_, err := a.Analyze(context.Background(), "BTCUSDT")
	var se *xhttp.StatusError
	if !errors.As(err, &se) || se.Code != http.StatusNotFound {
		t.Fatalf("expected 404 StatusError, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single call, got %d", calls.Load())
	}
}
