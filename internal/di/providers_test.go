package di

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"RiskDesk/pkg/config"
	applogger "RiskDesk/pkg/logger"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDisabledBackendsProvideNil(t *testing.T) {
	cfg := config.Default()

	ch, err := ProvideClickHouseClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, ch)
	assert.Nil(t, ProvidePriceStore(ch, cfg, applogger.NewNop()))

	rc, err := ProvideRedisClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, rc)
	assert.Nil(t, ProvideQueue(cfg, rc, applogger.NewNop()))

	consumer, err := ProvideKafkaConsumer(cfg, applogger.NewNop(), ProvideRegistry(), nil)
	require.NoError(t, err)
	assert.Nil(t, consumer)

	state := ProvideMarketState(cfg)
	m := ProvideMetrics(ProvideRegistry())
	assert.Nil(t, ProvideFeedCollector(cfg, state, nil, m, applogger.NewNop()))
	assert.Nil(t, ProvideSentimentCollector(cfg, state, m, applogger.NewNop()))
}

func TestMemoryOnlyCache(t *testing.T) {
	c := ProvideCache(nil)
	defer c.Close()
	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", map[string]int{"v": 1}, time.Minute))
	var got map[string]int
	require.NoError(t, c.Get(ctx, "k", &got))
	assert.Equal(t, 1, got["v"])
}

func TestHandlersWithoutQueue(t *testing.T) {
	cfg := config.Default()
	reg := ProvideRegistry()
	m := ProvideMetrics(reg)
	stages, err := ProvideStages(cfg)
	require.NoError(t, err)

	pipeline := ProvideRiskPipeline(cfg, ProvideMarketState(cfg), stages, m, nil, nil, applogger.NewNop())
	svc := ProvideBacktestService(cfg, m, applogger.NewNop(), nil, ProvideCache(nil), nil)
	jobs := ProvideBacktestJobs(cfg, svc, nil, ProvideCache(nil), applogger.NewNop())
	require.Nil(t, jobs)

	handlers := ProvideHandlers(applogger.NewNop(), pipeline, stages, svc, jobs, ProvideRateLimiter(cfg), ProvideAPIMetrics(reg))
	e := echo.New()
	g := e.Group("/api")
	for _, h := range handlers {
		h.RegisterRoutes(g)
	}

	req := httptest.NewRequest(http.MethodPost, "/api/backtest/jobs", strings.NewReader(`{}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/risk/score", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
