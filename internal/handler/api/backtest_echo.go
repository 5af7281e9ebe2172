package api

import (
	"context"
	"errors"
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/service/metrics"
	"RiskDesk/internal/service/ratelimit"
	"RiskDesk/internal/usecase"
	xhttp "RiskDesk/pkg/http"
	xlogger "RiskDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// BacktestJobQueue accepts backtests for asynchronous execution.
type BacktestJobQueue interface {
	Submit(ctx context.Context, cfg models.BacktestConfig, prices []models.PricePoint) (models.BacktestJobState, error)
	Get(ctx context.Context, id string) (models.BacktestJobState, error)
}

// BacktestEchoHandler serves synchronous and queued backtests. Runs are rate
// limited per client address.
type BacktestEchoHandler struct {
	logger  *xlogger.Logger
	runner  usecase.BacktestRunner
	jobs    BacktestJobQueue
	limiter *ratelimit.Limiter
	metrics *metrics.APIMetrics
}

var _ xhttp.Handler = (*BacktestEchoHandler)(nil)

// NewBacktestEchoHandler builds the handler. jobs may be nil when no queue is
// configured; the job endpoints then answer 503.
func NewBacktestEchoHandler(logger *xlogger.Logger, runner usecase.BacktestRunner, jobs BacktestJobQueue, limiter *ratelimit.Limiter, m *metrics.APIMetrics) *BacktestEchoHandler {
	return &BacktestEchoHandler{logger: logger, runner: runner, jobs: jobs, limiter: limiter, metrics: m}
}

func (h *BacktestEchoHandler) RegisterRoutes(g *echo.Group) {
	g.POST("/backtest", h.Run)
	g.POST("/backtest/jobs", h.Submit)
	g.GET("/backtest/jobs/:id", h.Job)
	g.POST("/backtest/drawdowns", h.Drawdowns)
}

// allow takes a token for the client on endpoint, or returns the 429 to send.
func (h *BacktestEchoHandler) allow(c echo.Context, endpoint string) *xhttp.AppError {
	if h.limiter == nil {
		return nil
	}
	key := c.RealIP() + ":" + endpoint
	if h.limiter.Allow(key) {
		return nil
	}
	h.metrics.Throttled(endpoint)
	appErr := xhttp.TooManyRequestsError("too many backtest requests")
	if d := h.limiter.Delay(key); d > 0 && d < time.Hour {
		appErr.WithRetryAfter(d)
	}
	return appErr
}

func (h *BacktestEchoHandler) Run(c echo.Context) error {
	const endpoint = "backtest"
	defer h.metrics.Observe(endpoint)()
	if appErr := h.allow(c, endpoint); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error(endpoint, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	res, err := h.runner.Run(c.Request().Context(), req.BacktestConfig, req.Prices)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *BacktestEchoHandler) Submit(c echo.Context) error {
	const endpoint = "backtest_submit"
	defer h.metrics.Observe(endpoint)()
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("backtest queue is not enabled"))
	}
	if appErr := h.allow(c, endpoint); appErr != nil {
		return xhttp.AppErrorResponse(c, appErr)
	}
	req := &models.BacktestRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error(endpoint, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}

	st, err := h.jobs.Submit(c.Request().Context(), req.BacktestConfig, req.Prices)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.AcceptedResponse(c, st)
}

func (h *BacktestEchoHandler) Job(c echo.Context) error {
	const endpoint = "backtest_job"
	defer h.metrics.Observe(endpoint)()
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("backtest queue is not enabled"))
	}
	req := &models.BacktestJobRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error(endpoint, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}
	st, err := h.jobs.Get(c.Request().Context(), req.ID)
	if err != nil {
		return h.fail(c, endpoint, err)
	}
	return xhttp.SuccessResponse(c, st)
}

func (h *BacktestEchoHandler) Drawdowns(c echo.Context) error {
	const endpoint = "backtest_drawdowns"
	defer h.metrics.Observe(endpoint)()
	req := &models.DrawdownsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error(endpoint, "validation")
		return xhttp.BadRequestResponse(c, verr)
	}
	periods := usecase.DrawdownPeriods(req.EquityCurve)
	if periods == nil {
		periods = []models.DrawdownPeriod{}
	}
	return xhttp.ListResponse(c, periods, int64(len(periods)))
}

func (h *BacktestEchoHandler) fail(c echo.Context, endpoint string, err error) error {
	appErr, kind := backtestAppError(err)
	h.metrics.Error(endpoint, kind)
	if kind == "internal" {
		h.logger.Error("backtest usecase error", xlogger.String("endpoint", endpoint), xlogger.Error(err))
	}
	return xhttp.AppErrorResponse(c, appErr)
}

// backtestAppError maps usecase errors to HTTP errors and a metric kind.
func backtestAppError(err error) (*xhttp.AppError, string) {
	var verrs models.ValidationErrors
	var serr *models.SimulationError
	switch {
	case errors.As(err, &verrs):
		appErr := xhttp.BadRequestError("invalid backtest config").WithError(err)
		for _, v := range verrs {
			appErr.WithParam(v.Field, v.Message)
		}
		return appErr, "validation"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return xhttp.ServiceUnavailableError("backtest cancelled").WithError(err), "cancelled"
	case errors.As(err, &serr):
		return xhttp.UnprocessableError(serr.Error()).WithParam("step", serr.Step).WithError(err), "simulation"
	case errors.Is(err, models.ErrNoPriceHistory), errors.Is(err, models.ErrNotFound):
		return xhttp.NotFoundError(err.Error()).WithError(err), "not_found"
	default:
		return xhttp.InternalError("backtest failed").WithError(err), "internal"
	}
}
