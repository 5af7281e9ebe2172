package api

import (
	"errors"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/service/metrics"
	"RiskDesk/internal/usecase"
	xhttp "RiskDesk/pkg/http"
	xlogger "RiskDesk/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RiskSource exposes the newest outputs of the risk pipeline.
type RiskSource interface {
	LatestAggregate() (models.AggregatedData, bool)
	LatestScore() (models.RiskScore, bool)
}

// RiskEchoHandler serves the live risk view: aggregate, signals, score and alerts.
type RiskEchoHandler struct {
	logger  *xlogger.Logger
	source  RiskSource
	signals *usecase.SignalLog
	alerts  *usecase.AlertStore
	metrics *metrics.APIMetrics
}

var _ xhttp.Handler = (*RiskEchoHandler)(nil)

func NewRiskEchoHandler(logger *xlogger.Logger, source RiskSource, signals *usecase.SignalLog, alerts *usecase.AlertStore, m *metrics.APIMetrics) *RiskEchoHandler {
	return &RiskEchoHandler{logger: logger, source: source, signals: signals, alerts: alerts, metrics: m}
}

func (h *RiskEchoHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/market/aggregate", h.Aggregate)
	g.GET("/signals", h.Signals)
	g.GET("/risk/score", h.Score)
	g.GET("/risk/alerts", h.Alerts)
	g.POST("/risk/alerts/:id/ack", h.Acknowledge)
	g.DELETE("/risk/alerts", h.ClearAlerts)
}

func (h *RiskEchoHandler) Aggregate(c echo.Context) error {
	defer h.metrics.Observe("aggregate")()
	data, ok := h.source.LatestAggregate()
	if !ok {
		h.metrics.Error("aggregate", "not_ready")
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("no aggregation cycle has completed yet"))
	}
	return xhttp.SuccessResponse(c, data)
}

func (h *RiskEchoHandler) Signals(c echo.Context) error {
	defer h.metrics.Observe("signals")()
	req := &models.SignalsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error("signals", "validation")
		return xhttp.BadRequestResponse(c, verr)
	}
	rows := h.signals.List(req.Limit)
	return xhttp.ListResponse(c, rows, int64(h.signals.Len()))
}

func (h *RiskEchoHandler) Score(c echo.Context) error {
	defer h.metrics.Observe("score")()
	score, ok := h.source.LatestScore()
	if !ok {
		h.metrics.Error("score", "not_ready")
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("no risk score has been computed yet"))
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, score)
}

func (h *RiskEchoHandler) Alerts(c echo.Context) error {
	defer h.metrics.Observe("alerts")()
	req := &models.AlertsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error("alerts", "validation")
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, total := h.alerts.Page(req.Limit, req.Unacked)
	return xhttp.ListResponse(c, rows, int64(total))
}

func (h *RiskEchoHandler) Acknowledge(c echo.Context) error {
	defer h.metrics.Observe("alert_ack")()
	req := &models.AlertIDRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		h.metrics.Error("alert_ack", "validation")
		return xhttp.BadRequestResponse(c, verr)
	}
	alert, err := h.alerts.Acknowledge(req.ID)
	if errors.Is(err, models.ErrNotFound) {
		h.metrics.Error("alert_ack", "not_found")
		return xhttp.AppErrorResponse(c, xhttp.NotFoundErrorf("alert %s not found", req.ID).WithParam("id", req.ID))
	}
	if err != nil {
		h.logger.Error("alert acknowledge error", xlogger.String("id", req.ID), xlogger.Error(err))
		h.metrics.Error("alert_ack", "internal")
		return xhttp.AppErrorResponse(c, xhttp.InternalError("could not acknowledge alert").WithError(err))
	}
	return xhttp.SuccessResponse(c, alert)
}

func (h *RiskEchoHandler) ClearAlerts(c echo.Context) error {
	defer h.metrics.Observe("alert_clear")()
	n := h.alerts.Clear()
	h.logger.Info("alerts cleared", xlogger.Int("count", n))
	return xhttp.SuccessResponse(c, map[string]int{"cleared": n})
}
