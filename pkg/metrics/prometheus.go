package metrics

import (
	"time"

	"RiskDesk/internal/domain/models"
	"RiskDesk/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements repository.Metrics using Prometheus.
type Recorder struct {
	cycles        *prometheus.CounterVec
	cycleLatency  *prometheus.HistogramVec
	componentRisk *prometheus.GaugeVec
	totalRisk     prometheus.Gauge
	riskLevel     *prometheus.GaugeVec
	actions       *prometheus.CounterVec
	signals       *prometheus.CounterVec
	backtests     *prometheus.CounterVec
	backtestDur   prometheus.Histogram
	backtestDedup prometheus.Counter
	errorsTotal   *prometheus.CounterVec
}

var levels = []models.RiskLevel{models.RiskLow, models.RiskMedium, models.RiskHigh, models.RiskExtreme}

// New creates a recorder whose collectors are registered on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdesk_pipeline_cycles_total",
			Help: "Pipeline cycles by component and result (ok, skipped, busy, error)",
		}, []string{"component", "result"}),
		cycleLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "riskdesk_pipeline_cycle_duration_seconds",
			Help:    "Duration of pipeline cycles",
			Buckets: prometheus.DefBuckets,
		}, []string{"component"}),
		componentRisk: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskdesk_risk_component_score",
			Help: "Latest component risk score",
		}, []string{"component"}),
		totalRisk: f.NewGauge(prometheus.GaugeOpts{
			Name: "riskdesk_risk_total_score",
			Help: "Latest total risk score",
		}),
		riskLevel: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "riskdesk_risk_level",
			Help: "1 for the current risk level, 0 otherwise",
		}, []string{"level"}),
		actions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdesk_control_actions_total",
			Help: "Control actions emitted by type",
		}, []string{"type"}),
		signals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdesk_signals_total",
			Help: "Signals emitted by type",
		}, []string{"type"}),
		backtests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdesk_backtests_total",
			Help: "Backtest runs by result",
		}, []string{"result"}),
		backtestDur: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "riskdesk_backtest_duration_seconds",
			Help:    "Backtest run duration",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		backtestDedup: f.NewCounter(prometheus.CounterOpts{
			Name: "riskdesk_backtest_dedup_total",
			Help: "Backtest requests served by an identical in-flight run",
		}),
		errorsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "riskdesk_errors_total",
			Help: "Total number of errors encountered",
		}, []string{"type"}),
	}
}

func (r *Recorder) RecordCycle(component, result string) {
	r.cycles.WithLabelValues(component, result).Inc()
}

func (r *Recorder) RecordCycleLatency(component string, d time.Duration) {
	r.cycleLatency.WithLabelValues(component).Observe(d.Seconds())
}

func (r *Recorder) RecordRiskScore(s *models.RiskScore) {
	r.componentRisk.WithLabelValues("market").Set(s.Components.Market.Score)
	r.componentRisk.WithLabelValues("position").Set(s.Components.Position.Score)
	r.componentRisk.WithLabelValues("execution").Set(s.Components.Execution.Score)
	r.componentRisk.WithLabelValues("systemic").Set(s.Components.Systemic.Score)
	r.totalRisk.Set(s.TotalScore)
	for _, l := range levels {
		v := 0.0
		if l == s.Level {
			v = 1
		}
		r.riskLevel.WithLabelValues(string(l)).Set(v)
	}
}

func (r *Recorder) RecordAction(actionType string) {
	r.actions.WithLabelValues(actionType).Inc()
}

func (r *Recorder) RecordSignal(signalType string) {
	r.signals.WithLabelValues(signalType).Inc()
}

func (r *Recorder) RecordBacktest(result string, d time.Duration) {
	r.backtests.WithLabelValues(result).Inc()
	r.backtestDur.Observe(d.Seconds())
}

func (r *Recorder) RecordBacktestDedup() { r.backtestDedup.Inc() }

func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

var _ repository.Metrics = (*Recorder)(nil)
