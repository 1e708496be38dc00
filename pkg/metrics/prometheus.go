package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	decisions    *prometheus.CounterVec
	clamps       *prometheus.CounterVec
	trades       *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	guardState   *prometheus.GaugeVec
	threatScore  prometheus.Gauge
	aggression   prometheus.Gauge
	lastPrice    *prometheus.GaugeVec
	latency      *prometheus.HistogramVec
}

// New creates a new Prometheus metrics recorder.
func New() *Recorder {
	return &Recorder{
		decisions: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademaster_decisions_total",
				Help: "Total number of allocation decisions computed",
			},
			[]string{"symbol", "risk_level"},
		),
		clamps: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademaster_clamps_total",
				Help: "Total number of clamps and restrictions applied to decisions",
			},
			[]string{"reason"},
		),
		trades: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademaster_trades_total",
				Help: "Total number of trade outcomes recorded",
			},
			[]string{"symbol", "outcome"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "trademaster_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		guardState: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trademaster_guard_state",
				Help: "Protection guard state (1 for the active state, 0 otherwise)",
			},
			[]string{"state"},
		),
		threatScore: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trademaster_threat_score",
				Help: "Last assessed threat score",
			},
		),
		aggression: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "trademaster_aggression_multiplier",
				Help: "Current position size multiplier",
			},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "trademaster_last_price",
				Help: "Last streamed price for a symbol",
			},
			[]string{"symbol"},
		),
		latency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "trademaster_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

// RecordDecision records one computed allocation decision.
func (r *Recorder) RecordDecision(symbol, riskLevel string) {
	r.decisions.WithLabelValues(symbol, riskLevel).Inc()
}

// RecordClamp records one applied clamp or restriction.
func (r *Recorder) RecordClamp(reason string) {
	r.clamps.WithLabelValues(reason).Inc()
}

// RecordTrade records one trade outcome.
func (r *Recorder) RecordTrade(symbol string, loss bool) {
	outcome := "win"
	if loss {
		outcome = "loss"
	}
	r.trades.WithLabelValues(symbol, outcome).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// SetGuardState flags the active guard state.
func (r *Recorder) SetGuardState(state string) {
	for _, s := range []string{"normal", "safe_mode", "emergency_stopped"} {
		v := 0.0
		if s == state {
			v = 1
		}
		r.guardState.WithLabelValues(s).Set(v)
	}
}

// SetThreatScore records the last threat assessment score.
func (r *Recorder) SetThreatScore(score float64) {
	r.threatScore.Set(score)
}

// SetAggressionMultiplier records the applied position size multiplier.
func (r *Recorder) SetAggressionMultiplier(mult float64) {
	r.aggression.Set(mult)
}

// SetLastPrice records the last streamed price for a symbol.
func (r *Recorder) SetLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
