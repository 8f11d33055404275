package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all Prometheus metrics. A nil *Registry is valid and
// records nothing.
type Registry struct {
	*prometheus.Registry

	// HTTP metrics
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	// Business metrics
	signalsDetected  *prometheus.CounterVec
	filterVerdicts   *prometheus.CounterVec
	decisionsTotal   *prometheus.CounterVec
	tradesTotal      *prometheus.CounterVec
	tradeProfit      *prometheus.HistogramVec
	scanCycles       prometheus.Counter
	scanDuration     prometheus.Histogram
	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	trainingsTotal   *prometheus.CounterVec
	watchedSymbols   prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &Registry{
		Registry: reg,

		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),

		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		httpRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently in flight",
			},
		),
	}

	reg.MustRegister(r.httpRequestsTotal)
	reg.MustRegister(r.httpRequestDuration)
	reg.MustRegister(r.httpRequestsInFlight)

	// Business metrics
	r.signalsDetected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reversion_signals_detected_total",
			Help: "Total number of band re-entry signals detected",
		},
		[]string{"symbol", "action"},
	)
	r.filterVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reversion_filter_verdicts_total",
			Help: "Quality filter verdicts by outcome",
		},
		[]string{"verdict"},
	)
	r.decisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reversion_decisions_total",
			Help: "Decisions logged by the live cycle",
		},
		[]string{"symbol", "decision"},
	)
	r.tradesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reversion_trades_total",
			Help: "Simulated or submitted trades",
		},
		[]string{"symbol", "side", "outcome"},
	)
	r.tradeProfit = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reversion_trade_profit",
			Help:    "Realized profit per simulated trade in account currency",
			Buckets: []float64{-1000, -250, -100, -25, 0, 25, 100, 250, 1000},
		},
		[]string{"symbol"},
	)
	r.scanCycles = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "reversion_scan_cycles_total",
			Help: "Total number of decision cycles completed",
		},
	)
	r.scanDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reversion_scan_duration_seconds",
			Help:    "Decision cycle duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)
	r.backtestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reversion_backtests_total",
			Help: "Total number of backtests",
		},
		[]string{"status"},
	)
	r.backtestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "reversion_backtest_duration_seconds",
			Help:    "Backtest duration in seconds",
			Buckets: []float64{0.01, 0.1, 1, 5, 10, 30, 60, 120, 300},
		},
	)
	r.trainingsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reversion_model_trainings_total",
			Help: "Quality model training attempts",
		},
		[]string{"status"},
	)
	r.watchedSymbols = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "reversion_watched_symbols",
			Help: "Number of symbols evaluated each cycle",
		},
	)

	reg.MustRegister(r.signalsDetected)
	reg.MustRegister(r.filterVerdicts)
	reg.MustRegister(r.decisionsTotal)
	reg.MustRegister(r.tradesTotal)
	reg.MustRegister(r.tradeProfit)
	reg.MustRegister(r.scanCycles)
	reg.MustRegister(r.scanDuration)
	reg.MustRegister(r.backtestsTotal)
	reg.MustRegister(r.backtestDuration)
	reg.MustRegister(r.trainingsTotal)
	reg.MustRegister(r.watchedSymbols)

	return r
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.Registry, promhttp.HandlerOpts{Registry: r.Registry})
}

// RecordRequest records metrics for an HTTP request.
func (r *Registry) RecordRequest(method, path string, status int, duration float64) {
	if r == nil {
		return
	}
	statusStr := statusToString(status)
	r.httpRequestsTotal.WithLabelValues(method, path, statusStr).Inc()
	r.httpRequestDuration.WithLabelValues(method, path).Observe(duration)
}

// InFlightInc increments in-flight requests.
func (r *Registry) InFlightInc() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Inc()
}

// InFlightDec decrements in-flight requests.
func (r *Registry) InFlightDec() {
	if r == nil {
		return
	}
	r.httpRequestsInFlight.Dec()
}

// RecordSignal records a detected signal.
func (r *Registry) RecordSignal(symbol, action string) {
	if r == nil {
		return
	}
	r.signalsDetected.WithLabelValues(symbol, action).Inc()
}

// RecordFilterVerdict records a quality filter verdict.
func (r *Registry) RecordFilterVerdict(verdict string) {
	if r == nil {
		return
	}
	r.filterVerdicts.WithLabelValues(verdict).Inc()
}

// RecordDecision records a logged decision.
func (r *Registry) RecordDecision(symbol, decision string) {
	if r == nil {
		return
	}
	r.decisionsTotal.WithLabelValues(symbol, decision).Inc()
}

// RecordTrade records a closed trade and its profit.
func (r *Registry) RecordTrade(symbol, side, outcome string, profit float64) {
	if r == nil {
		return
	}
	r.tradesTotal.WithLabelValues(symbol, side, outcome).Inc()
	r.tradeProfit.WithLabelValues(symbol).Observe(profit)
}

// RecordScanCycle records a decision cycle completion.
func (r *Registry) RecordScanCycle(duration float64) {
	if r == nil {
		return
	}
	r.scanCycles.Inc()
	r.scanDuration.Observe(duration)
}

// RecordBacktest records a backtest completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	if r == nil {
		return
	}
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordTraining records a model training attempt.
func (r *Registry) RecordTraining(status string) {
	if r == nil {
		return
	}
	r.trainingsTotal.WithLabelValues(status).Inc()
}

// SetWatchedSymbols sets the number of evaluated symbols.
func (r *Registry) SetWatchedSymbols(n int) {
	if r == nil {
		return
	}
	r.watchedSymbols.Set(float64(n))
}

func statusToString(status int) string {
	switch {
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	case status >= 200:
		return "2xx"
	default:
		return "1xx"
	}
}
