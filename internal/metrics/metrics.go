package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds all Prometheus metrics.
type Registry struct {
	*prometheus.Registry

	runsTotal     *prometheus.CounterVec
	runDuration   prometheus.Histogram
	barsProcessed *prometheus.CounterVec
	fillsTotal    *prometheus.CounterVec
	clampsTotal   *prometheus.CounterVec
	finalEquity   *prometheus.GaugeVec
	maxDrawdown   *prometheus.GaugeVec
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	// Register Go runtime metrics
	reg.MustRegister(collectors.NewGoCollector())

	r := &Registry{
		Registry: reg,

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_runs_total",
				Help: "Total number of backtest runs",
			},
			[]string{"strategy", "status"},
		),
		runDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "tradesim_run_duration_seconds",
				Help:    "Backtest run duration in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		),
		barsProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_bars_processed_total",
				Help: "Total number of simulated bars",
			},
			[]string{"strategy"},
		),
		fillsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_fills_total",
				Help: "Total number of fills by action",
			},
			[]string{"strategy", "action"},
		),
		clampsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tradesim_buy_clamps_total",
				Help: "Buys reduced to the affordable share count",
			},
			[]string{"strategy"},
		),
		finalEquity: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradesim_final_equity",
				Help: "Ending equity of the last run",
			},
			[]string{"strategy"},
		),
		maxDrawdown: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tradesim_max_drawdown_ratio",
				Help: "Maximum closed-out drawdown of the last run",
			},
			[]string{"strategy"},
		),
	}

	reg.MustRegister(r.runsTotal)
	reg.MustRegister(r.runDuration)
	reg.MustRegister(r.barsProcessed)
	reg.MustRegister(r.fillsTotal)
	reg.MustRegister(r.clampsTotal)
	reg.MustRegister(r.finalEquity)
	reg.MustRegister(r.maxDrawdown)

	return r
}

// RecordRun records a run completion.
func (r *Registry) RecordRun(strategy, status string, duration float64) {
	r.runsTotal.WithLabelValues(strategy, status).Inc()
	r.runDuration.Observe(duration)
}

// AddBars counts simulated bars.
func (r *Registry) AddBars(strategy string, n int) {
	r.barsProcessed.WithLabelValues(strategy).Add(float64(n))
}

// RecordFill counts one fill.
func (r *Registry) RecordFill(strategy, action string, clamped bool) {
	r.fillsTotal.WithLabelValues(strategy, action).Inc()
	if clamped {
		r.clampsTotal.WithLabelValues(strategy).Inc()
	}
}

// SetOutcome sets the ending equity and drawdown of a strategy's last run.
func (r *Registry) SetOutcome(strategy string, equity, drawdown float64) {
	r.finalEquity.WithLabelValues(strategy).Set(equity)
	r.maxDrawdown.WithLabelValues(strategy).Set(drawdown)
}

// WriteTextfile writes the registry in the node exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	return prometheus.WriteToTextfile(path, r.Registry)
}
