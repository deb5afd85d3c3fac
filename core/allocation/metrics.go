package allocation

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	runsTotal         *prometheus.CounterVec
	runDuration       prometheus.Histogram
	fallbackTotal     prometheus.Counter
	swapsTotal        prometheus.Counter
	movesTotal        *prometheus.CounterVec
	teamLoadDeviation prometheus.Histogram
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Histogram, prometheus.Counter, prometheus.Counter, *prometheus.CounterVec, prometheus.Histogram) {
	runs := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_runs_total",
			Help: "Number of allocation runs by outcome",
		},
		[]string{"outcome"},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_run_duration_seconds",
			Help:    "Wall time of allocation runs",
			Buckets: prometheus.DefBuckets,
		},
	)
	fb := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_fallback_assignments_total",
			Help: "Stations placed above the load ceiling by the leftover fallback",
		},
	)
	swaps := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "allocation_rebalance_swaps_total",
			Help: "Station swaps applied by the rebalancer",
		},
	)
	moves := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "allocation_moves_total",
			Help: "Interactive station moves by result",
		},
		[]string{"result"},
	)
	dev := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "allocation_team_load_deviation_ratio",
			Help:    "Absolute deviation of team loads from target as a fraction of target",
			Buckets: []float64{0.01, 0.05, 0.1, 0.2, 0.5, 1},
		},
	)
	return runs, dur, fb, swaps, moves, dev
}

func init() {
	runsTotal, runDuration, fallbackTotal, swapsTotal, movesTotal, teamLoadDeviation = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers allocation metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(runsTotal, runDuration, fallbackTotal, swapsTotal, movesTotal, teamLoadDeviation)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	runsTotal, runDuration, fallbackTotal, swapsTotal, movesTotal, teamLoadDeviation = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}

// ObserveMove counts an interactive move attempt.
func ObserveMove(err error) {
	result := "applied"
	if err != nil {
		result = "rejected"
	}
	movesTotal.WithLabelValues(result).Inc()
}
