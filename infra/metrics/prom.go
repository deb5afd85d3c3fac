package metrics

import (
	"strconv"

	coremetrics "github.com/kilianp07/teamalloc/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink exposes the latest allocation state as Prometheus metrics.
type PromSink struct {
	runs        *prometheus.CounterVec
	moves       *prometheus.CounterVec
	teamLoad    *prometheus.GaugeVec
	teamDist    *prometheus.GaugeVec
	teamSize    *prometheus.GaugeVec
	target      prometheus.Gauge
	lastRun     prometheus.Gauge
	fallbacks   prometheus.Counter
	totalWeight prometheus.Gauge
}

// NewPromSink registers allocation metrics on the default Prometheus registerer.
// The Prometheus server should be started separately using the server config.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	s := &PromSink{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamalloc_runs_recorded_total",
			Help: "Allocation runs recorded per input source",
		}, []string{"source"}),
		moves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "teamalloc_moves_recorded_total",
			Help: "Interactive station moves per outcome",
		}, []string{"accepted"}),
		teamLoad: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teamalloc_team_load",
			Help: "Aggregate station weight of each team in the latest run",
		}, []string{"team_id"}),
		teamDist: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teamalloc_team_distance_km",
			Help: "Estimated travel distance of each team in the latest run",
		}, []string{"team_id"}),
		teamSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "teamalloc_team_stations",
			Help: "Number of stations of each team in the latest run",
		}, []string{"team_id"}),
		target: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teamalloc_target_load",
			Help: "Target load per team in the latest run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teamalloc_last_run_timestamp_seconds",
			Help: "Unix time of the latest recorded run",
		}),
		fallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "teamalloc_fallbacks_recorded_total",
			Help: "Stations placed above the maximum load",
		}),
		totalWeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "teamalloc_total_weight",
			Help: "Total station weight of the latest run",
		}),
	}

	var err error
	if s.runs, err = register(reg, s.runs); err != nil {
		return nil, err
	}
	if s.moves, err = register(reg, s.moves); err != nil {
		return nil, err
	}
	if s.teamLoad, err = register(reg, s.teamLoad); err != nil {
		return nil, err
	}
	if s.teamDist, err = register(reg, s.teamDist); err != nil {
		return nil, err
	}
	if s.teamSize, err = register(reg, s.teamSize); err != nil {
		return nil, err
	}
	if s.target, err = register(reg, s.target); err != nil {
		return nil, err
	}
	if s.lastRun, err = register(reg, s.lastRun); err != nil {
		return nil, err
	}
	if s.fallbacks, err = register(reg, s.fallbacks); err != nil {
		return nil, err
	}
	if s.totalWeight, err = register(reg, s.totalWeight); err != nil {
		return nil, err
	}
	return s, nil
}

// register adds c to reg, reusing an already registered collector of the same shape.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordRun replaces the per-team gauges with the teams of the summary.
func (s *PromSink) RecordRun(sum coremetrics.RunSummary) error {
	s.runs.WithLabelValues(sum.Source).Inc()
	s.teamLoad.Reset()
	s.teamDist.Reset()
	s.teamSize.Reset()
	for _, t := range sum.Teams {
		s.teamLoad.WithLabelValues(t.TeamID).Set(float64(t.Load))
		s.teamDist.WithLabelValues(t.TeamID).Set(t.DistanceKm)
		s.teamSize.WithLabelValues(t.TeamID).Set(float64(t.Stations))
	}
	s.target.Set(sum.Target)
	s.totalWeight.Set(float64(sum.TotalWeight))
	s.fallbacks.Add(float64(sum.Fallbacks))
	if !sum.Time.IsZero() {
		s.lastRun.Set(float64(sum.Time.Unix()))
	}
	return nil
}

// RecordMove counts a move by outcome.
func (s *PromSink) RecordMove(ev coremetrics.MoveEvent) error {
	s.moves.WithLabelValues(strconv.FormatBool(ev.Accepted)).Inc()
	return nil
}
