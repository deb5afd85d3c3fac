package metrics

import (
	"time"
)

// TeamSnapshot is the per-team part of a run summary.
type TeamSnapshot struct {
	TeamID     string
	Stations   int
	Load       int
	DistanceKm float64
}

// RunSummary describes one finished allocation run.
type RunSummary struct {
	RunID       string
	Source      string
	Teams       []TeamSnapshot
	Stations    int
	TotalWeight int
	Target      float64
	Min         float64
	Max         float64
	Fallbacks   int
	Swaps       int
	Passes      int
	Duration    time.Duration
	Time        time.Time
}

// MetricsSink records allocation runs for observability purposes.
type MetricsSink interface {
	RecordRun(sum RunSummary) error
}

// MoveEvent captures one interactive station move.
type MoveEvent struct {
	RunID       string
	StationCode string
	FromTeam    string
	ToTeam      string
	Weight      int
	Accepted    bool
	Reason      string
	Time        time.Time
}

// MoveRecorder records interactive moves.
type MoveRecorder interface {
	RecordMove(ev MoveEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordRun(RunSummary) error { return nil }

// Ensure NopSink implements MoveRecorder.
func (NopSink) RecordMove(MoveEvent) error { return nil }
