package events

import (
	"time"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/model"
)

// Type identifies a RunEvent.
type Type string

const (
	RunStarted   Type = "run_started"
	RunCompleted Type = "run_completed"
	RunFailed    Type = "run_failed"
	StationMoved Type = "station_moved"
	TeamLocked   Type = "team_locked"
)

// RunEvent is published on every state change of an allocation job.
type RunEvent struct {
	Type   Type
	RunID  string
	Source string
	Params model.Params
	// Teams holds the team list after the change, when there is one.
	Teams     []model.Team
	Stations  int
	Bounds    allocation.Bounds
	Fallbacks int
	Rebalance allocation.RebalanceStats
	Duration  time.Duration

	// Move details, set for StationMoved.
	StationCode string
	FromTeam    string
	ToTeam      string
	Weight      int

	// TeamID and Locked are set for TeamLocked.
	TeamID string
	Locked bool

	Err  error
	Time time.Time
}
