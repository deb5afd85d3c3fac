// Package jobs runs allocation requests in the background and keeps their
// results editable through station moves and team locks.
package jobs

import (
	"errors"
	"sync"
	"time"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/model"
)

var (
	// ErrNotFound is returned for unknown job ids.
	ErrNotFound = errors.New("job not found")
	// ErrNotReady is returned when a job has no teams to edit yet.
	ErrNotReady = errors.New("job has not succeeded")
	// ErrInvalidRequest is returned when a submitted run cannot be accepted.
	ErrInvalidRequest = errors.New("invalid run request")
	// ErrRunnerClosed is returned after Close.
	ErrRunnerClosed = errors.New("runner closed")
)

// Status is the lifecycle state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether the status can no longer change.
func (s Status) Terminal() bool { return s == StatusSucceeded || s == StatusFailed }

// Request describes one allocation run.
type Request struct {
	Source   string          `json:"source"`
	Stations []model.Station `json:"stations"`
	Params   model.Params    `json:"params"`
}

// MoveRequest moves one station between two teams of a finished job.
type MoveRequest struct {
	StationCode string `json:"station"`
	FromTeam    string `json:"from"`
	ToTeam      string `json:"to"`
}

// Job is a snapshot of a run and its current teams.
type Job struct {
	ID         string                    `json:"id"`
	Status     Status                    `json:"status"`
	Source     string                    `json:"source"`
	Params     model.Params              `json:"params"`
	Stations   int                       `json:"stations"`
	Teams      []model.Team              `json:"teams,omitempty"`
	Bounds     allocation.Bounds         `json:"bounds"`
	Fallbacks  []allocation.Fallback     `json:"fallbacks,omitempty"`
	Rebalance  allocation.RebalanceStats `json:"rebalance"`
	HistoryID  string                    `json:"history_id,omitempty"`
	Moves      int                       `json:"moves"`
	Error      string                    `json:"error,omitempty"`
	CreatedAt  time.Time                 `json:"created_at"`
	StartedAt  time.Time                 `json:"started_at,omitempty"`
	FinishedAt time.Time                 `json:"finished_at,omitempty"`
}

// job is the runner-owned state behind a Job.
type job struct {
	Job
	stations []model.Station
	done     chan struct{}
	// edit serializes moves and lock changes so history records chain in order.
	edit sync.Mutex
}

func (j *job) snapshot() Job {
	out := j.Job
	out.Teams = model.CloneTeams(j.Teams)
	out.Fallbacks = append([]allocation.Fallback(nil), j.Fallbacks...)
	return out
}
