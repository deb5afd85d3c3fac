// Package notify defines how finished allocations are pushed to field crews.
package notify

import (
	"context"

	"github.com/kilianp07/teamalloc/core/model"
)

// Assignment is the message sent to one team after a run or a move.
type Assignment struct {
	RunID       string   `json:"run_id"`
	TeamID      string   `json:"team_id"`
	TeamName    string   `json:"team_name"`
	TotalWeight int      `json:"total_weight"`
	DistanceKm  float64  `json:"distance_km"`
	Locked      bool     `json:"locked,omitempty"`
	Stations    []string `json:"stations"`
}

// NewAssignment describes team t of run runID.
func NewAssignment(runID string, t model.Team) Assignment {
	codes := make([]string, len(t.Members))
	for i, s := range t.Members {
		codes[i] = s.Code
	}
	return Assignment{
		RunID:       runID,
		TeamID:      t.ID,
		TeamName:    t.DisplayName,
		TotalWeight: t.AggregateWeight,
		DistanceKm:  t.TravelDistanceKm,
		Locked:      t.Locked,
		Stations:    codes,
	}
}

// Publisher delivers team assignments.
type Publisher interface {
	PublishAssignments(ctx context.Context, runID string, teams []model.Team) error
	Close()
}

// NopPublisher discards every assignment.
type NopPublisher struct{}

func (NopPublisher) PublishAssignments(context.Context, string, []model.Team) error { return nil }
func (NopPublisher) Close()                                                       {}
