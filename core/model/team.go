package model

import (
	"fmt"

	"github.com/kilianp07/teamalloc/core/geo"
)

// Team is a named partition of stations assigned to one crew.
//
// AggregateWeight and TravelDistanceKm are derived from Members. Build teams
// with NewTeam or WithMembers so both stay consistent with membership.
type Team struct {
	ID               string    `json:"id"`
	DisplayName      string    `json:"display_name"`
	Members          []Station `json:"members"`
	AggregateWeight  int       `json:"aggregate_weight"`
	TravelDistanceKm float64   `json:"travel_distance_km"`
	// Locked is advisory unless lock enforcement is enabled.
	Locked bool `json:"locked,omitempty"`
}

// TeamID returns the identifier of the i-th team (zero based).
func TeamID(i int) string { return fmt.Sprintf("team_%d", i+1) }

// TeamName returns the display name of the i-th team (zero based).
func TeamName(i int) string { return fmt.Sprintf("Team %d", i+1) }

// NewTeam builds a team from a copy of members and computes its aggregates.
func NewTeam(id, name string, members []Station) Team {
	t := Team{ID: id, DisplayName: name}
	return t.WithMembers(members)
}

// WithMembers returns a copy of t holding a copy of members, with aggregates
// recomputed from scratch.
func (t Team) WithMembers(members []Station) Team {
	cp := make([]Station, len(members))
	copy(cp, members)
	t.Members = cp
	t.AggregateWeight = TotalWeight(cp)
	t.TravelDistanceKm = geo.EstimateTravelDistance(Points(cp))
	return t
}

// Clone returns a deep copy of t.
func (t Team) Clone() Team {
	cp := t
	cp.Members = make([]Station, len(t.Members))
	copy(cp.Members, t.Members)
	return cp
}

// IndexOf returns the position of the station with code in Members or -1.
func (t Team) IndexOf(code string) int {
	for i, s := range t.Members {
		if s.Code == code {
			return i
		}
	}
	return -1
}

// Centroid returns the mean position of the members.
func (t Team) Centroid() geo.Point {
	return geo.Centroid(Points(t.Members))
}

// CloneTeams deep-copies a team collection.
func CloneTeams(teams []Team) []Team {
	out := make([]Team, len(teams))
	for i, t := range teams {
		out[i] = t.Clone()
	}
	return out
}

// FindTeam returns the index of the team with id or -1.
func FindTeam(teams []Team, id string) int {
	for i, t := range teams {
		if t.ID == id {
			return i
		}
	}
	return -1
}
