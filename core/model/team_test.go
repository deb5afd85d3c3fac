package model

import (
	"math"
	"testing"

	"github.com/kilianp07/teamalloc/core/geo"
)

func TestNewTeamComputesAggregates(t *testing.T) {
	members := []Station{
		{Code: "A", Latitude: 10, Longitude: 10, Weight: 5},
		{Code: "B", Latitude: 10, Longitude: 11, Weight: 7},
	}
	team := NewTeam(TeamID(0), TeamName(0), members)
	if team.ID != "team_1" || team.DisplayName != "Team 1" {
		t.Fatalf("unexpected identity %s/%s", team.ID, team.DisplayName)
	}
	if team.AggregateWeight != 12 {
		t.Fatalf("expected weight 12 got %d", team.AggregateWeight)
	}
	want := geo.EstimateTravelDistance(Points(members))
	if team.TravelDistanceKm != want {
		t.Fatalf("expected distance %v got %v", want, team.TravelDistanceKm)
	}
	members[0].Code = "changed"
	if team.Members[0].Code != "A" {
		t.Fatalf("team aliases caller slice")
	}
}

func TestCloneTeamsIsDeep(t *testing.T) {
	teams := []Team{NewTeam("t1", "T1", []Station{{Code: "A", Weight: 1}})}
	cp := CloneTeams(teams)
	cp[0].Members[0].Code = "Z"
	cp[0].Locked = true
	if teams[0].Members[0].Code != "A" || teams[0].Locked {
		t.Fatalf("clone shares state with original")
	}
	if FindTeam(cp, "t1") != 0 || FindTeam(cp, "nope") != -1 {
		t.Fatalf("FindTeam mismatch")
	}
	if cp[0].IndexOf("Z") != 0 || cp[0].IndexOf("A") != -1 {
		t.Fatalf("IndexOf mismatch")
	}
}

func TestStationValidate(t *testing.T) {
	cases := []struct {
		name string
		st   Station
		ok   bool
	}{
		{"valid", Station{Code: "S1", Latitude: 21.02, Longitude: 105.85, Weight: 3}, true},
		{"missing code", Station{Latitude: 21, Longitude: 105}, false},
		{"zero lat", Station{Code: "S", Latitude: 0, Longitude: 105}, false},
		{"nan lng", Station{Code: "S", Latitude: 21, Longitude: math.NaN()}, false},
		{"inf lat", Station{Code: "S", Latitude: math.Inf(1), Longitude: 105}, false},
		{"out of range", Station{Code: "S", Latitude: 95, Longitude: 105}, false},
		{"negative weight", Station{Code: "S", Latitude: 21, Longitude: 105, Weight: -1}, false},
	}
	for _, c := range cases {
		err := c.st.Validate()
		if c.ok && err != nil {
			t.Errorf("%s: unexpected error %v", c.name, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%s: expected error", c.name)
		}
	}
}

func TestParamsClampedTolerance(t *testing.T) {
	if v := (Params{TolerancePercent: -5}).ClampedTolerance(); v != 0 {
		t.Errorf("expected 0 got %v", v)
	}
	if v := (Params{TolerancePercent: 150}).ClampedTolerance(); v != 100 {
		t.Errorf("expected 100 got %v", v)
	}
	if v := (Params{TolerancePercent: 12.5}).ClampedTolerance(); v != 12.5 {
		t.Errorf("expected 12.5 got %v", v)
	}
}
