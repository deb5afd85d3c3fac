package allocation

import (
	"fmt"
	"math/rand"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teamalloc/core/geo"
	"github.com/kilianp07/teamalloc/core/model"
)

func tenStations() []model.Station {
	return []model.Station{
		{Code: "S01", Latitude: 21.03, Longitude: 105.85, Weight: 50},
		{Code: "S02", Latitude: 21.05, Longitude: 105.80, Weight: 40},
		{Code: "S03", Latitude: 21.00, Longitude: 105.90, Weight: 30},
		{Code: "S04", Latitude: 20.98, Longitude: 105.78, Weight: 30},
		{Code: "S05", Latitude: 21.10, Longitude: 105.88, Weight: 20},
		{Code: "S06", Latitude: 21.02, Longitude: 105.95, Weight: 20},
		{Code: "S07", Latitude: 20.95, Longitude: 105.83, Weight: 10},
		{Code: "S08", Latitude: 21.08, Longitude: 105.75, Weight: 10},
		{Code: "S09", Latitude: 21.01, Longitude: 105.70, Weight: 5},
		{Code: "S10", Latitude: 21.12, Longitude: 105.92, Weight: 5},
	}
}

func randomStations(rng *rand.Rand, n int) []model.Station {
	out := make([]model.Station, n)
	for i := range out {
		out[i] = model.Station{
			Code:      fmt.Sprintf("ST%03d", i),
			Latitude:  10 + rng.Float64()*2,
			Longitude: 106 + rng.Float64()*2,
			Weight:    rng.Intn(40),
		}
	}
	return out
}

func codes(teams []model.Team) []string {
	var out []string
	for _, t := range teams {
		for _, m := range t.Members {
			out = append(out, m.Code)
		}
	}
	sort.Strings(out)
	return out
}

func stationCodes(stations []model.Station) []string {
	out := make([]string, len(stations))
	for i, s := range stations {
		out[i] = s.Code
	}
	sort.Strings(out)
	return out
}

func assertConsistent(t *testing.T, teams []model.Team) {
	t.Helper()
	for _, tm := range teams {
		assert.Equal(t, model.TotalWeight(tm.Members), tm.AggregateWeight, "team %s weight", tm.ID)
		assert.Equal(t, geo.EstimateTravelDistance(model.Points(tm.Members)), tm.TravelDistanceKm, "team %s distance", tm.ID)
	}
}

func TestRunTenStationScenario(t *testing.T) {
	for _, rebalance := range []bool{false, true} {
		t.Run(fmt.Sprintf("rebalance=%v", rebalance), func(t *testing.T) {
			opts := DefaultOptions()
			opts.Rebalance = rebalance
			res := NewEngine(opts, nil).Run(tenStations(), model.Params{NumberOfTeams: 2, TolerancePercent: 20})

			assert.InDelta(t, 110, res.Bounds.Target, 1e-9)
			assert.InDelta(t, 88, res.Bounds.Min, 1e-9)
			assert.InDelta(t, 132, res.Bounds.Max, 1e-9)
			require.Len(t, res.Teams, 2)
			assert.Equal(t, stationCodes(tenStations()), codes(res.Teams))
			assert.Equal(t, 220, res.Teams[0].AggregateWeight+res.Teams[1].AggregateWeight)
			assertConsistent(t, res.Teams)
			if len(res.Fallbacks) == 0 {
				for _, tm := range res.Teams {
					assert.True(t, res.Bounds.Within(tm.AggregateWeight), "team %s load %d", tm.ID, tm.AggregateWeight)
				}
			}
		})
	}
}

func TestRunProperties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	tolerances := []float64{0, 5, 10, 20, 50, 100}
	for i := 0; i < 40; i++ {
		stations := randomStations(rng, 5+rng.Intn(60))
		params := model.Params{NumberOfTeams: 1 + rng.Intn(8), TolerancePercent: tolerances[rng.Intn(len(tolerances))]}
		if model.TotalWeight(stations) == 0 {
			continue
		}
		snapshot := append([]model.Station(nil), stations...)
		teams := RunClustering(stations, params)

		require.Equal(t, snapshot, stations, "input mutated")
		assert.Equal(t, stationCodes(stations), codes(teams))
		total := 0
		for _, tm := range teams {
			total += tm.AggregateWeight
			assert.NotEmpty(t, tm.Members)
		}
		assert.Equal(t, model.TotalWeight(stations), total)
		assert.LessOrEqual(t, len(teams), params.NumberOfTeams)
		assertConsistent(t, teams)
	}
}

func TestRunDeterministic(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	stations := randomStations(rng, 80)
	params := model.Params{NumberOfTeams: 5, TolerancePercent: 10}
	first := RunClustering(stations, params)
	second := RunClustering(stations, params)
	assert.Equal(t, first, second)
}

func TestRunSingleTeamTour(t *testing.T) {
	stations := tenStations()
	teams := RunClustering(stations, model.Params{NumberOfTeams: 1, TolerancePercent: 10})
	require.Len(t, teams, 1)
	assert.Len(t, teams[0].Members, len(stations))
	assert.Equal(t, geo.EstimateTravelDistance(model.Points(stations)), teams[0].TravelDistanceKm)
	assert.Equal(t, "team_1", teams[0].ID)
}

func TestRunMoreTeamsThanStations(t *testing.T) {
	stations := tenStations()[:3]
	teams := RunClustering(stations, model.Params{NumberOfTeams: 5, TolerancePercent: 100})
	assert.Len(t, teams, 3)
	for _, tm := range teams {
		assert.Len(t, tm.Members, 1)
	}
}

func TestRunInvalidInput(t *testing.T) {
	cases := []struct {
		name     string
		stations []model.Station
		params   model.Params
	}{
		{"no stations", nil, model.Params{NumberOfTeams: 2}},
		{"zero teams", tenStations(), model.Params{NumberOfTeams: 0}},
		{"negative teams", tenStations(), model.Params{NumberOfTeams: -1}},
		{"zero weight", []model.Station{{Code: "A", Latitude: 1, Longitude: 1}}, model.Params{NumberOfTeams: 1}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			teams := RunClustering(c.stations, c.params)
			assert.NotNil(t, teams)
			assert.Empty(t, teams)
		})
	}
}

func TestRunLeftoverFallback(t *testing.T) {
	stations := []model.Station{
		{Code: "A", Latitude: 10, Longitude: 10, Weight: 10},
		{Code: "B", Latitude: 10, Longitude: 11, Weight: 10},
		{Code: "C", Latitude: 10, Longitude: 10.4, Weight: 10},
	}
	opts := DefaultOptions()
	opts.Rebalance = false
	res := NewEngine(opts, nil).Run(stations, model.Params{NumberOfTeams: 2, TolerancePercent: 0})

	require.Len(t, res.Fallbacks, 1)
	fb := res.Fallbacks[0]
	assert.Equal(t, "C", fb.StationCode)
	assert.Equal(t, "team_1", fb.TeamID)
	assert.Equal(t, 20, fb.Load)
	assert.InDelta(t, 15, fb.Max, 1e-9)
	require.Len(t, res.Teams, 2)
	assert.Equal(t, 20, res.Teams[0].AggregateWeight)
	assert.Equal(t, []string{"B", "C"}, []string{res.Teams[0].Members[0].Code, res.Teams[0].Members[1].Code})
	assert.Equal(t, 10, res.Teams[1].AggregateWeight)
}

func TestRunToleranceClamped(t *testing.T) {
	res := NewEngine(DefaultOptions(), nil).Run(tenStations(), model.Params{NumberOfTeams: 2, TolerancePercent: 250})
	assert.InDelta(t, 220, res.Bounds.Max, 1e-9)
	assert.InDelta(t, 0, res.Bounds.Min, 1e-9)
}

func TestRunMembersKeepInputOrder(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 20; i++ {
		stations := randomStations(rng, 10+rng.Intn(40))
		if model.TotalWeight(stations) == 0 {
			continue
		}
		pos := InputPositions(stations)
		res := NewEngine(DefaultOptions(), nil).Run(stations, model.Params{NumberOfTeams: 2 + rng.Intn(4), TolerancePercent: 10})
		for _, tm := range res.Teams {
			for k := 1; k < len(tm.Members); k++ {
				assert.Less(t, pos[tm.Members[k-1].Code], pos[tm.Members[k].Code], "team %s out of input order", tm.ID)
			}
		}
	}
}

func TestRemainingFallbacks(t *testing.T) {
	bounds := Bounds{Total: 40, Teams: 2, Target: 20, Min: 18, Max: 22}
	fallbacks := []Fallback{
		{StationCode: "X", Weight: 8, TeamID: "team_1", Load: 30, Max: 22},
		{StationCode: "Y", Weight: 6, TeamID: "team_1", Load: 30, Max: 22},
	}
	teams := []model.Team{
		model.NewTeam("team_1", "Team 1", []model.Station{
			{Code: "Y", Latitude: 10, Longitude: 10, Weight: 6},
			{Code: "Z", Latitude: 10, Longitude: 10.1, Weight: 19},
		}),
		model.NewTeam("team_2", "Team 2", []model.Station{
			{Code: "X", Latitude: 10, Longitude: 11, Weight: 8},
			{Code: "W", Latitude: 10, Longitude: 11.1, Weight: 7},
		}),
	}

	out := remainingFallbacks(fallbacks, teams, bounds)
	require.Len(t, out, 1)
	assert.Equal(t, "Y", out[0].StationCode)
	assert.Equal(t, "team_1", out[0].TeamID)
	assert.Equal(t, 25, out[0].Load)
	assert.Empty(t, remainingFallbacks(fallbacks, teams, Bounds{Max: 30}))
}
