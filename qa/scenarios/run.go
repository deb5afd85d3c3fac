package scenarios

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/infra/logger"
	"github.com/kilianp07/teamalloc/infra/metrics"
)

func RunScenario(t *testing.T, sc *Scenario) {
	reg := prometheus.NewRegistry()
	sink, err := metrics.NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("prom sink: %v", err)
	}

	opts := allocation.DefaultOptions()
	opts.Rebalance = !sc.NoRebalance
	engine := allocation.NewEngine(opts, logger.NopLogger{})
	res := engine.Run(sc.Stations, sc.Params)

	ev := events.RunEvent{
		Type:      events.RunCompleted,
		RunID:     sc.Name,
		Source:    "scenario",
		Teams:     res.Teams,
		Stations:  len(sc.Stations),
		Bounds:    res.Bounds,
		Fallbacks: len(res.Fallbacks),
		Rebalance: res.Rebalance,
	}
	if err := sink.RecordRun(metrics.Summarize(ev)); err != nil {
		t.Fatalf("record: %v", err)
	}

	exp := sc.Expected
	if exp.Teams > 0 && len(res.Teams) != exp.Teams {
		t.Errorf("scenario %s expected %d teams, got %d", sc.Name, exp.Teams, len(res.Teams))
	}
	for _, team := range res.Teams {
		if exp.MinLoad > 0 && team.AggregateWeight < exp.MinLoad {
			t.Errorf("scenario %s: %s load %d below %d", sc.Name, team.ID, team.AggregateWeight, exp.MinLoad)
		}
		if exp.MaxLoad > 0 && team.AggregateWeight > exp.MaxLoad {
			t.Errorf("scenario %s: %s load %d above %d", sc.Name, team.ID, team.AggregateWeight, exp.MaxLoad)
		}
	}
	if len(res.Fallbacks) > exp.MaxFallbacks {
		t.Errorf("scenario %s expected at most %d fallbacks, got %d", sc.Name, exp.MaxFallbacks, len(res.Fallbacks))
	}
	if got := countMembers(res.Teams); len(res.Teams) > 0 && got != len(sc.Stations) {
		t.Errorf("scenario %s: %d of %d stations assigned", sc.Name, got, len(sc.Stations))
	}
	for _, group := range exp.Together {
		if !sameTeam(res.Teams, group) {
			t.Errorf("scenario %s: stations %v split across teams", sc.Name, group)
		}
	}
}

func countMembers(teams []model.Team) int {
	n := 0
	for _, t := range teams {
		n += len(t.Members)
	}
	return n
}

func sameTeam(teams []model.Team, codes []string) bool {
	for _, t := range teams {
		found := 0
		for _, c := range codes {
			if t.IndexOf(c) >= 0 {
				found++
			}
		}
		if found > 0 {
			return found == len(codes)
		}
	}
	return len(codes) == 0
}
