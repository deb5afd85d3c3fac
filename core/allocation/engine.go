// Package allocation partitions weighted stations into geographically compact
// teams whose loads stay within a tolerance band around an even target.
//
// A run seeds one team per diverse station, grows teams with a round based
// global greedy, places leftovers and optionally refines the result with
// pairwise swaps. Every operation works on private copies and returns a new
// team collection.
package allocation

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/kilianp07/teamalloc/core/logger"
	"github.com/kilianp07/teamalloc/core/model"
)

// Options tune an Engine. Zero values fall back to the defaults.
type Options struct {
	Rebalance      bool    `json:"rebalance"`
	HardWeight     float64 `json:"hard_weight"`
	CandidateLimit int     `json:"candidate_limit"`
	MaxPasses      int     `json:"max_passes"`
}

// DefaultOptions enables the rebalancer with its default limits.
func DefaultOptions() Options {
	return Options{
		Rebalance:      true,
		HardWeight:     DefaultHardWeight,
		CandidateLimit: DefaultCandidateLimit,
		MaxPasses:      DefaultMaxPasses,
	}
}

// Result is the outcome of one run.
type Result struct {
	Teams  []model.Team `json:"teams"`
	Bounds Bounds       `json:"bounds"`
	// Fallbacks lists the stations still sitting on a team above the ceiling
	// in Teams.
	Fallbacks []Fallback     `json:"fallbacks,omitempty"`
	Rebalance RebalanceStats `json:"rebalance"`
	Duration  time.Duration  `json:"duration"`
}

// Engine runs allocations. It holds no per-run state and is safe for
// concurrent use.
type Engine struct {
	opts Options
	log  logger.Logger
}

// NewEngine returns an Engine. A nil logger discards output.
func NewEngine(opts Options, log logger.Logger) *Engine {
	if log == nil {
		log = logger.NopLogger{}
	}
	return &Engine{opts: opts, log: log}
}

// RunClustering allocates stations with the default options. Invalid input
// yields an empty team list.
func RunClustering(stations []model.Station, params model.Params) []model.Team {
	return NewEngine(DefaultOptions(), nil).Run(stations, params).Teams
}

// Run allocates stations into at most params.NumberOfTeams teams. Invalid
// input (no stations, no teams, zero total weight) yields an empty result.
func (e *Engine) Run(stations []model.Station, params model.Params) Result {
	start := time.Now()
	res, err := e.run(stations, params)
	res.Duration = time.Since(start)
	if err != nil {
		if errors.Is(err, ErrInvalidInput) {
			e.log.Infof("allocation skipped: %v", err)
			runsTotal.WithLabelValues("empty").Inc()
		}
		res.Teams = []model.Team{}
		return res
	}
	runsTotal.WithLabelValues("ok").Inc()
	runDuration.Observe(res.Duration.Seconds())
	fallbackTotal.Add(float64(len(res.Fallbacks)))
	swapsTotal.Add(float64(res.Rebalance.Swaps))
	for _, t := range res.Teams {
		teamLoadDeviation.Observe(math.Abs(float64(t.AggregateWeight)-res.Bounds.Target) / res.Bounds.Target)
	}
	e.log.Debugw("allocation finished", map[string]any{
		"stations":  len(stations),
		"teams":     len(res.Teams),
		"target":    res.Bounds.Target,
		"fallbacks": len(res.Fallbacks),
		"passes":    res.Rebalance.Passes,
		"swaps":     res.Rebalance.Swaps,
	})
	return res
}

func (e *Engine) run(stations []model.Station, params model.Params) (Result, error) {
	if len(stations) == 0 {
		return Result{}, fmt.Errorf("%w: no stations", ErrInvalidInput)
	}
	work := append([]model.Station(nil), stations...)
	bounds, err := PlanCapacity(model.TotalWeight(work), params.NumberOfTeams, params.ClampedTolerance())
	if err != nil {
		return Result{}, err
	}
	seeds := seedIndices(work, params.NumberOfTeams)
	g := newGrowth(work, seeds, bounds)
	placed := g.assignGreedy()
	fallbacks := g.resolveLeftovers()
	e.log.Debugf("greedy placed %d stations, %d leftovers over the ceiling", placed+len(seeds), len(fallbacks))

	teams := g.teamsOut()
	res := Result{Teams: teams, Bounds: bounds, Fallbacks: fallbacks}
	if e.opts.Rebalance {
		rb := Rebalancer{
			Bounds:         bounds,
			Positions:      InputPositions(work),
			HardWeight:     e.opts.HardWeight,
			CandidateLimit: e.opts.CandidateLimit,
			MaxPasses:      e.opts.MaxPasses,
		}
		res.Teams, res.Rebalance = rb.Rebalance(teams)
		res.Fallbacks = remainingFallbacks(fallbacks, res.Teams, bounds)
	}
	for _, f := range res.Fallbacks {
		e.log.Warnf("station %s (weight %d) placed on %s above ceiling: load %d > max %.2f",
			f.StationCode, f.Weight, f.TeamID, f.Load, f.Max)
	}
	return res, nil
}

// remainingFallbacks keeps the fallbacks whose station still sits on a team
// above the ceiling, updated to that team and its load.
func remainingFallbacks(fallbacks []Fallback, teams []model.Team, bounds Bounds) []Fallback {
	var out []Fallback
	for _, f := range fallbacks {
		for _, t := range teams {
			if t.IndexOf(f.StationCode) < 0 {
				continue
			}
			if float64(t.AggregateWeight) > bounds.Max {
				f.TeamID = t.ID
				f.Load = t.AggregateWeight
				out = append(out, f)
			}
			break
		}
	}
	return out
}
