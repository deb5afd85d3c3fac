package allocation

import (
	"math"
	"sort"

	"github.com/kilianp07/teamalloc/core/geo"
	"github.com/kilianp07/teamalloc/core/model"
)

// minFairness floors the fairness divisor so a team at or above target still
// accepts stations that sit close to it.
const minFairness = 0.3

type growingTeam struct {
	members []int
	load    int
}

// growth holds the private state of the greedy phase. distSum[s][t] is the
// sum of distances from station s to the current members of team t and is
// updated incrementally as stations join teams.
type growth struct {
	stations []model.Station
	points   []geo.Point
	bounds   Bounds
	teams    []growingTeam
	assigned []bool
	distSum  [][]float64
}

func newGrowth(stations []model.Station, seeds []int, bounds Bounds) *growth {
	g := &growth{
		stations: stations,
		points:   model.Points(stations),
		bounds:   bounds,
		teams:    make([]growingTeam, len(seeds)),
		assigned: make([]bool, len(stations)),
		distSum:  make([][]float64, len(stations)),
	}
	for i := range stations {
		g.distSum[i] = make([]float64, len(seeds))
	}
	for t, s := range seeds {
		g.join(s, t)
	}
	return g
}

// join adds station s to team t and refreshes the distance sums of every
// station still in the pool.
func (g *growth) join(s, t int) {
	g.assigned[s] = true
	g.teams[t].members = append(g.teams[t].members, s)
	g.teams[t].load += g.stations[s].Weight
	for i := range g.stations {
		if g.assigned[i] {
			continue
		}
		g.distSum[i][t] += geo.Distance(g.points[i], g.points[s])
	}
}

func (g *growth) fits(s, t int) bool {
	return g.bounds.Fits(g.teams[t].load + g.stations[s].Weight)
}

func (g *growth) fairness(t int) float64 {
	return math.Max(minFairness, 1-float64(g.teams[t].load)/g.bounds.Target)
}

// assignGreedy runs rounds over the pool, each assigning the single best
// (station, team) pair under the ceiling. It stops on the first round that
// cannot place anything and returns the number of stations placed.
func (g *growth) assignGreedy() int {
	placed := 0
	for {
		bestS, bestT := -1, -1
		bestScore := math.Inf(1)
		for s := range g.stations {
			if g.assigned[s] {
				continue
			}
			for t := range g.teams {
				if !g.fits(s, t) {
					continue
				}
				score := g.distSum[s][t] / g.fairness(t)
				if bestS < 0 || score < bestScore ||
					(score == bestScore && g.stations[s].Code < g.stations[bestS].Code) {
					bestS, bestT, bestScore = s, t, score
				}
			}
		}
		if bestS < 0 {
			return placed
		}
		g.join(bestS, bestT)
		placed++
	}
}

func (g *growth) unassigned() []int {
	var out []int
	for s, ok := range g.assigned {
		if !ok {
			out = append(out, s)
		}
	}
	return out
}

// teamsOut materialises the teams. Members keep their input order.
func (g *growth) teamsOut() []model.Team {
	out := make([]model.Team, len(g.teams))
	for t, gt := range g.teams {
		idx := append([]int(nil), gt.members...)
		sort.Ints(idx)
		members := make([]model.Station, len(idx))
		for i, s := range idx {
			members[i] = g.stations[s]
		}
		out[t] = model.NewTeam(model.TeamID(t), model.TeamName(t), members)
	}
	return out
}
