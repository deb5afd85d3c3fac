package allocation

import (
	"sort"

	"github.com/kilianp07/teamalloc/core/model"
)

// Fallback records a station placed above the load ceiling because no team
// could take it within bounds.
type Fallback struct {
	StationCode string  `json:"station_code"`
	Weight      int     `json:"weight"`
	TeamID      string  `json:"team_id"`
	Load        int     `json:"load"`
	Max         float64 `json:"max"`
}

// resolveLeftovers places every station the greedy phase left behind,
// heaviest first. A station goes to the team with the smallest distance sum
// that still fits; when none fits it goes to the least loaded team.
func (g *growth) resolveLeftovers() []Fallback {
	pool := g.unassigned()
	sort.SliceStable(pool, func(i, j int) bool {
		a, b := g.stations[pool[i]], g.stations[pool[j]]
		if a.Weight != b.Weight {
			return a.Weight > b.Weight
		}
		return a.Code < b.Code
	})
	var fallbacks []Fallback
	for _, s := range pool {
		best := -1
		for t := range g.teams {
			if !g.fits(s, t) {
				continue
			}
			if best < 0 || g.distSum[s][t] < g.distSum[s][best] {
				best = t
			}
		}
		if best >= 0 {
			g.join(s, best)
			continue
		}
		lowest := 0
		for t := 1; t < len(g.teams); t++ {
			if g.teams[t].load < g.teams[lowest].load {
				lowest = t
			}
		}
		g.join(s, lowest)
		fallbacks = append(fallbacks, Fallback{
			StationCode: g.stations[s].Code,
			Weight:      g.stations[s].Weight,
			TeamID:      model.TeamID(lowest),
			Load:        g.teams[lowest].load,
			Max:         g.bounds.Max,
		})
	}
	return fallbacks
}
