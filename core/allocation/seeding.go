package allocation

import (
	"math"

	"github.com/kilianp07/teamalloc/core/geo"
	"github.com/kilianp07/teamalloc/core/model"
)

// SelectSeeds returns min(k, len(stations)) geographically spread seeds. The
// first is the station farthest from the overall centroid (ties: heavier,
// then smaller code); each next one maximises its minimum distance to the
// seeds already chosen (ties: smaller code).
func SelectSeeds(stations []model.Station, k int) []model.Station {
	idx := seedIndices(stations, k)
	out := make([]model.Station, len(idx))
	for i, j := range idx {
		out[i] = stations[j]
	}
	return out
}

func seedIndices(stations []model.Station, k int) []int {
	if k > len(stations) {
		k = len(stations)
	}
	if k <= 0 {
		return nil
	}
	center := geo.Centroid(model.Points(stations))
	first := 0
	firstDist := geo.Distance(center, stations[0].Point())
	for i := 1; i < len(stations); i++ {
		d := geo.Distance(center, stations[i].Point())
		s, b := stations[i], stations[first]
		if d > firstDist ||
			(d == firstDist && (s.Weight > b.Weight || (s.Weight == b.Weight && s.Code < b.Code))) {
			first, firstDist = i, d
		}
	}

	chosen := []int{first}
	taken := make([]bool, len(stations))
	taken[first] = true
	// minDist[i] tracks the distance from station i to its closest seed.
	minDist := make([]float64, len(stations))
	for i := range stations {
		minDist[i] = geo.Distance(stations[i].Point(), stations[first].Point())
	}
	for len(chosen) < k {
		next := -1
		best := math.Inf(-1)
		for i, s := range stations {
			if taken[i] {
				continue
			}
			if minDist[i] > best || (minDist[i] == best && s.Code < stations[next].Code) {
				next, best = i, minDist[i]
			}
		}
		chosen = append(chosen, next)
		taken[next] = true
		for i := range stations {
			if taken[i] {
				continue
			}
			if d := geo.Distance(stations[i].Point(), stations[next].Point()); d < minDist[i] {
				minDist[i] = d
			}
		}
	}
	return chosen
}
