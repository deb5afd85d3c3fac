package allocation

import (
	"math"
	"sort"

	"github.com/kilianp07/teamalloc/core/geo"
	"github.com/kilianp07/teamalloc/core/model"
)

const (
	DefaultHardWeight     = 1000.0
	DefaultCandidateLimit = 12
	DefaultMaxPasses      = 60

	improvementEpsilon = 1e-9
)

// Rebalancer refines a partition with pairwise station swaps. Each team is
// scored by its band violation (weighted by HardWeight), its distance to the
// target load and its spread relative to the average spread. The best
// strictly improving swap of the first improvable team pair is applied and
// the scan restarts, until a pass finds nothing or MaxPasses is reached.
//
// Members of the returned teams are ordered by Positions, the input position
// of each station code. Without Positions the order in which stations appear
// in the given teams is used.
type Rebalancer struct {
	Bounds         Bounds
	Positions      map[string]int
	HardWeight     float64
	CandidateLimit int
	MaxPasses      int
}

// RebalanceStats describes how much work a Rebalance call did.
type RebalanceStats struct {
	Passes int `json:"passes"`
	Swaps  int `json:"swaps"`
}

type swapTeam struct {
	members []model.Station
	load    int
	sumLat  float64
	sumLng  float64
	spread  float64
}

func newSwapTeam(members []model.Station) swapTeam {
	t := swapTeam{members: append([]model.Station(nil), members...)}
	t.refresh()
	return t
}

func (t *swapTeam) refresh() {
	t.load, t.sumLat, t.sumLng = 0, 0, 0
	for _, m := range t.members {
		t.load += m.Weight
		t.sumLat += m.Latitude
		t.sumLng += m.Longitude
	}
	c := t.centroid()
	t.spread = 0
	for _, m := range t.members {
		t.spread += geo.Distance(m.Point(), c)
	}
}

func (t swapTeam) centroid() geo.Point {
	if len(t.members) == 0 {
		return geo.Point{}
	}
	n := float64(len(t.members))
	return geo.Point{Lat: t.sumLat / n, Lng: t.sumLng / n}
}

// exchange evaluates replacing members[out] with in, without mutating t.
func (t swapTeam) exchange(out int, in model.Station) (int, float64) {
	old := t.members[out]
	n := float64(len(t.members))
	c := geo.Point{
		Lat: (t.sumLat - old.Latitude + in.Latitude) / n,
		Lng: (t.sumLng - old.Longitude + in.Longitude) / n,
	}
	spread := geo.Distance(in.Point(), c)
	for k, m := range t.members {
		if k != out {
			spread += geo.Distance(m.Point(), c)
		}
	}
	return t.load - old.Weight + in.Weight, spread
}

func (t *swapTeam) replace(out int, in model.Station) {
	t.members = append(t.members[:out:out], t.members[out+1:]...)
	t.members = append(t.members, in)
	t.refresh()
}

func (r Rebalancer) withDefaults() Rebalancer {
	if r.HardWeight <= 0 {
		r.HardWeight = DefaultHardWeight
	}
	if r.CandidateLimit <= 0 {
		r.CandidateLimit = DefaultCandidateLimit
	}
	if r.MaxPasses <= 0 {
		r.MaxPasses = DefaultMaxPasses
	}
	return r
}

func (r Rebalancer) score(load int, spread, avgSpread float64) float64 {
	return r.HardWeight*r.Bounds.Violation(load) +
		math.Abs(float64(load)-r.Bounds.Target)/r.Bounds.Target +
		spread/avgSpread
}

// Rebalance returns a new team collection; teams is left untouched.
func (r Rebalancer) Rebalance(teams []model.Team) ([]model.Team, RebalanceStats) {
	r = r.withDefaults()
	var stats RebalanceStats
	work := make([]swapTeam, len(teams))
	for i, t := range teams {
		work[i] = newSwapTeam(t.Members)
	}
	if len(teams) > 1 && r.Bounds.Target > 0 {
		for stats.Passes < r.MaxPasses {
			stats.Passes++
			if !r.pass(work) {
				break
			}
			stats.Swaps++
		}
	}
	pos := r.Positions
	if pos == nil {
		pos = appearanceOrder(teams)
	}
	out := make([]model.Team, len(teams))
	for i, t := range teams {
		members := work[i].members
		sort.SliceStable(members, func(a, b int) bool { return pos[members[a].Code] < pos[members[b].Code] })
		out[i] = t.WithMembers(members)
	}
	return out, stats
}

func appearanceOrder(teams []model.Team) map[string]int {
	pos := make(map[string]int)
	for _, t := range teams {
		for _, m := range t.Members {
			pos[m.Code] = len(pos)
		}
	}
	return pos
}

// InputPositions maps each station code to its index in stations.
func InputPositions(stations []model.Station) map[string]int {
	pos := make(map[string]int, len(stations))
	for i, s := range stations {
		pos[s.Code] = i
	}
	return pos
}

// pass applies at most one swap and reports whether it did.
func (r Rebalancer) pass(work []swapTeam) bool {
	avg := averageSpread(work)
	for i := 0; i < len(work); i++ {
		for j := i + 1; j < len(work); j++ {
			if r.improvePair(&work[i], &work[j], avg) {
				return true
			}
		}
	}
	return false
}

func (r Rebalancer) improvePair(a, b *swapTeam, avg float64) bool {
	if len(a.members) == 0 || len(b.members) == 0 {
		return false
	}
	before := r.score(a.load, a.spread, avg) + r.score(b.load, b.spread, avg)
	bestGain := improvementEpsilon
	bestX, bestY := -1, -1
	ca, cb := r.candidates(*a), r.candidates(*b)
	for _, x := range ca {
		for _, y := range cb {
			loadA, spreadA := a.exchange(x, b.members[y])
			loadB, spreadB := b.exchange(y, a.members[x])
			after := r.score(loadA, spreadA, avg) + r.score(loadB, spreadB, avg)
			if gain := before - after; gain > bestGain {
				bestGain, bestX, bestY = gain, x, y
			}
		}
	}
	if bestX < 0 {
		return false
	}
	fromA, fromB := a.members[bestX], b.members[bestY]
	a.replace(bestX, fromB)
	b.replace(bestY, fromA)
	return true
}

// candidates picks up to CandidateLimit member indices: half from the members
// farthest from the centroid, the rest from the nearest.
func (r Rebalancer) candidates(t swapTeam) []int {
	n := len(t.members)
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	if n <= r.CandidateLimit {
		return order
	}
	c := t.centroid()
	dist := make([]float64, n)
	for i, m := range t.members {
		dist[i] = geo.Distance(m.Point(), c)
	}
	sort.SliceStable(order, func(i, j int) bool {
		a, b := order[i], order[j]
		if dist[a] != dist[b] {
			return dist[a] > dist[b]
		}
		return t.members[a].Code < t.members[b].Code
	})
	half := r.CandidateLimit / 2
	if half == 0 {
		half = 1
	}
	out := append([]int(nil), order[:half]...)
	for k := n - 1; k >= half && len(out) < r.CandidateLimit; k-- {
		out = append(out, order[k])
	}
	return out
}

func averageSpread(work []swapTeam) float64 {
	if len(work) == 0 {
		return 1
	}
	var sum float64
	for _, t := range work {
		sum += t.spread
	}
	avg := sum / float64(len(work))
	if avg <= 0 {
		return 1
	}
	return avg
}
