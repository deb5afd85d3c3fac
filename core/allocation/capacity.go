package allocation

import "fmt"

// loadEpsilon absorbs float error when comparing integer loads to bounds.
const loadEpsilon = 1e-9

// Bounds are the per-team load limits of one run.
type Bounds struct {
	Total  int     `json:"total"`
	Teams  int     `json:"teams"`
	Target float64 `json:"target"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
}

// PlanCapacity derives the even per-team target and the tolerance band
// around it. Tolerance is clamped to [0,100].
func PlanCapacity(total, teams int, tolerancePercent float64) (Bounds, error) {
	if teams <= 0 {
		return Bounds{}, fmt.Errorf("%w: number of teams %d", ErrInvalidInput, teams)
	}
	if total <= 0 {
		return Bounds{}, fmt.Errorf("%w: total weight %d", ErrInvalidInput, total)
	}
	if tolerancePercent < 0 {
		tolerancePercent = 0
	}
	if tolerancePercent > 100 {
		tolerancePercent = 100
	}
	target := float64(total) / float64(teams)
	return Bounds{
		Total:  total,
		Teams:  teams,
		Target: target,
		Min:    target * (1 - tolerancePercent/100),
		Max:    target * (1 + tolerancePercent/100),
	}, nil
}

// Violation returns by how much load lies outside [Min, Max], as a fraction
// of Target. Loads inside the band yield 0.
func (b Bounds) Violation(load int) float64 {
	l := float64(load)
	switch {
	case l < b.Min-loadEpsilon:
		return (b.Min - l) / b.Target
	case l > b.Max+loadEpsilon:
		return (l - b.Max) / b.Target
	default:
		return 0
	}
}

// Within reports whether load respects the band.
func (b Bounds) Within(load int) bool { return b.Violation(load) == 0 }

// Fits reports whether load stays under the ceiling.
func (b Bounds) Fits(load int) bool { return float64(load) <= b.Max+loadEpsilon }
