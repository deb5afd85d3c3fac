package model

// Params configures one allocation run.
type Params struct {
	NumberOfTeams    int     `json:"number_of_teams" yaml:"number_of_teams"`
	TolerancePercent float64 `json:"tolerance_percent" yaml:"tolerance_percent"`
}

// ClampedTolerance returns TolerancePercent limited to [0,100].
func (p Params) ClampedTolerance() float64 {
	switch {
	case p.TolerancePercent < 0:
		return 0
	case p.TolerancePercent > 100:
		return 100
	default:
		return p.TolerancePercent
	}
}
