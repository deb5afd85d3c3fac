package config

import (
	"fmt"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/model"
)

// AllocationConfig holds the engine defaults and runner limits.
type AllocationConfig struct {
	// Teams and TolerancePercent apply when a request does not set them.
	Teams            int     `json:"teams"`
	TolerancePercent float64 `json:"tolerance_percent"`
	DisableRebalance bool    `json:"disable_rebalance"`
	MaxPasses        int     `json:"max_passes"`
	CandidateLimit   int     `json:"candidate_limit"`
	HardWeight       float64 `json:"hard_weight"`
	// EnforceLocks makes team locks reject moves instead of being advisory.
	EnforceLocks      bool `json:"enforce_locks"`
	MaxConcurrentRuns int  `json:"max_concurrent_runs"`
}

// SetDefaults applies sane defaults.
func (c *AllocationConfig) SetDefaults() {
	if c.Teams == 0 {
		c.Teams = 5
	}
	if c.TolerancePercent == 0 {
		c.TolerancePercent = 10
	}
	if c.MaxPasses == 0 {
		c.MaxPasses = allocation.DefaultMaxPasses
	}
	if c.CandidateLimit == 0 {
		c.CandidateLimit = allocation.DefaultCandidateLimit
	}
	if c.HardWeight == 0 {
		c.HardWeight = allocation.DefaultHardWeight
	}
	if c.MaxConcurrentRuns == 0 {
		c.MaxConcurrentRuns = 2
	}
}

// Validate checks value ranges.
func (c AllocationConfig) Validate() error {
	if c.Teams < 1 {
		return fmt.Errorf("allocation: teams must be positive")
	}
	if c.TolerancePercent < 0 || c.TolerancePercent > 100 {
		return fmt.Errorf("allocation: tolerance_percent must be within [0,100]")
	}
	if c.MaxPasses < 1 || c.CandidateLimit < 2 {
		return fmt.Errorf("allocation: max_passes must be >= 1 and candidate_limit >= 2")
	}
	if c.MaxConcurrentRuns < 1 {
		return fmt.Errorf("allocation: max_concurrent_runs must be positive")
	}
	return nil
}

// Options returns the engine options described by the section.
func (c AllocationConfig) Options() allocation.Options {
	return allocation.Options{
		Rebalance:      !c.DisableRebalance,
		HardWeight:     c.HardWeight,
		CandidateLimit: c.CandidateLimit,
		MaxPasses:      c.MaxPasses,
	}
}

// Params builds run parameters, using the defaults for a zero team count or
// a nil tolerance.
func (c AllocationConfig) Params(teams int, tolerance *float64) model.Params {
	p := model.Params{NumberOfTeams: teams, TolerancePercent: c.TolerancePercent}
	if teams == 0 {
		p.NumberOfTeams = c.Teams
	}
	if tolerance != nil {
		p.TolerancePercent = *tolerance
	}
	return p
}
