package scenarios

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/kilianp07/teamalloc/core/model"
)

// Expected lists the properties a scenario run must satisfy. Zero values
// other than MaxFallbacks are not checked.
type Expected struct {
	Teams        int `yaml:"teams"`
	MinLoad      int `yaml:"min_load"`
	MaxLoad      int `yaml:"max_load"`
	MaxFallbacks int `yaml:"max_fallbacks"`
	// Together lists groups of station codes that must share a team.
	Together [][]string `yaml:"together,omitempty"`
}

type Scenario struct {
	Name        string          `yaml:"name"`
	Description string          `yaml:"description,omitempty"`
	Params      model.Params    `yaml:"params"`
	NoRebalance bool            `yaml:"no_rebalance,omitempty"`
	Stations    []model.Station `yaml:"stations"`
	Expected    Expected        `yaml:"expected"`
}

func Load(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, err
	}
	return &sc, nil
}
