package metrics

import (
	"fmt"
	"strings"

	"github.com/kilianp07/teamalloc/core/factory"
)

// Config lists the sinks every run summary is fanned out to. An empty list
// disables metrics.
type Config struct {
	Sinks []factory.ModuleConfig `json:"sinks"`
}

// Validate checks that every sink names a registered type. Sink packages must
// be imported before calling it.
func (c Config) Validate() error {
	known := SinkTypes()
	for i, s := range c.Sinks {
		if s.Type == "" {
			return fmt.Errorf("metrics: sink %d has no type", i)
		}
		if !contains(known, s.Type) {
			return fmt.Errorf("metrics: unknown sink %q (available: %s)", s.Type, strings.Join(known, ", "))
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
