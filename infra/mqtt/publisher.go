package mqtt

import (
	"context"
	"fmt"
	"sync"

	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/core/notify"
)

// NewPublisher returns a Paho publisher when a broker is configured and a
// no-op publisher otherwise.
func NewPublisher(cfg Config) (notify.Publisher, error) {
	if !cfg.Enabled() {
		return notify.NopPublisher{}, nil
	}
	return NewPahoPublisher(cfg)
}

// MockPublisher keeps published assignments in memory. It is used in tests.
type MockPublisher struct {
	mu          sync.Mutex
	Assignments map[string][]notify.Assignment
	FailRuns    map[string]bool
	closed      bool
}

// NewMockPublisher creates a new MockPublisher.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		Assignments: make(map[string][]notify.Assignment),
		FailRuns:    make(map[string]bool),
	}
}

// PublishAssignments records the assignments or fails when configured to.
func (m *MockPublisher) PublishAssignments(_ context.Context, runID string, teams []model.Team) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailRuns[runID] {
		return fmt.Errorf("publish failed")
	}
	out := make([]notify.Assignment, len(teams))
	for i, t := range teams {
		out[i] = notify.NewAssignment(runID, t)
	}
	m.Assignments[runID] = out
	return nil
}

// Published returns the assignments last published for runID.
func (m *MockPublisher) Published(runID string) []notify.Assignment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Assignments[runID]
}

// Close marks the publisher closed.
func (m *MockPublisher) Close() {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
