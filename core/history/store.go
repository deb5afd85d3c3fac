package history

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/teamalloc/core/model"
)

// ErrNotFound is returned when no record has the requested id.
var ErrNotFound = errors.New("history record not found")

// Kind tells how a record was produced.
type Kind string

const (
	KindRun  Kind = "run"
	KindMove Kind = "move"
)

// Record is one saved allocation result.
type Record struct {
	ID          string       `json:"id"`
	Timestamp   time.Time    `json:"timestamp"`
	Kind        Kind         `json:"kind"`
	ParentID    string       `json:"parent_id,omitempty"`
	Source      string       `json:"source"`
	Params      model.Params `json:"params"`
	TotalWeight int          `json:"total_weight"`
	Fallbacks   int          `json:"fallbacks,omitempty"`
	Teams       []model.Team `json:"teams"`
}

// NewRecord stamps a record with a fresh id and the current time. Teams are
// deep-copied so later changes by the caller do not leak into the record.
func NewRecord(kind Kind, source string, params model.Params, teams []model.Team) Record {
	total := 0
	for _, t := range teams {
		total += t.AggregateWeight
	}
	return Record{
		ID:          uuid.NewString(),
		Timestamp:   time.Now().UTC(),
		Kind:        kind,
		Source:      source,
		Params:      params,
		TotalWeight: total,
		Teams:       model.CloneTeams(teams),
	}
}

// Query defines filters for retrieving records. Results are newest first.
type Query struct {
	Start  time.Time
	End    time.Time
	Source string
	Kind   Kind
	Limit  int
}

// Match reports whether r passes the filters of q.
func (q Query) Match(r Record) bool {
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	if q.Source != "" && r.Source != q.Source {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	return true
}

// Store persists Records and supports querying.
type Store interface {
	Append(ctx context.Context, rec Record) error
	Get(ctx context.Context, id string) (Record, error)
	Query(ctx context.Context, q Query) ([]Record, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// filterRecords applies q to recs in memory: filter, newest first, limit.
func filterRecords(recs []Record, q Query) []Record {
	res := make([]Record, 0, len(recs))
	for _, r := range recs {
		if q.Match(r) {
			res = append(res, r)
		}
	}
	sort.SliceStable(res, func(i, j int) bool { return res[i].Timestamp.After(res[j].Timestamp) })
	if q.Limit > 0 && len(res) > q.Limit {
		res = res[:q.Limit]
	}
	return res
}
