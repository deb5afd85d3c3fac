package jobs

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/history"
	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/infra/mqtt"
	"github.com/kilianp07/teamalloc/internal/eventbus"
)

func clusterStations() []model.Station {
	return []model.Station{
		{Code: "N1", Latitude: 21.030, Longitude: 105.850, Weight: 10},
		{Code: "N2", Latitude: 21.032, Longitude: 105.852, Weight: 10},
		{Code: "N3", Latitude: 21.034, Longitude: 105.851, Weight: 10},
		{Code: "S1", Latitude: 10.770, Longitude: 106.700, Weight: 10},
		{Code: "S2", Latitude: 10.772, Longitude: 106.702, Weight: 10},
		{Code: "S3", Latitude: 10.774, Longitude: 106.701, Weight: 10},
	}
}

type fixture struct {
	runner *Runner
	store  history.Store
	pub    *mqtt.MockPublisher
	bus    *eventbus.Bus[events.RunEvent]
	events <-chan events.RunEvent
}

func newFixture(t *testing.T, opts RunnerOptions) fixture {
	t.Helper()
	store, err := history.NewJSONLStore(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	bus := eventbus.New[events.RunEvent](64)
	f := fixture{
		store: store,
		pub:   mqtt.NewMockPublisher(),
		bus:   bus,
	}
	f.events = bus.Subscribe()
	f.runner = NewRunner(allocation.NewEngine(allocation.DefaultOptions(), nil), store, f.pub, bus, nil, opts)
	t.Cleanup(func() {
		f.runner.Close()
		bus.Close()
		_ = store.Close()
	})
	return f
}

func (f fixture) run(t *testing.T, req Request) Job {
	t.Helper()
	job, err := f.runner.Submit(req)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := f.runner.Wait(ctx, job.ID)
	require.NoError(t, err)
	return done
}

func memberCodes(t model.Team) []string {
	out := make([]string, len(t.Members))
	for i, m := range t.Members {
		out[i] = m.Code
	}
	return out
}

func drain(ch <-chan events.RunEvent) []events.RunEvent {
	var out []events.RunEvent
	for {
		select {
		case ev := <-ch:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func teamOf(teams []model.Team, code string) string {
	for _, t := range teams {
		if t.IndexOf(code) >= 0 {
			return t.ID
		}
	}
	return ""
}

func TestRunnerSubmitAndWait(t *testing.T) {
	f := newFixture(t, RunnerOptions{MaxConcurrent: 2})
	job, err := f.runner.Submit(Request{Source: "north-south.csv", Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2, TolerancePercent: 10}})
	require.NoError(t, err)
	assert.Equal(t, StatusPending, job.Status)
	assert.Equal(t, 6, job.Stations)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done, err := f.runner.Wait(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, done.Status)
	require.Len(t, done.Teams, 2)
	assert.Equal(t, teamOf(done.Teams, "N1"), teamOf(done.Teams, "N3"))
	assert.Equal(t, teamOf(done.Teams, "S1"), teamOf(done.Teams, "S2"))
	assert.NotEqual(t, teamOf(done.Teams, "N1"), teamOf(done.Teams, "S1"))
	assert.InDelta(t, 30, done.Bounds.Target, 1e-9)
	assert.False(t, done.FinishedAt.Before(done.StartedAt))

	require.NotEmpty(t, done.HistoryID)
	rec, err := f.store.Get(context.Background(), done.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, history.KindRun, rec.Kind)
	assert.Equal(t, 60, rec.TotalWeight)

	assert.Len(t, f.pub.Published(job.ID), 2)

	evs := drain(f.events)
	require.Len(t, evs, 2)
	assert.Equal(t, events.RunStarted, evs[0].Type)
	assert.Equal(t, events.RunCompleted, evs[1].Type)
	assert.Len(t, evs[1].Teams, 2)
}

func TestRunnerRejectsInvalidStations(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	_, err := f.runner.Submit(Request{Stations: []model.Station{{Code: "", Latitude: 1, Longitude: 1, Weight: 1}}})
	assert.True(t, errors.Is(err, ErrInvalidRequest))

	dup := []model.Station{
		{Code: "A", Latitude: 1, Longitude: 1, Weight: 1},
		{Code: "A", Latitude: 2, Longitude: 2, Weight: 1},
	}
	_, err = f.runner.Submit(Request{Stations: dup, Params: model.Params{NumberOfTeams: 1}})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
	assert.Empty(t, f.runner.List())
}

func TestRunnerEmptyResultSucceeds(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	done := f.run(t, Request{Stations: clusterStations(), Params: model.Params{NumberOfTeams: 0}})
	assert.Equal(t, StatusSucceeded, done.Status)
	assert.Empty(t, done.Teams)
	assert.Nil(t, f.pub.Published(done.ID))
}

func TestRunnerGetAndList(t *testing.T) {
	f := newFixture(t, RunnerOptions{MaxConcurrent: 1})
	first := f.run(t, Request{Source: "a.csv", Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	time.Sleep(2 * time.Millisecond)
	second := f.run(t, Request{Source: "b.csv", Stations: clusterStations(), Params: model.Params{NumberOfTeams: 3}})

	got, err := f.runner.Get(first.ID)
	require.NoError(t, err)
	assert.Equal(t, "a.csv", got.Source)

	_, err = f.runner.Get("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = f.runner.Wait(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	list := f.runner.List()
	require.Len(t, list, 2)
	assert.Equal(t, second.ID, list[0].ID)
	assert.Equal(t, first.ID, list[1].ID)
}

func TestRunnerSnapshotsAreIsolated(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	done := f.run(t, Request{Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	done.Teams[0].Members[0].Code = "changed"
	again, err := f.runner.Get(done.ID)
	require.NoError(t, err)
	assert.NotEqual(t, "changed", again.Teams[0].Members[0].Code)
}

func TestRunnerMove(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	done := f.run(t, Request{Source: "ns.csv", Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	drain(f.events)
	from := teamOf(done.Teams, "N1")
	to := teamOf(done.Teams, "S1")

	moved, err := f.runner.Move(context.Background(), done.ID, MoveRequest{StationCode: "N1", FromTeam: from, ToTeam: to})
	require.NoError(t, err)
	assert.Equal(t, to, teamOf(moved.Teams, "N1"))
	assert.Equal(t, 1, moved.Moves)
	assert.NotEqual(t, done.HistoryID, moved.HistoryID)

	rec, err := f.store.Get(context.Background(), moved.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, history.KindMove, rec.Kind)
	assert.Equal(t, done.HistoryID, rec.ParentID)

	assignments := f.pub.Published(done.ID)
	require.Len(t, assignments, 2)

	evs := drain(f.events)
	require.Len(t, evs, 1)
	assert.Equal(t, events.StationMoved, evs[0].Type)
	assert.Equal(t, 10, evs[0].Weight)
	assert.NoError(t, evs[0].Err)

	_, err = f.runner.Move(context.Background(), done.ID, MoveRequest{StationCode: "N1", FromTeam: from, ToTeam: to})
	assert.True(t, errors.Is(err, allocation.ErrInvalidMove))
	evs = drain(f.events)
	require.Len(t, evs, 1)
	assert.Error(t, evs[0].Err)

	_, err = f.runner.Move(context.Background(), "missing", MoveRequest{})
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestRunnerLocks(t *testing.T) {
	f := newFixture(t, RunnerOptions{EnforceLocks: true})
	done := f.run(t, Request{Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	from := teamOf(done.Teams, "N1")
	to := teamOf(done.Teams, "S1")

	locked, err := f.runner.SetLocked(done.ID, to, true)
	require.NoError(t, err)
	assert.True(t, locked.Teams[model.FindTeam(locked.Teams, to)].Locked)

	_, err = f.runner.Move(context.Background(), done.ID, MoveRequest{StationCode: "N1", FromTeam: from, ToTeam: to})
	assert.True(t, errors.Is(err, allocation.ErrLockedTeam))

	_, err = f.runner.SetLocked(done.ID, to, false)
	require.NoError(t, err)
	_, err = f.runner.Move(context.Background(), done.ID, MoveRequest{StationCode: "N1", FromTeam: from, ToTeam: to})
	assert.NoError(t, err)

	_, err = f.runner.SetLocked(done.ID, "team_9", true)
	assert.True(t, errors.Is(err, allocation.ErrTeamNotFound))
}

func TestRunnerAdvisoryLocks(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	done := f.run(t, Request{Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	from := teamOf(done.Teams, "N1")
	to := teamOf(done.Teams, "S1")
	_, err := f.runner.SetLocked(done.ID, from, true)
	require.NoError(t, err)
	_, err = f.runner.Move(context.Background(), done.ID, MoveRequest{StationCode: "N1", FromTeam: from, ToTeam: to})
	assert.NoError(t, err)
}

func TestRunnerConcurrentMovesChainHistory(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	done := f.run(t, Request{Source: "ns.csv", Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	north := teamOf(done.Teams, "N1")
	south := teamOf(done.Teams, "S1")

	moves := []MoveRequest{
		{StationCode: "N1", FromTeam: north, ToTeam: south},
		{StationCode: "N2", FromTeam: north, ToTeam: south},
		{StationCode: "S1", FromTeam: south, ToTeam: north},
		{StationCode: "S2", FromTeam: south, ToTeam: north},
	}
	var wg sync.WaitGroup
	errs := make(chan error, len(moves))
	for _, m := range moves {
		wg.Add(1)
		go func(m MoveRequest) {
			defer wg.Done()
			_, err := f.runner.Move(context.Background(), done.ID, m)
			errs <- err
		}(m)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	final, err := f.runner.Get(done.ID)
	require.NoError(t, err)
	assert.Equal(t, len(moves), final.Moves)

	recs, err := f.store.Query(context.Background(), history.Query{Kind: history.KindMove})
	require.NoError(t, err)
	require.Len(t, recs, len(moves))
	byID := make(map[string]history.Record, len(recs))
	for _, rec := range recs {
		byID[rec.ID] = rec
	}

	head, ok := byID[final.HistoryID]
	require.True(t, ok, "job must point at a move record")
	require.Len(t, head.Teams, len(final.Teams))
	for i, team := range final.Teams {
		assert.Equal(t, memberCodes(team), memberCodes(head.Teams[i]))
	}
	id, steps := final.HistoryID, 0
	for id != done.HistoryID {
		rec, ok := byID[id]
		require.True(t, ok, "chain broken at %s", id)
		id = rec.ParentID
		steps++
	}
	assert.Equal(t, len(moves), steps)
}

// gatedStore holds Append until release is closed.
type gatedStore struct {
	history.Store
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func (g *gatedStore) Append(ctx context.Context, rec history.Record) error {
	g.once.Do(func() { close(g.entered) })
	<-g.release
	if err := ctx.Err(); err != nil {
		return err
	}
	return g.Store.Append(ctx, rec)
}

func TestRunnerCloseKeepsRunningHistory(t *testing.T) {
	inner, err := history.NewJSONLStore(filepath.Join(t.TempDir(), "history.jsonl"))
	require.NoError(t, err)
	defer func() { _ = inner.Close() }()
	store := &gatedStore{Store: inner, entered: make(chan struct{}), release: make(chan struct{})}
	pub := mqtt.NewMockPublisher()
	r := NewRunner(allocation.NewEngine(allocation.DefaultOptions(), nil), store, pub, nil, nil, RunnerOptions{})

	job, err := r.Submit(Request{Source: "late.csv", Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	require.NoError(t, err)
	select {
	case <-store.entered:
	case <-time.After(5 * time.Second):
		t.Fatal("run never reached the store")
	}

	closed := make(chan struct{})
	go func() {
		r.Close()
		close(closed)
	}()
	<-r.ctx.Done()
	close(store.release)
	select {
	case <-closed:
	case <-time.After(5 * time.Second):
		t.Fatal("close did not return")
	}

	got, err := r.Get(job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, got.Status)
	require.NotEmpty(t, got.HistoryID)
	rec, err := inner.Get(context.Background(), got.HistoryID)
	require.NoError(t, err)
	assert.Equal(t, history.KindRun, rec.Kind)
	assert.Len(t, pub.Published(job.ID), 2)
}

func TestRunnerClose(t *testing.T) {
	f := newFixture(t, RunnerOptions{})
	f.runner.Close()
	f.runner.Close()
	_, err := f.runner.Submit(Request{Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	assert.True(t, errors.Is(err, ErrRunnerClosed))
}

func TestRunnerWithoutStore(t *testing.T) {
	r := NewRunner(allocation.NewEngine(allocation.DefaultOptions(), nil), nil, nil, nil, nil, RunnerOptions{})
	defer r.Close()
	job, err := r.Submit(Request{Stations: clusterStations(), Params: model.Params{NumberOfTeams: 2}})
	require.NoError(t, err)
	done, err := r.Wait(context.Background(), job.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusSucceeded, done.Status)
	assert.Empty(t, done.HistoryID)
}
