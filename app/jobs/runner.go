package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kilianp07/teamalloc/core/allocation"
	"github.com/kilianp07/teamalloc/core/events"
	"github.com/kilianp07/teamalloc/core/history"
	"github.com/kilianp07/teamalloc/core/model"
	"github.com/kilianp07/teamalloc/core/notify"
	"github.com/kilianp07/teamalloc/infra/logger"
	"github.com/kilianp07/teamalloc/internal/eventbus"
)

// ioTimeout bounds history writes and publishes of a started job.
const ioTimeout = 10 * time.Second

// RunnerOptions configures a Runner.
type RunnerOptions struct {
	// MaxConcurrent bounds the number of allocations computed at once.
	MaxConcurrent int
	// EnforceLocks rejects moves touching a locked team.
	EnforceLocks bool
}

// Runner executes allocation requests as background jobs and keeps their
// results editable through moves and locks.
type Runner struct {
	engine    *allocation.Engine
	store     history.Store
	publisher notify.Publisher
	bus       *eventbus.Bus[events.RunEvent]
	log       logger.Logger
	opts      RunnerOptions

	sem chan struct{}
	// ctx stops queued jobs; started jobs finish with their own timeouts.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	jobs   map[string]*job
	closed bool
}

// NewRunner builds a Runner. store, publisher and bus are optional.
func NewRunner(engine *allocation.Engine, store history.Store, publisher notify.Publisher,
	bus *eventbus.Bus[events.RunEvent], log logger.Logger, opts RunnerOptions) *Runner {
	if log == nil {
		log = logger.NopLogger{}
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Runner{
		engine:    engine,
		store:     store,
		publisher: publisher,
		bus:       bus,
		log:       log,
		opts:      opts,
		sem:       make(chan struct{}, opts.MaxConcurrent),
		ctx:       ctx,
		cancel:    cancel,
		jobs:      make(map[string]*job),
	}
}

// Submit validates the stations of req and queues it. The returned job is
// pending. Requests the engine cannot allocate (no stations, no teams or zero
// total weight) still succeed, with no teams.
func (r *Runner) Submit(req Request) (Job, error) {
	seen := make(map[string]bool, len(req.Stations))
	for _, s := range req.Stations {
		if err := s.Validate(); err != nil {
			return Job{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
		}
		if seen[s.Code] {
			return Job{}, fmt.Errorf("%w: duplicate station %s", ErrInvalidRequest, s.Code)
		}
		seen[s.Code] = true
	}

	j := &job{
		Job: Job{
			ID:        uuid.NewString(),
			Status:    StatusPending,
			Source:    req.Source,
			Params:    req.Params,
			Stations:  len(req.Stations),
			CreatedAt: time.Now().UTC(),
		},
		stations: append([]model.Station(nil), req.Stations...),
		done:     make(chan struct{}),
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return Job{}, ErrRunnerClosed
	}
	r.jobs[j.ID] = j
	r.wg.Add(1)
	snap := j.snapshot()
	r.mu.Unlock()

	go r.execute(j)
	return snap, nil
}

// Get returns a snapshot of job id.
func (r *Runner) Get(id string) (Job, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	j, ok := r.jobs[id]
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return j.snapshot(), nil
}

// List returns all jobs, newest first.
func (r *Runner) List() []Job {
	r.mu.RLock()
	out := make([]Job, 0, len(r.jobs))
	for _, j := range r.jobs {
		out = append(out, j.snapshot())
	}
	r.mu.RUnlock()
	sort.Slice(out, func(i, k int) bool { return out[i].CreatedAt.After(out[k].CreatedAt) })
	return out
}

// Wait blocks until job id reaches a terminal status or ctx is done.
func (r *Runner) Wait(ctx context.Context, id string) (Job, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return Job{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	select {
	case <-j.done:
		return r.Get(id)
	case <-ctx.Done():
		return Job{}, ctx.Err()
	}
}

func (r *Runner) execute(j *job) {
	defer r.wg.Done()
	defer close(j.done)

	select {
	case r.sem <- struct{}{}:
		defer func() { <-r.sem }()
	case <-r.ctx.Done():
		r.finish(j, func(j *job) {
			j.Status = StatusFailed
			j.Error = ErrRunnerClosed.Error()
		})
		r.emit(events.RunEvent{Type: events.RunFailed, RunID: j.ID, Source: j.Source, Err: ErrRunnerClosed})
		return
	}

	r.mu.Lock()
	j.Status = StatusRunning
	j.StartedAt = time.Now().UTC()
	r.mu.Unlock()
	r.emit(events.RunEvent{Type: events.RunStarted, RunID: j.ID, Source: j.Source, Params: j.Params, Stations: len(j.stations)})
	r.log.Infof("run %s started: %d stations, %d teams", j.ID, len(j.stations), j.Params.NumberOfTeams)

	res := r.engine.Run(j.stations, j.Params)
	if len(res.Teams) == 0 {
		r.log.Warnf("run %s produced no teams for %d stations", j.ID, len(j.stations))
	}

	historyID := r.save(history.KindRun, "", j, res.Teams, len(res.Fallbacks))
	if len(res.Teams) > 0 {
		ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
		if err := r.publisher.PublishAssignments(ctx, j.ID, res.Teams); err != nil {
			r.log.Warnf("run %s: publish assignments: %v", j.ID, err)
		}
		cancel()
	}

	r.finish(j, func(j *job) {
		j.Status = StatusSucceeded
		j.Teams = res.Teams
		j.Bounds = res.Bounds
		j.Fallbacks = res.Fallbacks
		j.Rebalance = res.Rebalance
		j.HistoryID = historyID
	})
	r.log.Infof("run %s succeeded: %d teams in %s", j.ID, len(res.Teams), res.Duration)
	r.emit(events.RunEvent{
		Type:      events.RunCompleted,
		RunID:     j.ID,
		Source:    j.Source,
		Params:    j.Params,
		Teams:     model.CloneTeams(res.Teams),
		Stations:  len(j.stations),
		Bounds:    res.Bounds,
		Fallbacks: len(res.Fallbacks),
		Rebalance: res.Rebalance,
		Duration:  res.Duration,
	})
}

func (r *Runner) finish(j *job, apply func(*job)) {
	r.mu.Lock()
	apply(j)
	j.FinishedAt = time.Now().UTC()
	r.mu.Unlock()
}

// save appends a history record and returns its id, or "" when no store is
// configured or the append failed.
func (r *Runner) save(kind history.Kind, parent string, j *job, teams []model.Team, fallbacks int) string {
	if r.store == nil {
		return ""
	}
	rec := history.NewRecord(kind, j.Source, j.Params, teams)
	rec.ParentID = parent
	rec.Fallbacks = fallbacks
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	if err := r.store.Append(ctx, rec); err != nil {
		r.log.Errorf("job %s: save history: %v", j.ID, err)
		return ""
	}
	return rec.ID
}

func (r *Runner) emit(ev events.RunEvent) {
	if r.bus == nil {
		return
	}
	if ev.Time.IsZero() {
		ev.Time = time.Now().UTC()
	}
	r.bus.Publish(ev)
}

// lockEdit takes the edit lock of job id. The caller must unlock j.edit.
func (r *Runner) lockEdit(id string) (*job, error) {
	r.mu.RLock()
	j, ok := r.jobs[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	j.edit.Lock()
	return j, nil
}

// editable returns the job when its teams can be changed. Callers hold r.mu.
func (r *Runner) editable(id string) (*job, error) {
	j, ok := r.jobs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if j.Status != StatusSucceeded {
		return nil, fmt.Errorf("%w: %s is %s", ErrNotReady, id, j.Status)
	}
	return j, nil
}

// Move moves a station between two teams of a finished job. Locked teams
// reject the move only when lock enforcement is on. The updated teams are
// saved as a move record linked to the previous record and republished.
func (r *Runner) Move(ctx context.Context, id string, req MoveRequest) (Job, error) {
	held, err := r.lockEdit(id)
	if err != nil {
		return Job{}, err
	}
	defer held.edit.Unlock()

	r.mu.Lock()
	j, err := r.editable(id)
	if err != nil {
		r.mu.Unlock()
		return Job{}, err
	}
	weight := stationWeight(j.Teams, req.StationCode)
	move := allocation.MoveStation
	if r.opts.EnforceLocks {
		move = allocation.MoveStationStrict
	}
	teams, err := move(j.Teams, req.StationCode, req.FromTeam, req.ToTeam)
	allocation.ObserveMove(err)
	ev := events.RunEvent{
		Type:        events.StationMoved,
		RunID:       id,
		Source:      j.Source,
		StationCode: req.StationCode,
		FromTeam:    req.FromTeam,
		ToTeam:      req.ToTeam,
		Weight:      weight,
		Err:         err,
	}
	if err != nil {
		r.mu.Unlock()
		r.emit(ev)
		return Job{}, err
	}
	j.Teams = teams
	j.Moves++
	parent := j.HistoryID
	r.mu.Unlock()

	historyID := r.save(history.KindMove, parent, j, teams, 0)
	if err := r.publisher.PublishAssignments(ctx, id, teams); err != nil {
		r.log.Warnf("run %s: publish assignments after move: %v", id, err)
	}

	r.mu.Lock()
	if historyID != "" {
		j.HistoryID = historyID
	}
	snap := j.snapshot()
	r.mu.Unlock()

	ev.Teams = model.CloneTeams(teams)
	r.emit(ev)
	r.log.Infof("run %s: moved %s from %s to %s", id, req.StationCode, req.FromTeam, req.ToTeam)
	return snap, nil
}

// SetLocked sets the lock flag of one team of a finished job.
func (r *Runner) SetLocked(id, teamID string, locked bool) (Job, error) {
	held, err := r.lockEdit(id)
	if err != nil {
		return Job{}, err
	}
	defer held.edit.Unlock()

	r.mu.Lock()
	j, err := r.editable(id)
	if err != nil {
		r.mu.Unlock()
		return Job{}, err
	}
	teams, err := allocation.SetLocked(j.Teams, teamID, locked)
	if err != nil {
		r.mu.Unlock()
		return Job{}, err
	}
	j.Teams = teams
	snap := j.snapshot()
	r.mu.Unlock()

	r.emit(events.RunEvent{Type: events.TeamLocked, RunID: id, Source: j.Source, TeamID: teamID, Locked: locked})
	return snap, nil
}

// Close stops accepting jobs, fails queued ones and waits for running ones.
func (r *Runner) Close() {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	r.closed = true
	r.mu.Unlock()
	r.cancel()
	r.wg.Wait()
}

func stationWeight(teams []model.Team, code string) int {
	for _, t := range teams {
		if i := t.IndexOf(code); i >= 0 {
			return t.Members[i].Weight
		}
	}
	return 0
}
