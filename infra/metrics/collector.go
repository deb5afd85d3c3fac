package metrics

import (
	"context"
	"time"

	"github.com/kilianp07/teamalloc/core/events"
	coremetrics "github.com/kilianp07/teamalloc/core/metrics"
	"github.com/kilianp07/teamalloc/infra/logger"
	"github.com/kilianp07/teamalloc/internal/eventbus"
)

// Summarize converts a completed run event into a RunSummary.
func Summarize(ev events.RunEvent) coremetrics.RunSummary {
	sum := coremetrics.RunSummary{
		RunID:       ev.RunID,
		Source:      ev.Source,
		Teams:       make([]coremetrics.TeamSnapshot, len(ev.Teams)),
		Stations:    ev.Stations,
		TotalWeight: ev.Bounds.Total,
		Target:      ev.Bounds.Target,
		Min:         ev.Bounds.Min,
		Max:         ev.Bounds.Max,
		Fallbacks:   ev.Fallbacks,
		Swaps:       ev.Rebalance.Swaps,
		Passes:      ev.Rebalance.Passes,
		Duration:    ev.Duration,
		Time:        ev.Time,
	}
	for i, t := range ev.Teams {
		sum.Teams[i] = coremetrics.TeamSnapshot{
			TeamID:     t.ID,
			Stations:   len(t.Members),
			Load:       t.AggregateWeight,
			DistanceKm: t.TravelDistanceKm,
		}
	}
	return sum
}

// StartEventCollector subscribes to the event bus and records metrics for events.
// It stops when the context is canceled or the bus is closed.
func StartEventCollector(ctx context.Context, bus *eventbus.Bus[events.RunEvent], sink coremetrics.MetricsSink) {
	if bus == nil || sink == nil {
		return
	}
	log := logger.New("metrics-collector")
	sub := bus.Subscribe()
	go func() {
		defer bus.Unsubscribe(sub)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := collect(sink, ev); err != nil {
					log.Warnf("record %s for run %s: %v", ev.Type, ev.RunID, err)
				}
			}
		}
	}()
}

func collect(sink coremetrics.MetricsSink, ev events.RunEvent) error {
	switch ev.Type {
	case events.RunCompleted:
		return sink.RecordRun(Summarize(ev))
	case events.StationMoved:
		rec, ok := sink.(coremetrics.MoveRecorder)
		if !ok {
			return nil
		}
		me := coremetrics.MoveEvent{
			RunID:       ev.RunID,
			StationCode: ev.StationCode,
			FromTeam:    ev.FromTeam,
			ToTeam:      ev.ToTeam,
			Weight:      ev.Weight,
			Accepted:    ev.Err == nil,
			Time:        ev.Time,
		}
		if ev.Err != nil {
			me.Reason = ev.Err.Error()
		}
		if me.Time.IsZero() {
			me.Time = time.Now()
		}
		return rec.RecordMove(me)
	}
	return nil
}
