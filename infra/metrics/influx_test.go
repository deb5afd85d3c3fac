package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/teamalloc/core/metrics"
)

type bodyRecorder struct {
	mu     sync.Mutex
	bodies []string
}

func (b *bodyRecorder) handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		b.mu.Lock()
		b.bodies = append(b.bodies, strings.TrimSpace(string(data)))
		b.mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}
}

func (b *bodyRecorder) all() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.bodies...)
}

func TestInfluxSink_RecordRun(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL, "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	sum := coremetrics.RunSummary{
		RunID:       "r1",
		Source:      "api",
		Stations:    3,
		TotalWeight: 60,
		Target:      30,
		Min:         27,
		Max:         33,
		Fallbacks:   1,
		Swaps:       2,
		Passes:      3,
		Teams: []coremetrics.TeamSnapshot{
			{TeamID: "team_1", Stations: 2, Load: 31, DistanceKm: 1.5},
			{TeamID: "team_2", Stations: 1, Load: 29, DistanceKm: 0},
		},
		Time: now,
	}
	if err := sink.RecordRun(sum); err != nil {
		t.Fatalf("record error: %v", err)
	}

	run := write.NewPointWithMeasurement("allocation_run").
		AddTag("run_id", "r1").
		AddTag("source", "api").
		AddTag("component", "allocation_engine").
		AddField("teams", 2).
		AddField("stations", 3).
		AddField("total_weight", 60).
		AddField("target", 30.0).
		AddField("min", 27.0).
		AddField("max", 33.0).
		AddField("fallbacks", 1).
		AddField("swaps", 2).
		AddField("passes", 3).
		AddField("duration_ms", 0.0).
		SetTime(now)
	t1 := write.NewPointWithMeasurement("team_load").
		AddTag("run_id", "r1").
		AddTag("team_id", "team_1").
		AddField("load", 31).
		AddField("stations", 2).
		AddField("distance_km", 1.5).
		SetTime(now)
	t2 := write.NewPointWithMeasurement("team_load").
		AddTag("run_id", "r1").
		AddTag("team_id", "team_2").
		AddField("load", 29).
		AddField("stations", 1).
		AddField("distance_km", 0.0).
		SetTime(now)
	expected := strings.TrimSpace(write.PointToLineProtocol(run, time.Nanosecond) +
		write.PointToLineProtocol(t1, time.Nanosecond) +
		write.PointToLineProtocol(t2, time.Nanosecond))

	bodies := rec.all()
	if len(bodies) != 1 || bodies[0] != expected {
		t.Errorf("unexpected bodies: %#v\nwant: %s", bodies, expected)
	}
}

func TestInfluxSink_RecordMove(t *testing.T) {
	rec := &bodyRecorder{}
	srv := httptest.NewServer(rec.handler())
	defer srv.Close()

	sink := NewInfluxSink(srv.URL+"/api/v2/write", "token", "org", "bucket")
	defer sink.Close()
	now := time.Now()
	ev := coremetrics.MoveEvent{
		RunID:       "r1",
		StationCode: "S01",
		FromTeam:    "team_1",
		ToTeam:      "team_2",
		Weight:      5,
		Accepted:    false,
		Reason:      "locked",
		Time:        now,
	}
	if err := sink.RecordMove(ev); err != nil {
		t.Fatalf("record: %v", err)
	}
	p := write.NewPointWithMeasurement("station_move").
		AddTag("run_id", "r1").
		AddTag("station", "S01").
		AddTag("from_team", "team_1").
		AddTag("to_team", "team_2").
		AddTag("accepted", "false").
		AddField("weight", 5).
		AddField("reason", "locked").
		SetTime(now)
	exp := strings.TrimSpace(write.PointToLineProtocol(p, time.Nanosecond))
	bodies := rec.all()
	if len(bodies) != 1 || bodies[0] != exp {
		t.Errorf("bodies: %#v", bodies)
	}
}

func TestNewInfluxSinkWithFallback(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			called = true
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}))
	defer srv.Close()

	sink := NewInfluxSinkWithFallback(srv.URL+"/api/v2/write", "tok", "org", "bucket")
	if _, ok := sink.(*InfluxSink); ok {
		t.Fatalf("expected NopSink on failing health check")
	}
	if !called {
		t.Fatalf("health endpoint not called")
	}
}
