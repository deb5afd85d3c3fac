package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/teamalloc/core/metrics"
	"github.com/kilianp07/teamalloc/infra/logger"
)

// InfluxSink writes allocation runs to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordRun writes one allocation_run point and one team_load point per team
// in a single request.
func (s *InfluxSink) RecordRun(sum coremetrics.RunSummary) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	ts := sum.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	points := make([]*write.Point, 0, len(sum.Teams)+1)
	points = append(points, runPoint(sum, ts))
	for _, t := range sum.Teams {
		points = append(points, teamPoint(sum.RunID, t, ts))
	}
	return s.writeAPI.WritePoint(ctx, points...)
}

// RecordMove writes a station_move point.
func (s *InfluxSink) RecordMove(ev coremetrics.MoveEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ts := ev.Time
	if ts.IsZero() {
		ts = time.Now()
	}
	p := write.NewPointWithMeasurement("station_move").
		AddTag("run_id", ev.RunID).
		AddTag("station", ev.StationCode).
		AddTag("from_team", ev.FromTeam).
		AddTag("to_team", ev.ToTeam).
		AddTag("accepted", strconv.FormatBool(ev.Accepted)).
		AddField("weight", ev.Weight)
	if ev.Reason != "" {
		p = p.AddField("reason", ev.Reason)
	}
	return s.writeAPI.WritePoint(ctx, p.SetTime(ts))
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func runPoint(sum coremetrics.RunSummary, ts time.Time) *write.Point {
	return write.NewPointWithMeasurement("allocation_run").
		AddTag("run_id", sum.RunID).
		AddTag("source", sum.Source).
		AddTag("component", "allocation_engine").
		AddField("teams", len(sum.Teams)).
		AddField("stations", sum.Stations).
		AddField("total_weight", sum.TotalWeight).
		AddField("target", round3(sum.Target)).
		AddField("min", round3(sum.Min)).
		AddField("max", round3(sum.Max)).
		AddField("fallbacks", sum.Fallbacks).
		AddField("swaps", sum.Swaps).
		AddField("passes", sum.Passes).
		AddField("duration_ms", round3(sum.Duration.Seconds()*1000)).
		SetTime(ts)
}

func teamPoint(runID string, t coremetrics.TeamSnapshot, ts time.Time) *write.Point {
	return write.NewPointWithMeasurement("team_load").
		AddTag("run_id", runID).
		AddTag("team_id", t.TeamID).
		AddField("load", t.Load).
		AddField("stations", t.Stations).
		AddField("distance_km", round3(t.DistanceKm)).
		SetTime(ts)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
