// Package e2e runs the storage, metrics and messaging adapters against real
// InfluxDB, PostgreSQL, Redis and Mosquitto containers.
package e2e

import (
	"context"
	"fmt"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
)

// InfluxReader queries the points written by the Influx metrics sink.
type InfluxReader struct {
	bucket string
	client influxdb2.Client
	query  api.QueryAPI
}

// NewInfluxReader creates a reader for a running InfluxDB instance.
func NewInfluxReader(url, org, bucket, token string) *InfluxReader {
	c := influxdb2.NewClient(url, token)
	return &InfluxReader{bucket: bucket, client: c, query: c.QueryAPI(org)}
}

// Count returns how many field values of measurement were written in the
// last hour, optionally restricted to one run.
func (r *InfluxReader) Count(ctx context.Context, measurement, runID string) (int, error) {
	flux := fmt.Sprintf(`from(bucket:%q) |> range(start:-1h) |> filter(fn: (r) => r._measurement == %q)`, r.bucket, measurement)
	if runID != "" {
		flux += fmt.Sprintf(` |> filter(fn: (r) => r.run_id == %q)`, runID)
	}
	res, err := r.query.Query(ctx, flux)
	if err != nil {
		return 0, fmt.Errorf("query %s: %w", measurement, err)
	}
	defer func() { _ = res.Close() }()
	n := 0
	for res.Next() {
		n++
	}
	return n, res.Err()
}

// Close releases the underlying client.
func (r *InfluxReader) Close() { r.client.Close() }
