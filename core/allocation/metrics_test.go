package allocation

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/kilianp07/teamalloc/core/model"
)

func TestAllocationMetricsUpdate(t *testing.T) {
	ResetMetrics(nil)
	t.Cleanup(func() { ResetMetrics(nil) })
	reg := prometheus.NewRegistry()
	MustRegisterMetrics(reg)

	RunClustering(tenStations(), model.Params{NumberOfTeams: 2, TolerancePercent: 20})
	RunClustering(nil, model.Params{NumberOfTeams: 2})

	if v := testutil.ToFloat64(runsTotal.WithLabelValues("ok")); v != 1 {
		t.Errorf("ok runs expected 1 got %f", v)
	}
	if v := testutil.ToFloat64(runsTotal.WithLabelValues("empty")); v != 1 {
		t.Errorf("empty runs expected 1 got %f", v)
	}
	if count := testutil.CollectAndCount(runDuration); count == 0 {
		t.Errorf("runDuration not updated")
	}

	ObserveMove(nil)
	ObserveMove(errors.New("bad"))
	if v := testutil.ToFloat64(movesTotal.WithLabelValues("applied")); v != 1 {
		t.Errorf("applied moves expected 1 got %f", v)
	}
	if v := testutil.ToFloat64(movesTotal.WithLabelValues("rejected")); v != 1 {
		t.Errorf("rejected moves expected 1 got %f", v)
	}
}
