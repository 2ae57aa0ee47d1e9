package metrics

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bmizerany/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/chararch/starbatch"
	"github.com/chararch/starbatch/status"
)

func TestListener(t *testing.T) {
	ctx := context.Background()
	l := New(prometheus.NewRegistry())

	l.AfterBatch(ctx, starbatch.LoadResult{Table: "Store_Dim", Batch: 0, RowsLoaded: 50, Status: status.COMPLETED, Duration: 20 * time.Millisecond})
	l.AfterBatch(ctx, starbatch.LoadResult{Table: "Store_Dim", Batch: 1, RowsLoaded: 12, Status: status.COMPLETED, Duration: 10 * time.Millisecond})
	l.AfterBatch(ctx, starbatch.LoadResult{Table: "Store_Dim", Batch: 2, Status: status.FAILED, Err: errors.New("deadlock")})

	assert.Equal(t, 62.0, testutil.ToFloat64(l.RowsLoaded.WithLabelValues("Store_Dim")))
	assert.Equal(t, 2.0, testutil.ToFloat64(l.Batches.WithLabelValues("Store_Dim", "COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(l.Batches.WithLabelValues("Store_Dim", "FAILED")))
	assert.Equal(t, 1, testutil.CollectAndCount(l.BatchDuration))

	run := starbatch.NewRunExecution("r", "star-schema", nil)
	run.Status = status.COMPLETED
	assert.T(t, l.AfterRun(ctx, run) == nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(l.Runs.WithLabelValues("star-schema", "COMPLETED")))

	start := time.Now()
	pe := &starbatch.PhaseExecution{Phase: starbatch.FactsLoaded, StartTime: start, EndTime: start.Add(1500 * time.Millisecond)}
	assert.T(t, l.AfterPhase(ctx, pe) == nil)
	assert.Equal(t, 1.5, testutil.ToFloat64(l.PhaseDuration.WithLabelValues("FactsLoaded")))
}

func TestListener_RegistersOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	defer func() {
		assert.NotEqual(t, nil, recover())
	}()
	New(reg)
}
