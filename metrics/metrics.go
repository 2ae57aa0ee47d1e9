// Package metrics exports run, phase and batch progress to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/chararch/starbatch"
)

// Listener is a RunListener, PhaseListener and BatchListener that records
// into the collectors it registers.
type Listener struct {
	RowsLoaded    *prometheus.CounterVec
	Batches       *prometheus.CounterVec
	BatchDuration *prometheus.HistogramVec
	PhaseDuration *prometheus.GaugeVec
	Runs          *prometheus.CounterVec
}

// New registers the collectors with reg; nil means the default registerer.
func New(reg prometheus.Registerer) *Listener {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Listener{
		RowsLoaded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starbatch_rows_loaded_total",
				Help: "Rows committed to the store",
			},
			[]string{"table"},
		),
		Batches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starbatch_batches_total",
				Help: "Batches loaded, by outcome",
			},
			[]string{"table", "status"},
		),
		BatchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "starbatch_batch_duration_seconds",
				Help:    "Duration of one batch load",
				Buckets: prometheus.ExponentialBuckets(0.005, 2, 12), // 5ms to ~10s
			},
			[]string{"table"},
		),
		PhaseDuration: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "starbatch_phase_duration_seconds",
				Help: "Duration of the latest execution of each phase",
			},
			[]string{"phase"},
		),
		Runs: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "starbatch_runs_total",
				Help: "Finished pipeline runs, by status",
			},
			[]string{"pipeline", "status"},
		),
	}
}

func (l *Listener) AfterBatch(ctx context.Context, result starbatch.LoadResult) {
	l.Batches.WithLabelValues(result.Table, string(result.Status)).Inc()
	l.RowsLoaded.WithLabelValues(result.Table).Add(float64(result.RowsLoaded))
	l.BatchDuration.WithLabelValues(result.Table).Observe(result.Duration.Seconds())
}

func (l *Listener) BeforePhase(ctx context.Context, execution *starbatch.PhaseExecution) starbatch.BatchError {
	return nil
}

func (l *Listener) AfterPhase(ctx context.Context, execution *starbatch.PhaseExecution) starbatch.BatchError {
	l.PhaseDuration.WithLabelValues(execution.Phase.String()).Set(execution.Duration().Seconds())
	return nil
}

func (l *Listener) BeforeRun(ctx context.Context, execution *starbatch.RunExecution) starbatch.BatchError {
	return nil
}

func (l *Listener) AfterRun(ctx context.Context, execution *starbatch.RunExecution) starbatch.BatchError {
	l.Runs.WithLabelValues(execution.PipelineName, string(execution.Status)).Inc()
	return nil
}

// Serve exposes g on addr under /metrics until ctx is done.
func Serve(ctx context.Context, addr string, g prometheus.Gatherer) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
