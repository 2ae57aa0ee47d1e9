package starbatch

import (
	"context"
	"fmt"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/status"
	"github.com/chararch/starbatch/store"
)

//LoadResult is the outcome of one batch. It is never mutated after the worker returns it.
type LoadResult struct {
	Table string
	Batch int
	//RowsLoaded counts committed rows: the batch length on success, 0 on failure
	RowsLoaded int64
	//RowsAffected is what the driver reported; MySQL counts an updated row twice
	RowsAffected int64
	Status       status.BatchStatus
	Err          error
	Duration     time.Duration
}

func (r LoadResult) Failed() bool {
	return r.Status != status.COMPLETED
}

//LoadSummary aggregates the results of one ParallelLoad, ordered by batch index
type LoadSummary struct {
	Table         string
	Batches       int
	RowsLoaded    int64
	RowsAffected  int64
	FailedBatches int
	Results       []LoadResult
	Duration      time.Duration
}

//Errors returns the errors of failed batches
func (s LoadSummary) Errors() []error {
	var errs []error
	for _, r := range s.Results {
		if r.Err != nil {
			errs = append(errs, r.Err)
		}
	}
	return errs
}

//Status folds the batch statuses: COMPLETED when every batch committed, FAILED otherwise
func (s LoadSummary) Status() status.BatchStatus {
	st := status.COMPLETED
	for _, r := range s.Results {
		st = st.And(r.Status)
	}
	return st
}

//Loader writes batches to a store, each batch on its own connection and transaction
type Loader struct {
	store      store.Store
	maxWorkers int
	listeners  []BatchListener
}

type LoaderOption func(*Loader)

//WithBatchListener registers listeners notified after every batch
func WithBatchListener(listeners ...BatchListener) LoaderOption {
	return func(l *Loader) {
		l.listeners = append(l.listeners, listeners...)
	}
}

//NewLoader creates a loader running at most maxWorkers batches at a time
func NewLoader(s store.Store, maxWorkers int, opts ...LoaderOption) *Loader {
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	l := &Loader{store: s, maxWorkers: maxWorkers}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Loader) MaxWorkers() int {
	return l.maxWorkers
}

//LoadBatch applies one batch in a single transaction. Failures are returned in the result, never as a panic or error.
func (l *Loader) LoadBatch(ctx context.Context, td *store.TableDescriptor, batch Batch) (result LoadResult) {
	start := time.Now()
	result = LoadResult{Table: td.Name, Batch: batch.Index, Status: status.STARTED}
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic in batch loading, batch:%v, err:%v, stack:%v", batch.Name(), er, string(debug.Stack()))
			result.Err = NewBatchError(ErrCodeBatchLoad, "panic in batch %v", batch.Name(), fmt.Errorf("%v", er))
		}
		if result.Err != nil {
			result.Status = status.FAILED
			result.RowsLoaded = 0
		} else {
			result.Status = status.COMPLETED
		}
		result.Duration = time.Since(start)
		for _, listener := range l.listeners {
			listener.AfterBatch(ctx, result)
		}
	}()

	rows, err := batchValues(td, batch)
	if err != nil {
		result.Err = NewBatchError(ErrCodeBatchLoad, "batch %v", batch.Name(), err)
		return result
	}
	conn, err := l.store.Connect(ctx)
	if err != nil {
		result.Err = NewBatchError(ErrCodeBatchLoad, "connect for batch %v", batch.Name(), err)
		return result
	}
	defer func() {
		if err := conn.Close(); err != nil {
			logger.Warn(ctx, "release connection failed, batch:%v, err:%v", batch.Name(), err)
		}
	}()
	affected, err := conn.ExecBatch(ctx, store.NewStatement(l.store.Dialect(), td), rows)
	if err != nil {
		result.Err = NewBatchError(ErrCodeBatchLoad, "write batch %v", batch.Name(), err)
		return result
	}
	if err = conn.Commit(); err != nil {
		result.Err = NewBatchError(ErrCodeBatchLoad, "commit batch %v", batch.Name(), err)
		return result
	}
	result.RowsLoaded = int64(batch.Len())
	result.RowsAffected = affected
	logger.Debug(ctx, "batch loaded, batch:%v, rows:%v, written:%v, affected:%v", batch.Name(), batch.Len(), len(rows), affected)
	return result
}

//ParallelLoad partitions ds and loads every batch on a pool of MaxWorkers goroutines,
//returning once all batches have finished. A failed batch does not stop its siblings.
func (l *Loader) ParallelLoad(ctx context.Context, td *store.TableDescriptor, ds *dataset.Dataset, batchSize int) LoadSummary {
	start := time.Now()
	batches := Partition(ds, td.Name, batchSize)
	summary := LoadSummary{Table: td.Name, Batches: len(batches)}
	if len(batches) == 0 {
		logger.Info(ctx, "nothing to load, table:%v", td.Name)
		return summary
	}
	logger.Info(ctx, "parallel load start, table:%v, rows:%v, batches:%v, workers:%v", td.Name, ds.Len(), len(batches), l.maxWorkers)

	results := make([]LoadResult, len(batches))
	pool, err := newWorkerPool(l.maxWorkers)
	if err != nil {
		for i, b := range batches {
			results[i] = LoadResult{Table: td.Name, Batch: b.Index, Status: status.FAILED, Err: NewBatchError(ErrCodeBatchLoad, "create worker pool", err)}
		}
	} else {
		futures := make([]*Future[LoadResult], 0, len(batches))
		for _, b := range batches {
			batch := b
			futures = append(futures, submit(ctx, pool, func() (LoadResult, error) {
				return l.LoadBatch(ctx, td, batch), nil
			}))
		}
		for i, fu := range futures {
			r, err := fu.Get()
			if err != nil {
				//the task never ran (pool closed) or died outside LoadBatch
				r = LoadResult{Table: td.Name, Batch: batches[i].Index, Status: status.FAILED, Err: NewBatchError(ErrCodeBatchLoad, "worker for batch %v", batches[i].Name(), err)}
			}
			results[i] = r
		}
		pool.Release()
	}

	for _, r := range results {
		summary.RowsLoaded += r.RowsLoaded
		summary.RowsAffected += r.RowsAffected
		if r.Failed() {
			summary.FailedBatches++
			logger.Error(ctx, "batch load failed, table:%v, batch:%v, err:%v", r.Table, r.Batch, r.Err)
		}
	}
	summary.Results = results
	summary.Duration = time.Since(start)
	logger.Info(ctx, "parallel load finish, table:%v, rowsLoaded:%v, failedBatches:%v/%v, elapsed:%v",
		td.Name, summary.RowsLoaded, summary.FailedBatches, summary.Batches, summary.Duration)
	return summary
}

//batchValues extracts row values in descriptor column order
func batchValues(td *store.TableDescriptor, batch Batch) ([][]interface{}, error) {
	cols := td.ColumnNames()
	if err := batch.Rows.Require(cols...); err != nil {
		return nil, err
	}
	rows := make([][]interface{}, 0, batch.Len())
	batch.Rows.Each(func(_ int, r dataset.Row) bool {
		rows = append(rows, r.Values(cols))
		return true
	})
	return collapseKeys(td, rows), nil
}

//collapseKeys leaves one row per conflict key so a single statement never
//touches the same target row twice. Update tables keep the last row of a key,
//KeepExisting tables the first, in first-occurrence order.
func collapseKeys(td *store.TableDescriptor, rows [][]interface{}) [][]interface{} {
	if !td.Upsert() || len(rows) < 2 {
		return rows
	}
	keyIdx := make([]int, 0, len(td.ConflictKeys))
	for i, c := range td.ColumnNames() {
		for _, k := range td.ConflictKeys {
			if c == k {
				keyIdx = append(keyIdx, i)
			}
		}
	}
	pos := make(map[string]int, len(rows))
	out := make([][]interface{}, 0, len(rows))
	var sb strings.Builder
	for _, row := range rows {
		sb.Reset()
		for _, i := range keyIdx {
			v := fmt.Sprintf("%T:%v", row[i], row[i])
			sb.WriteString(strconv.Itoa(len(v)))
			sb.WriteByte(':')
			sb.WriteString(v)
		}
		key := sb.String()
		if at, ok := pos[key]; ok {
			if !td.KeepExisting {
				out[at] = row
			}
			continue
		}
		pos[key] = len(out)
		out = append(out, row)
	}
	return out
}
