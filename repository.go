package starbatch

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/chararch/starbatch/status"
	"github.com/chararch/starbatch/store"
	"github.com/chararch/starbatch/util"
)

//RunRepository persists run and phase executions
type RunRepository interface {
	SaveRunExecution(ctx context.Context, execution *RunExecution) BatchError
	SavePhaseExecution(ctx context.Context, execution *PhaseExecution) BatchError
	FindRunExecution(ctx context.Context, runId string) (*RunExecution, BatchError)
}

var repository RunRepository = NewMemoryRepository()

//SetRepository replaces the repository used by pipelines and the operator
func SetRepository(r RunRepository) {
	if r == nil {
		panic("repository must not be nil")
	}
	repository = r
}

type memoryRepository struct {
	mu   sync.RWMutex
	runs map[string]*RunExecution
}

//NewMemoryRepository keeps executions for the life of the process
func NewMemoryRepository() RunRepository {
	return &memoryRepository{runs: map[string]*RunExecution{}}
}

func (r *memoryRepository) SaveRunExecution(ctx context.Context, execution *RunExecution) BatchError {
	r.mu.Lock()
	defer r.mu.Unlock()
	execution.Version++
	r.runs[execution.RunId] = execution
	return nil
}

func (r *memoryRepository) SavePhaseExecution(ctx context.Context, execution *PhaseExecution) BatchError {
	r.mu.Lock()
	defer r.mu.Unlock()
	if execution.PhaseExecutionId == 0 {
		execution.PhaseExecutionId = int64(len(execution.RunExecution.PhaseExecutions))
	}
	execution.Version++
	execution.LastUpdated = time.Now()
	return nil
}

func (r *memoryRepository) FindRunExecution(ctx context.Context, runId string) (*RunExecution, BatchError) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.runs[runId], nil
}

var runTable = &store.TableDescriptor{
	Name: "etl_run",
	Columns: []store.Column{
		{Name: "run_id", Type: store.String, Size: 36},
		{Name: "pipeline_name", Type: store.String, Size: 100},
		{Name: "run_key", Type: store.String, Size: 32},
		{Name: "run_params", Type: store.String, Size: 2000},
		{Name: "status", Type: store.String, Size: 20},
		{Name: "phase", Type: store.String, Size: 40},
		{Name: "create_time", Type: store.String, Size: 40},
		{Name: "start_time", Type: store.String, Size: 40},
		{Name: "end_time", Type: store.String, Size: 40},
		{Name: "exit_message", Type: store.String, Size: 2000},
		{Name: "run_context", Type: store.String, Size: 4000},
		{Name: "version", Type: store.Int},
	},
	ConflictKeys: []string{"run_id"},
}

var phaseTable = &store.TableDescriptor{
	Name: "etl_phase_execution",
	Columns: []store.Column{
		{Name: "run_id", Type: store.String, Size: 36},
		{Name: "step_name", Type: store.String, Size: 100},
		{Name: "phase", Type: store.String, Size: 40},
		{Name: "status", Type: store.String, Size: 20},
		{Name: "create_time", Type: store.String, Size: 40},
		{Name: "start_time", Type: store.String, Size: 40},
		{Name: "end_time", Type: store.String, Size: 40},
		{Name: "read_count", Type: store.Int},
		{Name: "write_count", Type: store.Int},
		{Name: "failed_batches", Type: store.Int},
		{Name: "exit_message", Type: store.String, Size: 2000},
		{Name: "phase_context", Type: store.String, Size: 4000},
		{Name: "version", Type: store.Int},
	},
	ConflictKeys: []string{"run_id", "step_name"},
}

//HistoryTables are the tables written by the SQL repository
var HistoryTables = []*store.TableDescriptor{runTable, phaseTable}

type sqlRepository struct {
	store store.Store
}

//NewSQLRepository records executions in the etl_run and etl_phase_execution tables of s, creating them when absent
func NewSQLRepository(ctx context.Context, s store.Store) (RunRepository, error) {
	for _, t := range HistoryTables {
		if err := s.Exec(ctx, s.Dialect().CreateTableSQL(t)); err != nil {
			return nil, NewBatchError(ErrCodeDbFail, "create table %v", t.Name, err)
		}
	}
	return &sqlRepository{store: s}, nil
}

func (r *sqlRepository) write(ctx context.Context, td *store.TableDescriptor, row []interface{}) BatchError {
	conn, err := r.store.Connect(ctx)
	if err != nil {
		return NewBatchError(ErrCodeDbFail, "connect", err)
	}
	defer conn.Close()
	if _, err = conn.ExecBatch(ctx, store.NewStatement(r.store.Dialect(), td), [][]interface{}{row}); err != nil {
		return NewBatchError(ErrCodeDbFail, "write %v", td.Name, err)
	}
	if err = conn.Commit(); err != nil {
		return NewBatchError(ErrCodeDbFail, "commit %v", td.Name, err)
	}
	return nil
}

func (r *sqlRepository) SaveRunExecution(ctx context.Context, execution *RunExecution) BatchError {
	params, err := util.JsonString(execution.Params)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, err)
	}
	runCtx, err := util.JsonString(execution.RunContext)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, err)
	}
	if execution.RunKey == "" {
		if execution.RunKey, err = util.Digest(execution.Params); err != nil {
			return NewBatchError(ErrCodeGeneral, err)
		}
	}
	execution.Version++
	return r.write(ctx, runTable, []interface{}{
		execution.RunId, execution.PipelineName, execution.RunKey, truncate(params, 2000),
		string(execution.Status), execution.Phase.String(),
		formatTime(execution.CreateTime), formatTime(execution.StartTime), formatTime(execution.EndTime),
		truncate(errMessage(execution.FailError), 2000), truncate(runCtx, 4000), execution.Version,
	})
}

func (r *sqlRepository) SavePhaseExecution(ctx context.Context, execution *PhaseExecution) BatchError {
	phaseCtx, err := util.JsonString(execution.PhaseContext)
	if err != nil {
		return NewBatchError(ErrCodeGeneral, err)
	}
	execution.Version++
	execution.LastUpdated = time.Now()
	return r.write(ctx, phaseTable, []interface{}{
		execution.RunExecution.RunId, execution.StepName, execution.Phase.String(), string(execution.Status),
		formatTime(execution.CreateTime), formatTime(execution.StartTime), formatTime(execution.EndTime),
		execution.ReadCount, execution.WriteCount, execution.FailedBatches,
		truncate(errMessage(execution.FailError), 2000), truncate(phaseCtx, 4000), execution.Version,
	})
}

func (r *sqlRepository) FindRunExecution(ctx context.Context, runId string) (*RunExecution, BatchError) {
	d := r.store.Dialect()
	query := fmt.Sprintf("select %s from %s where %s = %s",
		store.QuoteAll(d, []string{"pipeline_name", "run_key", "run_params", "status", "phase", "create_time", "start_time", "end_time", "exit_message", "run_context", "version"}),
		d.Quote(runTable.Name), d.Quote("run_id"), d.Placeholder(1))
	var (
		name, key, params, st, phase, created, started, ended string
		exitMsg, runCtx                                        sql.NullString
		version                                                int64
	)
	err := r.store.QueryRow(ctx, query, runId).Scan(&name, &key, &params, &st, &phase, &created, &started, &ended, &exitMsg, &runCtx, &version)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, NewBatchError(ErrCodeDbFail, "find run %v", runId, err)
	}
	execution := NewRunExecution(runId, name, nil)
	execution.RunKey = key
	execution.Status = status.BatchStatus(st)
	execution.Version = version
	if p, e := ParsePhase(phase); e == nil {
		execution.Phase = p
	}
	if e := util.ParseJson(params, &execution.Params); e != nil {
		return nil, NewBatchError(ErrCodeGeneral, "parse params of run %v", runId, e)
	}
	if runCtx.Valid && runCtx.String != "" {
		if e := util.ParseJson(runCtx.String, execution.RunContext); e != nil {
			return nil, NewBatchError(ErrCodeGeneral, "parse context of run %v", runId, e)
		}
	}
	if exitMsg.Valid && exitMsg.String != "" {
		execution.FailError = errors.New(exitMsg.String)
	}
	execution.CreateTime = parseTime(created)
	execution.StartTime = parseTime(started)
	execution.EndTime = parseTime(ended)
	return execution, nil
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func errMessage(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
