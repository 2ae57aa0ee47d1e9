package starbatch

import (
	"sync"
	"time"

	"github.com/chararch/starbatch/status"
)

//RunExecution is one run of a pipeline
type RunExecution struct {
	RunId           string
	RunKey          string
	PipelineName    string
	Params          map[string]interface{}
	Status          status.BatchStatus
	Phase           Phase
	PhaseExecutions []*PhaseExecution
	RunContext      *BatchContext
	CreateTime      time.Time
	StartTime       time.Time
	EndTime         time.Time
	FailError       error
	Version         int64
}

//NewRunExecution creates a run in Pending phase
func NewRunExecution(runId, pipelineName string, params map[string]interface{}) *RunExecution {
	if params == nil {
		params = map[string]interface{}{}
	}
	return &RunExecution{
		RunId:        runId,
		PipelineName: pipelineName,
		Params:       params,
		Status:       status.STARTING,
		Phase:        Pending,
		RunContext:   NewBatchContext(),
		CreateTime:   time.Now(),
	}
}

func (e *RunExecution) AddPhaseExecution(execution *PhaseExecution) {
	e.PhaseExecutions = append(e.PhaseExecutions, execution)
}

//PhaseExecution returns the latest execution of step name, or nil
func (e *RunExecution) PhaseExecution(name string) *PhaseExecution {
	for i := len(e.PhaseExecutions) - 1; i >= 0; i-- {
		if e.PhaseExecutions[i].StepName == name {
			return e.PhaseExecutions[i]
		}
	}
	return nil
}

//Summaries collects the load summaries recorded by every phase, in order
func (e *RunExecution) Summaries() []LoadSummary {
	var out []LoadSummary
	for _, pe := range e.PhaseExecutions {
		out = append(out, pe.Summaries()...)
	}
	return out
}

//PhaseExecution is the execution of one step, which moves the run into Phase
type PhaseExecution struct {
	PhaseExecutionId int64
	StepName         string
	Phase            Phase
	Status           status.BatchStatus
	PhaseContext     *BatchContext
	RunExecution     *RunExecution
	CreateTime       time.Time
	StartTime        time.Time
	EndTime          time.Time
	ReadCount        int64
	WriteCount       int64
	FailedBatches    int64
	FailError        error
	LastUpdated      time.Time
	Version          int64

	mu        sync.Mutex
	summaries []LoadSummary
}

//RecordLoad adds a table's load outcome to the phase counters
func (execution *PhaseExecution) RecordLoad(summary LoadSummary) {
	execution.mu.Lock()
	defer execution.mu.Unlock()
	execution.summaries = append(execution.summaries, summary)
	execution.WriteCount += summary.RowsLoaded
	execution.FailedBatches += int64(summary.FailedBatches)
}

func (execution *PhaseExecution) Summaries() []LoadSummary {
	execution.mu.Lock()
	defer execution.mu.Unlock()
	return append([]LoadSummary(nil), execution.summaries...)
}

func (execution *PhaseExecution) finish(err error) {
	if err != nil {
		execution.Status = status.FAILED
		execution.FailError = err
		execution.EndTime = time.Now()
	} else {
		execution.Status = status.COMPLETED
		execution.EndTime = time.Now()
	}
}

func (execution *PhaseExecution) start() {
	execution.StartTime = time.Now()
	execution.Status = status.STARTED
}

func (execution *PhaseExecution) Duration() time.Duration {
	if execution.EndTime.IsZero() || execution.StartTime.IsZero() {
		return 0
	}
	return execution.EndTime.Sub(execution.StartTime)
}
