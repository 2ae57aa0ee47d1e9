package starbatch

import (
	"context"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/chararch/starbatch/internal/logs"
	"github.com/chararch/starbatch/status"
)

//Pipeline runs its steps strictly in sequence, one phase each
type Pipeline interface {
	Name() string
	Run(ctx context.Context, execution *RunExecution) BatchError
	Steps() []Step
}

type simplePipeline struct {
	name      string
	steps     []Step
	listeners []RunListener
}

func newSimplePipeline(name string, steps []Step, listeners []RunListener) *simplePipeline {
	return &simplePipeline{
		name:      name,
		steps:     steps,
		listeners: listeners,
	}
}

func (p *simplePipeline) Name() string {
	return p.name
}

func (p *simplePipeline) Steps() []Step {
	return p.steps
}

//Run executes the steps in order. The first fatal step error marks the run FAILED,
//skips the remaining phases and is returned; AfterRun listeners still run.
func (p *simplePipeline) Run(ctx context.Context, execution *RunExecution) (err BatchError) {
	ctx = logs.WithRunId(ctx, execution.RunId)
	defer func() {
		if er := recover(); er != nil {
			logger.Error(ctx, "panic in pipeline run, pipeline:%v, runId:%v, err:%v, stack:%v", p.name, execution.RunId, er, string(debug.Stack()))
			err = NewBatchError(ErrCodeGeneral, "panic in pipeline run: %v", er)
			execution.Status = status.FAILED
			execution.FailError = err
			execution.EndTime = time.Now()
		}
		if e := repository.SaveRunExecution(ctx, execution); e != nil {
			logger.Error(ctx, "save run execution failed, pipeline:%v, runId:%v, err:%v", p.name, execution.RunId, e)
		}
	}()
	logger.Info(ctx, "start running pipeline, pipeline:%v, runId:%v", p.name, execution.RunId)
	for _, listener := range p.listeners {
		if e := listener.BeforeRun(ctx, execution); e != nil {
			logger.Error(ctx, "run listener execute err, pipeline:%v, runId:%v, listener:%v, err:%v", p.name, execution.RunId, reflect.TypeOf(listener).String(), e)
			execution.Status = status.FAILED
			execution.FailError = e
			execution.EndTime = time.Now()
			return e
		}
	}
	execution.Status = status.STARTED
	execution.StartTime = time.Now()
	if e := repository.SaveRunExecution(ctx, execution); e != nil {
		logger.Error(ctx, "save run execution failed, pipeline:%v, runId:%v, err:%v", p.name, execution.RunId, e)
		execution.Status = status.FAILED
		execution.FailError = e
		execution.EndTime = time.Now()
		return e
	}
	runStatus := status.COMPLETED
	for _, step := range p.steps {
		if e := p.execStep(ctx, step, execution); e != nil {
			err = e
			if e.Code() == ErrCodeStop {
				runStatus = status.STOPPED
			} else {
				runStatus = status.FAILED
			}
			execution.FailError = e
			logger.Error(ctx, "run aborted, pipeline:%v, runId:%v, phase reached:%v, skipped:%v", p.name, execution.RunId, execution.Phase, p.remaining(execution.Phase))
			break
		}
	}
	execution.Status = runStatus
	execution.EndTime = time.Now()
	for _, listener := range p.listeners {
		if e := listener.AfterRun(ctx, execution); e != nil {
			logger.Error(ctx, "run listener execute err, pipeline:%v, runId:%v, listener:%v, err:%v", p.name, execution.RunId, reflect.TypeOf(listener).String(), e)
		}
	}
	logger.Info(ctx, "finish pipeline run, pipeline:%v, runId:%v, status:%v, phase:%v, elapsed:%v", p.name, execution.RunId, execution.Status, execution.Phase, execution.EndTime.Sub(execution.StartTime))
	return err
}

func (p *simplePipeline) execStep(ctx context.Context, step Step, execution *RunExecution) BatchError {
	if ctx.Err() != nil {
		return StopError
	}
	if execution.Phase.Next() != step.Phase() || execution.Phase.Terminal() {
		return NewBatchError(ErrCodePhaseOrder, "step %v targets phase %v but run is in %v", step.Name(), step.Phase(), execution.Phase)
	}
	phaseExecution := &PhaseExecution{
		StepName:     step.Name(),
		Phase:        step.Phase(),
		Status:       status.STARTING,
		PhaseContext: NewBatchContext(),
		RunExecution: execution,
		CreateTime:   time.Now(),
	}
	execution.AddPhaseExecution(phaseExecution)
	if err := step.Exec(ctx, phaseExecution); err != nil {
		return err
	}
	if phaseExecution.Status != status.COMPLETED {
		return NewBatchError(ErrCodeGeneral, "step %v ended with status %v", step.Name(), phaseExecution.Status)
	}
	execution.Phase = step.Phase()
	return nil
}

func (p *simplePipeline) remaining(reached Phase) []string {
	var names []string
	for _, step := range p.steps {
		if step.Phase() > reached.Next() {
			names = append(names, step.Phase().String())
		}
	}
	return names
}
