package starbatch

import (
	"context"
	"errors"
	"reflect"
	"runtime/debug"
	"time"

	"github.com/chararch/starbatch/dataset"
	"github.com/chararch/starbatch/status"
)

// Step moves a run from the previous phase into Phase()
type Step interface {
	Name() string
	Phase() Phase
	Exec(ctx context.Context, execution *PhaseExecution) BatchError
	addListener(listener PhaseListener)
}

type simpleStep struct {
	name      string
	phase     Phase
	handler   Handler
	listeners []PhaseListener
}

func newSimpleStep(name string, phase Phase, handler Handler, listeners []PhaseListener) *simpleStep {
	return &simpleStep{
		name:      name,
		phase:     phase,
		handler:   handler,
		listeners: listeners,
	}
}

func (step *simpleStep) Name() string {
	return step.name
}

func (step *simpleStep) Phase() Phase {
	return step.phase
}

func (step *simpleStep) Exec(ctx context.Context, execution *PhaseExecution) (err BatchError) {
	defer func() {
		err = execEnd(ctx, execution, err, recover())
	}()
	runId := execution.RunExecution.RunId
	logger.Info(ctx, "phase start, runId:%v, step:%v, phase:%v", runId, step.name, step.phase)
	for _, listener := range step.listeners {
		err = listener.BeforePhase(ctx, execution)
		if err != nil {
			logger.Error(ctx, "phase listener executing error, runId:%v, step:%v, listener:%v, err:%v", runId, step.name, reflect.TypeOf(listener).String(), err)
			return err
		}
	}
	execution.start()
	if e := repository.SavePhaseExecution(ctx, execution); e != nil {
		logger.Error(ctx, "save phase execution failed, runId:%v, step:%v, err:%v", runId, step.name, e)
		return e
	}
	be := classify(step.handler.Handle(ctx, execution))
	if be != nil {
		logger.Error(ctx, "phase failed, runId:%v, step:%v, phase:%v, err:%v", runId, step.name, step.phase, be)
	} else {
		logger.Info(ctx, "phase completed, runId:%v, step:%v, phase:%v, written:%v, failedBatches:%v, elapsed:%v",
			runId, step.name, step.phase, execution.WriteCount, execution.FailedBatches, time.Since(execution.StartTime))
	}
	execution.finish(be)
	for _, listener := range step.listeners {
		if e := listener.AfterPhase(ctx, execution); e != nil {
			logger.Error(ctx, "phase listener executing error, runId:%v, step:%v, listener:%v, err:%v", runId, step.name, reflect.TypeOf(listener).String(), e)
			if be == nil {
				be = e
				execution.finish(e)
			}
			break
		}
	}
	return be
}

func (step *simpleStep) addListener(listener PhaseListener) {
	step.listeners = append(step.listeners, listener)
}

//classify turns a handler error into a BatchError, keeping codes already assigned
func classify(err error) BatchError {
	if err == nil {
		return nil
	}
	var be BatchError
	if errors.As(err, &be) {
		if be == err {
			return be
		}
		return NewBatchError(be.Code(), err.Error(), err)
	}
	var se *dataset.SchemaError
	if errors.As(err, &se) {
		return NewBatchError(ErrCodeSchema, err.Error(), err)
	}
	return NewBatchError(ErrCodeGeneral, err.Error(), err)
}

func execEnd(ctx context.Context, execution *PhaseExecution, err BatchError, recoverErr interface{}) BatchError {
	runId := execution.RunExecution.RunId
	if recoverErr != nil {
		logger.Error(ctx, "panic in phase executing, runId:%v, step:%v, err:%v, stack:%v", runId, execution.StepName, recoverErr, string(debug.Stack()))
		err = NewBatchError(ErrCodeGeneral, "panic in phase execution: %v", recoverErr)
		execution.finish(err)
	}
	if err != nil && execution.Status != status.FAILED {
		execution.finish(err)
	}
	if e := repository.SavePhaseExecution(ctx, execution); e != nil {
		logger.Error(ctx, "save phase execution failed, runId:%v, step:%v, err:%v", runId, execution.StepName, e)
		if err == nil {
			err = e
		}
	}
	return err
}
